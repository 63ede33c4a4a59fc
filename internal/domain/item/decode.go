package item

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type bookRecord struct {
	ID          recordID    `json:"id"`
	Title       string      `json:"title"`
	Author      string      `json:"author"`
	Genre       string      `json:"genre"`
	Year        int         `json:"year"`
	Cover       string      `json:"cover"`
	Rating      float64     `json:"rating"`
	Pages       int         `json:"pages"`
	ISBN        string      `json:"isbn"`
	Description string      `json:"description"`
	Available   bool        `json:"available"`
}

// recordID accepts a JSON string or number.
type recordID string

func (r *recordID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = recordID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*r = recordID(n.String())
	return nil
}

type memberRecord struct {
	Name            string   `json:"name"`
	Address         string   `json:"address"`
	City            string   `json:"city"`
	State           string   `json:"state"`
	Zip             string   `json:"zip"`
	Phone           string   `json:"phone"`
	Website         string   `json:"website"`
	Image           string   `json:"image"`
	MembershipLevel int      `json:"membershipLevel"`
	Category        string   `json:"category"`
	YearJoined      int      `json:"yearJoined"`
	Description     string   `json:"description"`
	Services        []string `json:"services"`
}

type courseRecord struct {
	Subject     string   `json:"subject"`
	Number      int      `json:"number"`
	Title       string   `json:"title"`
	Credits     int      `json:"credits"`
	Certificate string   `json:"certificate"`
	Description string   `json:"description"`
	Technology  []string `json:"technology"`
	Completed   bool     `json:"completed"`
}

// Decode parses a site payload into items in document order.
// The payload must be an object holding the kind's array property
// ("books", "members" or "courses").
// PRE: kind is a supported Kind
// POST: Returns every item or an error wrapping ErrMalformedPayload; never a partial list
func Decode(kind Kind, data []byte) ([]Item, error) {
	switch kind {
	case KindBook:
		var doc struct {
			Books *[]bookRecord `json:"books"`
		}
		if err := unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc.Books == nil {
			return nil, fmt.Errorf("%w: missing \"books\" array", ErrMalformedPayload)
		}
		return collect(*doc.Books, fromBook)
	case KindMember:
		var doc struct {
			Members *[]memberRecord `json:"members"`
		}
		if err := unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc.Members == nil {
			return nil, fmt.Errorf("%w: missing \"members\" array", ErrMalformedPayload)
		}
		return collect(*doc.Members, fromMember)
	case KindCourse:
		var doc struct {
			Courses *[]courseRecord `json:"courses"`
		}
		if err := unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc.Courses == nil {
			return nil, fmt.Errorf("%w: missing \"courses\" array", ErrMalformedPayload)
		}
		return collect(*doc.Courses, fromCourse)
	}
	return nil, ErrUnknownKind
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// collect converts and validates every record.
// INVARIANT: ids are unique; a repeated id gets a "-2", "-3", ... suffix in document order
func collect[T any](records []T, convert func(int, T) Item) ([]Item, error) {
	items := make([]Item, 0, len(records))
	taken := make(map[string]bool, len(records))
	for idx, rec := range records {
		it := convert(idx, rec)
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformedPayload, idx, err)
		}
		it.ID = uniqueID(it.ID, taken)
		taken[it.ID] = true
		items = append(items, it)
	}
	return items, nil
}

func uniqueID(id string, taken map[string]bool) string {
	if !taken[id] {
		return id
	}
	for n := 2; ; n++ {
		candidate := id + "-" + strconv.Itoa(n)
		if !taken[candidate] {
			return candidate
		}
	}
}

func fromBook(idx int, b bookRecord) Item {
	id := string(b.ID)
	if id == "" {
		id = strconv.Itoa(idx + 1)
	}
	return Item{
		ID:          id,
		Kind:        KindBook,
		Title:       b.Title,
		Byline:      b.Author,
		Category:    b.Genre,
		Year:        b.Year,
		Description: b.Description,
		Image:       b.Cover,
		Rating:      b.Rating,
		Pages:       b.Pages,
		ISBN:        b.ISBN,
		Available:   b.Available,
	}
}

func fromMember(_ int, m memberRecord) Item {
	addr := m.Address
	if m.City != "" {
		addr = strings.TrimSpace(fmt.Sprintf("%s\n%s, %s %s", addr, m.City, m.State, m.Zip))
	}
	tier := Tier(m.MembershipLevel)
	return Item{
		ID:          Slug(m.Name),
		Kind:        KindMember,
		Title:       m.Name,
		Byline:      m.Category,
		Category:    m.Category,
		Tier:        tier,
		Year:        m.YearJoined,
		Description: m.Description,
		Image:       m.Image,
		Link:        m.Website,
		Phone:       m.Phone,
		Address:     addr,
		Tags:        m.Services,
		Available:   tier >= TierSilver,
	}
}

func fromCourse(_ int, c courseRecord) Item {
	return Item{
		ID:          fmt.Sprintf("%s-%d", strings.ToLower(c.Subject), c.Number),
		Kind:        KindCourse,
		Title:       c.Title,
		Byline:      c.Certificate,
		Category:    c.Subject,
		Number:      c.Number,
		Description: c.Description,
		Credits:     c.Credits,
		Tags:        c.Technology,
		Available:   c.Completed,
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases s and collapses runs of non-alphanumerics into single dashes.
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
