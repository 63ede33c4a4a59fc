package item

import (
	"errors"
	"strconv"
	"strings"
)

// Kind identifies which site schema an item was decoded from.
type Kind string

// Supported kinds.
const (
	KindBook   Kind = "book"
	KindMember Kind = "member"
	KindCourse Kind = "course"
)

// Tier is a membership rank. Higher is better; zero means unranked.
type Tier int

// Membership tiers.
const (
	TierNone   Tier = 0
	TierMember Tier = 1
	TierSilver Tier = 2
	TierGold   Tier = 3
)

// Domain errors
var (
	ErrUnknownKind      = errors.New("unknown item kind")
	ErrMalformedPayload = errors.New("malformed catalog payload")
)

// ParseKind converts a config string into a Kind.
// PRE: none
// POST: Returns ErrUnknownKind for anything other than book, member or course
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindBook, KindMember, KindCourse:
		return k, nil
	}
	return "", ErrUnknownKind
}

// Noun returns the singular display noun for the kind.
func (k Kind) Noun() string {
	return string(k)
}

// Plural returns the plural display noun for the kind.
func (k Kind) Plural() string {
	return string(k) + "s"
}

// Name returns the badge label for the tier.
func (t Tier) Name() string {
	switch t {
	case TierGold:
		return "Gold"
	case TierSilver:
		return "Silver"
	default:
		return "Member"
	}
}

// Class returns the CSS class used for the tier badge.
func (t Tier) Class() string {
	switch t {
	case TierGold:
		return "gold"
	case TierSilver:
		return "silver"
	default:
		return "member"
	}
}

// Item is one catalog entry. Items are treated as read-only after decoding.
type Item struct {
	ID          string
	Kind        Kind
	Title       string
	Byline      string // author, business category or certificate
	Category    string // genre, business category or subject
	Tier        Tier
	Year        int // publication year or year joined
	Number      int // course number
	Description string
	Image       string
	Link        string
	Phone       string
	Address     string
	Rating      float64
	Pages       int
	ISBN        string
	Credits     int
	Tags        []string // services or technologies
	Available   bool
}

// SearchFields returns the fields free-text search matches against.
// INVARIANT: the set of fields depends only on Kind
func (i Item) SearchFields() []string {
	switch i.Kind {
	case KindBook:
		return []string{i.Title, i.Byline}
	case KindMember:
		return []string{i.Title, i.Description}
	case KindCourse:
		return []string{i.Title, i.Code(), i.Description}
	}
	return []string{i.Title}
}

// Code returns the course code, e.g. "WDD 231". Empty for non-courses.
func (i Item) Code() string {
	if i.Kind != KindCourse {
		return ""
	}
	return i.Category + " " + strconv.Itoa(i.Number)
}

// SpotlightEligible reports whether a member qualifies for spotlight features.
func (i Item) SpotlightEligible() bool {
	return i.Kind == KindMember && i.Tier >= TierSilver
}

// Validate checks the fields every item must carry.
// PRE: none
// POST: Returns error if ID or Title is empty
func (i Item) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return errors.New("item id cannot be empty")
	}
	if strings.TrimSpace(i.Title) == "" {
		return errors.New("item title cannot be empty")
	}
	return nil
}
