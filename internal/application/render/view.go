package render

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"catalog/internal/application/filter"
	"catalog/internal/domain/item"
)

// mdRenderer renders descriptions. Raw HTML in the source is dropped (WithUnsafe is not set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// CardView is the display model of one item. It holds plain strings; escaping
// happens when a template writes them out.
type CardView struct {
	ID           string
	Kind         item.Kind
	Title        string
	Byline       string
	Category     string
	Year         int
	Initials     string
	Image        string
	Link         string
	DetailHref   string
	Phone        string
	PhoneDigits  string
	AddressLines []string
	TierName     string
	TierClass    string
	Stars        string
	Rating       string
	Pages        int
	ISBN         string
	Code         string
	Credits      int
	Tags         string
	Available    bool
	StatusLabel  string
	Description  template.HTML
}

// NewCardView computes the display model for it.
// PRE: none
// POST: every field is derived from it only; Description is sanitized HTML
func NewCardView(it item.Item) CardView {
	v := CardView{
		ID:          it.ID,
		Kind:        it.Kind,
		Title:       it.Title,
		Byline:      it.Byline,
		Category:    it.Category,
		Year:        it.Year,
		Initials:    Initials(it.Title),
		Image:       strings.TrimSpace(it.Image),
		Link:        strings.TrimSpace(it.Link),
		Phone:       FormatPhone(it.Phone),
		PhoneDigits: digits(it.Phone),
		Pages:       it.Pages,
		ISBN:        it.ISBN,
		Code:        it.Code(),
		Credits:     it.Credits,
		Tags:        strings.Join(it.Tags, ", "),
		Available:   it.Available,
		Description: Markdown(it.Description),
	}
	if it.Address != "" {
		v.AddressLines = strings.Split(it.Address, "\n")
	}
	if it.Kind == item.KindMember {
		v.TierName = it.Tier.Name()
		v.TierClass = it.Tier.Class()
	}
	if it.Rating > 0 {
		v.Stars = Stars(it.Rating)
		v.Rating = strconv.FormatFloat(it.Rating, 'f', -1, 64)
	}
	switch it.Kind {
	case item.KindBook:
		v.StatusLabel = "Checked Out"
		if it.Available {
			v.StatusLabel = "Available"
		}
	case item.KindCourse:
		v.StatusLabel = "In Progress"
		if it.Available {
			v.StatusLabel = "Completed"
		}
	}
	return v
}

// Initials returns up to two upper-cased initials of name.
func Initials(name string) string {
	var b strings.Builder
	n := 0
	for _, word := range strings.Fields(name) {
		r := []rune(word)
		if !unicode.IsLetter(r[0]) && !unicode.IsDigit(r[0]) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r[0]))
		n++
		if n == 2 {
			break
		}
	}
	return b.String()
}

// FormatPhone formats a 10-digit number as (555) 123-4567; anything else is returned trimmed.
func FormatPhone(phone string) string {
	d := digits(phone)
	if len(d) != 10 {
		return strings.TrimSpace(phone)
	}
	return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Stars returns one star per whole rating point.
func Stars(rating float64) string {
	n := int(rating)
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat("⭐", n)
}

// Markdown renders md to sanitized HTML. Rendering failures fall back to escaped text.
func Markdown(md string) template.HTML {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// Summary returns the results counter text for items of kind.
func Summary(kind item.Kind, items []item.Item) string {
	noun := kind.Plural()
	if len(items) == 1 {
		noun = kind.Noun()
	}
	s := fmt.Sprintf("Showing %d %s", len(items), noun)
	if kind == item.KindCourse {
		s += fmt.Sprintf(" · %d credits", filter.TotalCredits(items))
	}
	return s
}

// VisitMessage greets a visitor based on their previous visit.
// Days are rounded to the nearest whole day.
func VisitMessage(last time.Time, seen bool, now time.Time) string {
	if !seen {
		return "Welcome! Let us know if you have any questions."
	}
	days := int(math.Round(math.Abs(now.Sub(last).Hours()) / 24))
	switch {
	case days < 1:
		return "Back so soon! Awesome!"
	case days == 1:
		return "You last visited 1 day ago."
	}
	return fmt.Sprintf("You last visited %d days ago.", days)
}
