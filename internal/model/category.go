package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Category groups tasks by area (work, health, study, etc.).
type Category string

const (
	CategoryWork     Category = "work"
	CategoryStudy    Category = "study"
	CategoryPersonal Category = "personal"
	CategoryHealth   Category = "health"
	CategoryShopping Category = "shopping"
	CategoryLeisure  Category = "leisure"
)

var Categories = []Category{
	CategoryWork, CategoryStudy, CategoryPersonal,
	CategoryHealth, CategoryShopping, CategoryLeisure,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) Icon() string {
	switch c {
	case CategoryWork:
		return "💼"
	case CategoryStudy:
		return "📚"
	case CategoryPersonal:
		return "👤"
	case CategoryHealth:
		return "❤️"
	case CategoryShopping:
		return "🛒"
	case CategoryLeisure:
		return "🎮"
	default:
		return "🏷️"
	}
}

// Label is the capitalised name used in listings.
func (c Category) Label() string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if c == "" {
		return CategoryWork, nil
	}
	if !c.Valid() {
		return CategoryWork, fmt.Errorf("unknown category %q", raw)
	}
	return c, nil
}

func (c *Category) Scan(value any) error {
	raw, _ := scanText(value)
	parsed := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !parsed.Valid() {
		parsed = CategoryWork
	}
	*c = parsed
	return nil
}

func (c Category) Value() (driver.Value, error) {
	if !c.Valid() {
		return string(CategoryWork), nil
	}
	return string(c), nil
}
