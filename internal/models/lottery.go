package models

import "strings"

// ThemeColor is the accent color a category is displayed with.
type ThemeColor string

const (
	ThemeBlue    ThemeColor = "blue"
	ThemePurple  ThemeColor = "purple"
	ThemePink    ThemeColor = "pink"
	ThemeGold    ThemeColor = "gold"
	ThemeCyan    ThemeColor = "cyan"
	ThemeEmerald ThemeColor = "emerald"
)

// DefaultThemeColor is used when a category is created or imported without a valid color.
const DefaultThemeColor = ThemeBlue

// Valid reports whether c is one of the known theme colors.
func (c ThemeColor) Valid() bool {
	switch c {
	case ThemeBlue, ThemePurple, ThemePink, ThemeGold, ThemeCyan, ThemeEmerald:
		return true
	}
	return false
}

// ParseThemeColor normalizes s and falls back to DefaultThemeColor.
func ParseThemeColor(s string) ThemeColor {
	c := ThemeColor(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return DefaultThemeColor
	}
	return c
}

// Item represents a single participant in a category.
// Timestamps are Unix milliseconds.
type Item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	HasWon    bool   `json:"hasWon"`
	CreatedAt int64  `json:"createdAt"`
}

// Category is a named group of participants that draws are made from.
type Category struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ThemeColor ThemeColor `json:"themeColor"`
	Items      []Item     `json:"items"`
	CreatedAt  int64      `json:"createdAt"`
	UpdatedAt  int64      `json:"updatedAt"`
}

// Clone returns a deep copy of the category.
func (c Category) Clone() Category {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

// AvailableItems returns the items that have not won yet, in pool order.
func (c Category) AvailableItems() []Item {
	out := make([]Item, 0, len(c.Items))
	for _, it := range c.Items {
		if !it.HasWon {
			out = append(out, it)
		}
	}
	return out
}

// WonItems returns the items that have already won, in pool order.
func (c Category) WonItems() []Item {
	out := make([]Item, 0)
	for _, it := range c.Items {
		if it.HasWon {
			out = append(out, it)
		}
	}
	return out
}

// Stats summarizes a category's pool.
func (c Category) Stats() CategoryStats {
	won := 0
	for _, it := range c.Items {
		if it.HasWon {
			won++
		}
	}
	return CategoryStats{Total: len(c.Items), Remaining: len(c.Items) - won, Won: won}
}

// CategoryStats is derived from a category's items and never stored.
type CategoryStats struct {
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
	Won       int `json:"won"`
}

// CategoryUpdate carries the editable fields of a category. Nil fields are left unchanged.
type CategoryUpdate struct {
	Name       *string     `json:"name,omitempty"`
	ThemeColor *ThemeColor `json:"themeColor,omitempty"`
}

// ItemUpdate carries the editable fields of an item. Nil fields are left unchanged.
type ItemUpdate struct {
	Name   *string `json:"name,omitempty"`
	HasWon *bool   `json:"hasWon,omitempty"`
}

// DrawResult stores the outcome of one completed draw.
// Winners are copies taken at commit time, so an entry stays readable
// after its category or items are deleted.
type DrawResult struct {
	ID           string     `json:"id"`
	CategoryID   string     `json:"categoryId"`
	CategoryName string     `json:"categoryName"`
	Winners      []Item     `json:"winners"`
	Timestamp    int64      `json:"timestamp"`
	ThemeColor   ThemeColor `json:"themeColor"`
}

// Clone returns a deep copy of the result.
func (r DrawResult) Clone() DrawResult {
	winners := make([]Item, len(r.Winners))
	copy(winners, r.Winners)
	r.Winners = winners
	return r
}
