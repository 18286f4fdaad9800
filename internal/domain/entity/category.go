package entity

// DefaultCategoryColor is used when a category is created without a color
const DefaultCategoryColor = "#64b5f6"

// Category classifies expenses
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Active      bool   `json:"active"`
}
