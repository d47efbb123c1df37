package core

// DefaultCategories seeds the category picker when no seed file is present.
// The set is open: transactions may carry any category.
var DefaultCategories = []string{
	"Dining",
	"Transport",
	"Home",
	"Clothing & Beauty",
	"Leisure",
	"Healthcare",
	"Gifts & Social",
	"Investment Loss",
	"Salary",
	"Investment Income",
	"Side Income",
	"Other",
}
