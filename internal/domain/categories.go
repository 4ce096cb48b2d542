package domain

import "strings"

// FallbackCategory is used whenever a suggestion cannot be matched.
const FallbackCategory = "Other"

// DefaultCategories is the stock category list offered to new users.
var DefaultCategories = []string{
	"Food & Dining", "Transportation", "Shopping", "Entertainment",
	"Bills & Utilities", "Healthcare", "Education", "Travel",
	"Salary", "Freelance", "Investments", "Other",
}

// CategorySet is the ordered list of categories known to the service. It is
// built once from configuration and passed to the components that need it.
type CategorySet struct {
	names []string
}

// NewCategorySet builds a set from names, dropping blanks and duplicates while
// keeping first-seen order. The fallback category is always present.
func NewCategorySet(names []string) CategorySet {
	seen := make(map[string]bool, len(names)+1)
	out := make([]string, 0, len(names)+1)
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	if !seen[FallbackCategory] {
		out = append(out, FallbackCategory)
	}
	return CategorySet{names: out}
}

// Names returns a copy of the categories in configured order.
func (s CategorySet) Names() []string {
	return append([]string(nil), s.names...)
}

// Contains reports an exact match.
func (s CategorySet) Contains(name string) bool {
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

// Normalize maps a free-form suggestion onto a known category: exact match
// first, then case-insensitive containment in either direction, else Other.
func (s CategorySet) Normalize(suggestion string) string {
	suggestion = strings.TrimSpace(suggestion)
	if suggestion == "" {
		return FallbackCategory
	}
	if s.Contains(suggestion) {
		return suggestion
	}
	lower := strings.ToLower(suggestion)
	for _, n := range s.names {
		ln := strings.ToLower(n)
		if strings.Contains(ln, lower) || strings.Contains(lower, ln) {
			return n
		}
	}
	return FallbackCategory
}

// Merge returns the user's own categories followed by any configured
// category not already present.
func (s CategorySet) Merge(userCategories []string) []string {
	seen := make(map[string]bool, len(userCategories)+len(s.names))
	out := make([]string, 0, len(userCategories)+len(s.names))
	for _, c := range append(append([]string(nil), userCategories...), s.names...) {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
