package userlist

import (
	"sort"
	"strings"

	"lookmeal-admin/internal/domain"
)

// Page is one page of the derived user list.
type Page struct {
	Items      []domain.User
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Filter keeps users whose name, email, or role contains the term,
// case-insensitively. An empty term passes every user through.
func Filter(users []domain.User, term string) []domain.User {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return users
	}

	filtered := make([]domain.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), term) ||
			strings.Contains(strings.ToLower(u.Email), term) ||
			strings.Contains(strings.ToLower(u.Role), term) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// SortByRegistration returns users ordered most-recently registered first.
// The sort is stable: ties keep their input order. The input slice is not modified.
func SortByRegistration(users []domain.User) []domain.User {
	sorted := make([]domain.User, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RegisteredAt.After(sorted[j].RegisteredAt)
	})
	return sorted
}

// Paginate slices out the 1-indexed page. Pages out of range are clamped
// into [1, totalPages]; the last page may be short.
func Paginate(users []domain.User, page, pageSize int) ([]domain.User, int) {
	if pageSize <= 0 {
		pageSize = 1
	}
	totalPages := (len(users) + pageSize - 1) / pageSize
	if totalPages == 0 {
		return nil, 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(users) {
		end = len(users)
	}
	return users[start:end], page
}

// Run derives the page of users for the given search term and page number.
// It is pure: the same inputs always produce the same page.
func Run(users []domain.User, term string, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = 1
	}

	matched := SortByRegistration(Filter(users, term))
	items, page := Paginate(matched, page, pageSize)

	totalPages := (len(matched) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	return Page{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: len(matched),
		TotalPages: totalPages,
	}
}
