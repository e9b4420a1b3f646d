// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// NumberingQuery selects the numbering namespace to inspect.
type NumberingQuery struct {
	Year int `form:"year" binding:"omitempty,min=1,max=9999"`
}

// NumberingStatusResponse describes one (prefix, year) namespace.
type NumberingStatusResponse struct {
	Prefix  string `json:"prefix"`
	Family  string `json:"family"`
	Year    int    `json:"year"`
	Current int64  `json:"current"`
	// Next is the identifier the counter would issue next. It is not reserved.
	Next string `json:"next"`
}

// FamilyResponse describes a report family.
type FamilyResponse struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
	Table  string `json:"table"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
