// internal/api/types/response.go
package types

// PaginatedResponse is the envelope for list endpoints that page through a
// table. TotalCount is the number of rows matching the filter, not the page.
type PaginatedResponse[T any] struct {
	Data       []T   `json:"data"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	TotalCount int64 `json:"total_count"`
}

// ErrorResponse is the body of every non-2xx answer. Kind is a stable
// machine-readable category; Error is for humans.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
