package models

// Paging contains optional paging information
type Paging struct {
	// Next is the next page number.
	Next *int `json:"next"`
	// Previous is the previous page number.
	Previous *int `json:"previous"`
}

// PaginatedResponse is a generic page of results of type T
type PaginatedResponse[T any] struct {
	// Results is a slice of items of type T.
	Results []T `json:"results"`
	// TotalCount is the total number of items available.
	TotalCount int `json:"total_count"`
	// Paging contains optional paging information.
	Paging Paging `json:"paging,omitempty"`
}
