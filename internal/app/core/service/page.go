package service

const DefaultPageSize = 10

// PageRequest is a 1-based page and a page size.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the page to >= 1 and the limit to [1, maxLimit]. A zero limit
// becomes def.
func (p PageRequest) Normalize(def, maxLimit int) PageRequest {
	if def <= 0 {
		def = DefaultPageSize
	}
	if maxLimit < def {
		maxLimit = def
	}
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit == 0:
		p.Limit = def
	case p.Limit < 1:
		p.Limit = 1
	case p.Limit > maxLimit:
		p.Limit = maxLimit
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is the metadata block returned next to a page of results.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Count      int `json:"count"`
}

// Page wraps one page of items.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func NewPage[T any](req PageRequest, items []T, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.Limit > 0 {
		pages = (total + req.Limit - 1) / req.Limit
	}
	return Page[T]{
		Data: items,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: pages,
			Count:      len(items),
		},
	}
}
