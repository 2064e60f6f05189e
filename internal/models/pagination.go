package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalCount int  `json:"total_count"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPagination derives navigation flags from the page window and total.
func NewPagination(page, pageSize, total int) Pagination {
	if page < 1 {
		page = 1
	}
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		HasNext:    pageSize > 0 && page*pageSize < total,
		HasPrev:    page > 1,
	}
}
