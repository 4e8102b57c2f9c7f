package models

// NewsPageSize — число строк на странице таблицы новостей в админке.
const NewsPageSize = 10

// PaginationResponse represents the pagination response
type PaginationResponse struct {
	TotalItems   int `json:"total_items"`
	TotalPages   int `json:"total_pages"`
	CurrentPage  int `json:"current_page"`
	ItemsPerPage int `json:"items_per_page"`
}

// Page is one page of items plus its pagination metadata
type Page[T any] struct {
	Items      []T                `json:"items"`
	Pagination PaginationResponse `json:"pagination"`
}

// Pages returns page numbers 1..TotalPages for rendering page links
func (p PaginationResponse) Pages() []int {
	nums := make([]int, 0, p.TotalPages)
	for i := 1; i <= p.TotalPages; i++ {
		nums = append(nums, i)
	}
	return nums
}

// Paginate slices items into the requested page. Pages are 1-based; a page
// below 1 is treated as 1 and a page past the end yields no items.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize < 1 {
		pageSize = NewsPageSize
	}
	if page < 1 {
		page = 1
	}

	total := len(items)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page[T]{
		Items: items[start:end],
		Pagination: PaginationResponse{
			TotalItems:   total,
			TotalPages:   (total + pageSize - 1) / pageSize,
			CurrentPage:  page,
			ItemsPerPage: pageSize,
		},
	}
}
