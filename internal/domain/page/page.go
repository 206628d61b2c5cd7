package page

const (
	DefaultSize = 20
	MaxSize     = 100

	// MaxPage keeps (Page-1)*Size inside an int32 OFFSET for any Size.
	MaxPage = (1<<31 - 1) / MaxSize
)

// Params is the page/page_size pair every list endpoint accepts.
type Params struct {
	Page int
	Size int
}

func (p Params) Limit() int {
	return p.Size
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.Size
}

type Page[T any] struct {
	Items      []T `json:"items"`
	Count      int `json:"count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

func New[T any](items []T, total int, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}

	return Page[T]{
		Items:      items,
		Count:      total,
		Page:       p.Page,
		PageSize:   p.Size,
		TotalPages: TotalPages(total, p.Size),
	}
}

func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
