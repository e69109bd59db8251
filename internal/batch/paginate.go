package batch

// Paginate splits items into consecutive slices of pageSize (the last one may
// be shorter). Pure; concatenating the pages reproduces the input.
func Paginate[T any](items []T, pageSize int) [][]T {
	if pageSize < 1 {
		pageSize = 1
	}
	pages := make([][]T, 0, (len(items)+pageSize-1)/pageSize)
	for start := 0; start < len(items); start += pageSize {
		end := start + pageSize
		if end > len(items) {
			end = len(items)
		}
		pages = append(pages, items[start:end])
	}
	return pages
}
