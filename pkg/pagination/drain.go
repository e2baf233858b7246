package pagination

import "context"

// Drain fetches pages 1, 2, ... until a page has no items and returns every
// item in page order. There is no upper bound on the number of pages.
func Drain[T any](ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	var all []T
	for page := uint64(1); ; page++ {
		items, err := fetch(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return all, nil
		}
		all = append(all, items...)
	}
}
