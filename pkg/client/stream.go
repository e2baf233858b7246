package client

import (
	"context"

	"github.com/Sternrassler/cratesio-client/pkg/pagination"
	"github.com/Sternrassler/cratesio-client/pkg/types"
)

// CratesStream returns a lazy sequence over every crate matching query,
// starting at query.Page. Each page is requested with query's other filters;
// the sequence ends at the first empty page.
func (c *Client) CratesStream(query CratesQuery) *pagination.Sequence[types.Crate] {
	return pagination.NewSequence("crates", query.Page,
		func(ctx context.Context, page uint64) ([]types.Crate, error) {
			q := query
			q.Page = page
			res, err := c.Crates(ctx, q)
			if err != nil {
				return nil, err
			}
			return res.Crates, nil
		},
		c.logger.With().Str("component", "pagination").Logger())
}
