package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/Sternrassler/cratesio-client/pkg/pagination"
	"github.com/Sternrassler/cratesio-client/pkg/types"
)

// ReverseDependenciesPage retrieves one page of reverse dependencies with the
// total count reported by the registry. Pages below 1 are treated as page 1.
func (c *Client) ReverseDependenciesPage(ctx context.Context, name string, page uint64) (types.ReverseDependencies, error) {
	page = max(page, 1)

	u := c.endpointURL("crates", name, "reverse_dependencies")
	u.RawQuery = url.Values{
		"per_page": {strconv.Itoa(ReverseDependenciesPerPage)},
		"page":     {strconv.FormatUint(page, 10)},
	}.Encode()

	var received types.ReverseDependenciesAsReceived
	if err := c.get(ctx, "reverse_dependencies", u, &received); err != nil {
		return types.ReverseDependencies{}, err
	}

	deps := types.ReverseDependencies{Meta: types.Meta{Total: received.Meta.Total}}
	deps.Extend(received)
	return deps, nil
}

// ReverseDependencies retrieves every reverse dependency of a crate, one
// request per hundred dependents plus a final request returning an empty page.
// Meta.Total is the total reported by the last non-empty page.
func (c *Client) ReverseDependencies(ctx context.Context, name string) (types.ReverseDependencies, error) {
	var total uint64
	all, err := pagination.Drain(ctx, func(ctx context.Context, page uint64) ([]types.ReverseDependency, error) {
		deps, err := c.ReverseDependenciesPage(ctx, name, page)
		if err != nil {
			return nil, err
		}
		if len(deps.Dependencies) > 0 {
			total = deps.Meta.Total
		}
		return deps.Dependencies, nil
	})
	if err != nil {
		return types.ReverseDependencies{}, err
	}

	return types.ReverseDependencies{Dependencies: all, Meta: types.Meta{Total: total}}, nil
}

// ReverseDependencyCount returns the number of reverse dependencies of a crate.
func (c *Client) ReverseDependencyCount(ctx context.Context, name string) (uint64, error) {
	page, err := c.ReverseDependenciesPage(ctx, name, 1)
	if err != nil {
		return 0, err
	}
	return page.Meta.Total, nil
}
