package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/Sternrassler/cratesio-client/pkg/types"
)

// ReverseDependenciesPerPage is the fixed page size of the reverse dependency
// endpoint.
const ReverseDependenciesPerPage = 100

// CratesQuery filters and pages the crate listing.
type CratesQuery struct {
	// Sort order (default: server side relevance).
	Sort types.Sort
	// PerPage is the page size (default: 10).
	PerPage uint64
	// Page is the 1-based page number (default: 1).
	Page uint64
	// UserID restricts the listing to crates owned by a user.
	UserID *uint64
	// Category restricts the listing to one category slug.
	Category string
	// Search is a free text query.
	Search string
}

// DefaultCratesQuery returns the first page of ten crates.
func DefaultCratesQuery() CratesQuery {
	return CratesQuery{PerPage: 10, Page: 1}
}

func (q CratesQuery) values() url.Values {
	v := url.Values{}
	page, perPage := q.Page, q.PerPage
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = 10
	}
	v.Set("page", strconv.FormatUint(page, 10))
	v.Set("per_page", strconv.FormatUint(perPage, 10))
	if q.Sort != "" {
		v.Set("sort", string(q.Sort))
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.UserID != nil {
		v.Set("user_id", strconv.FormatUint(*q.UserID, 10))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	return v
}

// Summary retrieves registry wide information.
func (c *Client) Summary(ctx context.Context) (types.Summary, error) {
	var summary types.Summary
	err := c.get(ctx, "summary", c.endpointURL("summary"), &summary)
	return summary, err
}

// GetCrate retrieves a crate with its categories, keywords and versions.
// For download statistics, owners and per-version details use FullCrate.
func (c *Client) GetCrate(ctx context.Context, name string) (types.CrateResponse, error) {
	var krate types.CrateResponse
	err := c.get(ctx, "crate", c.endpointURL("crates", name), &krate)
	return krate, err
}

// CrateDownloads retrieves the download history of a crate.
func (c *Client) CrateDownloads(ctx context.Context, name string) (types.CrateDownloads, error) {
	var downloads types.CrateDownloads
	err := c.get(ctx, "crate_downloads", c.endpointURL("crates", name, "downloads"), &downloads)
	return downloads, err
}

// CrateOwners retrieves the owners of a crate.
func (c *Client) CrateOwners(ctx context.Context, name string) ([]types.User, error) {
	var owners types.Owners
	if err := c.get(ctx, "crate_owners", c.endpointURL("crates", name, "owners"), &owners); err != nil {
		return nil, err
	}
	return owners.Users, nil
}

// CrateAuthors retrieves the authors of a crate version.
func (c *Client) CrateAuthors(ctx context.Context, name, version string) (types.Authors, error) {
	var res types.AuthorsResponse
	if err := c.get(ctx, "crate_authors", c.endpointURL("crates", name, version, "authors"), &res); err != nil {
		return types.Authors{}, err
	}
	return types.Authors{Names: res.Meta.Names}, nil
}

// CrateDependencies retrieves the dependencies of a crate version.
func (c *Client) CrateDependencies(ctx context.Context, name, version string) ([]types.Dependency, error) {
	var res types.Dependencies
	if err := c.get(ctx, "crate_dependencies", c.endpointURL("crates", name, version, "dependencies"), &res); err != nil {
		return nil, err
	}
	return res.Dependencies, nil
}

// Crates retrieves one page of crates matching query.
// To iterate over every page use CratesStream.
func (c *Client) Crates(ctx context.Context, query CratesQuery) (types.CratesResponse, error) {
	u := c.endpointURL("crates")
	u.RawQuery = query.values().Encode()

	var res types.CratesResponse
	err := c.get(ctx, "crates", u, &res)
	return res, err
}

// User retrieves a user by login.
func (c *Client) User(ctx context.Context, login string) (types.User, error) {
	var res types.UserResponse
	if err := c.get(ctx, "user", c.endpointURL("users", login), &res); err != nil {
		return types.User{}, err
	}
	return res.User, nil
}
