package client

import (
	"context"
	"fmt"

	"github.com/Sternrassler/cratesio-client/pkg/types"
	"golang.org/x/sync/errgroup"
)

// FullVersion retrieves the authors and dependencies of a version and merges
// them into one record. Both lookups are dispatched together; the first
// failure cancels the other and becomes the result.
func (c *Client) FullVersion(ctx context.Context, version types.Version) (types.FullVersion, error) {
	g, gctx := errgroup.WithContext(ctx)

	var authors types.Authors
	var deps []types.Dependency

	g.Go(func() error {
		var err error
		authors, err = c.CrateAuthors(gctx, version.CrateName, version.Num)
		return err
	})
	g.Go(func() error {
		var err error
		deps, err = c.CrateDependencies(gctx, version.CrateName, version.Num)
		return err
	})

	if err := g.Wait(); err != nil {
		return types.FullVersion{}, err
	}
	return types.NewFullVersion(version, authors, deps), nil
}

// FullCrate retrieves everything known about a crate: the crate itself,
// download statistics, owners, all reverse dependencies and version details.
//
// With allVersions false only the latest version is detailed, costing six
// requests. With allVersions true every version is detailed, costing
// 1 + 2*V + 3 requests for V versions plus one request per extra hundred
// reverse dependencies. Requests are serialized by the rate gate, so the
// choice directly scales the duration of the call.
func (c *Client) FullCrate(ctx context.Context, name string, allVersions bool) (types.FullCrate, error) {
	krate, err := c.GetCrate(ctx, name)
	if err != nil {
		return types.FullCrate{}, err
	}
	if len(krate.Versions) == 0 {
		return types.FullCrate{}, fmt.Errorf("%w: %s", ErrNoVersions, name)
	}

	detailed := krate.Versions[:1]
	if allVersions {
		detailed = krate.Versions
	}

	g, gctx := errgroup.WithContext(ctx)

	versions := make([]types.FullVersion, len(detailed))
	for i, v := range detailed {
		g.Go(func() error {
			full, err := c.FullVersion(gctx, v)
			if err != nil {
				return err
			}
			versions[i] = full
			return nil
		})
	}

	var (
		downloads types.CrateDownloads
		owners    []types.User
		revDeps   types.ReverseDependencies
	)
	g.Go(func() error {
		var err error
		downloads, err = c.CrateDownloads(gctx, name)
		return err
	})
	g.Go(func() error {
		var err error
		owners, err = c.CrateOwners(gctx, name)
		return err
	})
	g.Go(func() error {
		var err error
		revDeps, err = c.ReverseDependencies(gctx, name)
		return err
	})

	if err := g.Wait(); err != nil {
		c.logger.Debug().Err(err).Str("crate", name).Msg("Full crate lookup failed")
		return types.FullCrate{}, err
	}

	data := krate.Crate
	return types.FullCrate{
		ID:                  data.ID,
		Name:                data.Name,
		Description:         data.Description,
		License:             krate.Versions[0].License,
		Documentation:       data.Documentation,
		Homepage:            data.Homepage,
		Repository:          data.Repository,
		TotalDownloads:      data.Downloads,
		MaxVersion:          data.MaxVersion,
		CreatedAt:           data.CreatedAt,
		UpdatedAt:           data.UpdatedAt,
		Categories:          krate.Categories,
		Keywords:            krate.Keywords,
		Downloads:           downloads,
		Owners:              owners,
		ReverseDependencies: revDeps,
		Versions:            versions,
	}, nil
}
