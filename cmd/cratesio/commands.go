package main

import (
	"github.com/Sternrassler/cratesio-client/pkg/client"
	"github.com/Sternrassler/cratesio-client/pkg/types"
	"github.com/spf13/cobra"
)

func (a *app) summaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show registry wide statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := a.client.Summary(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(summary)
		},
	}
}

func (a *app) crateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "crate NAME",
		Short: "Show a crate with its versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			krate, err := a.client.GetCrate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(krate)
		},
	}
}

func (a *app) fullCommand() *cobra.Command {
	var allVersions bool
	cmd := &cobra.Command{
		Use:   "full NAME",
		Short: "Show everything known about a crate",
		Long: `Show a crate with its downloads, owners, reverse dependencies and the
authors and dependencies of its latest version.

With --all-versions every version is detailed, which costs two extra requests
per version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			full, err := a.client.FullCrate(cmd.Context(), args[0], allVersions)
			if err != nil {
				return err
			}
			return a.print(full)
		},
	}
	cmd.Flags().BoolVar(&allVersions, "all-versions", false, "detail every version, not only the latest")
	return cmd
}

func (a *app) cratesCommand() *cobra.Command {
	var (
		query  = client.DefaultCratesQuery()
		sort   string
		userID uint64
		limit  int
	)
	cmd := &cobra.Command{
		Use:     "crates",
		Aliases: []string{"search"},
		Short:   "List crates",
		Long: `List crates matching the filters.

Without --limit a single page is printed. With --limit, pages starting at
--page are fetched until that many crates were collected or the listing ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query.Sort = types.Sort(sort)
			if cmd.Flags().Changed("user-id") {
				query.UserID = &userID
			}

			if limit <= 0 {
				res, err := a.client.Crates(cmd.Context(), query)
				if err != nil {
					return err
				}
				return a.print(res)
			}

			crates, err := a.client.CratesStream(query).Take(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.print(crates)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&query.Search, "query", "q", "", "free text search")
	flags.StringVar(&query.Category, "category", "", "category slug")
	flags.StringVar(&sort, "sort", "", "sort order (alpha, relevance, downloads, recent-downloads, recent-updates, new)")
	flags.Uint64Var(&userID, "user-id", 0, "only crates owned by this user id")
	flags.Uint64Var(&query.PerPage, "per-page", query.PerPage, "page size")
	flags.Uint64Var(&query.Page, "page", query.Page, "first page")
	flags.IntVar(&limit, "limit", 0, "collect up to this many crates across pages")
	return cmd
}

func (a *app) downloadsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "downloads NAME",
		Short: "Show the download history of a crate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			downloads, err := a.client.CrateDownloads(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(downloads)
		},
	}
}

func (a *app) ownersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "owners NAME",
		Short: "List the owners of a crate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owners, err := a.client.CrateOwners(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(owners)
		},
	}
}

func (a *app) authorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "authors NAME VERSION",
		Short: "List the authors of a crate version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			authors, err := a.client.CrateAuthors(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.print(authors)
		},
	}
}

func (a *app) dependenciesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "deps NAME VERSION",
		Aliases: []string{"dependencies"},
		Short:   "List the dependencies of a crate version",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := a.client.CrateDependencies(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.print(deps)
		},
	}
}

func (a *app) reverseDependenciesCommand() *cobra.Command {
	var (
		page  uint64
		count bool
	)
	cmd := &cobra.Command{
		Use:     "revdeps NAME",
		Aliases: []string{"reverse-dependencies"},
		Short:   "List the crates depending on a crate",
		Long: `List the crates depending on a crate.

By default every page is fetched, one request per hundred dependents. Use
--page for a single page or --count for the total only.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, name := cmd.Context(), args[0]
			switch {
			case count:
				total, err := a.client.ReverseDependencyCount(ctx, name)
				if err != nil {
					return err
				}
				return a.print(types.Meta{Total: total})
			case page > 0:
				deps, err := a.client.ReverseDependenciesPage(ctx, name, page)
				if err != nil {
					return err
				}
				return a.print(deps)
			default:
				deps, err := a.client.ReverseDependencies(ctx, name)
				if err != nil {
					return err
				}
				return a.print(deps)
			}
		},
	}
	cmd.Flags().Uint64Var(&page, "page", 0, "fetch only this page")
	cmd.Flags().BoolVar(&count, "count", false, "print only the total number of reverse dependencies")
	cmd.MarkFlagsMutuallyExclusive("page", "count")
	return cmd
}

func (a *app) userCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "user LOGIN",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.client.User(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(user)
		},
	}
}
