// Package types holds the crates.io API wire model, one struct per JSON shape.
package types

import "time"

// APIErrorDetail is a single entry of an error envelope.
type APIErrorDetail struct {
	Detail string `json:"detail"`
}

// APIErrors is the error side of the response envelope.
type APIErrors struct {
	Errors []APIErrorDetail `json:"errors"`
}

// Sort orders the crate listing.
type Sort string

const (
	SortAlphabetical    Sort = "alpha"
	SortRelevance       Sort = "relevance"
	SortDownloads       Sort = "downloads"
	SortRecentDownloads Sort = "recent-downloads"
	SortRecentUpdates   Sort = "recent-updates"
	SortNewlyAdded      Sort = "new"
)

// Category of a crate.
type Category struct {
	Category    string    `json:"category"`
	CratesCnt   uint64    `json:"crates_cnt"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description"`
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
}

// Keyword of a crate.
type Keyword struct {
	ID        string    `json:"id"`
	Keyword   string    `json:"keyword"`
	CratesCnt uint64    `json:"crates_cnt"`
	CreatedAt time.Time `json:"created_at"`
}

// CrateLinks are the relative API links of a crate.
type CrateLinks struct {
	OwnerTeam           string  `json:"owner_team"`
	OwnerUser           string  `json:"owner_user"`
	Owners              string  `json:"owners"`
	ReverseDependencies string  `json:"reverse_dependencies"`
	VersionDownloads    string  `json:"version_downloads"`
	Versions            *string `json:"versions"`
}

// Crate is the crate record returned by listings and lookups.
type Crate struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     *string    `json:"description"`
	License         *string    `json:"license"`
	Documentation   *string    `json:"documentation"`
	Homepage        *string    `json:"homepage"`
	Repository      *string    `json:"repository"`
	Downloads       uint64     `json:"downloads"`
	RecentDownloads *uint64    `json:"recent_downloads"`
	Categories      []string   `json:"categories"`
	Keywords        []string   `json:"keywords"`
	Versions        []uint64   `json:"versions"`
	MaxVersion      string     `json:"max_version"`
	Links           CrateLinks `json:"links"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ExactMatch      *bool      `json:"exact_match"`
}

// Meta carries the total of a paginated collection.
type Meta struct {
	Total uint64 `json:"total"`
}

// CratesResponse is one page of the crate listing.
type CratesResponse struct {
	Crates []Crate `json:"crates"`
	Meta   Meta    `json:"meta"`
}

// VersionLinks are the relative API links of a version.
type VersionLinks struct {
	Authors          string `json:"authors"`
	Dependencies     string `json:"dependencies"`
	VersionDownloads string `json:"version_downloads"`
}

// Version of a crate.
type Version struct {
	CrateName   string              `json:"crate"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	DLPath      string              `json:"dl_path"`
	Downloads   uint64              `json:"downloads"`
	Features    map[string][]string `json:"features"`
	ID          uint64              `json:"id"`
	Num         string              `json:"num"`
	Yanked      bool                `json:"yanked"`
	License     *string             `json:"license"`
	ReadmePath  *string             `json:"readme_path"`
	Links       VersionLinks        `json:"links"`
	CrateSize   *uint64             `json:"crate_size"`
	PublishedBy *User               `json:"published_by"`
}

// CrateResponse is the body of a single crate lookup.
type CrateResponse struct {
	Crate      Crate      `json:"crate"`
	Categories []Category `json:"categories"`
	Keywords   []Keyword  `json:"keywords"`
	Versions   []Version  `json:"versions"`
}

// Summary is the registry wide summary.
type Summary struct {
	JustUpdated            []Crate    `json:"just_updated"`
	MostDownloaded         []Crate    `json:"most_downloaded"`
	NewCrates              []Crate    `json:"new_crates"`
	MostRecentlyDownloaded []Crate    `json:"most_recently_downloaded"`
	NumCrates              uint64     `json:"num_crates"`
	NumDownloads           uint64     `json:"num_downloads"`
	PopularCategories      []Category `json:"popular_categories"`
	PopularKeywords        []Keyword  `json:"popular_keywords"`
}

// VersionDownloads is the download count of one version on one day.
type VersionDownloads struct {
	Date      string `json:"date"`
	Downloads uint64 `json:"downloads"`
	Version   uint64 `json:"version"`
}

// ExtraDownloads counts downloads of versions outside the per-version list.
type ExtraDownloads struct {
	Date      string `json:"date"`
	Downloads uint64 `json:"downloads"`
}

// CrateDownloadsMeta wraps the extra downloads.
type CrateDownloadsMeta struct {
	ExtraDownloads []ExtraDownloads `json:"extra_downloads"`
}

// CrateDownloads is the download history of a crate.
type CrateDownloads struct {
	VersionDownloads []VersionDownloads `json:"version_downloads"`
	Meta             CrateDownloadsMeta `json:"meta"`
}

// User is a crates.io account.
type User struct {
	Avatar *string `json:"avatar"`
	Email  *string `json:"email"`
	ID     uint64  `json:"id"`
	Kind   *string `json:"kind"`
	Login  string  `json:"login"`
	Name   *string `json:"name"`
	URL    string  `json:"url"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	User User `json:"user"`
}

// Owners wraps the owners of a crate.
type Owners struct {
	Users []User `json:"users"`
}

// AuthorsMeta holds the author names of a version.
type AuthorsMeta struct {
	Names []string `json:"names"`
}

// AuthorsResponse is the body of the authors endpoint.
type AuthorsResponse struct {
	Meta AuthorsMeta `json:"meta"`
}

// Authors of a version.
type Authors struct {
	Names []string `json:"names"`
}

// Dependency of a version.
type Dependency struct {
	CrateID         string   `json:"crate_id"`
	DefaultFeatures bool     `json:"default_features"`
	Downloads       uint64   `json:"downloads"`
	Features        []string `json:"features"`
	ID              uint64   `json:"id"`
	Kind            string   `json:"kind"`
	Optional        bool     `json:"optional"`
	Req             string   `json:"req"`
	Target          *string  `json:"target"`
	VersionID       uint64   `json:"version_id"`
}

// Dependencies wraps the dependencies of a version.
type Dependencies struct {
	Dependencies []Dependency `json:"dependencies"`
}

// ReverseDependenciesAsReceived is one page of the reverse dependency endpoint.
// Dependencies reference the dependent versions through VersionID.
type ReverseDependenciesAsReceived struct {
	Dependencies []Dependency `json:"dependencies"`
	Versions     []Version    `json:"versions"`
	Meta         Meta         `json:"meta"`
}

// ReverseDependency pairs a dependent crate version with the dependency it declares.
type ReverseDependency struct {
	CrateVersion Version    `json:"crate_version"`
	Dependency   Dependency `json:"dependency"`
}

// ReverseDependencies of a crate.
type ReverseDependencies struct {
	Dependencies []ReverseDependency `json:"dependencies"`
	Meta         Meta                `json:"meta"`
}

// Extend joins every dependency of page with the version whose id matches its
// VersionID and appends the pairs. Dependencies without a matching version are
// skipped.
func (r *ReverseDependencies) Extend(page ReverseDependenciesAsReceived) {
	byID := make(map[uint64]Version, len(page.Versions))
	for _, v := range page.Versions {
		byID[v.ID] = v
	}
	for _, d := range page.Dependencies {
		v, ok := byID[d.VersionID]
		if !ok {
			continue
		}
		r.Dependencies = append(r.Dependencies, ReverseDependency{CrateVersion: v, Dependency: d})
	}
}

// FullVersion is a version together with its authors and dependencies.
type FullVersion struct {
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	DLPath     string              `json:"dl_path"`
	Downloads  uint64              `json:"downloads"`
	Features   map[string][]string `json:"features"`
	ID         uint64              `json:"id"`
	Num        string              `json:"num"`
	Yanked     bool                `json:"yanked"`
	License    *string             `json:"license"`
	ReadmePath *string             `json:"readme_path"`
	Links      VersionLinks        `json:"links"`

	AuthorNames  []string     `json:"author_names"`
	Dependencies []Dependency `json:"dependencies"`
}

// NewFullVersion merges a version with its authors and dependencies.
func NewFullVersion(v Version, authors Authors, deps []Dependency) FullVersion {
	return FullVersion{
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
		DLPath:       v.DLPath,
		Downloads:    v.Downloads,
		Features:     v.Features,
		ID:           v.ID,
		Num:          v.Num,
		Yanked:       v.Yanked,
		License:      v.License,
		ReadmePath:   v.ReadmePath,
		Links:        v.Links,
		AuthorNames:  authors.Names,
		Dependencies: deps,
	}
}

// FullCrate is the composite view of a crate.
type FullCrate struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description"`
	License        *string   `json:"license"`
	Documentation  *string   `json:"documentation"`
	Homepage       *string   `json:"homepage"`
	Repository     *string   `json:"repository"`
	TotalDownloads uint64    `json:"total_downloads"`
	MaxVersion     string    `json:"max_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Categories          []Category          `json:"categories"`
	Keywords            []Keyword           `json:"keywords"`
	Downloads           CrateDownloads      `json:"downloads"`
	Owners              []User              `json:"owners"`
	ReverseDependencies ReverseDependencies `json:"reverse_dependencies"`
	Versions            []FullVersion       `json:"versions"`
}
