package models

import (
	"strings"
	"time"
)

type MetadataSource string

const (
	MetadataSourceCinemeta MetadataSource = "cinemeta"
	MetadataSourceTMDB     MetadataSource = "tmdb"
	MetadataSourceNone     MetadataSource = "none"
)

// PrimaryFailurePolicy controls what happens to an item whose primary
// metadata lookup failed.
type PrimaryFailurePolicy string

const (
	// OnPrimaryFailureLeave returns the item with its list fields only.
	OnPrimaryFailureLeave PrimaryFailurePolicy = "leaveUnenriched"
	// OnPrimaryFailureFallback retries the item against Cinemeta.
	OnPrimaryFailureFallback PrimaryFailurePolicy = "fallback"
)

type SortPreference struct {
	Sort  string `json:"sort,omitempty"`
	Order string `json:"order,omitempty"`
}

type ListMetadata struct {
	ListType string `json:"listType,omitempty"`
}

// ImportedAddon is a list imported by URL. Only MDBList and Trakt public lists
// are understood; other imported add-on catalogs are ignored.
type ImportedAddon struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	IsMDBListURLImport bool   `json:"isMDBListUrlImport,omitempty"`
	IsTraktPublicList  bool   `json:"isTraktPublicList,omitempty"`
	MDBListID          string `json:"mdblistId,omitempty"`
	MDBListUsername    string `json:"mdblistUsername,omitempty"`
	MDBListSlug        string `json:"mdblistSlug,omitempty"`
	TraktUser          string `json:"traktUser,omitempty"`
	TraktSlug          string `json:"traktSlug,omitempty"`
	// URL is the list page the import was created from. Owner and slug are
	// parsed from it when the explicit fields are missing.
	URL                string `json:"url,omitempty"`
	HasMovies          bool   `json:"hasMovies,omitempty"`
	HasShows           bool   `json:"hasShows,omitempty"`
}

// UserConfig is the per-install configuration carried in the add-on URL.
// It is read-only to everything below the handlers.
type UserConfig struct {
	APIKey string `json:"apiKey,omitempty"`

	TraktAccessToken  string `json:"traktAccessToken,omitempty"`
	TraktRefreshToken string `json:"traktRefreshToken,omitempty"`
	TraktExpiresAt    int64  `json:"traktExpiresAt,omitempty"` // unix millis

	TMDBBearerToken string `json:"tmdbBearerToken,omitempty"`
	TMDBSessionID   string `json:"tmdbSessionId,omitempty"`
	TMDBAccountID   string `json:"tmdbAccountId,omitempty"`
	TMDBLanguage    string `json:"tmdbLanguage,omitempty"`

	RPDBAPIKey       string               `json:"rpdbApiKey,omitempty"`
	MetadataSource   MetadataSource       `json:"metadataSource,omitempty"`
	OnPrimaryFailure PrimaryFailurePolicy `json:"onPrimaryFailure,omitempty"`

	ListOrder            []string                  `json:"listOrder,omitempty"`
	HiddenLists          []string                  `json:"hiddenLists,omitempty"`
	RemovedLists         []string                  `json:"removedLists,omitempty"`
	CustomListNames      map[string]string         `json:"customListNames,omitempty"`
	CustomMediaTypeNames map[string]string         `json:"customMediaTypeNames,omitempty"`
	MergedLists          map[string]bool           `json:"mergedLists,omitempty"`
	SortPreferences      map[string]SortPreference `json:"sortPreferences,omitempty"`
	ListsMetadata        map[string]ListMetadata   `json:"listsMetadata,omitempty"`
	ImportedAddons       map[string]ImportedAddon  `json:"importedAddons,omitempty"`

	EnableRandomListFeature bool     `json:"enableRandomListFeature,omitempty"`
	RandomMDBListUsernames  []string `json:"randomMDBListUsernames,omitempty"`
	DisableGenreFilter      bool     `json:"disableGenreFilter,omitempty"`

	SearchSources       []string `json:"searchSources,omitempty"`
	MergedSearchSources []string `json:"mergedSearchSources,omitempty"`
}

// Language returns the configured TMDB language or en-US.
func (c *UserConfig) Language() string {
	if c == nil || strings.TrimSpace(c.TMDBLanguage) == "" {
		return "en-US"
	}
	return strings.TrimSpace(c.TMDBLanguage)
}

// Source returns the primary metadata source, defaulting to Cinemeta.
func (c *UserConfig) Source() MetadataSource {
	if c == nil || c.MetadataSource == "" {
		return MetadataSourceCinemeta
	}
	return c.MetadataSource
}

// FailurePolicy returns the primary failure policy, defaulting to leaving
// items unenriched.
func (c *UserConfig) FailurePolicy() PrimaryFailurePolicy {
	if c == nil || c.OnPrimaryFailure != OnPrimaryFailureFallback {
		return OnPrimaryFailureLeave
	}
	return OnPrimaryFailureFallback
}

// IsMerged reports the merge toggle for a catalog; lists are merged unless
// explicitly switched off.
func (c *UserConfig) IsMerged(catalogID string) bool {
	if c == nil || c.MergedLists == nil {
		return true
	}
	merged, ok := c.MergedLists[catalogID]
	return !ok || merged
}

// SortFor returns the stored sort preference for a list, falling back to the
// provided defaults for any empty field.
func (c *UserConfig) SortFor(key, defSort, defOrder string) SortPreference {
	pref := SortPreference{Sort: defSort, Order: defOrder}
	if c == nil || c.SortPreferences == nil {
		return pref
	}
	if stored, ok := c.SortPreferences[key]; ok {
		if stored.Sort != "" {
			pref.Sort = stored.Sort
		}
		if stored.Order != "" {
			pref.Order = stored.Order
		}
	}
	return pref
}

// TraktTokenExpired reports whether the stored Trakt access token has expired.
func (c *UserConfig) TraktTokenExpired(now time.Time) bool {
	if c == nil || c.TraktExpiresAt == 0 {
		return false
	}
	return !now.Before(time.UnixMilli(c.TraktExpiresAt))
}

// HasTMDBAccount reports whether a TMDB session is configured.
func (c *UserConfig) HasTMDBAccount() bool {
	return c != nil && c.TMDBSessionID != "" && c.TMDBAccountID != ""
}
