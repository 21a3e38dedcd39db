package catalog

import (
	"regexp"
	"strings"

	"aiolists/models"
	"aiolists/services/mdblist"
	"aiolists/services/tmdb"
	"aiolists/services/trakt"
)

// ID is a parsed catalog id. The set of implementations is closed; every
// consumer switches over the concrete types below.
type ID interface {
	String() string
	catalogID()
}

// MDBListID is a list-host list: a personal list (L), an external list (E)
// or the unified watchlist (W).
type MDBListID struct {
	ListID string
	Kind   mdblist.ListKind
}

// TraktListID is one of the user's own Trakt lists.
type TraktListID struct{ Slug string }

type TraktWatchlistID struct{}

// TraktRecommendationsID, TraktTrendingID and TraktPopularID carry the fixed
// content type of the list.
type TraktRecommendationsID struct{ Type models.ContentType }
type TraktTrendingID struct{ Type models.ContentType }
type TraktPopularID struct{ Type models.ContentType }

// TraktPublicID is another user's public Trakt list.
type TraktPublicID struct{ User, Slug string }

type TMDBWatchlistID struct{}
type TMDBFavoritesID struct{}

// TMDBListID is a custom TMDB list owned by the account.
type TMDBListID struct{ ListID string }

// ImportedListID references an entry of UserConfig.ImportedAddons.
type ImportedListID struct{ Key string }

// DiscoveryID is the random public MDBList catalog.
type DiscoveryID struct{}

// SearchScope selects one of the search pseudo-catalogs.
type SearchScope int

const (
	SearchMovies SearchScope = iota
	SearchSeries
	SearchMerged
)

type SearchID struct{ Scope SearchScope }

const (
	mdblistPrefix     = "aiolists-"
	mdblistWatchlist  = "aiolists-watchlist-W"
	traktPrefix       = "trakt_"
	traktPublicPrefix = "traktpublic_"
	tmdbListPrefix    = "tmdb_list_"

	DiscoveryCatalogID    = "random_mdblist_catalog"
	SearchMoviesCatalogID = "aiolists_search_movies"
	SearchSeriesCatalogID = "aiolists_search_series"
	MergedSearchCatalogID = "aiolists_merged_search"
)

var mdblistIDPattern = regexp.MustCompile(`^aiolists-([^-]+(?:-[^-]+)*)-([ELW])$`)

func (id MDBListID) String() string {
	if id.Kind == mdblist.KindWatchlist {
		return mdblistWatchlist
	}
	kind := id.Kind
	if kind == "" {
		kind = mdblist.KindUser
	}
	return mdblistPrefix + id.ListID + "-" + string(kind)
}

func (id TraktListID) String() string { return traktPrefix + id.Slug }
func (TraktWatchlistID) String() string { return "trakt_watchlist" }
func (id TraktRecommendationsID) String() string {
	return "trakt_recommendations_" + mediaSegment(id.Type)
}
func (id TraktTrendingID) String() string { return "trakt_trending_" + mediaSegment(id.Type) }
func (id TraktPopularID) String() string { return "trakt_popular_" + mediaSegment(id.Type) }
func (id TraktPublicID) String() string {
	return traktPublicPrefix + id.User + "_" + id.Slug
}
func (TMDBWatchlistID) String() string { return "tmdb_watchlist" }
func (TMDBFavoritesID) String() string { return "tmdb_favorites" }
func (id TMDBListID) String() string { return tmdbListPrefix + id.ListID }
func (id ImportedListID) String() string { return id.Key }
func (DiscoveryID) String() string { return DiscoveryCatalogID }

func (id SearchID) String() string {
	switch id.Scope {
	case SearchSeries:
		return SearchSeriesCatalogID
	case SearchMerged:
		return MergedSearchCatalogID
	default:
		return SearchMoviesCatalogID
	}
}

func (MDBListID) catalogID() {}
func (TraktListID) catalogID() {}
func (TraktWatchlistID) catalogID() {}
func (TraktRecommendationsID) catalogID() {}
func (TraktTrendingID) catalogID() {}
func (TraktPopularID) catalogID() {}
func (TraktPublicID) catalogID() {}
func (TMDBWatchlistID) catalogID() {}
func (TMDBFavoritesID) catalogID() {}
func (TMDBListID) catalogID() {}
func (ImportedListID) catalogID() {}
func (DiscoveryID) catalogID() {}
func (SearchID) catalogID() {}

func mediaSegment(ct models.ContentType) string {
	if ct == models.ContentTypeSeries {
		return "shows"
	}
	return "movies"
}

func parseMedia(s string) (models.ContentType, bool) {
	switch s {
	case "movies":
		return models.ContentTypeMovie, true
	case "shows":
		return models.ContentTypeSeries, true
	}
	return "", false
}

// Parse classifies a raw catalog id. Imported lists are matched against
// cfg first so that their keys never collide with the structural forms.
func Parse(raw string, cfg *models.UserConfig) (ID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if cfg != nil {
		if addon, ok := cfg.ImportedAddons[raw]; ok && (addon.IsMDBListURLImport || addon.IsTraktPublicList) {
			return ImportedListID{Key: raw}, true
		}
	}

	switch raw {
	case DiscoveryCatalogID:
		return DiscoveryID{}, true
	case SearchMoviesCatalogID:
		return SearchID{Scope: SearchMovies}, true
	case SearchSeriesCatalogID:
		return SearchID{Scope: SearchSeries}, true
	case MergedSearchCatalogID:
		return SearchID{Scope: SearchMerged}, true
	case "trakt_watchlist":
		return TraktWatchlistID{}, true
	case "tmdb_watchlist":
		return TMDBWatchlistID{}, true
	case "tmdb_favorites":
		return TMDBFavoritesID{}, true
	case mdblistWatchlist:
		return MDBListID{ListID: "watchlist", Kind: mdblist.KindWatchlist}, true
	}

	switch {
	case strings.HasPrefix(raw, traktPublicPrefix):
		user, slug, ok := strings.Cut(strings.TrimPrefix(raw, traktPublicPrefix), "_")
		if !ok || user == "" || slug == "" {
			return nil, false
		}
		return TraktPublicID{User: user, Slug: slug}, true
	case strings.HasPrefix(raw, traktPrefix):
		return parseTrakt(strings.TrimPrefix(raw, traktPrefix))
	case strings.HasPrefix(raw, tmdbListPrefix):
		listID := strings.TrimPrefix(raw, tmdbListPrefix)
		if listID == "" {
			return nil, false
		}
		return TMDBListID{ListID: listID}, true
	case strings.HasPrefix(raw, mdblistPrefix):
		m := mdblistIDPattern.FindStringSubmatch(raw)
		if m == nil {
			return nil, false
		}
		kind, _ := mdblist.ParseListKind(m[2])
		return MDBListID{ListID: m[1], Kind: kind}, true
	}
	return nil, false
}

func parseTrakt(rest string) (ID, bool) {
	for _, family := range []string{"recommendations", "trending", "popular"} {
		media, ok := strings.CutPrefix(rest, family+"_")
		if !ok {
			continue
		}
		ct, ok := parseMedia(media)
		if !ok {
			break
		}
		switch family {
		case "recommendations":
			return TraktRecommendationsID{Type: ct}, true
		case "trending":
			return TraktTrendingID{Type: ct}, true
		default:
			return TraktPopularID{Type: ct}, true
		}
	}
	if rest == "" {
		return nil, false
	}
	return TraktListID{Slug: rest}, true
}

// SortKey returns the list id that sort preferences are stored under.
func SortKey(id ID, cfg *models.UserConfig) string {
	switch v := id.(type) {
	case MDBListID:
		return v.ListID
	case ImportedListID:
		if cfg != nil {
			if addon, ok := cfg.ImportedAddons[v.Key]; ok {
				if addon.MDBListID != "" {
					return addon.MDBListID
				}
				if addon.ID != "" {
					return addon.ID
				}
			}
		}
		return v.Key
	default:
		return id.String()
	}
}

// IDForSource builds the catalog id of a discovered list. ok is false for
// sources whose list family has no catalog form.
func IDForSource(src models.ListSource) (ID, bool) {
	switch src.Kind {
	case models.SourceListHost:
		kind, ok := mdblist.ParseListKind(src.ListKind)
		if !ok {
			kind = mdblist.KindUser
		}
		if kind == mdblist.KindWatchlist {
			return MDBListID{ListID: "watchlist", Kind: kind}, true
		}
		if src.RawID == "" {
			return nil, false
		}
		return MDBListID{ListID: src.RawID, Kind: kind}, true
	case models.SourceTracking:
		ct, _ := parseMedia(src.RawID)
		switch src.ListKind {
		case trakt.KindUserList.String():
			if src.RawID == "" {
				return nil, false
			}
			return TraktListID{Slug: src.RawID}, true
		case trakt.KindWatchlist.String():
			return TraktWatchlistID{}, true
		case trakt.KindRecommendations.String():
			return TraktRecommendationsID{Type: ct}, ct != ""
		case trakt.KindTrending.String():
			return TraktTrendingID{Type: ct}, ct != ""
		case trakt.KindPopular.String():
			return TraktPopularID{Type: ct}, ct != ""
		case trakt.KindPublicList.String():
			return TraktPublicID{User: src.Owner, Slug: src.Slug}, src.Owner != "" && src.Slug != ""
		}
	case models.SourceAccountMeta:
		switch tmdb.ListKind(src.ListKind) {
		case tmdb.ListWatchlist:
			return TMDBWatchlistID{}, true
		case tmdb.ListFavorites:
			return TMDBFavoritesID{}, true
		case tmdb.ListCustom:
			return TMDBListID{ListID: src.RawID}, src.RawID != ""
		}
	case models.SourceImportedPublic:
		return ImportedListID{Key: src.RawID}, src.RawID != ""
	}
	return nil, false
}

// IsWatchlist reports whether a catalog id names a watchlist, whose content
// changes too often to be cached by clients.
func IsWatchlist(raw string) bool {
	return strings.HasSuffix(raw, "watchlist") ||
		strings.HasSuffix(raw, "watchlist-W") ||
		strings.Contains(raw, "trakt_watchlist")
}
