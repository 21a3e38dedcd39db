package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiolists/models"
	"aiolists/services/mdblist"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		raw  string
		want ID
	}{
		{"aiolists-12345-L", MDBListID{ListID: "12345", Kind: mdblist.KindUser}},
		{"aiolists-987-E", MDBListID{ListID: "987", Kind: mdblist.KindExternal}},
		{"aiolists-my-list-slug-L", MDBListID{ListID: "my-list-slug", Kind: mdblist.KindUser}},
		{"aiolists-watchlist-W", MDBListID{ListID: "watchlist", Kind: mdblist.KindWatchlist}},
		{"trakt_favourite-films", TraktListID{Slug: "favourite-films"}},
		{"trakt_watchlist", TraktWatchlistID{}},
		{"trakt_recommendations_movies", TraktRecommendationsID{Type: models.ContentTypeMovie}},
		{"trakt_trending_shows", TraktTrendingID{Type: models.ContentTypeSeries}},
		{"trakt_popular_movies", TraktPopularID{Type: models.ContentTypeMovie}},
		{"traktpublic_someone_best-of-2020", TraktPublicID{User: "someone", Slug: "best-of-2020"}},
		{"tmdb_watchlist", TMDBWatchlistID{}},
		{"tmdb_favorites", TMDBFavoritesID{}},
		{"tmdb_list_8241", TMDBListID{ListID: "8241"}},
		{"random_mdblist_catalog", DiscoveryID{}},
		{"aiolists_search_movies", SearchID{Scope: SearchMovies}},
		{"aiolists_search_series", SearchID{Scope: SearchSeries}},
		{"aiolists_merged_search", SearchID{Scope: SearchMerged}},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := Parse(tc.raw, nil)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.raw, got.String())
		})
	}
}

func TestParseRejectsUnknownIDs(t *testing.T) {
	for _, raw := range []string{"", "aiolists-", "aiolists-123-X", "trakt_", "traktpublic_nouser", "tmdb_list_", "kitsu_123"} {
		_, ok := Parse(raw, nil)
		assert.False(t, ok, "expected %q to be rejected", raw)
	}
}

func TestParseImportedListsTakePrecedence(t *testing.T) {
	cfg := &models.UserConfig{ImportedAddons: map[string]models.ImportedAddon{
		"mdblisturl_abc": {ID: "mdblisturl_abc", IsMDBListURLImport: true, MDBListID: "4411"},
		"external_addon": {ID: "external_addon"},
	}}

	id, ok := Parse("mdblisturl_abc", cfg)
	require.True(t, ok)
	assert.Equal(t, ImportedListID{Key: "mdblisturl_abc"}, id)
	assert.Equal(t, "4411", SortKey(id, cfg))

	_, ok = Parse("external_addon", cfg)
	assert.False(t, ok, "imported add-on catalogs are not served")
}

func TestSortKey(t *testing.T) {
	id, _ := Parse("aiolists-12345-L", nil)
	assert.Equal(t, "12345", SortKey(id, nil))

	id, _ = Parse("aiolists-watchlist-W", nil)
	assert.Equal(t, "watchlist", SortKey(id, nil))

	id, _ = Parse("trakt_watchlist", nil)
	assert.Equal(t, "trakt_watchlist", SortKey(id, nil))

	id, _ = Parse("random_mdblist_catalog", nil)
	assert.Equal(t, "random_mdblist_catalog", SortKey(id, nil))
}

func TestIDForSource(t *testing.T) {
	cases := []struct {
		src  models.ListSource
		want string
	}{
		{models.ListSource{Kind: models.SourceListHost, RawID: "123", ListKind: "L"}, "aiolists-123-L"},
		{models.ListSource{Kind: models.SourceListHost, RawID: "77", ListKind: "E"}, "aiolists-77-E"},
		{models.ListSource{Kind: models.SourceListHost, RawID: "watchlist", ListKind: "W"}, "aiolists-watchlist-W"},
		{models.ListSource{Kind: models.SourceTracking, RawID: "faves", ListKind: "list"}, "trakt_faves"},
		{models.ListSource{Kind: models.SourceTracking, ListKind: "watchlist"}, "trakt_watchlist"},
		{models.ListSource{Kind: models.SourceTracking, RawID: "shows", ListKind: "trending"}, "trakt_trending_shows"},
		{models.ListSource{Kind: models.SourceAccountMeta, RawID: "watchlist", ListKind: "watchlist"}, "tmdb_watchlist"},
		{models.ListSource{Kind: models.SourceAccountMeta, RawID: "8241", ListKind: "list"}, "tmdb_list_8241"},
		{models.ListSource{Kind: models.SourceImportedPublic, RawID: "mdblisturl_abc"}, "mdblisturl_abc"},
	}
	for _, tc := range cases {
		id, ok := IDForSource(tc.src)
		require.True(t, ok, tc.want)
		assert.Equal(t, tc.want, id.String())
	}

	_, ok := IDForSource(models.ListSource{Kind: models.SourceTracking, ListKind: "recommendations"})
	assert.False(t, ok)
}

func TestIsWatchlist(t *testing.T) {
	assert.True(t, IsWatchlist("aiolists-watchlist-W"))
	assert.True(t, IsWatchlist("trakt_watchlist"))
	assert.True(t, IsWatchlist("tmdb_watchlist"))
	assert.False(t, IsWatchlist("aiolists-123-L"))
	assert.False(t, IsWatchlist("trakt_trending_movies"))
}
