package manifest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiolists/models"
	"aiolists/services/tmdb"
	"aiolists/services/trakt"
	"aiolists/utils/genre"
)

type fakeMDBList struct {
	calls atomic.Int32
	lists []models.ListSource
}

func (f *fakeMDBList) Lists(context.Context, string) ([]models.ListSource, error) {
	f.calls.Add(1)
	return f.lists, nil
}

type fakeTrakt struct {
	lists  []models.ListSource
	public map[string]*trakt.PublicListInfo
}

func (f *fakeTrakt) Lists(context.Context, string) ([]models.ListSource, error) {
	return f.lists, nil
}

func (f *fakeTrakt) PublicList(_ context.Context, user, slug string) (*trakt.PublicListInfo, error) {
	if info, ok := f.public[user+"/"+slug]; ok {
		return info, nil
	}
	return nil, trakt.ErrNotFound
}

type fakeTMDB struct {
	lists  []models.ListSource
	genres []string
	err    error
}

func (f *fakeTMDB) Configured(bearer string) bool { return bearer != "" }

func (f *fakeTMDB) Lists(context.Context, tmdb.Account) ([]models.ListSource, error) {
	return f.lists, nil
}

func (f *fakeTMDB) Genres(context.Context, string, string) ([]string, error) {
	return f.genres, f.err
}

type fakeTokens struct{}

func (fakeTokens) Token(_ context.Context, cfg *models.UserConfig) (string, error) {
	return cfg.TraktAccessToken, nil
}

type fakeSearch struct{}

func (fakeSearch) SearchSources(cfg *models.UserConfig) []string { return cfg.SearchSources }

func (fakeSearch) MergedSearchAvailable(cfg *models.UserConfig) bool {
	return len(cfg.MergedSearchSources) > 0 && cfg.TMDBBearerToken != ""
}

func mdbList(id, name string, movies, shows bool) models.ListSource {
	return models.ListSource{Kind: models.SourceListHost, RawID: id, DisplayName: name, ListKind: "L", HasMovies: movies, HasShows: shows}
}

type fixture struct {
	builder *Builder
	mdblist *fakeMDBList
	trakt   *fakeTrakt
	tmdb    *fakeTMDB
}

func newFixture() *fixture {
	f := &fixture{
		mdblist: &fakeMDBList{},
		trakt:   &fakeTrakt{public: map[string]*trakt.PublicListInfo{}},
		tmdb:    &fakeTMDB{},
	}
	f.builder = NewBuilder(Options{
		MDBList: f.mdblist,
		Trakt:   f.trakt,
		TMDB:    f.tmdb,
		Tokens:  fakeTokens{},
		Search:  fakeSearch{},
		Now:     func() time.Time { return time.UnixMilli(1700000000000) },
	})
	return f
}

func catalogsFor(m models.Manifest, id string) []models.CatalogDescriptor {
	var out []models.CatalogDescriptor
	for _, c := range m.Catalogs {
		if c.ID == id {
			out = append(out, c)
		}
	}
	return out
}

func TestManifestIdentity(t *testing.T) {
	f := newFixture()
	m := f.builder.Build(context.Background(), &models.UserConfig{})

	assert.Equal(t, AddonID, m.ID)
	assert.Equal(t, "1.2.7-1700000000000", m.Version)
	assert.Equal(t, []string{"catalog", "meta"}, m.Resources)
	assert.Equal(t, []string{"tt", "tmdb:"}, m.IDPrefixes)
	assert.Equal(t, []string{"movie", "series", "all"}, m.Types)
	assert.True(t, m.BehaviorHints.Configurable)
	assert.Empty(t, m.Catalogs)
}

func TestMixedListMergeToggle(t *testing.T) {
	f := newFixture()
	f.mdblist.lists = []models.ListSource{mdbList("1", "Mixed", true, true)}

	m := f.builder.Build(context.Background(), &models.UserConfig{APIKey: "k"})
	merged := catalogsFor(m, "aiolists-1-L")
	require.Len(t, merged, 1)
	assert.Equal(t, "all", merged[0].Type)
	assert.Equal(t, "Mixed", merged[0].Name)

	m = f.builder.Build(context.Background(), &models.UserConfig{APIKey: "k", MergedLists: map[string]bool{"aiolists-1-L": false}})
	split := catalogsFor(m, "aiolists-1-L")
	require.Len(t, split, 2)
	assert.Equal(t, "movie", split[0].Type)
	assert.Equal(t, "series", split[1].Type)

	m = f.builder.Build(context.Background(), &models.UserConfig{APIKey: "k", CustomMediaTypeNames: map[string]string{"aiolists-1-L": "Kids"}})
	custom := catalogsFor(m, "aiolists-1-L")
	require.Len(t, custom, 1)
	assert.Equal(t, "Kids", custom[0].Type)
	assert.Contains(t, m.Types, "Kids")
}

func TestSingleTypeAndEmptyLists(t *testing.T) {
	f := newFixture()
	f.mdblist.lists = []models.ListSource{
		mdbList("1", "Films", true, false),
		mdbList("2", "Shows", false, true),
		mdbList("3", "Empty", false, false),
		mdbList("4", "Empty but typed", false, false),
		mdbList("5", "Films as docs", true, false),
	}
	cfg := &models.UserConfig{APIKey: "k", CustomMediaTypeNames: map[string]string{
		"aiolists-4-L": "Docs",
		"aiolists-5-L": "Docs",
	}}
	m := f.builder.Build(context.Background(), cfg)

	require.Len(t, catalogsFor(m, "aiolists-1-L"), 1)
	assert.Equal(t, "movie", catalogsFor(m, "aiolists-1-L")[0].Type)
	assert.Equal(t, "series", catalogsFor(m, "aiolists-2-L")[0].Type)
	assert.Empty(t, catalogsFor(m, "aiolists-3-L"))
	assert.Equal(t, "Docs", catalogsFor(m, "aiolists-4-L")[0].Type)
	assert.Equal(t, "Docs", catalogsFor(m, "aiolists-5-L")[0].Type)
}

func TestHiddenAndRemovedListsNeverAppear(t *testing.T) {
	f := newFixture()
	f.mdblist.lists = []models.ListSource{
		mdbList("1", "Kept", true, true),
		mdbList("2", "Hidden", true, true),
		mdbList("3", "Removed", true, false),
	}
	cfg := &models.UserConfig{
		APIKey:       "k",
		HiddenLists:  []string{"aiolists-2-L"},
		RemovedLists: []string{"aiolists-3-L"},
		MergedLists:  map[string]bool{"aiolists-2-L": false},
		ImportedAddons: map[string]models.ImportedAddon{
			"imp": {ID: "imp", IsMDBListURLImport: true, HasMovies: true},
		},
	}
	cfg.HiddenLists = append(cfg.HiddenLists, "imp")

	m := f.builder.Build(context.Background(), cfg)
	var ids []string
	for _, c := range m.Catalogs {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"aiolists-1-L"}, ids)
}

func TestListOrderAndNames(t *testing.T) {
	f := newFixture()
	f.mdblist.lists = []models.ListSource{
		mdbList("1", "One", true, false),
		mdbList("2", "Two", true, false),
		mdbList("3", "Three", true, false),
		mdbList("4", "Four", true, false),
	}
	cfg := &models.UserConfig{
		APIKey:          "k",
		ListOrder:       []string{"aiolists-3-L", "aiolists-1-L"},
		CustomListNames: map[string]string{"aiolists-2-L": "Renamed"},
	}
	m := f.builder.Build(context.Background(), cfg)

	var names []string
	for _, c := range m.Catalogs {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Three", "One", "Renamed", "Four"}, names)
}

func TestProvidersAndImportedLists(t *testing.T) {
	f := newFixture()
	f.trakt.lists = append([]models.ListSource{{
		Kind: models.SourceTracking, RawID: "faves", DisplayName: "Faves", ListKind: "list", HasMovies: true, HasShows: true,
	}}, trakt.SpecialLists()...)
	f.trakt.public["bob/picks"] = &trakt.PublicListInfo{User: "bob", Slug: "picks", Name: "Bob's Picks", HasShows: true}
	f.tmdb.lists = []models.ListSource{
		{Kind: models.SourceAccountMeta, RawID: "watchlist", DisplayName: "TMDB Watchlist", ListKind: "watchlist", HasMovies: true},
	}

	cfg := &models.UserConfig{
		TraktAccessToken: "tok",
		TMDBBearerToken:  "b",
		TMDBSessionID:    "s",
		TMDBAccountID:    "1",
		ImportedAddons: map[string]models.ImportedAddon{
			"traktpub": {ID: "traktpub", IsTraktPublicList: true, TraktUser: "bob", TraktSlug: "picks"},
		},
	}
	m := f.builder.Build(context.Background(), cfg)

	assert.Len(t, catalogsFor(m, "trakt_faves"), 1)
	assert.Equal(t, "movie", catalogsFor(m, "trakt_trending_movies")[0].Type)
	assert.Equal(t, "series", catalogsFor(m, "trakt_popular_shows")[0].Type)
	assert.Equal(t, "all", catalogsFor(m, "trakt_watchlist")[0].Type)
	assert.Equal(t, "movie", catalogsFor(m, "tmdb_watchlist")[0].Type)

	imported := catalogsFor(m, "traktpub")
	require.Len(t, imported, 1)
	assert.Equal(t, "series", imported[0].Type)
	assert.Equal(t, "Bob's Picks", imported[0].Name)
}

func TestPseudoCatalogs(t *testing.T) {
	f := newFixture()
	f.mdblist.lists = []models.ListSource{mdbList("1", "One", true, false)}
	cfg := &models.UserConfig{
		EnableRandomListFeature: true,
		RandomMDBListUsernames:  []string{"curator"},
		SearchSources:           []string{"cinemeta"},
		MergedSearchSources:     []string{"tmdb"},
		TMDBBearerToken:         "b",
	}
	m := f.builder.Build(context.Background(), cfg)

	require.Len(t, m.Catalogs, 4)
	assert.Equal(t, "random_mdblist_catalog", m.Catalogs[0].ID)
	assert.Equal(t, "Discovery (Public)", m.Catalogs[0].Name)
	assert.Equal(t, "aiolists_search_movies", m.Catalogs[1].ID)
	assert.Equal(t, []models.CatalogExtra{{Name: "search", IsRequired: true}}, m.Catalogs[1].Extra)
	assert.Equal(t, "aiolists_search_series", m.Catalogs[2].ID)
	assert.Equal(t, "aiolists_merged_search", m.Catalogs[3].ID)
	assert.Equal(t, "search", m.Catalogs[3].Type)
	assert.Contains(t, m.Types, "search")

	cfg.APIKey = "k"
	cfg.ListOrder = []string{"random_mdblist_catalog", "aiolists-1-L"}
	m = f.builder.Build(context.Background(), cfg)
	require.Len(t, m.Catalogs, 5)
	assert.Equal(t, "aiolists-1-L", m.Catalogs[0].ID)
	assert.Equal(t, "random_mdblist_catalog", m.Catalogs[1].ID, "discovery follows the lists")
	assert.Equal(t, "Discovery", m.Catalogs[1].Name)
	assert.Equal(t, "aiolists_search_movies", m.Catalogs[2].ID)
}

func TestGenreExtras(t *testing.T) {
	f := newFixture()
	f.mdblist.lists = []models.ListSource{mdbList("1", "One", true, false)}
	f.tmdb.genres = []string{genre.All, "Action", "Drame"}

	m := f.builder.Build(context.Background(), &models.UserConfig{APIKey: "k"})
	extra := m.Catalogs[0].Extra
	require.Len(t, extra, 2)
	assert.Equal(t, "genre", extra[1].Name)
	assert.Equal(t, genre.Static, extra[1].Options)
	assert.False(t, extra[1].IsRequired)
	assert.Equal(t, []string{"skip", "genre"}, m.Catalogs[0].ExtraSupported)

	m = f.builder.Build(context.Background(), &models.UserConfig{APIKey: "k", TMDBLanguage: "fr-FR", TMDBBearerToken: "b"})
	assert.Equal(t, []string{genre.All, "Action", "Drame"}, m.Catalogs[0].Extra[1].Options)

	f.tmdb.err = errors.New("down")
	m = f.builder.Build(context.Background(), &models.UserConfig{APIKey: "k", MetadataSource: models.MetadataSourceTMDB, TMDBBearerToken: "b"})
	assert.Equal(t, genre.Static, m.Catalogs[0].Extra[1].Options)

	m = f.builder.Build(context.Background(), &models.UserConfig{APIKey: "k", DisableGenreFilter: true})
	assert.Equal(t, []string{"skip"}, m.Catalogs[0].ExtraSupported)
}

func TestManifestCacheKeyedByShape(t *testing.T) {
	f := newFixture()
	f.mdblist.lists = []models.ListSource{mdbList("1", "One", true, false)}
	ctx := context.Background()

	f.builder.Build(ctx, &models.UserConfig{APIKey: "first"})
	f.builder.Build(ctx, &models.UserConfig{APIKey: "second"})
	assert.Equal(t, int32(1), f.mdblist.calls.Load(), "credential values do not change the shape")

	f.builder.Build(ctx, &models.UserConfig{APIKey: "first", HiddenLists: []string{"x"}})
	assert.Equal(t, int32(2), f.mdblist.calls.Load())

	f.builder.Invalidate()
	f.builder.Build(ctx, &models.UserConfig{APIKey: "first"})
	assert.Equal(t, int32(3), f.mdblist.calls.Load())
}

func TestShapeKeyOmitsCredentials(t *testing.T) {
	key := ShapeKey(&models.UserConfig{APIKey: "secret-key", TraktAccessToken: "secret-token", TMDBBearerToken: "secret-bearer"})
	assert.NotContains(t, key, "secret")
	assert.Contains(t, key, `"apiKey":true`)
	assert.Equal(t, ShapeKey(&models.UserConfig{APIKey: "other"}), ShapeKey(&models.UserConfig{APIKey: "another"}))
}
