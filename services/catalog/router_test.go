package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiolists/models"
	"aiolists/services/mdblist"
	"aiolists/services/tmdb"
	"aiolists/services/trakt"
)

type fakeListHost struct {
	mu       sync.Mutex
	requests []mdblist.Request
	lists    map[string][]mdblist.PublicList
	result   *models.ContentResult
}

func (f *fakeListHost) FetchItems(_ context.Context, req mdblist.Request) *models.ContentResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.result != nil {
		return f.result
	}
	return models.NewContentResult(nil)
}

func (f *fakeListHost) ListsForUser(_ context.Context, _ string, username string) ([]mdblist.PublicList, error) {
	return f.lists[username], nil
}

type fakeTracker struct {
	mu       sync.Mutex
	requests []trakt.Request
	search   []models.CanonicalItem
}

func (f *fakeTracker) FetchItems(_ context.Context, req trakt.Request) *models.ContentResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if !isPublicTraktKind(req.Kind) && req.AccessToken == "" {
		return nil
	}
	return models.NewContentResult([]models.CanonicalItem{{ID: "tt0111161", IMDBID: "tt0111161", Type: models.ContentTypeMovie}})
}

func isPublicTraktKind(k trakt.Kind) bool {
	return k == trakt.KindTrending || k == trakt.KindPopular || k == trakt.KindPublicList
}

func (f *fakeTracker) Search(context.Context, string, models.TypeHint, int) ([]models.CanonicalItem, error) {
	return f.search, nil
}

type fakeAccountMeta struct {
	mu       sync.Mutex
	requests []tmdb.Request
	search   []models.CanonicalItem
	err      error
}

func (f *fakeAccountMeta) Configured(bearer string) bool { return bearer != "" }

func (f *fakeAccountMeta) FetchItems(_ context.Context, req tmdb.Request) *models.ContentResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return models.NewContentResult(nil)
}

func (f *fakeAccountMeta) Search(context.Context, string, string, models.TypeHint, string) ([]models.CanonicalItem, error) {
	return f.search, f.err
}

type fakeTokens struct{}

func (fakeTokens) Token(_ context.Context, cfg *models.UserConfig) (string, error) {
	if cfg.TraktAccessToken == "" {
		return "", trakt.ErrNoCredential
	}
	return cfg.TraktAccessToken, nil
}

type fakeCinemeta struct{ items []models.CanonicalItem }

func (f fakeCinemeta) SearchCinemeta(context.Context, string, models.TypeHint) ([]models.CanonicalItem, error) {
	return f.items, nil
}

type routerFixture struct {
	router   *Router
	mdblist  *fakeListHost
	trakt    *fakeTracker
	tmdb     *fakeAccountMeta
	cinemeta *fakeCinemeta
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		mdblist:  &fakeListHost{lists: map[string][]mdblist.PublicList{}},
		trakt:    &fakeTracker{},
		tmdb:     &fakeAccountMeta{},
		cinemeta: &fakeCinemeta{},
	}
	f.router = NewRouter(Options{
		MDBList:  f.mdblist,
		Trakt:    f.trakt,
		TMDB:     f.tmdb,
		Tokens:   fakeTokens{},
		Cinemeta: f.cinemeta,
		Intn:     func(int) int { return 0 },
	})
	return f
}

func TestResolveUnknownIDIsNil(t *testing.T) {
	f := newRouterFixture()
	assert.Nil(t, f.router.Resolve(context.Background(), &models.UserConfig{APIKey: "k"}, Request{CatalogID: "nope"}))
}

func TestResolveMDBListDefaultsAndPreferences(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	assert.Nil(t, f.router.Resolve(ctx, &models.UserConfig{}, Request{CatalogID: "aiolists-123-L"}), "private list without key")

	cfg := &models.UserConfig{APIKey: "key", MergedLists: map[string]bool{"aiolists-123-L": false}}
	res := f.router.Resolve(ctx, cfg, Request{CatalogID: "aiolists-123-L", Skip: 100, Genre: "Drama"})
	require.NotNil(t, res)
	require.Len(t, f.mdblist.requests, 1)
	req := f.mdblist.requests[0]
	assert.Equal(t, "123", req.ListID)
	assert.Equal(t, mdblist.KindUser, req.Kind)
	assert.Equal(t, "default", req.Sort)
	assert.Equal(t, "desc", req.Order)
	assert.Equal(t, 100, req.Skip)
	assert.Equal(t, "Drama", req.Genre)
	assert.False(t, req.Unified)

	cfg.SortPreferences = map[string]models.SortPreference{"123": {Sort: "imdbrating"}}
	f.router.Resolve(ctx, cfg, Request{CatalogID: "aiolists-123-L"})
	assert.Equal(t, "imdbrating", f.mdblist.requests[1].Sort)
	assert.Equal(t, "desc", f.mdblist.requests[1].Order)

	f.router.Resolve(ctx, cfg, Request{CatalogID: "aiolists-watchlist-W"})
	assert.Equal(t, mdblist.KindWatchlist, f.mdblist.requests[2].Kind)
	assert.True(t, f.mdblist.requests[2].Unified)
}

func TestResolveTraktRoutes(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	// trending is public
	res := f.router.Resolve(ctx, &models.UserConfig{}, Request{CatalogID: "trakt_trending_movies", TypeHint: models.TypeHintAll})
	require.NotNil(t, res)
	req := f.trakt.requests[0]
	assert.Equal(t, trakt.KindTrending, req.Kind)
	assert.Equal(t, models.ContentTypeMovie, req.MediaType)
	assert.Equal(t, models.TypeHintMovie, req.TypeHint)
	assert.Equal(t, "rank", req.Sort)
	assert.Equal(t, "asc", req.Order)

	assert.Nil(t, f.router.Resolve(ctx, &models.UserConfig{}, Request{CatalogID: "trakt_watchlist"}))

	cfg := &models.UserConfig{TraktAccessToken: "tok", TMDBBearerToken: "bearer"}
	require.NotNil(t, f.router.Resolve(ctx, cfg, Request{CatalogID: "trakt_my-list", TypeHint: models.TypeHintSeries}))
	req = f.trakt.requests[len(f.trakt.requests)-1]
	assert.Equal(t, trakt.KindUserList, req.Kind)
	assert.Equal(t, "my-list", req.Slug)
	assert.Equal(t, "tok", req.AccessToken)
	assert.Equal(t, models.TypeHintSeries, req.TypeHint)
	assert.Equal(t, "bearer", req.TMDBBearer)

	require.NotNil(t, f.router.Resolve(ctx, &models.UserConfig{}, Request{CatalogID: "traktpublic_someone_best"}))
	req = f.trakt.requests[len(f.trakt.requests)-1]
	assert.Equal(t, trakt.KindPublicList, req.Kind)
	assert.Equal(t, "someone", req.User)
	assert.Equal(t, "best", req.Slug)
}

func TestResolveTMDBNeedsSession(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	assert.Nil(t, f.router.Resolve(ctx, &models.UserConfig{TMDBBearerToken: "b"}, Request{CatalogID: "tmdb_watchlist"}))

	cfg := &models.UserConfig{TMDBBearerToken: "b", TMDBSessionID: "s", TMDBAccountID: "1", TMDBLanguage: "de-DE"}
	require.NotNil(t, f.router.Resolve(ctx, cfg, Request{CatalogID: "tmdb_list_42"}))
	req := f.tmdb.requests[0]
	assert.Equal(t, tmdb.ListCustom, req.Kind)
	assert.Equal(t, "42", req.ListID)
	assert.Equal(t, "created_at", req.Sort)
	assert.Equal(t, "desc", req.Order)
	assert.Equal(t, "de-DE", req.Account.Language)
}

func TestResolveImportedLists(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()
	cfg := &models.UserConfig{ImportedAddons: map[string]models.ImportedAddon{
		"mdbimport":   {ID: "mdbimport", IsMDBListURLImport: true, MDBListID: "555", URL: "https://mdblist.com/lists/owner/cool-list"},
		"traktimport": {ID: "traktimport", IsTraktPublicList: true, URL: "https://trakt.tv/users/bob/lists/faves"},
	}}

	// no key: public snapshot parsed from the URL
	require.NotNil(t, f.router.Resolve(ctx, cfg, Request{CatalogID: "mdbimport"}))
	req := f.mdblist.requests[0]
	assert.Empty(t, req.APIKey)
	assert.Equal(t, "owner", req.Owner)
	assert.Equal(t, "cool-list", req.Slug)
	assert.Equal(t, "rank", req.Sort)
	assert.Equal(t, "asc", req.Order)

	cfg.APIKey = "key"
	require.NotNil(t, f.router.Resolve(ctx, cfg, Request{CatalogID: "mdbimport"}))
	req = f.mdblist.requests[1]
	assert.Equal(t, "555", req.ListID)
	assert.True(t, req.URLImport)
	assert.Equal(t, "owner", req.Owner, "snapshot kept for the public fallback")
	assert.Equal(t, "cool-list", req.Slug)
	assert.Equal(t, "default", req.Sort)

	require.NotNil(t, f.router.Resolve(ctx, cfg, Request{CatalogID: "traktimport"}))
	treq := f.trakt.requests[0]
	assert.Equal(t, trakt.KindPublicList, treq.Kind)
	assert.Equal(t, "bob", treq.User)
	assert.Equal(t, "faves", treq.Slug)
}

func TestDiscovery(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	assert.Nil(t, f.router.Resolve(ctx, &models.UserConfig{APIKey: "k"}, Request{CatalogID: DiscoveryCatalogID}), "feature disabled")

	cfg := &models.UserConfig{APIKey: "k", EnableRandomListFeature: true, RandomMDBListUsernames: []string{"curator"}}
	f.mdblist.lists["curator"] = []mdblist.PublicList{{ID: "99", Slug: "hidden-gems", Kind: mdblist.KindUser}}
	require.NotNil(t, f.router.Resolve(ctx, cfg, Request{CatalogID: DiscoveryCatalogID}))
	req := f.mdblist.requests[0]
	assert.Equal(t, "hidden-gems", req.ListID)
	assert.Equal(t, "curator", req.Owner)
	assert.Equal(t, "default", req.Sort)

	cfg.APIKey = ""
	for i := 0; i < len(DefaultPublicLists)+1; i++ {
		require.NotNil(t, f.router.Resolve(ctx, cfg, Request{CatalogID: DiscoveryCatalogID}))
	}
	public := f.mdblist.requests[1:]
	for i, req := range public {
		want := DefaultPublicLists[i%len(DefaultPublicLists)]
		assert.Equal(t, want.Owner, req.Owner)
		assert.Equal(t, want.Slug, req.Slug)
		assert.Empty(t, req.APIKey)
	}
}

func TestSearchMergesAndRanks(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()
	f.cinemeta.items = []models.CanonicalItem{
		{ID: "tt0078748", IMDBID: "tt0078748", Type: models.ContentTypeMovie, Title: "Alien", Genres: []string{"Horror"}},
		{ID: "tt0090605", IMDBID: "tt0090605", Type: models.ContentTypeMovie, Title: "Aliens", Genres: []string{"Action"}},
	}
	f.trakt.search = []models.CanonicalItem{
		{ID: "tt0090605", IMDBID: "tt0090605", TMDBID: 679, Type: models.ContentTypeMovie, Title: "Aliens"},
		{ID: "tt5697572", IMDBID: "tt5697572", Type: models.ContentTypeMovie, Title: "Alien: Covenant", Genres: []string{"Horror"}},
		{ID: "tt0106179", IMDBID: "tt0106179", Type: models.ContentTypeSeries, Title: "The X-Files"},
	}

	cfg := &models.UserConfig{SearchSources: []string{"cinemeta", "trakt", "tmdb"}}
	res := f.router.Resolve(ctx, cfg, Request{CatalogID: SearchMoviesCatalogID, Search: "alien"})
	require.NotNil(t, res)
	var titles []string
	for _, it := range res.Items {
		titles = append(titles, it.Title)
	}
	assert.Equal(t, []string{"Alien", "Alien: Covenant", "Aliens"}, titles)
	assert.Equal(t, 1, res.Items[0].Rank)

	res = f.router.Search(ctx, cfg, SearchID{Scope: SearchMovies}, "alien", "Horror")
	require.Len(t, res.Items, 2)

	res = f.router.Search(ctx, cfg, SearchID{Scope: SearchMovies}, "a", "")
	assert.Empty(t, res.Items)

	assert.Equal(t, []string{"cinemeta", "trakt"}, f.router.SearchSources(cfg), "tmdb needs a token")
}

func TestMergedSearchNeedsTMDB(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()
	f.tmdb.search = []models.CanonicalItem{
		{ID: "tmdb:1396", TMDBID: 1396, Type: models.ContentTypeSeries, Title: "Breaking Bad"},
		{ID: "tmdb:11", TMDBID: 11, Type: models.ContentTypeMovie, Title: "Breaking Away"},
	}

	cfg := &models.UserConfig{MergedSearchSources: []string{"tmdb"}}
	assert.False(t, f.router.MergedSearchAvailable(cfg))
	assert.Empty(t, f.router.Search(ctx, cfg, SearchID{Scope: SearchMerged}, "breaking", "").Items)

	cfg.TMDBBearerToken = "b"
	res := f.router.Search(ctx, cfg, SearchID{Scope: SearchMerged}, "breaking bad", "")
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Breaking Bad", res.Items[0].Title)
	assert.True(t, res.HasMovies)
	assert.True(t, res.HasShows)

	f.tmdb.err = errors.New("boom")
	res = f.router.Search(ctx, cfg, SearchID{Scope: SearchMerged}, "breaking bad", "")
	require.NotNil(t, res)
	assert.Empty(t, res.Items)
}
