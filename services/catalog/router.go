package catalog

import (
	"context"
	"log"
	"math/rand/v2"
	"sync/atomic"

	"aiolists/models"
	"aiolists/services/mdblist"
	"aiolists/services/tmdb"
	"aiolists/services/trakt"
)

// ListHost is the MDBList adapter surface the router uses.
type ListHost interface {
	FetchItems(ctx context.Context, req mdblist.Request) *models.ContentResult
	ListsForUser(ctx context.Context, apiKey, username string) ([]mdblist.PublicList, error)
}

// Tracker is the Trakt adapter surface the router uses.
type Tracker interface {
	FetchItems(ctx context.Context, req trakt.Request) *models.ContentResult
	Search(ctx context.Context, query string, hint models.TypeHint, limit int) ([]models.CanonicalItem, error)
}

// AccountMeta is the TMDB adapter surface the router uses.
type AccountMeta interface {
	Configured(bearer string) bool
	FetchItems(ctx context.Context, req tmdb.Request) *models.ContentResult
	Search(ctx context.Context, bearer, query string, hint models.TypeHint, language string) ([]models.CanonicalItem, error)
}

// TokenProvider returns a valid Trakt access token for a configuration,
// refreshing it when needed.
type TokenProvider interface {
	Token(ctx context.Context, cfg *models.UserConfig) (string, error)
}

// FreeSearcher searches the free public metadata catalogs.
type FreeSearcher interface {
	SearchCinemeta(ctx context.Context, query string, hint models.TypeHint) ([]models.CanonicalItem, error)
}

// PublicList names a public MDBList snapshot.
type PublicList struct {
	Owner string
	Slug  string
}

// DefaultPublicLists back the discovery catalog when no MDBList key is
// configured.
var DefaultPublicLists = []PublicList{
	{Owner: "garycrawfordgc", Slug: "latest-tv-shows"},
	{Owner: "garycrawfordgc", Slug: "latest-movies-digital-release"},
	{Owner: "linaspurinis", Slug: "top-watched-movies-of-the-week"},
}

// Router turns catalog ids into adapter calls.
type Router struct {
	mdblist  ListHost
	trakt    Tracker
	tmdb     AccountMeta
	tokens   TokenProvider
	cinemeta FreeSearcher

	publicLists []PublicList
	rotation    atomic.Uint64
	intn        func(n int) int
}

type Options struct {
	MDBList  ListHost
	Trakt    Tracker
	TMDB     AccountMeta
	Tokens   TokenProvider
	Cinemeta FreeSearcher

	PublicLists []PublicList
	// Intn picks discovery candidates; defaults to math/rand/v2.
	Intn func(n int) int
}

func NewRouter(opts Options) *Router {
	r := &Router{
		mdblist:     opts.MDBList,
		trakt:       opts.Trakt,
		tmdb:        opts.TMDB,
		tokens:      opts.Tokens,
		cinemeta:    opts.Cinemeta,
		publicLists: opts.PublicLists,
		intn:        opts.Intn,
	}
	if len(r.publicLists) == 0 {
		r.publicLists = DefaultPublicLists
	}
	if r.intn == nil {
		r.intn = rand.IntN
	}
	return r
}

// Request is one catalog page request.
type Request struct {
	CatalogID string
	Skip      int
	Genre     string
	TypeHint  models.TypeHint
	// Search is the free-text query of search catalogs.
	Search string
}

// Resolve fetches one page of a catalog. It returns nil when the id is not
// recognised or a private source lacks its credential; an adapter that found
// nothing yields an empty, non-nil result.
func (r *Router) Resolve(ctx context.Context, cfg *models.UserConfig, req Request) *models.ContentResult {
	if cfg == nil {
		cfg = &models.UserConfig{}
	}
	id, ok := Parse(req.CatalogID, cfg)
	if !ok {
		log.Printf("[catalog] unrecognised catalog id %q", req.CatalogID)
		return nil
	}
	if req.TypeHint == "" {
		req.TypeHint = models.TypeHintAll
	}
	key := SortKey(id, cfg)

	switch v := id.(type) {
	case MDBListID:
		if cfg.APIKey == "" {
			return nil
		}
		pref := cfg.SortFor(key, "default", "desc")
		return r.mdblist.FetchItems(ctx, mdblist.Request{
			APIKey:  cfg.APIKey,
			ListID:  v.ListID,
			Kind:    v.Kind,
			Skip:    req.Skip,
			Sort:    pref.Sort,
			Order:   pref.Order,
			Genre:   req.Genre,
			Unified: cfg.IsMerged(req.CatalogID),
		})

	case TraktListID:
		return r.fetchTrakt(ctx, cfg, key, req, trakt.Request{Kind: trakt.KindUserList, Slug: v.Slug, TypeHint: req.TypeHint})
	case TraktWatchlistID:
		return r.fetchTrakt(ctx, cfg, key, req, trakt.Request{Kind: trakt.KindWatchlist, TypeHint: req.TypeHint})
	case TraktRecommendationsID:
		return r.fetchTrakt(ctx, cfg, key, req, fixedTrakt(trakt.KindRecommendations, v.Type))
	case TraktTrendingID:
		return r.fetchTrakt(ctx, cfg, key, req, fixedTrakt(trakt.KindTrending, v.Type))
	case TraktPopularID:
		return r.fetchTrakt(ctx, cfg, key, req, fixedTrakt(trakt.KindPopular, v.Type))
	case TraktPublicID:
		return r.fetchTrakt(ctx, cfg, key, req, trakt.Request{Kind: trakt.KindPublicList, User: v.User, Slug: v.Slug, TypeHint: req.TypeHint})

	case TMDBWatchlistID:
		return r.fetchTMDB(ctx, cfg, key, req, tmdb.ListWatchlist, "")
	case TMDBFavoritesID:
		return r.fetchTMDB(ctx, cfg, key, req, tmdb.ListFavorites, "")
	case TMDBListID:
		return r.fetchTMDB(ctx, cfg, key, req, tmdb.ListCustom, v.ListID)

	case ImportedListID:
		return r.fetchImported(ctx, cfg, key, req, cfg.ImportedAddons[v.Key])

	case DiscoveryID:
		return r.discover(ctx, cfg, key, req)

	case SearchID:
		// search catalogs are a single page
		if req.Skip > 0 {
			return models.NewContentResult(nil)
		}
		return r.Search(ctx, cfg, v, req.Search, req.Genre)
	}
	return nil
}

func fixedTrakt(kind trakt.Kind, ct models.ContentType) trakt.Request {
	hint := models.TypeHintMovie
	if ct == models.ContentTypeSeries {
		hint = models.TypeHintSeries
	}
	return trakt.Request{Kind: kind, MediaType: ct, TypeHint: hint}
}

func (r *Router) fetchTrakt(ctx context.Context, cfg *models.UserConfig, key string, req Request, tr trakt.Request) *models.ContentResult {
	switch tr.Kind {
	case trakt.KindTrending, trakt.KindPopular, trakt.KindPublicList:
	default:
		token, err := r.tokens.Token(ctx, cfg)
		if err != nil {
			log.Printf("[catalog] trakt %s unavailable: %v", tr.Kind, err)
			return nil
		}
		tr.AccessToken = token
	}
	pref := cfg.SortFor(key, "rank", "asc")
	tr.Skip = req.Skip
	tr.Sort = pref.Sort
	tr.Order = pref.Order
	tr.Genre = req.Genre
	tr.TMDBBearer = cfg.TMDBBearerToken
	return r.trakt.FetchItems(ctx, tr)
}

func (r *Router) fetchTMDB(ctx context.Context, cfg *models.UserConfig, key string, req Request, kind tmdb.ListKind, listID string) *models.ContentResult {
	if !cfg.HasTMDBAccount() {
		return nil
	}
	pref := cfg.SortFor(key, "created_at", "desc")
	return r.tmdb.FetchItems(ctx, tmdb.Request{
		Account: tmdb.Account{
			Bearer:    cfg.TMDBBearerToken,
			SessionID: cfg.TMDBSessionID,
			AccountID: cfg.TMDBAccountID,
			Language:  cfg.Language(),
		},
		Kind:   kind,
		ListID: listID,
		Skip:   req.Skip,
		Sort:   pref.Sort,
		Order:  pref.Order,
	})
}

func (r *Router) fetchImported(ctx context.Context, cfg *models.UserConfig, key string, req Request, addon models.ImportedAddon) *models.ContentResult {
	switch {
	case addon.IsTraktPublicList:
		user, slug := addon.TraktUser, addon.TraktSlug
		if user == "" || slug == "" {
			if u, s, ok := trakt.ParseListURL(addon.URL); ok {
				user, slug = firstNonEmpty(user, u), firstNonEmpty(slug, s)
			}
		}
		if user == "" || slug == "" {
			log.Printf("[catalog] imported trakt list %q has no user/slug", addon.ID)
			return nil
		}
		return r.fetchTrakt(ctx, cfg, key, req, trakt.Request{Kind: trakt.KindPublicList, User: user, Slug: slug, TypeHint: req.TypeHint})

	case addon.IsMDBListURLImport:
		owner, slug := addon.MDBListUsername, addon.MDBListSlug
		if owner == "" || slug == "" {
			if o, s, ok := mdblist.ParseListURL(addon.URL); ok {
				owner, slug = firstNonEmpty(owner, o), firstNonEmpty(slug, s)
			}
		}
		unified := cfg.IsMerged(req.CatalogID)
		if cfg.APIKey != "" {
			pref := cfg.SortFor(key, "default", "desc")
			return r.mdblist.FetchItems(ctx, mdblist.Request{
				APIKey:    cfg.APIKey,
				ListID:    firstNonEmpty(addon.MDBListID, addon.ID),
				URLImport: true,
				Owner:     owner,
				Slug:      slug,
				Skip:      req.Skip,
				Sort:      pref.Sort,
				Order:     pref.Order,
				Genre:     req.Genre,
				Unified:   unified,
			})
		}
		if owner == "" || slug == "" {
			return nil
		}
		pref := cfg.SortFor(key, "rank", "asc")
		return r.mdblist.FetchItems(ctx, mdblist.Request{
			Owner:   owner,
			Slug:    slug,
			Skip:    req.Skip,
			Sort:    pref.Sort,
			Order:   pref.Order,
			Genre:   req.Genre,
			Unified: unified,
		})
	}
	return nil
}

// discover serves the discovery catalog from a random public list of a
// random configured user, or from the fixed public lists without a key.
func (r *Router) discover(ctx context.Context, cfg *models.UserConfig, key string, req Request) *models.ContentResult {
	if !cfg.EnableRandomListFeature || len(cfg.RandomMDBListUsernames) == 0 {
		return nil
	}
	if cfg.APIKey == "" {
		pick := r.publicLists[int(r.rotation.Add(1)-1)%len(r.publicLists)]
		pref := cfg.SortFor(key, "rank", "asc")
		return r.mdblist.FetchItems(ctx, mdblist.Request{
			Owner: pick.Owner,
			Slug:  pick.Slug,
			Skip:  req.Skip,
			Sort:  pref.Sort,
			Order: pref.Order,
			Genre: req.Genre,
		})
	}

	username := cfg.RandomMDBListUsernames[r.intn(len(cfg.RandomMDBListUsernames))]
	lists, err := r.mdblist.ListsForUser(ctx, cfg.APIKey, username)
	if err != nil {
		log.Printf("[catalog] discovery lists for %s: %v", username, err)
		return nil
	}
	if len(lists) == 0 {
		return nil
	}
	list := lists[r.intn(len(lists))]
	pref := cfg.SortFor(key, "default", "desc")
	return r.mdblist.FetchItems(ctx, mdblist.Request{
		APIKey: cfg.APIKey,
		ListID: firstNonEmpty(list.Slug, list.ID),
		Kind:   list.Kind,
		Owner:  username,
		Slug:   list.Slug,
		Skip:   req.Skip,
		Sort:   pref.Sort,
		Order:  pref.Order,
		Genre:  req.Genre,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
