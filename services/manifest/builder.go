package manifest

import (
	"context"
	"encoding/json"
	"log"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/sourcegraph/conc/pool"

	"aiolists/internal/ttlcache"
	"aiolists/models"
	"aiolists/services/catalog"
	"aiolists/services/tmdb"
	"aiolists/services/trakt"
	"aiolists/utils/genre"
)

const (
	AddonID      = "org.stremio.aiolists"
	AddonName    = "AIOLists"
	addonVersion = "1.2.7"
	addonLogo    = "https://i.imgur.com/DigFuAQ.png"
	addonBlurb   = "Manage all your lists in one place."

	// DefaultCacheTTL and DefaultCacheSize bound the manifest cache.
	DefaultCacheTTL    = 5 * time.Minute
	DefaultCacheSize   = 5
	DefaultConcurrency = 5
)

type MDBListSource interface {
	Lists(ctx context.Context, apiKey string) ([]models.ListSource, error)
}

type TraktSource interface {
	Lists(ctx context.Context, accessToken string) ([]models.ListSource, error)
	PublicList(ctx context.Context, user, slug string) (*trakt.PublicListInfo, error)
}

type TMDBSource interface {
	Configured(bearer string) bool
	Lists(ctx context.Context, acct tmdb.Account) ([]models.ListSource, error)
	Genres(ctx context.Context, bearer, language string) ([]string, error)
}

// SearchCatalogs reports which search pseudo-catalogs are usable.
type SearchCatalogs interface {
	SearchSources(cfg *models.UserConfig) []string
	MergedSearchAvailable(cfg *models.UserConfig) bool
}

// Builder assembles the manifest for a user configuration. Built manifests
// are cached by configuration shape.
type Builder struct {
	mdblist MDBListSource
	trakt   TraktSource
	tmdb    TMDBSource
	tokens  catalog.TokenProvider
	search  SearchCatalogs

	cache       *ttlcache.Cache[models.Manifest]
	concurrency int
	now         func() time.Time
}

type Options struct {
	MDBList MDBListSource
	Trakt   TraktSource
	TMDB    TMDBSource
	Tokens  catalog.TokenProvider
	Search  SearchCatalogs

	CacheTTL    time.Duration
	CacheSize   int
	Concurrency int
	Now         func() time.Time
}

func NewBuilder(opts Options) *Builder {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Builder{
		mdblist:     opts.MDBList,
		trakt:       opts.Trakt,
		tmdb:        opts.TMDB,
		tokens:      opts.Tokens,
		search:      opts.Search,
		cache:       ttlcache.New[models.Manifest](ttlcache.Options{Size: size, TTL: ttl}),
		concurrency: concurrency,
		now:         now,
	}
}

// Build returns the manifest for cfg, from cache when a configuration of the
// same shape was built recently.
func (b *Builder) Build(ctx context.Context, cfg *models.UserConfig) models.Manifest {
	if cfg == nil {
		cfg = &models.UserConfig{}
	}
	key := ShapeKey(cfg)
	m, found, err := b.cache.GetOrLoad(ctx, key, func(ctx context.Context) (models.Manifest, bool, error) {
		return b.build(ctx, cfg), true, nil
	})
	if err != nil || !found {
		return b.build(ctx, cfg)
	}
	return m
}

// Invalidate drops every cached manifest.
func (b *Builder) Invalidate() {
	b.cache.Purge()
}

func (b *Builder) build(ctx context.Context, cfg *models.UserConfig) models.Manifest {
	start := b.now()
	m := models.Manifest{
		ID:            AddonID,
		Version:       addonVersion + "-" + strconv.FormatInt(start.UnixMilli(), 10),
		Name:          AddonName,
		Description:   addonBlurb,
		Logo:          addonLogo,
		Resources:     []string{"catalog", "meta"},
		Types:         b.types(cfg),
		IDPrefixes:    []string{"tt", "tmdb:"},
		BehaviorHints: models.BehaviorHints{Configurable: true},
	}

	rules := newRules(cfg, b.genres(ctx, cfg))
	var catalogs []models.CatalogDescriptor
	for _, src := range b.discover(ctx, cfg) {
		id, ok := catalog.IDForSource(src)
		if !ok {
			continue
		}
		catalogs = append(catalogs, rules.expose(src, id.String())...)
	}
	sortByListOrder(catalogs, cfg.ListOrder)
	// pseudo-catalogs trail the lists regardless of the user's order
	if d, ok := rules.discovery(); ok {
		catalogs = append(catalogs, d)
	}
	catalogs = append(catalogs, b.searchCatalogs(cfg)...)

	m.Catalogs = catalogs
	log.Printf("[manifest] built %d catalogs in %s", len(catalogs), b.now().Sub(start).Round(time.Millisecond))
	return m
}

func (b *Builder) types(cfg *models.UserConfig) []string {
	types := []string{"movie", "series", "all"}
	if b.search != nil && b.search.MergedSearchAvailable(cfg) {
		types = append(types, "search")
	}
	custom := slices.Sorted(maps.Values(cfg.CustomMediaTypeNames))
	for _, t := range custom {
		if t != "" && !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	return types
}

// genres returns localized TMDB genres when TMDB drives metadata or a
// non-default language is set, else the static list.
func (b *Builder) genres(ctx context.Context, cfg *models.UserConfig) []string {
	wantTMDB := cfg.Source() == models.MetadataSourceTMDB || cfg.Language() != "en-US"
	if !wantTMDB || b.tmdb == nil || !b.tmdb.Configured(cfg.TMDBBearerToken) {
		return genre.Static
	}
	names, err := b.tmdb.Genres(ctx, cfg.TMDBBearerToken, cfg.Language())
	if err != nil || len(names) == 0 {
		log.Printf("[manifest] tmdb genres unavailable, using static list: %v", err)
		return genre.Static
	}
	return names
}

// discover collects list sources from every connected provider plus the
// imported public lists. Provider order is stable: MDBList, Trakt, TMDB,
// imported lists by key.
func (b *Builder) discover(ctx context.Context, cfg *models.UserConfig) []models.ListSource {
	type discovered struct {
		order   int
		sources []models.ListSource
	}
	var tasks []func(context.Context) []models.ListSource

	if cfg.APIKey != "" && b.mdblist != nil {
		tasks = append(tasks, func(ctx context.Context) []models.ListSource {
			lists, err := b.mdblist.Lists(ctx, cfg.APIKey)
			if err != nil {
				log.Printf("[manifest] mdblist discovery failed: %v", err)
			}
			return lists
		})
	}
	if cfg.TraktAccessToken != "" && b.trakt != nil && b.tokens != nil {
		tasks = append(tasks, func(ctx context.Context) []models.ListSource {
			token, err := b.tokens.Token(ctx, cfg)
			if err != nil {
				log.Printf("[manifest] trakt token unavailable: %v", err)
				return nil
			}
			lists, err := b.trakt.Lists(ctx, token)
			if err != nil {
				log.Printf("[manifest] trakt discovery failed: %v", err)
			}
			return lists
		})
	}
	if cfg.HasTMDBAccount() && b.tmdb != nil {
		tasks = append(tasks, func(ctx context.Context) []models.ListSource {
			lists, err := b.tmdb.Lists(ctx, tmdb.Account{
				Bearer:    cfg.TMDBBearerToken,
				SessionID: cfg.TMDBSessionID,
				AccountID: cfg.TMDBAccountID,
				Language:  cfg.Language(),
			})
			if err != nil {
				log.Printf("[manifest] tmdb discovery failed: %v", err)
			}
			return lists
		})
	}
	for _, key := range slices.Sorted(maps.Keys(cfg.ImportedAddons)) {
		addon := cfg.ImportedAddons[key]
		if !addon.IsMDBListURLImport && !addon.IsTraktPublicList {
			continue
		}
		if addon.ID != "" && (slices.Contains(cfg.HiddenLists, addon.ID) || slices.Contains(cfg.RemovedLists, addon.ID)) {
			continue
		}
		tasks = append(tasks, func(ctx context.Context) []models.ListSource {
			return []models.ListSource{b.importedSource(ctx, key, addon)}
		})
	}

	p := pool.NewWithResults[discovered]().WithMaxGoroutines(b.concurrency)
	for i, task := range tasks {
		p.Go(func() discovered {
			return discovered{order: i, sources: task(ctx)}
		})
	}
	results := p.Wait()
	slices.SortFunc(results, func(a, b discovered) int { return a.order - b.order })

	var out []models.ListSource
	for _, r := range results {
		out = append(out, r.sources...)
	}
	return out
}

// importedSource describes an imported list. Trakt imports saved without
// content flags are probed once.
func (b *Builder) importedSource(ctx context.Context, key string, addon models.ImportedAddon) models.ListSource {
	src := models.ListSource{
		Kind:        models.SourceImportedPublic,
		RawID:       key,
		DisplayName: addon.Name,
		Owner:       firstNonEmpty(addon.MDBListUsername, addon.TraktUser),
		Slug:        firstNonEmpty(addon.MDBListSlug, addon.TraktSlug),
		HasMovies:   addon.HasMovies,
		HasShows:    addon.HasShows,
	}
	if src.HasMovies || src.HasShows || !addon.IsTraktPublicList || b.trakt == nil {
		return src
	}
	user, slug := addon.TraktUser, addon.TraktSlug
	if user == "" || slug == "" {
		user, slug, _ = trakt.ParseListURL(addon.URL)
	}
	if user == "" || slug == "" {
		return src
	}
	info, err := b.trakt.PublicList(ctx, user, slug)
	if err != nil {
		log.Printf("[manifest] trakt public list %s/%s: %v", user, slug, err)
		return src
	}
	src.HasMovies, src.HasShows = info.HasMovies, info.HasShows
	if src.DisplayName == "" {
		src.DisplayName = info.Name
	}
	return src
}

func (b *Builder) searchCatalogs(cfg *models.UserConfig) []models.CatalogDescriptor {
	if b.search == nil {
		return nil
	}
	extra := []models.CatalogExtra{{Name: "search", IsRequired: true}}
	var out []models.CatalogDescriptor
	if len(b.search.SearchSources(cfg)) > 0 {
		out = append(out,
			descriptor(catalog.SearchMoviesCatalogID, "movie", "Search Movies", extra),
			descriptor(catalog.SearchSeriesCatalogID, "series", "Search Series", extra),
		)
	}
	if b.search.MergedSearchAvailable(cfg) {
		out = append(out, descriptor(catalog.MergedSearchCatalogID, "search", "Merged Search", extra))
	}
	return out
}

// sortByListOrder moves catalogs named in order to the front, in that order.
// The rest keep their relative order.
func sortByListOrder(catalogs []models.CatalogDescriptor, order []string) {
	if len(order) == 0 {
		return
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		if _, dup := pos[id]; !dup {
			pos[id] = i
		}
	}
	slices.SortStableFunc(catalogs, func(a, b models.CatalogDescriptor) int {
		ia, okA := pos[a.ID]
		ib, okB := pos[b.ID]
		switch {
		case okA && okB:
			return ia - ib
		case okA:
			return -1
		case okB:
			return 1
		}
		return 0
	})
}

type shape struct {
	APIKey                  bool                  `json:"apiKey"`
	TraktAccessToken        bool                  `json:"traktAccessToken"`
	TMDBSessionID           bool                  `json:"tmdbSessionId"`
	ListOrder               []string              `json:"listOrder"`
	HiddenLists             []string              `json:"hiddenLists"`
	RemovedLists            []string              `json:"removedLists"`
	CustomListNames         map[string]string     `json:"customListNames"`
	CustomMediaTypeNames    map[string]string     `json:"customMediaTypeNames"`
	MergedLists             map[string]bool       `json:"mergedLists"`
	ImportedAddons          []string              `json:"importedAddons"`
	EnableRandomListFeature bool                  `json:"enableRandomListFeature"`
	RandomUsernames         bool                  `json:"randomUsernames"`
	DisableGenreFilter      bool                  `json:"disableGenreFilter"`
	MetadataSource          models.MetadataSource `json:"metadataSource"`
	TMDBLanguage            string                `json:"tmdbLanguage"`
	TMDBBearerToken         bool                  `json:"tmdbBearerToken"`
	SearchSources           []string              `json:"searchSources"`
	MergedSearchSources     []string              `json:"mergedSearchSources"`
}

// ShapeKey serializes the configuration fields that decide which catalogs a
// manifest holds. Credentials contribute only their presence.
func ShapeKey(cfg *models.UserConfig) string {
	if cfg == nil {
		cfg = &models.UserConfig{}
	}
	s := shape{
		APIKey:                  cfg.APIKey != "",
		TraktAccessToken:        cfg.TraktAccessToken != "",
		TMDBSessionID:           cfg.TMDBSessionID != "",
		ListOrder:               cfg.ListOrder,
		HiddenLists:             cfg.HiddenLists,
		RemovedLists:            cfg.RemovedLists,
		CustomListNames:         cfg.CustomListNames,
		CustomMediaTypeNames:    cfg.CustomMediaTypeNames,
		MergedLists:             cfg.MergedLists,
		ImportedAddons:          slices.Sorted(maps.Keys(cfg.ImportedAddons)),
		EnableRandomListFeature: cfg.EnableRandomListFeature,
		RandomUsernames:         len(cfg.RandomMDBListUsernames) > 0,
		DisableGenreFilter:      cfg.DisableGenreFilter,
		MetadataSource:          cfg.MetadataSource,
		TMDBLanguage:            cfg.TMDBLanguage,
		TMDBBearerToken:         cfg.TMDBBearerToken != "",
		SearchSources:           cfg.SearchSources,
		MergedSearchSources:     cfg.MergedSearchSources,
	}
	raw, err := json.Marshal(s)
	if err != nil {
		// unreachable: every field is a plain value
		return ""
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
