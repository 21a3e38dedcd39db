package metadata

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aiolists/internal/batch"
	"aiolists/internal/retry"
	"aiolists/internal/ttlcache"
	"aiolists/internal/upstream"
	"aiolists/models"
	"aiolists/services/tmdb"
)

// TMDBSource is the part of the TMDB client the pipeline needs.
type TMDBSource interface {
	Configured(bearer string) bool
	BatchFind(ctx context.Context, bearer string, imdbIDs []string) map[string]tmdb.FindResult
	BatchMetadata(ctx context.Context, bearer string, refs []tmdb.FindResult, language string) map[tmdb.FindResult]models.CanonicalItem
	TVDBIDFor(ctx context.Context, bearer string, tmdbID int64) (int64, error)
}

// Service enriches list items with display metadata and artwork. Every
// stage degrades per item: a failed lookup leaves that item as it was.
type Service struct {
	tmdb     TMDBSource
	cinemeta *cinemetaClient
	fanart   *fanartClient
	rpdb     *rpdbClient
	window   int
}

type Options struct {
	HTTPClient *http.Client
	TMDB       TMDBSource

	FanartAPIKey    string
	CinemetaBaseURL string
	FanartBaseURL   string
	RPDBBaseURL     string

	// BatchSize bounds concurrent fanart and RPDB calls.
	BatchSize         int
	CinemetaBatchSize int

	CacheSize   int
	ArtworkTTL  time.Duration
	NegativeTTL time.Duration
	Policy      retry.Policy
}

func NewService(opts Options) *Service {
	window := opts.BatchSize
	if window <= 0 {
		window = 20
	}
	cinemetaWindow := opts.CinemetaBatchSize
	if cinemetaWindow <= 0 || cinemetaWindow > CinemetaBatchSize {
		cinemetaWindow = CinemetaBatchSize
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 10000
	}
	ttl := opts.ArtworkTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	negTTL := opts.NegativeTTL
	if negTTL <= 0 {
		negTTL = time.Hour
	}
	orDefault := func(v, def string) string {
		if v = strings.TrimRight(v, "/"); v != "" {
			return v
		}
		return def
	}
	newAPI := func(timeout time.Duration) *upstream.Client {
		return upstream.New(upstream.Options{HTTPClient: opts.HTTPClient, Timeout: timeout, Policy: opts.Policy})
	}

	return &Service{
		tmdb: opts.TMDB,
		cinemeta: &cinemetaClient{
			api:     newAPI(cinemetaTimeout),
			baseURL: orDefault(opts.CinemetaBaseURL, cinemetaBaseURL),
			window:  cinemetaWindow,
		},
		fanart: &fanartClient{
			api:     newAPI(10 * time.Second),
			baseURL: orDefault(opts.FanartBaseURL, fanartBaseURL),
			apiKey:  strings.TrimSpace(opts.FanartAPIKey),
			cache:   ttlcache.New[fanartResponse](ttlcache.Options{Size: size, TTL: ttl, NegativeTTL: negTTL}),
		},
		rpdb: &rpdbClient{
			api:     newAPI(5 * time.Second),
			baseURL: orDefault(opts.RPDBBaseURL, rpdbBaseURL),
			window:  window,
			cache:   ttlcache.New[string](ttlcache.Options{Size: size, TTL: ttl, NegativeTTL: negTTL}),
		},
		window: window,
	}
}

// Enrich resolves metadata for items in three ordered stages: the primary
// metadata source, the artwork cascade, then the RPDB poster override. The
// input slice is not modified.
func (s *Service) Enrich(ctx context.Context, items []models.CanonicalItem, cfg *models.UserConfig) []models.CanonicalItem {
	if len(items) == 0 {
		return items
	}
	source := cfg.Source()
	if source == models.MetadataSourceNone {
		return items
	}
	out := make([]models.CanonicalItem, len(items))
	copy(out, items)

	start := time.Now()
	if source == models.MetadataSourceTMDB && s.tmdb != nil && s.tmdb.Configured(cfg.TMDBBearerToken) {
		failed := s.enrichTMDB(ctx, out, cfg)
		if len(failed) > 0 && cfg.FailurePolicy() == models.OnPrimaryFailureFallback {
			s.enrichCinemeta(ctx, out, failed)
		}
	} else {
		all := make([]int, len(out))
		for i := range all {
			all[i] = i
		}
		s.enrichCinemeta(ctx, out, all)
	}

	out = s.applyArtwork(ctx, out, cfg)

	if cfg.RPDBAPIKey != "" {
		s.applyRPDB(ctx, out, cfg)
	}
	log.Printf("[metadata] enriched %d items via %s in %s", len(out), source, time.Since(start).Round(time.Millisecond))
	return out
}

// enrichTMDB overlays full TMDB records and returns the indexes of items it
// could not resolve.
func (s *Service) enrichTMDB(ctx context.Context, items []models.CanonicalItem, cfg *models.UserConfig) []int {
	bearer := cfg.TMDBBearerToken

	var lookups []string
	for _, it := range items {
		if it.TMDBID == 0 {
			if id := normalizeIMDBID(firstNonEmpty(it.IMDBID, it.ID)); id != "" {
				lookups = append(lookups, id)
			}
		}
	}
	found := map[string]tmdb.FindResult{}
	if len(lookups) > 0 {
		found = s.tmdb.BatchFind(ctx, bearer, lookups)
	}

	refs := make([]tmdb.FindResult, 0, len(items))
	refFor := make([]tmdb.FindResult, len(items))
	for i, it := range items {
		ref := tmdb.FindResult{TMDBID: it.TMDBID, Type: it.Type}
		if ref.TMDBID == 0 {
			hit, ok := found[normalizeIMDBID(firstNonEmpty(it.IMDBID, it.ID))]
			// the adapter's type wins over whatever the reverse lookup matched
			if !ok || hit.Type != it.Type {
				continue
			}
			ref.TMDBID = hit.TMDBID
		}
		refFor[i] = ref
		refs = append(refs, ref)
	}

	records := map[tmdb.FindResult]models.CanonicalItem{}
	if len(refs) > 0 {
		records = s.tmdb.BatchMetadata(ctx, bearer, refs, cfg.Language())
	}

	var failed []int
	for i, it := range items {
		rec, ok := records[refFor[i]]
		if refFor[i].TMDBID == 0 || !ok {
			failed = append(failed, i)
			continue
		}
		items[i] = overlay(it, rec)
	}
	if len(failed) > 0 {
		log.Printf("[metadata] tmdb left %d of %d items unresolved", len(failed), len(items))
	}
	return failed
}

// enrichCinemeta overlays Cinemeta records on the items at idx.
func (s *Service) enrichCinemeta(ctx context.Context, items []models.CanonicalItem, idx []int) {
	byType := map[models.ContentType][]string{}
	for _, i := range idx {
		if id := normalizeIMDBID(firstNonEmpty(items[i].IMDBID, items[i].ID)); id != "" {
			byType[items[i].Type] = append(byType[items[i].Type], id)
		}
	}
	metas := map[models.ContentType]map[string]cinemetaMeta{}
	for ct, ids := range byType {
		metas[ct] = s.cinemeta.fetch(ctx, ids, ct)
	}
	for _, i := range idx {
		id := normalizeIMDBID(firstNonEmpty(items[i].IMDBID, items[i].ID))
		if m, ok := metas[items[i].Type][id]; ok {
			items[i] = m.apply(items[i], id)
		}
	}
}

// applyArtwork runs the image cascade: fanart logo, then the primary logo;
// primary background, then fanart; fanart poster, then the primary poster.
func (s *Service) applyArtwork(ctx context.Context, items []models.CanonicalItem, cfg *models.UserConfig) []models.CanonicalItem {
	if !s.fanart.enabled() {
		return items
	}
	language := cfg.Language()
	results := batch.Window(ctx, items, s.window, func(ctx context.Context, it models.CanonicalItem) models.CanonicalItem {
		if !it.HasIdentity() {
			return it
		}
		var art artwork
		switch it.Type {
		case models.ContentTypeMovie:
			art = s.fanart.movie(ctx, it.TMDBID, language, it.OriginalLanguage)
		case models.ContentTypeSeries:
			tvdbID := it.TVDBID
			if tvdbID == 0 && it.TMDBID > 0 && s.tmdb != nil && s.tmdb.Configured(cfg.TMDBBearerToken) {
				if id, err := s.tmdb.TVDBIDFor(ctx, cfg.TMDBBearerToken, it.TMDBID); err == nil {
					tvdbID = id
				}
			}
			art = s.fanart.show(ctx, tvdbID, language, it.OriginalLanguage)
		}
		if art.Logo != "" {
			it.Logo = art.Logo
		}
		if it.Background == "" {
			it.Background = art.Background
		}
		if art.Poster != "" {
			it.Poster = art.Poster
		}
		return it
	})
	// windows skipped after cancellation come back zero
	for i := range results {
		if results[i].Type == "" {
			results[i] = items[i]
		}
	}
	return results
}

// applyRPDB overwrites posters with RPDB ones where RPDB has them.
func (s *Service) applyRPDB(ctx context.Context, items []models.CanonicalItem, cfg *models.UserConfig) {
	var ids []string
	seen := map[string]bool{}
	for _, it := range items {
		if id := normalizeIMDBID(it.IMDBID); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	posters := s.rpdb.posters(ctx, cfg.RPDBAPIKey, ids, cfg.Language())
	for i := range items {
		if p, ok := posters[normalizeIMDBID(items[i].IMDBID)]; ok {
			items[i].Poster = p
		}
	}
}

// overlay copies every non-empty field of rec onto item. Type and list
// position are kept from item.
func overlay(item, rec models.CanonicalItem) models.CanonicalItem {
	if rec.IMDBID != "" {
		item.IMDBID = rec.IMDBID
		item.ID = rec.IMDBID
	}
	if rec.TMDBID != 0 {
		item.TMDBID = rec.TMDBID
	}
	if rec.TVDBID != 0 {
		item.TVDBID = rec.TVDBID
	}
	if item.ID == "" {
		item.ID = rec.ID
	}
	setString(&item.Title, rec.Title)
	setString(&item.Year, rec.Year)
	setString(&item.ReleaseInfo, rec.ReleaseInfo)
	setString(&item.Released, rec.Released)
	setString(&item.Overview, rec.Overview)
	setString(&item.Runtime, rec.Runtime)
	setString(&item.Poster, rec.Poster)
	setString(&item.Background, rec.Background)
	setString(&item.Logo, rec.Logo)
	setString(&item.Country, rec.Country)
	setString(&item.Status, rec.Status)
	setString(&item.OriginalLanguage, rec.OriginalLanguage)
	if rec.Rating > 0 {
		item.Rating = rec.Rating
	}
	if len(rec.Genres) > 0 {
		item.Genres = rec.Genres
	}
	if len(rec.Cast) > 0 {
		item.Cast = rec.Cast
	}
	if len(rec.Director) > 0 {
		item.Director = rec.Director
	}
	if len(rec.Writer) > 0 {
		item.Writer = rec.Writer
	}
	if len(rec.Videos) > 0 {
		item.Videos = rec.Videos
	}
	if len(rec.Trailers) > 0 {
		item.Trailers = rec.Trailers
	}
	return item
}

// StubItem builds the item a single-title lookup starts from. Only IMDb ids
// and tmdb:<n> ids are accepted.
func StubItem(id string, ct models.ContentType) (models.CanonicalItem, bool) {
	if imdb := normalizeIMDBID(id); imdb != "" && strings.HasPrefix(id, "tt") {
		return models.CanonicalItem{ID: imdb, IMDBID: imdb, Type: ct}, true
	}
	if raw, ok := strings.CutPrefix(id, "tmdb:"); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && n > 0 {
			return models.CanonicalItem{ID: id, TMDBID: n, Type: ct}, true
		}
	}
	return models.CanonicalItem{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// SearchCinemeta searches Cinemeta's catalogs. Hint all queries both movie
// and series catalogs; a failure of one type still returns the other.
func (s *Service) SearchCinemeta(ctx context.Context, query string, hint models.TypeHint) ([]models.CanonicalItem, error) {
	var types []models.ContentType
	for _, ct := range []models.ContentType{models.ContentTypeMovie, models.ContentTypeSeries} {
		if hint.Matches(ct) {
			types = append(types, ct)
		}
	}
	type searched struct {
		items []models.CanonicalItem
		err   error
	}
	results := batch.Window(ctx, types, len(types), func(ctx context.Context, ct models.ContentType) searched {
		items, err := s.cinemeta.search(ctx, query, ct)
		return searched{items: items, err: err}
	})
	var (
		out     []models.CanonicalItem
		lastErr error
	)
	for _, r := range results {
		if r.err != nil {
			lastErr = r.err
			continue
		}
		out = append(out, r.items...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}
