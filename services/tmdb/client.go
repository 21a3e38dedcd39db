package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"aiolists/internal/batch"
	"aiolists/internal/retry"
	"aiolists/internal/ttlcache"
	"aiolists/internal/upstream"
	"aiolists/models"
	"aiolists/utils/genre"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	tmdbPosterSize   = "w500"
	tmdbOriginalSize = "original"

	// ItemsPerPage is the catalog page size; TMDB pages hold 20 results so a
	// catalog page maps onto one upstream page number.
	ItemsPerPage = 100

	lookupWindow = 10
)

var (
	ErrNoCredential = errors.New("tmdb: bearer token not configured")
	ErrNotFound     = errors.New("tmdb: not found")
)

// Client talks to the TMDB v3 API with bearer authentication. Requests use
// the caller's token and fall back to the server token.
type Client struct {
	api           *upstream.Client
	baseURL       string
	imageBaseURL  string
	defaultBearer string

	finds    *ttlcache.Cache[FindResult]
	external *ttlcache.Cache[ExternalIDs]
	metadata *ttlcache.Cache[models.CanonicalItem]
	genres   *ttlcache.Cache[genreTable]
}

type Options struct {
	HTTPClient    *http.Client
	BaseURL       string
	ImageBaseURL  string
	DefaultBearer string
	RatePerSecond float64
	Policy        retry.Policy

	CacheSize   int
	IDTTL       time.Duration
	MetadataTTL time.Duration
	NegativeTTL time.Duration
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = tmdbBaseURL
	}
	imageBase := strings.TrimRight(opts.ImageBaseURL, "/")
	if imageBase == "" {
		imageBase = tmdbImageBaseURL
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 10000
	}
	idTTL := opts.IDTTL
	if idTTL <= 0 {
		idTTL = 7 * 24 * time.Hour
	}
	metaTTL := opts.MetadataTTL
	if metaTTL <= 0 {
		metaTTL = 24 * time.Hour
	}
	negTTL := opts.NegativeTTL
	if negTTL <= 0 {
		negTTL = time.Hour
	}

	return &Client{
		api: upstream.New(upstream.Options{
			HTTPClient:    opts.HTTPClient,
			RatePerSecond: opts.RatePerSecond,
			Burst:         lookupWindow,
			Policy:        opts.Policy,
		}),
		baseURL:       baseURL,
		imageBaseURL:  imageBase,
		defaultBearer: strings.TrimSpace(opts.DefaultBearer),
		finds:         ttlcache.New[FindResult](ttlcache.Options{Size: size, TTL: idTTL, NegativeTTL: negTTL}),
		external:      ttlcache.New[ExternalIDs](ttlcache.Options{Size: size, TTL: idTTL, NegativeTTL: negTTL}),
		metadata:      ttlcache.New[models.CanonicalItem](ttlcache.Options{Size: size, TTL: metaTTL, NegativeTTL: negTTL}),
		genres:        ttlcache.New[genreTable](ttlcache.Options{Size: 64, TTL: metaTTL, NegativeTTL: negTTL}),
	}
}

// Configured reports whether a request with the given user token could be
// authenticated.
func (c *Client) Configured(bearer string) bool {
	return c.bearer(bearer) != ""
}

func (c *Client) bearer(userToken string) string {
	if t := strings.TrimSpace(userToken); t != "" {
		return t
	}
	return c.defaultBearer
}

func (c *Client) get(ctx context.Context, bearer, p string, params url.Values, v any) error {
	token := c.bearer(bearer)
	if token == "" {
		return ErrNoCredential
	}
	endpoint := c.baseURL + p
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	err := c.api.GetJSON(ctx, endpoint, h, v)
	if upstream.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return err
}

func (c *Client) image(filePath, size string) string {
	trimmed := strings.TrimSpace(filePath)
	if trimmed == "" {
		return ""
	}
	return c.imageBaseURL + "/" + path.Join(size, strings.TrimPrefix(trimmed, "/"))
}

func mediaSegment(ct models.ContentType) string {
	if ct == models.ContentTypeMovie {
		return "movie"
	}
	return "tv"
}

func primaryID(imdbID string, tmdbID int64) string {
	if imdbID != "" {
		return imdbID
	}
	return "tmdb:" + strconv.FormatInt(tmdbID, 10)
}

// FindResult is the TMDB identity of an IMDb id.
type FindResult struct {
	TMDBID int64
	Type   models.ContentType
}

type findResponse struct {
	MovieResults []struct {
		ID int64 `json:"id"`
	} `json:"movie_results"`
	TVResults []struct {
		ID int64 `json:"id"`
	} `json:"tv_results"`
}

// FindByIMDB resolves an IMDb id to a TMDB id. Results, misses included, are
// cached.
func (c *Client) FindByIMDB(ctx context.Context, bearer, imdbID string) (FindResult, bool, error) {
	if !strings.HasPrefix(imdbID, "tt") {
		return FindResult{}, false, nil
	}
	return c.finds.GetOrLoad(ctx, "find:"+imdbID, func(ctx context.Context) (FindResult, bool, error) {
		var resp findResponse
		params := url.Values{"external_source": {"imdb_id"}}
		if err := c.get(ctx, bearer, "/find/"+url.PathEscape(imdbID), params, &resp); err != nil {
			if errors.Is(err, ErrNotFound) {
				return FindResult{}, false, nil
			}
			return FindResult{}, false, err
		}
		switch {
		case len(resp.MovieResults) > 0:
			return FindResult{TMDBID: resp.MovieResults[0].ID, Type: models.ContentTypeMovie}, true, nil
		case len(resp.TVResults) > 0:
			return FindResult{TMDBID: resp.TVResults[0].ID, Type: models.ContentTypeSeries}, true, nil
		}
		return FindResult{}, false, nil
	})
}

// BatchFind resolves many IMDb ids with windowed concurrency. Ids that fail
// or are unknown are absent from the result.
func (c *Client) BatchFind(ctx context.Context, bearer string, imdbIDs []string) map[string]FindResult {
	type found struct {
		id  string
		res FindResult
		ok  bool
	}
	results := batch.Window(ctx, imdbIDs, lookupWindow, func(ctx context.Context, id string) found {
		res, ok, err := c.FindByIMDB(ctx, bearer, id)
		if err != nil {
			return found{id: id}
		}
		return found{id: id, res: res, ok: ok}
	})
	out := make(map[string]FindResult, len(results))
	for _, r := range results {
		if r.ok {
			out[r.id] = r.res
		}
	}
	return out
}

// ExternalIDs are the cross-reference ids TMDB knows for a title.
type ExternalIDs struct {
	IMDBID string `json:"imdb_id"`
	TVDBID int64  `json:"tvdb_id"`
}

// ExternalIDsFor returns the external ids of a title. Results are cached.
func (c *Client) ExternalIDsFor(ctx context.Context, bearer string, tmdbID int64, ct models.ContentType) (ExternalIDs, error) {
	seg := mediaSegment(ct)
	key := fmt.Sprintf("ext:%s:%d", seg, tmdbID)
	ids, found, err := c.external.GetOrLoad(ctx, key, func(ctx context.Context) (ExternalIDs, bool, error) {
		var ids ExternalIDs
		if err := c.get(ctx, bearer, fmt.Sprintf("/%s/%d/external_ids", seg, tmdbID), nil, &ids); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ExternalIDs{}, false, nil
			}
			return ExternalIDs{}, false, err
		}
		return ids, true, nil
	})
	if err != nil {
		return ExternalIDs{}, err
	}
	if !found {
		return ExternalIDs{}, ErrNotFound
	}
	return ids, nil
}

// IMDBIDFor returns the IMDb id of a TMDB title, or "" when it has none.
func (c *Client) IMDBIDFor(ctx context.Context, bearer string, tmdbID int64, ct models.ContentType) (string, error) {
	ids, err := c.ExternalIDsFor(ctx, bearer, tmdbID, ct)
	if err != nil {
		return "", err
	}
	return ids.IMDBID, nil
}

// TVDBIDFor returns the TVDB id of a TMDB series, or 0 when it has none.
func (c *Client) TVDBIDFor(ctx context.Context, bearer string, tmdbID int64) (int64, error) {
	ids, err := c.ExternalIDsFor(ctx, bearer, tmdbID, models.ContentTypeSeries)
	if err != nil {
		return 0, err
	}
	return ids.TVDBID, nil
}

type genreTable struct {
	Names []string
	ByID  map[int]string
}

type genreListResponse struct {
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// Genres returns the union of movie and TV genre names in language, sorted,
// with the catch-all option first.
func (c *Client) Genres(ctx context.Context, bearer, language string) ([]string, error) {
	table, err := c.genreTable(ctx, bearer, language)
	if err != nil {
		return nil, err
	}
	return append([]string{genre.All}, table.Names...), nil
}

func (c *Client) genreTable(ctx context.Context, bearer, language string) (genreTable, error) {
	if language == "" {
		language = "en-US"
	}
	table, found, err := c.genres.GetOrLoad(ctx, "genres:"+language, func(ctx context.Context) (genreTable, bool, error) {
		params := url.Values{"language": {language}}
		var movies, tv genreListResponse
		if err := c.get(ctx, bearer, "/genre/movie/list", params, &movies); err != nil {
			return genreTable{}, false, err
		}
		if err := c.get(ctx, bearer, "/genre/tv/list", params, &tv); err != nil {
			return genreTable{}, false, err
		}

		table := genreTable{ByID: map[int]string{}}
		seen := map[string]bool{}
		for _, g := range append(movies.Genres, tv.Genres...) {
			table.ByID[g.ID] = g.Name
			key := strings.ToLower(g.Name)
			if g.Name == "" || seen[key] {
				continue
			}
			seen[key] = true
			table.Names = append(table.Names, g.Name)
		}
		sort.Strings(table.Names)
		return table, true, nil
	})
	if err != nil {
		return genreTable{}, err
	}
	if !found {
		return genreTable{}, ErrNotFound
	}
	return table, nil
}

func yearOf(date string) string {
	if len(date) >= 4 {
		if _, err := strconv.Atoi(date[:4]); err == nil {
			return date[:4]
		}
	}
	return ""
}
