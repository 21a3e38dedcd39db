package mdblist

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"aiolists/internal/retry"
	"aiolists/internal/ttlcache"
	"aiolists/internal/upstream"
	"aiolists/models"
	"aiolists/utils/genre"
)

const (
	defaultAPIBase    = "https://api.mdblist.com"
	defaultPublicBase = "https://mdblist.com"

	// ItemsPerPage is both the upstream page size and the catalog page size.
	ItemsPerPage = 100
	// GenreAttemptCeiling bounds how many upstream pages a genre-filtered
	// request may scan.
	GenreAttemptCeiling = 5
)

// ListKind selects the endpoint family of an MDBList list.
type ListKind string

const (
	KindUser      ListKind = "L"
	KindExternal  ListKind = "E"
	KindWatchlist ListKind = "W"
)

// ParseListKind accepts the single-letter kind suffix used in catalog ids.
func ParseListKind(s string) (ListKind, bool) {
	switch ListKind(s) {
	case KindUser, KindExternal, KindWatchlist:
		return ListKind(s), true
	}
	return "", false
}

var (
	ErrNoCredential = errors.New("mdblist: api key not configured")
	ErrNotFound     = errors.New("mdblist: list not found")
)

// Client talks to the MDBList API and to the public list JSON snapshots.
type Client struct {
	api        *upstream.Client
	apiBase    string
	publicBase string
	kinds      *ttlcache.Cache[map[string]ListKind]
}

type Options struct {
	HTTPClient    *http.Client
	APIBase       string
	PublicBase    string
	RatePerSecond float64
	// Policy overrides the retry schedule; zero uses the list-host policy
	// (4 attempts, 2s base, retrying 429/503 only).
	Policy       retry.Policy
	KindCacheTTL time.Duration
}

func NewClient(opts Options) *Client {
	policy := opts.Policy
	if policy.Attempts == 0 {
		policy = retry.ListHostPolicy
	}
	if policy.Retryable == nil {
		policy.Retryable = retry.IsRateLimited
	}
	kindTTL := opts.KindCacheTTL
	if kindTTL <= 0 {
		kindTTL = time.Hour
	}
	apiBase := strings.TrimRight(opts.APIBase, "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	publicBase := strings.TrimRight(opts.PublicBase, "/")
	if publicBase == "" {
		publicBase = defaultPublicBase
	}
	return &Client{
		api: upstream.New(upstream.Options{
			HTTPClient:    opts.HTTPClient,
			RatePerSecond: opts.RatePerSecond,
			Burst:         2,
			Policy:        policy,
		}),
		apiBase:    apiBase,
		publicBase: publicBase,
		kinds:      ttlcache.New[map[string]ListKind](ttlcache.Options{Size: 256, TTL: kindTTL, NegativeTTL: time.Minute}),
	}
}

// Request describes one page of one list.
type Request struct {
	APIKey string
	ListID string
	// Kind is looked up from the user's lists when empty.
	Kind ListKind
	// Owner and Slug identify the public snapshot of the list. When Owner is
	// set on a list that is not a URL import, the authenticated request is
	// addressed through the owner's namespace.
	Owner string
	Slug  string
	// URLImport marks lists imported by URL; their kind is never looked up.
	URLImport bool
	Skip      int
	Sort      string
	Order     string
	Genre     string
	Unified   bool
}

// FetchItems returns one catalog page of a list. Nil means the list is
// unavailable; an empty result is a valid empty page.
func (c *Client) FetchItems(ctx context.Context, req Request) *models.ContentResult {
	if !genre.IsAll(req.Genre) {
		return c.fetchGenre(ctx, req)
	}
	items, err := c.fetchPage(ctx, req, req.Skip)
	if err != nil {
		logFetchError(req, err)
		return nil
	}
	return models.NewContentResult(items)
}

// fetchGenre scans pages from the start of the list, keeping genre matches,
// until the requested window is covered or the attempt ceiling is reached.
// Items that carry no genre data are kept for the caller to filter after
// enrichment.
func (c *Client) fetchGenre(ctx context.Context, req Request) *models.ContentResult {
	var matched []models.CanonicalItem
	offset := 0
	for attempt := 0; attempt < GenreAttemptCeiling && len(matched) < req.Skip+ItemsPerPage; attempt++ {
		page, err := c.fetchPage(ctx, req, offset)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				logFetchError(req, err)
				return nil
			}
			if attempt == 0 {
				logFetchError(req, err)
				return nil
			}
			log.Printf("[mdblist] genre scan of %s stopped at offset %d: %v", req.label(), offset, err)
			break
		}
		if len(page) == 0 {
			break
		}
		for _, it := range page {
			if len(it.Genres) == 0 || genre.Matches(it.Genres, req.Genre) {
				matched = append(matched, it)
			}
		}
		if len(page) < ItemsPerPage {
			break
		}
		offset += ItemsPerPage
	}

	if req.Skip >= len(matched) {
		return models.NewContentResult(nil)
	}
	end := min(req.Skip+ItemsPerPage, len(matched))
	return models.NewContentResult(matched[req.Skip:end])
}

func (c *Client) fetchPage(ctx context.Context, req Request, offset int) ([]models.CanonicalItem, error) {
	if req.APIKey == "" {
		if req.Owner != "" && req.Slug != "" {
			return c.fetchPublic(ctx, req, offset)
		}
		return nil, ErrNoCredential
	}

	kind := req.Kind
	if kind == "" && req.Owner == "" && !req.URLImport {
		kind = c.lookupKind(ctx, req.APIKey, req.ListID)
	}

	var raw json.RawMessage
	err := c.api.GetJSON(ctx, c.itemsURL(req, kind, offset), nil, &raw)
	switch {
	case err == nil:
	case upstream.IsStatus(err, http.StatusUnauthorized, http.StatusForbidden) && req.Owner != "" && req.Slug != "":
		log.Printf("[mdblist] %s rejected the api key, using public snapshot %s/%s", req.label(), req.Owner, req.Slug)
		return c.fetchPublic(ctx, req, offset)
	case upstream.IsStatus(err, http.StatusNotFound) && req.Owner != "":
		return nil, ErrNotFound
	case upstream.IsMalformed(err):
		log.Printf("[mdblist] malformed items payload for %s: %v", req.label(), err)
		return []models.CanonicalItem{}, nil
	default:
		return nil, err
	}

	items, err := parseItems(raw)
	if err != nil {
		log.Printf("[mdblist] unexpected items payload for %s: %v", req.label(), err)
		return []models.CanonicalItem{}, nil
	}
	return items, nil
}

func (c *Client) itemsURL(req Request, kind ListKind, offset int) string {
	params := url.Values{}
	params.Set("apikey", req.APIKey)
	params.Set("limit", strconv.Itoa(ItemsPerPage))
	params.Set("offset", strconv.Itoa(offset))
	if req.Sort != "" {
		params.Set("sort", req.Sort)
	}
	if req.Order != "" {
		params.Set("order", req.Order)
	}

	// URL imports are addressed by numeric id; their owner and slug only
	// locate the public snapshot.
	ownerRoute := req.Owner != "" && !req.URLImport

	var path string
	switch {
	case ownerRoute:
		path = fmt.Sprintf("/lists/%s/%s/items", url.PathEscape(req.Owner), url.PathEscape(req.ListID))
	case kind == KindWatchlist:
		path = "/watchlist/items"
		params.Set("unified", "true")
	case kind == KindExternal:
		path = fmt.Sprintf("/external/lists/%s/items", url.PathEscape(req.ListID))
	default:
		path = fmt.Sprintf("/lists/%s/items", url.PathEscape(req.ListID))
	}
	if req.Unified && !ownerRoute && kind != KindWatchlist {
		params.Set("unified", "true")
	}
	return c.apiBase + path + "?" + params.Encode()
}

// FetchPublic reads one page of a public list snapshot without an API key.
func (c *Client) FetchPublic(ctx context.Context, req Request) *models.ContentResult {
	items, err := c.fetchPublic(ctx, req, req.Skip)
	if err != nil {
		logFetchError(req, err)
		return nil
	}
	return models.NewContentResult(items)
}

func (c *Client) fetchPublic(ctx context.Context, req Request, offset int) ([]models.CanonicalItem, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(ItemsPerPage))
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if req.Sort != "" && req.Sort != "default" {
		params.Set("sort", req.Sort)
	}
	if req.Order == "asc" || req.Order == "desc" {
		params.Set("order", req.Order)
	}
	if req.Unified {
		params.Set("unified", "true")
	}
	params.Set("append_to_response", "ratings")
	endpoint := fmt.Sprintf("%s/lists/%s/%s/json/?%s", c.publicBase, url.PathEscape(req.Owner), url.PathEscape(req.Slug), params.Encode())

	var raw []rawItem
	if err := c.api.GetJSON(ctx, endpoint, nil, &raw); err != nil {
		if upstream.IsMalformed(err) {
			log.Printf("[mdblist] malformed public snapshot %s/%s: %v", req.Owner, req.Slug, err)
			return []models.CanonicalItem{}, nil
		}
		return nil, fmt.Errorf("public snapshot %s/%s: %w", req.Owner, req.Slug, err)
	}
	return normalizeAll(raw, publicType), nil
}

// lookupKind finds whether a list is internal or external by listing the
// user's lists. Unknown ids default to the internal endpoint.
func (c *Client) lookupKind(ctx context.Context, apiKey, listID string) ListKind {
	if listID == "watchlist" {
		return KindWatchlist
	}
	kinds, _, err := c.kinds.GetOrLoad(ctx, keyHash(apiKey), func(ctx context.Context) (map[string]ListKind, bool, error) {
		lists, err := c.userLists(ctx, apiKey)
		if err != nil {
			return nil, false, err
		}
		out := make(map[string]ListKind, len(lists))
		for _, l := range lists {
			out[l.ID.String()] = l.kind
		}
		return out, true, nil
	})
	if err != nil {
		log.Printf("[mdblist] list kind lookup failed: %v", err)
	}
	if kind, ok := kinds[listID]; ok {
		return kind
	}
	return KindUser
}

func (r Request) label() string {
	if r.Owner != "" {
		return fmt.Sprintf("list %s/%s", r.Owner, r.ListID)
	}
	if r.ListID == "" {
		return fmt.Sprintf("list %s/%s", r.Owner, r.Slug)
	}
	return "list " + r.ListID
}

func logFetchError(req Request, err error) {
	switch {
	case errors.Is(err, ErrNoCredential):
		log.Printf("[mdblist] %s skipped: no api key and no public snapshot", req.label())
	case errors.Is(err, ErrNotFound):
		log.Printf("[mdblist] %s not found", req.label())
	default:
		log.Printf("[mdblist] failed to fetch %s: %v", req.label(), err)
	}
}

func keyHash(apiKey string) string {
	sum := sha1.Sum([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
