package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"aiolists/models"
	"aiolists/services/catalog"
	"aiolists/services/convert"
	"aiolists/services/manifest"
	metadatapkg "aiolists/services/metadata"
	"aiolists/utils/genre"
)

const (
	catalogCacheMaxAge = 5 * 60
	metaCacheMaxAge    = 24 * 60 * 60

	metaUnavailable = "Details unavailable"
	metaLoadFailed  = "Error loading details"
)

//go:generate mockgen -source=addon.go -destination=mock_addon_test.go -package=handlers

type manifestBuilder interface {
	Build(ctx context.Context, cfg *models.UserConfig) models.Manifest
}

type catalogResolver interface {
	Resolve(ctx context.Context, cfg *models.UserConfig, req catalog.Request) *models.ContentResult
}

type itemEnricher interface {
	Enrich(ctx context.Context, items []models.CanonicalItem, cfg *models.UserConfig) []models.CanonicalItem
}

var (
	_ manifestBuilder = (*manifest.Builder)(nil)
	_ catalogResolver = (*catalog.Router)(nil)
	_ itemEnricher    = (*metadatapkg.Service)(nil)
)

var errEmptyConfig = errors.New("empty config segment")

// AddonHandler serves the add-on protocol: manifest, catalog and meta.
type AddonHandler struct {
	Manifest manifestBuilder
	Catalogs catalogResolver
	Metadata itemEnricher

	// FailurePolicy applies to configs that leave onPrimaryFailure unset.
	FailurePolicy models.PrimaryFailurePolicy
}

func NewAddonHandler(b manifestBuilder, r catalogResolver, e itemEnricher) *AddonHandler {
	return &AddonHandler{Manifest: b, Catalogs: r, Metadata: e}
}

// DecodeUserConfig parses the {config} path segment: base64url encoded JSON,
// padded or not.
func DecodeUserConfig(segment string) (*models.UserConfig, error) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return nil, errEmptyConfig
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(segment, "="))
	if err != nil {
		// Some clients hand out standard base64 links.
		raw, err = base64.StdEncoding.DecodeString(segment)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	var cfg models.UserConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// EncodeUserConfig is the inverse of DecodeUserConfig.
func EncodeUserConfig(cfg *models.UserConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (h *AddonHandler) userConfig(segment string) (*models.UserConfig, error) {
	cfg, err := DecodeUserConfig(segment)
	if err != nil {
		return nil, err
	}
	if cfg.OnPrimaryFailure == "" {
		cfg.OnPrimaryFailure = h.FailurePolicy
	}
	return cfg, nil
}

// ServeManifest answers /manifest.json and /{config}/manifest.json. A missing
// config yields the unconfigured manifest.
func (h *AddonHandler) ServeManifest(w http.ResponseWriter, r *http.Request) {
	cfg := &models.UserConfig{}
	if segment := mux.Vars(r)["config"]; segment != "" {
		decoded, err := h.userConfig(segment)
		if err != nil {
			writeJSONError(w, "invalid configuration", http.StatusBadRequest)
			return
		}
		cfg = decoded
	}
	writeJSON(w, h.Manifest.Build(r.Context(), cfg))
}

// Catalog answers /{config}/catalog/{type}/{id}[/{extra}].json. Upstream
// failures produce an empty page, never an error status.
func (h *AddonHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cfg, err := h.userConfig(vars["config"])
	if err != nil {
		writeJSONError(w, "invalid configuration", http.StatusBadRequest)
		return
	}
	typ, id := vars["type"], vars["id"]
	extra := parseExtra(vars["extra"], r.URL.Query())

	req := catalog.Request{
		CatalogID: id,
		Skip:      extra.skip,
		Genre:     extra.genre,
		TypeHint:  models.ParseTypeHint(typ),
		Search:    extra.search,
	}

	if parsed, ok := catalog.Parse(id, cfg); ok {
		if _, isSearch := parsed.(catalog.SearchID); isSearch {
			h.serveSearch(w, r, cfg, typ, req)
			return
		}
	}

	result := h.Catalogs.Resolve(r.Context(), cfg, req)
	if result == nil || len(result.Items) == 0 {
		writeJSON(w, models.CatalogResponse{Metas: []models.Meta{}, CacheMaxAge: catalogMaxAge(id)})
		return
	}

	items := h.Metadata.Enrich(r.Context(), result.Items, cfg)
	metas := filterMetas(convert.ToMetas(items), typ, extra.genre)
	writeJSON(w, models.CatalogResponse{Metas: metas, CacheMaxAge: catalogMaxAge(id)})
}

func (h *AddonHandler) serveSearch(w http.ResponseWriter, r *http.Request, cfg *models.UserConfig, typ string, req catalog.Request) {
	empty := models.CatalogResponse{Metas: []models.Meta{}}
	if len([]rune(strings.TrimSpace(req.Search))) < catalog.MinSearchQuery {
		writeJSON(w, empty)
		return
	}
	result := h.Catalogs.Resolve(r.Context(), cfg, req)
	if result == nil {
		writeJSON(w, empty)
		return
	}
	if typ == "search" || typ == "all" {
		typ = ""
	}
	writeJSON(w, models.CatalogResponse{
		Metas:       filterMetas(convert.ToMetas(result.Items), typ, req.Genre),
		CacheMaxAge: catalogCacheMaxAge,
	})
}

// Meta answers /{config}/meta/{type}/{id}.json for IMDb and tmdb: ids.
func (h *AddonHandler) Meta(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cfg, err := h.userConfig(vars["config"])
	if err != nil {
		writeJSONError(w, "invalid configuration", http.StatusBadRequest)
		return
	}
	typ, id := vars["type"], vars["id"]

	stub, ok := metadatapkg.StubItem(id, metaContentType(typ))
	if !ok {
		writeJSON(w, models.MetaResponse{})
		return
	}

	enriched := h.Metadata.Enrich(r.Context(), []models.CanonicalItem{stub}, cfg)
	if err := r.Context().Err(); err != nil {
		log.Printf("[api] meta lookup for %s aborted: %v", id, err)
		writeJSON(w, placeholderMeta(id, typ, metaLoadFailed))
		return
	}
	if len(enriched) == 0 || strings.TrimSpace(enriched[0].Title) == "" {
		log.Printf("[api] all metadata sources failed for %s", id)
		writeJSON(w, placeholderMeta(id, typ, metaUnavailable))
		return
	}
	meta, ok := convert.ToMeta(enriched[0])
	if !ok {
		writeJSON(w, placeholderMeta(id, typ, metaUnavailable))
		return
	}
	meta.ID = id
	writeJSON(w, models.MetaResponse{Meta: &meta, CacheMaxAge: metaCacheMaxAge})
}

// Degraded writes the answer for a request whose handler failed midway:
// an empty page for catalogs and the error placeholder for metas.
func Degraded(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	route := ""
	if current := mux.CurrentRoute(r); current != nil {
		route = current.GetName()
	}
	switch route {
	case "meta":
		writeJSON(w, placeholderMeta(vars["id"], vars["type"], metaLoadFailed))
	case "catalog":
		writeJSON(w, models.CatalogResponse{Metas: []models.Meta{}})
	default:
		writeJSONError(w, "internal error", http.StatusInternalServerError)
	}
}

type catalogExtra struct {
	search string
	genre  string
	skip   int
}

// parseExtra reads the extra path segment ("genre=Drama&skip=100") and falls
// back to query parameters for anything it does not carry.
func parseExtra(segment string, query url.Values) catalogExtra {
	values := url.Values{}
	if segment != "" {
		if parsed, err := url.ParseQuery(segment); err == nil {
			values = parsed
		}
	}
	get := func(key string) string {
		if v := values.Get(key); v != "" {
			return v
		}
		return query.Get(key)
	}
	extra := catalogExtra{search: get("search"), genre: get("genre")}
	if n, err := strconv.Atoi(get("skip")); err == nil && n > 0 {
		extra.skip = n
	}
	return extra
}

// filterMetas drops metas of the wrong type (for movie and series catalogs)
// and, when a genre is selected, metas not tagged with it.
func filterMetas(metas []models.Meta, typ, genreFilter string) []models.Meta {
	if metas == nil {
		return []models.Meta{}
	}
	if typ == string(models.ContentTypeMovie) || typ == string(models.ContentTypeSeries) {
		metas = slices.DeleteFunc(metas, func(m models.Meta) bool { return m.Type != typ })
	}
	if genreFilter != "" && !genre.IsAll(genreFilter) {
		metas = slices.DeleteFunc(metas, func(m models.Meta) bool {
			return !slices.ContainsFunc(m.Genres, func(g string) bool { return strings.EqualFold(g, genreFilter) })
		})
	}
	return metas
}

func catalogMaxAge(id string) int {
	if id == catalog.DiscoveryCatalogID || catalog.IsWatchlist(id) {
		return 0
	}
	return catalogCacheMaxAge
}

func metaContentType(typ string) models.ContentType {
	if typ == string(models.ContentTypeSeries) {
		return models.ContentTypeSeries
	}
	return models.ContentTypeMovie
}

func placeholderMeta(id, typ, name string) models.MetaResponse {
	return models.MetaResponse{Meta: &models.Meta{ID: id, Type: typ, Name: name}}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
