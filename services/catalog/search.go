package catalog

import (
	"context"
	"log"
	"slices"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"aiolists/models"
	"aiolists/utils/genre"
	"aiolists/utils/similarity"
)

const (
	// MinSearchQuery is the shortest query that is sent upstream.
	MinSearchQuery = 2
	searchLimit    = 50

	sourceCinemeta = "cinemeta"
	sourceTrakt    = "trakt"
	sourceTMDB     = "tmdb"
)

// SearchSources returns the per-type search sources usable under cfg.
func (r *Router) SearchSources(cfg *models.UserConfig) []string {
	if cfg == nil {
		return nil
	}
	var out []string
	for _, s := range cfg.SearchSources {
		switch s {
		case sourceCinemeta, sourceTrakt:
		case sourceTMDB:
			if !r.tmdb.Configured(cfg.TMDBBearerToken) && cfg.TMDBSessionID == "" {
				continue
			}
		default:
			continue
		}
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// MergedSearchAvailable reports whether the merged (multi type) search
// catalog can be served.
func (r *Router) MergedSearchAvailable(cfg *models.UserConfig) bool {
	return cfg != nil && slices.Contains(cfg.MergedSearchSources, sourceTMDB) && r.tmdb.Configured(cfg.TMDBBearerToken)
}

// Search serves a search pseudo-catalog. Results from every usable source
// are merged, de-duplicated by id and ranked by title match.
func (r *Router) Search(ctx context.Context, cfg *models.UserConfig, id SearchID, query, genreFilter string) *models.ContentResult {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinSearchQuery {
		return models.NewContentResult(nil)
	}

	var (
		sources []string
		hint    models.TypeHint
	)
	switch id.Scope {
	case SearchMerged:
		if !r.MergedSearchAvailable(cfg) {
			return models.NewContentResult(nil)
		}
		sources, hint = []string{sourceTMDB}, models.TypeHintAll
	case SearchSeries:
		sources, hint = r.SearchSources(cfg), models.TypeHintSeries
	default:
		sources, hint = r.SearchSources(cfg), models.TypeHintMovie
	}
	if len(sources) == 0 {
		return models.NewContentResult(nil)
	}

	type found struct {
		order int
		items []models.CanonicalItem
	}
	p := pool.NewWithResults[found]().WithContext(ctx)
	for i, src := range sources {
		p.Go(func(ctx context.Context) (found, error) {
			items, err := r.searchSource(ctx, cfg, src, query, hint)
			if err != nil {
				log.Printf("[catalog] %s search for %q failed: %v", src, query, err)
				items = nil
			}
			return found{order: i, items: items}, nil
		})
	}
	results, _ := p.Wait()
	slices.SortFunc(results, func(a, b found) int { return a.order - b.order })
	batches := make([][]models.CanonicalItem, 0, len(results))
	for _, res := range results {
		batches = append(batches, res.items)
	}

	merged := mergeResults(batches)
	merged = slices.DeleteFunc(merged, func(it models.CanonicalItem) bool {
		return !hint.Matches(it.Type) || (!genre.IsAll(genreFilter) && !genre.Matches(it.Genres, genreFilter))
	})
	rankByQuery(merged, query)
	if len(merged) > searchLimit {
		merged = merged[:searchLimit]
	}
	return models.NewContentResult(merged)
}

func (r *Router) searchSource(ctx context.Context, cfg *models.UserConfig, src, query string, hint models.TypeHint) ([]models.CanonicalItem, error) {
	switch src {
	case sourceCinemeta:
		return r.cinemeta.SearchCinemeta(ctx, query, hint)
	case sourceTrakt:
		return r.trakt.Search(ctx, query, hint, searchLimit)
	case sourceTMDB:
		return r.tmdb.Search(ctx, cfg.TMDBBearerToken, query, hint, cfg.Language())
	}
	return nil, nil
}

// mergeResults keeps the first occurrence of every title, matching on IMDb
// id and on typed TMDB id.
func mergeResults(batches [][]models.CanonicalItem) []models.CanonicalItem {
	var out []models.CanonicalItem
	seen := map[string]bool{}
	for _, b := range batches {
		for _, it := range b {
			keys := identityKeys(it)
			if len(keys) == 0 {
				continue
			}
			dup := false
			for _, k := range keys {
				if seen[k] {
					dup = true
					break
				}
			}
			for _, k := range keys {
				seen[k] = true
			}
			if !dup {
				out = append(out, it)
			}
		}
	}
	return out
}

func identityKeys(it models.CanonicalItem) []string {
	var keys []string
	if it.IMDBID != "" {
		keys = append(keys, it.IMDBID)
	}
	if it.TMDBID > 0 {
		keys = append(keys, string(it.Type)+":"+strconv.FormatInt(it.TMDBID, 10))
	}
	return keys
}

func rankByQuery(items []models.CanonicalItem, query string) {
	scores := make(map[int]float64, len(items))
	for i := range items {
		items[i].Rank = i
		scores[i] = similarity.QueryScore(query, items[i].Title)
	}
	slices.SortStableFunc(items, func(a, b models.CanonicalItem) int {
		sa, sb := scores[a.Rank], scores[b.Rank]
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		}
		return 0
	})
	for i := range items {
		items[i].Rank = i + 1
	}
}
