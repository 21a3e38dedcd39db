package metadata

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"aiolists/internal/batch"
	"aiolists/internal/ttlcache"
	"aiolists/internal/upstream"
	"aiolists/utils/genre"
)

const (
	rpdbBaseURL = "https://api.ratingposterdb.com"
	// rpdbFreeKey is the shared tier; it does not support localized posters.
	rpdbFreeKey = "t0-free-rpdb"
)

type rpdbClient struct {
	api     *upstream.Client
	baseURL string
	window  int
	cache   *ttlcache.Cache[string]
}

func (c *rpdbClient) posterURL(apiKey, imdbID, language string) string {
	u := fmt.Sprintf("%s/%s/imdb/poster-default/%s.jpg", c.baseURL, url.PathEscape(apiKey), url.PathEscape(imdbID))
	q := url.Values{"fallback": {"true"}}
	if lang := genre.Prefix(language); lang != "" && apiKey != rpdbFreeKey {
		q.Set("lang", lang)
	}
	return u + "?" + q.Encode()
}

// posters checks which ids have an RPDB poster and returns their URLs. Ids
// without one, or whose check failed, are absent.
func (c *rpdbClient) posters(ctx context.Context, apiKey string, imdbIDs []string, language string) map[string]string {
	if apiKey == "" || len(imdbIDs) == 0 {
		return map[string]string{}
	}
	type checked struct {
		id  string
		url string
	}
	results := batch.Window(ctx, imdbIDs, c.window, func(ctx context.Context, id string) checked {
		poster := c.posterURL(apiKey, id, language)
		found, _, err := c.cache.GetOrLoad(ctx, poster, func(ctx context.Context) (string, bool, error) {
			status, err := c.api.Head(ctx, poster)
			if err != nil {
				return "", false, err
			}
			if status != http.StatusOK {
				return "", false, nil
			}
			return poster, true, nil
		})
		if err != nil {
			log.Printf("[metadata] rpdb check for %s failed: %v", id, err)
		}
		return checked{id: id, url: found}
	})
	out := make(map[string]string, len(results))
	for _, r := range results {
		if r.url != "" {
			out[r.id] = r.url
		}
	}
	return out
}
