package trakt

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"aiolists/models"
)

type searchResult struct {
	Type  string  `json:"type"`
	Score float64 `json:"score"`
	Movie *Media  `json:"movie,omitempty"`
	Show  *Media  `json:"show,omitempty"`
}

// Search queries Trakt's public text search. Results lacking both an IMDb
// and a TMDB id are dropped.
func (c *Client) Search(ctx context.Context, query string, hint models.TypeHint, limit int) ([]models.CanonicalItem, error) {
	scope := "movie,show"
	switch hint {
	case models.TypeHintMovie:
		scope = "movie"
	case models.TypeHintSeries:
		scope = "show"
	}
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("extended", "full")
	params.Set("limit", strconv.Itoa(limit))

	var results []searchResult
	endpoint := fmt.Sprintf("%s/search/%s?%s", c.baseURL, scope, params.Encode())
	if err := c.api.GetJSON(ctx, endpoint, c.headers(""), &results); err != nil {
		return nil, fmt.Errorf("trakt search: %w", err)
	}

	out := make([]models.CanonicalItem, 0, len(results))
	for _, r := range results {
		var (
			media *Media
			ct    models.ContentType
		)
		switch {
		case r.Type == "movie" && r.Movie != nil:
			media, ct = r.Movie, models.ContentTypeMovie
		case r.Type == "show" && r.Show != nil:
			media, ct = r.Show, models.ContentTypeSeries
		default:
			continue
		}
		if !hint.Matches(ct) {
			continue
		}
		item := toItem(media, ct, Entry{})
		item.ID = primaryID(item.IMDBID, item.TMDBID)
		if item.ID == "" {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
