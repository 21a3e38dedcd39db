package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"aiolists/models"
)

// Search runs a text search in language. Movie and series hints search one
// media type; anything else uses the multi endpoint and drops people.
func (c *Client) Search(ctx context.Context, bearer, query string, hint models.TypeHint, language string) ([]models.CanonicalItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.CanonicalItem{}, nil
	}
	if language == "" {
		language = "en-US"
	}
	segment := "multi"
	switch hint {
	case models.TypeHintMovie:
		segment = "movie"
	case models.TypeHintSeries:
		segment = "tv"
	}
	params := url.Values{
		"query":         {query},
		"language":      {language},
		"include_adult": {"false"},
		"page":          {"1"},
	}
	var resp pagedResponse
	if err := c.get(ctx, bearer, "/search/"+segment, params, &resp); err != nil {
		return nil, fmt.Errorf("tmdb search: %w", err)
	}

	raw := make([]listItem, 0, len(resp.Results))
	for _, it := range resp.Results {
		switch segment {
		case "movie":
			it.MediaType = "movie"
		case "tv":
			it.MediaType = "tv"
		default:
			if it.MediaType != "movie" && it.MediaType != "tv" {
				continue
			}
		}
		raw = append(raw, it)
	}
	return c.toItems(ctx, bearer, language, raw), nil
}
