package mdblist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"regexp"

	"aiolists/internal/batch"
	"aiolists/models"
)

// probeWindow bounds concurrent first-page probes during list discovery.
const probeWindow = 4

type rawList struct {
	ID        flexID `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Items     int    `json:"items"`
	Movies    int    `json:"movies"`
	Shows     int    `json:"shows"`
	MediaType string `json:"mediatype"`
	Private   *bool  `json:"private"`
	Public    *bool  `json:"public"`
	UserName  string `json:"user_name"`

	kind ListKind
}

func (l rawList) isPublic() bool {
	return (l.Private != nil && !*l.Private) || (l.Public != nil && *l.Public)
}

// Lists returns the user's own lists, their external lists and the
// watchlist. Content flags come from list metadata when MDBList reports it
// and from a first-page probe otherwise, so they agree with what FetchItems
// later returns.
func (c *Client) Lists(ctx context.Context, apiKey string) ([]models.ListSource, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	raw, err := c.userLists(ctx, apiKey)
	if err != nil {
		log.Printf("[mdblist] failed to list user lists: %v", err)
	}
	raw = append(raw, rawList{ID: "watchlist", Name: "My Watchlist", kind: KindWatchlist})

	kinds := make(map[string]ListKind, len(raw))
	for _, l := range raw {
		kinds[l.ID.String()] = l.kind
	}
	c.kinds.Set(keyHash(apiKey), kinds)

	return batch.Window(ctx, raw, probeWindow, func(ctx context.Context, l rawList) models.ListSource {
		src := models.ListSource{
			Kind:        models.SourceListHost,
			RawID:       l.ID.String(),
			DisplayName: l.Name,
			ListKind:    string(l.kind),
			Slug:        l.Slug,
		}
		src.HasMovies, src.HasShows = c.contentFlags(ctx, apiKey, l)
		return src
	}), nil
}

func (c *Client) contentFlags(ctx context.Context, apiKey string, l rawList) (bool, bool) {
	switch l.MediaType {
	case "movie":
		return true, false
	case "show":
		return false, true
	}
	if l.Movies > 0 || l.Shows > 0 {
		return l.Movies > 0, l.Shows > 0
	}
	res := c.FetchItems(ctx, Request{APIKey: apiKey, ListID: l.ID.String(), Kind: l.kind, Unified: true})
	if res == nil {
		return false, false
	}
	return res.HasMovies, res.HasShows
}

// userLists reads both list endpoints. It fails only when both do.
func (c *Client) userLists(ctx context.Context, apiKey string) ([]rawList, error) {
	endpoints := []struct {
		path string
		kind ListKind
	}{
		{"/lists/user", KindUser},
		{"/external/lists/user", KindExternal},
	}

	var out []rawList
	var errs []error
	for _, ep := range endpoints {
		var lists []rawList
		endpoint := c.apiBase + ep.path + "?apikey=" + url.QueryEscape(apiKey)
		if err := c.api.GetJSON(ctx, endpoint, nil, &lists); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ep.path, err))
			continue
		}
		for _, l := range lists {
			l.kind = ep.kind
			out = append(out, l)
		}
	}
	if len(errs) == len(endpoints) {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		log.Printf("[mdblist] partial list discovery: %v", err)
	}
	return out, nil
}

// PublicList is a list another MDBList user has shared publicly.
type PublicList struct {
	ID    string
	Slug  string
	Name  string
	Owner string
	Kind  ListKind
}

// ListsForUser returns the public, non-empty lists of username.
func (c *Client) ListsForUser(ctx context.Context, apiKey, username string) ([]PublicList, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	endpoints := []struct {
		path string
		kind ListKind
	}{
		{"/lists/user/%s", KindUser},
		{"/external/lists/user/%s", KindExternal},
	}

	var out []PublicList
	for _, ep := range endpoints {
		var lists []rawList
		endpoint := c.apiBase + fmt.Sprintf(ep.path, url.PathEscape(username)) + "?apikey=" + url.QueryEscape(apiKey)
		if err := c.api.GetJSON(ctx, endpoint, nil, &lists); err != nil {
			log.Printf("[mdblist] failed to fetch lists of %s (%s): %v", username, ep.kind, err)
			continue
		}
		for _, l := range lists {
			if !l.isPublic() || l.Items <= 0 {
				continue
			}
			out = append(out, PublicList{ID: l.ID.String(), Slug: l.Slug, Name: l.Name, Owner: username, Kind: ep.kind})
		}
	}
	return out, nil
}

var listURLPattern = regexp.MustCompile(`^https?://mdblist\.com/lists/([\w-]+)/([\w-]+)/?$`)

// ParseListURL extracts owner and slug from a public list URL such as
// https://mdblist.com/lists/owner/list-slug.
func ParseListURL(raw string) (owner, slug string, ok bool) {
	m := listURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
