package tmdb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/sourcegraph/conc"

	"aiolists/internal/batch"
	"aiolists/models"
)

// Account carries the per-user TMDB session.
type Account struct {
	Bearer    string
	SessionID string
	AccountID string
	Language  string
}

func (a Account) connected() bool {
	return a.SessionID != "" && a.AccountID != ""
}

func (a Account) language() string {
	if a.Language == "" {
		return "en-US"
	}
	return a.Language
}

// ListKind selects one of the account list families.
type ListKind string

const (
	ListWatchlist ListKind = "watchlist"
	ListFavorites ListKind = "favorites"
	ListCustom    ListKind = "list"
)

// Request describes one page of one account list.
type Request struct {
	Account
	Kind   ListKind
	ListID string
	Skip   int
	Sort   string
	Order  string
}

type listsResponse struct {
	Results []struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		ItemCount int    `json:"item_count"`
	} `json:"results"`
}

// Lists returns the watchlist, favorites and the account's own lists. Flags
// are computed by fetching each list's first page through FetchItems.
func (c *Client) Lists(ctx context.Context, acct Account) ([]models.ListSource, error) {
	if !acct.connected() {
		return nil, ErrNoCredential
	}

	sources := []models.ListSource{
		{Kind: models.SourceAccountMeta, RawID: string(ListWatchlist), DisplayName: "TMDB Watchlist", ListKind: string(ListWatchlist)},
		{Kind: models.SourceAccountMeta, RawID: string(ListFavorites), DisplayName: "TMDB Favorites", ListKind: string(ListFavorites)},
	}
	var resp listsResponse
	params := url.Values{"session_id": {acct.SessionID}, "page": {"1"}}
	if err := c.get(ctx, acct.Bearer, "/account/"+url.PathEscape(acct.AccountID)+"/lists", params, &resp); err != nil {
		log.Printf("[tmdb] failed to fetch account lists: %v", err)
	}
	for _, l := range resp.Results {
		sources = append(sources, models.ListSource{
			Kind:        models.SourceAccountMeta,
			RawID:       strconv.FormatInt(l.ID, 10),
			DisplayName: l.Name,
			ListKind:    string(ListCustom),
		})
	}

	return batch.Window(ctx, sources, 4, func(ctx context.Context, src models.ListSource) models.ListSource {
		res := c.FetchItems(ctx, Request{Account: acct, Kind: ListKind(src.ListKind), ListID: src.RawID})
		if res != nil {
			src.HasMovies, src.HasShows = res.HasMovies, res.HasShows
		}
		return src
	}), nil
}

type listItem struct {
	ID               int64   `json:"id"`
	MediaType        string  `json:"media_type"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	VoteAverage      float64 `json:"vote_average"`
	GenreIDs         []int   `json:"genre_ids"`
	OriginalLanguage string  `json:"original_language"`
}

// contentType infers the type from the shape of the entry; account
// endpoints do not tag it reliably.
func (it listItem) contentType() models.ContentType {
	if it.MediaType == "tv" {
		return models.ContentTypeSeries
	}
	if it.MediaType == "movie" || (it.Title != "" && it.Name == "") || (it.ReleaseDate != "" && it.FirstAirDate == "") {
		return models.ContentTypeMovie
	}
	return models.ContentTypeSeries
}

type pagedResponse struct {
	Results []listItem `json:"results"`
	Items   []listItem `json:"items"`
}

// FetchItems returns one catalog page of an account list. Nil means the
// list is unavailable.
func (c *Client) FetchItems(ctx context.Context, req Request) *models.ContentResult {
	items, err := c.fetch(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			log.Printf("[tmdb] %s list %s skipped: account not connected", req.Kind, req.ListID)
		} else {
			log.Printf("[tmdb] failed to fetch %s list %s: %v", req.Kind, req.ListID, err)
		}
		return nil
	}
	return models.NewContentResult(items)
}

func (c *Client) fetch(ctx context.Context, req Request) ([]models.CanonicalItem, error) {
	if !req.connected() || !c.Configured(req.Bearer) {
		return nil, ErrNoCredential
	}
	params := url.Values{
		"session_id": {req.SessionID},
		"page":       {strconv.Itoa(req.Skip/ItemsPerPage + 1)},
		"language":   {req.language()},
	}
	account := url.PathEscape(req.AccountID)

	var raw []listItem
	switch req.Kind {
	case ListWatchlist, ListFavorites:
		segment := "watchlist"
		if req.Kind == ListFavorites {
			segment = "favorite"
		}
		if req.Sort != "" {
			order := req.Order
			if order == "" {
				order = "desc"
			}
			params.Set("sort_by", req.Sort+"."+order)
		}
		var movies, tv pagedResponse
		var movieErr, tvErr error
		var wg conc.WaitGroup
		wg.Go(func() {
			movieErr = c.get(ctx, req.Bearer, fmt.Sprintf("/account/%s/%s/movies", account, segment), params, &movies)
		})
		wg.Go(func() {
			tvErr = c.get(ctx, req.Bearer, fmt.Sprintf("/account/%s/%s/tv", account, segment), params, &tv)
		})
		wg.Wait()
		if movieErr != nil && tvErr != nil {
			return nil, errors.Join(movieErr, tvErr)
		}
		for _, m := range movies.Results {
			m.MediaType = "movie"
			raw = append(raw, m)
		}
		for _, s := range tv.Results {
			s.MediaType = "tv"
			raw = append(raw, s)
		}
	case ListCustom:
		if req.ListID == "" {
			return nil, errors.New("custom list needs an id")
		}
		var resp pagedResponse
		if err := c.get(ctx, req.Bearer, "/list/"+url.PathEscape(req.ListID), params, &resp); err != nil {
			return nil, err
		}
		raw = resp.Items
	default:
		return nil, fmt.Errorf("unsupported list kind %q", req.Kind)
	}

	return c.toItems(ctx, req.Bearer, req.language(), raw), nil
}

// toItems converts raw entries and resolves their IMDb ids with windowed
// concurrency. Entries without an IMDb id keep their tmdb: id.
func (c *Client) toItems(ctx context.Context, bearer, language string, raw []listItem) []models.CanonicalItem {
	genreNames := map[int]string{}
	if table, err := c.genreTable(ctx, bearer, language); err == nil {
		genreNames = table.ByID
	}
	valid := raw[:0]
	for _, it := range raw {
		if it.ID != 0 {
			valid = append(valid, it)
		}
	}

	return batch.Window(ctx, valid, lookupWindow, func(ctx context.Context, it listItem) models.CanonicalItem {
		ct := it.contentType()
		item := models.CanonicalItem{
			TMDBID:           it.ID,
			Type:             ct,
			Overview:         it.Overview,
			Poster:           c.image(it.PosterPath, tmdbPosterSize),
			Background:       c.image(it.BackdropPath, tmdbOriginalSize),
			Rating:           it.VoteAverage,
			OriginalLanguage: it.OriginalLanguage,
		}
		if ct == models.ContentTypeMovie {
			item.Title = it.Title
			item.Year = yearOf(it.ReleaseDate)
			item.Released = it.ReleaseDate
		} else {
			item.Title = it.Name
			item.Year = yearOf(it.FirstAirDate)
			item.Released = it.FirstAirDate
		}
		for _, id := range it.GenreIDs {
			if name, ok := genreNames[id]; ok {
				item.Genres = append(item.Genres, name)
			}
		}

		ids, err := c.ExternalIDsFor(ctx, bearer, it.ID, ct)
		if err == nil {
			item.IMDBID = ids.IMDBID
			item.TVDBID = ids.TVDBID
		}
		item.ID = primaryID(item.IMDBID, item.TMDBID)
		return item
	})
}
