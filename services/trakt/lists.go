package trakt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"aiolists/internal/batch"
	"aiolists/internal/upstream"
	"aiolists/models"
)

// Kind selects one of the Trakt list families.
type Kind int

const (
	KindUserList Kind = iota
	KindWatchlist
	KindRecommendations
	KindTrending
	KindPopular
	KindPublicList
)

func (k Kind) String() string {
	switch k {
	case KindUserList:
		return "list"
	case KindWatchlist:
		return "watchlist"
	case KindRecommendations:
		return "recommendations"
	case KindTrending:
		return "trending"
	case KindPopular:
		return "popular"
	case KindPublicList:
		return "public"
	default:
		return "unknown"
	}
}

// public reports whether the endpoint works without an access token.
func (k Kind) public() bool {
	return k == KindTrending || k == KindPopular || k == KindPublicList
}

// resolveWindow bounds concurrent IMDb id lookups for one page.
const resolveWindow = 10

// Request describes one page of one Trakt list.
type Request struct {
	Kind Kind
	// Slug is the list slug for user and public lists.
	Slug string
	// User owns a public list.
	User        string
	AccessToken string
	Skip        int
	Sort        string
	Order       string
	Genre       string
	TypeHint    models.TypeHint
	// MediaType is the fixed content type of recommendations, trending and
	// popular lists.
	MediaType  models.ContentType
	TMDBBearer string
}

var publicSorts = []string{"rank", "added", "title", "released", "runtime", "popularity", "votes", "random"}

// FetchItems returns one catalog page of a Trakt list. Nil means the list is
// unavailable.
func (c *Client) FetchItems(ctx context.Context, req Request) *models.ContentResult {
	items, err := c.fetch(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			log.Printf("[trakt] %s list %q skipped: no access token", req.Kind, req.Slug)
		} else {
			log.Printf("[trakt] failed to fetch %s list %q: %v", req.Kind, req.Slug, err)
		}
		return nil
	}
	return models.NewContentResult(items)
}

func (c *Client) fetch(ctx context.Context, req Request) ([]models.CanonicalItem, error) {
	if !req.Kind.public() && req.AccessToken == "" {
		return nil, ErrNoCredential
	}
	endpoint, err := c.itemsURL(req)
	if err != nil {
		return nil, err
	}
	token := req.AccessToken
	if req.Kind.public() {
		token = ""
	}

	var entries []Entry
	if err := c.api.GetJSON(ctx, endpoint, c.headers(token), &entries); err != nil {
		if upstream.IsMalformed(err) {
			log.Printf("[trakt] malformed %s payload: %v", req.Kind, err)
			return []models.CanonicalItem{}, nil
		}
		if upstream.IsStatus(err, http.StatusNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	items := c.mapEntries(ctx, req, entries)
	if req.Kind == KindWatchlist && req.Sort == "added" {
		sortByListedAt(items, req.Order)
	}
	return items, nil
}

func (c *Client) itemsURL(req Request) (string, error) {
	page := req.Skip/ItemsPerPage + 1
	params := url.Values{}
	params.Set("limit", strconv.Itoa(ItemsPerPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("extended", "full")

	var path string
	switch req.Kind {
	case KindPublicList:
		if req.User == "" || req.Slug == "" {
			return "", errors.New("public list needs user and slug")
		}
		path = fmt.Sprintf("/users/%s/lists/%s/items%s", url.PathEscape(req.User), url.PathEscape(req.Slug), typeSegment(req.TypeHint))
		if slices.Contains(publicSorts, req.Sort) {
			params.Set("sort_by", req.Sort)
			if req.Order != "" {
				params.Set("sort_how", req.Order)
			}
		}
	case KindWatchlist:
		scope := "all"
		switch req.TypeHint {
		case models.TypeHintMovie:
			scope = "movies"
		case models.TypeHintSeries:
			scope = "shows"
		}
		sortBy, order := req.Sort, req.Order
		if sortBy == "" {
			sortBy = "rank"
		}
		if order == "" {
			order = "asc"
		}
		path = fmt.Sprintf("/sync/watchlist/%s/%s/%s", scope, url.PathEscape(sortBy), url.PathEscape(order))
	case KindRecommendations, KindTrending, KindPopular:
		segment := "movies"
		if req.MediaType == models.ContentTypeSeries {
			segment = "shows"
		}
		switch req.Kind {
		case KindRecommendations:
			path = "/recommendations/" + segment
		case KindTrending:
			path = "/" + segment + "/trending"
		default:
			path = "/" + segment + "/popular"
		}
		if g := genreParam(req.Genre); g != "" {
			params.Set("genres", g)
		}
	case KindUserList:
		if req.Slug == "" {
			return "", errors.New("user list needs a slug")
		}
		path = fmt.Sprintf("/users/me/lists/%s/items%s", url.PathEscape(req.Slug), typeSegment(req.TypeHint))
		if req.Sort != "" {
			params.Set("sort_by", req.Sort)
		}
		if req.Order != "" {
			params.Set("sort_how", req.Order)
		}
	default:
		return "", fmt.Errorf("unsupported list kind %d", req.Kind)
	}
	return c.baseURL + path + "?" + params.Encode(), nil
}

func typeSegment(hint models.TypeHint) string {
	switch hint {
	case models.TypeHintMovie:
		return "/movies"
	case models.TypeHintSeries:
		return "/shows"
	default:
		return ""
	}
}

var whitespace = regexp.MustCompile(`\s+`)

func genreParam(g string) string {
	g = strings.TrimSpace(g)
	if g == "" || strings.EqualFold(g, "all") {
		return ""
	}
	return whitespace.ReplaceAllString(strings.ToLower(g), "-")
}

// mapEntries converts raw entries, resolving missing IMDb ids through the
// configured resolver. Entries without any usable id are dropped.
func (c *Client) mapEntries(ctx context.Context, req Request, entries []Entry) []models.CanonicalItem {
	mapped := batch.Window(ctx, entries, resolveWindow, func(ctx context.Context, e Entry) *models.CanonicalItem {
		media, ct, ok := resolveEntry(e, req.Kind, req.MediaType)
		if !ok || !req.TypeHint.Matches(ct) {
			return nil
		}
		item := toItem(media, ct, e)
		if item.IMDBID == "" && item.TMDBID != 0 && c.resolver != nil {
			imdbID, err := c.resolver.IMDBIDFor(ctx, req.TMDBBearer, item.TMDBID, ct)
			if err != nil {
				log.Printf("[trakt] imdb lookup for tmdb %d failed: %v", item.TMDBID, err)
			}
			item.IMDBID = imdbID
		}
		item.ID = primaryID(item.IMDBID, item.TMDBID)
		if item.ID == "" {
			return nil
		}
		return &item
	})

	out := make([]models.CanonicalItem, 0, len(mapped))
	for _, it := range mapped {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out
}

// resolveEntry picks the media object and content type of one entry.
func resolveEntry(e Entry, kind Kind, fixed models.ContentType) (*Media, models.ContentType, bool) {
	switch {
	case e.Type == "movie" && e.Movie != nil:
		return e.Movie, models.ContentTypeMovie, true
	case e.Type == "show" && e.Show != nil:
		return e.Show, models.ContentTypeSeries, true
	case e.Type == "episode" && e.Episode != nil && e.Show != nil:
		return e.Show, models.ContentTypeSeries, true
	case e.Type == "season" && e.Season != nil && e.Show != nil:
		return e.Show, models.ContentTypeSeries, true
	}

	switch kind {
	case KindTrending:
		if fixed == models.ContentTypeMovie && validMedia(e.Movie) {
			return e.Movie, models.ContentTypeMovie, true
		}
		if fixed == models.ContentTypeSeries && validMedia(e.Show) {
			return e.Show, models.ContentTypeSeries, true
		}
	case KindRecommendations, KindPopular:
		if fixed != "" && validMedia(&e.Media) {
			m := e.Media
			return &m, fixed, true
		}
	}
	return nil, "", false
}

func validMedia(m *Media) bool {
	return m != nil && m.Title != "" && m.Year > 0 && (m.IDs.IMDB != "" || m.IDs.TMDB != 0 || m.IDs.Trakt != 0)
}

func sortByListedAt(items []models.CanonicalItem, order string) {
	sort.SliceStable(items, func(i, j int) bool {
		if order == "asc" {
			return items[i].ListedAt.Before(items[j].ListedAt)
		}
		return items[j].ListedAt.Before(items[i].ListedAt)
	})
}

type userList struct {
	Name string `json:"name"`
	IDs  struct {
		Trakt int    `json:"trakt"`
		Slug  string `json:"slug"`
	} `json:"ids"`
	ItemCount int `json:"item_count"`
}

// Lists returns the user's custom lists followed by the special lists. User
// lists may hold both movies and shows; special lists have fixed content.
func (c *Client) Lists(ctx context.Context, accessToken string) ([]models.ListSource, error) {
	if accessToken == "" {
		return nil, ErrNoCredential
	}
	var lists []userList
	if err := c.api.GetJSON(ctx, c.baseURL+"/users/me/lists", c.headers(accessToken), &lists); err != nil {
		return nil, fmt.Errorf("trakt lists: %w", err)
	}

	out := make([]models.ListSource, 0, len(lists)+7)
	for _, l := range lists {
		if l.IDs.Slug == "" {
			continue
		}
		out = append(out, models.ListSource{
			Kind:        models.SourceTracking,
			RawID:       l.IDs.Slug,
			DisplayName: l.Name,
			ListKind:    KindUserList.String(),
			Slug:        l.IDs.Slug,
			HasMovies:   true,
			HasShows:    true,
		})
	}
	return append(out, SpecialLists()...), nil
}

// SpecialLists are the watchlist, recommendation, trending and popular
// lists every Trakt account has.
func SpecialLists() []models.ListSource {
	special := func(kind Kind, media, name string, movies, shows bool) models.ListSource {
		return models.ListSource{
			Kind:        models.SourceTracking,
			RawID:       media,
			DisplayName: name,
			ListKind:    kind.String(),
			HasMovies:   movies,
			HasShows:    shows,
		}
	}
	return []models.ListSource{
		special(KindWatchlist, "", "Trakt Watchlist", true, true),
		special(KindRecommendations, "movies", "Recommended Movies", true, false),
		special(KindRecommendations, "shows", "Recommended Shows", false, true),
		special(KindTrending, "movies", "Trending Movies", true, false),
		special(KindTrending, "shows", "Trending Shows", false, true),
		special(KindPopular, "movies", "Popular Movies", true, false),
		special(KindPopular, "shows", "Popular Shows", false, true),
	}
}

// PublicListInfo describes a public list and which content it holds.
type PublicListInfo struct {
	User      string
	Slug      string
	Name      string
	ItemCount int
	HasMovies bool
	HasShows  bool
}

// PublicList loads a public list's details and samples up to ten items to
// learn its content types.
func (c *Client) PublicList(ctx context.Context, user, slug string) (*PublicListInfo, error) {
	var details userList
	endpoint := fmt.Sprintf("%s/users/%s/lists/%s", c.baseURL, url.PathEscape(user), url.PathEscape(slug))
	if err := c.api.GetJSON(ctx, endpoint, c.headers(""), &details); err != nil {
		if upstream.IsStatus(err, http.StatusNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("trakt public list %s/%s: %w", user, slug, err)
	}

	info := &PublicListInfo{User: user, Slug: slug, Name: details.Name, ItemCount: details.ItemCount}
	if details.IDs.Slug != "" {
		info.Slug = details.IDs.Slug
	}
	if details.ItemCount == 0 {
		return info, nil
	}

	var sample []Entry
	sampleURL := fmt.Sprintf("%s/users/%s/lists/%s/items?limit=%d&extended=full", c.baseURL, url.PathEscape(user), url.PathEscape(info.Slug), min(details.ItemCount, 10))
	if err := c.api.GetJSON(ctx, sampleURL, c.headers(""), &sample); err != nil {
		return nil, fmt.Errorf("trakt public list sample %s/%s: %w", user, slug, err)
	}
	for _, e := range sample {
		if e.Type == "movie" && e.Movie != nil {
			info.HasMovies = true
		}
		if e.Type == "show" && e.Show != nil {
			info.HasShows = true
		}
	}
	return info, nil
}

var listURLPattern = regexp.MustCompile(`^https?://trakt\.tv/users/([\w-]+)/lists/([\w-]+)/?$`)

// ParseListURL extracts user and slug from a public list URL such as
// https://trakt.tv/users/someone/lists/favourites. Query strings are ignored.
func ParseListURL(raw string) (user, slug string, ok bool) {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	m := listURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
