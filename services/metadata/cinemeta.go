package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"aiolists/internal/batch"
	"aiolists/internal/upstream"
	"aiolists/models"
)

const (
	cinemetaBaseURL = "https://v3-cinemeta.strem.io"
	cinemetaTimeout = 5 * time.Second
	// CinemetaBatchSize caps concurrent Cinemeta requests.
	CinemetaBatchSize = 10
)

var (
	imdbIDPattern     = regexp.MustCompile(`^tt\d{7,9}$`)
	bareIMDBIDPattern = regexp.MustCompile(`^\d{7,9}$`)
)

// normalizeIMDBID returns a canonical tt id, accepting bare digits, or "".
func normalizeIMDBID(id string) string {
	id = strings.TrimSpace(id)
	switch {
	case imdbIDPattern.MatchString(id):
		return id
	case bareIMDBIDPattern.MatchString(id):
		return "tt" + id
	}
	return ""
}

type cinemetaClient struct {
	api     *upstream.Client
	baseURL string
	window  int
}

// cinemetaMeta mirrors the loosely typed meta objects Cinemeta serves.
type cinemetaMeta struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Poster        string            `json:"poster"`
	Background    string            `json:"background"`
	Logo          string            `json:"logo"`
	ReleaseInfo   json.RawMessage   `json:"releaseInfo"`
	Year          json.RawMessage   `json:"year"`
	Released      string            `json:"released"`
	IMDBRating    json.RawMessage   `json:"imdbRating"`
	Runtime       string            `json:"runtime"`
	Genres        []string          `json:"genres"`
	Genre         []string          `json:"genre"`
	Cast          []string          `json:"cast"`
	Director      json.RawMessage   `json:"director"`
	Writer        json.RawMessage   `json:"writer"`
	Country       string            `json:"country"`
	Status        string            `json:"status"`
	TVDBID        json.RawMessage   `json:"tvdb_id"`
	MovieDBID     json.RawMessage   `json:"moviedb_id"`
	Videos        []cinemetaVideo   `json:"videos"`
	TrailerStream []cinemetaTrailer `json:"trailerStreams"`
}

type cinemetaVideo struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Title     string          `json:"title"`
	Season    int             `json:"season"`
	Episode   int             `json:"episode"`
	Number    int             `json:"number"`
	Released  string          `json:"released"`
	Thumbnail string          `json:"thumbnail"`
	Overview  string          `json:"overview"`
	Rating    json.RawMessage `json:"rating"`
}

type cinemetaTrailer struct {
	Title string `json:"title"`
	YtID  string `json:"ytId"`
}

type cinemetaResponse struct {
	Meta *cinemetaMeta `json:"meta"`
}

// fetch returns the Cinemeta records for ids, keyed by IMDb id. Each request
// has its own timeout; failures are simply absent from the result.
func (c *cinemetaClient) fetch(ctx context.Context, ids []string, ct models.ContentType) map[string]cinemetaMeta {
	type fetched struct {
		id   string
		meta *cinemetaMeta
	}
	results := batch.Window(ctx, ids, c.window, func(ctx context.Context, id string) fetched {
		ctx, cancel := context.WithTimeout(ctx, cinemetaTimeout)
		defer cancel()
		var resp cinemetaResponse
		endpoint := fmt.Sprintf("%s/meta/%s/%s.json", c.baseURL, url.PathEscape(string(ct)), url.PathEscape(id))
		if err := c.api.GetJSON(ctx, endpoint, nil, &resp); err != nil {
			return fetched{id: id}
		}
		return fetched{id: id, meta: resp.Meta}
	})
	out := make(map[string]cinemetaMeta, len(results))
	for _, r := range results {
		if r.meta != nil {
			out[r.id] = *r.meta
		}
	}
	return out
}

// apply overlays a Cinemeta record onto item. List fields survive where
// Cinemeta has nothing; type and ids are never replaced.
func (m cinemetaMeta) apply(item models.CanonicalItem, imdbID string) models.CanonicalItem {
	item.ID = imdbID
	item.IMDBID = imdbID
	setString(&item.Title, m.Name)
	setString(&item.Overview, m.Description)
	setString(&item.Poster, m.Poster)
	setString(&item.Background, m.Background)
	setString(&item.Logo, m.Logo)
	setString(&item.Released, m.Released)
	setString(&item.Runtime, m.Runtime)
	setString(&item.Country, m.Country)
	setString(&item.Status, m.Status)
	if s := looseString(m.ReleaseInfo); s != "" {
		item.ReleaseInfo = s
	}
	if s := looseString(m.Year); s != "" {
		item.Year = s
	}
	if r, err := strconv.ParseFloat(looseString(m.IMDBRating), 64); err == nil && r > 0 {
		item.Rating = r
	}
	if g := dedupe(append(append([]string(nil), m.Genres...), m.Genre...)); len(g) > 0 {
		item.Genres = g
	}
	if len(m.Cast) > 0 {
		item.Cast = m.Cast
	}
	if d := looseStrings(m.Director); len(d) > 0 {
		item.Director = d
	}
	if w := looseStrings(m.Writer); len(w) > 0 {
		item.Writer = w
	}
	if item.TVDBID == 0 {
		item.TVDBID, _ = strconv.ParseInt(looseString(m.TVDBID), 10, 64)
	}
	if item.TMDBID == 0 {
		item.TMDBID, _ = strconv.ParseInt(looseString(m.MovieDBID), 10, 64)
	}
	var trailers []models.TrailerStream
	for _, t := range m.TrailerStream {
		if t.YtID != "" {
			trailers = append(trailers, models.TrailerStream{Title: t.Title, YtID: t.YtID})
		}
	}
	if len(trailers) > 0 {
		item.Trailers = trailers
	}
	if item.Type == models.ContentTypeSeries && len(m.Videos) > 0 {
		videos := make([]models.Video, 0, len(m.Videos))
		for _, v := range m.Videos {
			name := v.Name
			if name == "" {
				name = v.Title
			}
			episode := v.Episode
			if episode == 0 {
				episode = v.Number
			}
			videos = append(videos, models.Video{
				ID:        v.ID,
				Name:      name,
				Season:    v.Season,
				Episode:   episode,
				Released:  v.Released,
				Thumbnail: v.Thumbnail,
				Overview:  v.Overview,
				Rating:    looseString(v.Rating),
			})
		}
		item.Videos = videos
	}
	return item
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// looseString reads a JSON string or number as text.
func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// looseStrings reads a JSON string list or a comma separated string.
func looseStrings(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var out []string
	for _, part := range strings.Split(looseString(raw), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

type cinemetaSearchMeta struct {
	ID     string `json:"id"`
	IMDBID string `json:"imdb_id"`
	Type   string `json:"type"`
	cinemetaMeta
}

type cinemetaCatalogResponse struct {
	Metas []cinemetaSearchMeta `json:"metas"`
}

// search runs Cinemeta's catalog search for one content type.
func (c *cinemetaClient) search(ctx context.Context, query string, ct models.ContentType) ([]models.CanonicalItem, error) {
	ctx, cancel := context.WithTimeout(ctx, cinemetaTimeout)
	defer cancel()
	endpoint := fmt.Sprintf("%s/catalog/%s/top/search=%s.json", c.baseURL, url.PathEscape(string(ct)), url.PathEscape(query))
	var resp cinemetaCatalogResponse
	if err := c.api.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("cinemeta search %s: %w", ct, err)
	}
	out := make([]models.CanonicalItem, 0, len(resp.Metas))
	for _, m := range resp.Metas {
		id := normalizeIMDBID(m.IMDBID)
		if id == "" {
			id = normalizeIMDBID(m.ID)
		}
		if id == "" {
			continue
		}
		out = append(out, m.apply(models.CanonicalItem{Type: ct}, id))
	}
	return out, nil
}
