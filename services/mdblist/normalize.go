package mdblist

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"aiolists/models"
)

// flexID decodes ids that MDBList sends either as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func (f flexID) String() string { return string(f) }

func (f flexID) Int64() int64 {
	n, _ := strconv.ParseInt(string(f), 10, 64)
	return n
}

// flexStrings accepts a list of strings, a comma separated string, or a list
// of {name} objects.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	*f = nil
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*f = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				*f = append(*f, p)
			}
		}
		return nil
	}
	var named []struct {
		Name  string `json:"name"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(b, &named); err != nil {
		// genre data is optional, an unknown shape is ignored
		return nil
	}
	for _, n := range named {
		if n.Name != "" {
			*f = append(*f, n.Name)
		} else if n.Title != "" {
			*f = append(*f, n.Title)
		}
	}
	return nil
}

type rawItem struct {
	ID          flexID      `json:"id"`
	Rank        int         `json:"rank"`
	Title       string      `json:"title"`
	IMDBID      string      `json:"imdb_id"`
	IMDBIDAlt   string      `json:"imdbid"`
	TVDBID      flexID      `json:"tvdb_id"`
	TVDBIDAlt   flexID      `json:"tvdbid"`
	TMDBID      flexID      `json:"tmdb_id"`
	Type        string      `json:"type"`
	MediaType   string      `json:"mediatype"`
	MediaTypeV2 string      `json:"media_type"`
	ReleaseYear flexID      `json:"release_year"`
	Genre       flexStrings `json:"genre"`
	Genres      flexStrings `json:"genres"`

	// forced is set when the response shape already tells the type
	forced models.ContentType
}

// typeFunc decides the content type of one raw entry.
type typeFunc func(rawItem) models.ContentType

func apiType(r rawItem) models.ContentType {
	if r.forced != "" {
		return r.forced
	}
	if r.Type == "show" || r.MediaType == "show" || r.MediaTypeV2 == "show" {
		return models.ContentTypeSeries
	}
	return models.ContentTypeMovie
}

func publicType(r rawItem) models.ContentType {
	if r.MediaType == "show" || r.MediaType == "series" {
		return models.ContentTypeSeries
	}
	return models.ContentTypeMovie
}

type itemsEnvelope struct {
	Movies  []rawItem `json:"movies"`
	Shows   []rawItem `json:"shows"`
	Items   []rawItem `json:"items"`
	Results []rawItem `json:"results"`
	Error   string    `json:"error"`
}

var errUnexpectedShape = errors.New("unexpected items payload shape")

// parseItems understands the three shapes the items endpoints return: a
// {movies, shows} object, a bare array, or an {items|results} object.
func parseItems(raw json.RawMessage) ([]models.CanonicalItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []models.CanonicalItem{}, nil
	}

	switch trimmed[0] {
	case '[':
		var list []rawItem
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return normalizeAll(list, apiType), nil
	case '{':
		var env itemsEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, err
		}
		if env.Error != "" {
			return nil, errors.New(env.Error)
		}
		var list []rawItem
		for _, m := range env.Movies {
			m.forced = models.ContentTypeMovie
			list = append(list, m)
		}
		for _, s := range env.Shows {
			s.forced = models.ContentTypeSeries
			list = append(list, s)
		}
		if len(list) == 0 {
			list = env.Items
			if len(list) == 0 {
				list = env.Results
			}
		}
		return normalizeAll(list, apiType), nil
	default:
		return nil, errUnexpectedShape
	}
}

func normalizeAll(raw []rawItem, typeOf typeFunc) []models.CanonicalItem {
	out := make([]models.CanonicalItem, 0, len(raw))
	for _, r := range raw {
		if it, ok := normalize(r, typeOf); ok {
			out = append(out, it)
		}
	}
	return out
}

// normalize maps one raw entry onto a canonical item. Entries without an
// IMDb id are dropped.
func normalize(r rawItem, typeOf typeFunc) (models.CanonicalItem, bool) {
	imdbID := strings.TrimSpace(r.IMDBID)
	if imdbID == "" {
		imdbID = strings.TrimSpace(r.IMDBIDAlt)
	}
	if imdbID == "" {
		return models.CanonicalItem{}, false
	}

	tvdb := r.TVDBID.Int64()
	if tvdb == 0 {
		tvdb = r.TVDBIDAlt.Int64()
	}
	genres := []string(r.Genre)
	if len(genres) == 0 {
		genres = r.Genres
	}
	year := ""
	if y := r.ReleaseYear.Int64(); y > 0 {
		year = strconv.FormatInt(y, 10)
	}

	return models.CanonicalItem{
		ID:     imdbID,
		IMDBID: imdbID,
		TMDBID: r.TMDBID.Int64(),
		TVDBID: tvdb,
		Type:   typeOf(r),
		Title:  r.Title,
		Year:   year,
		Genres: genres,
		Rank:   r.Rank,
	}, true
}
