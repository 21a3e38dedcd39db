package metadata

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"aiolists/internal/ttlcache"
	"aiolists/internal/upstream"
	"aiolists/utils/genre"
)

const fanartBaseURL = "https://webservice.fanart.tv/v3"

type fanartImage struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Lang  string `json:"lang"`
	Likes string `json:"likes"`
}

type fanartResponse struct {
	HDMovieLogo     []fanartImage `json:"hdmovielogo"`
	MovieLogo       []fanartImage `json:"movielogo"`
	MovieBackground []fanartImage `json:"moviebackground"`
	MoviePoster     []fanartImage `json:"movieposter"`

	HDTVLogo       []fanartImage `json:"hdtvlogo"`
	ClearLogo      []fanartImage `json:"clearlogo"`
	ShowBackground []fanartImage `json:"showbackground"`
	TVPoster       []fanartImage `json:"tvposter"`
}

// artwork is the image triple picked for one title.
type artwork struct {
	Logo       string
	Background string
	Poster     string
}

type fanartClient struct {
	api     *upstream.Client
	baseURL string
	apiKey  string
	cache   *ttlcache.Cache[fanartResponse]
}

func (c *fanartClient) enabled() bool {
	return c != nil && c.apiKey != ""
}

func (c *fanartClient) movie(ctx context.Context, tmdbID int64, language, originalLanguage string) artwork {
	if !c.enabled() || tmdbID <= 0 {
		return artwork{}
	}
	res, ok := c.load(ctx, "movies", strconv.FormatInt(tmdbID, 10))
	if !ok {
		return artwork{}
	}
	return artwork{
		Logo:       pickImage(concat(res.HDMovieLogo, res.MovieLogo), language, originalLanguage),
		Background: pickImage(res.MovieBackground, language, originalLanguage),
		Poster:     pickImage(res.MoviePoster, language, originalLanguage),
	}
}

func (c *fanartClient) show(ctx context.Context, tvdbID int64, language, originalLanguage string) artwork {
	if !c.enabled() || tvdbID <= 0 {
		return artwork{}
	}
	res, ok := c.load(ctx, "tv", strconv.FormatInt(tvdbID, 10))
	if !ok {
		return artwork{}
	}
	return artwork{
		Logo:       pickImage(concat(res.HDTVLogo, res.ClearLogo), language, originalLanguage),
		Background: pickImage(res.ShowBackground, language, originalLanguage),
		Poster:     pickImage(res.TVPoster, language, originalLanguage),
	}
}

func (c *fanartClient) load(ctx context.Context, kind, id string) (fanartResponse, bool) {
	res, found, err := c.cache.GetOrLoad(ctx, kind+":"+id, func(ctx context.Context) (fanartResponse, bool, error) {
		var res fanartResponse
		endpoint := fmt.Sprintf("%s/%s/%s?api_key=%s", c.baseURL, kind, url.PathEscape(id), url.QueryEscape(c.apiKey))
		if err := c.api.GetJSON(ctx, endpoint, nil, &res); err != nil {
			// most titles simply have no fanart
			if upstream.IsStatus(err, http.StatusNotFound) {
				return fanartResponse{}, false, nil
			}
			return fanartResponse{}, false, err
		}
		return res, true, nil
	})
	if err != nil {
		log.Printf("[metadata] fanart %s %s failed: %v", kind, id, err)
	}
	return res, found
}

// pickImage prefers the request language, then the title's original
// language, then English, then whatever comes first.
func pickImage(images []fanartImage, language, originalLanguage string) string {
	if len(images) == 0 {
		return ""
	}
	lang := genre.Prefix(language)
	for _, want := range []string{lang, originalLanguage, "en"} {
		if want == "" {
			continue
		}
		for _, img := range images {
			if img.Lang == want && img.URL != "" {
				return img.URL
			}
		}
	}
	return images[0].URL
}

// concat copies; the inputs belong to a cached response.
func concat(a, b []fanartImage) []fanartImage {
	out := make([]fanartImage, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}
