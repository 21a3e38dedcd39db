package tmdb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strconv"

	"aiolists/internal/batch"
	"aiolists/models"
)

// seasonWindow bounds concurrent season fetches for one series.
const seasonWindow = 8

type namedCountry struct {
	Name string `json:"name"`
}

type detailsResponse struct {
	ID               int64          `json:"id"`
	IMDBID           string         `json:"imdb_id"`
	Title            string         `json:"title"`
	Name             string         `json:"name"`
	Overview         string         `json:"overview"`
	PosterPath       string         `json:"poster_path"`
	BackdropPath     string         `json:"backdrop_path"`
	ReleaseDate      string         `json:"release_date"`
	FirstAirDate     string         `json:"first_air_date"`
	LastAirDate      string         `json:"last_air_date"`
	Status           string         `json:"status"`
	Runtime          int            `json:"runtime"`
	EpisodeRunTime   []int          `json:"episode_run_time"`
	VoteAverage      float64        `json:"vote_average"`
	OriginalLanguage string         `json:"original_language"`
	NumberOfSeasons  int            `json:"number_of_seasons"`
	OriginCountry    []string       `json:"origin_country"`
	Countries        []namedCountry `json:"production_countries"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Cast []struct {
			Name string `json:"name"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
	Videos struct {
		Results []struct {
			Key  string `json:"key"`
			Site string `json:"site"`
			Type string `json:"type"`
		} `json:"results"`
	} `json:"videos"`
	ExternalIDs ExternalIDs `json:"external_ids"`
	Images      struct {
		Logos []struct {
			FilePath string `json:"file_path"`
			ISO6391  string `json:"iso_639_1"`
		} `json:"logos"`
	} `json:"images"`
}

type seasonResponse struct {
	SeasonNumber int       `json:"season_number"`
	Episodes     []episode `json:"episodes"`
}

type episode struct {
	EpisodeNumber int     `json:"episode_number"`
	Name          string  `json:"name"`
	Overview      string  `json:"overview"`
	StillPath     string  `json:"still_path"`
	AirDate       string  `json:"air_date"`
	VoteAverage   float64 `json:"vote_average"`
}

// Metadata returns the full display record of a title in language. Series
// include their episode list. Records and misses are cached.
func (c *Client) Metadata(ctx context.Context, bearer string, tmdbID int64, ct models.ContentType, language string) (models.CanonicalItem, bool, error) {
	if language == "" {
		language = "en-US"
	}
	key := fmt.Sprintf("meta:%s:%d:%s", ct, tmdbID, language)
	return c.metadata.GetOrLoad(ctx, key, func(ctx context.Context) (models.CanonicalItem, bool, error) {
		params := url.Values{
			"language":           {language},
			"append_to_response": {"credits,videos,external_ids,images"},
			// logos are often untagged or English only
			"include_image_language": {language[:min(2, len(language))] + ",en,null"},
		}
		var details detailsResponse
		if err := c.get(ctx, bearer, fmt.Sprintf("/%s/%d", mediaSegment(ct), tmdbID), params, &details); err != nil {
			if errors.Is(err, ErrNotFound) {
				return models.CanonicalItem{}, false, nil
			}
			return models.CanonicalItem{}, false, err
		}

		var seasons []seasonResponse
		if ct == models.ContentTypeSeries && details.NumberOfSeasons > 0 {
			seasons = c.seasons(ctx, bearer, tmdbID, details.NumberOfSeasons, language)
		}
		return c.toMetadata(details, ct, seasons), true, nil
	})
}

// BatchMetadata fetches records for many titles with windowed concurrency.
// Failures are absent from the result.
func (c *Client) BatchMetadata(ctx context.Context, bearer string, refs []FindResult, language string) map[FindResult]models.CanonicalItem {
	type fetched struct {
		ref  FindResult
		item models.CanonicalItem
		ok   bool
	}
	results := batch.Window(ctx, refs, lookupWindow, func(ctx context.Context, ref FindResult) fetched {
		item, ok, err := c.Metadata(ctx, bearer, ref.TMDBID, ref.Type, language)
		if err != nil {
			log.Printf("[tmdb] metadata for %s %d failed: %v", ref.Type, ref.TMDBID, err)
		}
		return fetched{ref: ref, item: item, ok: ok && err == nil}
	})
	out := make(map[FindResult]models.CanonicalItem, len(results))
	for _, r := range results {
		if r.ok {
			out[r.ref] = r.item
		}
	}
	return out
}

// seasons loads every season's episodes. Specials (season 0) are skipped for
// long-running shows. Failed seasons are left out.
func (c *Client) seasons(ctx context.Context, bearer string, tmdbID int64, count int, language string) []seasonResponse {
	var numbers []int
	for n := 0; n <= count; n++ {
		if n == 0 && count > 5 {
			continue
		}
		numbers = append(numbers, n)
	}
	fetched := batch.Window(ctx, numbers, seasonWindow, func(ctx context.Context, n int) *seasonResponse {
		var s seasonResponse
		if err := c.get(ctx, bearer, fmt.Sprintf("/tv/%d/season/%d", tmdbID, n), url.Values{"language": {language}}, &s); err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Printf("[tmdb] season %d of %d failed: %v", n, tmdbID, err)
			}
			return nil
		}
		s.SeasonNumber = n
		return &s
	})
	out := make([]seasonResponse, 0, len(fetched))
	for _, s := range fetched {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (c *Client) toMetadata(d detailsResponse, ct models.ContentType, seasons []seasonResponse) models.CanonicalItem {
	isMovie := ct == models.ContentTypeMovie
	imdbID := d.ExternalIDs.IMDBID
	if imdbID == "" {
		imdbID = d.IMDBID
	}

	item := models.CanonicalItem{
		ID:               primaryID(imdbID, d.ID),
		IMDBID:           imdbID,
		TMDBID:           d.ID,
		TVDBID:           d.ExternalIDs.TVDBID,
		Type:             ct,
		Overview:         d.Overview,
		Poster:           c.image(d.PosterPath, tmdbPosterSize),
		Background:       c.image(d.BackdropPath, tmdbOriginalSize),
		Rating:           d.VoteAverage,
		OriginalLanguage: d.OriginalLanguage,
		Logo:             c.logo(d),
	}

	release := d.FirstAirDate
	item.Title = d.Name
	if isMovie {
		release = d.ReleaseDate
		item.Title = d.Title
	}
	item.Year = formatYear(ct, release, d.LastAirDate, d.Status)
	item.ReleaseInfo = item.Year
	if release != "" {
		item.Released = release + "T00:00:00.000Z"
	}

	runtime := d.Runtime
	if !isMovie && len(d.EpisodeRunTime) > 0 {
		runtime = d.EpisodeRunTime[0]
	}
	if runtime > 0 {
		item.Runtime = strconv.Itoa(runtime) + " min"
	}

	if isMovie {
		if len(d.Countries) > 0 {
			item.Country = d.Countries[0].Name
		}
	} else {
		item.Status = d.Status
		if len(d.OriginCountry) > 0 {
			item.Country = d.OriginCountry[0]
		}
	}

	for _, g := range d.Genres {
		item.Genres = append(item.Genres, g.Name)
	}
	for i, p := range d.Credits.Cast {
		if i == 10 {
			break
		}
		item.Cast = append(item.Cast, p.Name)
	}
	for _, p := range d.Credits.Crew {
		switch p.Job {
		case "Director":
			item.Director = append(item.Director, p.Name)
		case "Writer", "Screenplay", "Story":
			item.Writer = append(item.Writer, p.Name)
		}
	}
	for _, v := range d.Videos.Results {
		if v.Type == "Trailer" && v.Site == "YouTube" && v.Key != "" {
			item.Trailers = append(item.Trailers, models.TrailerStream{Title: item.Title, YtID: v.Key})
		}
	}

	if !isMovie {
		idPrefix := item.ID
		item.Videos = c.episodes(idPrefix, seasons)
	}
	return item
}

// formatYear renders a movie year, or a series run such as "2008-2013" or
// "2019-" for shows still airing.
func formatYear(ct models.ContentType, release, lastAir, status string) string {
	year := yearOf(release)
	if ct == models.ContentTypeMovie || year == "" {
		return year
	}
	if status == "Returning Series" || status == "In Production" || lastAir == "" {
		return year + "-"
	}
	if lastAir != release {
		if end := yearOf(lastAir); end != "" && end != year {
			return year + "-" + end
		}
	}
	return year
}

func (c *Client) logo(d detailsResponse) string {
	logos := d.Images.Logos
	if len(logos) == 0 {
		return ""
	}
	chosen := logos[0]
	for _, l := range logos {
		if l.ISO6391 == "en" {
			chosen = l
			break
		}
	}
	return c.image(chosen.FilePath, tmdbOriginalSize)
}

// usesAbsoluteNumbering detects series whose seasons continue the episode
// count of the previous season instead of restarting at 1.
func usesAbsoluteNumbering(seasons []seasonResponse) bool {
	processed := 0
	for _, s := range seasons {
		if len(s.Episodes) == 0 {
			continue
		}
		first := s.Episodes[0].EpisodeNumber
		if first > len(s.Episodes)*2 ||
			(s.SeasonNumber <= 5 && first >= 100) ||
			(processed > 0 && first > processed) {
			return true
		}
		processed += len(s.Episodes)
	}
	return false
}

func (c *Client) episodes(idPrefix string, seasons []seasonResponse) []models.Video {
	absolute := usesAbsoluteNumbering(seasons)
	var videos []models.Video
	for _, s := range seasons {
		for i, ep := range s.Episodes {
			number := ep.EpisodeNumber
			if absolute {
				number = i + 1
			}
			v := models.Video{
				ID:        fmt.Sprintf("%s:%d:%d", idPrefix, s.SeasonNumber, number),
				Name:      ep.Name,
				Season:    s.SeasonNumber,
				Episode:   number,
				Thumbnail: c.image(ep.StillPath, tmdbPosterSize),
				Overview:  ep.Overview,
				Rating:    strconv.FormatFloat(ep.VoteAverage, 'f', 1, 64),
			}
			if v.Name == "" {
				v.Name = "Episode " + strconv.Itoa(number)
			}
			if ep.AirDate != "" {
				v.Released = ep.AirDate + "T00:00:00.001Z"
			}
			if absolute {
				v.AbsoluteNumber = ep.EpisodeNumber
			}
			videos = append(videos, v)
		}
	}
	sort.SliceStable(videos, func(i, j int) bool {
		if videos[i].Season != videos[j].Season {
			return videos[i].Season < videos[j].Season
		}
		return videos[i].Episode < videos[j].Episode
	})
	return videos
}
