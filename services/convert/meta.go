package convert

import (
	"strconv"
	"strings"

	"aiolists/models"
	"aiolists/utils/genre"
)

// ToMetas converts canonical items to wire metas, skipping items whose id
// clients could not resolve.
func ToMetas(items []models.CanonicalItem) []models.Meta {
	metas := make([]models.Meta, 0, len(items))
	for _, it := range items {
		if m, ok := ToMeta(it); ok {
			metas = append(metas, m)
		}
	}
	return metas
}

// ToMeta converts one item. ok is false when the item has neither an IMDb
// id nor a tmdb: id.
func ToMeta(it models.CanonicalItem) (models.Meta, bool) {
	id := wireID(it)
	if id == "" {
		return models.Meta{}, false
	}
	imdbID := it.IMDBID
	if imdbID != "" && !strings.HasPrefix(imdbID, "tt") {
		imdbID = "tt" + imdbID
	}

	m := models.Meta{
		ID:          id,
		IMDBID:      imdbID,
		Type:        string(it.Type),
		Name:        strings.TrimSpace(it.Title),
		Poster:      it.Poster,
		Background:  it.Background,
		Logo:        it.Logo,
		Description: it.Overview,
		ReleaseInfo: releaseInfo(it),
		Released:    it.Released,
		Runtime:     runtime(it.Runtime),
		Genres:      genres(it.Genres),
		Cast:        it.Cast,
		Director:    it.Director,
		Writer:      it.Writer,
		Country:     it.Country,
		Videos:      it.Videos,
		Trailers:    it.Trailers,

		BehaviorHints: &models.MetaBehaviorHints{HasScheduledVideos: false},
	}
	if m.Name == "" {
		m.Name = "Untitled " + string(it.Type)
	}
	if it.Rating > 0 {
		m.IMDBRating = strconv.FormatFloat(it.Rating, 'f', 1, 64)
	}
	if it.Type == models.ContentTypeSeries {
		m.Status = it.Status
	}
	return m, true
}

func wireID(it models.CanonicalItem) string {
	if strings.HasPrefix(it.ID, "tt") || strings.HasPrefix(it.ID, "tmdb:") {
		return it.ID
	}
	if it.IMDBID != "" {
		if strings.HasPrefix(it.IMDBID, "tt") {
			return it.IMDBID
		}
		return "tt" + it.IMDBID
	}
	if it.TMDBID > 0 {
		return "tmdb:" + strconv.FormatInt(it.TMDBID, 10)
	}
	return ""
}

func releaseInfo(it models.CanonicalItem) string {
	switch {
	case it.ReleaseInfo != "":
		return it.ReleaseInfo
	case it.Year != "":
		return it.Year
	case len(it.Released) >= 4:
		return it.Released[:4]
	}
	return ""
}

// runtime adds the minute suffix to bare numbers.
func runtime(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if _, err := strconv.Atoi(v); err == nil {
		return v + " min"
	}
	return v
}

// genres flattens comma separated entries and drops duplicates.
func genres(in []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, entry := range in {
		for _, g := range genre.Split(entry) {
			key := strings.ToLower(g)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, g)
		}
	}
	return out
}
