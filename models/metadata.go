package models

import "time"

// Canonical item structures shared by every source adapter.

type ContentType string

const (
	ContentTypeMovie  ContentType = "movie"
	ContentTypeSeries ContentType = "series"
)

// TypeHint is the catalog type a request asks for.
type TypeHint string

const (
	TypeHintMovie  TypeHint = "movie"
	TypeHintSeries TypeHint = "series"
	TypeHintAll    TypeHint = "all"
)

// ParseTypeHint maps a wire catalog type onto a fetch hint. Anything other
// than movie or series (custom type names included) fetches everything.
func ParseTypeHint(s string) TypeHint {
	switch s {
	case string(TypeHintMovie):
		return TypeHintMovie
	case string(TypeHintSeries):
		return TypeHintSeries
	default:
		return TypeHintAll
	}
}

// Matches reports whether an item of type ct satisfies the hint.
func (h TypeHint) Matches(ct ContentType) bool {
	switch h {
	case TypeHintMovie:
		return ct == ContentTypeMovie
	case TypeHintSeries:
		return ct == ContentTypeSeries
	default:
		return true
	}
}

type Video struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Season         int    `json:"season"`
	Episode        int    `json:"episode"`
	Thumbnail      string `json:"thumbnail,omitempty"`
	Overview       string `json:"overview,omitempty"`
	Rating         string `json:"rating,omitempty"`
	Released       string `json:"released,omitempty"`
	AbsoluteNumber int    `json:"absoluteNumber,omitempty"`
}

type TrailerStream struct {
	Title string `json:"title"`
	YtID  string `json:"ytId"`
}

// CanonicalItem is the provider independent form of one list entry. Type is
// decided by the adapter that produced the item and never changes afterwards.
type CanonicalItem struct {
	ID               string          `json:"id"`
	IMDBID           string          `json:"imdbId,omitempty"`
	TMDBID           int64           `json:"tmdbId,omitempty"`
	TVDBID           int64           `json:"tvdbId,omitempty"`
	Type             ContentType     `json:"type"`
	Title            string          `json:"title"`
	Year             string          `json:"year,omitempty"`
	ReleaseInfo      string          `json:"releaseInfo,omitempty"`
	Released         string          `json:"released,omitempty"`
	Overview         string          `json:"overview,omitempty"`
	Genres           []string        `json:"genres,omitempty"`
	Runtime          string          `json:"runtime,omitempty"`
	Poster           string          `json:"poster,omitempty"`
	Background       string          `json:"background,omitempty"`
	Logo             string          `json:"logo,omitempty"`
	Rating           float64         `json:"rating,omitempty"`
	Cast             []string        `json:"cast,omitempty"`
	Director         []string        `json:"director,omitempty"`
	Writer           []string        `json:"writer,omitempty"`
	Country          string          `json:"country,omitempty"`
	Status           string          `json:"status,omitempty"`
	OriginalLanguage string          `json:"originalLanguage,omitempty"`
	Videos           []Video         `json:"videos,omitempty"`
	Trailers         []TrailerStream `json:"trailers,omitempty"`
	Rank             int             `json:"rank,omitempty"`
	ListedAt         time.Time       `json:"listedAt,omitempty"`
}

// HasIdentity reports whether the item carries at least one resolvable id.
func (c CanonicalItem) HasIdentity() bool {
	return c.IMDBID != "" || c.TMDBID != 0
}

// ContentResult is what a list fetch returns. A nil *ContentResult means the
// source was unavailable; an empty one is a valid empty page.
type ContentResult struct {
	Items     []CanonicalItem `json:"items"`
	HasMovies bool            `json:"hasMovies"`
	HasShows  bool            `json:"hasShows"`
}

// NewContentResult builds a result and derives the content flags from the
// items it holds.
func NewContentResult(items []CanonicalItem) *ContentResult {
	res := &ContentResult{Items: items}
	if res.Items == nil {
		res.Items = []CanonicalItem{}
	}
	for _, it := range res.Items {
		switch it.Type {
		case ContentTypeMovie:
			res.HasMovies = true
		case ContentTypeSeries:
			res.HasShows = true
		}
	}
	return res
}
