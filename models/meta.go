package models

// Wire format served to add-on clients.

type MetaBehaviorHints struct {
	HasScheduledVideos bool `json:"hasScheduledVideos"`
}

type Meta struct {
	ID            string             `json:"id"`
	IMDBID        string             `json:"imdb_id,omitempty"`
	Type          string             `json:"type"`
	Name          string             `json:"name"`
	Poster        string             `json:"poster,omitempty"`
	Background    string             `json:"background,omitempty"`
	Logo          string             `json:"logo,omitempty"`
	Description   string             `json:"description,omitempty"`
	ReleaseInfo   string             `json:"releaseInfo,omitempty"`
	Released      string             `json:"released,omitempty"`
	IMDBRating    string             `json:"imdbRating,omitempty"`
	Runtime       string             `json:"runtime,omitempty"`
	Genres        []string           `json:"genres,omitempty"`
	Cast          []string           `json:"cast,omitempty"`
	Director      []string           `json:"director,omitempty"`
	Writer        []string           `json:"writer,omitempty"`
	Country       string             `json:"country,omitempty"`
	Status        string             `json:"status,omitempty"`
	Videos        []Video            `json:"videos,omitempty"`
	Trailers      []TrailerStream    `json:"trailerStreams,omitempty"`
	BehaviorHints *MetaBehaviorHints `json:"behaviorHints,omitempty"`
}

type CatalogResponse struct {
	Metas       []Meta `json:"metas"`
	CacheMaxAge int    `json:"cacheMaxAge"`
}

type MetaResponse struct {
	Meta        *Meta `json:"meta"`
	CacheMaxAge int   `json:"cacheMaxAge,omitempty"`
}
