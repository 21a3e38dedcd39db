package trakt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aiolists/internal/retry"
	"aiolists/internal/upstream"
	"aiolists/models"
)

const (
	traktAPIBaseURL = "https://api.trakt.tv"
	traktAPIVersion = "2"
	oobRedirectURI  = "urn:ietf:wg:oauth:2.0:oob"

	// ItemsPerPage is the Trakt page size used for every list endpoint.
	ItemsPerPage = 100
)

var (
	// ErrNoCredential is returned for private endpoints without an access token.
	ErrNoCredential = errors.New("trakt: access token not configured")
	ErrNotFound     = errors.New("trakt: not found")
)

// IMDBResolver looks up the IMDb id of a TMDB title. Trakt entries
// occasionally only carry a TMDB id.
type IMDBResolver interface {
	IMDBIDFor(ctx context.Context, bearer string, tmdbID int64, ct models.ContentType) (string, error)
}

// Client handles Trakt API interactions for list data and token refresh.
type Client struct {
	api          *upstream.Client
	baseURL      string
	clientID     string
	clientSecret string
	redirectURI  string
	resolver     IMDBResolver
}

type Options struct {
	HTTPClient    *http.Client
	BaseURL       string
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	RatePerSecond float64
	Policy        retry.Policy
	// Resolver fills in missing IMDb ids. Nil drops such entries unless they
	// carry a TMDB id.
	Resolver IMDBResolver
}

// NewClient creates a new Trakt API client
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = traktAPIBaseURL
	}
	redirect := opts.RedirectURI
	if redirect == "" {
		redirect = oobRedirectURI
	}
	return &Client{
		api: upstream.New(upstream.Options{
			HTTPClient:    opts.HTTPClient,
			Timeout:       30 * time.Second,
			RatePerSecond: opts.RatePerSecond,
			Burst:         4,
			Policy:        opts.Policy,
		}),
		baseURL:      baseURL,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		redirectURI:  redirect,
		resolver:     opts.Resolver,
	}
}

// HasCredentials reports whether a client id is configured. Every Trakt
// request needs one, public endpoints included.
func (c *Client) HasCredentials() bool {
	return c.clientID != ""
}

// headers builds the Trakt API headers. An empty accessToken leaves the
// request anonymous.
func (c *Client) headers(accessToken string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("trakt-api-version", traktAPIVersion)
	h.Set("trakt-api-key", c.clientID)
	if accessToken != "" {
		h.Set("Authorization", "Bearer "+accessToken)
	}
	return h
}

// IDs holds external identifiers for a media item
type IDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int64  `json:"tmdb,omitempty"`
	TVDB  int64  `json:"tvdb,omitempty"`
}

// Media is a movie or show as returned with extended=full.
type Media struct {
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	IDs        IDs      `json:"ids"`
	Overview   string   `json:"overview,omitempty"`
	Released   string   `json:"released,omitempty"`
	FirstAired string   `json:"first_aired,omitempty"`
	Runtime    int      `json:"runtime,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	Rating     float64  `json:"rating,omitempty"`
	Country    string   `json:"country,omitempty"`
	Status     string   `json:"status,omitempty"`
	Language   string   `json:"language,omitempty"`
}

// Entry is one element of a list response. Wrapped entries carry a type and
// a nested movie or show; trending entries nest without a type; popular and
// recommendation responses are bare media objects.
type Entry struct {
	Rank     int       `json:"rank"`
	ListedAt time.Time `json:"listed_at"`
	Type     string    `json:"type"`
	Movie    *Media    `json:"movie,omitempty"`
	Show     *Media    `json:"show,omitempty"`
	Episode  *struct {
		Season int `json:"season"`
		Number int `json:"number"`
	} `json:"episode,omitempty"`
	Season *struct {
		Number int `json:"number"`
	} `json:"season,omitempty"`

	Media
}

// TokenResponse represents the response from /oauth/token
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// ExpiresAt returns the absolute expiry of the token. CreatedAt must be set;
// see Stamp.
func (t TokenResponse) ExpiresAt() time.Time {
	return time.Unix(t.CreatedAt, 0).Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Stamp records now as the issue time when the response carried none.
func (t *TokenResponse) Stamp(now time.Time) {
	if t.CreatedAt <= 0 {
		t.CreatedAt = now.Unix()
	}
}

// RefreshAccessToken refreshes an expired access token
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	payload := map[string]string{
		"refresh_token": refreshToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"redirect_uri":  c.redirectURI,
		"grant_type":    "refresh_token",
	}

	var token TokenResponse
	if err := c.api.DoJSON(ctx, http.MethodPost, c.baseURL+"/oauth/token", c.headers(""), payload, &token); err != nil {
		return nil, fmt.Errorf("trakt token refresh failed: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("trakt token refresh returned no access token")
	}
	return &token, nil
}

// toItem maps a resolved Trakt media object onto a canonical item. The id is
// filled in by the caller once the IMDb id is known.
func toItem(m *Media, ct models.ContentType, e Entry) models.CanonicalItem {
	item := models.CanonicalItem{
		IMDBID:   m.IDs.IMDB,
		TMDBID:   m.IDs.TMDB,
		TVDBID:   m.IDs.TVDB,
		Type:     ct,
		Title:    m.Title,
		Overview: m.Overview,
		Genres:   m.Genres,
		Rating:   m.Rating,
		Country:  strings.ToUpper(m.Country),
		Status:   m.Status,
		Rank:     e.Rank,
		ListedAt: e.ListedAt,
	}
	if m.Year > 0 {
		item.Year = strconv.Itoa(m.Year)
	}
	if m.Runtime > 0 {
		item.Runtime = strconv.Itoa(m.Runtime)
	}
	item.Released = m.Released
	if item.Released == "" {
		item.Released = m.FirstAired
	}
	return item
}

func primaryID(imdbID string, tmdbID int64) string {
	if imdbID != "" {
		return imdbID
	}
	if tmdbID != 0 {
		return "tmdb:" + strconv.FormatInt(tmdbID, 10)
	}
	return ""
}
