package models

// SourceKind identifies which upstream owns a list.
type SourceKind string

const (
	SourceListHost       SourceKind = "listHost"
	SourceTracking       SourceKind = "tracking"
	SourceAccountMeta    SourceKind = "accountMeta"
	SourceImportedPublic SourceKind = "importedPublic"
)

// ListSource describes one list discovered while building a manifest. It is
// re-derived on every build.
type ListSource struct {
	Kind        SourceKind `json:"kind"`
	CatalogID   string     `json:"catalogId"`
	RawID       string     `json:"rawId"`
	DisplayName string     `json:"displayName"`
	ListKind    string     `json:"listKind,omitempty"` // L | E | W for MDBList, list family for others
	Owner       string     `json:"owner,omitempty"`
	Slug        string     `json:"slug,omitempty"`
	HasMovies   bool       `json:"hasMovies"`
	HasShows    bool       `json:"hasShows"`
}

type CatalogExtra struct {
	Name       string   `json:"name"`
	Options    []string `json:"options,omitempty"`
	IsRequired bool     `json:"isRequired,omitempty"`
}

// CatalogDescriptor is one catalog entry of the manifest.
type CatalogDescriptor struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	Extra          []CatalogExtra `json:"extra"`
	ExtraSupported []string       `json:"extraSupported"`
}

type BehaviorHints struct {
	Configurable          bool `json:"configurable"`
	ConfigurationRequired bool `json:"configurationRequired"`
}

type Manifest struct {
	ID            string              `json:"id"`
	Version       string              `json:"version"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Logo          string              `json:"logo,omitempty"`
	Resources     []string            `json:"resources"`
	Types         []string            `json:"types"`
	IDPrefixes    []string            `json:"idPrefixes"`
	Catalogs      []CatalogDescriptor `json:"catalogs"`
	BehaviorHints BehaviorHints       `json:"behaviorHints"`
}
