package manifest

import (
	"aiolists/models"
	"aiolists/services/catalog"
)

// rules applies the per-list exposure policy of one configuration.
type rules struct {
	cfg     *models.UserConfig
	hidden  map[string]bool
	removed map[string]bool
	extra   []models.CatalogExtra
}

func newRules(cfg *models.UserConfig, genres []string) *rules {
	r := &rules{
		cfg:     cfg,
		hidden:  toSet(cfg.HiddenLists),
		removed: toSet(cfg.RemovedLists),
		extra:   []models.CatalogExtra{{Name: "skip"}},
	}
	if !cfg.DisableGenreFilter {
		r.extra = append(r.extra, models.CatalogExtra{Name: "genre", Options: genres})
	}
	return r
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// expose returns the catalogs one list contributes: none when hidden,
// removed or empty without a custom type; one merged or single type
// catalog; or a movie and a series catalog when a mixed list is split.
func (r *rules) expose(src models.ListSource, id string) []models.CatalogDescriptor {
	if r.hidden[id] || r.removed[id] {
		return nil
	}
	name := r.cfg.CustomListNames[id]
	if name == "" {
		name = src.DisplayName
	}
	customType := r.cfg.CustomMediaTypeNames[id]

	switch {
	case !src.HasMovies && !src.HasShows:
		if customType == "" {
			return nil
		}
		return []models.CatalogDescriptor{descriptor(id, customType, name, r.extra)}
	case src.HasMovies && src.HasShows:
		if r.cfg.IsMerged(id) {
			return []models.CatalogDescriptor{descriptor(id, firstNonEmpty(customType, "all"), name, r.extra)}
		}
		return []models.CatalogDescriptor{
			descriptor(id, "movie", name, r.extra),
			descriptor(id, "series", name, r.extra),
		}
	case customType != "":
		return []models.CatalogDescriptor{descriptor(id, customType, name, r.extra)}
	case src.HasMovies:
		return []models.CatalogDescriptor{descriptor(id, "movie", name, r.extra)}
	default:
		return []models.CatalogDescriptor{descriptor(id, "series", name, r.extra)}
	}
}

// discovery returns the random list catalog when the feature is enabled.
func (r *rules) discovery() (models.CatalogDescriptor, bool) {
	cfg := r.cfg
	if !cfg.EnableRandomListFeature || len(cfg.RandomMDBListUsernames) == 0 {
		return models.CatalogDescriptor{}, false
	}
	id := catalog.DiscoveryCatalogID
	customType := cfg.CustomMediaTypeNames[id]
	name := firstNonEmpty(customType, cfg.CustomListNames[id], "Discovery")
	if cfg.APIKey == "" {
		name += " (Public)"
	}
	return descriptor(id, firstNonEmpty(customType, "all"), name, r.extra), true
}

func descriptor(id, typ, name string, extra []models.CatalogExtra) models.CatalogDescriptor {
	supported := make([]string, 0, len(extra))
	for _, e := range extra {
		supported = append(supported, e.Name)
	}
	return models.CatalogDescriptor{
		ID:             id,
		Type:           typ,
		Name:           name,
		Extra:          extra,
		ExtraSupported: supported,
	}
}
