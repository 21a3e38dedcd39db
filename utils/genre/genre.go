package genre

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// All is the catch-all option that disables genre filtering.
const All = "All"

// Static is offered when no localized genre list can be fetched.
var Static = []string{
	All, "Action", "Adventure", "Animation", "Biography", "Comedy", "Crime",
	"Documentary", "Drama", "Family", "Fantasy", "History", "Horror", "Music",
	"Musical", "Mystery", "Romance", "Sci-Fi", "Science Fiction", "Sport",
	"Thriller", "War", "Western",
}

var separators = regexp.MustCompile(`[\s_\-&]+`)

// Normalize folds a genre name for comparison: transliterated, lowercased,
// separators collapsed to a single space.
func Normalize(name string) string {
	folded := strings.ToLower(strings.TrimSpace(unidecode.Unidecode(name)))
	return strings.TrimSpace(separators.ReplaceAllString(folded, " "))
}

// IsAll reports whether the requested genre means "no filter".
func IsAll(name string) bool {
	n := Normalize(name)
	return n == "" || n == "all"
}

// Matches reports whether any of genres equals want after normalization.
func Matches(genres []string, want string) bool {
	if IsAll(want) {
		return true
	}
	target := Normalize(want)
	for _, g := range genres {
		if Normalize(g) == target {
			return true
		}
	}
	return false
}

// Slug renders a genre as the lowercase dash-separated form used in query
// parameters.
func Slug(name string) string {
	return strings.ReplaceAll(Normalize(name), " ", "-")
}

// Title title-cases a genre name in the given BCP 47 language. Unknown
// languages fall back to English casing rules.
func Title(name, lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return cases.Title(tag).String(strings.TrimSpace(name))
}

// Split turns a comma separated genre string into a clean list.
func Split(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Prefix returns the primary language subtag of a BCP 47 tag ("pt-BR" -> "pt").
func Prefix(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		if i := strings.IndexAny(lang, "-_"); i > 0 {
			return strings.ToLower(lang[:i])
		}
		return strings.ToLower(lang)
	}
	base, _ := tag.Base()
	return base.String()
}
