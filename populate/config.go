package populate

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/pg2es/artworks-setup/artwork"
	"github.com/pg2es/artworks-setup/conftags"
	"github.com/pg2es/artworks-setup/search"
)

// PrimaryKey of every artworks index.
const PrimaryKey = artwork.FieldObjectID

// IndexConfig describes one index: its name and the order of its ranking rules.
// It is a value; Settings never share memory between configs.
type IndexConfig struct {
	Name         string
	RankingRules []string
}

func defaultRankingRules() []string {
	return []string{"typo", "words", "proximity", "attribute", "wordsPosition", "exactness"}
}

// DefaultIndexes returns the three artworks indexes, in population order:
// engine default ranking, then oldest first, then newest first.
func DefaultIndexes() []IndexConfig {
	return []IndexConfig{
		{Name: "artWorks", RankingRules: defaultRankingRules()},
		{Name: "artWorksAsc", RankingRules: append([]string{"asc(" + artwork.FieldDateToSortBy + ")"}, defaultRankingRules()...)},
		{Name: "artWorksDesc", RankingRules: append([]string{"desc(" + artwork.FieldDateToSortBy + ")"}, defaultRankingRules()...)},
	}
}

// Settings returns base settings with this index ranking rules. base is not modified.
func (c IndexConfig) Settings(base search.Settings) search.Settings {
	s := base.Clone()
	s.RankingRules = append([]string(nil), c.RankingRules...)
	return s
}

// DefaultSettings are shared by all artworks indexes, except for ranking rules.
func DefaultSettings() search.Settings {
	return search.Settings{
		DistinctAttribute: nil,
		SearchableAttributes: []string{
			"Artist", "Title", "ArtistBio", "Nationality", "Gender", "Date", "Medium", "Department",
			artwork.FieldVariousArtists, artwork.FieldDateToSortBy,
		},
		DisplayedAttributes: []string{
			"Title", "Artist", "ArtistBio", "Nationality", "Gender", "Date", "Medium", "Dimensions",
			"URL", "Department", "Classification", "ThumbnailURL",
			artwork.FieldVariousArtists, artwork.FieldDateToSortBy,
		},
		StopWords:             []string{"a", "an", "the"},
		Synonyms:              map[string][]string{},
		AttributesForFaceting: []string{"Nationality", "Gender", "Classification"},
	}
}

// LoadSettings reads a YAML settings file on top of DefaultSettings.
// Keys missing from the file keep their default. Ranking rules belong to
// index definitions and are ignored here.
func LoadSettings(path string) (search.Settings, error) {
	settings := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, errors.Wrap(err, "read settings file")
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, errors.Wrapf(err, "parse settings file %s", path)
	}
	settings.RankingRules = nil
	return settings, nil
}

// ParseIndexes reads index definitions in conftags syntax, one tag per index:
//
//	artWorks:"typo,words" artWorksAsc:"asc(DateToSortBy),typo,words"
func ParseIndexes(src string) ([]IndexConfig, error) {
	tags, err := conftags.Parse(src)
	if err != nil {
		return nil, errors.Wrap(err, "parse index definitions")
	}
	if len(tags) == 0 {
		return nil, errors.New("no index defined")
	}

	configs := make([]IndexConfig, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, name := range tags.Names() {
		if seen[name] {
			return nil, errors.Errorf("index %s defined twice", name)
		}
		seen[name] = true
		rules := tags.Get(name).Values
		if len(rules) == 0 {
			return nil, errors.Errorf("index %s has no ranking rules", name)
		}
		configs = append(configs, IndexConfig{Name: name, RankingRules: rules})
	}
	return configs, nil
}

// Select keeps configs with given names, in their original order.
// No names means all configs.
func Select(configs []IndexConfig, names ...string) ([]IndexConfig, error) {
	if len(names) == 0 {
		return configs, nil
	}
	known := make(map[string]bool, len(configs))
	for _, c := range configs {
		known[c.Name] = true
	}
	wanted := make(map[string]bool, len(names))
	var unknown []string
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
		wanted[name] = true
	}
	if len(unknown) > 0 {
		return nil, errors.Errorf("unknown index %s", strings.Join(unknown, ", "))
	}

	var selected []IndexConfig
	for _, c := range configs {
		if wanted[c.Name] {
			selected = append(selected, c)
		}
	}
	return selected, nil
}
