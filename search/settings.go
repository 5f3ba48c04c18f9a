package search

// Settings of an index. Nil slices are omitted and left as configured on the engine.
type Settings struct {
	DistinctAttribute     *string             `json:"distinctAttribute" yaml:"distinctAttribute"`
	SearchableAttributes  []string            `json:"searchableAttributes,omitempty" yaml:"searchableAttributes"`
	DisplayedAttributes   []string            `json:"displayedAttributes,omitempty" yaml:"displayedAttributes"`
	StopWords             []string            `json:"stopWords" yaml:"stopWords"`
	Synonyms              map[string][]string `json:"synonyms" yaml:"synonyms"`
	AttributesForFaceting []string            `json:"attributesForFaceting" yaml:"attributesForFaceting"`
	RankingRules          []string            `json:"rankingRules,omitempty" yaml:"rankingRules"`
}

// Clone returns a deep copy, so the copy can be changed without touching s.
func (s Settings) Clone() Settings {
	c := Settings{
		SearchableAttributes:  cloneStrings(s.SearchableAttributes),
		DisplayedAttributes:   cloneStrings(s.DisplayedAttributes),
		StopWords:             cloneStrings(s.StopWords),
		AttributesForFaceting: cloneStrings(s.AttributesForFaceting),
		RankingRules:          cloneStrings(s.RankingRules),
	}
	if s.DistinctAttribute != nil {
		distinct := *s.DistinctAttribute
		c.DistinctAttribute = &distinct
	}
	if s.Synonyms != nil {
		c.Synonyms = make(map[string][]string, len(s.Synonyms))
		for word, syn := range s.Synonyms {
			c.Synonyms[word] = cloneStrings(syn)
		}
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
