package merge

import (
	"fmt"
	"os"
	"sort"

	"github.com/atlas-maps/platform/pkg/rawstore"
	"gopkg.in/yaml.v3"
)

// Tier is one source's trust ranking. Rank orders conflict resolution
// (higher wins); Confidence is the base field confidence a win carries.
type Tier struct {
	Source     string  `yaml:"source"`
	Rank       int     `yaml:"rank"`
	Confidence float64 `yaml:"confidence"`
}

// TrustTable is the explicit enum-keyed source ranking, resolved once at
// startup. Unknown sources have no rank and never win a field.
type TrustTable struct {
	tiers map[string]Tier
}

// DefaultTrustTable encodes the curation hierarchy:
// manual curation > premium editorial > secondary editorial > provider
// lookups > crawls > community.
func DefaultTrustTable() *TrustTable {
	return NewTrustTable([]Tier{
		{Source: rawstore.SourceManualSeed, Rank: 5, Confidence: 0.95},
		{Source: rawstore.SourceEditorialPremium, Rank: 4, Confidence: 0.85},
		{Source: rawstore.SourceEditorialSecondary, Rank: 3, Confidence: 0.75},
		{Source: rawstore.SourceGooglePlaces, Rank: 2, Confidence: 0.7},
		{Source: rawstore.SourceWebsiteCrawl, Rank: 1, Confidence: 0.6},
		{Source: rawstore.SourceCommunity, Rank: 0, Confidence: 0.5},
	})
}

func NewTrustTable(tiers []Tier) *TrustTable {
	m := make(map[string]Tier, len(tiers))
	for _, t := range tiers {
		m[t.Source] = t
	}
	return &TrustTable{tiers: m}
}

// LoadTrustTable reads tier overrides from a YAML file; an empty path keeps
// the defaults.
func LoadTrustTable(path string) (*TrustTable, error) {
	if path == "" {
		return DefaultTrustTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trust tiers: %w", err)
	}
	var tiers []Tier
	if err := yaml.Unmarshal(data, &tiers); err != nil {
		return nil, fmt.Errorf("parse trust tiers: %w", err)
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("trust tiers file %s is empty", path)
	}
	return NewTrustTable(tiers), nil
}

// Rank returns the source's ordinal rank; ok is false for unranked sources.
func (t *TrustTable) Rank(source string) (int, bool) {
	tier, ok := t.tiers[source]
	return tier.Rank, ok
}

// Confidence returns the base confidence carried by the source's wins.
func (t *TrustTable) Confidence(source string) (float64, bool) {
	tier, ok := t.tiers[source]
	return tier.Confidence, ok
}

// Sources lists the ranked sources, highest trust first.
func (t *TrustTable) Sources() []string {
	out := make([]string, 0, len(t.tiers))
	for s := range t.tiers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return t.tiers[out[i]].Rank > t.tiers[out[j]].Rank
	})
	return out
}
