// Package cards holds the immutable card catalog.
package cards

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// EffectKind identifies how a card resolves.
type EffectKind string

const (
	KindSelfImmediate EffectKind = "self_immediate"
	KindMultiTarget   EffectKind = "multi_target"
	KindZoneSeizing   EffectKind = "zone_seizing"
	KindPassive       EffectKind = "passive"
)

// Valid reports whether k is a known effect kind.
func (k EffectKind) Valid() bool {
	switch k {
	case KindSelfImmediate, KindMultiTarget, KindZoneSeizing, KindPassive:
		return true
	}
	return false
}

// Target selects who a multi-target card hits.
type Target string

const (
	TargetOthers Target = "others"
	TargetAll    Target = "all"
)

// Card is a catalog entry.
type Card struct {
	Title         string     `yaml:"title" json:"title"`
	Cost          int        `yaml:"cost" json:"cost"`
	Kind          EffectKind `yaml:"kind" json:"kind"`
	HP            int        `yaml:"hp,omitempty" json:"hp,omitempty"`
	VictoryPoints int        `yaml:"victory_points,omitempty" json:"victory_points,omitempty"`
	Targets       Target     `yaml:"targets,omitempty" json:"targets,omitempty"`
	Text          string     `yaml:"text" json:"text"`
}

// Catalog is a read-only title-indexed card table. It is safe for
// concurrent readers.
type Catalog struct {
	cards  map[string]Card
	titles []string
}

type document struct {
	Cards []Card `yaml:"cards"`
}

//go:embed cards.yaml
var defaultCatalog []byte

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read card catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	// A misspelled key would otherwise load as a zero value.
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode card catalog: %w", err)
	}
	if len(doc.Cards) == 0 {
		return nil, fmt.Errorf("card catalog is empty")
	}

	c := &Catalog{cards: make(map[string]Card, len(doc.Cards))}
	for i, card := range doc.Cards {
		card.Title = strings.TrimSpace(card.Title)
		if err := validate(card); err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
		key := normalize(card.Title)
		if _, dup := c.cards[key]; dup {
			return nil, fmt.Errorf("duplicate card %q", card.Title)
		}
		c.cards[key] = card
		c.titles = append(c.titles, card.Title)
	}
	sort.Strings(c.titles)
	return c, nil
}

func validate(card Card) error {
	if card.Title == "" {
		return fmt.Errorf("title is required")
	}
	if card.Cost < 0 {
		return fmt.Errorf("%q: cost must not be negative", card.Title)
	}
	if card.VictoryPoints < 0 {
		return fmt.Errorf("%q: victory points must not be negative", card.Title)
	}
	if !card.Kind.Valid() {
		return fmt.Errorf("%q: unknown kind %q", card.Title, card.Kind)
	}
	if card.Kind == KindMultiTarget && card.Targets != TargetOthers && card.Targets != TargetAll {
		return fmt.Errorf("%q: multi-target card needs targets others or all", card.Title)
	}
	return nil
}

func normalize(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Lookup finds a card by title, ignoring case.
func (c *Catalog) Lookup(title string) (Card, bool) {
	card, ok := c.cards[normalize(title)]
	return card, ok
}

// All returns every card sorted by title.
func (c *Catalog) All() []Card {
	out := make([]Card, 0, len(c.titles))
	for _, title := range c.titles {
		out = append(out, c.cards[normalize(title)])
	}
	return out
}

// Len returns the number of cards.
func (c *Catalog) Len() int {
	return len(c.cards)
}
