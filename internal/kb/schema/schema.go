// Package schema holds the entity schema: which attributes each entity type
// carries, which attribute identifies an entity, and how an entity is
// rendered for the user.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry describes one entity type.
type Entry struct {
	// Attributes lists the canonical attribute names usable as filters.
	Attributes []string `yaml:"attributes"`

	// Key is the attribute that uniquely identifies an entity of this type.
	Key string `yaml:"key"`

	// Representation lists the attribute paths whose rendered values make
	// up the user-facing label. Paths may descend into relation
	// participants with dots ("provider.name").
	Representation []string `yaml:"representation"`
}

// Schema maps canonical entity type names to their entries. It is loaded
// once at startup and read-only afterwards.
type Schema map[string]Entry

// Load reads a schema from a YAML file.
func Load(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}

	for name, entry := range s {
		if entry.Key == "" {
			return nil, fmt.Errorf("schema entry %q has no key attribute", name)
		}
		if len(entry.Representation) == 0 {
			return nil, fmt.Errorf("schema entry %q has no representation", name)
		}
	}

	return s, nil
}

// Has reports whether the schema knows the given entity type.
func (s Schema) Has(entityType string) bool {
	_, ok := s[entityType]
	return ok
}

// AttributesOf returns the filterable attributes of an entity type.
func (s Schema) AttributesOf(entityType string) []string {
	return s[entityType].Attributes
}

// KeyOf returns the key attribute of an entity type.
func (s Schema) KeyOf(entityType string) string {
	return s[entityType].Key
}

// RepresentationOf returns the representation paths of an entity type.
func (s Schema) RepresentationOf(entityType string) []string {
	return s[entityType].Representation
}

// Default returns the built-in banking schema.
func Default() Schema {
	return Schema{
		"transaction": {
			Attributes: []string{"category", "execution-date", "amount", "reference"},
			Key:        "identifier",
			Representation: []string{
				"execution-date",
				"reference",
				"account-of-receiver.account-number",
				"amount",
			},
		},
		"contract": {
			Attributes:     []string{"sign-date"},
			Key:            "identifier",
			Representation: []string{"identifier"},
		},
		"account": {
			Attributes:     []string{"balance", "account-type", "opening-date", "account-number"},
			Key:            "account-number",
			Representation: []string{"provider.name", "account-number", "account-type"},
		},
		"bank": {
			Attributes: []string{
				"name",
				"headquarters",
				"country",
				"english-website",
				"english-mobile-app",
				"allowed-residents",
				"free-accounts",
				"free-worldwide-withdrawals",
				"english-customer-service",
			},
			Key:            "name",
			Representation: []string{"name"},
		},
		"person": {
			Attributes: []string{
				"email",
				"last-name",
				"first-name",
				"gender",
				"phone-number",
				"city",
			},
			Key:            "email",
			Representation: []string{"first-name", "last-name"},
		},
		"card": {
			Attributes:     []string{"name-on-card", "expiry-date", "created-date", "card-number"},
			Key:            "card-number",
			Representation: []string{"name-on-card", "card-number"},
		},
	}
}
