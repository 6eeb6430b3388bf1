package kb

import (
	"fmt"
	"regexp"
	"strings"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Descriptor is a read-only catalog snapshot of one knowledge base.
type Descriptor struct {
	id          string
	title       string
	description string
	language    string
}

// New validates and creates a Descriptor.
// ID: ^[a-zA-Z0-9_-]+$, 1-64 chars. Title defaults to the id. Language is lower-cased.
func New(id, title, description, language string) (Descriptor, error) {
	if id == "" {
		return Descriptor{}, fmt.Errorf("knowledge base id is required")
	}
	if len(id) > 64 {
		return Descriptor{}, fmt.Errorf("knowledge base id too long (max 64)")
	}
	if !idRegex.MatchString(id) {
		return Descriptor{}, fmt.Errorf("knowledge base id must be alphanumeric with underscores and hyphens")
	}
	if title == "" {
		title = id
	}
	return Reconstruct(id, title, description, language), nil
}

// Reconstruct restores a Descriptor from storage without validation.
func Reconstruct(id, title, description, language string) Descriptor {
	return Descriptor{
		id:          id,
		title:       title,
		description: description,
		language:    strings.ToLower(strings.TrimSpace(language)),
	}
}

// ID returns the knowledge base identifier.
func (d Descriptor) ID() string { return d.id }

// Title returns the human readable title.
func (d Descriptor) Title() string { return d.title }

// Description returns the catalog description used for relevance scoring.
func (d Descriptor) Description() string { return d.description }

// Language returns the language tag (empty when unknown).
func (d Descriptor) Language() string { return d.language }

// Index builds an id lookup over a catalog snapshot.
func Index(catalog []Descriptor) map[string]Descriptor {
	m := make(map[string]Descriptor, len(catalog))
	for _, d := range catalog {
		m[d.id] = d
	}
	return m
}
