// Package condition defines the medical condition catalog the pipeline
// generates articles for.
package condition

import (
	"regexp"
	"strings"
)

// Condition is one entry of the catalog. Loaded once at startup and
// immutable thereafter.
type Condition struct {
	Name            string   `json:"name"`
	AlternativeName string   `json:"alternative_name,omitempty"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags,omitempty"`
}

// DisplayName is the topic handed to the generation stages:
// "Condition (Alternative Name)" when an alternative exists.
func (c Condition) DisplayName() string {
	if c.AlternativeName != "" {
		return c.Name + " (" + c.AlternativeName + ")"
	}
	return c.Name
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Slug returns the deterministic identifier used for output paths:
// punctuation stripped, spaces replaced with underscores.
func (c Condition) Slug() string {
	s := nonWord.ReplaceAllString(c.DisplayName(), "")
	s = strings.Join(strings.Fields(s), "_")
	return s
}
