// Package template resolves {{variable}} placeholders in message content
// against contact data. Resolution is pure and deterministic: explicit
// mappings win, then the well-known contact fields, then the contact's
// property bag; anything still unresolved renders as an empty string so that
// missing personalization never blocks delivery.
package template

import (
	"regexp"
	"strings"

	"github.com/cadencehq/cadence/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Variables returns the placeholder names found in content, in source order,
// with duplicate occurrences preserved.
func Variables(content string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(content, -1)

	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, match[1])
	}

	return names
}

// Resolution pairs one placeholder occurrence with its resolved value.
type Resolution struct {
	Variable string
	Value    string
}

// Resolve returns one resolved value per placeholder occurrence in content,
// in source order.
func Resolve(content string, contact *models.Contact, mappings []models.VariableMapping) []Resolution {
	names := Variables(content)

	resolutions := make([]Resolution, 0, len(names))
	for _, name := range names {
		resolutions = append(resolutions, Resolution{
			Variable: name,
			Value:    resolveOne(name, contact, mappings),
		})
	}

	return resolutions
}

// Personalize substitutes each placeholder occurrence in content with its
// resolved value, positionally.
func Personalize(content string, contact *models.Contact, mappings []models.VariableMapping) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]

		return resolveOne(name, contact, mappings)
	})
}

func resolveOne(name string, contact *models.Contact, mappings []models.VariableMapping) string {
	for _, mapping := range mappings {
		if mapping.Variable != name {
			continue
		}

		switch mapping.Source {
		case models.MappingSourceManual:
			return mapping.Value
		case models.MappingSourceProperty:
			return contactField(contact, mapping.Value)
		}
	}

	return contactField(contact, name)
}

// contactField resolves a name against the well-known fields first, then the
// property bag. Unknown names resolve to "".
func contactField(contact *models.Contact, name string) string {
	if contact == nil {
		return ""
	}

	switch strings.ToLower(name) {
	case "name":
		return contact.Name
	case "email":
		return contact.Email
	case "phone":
		return contact.Phone
	case "company":
		return contact.Company
	}

	if value, ok := contact.Properties[name]; ok {
		return value
	}

	return ""
}
