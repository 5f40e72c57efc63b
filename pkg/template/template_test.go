package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cadencehq/cadence/pkg/models"
)

func testContact() *models.Contact {
	return &models.Contact{
		Name:    "Ada Lovelace",
		Company: "Analytical Engines",
		Phone:   "+15550100",
		Email:   "ada@example.com",
		Properties: map[string]string{
			"plan":     "enterprise",
			"industry": "computing",
		},
	}
}

func TestVariables(t *testing.T) {
	names := Variables("Hi {{name}}, welcome to {{company}}! Bye {{name}}.")
	assert.Equal(t, []string{"name", "company", "name"}, names)
}

func TestVariablesWithWhitespace(t *testing.T) {
	names := Variables("Hi {{ name }} from {{  company  }}")
	assert.Equal(t, []string{"name", "company"}, names)
}

func TestVariablesNone(t *testing.T) {
	assert.Empty(t, Variables("no placeholders here"))
}

func TestResolveWellKnownFields(t *testing.T) {
	resolutions := Resolve("{{name}} {{email}} {{phone}} {{company}}", testContact(), nil)

	assert.Equal(t, []Resolution{
		{Variable: "name", Value: "Ada Lovelace"},
		{Variable: "email", Value: "ada@example.com"},
		{Variable: "phone", Value: "+15550100"},
		{Variable: "company", Value: "Analytical Engines"},
	}, resolutions)
}

func TestResolvePropertyBagFallback(t *testing.T) {
	resolutions := Resolve("{{plan}}", testContact(), nil)

	assert.Equal(t, "enterprise", resolutions[0].Value)
}

func TestResolveMappingOverridesField(t *testing.T) {
	mappings := []models.VariableMapping{
		{Variable: "name", Source: models.MappingSourceManual, Value: "friend"},
		{Variable: "segment", Source: models.MappingSourceProperty, Value: "industry"},
	}

	resolutions := Resolve("{{name}} {{segment}}", testContact(), mappings)

	assert.Equal(t, "friend", resolutions[0].Value)
	assert.Equal(t, "computing", resolutions[1].Value)
}

func TestResolveUnknownIsEmpty(t *testing.T) {
	resolutions := Resolve("{{nonexistent}}", testContact(), nil)

	assert.Equal(t, "", resolutions[0].Value)
}

func TestPersonalize(t *testing.T) {
	out := Personalize("Hi {{name}}, your {{plan}} plan at {{company}} is live.", testContact(), nil)

	assert.Equal(t, "Hi Ada Lovelace, your enterprise plan at Analytical Engines is live.", out)
}

func TestPersonalizeUnresolvedRendersBlank(t *testing.T) {
	out := Personalize("Hello {{missing}}!", testContact(), nil)

	assert.Equal(t, "Hello !", out)
}

func TestPersonalizeNilContact(t *testing.T) {
	out := Personalize("Hello {{name}}", nil, nil)

	assert.Equal(t, "Hello ", out)
}

func TestPersonalizeDeterministic(t *testing.T) {
	content := "{{name}}-{{plan}}-{{missing}}"
	contact := testContact()

	first := Personalize(content, contact, nil)
	for range 10 {
		assert.Equal(t, first, Personalize(content, contact, nil))
	}
}
