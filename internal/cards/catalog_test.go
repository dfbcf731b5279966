package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogCoversFreeDeck(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	neg, aff := Composition(DeckSizeFree)
	assert.GreaterOrEqual(t, len(catalog.OfType(TypeNegative)), neg)
	assert.GreaterOrEqual(t, len(catalog.OfType(TypeAffirmation)), aff)
}

func TestDefaultCatalogLookup(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	card, ok := catalog.Lookup("aff-01")
	require.True(t, ok)
	assert.Equal(t, TypeAffirmation, card.Type)

	_, ok = catalog.Lookup("missing")
	assert.False(t, ok)
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"bad json":       `{`,
		"empty id":       `[{"id":"","type":"NEGATIVE","text":"x","category":"Doubt"}]`,
		"duplicate id":   `[{"id":"a","type":"NEGATIVE","text":"x","category":"Doubt"},{"id":"a","type":"NEGATIVE","text":"y","category":"Doubt"}]`,
		"unknown type":   `[{"id":"a","type":"NEUTRAL","text":"x","category":"Doubt"}]`,
		"wrong category": `[{"id":"a","type":"AFFIRMATION","text":"x","category":"Doubt"}]`,
		"unknown cat":    `[{"id":"a","type":"NEGATIVE","text":"x","category":"Gloom"}]`,
		"empty text":     `[{"id":"a","type":"NEGATIVE","text":"  ","category":"Doubt"}]`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestParseCatalogKeepsRationale(t *testing.T) {
	c, err := ParseCatalog([]byte(`[{"id":"a","type":"AFFIRMATION","text":"x","category":"Growth","rationale":"why"}]`))
	require.NoError(t, err)

	card, ok := c.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "why", card.Rationale)
	assert.Equal(t, 1, c.Len())
}
