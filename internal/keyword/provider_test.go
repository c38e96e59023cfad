package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchTableDeclaredOrderWins(t *testing.T) {
	entries := []Entry{
		{"First", []string{"alpha"}},
		{"Second", []string{"beta", "alpha"}},
	}

	// "alpha" appears in both entries. The earlier declared entry wins, no
	// matter how specific the later one is.
	value, ok := matchTable(entries, "something ALPHA beta")

	require.True(t, ok)
	assert.Equal(t, "First", value)
}

func TestMatchTableCaseInsensitiveSubstring(t *testing.T) {
	entries := []Entry{{"Nike", []string{"air max"}}}

	value, ok := matchTable(entries, "NIKE AIR MAX 90")

	require.True(t, ok)
	assert.Equal(t, "Nike", value)

	_, ok = matchTable(entries, "air force 1")
	assert.False(t, ok)
}

func TestStaticProviderDefaults(t *testing.T) {
	p := NewStaticProvider()

	brand, ok := p.LookupBrand("Yeezy Boost 350")
	require.True(t, ok)
	assert.Equal(t, "Adidas", brand)

	category, ok := p.LookupCategory("leather belt")
	require.True(t, ok)
	assert.Equal(t, "accessories", category)

	_, ok = p.LookupBrand("completely unbranded thing")
	assert.False(t, ok)
}

func TestBrandPrecedenceOverLaterEntries(t *testing.T) {
	p := NewStaticProvider()

	// "jordan retro" matches both Nike ("dunk"? no) and Jordan entries; the
	// Jordan entry is reached only because no earlier entry matched.
	brand, ok := p.LookupBrand("Jordan 4 Retro")
	require.True(t, ok)
	assert.Equal(t, "Jordan", brand)

	// "nike jordan" matches Nike first by declaration order.
	brand, ok = p.LookupBrand("Nike Jordan collab")
	require.True(t, ok)
	assert.Equal(t, "Nike", brand)
}

func TestCategoryPantsAndShortsPrecedence(t *testing.T) {
	p := NewStaticProvider()

	tests := []struct {
		text string
		want string
	}{
		{"cargo shorts", "shorts"},
		{"cargo pants", "pants"},
		{"denim jean", "pants"},
		{"running short", "shorts"},
		{"grey sweatpants", "pants"},
	}
	for _, tt := range tests {
		category, ok := p.LookupCategory(tt.text)
		require.True(t, ok, tt.text)
		assert.Equal(t, tt.want, category, tt.text)
	}
}
