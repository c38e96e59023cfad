package parse

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://x.example.net/albums?page=1"

func TestParsePrimaryContainer(t *testing.T) {
	body := `<html><body>
	<div class="showindex__children">
		<a class="album__main" href="/albums/101?uid=1">
			<div class="album__title">Nike Air Max 90 ¥199</div>
			<img data-origin-src="//photo.example.net/a/101.jpg_640x640.jpg">
		</a>
		<a class="album__main" href="/albums/102?uid=1">
			<div class="album__title">Plain Hoodie</div>
			<img src="https://photo.example.net/a/102.jpg">
		</a>
	</div>
	</body></html>`

	res := Parse(body, baseURL)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "primary-container-albums", res.Strategy)
	assert.Equal(t, "https://x.example.net/albums/101?uid=1", res.Candidates[0].DetailURL)
	assert.Equal(t, "Nike Air Max 90 ¥199", res.Candidates[0].Title)
	assert.Equal(t, "https://photo.example.net/a/101.jpg_800x0x1.jpg", res.Candidates[0].ImageURL)
}

func TestParseFallbackChainOrder(t *testing.T) {
	album := func(id int) string {
		return fmt.Sprintf(`<a href="/albums/%d"><span>Item %d</span></a>`, id, id)
	}
	tests := []struct {
		name     string
		body     string
		strategy string
	}{
		{
			name:     "anchors inside primary container",
			body:     `<div class="showindex__children">` + album(1) + `</div>`,
			strategy: "primary-container-anchors",
		},
		{
			name:     "secondary container",
			body:     `<div class="categories__children">` + album(2) + `</div>`,
			strategy: "secondary-container-anchors",
		},
		{
			name:     "album class outside known containers",
			body:     `<div class="whatever"><a class="album__main" href="/albums/3">Item 3</a></div>`,
			strategy: "album-class-anywhere",
		},
		{
			name:     "bare href shape",
			body:     `<ul><li>` + album(4) + `</li></ul>`,
			strategy: "album-href-shape",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.body, baseURL)
			require.Len(t, res.Candidates, 1)
			assert.Equal(t, tt.strategy, res.Strategy)
		})
	}
}

func TestParseEarlierStrategyWins(t *testing.T) {
	// Both the primary container and a stray album anchor are present. Only
	// the primary container's candidates must be taken.
	body := `
	<div class="showindex__children">
		<a class="album__main" href="/albums/1">One</a>
	</div>
	<a class="album__main" href="/albums/99">Stray</a>`

	res := Parse(body, baseURL)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "primary-container-albums", res.Strategy)
	assert.Equal(t, "https://x.example.net/albums/1", res.Candidates[0].DetailURL)
}

func TestParseDropsCandidatesWithoutAlbumHref(t *testing.T) {
	body := `<div class="showindex__children">
		<a class="album__main" href="/albums/7">Kept</a>
		<a class="album__main" href="/about">Dropped</a>
		<a class="album__main">No href at all</a>
	</div>`

	res := Parse(body, baseURL)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "Kept", res.Candidates[0].Title)
}

func TestParseNoStrategyMatches(t *testing.T) {
	res := Parse(`<html><body><p>maintenance</p></body></html>`, baseURL)

	assert.Empty(t, res.Candidates)
	assert.Empty(t, res.Strategy)
	assert.Empty(t, res.NextPageURL)
}

func TestExtractTitleFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		title string
	}{
		{
			name:  "dedicated title element",
			body:  `<a href="/albums/1"><div class="album__title"> Jordan 4 </div>other text</a>`,
			title: "Jordan 4",
		},
		{
			name:  "anchor text with leading count stripped",
			body:  `<a href="/albums/1">35 Dunk Low Panda</a>`,
			title: "Dunk Low Panda",
		},
		{
			name:  "placeholder when empty",
			body:  `<a href="/albums/1"><img src="x.jpg"></a>`,
			title: TitlePlaceholder,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(`<div class="showindex__children">`+tt.body+`</div>`, baseURL)
			require.Len(t, res.Candidates, 1)
			assert.Equal(t, tt.title, res.Candidates[0].Title)
		})
	}
}

func TestExtractImage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "data-origin-src wins over src",
			body: `<a href="/albums/1"><img data-origin-src="https://i.example.net/a.jpg" src="https://i.example.net/thumb.jpg"></a>`,
			want: "https://i.example.net/a.jpg",
		},
		{
			name: "data-src wins over src",
			body: `<a href="/albums/1"><img data-src="https://i.example.net/lazy.jpg" src="data:image/gif;base64,x"></a>`,
			want: "https://i.example.net/lazy.jpg",
		},
		{
			name: "protocol relative gets https",
			body: `<a href="/albums/1"><img src="//i.example.net/a.jpg"></a>`,
			want: "https://i.example.net/a.jpg",
		},
		{
			name: "relative resolved against page url",
			body: `<a href="/albums/1"><img src="/img/a.jpg"></a>`,
			want: "https://x.example.net/img/a.jpg",
		},
		{
			name: "thumbnail size token rewritten",
			body: `<a href="/albums/1"><img src="https://i.example.net/a.jpg_240x240.jpg"></a>`,
			want: "https://i.example.net/a.jpg_800x0x1.jpg",
		},
		{
			name: "background image fallback",
			body: `<a href="/albums/1"><div class="album__cover" style="background-image: url('https://i.example.net/bg.jpg');"></div></a>`,
			want: "https://i.example.net/bg.jpg",
		},
		{
			name: "no image source",
			body: `<a href="/albums/1">text only</a>`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(`<div class="showindex__children">`+tt.body+`</div>`, baseURL)
			require.Len(t, res.Candidates, 1)
			assert.Equal(t, tt.want, res.Candidates[0].ImageURL)
		})
	}
}

func TestNextPageURL(t *testing.T) {
	album := `<div class="showindex__children"><a href="/albums/1">One</a></div>`

	t.Run("explicit next control", func(t *testing.T) {
		res := Parse(album+`<a class="pager__next" href="/albums?page=2">next</a>`, baseURL)
		assert.Equal(t, "https://x.example.net/albums?page=2", res.NextPageURL)
	})

	t.Run("numbered links current plus one", func(t *testing.T) {
		pager := `<div class="pager">
			<a href="/albums?page=1">1</a>
			<a href="/albums?page=2">2</a>
			<a href="/albums?page=3">3</a>
		</div>`
		res := Parse(album+pager, "https://x.example.net/albums?page=2")
		assert.Equal(t, "https://x.example.net/albums?page=3", res.NextPageURL)
	})

	t.Run("no page param on base means current is 1", func(t *testing.T) {
		pager := `<a href="/albums?page=2">2</a><a href="/albums?page=5">5</a>`
		res := Parse(album+pager, "https://x.example.net/albums")
		assert.Equal(t, "https://x.example.net/albums?page=2", res.NextPageURL)
	})

	t.Run("last page has no next", func(t *testing.T) {
		pager := `<a href="/albums?page=1">1</a><a href="/albums?page=2">2</a>`
		res := Parse(album+pager, "https://x.example.net/albums?page=2")
		assert.Empty(t, res.NextPageURL)
	})
}
