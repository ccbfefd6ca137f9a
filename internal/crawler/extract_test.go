package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linkPage = `<html><head>
<meta name="keywords" content="golang, crawler">
<meta name="description" content="foo fighters fan page">
</head><body>
<a href="http://other.test/x">abs</a>
<a href="https://secure.test/y">tls</a>
<a href="/about">root</a>
<a href="//cdn.test/lib.js">proto</a>
<a href="relative/page">skipped</a>
<a href="mailto:someone@test">skipped</a>
<a href="#top">skipped</a>
<a href="/about">duplicate</a>
<a>no href</a>
</body></html>`

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	doc, err := ParseDocument([]byte(linkPage))
	require.NoError(t, err)
	base, err := url.Parse("http://site.test/dir/index.html")
	require.NoError(t, err)

	links := ExtractLinks(base, doc)
	assert.Equal(t, []string{
		"http://other.test/x",
		"https://secure.test/y",
		"http://site.test/about",
		"http://cdn.test/lib.js",
	}, links)
}

func TestExtractLinksWithoutBaseKeepsAbsoluteOnly(t *testing.T) {
	t.Parallel()

	doc, err := ParseDocument([]byte(linkPage))
	require.NoError(t, err)
	assert.Equal(t, []string{"http://other.test/x", "https://secure.test/y"}, ExtractLinks(nil, doc))
}

func TestExtractLinksMatchesRawHrefPrefix(t *testing.T) {
	t.Parallel()

	doc, err := ParseDocument([]byte(`<html><body>
<a href=" http://padded.test/">leading space</a>
<a href=" /padded">leading space</a>
<a href="&#9;http://tab.test/">leading tab</a>
<a href="http://kept.test/ ">trailing space</a>
</body></html>`))
	require.NoError(t, err)
	base, err := url.Parse("http://site.test/")
	require.NoError(t, err)

	assert.Equal(t, []string{"http://kept.test/ "}, ExtractLinks(base, doc))
}

func TestKeywordMatcher(t *testing.T) {
	t.Parallel()

	doc, err := ParseDocument([]byte(linkPage))
	require.NoError(t, err)

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"empty query matches everything", "", true},
		{"blank query matches everything", "   ", true},
		{"single term", "golang", true},
		{"any term of several", "foo bar", true},
		{"no term present", "rust python", false},
		{"case sensitive", "GOLANG", false},
		{"regex metacharacters are literal", "go.ang", false},
		{"text outside meta ignored", "abs", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, NewKeywordMatcher(tc.query).Match(doc))
		})
	}
}

func TestKeywordMatcherQueryIsNormalized(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "foo bar", NewKeywordMatcher("  foo bar ").Query())
	assert.Equal(t, "", NewKeywordMatcher("  ").Query())
}
