package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCharset(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"GB2312":   "gb18030",
		"GB-18030": "gb18030",
		"gbk":      "gb18030",
		" UTF-8 ":  "utf-8",
		"Big5":     "big5",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeCharset(in), in)
	}
}

func TestDecodeUTF8PassesThrough(t *testing.T) {
	t.Parallel()

	body := []byte("<html><body>" + strings.Repeat("héllo wörld ", 50) + chineseText + "</body></html>")
	out, enc, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", enc)
	assert.Equal(t, string(body), string(out))
}

func TestDecodeEmptyBody(t *testing.T) {
	t.Parallel()

	out, enc, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "utf-8", enc)
}

func TestDecodeGBK(t *testing.T) {
	t.Parallel()

	out, enc, err := Decode(gbkPage(t))
	require.NoError(t, err)
	assert.Equal(t, "gb18030", enc)
	assert.Contains(t, string(out), chineseText)
}
