package fetcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// sniffLen bounds the prefix used for charset detection.
const sniffLen = 2048

// ErrDecode marks pages whose text encoding could not be detected or
// converted.
var ErrDecode = errors.New("decode failure")

// Decode detects the encoding of body from its first 2KB and returns the
// body re-encoded as UTF-8 together with the canonical encoding name. GB
// family encodings decode as GB18030.
func Decode(body []byte) ([]byte, string, error) {
	if len(body) == 0 {
		return body, "utf-8", nil
	}
	prefix := body
	if len(prefix) > sniffLen {
		prefix = prefix[:sniffLen]
	}
	detected, err := chardet.NewTextDetector().DetectBest(prefix)
	if err != nil {
		return nil, "", fmt.Errorf("%w: detect charset: %v", ErrDecode, err)
	}
	label := NormalizeCharset(detected.Charset)
	enc, name := charset.Lookup(label)
	if enc == nil {
		return nil, "", fmt.Errorf("%w: unsupported charset %q", ErrDecode, detected.Charset)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: convert from %s: %v", ErrDecode, name, err)
	}
	return out, name, nil
}

// NormalizeCharset lowercases a detector label and folds every GB family
// name into gb18030.
func NormalizeCharset(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if strings.HasPrefix(label, "gb") {
		return "gb18030"
	}
	return label
}
