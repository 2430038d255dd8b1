package builtin

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/x/values"
)

// HashTextInput is the input of hash_text
type HashTextInput struct {
	Text      string `json:"text" jsonschema:"description=Text to hash"`
	Algorithm string `json:"algorithm,omitempty" jsonschema:"enum=md5,enum=sha1,enum=sha256,enum=sha512,default=sha256"`
}

// HashTextResult is the output of hash_text
type HashTextResult struct {
	Algorithm string `json:"algorithm"`
	Hex       string `json:"hex"`
	Length    int    `json:"length"`
}

var hashes = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// HashText returns the hash_text tool
func HashText() *tools.Func[HashTextInput, HashTextResult] {
	return tools.MustFunc(HashTextName,
		"Hash text using md5/sha1/sha256/sha512.",
		func(_ context.Context, in *HashTextInput) (*HashTextResult, error) {
			algo := strings.ToLower(values.StringsCoalesce(strings.TrimSpace(in.Algorithm), "sha256"))
			newHash, ok := hashes[algo]
			if !ok {
				return nil, errors.Newf("unsupported algorithm `%s`. Use one of: md5, sha1, sha256, sha512", algo)
			}
			h := newHash()
			_, _ = h.Write([]byte(in.Text))
			return &HashTextResult{
				Algorithm: algo,
				Hex:       hex.EncodeToString(h.Sum(nil)),
				Length:    utf8.RuneCountInString(in.Text),
			}, nil
		})
}

// CodecInput is the input of url_codec and base64_codec
type CodecInput struct {
	Text string `json:"text" jsonschema:"description=Input text"`
	Mode string `json:"mode,omitempty" jsonschema:"enum=encode,enum=decode,default=encode"`
}

func (in *CodecInput) mode() string {
	return strings.ToLower(values.StringsCoalesce(strings.TrimSpace(in.Mode), modeEncode))
}

// URLCodec returns the url_codec tool
func URLCodec() *tools.Func[CodecInput, CodecResult] {
	return tools.MustFunc(URLCodecName,
		"URL-encode or URL-decode text.",
		func(_ context.Context, in *CodecInput) (*CodecResult, error) {
			res := &CodecResult{Mode: in.mode(), Input: in.Text}
			switch res.Mode {
			case modeEncode:
				res.Output = QuoteURL(in.Text)
			case modeDecode:
				res.Output = UnquoteURL(in.Text)
			default:
				return nil, errors.New("url_codec mode must be `encode` or `decode`.")
			}
			return res, nil
		})
}

// Base64Codec returns the base64_codec tool
func Base64Codec() *tools.Func[CodecInput, CodecResult] {
	return tools.MustFunc(Base64Name,
		"Base64 encode or decode text.",
		func(_ context.Context, in *CodecInput) (*CodecResult, error) {
			res := &CodecResult{Mode: in.mode(), Input: in.Text}
			switch res.Mode {
			case modeEncode:
				res.Output = base64.StdEncoding.EncodeToString([]byte(in.Text))
			case modeDecode:
				raw, err := base64.StdEncoding.Strict().DecodeString(strings.TrimSpace(in.Text))
				if err != nil {
					return nil, errors.Newf("base64_codec failed: %s", err.Error())
				}
				res.Output = strings.ToValidUTF8(string(raw), "�")
			default:
				return nil, errors.New("base64_codec mode must be `encode` or `decode`.")
			}
			return res, nil
		})
}

// QuoteURL percent-encodes everything except letters, digits and `_.-~/`
func QuoteURL(s string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < utf8.RuneSelf && (c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || strings.IndexByte("_.-~/", c) >= 0) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// UnquoteURL decodes %XX escapes, invalid escapes are kept as is
func UnquoteURL(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return strings.ToValidUTF8(v, "�")
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return strings.ToValidUTF8(b.String(), "�")
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return c - 'A' + 10
}

// TextStatsInput is the input of text_stats
type TextStatsInput struct {
	Text string `json:"text" jsonschema:"description=Text to analyze"`
}

// TextStatsResult is the output of text_stats
type TextStatsResult struct {
	Chars         int `json:"chars"`
	CharsNoSpaces int `json:"chars_no_spaces"`
	Words         int `json:"words"`
	Lines         int `json:"lines"`
}

// TextStats returns the text_stats tool
func TextStats() *tools.Func[TextStatsInput, TextStatsResult] {
	return tools.MustFunc(TextStatsName,
		"Get simple text statistics (chars/words/lines).",
		func(_ context.Context, in *TextStatsInput) (*TextStatsResult, error) {
			return CountText(in.Text), nil
		})
}

// CountText returns statistics of the text
func CountText(text string) *TextStatsResult {
	res := &TextStatsResult{
		Chars: utf8.RuneCountInString(text),
		Words: len(strings.Fields(text)),
		Lines: countLines(text),
	}
	for _, r := range text {
		if !unicode.IsSpace(r) {
			res.CharsNoSpaces++
		}
	}
	return res
}

// countLines counts lines split on line boundaries,
// a trailing line break does not start a new line
func countLines(text string) int {
	lines := 0
	pending := false
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		switch rs[i] {
		case '\r':
			if i+1 < len(rs) && rs[i+1] == '\n' {
				i++
			}
			lines++
			pending = false
		case '\n', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
			lines++
			pending = false
		default:
			pending = true
		}
	}
	if pending {
		lines++
	}
	return lines
}
