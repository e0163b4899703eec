package mimetree

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func init() {
	// Register additional charsets that are commonly used in emails
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
	charset.RegisterEncoding("gbk", simplifiedchinese.GBK)
	charset.RegisterEncoding("gb2312", simplifiedchinese.GBK)
	charset.RegisterEncoding("gb18030", simplifiedchinese.GB18030)
}

// decodeText converts raw bytes to a UTF-8 string using the declared charset.
// It never gives up: when the declared charset is absent, unrecognized, or
// fails to decode, it falls back to detection (when enabled), then to the
// default charset, and finally to the bytes as they are. The returned charset
// is the one actually used; a non-nil error means a fallback happened and is
// for diagnostics only, the text is always usable.
func decodeText(data []byte, declared string, opts Options) (string, string, error) {
	cs := strings.ToLower(strings.TrimSpace(strings.Trim(declared, `"'`)))
	if cs == "" && opts.DetectCharset {
		cs = detectCharset(data)
	}
	if cs == "" {
		cs = strings.ToLower(opts.defaultCharset())
	}

	if text, ok := tryDecode(data, cs); ok {
		return text, cs, nil
	}

	if opts.DetectCharset {
		if det := detectCharset(data); det != "" && det != cs {
			if text, ok := tryDecode(data, det); ok {
				return text, det, fmt.Errorf("charset %q unusable, decoded as detected %q", cs, det)
			}
		}
	}

	if def := strings.ToLower(opts.defaultCharset()); def != cs {
		if text, ok := tryDecode(data, def); ok {
			return text, def, fmt.Errorf("charset %q unusable, decoded with default %q", cs, def)
		}
	}

	return string(data), cs, fmt.Errorf("charset %q unusable, kept raw bytes", cs)
}

func tryDecode(data []byte, cs string) (string, bool) {
	switch cs {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return string(data), true
	}
	r, err := charset.Reader(cs, bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

func detectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return ""
	}
	return strings.ToLower(result.Charset)
}

// decodeWord decodes MIME-encoded words (RFC 2047)
// Example: =?UTF-8?Q?Invitaci=C3=B3n?= -> Invitación
func decodeWord(s string) string {
	dec := &mime.WordDecoder{CharsetReader: charset.Reader}
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		// If decoding fails, return original string
		return s
	}
	return decoded
}
