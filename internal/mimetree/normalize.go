package mimetree

import (
	"errors"
	"mime"
	"regexp"
	"strings"
)

// fallbackMediaType is substituted when no usable type/subtype pair can be
// recovered from a Content-Type header.
const fallbackMediaType = "text/plain"

var charsetPattern = regexp.MustCompile(`(?i)charset\s*=\s*"?\s*([A-Za-z0-9][A-Za-z0-9._:+-]*)`)

// NormalizeContentType repairs a Content-Type header value so that
// mime.ParseMediaType accepts it. It is total and deterministic: any input,
// including the empty string, yields a parseable media type, and normalizing
// an already-normalized value returns it unchanged. Recoverable parameters
// (notably charset) are preserved; only the unparsable remainder is dropped.
// When no type/subtype pair can be recovered at all, text/plain is
// substituted.
func NormalizeContentType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallbackMediaType
	}

	mt, params, err := mime.ParseMediaType(raw)
	if err == nil {
		// ParseMediaType accepts bare tokens ("inline", "garbage") because
		// it doubles as a Content-Disposition parser. A Content-Type needs
		// a type/subtype pair, so anything slash-less falls back.
		if !validMediaType(mt) {
			mt = fallbackMediaType
		}
		return formatMediaType(mt, params)
	}

	// The type/subtype part was fine and only a parameter broke; keep the
	// type and salvage what we can, starting with the charset.
	if errors.Is(err, mime.ErrInvalidMediaParameter) {
		if params == nil {
			params = make(map[string]string)
		}
		if _, ok := params["charset"]; !ok {
			if cs := salvageCharset(raw); cs != "" {
				params["charset"] = cs
			}
		}
		return formatMediaType(mt, params)
	}

	// Full repair: rebuild the value segment by segment. Duplicate
	// parameters (first occurrence wins), stray quotes, and junk segments
	// are the common failure modes here.
	segs := strings.Split(raw, ";")
	mt = strings.ToLower(strings.TrimSpace(segs[0]))
	if !validMediaType(mt) {
		mt = fallbackMediaType
	}
	return formatMediaType(mt, repairParameters(segs[1:]))
}

// normalizeDisposition leniently parses a Content-Disposition value into its
// kind token and parameters. Unrecognized kinds are kept verbatim; a kind
// that cannot be recovered at all comes back empty. The second return
// reports whether the header had to be repaired.
func normalizeDisposition(raw string) (string, map[string]string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil, false
	}
	if kind, params, err := mime.ParseMediaType(raw); err == nil {
		return kind, params, false
	}

	segs := strings.Split(raw, ";")
	kind := strings.ToLower(strings.TrimSpace(segs[0]))
	if !tokenValid(kind) {
		kind = ""
	}
	return kind, repairParameters(segs[1:]), true
}

// repairParameters rebuilds "key=value" segments, dropping anything that
// cannot be recovered. The first occurrence of a duplicated key wins.
func repairParameters(segs []string) map[string]string {
	params := make(map[string]string)
	for _, seg := range segs {
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if !tokenValid(key) {
			continue
		}
		if _, dup := params[key]; dup {
			continue
		}
		value = stripControls(strings.Trim(strings.TrimSpace(value), `"`))
		if value == "" {
			continue
		}
		params[key] = value
	}
	return params
}

// formatMediaType canonicalizes through mime.FormatMediaType so that
// re-normalizing output is a no-op. FormatMediaType returns "" when it
// cannot represent the input, in which case the parameters are shed and, at
// the last resort, text/plain is substituted.
func formatMediaType(mt string, params map[string]string) string {
	if out := mime.FormatMediaType(mt, params); out != "" {
		return out
	}
	if out := mime.FormatMediaType(mt, nil); out != "" {
		return out
	}
	return fallbackMediaType
}

func salvageCharset(raw string) string {
	m := charsetPattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}

func validMediaType(mt string) bool {
	typ, sub, ok := strings.Cut(mt, "/")
	return ok && tokenValid(typ) && tokenValid(sub)
}

// tokenValid reports whether s is a valid RFC 2045 token: at least one
// character, none of which are control characters, space, or tspecials.
func tokenValid(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c >= 0x7f || strings.ContainsRune(`()<>@,;:\"/[]?=`, rune(c)) {
			return false
		}
	}
	return true
}

// normalizeToken lowercases a header token, shedding whitespace and quotes
// some producers wrap around values like the transfer encoding.
func normalizeToken(v string) string {
	return strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(v), `"`)))
}

func stripControls(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}
