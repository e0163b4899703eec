package mimetree

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"
	"strings"
)

// decodeTransfer reverses a transfer encoding. 7bit, 8bit, binary, and
// unknown encodings pass the bytes through unchanged; unknown is treated as
// identity because rejecting mail over an unrecognized token helps nobody.
func decodeTransfer(raw []byte, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingQuotedPrintable:
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("quoted-printable decode: %w", err)
		}
		return decoded, nil
	case EncodingBase64:
		return decodeBase64(raw)
	case EncodingUUEncode:
		return decodeUUEncoded(raw)
	default:
		return raw, nil
	}
}

// decodeBase64 decodes through a streaming decoder first, which tolerates
// line breaks, then retries as raw (unpadded) base64 with whitespace
// stripped before giving up.
func decodeBase64(raw []byte) ([]byte, error) {
	decoded, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, bytes.NewReader(raw)))
	if err == nil {
		return decoded, nil
	}

	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, string(raw))
	cleaned = strings.TrimRight(cleaned, "=")
	if decoded, retryErr := base64.RawStdEncoding.DecodeString(cleaned); retryErr == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("base64 decode: %w", err)
}

// decodeUUEncoded decodes a uuencoded payload. The begin line is optional
// because some producers omit it; data lines carry their decoded length in
// the first character, 6 bits per character after that.
func decodeUUEncoded(raw []byte) ([]byte, error) {
	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	started := false
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "begin ") {
			started = true
			continue
		}
		if line == "" {
			continue
		}
		if line == "end" {
			break
		}
		if !started {
			if !looksLikeUULine(line) {
				continue
			}
			started = true
		}
		if line == "`" {
			continue
		}

		n := int(line[0]-0x20) & 0x3f
		if n == 0 {
			continue
		}
		data := line[1:]
		decoded := make([]byte, 0, n)
		for i := 0; i+3 < len(data) && len(decoded) < n; i += 4 {
			c0 := uuSixBits(data[i])
			c1 := uuSixBits(data[i+1])
			c2 := uuSixBits(data[i+2])
			c3 := uuSixBits(data[i+3])
			decoded = append(decoded, c0<<2|c1>>4, c1<<4|c2>>2, c2<<6|c3)
		}
		if len(decoded) < n {
			return nil, fmt.Errorf("uudecode: truncated line %q", line)
		}
		out.Write(decoded[:n])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("uudecode: %w", err)
	}
	if !started {
		return nil, fmt.Errorf("uudecode: no data lines found")
	}
	return out.Bytes(), nil
}

func uuSixBits(c byte) byte {
	return (c - 0x20) & 0x3f
}

// looksLikeUULine checks that a line's first character encodes a plausible
// length for the data that follows it, which is how data is told apart from
// stray text when the begin line is missing.
func looksLikeUULine(line string) bool {
	if line[0] < 0x20 || line[0] > 0x60 {
		return false
	}
	n := int(line[0]-0x20) & 0x3f
	if n == 0 {
		return false
	}
	need := (n + 2) / 3 * 4
	return len(line)-1 >= need
}
