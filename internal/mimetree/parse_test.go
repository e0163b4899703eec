package mimetree

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleTextEML = `From: Alice <alice@example.com>
To: bob@example.com
Subject: Lunch
Date: Mon, 1 Jan 2024 10:00:00 +0000
Content-Type: text/plain; charset=utf-8

See you at noon.
`

const mixedEML = `From: alice@example.com
To: bob@example.com
Subject: Report attached
Content-Type: multipart/mixed; boundary=outer

--outer
Content-Type: text/plain; charset=utf-8

Hello
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="report.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQ=
--outer--
`

const nestedEML = `From: alice@example.com
Subject: Nested
Content-Type: multipart/mixed; boundary=outer

--outer
Content-Type: multipart/alternative; boundary=inner

--inner
Content-Type: text/plain; charset=utf-8

plain body
--inner
Content-Type: text/html; charset=utf-8

<p>html body</p>
--inner--
--outer
Content-Type: text/plain; charset=utf-8

tail note
--outer--
`

// TestParse_SingleTextPart tests that a plain single-part message becomes a
// single leaf with its payload intact.
func TestParse_SingleTextPart(t *testing.T) {
	msg, err := Parse(strings.NewReader(simpleTextEML), DefaultOptions())
	require.NoError(t, err, "should parse a simple email without error")

	root := msg.Root
	require.NotNil(t, root)
	assert.True(t, root.IsLeaf())
	assert.Equal(t, "text/plain", root.MediaType())
	assert.Equal(t, "utf-8", root.Charset())
	assert.Equal(t, "1", root.Path())
	assert.Equal(t, "See you at noon.\n", string(root.Raw))
	assert.Empty(t, msg.Problems, "clean input should produce no problems")
}

// TestParse_HeadersOnly tests that a message with no body still parses to a
// usable text/plain leaf.
func TestParse_HeadersOnly(t *testing.T) {
	msg, err := Parse(strings.NewReader("Subject: nothing else\n"), DefaultOptions())
	require.NoError(t, err)

	require.NotNil(t, msg.Root)
	assert.True(t, msg.Root.IsLeaf())
	assert.Equal(t, "text/plain", msg.Root.MediaType(), "missing Content-Type should default")
	assert.Empty(t, msg.Root.Raw)
}

// TestParse_MultipartMixed tests container/leaf structure, part paths, and
// attachment metadata for a two-part mixed message.
func TestParse_MultipartMixed(t *testing.T) {
	msg, err := Parse(strings.NewReader(mixedEML), DefaultOptions())
	require.NoError(t, err)

	root := msg.Root
	assert.True(t, root.IsMultipart())
	assert.False(t, root.IsLeaf())
	assert.Nil(t, root.Raw, "containers must not also carry a payload")
	require.Len(t, root.Children, 2)

	body := root.Children[0]
	assert.Equal(t, "text/plain", body.MediaType())
	assert.Equal(t, "1.1", body.Path())
	assert.Equal(t, "Hello", string(body.Raw))

	att := root.Children[1]
	assert.Equal(t, "application/pdf", att.MediaType())
	assert.Equal(t, "1.2", att.Path())
	assert.Equal(t, "attachment", att.Disposition)
	assert.Equal(t, "report.pdf", att.Filename)
	assert.Equal(t, EncodingBase64, att.Encoding)
	assert.Equal(t, "JVBERi0xLjQ=", string(att.Raw), "payload should stay transfer-encoded")
}

// TestParse_NestedMultipart tests that nested containers keep their shape and
// dotted paths line up with the nesting.
func TestParse_NestedMultipart(t *testing.T) {
	msg, err := Parse(strings.NewReader(nestedEML), DefaultOptions())
	require.NoError(t, err)

	root := msg.Root
	require.Len(t, root.Children, 2)

	alt := root.Children[0]
	assert.Equal(t, "multipart/alternative", alt.MediaType())
	require.Len(t, alt.Children, 2)
	assert.Equal(t, "1.1.1", alt.Children[0].Path())
	assert.Equal(t, "1.1.2", alt.Children[1].Path())
	assert.Equal(t, "text/html", alt.Children[1].MediaType())

	assert.Equal(t, "1.2", root.Children[1].Path())
	assert.Equal(t, "tail note", string(root.Children[1].Raw))
}

// TestParse_MissingBoundary tests both postures for a multipart that declares
// no boundary: lenient keeps it as an opaque leaf, strict refuses.
func TestParse_MissingBoundary(t *testing.T) {
	eml := `Subject: broken
Content-Type: multipart/mixed

this body cannot be split
`

	t.Run("lenient", func(t *testing.T) {
		msg, err := Parse(strings.NewReader(eml), DefaultOptions())
		require.NoError(t, err, "lenient parse should repair, not fail")

		assert.True(t, msg.Root.IsLeaf(), "unsplittable multipart degrades to a leaf")
		assert.True(t, msg.Root.IsMultipart(), "the declared type is kept")
		assert.Equal(t, "this body cannot be split\n", string(msg.Root.Raw))
		require.NotEmpty(t, msg.Problems)
		assert.Equal(t, ProblemHeaderMalformed, msg.Problems[0].Kind)
	})

	t.Run("strict", func(t *testing.T) {
		_, err := Parse(strings.NewReader(eml), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boundary")
	})
}

// TestParse_MissingEndBoundary tests a multipart whose closing delimiter was
// truncated away: lenient keeps the parts read so far and records the damage.
func TestParse_MissingEndBoundary(t *testing.T) {
	eml := `Subject: truncated
Content-Type: multipart/mixed; boundary=cut

--cut
Content-Type: text/plain; charset=utf-8

Part one survives
`

	t.Run("lenient", func(t *testing.T) {
		msg, err := Parse(strings.NewReader(eml), DefaultOptions())
		require.NoError(t, err)

		require.Len(t, msg.Root.Children, 1, "the part before the cut is kept")
		assert.Contains(t, string(msg.Root.Children[0].Raw), "Part one survives")
		require.NotEmpty(t, msg.Problems)
		assert.Equal(t, ProblemHeaderMalformed, msg.Problems[0].Kind)
	})

	t.Run("strict", func(t *testing.T) {
		opts := DefaultOptions()
		opts.IgnoreMissingEndBoundary = false
		_, err := Parse(strings.NewReader(eml), opts)
		require.Error(t, err)
	})
}

// TestParse_EmptyMultipart tests a multipart container that closes without a
// single part in it.
func TestParse_EmptyMultipart(t *testing.T) {
	eml := `Subject: empty
Content-Type: multipart/mixed; boundary=empty

--empty--
`

	t.Run("lenient", func(t *testing.T) {
		msg, err := Parse(strings.NewReader(eml), DefaultOptions())
		require.NoError(t, err)

		assert.True(t, msg.Root.IsLeaf(), "partless multipart degrades to a leaf")
		require.NotEmpty(t, msg.Problems)
		assert.Equal(t, ProblemHeaderMalformed, msg.Problems[0].Kind)
	})

	t.Run("strict", func(t *testing.T) {
		opts := DefaultOptions()
		opts.AllowEmptyMultipart = false
		_, err := Parse(strings.NewReader(eml), opts)
		require.Error(t, err)
	})
}

// TestParse_DepthLimit tests that nesting past MaxDepth keeps the subtree as
// one opaque, truncated leaf while the rest of the tree parses normally.
func TestParse_DepthLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxDepth = 1

	msg, err := Parse(strings.NewReader(nestedEML), opts)
	require.NoError(t, err)

	root := msg.Root
	require.Len(t, root.Children, 2, "the root still splits")

	trunc := root.Children[0]
	assert.True(t, trunc.Truncated)
	assert.True(t, trunc.IsLeaf())
	assert.True(t, trunc.IsMultipart())
	assert.Contains(t, string(trunc.Raw), "--inner", "the unsplit body is kept verbatim")

	assert.False(t, root.Children[1].Truncated)
	assert.Empty(t, msg.Problems, "truncation is reported at classification, not here")
}

// TestParse_ContentIDNormalization tests that content-ids come out bracketed
// whether or not the producer wrote the brackets.
func TestParse_ContentIDNormalization(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"already bracketed", "<img001@mail.example>", "<img001@mail.example>"},
		{"bare", "img002@mail.example", "<img002@mail.example>"},
		{"padded", "  <img003@mail.example>  ", "<img003@mail.example>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eml := "Content-Type: image/png\nContent-Id: " + tt.header + "\n\npayload\n"
			msg, err := Parse(strings.NewReader(eml), DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Root.ContentID)
		})
	}
}

// TestParse_FilenameSources tests the filename fallback chain: the
// Content-Disposition filename wins, the Content-Type name parameter fills
// in, and encoded words decode along the way.
func TestParse_FilenameSources(t *testing.T) {
	t.Run("disposition filename wins over name", func(t *testing.T) {
		eml := "Content-Type: application/pdf; name=ignored.pdf\n" +
			"Content-Disposition: attachment; filename=wanted.pdf\n\npayload\n"
		msg, err := Parse(strings.NewReader(eml), DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, "wanted.pdf", msg.Root.Filename)
	})

	t.Run("name parameter as fallback", func(t *testing.T) {
		eml := "Content-Type: application/pdf; name=fallback.pdf\n\npayload\n"
		msg, err := Parse(strings.NewReader(eml), DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, "fallback.pdf", msg.Root.Filename)
	})

	t.Run("rfc 2047 filename decoded", func(t *testing.T) {
		eml := "Content-Type: application/pdf\n" +
			"Content-Disposition: attachment; filename=\"=?UTF-8?Q?r=C3=A9sum=C3=A9.pdf?=\"\n\npayload\n"
		msg, err := Parse(strings.NewReader(eml), DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, "résumé.pdf", msg.Root.Filename)
	})

	t.Run("rfc 2231 filename decoded", func(t *testing.T) {
		eml := "Content-Type: application/pdf\n" +
			"Content-Disposition: attachment; filename*=utf-8''na%C3%AFve.pdf\n\npayload\n"
		msg, err := Parse(strings.NewReader(eml), DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, "naïve.pdf", msg.Root.Filename)
	})
}

// TestParse_MalformedHeadersRecorded tests that repaired headers surface as
// problems while the parse itself keeps going with sane defaults.
func TestParse_MalformedHeadersRecorded(t *testing.T) {
	t.Run("unparseable content type", func(t *testing.T) {
		eml := "Content-Type: garbage\n\nbody\n"
		msg, err := Parse(strings.NewReader(eml), DefaultOptions())
		require.NoError(t, err)

		assert.Equal(t, "text/plain", msg.Root.MediaType())
		require.NotEmpty(t, msg.Problems)
		assert.Equal(t, ProblemHeaderMalformed, msg.Problems[0].Kind)
		assert.Equal(t, "1", msg.Problems[0].Path)
	})

	t.Run("duplicate charset parameter", func(t *testing.T) {
		eml := "Content-Type: text/html; charset=utf-8; charset=utf-8\n\n<p>hi</p>\n"
		msg, err := Parse(strings.NewReader(eml), DefaultOptions())
		require.NoError(t, err)

		assert.Equal(t, "text/html", msg.Root.MediaType())
		assert.Equal(t, "utf-8", msg.Root.Charset(), "the salvageable charset survives")
		assert.NotEmpty(t, msg.Problems)
	})

	t.Run("unknown transfer encoding", func(t *testing.T) {
		eml := "Content-Type: text/plain\nContent-Transfer-Encoding: x-funky\n\nbody as-is\n"
		msg, err := Parse(strings.NewReader(eml), DefaultOptions())
		require.NoError(t, err)

		assert.Equal(t, EncodingUnknown, msg.Root.Encoding)
		require.NotEmpty(t, msg.Problems)
		assert.Equal(t, ProblemHeaderMalformed, msg.Problems[0].Kind)

		decoded, derr := msg.Root.DecodedBody()
		require.NoError(t, derr, "unknown encodings decode as identity")
		assert.Equal(t, "body as-is\n", string(decoded))
	})
}

// TestParse_EncodedPayloadKeptRaw tests that Parse never transfer-decodes
// leaf payloads behind the caller's back.
func TestParse_EncodedPayloadKeptRaw(t *testing.T) {
	eml := "Content-Type: text/plain; charset=utf-8\n" +
		"Content-Transfer-Encoding: quoted-printable\n\ncaf=C3=A9\n"
	msg, err := Parse(strings.NewReader(eml), DefaultOptions())
	require.NoError(t, err)

	assert.Contains(t, string(msg.Root.Raw), "=C3=A9")

	decoded, err := msg.Root.DecodedBody()
	require.NoError(t, err)
	assert.Equal(t, "café\n", string(decoded))
}

// TestParseFile tests the file-based entrypoint against a message written to
// disk, and the error path for a file that is not there.
func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simple.eml")
	require.NoError(t, os.WriteFile(path, []byte(simpleTextEML), 0644))

	msg, err := ParseFile(path, DefaultOptions())
	require.NoError(t, err, "should parse an eml file without error")
	assert.Equal(t, "text/plain", msg.Root.MediaType())

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.eml"), DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}
