package mimetree

// DefaultCharset is assumed whenever a part declares no charset, declares one
// nobody recognizes, or its text cannot be decoded with the declared one.
const DefaultCharset = "utf-8"

// DefaultMaxDepth bounds multipart nesting; real mail rarely nests more than
// four or five levels, so anything past this is treated as adversarial.
const DefaultMaxDepth = 100

// Options controls how lenient parsing is. The zero value is fully strict;
// DefaultOptions returns the lenient posture appropriate for real-world mail.
// Options are passed by value and never mutated after construction.
type Options struct {
	// DefaultCharset is the fallback charset for text decoding.
	DefaultCharset string

	// MaxDepth is the maximum multipart nesting depth. Subtrees past the
	// limit are kept as single opaque leaves instead of being split.
	MaxDepth int

	// IgnoreMissingBoundary keeps a multipart part without a boundary
	// parameter as an opaque leaf instead of failing the parse.
	IgnoreMissingBoundary bool

	// IgnoreMissingEndBoundary accepts multipart bodies whose closing
	// boundary is missing or truncated, keeping the parts read so far.
	IgnoreMissingEndBoundary bool

	// AllowEmptyMultipart degrades a multipart container with no parts to
	// an empty leaf instead of failing the parse.
	AllowEmptyMultipart bool

	// StrictAddressParsing makes ParseEnvelope fail on malformed address
	// headers instead of falling back to the raw decoded header text.
	StrictAddressParsing bool

	// DetectCharset enables content-based charset detection when a text
	// part declares no charset or an unrecognized one.
	DetectCharset bool
}

// DefaultOptions returns the lenient defaults used for real-world mail.
func DefaultOptions() Options {
	return Options{
		DefaultCharset:           DefaultCharset,
		MaxDepth:                 DefaultMaxDepth,
		IgnoreMissingBoundary:    true,
		IgnoreMissingEndBoundary: true,
		AllowEmptyMultipart:      true,
	}
}

func (o Options) defaultCharset() string {
	if o.DefaultCharset != "" {
		return o.DefaultCharset
	}
	return DefaultCharset
}

func (o Options) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}
