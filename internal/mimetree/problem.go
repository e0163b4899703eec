package mimetree

import "fmt"

// ProblemKind categorizes a recovered parsing or decoding defect.
type ProblemKind int

const (
	// ProblemHeaderMalformed means a structured header could not be parsed
	// as written and was repaired or replaced with a default.
	ProblemHeaderMalformed ProblemKind = iota

	// ProblemDecodeFailed means a leaf's transfer or charset decoding
	// failed and the leaf was downgraded (attachment with raw bytes, or
	// text re-decoded with the default charset).
	ProblemDecodeFailed

	// ProblemStructureTooDeep means the nesting limit was hit and a whole
	// subtree was kept as a single opaque attachment.
	ProblemStructureTooDeep

	// ProblemNoBodyFound means the message had no displayable text part and
	// an empty synthetic body was used instead.
	ProblemNoBodyFound
)

func (k ProblemKind) String() string {
	switch k {
	case ProblemHeaderMalformed:
		return "header malformed"
	case ProblemDecodeFailed:
		return "decode failed"
	case ProblemStructureTooDeep:
		return "structure too deep"
	case ProblemNoBodyFound:
		return "no body found"
	default:
		return fmt.Sprintf("problem(%d)", int(k))
	}
}

// Problem records one defect that was recovered from during parsing or
// classification. Problems are diagnostics, never failures: the affected part
// has already been degraded to a safe classification by the time a Problem is
// recorded.
type Problem struct {
	Kind ProblemKind
	// Path locates the affected part, "1" being the root and "1.2.3" the
	// third child of the second child of the root.
	Path string
	Err  error
}

func (p Problem) String() string {
	if p.Err == nil {
		return fmt.Sprintf("part %s: %s", p.Path, p.Kind)
	}
	return fmt.Sprintf("part %s: %s: %v", p.Path, p.Kind, p.Err)
}
