package mimetree

// SelectBody picks the display body: the most recently classified text/html
// candidate, else the most recently classified text/plain candidate, else a
// synthetic empty HTML body with the default charset. Recency realizes the
// multipart/alternative preference without a second pass, because the walker
// appends candidates in document order. Never returns nil: an empty body is
// valid output, not an error.
func SelectBody(candidates []*BodyCandidate, opts Options) *BodyCandidate {
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].MIMEType == "text/html" {
			return candidates[i]
		}
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].MIMEType == "text/plain" {
			return candidates[i]
		}
	}
	return &BodyCandidate{
		MIMEType:  "text/html",
		Text:      "",
		Charset:   opts.defaultCharset(),
		Synthetic: true,
	}
}
