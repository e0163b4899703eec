package htmlgen

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/emltools/eml2pdf/internal/mimetree"
)

// documentTemplate wraps a body fragment into a standalone HTML document.
// The charset meta is filled from the message (the assembled output is
// always UTF-8); the fixed font size keeps wkhtmltopdf's print scaling
// readable on A4.
const documentTemplate = `<!DOCTYPE html><html><head><style>body{font-size: 0.5cm;}</style><meta charset="%s"><title>title</title></head><body>%s</body></html>`

// plainDocumentTemplate is the same document without the print font style,
// used when the message supplied its own HTML.
const plainDocumentTemplate = `<!DOCTYPE html><html><head><meta charset="%s"><title>title</title></head><body>%s</body></html>`

const headerRowTemplate = `<tr><td class="header-name">%s</td><td class="header-value">%s</td></tr>`

const bannerStyle = `<style>.header-name {color:#9E9E9E; text-align:right;}</style>`

// headSeam is where the document templates switch from head to body; the
// banner is spliced in here.
const headSeam = `</head><body>`

var outerTagPattern = regexp.MustCompile(`(?i)</?(?:html|body)(?:\s[^>]*)?>`)

// WrapPlainBody turns a decoded text/plain body into a standalone HTML
// document: the text is HTML-escaped, newlines become <br>, carriage returns
// are dropped, and spaces become non-breaking so runs of them survive
// rendering.
func WrapPlainBody(text, charset string) string {
	body := html.EscapeString(text)
	body = strings.ReplaceAll(body, "\r", "")
	body = strings.ReplaceAll(body, "\n", "<br>")
	body = strings.ReplaceAll(body, " ", "&nbsp;")
	return fmt.Sprintf(documentTemplate, charset, body)
}

// WrapHTMLBody re-homes a decoded text/html body into the document template:
// outer <html> and <body> tags are stripped, attributes included, and the
// rest is kept as the new document's body. Head content the message carried
// (styles mostly) stays in the fragment; browsers and wkhtmltopdf accept it
// there.
func WrapHTMLBody(body, charset string) string {
	body = outerTagPattern.ReplaceAllString(body, "")
	return fmt.Sprintf(plainDocumentTemplate, charset, body)
}

// BuildHeaderBanner renders the From / Subject / To / Date table shown above
// the message body. Empty fields are omitted; an envelope with nothing to
// show yields "". All values are escaped.
func BuildHeaderBanner(env *mimetree.Envelope) string {
	if env == nil {
		return ""
	}

	var rows strings.Builder
	if env.From != "" {
		fmt.Fprintf(&rows, headerRowTemplate, "From:", html.EscapeString(env.From))
	}
	if env.Subject != "" {
		fmt.Fprintf(&rows, headerRowTemplate, "Subject:", "<b>"+html.EscapeString(env.Subject)+"</b>")
	}
	if len(env.To) > 0 {
		fmt.Fprintf(&rows, headerRowTemplate, "To:", html.EscapeString(strings.Join(env.To, ", ")))
	}
	if env.DateRaw != "" {
		fmt.Fprintf(&rows, headerRowTemplate, "Date:", html.EscapeString(env.DateRaw))
	}
	if rows.Len() == 0 {
		return ""
	}
	return `<table style="border:1px solid #DDD; margin: 8px">` + rows.String() + `</table>`
}

// InjectHeaderBanner splices the banner table and its style into a document
// produced by the wrappers, right at the head/body seam. A document without
// the seam (or an empty banner) passes through unchanged.
func InjectHeaderBanner(doc, banner string) string {
	if banner == "" {
		return doc
	}
	return strings.Replace(doc, headSeam, bannerStyle+headSeam+banner, 1)
}
