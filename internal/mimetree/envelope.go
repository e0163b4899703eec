package mimetree

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// Envelope holds the header fields shown in the banner and recorded in the
// conversion history. DateRaw keeps the Date header verbatim for display;
// Date is its parsed form and zero when unparseable.
type Envelope struct {
	From      string
	To        []string
	Subject   string
	DateRaw   string
	Date      time.Time
	MessageID string
}

// ParseEnvelope extracts the envelope from the root node's header. Address
// headers are parsed structurally when possible and fall back to the decoded
// raw text when not, unless StrictAddressParsing is set, in which case the
// parse failure is returned.
func ParseEnvelope(root *Node, opts Options) (*Envelope, error) {
	env := &Envelope{}
	if root == nil {
		return env, nil
	}

	h := root.Header
	mh := mail.Header{Header: message.Header{Header: h}}

	rawFrom := strings.TrimSpace(h.Get("From"))
	if rawFrom == "" {
		rawFrom = strings.TrimSpace(h.Get("Sender"))
	}
	if addrs, err := mh.AddressList("From"); err == nil && len(addrs) > 0 {
		env.From = formatAddress(addrs[0])
	} else {
		if err != nil && opts.StrictAddressParsing {
			return env, fmt.Errorf("parse From header: %w", err)
		}
		env.From = decodeWord(rawFrom)
	}

	if addrs, err := mh.AddressList("To"); err == nil {
		for _, addr := range addrs {
			env.To = append(env.To, formatAddress(addr))
		}
	} else {
		if opts.StrictAddressParsing {
			return env, fmt.Errorf("parse To header: %w", err)
		}
		// Same split the banner always showed: comma-separated, each
		// element decoded on its own.
		for _, part := range strings.Split(h.Get("To"), ",") {
			if part = strings.TrimSpace(decodeWord(part)); part != "" {
				env.To = append(env.To, part)
			}
		}
	}

	env.Subject = decodeWord(h.Get("Subject"))
	env.DateRaw = strings.TrimSpace(h.Get("Date"))
	if date, err := mh.Date(); err == nil {
		env.Date = date
	}
	env.MessageID = strings.TrimSpace(h.Get("Message-Id"))

	return env, nil
}

func formatAddress(a *mail.Address) string {
	if a.Name != "" {
		return a.Name + " <" + a.Address + ">"
	}
	return a.Address
}
