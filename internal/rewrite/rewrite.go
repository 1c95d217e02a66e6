// Package rewrite mutates the header block of a raw RFC 5322 message so a
// forwarded copy is deliverable from a verified sending identity. The body
// is passed through byte-for-byte.
package rewrite

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
)

const crlf = "\r\n"

// Options controls how the header block is rewritten.
type Options struct {
	// FromEmail is the verified identity used as the new From address.
	// When empty, the original recipient is used instead and the original
	// From line is mangled into the display text.
	FromEmail string
	// SubjectPrefix is prepended to the Subject value when non-empty.
	SubjectPrefix string
	// RewriteTo replaces the To header with the forward destinations.
	RewriteTo bool
	// Trailer appends a short note to the body naming the forwarding
	// origin and the reply address.
	Trailer bool
	// Provenance, when non-empty, is recorded in an X-Forwarder-Original
	// header (typically the s3://bucket/key of the stored message).
	Provenance string
}

// headerLine is one logical (unfolded) header. Lines that are not valid
// "Name: value" headers keep their raw text and pass through untouched.
type headerLine struct {
	name  string
	value string
	raw   string
}

// Rewrite returns the raw message with its header block rewritten:
// From is replaced with a verified identity, Reply-To is synthesized when
// missing, Subject is prefixed, and Return-Path, Sender, Message-ID and
// DKIM-Signature lines are dropped. Header order is preserved except for
// appended headers. The operation is idempotent on the removals.
func Rewrite(originalRecipient string, raw []byte, destinations []string, opts Options) []byte {
	headerBlock, body := splitMessage(raw)
	headers := parseHeaders(headerBlock)

	origFrom := firstValue(headers, "From")
	origReplyTo := firstValue(headers, "Reply-To")

	newFrom := rewriteFrom(origFrom, originalRecipient, opts.FromEmail)

	var out []headerLine
	seenFrom := false
	seenReplyTo := false
	seenTo := false
	seenSubject := false

	for _, h := range headers {
		if h.raw != "" {
			out = append(out, h)
			continue
		}
		switch {
		case dropHeader(h.name):
			continue
		case strings.EqualFold(h.name, "From"):
			if seenFrom {
				continue
			}
			seenFrom = true
			out = append(out, headerLine{name: h.name, value: newFrom})
		case strings.EqualFold(h.name, "Reply-To"):
			if seenReplyTo {
				continue
			}
			seenReplyTo = true
			out = append(out, h)
		case strings.EqualFold(h.name, "To") && opts.RewriteTo && len(destinations) > 0:
			if seenTo {
				continue
			}
			seenTo = true
			out = append(out, headerLine{name: h.name, value: strings.Join(destinations, ", ")})
		case strings.EqualFold(h.name, "Subject") && opts.SubjectPrefix != "":
			if seenSubject {
				out = append(out, h)
				continue
			}
			seenSubject = true
			out = append(out, headerLine{name: h.name, value: opts.SubjectPrefix + h.value})
		default:
			out = append(out, h)
		}
	}

	// The message must carry a From even when the input had none.
	if !seenFrom {
		out = append(out, headerLine{name: "From", value: newFrom})
	}

	// Replies must still reach the true sender.
	replyTo := origReplyTo
	if !seenReplyTo {
		replyTo = origFrom
		if replyTo == "" {
			replyTo = originalRecipient
		}
		out = append(out, headerLine{name: "Reply-To", value: replyTo})
	}

	if opts.Provenance != "" {
		out = append(out, headerLine{name: "X-Forwarder-Original", value: opts.Provenance})
	}

	var buf bytes.Buffer
	for _, h := range out {
		if h.raw != "" {
			buf.WriteString(h.raw)
		} else {
			buf.WriteString(h.name)
			buf.WriteString(": ")
			buf.WriteString(h.value)
		}
		buf.WriteString(crlf)
	}
	buf.WriteString(crlf)
	buf.Write(body)

	if opts.Trailer {
		fmt.Fprintf(&buf, "%s%s---%sThis message was forwarded from %s. Replies go to %s.%s",
			crlf, crlf, crlf, originalRecipient, replyTo, crlf)
	}

	return buf.Bytes()
}

// rewriteFrom builds the replacement From value. With a verified fromEmail
// the original display text is kept; without one the whole original From
// is mangled into plain text and the original recipient becomes the
// address, since the transport rejects unverified sources.
func rewriteFrom(origFrom, originalRecipient, fromEmail string) string {
	if fromEmail != "" {
		display := stripAngleAddr(origFrom)
		if display == "" {
			return "<" + fromEmail + ">"
		}
		addr := mail.Address{Name: display, Address: fromEmail}
		return addr.String()
	}

	mangled := strings.Replace(origFrom, "<", "at ", 1)
	mangled = strings.Replace(mangled, ">", "", 1)
	mangled = strings.TrimSpace(mangled)
	if mangled == "" {
		return "<" + originalRecipient + ">"
	}
	return mangled + " <" + originalRecipient + ">"
}

// stripAngleAddr removes the "<addr>" segment from a From value, leaving
// the display text.
func stripAngleAddr(from string) string {
	open := strings.Index(from, "<")
	if open < 0 {
		return strings.TrimSpace(from)
	}
	end := strings.LastIndex(from, ">")
	if end < open {
		return strings.TrimSpace(from[:open])
	}
	return strings.TrimSpace(from[:open] + from[end+1:])
}

// dropHeader reports whether the header is removed outright: stale
// signatures and routing headers that the outbound transport either
// rejects or regenerates.
func dropHeader(name string) bool {
	switch {
	case strings.EqualFold(name, "Return-Path"),
		strings.EqualFold(name, "Sender"),
		strings.EqualFold(name, "Message-ID"),
		strings.EqualFold(name, "DKIM-Signature"):
		return true
	}
	return false
}

// splitMessage divides a raw message into header block and body at the
// first blank line. A message without a blank line is all headers.
func splitMessage(raw []byte) (header, body []byte) {
	sep, sepLen := -1, 0
	if k := bytes.Index(raw, []byte("\r\n\r\n")); k >= 0 {
		sep, sepLen = k, 4
	}
	if k := bytes.Index(raw, []byte("\n\n")); k >= 0 && (sep < 0 || k < sep) {
		sep, sepLen = k, 2
	}
	if sep < 0 {
		return raw, nil
	}
	return raw[:sep], raw[sep+sepLen:]
}

// parseHeaders splits the header block into logical header lines,
// unfolding continuation lines into the preceding header's value.
func parseHeaders(block []byte) []headerLine {
	if len(block) == 0 {
		return nil
	}

	var headers []headerLine
	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			// Folded continuation of the previous logical header.
			if n := len(headers); n > 0 {
				prev := &headers[n-1]
				if prev.raw == "" {
					prev.value += " " + strings.TrimLeft(line, " \t")
					continue
				}
			}
			headers = append(headers, headerLine{raw: line})
			continue
		}

		colon := strings.Index(line, ":")
		if colon <= 0 {
			// Not a header (e.g. an mbox "From " line); keep verbatim.
			headers = append(headers, headerLine{raw: line})
			continue
		}

		headers = append(headers, headerLine{
			name:  line[:colon],
			value: strings.TrimLeft(line[colon+1:], " \t"),
		})
	}
	return headers
}

// firstValue returns the value of the first header with the given name.
func firstValue(headers []headerLine, name string) string {
	for _, h := range headers {
		if h.raw == "" && strings.EqualFold(h.name, name) {
			return h.value
		}
	}
	return ""
}
