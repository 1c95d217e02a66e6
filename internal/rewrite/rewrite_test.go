package rewrite

import (
	"strings"
	"testing"
)

func raw(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func headerBlock(t *testing.T, msg []byte) string {
	t.Helper()
	sep := strings.Index(string(msg), "\r\n\r\n")
	if sep < 0 {
		t.Fatalf("rewritten message has no header/body separator:\n%s", msg)
	}
	return string(msg[:sep])
}

func countHeader(block, name string) int {
	count := 0
	for _, line := range strings.Split(block, "\r\n") {
		if strings.HasPrefix(strings.ToLower(line), strings.ToLower(name)+":") {
			count++
		}
	}
	return count
}

func TestRewrite_VerifiedFromAndReplyTo(t *testing.T) {
	t.Parallel()

	input := raw(
		"From: Alice <alice@x.com>",
		"Subject: Hi",
		"",
		"Body",
	)

	out := Rewrite("info@example.com", input, []string{"owner@gmail.com"}, Options{
		FromEmail: "noreply@y.com",
	})
	block := headerBlock(t, out)

	if !strings.Contains(block, "From: Alice <noreply@y.com>") {
		t.Errorf("missing rewritten From header:\n%s", block)
	}
	if !strings.Contains(block, "Reply-To: Alice <alice@x.com>") {
		t.Errorf("missing synthesized Reply-To header:\n%s", block)
	}
	if !strings.HasSuffix(string(out), "\r\n\r\nBody") {
		t.Errorf("body not passed through unchanged:\n%s", out)
	}
}

func TestRewrite_NoFromEmailFallsBackToOriginalRecipient(t *testing.T) {
	t.Parallel()

	input := raw(
		"From: Alice <alice@x.com>",
		"",
		"Body",
	)

	out := Rewrite("info@example.com", input, nil, Options{})
	block := headerBlock(t, out)

	if !strings.Contains(block, "From: Alice at alice@x.com <info@example.com>") {
		t.Errorf("missing mangled From header:\n%s", block)
	}
}

func TestRewrite_ExistingReplyToKept(t *testing.T) {
	t.Parallel()

	input := raw(
		"From: Alice <alice@x.com>",
		"Reply-To: replies@x.com",
		"",
		"Body",
	)

	out := Rewrite("info@example.com", input, nil, Options{FromEmail: "noreply@y.com"})
	block := headerBlock(t, out)

	if !strings.Contains(block, "Reply-To: replies@x.com") {
		t.Errorf("existing Reply-To not preserved:\n%s", block)
	}
	if got := countHeader(block, "Reply-To"); got != 1 {
		t.Errorf("Reply-To count: got %d, want 1:\n%s", got, block)
	}
}

func TestRewrite_ExactlyOneFromAndReplyTo(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input []byte
	}{
		{"no from", raw("Subject: Hi", "", "Body")},
		{"one from", raw("From: a@x.com", "", "Body")},
		{"duplicate from", raw("From: a@x.com", "From: b@x.com", "Reply-To: r@x.com", "Reply-To: r2@x.com", "", "Body")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Rewrite("info@example.com", tc.input, nil, Options{FromEmail: "noreply@y.com"})
			block := headerBlock(t, out)

			if got := countHeader(block, "From"); got != 1 {
				t.Errorf("From count: got %d, want 1:\n%s", got, block)
			}
			if got := countHeader(block, "Reply-To"); got != 1 {
				t.Errorf("Reply-To count: got %d, want 1:\n%s", got, block)
			}
		})
	}
}

func TestRewrite_DropsSignatureAndRoutingHeaders(t *testing.T) {
	t.Parallel()

	input := raw(
		"Return-Path: <bounce@x.com>",
		"DKIM-Signature: v=1; a=rsa-sha256; d=x.com;",
		"\tbh=abcdef;",
		"\tb=123456",
		"Sender: sender@x.com",
		"Message-ID: <orig@x.com>",
		"From: Alice <alice@x.com>",
		"Subject: Hi",
		"",
		"Body",
	)

	out := Rewrite("info@example.com", input, nil, Options{FromEmail: "noreply@y.com"})
	block := headerBlock(t, out)

	for _, name := range []string{"Return-Path", "DKIM-Signature", "Sender", "Message-ID"} {
		if got := countHeader(block, name); got != 0 {
			t.Errorf("%s count: got %d, want 0:\n%s", name, got, block)
		}
	}
	if strings.Contains(block, "bh=abcdef") {
		t.Errorf("folded DKIM-Signature continuation survived:\n%s", block)
	}
	if !strings.Contains(block, "Subject: Hi") {
		t.Errorf("unrelated Subject header lost:\n%s", block)
	}
}

func TestRewrite_RemovalIdempotent(t *testing.T) {
	t.Parallel()

	input := raw(
		"Return-Path: <bounce@x.com>",
		"DKIM-Signature: v=1; b=123",
		"From: Alice <alice@x.com>",
		"",
		"Body",
	)
	opts := Options{FromEmail: "noreply@y.com"}

	once := Rewrite("info@example.com", input, nil, opts)
	twice := Rewrite("info@example.com", once, nil, opts)

	onceBlock := headerBlock(t, once)
	twiceBlock := headerBlock(t, twice)

	for _, name := range []string{"Return-Path", "DKIM-Signature", "Sender", "Message-ID"} {
		if got := countHeader(twiceBlock, name); got != 0 {
			t.Errorf("%s present after second rewrite:\n%s", name, twiceBlock)
		}
	}
	if countHeader(onceBlock, "From") != 1 || countHeader(twiceBlock, "From") != 1 {
		t.Error("From header count changed across rewrites")
	}
}

func TestRewrite_SubjectPrefix(t *testing.T) {
	t.Parallel()

	input := raw(
		"From: alice@x.com",
		"Subject: Quarterly report",
		"",
		"Body",
	)

	out := Rewrite("info@example.com", input, nil, Options{
		FromEmail:     "noreply@y.com",
		SubjectPrefix: "[fwd] ",
	})
	block := headerBlock(t, out)

	if !strings.Contains(block, "Subject: [fwd] Quarterly report") {
		t.Errorf("subject prefix not applied:\n%s", block)
	}
}

func TestRewrite_ToReplacedWithDestinations(t *testing.T) {
	t.Parallel()

	input := raw(
		"From: alice@x.com",
		"To: info@example.com",
		"",
		"Body",
	)

	out := Rewrite("info@example.com", input, []string{"owner@gmail.com", "second@gmail.com"}, Options{
		FromEmail: "noreply@y.com",
		RewriteTo: true,
	})
	block := headerBlock(t, out)

	if !strings.Contains(block, "To: owner@gmail.com, second@gmail.com") {
		t.Errorf("To header not rewritten:\n%s", block)
	}
	if got := countHeader(block, "To"); got != 1 {
		t.Errorf("To count: got %d, want 1:\n%s", got, block)
	}
}

func TestRewrite_ToPassthroughByDefault(t *testing.T) {
	t.Parallel()

	input := raw(
		"From: alice@x.com",
		"To: info@example.com",
		"",
		"Body",
	)

	out := Rewrite("info@example.com", input, []string{"owner@gmail.com"}, Options{FromEmail: "noreply@y.com"})
	block := headerBlock(t, out)

	if !strings.Contains(block, "To: info@example.com") {
		t.Errorf("To header not passed through:\n%s", block)
	}
}

func TestRewrite_FoldedHeaderUnfolded(t *testing.T) {
	t.Parallel()

	input := raw(
		"From: alice@x.com",
		"Subject: a subject that",
		" spans two lines",
		"",
		"Body",
	)

	out := Rewrite("info@example.com", input, nil, Options{
		FromEmail:     "noreply@y.com",
		SubjectPrefix: "FW: ",
	})
	block := headerBlock(t, out)

	if !strings.Contains(block, "Subject: FW: a subject that spans two lines") {
		t.Errorf("folded subject not unfolded before prefixing:\n%s", block)
	}
}

func TestRewrite_LFOnlyLineEndings(t *testing.T) {
	t.Parallel()

	input := []byte("From: alice@x.com\nSubject: Hi\n\nBody line one\nBody line two")

	out := Rewrite("info@example.com", input, nil, Options{FromEmail: "noreply@y.com"})
	block := headerBlock(t, out)

	if !strings.Contains(block, "From: <noreply@y.com>") && !strings.Contains(block, "noreply@y.com") {
		t.Errorf("From not rewritten for LF message:\n%s", block)
	}
	if !strings.HasSuffix(string(out), "Body line one\nBody line two") {
		t.Errorf("LF body not preserved byte-for-byte:\n%s", out)
	}
}

func TestRewrite_ProvenanceHeader(t *testing.T) {
	t.Parallel()

	input := raw("From: alice@x.com", "", "Body")

	out := Rewrite("info@example.com", input, nil, Options{
		FromEmail:  "noreply@y.com",
		Provenance: "s3://mail-inbound/inbound/abc123",
	})
	block := headerBlock(t, out)

	if !strings.Contains(block, "X-Forwarder-Original: s3://mail-inbound/inbound/abc123") {
		t.Errorf("provenance header missing:\n%s", block)
	}
}

func TestRewrite_Trailer(t *testing.T) {
	t.Parallel()

	input := raw("From: Alice <alice@x.com>", "", "Body")

	out := Rewrite("info@example.com", input, nil, Options{
		FromEmail: "noreply@y.com",
		Trailer:   true,
	})

	s := string(out)
	if !strings.Contains(s, "forwarded from info@example.com") {
		t.Errorf("trailer missing forwarding origin:\n%s", s)
	}
	if !strings.Contains(s, "Replies go to Alice <alice@x.com>") {
		t.Errorf("trailer missing reply address:\n%s", s)
	}
	if !strings.Contains(s, "\r\n\r\nBody\r\n\r\n---") {
		t.Errorf("trailer not appended after untouched body:\n%s", s)
	}
}
