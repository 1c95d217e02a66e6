// Package handler orchestrates one forwarding invocation: it validates
// the inbound SES trigger, resolves forward destinations, consumes the
// receipt verdicts, fetches the stored message, rewrites its headers and
// re-submits it through the outbound transport.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/shineum/ses-forwarder-lite/internal/mailer"
	"github.com/shineum/ses-forwarder-lite/internal/rewrite"
	"github.com/shineum/ses-forwarder-lite/internal/route"
)

// Expected trigger tags; anything else is rejected before side effects.
const (
	expectedEventSource  = "aws:ses"
	expectedEventVersion = "1.0"
)

// verdictFail is the receipt status that aborts the pipeline when spam
// rejection is enabled.
const verdictFail = "FAIL"

// Fetcher retrieves the stored raw message for a received mail.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// Notifier is the optional best-effort summary channel.
type Notifier interface {
	Enabled() bool
	Post(ctx context.Context, content string) error
}

// Config holds the per-process settings the pipeline needs.
type Config struct {
	Bucket         string
	EmailKeyPrefix string
	FromEmail      string
	SubjectPrefix  string
	RewriteTo      bool
	Trailer        bool
	RejectSpam     bool
	NotifyRequired bool
}

// Handler processes one inbound mail event per invocation.
type Handler struct {
	cfg      Config
	router   *route.Table
	fetcher  Fetcher
	sender   mailer.Sender
	notifier Notifier
}

// New creates a Handler. notifier may be nil when no webhook is configured.
func New(cfg Config, router *route.Table, fetcher Fetcher, sender mailer.Sender, notifier Notifier) *Handler {
	return &Handler{
		cfg:      cfg,
		router:   router,
		fetcher:  fetcher,
		sender:   sender,
		notifier: notifier,
	}
}

// Status is the three-way outcome of a pipeline run.
type Status int

const (
	// StatusDelivered means the rewritten message was handed to the
	// outbound transport.
	StatusDelivered Status = iota
	// StatusRejected means a receipt verdict stopped the pipeline; this
	// is an intentional skip, not an error.
	StatusRejected
	// StatusFailed means a stage failed and the invocation gave up.
	StatusFailed
)

// Outcome reports how the pipeline ended. Stage and Err are set for
// failures; Verdict names the failing receipt check for rejections.
type Outcome struct {
	Status  Status
	Stage   string
	Verdict string
	Err     error
}

// Handle runs the pipeline for one trigger event. It always returns nil:
// failures are logged and swallowed so the receipt rule acknowledges the
// event instead of redelivering it.
func (h *Handler) Handle(ctx context.Context, event events.SimpleEmailEvent) error {
	outcome := h.process(ctx, event)

	switch outcome.Status {
	case StatusDelivered:
		slog.Info("message forwarded", "transport", h.sender.Name())
	case StatusRejected:
		slog.Info("message rejected by filter", "verdict", outcome.Verdict)
	case StatusFailed:
		slog.Error("forwarding failed",
			"stage", outcome.Stage,
			"error", outcome.Err,
		)
	}
	return nil
}

// process sequences the pipeline stages and returns a tagged outcome.
func (h *Handler) process(ctx context.Context, event events.SimpleEmailEvent) Outcome {
	record, err := validate(event)
	if err != nil {
		return failed("validate", err)
	}

	mail := record.SES.Mail
	receipt := record.SES.Receipt

	slog.Debug("processing received mail",
		"message_id", mail.MessageID,
		"recipients", receipt.Recipients,
	)

	if h.notifier != nil && h.notifier.Enabled() {
		if err := h.notifier.Post(ctx, summarize(mail.CommonHeaders)); err != nil {
			if h.cfg.NotifyRequired {
				return failed("notify", err)
			}
			slog.Warn("notification failed, continuing", "error", err)
		}
	}

	result := h.router.Resolve(receipt.Recipients)

	if h.cfg.RejectSpam {
		if verdict, ok := failingVerdict(receipt); ok {
			return Outcome{Status: StatusRejected, Verdict: verdict}
		}
	}

	key := h.cfg.EmailKeyPrefix + mail.MessageID
	raw, err := h.fetcher.Fetch(ctx, h.cfg.Bucket, key)
	if err != nil {
		return failed("fetch", err)
	}

	rewritten := rewrite.Rewrite(result.Original, raw, result.Recipients, rewrite.Options{
		FromEmail:     h.cfg.FromEmail,
		SubjectPrefix: h.cfg.SubjectPrefix,
		RewriteTo:     h.cfg.RewriteTo,
		Trailer:       h.cfg.Trailer,
		Provenance:    "s3://" + h.cfg.Bucket + "/" + key,
	})

	if err := h.sender.Send(ctx, h.sourceIdentity(result, receipt), result.Recipients, rewritten); err != nil {
		return failed("send", err)
	}

	slog.Debug("message submitted",
		"original", result.Original,
		"destinations", result.Recipients,
	)
	return Outcome{Status: StatusDelivered}
}

// sourceIdentity picks the envelope source for the outbound submission:
// the configured verified identity, else the matched original recipient,
// else the first envelope recipient (the receiving domain is verified for
// inbound, so it is the only safe remaining choice).
func (h *Handler) sourceIdentity(result route.Result, receipt events.SimpleEmailReceipt) string {
	if h.cfg.FromEmail != "" {
		return h.cfg.FromEmail
	}
	if result.Original != "" {
		return result.Original
	}
	if len(receipt.Recipients) > 0 {
		return receipt.Recipients[0]
	}
	return ""
}

// validate checks the trigger payload before any side effect: exactly one
// record carrying the expected source and version tags.
func validate(event events.SimpleEmailEvent) (*events.SimpleEmailRecord, error) {
	if len(event.Records) != 1 {
		return nil, fmt.Errorf("expected exactly 1 record, got %d", len(event.Records))
	}

	record := &event.Records[0]
	if record.EventSource != expectedEventSource || record.EventVersion != expectedEventVersion {
		return nil, fmt.Errorf("unexpected event source %q version %q",
			record.EventSource, record.EventVersion)
	}
	return record, nil
}

// failingVerdict returns the name of the first receipt verdict with a
// FAIL status.
func failingVerdict(receipt events.SimpleEmailReceipt) (string, bool) {
	checks := []struct {
		name    string
		verdict events.SimpleEmailVerdict
	}{
		{"spam", receipt.SpamVerdict},
		{"virus", receipt.VirusVerdict},
		{"spf", receipt.SPFVerdict},
		{"dkim", receipt.DKIMVerdict},
		{"dmarc", receipt.DMARCVerdict},
	}
	for _, check := range checks {
		if check.verdict.Status == verdictFail {
			return check.name, true
		}
	}
	return "", false
}

// summarize renders the one-line webhook summary for a received mail.
func summarize(headers events.SimpleEmailCommonHeaders) string {
	return fmt.Sprintf("Received mail from %s to %s: %s",
		strings.Join(headers.From, ", "),
		strings.Join(headers.To, ", "),
		headers.Subject,
	)
}

func failed(stage string, err error) Outcome {
	return Outcome{Status: StatusFailed, Stage: stage, Err: err}
}
