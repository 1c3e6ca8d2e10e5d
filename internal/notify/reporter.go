// Package notify mails aggregated pipeline failure reports to tenant
// operators. It is a best-effort channel: delivery problems are logged,
// never propagated into the pipeline.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/billflow-erp/billflow/internal/invoice"
)

// RecipientSource resolves notification recipients per tenant.
type RecipientSource interface {
	Recipients(ctx context.Context, tenantID int64) ([]string, error)
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Reporter renders and sends failure reports.
type Reporter struct {
	from       string
	recipients RecipientSource
	send       func(m *gomail.Message) error
	logger     *slog.Logger
}

// NewReporter constructs a Reporter backed by an SMTP dialer.
func NewReporter(cfg SMTPConfig, recipients RecipientSource, logger *slog.Logger) *Reporter {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		from:       cfg.From,
		recipients: recipients,
		send: func(m *gomail.Message) error {
			return dialer.DialAndSend(m)
		},
		logger:     logger,
	}
}

// CreationErrors reports file generation failures. No-ops when the error
// list is empty or the tenant has no recipients configured.
func (r *Reporter) CreationErrors(ctx context.Context, tenantID int64, errs []invoice.CreationError) {
	r.report(ctx, tenantID, "Invoice file generation failures", errs)
}

// TransferErrors reports file delivery failures.
func (r *Reporter) TransferErrors(ctx context.Context, tenantID int64, errs []invoice.CreationError) {
	r.report(ctx, tenantID, "Invoice file transfer failures", errs)
}

func (r *Reporter) report(ctx context.Context, tenantID int64, subject string, errs []invoice.CreationError) {
	if len(errs) == 0 {
		return
	}
	recipients, err := r.recipients.Recipients(ctx, tenantID)
	if err != nil {
		r.logger.Error("resolve notification recipients", slog.Int64("tenant", tenantID), slog.Any("error", err))
		return
	}
	if len(recipients) == 0 {
		return
	}

	m := gomail.NewMessage()
	m.SetHeader("From", r.from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", fmt.Sprintf("%s (tenant %d)", subject, tenantID))
	m.SetBody("text/plain", RenderReport(errs))

	if err := r.send(m); err != nil {
		r.logger.Error("send failure report", slog.Int64("tenant", tenantID), slog.Any("error", err))
	}
}

// RenderReport formats the error list with common errors first, then the
// record-specific ones.
func RenderReport(errs []invoice.CreationError) string {
	var common, specific []string
	for _, e := range errs {
		if e.Common() {
			common = append(common, "- "+e.Message)
		} else {
			specific = append(specific, fmt.Sprintf("- record %d: %s", *e.RecordID, e.Message))
		}
	}

	var b strings.Builder
	if len(common) > 0 {
		b.WriteString("General failures:\n")
		b.WriteString(strings.Join(common, "\n"))
		b.WriteString("\n")
	}
	if len(specific) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Record failures:\n")
		b.WriteString(strings.Join(specific, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
