package email

import (
	"context"
	"fmt"
	"html"
	"mime"
	"net/smtp"
	"strings"

	"github.com/sakib404-hub/zap-shit-server/pkg/config"
	"github.com/sakib404-hub/zap-shit-server/pkg/domain"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Sender interface {
	SendPaymentReceipt(ctx context.Context, to string, event domain.ParcelPaidEvent) error
	SendDeliveryUpdate(ctx context.Context, to string, event domain.DeliveryStatusChangedEvent) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type smtpSender struct {
	from     string
	password string
	host     string
	port     string
	siteURL  string
	sendMail sendMailFunc
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewSMTPSender(cfg config.SMTP, siteURL string, logger *zap.Logger) Sender {
	return &smtpSender{
		from:     cfg.User,
		password: cfg.Password,
		host:     cfg.Host,
		port:     cfg.Port,
		siteURL:  strings.TrimRight(siteURL, "/"),
		sendMail: smtp.SendMail,
		logger:   logger,
		tracer:   otel.Tracer("infrastructure/email"),
	}
}

func (s *smtpSender) SendPaymentReceipt(ctx context.Context, to string, event domain.ParcelPaidEvent) error {
	ctx, span := s.tracer.Start(ctx, "smtp.SendPaymentReceipt")
	defer span.End()

	span.SetAttributes(
		attribute.String("to.email", to),
		attribute.String("tracking_id", event.TrackingID),
	)

	subject := fmt.Sprintf("Payment received for %s", event.ParcelName)
	body := fmt.Sprintf(`
		<h1>Thank you for your payment!</h1>
		<p>We received %.2f %s for <b>%s</b>.</p>
		<p>Your tracking id is <b>%s</b>.</p>
		<a href="%s/track/%s">Track your parcel</a>
	`,
		event.Amount,
		strings.ToUpper(html.EscapeString(event.Currency)),
		html.EscapeString(event.ParcelName),
		event.TrackingID,
		s.siteURL,
		event.TrackingID,
	)

	return s.send(ctx, span, to, subject, body)
}

func (s *smtpSender) SendDeliveryUpdate(ctx context.Context, to string, event domain.DeliveryStatusChangedEvent) error {
	ctx, span := s.tracer.Start(ctx, "smtp.SendDeliveryUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.String("to.email", to),
		attribute.String("status", event.To),
	)

	subject := fmt.Sprintf("Parcel %s is now %s", event.TrackingID, event.To)
	body := fmt.Sprintf(`
		<h1>Your parcel moved</h1>
		<p>Parcel <b>%s</b> changed from %s to <b>%s</b>.</p>
		<a href="%s/track/%s">Track your parcel</a>
	`,
		event.TrackingID,
		event.From,
		event.To,
		s.siteURL,
		event.TrackingID,
	)

	return s.send(ctx, span, to, subject, body)
}

func (s *smtpSender) send(ctx context.Context, span trace.Span, to, subject, body string) error {
	// Subjects carry user supplied parcel names; Q-encoding keeps CR/LF out
	// of the header block.
	headers := "Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n" +
		"MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n"
	msg := []byte(headers + body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	auth := smtp.PlainAuth("", s.from, s.password, s.host)

	mylogger.Info(ctx, s.logger, "Sending email", zap.String("to", to), zap.String("subject", subject))

	if err := s.sendMail(addr, auth, s.from, []string{to}, msg); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error sending email", zap.String("to", to), zap.Error(err))

		return fmt.Errorf("failed to send mail: %w", err)
	}

	mylogger.Info(ctx, s.logger, "Email sent successfully", zap.String("to", to))

	return nil
}
