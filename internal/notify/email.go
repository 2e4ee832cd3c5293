package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"meetbot/internal/appinfo"
	"meetbot/internal/botlog"
	"meetbot/internal/metrics"
)

type SMTPConfig struct {
	Server string `json:"server"`
	Port   int    `json:"port"`
	UseSSL bool   `json:"use_ssl"`
}

type EmailOptions struct {
	SMTP     SMTPConfig
	From     string
	Password string
	To       []string
	Logger   *botlog.Logger
	Metrics  metrics.Sink
}

// EmailSink mails each notification as a multipart/alternative message.
type EmailSink struct {
	opts    EmailOptions
	log     *botlog.Logger
	metrics metrics.Sink
	// deliver is replaced in tests.
	deliver func(ctx context.Context, from string, to []string, msg []byte) error
}

func NewEmailSink(opts EmailOptions) (*EmailSink, error) {
	opts.From = strings.TrimSpace(opts.From)
	opts.SMTP.Server = strings.TrimSpace(opts.SMTP.Server)
	if opts.From == "" {
		return nil, errors.New("email from address is required")
	}
	if opts.SMTP.Server == "" {
		return nil, errors.New("smtp server is required")
	}
	var to []string
	for _, addr := range opts.To {
		if a := strings.TrimSpace(addr); a != "" {
			to = append(to, a)
		}
	}
	if len(to) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	opts.To = to
	if opts.SMTP.Port <= 0 {
		opts.SMTP.Port = 465
	}
	s := &EmailSink{opts: opts, log: opts.Logger, metrics: metrics.OrNoop(opts.Metrics)}
	s.deliver = s.sendSMTP
	return s, nil
}

func (s *EmailSink) Notify(ctx context.Context, n Notification) bool {
	if n.Outcome == OutcomeFailed {
		return false
	}
	delivered := true
	if err := s.send(ctx, n); err != nil {
		s.log.Warnf("email notification failed: %v", err)
		delivered = false
	} else {
		s.log.Logf(botlog.KindNotify, "email notification sent to %s (%s)", strings.Join(s.opts.To, ", "), n.Outcome)
	}
	s.metrics.NotificationSent(string(n.Outcome), delivered)
	return delivered
}

func (s *EmailSink) send(ctx context.Context, n Notification) error {
	htmlBody, err := renderEmailHTML(n)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	subject := fmt.Sprintf("[%s] %s", appinfo.Name, Summary(n))
	msg, err := buildAlternativeEmail(s.opts.From, s.opts.To, subject, markdownBody(n), htmlBody, n.At)
	if err != nil {
		return err
	}
	return s.deliver(ctx, s.opts.From, s.opts.To, msg)
}

func buildAlternativeEmail(from string, to []string, subject, text, htmlBody string, at time.Time) ([]byte, error) {
	if at.IsZero() {
		at = time.Now()
	}
	var h mail.Header
	h.SetDate(at)
	h.SetSubject(subject)
	h.SetAddressList("From", []*mail.Address{{Name: appinfo.Name, Address: from}})
	rcpts := make([]*mail.Address, 0, len(to))
	for _, addr := range to {
		rcpts = append(rcpts, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", rcpts)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if err := writeInlinePart(w, "text/plain", text); err != nil {
		return nil, err
	}
	if err := writeInlinePart(w, "text/html", htmlBody); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInlinePart(w *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := w.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return fmt.Errorf("write %s part: %w", contentType, err)
	}
	return pw.Close()
}

func (s *EmailSink) sendSMTP(ctx context.Context, from string, to []string, msg []byte) error {
	server := s.opts.SMTP.Server
	addr := fmt.Sprintf("%s:%d", server, s.opts.SMTP.Port)
	dialer := &net.Dialer{Timeout: 15 * time.Second}

	var conn net.Conn
	var err error
	if s.opts.SMTP.UseSSL {
		tlsCfg := &tls.Config{ServerName: server}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, server)
	if err != nil {
		return fmt.Errorf("smtp client failed: %w", err)
	}
	defer func() { _ = c.Quit() }()

	if !s.opts.SMTP.UseSSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: server}); err != nil {
				return fmt.Errorf("smtp starttls failed: %w", err)
			}
		}
	}
	if s.opts.Password != "" {
		auth := smtp.PlainAuth("", from, s.opts.Password, server)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s failed: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close failed: %w", err)
	}
	return nil
}
