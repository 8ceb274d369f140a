// Package mail renders playlist update notifications and delivers them over
// SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"playlistwatch/internal/core"
)

const (
	defaultDialTimeout = 30 * time.Second
	defaultSendTimeout = 60 * time.Second
)

// Transport delivers one message per call over SMTP with implicit TLS, the
// way the usual port-465 submission endpoints expect.
type Transport struct {
	settings    core.MailSettings
	dialTimeout time.Duration
	sendTimeout time.Duration
	logger      *zap.Logger
}

func NewTransport(settings core.MailSettings, dialTimeout, sendTimeout time.Duration, logger *zap.Logger) *Transport {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Transport{
		settings:    settings,
		dialTimeout: dialTimeout,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Send delivers one HTML message to a single recipient. Each call opens its
// own connection; the caller decides about concurrency and failure handling.
func (t *Transport) Send(ctx context.Context, to, subject, htmlBody string) error {
	if t.settings.Host == "" || t.settings.Sender == "" {
		return fmt.Errorf("mail transport not configured (missing host or sender)")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.sendTimeout)
		defer cancel()
	}

	client, cleanup, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if t.settings.Password != "" {
		auth := smtp.PlainAuth("", t.settings.Sender, t.settings.Password, t.settings.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(t.settings.Sender); err != nil {
		return fmt.Errorf("smtp MAIL failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT failed: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := writer.Write(buildMessage(t.settings.Sender, to, subject, htmlBody)); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write message body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish message body: %w", err)
	}

	if err := client.Quit(); err != nil {
		// Message was accepted; a noisy QUIT is not a delivery failure.
		t.logger.Debug("SMTP quit failed after accepted message", zap.Error(err))
	}

	return nil
}

func (t *Transport) dial(ctx context.Context) (*smtp.Client, func(), error) {
	address := net.JoinHostPort(t.settings.Host, fmt.Sprintf("%d", t.settings.Port))

	dialCtx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial smtp server %s: %w", address, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConn := tls.Client(conn, &tls.Config{ServerName: t.settings.Host})
	if err := tlsConn.HandshakeContext(dialCtx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("tls handshake with %s failed: %w", address, err)
	}

	client, err := smtp.NewClient(tlsConn, t.settings.Host)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return client, func() { client.Close() }, nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString(`Content-Type: text/html; charset="UTF-8"` + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	return []byte(b.String())
}
