package notification

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/aristath/capitol/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel sends multipart text/HTML mail over SMTP.
type EmailChannel struct {
	cfg      EmailConfig
	markdown goldmark.Markdown
	sendMail sendMailFunc
}

// NewEmailChannel creates the e-mail channel.
func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	return &EmailChannel{
		cfg:      cfg,
		markdown: goldmark.New(goldmark.WithExtensions(extension.Table)),
		sendMail: smtp.SendMail,
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Deliver(ctx context.Context, rec domain.Recommendation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := c.buildMessage(rec)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}
	addr := c.cfg.Host + ":" + strconv.Itoa(c.cfg.Port)
	if err := c.sendMail(addr, auth, c.cfg.From, c.cfg.To, msg); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}
	return nil
}

func (c *EmailChannel) buildMessage(rec domain.Recommendation) ([]byte, error) {
	md := Markdown(rec)

	var html bytes.Buffer
	if err := c.markdown.Convert([]byte(md), &html); err != nil {
		return nil, fmt.Errorf("failed to render mail body: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     []byte
	}{
		{"text/plain; charset=UTF-8", []byte(md)},
		{"text/html; charset=UTF-8", html.Bytes()},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, fmt.Errorf("failed to create mail part: %w", err)
		}
		if _, err := w.Write(part.content); err != nil {
			return nil, fmt.Errorf("failed to write mail part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close mail body: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(c.cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", Subject(rec))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
