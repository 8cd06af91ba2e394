package utils

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/cppla/aiblog/config"
)

// SendMail sends a plain text email using SMTP settings from config.
func SendMail(to, subject, body string) error {
	cfg := config.Get()
	if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
		return fmt.Errorf("smtp not configured")
	}
	addr := net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort))
	auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)

	fromName := cfg.SMTPFromName
	if fromName == "" {
		fromName = cfg.SiteName
	}
	fromHeader := fmt.Sprintf("%s <%s>", encodeRFC2047(fromName), cfg.SMTPFrom)

	headers := map[string]string{
		"From":         fromHeader,
		"To":           to,
		"Subject":      encodeRFC2047(subject),
		"MIME-Version": "1.0",
		"Content-Type": "text/plain; charset=UTF-8",
	}
	var msg strings.Builder
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if cfg.SMTPTLS {
		// STARTTLS with timeouts
		d := net.Dialer{Timeout: 5 * time.Second}
		conn, err := d.Dial("tcp", addr)
		if err != nil {
			return err
		}
		// ensure we don't hang forever
		_ = conn.SetDeadline(time.Now().Add(15 * time.Second))
		host, _, _ := net.SplitHostPort(addr)
		c, err := smtp.NewClient(conn, host)
		if err != nil {
			_ = conn.Close()
			return err
		}
		defer c.Close()
		// STARTTLS if supported
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
				return err
			}
		}
		if cfg.SMTPUsername != "" {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
		if err := c.Mail(cfg.SMTPFrom); err != nil {
			return err
		}
		if err := c.Rcpt(to); err != nil {
			return err
		}
		wc, err := c.Data()
		if err != nil {
			return err
		}
		if _, err := wc.Write([]byte(msg.String())); err != nil {
			_ = wc.Close()
			return err
		}
		return wc.Close()
	}

	// Plain SMTP without TLS (not recommended)
	return smtp.SendMail(addr, auth, cfg.SMTPFrom, []string{to}, []byte(msg.String()))
}

// encodeRFC2047 encodes non-ASCII header values as UTF-8 B-words.
func encodeRFC2047(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 128 {
			return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
		}
	}
	return s
}

// SendMailAsync sends in the background and logs failures. Notification mail
// never blocks or fails the request that triggered it.
func SendMailAsync(to, subject, body string) {
	if to == "" {
		return
	}
	go func() {
		if err := SendMail(to, subject, body); err != nil && Sugar != nil {
			Sugar.Warnf("mail to=%s subject=%q failed: %v", to, subject, err)
		}
	}()
}

// ContactNotification renders the admin notice for a contact form message.
func ContactNotification(name, email, subject, message string) (string, string) {
	title := fmt.Sprintf("[%s] New contact message: %s", config.Get().SiteName, subject)
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", name, email)
	fmt.Fprintf(&b, "Subject: %s\r\n\r\n", subject)
	b.WriteString(message)
	return title, b.String()
}

// NewsletterWelcome renders the welcome mail with its unsubscribe link.
func NewsletterWelcome(token string) (string, string) {
	cfg := config.Get()
	title := fmt.Sprintf("Welcome to the %s newsletter", cfg.SiteName)
	body := fmt.Sprintf("Thanks for subscribing to %s.\r\n\r\nUnsubscribe any time: %s/newsletter/unsubscribe?token=%s\r\n",
		cfg.SiteName, cfg.SiteURL, token)
	return title, body
}
