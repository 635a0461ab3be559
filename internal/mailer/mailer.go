/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package mailer sends the notices this service generates over SMTP. Each
// notice is a named template with one HTML and one plain-text rendering per
// language, sent as a multipart/alternative message so mail clients can pick
// whichever part they render best. There is no templating or mail library
// anywhere in the reference corpus, so this package leans on the standard
// library's html/template, text/template, and mime/multipart by design.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	htmltemplate "html/template"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	texttemplate "text/template"

	"github.com/majewsky/ldap-api-server/internal/apierr"
)

// Config mirrors the original Python mailer's configuration shape.
type Config struct {
	Host        string
	Port        int
	SSL         bool
	StartTLS    bool
	User        string
	Password    string
	Sender      string
	SiteBaseURL string
	SiteName    string
}

func (c Config) port() int {
	if c.Port != 0 {
		return c.Port
	}
	switch {
	case c.SSL:
		return 465
	case c.StartTLS:
		return 587
	default:
		return 25
	}
}

func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.port())
}

// Mailer renders and delivers the notices this service sends.
type Mailer struct {
	cfg Config
}

func NewMailer(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// templatePair is one template name's HTML and plain-text renderings for a
// single language. The first line of each is the subject/title, the
// remainder is the body, mirroring the original mailer's
// `_render_template`/`send_mail` convention of splitting the rendered output
// on the first newline.
type templatePair struct {
	HTML string
	Text string
}

// noticeTemplates holds, per notice name, the per-language template pairs.
// "en" must always be present in every notice and is the fallback used when
// a requested language has no entry, matching `_render_template`'s
// `if not os.path.isfile(...): language = 'en'` behavior.
var noticeTemplates = map[string]map[string]templatePair{
	"auto-login": {
		"en": {
			HTML: "{{.SiteName}}: sign-in link\n" +
				"<p>Hello,</p>" +
				"<p>Use the link below to sign in to {{.SiteName}}. It expires shortly.</p>" +
				"<p><a href=\"{{.SiteBaseURL}}/token-login?token={{.Token}}\">Sign in</a></p>" +
				"<p>If you did not request this, you can ignore this message.</p>",
			Text: "{{.SiteName}}: sign-in link\n" +
				"Hello,\n\n" +
				"Use the link below to sign in to {{.SiteName}}. It expires shortly.\n\n" +
				"{{.SiteBaseURL}}/token-login?token={{.Token}}\n\n" +
				"If you did not request this, you can ignore this message.\n",
		},
		"de": {
			HTML: "{{.SiteName}}: Anmeldelink\n" +
				"<p>Hallo,</p>" +
				"<p>Mit dem folgenden Link kannst du dich bei {{.SiteName}} anmelden. Er läuft bald ab.</p>" +
				"<p><a href=\"{{.SiteBaseURL}}/token-login?token={{.Token}}\">Anmelden</a></p>" +
				"<p>Falls du das nicht angefordert hast, ignoriere diese Nachricht einfach.</p>",
			Text: "{{.SiteName}}: Anmeldelink\n" +
				"Hallo,\n\n" +
				"Mit dem folgenden Link kannst du dich bei {{.SiteName}} anmelden. Er läuft bald ab.\n\n" +
				"{{.SiteBaseURL}}/token-login?token={{.Token}}\n\n" +
				"Falls du das nicht angefordert hast, ignoriere diese Nachricht einfach.\n",
		},
	},
}

// AutoLoginNoticeName identifies the notice sent when a caller requests a
// mail auto-login link, via Send.
const AutoLoginNoticeName = "auto-login"

// Send renders the named notice's HTML and plain-text templates for
// language (falling back to "en" if language has no entry for name), merges
// data with this mailer's site fields (SiteName, SiteBaseURL) so templates
// can always refer to them, and delivers the result to recipient as a
// multipart/alternative message.
func (m *Mailer) Send(ctx context.Context, name, language, recipient string, data map[string]string) error {
	byLanguage, ok := noticeTemplates[name]
	if !ok {
		return apierr.Mailer(fmt.Errorf("unknown mail notice %q", name))
	}
	pair, ok := byLanguage[language]
	if !ok {
		pair, ok = byLanguage["en"]
		if !ok {
			return apierr.Mailer(fmt.Errorf("mail notice %q has no %q template and no en fallback", name, language))
		}
	}

	merged := map[string]string{
		"SiteName":    m.cfg.SiteName,
		"SiteBaseURL": m.cfg.SiteBaseURL,
	}
	for k, v := range data {
		merged[k] = v
	}

	htmlSubject, htmlBody, err := renderHTML(pair.HTML, merged)
	if err != nil {
		return apierr.Mailer(err)
	}
	textSubject, textBody, err := renderText(pair.Text, merged)
	if err != nil {
		return apierr.Mailer(err)
	}
	if htmlSubject != textSubject {
		return apierr.Mailer(fmt.Errorf("mail notice %q: html and text subjects diverged (%q vs %q)", name, htmlSubject, textSubject))
	}

	message, err := buildMessage(m.cfg.Sender, recipient, textSubject, textBody, htmlBody)
	if err != nil {
		return apierr.Mailer(err)
	}

	if err := m.deliver(ctx, recipient, message); err != nil {
		return apierr.Mailer(err)
	}
	return nil
}

func splitTitleBody(rendered string) (title, body string) {
	title, body, found := strings.Cut(rendered, "\n")
	if !found {
		return rendered, ""
	}
	return title, body
}

func renderText(tmpl string, data any) (subject, body string, err error) {
	t, err := texttemplate.New("text").Parse(tmpl)
	if err != nil {
		return "", "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", "", err
	}
	subject, body = splitTitleBody(b.String())
	return subject, body, nil
}

func renderHTML(tmpl string, data any) (subject, body string, err error) {
	t, err := htmltemplate.New("html").Parse(tmpl)
	if err != nil {
		return "", "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", "", err
	}
	subject, body = splitTitleBody(b.String())
	return subject, body, nil
}

// buildMessage assembles a multipart/alternative message with a plain-text
// and an HTML part, mirroring the original's
// `MIMEMultipart('alternative')` + `MIMEText(html, 'html')` +
// `MIMEText(txt, 'plain')` construction.
func buildMessage(from, to, subject, textBody, htmlBody string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	var headers bytes.Buffer
	fmt.Fprintf(&headers, "From: %s\r\n", from)
	fmt.Fprintf(&headers, "To: %s\r\n", to)
	fmt.Fprintf(&headers, "Subject: %s\r\n", subject)
	fmt.Fprintf(&headers, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&headers, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", writer.Boundary())

	textPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(textBody)); err != nil {
		return nil, err
	}

	htmlPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return append(headers.Bytes(), buf.Bytes()...), nil
}

func (m *Mailer) deliver(ctx context.Context, to string, message []byte) error {
	var auth smtp.Auth
	if m.cfg.User != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	if m.cfg.SSL {
		return m.deliverTLS(ctx, to, message, auth)
	}

	err := smtp.SendMail(m.cfg.addr(), auth, m.cfg.Sender, []string{to}, message)
	return err
}

func (m *Mailer) deliverTLS(ctx context.Context, to string, message []byte, auth smtp.Auth) error {
	conn, err := tls.Dial("tcp", m.cfg.addr(), &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if m.cfg.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(m.cfg.Sender); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(message); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
