/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package mailer

import (
	"context"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/majewsky/ldap-api-server/internal/apierr"
)

func TestNoticeTemplatesAllHaveEnFallback(t *testing.T) {
	for name, byLanguage := range noticeTemplates {
		if _, ok := byLanguage["en"]; !ok {
			t.Fatalf("notice %q has no en template", name)
		}
	}
}

func TestSplitTitleBodySeparatesFirstLine(t *testing.T) {
	title, body := splitTitleBody("subject line\nbody line 1\nbody line 2")
	if title != "subject line" {
		t.Fatalf("unexpected title %q", title)
	}
	if body != "body line 1\nbody line 2" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestSplitTitleBodyWithoutNewlineIsAllTitle(t *testing.T) {
	title, body := splitTitleBody("just a title")
	if title != "just a title" || body != "" {
		t.Fatalf("unexpected split: title=%q body=%q", title, body)
	}
}

func TestRenderTextAndHTMLAgreeOnSubject(t *testing.T) {
	data := map[string]string{"SiteName": "Example", "SiteBaseURL": "https://example.com", "Token": "tok123"}
	pair := noticeTemplates[AutoLoginNoticeName]["en"]

	textSubject, textBody, err := renderText(pair.Text, data)
	if err != nil {
		t.Fatalf("renderText: %v", err)
	}
	htmlSubject, htmlBody, err := renderHTML(pair.HTML, data)
	if err != nil {
		t.Fatalf("renderHTML: %v", err)
	}
	if textSubject != htmlSubject {
		t.Fatalf("subjects diverged: text=%q html=%q", textSubject, htmlSubject)
	}
	if !strings.Contains(textBody, "https://example.com/token-login?token=tok123") {
		t.Fatalf("text body missing login link: %q", textBody)
	}
	if !strings.Contains(htmlBody, `href="https://example.com/token-login?token=tok123"`) {
		t.Fatalf("html body missing login link: %q", htmlBody)
	}
}

func TestBuildMessageProducesMultipartAlternativeWithBothParts(t *testing.T) {
	raw, err := buildMessage("from@example.com", "to@example.com", "hi there", "plain body", "<p>html body</p>")
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}

	headerEnd := strings.Index(string(raw), "\r\n\r\n")
	if headerEnd == -1 {
		t.Fatalf("no header/body separator found")
	}
	headers := string(raw[:headerEnd])
	if !strings.Contains(headers, "Subject: hi there") {
		t.Fatalf("missing subject header: %q", headers)
	}

	_, params, err := mime.ParseMediaType(extractContentType(headers))
	if err != nil {
		t.Fatalf("ParseMediaType: %v", err)
	}
	reader := multipart.NewReader(strings.NewReader(string(raw[headerEnd+4:])), params["boundary"])

	var sawText, sawHTML bool
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		ct := part.Header.Get("Content-Type")
		switch {
		case strings.HasPrefix(ct, "text/plain"):
			sawText = true
		case strings.HasPrefix(ct, "text/html"):
			sawHTML = true
		}
	}
	if !sawText || !sawHTML {
		t.Fatalf("expected both a text/plain and a text/html part, got text=%v html=%v", sawText, sawHTML)
	}
}

func extractContentType(headers string) string {
	for _, line := range strings.Split(headers, "\r\n") {
		if strings.HasPrefix(line, "Content-Type:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Content-Type:"))
		}
	}
	return ""
}

func TestSendRejectsUnknownNotice(t *testing.T) {
	m := NewMailer(Config{Host: "localhost", Sender: "from@example.com"})
	err := m.Send(context.Background(), "does-not-exist", "en", "to@example.com", nil)
	if err == nil {
		t.Fatalf("expected error for unknown notice name")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindMailer {
		t.Fatalf("expected KindMailer, got %v", err)
	}
}
