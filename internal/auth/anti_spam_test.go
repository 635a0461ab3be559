/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package auth

import (
	"testing"

	"github.com/majewsky/ldap-api-server/internal/apierr"
)

func testAntiSpam(t *testing.T) *AntiSpam {
	t.Helper()
	a, err := NewAntiSpam([]QuestionConfig{
		{Question: "What color is the sky?", Answer: "(?i)blue"},
		{Question: "2 + 2 = ?", Answer: "4|four"},
	})
	if err != nil {
		t.Fatalf("NewAntiSpam: %v", err)
	}
	return a
}

func TestNewAntiSpamRejectsEmptyQuestionSet(t *testing.T) {
	if _, err := NewAntiSpam(nil); err == nil {
		t.Fatalf("expected error for empty question set")
	}
}

func TestNewAntiSpamRejectsInvalidRegex(t *testing.T) {
	_, err := NewAntiSpam([]QuestionConfig{{Question: "q", Answer: "("}})
	if err == nil {
		t.Fatalf("expected error for invalid answer regex")
	}
}

func TestAntiSpamRandomQuestionReturnsKnownToken(t *testing.T) {
	a := testAntiSpam(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, text, err := a.RandomQuestion()
		if err != nil {
			t.Fatalf("RandomQuestion: %v", err)
		}
		if text == "" {
			t.Fatalf("expected non-empty question text")
		}
		if _, ok := a.byToken[token]; !ok {
			t.Fatalf("token %q not recognized", token)
		}
		seen[token] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected both questions to be drawable, saw %d distinct tokens", len(seen))
	}
}

func TestAntiSpamVerifyAnswerFullMatch(t *testing.T) {
	a := testAntiSpam(t)
	token, _, err := a.RandomQuestion()
	if err != nil {
		t.Fatalf("RandomQuestion: %v", err)
	}
	q := a.byToken[token]

	switch q.text {
	case "What color is the sky?":
		if err := a.VerifyAnswer(token, "Blue"); err != nil {
			t.Fatalf("expected case-insensitive match to succeed: %v", err)
		}
		if err := a.VerifyAnswer(token, "it is blue"); err == nil {
			t.Fatalf("expected partial match to be rejected")
		}
	case "2 + 2 = ?":
		if err := a.VerifyAnswer(token, "four"); err != nil {
			t.Fatalf("expected alternation match to succeed: %v", err)
		}
	}
}

func TestAntiSpamVerifyAnswerRejectsUnknownToken(t *testing.T) {
	a := testAntiSpam(t)
	err := a.VerifyAnswer("not-a-real-token", "anything")
	if err == nil {
		t.Fatalf("expected error for unknown token")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindForbidden {
		t.Fatalf("expected KindForbidden, got %v", err)
	}
}

func TestAntiSpamVerifyAnswerRejectsWrongAnswer(t *testing.T) {
	a := testAntiSpam(t)
	token, text, err := a.RandomQuestion()
	if err != nil {
		t.Fatalf("RandomQuestion: %v", err)
	}
	_ = text
	err = a.VerifyAnswer(token, "definitely-wrong")
	if err == nil {
		t.Fatalf("expected wrong answer to be rejected")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.KindForbidden {
		t.Fatalf("expected KindForbidden, got %v", err)
	}
}
