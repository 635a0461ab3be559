/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"

	"github.com/majewsky/ldap-api-server/internal/apierr"
)

// QuestionConfig is one configured anti-spam challenge.
type QuestionConfig struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

type question struct {
	text   string
	answer *regexp.Regexp
	token  string
}

// AntiSpam hands out one of a closed set of configured challenge questions
// and verifies full-match answers against the token it issued, without
// keeping any server-side session: the token is a deterministic digest of
// the question text, so any server instance can verify any token.
type AntiSpam struct {
	questions []question
	byToken   map[string]question
}

func NewAntiSpam(cfg []QuestionConfig) (*AntiSpam, error) {
	if len(cfg) == 0 {
		return nil, apierr.Config("antiSpam: at least one question is required")
	}
	a := &AntiSpam{byToken: make(map[string]question, len(cfg))}
	for _, q := range cfg {
		rx, err := regexp.Compile("(?s)^(?:" + q.Answer + ")$")
		if err != nil {
			return nil, apierr.Config("antiSpam: question %q: %s", q.Question, err.Error())
		}
		sum := sha256.Sum256([]byte(q.Question))
		item := question{text: q.Question, answer: rx, token: hex.EncodeToString(sum[:])}
		a.questions = append(a.questions, item)
		a.byToken[item.token] = item
	}
	return a, nil
}

// RandomQuestion returns the token and text of a uniformly chosen question.
func (a *AntiSpam) RandomQuestion() (token, text string, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(a.questions))))
	if err != nil {
		return "", "", fmt.Errorf("anti-spam: %w", err)
	}
	q := a.questions[n.Int64()]
	return q.token, q.text, nil
}

// VerifyAnswer checks answer against the question identified by token.
func (a *AntiSpam) VerifyAnswer(token, answer string) error {
	q, ok := a.byToken[token]
	if !ok {
		return apierr.Forbidden("invalid anti-spam token")
	}
	if !q.answer.MatchString(answer) {
		return apierr.Forbidden("wrong anti-spam answer")
	}
	return nil
}
