/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package fields

import (
	"context"

	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/crypt"
	"github.com/majewsky/ldap-api-server/internal/directory"
)

// PasswordConfig configures a PasswordField.
type PasswordConfig struct {
	CommonConfig `yaml:",inline"`
	Field        string `yaml:"field"`
	AutoGenerate bool   `yaml:"autoGenerate"`
	// Hashing names the scheme this field hashes with (see
	// crypt.HasherByName); NewField resolves it once at construction time.
	Hashing            string `yaml:"hashing"`
	PwnedPasswordCheck bool   `yaml:"pwnedPasswordCheck"`
}

// PasswordField is write-biased: Get only ever reflects whether a hash is
// present (never the hash itself, which is why readable is normally false
// in practice, but the contract still allows it for completeness with the
// other scalar kinds), and Set always emits a REPLACE for a non-empty
// assignment since the configured hasher salts every call distinctly
// (Open Question decision in DESIGN.md).
type PasswordField struct {
	Base
	attr         string
	autoGenerate bool
	// hashingName is kept only for ConfigDoc rendering; hasher below is the
	// scheme it already resolved to, via crypt.HasherByName at construction.
	hashingName string
	checkPwned  bool
	hasher      crypt.PasswordHasher
	breachCheck crypt.BreachChecker
}

// NewPasswordField takes an already-resolved hasher rather than resolving
// cfg.Hashing itself: NewField (registry.go) does that resolution so that an
// unrecognized scheme name fails config load with a clear error instead of
// silently falling back to a default.
func NewPasswordField(key string, cfg PasswordConfig, hasher crypt.PasswordHasher, breachCheck crypt.BreachChecker) *PasswordField {
	attr := cfg.Field
	if attr == "" {
		attr = key
	}
	return &PasswordField{
		Base:         newBase(key, cfg.CommonConfig),
		attr:         attr,
		autoGenerate: cfg.AutoGenerate,
		hashingName:  cfg.Hashing,
		checkPwned:   cfg.PwnedPasswordCheck,
		hasher:       hasher,
		breachCheck:  breachCheck,
	}
}

func (f *PasswordField) ConfigDoc() map[string]any {
	doc := f.configDoc()
	doc["field"] = f.attr
	doc["autoGenerate"] = f.autoGenerate
	doc["hashing"] = f.hashingName // reflects the scheme actually in effect, not just a label
	doc["pwnedPasswordCheck"] = f.checkPwned
	return doc
}

func (f *PasswordField) Init(ViewResolver, map[string]Field) error { return nil }

func (f *PasswordField) GetFetch(fetches map[string]bool) {
	if !f.readable {
		return
	}
	fetches[f.attr] = true
}

func (f *PasswordField) Get(fetch *Fetch, out Result) error {
	if !f.readable {
		return nil
	}
	if values, ok := fetch.Values[f.attr]; ok && len(values) > 0 {
		out[f.key] = values[0]
	}
	return nil
}

func (f *PasswordField) SetFetch(fetches map[string]bool, assign Assignment) error {
	value, present := stringValue(assign, f.key)
	if !present {
		return nil
	}
	if !f.autoGenerate {
		if err := f.checkRequired(value); err != nil {
			return err
		}
	}
	if err := f.checkWritable(assign); err != nil {
		return err
	}
	fetches[f.attr] = true
	return nil
}

func (f *PasswordField) resolvePlaintext(assign Assignment) (string, error) {
	value, _ := stringValue(assign, f.key)
	if f.autoGenerate && value == "" {
		return crypt.GenerateSecurePassword(24), nil
	}
	return value, nil
}

func (f *PasswordField) checkBreached(plaintext string) error {
	if !f.checkPwned || plaintext == "" || f.breachCheck == nil {
		return nil
	}
	count, err := f.breachCheck.Count(context.Background(), plaintext)
	if err != nil {
		return apierr.UpstreamDirectory("pwned-password-oracle", err)
	}
	if count > 0 {
		return apierr.Validationf("this password has appeared in %d known data breaches", count)
	}
	return nil
}

func (f *PasswordField) Set(fetch *Fetch, modlist directory.ModList, assign Assignment) error {
	if _, present := assign[f.key]; !present {
		return nil
	}
	if err := f.checkWritable(assign); err != nil {
		return err
	}
	plaintext, err := f.resolvePlaintext(assign)
	if err != nil {
		return err
	}
	if err := f.checkRequired(plaintext); err != nil {
		return err
	}
	if err := f.checkBreached(plaintext); err != nil {
		return err
	}

	if plaintext == "" {
		if _, had := fetch.Values[f.attr]; had {
			modlist[f.attr] = append(modlist[f.attr], directory.ModChange{Op: directory.ModDelete})
		}
		delete(fetch.Values, f.attr)
		return nil
	}

	hash, err := f.hasher.HashPassword(plaintext) // scheme picked by cfg.Hashing, see NewPasswordField
	if err != nil {
		return apierr.Config("cannot hash password: %s", err.Error())
	}
	modlist[f.attr] = append(modlist[f.attr], directory.ModChange{Op: directory.ModReplace, Values: []string{hash}})
	fetch.Values[f.attr] = []string{hash}
	return nil
}

func (f *PasswordField) Create(fetch *Fetch, addlist directory.AddList, assign Assignment) error {
	if _, present := assign[f.key]; !present {
		return f.checkRequired("")
	}
	if err := f.checkCreatable(assign); err != nil {
		return err
	}
	plaintext, err := f.resolvePlaintext(assign)
	if err != nil {
		return err
	}
	if _, already := fetch.Values[f.attr]; already {
		return apierr.Validationf("cannot modify value of %s", f.key)
	}
	if err := f.checkRequired(plaintext); err != nil {
		return err
	}
	if err := f.checkBreached(plaintext); err != nil {
		return err
	}
	if plaintext == "" {
		return nil
	}
	hash, err := f.hasher.HashPassword(plaintext) // scheme picked by cfg.Hashing, see NewPasswordField
	if err != nil {
		return apierr.Config("cannot hash password: %s", err.Error())
	}
	addlist[f.attr] = []string{hash}
	fetch.Values[f.attr] = []string{hash}
	return nil
}

func (f *PasswordField) SetPost(*Fetch, Assignment, bool) error { return nil }
