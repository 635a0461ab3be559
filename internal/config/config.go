/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package config loads the service's single YAML configuration file,
// applies environment-variable overrides for deployment-time secrets, and
// validates its top-level shape before handing typed configuration structs
// to the rest of the service.
package config

import (
	"os"
	"time"

	"github.com/sapcc/go-bits/errext"
	"gopkg.in/yaml.v3"

	"github.com/majewsky/ldap-api-server/internal/apierr"
	"github.com/majewsky/ldap-api-server/internal/auth"
	"github.com/majewsky/ldap-api-server/internal/directory"
	"github.com/majewsky/ldap-api-server/internal/grammars"
	"github.com/majewsky/ldap-api-server/internal/mailer"
	"github.com/majewsky/ldap-api-server/internal/view"
)

type rawLDAP struct {
	ServerURI    string   `yaml:"serverUri"`
	Prefix       string   `yaml:"prefix"`
	BindDN       string   `yaml:"bindDn"`
	BindPassword string   `yaml:"bindPassword"`
	Timeout      Duration `yaml:"timeout"`
}

type rawAntiSpam struct {
	Questions []auth.QuestionConfig `yaml:"questions"`
}

type rawAuth struct {
	SecretKey           string      `yaml:"secretKey"`
	HeaderPrefix        string      `yaml:"headerPrefix"`
	Expiration          Duration    `yaml:"expiration"`
	AutoLoginExpiration Duration    `yaml:"autoLoginExpiration"`
	View                string      `yaml:"view"`
	AntiSpam            rawAntiSpam `yaml:"antiSpam"`
}

type rawMailer struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	SSL         bool   `yaml:"ssl"`
	StartTLS    bool   `yaml:"starttls"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Sender      string `yaml:"sender"`
	SiteBaseURL string `yaml:"siteBaseUrl"`
	SiteName    string `yaml:"siteName"`
}

type rawRoot struct {
	Listen       string    `yaml:"listen"`
	LDAP         rawLDAP   `yaml:"ldap"`
	Auth         rawAuth   `yaml:"auth"`
	Mail         rawMailer `yaml:"mail"`
	Views        yaml.Node `yaml:"views"`
	AllowOrigins []string  `yaml:"allowOrigins"`
}

// Config is the fully parsed, validated configuration this service runs
// from, shaped directly into the constructor arguments its components need.
type Config struct {
	Directory    directory.ClientOptions
	Listen       string
	Auth         auth.Config
	Mailer       mailer.Config
	Views        view.Config
	AllowOrigins []string
}

// Load reads, overrides, validates, and decodes the configuration file at
// path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apierr.Config("cannot read config file %s: %s", path, err.Error())
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apierr.Config("cannot parse config file %s: %s", path, err.Error())
	}
	applyEnvOverrides(&doc, nil)

	if len(doc.Content) == 0 {
		return nil, apierr.Config("config file %s is empty", path)
	}

	var raw rawRoot
	if err := doc.Content[0].Decode(&raw); err != nil {
		return nil, apierr.Config("cannot parse config file %s: %s", path, err.Error())
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	return &Config{
		Directory: directory.ClientOptions{
			ServerURI:    raw.LDAP.ServerURI,
			BindDN:       raw.LDAP.BindDN,
			BindPassword: raw.LDAP.BindPassword,
			Timeout:      time.Duration(raw.LDAP.Timeout),
		},
		Listen: raw.Listen,
		Auth: auth.Config{
			SecretKey:           raw.Auth.SecretKey,
			HeaderPrefix:        raw.Auth.HeaderPrefix,
			Expiration:          time.Duration(raw.Auth.Expiration),
			AutoLoginExpiration: time.Duration(raw.Auth.AutoLoginExpiration),
			ViewKey:             raw.Auth.View,
			AntiSpam:            raw.Auth.AntiSpam.Questions,
		},
		Mailer: mailer.Config{
			Host:        raw.Mail.Host,
			Port:        raw.Mail.Port,
			SSL:         raw.Mail.SSL,
			StartTLS:    raw.Mail.StartTLS,
			User:        raw.Mail.User,
			Password:    raw.Mail.Password,
			Sender:      raw.Mail.Sender,
			SiteBaseURL: raw.Mail.SiteBaseURL,
			SiteName:    raw.Mail.SiteName,
		},
		Views:        view.Config{BaseDN: raw.LDAP.Prefix, Views: raw.Views},
		AllowOrigins: raw.AllowOrigins,
	}, nil
}

// validate collects every shape problem in raw at once, rather than
// stopping at the first one, so a misconfigured deployment sees its whole
// list of mistakes in one startup failure.
func validate(raw rawRoot) error {
	var errs errext.ErrorSet
	if !grammars.IsLDAPSuffix(raw.LDAP.Prefix) {
		errs.Addf("ldap.prefix %q is not a valid LDAP suffix", raw.LDAP.Prefix)
	}
	if !grammars.IsListenAddress(raw.Listen) {
		errs.Addf("listen %q is not a valid listen address", raw.Listen)
	}
	if raw.LDAP.ServerURI == "" {
		errs.Addf("ldap.serverUri is required")
	}
	if raw.Auth.SecretKey == "" {
		errs.Addf("auth.secretKey is required")
	}
	if raw.Auth.View == "" {
		errs.Addf("auth.view is required")
	}
	if errs.IsEmpty() {
		return nil
	}
	msg := ""
	for i, err := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += err.Error()
	}
	return apierr.Config("%s", msg)
}
