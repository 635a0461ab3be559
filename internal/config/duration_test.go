/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshalYAML(t *testing.T) {
	var doc struct {
		Timeout Duration `yaml:"timeout"`
	}
	err := yaml.Unmarshal([]byte("timeout: 15m\n"), &doc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if time.Duration(doc.Timeout) != 15*time.Minute {
		t.Fatalf("got %s, want 15m", time.Duration(doc.Timeout))
	}
}

func TestDurationUnmarshalYAMLRejectsBadValue(t *testing.T) {
	var doc struct {
		Timeout Duration `yaml:"timeout"`
	}
	err := yaml.Unmarshal([]byte("timeout: not-a-duration\n"), &doc)
	if err == nil {
		t.Fatalf("expected error for malformed duration")
	}
}
