// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	m, err := Default()
	if err != nil {
		t.Fatalf("builtin manifest must parse: %v", err)
	}
	if m.Version != "1" {
		t.Errorf("Version = %q, want 1", m.Version)
	}
	if len(m.Assets) == 0 {
		t.Fatal("builtin manifest has no assets")
	}
	if m.FilePath != "" {
		t.Errorf("FilePath = %q, want empty for builtin", m.FilePath)
	}

	var sawHTTP, sawGit bool
	for _, a := range m.Assets {
		switch a.Source {
		case SourceHTTP:
			sawHTTP = true
		case SourceVersionControl:
			sawGit = true
		}
	}
	if !sawHTTP || !sawGit {
		t.Error("builtin manifest should exercise both http and versioncontrol sources")
	}
}

func TestParseBytes_Valid(t *testing.T) {
	t.Parallel()

	doc := `
assets: [
	{
		name:    "sdxl-base"
		source:  "http"
		provider: "civitai"
		locator: "https://civitai.com/api/download/models/128713"
		dest:    "models/checkpoints"
		filename: "sdxl_base.safetensors"
	},
	{
		name:    "mirror-vae"
		source:  "objectstore"
		locator: "vae/ae.safetensors"
		dest:    "models/vae"
		sha256:  "af9f1e5084e267acbdbe169e2d2336b2b99b40e65b31c7dbe7fb9b7fbb5f2c5a"
	},
]
`
	m, err := ParseBytes([]byte(doc), "manifest.cue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Assets) != 2 {
		t.Fatalf("parsed %d assets, want 2", len(m.Assets))
	}

	a := m.Assets[0]
	if a.Provider != ProviderCivitai {
		t.Errorf("Provider = %q, want civitai", a.Provider)
	}
	if a.Optional {
		t.Error("Optional should default to false")
	}
	if m.Version != "1" {
		t.Errorf("Version = %q, want default 1", m.Version)
	}

	b := m.Assets[1]
	if b.Provider != ProviderNone {
		t.Errorf("Provider = %q, want default none", b.Provider)
	}
	if b.SHA256 == "" {
		t.Error("sha256 field lost in decoding")
	}
}

func TestParseBytes_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantSub string
	}{
		{
			"unknown source",
			`assets: [{name: "x", source: "ftp", locator: "ftp://x", dest: "models"}]`,
			"source",
		},
		{
			"empty name",
			`assets: [{name: "", source: "http", locator: "https://x", dest: "models"}]`,
			"name",
		},
		{
			"malformed sha256",
			`assets: [{name: "x", source: "http", locator: "https://x", dest: "models", sha256: "zzz"}]`,
			"sha256",
		},
		{
			"duplicate names",
			`assets: [
				{name: "x", source: "http", locator: "https://a", dest: "models"},
				{name: "x", source: "http", locator: "https://b", dest: "models"},
			]`,
			"duplicate",
		},
		{
			"absolute dest",
			`assets: [{name: "x", source: "http", locator: "https://x", dest: "/etc"}]`,
			"relative",
		},
		{
			"escaping dest",
			`assets: [{name: "x", source: "http", locator: "https://x", dest: "../outside"}]`,
			"escapes",
		},
		{
			"sha256 on git source",
			`assets: [{name: "x", source: "versioncontrol", locator: "https://x.git", dest: "custom_nodes/x",
				sha256: "af9f1e5084e267acbdbe169e2d2336b2b99b40e65b31c7dbe7fb9b7fbb5f2c5a"}]`,
			"sha256",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseBytes([]byte(tt.doc), "manifest.cue")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestParse_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "manifest.cue")
	doc := `assets: [{name: "x", source: "http", locator: "https://host/m.safetensors", dest: "models/unet"}]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.FilePath != path {
		t.Errorf("FilePath = %q, want %q", m.FilePath, path)
	}
}

func TestAsset_TargetFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		asset Asset
		want  string
	}{
		{
			"explicit filename wins",
			Asset{Source: SourceHTTP, Locator: "https://host/a/b.bin", Filename: "model.safetensors"},
			"model.safetensors",
		},
		{
			"url basename",
			Asset{Source: SourceHTTP, Locator: "https://host/a/model.safetensors"},
			"model.safetensors",
		},
		{
			"url query stripped",
			Asset{Source: SourceHTTP, Locator: "https://civitai.com/api/download/models/128713?type=Model"},
			"128713",
		},
		{
			"object key basename",
			Asset{Source: SourceObjectStore, Locator: "vae/ae.safetensors"},
			"ae.safetensors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.asset.TargetFilename(); got != tt.want {
				t.Errorf("TargetFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}
