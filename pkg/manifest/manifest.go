// SPDX-License-Identifier: MPL-2.0

// Package manifest loads and validates asset manifests: CUE documents
// declaring the models and repositories a workstation must have before
// the image generation service starts.
package manifest

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Source identifies where an asset comes from.
type Source string

const (
	SourceHTTP           Source = "http"
	SourceObjectStore    Source = "objectstore"
	SourceVersionControl Source = "versioncontrol"
)

// Provider selects the credential strategy for http sources.
type Provider string

const (
	ProviderNone        Provider = "none"
	ProviderHuggingFace Provider = "huggingface"
	ProviderCivitai     Provider = "civitai"
)

// Asset is one entry in a manifest.
type Asset struct {
	Name     string   `json:"name"`
	Source   Source   `json:"source"`
	Provider Provider `json:"provider"`
	Locator  string   `json:"locator"`
	Dest     string   `json:"dest"`
	Filename string   `json:"filename,omitempty"`
	SHA256   string   `json:"sha256,omitempty"`
	Optional bool     `json:"optional"`
}

// TargetFilename returns the filename the asset lands under: the
// explicit filename when set, otherwise the basename of the locator
// (with any URL query stripped for http sources).
func (a Asset) TargetFilename() string {
	if a.Filename != "" {
		return a.Filename
	}
	loc := a.Locator
	if a.Source == SourceHTTP {
		if u, err := url.Parse(loc); err == nil && u.Path != "" {
			loc = u.Path
		}
	}
	return path.Base(loc)
}

// Manifest is a parsed asset manifest.
type Manifest struct {
	Version string  `json:"version"`
	Assets  []Asset `json:"assets"`

	// FilePath records where the manifest was loaded from. Empty for
	// the built-in manifest.
	FilePath string `json:"-"`
}

// validate applies the constraints the CUE schema cannot express.
func (m *Manifest) validate() error {
	seen := make(map[string]struct{}, len(m.Assets))
	for i, a := range m.Assets {
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("assets[%d]: duplicate asset name %q", i, a.Name)
		}
		seen[a.Name] = struct{}{}

		if filepath.IsAbs(a.Dest) {
			return fmt.Errorf("assets[%d] (%s): dest must be relative, got %q", i, a.Name, a.Dest)
		}
		clean := filepath.Clean(a.Dest)
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return fmt.Errorf("assets[%d] (%s): dest escapes the application directory: %q", i, a.Name, a.Dest)
		}

		if a.Source == SourceVersionControl {
			if a.SHA256 != "" {
				return fmt.Errorf("assets[%d] (%s): sha256 does not apply to version control sources", i, a.Name)
			}
			if a.Provider != ProviderNone {
				return fmt.Errorf("assets[%d] (%s): provider does not apply to version control sources", i, a.Name)
			}
		}
	}
	return nil
}
