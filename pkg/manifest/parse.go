// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	_ "embed"
	"fmt"
	"os"

	"atelier-cli/pkg/cueutil"
)

//go:embed manifest_schema.cue
var manifestSchema string

//go:embed default_manifest.cue
var defaultManifest []byte

// Parse reads and parses a manifest from the given path.
func Parse(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest at %s: %w", path, err)
	}
	return ParseBytes(data, path)
}

// ParseBytes parses manifest content from bytes. The document is unified
// with the embedded schema before decoding, so schema violations surface
// with field paths.
func ParseBytes(data []byte, path string) (*Manifest, error) {
	result, err := cueutil.ParseAndDecodeString[Manifest](
		manifestSchema,
		data,
		"#Manifest",
		cueutil.WithFilename(path),
	)
	if err != nil {
		return nil, err
	}

	m := result.Value
	m.FilePath = path
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Default returns the built-in FLUX stack manifest.
func Default() (*Manifest, error) {
	m, err := ParseBytes(defaultManifest, "<builtin>")
	if err != nil {
		return nil, fmt.Errorf("internal error: builtin manifest invalid: %w", err)
	}
	m.FilePath = ""
	return m, nil
}
