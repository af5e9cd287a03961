// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"atelier-cli/internal/hostcap"

	"mvdan.cc/sh/v3/syntax"
)

// ScriptName is the startup script filename within the working
// directory.
const ScriptName = "start_comfyui.sh"

// ScriptParams carries everything the startup script depends on.
type ScriptParams struct {
	AppDir     string
	ListenHost string
	Port       int
	Flags      hostcap.RuntimeFlags
	// ExtraExports are merged over the accelerator exports. Used for
	// operator overrides.
	ExtraExports map[string]string
}

type exportPair struct {
	Key   string
	Value string
}

type scriptData struct {
	Exports    []exportPair
	AppDir     string
	ListenHost string
	Port       int
	VRAMFlag   string
}

var scriptTemplate = template.Must(template.New("startup").Parse(`#!/usr/bin/env bash
set -euo pipefail

{{range .Exports}}export {{.Key}}='{{.Value}}'
{{end}}
cd '{{.AppDir}}'
exec python3 main.py --listen {{.ListenHost}} --port {{.Port}}{{if .VRAMFlag}} {{.VRAMFlag}}{{end}}
`))

// RenderScript produces the startup script content. Exports are emitted
// in sorted key order so identical inputs always render identical
// bytes. The rendered script is parsed with a shell grammar before
// being returned; a parse failure means a bug in the template or a
// hostile value, and nothing reaches disk.
func RenderScript(p ScriptParams) (string, error) {
	exports := make(map[string]string, len(p.Flags.Exports)+len(p.ExtraExports))
	for k, v := range p.Flags.Exports {
		exports[k] = v
	}
	for k, v := range p.ExtraExports {
		exports[k] = v
	}

	keys := make([]string, 0, len(exports))
	for k := range exports {
		if strings.ContainsRune(exports[k], '\'') || strings.ContainsRune(k, '\'') {
			return "", fmt.Errorf("export %s contains a quote character", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]exportPair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, exportPair{Key: k, Value: exports[k]})
	}

	var sb strings.Builder
	err := scriptTemplate.Execute(&sb, scriptData{
		Exports:    pairs,
		AppDir:     p.AppDir,
		ListenHost: p.ListenHost,
		Port:       p.Port,
		VRAMFlag:   p.Flags.VRAMFlag,
	})
	if err != nil {
		return "", fmt.Errorf("rendering startup script: %w", err)
	}

	content := sb.String()
	parser := syntax.NewParser()
	if _, err := parser.Parse(strings.NewReader(content), ScriptName); err != nil {
		return "", fmt.Errorf("rendered startup script is not valid shell: %w", err)
	}
	return content, nil
}

// WriteScript writes the script executable at path.
func WriteScript(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return fmt.Errorf("writing startup script: %w", err)
	}
	return nil
}
