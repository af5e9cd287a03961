// SPDX-License-Identifier: MPL-2.0

package workflow

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestStarter_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := Starter("flux1-dev-fp8.safetensors")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Starter("flux1-dev-fp8.safetensors")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("starter workflow output is not deterministic")
		}
	}
}

func TestStarter_GraphShape(t *testing.T) {
	t.Parallel()

	data, err := Starter("model.safetensors")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var graph map[string]Node
	if err := json.Unmarshal(data, &graph); err != nil {
		t.Fatalf("generated workflow is not valid JSON: %v", err)
	}

	wantTypes := map[string]int{
		"CheckpointLoaderSimple": 1,
		"CLIPTextEncode":         2,
		"EmptyLatentImage":       1,
		"KSampler":               1,
		"VAEDecode":              1,
		"SaveImage":              1,
	}
	gotTypes := map[string]int{}
	for _, node := range graph {
		gotTypes[node.ClassType]++
	}
	for typ, want := range wantTypes {
		if gotTypes[typ] != want {
			t.Errorf("graph has %d %s nodes, want %d", gotTypes[typ], typ, want)
		}
	}

	loader := graph["1"]
	if loader.Inputs["ckpt_name"] != "model.safetensors" {
		t.Errorf("ckpt_name = %v, want model.safetensors", loader.Inputs["ckpt_name"])
	}
}

func TestWriteStarter_PreservesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	path, err := WriteStarter(dir, "a.safetensors")
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if path == "" {
		t.Fatal("expected a path on first write")
	}

	// User edits their workflow; a re-provision must not clobber it.
	custom := []byte(`{"edited": true}`)
	if err := os.WriteFile(path, custom, 0o644); err != nil {
		t.Fatal(err)
	}

	again, err := WriteStarter(dir, "a.safetensors")
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if again != "" {
		t.Error("second write should leave the existing workflow alone")
	}

	content, _ := os.ReadFile(filepath.Join(dir, StarterName))
	if !bytes.Equal(content, custom) {
		t.Error("existing workflow was overwritten")
	}
}
