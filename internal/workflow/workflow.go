// SPDX-License-Identifier: MPL-2.0

// Package workflow generates the starter text-to-image graph placed in
// the user workflow directory on first provision, so a fresh
// workstation opens with something runnable instead of a blank canvas.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StarterName is the filename of the generated starter workflow.
const StarterName = "atelier_starter.json"

// Node is one node in the service's graph format.
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

// Starter builds the default text-to-image graph for the given
// checkpoint. Output is deterministic: encoding/json sorts map keys, so
// identical inputs always produce identical bytes.
func Starter(checkpoint string) ([]byte, error) {
	graph := map[string]Node{
		"1": {
			ClassType: "CheckpointLoaderSimple",
			Inputs:    map[string]any{"ckpt_name": checkpoint},
			Meta:      map[string]any{"title": "Load Checkpoint"},
		},
		"2": {
			ClassType: "CLIPTextEncode",
			Inputs: map[string]any{
				"clip": []any{"1", 1},
				"text": "a scenic landscape, highly detailed, golden hour",
			},
			Meta: map[string]any{"title": "Positive Prompt"},
		},
		"3": {
			ClassType: "CLIPTextEncode",
			Inputs: map[string]any{
				"clip": []any{"1", 1},
				"text": "blurry, low quality, watermark",
			},
			Meta: map[string]any{"title": "Negative Prompt"},
		},
		"4": {
			ClassType: "EmptyLatentImage",
			Inputs: map[string]any{
				"batch_size": 1,
				"height":     1024,
				"width":      1024,
			},
		},
		"5": {
			ClassType: "KSampler",
			Inputs: map[string]any{
				"cfg":          7.5,
				"denoise":      1.0,
				"latent_image": []any{"4", 0},
				"model":        []any{"1", 0},
				"negative":     []any{"3", 0},
				"positive":     []any{"2", 0},
				"sampler_name": "euler",
				"scheduler":    "normal",
				"seed":         0,
				"steps":        20,
			},
		},
		"6": {
			ClassType: "VAEDecode",
			Inputs: map[string]any{
				"samples": []any{"5", 0},
				"vae":     []any{"1", 2},
			},
		},
		"7": {
			ClassType: "SaveImage",
			Inputs: map[string]any{
				"filename_prefix": "atelier",
				"images":          []any{"6", 0},
			},
		},
	}

	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding starter workflow: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteStarter places the starter workflow in dir unless the user
// already has one there. Returns the path written, or empty when the
// existing file was left alone.
func WriteStarter(dir, checkpoint string) (string, error) {
	path := filepath.Join(dir, StarterName)
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	data, err := Starter(checkpoint)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating workflow directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing starter workflow: %w", err)
	}
	return path, nil
}
