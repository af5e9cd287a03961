// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strings"
)

// GenerateEnv generates a commented key=value representation of the
// configuration, suitable as a first-run starter file. Secrets are emitted
// as commented placeholders so the template never captures credentials.
func GenerateEnv(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("# Atelier provisioning configuration.\n")
	sb.WriteString("# One key=value per line; values support $VAR expansion.\n")
	sb.WriteString("# Every key can also be set via the identically-named environment variable.\n\n")

	sb.WriteString("# Provisioning working directory (scripts, logs, venv).\n")
	fmt.Fprintf(&sb, "WORK_DIR=%s\n\n", cfg.WorkDir)

	sb.WriteString("# Installation directory of the provisioned application.\n")
	fmt.Fprintf(&sb, "APP_DIR=%s\n\n", cfg.AppDir)

	sb.WriteString("# Service listen address and ports.\n")
	fmt.Fprintf(&sb, "LISTEN_HOST=%s\n", cfg.ListenHost)
	fmt.Fprintf(&sb, "PORT=%d\n", cfg.Port)
	fmt.Fprintf(&sb, "API_PORT=%d\n", cfg.APIPort)
	fmt.Fprintf(&sb, "HEALTH_PATH=%s\n\n", cfg.HealthPath)

	sb.WriteString("# External fast-storage mount for model directories.\n")
	sb.WriteString("# Leave empty to keep model directories local.\n")
	fmt.Fprintf(&sb, "MOUNT_ROOT=%s\n\n", cfg.MountRoot)

	sb.WriteString("# Asset manifest override. Empty selects ./atelier.cue, then the built-in manifest.\n")
	fmt.Fprintf(&sb, "MANIFEST=%s\n\n", cfg.ManifestPath)

	sb.WriteString("# Readiness polling after launch.\n")
	fmt.Fprintf(&sb, "READINESS_MAX_ATTEMPTS=%d\n", cfg.ReadinessMaxAttempts)
	fmt.Fprintf(&sb, "READINESS_INTERVAL=%s\n\n", cfg.ReadinessInterval)

	sb.WriteString("# Single-download timeout. 0 means unbounded.\n")
	fmt.Fprintf(&sb, "DOWNLOAD_TIMEOUT=%s\n\n", cfg.DownloadTimeout)

	sb.WriteString("# Provider tokens for gated downloads.\n")
	sb.WriteString("#HF_TOKEN=hf_xxxxxxxxxxxxxxxx\n")
	sb.WriteString("#CIVITAI_TOKEN=xxxxxxxxxxxxxxxx\n\n")

	sb.WriteString("# S3-compatible object store for mirrored assets (optional).\n")
	sb.WriteString("#OBJECT_STORE_ENDPOINT=minio.internal:9000\n")
	sb.WriteString("#OBJECT_STORE_ACCESS_KEY=\n")
	sb.WriteString("#OBJECT_STORE_SECRET_KEY=\n")
	sb.WriteString("#OBJECT_STORE_BUCKET=models\n")
	fmt.Fprintf(&sb, "#OBJECT_STORE_REGION=%s\n", cfg.ObjectStore.Region)
	sb.WriteString("#OBJECT_STORE_USE_SSL=false\n")

	return sb.String()
}
