// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidPort is the sentinel error wrapped by InvalidPortError.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidDirPath is the sentinel error wrapped by InvalidDirPathError.
	ErrInvalidDirPath = errors.New("invalid directory path")
	// ErrInvalidRetryBudget is the sentinel error wrapped by InvalidRetryBudgetError.
	ErrInvalidRetryBudget = errors.New("invalid retry budget")
	// ErrInvalidObjectStoreConfig is the sentinel error wrapped by InvalidObjectStoreConfigError.
	ErrInvalidObjectStoreConfig = errors.New("invalid object store config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// TCPPort is a TCP listen port. Valid values are 1-65535.
	TCPPort int

	// InvalidPortError is returned when a TCPPort value is out of range.
	// It wraps ErrInvalidPort for errors.Is() compatibility.
	InvalidPortError struct {
		Name  string
		Value TCPPort
	}

	// DirPath is a filesystem directory path. A valid path must be
	// non-empty and not whitespace-only.
	DirPath string

	// InvalidDirPathError is returned when a DirPath value is empty or
	// whitespace-only. It wraps ErrInvalidDirPath for errors.Is().
	InvalidDirPathError struct {
		Name  string
		Value DirPath
	}

	// InvalidRetryBudgetError is returned when the readiness retry budget
	// is not positive. It wraps ErrInvalidRetryBudget for errors.Is().
	InvalidRetryBudgetError struct {
		Value int
	}

	// InvalidObjectStoreConfigError is returned when an ObjectStoreConfig
	// has invalid fields. It wraps ErrInvalidObjectStoreConfig for
	// errors.Is() compatibility and collects field-level errors.
	InvalidObjectStoreConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// ObjectStoreConfig holds the S3-compatible endpoint used by
	// object-store asset sources. It is consumed once at fetcher
	// construction; per-asset calls carry only locator and destination.
	ObjectStoreConfig struct {
		// Endpoint is the host:port of the S3-compatible service.
		// Empty disables the object-store source.
		Endpoint string
		// AccessKey is the access key ID.
		AccessKey string
		// SecretKey is the secret access key.
		SecretKey string
		// Bucket is the default bucket for locators without an explicit bucket.
		Bucket string
		// Region is the bucket region.
		Region string
		// UseSSL selects https transport to the endpoint.
		UseSSL bool
	}

	// Config is the effective configuration for one provisioning run.
	// It is resolved once by Load and treated as read-only afterwards.
	Config struct {
		// WorkDir is the provisioning working directory (scripts, logs, venv).
		WorkDir DirPath
		// AppDir is the installation directory of the provisioned application.
		AppDir DirPath
		// ListenHost is the address the provisioned service binds to.
		ListenHost string
		// Port is the provisioned service port (liveness endpoint lives here).
		Port TCPPort
		// APIPort is the companion HTTP API port.
		APIPort TCPPort
		// HealthPath is the liveness endpoint path.
		HealthPath string
		// MountRoot is the external fast-storage mount for model directories.
		// Empty means no external mount; model directories stay local.
		MountRoot string
		// ManifestPath overrides the asset manifest location. Empty selects
		// ./atelier.cue, falling back to the built-in manifest.
		ManifestPath string
		// Auto disables interactive prompts (unattended provisioning).
		Auto bool
		// DryRun previews every mutating operation without performing it.
		DryRun bool
		// DownloadTimeout bounds a single asset download. Zero means
		// unbounded, matching the historical behavior.
		DownloadTimeout time.Duration
		// ReadinessMaxAttempts is the liveness poll retry budget.
		ReadinessMaxAttempts int
		// ReadinessInterval is the sleep between liveness polls.
		ReadinessInterval time.Duration
		// HFToken authenticates gated Hugging Face downloads.
		HFToken string
		// CivitaiToken authenticates Civitai downloads.
		CivitaiToken string
		// ObjectStore configures the S3-compatible asset source.
		ObjectStore ObjectStoreConfig
	}
)

// String returns the string representation of the DirPath.
func (p DirPath) String() string { return string(p) }

// IsValid returns whether the DirPath is valid.
// A valid path must be non-empty and not whitespace-only.
func (p DirPath) IsValid() (bool, []error) {
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidDirPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidDirPathError.
func (e *InvalidDirPathError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid %s %q: must be non-empty", e.Name, e.Value)
	}
	return fmt.Sprintf("invalid directory path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidDirPath for errors.Is() compatibility.
func (e *InvalidDirPathError) Unwrap() error { return ErrInvalidDirPath }

// Int returns the port as a plain int.
func (p TCPPort) Int() int { return int(p) }

// IsValid returns whether the TCPPort is in the valid 1-65535 range.
func (p TCPPort) IsValid() (bool, []error) {
	if p < 1 || p > 65535 {
		return false, []error{&InvalidPortError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPortError.
func (e *InvalidPortError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid %s %d: must be in 1-65535", e.Name, e.Value)
	}
	return fmt.Sprintf("invalid port %d: must be in 1-65535", e.Value)
}

// Unwrap returns ErrInvalidPort for errors.Is() compatibility.
func (e *InvalidPortError) Unwrap() error { return ErrInvalidPort }

// Error implements the error interface for InvalidRetryBudgetError.
func (e *InvalidRetryBudgetError) Error() string {
	return fmt.Sprintf("invalid readiness retry budget %d: must be positive", e.Value)
}

// Unwrap returns ErrInvalidRetryBudget for errors.Is() compatibility.
func (e *InvalidRetryBudgetError) Unwrap() error { return ErrInvalidRetryBudget }

// Enabled reports whether an object-store endpoint is configured.
func (c ObjectStoreConfig) Enabled() bool { return c.Endpoint != "" }

// IsValid returns whether the ObjectStoreConfig has valid fields.
// The zero value (no endpoint) is valid and means "object store disabled".
// A configured endpoint requires both credential halves and a bucket.
func (c ObjectStoreConfig) IsValid() (bool, []error) {
	if !c.Enabled() {
		return true, nil
	}
	var errs []error
	if c.AccessKey == "" || c.SecretKey == "" {
		errs = append(errs, fmt.Errorf("object store endpoint %q configured without credentials", c.Endpoint))
	}
	if c.Bucket == "" {
		errs = append(errs, fmt.Errorf("object store endpoint %q configured without a bucket", c.Endpoint))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidObjectStoreConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidObjectStoreConfigError.
func (e *InvalidObjectStoreConfigError) Error() string {
	return fmt.Sprintf("invalid object store config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidObjectStoreConfig for errors.Is() compatibility.
func (e *InvalidObjectStoreConfigError) Unwrap() error { return ErrInvalidObjectStoreConfig }

// IsValid returns whether the Config has valid fields. It delegates to the
// typed field validators and collects every field error instead of stopping
// at the first.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.WorkDir.IsValid(); !valid {
		for _, fe := range fieldErrs {
			var dpe *InvalidDirPathError
			if errors.As(fe, &dpe) {
				dpe.Name = "work dir"
			}
		}
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.AppDir.IsValid(); !valid {
		for _, fe := range fieldErrs {
			var dpe *InvalidDirPathError
			if errors.As(fe, &dpe) {
				dpe.Name = "app dir"
			}
		}
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Port.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.APIPort.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.ReadinessMaxAttempts < 1 {
		errs = append(errs, &InvalidRetryBudgetError{Value: c.ReadinessMaxAttempts})
	}
	if valid, fieldErrs := c.ObjectStore.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the built-in defaults for a provisioning run.
func DefaultConfig() *Config {
	return &Config{
		WorkDir:              "/srv/atelier",
		AppDir:               "/srv/atelier/ComfyUI",
		ListenHost:           "127.0.0.1",
		Port:                 8188,
		APIPort:              8000,
		HealthPath:           "/system_stats",
		MountRoot:            "/models",
		ManifestPath:         "",
		Auto:                 false,
		DryRun:               false,
		DownloadTimeout:      0, // unbounded
		ReadinessMaxAttempts: 30,
		ReadinessInterval:    2 * time.Second,
		ObjectStore: ObjectStoreConfig{
			Region: "us-east-1",
		},
	}
}
