// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"atelier-cli/internal/issue"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "atelier"
	// ConfigFileName is the name of the config file.
	ConfigFileName = "atelier.env"
)

// ConfigDir returns the atelier configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// configKeys lists every resolvable key. Each key is overridable by the
// identically-named upper-case environment variable (work_dir -> WORK_DIR).
var configKeys = []string{
	"work_dir",
	"app_dir",
	"listen_host",
	"port",
	"api_port",
	"health_path",
	"mount_root",
	"manifest",
	"auto",
	"dry_run",
	"download_timeout",
	"readiness_max_attempts",
	"readiness_interval",
	"hf_token",
	"civitai_token",
	"object_store_endpoint",
	"object_store_access_key",
	"object_store_secret_key",
	"object_store_bucket",
	"object_store_region",
	"object_store_use_ssl",
}

// loadWithOptions performs option-driven config loading without mutating
// package-level cache state. Callers that want flag overrides apply them on
// the returned Viper before resolution via the FlagOverride callback.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	v.SetConfigType("env")

	// Defaults (weakest layer).
	defaults := DefaultConfig()
	v.SetDefault("work_dir", string(defaults.WorkDir))
	v.SetDefault("app_dir", string(defaults.AppDir))
	v.SetDefault("listen_host", defaults.ListenHost)
	v.SetDefault("port", defaults.Port.Int())
	v.SetDefault("api_port", defaults.APIPort.Int())
	v.SetDefault("health_path", defaults.HealthPath)
	v.SetDefault("mount_root", defaults.MountRoot)
	v.SetDefault("manifest", defaults.ManifestPath)
	v.SetDefault("auto", defaults.Auto)
	v.SetDefault("dry_run", defaults.DryRun)
	v.SetDefault("download_timeout", defaults.DownloadTimeout)
	v.SetDefault("readiness_max_attempts", defaults.ReadinessMaxAttempts)
	v.SetDefault("readiness_interval", defaults.ReadinessInterval)
	v.SetDefault("hf_token", defaults.HFToken)
	v.SetDefault("civitai_token", defaults.CivitaiToken)
	v.SetDefault("object_store_endpoint", defaults.ObjectStore.Endpoint)
	v.SetDefault("object_store_access_key", defaults.ObjectStore.AccessKey)
	v.SetDefault("object_store_secret_key", defaults.ObjectStore.SecretKey)
	v.SetDefault("object_store_bucket", defaults.ObjectStore.Bucket)
	v.SetDefault("object_store_region", defaults.ObjectStore.Region)
	v.SetDefault("object_store_use_ssl", defaults.ObjectStore.UseSSL)

	resolvedPath := ""

	// If a custom config file path is set via --config, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'atelier config init' to create a starter file").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := mergeConfigFile(v, opts.ConfigFilePath); err != nil {
			return nil, "", err
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		candidates := []string{
			filepath.Join(cfgDir, ConfigFileName),
			ConfigFileName, // current directory
		}
		for _, candidate := range candidates {
			if !fileExists(candidate) {
				continue
			}
			if err := mergeConfigFile(v, candidate); err != nil {
				return nil, "", err
			}
			resolvedPath = candidate
			break
		}
		// If no config file found, use defaults (no error).
	}

	// Environment variables override file values. AutomaticEnv maps each
	// key to its upper-case form (hf_token -> HF_TOKEN).
	v.AutomaticEnv()

	// CLI flags are the strongest layer; the cmd layer binds them through
	// the LoadOptions callback before resolution.
	if opts.FlagOverride != nil {
		if err := opts.FlagOverride(v); err != nil {
			return nil, "", fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	cfg := resolve(v)

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Run 'atelier config show' to inspect the resolved values").
			Wrap(errs[0]).
			BuildError()
	}

	return cfg, resolvedPath, nil
}

// mergeConfigFile merges a dotenv-format key=value file into Viper. The
// gotenv backend provides shell-style `$VAR` expansion for values.
func mergeConfigFile(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Check file permissions").
			Wrap(err).
			BuildError()
	}
	defer func() { _ = f.Close() }() // read-only handle

	if err := v.MergeConfig(f); err != nil {
		return issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Check the file is plain key=value lines").
			WithSuggestion("Run 'atelier config init' in an empty directory to see the expected format").
			Wrap(err).
			BuildError()
	}
	return nil
}

// resolve builds the typed Config from the fully layered Viper instance.
func resolve(v *viper.Viper) *Config {
	return &Config{
		WorkDir:              DirPath(v.GetString("work_dir")),
		AppDir:               DirPath(v.GetString("app_dir")),
		ListenHost:           v.GetString("listen_host"),
		Port:                 TCPPort(v.GetInt("port")),
		APIPort:              TCPPort(v.GetInt("api_port")),
		HealthPath:           v.GetString("health_path"),
		MountRoot:            v.GetString("mount_root"),
		ManifestPath:         v.GetString("manifest"),
		Auto:                 v.GetBool("auto"),
		DryRun:               v.GetBool("dry_run"),
		DownloadTimeout:      v.GetDuration("download_timeout"),
		ReadinessMaxAttempts: v.GetInt("readiness_max_attempts"),
		ReadinessInterval:    v.GetDuration("readiness_interval"),
		HFToken:              v.GetString("hf_token"),
		CivitaiToken:         v.GetString("civitai_token"),
		ObjectStore: ObjectStoreConfig{
			Endpoint:  v.GetString("object_store_endpoint"),
			AccessKey: v.GetString("object_store_access_key"),
			SecretKey: v.GetString("object_store_secret_key"),
			Bucket:    v.GetString("object_store_bucket"),
			Region:    v.GetString("object_store_region"),
			UseSSL:    v.GetBool("object_store_use_ssl"),
		},
	}
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// Keys returns the resolvable configuration keys in declaration order.
func Keys() []string {
	out := make([]string, len(configKeys))
	copy(out, configKeys)
	return out
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig writes a starter config file if none exists anywhere
// in the search path. It never overwrites an existing file. Returns the
// path written, or "" when an existing file made writing unnecessary.
func CreateDefaultConfig() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName)
	if fileExists(cfgPath) || fileExists(ConfigFileName) {
		return "", nil // a config file already exists; leave it alone
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateEnv(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, nil
}
