// Package config resolves the session configuration for the development environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when the configuration cannot be resolved.
var ErrInvalidConfig = errors.New("invalid configuration")

// Built-in defaults, overridable through the config file, environment and flags.
const (
	DefaultImage         = "ghcr.io/mcbyx/deeploy-gap9:latest"
	DefaultCacheDir      = "~/.cache/gap9-dev"
	DefaultSSHKey        = "~/.ssh/id_ed25519"
	DefaultUSBIPHost     = "host.docker.internal"
	DefaultVendorID      = "15ba"
	DefaultProductID     = "002b"
	DefaultPlatform      = "linux/amd64"
	DefaultShell         = "/bin/bash"
	DefaultWatchInterval = 30 * time.Second

	// MinWatchInterval is the enforced floor for the watch period; polling the
	// remote much faster than this destabilizes some usbip host daemons.
	MinWatchInterval = 5 * time.Second
)

var usbIDFormat = regexp.MustCompile(`^[0-9a-fA-F]{4}$`)

// Config holds the resolved session configuration. It is built once per
// invocation and never mutated afterwards.
type Config struct {
	Image     string
	WorkDir   string
	CacheDir  string
	SSHKey    string
	USBIPHost string
	VendorID  string
	ProductID string
	Platform  string
	Shell     string

	WatchInterval time.Duration
}

// Flags carries the raw command line values; empty fields are unset.
type Flags struct {
	Image     string
	WorkDir   string
	CacheDir  string
	SSHKey    string
	USBIPHost string
	VendorID  string
	ProductID string
	Platform  string
	Shell     string

	WatchInterval time.Duration
}

// fileConfig mirrors the optional YAML configuration file.
type fileConfig struct {
	Image     string `yaml:"image"`
	WorkDir   string `yaml:"work_dir"`
	CacheDir  string `yaml:"cache_dir"`
	SSHKey    string `yaml:"ssh_key"`
	USBIPHost string `yaml:"usbip_host"`
	VendorID  string `yaml:"usb_vendor"`
	ProductID string `yaml:"usb_product"`
	Platform  string `yaml:"platform"`
	Shell     string `yaml:"shell"`

	WatchInterval string `yaml:"watch_interval"`
}

// Resolve merges flags, environment, the optional config file and the defaults
// into a Config. Later sources only fill values the earlier ones left unset.
func Resolve(flags Flags) (*Config, error) {
	return resolve(flags, defaultFilePath())
}

func resolve(flags Flags, filePath string) (*Config, error) {
	file, err := loadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Image:     pick(flags.Image, os.Getenv("GAP9_IMAGE"), file.Image, DefaultImage),
		WorkDir:   pick(flags.WorkDir, os.Getenv("GAP9_WORKDIR"), file.WorkDir, "."),
		CacheDir:  pick(flags.CacheDir, os.Getenv("GAP9_CACHE_DIR"), file.CacheDir, DefaultCacheDir),
		SSHKey:    pick(flags.SSHKey, os.Getenv("GAP9_SSH_KEY"), file.SSHKey, DefaultSSHKey),
		USBIPHost: pick(flags.USBIPHost, os.Getenv("GAP9_USBIP_HOST"), file.USBIPHost, DefaultUSBIPHost),
		VendorID:  pick(flags.VendorID, os.Getenv("GAP9_USB_VENDOR"), file.VendorID, DefaultVendorID),
		ProductID: pick(flags.ProductID, os.Getenv("GAP9_USB_PRODUCT"), file.ProductID, DefaultProductID),
		Platform:  pick(flags.Platform, os.Getenv("GAP9_PLATFORM"), file.Platform, DefaultPlatform),
		Shell:     pick(flags.Shell, os.Getenv("GAP9_SHELL"), file.Shell, DefaultShell),
	}

	cfg.WatchInterval, err = pickInterval(flags.WatchInterval, os.Getenv("GAP9_WATCH_INTERVAL"), file.WatchInterval)
	if err != nil {
		return nil, err
	}

	for _, id := range []struct {
		name  string
		value *string
	}{
		{"vendor", &cfg.VendorID},
		{"product", &cfg.ProductID},
	} {
		if !usbIDFormat.MatchString(*id.value) {
			return nil, fmt.Errorf("%w: USB %s ID %q isn't a 4 digit hex value", ErrInvalidConfig, id.name, *id.value)
		}

		*id.value = strings.ToLower(*id.value)
	}

	cfg.SSHKey = expandTilde(cfg.SSHKey)
	cfg.CacheDir = expandTilde(cfg.CacheDir)

	cfg.WorkDir, err = filepath.Abs(expandTilde(cfg.WorkDir))
	if err != nil {
		return nil, fmt.Errorf("%w: bad work directory: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func pickInterval(flag time.Duration, env string, file string) (time.Duration, error) {
	interval := flag

	for _, raw := range []string{env, file} {
		if interval != 0 || raw == "" {
			continue
		}

		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: bad watch interval %q: %w", ErrInvalidConfig, raw, err)
		}

		interval = parsed
	}

	if interval == 0 {
		return DefaultWatchInterval, nil
	}

	if interval < MinWatchInterval {
		return 0, fmt.Errorf("%w: watch interval %s is below the %s floor", ErrInvalidConfig, interval, MinWatchInterval)
	}

	return interval, nil
}

func defaultFilePath() string {
	confDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(confDir, "gap9-dev", "config.yaml")
}

// loadFile reads the optional YAML config file. A missing file is not an
// error; unknown keys in an existing file are.
func loadFile(path string) (*fileConfig, error) {
	file := &fileConfig{}

	if path == "" {
		return file, nil
	}

	content, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}

		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)

	err = decoder.Decode(file)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidConfig, path, err)
	}

	return file, nil
}

func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
