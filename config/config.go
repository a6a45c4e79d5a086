// Package config holds the run configuration of poautofill.
//
// Settings come from command-line flags, optionally layered over a YAML file
// named with --config. There is no auto-discovery and no environment lookup:
// a file is read only when asked for.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minios-linux/poautofill/deepl"
	"gopkg.in/yaml.v3"
)

// Options is the complete run configuration.
type Options struct {
	// AuthKey is the DeepL authentication key. It may be empty; DeepL then
	// rejects the requests.
	AuthKey string `yaml:"auth_key,omitempty"`
	// TargetLang is the DeepL target language code (default "FR").
	TargetLang string `yaml:"target_lang,omitempty"`
	// Verbose shows a progress bar per catalog.
	Verbose bool `yaml:"verbose,omitempty"`
	// Endpoint is the DeepL translate URL.
	Endpoint string `yaml:"endpoint,omitempty"`
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string `yaml:"proxy,omitempty"`
	// Timeout bounds a single DeepL request.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Default returns the built-in configuration.
func Default() Options {
	return Options{
		TargetLang: deepl.DefaultTargetLang,
		Endpoint:   deepl.DefaultEndpoint,
		Timeout:    deepl.DefaultTimeout,
	}
}

// LoadFile reads a YAML configuration file and lays it over the defaults.
func LoadFile(path string) (Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("reading %s: %w", path, err)
	}

	var file Options
	if err := yaml.Unmarshal(data, &file); err != nil {
		return opts, fmt.Errorf("parsing %s: %w", path, err)
	}
	opts.Merge(file)
	return opts, nil
}

// Merge copies every non-zero field of other over o.
func (o *Options) Merge(other Options) {
	if other.AuthKey != "" {
		o.AuthKey = other.AuthKey
	}
	if other.TargetLang != "" {
		o.TargetLang = other.TargetLang
	}
	if other.Verbose {
		o.Verbose = true
	}
	if other.Endpoint != "" {
		o.Endpoint = other.Endpoint
	}
	if other.Proxy != "" {
		o.Proxy = other.Proxy
	}
	if other.Timeout != 0 {
		o.Timeout = other.Timeout
	}
}

// Validate checks the options before any catalog is touched.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.TargetLang) == "" {
		return fmt.Errorf("target language must not be empty")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	}
	if err := checkURL("endpoint", o.Endpoint, true); err != nil {
		return err
	}
	return checkURL("proxy", o.Proxy, false)
}

func checkURL(name, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s must not be empty", name)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s %q: scheme and host required", name, raw)
	}
	return nil
}
