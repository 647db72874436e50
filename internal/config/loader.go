package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ahrav/go-radqc/internal/ports"
)

// envPrefix namespaces the environment variables read by the loader.
const envPrefix = "RADQC_"

// configPathVar names the environment variable that can point at a
// configuration file when no explicit path is given.
const configPathVar = "RADQC_CONFIG"

// Loader implements ports.ConfigLoader by layering an optional YAML file and
// RADQC_-prefixed environment variables over whatever defaults the target
// struct already carries.
//
// Precedence, low to high: target defaults, file, environment.
type Loader struct {
	// path is the explicit configuration file. Empty falls back to the
	// RADQC_CONFIG environment variable, and then to no file at all.
	path string
}

var _ ports.ConfigLoader = (*Loader)(nil)

// NewLoader creates a loader. An empty path defers file selection to the
// RADQC_CONFIG environment variable.
func NewLoader(path string) *Loader { return &Loader{path: path} }

// Load populates config, which must be a pointer to a struct with koanf
// tags. A named file that does not exist is an error, whether it was named
// on the command line or through RADQC_CONFIG; running with no file at all
// is fine.
func (l *Loader) Load(ctx context.Context, config any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k := koanf.New(".")

	path := l.path
	if path == "" {
		path = os.Getenv(configPathVar)
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return ports.NewConfigError(path, fmt.Errorf("%w: %v", ports.ErrConfigNotFound, err))
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return ports.NewConfigError(path, fmt.Errorf("parse config file: %w", err))
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if s == "config" {
			// RADQC_CONFIG selects the file; it is not a setting.
			return ""
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return ports.NewConfigError("env", fmt.Errorf("read environment: %w", err))
	}

	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return ports.NewConfigError("", fmt.Errorf("unmarshal configuration: %w", err))
	}
	return nil
}
