package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-radqc/internal/config"
)

// commandContext shares the lazily loaded configuration between
// subcommands so the file and environment are read at most once per
// invocation.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads and validates the configuration exactly once.
// Defaults apply when neither --config nor RADQC_CONFIG names a file.
func (c *commandContext) ensureConfig(ctx context.Context) (config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}

		cfg := config.Default()
		if err := config.NewLoader(path).Load(ctx, &cfg); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// shouldSkipConfig reports whether the command opted out of configuration
// loading through the skipConfigLoad annotation.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// firstNonEmpty returns the first value that is not the empty string,
// implementing flag-over-config precedence for path settings.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
