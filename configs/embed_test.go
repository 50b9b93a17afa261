package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docindex/internal/config"
)

func TestTemplates_MatchDefaults(t *testing.T) {
	defaults := config.NewConfig()

	for name, tmpl := range map[string]string{
		"user":    UserConfigTemplate,
		"project": ProjectConfigTemplate,
	} {
		t.Run(name, func(t *testing.T) {
			// Given the defaults with the template decoded over them
			cfg := config.NewConfig()
			require.NoError(t, yaml.Unmarshal([]byte(tmpl), cfg))

			// Then the template does not silently change any default
			if cfg.Performance.ExtractWorkers == 0 {
				cfg.Performance.ExtractWorkers = defaults.Performance.ExtractWorkers
			}
			assert.Equal(t, defaults, cfg)
		})
	}
}
