package render

import (
	"context"
	"fmt"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"github.com/slipway-sh/slipway/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Compose Rendering
// =============================================================================

type composeService struct {
	Build       string            `yaml:"build"`
	Ports       []string          `yaml:"ports"`
	Restart     string            `yaml:"restart"`
	Environment map[string]string `yaml:"environment"`
}

type composeDocument struct {
	Services map[string]composeService `yaml:"services"`
}

// renderCompose produces the compose file for local runs: one service, built
// from the working directory, with the spec's port published.
func renderCompose(spec domain.AppSpec) ([]byte, error) {
	doc := composeDocument{
		Services: map[string]composeService{
			spec.Name: {
				Build:   ".",
				Ports:   []string{fmt.Sprintf("%d:%d", spec.Port, spec.Port)},
				Restart: "always",
				Environment: map[string]string{
					"NODE_ENV": spec.Mode.NodeEnv(),
					"PORT":     fmt.Sprintf("%d", spec.Port),
				},
			},
		},
	}
	return yaml.Marshal(doc)
}

// ValidateCompose round-trips the rendered compose bytes through the compose
// loader so a malformed render fails at generation time, not at `docker
// compose` time. Pure: the loader works entirely in memory.
func ValidateCompose(content []byte) error {
	var dict map[string]interface{}
	if err := yaml.Unmarshal(content, &dict); err != nil {
		return fmt.Errorf("invalid YAML syntax: %w", err)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{Content: content, Config: dict},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("slipway-render", false)
		opts.SkipValidation = false
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return err
	}
	if len(project.Services) == 0 {
		return fmt.Errorf("compose file declares no services")
	}
	return nil
}
