package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docindex/configs"
	"github.com/Aman-CERP/docindex/internal/config"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/output"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration",
		Long: `Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config ($XDG_CONFIG_HOME/docindex/config.yaml)
  3. Project config (.docindex.yaml)
  4. .env in the working directory
  5. Environment variables (DOCINDEX_*, OPENAI_API_KEY, ...)`,
	}

	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigInitCmd(root))
	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration with API keys masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(redacted)
			}
			data, err := yaml.Marshal(redacted)
			if err != nil {
				return docerrors.InternalError("failed to encode config", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigInitCmd(root *rootOptions) *cobra.Command {
	var force, project, effective bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an annotated configuration file",
		Long: `Write the annotated user config template to the user config path.

With --project, write the project template to .docindex.yaml in the working
directory instead. With --effective, write the fully merged configuration
(defaults, files and environment) in place of the template; API keys that
came from the environment are written as set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, template := config.GetUserConfigPath(), configs.UserConfigTemplate
			if project {
				path, template = filepath.Join(root.workDir, ".docindex.yaml"), configs.ProjectConfigTemplate
			}
			if exists(path) && !force {
				return docerrors.ValidationError("config file already exists", nil).
					WithDetail("path", path).
					WithSuggestion("Use --force to overwrite")
			}

			var err error
			if effective {
				var cfg *config.Config
				if cfg, err = root.loadConfig(); err != nil {
					return err
				}
				err = cfg.WriteYAML(path)
			} else {
				err = config.WriteTemplate(path, template)
			}
			if err != nil {
				return docerrors.IOError("failed to write config", err).WithDetail("path", path)
			}
			output.New(cmd.OutOrStdout()).Successf("Created %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&project, "project", false, "Write .docindex.yaml in the working directory")
	cmd.Flags().BoolVar(&effective, "effective", false, "Write the merged configuration instead of the template")
	return cmd
}
