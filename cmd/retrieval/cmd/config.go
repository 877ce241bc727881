package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/configs"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/output"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/validation"
)

type configOptions struct {
	configPath string
	dumpJSON   bool
	initPath   string
}

func newConfigCmd() *cobra.Command {
	var opts configOptions

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective family config",
		Long: `config loads a family config file (or the built-in defaults), runs
it through config and weight-table validation, and prints the result.
Fatal issues exit non-zero; warnings are informational.

Pass --init to write the family config template instead of validating.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.initPath != "" {
				return runConfigInit(cmd, opts.initPath)
			}
			return runConfig(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to the family config JSON file (defaults to built-in defaults)")
	cmd.Flags().BoolVar(&opts.dumpJSON, "dump", false, "print the fully resolved config as JSON")
	cmd.Flags().StringVar(&opts.initPath, "init", "", "write the family config template to this path instead of validating")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string) error {
	out := output.New(cmd.OutOrStdout())
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("cmd: %s already exists, refusing to overwrite", path)
	}
	if err := os.WriteFile(path, []byte(configs.FamilyConfigTemplate), 0644); err != nil {
		return fmt.Errorf("cmd: write config template: %w", err)
	}
	out.Success(fmt.Sprintf("wrote family config template to %s", path))
	return nil
}

func runConfig(cmd *cobra.Command, opts configOptions) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	result := validation.Validate(cfg)
	if len(result.Issues) == 0 {
		out.Success("config is valid, no issues found")
	} else {
		out.Status("", result.String())
	}

	if opts.dumpJSON {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		out.Code(string(data))
	}

	if !result.OK() {
		return fmt.Errorf("cmd: config has fatal issues")
	}
	return nil
}
