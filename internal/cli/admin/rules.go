package admin

import (
	"fmt"

	"github.com/cloo-solutions/companion/internal/config"
	"github.com/cloo-solutions/companion/internal/rules"
	"github.com/spf13/cobra"
)

func RulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect heuristic rule tables",
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the active rule tables as YAML",
		Long:  "Print the rule tables loaded from --file or COMPANION_RULES_PATH, falling back to the built-in defaults. The output can be edited and passed back via COMPANION_RULES_PATH.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				if cfg, err := config.Load(); err == nil {
					path = cfg.RulesPath
				}
			}
			r, err := rules.Load(path)
			if err != nil {
				return err
			}
			data, err := r.YAML()
			if err != nil {
				return fmt.Errorf("failed to render rules: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	dump.Flags().StringP("file", "f", "", "Rules file to validate and print (default: built-in rules)")

	cmd.AddCommand(dump)
	return cmd
}
