package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-triage/internal/brain"
	"github.com/sells-group/lead-triage/internal/scorer"
	"github.com/sells-group/lead-triage/internal/vertical"
)

var brainsCmd = &cobra.Command{
	Use:   "brains",
	Short: "Inspect the brain library",
	Long:  "Commands for listing and validating vertical brains: ICP rule sets, response templates and objection handlers.",
}

// -- brains list --

var brainsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List brains and their verticals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat, err := initLibrary(cmd.Context())
		if err != nil {
			return err
		}
		formatBrains(os.Stdout, cat)
		return nil
	},
}

// -- brains validate --

var brainsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the brain library and its detection index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if path, _ := cmd.Flags().GetString("path"); path != "" {
			cfg.Scoring.BrainsPath = path
			cfg.Scoring.BrainsSource = "file"
		}

		cat, err := initLibrary(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := vertical.Build(cat.Verticals()); err != nil {
			return err
		}
		for _, id := range cat.IDs() {
			b, _ := cat.Brain(id)
			if err := scorer.ValidateRuleSet(b.RuleSet()); err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
		}
		fmt.Fprintf(os.Stdout, "%d brains, %d verticals OK\n", len(cat.IDs()), len(cat.Verticals()))
		return nil
	},
}

func formatBrains(w io.Writer, cat *brain.Catalog) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BRAIN\tVERTICAL\tRULES\tTEMPLATES\tOBJECTIONS\tVERSION")
	for _, id := range cat.IDs() {
		b, _ := cat.Brain(id)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			b.ID, b.Vertical, len(b.Rules), len(b.Templates), len(b.ObjectionHandlers), b.RulesVersion())
	}
	_ = tw.Flush()
}

func init() {
	brainsValidateCmd.Flags().String("path", "", "brain library YAML to validate instead of the configured source")
	brainsCmd.AddCommand(brainsListCmd, brainsValidateCmd)
	rootCmd.AddCommand(brainsCmd)
}
