package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-triage/internal/model"
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Classify and route one inbound reply",
	Long:  "Reads a reply payload as JSON, classifies it, acts on its route and prints the outcome.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		input, _ := cmd.Flags().GetString("input")
		if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
			cfg.Triage.DryRun = true
		}

		data, err := readInput(input)
		if err != nil {
			return err
		}
		var reply model.ReplyPayload
		if err := json.Unmarshal(data, &reply); err != nil {
			return eris.Wrap(err, "parse reply json")
		}

		env, err := initEnv(ctx, "triage")
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Handler.HandleReply(ctx, reply)
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, out)
	},
}

func init() {
	triageCmd.Flags().String("input", "-", "reply payload file or - for stdin")
	triageCmd.Flags().Bool("dry-run", false, "log outbound messages instead of sending them")
	rootCmd.AddCommand(triageCmd)
}
