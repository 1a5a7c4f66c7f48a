package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-triage/internal/leadscorer"
	"github.com/sells-group/lead-triage/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score leads from a JSON or YAML file",
	Long:  "Scores one lead or a list of leads, skipping leads whose content is unchanged since they were last scored unless --force is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		input, _ := cmd.Flags().GetString("input")
		force, _ := cmd.Flags().GetBool("force")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		leads, err := loadLeads(input)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "score")
		if err != nil {
			return err
		}
		defer env.Close()

		log := zap.L().With(zap.String("input", input))
		outcomes := env.Agent.ProcessBatch(ctx, leads, leadscorer.BatchOptions{
			Concurrency: concurrency,
			Force:       force,
			OnProgress: func(processed, total int) {
				if processed == total || processed%25 == 0 {
					log.Info("scoring progress", zap.Int("processed", processed), zap.Int("total", total))
				}
			},
		})

		return writeJSON(os.Stdout, outcomes)
	},
}

// loadLeads reads leads from path, or stdin when path is "-". JSON files
// may hold one lead or an array; .yaml and .yml files hold an array.
func loadLeads(path string) ([]model.Lead, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	return parseLeads(data, filepath.Ext(path))
}

func parseLeads(data []byte, ext string) ([]model.Lead, error) {
	var leads []model.Lead
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &leads); err != nil {
			return nil, eris.Wrap(err, "parse leads yaml")
		}
		return leads, nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, eris.New("parse leads: input is empty")
	}
	if trimmed[0] != '[' {
		var lead model.Lead
		if err := json.Unmarshal(trimmed, &lead); err != nil {
			return nil, eris.Wrap(err, "parse lead json")
		}
		return []model.Lead{lead}, nil
	}
	if err := json.Unmarshal(trimmed, &leads); err != nil {
		return nil, eris.Wrap(err, "parse leads json")
	}
	return leads, nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, eris.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}

func init() {
	scoreCmd.Flags().String("input", "-", "lead file (.json, .yaml) or - for stdin")
	scoreCmd.Flags().Bool("force", false, "rescore leads even when unchanged")
	scoreCmd.Flags().Int("concurrency", 0, "parallel scoring limit (default from config)")
	rootCmd.AddCommand(scoreCmd)
}

