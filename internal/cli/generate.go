package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/schemeworks/sow-backend/internal/gateway"
	"github.com/schemeworks/sow-backend/internal/logger"
	"github.com/schemeworks/sow-backend/internal/services"
	"github.com/schemeworks/sow-backend/internal/types"
)

var (
	generateRequestPath string
	generateOutPath     string
	generateMaxAttempts int
	generateQuiet       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a scheme of work from a request file",
	Long: `Generate runs the full pipeline (outline, lessons, metadata, assemble)
against the configured model gateway and writes the assembled scheme
document as JSON.

The request file is YAML:

  subject: Mathematics
  level: KS3-Y8
  version: "2026.1"
  total_lessons: 12
  structure_kind: paired
  require_pairing: false
  units:
    - ref: U1
      title: Sequences
      topic_codes: [M8.1a, M8.1b]

Model access is configured through the same OPENAI_* environment
variables the server uses.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := loadRequest(generateRequestPath)
		if err != nil {
			return err
		}

		logMode := os.Getenv("LOG_MODE")
		if logMode == "" {
			logMode = "production"
		}
		log, err := logger.New(logMode)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()

		gen, critic, err := gateway.NewOpenAIGateway(log, nil)
		if err != nil {
			return fmt.Errorf("init gateway: %w", err)
		}

		progress := func(stage string, pct int, msg string) {
			if generateQuiet {
				return
			}
			fmt.Fprintf(os.Stderr, "[%3d%%] %-8s %s\n", pct, stage, msg)
		}

		result, err := services.RunPipeline(context.Background(), log, gen, critic, *req, generateMaxAttempts, progress)
		if err != nil {
			return fmt.Errorf("pipeline failed in %s stage: %w", services.PipelineStage(err), err)
		}

		out, err := json.MarshalIndent(result.Scheme, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding scheme: %w", err)
		}
		out = append(out, '\n')

		if generateOutPath == "" || generateOutPath == "-" {
			_, err = os.Stdout.Write(out)
			return err
		}
		if err := os.WriteFile(generateOutPath, out, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", generateOutPath, err)
		}

		if !generateQuiet {
			fmt.Fprintf(os.Stderr, "Wrote %s (%d lessons", generateOutPath, len(result.Scheme.Entries))
			if len(result.DegradedOrders) > 0 {
				fmt.Fprintf(os.Stderr, ", degraded: %v", result.DegradedOrders)
			}
			fmt.Fprintln(os.Stderr, ")")
		}
		return nil
	},
}

// loadRequest reads a generation request from a YAML file using Viper.
func loadRequest(path string) (*types.GenerationRequest, error) {
	if path == "" {
		return nil, fmt.Errorf("--request is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	req := &types.GenerationRequest{
		Subject:        v.GetString("subject"),
		Level:          v.GetString("level"),
		Version:        v.GetString("version"),
		TotalLessons:   v.GetInt("total_lessons"),
		StructureKind:  v.GetString("structure_kind"),
		RequirePairing: v.GetBool("require_pairing"),
	}

	rawUnits := v.Get("units")
	if unitSlice, ok := rawUnits.([]interface{}); ok {
		for _, item := range unitSlice {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			unit := types.Unit{}
			if ref, ok := m["ref"].(string); ok {
				unit.Ref = ref
			}
			if title, ok := m["title"].(string); ok {
				unit.Title = title
			}
			if codes, ok := m["topic_codes"].([]interface{}); ok {
				for _, c := range codes {
					if s, ok := c.(string); ok {
						unit.TopicCodes = append(unit.TopicCodes, s)
					}
				}
			}
			req.Units = append(req.Units, unit)
		}
	}

	if req.Subject == "" || req.Level == "" || req.Version == "" {
		return nil, fmt.Errorf("%s: subject, level and version are required", path)
	}
	if req.TotalLessons <= 0 {
		return nil, fmt.Errorf("%s: total_lessons must be positive", path)
	}
	if len(req.TopicCatalog()) == 0 {
		return nil, fmt.Errorf("%s: units must publish at least one topic code", path)
	}
	return req, nil
}

func init() {
	generateCmd.Flags().StringVarP(&generateRequestPath, "request", "r", "", "path to the YAML generation request")
	generateCmd.Flags().StringVarP(&generateOutPath, "out", "o", "-", "output file for the assembled scheme (- for stdout)")
	generateCmd.Flags().IntVar(&generateMaxAttempts, "max-attempts", 0, "per-phase attempt budget (0 uses the default)")
	generateCmd.Flags().BoolVarP(&generateQuiet, "quiet", "q", false, "suppress progress output")
	rootCmd.AddCommand(generateCmd)
}
