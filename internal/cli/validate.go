package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schemeworks/sow-backend/internal/types"
	"github.com/schemeworks/sow-backend/internal/validate"
)

var (
	validateSchemePath    string
	validateRequestPath   string
	validateRequirePaired bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an assembled scheme document offline",
	Long: `Validate re-runs the cross-entry checks against an assembled scheme
document: the order sequence must be exactly 1..N, exactly one capstone,
coverage of independent practice, and (optionally) the teach/practice
pairing rule.

When --request points at the original request file, every lesson ref is
additionally checked against the published topic catalog.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(validateSchemePath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", validateSchemePath, err)
		}
		var doc types.AssembledScheme
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parsing %s: %w", validateSchemePath, err)
		}

		policy := validate.CrossEntryPolicy{RequirePairing: validateRequirePaired}
		violations := validate.CrossEntry(doc.Entries, policy)

		if err := validate.Metadata(doc.Metadata); err != nil {
			violations = append(violations, validate.ViolationsOf(err)...)
		}

		if validateRequestPath != "" {
			req, err := loadRequest(validateRequestPath)
			if err != nil {
				return err
			}
			catalog := req.TopicCatalog()
			for _, lesson := range doc.Entries {
				for _, ref := range lesson.Refs {
					if !catalog[ref] {
						violations = append(violations, validate.Violation{
							Order:  lesson.Order,
							Field:  "refs",
							Reason: fmt.Sprintf("ref %q is not in the published topic catalog", ref),
						})
					}
				}
			}
		}

		if len(violations) == 0 {
			fmt.Printf("%s: OK (%d lessons)\n", validateSchemePath, len(doc.Entries))
			return nil
		}
		for _, v := range violations {
			fmt.Println(v.String())
		}
		return fmt.Errorf("%d violation(s)", len(violations))
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateSchemePath, "scheme", "s", "", "path to the assembled scheme JSON")
	validateCmd.Flags().StringVarP(&validateRequestPath, "request", "r", "", "optional request YAML for catalog checks")
	validateCmd.Flags().BoolVar(&validateRequirePaired, "require-pairing", false, "enforce the teach/practice pairing rule")
	_ = validateCmd.MarkFlagRequired("scheme")
	rootCmd.AddCommand(validateCmd)
}
