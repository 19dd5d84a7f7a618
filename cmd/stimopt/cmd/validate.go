package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stimtools/stimopt/pkg/engine"
	"github.com/stimtools/stimopt/pkg/logger"
	"github.com/stimtools/stimopt/pkg/opt"
)

var validateCmd = &cobra.Command{
	Use:   "validate <spec-file>",
	Short: "Validate an optimization spec file",
	Long:  `Load a YAML or JSON spec file, apply defaults and check its constraints without running anything`,
	Args:  cobra.ExactArgs(1),
	RunE:  validateSpec,
}

func validateSpec(cmd *cobra.Command, args []string) error {
	spec, err := opt.Load(args[0])
	if err != nil {
		return fmt.Errorf("spec is not valid: %w", err)
	}

	fmt.Println(spec)

	if !engine.IsLeadfieldRef(spec.Leadfield) {
		if _, err := os.Stat(spec.Leadfield); err != nil {
			logger.Warnf("Leadfield file %s does not exist locally", spec.Leadfield)
		}
	}

	logger.Successf("%s is valid", args[0])
	return nil
}
