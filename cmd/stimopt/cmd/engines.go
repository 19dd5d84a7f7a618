package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/stimtools/stimopt/pkg/config"
	"github.com/stimtools/stimopt/pkg/engine"
	"github.com/stimtools/stimopt/pkg/logger"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "Manage optimization engines",
	Long:  `Manage the solvers and services that optimizations are dispatched to`,
}

var enginesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured engines",
	RunE:  listEngines,
}

var enginesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new engine",
	RunE:  addEngine,
}

var enginesRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove an engine",
	RunE:  removeEngine,
}

var enginesSelectCmd = &cobra.Command{
	Use:   "select [name]",
	Short: "Set the default engine",
	Args:  cobra.MaximumNArgs(1),
	RunE:  selectDefaultEngine,
}

func init() {
	enginesCmd.AddCommand(enginesListCmd)
	enginesCmd.AddCommand(enginesAddCmd)
	enginesCmd.AddCommand(enginesRemoveCmd)
	enginesCmd.AddCommand(enginesSelectCmd)
}

func listEngines(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadEngines()
	if err != nil {
		return fmt.Errorf("failed to load engines: %w", err)
	}

	if len(cfg.Engines) == 0 {
		fmt.Println("No engines configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTYPE\tTARGET\tAUTHENTICATION")
	_, _ = fmt.Fprintln(w, "----\t----\t------\t--------------")

	for _, eng := range cfg.Engines {
		name := eng.Name
		if eng.Name == cfg.Selected {
			name += " *"
		}

		target := eng.Command
		authInfo := "none"
		if eng.Type == config.EngineTypeRemote {
			target = eng.URL
			authInfo = "SSO (interactive)"
			if eng.APIKeyEnv != "" {
				authInfo = fmt.Sprintf("API key (%s)", eng.APIKeyEnv)
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, eng.Type, target, authInfo)
	}

	if err := w.Flush(); err != nil {
		return err
	}
	if cfg.Selected != "" {
		fmt.Println("\n* default engine")
	}
	return nil
}

func addEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadEngines()
	if err != nil {
		return fmt.Errorf("failed to load engines: %w", err)
	}

	var eng config.Engine

	namePrompt := &survey.Input{
		Message: "Engine name:",
	}
	if err := survey.AskOne(namePrompt, &eng.Name, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	for _, existing := range cfg.Engines {
		if existing.Name == eng.Name {
			return fmt.Errorf("engine %s already exists", eng.Name)
		}
	}

	typePrompt := &survey.Select{
		Message: "Engine type:",
		Options: []string{config.EngineTypeLocal, config.EngineTypeRemote},
		Default: config.EngineTypeLocal,
	}
	if err := survey.AskOne(typePrompt, &eng.Type); err != nil {
		return err
	}

	if eng.Type == config.EngineTypeLocal {
		if err := promptLocalEngine(&eng); err != nil {
			return err
		}
	} else {
		if err := promptRemoteEngine(&eng); err != nil {
			return err
		}
	}

	if err := eng.Validate(); err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}

	cfg.Engines = append(cfg.Engines, eng)
	if cfg.Selected == "" {
		cfg.Selected = eng.Name
	}

	if err := config.SaveEngines(cfg); err != nil {
		return fmt.Errorf("failed to save engines: %w", err)
	}

	logger.Successf("Engine %s added", eng.Name)
	return nil
}

func promptLocalEngine(eng *config.Engine) error {
	commandPrompt := &survey.Input{
		Message: "Solver command:",
		Default: "tesolve",
		Help:    "Executable invoked for each optimization, resolved via PATH",
	}
	if err := survey.AskOne(commandPrompt, &eng.Command, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	outputPrompt := &survey.Input{
		Message: "Output directory (empty for a temporary directory):",
	}
	if err := survey.AskOne(outputPrompt, &eng.OutputDir); err != nil {
		return err
	}

	// A typo in the command name is the usual mistake, catch it now
	if localEng, err := engine.New(eng); err == nil {
		if err := localEng.ValidateConnection(context.Background()); err != nil {
			logger.Warnf("Engine saved but not usable yet: %v", err)
		}
	}
	return nil
}

func promptRemoteEngine(eng *config.Engine) error {
	urlPrompt := &survey.Input{
		Message: "Optimization service URL:",
		Default: "https://opt.stimtools.dev",
	}
	if err := survey.AskOne(urlPrompt, &eng.URL, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	authPrompt := &survey.Select{
		Message: "Authentication method:",
		Options: []string{"SSO (interactive sign-in)", "API key (environment variable)"},
		Default: "SSO (interactive sign-in)",
	}
	var authMethod string
	if err := survey.AskOne(authPrompt, &authMethod); err != nil {
		return err
	}

	if authMethod == "API key (environment variable)" {
		apiKeyPrompt := &survey.Input{
			Message: "API key environment variable:",
			Default: "STIMOPT_API_KEY",
			Help:    "Name of the environment variable that holds the API key",
		}
		if err := survey.AskOne(apiKeyPrompt, &eng.APIKeyEnv, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	studyPrompt := &survey.Input{
		Message: "Study ID (empty for the account default):",
	}
	return survey.AskOne(studyPrompt, &eng.StudyID)
}

func removeEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadEngines()
	if err != nil {
		return fmt.Errorf("failed to load engines: %w", err)
	}

	if len(cfg.Engines) == 0 {
		fmt.Println("No engines to remove")
		return nil
	}

	names := make([]string, len(cfg.Engines))
	for i, eng := range cfg.Engines {
		names[i] = eng.Name
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select engine to remove:",
		Options: names,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return err
	}

	var confirm bool
	confirmPrompt := &survey.Confirm{
		Message: fmt.Sprintf("Are you sure you want to remove %s?", selected),
		Default: false,
	}
	if err := survey.AskOne(confirmPrompt, &confirm); err != nil {
		return err
	}

	if !confirm {
		fmt.Println("Removal cancelled")
		return nil
	}

	remaining := make([]config.Engine, 0, len(cfg.Engines)-1)
	for _, eng := range cfg.Engines {
		if eng.Name != selected {
			remaining = append(remaining, eng)
		}
	}
	cfg.Engines = remaining

	if cfg.Selected == selected {
		cfg.Selected = ""
		if len(cfg.Engines) > 0 {
			cfg.Selected = cfg.Engines[0].Name
			logger.Infof("Default engine is now %s", cfg.Selected)
		}
	}

	if err := config.SaveEngines(cfg); err != nil {
		return fmt.Errorf("failed to save engines: %w", err)
	}

	logger.Successf("Engine %s removed", selected)
	return nil
}

func selectDefaultEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadEngines()
	if err != nil {
		return fmt.Errorf("failed to load engines: %w", err)
	}

	if len(cfg.Engines) == 0 {
		fmt.Println("No engines configured")
		return nil
	}

	var selected string
	if len(args) == 1 {
		selected = args[0]
	} else {
		names := make([]string, len(cfg.Engines))
		for i, eng := range cfg.Engines {
			names[i] = eng.Name
		}
		prompt := &survey.Select{
			Message: "Select default engine:",
			Options: names,
			Default: cfg.Selected,
		}
		if err := survey.AskOne(prompt, &selected); err != nil {
			return err
		}
	}

	if _, err := cfg.Find(selected); err != nil {
		return err
	}

	cfg.Selected = selected
	if err := config.SaveEngines(cfg); err != nil {
		return fmt.Errorf("failed to save engines: %w", err)
	}

	logger.Successf("Default engine set to %s", selected)
	return nil
}
