package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/stimtools/stimopt/pkg/auth"
	"github.com/stimtools/stimopt/pkg/config"
	"github.com/stimtools/stimopt/pkg/engine"
	"github.com/stimtools/stimopt/pkg/logger"
	"github.com/stimtools/stimopt/pkg/opt"
	"github.com/stimtools/stimopt/pkg/protocol"
	"github.com/stimtools/stimopt/pkg/report"
	"github.com/stimtools/stimopt/pkg/runs"
	"github.com/stimtools/stimopt/pkg/utils"

	// Import protocols to register them
	_ "github.com/stimtools/stimopt/cmd/multi-target"
	_ "github.com/stimtools/stimopt/cmd/single-target"
)

var runCmd = &cobra.Command{
	Use:   "run [protocol]",
	Short: "Run an optimization",
	Long:  `Run an optimization protocol interactively or dispatch a spec file directly`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOptimization,
}

func init() {
	runCmd.Flags().StringP("spec", "s", "", "optimization spec file (YAML or JSON) to dispatch as-is")
	runCmd.Flags().StringArrayP("param", "p", nil, "protocol parameter as name=value (repeatable, skips the prompt)")
	runCmd.Flags().BoolP("yes", "y", false, "accept parameter defaults instead of prompting")
	runCmd.Flags().Bool("no-record", false, "do not record this run in the local history")
}

func runOptimization(cmd *cobra.Command, args []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		_ = os.Setenv(utils.EnvSkipPrompts, "true")
	}

	engineCfg, apiKey, err := selectEngine()
	if err != nil {
		return fmt.Errorf("failed to select engine: %w", err)
	}

	eng, err := buildEngine(engineCfg, apiKey)
	if err != nil {
		return err
	}

	if err := logger.WithSpinner(fmt.Sprintf("Checking engine %s", eng.Name()), func() error {
		return eng.ValidateConnection(context.Background())
	}); err != nil {
		return fmt.Errorf("engine %s is not usable: %w", eng.Name(), err)
	}

	store := openRunStore(cmd)
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Errorf("Failed to close run store: %v", err)
			}
		}()
	}

	if specFile, _ := cmd.Flags().GetString("spec"); specFile != "" {
		return dispatchSpecFile(eng, store, specFile)
	}

	return dispatchProtocol(cmd, args, eng, store)
}

// openRunStore opens the run history database. History is best effort:
// a missing or locked database disables recording but never blocks a run.
func openRunStore(cmd *cobra.Command) *runs.Store {
	if noRecord, _ := cmd.Flags().GetBool("no-record"); noRecord {
		return nil
	}

	path, err := runs.DefaultPath()
	if err == nil {
		var store *runs.Store
		if store, err = runs.Open(path); err == nil {
			return store
		}
	}
	logger.Warnf("Run history disabled: %v", err)
	return nil
}

// dispatchSpecFile sends a spec file straight to the engine, bypassing
// the protocol layer.
func dispatchSpecFile(eng engine.Engine, store *runs.Store, specFile string) error {
	spec, err := opt.Load(specFile)
	if err != nil {
		return fmt.Errorf("failed to load spec file: %w", err)
	}

	fmt.Println(spec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		logger.Warn("\nReceived interrupt signal, canceling optimization...")
		cancel()
	}()

	var dispatcher engine.Engine = eng
	if store != nil {
		dispatcher = runs.NewRecordingEngine(eng, store, "spec")
	}

	logger.Section(fmt.Sprintf("Dispatching %s", spec.Name))
	result, err := dispatcher.Optimize(ctx, spec)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	report.PrintSummary(os.Stdout, report.FromResult(result, spec))
	logger.Success("Optimization completed successfully")
	return nil
}

func dispatchProtocol(cmd *cobra.Command, args []string, eng engine.Engine, store *runs.Store) error {
	protoName, err := selectProtocol(args)
	if err != nil {
		return fmt.Errorf("failed to select protocol: %w", err)
	}

	proto, err := protocol.DefaultRegistry.Get(protoName)
	if err != nil {
		return fmt.Errorf("failed to get protocol: %w", err)
	}

	params, err := collectParameters(cmd, protoName, eng)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}

	if err := proto.Configure(params); err != nil {
		return fmt.Errorf("failed to configure protocol: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		logger.Warn("\nReceived interrupt signal, stopping optimization...")
		if err := proto.Stop(); err != nil {
			logger.Errorf("Failed to stop protocol: %v", err)
		}
		cancel()
	}()

	var dispatcher engine.Engine = eng
	if store != nil {
		dispatcher = runs.NewRecordingEngine(eng, store, protoName)
	}

	logger.Section(fmt.Sprintf("Starting %s", proto.Name()))
	if err := proto.Run(ctx, dispatcher); err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	logger.Success("Optimization completed successfully")
	return nil
}

func selectEngine() (*config.Engine, string, error) {
	// An explicit URL bypasses the engine configuration entirely
	if engineURL != "" {
		return &config.Engine{
			Name: "custom",
			Type: config.EngineTypeRemote,
			URL:  engineURL,
		}, os.Getenv("STIMOPT_API_KEY"), nil
	}

	if serviceURL := os.Getenv("STIMOPT_URL"); serviceURL != "" {
		return &config.Engine{
			Name: "environment",
			Type: config.EngineTypeRemote,
			URL:  serviceURL,
		}, os.Getenv("STIMOPT_API_KEY"), nil
	}

	cfg, err := config.LoadEngines()
	if err != nil {
		return nil, "", err
	}

	if engineName != "" {
		eng, err := cfg.Find(engineName)
		if err != nil {
			return nil, "", err
		}
		return eng, resolveAPIKey(eng), nil
	}

	if eng, err := cfg.Default(); err == nil {
		return eng, resolveAPIKey(eng), nil
	}

	return promptForEngine(cfg)
}

func resolveAPIKey(eng *config.Engine) string {
	if eng.APIKeyEnv == "" {
		return ""
	}
	return engine.GetAPIKey(eng.APIKeyEnv)
}

func promptForEngine(cfg *config.Config) (*config.Engine, string, error) {
	options := make([]string, len(cfg.Engines)+1)
	for i, eng := range cfg.Engines {
		options[i] = eng.Name
	}
	options[len(options)-1] = "Custom URL"

	var selected string
	prompt := &survey.Select{
		Message: "Select engine:",
		Options: options,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return nil, "", err
	}

	if selected == "Custom URL" {
		var customURL string
		urlPrompt := &survey.Input{
			Message: "Enter optimization service URL:",
			Default: "https://opt.stimtools.dev",
		}
		if err := survey.AskOne(urlPrompt, &customURL); err != nil {
			return nil, "", err
		}

		var apiKey string
		keyPrompt := &survey.Password{
			Message: "Enter API key (empty to sign in):",
		}
		if err := survey.AskOne(keyPrompt, &apiKey); err != nil {
			return nil, "", err
		}

		return &config.Engine{
			Name: "custom",
			Type: config.EngineTypeRemote,
			URL:  customURL,
		}, apiKey, nil
	}

	eng, err := cfg.Find(selected)
	if err != nil {
		return nil, "", err
	}

	apiKey := resolveAPIKey(eng)
	if apiKey == "" && eng.APIKeyEnv != "" {
		// Prompt for the key when the configured env var is not set
		var key string
		keyPrompt := &survey.Password{
			Message: fmt.Sprintf("Enter API key for %s:", eng.Name),
		}
		if err := survey.AskOne(keyPrompt, &key); err != nil {
			return nil, "", err
		}
		apiKey = key
	}
	return eng, apiKey, nil
}

// buildEngine turns an engine configuration into a dispatchable engine.
// Remote engines without an API key go through the service's SSO login.
func buildEngine(engineCfg *config.Engine, apiKey string) (engine.Engine, error) {
	if engineCfg.Type != config.EngineTypeRemote {
		return engine.New(engineCfg)
	}

	if apiKey != "" {
		serviceClient, err := engine.NewServiceClient(engineCfg.URL, apiKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create service client: %w", err)
		}
		return engine.NewRemoteEngineWithClient(engineCfg, serviceClient), nil
	}

	tokenManager, err := auth.AuthenticateWithService(context.Background(), engineCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	return engine.NewWithTokenManager(engineCfg, tokenManager)
}

func selectProtocol(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	protoInfos, err := utils.DiscoverProtocols()
	if err != nil || len(protoInfos) == 0 {
		// Without manifests on disk, fall back to the compiled-in protocols
		names := protocol.DefaultRegistry.List()
		if len(names) == 0 {
			return "", fmt.Errorf("no protocols available")
		}
		return promptForProtocol(names, nil)
	}

	options := make([]string, len(protoInfos))
	descriptions := make(map[string]string)
	for i, info := range protoInfos {
		options[i] = info.Config.Name
		descriptions[info.Config.Name] = info.Config.Description
	}

	return promptForProtocol(options, descriptions)
}

func promptForProtocol(options []string, descriptions map[string]string) (string, error) {
	prompt := &survey.Select{
		Message: "Select protocol:",
		Options: options,
	}
	if descriptions != nil {
		prompt.Description = func(value string, index int) string {
			return descriptions[value]
		}
	}

	var selected string
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}

// collectParameters resolves protocol parameters from --param overrides
// first, then prompts for the rest.
func collectParameters(cmd *cobra.Command, protoName string, eng engine.Engine) (map[string]interface{}, error) {
	manifest, err := findManifest(protoName)
	if err != nil {
		// No manifest means nothing to prompt for; overrides pass through
		// as strings and the protocol parses them itself
		logger.Debugf("No manifest for %s: %v", protoName, err)
		return parseParamFlags(cmd, nil)
	}

	overrides, err := parseParamFlags(cmd, manifest.Parameters)
	if err != nil {
		return nil, err
	}

	remaining := make([]protocol.Parameter, 0, len(manifest.Parameters))
	for _, param := range manifest.Parameters {
		if _, ok := overrides[param.Name]; !ok {
			remaining = append(remaining, param)
		}
	}

	if remote, ok := eng.(*engine.RemoteEngine); ok {
		offerRegisteredLeadfields(remote, remaining)
	}

	params, err := utils.PromptForParameters(remaining)
	if err != nil {
		return nil, err
	}
	for name, value := range overrides {
		params[name] = value
	}
	return params, nil
}

// offerRegisteredLeadfields turns a free-form leadfield prompt into a
// pick list of the service's registered leadfields. Best effort: when the
// listing fails the prompt stays a plain input.
func offerRegisteredLeadfields(remote *engine.RemoteEngine, params []protocol.Parameter) {
	for i, param := range params {
		if param.Name != "leadfield" {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		listing, err := remote.Client().ListLeadfields(ctx)
		cancel()
		if err != nil {
			logger.Debugf("Not offering registered leadfields: %v", err)
			return
		}
		if len(listing.Results) == 0 {
			return
		}

		options := make([]string, len(listing.Results))
		for j, leadfield := range listing.Results {
			options[j] = engine.LeadfieldRefScheme + leadfield.Name
		}
		params[i].Options = options
		params[i].Default = options[0]
		return
	}
}

func findManifest(protoName string) (*protocol.ProtocolConfig, error) {
	protoInfos, err := utils.DiscoverProtocols()
	if err != nil {
		return nil, err
	}
	for _, info := range protoInfos {
		if info.Config.Name == protoName {
			return &info.Config, nil
		}
	}
	return nil, fmt.Errorf("protocol manifest not found for %s", protoName)
}

func parseParamFlags(cmd *cobra.Command, manifest []protocol.Parameter) (map[string]interface{}, error) {
	raw, _ := cmd.Flags().GetStringArray("param")

	byName := make(map[string]protocol.Parameter, len(manifest))
	for _, param := range manifest {
		byName[param.Name] = param
	}

	overrides := make(map[string]interface{}, len(raw))
	for _, pair := range raw {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --param %q, expected name=value", pair)
		}

		param, known := byName[name]
		if !known {
			overrides[name] = value
			continue
		}

		parsed, err := utils.ParseValue(value, param)
		if err != nil {
			return nil, fmt.Errorf("invalid --param %s: %w", name, err)
		}
		overrides[name] = parsed
	}
	return overrides, nil
}
