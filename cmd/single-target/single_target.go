package singletarget

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/stimtools/stimopt/pkg/engine"
	"github.com/stimtools/stimopt/pkg/logger"
	"github.com/stimtools/stimopt/pkg/opt"
	"github.com/stimtools/stimopt/pkg/protocol"
	"github.com/stimtools/stimopt/pkg/report"
)

// SingleTargetProtocol optimizes electrode currents for one cortical target
type SingleTargetProtocol struct {
	config   *Config
	stopOnce sync.Once
	stopChan chan struct{}
}

// New creates a new instance of the single-target protocol
func New() protocol.Protocol {
	return &SingleTargetProtocol{
		stopChan: make(chan struct{}),
	}
}

// Name returns the protocol name
func (p *SingleTargetProtocol) Name() string {
	return "single_target"
}

// Description returns the protocol description
func (p *SingleTargetProtocol) Description() string {
	return "Optimizes electrode currents for a single cortical target"
}

// Configure sets up the protocol with provided parameters
func (p *SingleTargetProtocol) Configure(params map[string]interface{}) error {
	config, err := ValidateAndParse(params)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	p.config = config
	return nil
}

// Run assembles the optimization and dispatches it to the engine
func (p *SingleTargetProtocol) Run(ctx context.Context, eng engine.Engine) error {
	if p.config == nil {
		return fmt.Errorf("protocol not configured")
	}

	spec := p.buildSpec()
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid optimization: %w", err)
	}

	logger.Infof("Dispatching %s via engine %s", spec.Name, eng.Name())
	logger.WithFields(map[string]interface{}{
		"target":    opt.FormatVector3(spec.Targets[0].Position),
		"intensity": spec.Targets[0].Intensity,
	}).Debug("Assembled single-target optimization")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopChan:
			cancel()
		case <-runCtx.Done():
		}
	}()

	result, err := eng.Optimize(runCtx, spec)
	if err != nil {
		return err
	}

	report.PrintSummary(os.Stdout, report.FromResult(result, spec))
	return nil
}

// buildSpec translates the protocol configuration into an optimization
func (p *SingleTargetProtocol) buildSpec() *opt.Optimization {
	spec := opt.New(p.config.RunName)
	spec.Leadfield = p.config.Leadfield
	spec.MaxTotalCurrent = p.config.MaxTotalCurrent
	spec.MaxIndividualCurrent = p.config.MaxIndividualCurrent
	spec.MaxActiveElectrodes = p.config.MaxActiveElectrodes

	target := spec.AddTarget()
	target.Position = p.config.TargetPosition
	target.Intensity = p.config.TargetIntensity

	return spec
}

// Stop gracefully aborts a running protocol
func (p *SingleTargetProtocol) Stop() error {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	return nil
}

// init registers the protocol
func init() {
	if err := protocol.DefaultRegistry.Register("single_target", New); err != nil {
		logger.Errorf("Failed to register protocol: %v", err)
	}
}
