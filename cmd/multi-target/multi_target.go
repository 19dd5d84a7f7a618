package multitarget

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

// MultiTargetProtocol optimizes electrode currents for up to two targets
// while steering the field away from an avoidance region
type MultiTargetProtocol struct {
	config   *Config
	stopOnce sync.Once
	stopChan chan struct{}
}

// New creates a new instance of the multi-target protocol
func New() protocol.Protocol {
	return &MultiTargetProtocol{
		stopChan: make(chan struct{}),
	}
}

// Name returns the protocol name
func (p *MultiTargetProtocol) Name() string {
	return "multi_target"
}

// Description returns the protocol description
func (p *MultiTargetProtocol) Description() string {
	return "Optimizes electrode currents for two targets with an avoidance region"
}

// Configure sets up the protocol with provided parameters
func (p *MultiTargetProtocol) Configure(params map[string]interface{}) error {
	config, err := ValidateAndParse(params)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	p.config = config
	return nil
}

// Run assembles the optimization and dispatches it to the engine
func (p *MultiTargetProtocol) Run(ctx context.Context, eng engine.Engine) error {
	if p.config == nil {
		return fmt.Errorf("protocol not configured")
	}

	spec := p.buildSpec()
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid optimization: %w", err)
	}

	logger.Infof("Dispatching %s via engine %s (%d targets)", spec.Name, eng.Name(), len(spec.Targets))

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
func (p *MultiTargetProtocol) buildSpec() *opt.Optimization {
	spec := opt.New(p.config.RunName)
	spec.Leadfield = p.config.Leadfield
	spec.MaxTotalCurrent = p.config.MaxTotalCurrent
	spec.MaxIndividualCurrent = p.config.MaxIndividualCurrent
	spec.MaxActiveElectrodes = p.config.MaxActiveElectrodes

	for _, tc := range p.config.Targets {
		target := spec.AddTarget()
		target.Position = tc.Position
		target.Intensity = tc.Intensity
		target.Direction = tc.Direction
		target.Radius = p.config.TargetRadius
	}

	if p.config.AvoidPosition != nil {
		avoid := spec.AddAvoid()
		avoid.Position = p.config.AvoidPosition
		avoid.Radius = p.config.AvoidRadius
		avoid.Weight = p.config.AvoidWeight
	}

	return spec
}

// Stop gracefully aborts a running protocol
func (p *MultiTargetProtocol) Stop() error {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	return nil
}

// init registers the protocol
func init() {
	if err := protocol.DefaultRegistry.Register("multi_target", New); err != nil {
		logger.Errorf("Failed to register protocol: %v", err)
	}
}
