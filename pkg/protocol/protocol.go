package protocol

import (
	"context"

	"github.com/stimtools/stimopt/pkg/engine"
)

// Protocol defines the interface that all stimulation protocols must implement
type Protocol interface {
	// Name returns the name of the protocol
	Name() string

	// Description returns a brief description of what the protocol optimizes
	Description() string

	// Configure sets up the protocol with the provided parameters
	Configure(params map[string]interface{}) error

	// Run assembles the optimization and dispatches it to the engine
	Run(ctx context.Context, eng engine.Engine) error

	// Stop gracefully aborts a running protocol
	Stop() error
}
