// Package separate splits a mixed recording into stems.
package separate

import (
	"context"
	"fmt"

	"github.com/jscyril/stem_studio/internal/audio"
	"github.com/jscyril/stem_studio/internal/stems"
	"go.uber.org/zap"
)

// Backend names accepted by New
const (
	BackendBand    = "band"
	BackendCommand = "command"
)

// Backend produces stems from a source recording. Implementations may be
// slow and must honour ctx cancellation.
type Backend interface {
	Name() string
	Separate(ctx context.Context, source string, mix *audio.Buffer) ([]stems.Stem, error)
}

// Options selects and configures a backend
type Options struct {
	Backend string
	Command string   // executable for the command backend
	Model   string   // model name passed to the command
	Args    []string // extra arguments placed before the input path
}

// New returns the backend named by opts.Backend
func New(opts Options, log *zap.Logger) (Backend, error) {
	switch opts.Backend {
	case BackendBand, "":
		return NewBandSplit(), nil
	case BackendCommand:
		return NewCommand(opts.Command, opts.Model, opts.Args, log), nil
	default:
		return nil, fmt.Errorf("unknown separation backend %q", opts.Backend)
	}
}
