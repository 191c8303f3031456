package separate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jscyril/stem_studio/internal/audio"
	"github.com/jscyril/stem_studio/internal/stems"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
	"go.uber.org/zap"
)

// Command runs an external separation model in the style of demucs:
//
//	<command> -n <model> -o <dir> [args...] <input>
//
// and reads <dir>/<model>/<input base name>/<stem>.wav for every stem.
type Command struct {
	command string
	model   string
	args    []string
	log     *zap.Logger
}

// NewCommand returns a command backend. log may be nil.
func NewCommand(command, model string, args []string, log *zap.Logger) *Command {
	if command == "" {
		command = "demucs"
	}
	if model == "" {
		model = "htdemucs"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Command{command: command, model: model, args: args, log: log}
}

// Name implements Backend
func (c *Command) Name() string { return BackendCommand + ":" + c.command }

// Available reports whether the executable can be found
func (c *Command) Available() error {
	if _, err := exec.LookPath(c.command); err != nil {
		return fmt.Errorf("%w: %v", playerrors.ErrSeparatorUnavailable, err)
	}
	return nil
}

// Separate implements Backend. mix is not used; the command reads source.
func (c *Command) Separate(ctx context.Context, source string, _ *audio.Buffer) ([]stems.Stem, error) {
	exe, err := exec.LookPath(c.command)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", playerrors.ErrSeparatorUnavailable, err)
	}

	outDir, err := os.MkdirTemp("", "stemstudio-*")
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := append([]string{"-n", c.model, "-o", outDir}, c.args...)
	args = append(args, source)

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	c.log.Info("running separation command", zap.String("command", exe), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s failed: %w: %s", c.command, err, lastLine(output.String()))
	}

	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	resultDir := filepath.Join(outDir, c.model, base)

	var out []stems.Stem
	for i, name := range stems.Order {
		buf, err := audio.DecodeFile(filepath.Join(resultDir, name+".wav"))
		if err != nil {
			return nil, fmt.Errorf("read %s stem: %w", name, err)
		}
		out = append(out, stems.Stem{Name: name, Index: i, Buffer: buf})
	}
	return out, nil
}

// lastLine returns the final non-empty line of command output
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
