// Package decomposer spawns the external tree-decomposer: it streams the
// nested primal graph on the subprocess's stdin in GR format, reads the
// decomposition back in TD format from stdout, and re-maps bag contents
// through the caller's normalization table before handing back the raw wire
// TD for internal/treedecomp to build a tree from.
package decomposer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/dpdb/dpdb-go/internal/cancel"
	"github.com/dpdb/dpdb-go/internal/dimacs"
)

// DecomposerFailedError is returned on a nonzero exit or malformed TD output.
type DecomposerFailedError struct {
	Path     string
	ExitCode int
	Reason   string
}

func (e *DecomposerFailedError) Error() string {
	return fmt.Sprintf("decomposer: %s failed (exit %d): %s", e.Path, e.ExitCode, e.Reason)
}

// Config names the external decomposer binary and its invocation shape.
type Config struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

// Decompose spawns the configured decomposer on g with the given seed,
// parses its TD output, and remaps every bag's vertex ids through unmap
// (the inverse of whatever dense renumbering g's GR wire form used), so the
// returned TD speaks in the caller's original variable numbering.
func Decompose(ctx context.Context, ctl *cancel.Controller, cfg Config, seed int64, g *dimacs.Graph, unmap func(int) int) (*dimacs.TD, error) {
	callCtx := ctx
	var cancelTimeout context.CancelFunc
	if cfg.Timeout > 0 {
		callCtx, cancelTimeout = context.WithTimeout(ctx, cfg.Timeout)
		defer cancelTimeout()
	}

	args := append(append([]string{}, cfg.Args...), "--seed", strconv.FormatInt(seed, 10))
	cmd := exec.CommandContext(callCtx, cfg.Path, args...)

	var stdin bytes.Buffer
	if err := dimacs.WriteGR(&stdin, g); err != nil {
		return nil, fmt.Errorf("decomposer: writing graph: %w", err)
	}
	cmd.Stdin = &stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &DecomposerFailedError{Path: cfg.Path, Reason: err.Error()}
	}
	var trackID int
	if ctl != nil {
		trackID = ctl.Track(cmd.Process)
	}
	waitErr := cmd.Wait()
	if ctl != nil {
		ctl.Untrack(trackID)
	}

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, &DecomposerFailedError{Path: cfg.Path, Reason: waitErr.Error()}
		}
	}
	if exitCode != 0 {
		return nil, &DecomposerFailedError{Path: cfg.Path, ExitCode: exitCode, Reason: stderr.String()}
	}

	td, err := dimacs.ReadTD(&stdout)
	if err != nil {
		return nil, &DecomposerFailedError{Path: cfg.Path, Reason: "malformed TD output: " + err.Error()}
	}

	if unmap != nil {
		for i := range td.Bags {
			remapped := make([]int, len(td.Bags[i].Vertices))
			for j, v := range td.Bags[i].Vertices {
				remapped[j] = unmap(v)
			}
			td.Bags[i].Vertices = remapped
		}
	}

	return td, nil
}
