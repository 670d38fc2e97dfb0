// Package abschooser wraps the external answer-set-program subset chooser
// used to pick a bounded-size nesting subset out of the nested primal
// graph's vertex set, following the same subprocess-with-timeout contract
// as internal/decomposer but for a fixed-shape ASP solver invocation.
package abschooser

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dpdb/dpdb-go/internal/cancel"
)

// Config names the ASP grounder/solver binary, the encoding file it should
// ground against, the target subset size, and a per-call timeout.
type Config struct {
	Path         string
	EncodingPath string
	Size         int
	Timeout      time.Duration
}

// Choose runs the grounder over candidates (the nested primal graph's vertex
// set) and returns its chosen subset. Per the spec's contract, a timeout may
// return fewer than Size vertices; an empty result signals the caller should
// keep the previous subset.
func Choose(ctx context.Context, ctl *cancel.Controller, cfg Config, candidates []int) ([]int, error) {
	callCtx := ctx
	var cancelTimeout context.CancelFunc
	if cfg.Timeout > 0 {
		callCtx, cancelTimeout = context.WithTimeout(ctx, cfg.Timeout)
		defer cancelTimeout()
	}

	args := []string{cfg.EncodingPath, "--size", strconv.Itoa(cfg.Size)}
	cmd := exec.CommandContext(callCtx, cfg.Path, args...)

	var stdin bytes.Buffer
	for _, v := range candidates {
		fmt.Fprintf(&stdin, "vertex(%d).\n", v)
	}
	cmd.Stdin = &stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("abschooser: starting %s: %w", cfg.Path, err)
	}
	var trackID int
	if ctl != nil {
		trackID = ctl.Track(cmd.Process)
	}
	waitErr := cmd.Wait()
	if ctl != nil {
		ctl.Untrack(trackID)
	}

	if waitErr != nil {
		if callCtx.Err() != nil {
			// Timed out: per contract this is not an error, just a
			// (possibly empty) partial result.
			return parseChosen(stdout.String()), nil
		}
		return nil, fmt.Errorf("abschooser: %s: %w (%s)", cfg.Path, waitErr, stderr.String())
	}

	return parseChosen(stdout.String()), nil
}

// parseChosen extracts vertex ids from "chosen(<id>)." answer-set facts.
func parseChosen(output string) []int {
	var chosen []int
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "chosen(") {
			continue
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(line, "chosen("), ").")
		v, err := strconv.Atoi(inner)
		if err != nil {
			continue
		}
		chosen = append(chosen, v)
	}
	return chosen
}
