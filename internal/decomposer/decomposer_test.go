package decomposer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dpdb/dpdb-go/internal/cancel"
	"github.com/dpdb/dpdb-go/internal/dimacs"
)

func TestDecomposeFailsOnMissingBinary(t *testing.T) {
	g := &dimacs.Graph{NumVertices: 2, Edges: [][2]int{{1, 2}}}
	cfg := Config{Path: "/nonexistent/decomposer-binary", Timeout: time.Second}
	_, err := Decompose(context.Background(), cancel.New(), cfg, 1, g, nil)
	assert.Error(t, err)
	var de *DecomposerFailedError
	assert.ErrorAs(t, err, &de)
}
