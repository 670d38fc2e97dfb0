package cancel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestControllerStartsNotInterrupted(t *testing.T) {
	c := New()
	assert.False(t, c.Interrupted())
}

func TestCancelSetsInterruptedAndIsIdempotent(t *testing.T) {
	c := New()
	c.Cancel()
	c.Cancel()
	assert.True(t, c.Interrupted())
}

func TestDoneChannelClosesOnCancel(t *testing.T) {
	c := New()
	go c.Cancel()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done channel never closed after Cancel")
	}
}

func TestTrackAndUntrackDoNotPanicWithoutRealProcess(t *testing.T) {
	c := New()
	id := c.Track(nil)
	assert.NotZero(t, id)
	c.Untrack(id)
}
