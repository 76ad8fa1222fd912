package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warbler-social/warbler/internal/config"
	"github.com/warbler-social/warbler/pkg/logger"
	"github.com/warbler-social/warbler/pkg/queue"
)

// Start blocks in the consume loop for the life of the process; Stop must
// unblock it so the shutdown path in cmd/worker can finish.
func TestStopUnblocksStart(t *testing.T) {
	consumer := queue.NewKafkaConsumer([]string{"127.0.0.1:1"}, "activity-events", "test-group")
	worker := NewActivityWorker(nil, consumer, &config.ActivityConfig{}, logger.NewNop())

	done := make(chan error, 1)
	go func() {
		done <- worker.Start(context.Background())
	}()

	// Let Start enter the consume loop before tearing it down.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, worker.Stop())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
