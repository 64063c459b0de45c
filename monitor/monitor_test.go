package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/ambridge-relay/relayer/core"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func TestBroadcastReachesAllListeners(t *testing.T) {
	t.Parallel()

	m := New(1, nil, time.Millisecond, hclog.NewNullLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chA := m.Subscribe(ctx)
	chB := m.Subscribe(ctx)

	m.broadcast(core.MonitorStatus{ChainID: 1, BlockNumber: 42})

	select {
	case status := <-chA:
		assert.Equal(t, uint64(42), status.BlockNumber)
	case <-time.After(time.Second):
		t.Fatal("listener A did not receive status")
	}

	select {
	case status := <-chB:
		assert.Equal(t, uint64(42), status.BlockNumber)
	case <-time.After(time.Second):
		t.Fatal("listener B did not receive status")
	}
}
