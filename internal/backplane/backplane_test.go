package backplane

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbride/mujina/internal/board"
)

func TestAttachBringsUpHealthyBoard(t *testing.T) {
	registry := board.NewRegistry()
	registry.Register(board.Descriptor{Name: "cpu", New: board.NewCPUBoard})

	bp := New(registry, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bp.Run(ctx)

	bp.NotifyAttach("/dev/fake0", 0, 0)

	require.Eventually(t, func() bool {
		snap := bp.Snapshot()
		s, ok := snap["/dev/fake0"]
		return ok && s.State == StateHealthy
	}, time.Second, 10*time.Millisecond)
}

func TestAttachUnknownDeviceIsIgnored(t *testing.T) {
	registry := board.NewRegistry()
	bp := New(registry, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bp.Run(ctx)

	bp.NotifyAttach("/dev/unknown", 0xffff, 0xffff)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, bp.Snapshot())
}

func TestFactoryErrorMarksBoardFailed(t *testing.T) {
	registry := board.NewRegistry()
	registry.Register(board.Descriptor{
		Name: "broken",
		New: func(ctx context.Context, path string) (board.Board, error) {
			return nil, errors.New("no ack from device")
		},
	})

	bp := New(registry, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bp.Run(ctx)

	bp.NotifyAttach("/dev/fake1", 0, 0)

	require.Eventually(t, func() bool {
		snap := bp.Snapshot()
		s, ok := snap["/dev/fake1"]
		return ok && s.State == StateFailed
	}, time.Second, 10*time.Millisecond)

	snap := bp.Snapshot()
	assert.Contains(t, snap["/dev/fake1"].Reason, "factory returned error")
}

func TestFactoryTimeoutMarksBoardFailed(t *testing.T) {
	registry := board.NewRegistry()
	registry.Register(board.Descriptor{
		Name: "slow",
		New: func(ctx context.Context, path string) (board.Board, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	bp := New(registry, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bp.Run(ctx)

	bp.NotifyAttach("/dev/fake2", 0, 0)

	require.Eventually(t, func() bool {
		snap := bp.Snapshot()
		s, ok := snap["/dev/fake2"]
		return ok && s.State == StateFailed && s.Reason != ""
	}, time.Second, 10*time.Millisecond)
}

func TestFactoryPanicRecovered(t *testing.T) {
	registry := board.NewRegistry()
	registry.Register(board.Descriptor{
		Name: "panicky",
		New: func(ctx context.Context, path string) (board.Board, error) {
			panic("unexpected hardware state")
		},
	})

	bp := New(registry, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bp.Run(ctx)

	bp.NotifyAttach("/dev/fake3", 0, 0)

	require.Eventually(t, func() bool {
		snap := bp.Snapshot()
		s, ok := snap["/dev/fake3"]
		return ok && s.State == StateFailed
	}, time.Second, 10*time.Millisecond)

	snap := bp.Snapshot()
	assert.Contains(t, snap["/dev/fake3"].Reason, "factory panicked")
}

func TestDetachRemovesBoard(t *testing.T) {
	registry := board.NewRegistry()
	registry.Register(board.Descriptor{Name: "cpu", New: board.NewCPUBoard})

	bp := New(registry, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bp.Run(ctx)

	bp.NotifyAttach("/dev/fake4", 0, 0)
	require.Eventually(t, func() bool {
		_, ok := bp.Snapshot()["/dev/fake4"]
		return ok
	}, time.Second, 10*time.Millisecond)

	bp.NotifyDetach("/dev/fake4")
	require.Eventually(t, func() bool {
		_, ok := bp.Snapshot()["/dev/fake4"]
		return !ok
	}, time.Second, 10*time.Millisecond)
}
