package hashthread

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbride/mujina/internal/job"
)

// fakeNonceFrame builds a minimal raw chip response frame this package's
// own bm13xx.DecodeNonce layout accepts: preamble, field, length, then
// nonce(4) + version bits(4) + work id(1), then a trailing (unchecked)
// CRC byte. hashthread trusts ChipResponse.CRCValid rather than
// recomputing it, so the CRC byte's actual value doesn't matter here.
func fakeNonceFrame(nonce, versionBits uint32, workID byte) []byte {
	body := []byte{
		byte(nonce), byte(nonce >> 8), byte(nonce >> 16), byte(nonce >> 24),
		byte(versionBits), byte(versionBits >> 8), byte(versionBits >> 16), byte(versionBits >> 24),
		workID,
	}
	frame := append([]byte{0xAA, 0x55, 0x00, byte(len(body) + 3)}, body...)
	return append(frame, 0x00)
}

// easyTarget accepts any hash: used to deterministically exercise the
// share-found path without needing to precompute a real double-SHA256.
func easyTarget() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	return max.Sub(max, big.NewInt(1))
}

// impossibleTarget accepts no hash but zero: used to deterministically
// exercise the share-rejected path.
func impossibleTarget() *big.Int {
	return big.NewInt(0)
}

func TestThreadBecomesActiveOnRun(t *testing.T) {
	cmds := make(chan Command)
	removal := make(chan ThreadRemovalSignal)
	chipResponses := make(chan ChipResponse)
	sourceCmds := make(chan job.SourceCommand, 4)
	source := job.New("test-source", sourceCmds, make(chan struct{}))

	th := New(source, cmds, removal, chipResponses, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go th.Run(ctx)

	require.Eventually(t, func() bool { return th.StatusView().IsActive() }, time.Second, time.Millisecond)

	removal <- SignalShutdown
	require.Eventually(t, func() bool { return !th.StatusView().IsActive() }, time.Second, time.Millisecond)
}

func TestThreadSubmitsShareWhenHashClearsTarget(t *testing.T) {
	cmds := make(chan Command, 1)
	removal := make(chan ThreadRemovalSignal, 1)
	chipResponses := make(chan ChipResponse, 1)
	sourceCmds := make(chan job.SourceCommand, 4)
	source := job.New("test-source", sourceCmds, make(chan struct{}))

	th := New(source, cmds, removal, chipResponses, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.Run(ctx)

	cmds <- Command{Kind: CommandUpdateWork, Template: job.JobTemplate{
		ID:          "job-1",
		MerkleKind:  job.MerkleRootFixed,
		ShareTarget: easyTarget(),
	}}
	time.Sleep(10 * time.Millisecond)

	chipResponses <- ChipResponse{Raw: fakeNonceFrame(0x5d6472f7, 0, 1), CRCValid: true}

	select {
	case cmd := <-sourceCmds:
		assert.Equal(t, job.CommandSubmitShare, cmd.Kind)
		assert.Equal(t, "job-1", cmd.Share.JobID)
		assert.Equal(t, uint32(0x5d6472f7), cmd.Share.Nonce)
	case <-time.After(time.Second):
		t.Fatal("expected a submitted share")
	}

	removal <- SignalShutdown
}

func TestThreadDropsShareWhenHashMissesTarget(t *testing.T) {
	cmds := make(chan Command, 1)
	removal := make(chan ThreadRemovalSignal, 1)
	chipResponses := make(chan ChipResponse, 1)
	sourceCmds := make(chan job.SourceCommand, 4)
	source := job.New("test-source", sourceCmds, make(chan struct{}))

	th := New(source, cmds, removal, chipResponses, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.Run(ctx)

	cmds <- Command{Kind: CommandUpdateWork, Template: job.JobTemplate{
		ID:          "job-1",
		MerkleKind:  job.MerkleRootFixed,
		ShareTarget: impossibleTarget(),
	}}
	time.Sleep(10 * time.Millisecond)

	chipResponses <- ChipResponse{Raw: fakeNonceFrame(0x5d6472f7, 0, 1), CRCValid: true}

	select {
	case <-sourceCmds:
		t.Fatal("did not expect a share for a hash above target")
	case <-time.After(100 * time.Millisecond):
	}

	removal <- SignalShutdown
}

func TestThreadIgnoresInvalidCRCResponse(t *testing.T) {
	cmds := make(chan Command, 1)
	removal := make(chan ThreadRemovalSignal, 1)
	chipResponses := make(chan ChipResponse, 1)
	sourceCmds := make(chan job.SourceCommand, 4)
	source := job.New("test-source", sourceCmds, make(chan struct{}))

	th := New(source, cmds, removal, chipResponses, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.Run(ctx)

	cmds <- Command{Kind: CommandUpdateWork, Template: job.JobTemplate{ID: "job-1", MerkleKind: job.MerkleRootFixed, ShareTarget: easyTarget()}}
	time.Sleep(10 * time.Millisecond)
	chipResponses <- ChipResponse{Raw: fakeNonceFrame(0x5d6472f7, 0, 1), CRCValid: false}

	select {
	case <-sourceCmds:
		t.Fatal("did not expect a share for an invalid CRC response")
	case <-time.After(100 * time.Millisecond):
	}

	removal <- SignalShutdown
}

func TestThreadIgnoresResponseForAReplacedWorkID(t *testing.T) {
	cmds := make(chan Command, 2)
	removal := make(chan ThreadRemovalSignal, 1)
	chipResponses := make(chan ChipResponse, 1)
	sourceCmds := make(chan job.SourceCommand, 4)
	source := job.New("test-source", sourceCmds, make(chan struct{}))

	th := New(source, cmds, removal, chipResponses, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.Run(ctx)

	cmds <- Command{Kind: CommandUpdateWork, Template: job.JobTemplate{ID: "job-1", MerkleKind: job.MerkleRootFixed, ShareTarget: easyTarget()}}
	time.Sleep(10 * time.Millisecond)
	cmds <- Command{Kind: CommandReplaceWork, Template: job.JobTemplate{ID: "job-2", MerkleKind: job.MerkleRootFixed, ShareTarget: easyTarget()}}
	time.Sleep(10 * time.Millisecond)

	// This response carries the work ID assigned to job-1, which
	// ReplaceWork invalidated; it must not surface as a share for job-2
	// (or at all).
	chipResponses <- ChipResponse{Raw: fakeNonceFrame(0x01020304, 0, 1), CRCValid: true}

	select {
	case <-sourceCmds:
		t.Fatal("did not expect a share for a work ID invalidated by ReplaceWork")
	case <-time.After(100 * time.Millisecond):
	}

	removal <- SignalShutdown
}

func TestThreadAcceptsResponseForAStaleWorkIDAfterUpdateWork(t *testing.T) {
	cmds := make(chan Command, 2)
	removal := make(chan ThreadRemovalSignal, 1)
	chipResponses := make(chan ChipResponse, 1)
	sourceCmds := make(chan job.SourceCommand, 4)
	source := job.New("test-source", sourceCmds, make(chan struct{}))

	th := New(source, cmds, removal, chipResponses, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.Run(ctx)

	cmds <- Command{Kind: CommandUpdateWork, Template: job.JobTemplate{ID: "job-1", MerkleKind: job.MerkleRootFixed, ShareTarget: easyTarget()}}
	time.Sleep(10 * time.Millisecond)
	cmds <- Command{Kind: CommandUpdateWork, Template: job.JobTemplate{ID: "job-2", MerkleKind: job.MerkleRootFixed, ShareTarget: easyTarget()}}
	time.Sleep(10 * time.Millisecond)

	// This response carries the work ID assigned to job-1. UpdateWork (as
	// opposed to ReplaceWork) keeps the previous job's in-flight shares
	// acceptable, so it should still surface against job-1.
	chipResponses <- ChipResponse{Raw: fakeNonceFrame(0x01020304, 0, 1), CRCValid: true}

	select {
	case cmd := <-sourceCmds:
		assert.Equal(t, "job-1", cmd.Share.JobID)
	case <-time.After(time.Second):
		t.Fatal("expected the stale-but-acceptable share to surface")
	}

	removal <- SignalShutdown
}

func TestCommandsAlwaysReplyWithThePreviousTask(t *testing.T) {
	cmds := make(chan Command, 1)
	removal := make(chan ThreadRemovalSignal, 1)
	chipResponses := make(chan ChipResponse, 1)
	sourceCmds := make(chan job.SourceCommand, 4)
	source := job.New("test-source", sourceCmds, make(chan struct{}))

	th := New(source, cmds, removal, chipResponses, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.Run(ctx)

	reply1 := make(chan *job.JobTemplate, 1)
	cmds <- Command{Kind: CommandUpdateWork, Template: job.JobTemplate{ID: "job-1"}, Reply: reply1}
	select {
	case prev := <-reply1:
		assert.Nil(t, prev, "thread was idle before its first task")
	case <-time.After(time.Second):
		t.Fatal("expected a reply for the first UpdateWork")
	}

	reply2 := make(chan *job.JobTemplate, 1)
	cmds <- Command{Kind: CommandReplaceWork, Template: job.JobTemplate{ID: "job-2"}, Reply: reply2}
	select {
	case prev := <-reply2:
		require.NotNil(t, prev)
		assert.Equal(t, "job-1", prev.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a reply carrying the previous task")
	}

	reply3 := make(chan *job.JobTemplate, 1)
	cmds <- Command{Kind: CommandGoIdle, Reply: reply3}
	select {
	case prev := <-reply3:
		require.NotNil(t, prev)
		assert.Equal(t, "job-2", prev.ID)
	case <-time.After(time.Second):
		t.Fatal("expected GoIdle to reply with the task it was hashing")
	}

	removal <- SignalShutdown
}

func TestRemovalSignalEmitsGoingOfflineEvent(t *testing.T) {
	cmds := make(chan Command)
	removal := make(chan ThreadRemovalSignal, 1)
	chipResponses := make(chan ChipResponse)
	events := make(chan Event, 1)
	sourceCmds := make(chan job.SourceCommand, 4)
	source := job.New("test-source", sourceCmds, make(chan struct{}))

	th := New(source, cmds, removal, chipResponses, events)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.Run(ctx)

	require.Eventually(t, func() bool { return th.StatusView().IsActive() }, time.Second, time.Millisecond)

	removal <- SignalBoardDisconnected

	select {
	case ev := <-events:
		assert.Equal(t, EventGoingOffline, ev.Kind)
		assert.Equal(t, SignalBoardDisconnected, ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected a GoingOffline event")
	}

	require.Eventually(t, func() bool { return !th.StatusView().IsActive() }, time.Second, time.Millisecond)
}

func TestShutdownCommandEmitsGoingOfflineEvent(t *testing.T) {
	cmds := make(chan Command, 1)
	removal := make(chan ThreadRemovalSignal, 1)
	chipResponses := make(chan ChipResponse)
	events := make(chan Event, 1)
	sourceCmds := make(chan job.SourceCommand, 4)
	source := job.New("test-source", sourceCmds, make(chan struct{}))

	th := New(source, cmds, removal, chipResponses, events)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.Run(ctx)

	cmds <- Command{Kind: CommandShutdown}

	select {
	case ev := <-events:
		assert.Equal(t, EventGoingOffline, ev.Kind)
		assert.Equal(t, SignalShutdown, ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected a GoingOffline event")
	}
}

func TestRunningRemovalSignalDoesNotStopTheThread(t *testing.T) {
	cmds := make(chan Command)
	removal := make(chan ThreadRemovalSignal, 1)
	chipResponses := make(chan ChipResponse)
	sourceCmds := make(chan job.SourceCommand, 4)
	source := job.New("test-source", sourceCmds, make(chan struct{}))

	th := New(source, cmds, removal, chipResponses, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.Run(ctx)

	require.Eventually(t, func() bool { return th.StatusView().IsActive() }, time.Second, time.Millisecond)

	removal <- SignalRunning
	time.Sleep(20 * time.Millisecond)
	assert.True(t, th.StatusView().IsActive(), "a Running value on the removal channel must not stop the thread")

	removal <- SignalShutdown
	require.Eventually(t, func() bool { return !th.StatusView().IsActive() }, time.Second, time.Millisecond)
}
