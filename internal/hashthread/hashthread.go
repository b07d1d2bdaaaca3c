// Package hashthread implements the per-chip-chain actor that owns a
// board's hashing loop: it receives coordinator commands, job-source
// events, and chip responses, and reports shares and status back out.
package hashthread

import (
	"context"
	"encoding/binary"
	"sync/atomic"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/jbride/mujina/internal/asic/bm13xx"
	"github.com/jbride/mujina/internal/job"
	"github.com/jbride/mujina/internal/logging"
)

var log = logging.New("hashthread")

// CommandKind is a directive from the backplane/coordinator to a thread.
type CommandKind int

const (
	CommandUpdateWork CommandKind = iota
	CommandReplaceWork
	CommandGoIdle
	CommandShutdown
)

// Command carries a coordinator directive and, for UpdateWork/ReplaceWork,
// the job template to hash. Reply, when non-nil, receives the task the
// thread was working on immediately before this command took effect (nil
// if it was idle) — UpdateWork, ReplaceWork, and GoIdle all honor it, so a
// caller that cares can account for work handed off atomically. Shutdown
// never replies; the thread is exiting.
type Command struct {
	Kind     CommandKind
	Template job.JobTemplate
	Reply    chan<- *job.JobTemplate
}

// ThreadRemovalSignal is a watch-channel value telling a thread to stop.
// Running means "no removal yet"; any other value is terminal.
type ThreadRemovalSignal int

const (
	SignalRunning ThreadRemovalSignal = iota
	SignalBoardDisconnected
	SignalFault
	SignalShutdown
)

// EventKind distinguishes the out-of-band events a thread reports about
// its own lifecycle, as opposed to the shares/hash-rate it reports through
// its job source.
type EventKind int

const (
	// EventGoingOffline is emitted exactly once, right before a thread
	// exits its actor loop, whether from a removal signal or a Shutdown
	// command.
	EventGoingOffline EventKind = iota
)

// Event is a thread lifecycle notification.
type Event struct {
	Kind   EventKind
	Reason ThreadRemovalSignal // the signal that caused it; SignalShutdown for a Shutdown command
}

// Status is the read-only view of a thread's liveness, updated only by the
// thread itself — no other goroutine ever writes to it.
type Status struct {
	active atomic.Bool
}

func (s *Status) IsActive() bool { return s.active.Load() }

// ChipResponse is a decoded response from the ASIC chain, handed to the
// thread by its board's read loop.
type ChipResponse struct {
	Raw      []byte
	CRCValid bool
}

// Thread is a single hash-thread actor bound to one chip chain.
type Thread struct {
	source        job.SourceHandle
	commands      <-chan Command
	removalSignal <-chan ThreadRemovalSignal // watch-channel: a non-Running value means the thread must stop regardless of pending commands
	chipResponses <-chan ChipResponse
	events        chan<- Event // lifecycle notifications; nil-safe, non-blocking

	status Status
}

// New builds a Thread. Run must be called to start the actor loop. events
// may be nil if the caller doesn't need lifecycle notifications.
func New(source job.SourceHandle, commands <-chan Command, removalSignal <-chan ThreadRemovalSignal, chipResponses <-chan ChipResponse, events chan<- Event) *Thread {
	return &Thread{source: source, commands: commands, removalSignal: removalSignal, chipResponses: chipResponses, events: events}
}

// StatusView returns the thread's read-only status, safe for concurrent
// reads from any goroutine.
func (t *Thread) StatusView() *Status { return &t.status }

// taskSlot pairs a task with the work ID chips tag their nonce responses
// with, so a response can be matched back to the task it was actually
// computed against.
type taskSlot struct {
	template job.JobTemplate
	workID   byte
}

// Run is the actor's event loop. Priority order on each iteration is
// fixed: a removal signal always wins over a pending command, which in
// turn always wins over a chip response — a thread that is being torn
// down must not keep accepting new work or processing stale chip replies.
func (t *Thread) Run(ctx context.Context) {
	t.status.active.Store(true)
	defer t.status.active.Store(false)

	var current *taskSlot
	var stale *taskSlot // previous task whose in-flight responses are still acceptable; nil after ReplaceWork
	var nextWorkID byte

	currentTemplate := func() *job.JobTemplate {
		if current == nil {
			return nil
		}
		return &current.template
	}

	for {
		select {
		case sig := <-t.removalSignal:
			if sig == SignalRunning {
				continue
			}
			t.goOffline(sig)
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case sig := <-t.removalSignal:
			if sig == SignalRunning {
				continue
			}
			t.goOffline(sig)
			return

		case cmd := <-t.commands:
			switch cmd.Kind {
			case CommandUpdateWork:
				previous := currentTemplate()
				nextWorkID++
				stale = current // old task's in-flight shares are still acceptable
				current = &taskSlot{template: cmd.Template, workID: nextWorkID}
				reply(cmd.Reply, previous)
			case CommandReplaceWork:
				previous := currentTemplate()
				nextWorkID++
				stale = nil // prior in-chip state is invalidated; its responses are no longer acceptable
				current = &taskSlot{template: cmd.Template, workID: nextWorkID}
				reply(cmd.Reply, previous)
			case CommandGoIdle:
				previous := currentTemplate()
				current = nil
				stale = nil
				reply(cmd.Reply, previous)
			case CommandShutdown:
				t.goOffline(SignalShutdown)
				return
			}

		case resp := <-t.chipResponses:
			if !resp.CRCValid {
				continue
			}
			t.handleChipResponse(ctx, resp, current, stale)

		case <-ctx.Done():
			return
		}
	}
}

// reply sends prev on ch if the caller supplied a reply channel, without
// blocking if nobody is listening anymore.
func reply(ch chan<- *job.JobTemplate, prev *job.JobTemplate) {
	if ch == nil {
		return
	}
	select {
	case ch <- prev:
	default:
	}
}

func (t *Thread) goOffline(reason ThreadRemovalSignal) {
	log.Printf("thread for source %s: going offline (%v)", t.source.Name(), reason)
	if t.events == nil {
		return
	}
	select {
	case t.events <- Event{Kind: EventGoingOffline, Reason: reason}:
	default:
		log.Printf("thread for source %s: events channel full, dropping GoingOffline", t.source.Name())
	}
}

// handleChipResponse matches a decoded nonce response against whichever of
// current/stale carries its work ID, assembles the header the chip
// actually hashed, and emits a share iff the hash clears that task's
// target. A work ID matching neither slot means the response belongs to a
// job this thread has since replaced or forgotten; it is dropped.
func (t *Thread) handleChipResponse(ctx context.Context, resp ChipResponse, current, stale *taskSlot) {
	nr, ok := bm13xx.DecodeNonce(bm13xx.Response{Raw: resp.Raw, CRCValid: resp.CRCValid})
	if !ok {
		log.Printf("thread for source %s: dropping undecodable chip response", t.source.Name())
		return
	}

	var slot *taskSlot
	switch {
	case current != nil && nr.WorkID == current.workID:
		slot = current
	case stale != nil && nr.WorkID == stale.workID:
		slot = stale
	default:
		return
	}

	tmpl := slot.template
	version := tmpl.RolledVersion(nr.VersionBits)
	merkleRoot, err := merkleRootFor(tmpl)
	if err != nil {
		log.Printf("thread for source %s: %v", t.source.Name(), err)
		return
	}

	header := assembleHeader(tmpl, merkleRoot, version, nr.Nonce)
	hash := chainhash.DoubleHashH(header)
	if blockchain.HashToBig(&hash).Cmp(tmpl.ShareTarget) > 0 {
		return
	}

	share := job.Share{JobID: tmpl.ID, Nonce: nr.Nonce, Time: tmpl.Time, Version: version}
	if err := t.source.SubmitShare(ctx, share); err != nil {
		log.Printf("thread for source %s: submit share failed: %v", t.source.Name(), err)
	}
}

// merkleRootFor resolves the header's merkle root. Fixed templates carry
// it directly. Computed templates are rolled with an empty extranonce2:
// the coordinator hands every thread the same fixed task rather than
// assigning each board its own extranonce2 range, so there is nothing
// thread-local to roll in here.
func merkleRootFor(tmpl job.JobTemplate) (chainhash.Hash, error) {
	if tmpl.MerkleKind == job.MerkleRootFixed {
		return tmpl.FixedMerkle, nil
	}
	return tmpl.ComputeMerkleRoot(nil)
}

// assembleHeader serializes the 80-byte Bitcoin block header a chip's
// hash covers: version, previous block hash, merkle root, time, bits, and
// nonce, each field in the same byte order wire.BlockHeader.Serialize uses.
func assembleHeader(tmpl job.JobTemplate, merkleRoot chainhash.Hash, version, nonce uint32) []byte {
	header := make([]byte, 80)
	binary.LittleEndian.PutUint32(header[0:4], version)
	copy(header[4:36], tmpl.PrevBlockHash[:])
	copy(header[36:68], merkleRoot[:])
	binary.LittleEndian.PutUint32(header[68:72], tmpl.Time)
	binary.LittleEndian.PutUint32(header[72:76], tmpl.Bits)
	binary.LittleEndian.PutUint32(header[76:80], nonce)
	return header
}
