// Package backplane implements the board lifecycle event loop: USB
// hotplug discovery, board bring-up with a bounded init timeout, and
// reinitialize-on-fault handling.
package backplane

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jbride/mujina/internal/board"
	"github.com/jbride/mujina/internal/logging"
)

var log = logging.New("backplane")

// BoardState is the lifecycle state of one tracked board.
type BoardState int

const (
	StateInitializing BoardState = iota
	StateHealthy
	StateFailed
)

// BoardStatus is the backplane's view of one board slot: either a live
// Board or a failure reason, matching the four-way outcome the original
// hotplug handler produces for every factory-init attempt.
type BoardStatus struct {
	DevicePath string
	State      BoardState
	Board      board.Board // valid when State == StateHealthy
	Reason     string      // valid when State == StateFailed
}

// Backplane owns the board map and runs the single event loop that
// serializes every board lifecycle transition: connect, disconnect,
// reinitialize.
type Backplane struct {
	registry    *board.Registry
	initTimeout time.Duration

	mu     sync.Mutex
	boards map[string]*BoardStatus // keyed by device path

	commands chan command
	events   chan hotplugEvent
}

// New builds a Backplane. initTimeout bounds how long a board factory may
// run before the backplane gives up and abandons it (the factory
// goroutine is left running; its result, if it ever arrives, is
// discarded — the factory owns a serial port file descriptor the
// backplane cannot safely reclaim from outside).
func New(registry *board.Registry, initTimeout time.Duration) *Backplane {
	return &Backplane{
		registry:    registry,
		initTimeout: initTimeout,
		boards:      make(map[string]*BoardStatus),
		commands:    make(chan command),
		events:      make(chan hotplugEvent, 16),
	}
}

type hotplugEventKind int

const (
	eventAttach hotplugEventKind = iota
	eventDetach
)

type hotplugEvent struct {
	kind       hotplugEventKind
	devicePath string
	vendorID   uint16
	productID  uint16
}

type commandKind int

const (
	commandReinitialize commandKind = iota
	commandSnapshot
)

type command struct {
	kind       commandKind
	devicePath string
	reply      chan any
}

// NotifyAttach enqueues a USB attach event for the event loop to process.
func (b *Backplane) NotifyAttach(devicePath string, vendorID, productID uint16) {
	b.events <- hotplugEvent{kind: eventAttach, devicePath: devicePath, vendorID: vendorID, productID: productID}
}

// NotifyDetach enqueues a USB detach event.
func (b *Backplane) NotifyDetach(devicePath string) {
	b.events <- hotplugEvent{kind: eventDetach, devicePath: devicePath}
}

// Reinitialize asks the event loop to shut down and re-probe the board at
// devicePath, in the standard sequence: shutdown the running board,
// release its resources, re-probe the device, and bring it back up.
func (b *Backplane) Reinitialize(ctx context.Context, devicePath string) error {
	reply := make(chan any, 1)
	select {
	case b.commands <- command{kind: commandReinitialize, devicePath: devicePath, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case res := <-reply:
		if err, ok := res.(error); ok && err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current board map for the status API.
func (b *Backplane) Snapshot() map[string]BoardStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]BoardStatus, len(b.boards))
	for k, v := range b.boards {
		out[k] = *v
	}
	return out
}

// Run is the backplane's single event loop. It must be run in its own
// goroutine; every board lifecycle transition funnels through here so
// concurrent connect/disconnect/reinit requests never race each other.
func (b *Backplane) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.shutdownAll(context.Background())
			return

		case ev := <-b.events:
			switch ev.kind {
			case eventAttach:
				b.handleAttach(ctx, ev)
			case eventDetach:
				b.handleDetach(ctx, ev)
			}

		case cmd := <-b.commands:
			switch cmd.kind {
			case commandReinitialize:
				err := b.reinitializeBoard(ctx, cmd.devicePath)
				cmd.reply <- err
			case commandSnapshot:
				cmd.reply <- b.Snapshot()
			}
		}
	}
}

func (b *Backplane) handleAttach(ctx context.Context, ev hotplugEvent) {
	descriptor, ok := b.registry.Find(ev.vendorID, ev.productID)
	if !ok {
		return
	}

	b.mu.Lock()
	b.boards[ev.devicePath] = &BoardStatus{DevicePath: ev.devicePath, State: StateInitializing}
	b.mu.Unlock()

	status := b.spawnFactory(ctx, descriptor, ev.devicePath)

	b.mu.Lock()
	b.boards[ev.devicePath] = status
	b.mu.Unlock()

	if status.State == StateFailed {
		log.Printf("board %s: init failed: %s", ev.devicePath, status.Reason)
	} else {
		log.Printf("board %s: healthy", ev.devicePath)
	}
}

// spawnFactory runs descriptor.New under the backplane's init timeout,
// recovering a panic into a Failed status rather than crashing the
// daemon, and abandoning (not waiting for) a factory call that blows past
// its deadline.
func (b *Backplane) spawnFactory(ctx context.Context, descriptor board.Descriptor, devicePath string) *BoardStatus {
	initCtx, cancel := context.WithTimeout(ctx, b.initTimeout)
	defer cancel()

	type result struct {
		board board.Board
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- result{err: fmt.Errorf("factory panicked: %v", r)}
			}
		}()
		brd, err := descriptor.New(initCtx, devicePath)
		resultCh <- result{board: brd, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return &BoardStatus{DevicePath: devicePath, State: StateFailed, Reason: fmt.Sprintf("factory returned error: %s", res.err)}
		}
		return &BoardStatus{DevicePath: devicePath, State: StateHealthy, Board: res.board}
	case <-initCtx.Done():
		return &BoardStatus{DevicePath: devicePath, State: StateFailed, Reason: fmt.Sprintf("board init timed out after %s", b.initTimeout)}
	}
}

func (b *Backplane) handleDetach(ctx context.Context, ev hotplugEvent) {
	// Looks up the disconnecting device path as an exact key in the board
	// map. A board keyed precisely by device path (as here) does not hit
	// the ambiguity the original implementation flags as an open
	// question for buses that can't report a stable per-device path; USB
	// bus:address is stable for the lifetime of one connection, so this
	// is exact here, not first-match-of-many.
	b.mu.Lock()
	status, ok := b.boards[ev.devicePath]
	if ok {
		delete(b.boards, ev.devicePath)
	}
	b.mu.Unlock()

	if ok && status.Board != nil {
		_ = status.Board.Shutdown(ctx)
	}
}

// reinitializeBoard runs the shutdown -> drop -> reprobe -> (optional)
// voltage readback sequence. The order matters: the serial port must be
// released before re-probing the same device path, or the reprobe would
// find the fd still held and fail to open it.
func (b *Backplane) reinitializeBoard(ctx context.Context, devicePath string) error {
	b.mu.Lock()
	status, ok := b.boards[devicePath]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("backplane: no board tracked at %s", devicePath)
	}

	if status.Board != nil {
		_ = status.Board.Shutdown(ctx)
	}

	b.mu.Lock()
	delete(b.boards, devicePath)
	b.mu.Unlock()

	descriptor, ok := b.findDescriptorForPath(status)
	if !ok {
		return fmt.Errorf("backplane: no descriptor registered for %s", devicePath)
	}

	newStatus := b.spawnFactory(ctx, descriptor, devicePath)

	b.mu.Lock()
	b.boards[devicePath] = newStatus
	b.mu.Unlock()

	if newStatus.State == StateHealthy && newStatus.Board != nil {
		if vreg := newStatus.Board.VoltageRegulator(); vreg != nil {
			readCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
			if _, err := vreg.GetVout(readCtx); err != nil {
				return fmt.Errorf("backplane: post-reinit voltage readback failed: %w", err)
			}
		}
	}
	if newStatus.State == StateFailed {
		return fmt.Errorf("backplane: reinit failed: %s", newStatus.Reason)
	}
	return nil
}

// findDescriptorForPath is a placeholder hook: a real deployment would
// remember the (vendorID, productID) a board was originally matched with.
// Kept as a narrow seam so board identity tracking can be extended without
// reshaping the reinit sequence above it.
func (b *Backplane) findDescriptorForPath(status *BoardStatus) (board.Descriptor, bool) {
	if status.Board == nil {
		return board.Descriptor{}, false
	}
	info := status.Board.Info()
	return b.registry.Find(info.VendorID, info.ProductID)
}

func (b *Backplane) shutdownAll(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for path, status := range b.boards {
		if status.Board != nil {
			_ = status.Board.Shutdown(ctx)
		}
		delete(b.boards, path)
	}
}
