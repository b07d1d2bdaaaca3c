package job

import (
	"context"

	"github.com/jbride/mujina/internal/mjerr"
)

// SourceEvent is pushed from a job source to every board consuming its
// jobs. UpdateJob keeps shares against the previous job valid (e.g. a pool
// difficulty or mempool refresh); ReplaceJob hard-invalidates them (new
// prevhash, a clean-jobs flag); ClearJobs tells hash threads to idle with
// no replacement job yet available.
type SourceEvent struct {
	Kind     SourceEventKind
	Template JobTemplate // valid for UpdateJob/ReplaceJob
}

type SourceEventKind int

const (
	EventUpdateJob SourceEventKind = iota
	EventReplaceJob
	EventClearJobs
)

// SourceCommand flows from a board back to the job source that owns it.
type SourceCommand struct {
	Kind         SourceCommandKind
	Share        Share    // valid for SubmitShare
	HashRate     HashRate // valid for UpdateHashRate
}

type SourceCommandKind int

const (
	CommandSubmitShare SourceCommandKind = iota
	CommandUpdateHashRate
)

// sourceHandleInner is the heap allocation whose address is this handle's
// identity. Two SourceHandles are equal if and only if they point at the
// same sourceHandleInner — never by comparing Name, since New("pool-a")
// called twice must produce two distinct, unequal handles even though they
// share a name.
type sourceHandleInner struct {
	name    string
	command chan<- SourceCommand
	done    <-chan struct{} // closed by the source owner when it disconnects
}

// SourceHandle identifies one job source (a pool connection, the
// synthetic CPU miner, a Stratum client) to the boards consuming its jobs.
// Its identity is the pointer to its inner allocation, not its name:
// New(name) twice with the same name yields two unequal handles, but
// cloning a handle yields one that IS equal to the original. A pool
// reconnect that calls New again therefore yields a different source
// instance even if it reuses the same display name.
type SourceHandle struct {
	inner *sourceHandleInner
}

// New creates a brand-new SourceHandle with its own identity. done is
// closed by the source owner when it disconnects, after which further
// SubmitShare/UpdateHashRate calls fail instead of blocking forever.
func New(name string, command chan<- SourceCommand, done <-chan struct{}) SourceHandle {
	return SourceHandle{inner: &sourceHandleInner{name: name, command: command, done: done}}
}

// Clone returns a SourceHandle equal to h (same identity, same underlying
// allocation) — unlike New, this does not mint a new identity.
func (h SourceHandle) Clone() SourceHandle {
	return h
}

// Name returns the source's display name.
func (h SourceHandle) Name() string {
	return h.inner.name
}

// Equal reports whether h and other share the same identity.
func (h SourceHandle) Equal(other SourceHandle) bool {
	return h.inner == other.inner
}

// SubmitShare sends share to this source's owner, returning an error if
// the source has already disconnected (its done channel is closed).
func (h SourceHandle) SubmitShare(ctx context.Context, share Share) error {
	return h.send(ctx, SourceCommand{Kind: CommandSubmitShare, Share: share})
}

// UpdateHashRate reports a board's current hash-rate estimate to this
// source's owner.
func (h SourceHandle) UpdateHashRate(ctx context.Context, rate HashRate) error {
	return h.send(ctx, SourceCommand{Kind: CommandUpdateHashRate, HashRate: rate})
}

func (h SourceHandle) send(ctx context.Context, cmd SourceCommand) error {
	select {
	case h.inner.command <- cmd:
		return nil
	case <-h.inner.done:
		return mjerr.PoolErr("source %s: disconnected", h.inner.name)
	case <-ctx.Done():
		return mjerr.WrapPool(ctx.Err(), "source %s: command send cancelled", h.inner.name)
	}
}
