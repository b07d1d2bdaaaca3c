// Package coordinator fans a single job source's events out to every
// currently active hash thread, and tracks thread registration as boards
// come and go under the backplane.
package coordinator

import (
	"context"
	"sync"

	"github.com/jbride/mujina/internal/hashthread"
	"github.com/jbride/mujina/internal/job"
	"github.com/jbride/mujina/internal/logging"
)

var log = logging.New("coordinator")

// Coordinator translates SourceEvents from one job source into Commands on
// every registered hash thread's command channel.
type Coordinator struct {
	mu      sync.Mutex
	threads map[string]chan<- hashthread.Command // keyed by device path

	events <-chan job.SourceEvent
	last   *job.JobTemplate // most recent job, replayed to newly registered threads
}

// New builds a Coordinator that reads SourceEvents from events.
func New(events <-chan job.SourceEvent) *Coordinator {
	return &Coordinator{threads: make(map[string]chan<- hashthread.Command), events: events}
}

// Register adds a board's hash-thread command channel to the fan-out set,
// immediately forwarding the last known job if one exists so a thread that
// joins mid-stream doesn't sit idle until the next pool event.
func (c *Coordinator) Register(devicePath string, commands chan<- hashthread.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads[devicePath] = commands
	if c.last != nil {
		select {
		case commands <- hashthread.Command{Kind: hashthread.CommandUpdateWork, Template: *c.last}:
		default:
			log.Printf("thread %s: command channel full, dropping replay of current job", devicePath)
		}
	}
}

// Unregister removes a board's hash thread from the fan-out set.
func (c *Coordinator) Unregister(devicePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.threads, devicePath)
}

// Run consumes SourceEvents until ctx is cancelled, broadcasting each to
// every currently registered thread.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			c.broadcast(ev)
		}
	}
}

// broadcast fans ev out to every registered thread as a Command. Reply is
// left nil: this is a one-to-many broadcast, not a point-to-point request,
// so there is no single caller waiting on a previous-task handoff here.
func (c *Coordinator) broadcast(ev job.SourceEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cmd hashthread.Command
	switch ev.Kind {
	case job.EventUpdateJob:
		cmd = hashthread.Command{Kind: hashthread.CommandUpdateWork, Template: ev.Template}
		tmpl := ev.Template
		c.last = &tmpl
	case job.EventReplaceJob:
		cmd = hashthread.Command{Kind: hashthread.CommandReplaceWork, Template: ev.Template}
		tmpl := ev.Template
		c.last = &tmpl
	case job.EventClearJobs:
		cmd = hashthread.Command{Kind: hashthread.CommandGoIdle}
		c.last = nil
	}

	for path, commands := range c.threads {
		select {
		case commands <- cmd:
		default:
			log.Printf("thread %s: command channel full, dropping %v", path, ev.Kind)
		}
	}
}
