package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jbride/mujina/internal/hashthread"
	"github.com/jbride/mujina/internal/job"
)

func TestBroadcastForwardsUpdateToRegisteredThreads(t *testing.T) {
	events := make(chan job.SourceEvent, 4)
	c := New(events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	commands := make(chan hashthread.Command, 4)
	c.Register("/dev/fake0", commands)

	events <- job.SourceEvent{Kind: job.EventUpdateJob, Template: job.JobTemplate{ID: "job1"}}

	select {
	case cmd := <-commands:
		require.Equal(t, hashthread.CommandUpdateWork, cmd.Kind)
		require.Equal(t, "job1", cmd.Template.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast command")
	}
}

func TestRegisterReplaysLastJobToLateJoiner(t *testing.T) {
	events := make(chan job.SourceEvent, 4)
	c := New(events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	events <- job.SourceEvent{Kind: job.EventUpdateJob, Template: job.JobTemplate{ID: "job1"}}
	time.Sleep(10 * time.Millisecond)

	commands := make(chan hashthread.Command, 4)
	c.Register("/dev/fake1", commands)

	select {
	case cmd := <-commands:
		require.Equal(t, "job1", cmd.Template.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for replayed job")
	}
}

func TestUnregisterStopsForwarding(t *testing.T) {
	events := make(chan job.SourceEvent, 4)
	c := New(events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	commands := make(chan hashthread.Command, 4)
	c.Register("/dev/fake2", commands)
	c.Unregister("/dev/fake2")

	events <- job.SourceEvent{Kind: job.EventUpdateJob, Template: job.JobTemplate{ID: "job2"}}

	select {
	case <-commands:
		t.Fatal("unregistered thread should not receive broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}
