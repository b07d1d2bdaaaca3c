// Command miner is the mujina ASIC mining daemon: it brings up configured
// boards, runs their hash threads against a Stratum v1 pool, and exposes a
// REST/gRPC status and control boundary.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"periph.io/x/host/v3"

	"github.com/jbride/mujina/internal/api"
	"github.com/jbride/mujina/internal/backplane"
	"github.com/jbride/mujina/internal/board"
	"github.com/jbride/mujina/internal/config"
	"github.com/jbride/mujina/internal/coordinator"
	"github.com/jbride/mujina/internal/hashthread"
	"github.com/jbride/mujina/internal/job"
	"github.com/jbride/mujina/internal/logging"
	"github.com/jbride/mujina/internal/status"
	"github.com/jbride/mujina/internal/stratum"
)

var log = logging.New("miner")

func main() {
	cfg := config.MustLoad()

	if _, err := host.Init(); err != nil {
		log.Fatalf("host init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := board.NewRegistry()
	registry.Register(board.Descriptor{Name: "bitaxe", VendorID: board.BitaxeVendorID, ProductID: board.BitaxeProductID, New: board.NewBitaxeBoard})
	registry.Register(board.Descriptor{Name: "cpu", New: board.NewCPUBoard})

	bp := backplane.New(registry, cfg.BoardInitTimeout)
	go bp.Run(ctx)

	events := make(chan job.SourceEvent, 64)
	coord := coordinator.New(events)
	go coord.Run(ctx)

	var handle job.SourceHandle
	if cfg.PoolURL != "" {
		addr := strings.TrimPrefix(cfg.PoolURL, "stratum+tcp://")
		client := stratum.NewClient(stratum.Config{Addr: addr, User: cfg.PoolUser, Password: cfg.PoolPassword}, events)
		handle = client.Handle()
		go func() {
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("pool connection to %s ended: %v", addr, err)
			}
		}()
	} else {
		log.Printf("no pool configured (MUJINA_POOL_URL unset); hash threads will idle")
	}

	// A single configured serial device is attached at startup. Dynamic
	// USB hotplug-to-serial-path resolution (mapping a bus:address
	// enumerated by internal/transport/usb to the /dev node a board's
	// management channel actually opens) is udev/platform-specific and
	// deliberately out of scope here; the backplane's attach/detach API
	// itself is fully general and exercised independently by its tests.
	if cfg.SerialDevice != "" {
		bp.NotifyAttach(cfg.SerialDevice, board.BitaxeVendorID, board.BitaxeProductID)
		go runBoardThread(ctx, bp, coord, handle, cfg.SerialDevice)
	}

	sink := status.NewSink(bp)
	restServer := api.NewServer(cfg.APIListenAddr, sink)
	grpcServer := api.NewGRPCServer(sink)

	grpcAddr := grpcListenAddr(cfg.APIListenAddr)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalf("grpc listen on %s: %v", grpcAddr, err)
	}

	go func() {
		if err := restServer.Run(ctx); err != nil {
			log.Printf("REST server stopped: %v", err)
		}
	}()
	go func() {
		if err := grpcServer.Run(ctx, lis); err != nil {
			log.Printf("gRPC server stopped: %v", err)
		}
	}()

	log.Printf("mujina miner started: REST on %s, gRPC on %s", cfg.APIListenAddr, grpcAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down")
	cancel()
	time.Sleep(200 * time.Millisecond) // let goroutines observe cancellation
}

// runBoardThread waits for devicePath to come up healthy, then spawns and
// runs its hash thread for the lifetime of the daemon. A board that never
// comes up (stays Failed) is left alone; reinitialize is a separate,
// operator-driven path (see internal/backplane.Reinitialize).
func runBoardThread(ctx context.Context, bp *backplane.Backplane, coord *coordinator.Coordinator, handle job.SourceHandle, devicePath string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
		snap := bp.Snapshot()
		s, ok := snap[devicePath]
		if !ok || s.State != backplane.StateHealthy {
			continue
		}
		break
	}

	commands := make(chan hashthread.Command, 8)
	removal := make(chan hashthread.ThreadRemovalSignal, 1)
	chipResponses := make(chan hashthread.ChipResponse, 8)
	events := make(chan hashthread.Event, 1)

	thread := hashthread.New(handle, commands, removal, chipResponses, events)
	coord.Register(devicePath, commands)
	defer coord.Unregister(devicePath)
	defer func() { removal <- hashthread.SignalBoardDisconnected }()
	defer close(events)

	go func() {
		for ev := range events {
			log.Printf("board %s: thread went offline (%v)", devicePath, ev.Reason)
		}
	}()

	thread.Run(ctx)
}

// grpcListenAddr derives the gRPC control boundary's address from the REST
// address by taking the next port number, so both boundaries are
// configured from the single MUJINA_API_LISTEN_ADDR knob.
func grpcListenAddr(restAddr string) string {
	host, port, err := net.SplitHostPort(restAddr)
	if err != nil {
		return "127.0.0.1:4029"
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return net.JoinHostPort(host, "4029")
	}
	return net.JoinHostPort(host, strconv.Itoa(p+1))
}
