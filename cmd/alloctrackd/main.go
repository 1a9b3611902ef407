// Command alloctrackd runs the allocation sampling endpoint over a small
// demonstration workload. Sample it with e.g.:
//
//	curl http://127.0.0.1:8080/
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	alloctrack "github.com/joeycumines/go-alloctrack"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

func main() {
	addr := flag.String(`addr`, alloctrack.DefaultAddress, `listen address for the sampling endpoint`)
	flag.Parse()

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(logiface.LevelInformational),
	).Logger()

	// A handful of tracked allocations, so a fresh process has something
	// to sample. A real integration routes its own allocations through
	// alloctrack.Malloc and friends.
	region := alloctrack.NewRegion()
	for _, size := range []int{64, 256, 1024, 4096} {
		alloctrack.Malloc(size)
	}
	stats := region.Change()
	logger.Info().
		Uint64(`allocations`, stats.Allocations).
		Uint64(`bytes`, stats.BytesAllocated).
		Log(`demo workload allocated`)

	srv, err := alloctrack.NewServer(
		alloctrack.WithAddress(*addr),
		alloctrack.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal().
			Err(err).
			Log(`failed to bind sampling endpoint`)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().
			Err(err).
			Log(`sampling endpoint failed`)
	}
}
