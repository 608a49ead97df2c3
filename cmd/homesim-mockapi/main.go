// Command homesim-mockapi serves an in-memory device and preset API for
// running homesim in remote mode without a real backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/five82/homesim/internal/mockapi"
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "127.0.0.1:8000", "listen address")
	envelope := flag.Bool("envelope", false, "wrap responses in {\"data\": ...}")
	rejectCreds := flag.Bool("reject-credentials", false, "answer 401 to requests carrying credentials")
	dropWrites := flag.Bool("drop-writes", false, "acknowledge preset writes without storing them")
	rawPresetDevices := flag.Bool("raw-preset-devices", false, "store preset devices as posted, without ids")
	verbose := flag.Bool("verbose", false, "log every request")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	api := mockapi.New(mockapi.Options{
		Envelope:          *envelope,
		RejectCredentials: *rejectCreds,
		DropWrites:        *dropWrites,
		RawPresetDevices:  *rawPresetDevices,
		Logger:            logger,
	})
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock api listening", "addr", *addr, "envelope", *envelope, "reject_credentials", *rejectCreds, "drop_writes", *dropWrites)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "homesim-mockapi: %v\n", err)
			return 1
		}
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "homesim-mockapi: shutdown: %v\n", err)
			return 1
		}
	}
	return 0
}
