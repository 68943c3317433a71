// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// registerSignalHandler cancels the returned context on SIGINT or SIGTERM.
//
// Queued resources are dropped and resources being migrated complete. A second signal exits immediately.
// The returned stop function releases the handler.
func registerSignalHandler(parent context.Context, l *zap.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	signalChan := make(chan os.Signal, 2)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	stopped := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(signalChan)
			close(stopped)
			cancel()
		})
	}

	go func() {
		select {
		case sig := <-signalChan:
			l.Warn("received signal, stopping migration", zap.Stringer("signal", sig))
			cancel()
		case <-stopped:
			return
		}
		select {
		case <-signalChan:
			l.Error("received second signal, exiting")
			osExit(exitPartial)
		case <-stopped:
		}
	}()
	return ctx, stop
}
