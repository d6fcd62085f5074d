package undo

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	log "github.com/cloudposse/link-install/pkg/logger"
)

// InterruptHandler rolls back the root scope when the process receives SIGINT or SIGTERM.
// It has an explicit lifecycle: Start registers for signals, Stop deregisters.
type InterruptHandler struct {
	root        *Manager
	onInterrupt func(os.Signal)
	signals     []os.Signal

	sigCh chan os.Signal
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	fireOnce  sync.Once
	triggered atomic.Bool
}

// NewInterruptHandler creates a handler for root. onInterrupt runs once after the rollback
// pass finished; in the CLI it exits the process.
func NewInterruptHandler(root *Manager, onInterrupt func(os.Signal)) *InterruptHandler {
	return &InterruptHandler{
		root:        root,
		onInterrupt: onInterrupt,
		signals:     []os.Signal{os.Interrupt, syscall.SIGTERM},
		sigCh:       make(chan os.Signal, 1),
		done:        make(chan struct{}),
	}
}

// Start begins listening for termination signals.
func (h *InterruptHandler) Start() {
	h.startOnce.Do(func() {
		signal.Notify(h.sigCh, h.signals...)
		go h.loop()
	})
}

// Stop deregisters the handler. A rollback already triggered keeps running.
func (h *InterruptHandler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigCh)
		close(h.done)
	})
}

// Triggered reports whether an interruption was received.
func (h *InterruptHandler) Triggered() bool {
	return h.triggered.Load()
}

func (h *InterruptHandler) loop() {
	for {
		select {
		case sig := <-h.sigCh:
			go h.Trigger(sig)
		case <-h.done:
			return
		}
	}
}

// Trigger rolls back the root scope as if sig had been received. Repeated calls join the
// rollback pass already in progress; the exit callback runs exactly once.
func (h *InterruptHandler) Trigger(sig os.Signal) {
	if h.triggered.CompareAndSwap(false, true) {
		log.Warn("Interrupted, rolling back", "signal", sig)
	} else {
		log.Debug("Rollback already in progress", "signal", sig)
	}

	if err := h.root.UndoAll(); err != nil {
		log.Error("Rollback incomplete", "error", err)
	}

	h.fireOnce.Do(func() {
		if h.onInterrupt != nil {
			h.onInterrupt(sig)
		}
	})
}
