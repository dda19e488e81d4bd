package common

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrModulePaused is returned when a mutating entry point is invoked
	// while the module's pause switch is engaged.
	ErrModulePaused = errors.New("module paused")
	// ErrReentered is returned when a mutating entry point is invoked while
	// another mutating operation is still in flight on the same ledger.
	ErrReentered = errors.New("reentrant call")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// ReentrancyGuard is a ledger-wide mutual exclusion flag. Every mutating
// entry point enters the guard before touching state; a second entry while
// one is in flight fails with ErrReentered rather than queueing. The zero
// value is ready to use.
type ReentrancyGuard struct {
	locked atomic.Bool
}

// Enter claims the guard. It never blocks: a nested or concurrent claim is
// rejected immediately.
func (g *ReentrancyGuard) Enter() error {
	if g == nil {
		return nil
	}
	if !g.locked.CompareAndSwap(false, true) {
		return ErrReentered
	}
	return nil
}

// Exit releases the guard.
func (g *ReentrancyGuard) Exit() {
	if g != nil {
		g.locked.Store(false)
	}
}
