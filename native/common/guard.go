package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("native: module paused")

// PauseView reports whether a native module is halted.
type PauseView interface {
	IsPaused(module string) bool
}

// PauseFunc adapts a plain function to PauseView.
type PauseFunc func(module string) bool

func (f PauseFunc) IsPaused(module string) bool {
	if f == nil {
		return false
	}
	return f(module)
}

// Guard fails with ErrModulePaused when module is halted. A nil view never
// blocks.
func Guard(p PauseView, module string) error {
	module = strings.TrimSpace(module)
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
