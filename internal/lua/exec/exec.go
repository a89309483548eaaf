// Package exec provides the Executor interface for thread-safe Lua execution.
// This package is separate from lua to avoid import cycles with event handlers.
package exec

import (
	"context"

	"github.com/rs/zerolog/log"
	glua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/dimmerd/internal/lua/modules"
)

// Executor provides thread-safe Lua execution and state access.
type Executor interface {
	// Do queues work to be executed on the Lua VM
	Do(ctx context.Context, work func(ctx context.Context)) bool
	// LState returns the underlying Lua state (for use within Do callbacks only)
	LState() *glua.LState
}

// CallHandler calls a Lua event handler with the event as a table.
// MUST be called from within an Executor.Do() callback to ensure thread safety.
func CallHandler(L *glua.LState, fn *glua.LFunction, event map[string]any) error {
	L.Push(fn)
	L.Push(modules.MapToLuaTable(L, event))

	if err := L.PCall(1, 0, nil); err != nil {
		log.Error().Err(err).Msg("Lua event handler failed")
		return err
	}
	return nil
}
