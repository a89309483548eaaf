package modules

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/dimmerd/internal/calibration"
)

// UtilsModule provides utility functions to Lua
type UtilsModule struct{}

// NewUtilsModule creates a new utils module
func NewUtilsModule() *UtilsModule {
	return &UtilsModule{}
}

// Loader is the module loader for Lua
func (m *UtilsModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "sleep", L.NewFunction(m.sleep))
	L.SetField(mod, "now", L.NewFunction(m.now))
	L.SetField(mod, "clamp", L.NewFunction(m.clamp))
	L.SetField(mod, "smoothstep", L.NewFunction(m.smoothstep))

	L.Push(mod)
	return 1
}

// sleep(ms) - Sleep for specified milliseconds.
// Blocks the Lua worker; returns early when the worker context is cancelled.
func (m *UtilsModule) sleep(L *lua.LState) int {
	ms := L.CheckInt(1)
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()

	ctx := L.Context()
	if ctx == nil {
		<-timer.C
		return 0
	}

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return 0
}

// now() -> unix seconds with fraction
func (m *UtilsModule) now(L *lua.LState) int {
	L.Push(lua.LNumber(float64(time.Now().UnixNano()) / float64(time.Second)))
	return 1
}

// clamp(v, lo, hi) -> number
func (m *UtilsModule) clamp(L *lua.LState) int {
	v := float64(L.CheckNumber(1))
	lo := float64(L.CheckNumber(2))
	hi := float64(L.CheckNumber(3))
	L.Push(lua.LNumber(calibration.Clamp(v, lo, hi)))
	return 1
}

// smoothstep(t) -> eased t in [0, 1]
func (m *UtilsModule) smoothstep(L *lua.LState) int {
	L.Push(lua.LNumber(calibration.Smoothstep(float64(L.CheckNumber(1)))))
	return 1
}
