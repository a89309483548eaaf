package modules

import (
	"context"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/dimmerd/internal/controller"
	"github.com/dokzlo13/dimmerd/internal/eventbus"
)

// DimmerModule exposes the controllers to Lua scripts.
//
//	local dimmer = require("dimmer")
//	dimmer.set("simple", 40, { reason = "night" })
//	dimmer.transition("cct", 2700, 30, { reason = "evening" })
//	dimmer.on("availability_changed", function(e) ... end)
type DimmerModule struct {
	controllers *controller.Registry

	mu       sync.Mutex
	handlers map[eventbus.EventType][]*lua.LFunction
}

// NewDimmerModule creates a new dimmer module
func NewDimmerModule(controllers *controller.Registry) *DimmerModule {
	return &DimmerModule{
		controllers: controllers,
		handlers:    make(map[eventbus.EventType][]*lua.LFunction),
	}
}

// Loader is the module loader for Lua
func (m *DimmerModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "get", L.NewFunction(m.get))
	L.SetField(mod, "set", L.NewFunction(m.set))
	L.SetField(mod, "transition", L.NewFunction(m.transition))
	L.SetField(mod, "cancel", L.NewFunction(m.cancel))
	L.SetField(mod, "bounds", L.NewFunction(m.bounds))
	L.SetField(mod, "available", L.NewFunction(m.available))
	L.SetField(mod, "axes", L.NewFunction(m.axes))
	L.SetField(mod, "on", L.NewFunction(m.on))

	L.Push(mod)
	return 1
}

// Handlers returns the Lua functions registered for an event type.
func (m *DimmerModule) Handlers(eventType eventbus.EventType) []*lua.LFunction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*lua.LFunction(nil), m.handlers[eventType]...)
}

// EventTypes returns every event type with at least one handler.
func (m *DimmerModule) EventTypes() []eventbus.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := make([]eventbus.EventType, 0, len(m.handlers))
	for t := range m.handlers {
		types = append(types, t)
	}
	return types
}

func (m *DimmerModule) controller(L *lua.LState) controller.Controller {
	c, err := m.controllers.Get(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return nil
	}
	return c
}

func luaContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// get(axis) -> value | nil
func (m *DimmerModule) get(L *lua.LState) int {
	c := m.controller(L)
	v, known := c.Value()
	if !known {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(v))
	return 1
}

// set(axis, value, {reason=, keep_transition=}) -> true | nil, err
func (m *DimmerModule) set(L *lua.LState) int {
	c := m.controller(L)
	value := float64(L.CheckNumber(2))
	opts := L.OptTable(3, L.NewTable())

	err := c.Set(luaContext(L), value, controller.SetOptions{
		Reason:         lua.LVAsString(opts.RawGetString("reason")),
		KeepTransition: lua.LVAsBool(opts.RawGetString("keep_transition")),
	})
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LTrue)
	return 1
}

// transition(axis, value, seconds, {reason=, frequency=}) -> task_id | nil, err
func (m *DimmerModule) transition(L *lua.LState) int {
	c := m.controller(L)
	value := float64(L.CheckNumber(2))
	seconds := float64(L.CheckNumber(3))
	opts := L.OptTable(4, L.NewTable())

	freq, _ := optNumber(opts, "frequency")

	tr, err := c.Transition(luaContext(L), value, time.Duration(seconds*float64(time.Second)), controller.TransitionOptions{
		Reason:    lua.LVAsString(opts.RawGetString("reason")),
		Frequency: freq,
	})
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LString(tr.ID()))
	return 1
}

// cancel(axis)
func (m *DimmerModule) cancel(L *lua.LState) int {
	m.controller(L).CancelActiveTransition()
	return 0
}

// bounds(axis) -> min, max | nil
func (m *DimmerModule) bounds(L *lua.LState) int {
	b, ok := m.controller(L).Bounds()
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(b.Min))
	L.Push(lua.LNumber(b.Max))
	return 2
}

// available(axis) -> bool
func (m *DimmerModule) available(L *lua.LState) int {
	L.Push(lua.LBool(m.controller(L).Available()))
	return 1
}

// axes() -> {"display", "image", ...}
func (m *DimmerModule) axes(L *lua.LState) int {
	tbl := L.NewTable()
	for i, name := range m.controllers.Names() {
		tbl.RawSetInt(i+1, lua.LString(name))
	}
	L.Push(tbl)
	return 1
}

// on(event_type, fn) - register a handler for controller events
func (m *DimmerModule) on(L *lua.LState) int {
	eventType := eventbus.EventType(L.CheckString(1))
	fn := L.CheckFunction(2)

	switch eventType {
	case eventbus.EventTypeValueChanged,
		eventbus.EventTypeTransitionStarted,
		eventbus.EventTypeTransitionFinished,
		eventbus.EventTypeAvailabilityChanged,
		eventbus.EventTypeDevicesChanged:
	default:
		L.ArgError(1, "unknown event type: "+string(eventType))
		return 0
	}

	m.mu.Lock()
	m.handlers[eventType] = append(m.handlers[eventType], fn)
	m.mu.Unlock()
	return 0
}
