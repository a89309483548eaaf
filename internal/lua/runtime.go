// Package lua hosts automation scripts that drive the controllers.
package lua

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/dimmerd/internal/eventbus"
	"github.com/dokzlo13/dimmerd/internal/lua/exec"
	"github.com/dokzlo13/dimmerd/internal/lua/modules"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = fmt.Errorf("lua runtime closed")

// closeTimeout bounds how long Close waits for the worker to stop.
const closeTimeout = 5 * time.Second

// LuaWork represents work to be executed on the Lua VM
// All Lua execution MUST go through this to ensure thread safety
type LuaWork func(ctx context.Context)

// Runtime manages the Lua VM with single-threaded execution
type Runtime struct {
	L    *lua.LState
	deps RuntimeDeps

	dimmerModule *modules.DimmerModule

	// Work queue for thread-safe Lua execution
	workQueue chan LuaWork

	// Shutdown signaling - closing this channel signals senders to stop
	// Using a channel in select is race-free (unlike mutex + bool)
	closing   chan struct{}
	closeOnce sync.Once

	// stopped is closed when Run returns. running is guarded by runMu and
	// tells Close whether a worker exists to wait for.
	stopped chan struct{}
	runMu   sync.Mutex
	running bool
	closed  bool
}

var _ exec.Executor = (*Runtime)(nil)

// NewRuntime creates a new Lua runtime
func NewRuntime(deps RuntimeDeps) *Runtime {
	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	r := &Runtime{
		L:         lua.NewState(),
		deps:      deps,
		workQueue: make(chan LuaWork, queueSize),
		closing:   make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	r.registerModules()

	return r
}

// Close stops accepting work, interrupts the running script, waits for the
// worker to exit and then closes the Lua state. Queued work is dropped.
// If the worker does not stop within closeTimeout the state is left open.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		r.runMu.Lock()
		r.closed = true
		running := r.running
		r.runMu.Unlock()

		// The work queue is never closed to avoid send-on-closed-channel panics.
		close(r.closing)

		if running {
			select {
			case <-r.stopped:
			case <-time.After(closeTimeout):
				log.Error().Dur("timeout", closeTimeout).Msg("Lua worker did not stop, leaving state open")
				return
			}
		}
		r.L.Close()
	})
}

// LState returns the Lua state. Only use it from inside Do callbacks.
func (r *Runtime) LState() *lua.LState {
	return r.L
}

// Do queues work to be executed on the Lua VM (thread-safe, non-blocking)
// Returns false if the runtime is closing, queue is full, or context is cancelled.
func (r *Runtime) Do(ctx context.Context, work func(ctx context.Context)) bool {
	select {
	case <-r.closing:
		log.Warn().Msg("Lua runtime closing, dropping work")
		return false
	case <-ctx.Done():
		log.Warn().Msg("Context cancelled, dropping Lua work")
		return false
	default:
	}

	select {
	case r.workQueue <- work:
		return true
	default:
		log.Warn().Msg("Lua work queue full, dropping work")
		return false
	}
}

// DoSync queues work and blocks until there's space (thread-safe, blocking)
// Returns error if the runtime is closing or context is cancelled.
func (r *Runtime) DoSync(ctx context.Context, work LuaWork) error {
	if r.isClosing() {
		return ErrRuntimeClosed
	}

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- work:
		return nil
	}
}

// DoSyncWithResult queues work, waits for space, and waits for the result.
func (r *Runtime) DoSyncWithResult(ctx context.Context, work func(context.Context) error) error {
	done := make(chan error, 1)
	wrappedWork := LuaWork(func(c context.Context) {
		done <- work(c)
	})

	if r.isClosing() {
		return ErrRuntimeClosed
	}

	// Queue the work
	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- wrappedWork:
		// Successfully queued
	}

	// Wait for result
	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (r *Runtime) isClosing() bool {
	select {
	case <-r.closing:
		return true
	default:
		return false
	}
}

// registerModules registers all Lua modules
func (r *Runtime) registerModules() {
	r.L.PreloadModule("log", modules.NewLogModule().Loader)
	r.L.PreloadModule("utils", modules.NewUtilsModule().Loader)

	r.dimmerModule = modules.NewDimmerModule(r.deps.Controllers)
	r.L.PreloadModule("dimmer", r.dimmerModule.Loader)
}

// RegisterHandlers subscribes the script's dimmer.on handlers to the event
// bus. Handlers run on the Lua worker. Call after LoadScript.
func (r *Runtime) RegisterHandlers(ctx context.Context, bus *eventbus.Bus) {
	for _, eventType := range r.dimmerModule.EventTypes() {
		bus.Subscribe(eventType, func(event eventbus.Event) {
			payload := make(map[string]any, len(event.Data)+2)
			for k, v := range event.Data {
				payload[k] = v
			}
			payload["type"] = string(event.Type)
			if event.Axis != "" {
				payload["axis"] = event.Axis
			}

			r.Do(ctx, func(workCtx context.Context) {
				for _, fn := range r.dimmerModule.Handlers(eventType) {
					exec.CallHandler(r.L, fn, payload)
				}
			})
		})

		log.Debug().Str("event_type", string(eventType)).Msg("Lua event handlers registered")
	}
}

// Run starts the Lua worker goroutine - this is the ONLY goroutine that touches Lua
// It includes panic recovery to prevent crashes from killing the worker.
// Exits when context is cancelled or runtime is closed. Close interrupts the
// work in progress through the state's context.
func (r *Runtime) Run(ctx context.Context) {
	r.runMu.Lock()
	if r.closed || r.running {
		r.runMu.Unlock()
		return
	}
	r.running = true
	r.runMu.Unlock()
	defer close(r.stopped)

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.closing:
			cancel()
		case <-workCtx.Done():
		}
	}()

	for {
		select {
		case <-r.closing:
			return
		case <-ctx.Done():
			r.drainQueue(ctx)
			return
		case work := <-r.workQueue:
			r.executeWork(workCtx, work)
		}
	}
}

// drainQueue processes any remaining work in the queue after the context ends
func (r *Runtime) drainQueue(ctx context.Context) {
	for {
		select {
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		default:
			return
		}
	}
}

// executeWork runs a single work item with panic recovery
func (r *Runtime) executeWork(ctx context.Context, work LuaWork) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Lua work panicked - worker continuing")
		}
	}()
	// Set context on LState so modules can access it via L.Context()
	r.L.SetContext(ctx)
	work(ctx)
}

// LoadScript loads and executes a Lua script (must be called before Run)
func (r *Runtime) LoadScript(path string) error {
	// Resolve relative paths against the config directory
	if !filepath.IsAbs(path) && r.deps.BaseDir != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = filepath.Join(r.deps.BaseDir, path)
		}
	}

	log.Info().Str("path", path).Msg("Loading Lua script")

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().Msg("Lua script loaded successfully")
	return nil
}

// LoadString executes inline Lua code (must be called before Run).
func (r *Runtime) LoadString(code string) error {
	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("failed to execute Lua code: %w", err)
	}
	return nil
}
