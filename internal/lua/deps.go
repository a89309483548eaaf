package lua

import (
	"github.com/dokzlo13/dimmerd/internal/controller"
)

// RuntimeDeps groups all dependencies needed by Lua runtime.
type RuntimeDeps struct {
	Controllers *controller.Registry
	// BaseDir resolves relative script paths, usually the config directory.
	BaseDir string
	// QueueSize bounds pending Lua work; 100 when zero.
	QueueSize int
}
