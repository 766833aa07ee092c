package camera

import "sync"

// Registry tracks device paths claimed by open camera sessions so two
// sessions in the same process never bind the same loopback node. It
// offers no protection against other processes opening the device.
type Registry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewRegistry creates an empty registry. Sessions that should never
// share devices with the rest of the process can use their own.
func NewRegistry() *Registry {
	return &Registry{paths: make(map[string]struct{})}
}

// Register claims a device path. It returns false when the path is
// already claimed.
func (r *Registry) Register(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.paths[path]; held {
		return false
	}
	r.paths[path] = struct{}{}
	return true
}

// Unregister releases a claimed path. Releasing an unclaimed path is a
// no-op.
func (r *Registry) Unregister(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, path)
}

// Held reports whether a path is currently claimed.
func (r *Registry) Held(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, held := r.paths[path]
	return held
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry shared by all
// sessions that don't set an explicit one.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
