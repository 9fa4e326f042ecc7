package assets

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/vesta-engine/vesta/engine/core"
	"github.com/vesta-engine/vesta/engine/renderer/vulkan"
)

// DecodeFunc turns a cooked mesh file into CPU-side mesh data.
type DecodeFunc func(path string) (*MeshData, error)

// UploadFunc pushes decoded data into a GPU-resident mesh.
type UploadFunc func(data *MeshData) (*Mesh, error)

// DestroyFunc releases a mesh's GPU resources.
type DestroyFunc func(mesh *Mesh)

type entry struct {
	mesh       *Mesh
	generation uint32
	refCount   uint32
	path       string
	modified   bool
}

// Registry owns every loaded mesh: generational handles, reference counts
// and a path cache so repeated loads of the same file share one GPU copy.
// Entries are destroyed only by Collect, never implicitly.
//
// All methods must be called from a single goroutine; there is no internal
// locking. File-watch events are only applied during ProcessFileEvents,
// which the owning goroutine calls when convenient.
type Registry struct {
	decode  DecodeFunc
	upload  UploadFunc
	destroy DestroyFunc

	entries   map[uint64]*entry
	pathCache map[string]Handle
	nextID    uint64

	watcher *fsnotify.Watcher
}

// NewRegistry builds a GPU-backed registry over the given context.
func NewRegistry(context *vulkan.Context) *Registry {
	return NewRegistryWith(
		DecodeMeshFile,
		func(data *MeshData) (*Mesh, error) { return UploadMesh(context, data) },
		func(mesh *Mesh) { mesh.Destroy(context) },
	)
}

// NewRegistryWith builds a registry with explicit decode/upload/destroy
// collaborators.
func NewRegistryWith(decode DecodeFunc, upload UploadFunc, destroy DestroyFunc) *Registry {
	return &Registry{
		decode:    decode,
		upload:    upload,
		destroy:   destroy,
		entries:   make(map[uint64]*entry),
		pathCache: make(map[string]Handle),
		nextID:    1,
	}
}

// Load returns a handle for the mesh at path. A cached path gains a
// reference and returns its existing handle unchanged; a fresh path is
// decoded and uploaded. Decode or upload failure yields InvalidHandle.
func (r *Registry) Load(path string) Handle {
	path = filepath.Clean(path)

	if handle, ok := r.pathCache[path]; ok {
		r.AddRef(handle)
		return handle
	}

	data, err := r.decode(path)
	if err != nil {
		core.LogError("failed to decode mesh %s: %s", path, err)
		return InvalidHandle
	}

	mesh, err := r.upload(data)
	if err != nil {
		core.LogError("failed to upload mesh %s: %s", path, err)
		return InvalidHandle
	}

	id := r.nextID
	r.nextID++
	r.entries[id] = &entry{
		mesh:       mesh,
		generation: 1,
		refCount:   1,
		path:       path,
	}

	handle := Handle{ID: id, Generation: 1}
	r.pathCache[path] = handle

	if r.watcher != nil {
		if err := r.watcher.Add(path); err != nil {
			core.LogWarn("unable to watch %s: %s", path, err)
		}
	}

	core.LogDebug("loaded mesh %s (handle %d)", path, id)
	return handle
}

func (r *Registry) lookup(h Handle) *entry {
	e, ok := r.entries[h.ID]
	if !ok || e.generation != h.Generation {
		return nil
	}
	return e
}

// Resolve returns the mesh for a handle, or nil when the id is unknown or
// the generation does not match.
func (r *Registry) Resolve(h Handle) *Mesh {
	if e := r.lookup(h); e != nil {
		return e.mesh
	}
	return nil
}

func (r *Registry) AddRef(h Handle) {
	if e := r.lookup(h); e != nil {
		e.refCount++
	}
}

// Release drops one reference. It never destroys the entry; that is
// Collect's job.
func (r *Registry) Release(h Handle) {
	if e := r.lookup(h); e != nil && e.refCount > 0 {
		e.refCount--
	}
}

// RefCount reports the current reference count, zero for a dead handle.
func (r *Registry) RefCount(h Handle) uint32 {
	if e := r.lookup(h); e != nil {
		return e.refCount
	}
	return 0
}

// Count reports the number of live entries.
func (r *Registry) Count() int {
	return len(r.entries)
}

// Collect destroys every entry whose reference count is zero and removes it
// from both the id table and the path cache. Returns the number of entries
// destroyed. The caller must guarantee no in-flight frame still uses them.
func (r *Registry) Collect() int {
	collected := 0
	for id, e := range r.entries {
		if e.refCount != 0 {
			continue
		}
		if e.mesh != nil {
			r.destroy(e.mesh)
		}
		delete(r.pathCache, e.path)
		delete(r.entries, id)
		if r.watcher != nil {
			r.watcher.Remove(e.path)
		}
		collected++
	}
	if collected > 0 {
		core.LogDebug("collected %d mesh entries", collected)
	}
	return collected
}

// Shutdown destroys every entry regardless of reference count and stops the
// file watcher.
func (r *Registry) Shutdown() {
	for id, e := range r.entries {
		if e.mesh != nil {
			r.destroy(e.mesh)
		}
		delete(r.entries, id)
	}
	r.pathCache = make(map[string]Handle)

	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

// EnableWatch starts watching loaded mesh files for modification. Already
// loaded entries are added to the watch set.
func (r *Registry) EnableWatch() error {
	if r.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	r.watcher = watcher

	for _, e := range r.entries {
		if err := r.watcher.Add(e.path); err != nil {
			core.LogWarn("unable to watch %s: %s", e.path, err)
		}
	}
	return nil
}

// ProcessFileEvents drains pending file-watch events without blocking and
// flags entries whose source file changed on disk. Call from the owning
// goroutine; flags are read back through Modified.
func (r *Registry) ProcessFileEvents() {
	if r.watcher == nil {
		return
	}
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)
			if handle, ok := r.pathCache[path]; ok {
				if e := r.lookup(handle); e != nil {
					e.modified = true
					core.LogDebug("mesh %s changed on disk", path)
				}
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			core.LogWarn("mesh watcher error: %s", err)
		default:
			return
		}
	}
}

// Modified reports whether the entry's source file changed on disk since
// load or the last ClearModified.
func (r *Registry) Modified(h Handle) bool {
	if e := r.lookup(h); e != nil {
		return e.modified
	}
	return false
}

// ClearModified resets the modification flag, typically after a caller
// reloaded the mesh.
func (r *Registry) ClearModified(h Handle) {
	if e := r.lookup(h); e != nil {
		e.modified = false
	}
}
