package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend stands in for the decoder and GPU upload path, counting live
// GPU allocations so collection can be verified.
type fakeBackend struct {
	decodeCalls int
	decodeErr   error
	uploadErr   error
	liveUploads int
}

func (b *fakeBackend) registry() *Registry {
	return NewRegistryWith(
		func(path string) (*MeshData, error) {
			b.decodeCalls++
			if b.decodeErr != nil {
				return nil, b.decodeErr
			}
			return sampleMeshData(), nil
		},
		func(data *MeshData) (*Mesh, error) {
			if b.uploadErr != nil {
				return nil, b.uploadErr
			}
			b.liveUploads++
			return &Mesh{IndexCount: data.IndexCount}, nil
		},
		func(mesh *Mesh) {
			b.liveUploads--
		},
	)
}

func TestLoadCachesByPath(t *testing.T) {
	backend := &fakeBackend{}
	r := backend.registry()

	first := r.Load("meshes/crate.vmsh")
	require.True(t, first.IsValid())

	second := r.Load("meshes/crate.vmsh")
	third := r.Load("meshes/crate.vmsh")

	assert.Equal(t, first, second, "cached load must return the same handle")
	assert.Equal(t, first, third)
	assert.Equal(t, 1, backend.decodeCalls, "cached load must not decode again")
	assert.Equal(t, 1, backend.liveUploads, "cached load must not duplicate GPU memory")
	assert.Equal(t, uint32(3), r.RefCount(first))
}

func TestLoadDistinctPathsGetDistinctHandles(t *testing.T) {
	r := (&fakeBackend{}).registry()

	a := r.Load("meshes/a.vmsh")
	b := r.Load("meshes/b.vmsh")

	require.True(t, a.IsValid())
	require.True(t, b.IsValid())
	assert.NotEqual(t, a.ID, b.ID)
}

func TestLoadDecodeFailureReturnsInvalidHandle(t *testing.T) {
	backend := &fakeBackend{decodeErr: errors.New("corrupt file")}
	r := backend.registry()

	h := r.Load("meshes/broken.vmsh")
	assert.False(t, h.IsValid())
	assert.Zero(t, r.Count())
}

func TestLoadUploadFailureReturnsInvalidHandle(t *testing.T) {
	backend := &fakeBackend{uploadErr: errors.New("device lost")}
	r := backend.registry()

	h := r.Load("meshes/crate.vmsh")
	assert.False(t, h.IsValid())
	assert.Zero(t, r.Count())
}

func TestResolveRejectsUnknownAndMismatchedHandles(t *testing.T) {
	r := (&fakeBackend{}).registry()
	h := r.Load("meshes/crate.vmsh")

	assert.NotNil(t, r.Resolve(h))
	assert.Nil(t, r.Resolve(Handle{ID: 999, Generation: 1}))
	assert.Nil(t, r.Resolve(Handle{ID: h.ID, Generation: h.Generation + 1}))
	assert.Nil(t, r.Resolve(InvalidHandle))
}

func TestCollectDestroysOnlyUnreferencedEntries(t *testing.T) {
	backend := &fakeBackend{}
	r := backend.registry()

	kept := r.Load("meshes/kept.vmsh")
	dropped := r.Load("meshes/dropped.vmsh")
	require.Equal(t, 2, backend.liveUploads)

	assert.Equal(t, 0, r.Collect(), "both entries still referenced")

	r.Release(dropped)
	assert.Equal(t, 1, r.Collect())
	assert.Equal(t, 1, backend.liveUploads)
	assert.Nil(t, r.Resolve(dropped))
	assert.NotNil(t, r.Resolve(kept))

	// The path cache entry is gone too: reloading decodes again.
	before := backend.decodeCalls
	reloaded := r.Load("meshes/dropped.vmsh")
	assert.Equal(t, before+1, backend.decodeCalls)
	assert.NotEqual(t, dropped.ID, reloaded.ID, "ids are never recycled")
}

func TestReleaseEveryReferenceThenCollectEmptiesRegistry(t *testing.T) {
	backend := &fakeBackend{}
	r := backend.registry()

	h := r.Load("meshes/crate.vmsh")
	r.Load("meshes/crate.vmsh")
	r.AddRef(h)

	r.Release(h)
	r.Release(h)
	r.Release(h)
	r.Collect()

	assert.Zero(t, r.Count())
	assert.Zero(t, backend.liveUploads, "GPU allocations must return to the pre-load level")
}

func TestReleaseNeverUnderflows(t *testing.T) {
	r := (&fakeBackend{}).registry()
	h := r.Load("meshes/crate.vmsh")

	r.Release(h)
	r.Release(h)
	r.Release(h)
	assert.Zero(t, r.RefCount(h))
}

func TestShutdownDestroysEverything(t *testing.T) {
	backend := &fakeBackend{}
	r := backend.registry()

	r.Load("meshes/a.vmsh")
	r.Load("meshes/b.vmsh")
	r.Shutdown()

	assert.Zero(t, r.Count())
	assert.Zero(t, backend.liveUploads)
}

func TestWatchFlagsModifiedEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crate.vmsh")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	r := (&fakeBackend{}).registry()
	require.NoError(t, r.EnableWatch())
	defer r.Shutdown()

	h := r.Load(path)
	require.True(t, h.IsValid())
	assert.False(t, r.Modified(h))

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	assert.Eventually(t, func() bool {
		r.ProcessFileEvents()
		return r.Modified(h)
	}, 2*time.Second, 10*time.Millisecond)

	r.ClearModified(h)
	assert.False(t, r.Modified(h))
}
