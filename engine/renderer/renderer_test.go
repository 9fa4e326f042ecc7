package renderer

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModule records the order of lifecycle calls it receives.
type fakeModule struct {
	name      string
	journal   *[]string
	recordErr error
}

func (m *fakeModule) Name() string { return m.name }

func (m *fakeModule) OnCreate(target *Target) error {
	*m.journal = append(*m.journal, m.name+":create")
	return nil
}

func (m *fakeModule) Record(frame *FrameInfo) error {
	*m.journal = append(*m.journal, m.name+":record")
	return m.recordErr
}

func (m *fakeModule) OnResize(extent vk.Extent2D) error {
	*m.journal = append(*m.journal, m.name+":resize")
	return nil
}

func (m *fakeModule) OnDestroy() {
	*m.journal = append(*m.journal, m.name+":destroy")
}

func TestRecordModulesRunsInRegistrationOrder(t *testing.T) {
	journal := []string{}
	r := &Renderer{}
	require.NoError(t, r.RegisterModule(&fakeModule{name: "a", journal: &journal}))
	require.NoError(t, r.RegisterModule(&fakeModule{name: "b", journal: &journal}))
	require.NoError(t, r.RegisterModule(&fakeModule{name: "c", journal: &journal}))

	r.recordModules(&FrameInfo{})
	assert.Equal(t, []string{"a:record", "b:record", "c:record"}, journal)

	journal = journal[:0]
	r.recordModules(&FrameInfo{})
	assert.Equal(t, []string{"a:record", "b:record", "c:record"}, journal)
}

func TestRecordModulesContinuesAfterModuleError(t *testing.T) {
	journal := []string{}
	r := &Renderer{}
	require.NoError(t, r.RegisterModule(&fakeModule{name: "broken", journal: &journal, recordErr: errors.New("boom")}))
	require.NoError(t, r.RegisterModule(&fakeModule{name: "ok", journal: &journal}))

	r.recordModules(&FrameInfo{})
	assert.Equal(t, []string{"broken:record", "ok:record"}, journal)
}

func TestRecordModulesInvokesOverlayLast(t *testing.T) {
	journal := []string{}
	r := &Renderer{}
	require.NoError(t, r.RegisterModule(&fakeModule{name: "a", journal: &journal}))
	r.SetOverlay(func(frame *FrameInfo) {
		journal = append(journal, "overlay")
	})

	r.recordModules(&FrameInfo{})
	assert.Equal(t, []string{"a:record", "overlay"}, journal)
}

func TestRecreateNotificationsRunDestroyResizeCreateOnce(t *testing.T) {
	journal := []string{}
	r := &Renderer{}
	require.NoError(t, r.RegisterModule(&fakeModule{name: "a", journal: &journal}))
	require.NoError(t, r.RegisterModule(&fakeModule{name: "b", journal: &journal}))

	r.notifyDestroyed()
	require.NoError(t, r.notifyRebuilt(&Target{Extent: vk.Extent2D{Width: 800, Height: 600}}))

	assert.Equal(t, []string{
		"a:destroy", "b:destroy",
		"a:resize", "b:resize",
		"a:create", "b:create",
	}, journal)
}

func TestRegisterModuleDefersCreationUntilInitialized(t *testing.T) {
	journal := []string{}
	r := &Renderer{}
	require.NoError(t, r.RegisterModule(&fakeModule{name: "a", journal: &journal}))
	assert.Empty(t, journal, "creation hook must wait for target construction")
}

func TestNextSlotIndexWrapsRoundRobin(t *testing.T) {
	const frames = 3
	slot := uint32(0)
	seen := []uint32{}
	for i := 0; i < 2*frames; i++ {
		seen = append(seen, slot)
		slot = nextSlotIndex(slot, frames)
	}
	assert.Equal(t, []uint32{0, 1, 2, 0, 1, 2}, seen)
}
