package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/payload"
	"github.com/yoonhogo/conveyor/pkg/registry"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

type fakeStage struct{ name string }

func (s fakeStage) Name() string                         { return s.name }
func (s fakeStage) Metadata() stage.Metadata              { return stage.Metadata{Category: stage.CategoryTransform} }
func (s fakeStage) Validate(map[string]interface{}) error { return nil }
func (s fakeStage) ProducesOutput() bool                  { return true }
func (s fakeStage) Execute(_ *stage.Context, _ map[string]payload.Payload, _ map[string]interface{}) (payload.Payload, error) {
	return payload.Payload{}, nil
}

func newHost(t *testing.T) *Host {
	t.Helper()
	reg := registry.New(nil)
	return New(reg, t.TempDir(), nil)
}

func TestRegisterDeclarationRejectsVersionMismatch(t *testing.T) {
	h := newHost(t)
	decl := &Declaration{
		APIVersion: HostAPIVersion + 1,
		Name:       "mismatched",
		Register:   func(r *Registrar) {},
	}
	err := h.registerDeclaration("mismatched", decl)
	require.Error(t, err)
	cerr, ok := conveyorerr.As(err)
	require.True(t, ok)
	assert.Equal(t, conveyorerr.KindPluginLoadError, cerr.Kind)
}

func TestRegisterDeclarationRejectsZeroCapabilities(t *testing.T) {
	h := newHost(t)
	decl := &Declaration{
		APIVersion: HostAPIVersion,
		Name:       "empty",
		Register:   func(r *Registrar) {},
	}
	err := h.registerDeclaration("empty", decl)
	require.Error(t, err)
}

func TestRegisterDeclarationRegistersCapabilities(t *testing.T) {
	h := newHost(t)
	decl := &Declaration{
		APIVersion: HostAPIVersion,
		Name:       "greeter",
		Register: func(r *Registrar) {
			r.Declare(Capability{
				Name: "greeter.say",
				Kind: CapabilityTransform,
				Factory: func() stage.Stage {
					return fakeStage{name: "greeter.say"}
				},
			})
		},
	}
	require.NoError(t, h.registerDeclaration("greeter", decl))

	got, err := h.reg.Get("greeter.say")
	require.NoError(t, err)
	assert.Equal(t, "greeter.say", got.Name())
	assert.True(t, h.loaded["greeter"])
}

func TestRegisterDeclarationSurfacesDuplicateRegistrationAsPluginLoadError(t *testing.T) {
	h := newHost(t)
	decl := &Declaration{
		APIVersion: HostAPIVersion,
		Name:       "dup",
		Register: func(r *Registrar) {
			r.Declare(Capability{
				Name:    "dup.stage",
				Kind:    CapabilitySink,
				Factory: func() stage.Stage { return fakeStage{name: "dup.stage"} },
			})
		},
	}
	require.NoError(t, h.registerDeclaration("dup", decl))
	err := h.registerDeclaration("dup2", decl)
	require.Error(t, err)
	cerr, ok := conveyorerr.As(err)
	require.True(t, ok)
	assert.Equal(t, conveyorerr.KindPluginLoadError, cerr.Kind)
}
