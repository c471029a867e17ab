package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoonhogo/conveyor/pkg/payload"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

type stubStage struct {
	name   string
	origin stage.Origin
}

func (s *stubStage) Name() string { return s.name }
func (s *stubStage) Metadata() stage.Metadata {
	return stage.Metadata{Category: stage.CategoryTransform, Origin: s.origin}
}
func (s *stubStage) Validate(map[string]interface{}) error { return nil }
func (s *stubStage) Execute(*stage.Context, map[string]payload.Payload, map[string]interface{}) (payload.Payload, error) {
	return payload.Payload{}, nil
}
func (s *stubStage) ProducesOutput() bool { return true }

func TestRegisterAndGet(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(&stubStage{name: "noop"}))

	got, err := r.Get("noop")
	require.NoError(t, err)
	assert.Equal(t, "noop", got.Name())
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(&stubStage{name: "noop"}))
	err := r.Register(&stubStage{name: "noop"})
	assert.Error(t, err)
}

func TestGetUnknownFails(t *testing.T) {
	r := New(nil)
	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestListSorted(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(&stubStage{name: "zeta"}))
	require.NoError(t, r.Register(&stubStage{name: "alpha"}))
	assert.Equal(t, []string{"alpha", "zeta"}, r.List())
}
