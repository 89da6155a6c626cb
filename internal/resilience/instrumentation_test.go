package resilience

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentation_EmitsSpanOnSuccess(t *testing.T) {
	inst := NewInstrumentation()
	var got Span
	inst.Subscribe(func(s Span) { got = s })

	err := inst.Span("assemble", func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "assemble", got.Name)
	assert.NoError(t, got.Err)
}

func TestInstrumentation_EmitsSpanOnFailureAndPropagatesError(t *testing.T) {
	inst := NewInstrumentation()
	var got Span
	inst.Subscribe(func(s Span) { got = s })
	boom := errors.New("boom")

	err := inst.Span("rank", func() error { return boom })
	assert.Equal(t, boom, err)
	assert.Equal(t, boom, got.Err)
}

func TestInstrumentation_FansOutToMultipleSubscribers(t *testing.T) {
	inst := NewInstrumentation()
	count := 0
	inst.Subscribe(func(Span) { count++ })
	inst.Subscribe(func(Span) { count++ })

	_ = inst.Span("classify", func() error { return nil })
	assert.Equal(t, 2, count)
}
