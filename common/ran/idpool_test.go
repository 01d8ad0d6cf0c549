package ran

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDPool_AllocatesSequentially(t *testing.T) {
	p := NewIDPool(1, 3)

	a, ok := p.Allocate()
	require.True(t, ok)
	assert.Equal(t, uint32(1), a)

	b, ok := p.Allocate()
	require.True(t, ok)
	assert.Equal(t, uint32(2), b)
}

func TestIDPool_ReusesReleasedBeforeExpanding(t *testing.T) {
	p := NewIDPool(1, 3)

	a, _ := p.Allocate()
	_, _ = p.Allocate()
	p.Release(a)

	next, ok := p.Allocate()
	require.True(t, ok)
	assert.Equal(t, a, next, "a released id must be reused before the pool expands")
}

func TestIDPool_ExhaustionReturnsNotOK(t *testing.T) {
	p := NewIDPool(1, 2)

	_, ok1 := p.Allocate()
	_, ok2 := p.Allocate()
	_, ok3 := p.Allocate()

	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok3)
}

func TestIDPool_ReleaseOfUnusedIDIsNoop(t *testing.T) {
	p := NewIDPool(1, 2)
	p.Release(99) // never allocated

	assert.Equal(t, 0, p.InUse())
}

func TestIDPool_InUseTracksOutstandingAllocations(t *testing.T) {
	p := NewIDPool(1, 5)

	a, _ := p.Allocate()
	_, _ = p.Allocate()
	assert.Equal(t, 2, p.InUse())

	p.Release(a)
	assert.Equal(t, 1, p.InUse())
}
