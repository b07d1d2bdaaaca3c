package board

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func dummyFactory(ctx context.Context, path string) (Board, error) { return nil, nil }

func TestFindPrefersMostSpecificDescriptor(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{Name: "wildcard", New: dummyFactory})
	r.Register(Descriptor{Name: "vendor-only", VendorID: 0x1fc9, New: dummyFactory})
	r.Register(Descriptor{Name: "exact", VendorID: 0x1fc9, ProductID: 0x0083, New: dummyFactory})

	d, ok := r.Find(0x1fc9, 0x0083)
	assert.True(t, ok)
	assert.Equal(t, "exact", d.Name)
}

func TestFindFallsBackToWildcard(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{Name: "wildcard", New: dummyFactory})
	d, ok := r.Find(0x9999, 0x9999)
	assert.True(t, ok)
	assert.Equal(t, "wildcard", d.Name)
}

func TestFindNoMatch(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{Name: "exact", VendorID: 0x1fc9, ProductID: 0x0083, New: dummyFactory})
	_, ok := r.Find(0x1234, 0x5678)
	assert.False(t, ok)
}

func TestFindTieBreaksByRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{Name: "first", VendorID: 0x1fc9, New: dummyFactory})
	r.Register(Descriptor{Name: "second", VendorID: 0x1fc9, New: dummyFactory})
	d, ok := r.Find(0x1fc9, 0x0001)
	assert.True(t, ok)
	assert.Equal(t, "first", d.Name)
}
