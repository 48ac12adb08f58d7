package ports

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roost-io/roost/pkg/conf"
	"github.com/roost-io/roost/pkg/registry"
)

func newTestAllocator(t *testing.T) (*Allocator, *Registry, *registry.Mem, *conf.Store) {
	t.Helper()
	store := registry.NewMem()
	confStore, err := conf.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { confStore.Close() })

	reg := NewRegistry(store)
	return NewAllocator(reg, confStore), reg, store, confStore
}

func markUsed(t *testing.T, store *registry.Mem, host string, ports ...int) {
	t.Helper()
	ctx := context.Background()
	for _, p := range ports {
		require.NoError(t, store.Set(ctx, registry.HostPort(host, p), "other/"+strconv.Itoa(p)))
	}
}

func TestAllocateSkipsUsedPorts(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		used     []int
		def      int
		expected int
	}{
		{
			name:     "no used ports returns default",
			def:      1099,
			expected: 1099,
		},
		{
			name:     "contiguous used range",
			used:     []int{1099, 1100},
			def:      1099,
			expected: 1101,
		},
		{
			name:     "gap in used range",
			used:     []int{8101, 8103},
			def:      8101,
			expected: 8102,
		},
		{
			name:     "default beyond used set",
			used:     []int{1099},
			def:      44444,
			expected: 44444,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc, _, store, _ := newTestAllocator(t)
			markUsed(t, store, "host-a", tt.used...)

			port, err := alloc.Allocate(ctx, "node-a", "host-a", "io.roost.shell", "sshPort", tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, port)
		})
	}
}

func TestAllocateIdempotent(t *testing.T) {
	ctx := context.Background()
	alloc, _, store, _ := newTestAllocator(t)
	markUsed(t, store, "host-a", 1099, 1100)

	first, err := alloc.Allocate(ctx, "node-a", "host-a", "io.roost.management", "rmiRegistryPort", 1099)
	require.NoError(t, err)
	assert.Equal(t, 1101, first)

	// repeated call returns the persisted value without incrementing
	again, err := alloc.Allocate(ctx, "node-a", "host-a", "io.roost.management", "rmiRegistryPort", 1099)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestAllocateUsesConfiguredPort(t *testing.T) {
	ctx := context.Background()
	alloc, _, _, confStore := newTestAllocator(t)

	require.NoError(t, confStore.Update("io.roost.shell", map[string]string{"sshPort": "9000"}))

	port, err := alloc.Allocate(ctx, "node-a", "host-a", "io.roost.shell", "sshPort", 8101)
	require.NoError(t, err)
	assert.Equal(t, 9000, port)
}

func TestAllocateMalformedConfigFallsBack(t *testing.T) {
	ctx := context.Background()
	alloc, _, _, confStore := newTestAllocator(t)

	require.NoError(t, confStore.Update("io.roost.shell", map[string]string{"sshPort": "not-a-port"}))

	port, err := alloc.Allocate(ctx, "node-a", "host-a", "io.roost.shell", "sshPort", 8101)
	require.NoError(t, err)
	assert.Equal(t, 8101, port)
}

func TestAllocateMarksHostIndex(t *testing.T) {
	ctx := context.Background()
	alloc, reg, _, _ := newTestAllocator(t)

	_, err := alloc.Allocate(ctx, "node-a", "host-a", "io.roost.web", "httpPort", 8181)
	require.NoError(t, err)

	used, err := reg.UsedByHost(ctx, "host-a")
	require.NoError(t, err)
	assert.Contains(t, used, 8181)

	// services on the same host see each other's allocations
	port, err := alloc.Allocate(ctx, "node-b", "host-a", "io.roost.web", "httpPort", 8181)
	require.NoError(t, err)
	assert.Equal(t, 8182, port)
}

func TestUnregisterFreesAssignments(t *testing.T) {
	ctx := context.Background()
	alloc, reg, _, _ := newTestAllocator(t)

	_, err := alloc.Allocate(ctx, "node-a", "host-a", "io.roost.management", "rmiRegistryPort", 1099)
	require.NoError(t, err)
	_, err = alloc.Allocate(ctx, "node-a", "host-a", "io.roost.management", "rmiServerPort", 44444)
	require.NoError(t, err)

	require.NoError(t, reg.Unregister(ctx, "node-a", "host-a", "io.roost.management"))

	port, err := reg.Lookup(ctx, "node-a", "io.roost.management", "rmiRegistryPort")
	require.NoError(t, err)
	assert.Zero(t, port)

	used, err := reg.UsedByHost(ctx, "host-a")
	require.NoError(t, err)
	assert.Empty(t, used)
}
