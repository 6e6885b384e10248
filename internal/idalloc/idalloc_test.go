package idalloc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTunnelKeyAllocatorWrapsAndSkipsUsed(t *testing.T) {
	a := NewTunnelKeyAllocator(1, 4)
	used := map[int]bool{2: true, 3: true, 4: true}

	got := a.Allocate(used, 1)
	assert.Equal(t, 1, got, "should wrap past the used tail back to Min")
}

func TestTunnelKeyAllocatorExhaustion(t *testing.T) {
	a := NewTunnelKeyAllocator(1, 2)
	used := map[int]bool{1: true, 2: true}

	assert.Equal(t, 0, a.Allocate(used, 0), "exhausted pool must return sentinel 0")
}

func TestTunnelKeyAllocatorUniqueness(t *testing.T) {
	a := NewTunnelKeyAllocator(1, 100)
	used := make(map[int]bool)

	for i := 0; i < 50; i++ {
		key := a.Allocate(used, 0)
		require.NotEqual(t, 0, key)
		require.False(t, used[key], "allocator must never reuse a still-used key")
		used[key] = true
	}
}

func TestQueueIDAllocator(t *testing.T) {
	var q QueueIDAllocator
	used := map[int]bool{1: true, 2: true}
	assert.Equal(t, 3, q.Allocate(used))

	full := make(map[int]bool)
	for i := QueueIDMin + 1; i <= QueueIDMax; i++ {
		full[i] = true
	}
	assert.Equal(t, 0, q.Allocate(full))
}

func TestTagAllocatorPreMarksSiblingsAndZero(t *testing.T) {
	ta := NewTagAllocator([]int{1, 2, 3})
	got := ta.Allocate()
	assert.Equal(t, 4, got)
}

func TestMACAllocatorDerivesFromIPAndAvoidsCollision(t *testing.T) {
	prefix, err := ParseMACPrefix("02:00:00")
	require.NoError(t, err)

	pool := NewMACPool()
	alloc := MACAllocator{Prefix: prefix, Pool: pool}

	mac1 := alloc.Allocate(net.ParseIP("10.0.0.2"))
	require.NotEmpty(t, mac1)
	require.NoError(t, pool.Insert(mac1, prefix, true))

	hw, err := net.ParseMAC(mac1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), hw[0])
	assert.Equal(t, byte(0x00), hw[1])
	assert.Equal(t, byte(0x00), hw[3])

	mac2 := alloc.Allocate(net.ParseIP("10.0.0.2"))
	assert.NotEqual(t, mac1, mac2, "colliding suffix must probe forward")
}

func TestGenerateMACPrefixSetsLocallyAdministeredBit(t *testing.T) {
	prefix, err := GenerateMACPrefix()
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), prefix[0]&0x03, "locally-administered bit set, multicast bit clear")

	roundTripped, err := ParseMACPrefix(prefix.String())
	require.NoError(t, err)
	assert.Equal(t, prefix, roundTripped)
}

func TestIPv4AllocatorSkipsExcludedAndFirstAddress(t *testing.T) {
	start, _ := parseIP4("10.0.0.0")
	excl, err := ParseExclusions("10.0.0.1 10.0.0.4", start, 256)
	require.NoError(t, err)
	excl[start] = true // the caller always excludes the switch's first address

	a := IPv4Allocator{Start: start, Count: 256, Excluded: excl}
	var allocated []uint64

	ip, ok := a.Allocate(allocated)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2", ip4String(ip))

	a.MarkAllocated(&allocated, ip)
	ip2, ok := a.Allocate(allocated)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.3", ip4String(ip2))
}

func TestParseExclusionsRange(t *testing.T) {
	start, _ := parseIP4("10.0.0.0")
	excl, err := ParseExclusions("10.0.0.2..10.0.0.3", start, 256)
	require.NoError(t, err)
	assert.True(t, excl[start+2])
	assert.True(t, excl[start+3])
	assert.False(t, excl[start+4])
}

func TestParseExclusionsOutsideSubnetReported(t *testing.T) {
	start, _ := parseIP4("10.0.0.0")
	_, err := ParseExclusions("192.168.0.1", start, 256)
	assert.Error(t, err)
}
