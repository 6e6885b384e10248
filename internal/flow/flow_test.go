package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageEncodingRoundTrips(t *testing.T) {
	s := SwitchIngress(LSInACL)
	assert.Equal(t, KindSwitch, s.Kind())
	assert.Equal(t, Ingress, s.Pipeline())
	assert.Equal(t, uint8(LSInACL), s.Table())
	assert.Equal(t, "ACL", s.Name())

	r := RouterEgress(LROutSNAT)
	assert.Equal(t, KindRouter, r.Kind())
	assert.Equal(t, Egress, r.Pipeline())
	assert.Equal(t, "SNAT", r.Name())
}

func TestBuilderStripsTrailingSeparator(t *testing.T) {
	m := NewMatchBuilder().Clause("ip4.dst == %s", "10.0.0.1").Clause("tcp.dst == %d", 80).String()
	assert.Equal(t, "ip4.dst == 10.0.0.1 && tcp.dst == 80", m)

	a := NewActionBuilder().Clause("reg0 = %s", "10.0.0.1").Clause("next").String()
	assert.Equal(t, "reg0 = 10.0.0.1; next", a)
}

func TestBuilderClauseIf(t *testing.T) {
	b := NewActionBuilder().ClauseIf(false, "skip").ClauseIf(true, "next").String()
	assert.Equal(t, "next", b)
}

func TestSetDeduplicatesIdenticalFlows(t *testing.T) {
	s := NewSet()
	f1 := &Flow{Datapath: "dp0", Stage: SwitchIngress(0), Priority: 100, Match: "m", Actions: "a"}
	f2 := &Flow{Datapath: "dp0", Stage: SwitchIngress(0), Priority: 100, Match: "m", Actions: "a"}

	require.True(t, s.Add(f1))
	require.False(t, s.Add(f2), "identical flow must not be added twice")
	assert.Equal(t, 1, s.Len())
}

func TestSetDistinguishesByMatch(t *testing.T) {
	s := NewSet()
	f1 := &Flow{Datapath: "dp0", Stage: SwitchIngress(0), Priority: 50, Match: "m1", Actions: "a"}
	f2 := &Flow{Datapath: "dp0", Stage: SwitchIngress(0), Priority: 50, Match: "m2", Actions: "a"}
	s.Add(f1)
	s.Add(f2)
	assert.Equal(t, 2, s.Len())
}
