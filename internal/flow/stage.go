// Package flow builds and holds the logical-flow program: the match/action
// string builder (spec.md §9 "Match/action construction"), the Stage
// encoding (spec.md §9 "Tagged sum types... Stage is encoded as
// (kind<<9) | (pipeline<<8) | table"), and the deduplicating flow Set that
// backs the differ (C9).
package flow

// Kind distinguishes a switch datapath's pipeline tables from a router's.
type Kind uint8

const (
	KindSwitch Kind = iota
	KindRouter
)

// Pipeline is ingress or egress, spec.md §3 "Logical flow".
type Pipeline uint8

const (
	Ingress Pipeline = iota
	Egress
)

func (p Pipeline) String() string {
	if p == Egress {
		return "egress"
	}
	return "ingress"
}

// Stage is the private (kind, pipeline, table) encoding named in spec.md §9;
// callers use the named Stage constants below, never raw table numbers.
type Stage uint32

func newStage(kind Kind, pipeline Pipeline, table uint8) Stage {
	return Stage(uint32(kind)<<9 | uint32(pipeline)<<8 | uint32(table))
}

// Kind, Pipeline, and Table recover the three encoded fields.
func (s Stage) Kind() Kind         { return Kind(s >> 9) }
func (s Stage) Pipeline() Pipeline { return Pipeline((s >> 8) & 1) }
func (s Stage) Table() uint8       { return uint8(s & 0xFF) }

// Logical-switch ingress stages (spec.md §4.7).
const (
	LSInPortSecL2 = iota
	LSInPortSecIP
	LSInPortSecND
	LSInPreACL
	LSInPreLB
	LSInPreStateful
	LSInACL
	LSInQoSMark
	LSInQoSMeter
	LSInLB
	LSInStateful
	LSInArpNdRsp
	LSInDHCPOptions
	LSInDHCPResponse
	LSInDNSLookup
	LSInDNSResponse
	LSInExternalPort
	LSInL2Lkup
)

// Logical-switch egress stages (spec.md §4.7).
const (
	LSOutPreLB = iota
	LSOutPreACL
	LSOutPreStateful
	LSOutLB
	LSOutACL
	LSOutQoSMark
	LSOutQoSMeter
	LSOutStateful
	LSOutPortSecIP
	LSOutPortSecL2
)

// Logical-router ingress stages (spec.md §4.8).
const (
	LRInAdmission = iota
	LRInLookupNeighbor
	LRInLearnNeighbor
	LRInIPInput
	LRInUnSNAT
	LRInDefrag
	LRInDNAT
	LRInECMPStateful
	LRInPolicy
	LRInIPRouting
	LRInPolicyReroute
	LRInArpResolve
	LRInCheckPktLen
	LRInLargePktICMP
	LRInGatewayRedirect
	LRInArpRequest
)

// Logical-router egress stages (spec.md §4.8).
const (
	LROutUnDNAT = iota
	LROutSNAT
	LROutEgressLoop
	LROutDelivery
)

var lsInNames = [...]string{
	"PORT_SEC_L2", "PORT_SEC_IP", "PORT_SEC_ND", "PRE_ACL", "PRE_LB",
	"PRE_STATEFUL", "ACL", "QOS_MARK", "QOS_METER", "LB", "STATEFUL",
	"ARP_ND_RSP", "DHCP_OPTIONS", "DHCP_RESPONSE", "DNS_LOOKUP",
	"DNS_RESPONSE", "EXTERNAL_PORT", "L2_LKUP",
}

var lsOutNames = [...]string{
	"PRE_LB", "PRE_ACL", "PRE_STATEFUL", "LB", "ACL", "QOS_MARK",
	"QOS_METER", "STATEFUL", "PORT_SEC_IP", "PORT_SEC_L2",
}

var lrInNames = [...]string{
	"ADMISSION", "LOOKUP_NEIGHBOR", "LEARN_NEIGHBOR", "IP_INPUT", "UNSNAT",
	"DEFRAG", "DNAT", "ECMP_STATEFUL", "POLICY", "IP_ROUTING",
	"POLICY_ECMP_REROUTE", "ARP_RESOLVE", "CHK_PKT_LEN", "LARGER_PKTS",
	"GW_REDIRECT", "ARP_REQUEST",
}

var lrOutNames = [...]string{
	"UNDNAT", "SNAT", "EGRESS_LOOPBACK", "DELIVERY",
}

// SwitchIngress returns the Stage for the named ingress table index (0..17).
func SwitchIngress(table int) Stage { return newStage(KindSwitch, Ingress, uint8(table)) }

// SwitchEgress returns the Stage for the named egress table index (0..9).
func SwitchEgress(table int) Stage { return newStage(KindSwitch, Egress, uint8(table)) }

// RouterIngress returns the Stage for the named ingress table index (0..15).
func RouterIngress(table int) Stage { return newStage(KindRouter, Ingress, uint8(table)) }

// RouterEgress returns the Stage for the named egress table index (0..3).
func RouterEgress(table int) Stage { return newStage(KindRouter, Egress, uint8(table)) }

// Name returns the externally-visible stage name (spec.md §4.7/§4.8: "names
// and numeric table indices are fixed and externally visible").
func (s Stage) Name() string {
	t := int(s.Table())
	switch {
	case s.Kind() == KindSwitch && s.Pipeline() == Ingress && t < len(lsInNames):
		return lsInNames[t]
	case s.Kind() == KindSwitch && s.Pipeline() == Egress && t < len(lsOutNames):
		return lsOutNames[t]
	case s.Kind() == KindRouter && s.Pipeline() == Ingress && t < len(lrInNames):
		return lrInNames[t]
	case s.Kind() == KindRouter && s.Pipeline() == Egress && t < len(lrOutNames):
		return lrOutNames[t]
	default:
		return "UNKNOWN"
	}
}
