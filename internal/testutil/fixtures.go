package testutil

import (
	"testing"

	"github.com/p4analysis/p4deps/internal/hlir"
)

// RoutingBuilder returns the standard L3 routing fixture: parse ethernet
// and ipv4, gate on validity and TTL, resolve a next hop, rewrite MACs on
// egress. It is the shared realistic program for exporter, store and CLI
// tests; dependency-graph scenario fixtures stay with their tests.
func RoutingBuilder() *ProgramBuilder {
	return NewProgram("basic_routing").
		Header("ethernet_t",
			FieldDef{Name: "dst_addr", Width: 48},
			FieldDef{Name: "src_addr", Width: 48},
			FieldDef{Name: "ethertype", Width: 16}).
		Header("ipv4_t",
			FieldDef{Name: "ttl", Width: 8},
			FieldDef{Name: "protocol", Width: 8},
			FieldDef{Name: "src_addr", Width: 32},
			FieldDef{Name: "dst_addr", Width: 32}).
		Header("routing_metadata_t",
			FieldDef{Name: "nhop_ipv4", Width: 32}).
		Header("standard_metadata_t",
			FieldDef{Name: "ingress_port", Width: 9},
			FieldDef{Name: "egress_spec", Width: 9},
			FieldDef{Name: "egress_port", Width: 9}).
		Instance("ethernet", "ethernet_t").
		Instance("ipv4", "ipv4_t").
		Metadata("routing_metadata", "routing_metadata_t").
		Metadata("standard_metadata", "standard_metadata_t").
		Action("set_nhop",
			CallDef{Primitive: "modify_field", Args: []string{"routing_metadata.nhop_ipv4", "nhop_ipv4"}},
			CallDef{Primitive: "modify_field", Args: []string{"standard_metadata.egress_spec", "port"}},
			CallDef{Primitive: "add_to_field", Args: []string{"ipv4.ttl", "-1"}}).
		Action("set_dmac",
			CallDef{Primitive: "modify_field", Args: []string{"ethernet.dst_addr", "dmac"}}).
		Action("rewrite_mac",
			CallDef{Primitive: "modify_field", Args: []string{"ethernet.src_addr", "smac"}}).
		Action("_drop",
			CallDef{Primitive: "drop"}).
		Table(TableDef{
			Name:    "ipv4_lpm",
			Key:     []KeyDef{{Field: "ipv4.dst_addr", Match: "lpm"}},
			Actions: []string{"set_nhop", "_drop"},
			Next:    []NextDef{{On: "default", Next: "forward"}},
			Size:    1024,
		}).
		Table(TableDef{
			Name:    "forward",
			Key:     []KeyDef{{Field: "routing_metadata.nhop_ipv4", Match: "exact"}},
			Actions: []string{"set_dmac", "_drop"},
			Next:    []NextDef{{On: "default", Next: "send_frame"}},
			Size:    512,
		}).
		Table(TableDef{
			Name:    "send_frame",
			Key:     []KeyDef{{Field: "standard_metadata.egress_port", Match: "exact"}},
			Actions: []string{"rewrite_mac", "_drop"},
			Size:    256,
		}).
		Cond(CondDef{
			Name:       "_cond_0",
			Expression: "valid(ipv4) and ipv4.ttl > 0",
			Fields:     []string{"ipv4", "ipv4.ttl"},
			TrueNext:   "ipv4_lpm",
		}).
		Pipeline("ingress", "_cond_0").
		State(StateDef{
			Name:        "start",
			Transitions: []TransitionDef{{Value: "default", Next: "parse_ethernet"}},
		}).
		State(StateDef{
			Name:     "parse_ethernet",
			Extracts: []string{"ethernet"},
			Select:   []string{"ethernet.ethertype"},
			Transitions: []TransitionDef{
				{Value: "0x0800", Next: "parse_ipv4"},
				{Value: "default", Next: "ingress"},
			},
		}).
		State(StateDef{
			Name:        "parse_ipv4",
			Extracts:    []string{"ipv4"},
			Transitions: []TransitionDef{{Value: "default", Next: "ingress"}},
		})
}

// RoutingProgram loads the routing fixture.
func RoutingProgram(t *testing.T) *hlir.Program {
	t.Helper()
	return RoutingBuilder().Build(t)
}
