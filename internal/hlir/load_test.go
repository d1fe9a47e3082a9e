package hlir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routingDoc is a cut-down L3 routing program: parse ethernet/ipv4, check
// validity and TTL, resolve a next hop, rewrite MACs on the way out.
const routingDoc = `{
	"program": "basic_routing",
	"headers": [
		{"name": "ethernet_t", "fields": [
			{"name": "dst_addr", "width": 48},
			{"name": "src_addr", "width": 48},
			{"name": "ethertype", "width": 16}
		]},
		{"name": "ipv4_t", "fields": [
			{"name": "ttl", "width": 8},
			{"name": "protocol", "width": 8},
			{"name": "src_addr", "width": 32},
			{"name": "dst_addr", "width": 32}
		]},
		{"name": "routing_metadata_t", "fields": [
			{"name": "nhop_ipv4", "width": 32}
		]},
		{"name": "standard_metadata_t", "fields": [
			{"name": "ingress_port", "width": 9},
			{"name": "egress_spec", "width": 9},
			{"name": "egress_port", "width": 9}
		]}
	],
	"instances": [
		{"name": "ethernet", "type": "ethernet_t"},
		{"name": "ipv4", "type": "ipv4_t"},
		{"name": "routing_metadata", "type": "routing_metadata_t", "metadata": true},
		{"name": "standard_metadata", "type": "standard_metadata_t", "metadata": true}
	],
	"actions": [
		{"name": "set_nhop", "params": ["nhop_ipv4", "port"], "calls": [
			{"primitive": "modify_field", "args": ["routing_metadata.nhop_ipv4", "nhop_ipv4"]},
			{"primitive": "modify_field", "args": ["standard_metadata.egress_spec", "port"]},
			{"primitive": "add_to_field", "args": ["ipv4.ttl", "-1"]}
		]},
		{"name": "set_dmac", "params": ["dmac"], "calls": [
			{"primitive": "modify_field", "args": ["ethernet.dst_addr", "dmac"]}
		]},
		{"name": "rewrite_mac", "params": ["smac"], "calls": [
			{"primitive": "modify_field", "args": ["ethernet.src_addr", "smac"]}
		]},
		{"name": "_drop", "calls": [
			{"primitive": "drop"}
		]}
	],
	"tables": [
		{"name": "ipv4_lpm",
		 "key": [{"field": "ipv4.dst_addr", "match": "lpm"}],
		 "actions": ["set_nhop", "_drop"],
		 "next": [{"on": "default", "next": "forward"}],
		 "size": 1024},
		{"name": "forward",
		 "key": [{"field": "routing_metadata.nhop_ipv4", "match": "exact"}],
		 "actions": ["set_dmac", "_drop"],
		 "next": [{"on": "default", "next": "send_frame"}],
		 "size": 512},
		{"name": "send_frame",
		 "key": [{"field": "standard_metadata.egress_port", "match": "exact"}],
		 "actions": ["rewrite_mac", "_drop"],
		 "size": 256}
	],
	"conditionals": [
		{"name": "_cond_0",
		 "expression": "valid(ipv4) and ipv4.ttl > 0",
		 "fields": ["ipv4", "ipv4.ttl"],
		 "true_next": "ipv4_lpm"}
	],
	"pipelines": [
		{"name": "ingress", "entry": "_cond_0"}
	],
	"parser": [
		{"name": "start", "transitions": [
			{"value": "default", "next": "parse_ethernet"}
		]},
		{"name": "parse_ethernet", "extracts": ["ethernet"],
		 "select": ["ethernet.ethertype"],
		 "transitions": [
			{"value": "0x0800", "next": "parse_ipv4"},
			{"value": "default", "next": "ingress"}
		]},
		{"name": "parse_ipv4", "extracts": ["ipv4"], "transitions": [
			{"value": "default", "next": "ingress"}
		]}
	]
}`

func loadRouting(t *testing.T) *Program {
	t.Helper()
	prog, err := Load([]byte(routingDoc), LoadOptions{})
	require.NoError(t, err)
	return prog
}

func TestLoadProgramShape(t *testing.T) {
	prog := loadRouting(t)

	assert.Equal(t, "basic_routing", prog.Name)
	assert.Equal(t, []string{"ethernet_t", "ipv4_t", "routing_metadata_t", "standard_metadata_t"},
		prog.HeaderTypes.Keys())
	assert.Equal(t, []string{"ethernet", "ipv4", "routing_metadata", "standard_metadata"},
		prog.Instances.Keys())
	assert.Equal(t, []string{"ipv4_lpm", "forward", "send_frame"}, prog.Tables.Keys())
	assert.Equal(t, []string{"_cond_0"}, prog.Conditionals.Keys())
	assert.Equal(t, []string{"start", "parse_ethernet", "parse_ipv4"}, prog.ParseStates.Keys())
	require.Len(t, prog.Pipelines, 1)
	assert.Equal(t, "ingress", prog.Pipelines[0].Name)
	assert.Equal(t, "_cond_0", prog.Pipelines[0].Entry)
}

func TestLoadFieldArena(t *testing.T) {
	prog := loadRouting(t)

	// 3 ethernet + validity, 4 ipv4 + validity, 1 + 3 metadata.
	assert.Equal(t, 13, prog.NumFields())

	f, ok := prog.FieldByRef("ipv4.ttl")
	require.True(t, ok)
	assert.Equal(t, 8, f.Width)
	assert.Equal(t, 0, f.Offset)
	assert.Equal(t, "ipv4.ttl", f.String())

	dst, ok := prog.FieldByRef("ipv4.dst_addr")
	require.True(t, ok)
	assert.Equal(t, 48, dst.Offset)

	// Packet headers carry a synthesized validity bit, metadata does not.
	eth, _ := prog.Instances.Get("ethernet")
	require.NotNil(t, eth.Valid)
	assert.Equal(t, "ethernet.$valid$", eth.Valid.String())
	assert.Equal(t, 1, eth.Valid.Width)

	meta, _ := prog.Instances.Get("routing_metadata")
	assert.Nil(t, meta.Valid)
	require.Len(t, meta.Fields, 1)
}

func TestLoadActionAccessSets(t *testing.T) {
	prog := loadRouting(t)

	nhop, ok := prog.Actions.Get("set_nhop")
	require.True(t, ok)
	assert.Equal(t,
		"ipv4.ttl, routing_metadata.nhop_ipv4, standard_metadata.egress_spec",
		prog.FieldNames(nhop.Writes()))
	assert.Equal(t, "ipv4.ttl", prog.FieldNames(nhop.Reads()))

	drop, ok := prog.Actions.Get("_drop")
	require.True(t, ok)
	assert.True(t, drop.Reads().Empty())
	assert.True(t, drop.Writes().Empty())
}

func TestLoadTableSets(t *testing.T) {
	prog := loadRouting(t)

	lpm, _ := prog.Tables.Get("ipv4_lpm")
	assert.Equal(t, "ipv4.dst_addr", prog.FieldNames(lpm.KeyReads()))
	assert.Equal(t, "ipv4.ttl", prog.FieldNames(lpm.ActionReads()))
	assert.Equal(t,
		"ipv4.ttl, routing_metadata.nhop_ipv4, standard_metadata.egress_spec",
		prog.FieldNames(lpm.Writes()))
	assert.Equal(t, 1024, lpm.Size)
	assert.Equal(t, 32, lpm.KeyWidthBits())
	assert.Equal(t, []string{"forward"}, lpm.SuccessorNames())

	send, _ := prog.Tables.Get("send_frame")
	assert.Empty(t, send.SuccessorNames())
}

func TestLoadConditionalReadsValidity(t *testing.T) {
	prog := loadRouting(t)

	cond, ok := prog.Conditionals.Get("_cond_0")
	require.True(t, ok)
	assert.Equal(t, "ipv4.ttl, ipv4.$valid$", prog.FieldNames(cond.Reads()))
	assert.Equal(t, []string{"ipv4_lpm"}, cond.SuccessorNames())
}

func TestLoadParser(t *testing.T) {
	prog := loadRouting(t)

	pe, ok := prog.ParseStates.Get("parse_ethernet")
	require.True(t, ok)
	require.Len(t, pe.Extracts, 1)
	assert.Equal(t, "ethernet", pe.Extracts[0].Name)
	require.Len(t, pe.Select, 1)
	assert.Equal(t, "ethernet.ethertype", pe.Select[0].String())
	require.Len(t, pe.Transitions, 2)
	assert.Equal(t, "parse_ipv4", pe.Transitions[0].Next)
	assert.Equal(t, "ingress", pe.Transitions[1].Next)
}

func TestLoadSchemaRejectsBadMatchType(t *testing.T) {
	doc := `{
		"program": "p",
		"headers": [{"name": "h_t", "fields": [{"name": "f", "width": 8}]}],
		"instances": [{"name": "h", "type": "h_t"}],
		"actions": [],
		"tables": [{"name": "t", "key": [{"field": "h.f", "match": "fuzzy"}], "actions": []}],
		"pipelines": []
	}`
	_, err := Load([]byte(doc), LoadOptions{})
	require.Error(t, err)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrCodeSchema, lerr.Code)
	assert.Contains(t, lerr.Message, "match")
}

func TestLoadSchemaRejectsMissingSections(t *testing.T) {
	_, err := Load([]byte(`{"program": "p"}`), LoadOptions{})
	require.Error(t, err)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrCodeSchema, lerr.Code)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	_, err := Load([]byte(`{"program": `), LoadOptions{})
	require.Error(t, err)
	assert.True(t, IsLoadError(err))
}

func TestLoadUnknownKeyField(t *testing.T) {
	doc := `{
		"program": "p",
		"headers": [{"name": "h_t", "fields": [{"name": "f", "width": 8}]}],
		"instances": [{"name": "h", "type": "h_t"}],
		"actions": [],
		"tables": [{"name": "t", "key": [{"field": "h.missing", "match": "exact"}], "actions": []}],
		"pipelines": []
	}`
	_, err := Load([]byte(doc), LoadOptions{})
	requireLoadCode(t, err, ErrCodeUnknownRef)
}

func TestLoadUnknownPrimitive(t *testing.T) {
	doc := `{
		"program": "p",
		"headers": [],
		"instances": [],
		"actions": [{"name": "a", "calls": [{"primitive": "frobnicate", "args": []}]}],
		"tables": [],
		"pipelines": []
	}`
	_, err := Load([]byte(doc), LoadOptions{})
	requireLoadCode(t, err, ErrCodeUnknownPrim)
}

func TestLoadPrimitiveArity(t *testing.T) {
	doc := `{
		"program": "p",
		"headers": [{"name": "h_t", "fields": [{"name": "f", "width": 8}]}],
		"instances": [{"name": "h", "type": "h_t"}],
		"actions": [{"name": "a", "calls": [{"primitive": "modify_field", "args": ["h.f"]}]}],
		"tables": [],
		"pipelines": []
	}`
	_, err := Load([]byte(doc), LoadOptions{})
	requireLoadCode(t, err, ErrCodePrimArity)
}

func TestLoadDuplicateTable(t *testing.T) {
	doc := `{
		"program": "p",
		"headers": [],
		"instances": [],
		"actions": [],
		"tables": [
			{"name": "t", "actions": []},
			{"name": "t", "actions": []}
		],
		"pipelines": []
	}`
	_, err := Load([]byte(doc), LoadOptions{})
	requireLoadCode(t, err, ErrCodeDuplicateName)
}

func TestLoadValidMatchReadsValidityBit(t *testing.T) {
	doc := `{
		"program": "p",
		"headers": [{"name": "h_t", "fields": [{"name": "f", "width": 8}]}],
		"instances": [{"name": "h", "type": "h_t"}],
		"actions": [],
		"tables": [{"name": "t", "key": [{"field": "h", "match": "valid"}], "actions": []}],
		"pipelines": []
	}`
	prog, err := Load([]byte(doc), LoadOptions{})
	require.NoError(t, err)

	tbl, _ := prog.Tables.Get("t")
	assert.Equal(t, "h.$valid$", prog.FieldNames(tbl.KeyReads()))
	assert.Equal(t, 1, tbl.KeyWidthBits())
}

func TestLoadValidMatchOnMetadata(t *testing.T) {
	doc := `{
		"program": "p",
		"headers": [{"name": "m_t", "fields": [{"name": "f", "width": 8}]}],
		"instances": [{"name": "m", "type": "m_t", "metadata": true}],
		"actions": [],
		"tables": [{"name": "t", "key": [{"field": "m", "match": "valid"}], "actions": []}],
		"pipelines": []
	}`
	_, err := Load([]byte(doc), LoadOptions{})
	requireLoadCode(t, err, ErrCodeBadMatch)
}

func TestLoadHeaderOperandExpandsToFields(t *testing.T) {
	doc := `{
		"program": "p",
		"headers": [{"name": "h_t", "fields": [
			{"name": "a", "width": 8},
			{"name": "b", "width": 8}
		]}],
		"instances": [{"name": "h", "type": "h_t"}],
		"actions": [{"name": "strip", "calls": [{"primitive": "remove_header", "args": ["h"]}]}],
		"tables": [],
		"pipelines": []
	}`
	prog, err := Load([]byte(doc), LoadOptions{})
	require.NoError(t, err)

	strip, _ := prog.Actions.Get("strip")
	assert.Equal(t, "h.a, h.b, h.$valid$", prog.FieldNames(strip.Writes()))
	assert.True(t, strip.Reads().Empty())
}

func TestLoadUnknownSuccessor(t *testing.T) {
	doc := `{
		"program": "p",
		"headers": [],
		"instances": [],
		"actions": [],
		"tables": [{"name": "t", "actions": [], "next": [{"on": "default", "next": "ghost"}]}],
		"pipelines": []
	}`
	_, err := Load([]byte(doc), LoadOptions{})
	requireLoadCode(t, err, ErrCodeUnknownRef)
}

func TestLoadForwardSuccessorReference(t *testing.T) {
	// t1 names t2 before t2 is declared; resolution is a post-pass.
	doc := `{
		"program": "p",
		"headers": [],
		"instances": [],
		"actions": [],
		"tables": [
			{"name": "t1", "actions": [], "next": [{"on": "default", "next": "t2"}]},
			{"name": "t2", "actions": []}
		],
		"pipelines": [{"name": "ingress", "entry": "t1"}]
	}`
	prog, err := Load([]byte(doc), LoadOptions{})
	require.NoError(t, err)

	t1, _ := prog.Tables.Get("t1")
	assert.Equal(t, []string{"t2"}, t1.SuccessorNames())
}

func TestLoadSupplementaryPrimitives(t *testing.T) {
	doc := `{
		"program": "p",
		"headers": [{"name": "h_t", "fields": [{"name": "f", "width": 8}]}],
		"instances": [{"name": "h", "type": "h_t"}],
		"actions": [{"name": "a", "calls": [{"primitive": "scrub", "args": ["h.f"]}]}],
		"tables": [],
		"pipelines": []
	}`
	_, err := Load([]byte(doc), LoadOptions{})
	requireLoadCode(t, err, ErrCodeUnknownPrim)

	prog, err := Load([]byte(doc), LoadOptions{
		Primitives: []*Primitive{{Name: "scrub", Writes: []int{0}}},
	})
	require.NoError(t, err)

	a, _ := prog.Actions.Get("a")
	assert.Equal(t, "h.f", prog.FieldNames(a.Writes()))
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"), LoadOptions{})
	requireLoadCode(t, err, ErrCodeNotFound)
}

func TestLoadFileAttachesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(routingDoc), 0o644))

	prog, err := LoadFile(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "basic_routing", prog.Name)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"program": "p"}`), 0o644))
	_, err = LoadFile(bad, LoadOptions{})
	require.Error(t, err)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, bad, lerr.Path)
}

func requireLoadCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, code, lerr.Code)
}
