package hlir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Primitive describes one primitive action: which operand positions its
// implementation reads and which it writes. The loader joins action bodies
// against these specs to derive per-action field sets, so the accuracy of
// the dependency graph rests on this table.
type Primitive struct {
	Name   string `json:"name"   yaml:"name"`
	Reads  []int  `json:"reads"  yaml:"reads"`
	Writes []int  `json:"writes" yaml:"writes"`
}

// Arity returns the minimum operand count the access spec requires.
func (pr *Primitive) Arity() int {
	max := 0
	for _, i := range pr.Reads {
		if i+1 > max {
			max = i + 1
		}
	}
	for _, i := range pr.Writes {
		if i+1 > max {
			max = i + 1
		}
	}
	return max
}

// DefaultPrimitives returns the built-in primitive table: the standard P4
// primitive actions with their operand access specs. Supplementary documents
// merged on top may replace any entry or add target-specific primitives.
func DefaultPrimitives() *OrderedMap[*Primitive] {
	defs := []*Primitive{
		{Name: "modify_field", Writes: []int{0}, Reads: []int{1}},
		{Name: "add_to_field", Writes: []int{0}, Reads: []int{0, 1}},
		{Name: "subtract_from_field", Writes: []int{0}, Reads: []int{0, 1}},
		{Name: "add", Writes: []int{0}, Reads: []int{1, 2}},
		{Name: "subtract", Writes: []int{0}, Reads: []int{1, 2}},
		{Name: "bit_and", Writes: []int{0}, Reads: []int{1, 2}},
		{Name: "bit_or", Writes: []int{0}, Reads: []int{1, 2}},
		{Name: "bit_xor", Writes: []int{0}, Reads: []int{1, 2}},
		{Name: "shift_left", Writes: []int{0}, Reads: []int{1, 2}},
		{Name: "shift_right", Writes: []int{0}, Reads: []int{1, 2}},
		{Name: "modify_field_with_hash_based_offset", Writes: []int{0}, Reads: []int{2}},
		{Name: "modify_field_rng_uniform", Writes: []int{0}, Reads: []int{1, 2}},
		{Name: "copy_header", Writes: []int{0}, Reads: []int{1}},
		{Name: "add_header", Writes: []int{0}},
		{Name: "remove_header", Writes: []int{0}},
		{Name: "push", Writes: []int{0}},
		{Name: "pop", Writes: []int{0}},
		{Name: "count", Reads: []int{1}},
		{Name: "execute_meter", Writes: []int{2}, Reads: []int{1}},
		{Name: "register_read", Writes: []int{0}, Reads: []int{2}},
		{Name: "register_write", Reads: []int{1, 2}},
		{Name: "generate_digest"},
		{Name: "clone_ingress_pkt_to_egress"},
		{Name: "clone_egress_pkt_to_egress"},
		{Name: "resubmit"},
		{Name: "recirculate"},
		{Name: "truncate", Reads: []int{0}},
		{Name: "drop"},
		{Name: "no_op"},
	}
	m := NewOrderedMap[*Primitive]()
	for _, d := range defs {
		m.Put(d.Name, d)
	}
	return m
}

// primitiveDoc is the document shape of a supplementary primitive file:
// a map from primitive name to access spec.
type primitiveDoc map[string]struct {
	Reads  []int `json:"reads"  yaml:"reads"`
	Writes []int `json:"writes" yaml:"writes"`
}

// LoadPrimitiveDoc reads a supplementary primitive-definition document.
// The format is chosen by extension: .json decodes as JSON, anything else
// as YAML. The raw document passes the embedded primitive schema (names to
// non-negative operand indices) before decoding. Entries are returned
// sorted by name so that merge order is independent of map iteration.
func LoadPrimitiveDoc(path string) ([]*Primitive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: fmt.Sprintf("reading primitive doc: %v", err), Path: path}
	}

	asJSON := filepath.Ext(path) == ".json"
	if err := validatePrimitiveDoc(path, data, asJSON); err != nil {
		return nil, err
	}

	var doc primitiveDoc
	if asJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &LoadError{Code: ErrCodeBadPrimitiveDoc, Message: fmt.Sprintf("decoding primitive doc: %v", err), Path: path}
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &LoadError{Code: ErrCodeBadPrimitiveDoc, Message: fmt.Sprintf("decoding primitive doc: %v", err), Path: path}
		}
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Primitive, 0, len(names))
	for _, name := range names {
		spec := doc[name]
		out = append(out, &Primitive{Name: name, Reads: spec.Reads, Writes: spec.Writes})
	}
	return out, nil
}

// MergePrimitives overlays extra definitions onto base: an existing name is
// replaced in place, a new name is appended. The base map is modified.
func MergePrimitives(base *OrderedMap[*Primitive], extra []*Primitive) {
	for _, pr := range extra {
		base.Put(pr.Name, pr)
	}
}
