// Package testutil provides deterministic HLIR fixtures for tests.
//
// Fixtures are assembled as snapshot documents and fed through the real
// loader, so every test program passes the same schema validation and
// reference resolution as production inputs. Byte-identical documents load
// into byte-identical programs, which the determinism tests rely on.
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/p4analysis/p4deps/internal/hlir"
)

// FieldDef declares one field of a header type.
type FieldDef struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
}

// CallDef is one primitive call in an action body.
type CallDef struct {
	Primitive string   `json:"primitive"`
	Args      []string `json:"args"`
}

// KeyDef is one table key entry.
type KeyDef struct {
	Field string `json:"field"`
	Match string `json:"match"`
}

// NextDef is one successor entry of a table.
type NextDef struct {
	On   string `json:"on"`
	Next string `json:"next"`
}

// TableDef declares a match-action table.
type TableDef struct {
	Name    string    `json:"name"`
	Key     []KeyDef  `json:"key,omitempty"`
	Actions []string  `json:"actions"`
	Next    []NextDef `json:"next,omitempty"`
	Size    int       `json:"size,omitempty"`
}

// CondDef declares a conditional node.
type CondDef struct {
	Name       string   `json:"name"`
	Expression string   `json:"expression"`
	Fields     []string `json:"fields,omitempty"`
	TrueNext   string   `json:"true_next,omitempty"`
	FalseNext  string   `json:"false_next,omitempty"`
}

// StateDef declares a parser state.
type StateDef struct {
	Name        string          `json:"name"`
	Extracts    []string        `json:"extracts,omitempty"`
	Select      []string        `json:"select,omitempty"`
	Transitions []TransitionDef `json:"transitions,omitempty"`
}

// TransitionDef is one select case of a parser state.
type TransitionDef struct {
	Value string `json:"value"`
	Next  string `json:"next,omitempty"`
}

type headerDef struct {
	Name   string     `json:"name"`
	Fields []FieldDef `json:"fields"`
}

type instanceDef struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Metadata bool   `json:"metadata,omitempty"`
}

type actionDef struct {
	Name   string    `json:"name"`
	Params []string  `json:"params,omitempty"`
	Calls  []CallDef `json:"calls,omitempty"`
}

type pipelineDef struct {
	Name  string `json:"name"`
	Entry string `json:"entry,omitempty"`
}

// ProgramBuilder accumulates declarations in document order.
type ProgramBuilder struct {
	name      string
	headers   []headerDef
	instances []instanceDef
	actions   []actionDef
	tables    []TableDef
	conds     []CondDef
	pipelines []pipelineDef
	parser    []StateDef
}

// NewProgram starts an empty snapshot document.
func NewProgram(name string) *ProgramBuilder {
	return &ProgramBuilder{name: name}
}

// Header declares a header type.
func (b *ProgramBuilder) Header(name string, fields ...FieldDef) *ProgramBuilder {
	b.headers = append(b.headers, headerDef{Name: name, Fields: fields})
	return b
}

// Instance declares a packet header instance.
func (b *ProgramBuilder) Instance(name, typ string) *ProgramBuilder {
	b.instances = append(b.instances, instanceDef{Name: name, Type: typ})
	return b
}

// Metadata declares a metadata instance.
func (b *ProgramBuilder) Metadata(name, typ string) *ProgramBuilder {
	b.instances = append(b.instances, instanceDef{Name: name, Type: typ, Metadata: true})
	return b
}

// Action declares a compound action.
func (b *ProgramBuilder) Action(name string, calls ...CallDef) *ProgramBuilder {
	b.actions = append(b.actions, actionDef{Name: name, Calls: calls})
	return b
}

// Table declares a match-action table.
func (b *ProgramBuilder) Table(t TableDef) *ProgramBuilder {
	b.tables = append(b.tables, t)
	return b
}

// Cond declares a conditional node.
func (b *ProgramBuilder) Cond(c CondDef) *ProgramBuilder {
	b.conds = append(b.conds, c)
	return b
}

// Pipeline declares a pipeline entry point.
func (b *ProgramBuilder) Pipeline(name, entry string) *ProgramBuilder {
	b.pipelines = append(b.pipelines, pipelineDef{Name: name, Entry: entry})
	return b
}

// State declares a parser state.
func (b *ProgramBuilder) State(s StateDef) *ProgramBuilder {
	b.parser = append(b.parser, s)
	return b
}

// Doc renders the snapshot document as JSON.
func (b *ProgramBuilder) Doc() []byte {
	doc := map[string]any{
		"program":   b.name,
		"headers":   b.headers,
		"instances": b.instances,
		"actions":   b.actions,
		"tables":    b.tables,
		"pipelines": b.pipelines,
	}
	if b.headers == nil {
		doc["headers"] = []headerDef{}
	}
	if b.instances == nil {
		doc["instances"] = []instanceDef{}
	}
	if b.actions == nil {
		doc["actions"] = []actionDef{}
	}
	if b.tables == nil {
		doc["tables"] = []TableDef{}
	}
	if b.pipelines == nil {
		doc["pipelines"] = []pipelineDef{}
	}
	if b.conds != nil {
		doc["conditionals"] = b.conds
	}
	if b.parser != nil {
		doc["parser"] = b.parser
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return data
}

// Build loads the document through the real loader and fails the test on
// any load error.
func (b *ProgramBuilder) Build(t *testing.T) *hlir.Program {
	t.Helper()
	prog, err := hlir.Load(b.Doc(), hlir.LoadOptions{})
	require.NoError(t, err)
	return prog
}
