package hlir

import (
	"fmt"
	"strings"
)

// Field is one field of a header instance, addressed by a dense FieldID.
// Width and Offset are in bits.
type Field struct {
	ID       FieldID
	Instance string
	Name     string
	Width    int
	Offset   int
}

// String returns the canonical "instance.field" reference.
func (f *Field) String() string {
	return f.Instance + "." + f.Name
}

// HeaderField is a field declaration inside a header type.
type HeaderField struct {
	Name  string
	Width int
}

// HeaderType is a named header layout.
type HeaderType struct {
	Name   string
	Fields []HeaderField
}

// WidthBits returns the total declared width of the header type.
func (h *HeaderType) WidthBits() int {
	w := 0
	for _, f := range h.Fields {
		w += f.Width
	}
	return w
}

// Instance is a header or metadata instance of a header type. Non-metadata
// instances carry a synthesized validity bit, written by header-manipulating
// primitives and read by valid matches.
type Instance struct {
	Name     string
	Type     *HeaderType
	Metadata bool
	Fields   []*Field // arena entries, declaration order
	Valid    *Field   // synthesized "$valid$" bit; nil for metadata
}

// Operand is one argument of a primitive call. Field is non-nil when the
// argument resolved to a header field, Inst when it named a whole header
// instance; otherwise Raw holds the action parameter name or literal as
// written.
type Operand struct {
	Field *Field
	Inst  *Instance
	Raw   string
}

// PrimitiveCall is one statement of an action body.
type PrimitiveCall struct {
	Primitive *Primitive
	Args      []Operand
}

// Action is a compound action: a parameter list and a sequence of primitive
// calls. The read and write field sets are derived at load time by joining
// each call against its primitive's operand access spec; the core never
// inspects call bodies again.
type Action struct {
	Name   string
	Params []string
	Calls  []PrimitiveCall

	reads  FieldSet
	writes FieldSet
}

// Reads returns the set of fields the action body reads.
func (a *Action) Reads() FieldSet { return a.reads }

// Writes returns the set of fields the action body writes.
func (a *Action) Writes() FieldSet { return a.writes }

// MatchType classifies a table key field.
type MatchType string

// Match types accepted by the loader.
const (
	MatchExact   MatchType = "exact"
	MatchTernary MatchType = "ternary"
	MatchLPM     MatchType = "lpm"
	MatchValid   MatchType = "valid"
	MatchRange   MatchType = "range"
)

// ValidMatchTypes lists the accepted match types in schema order.
var ValidMatchTypes = []MatchType{MatchExact, MatchTernary, MatchLPM, MatchValid, MatchRange}

// TableKey is one entry of a table's ordered search key.
type TableKey struct {
	Field *Field
	Match MatchType
}

// Table is a match-action table: an ordered search key, a set of candidate
// actions, and a successor map describing where control flows next. The
// successor map is keyed by outcome label (an action name, "hit", "miss" or
// "default") and an empty successor name means the pipeline ends there.
type Table struct {
	Name    string
	Key     []TableKey
	Actions []*Action
	Next    *OrderedMap[string]
	Size    int

	keyReads    FieldSet
	actionReads FieldSet
	writes      FieldSet
}

// NodeName implements ControlNode.
func (t *Table) NodeName() string { return t.Name }

// SuccessorNames returns the distinct successor node names in declaration
// order, excluding pipeline exits.
func (t *Table) SuccessorNames() []string {
	return dedupeSuccessors(t.Next.Values())
}

// KeyReads returns the fields read by the table's match key.
func (t *Table) KeyReads() FieldSet { return t.keyReads }

// ActionReads returns the union of the candidate actions' read sets.
func (t *Table) ActionReads() FieldSet { return t.actionReads }

// Writes returns the union of the candidate actions' write sets.
func (t *Table) Writes() FieldSet { return t.writes }

// KeyWidthBits returns the total width of the match key in bits.
func (t *Table) KeyWidthBits() int {
	w := 0
	for _, k := range t.Key {
		w += k.Field.Width
	}
	return w
}

// Conditional is an if-node of the control flow: a boolean expression over
// fields with a true branch and a false branch. Conditionals read fields but
// never write them.
type Conditional struct {
	Name       string
	Expression string
	TrueNext   string
	FalseNext  string

	reads FieldSet
}

// NodeName implements ControlNode.
func (c *Conditional) NodeName() string { return c.Name }

// SuccessorNames returns the distinct branch targets, excluding pipeline
// exits.
func (c *Conditional) SuccessorNames() []string {
	return dedupeSuccessors([]string{c.TrueNext, c.FalseNext})
}

// Reads returns the fields the boolean expression reads.
func (c *Conditional) Reads() FieldSet { return c.reads }

// ControlNode is a schedulable unit of a pipeline's control flow: a Table or
// a Conditional.
type ControlNode interface {
	NodeName() string
	SuccessorNames() []string
}

// Transition is one select case of a parser state.
type Transition struct {
	Value string // match value, or "default"
	Next  string // parse state or pipeline name
}

// ParseState is one state of the packet parser. It feeds the parse graph
// only; the dependency analysis does not consume parser states.
type ParseState struct {
	Name        string
	Extracts    []*Instance
	Select      []*Field
	Transitions []Transition
}

// Pipeline names an entry point into the control flow, such as ingress or
// egress. Each pipeline is analyzed as its own dependency graph.
type Pipeline struct {
	Name  string
	Entry string // control node name; empty for an empty pipeline
}

// Program is an immutable HLIR snapshot. All collections preserve the
// declaration order of the source document.
type Program struct {
	Name         string
	HeaderTypes  *OrderedMap[*HeaderType]
	Instances    *OrderedMap[*Instance]
	Actions      *OrderedMap[*Action]
	Tables       *OrderedMap[*Table]
	Conditionals *OrderedMap[*Conditional]
	ParseStates  *OrderedMap[*ParseState]
	Pipelines    []*Pipeline
	Primitives   *OrderedMap[*Primitive]

	fields     []*Field
	fieldIndex map[string]FieldID
}

// NumFields returns the size of the field arena.
func (p *Program) NumFields() int { return len(p.fields) }

// Field returns the arena entry for id.
func (p *Program) Field(id FieldID) *Field { return p.fields[id] }

// FieldByRef resolves an "instance.field" reference.
func (p *Program) FieldByRef(ref string) (*Field, bool) {
	id, ok := p.fieldIndex[ref]
	if !ok {
		return nil, false
	}
	return p.fields[id], true
}

// NewFieldSet returns an empty field set sized for this program.
func (p *Program) NewFieldSet() FieldSet {
	return NewFieldSet(len(p.fields))
}

// ControlNode resolves a table or conditional by name.
func (p *Program) ControlNode(name string) (ControlNode, bool) {
	if t, ok := p.Tables.Get(name); ok {
		return t, true
	}
	if c, ok := p.Conditionals.Get(name); ok {
		return c, true
	}
	return nil, false
}

// PipelineByName resolves a pipeline by name.
func (p *Program) PipelineByName(name string) (*Pipeline, bool) {
	for _, pl := range p.Pipelines {
		if pl.Name == name {
			return pl, true
		}
	}
	return nil, false
}

// FieldNames renders a field set as "instance.field" references in arena
// order, joined with ", ". Used for edge labels and diagnostics.
func (p *Program) FieldNames(s FieldSet) string {
	ids := s.Members()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = p.fields[id].String()
	}
	return strings.Join(names, ", ")
}

// addField appends a field to the arena and index. Load-time only.
func (p *Program) addField(f *Field) error {
	ref := f.String()
	if _, ok := p.fieldIndex[ref]; ok {
		return fmt.Errorf("duplicate field %s", ref)
	}
	f.ID = FieldID(len(p.fields))
	p.fields = append(p.fields, f)
	p.fieldIndex[ref] = f.ID
	return nil
}

// dedupeSuccessors drops empty names and duplicates, preserving first
// occurrence order.
func dedupeSuccessors(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
