package hlir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Document mirror structs. Field names follow the snapshot JSON emitted by
// the frontend; successor lists are arrays of pairs so document order
// survives decoding.

type document struct {
	Program      string        `json:"program"`
	Headers      []docHeader   `json:"headers"`
	Instances    []docInstance `json:"instances"`
	Actions      []docAction   `json:"actions"`
	Tables       []docTable    `json:"tables"`
	Conditionals []docCond     `json:"conditionals"`
	Pipelines    []docPipeline `json:"pipelines"`
	Parser       []docState    `json:"parser"`
}

type docHeader struct {
	Name   string     `json:"name"`
	Fields []docField `json:"fields"`
}

type docField struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
}

type docInstance struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Metadata bool   `json:"metadata"`
}

type docAction struct {
	Name   string    `json:"name"`
	Params []string  `json:"params"`
	Calls  []docCall `json:"calls"`
}

type docCall struct {
	Primitive string   `json:"primitive"`
	Args      []string `json:"args"`
}

type docTable struct {
	Name    string    `json:"name"`
	Key     []docKey  `json:"key"`
	Actions []string  `json:"actions"`
	Next    []docNext `json:"next"`
	Size    int       `json:"size"`
}

type docKey struct {
	Field string `json:"field"`
	Match string `json:"match"`
}

type docNext struct {
	On   string `json:"on"`
	Next string `json:"next"`
}

type docCond struct {
	Name       string   `json:"name"`
	Expression string   `json:"expression"`
	Fields     []string `json:"fields"`
	TrueNext   string   `json:"true_next"`
	FalseNext  string   `json:"false_next"`
}

type docPipeline struct {
	Name  string `json:"name"`
	Entry string `json:"entry"`
}

type docState struct {
	Name        string          `json:"name"`
	Extracts    []string        `json:"extracts"`
	Select      []string        `json:"select"`
	Transitions []docTransition `json:"transitions"`
}

type docTransition struct {
	Value string `json:"value"`
	Next  string `json:"next"`
}

// LoadOptions adjusts how a snapshot document becomes a Program.
type LoadOptions struct {
	// Primitives are supplementary primitive definitions merged over the
	// built-in set before action bodies are resolved.
	Primitives []*Primitive
}

// LoadFile reads an HLIR snapshot from disk and builds the Program.
func LoadFile(path string, opts LoadOptions) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: "snapshot not found", Path: path}
		}
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error(), Path: path}
	}
	prog, err := Load(data, opts)
	if err != nil {
		var lerr *LoadError
		if errors.As(err, &lerr) && lerr.Path == "" {
			lerr.Path = path
		}
		return nil, err
	}
	return prog, nil
}

// Load validates a snapshot document and builds the in-memory Program.
// Declarations are inserted in document order so every later walk over the
// program is deterministic.
func Load(data []byte, opts LoadOptions) (*Program, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Code: ErrCodeBadDocument, Message: err.Error()}
	}

	prog := newProgram(doc.Program)

	prims := DefaultPrimitives()
	MergePrimitives(prims, opts.Primitives)
	prog.Primitives = prims

	if err := loadHeaders(prog, doc.Headers); err != nil {
		return nil, err
	}
	if err := loadInstances(prog, doc.Instances); err != nil {
		return nil, err
	}
	if err := loadActions(prog, doc.Actions); err != nil {
		return nil, err
	}
	if err := loadTables(prog, doc.Tables); err != nil {
		return nil, err
	}
	if err := loadConditionals(prog, doc.Conditionals); err != nil {
		return nil, err
	}
	if err := loadPipelines(prog, doc.Pipelines); err != nil {
		return nil, err
	}
	if err := loadParser(prog, doc.Parser); err != nil {
		return nil, err
	}
	if err := checkSuccessors(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

func newProgram(name string) *Program {
	return &Program{
		Name:         name,
		HeaderTypes:  NewOrderedMap[*HeaderType](),
		Instances:    NewOrderedMap[*Instance](),
		Actions:      NewOrderedMap[*Action](),
		Tables:       NewOrderedMap[*Table](),
		Conditionals: NewOrderedMap[*Conditional](),
		ParseStates:  NewOrderedMap[*ParseState](),
		fieldIndex:   map[string]FieldID{},
	}
}

func loadHeaders(prog *Program, headers []docHeader) error {
	for _, h := range headers {
		if prog.HeaderTypes.Has(h.Name) {
			return duplicateErr("header type", h.Name)
		}
		ht := &HeaderType{Name: h.Name}
		seen := map[string]bool{}
		for _, f := range h.Fields {
			if seen[f.Name] {
				return duplicateErr("field", h.Name+"."+f.Name)
			}
			seen[f.Name] = true
			ht.Fields = append(ht.Fields, HeaderField{Name: f.Name, Width: f.Width})
		}
		prog.HeaderTypes.Put(h.Name, ht)
	}
	return nil
}

func loadInstances(prog *Program, instances []docInstance) error {
	for _, in := range instances {
		if prog.Instances.Has(in.Name) {
			return duplicateErr("instance", in.Name)
		}
		ht, ok := prog.HeaderTypes.Get(in.Type)
		if !ok {
			return unknownErr("header type", in.Type, "instance "+in.Name)
		}
		inst := &Instance{Name: in.Name, Type: ht, Metadata: in.Metadata}
		prog.Instances.Put(in.Name, inst)

		// One arena slot per field, offsets accumulated in declaration
		// order so debug output can show bit positions.
		offset := 0
		for _, hf := range ht.Fields {
			f := &Field{
				Instance: in.Name,
				Name:     hf.Name,
				Width:    hf.Width,
				Offset:   offset,
			}
			if err := prog.addField(f); err != nil {
				return duplicateErr("field", in.Name+"."+hf.Name)
			}
			inst.Fields = append(inst.Fields, f)
			offset += hf.Width
		}

		// Packet headers get a validity bit: add_header and remove_header
		// write it, valid matches and valid() expressions read it.
		if !in.Metadata {
			vf := &Field{Instance: in.Name, Name: "$valid$", Width: 1, Offset: offset}
			if err := prog.addField(vf); err != nil {
				return duplicateErr("field", in.Name+".$valid$")
			}
			inst.Valid = vf
		}
	}
	return nil
}

func loadActions(prog *Program, actions []docAction) error {
	for _, a := range actions {
		if prog.Actions.Has(a.Name) {
			return duplicateErr("action", a.Name)
		}
		act := &Action{
			Name:   a.Name,
			Params: append([]string(nil), a.Params...),
			reads:  prog.NewFieldSet(),
			writes: prog.NewFieldSet(),
		}
		for _, c := range a.Calls {
			prim, ok := prog.Primitives.Get(c.Primitive)
			if !ok {
				return &LoadError{
					Code:    ErrCodeUnknownPrim,
					Message: fmt.Sprintf("action %s calls unknown primitive %q", a.Name, c.Primitive),
				}
			}
			if len(c.Args) < prim.Arity() {
				return &LoadError{
					Code: ErrCodePrimArity,
					Message: fmt.Sprintf("action %s: primitive %s needs %d args, got %d",
						a.Name, prim.Name, prim.Arity(), len(c.Args)),
				}
			}
			call := PrimitiveCall{Primitive: prim}
			for _, arg := range c.Args {
				op, err := resolveOperand(prog, arg, a.Name)
				if err != nil {
					return err
				}
				call.Args = append(call.Args, op)
			}
			for _, idx := range prim.Reads {
				addOperandFields(act.reads, call.Args[idx])
			}
			for _, idx := range prim.Writes {
				addOperandFields(act.writes, call.Args[idx])
			}
			act.Calls = append(act.Calls, call)
		}
		prog.Actions.Put(a.Name, act)
	}
	return nil
}

// resolveOperand maps an argument string to a field or header instance when
// it names one. Dotted operands must resolve; anything else (action
// parameters, literals, register or counter names) passes through as raw
// text.
func resolveOperand(prog *Program, arg, action string) (Operand, error) {
	if f, ok := prog.FieldByRef(arg); ok {
		return Operand{Field: f, Raw: arg}, nil
	}
	if inst, ok := prog.Instances.Get(arg); ok {
		return Operand{Inst: inst, Raw: arg}, nil
	}
	if strings.Contains(arg, ".") {
		return Operand{}, unknownErr("field", arg, "action "+action)
	}
	return Operand{Raw: arg}, nil
}

// addOperandFields folds one operand into an access set. A header-valued
// operand contributes every field of the instance plus its validity bit.
func addOperandFields(set FieldSet, op Operand) {
	if op.Field != nil {
		set.Add(op.Field.ID)
		return
	}
	if op.Inst != nil {
		for _, f := range op.Inst.Fields {
			set.Add(f.ID)
		}
		if op.Inst.Valid != nil {
			set.Add(op.Inst.Valid.ID)
		}
	}
}

func loadTables(prog *Program, tables []docTable) error {
	for _, t := range tables {
		if prog.Tables.Has(t.Name) {
			return duplicateErr("table", t.Name)
		}
		tbl := &Table{
			Name:        t.Name,
			Next:        NewOrderedMap[string](),
			Size:        t.Size,
			keyReads:    prog.NewFieldSet(),
			actionReads: prog.NewFieldSet(),
			writes:      prog.NewFieldSet(),
		}
		for _, k := range t.Key {
			f, err := resolveKeyField(prog, t.Name, k)
			if err != nil {
				return err
			}
			tbl.Key = append(tbl.Key, TableKey{Field: f, Match: MatchType(k.Match)})
			tbl.keyReads.Add(f.ID)
		}
		for _, name := range t.Actions {
			act, ok := prog.Actions.Get(name)
			if !ok {
				return unknownErr("action", name, "table "+t.Name)
			}
			tbl.Actions = append(tbl.Actions, act)
			tbl.actionReads.Union(act.Reads())
			tbl.writes.Union(act.Writes())
		}
		for _, n := range t.Next {
			if err := checkNextLabel(tbl, n.On); err != nil {
				return err
			}
			if tbl.Next.Has(n.On) {
				return duplicateErr("next label", t.Name+":"+n.On)
			}
			tbl.Next.Put(n.On, n.Next)
		}
		prog.Tables.Put(t.Name, tbl)
	}
	return nil
}

// resolveKeyField maps one key entry to its arena field. Valid matches name
// a header instance and read its validity bit; every other match type needs
// a dotted field reference.
func resolveKeyField(prog *Program, table string, k docKey) (*Field, error) {
	if MatchType(k.Match) == MatchValid {
		inst, ok := prog.Instances.Get(k.Field)
		if !ok {
			return nil, unknownErr("instance", k.Field, "table "+table+" key")
		}
		if inst.Valid == nil {
			return nil, &LoadError{
				Code:    ErrCodeBadMatch,
				Message: fmt.Sprintf("table %s: valid match on metadata instance %q", table, k.Field),
			}
		}
		return inst.Valid, nil
	}
	f, ok := prog.FieldByRef(k.Field)
	if !ok {
		return nil, unknownErr("field", k.Field, "table "+table+" key")
	}
	return f, nil
}

// checkNextLabel accepts hit/miss/default plus any action bound to the table.
func checkNextLabel(tbl *Table, label string) error {
	switch label {
	case "hit", "miss", "default":
		return nil
	}
	for _, act := range tbl.Actions {
		if act.Name == label {
			return nil
		}
	}
	return unknownErr("next label", label, "table "+tbl.Name)
}

func loadConditionals(prog *Program, conds []docCond) error {
	for _, c := range conds {
		if prog.Conditionals.Has(c.Name) {
			return duplicateErr("conditional", c.Name)
		}
		if prog.Tables.Has(c.Name) {
			return duplicateErr("control node", c.Name)
		}
		cond := &Conditional{
			Name:       c.Name,
			Expression: c.Expression,
			TrueNext:   c.TrueNext,
			FalseNext:  c.FalseNext,
			reads:      prog.NewFieldSet(),
		}
		// A bare instance name in the field list is a valid() test and
		// reads the validity bit.
		for _, ref := range c.Fields {
			if f, ok := prog.FieldByRef(ref); ok {
				cond.reads.Add(f.ID)
				continue
			}
			if inst, ok := prog.Instances.Get(ref); ok && inst.Valid != nil {
				cond.reads.Add(inst.Valid.ID)
				continue
			}
			return unknownErr("field", ref, "conditional "+c.Name)
		}
		prog.Conditionals.Put(c.Name, cond)
	}
	return nil
}

func loadPipelines(prog *Program, pipelines []docPipeline) error {
	for _, p := range pipelines {
		if _, ok := prog.PipelineByName(p.Name); ok {
			return duplicateErr("pipeline", p.Name)
		}
		if p.Entry != "" {
			if _, ok := prog.ControlNode(p.Entry); !ok {
				return unknownErr("control node", p.Entry, "pipeline "+p.Name)
			}
		}
		prog.Pipelines = append(prog.Pipelines, &Pipeline{Name: p.Name, Entry: p.Entry})
	}
	return nil
}

func loadParser(prog *Program, states []docState) error {
	for _, s := range states {
		if prog.ParseStates.Has(s.Name) {
			return duplicateErr("parse state", s.Name)
		}
		st := &ParseState{Name: s.Name}
		for _, ref := range s.Extracts {
			inst, ok := prog.Instances.Get(ref)
			if !ok {
				return unknownErr("instance", ref, "parse state "+s.Name)
			}
			st.Extracts = append(st.Extracts, inst)
		}
		for _, ref := range s.Select {
			f, ok := prog.FieldByRef(ref)
			if !ok {
				return unknownErr("field", ref, "parse state "+s.Name)
			}
			st.Select = append(st.Select, f)
		}
		for _, tr := range s.Transitions {
			st.Transitions = append(st.Transitions, Transition{Value: tr.Value, Next: tr.Next})
		}
		prog.ParseStates.Put(s.Name, st)
	}
	return nil
}

// checkSuccessors runs after every declaration is in place: successor names
// inside next maps, conditional branches, and parser transitions may refer
// forward, so they are only checkable once loading is done.
func checkSuccessors(prog *Program) error {
	for _, name := range prog.Tables.Keys() {
		tbl, _ := prog.Tables.Get(name)
		for _, label := range tbl.Next.Keys() {
			succ, _ := tbl.Next.Get(label)
			if succ == "" {
				continue
			}
			if _, ok := prog.ControlNode(succ); !ok {
				return unknownErr("control node", succ, "table "+name+" next")
			}
		}
	}
	for _, name := range prog.Conditionals.Keys() {
		cond, _ := prog.Conditionals.Get(name)
		for _, succ := range []string{cond.TrueNext, cond.FalseNext} {
			if succ == "" {
				continue
			}
			if _, ok := prog.ControlNode(succ); !ok {
				return unknownErr("control node", succ, "conditional "+name)
			}
		}
	}
	for _, name := range prog.ParseStates.Keys() {
		st, _ := prog.ParseStates.Get(name)
		for _, tr := range st.Transitions {
			if tr.Next == "" {
				continue
			}
			if prog.ParseStates.Has(tr.Next) {
				continue
			}
			if _, ok := prog.PipelineByName(tr.Next); ok {
				continue
			}
			return unknownErr("parse state", tr.Next, "parse state "+name)
		}
	}
	return nil
}

func duplicateErr(kind, name string) error {
	return &LoadError{
		Code:    ErrCodeDuplicateName,
		Message: fmt.Sprintf("duplicate %s %q", kind, name),
	}
}

func unknownErr(kind, name, where string) error {
	return &LoadError{
		Code:    ErrCodeUnknownRef,
		Message: fmt.Sprintf("%s references unknown %s %q", where, kind, name),
	}
}
