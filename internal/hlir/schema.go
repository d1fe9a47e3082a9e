package hlir

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// documentSchema constrains HLIR snapshot documents before any IR object is
// built. The loader still performs referential checks (a schema cannot know
// whether "ipv4.ttl" names a declared field); the schema guarantees shape:
// required sections, non-empty names, legal match types, ordered successor
// lists.
const documentSchema = `
#Document: {
	program: string & !=""
	headers: [...#HeaderType]
	instances: [...#Instance]
	actions: [...#Action]
	tables: [...#Table]
	conditionals?: [...#Conditional]
	pipelines: [...#Pipeline]
	parser?: [...#ParseState]
}

#HeaderType: {
	name: string & !=""
	fields: [...{
		name:  string & !=""
		width: int & >0
	}]
}

#Instance: {
	name:      string & !=""
	type:      string & !=""
	metadata?: bool
}

#Action: {
	name:    string & !=""
	params?: [...string]
	calls?: [...#Call]
}

#Call: {
	primitive: string & !=""
	args?: [...string]
}

#Table: {
	name: string & !=""
	key?: [...{
		field: string & !=""
		match: "exact" | "ternary" | "lpm" | "valid" | "range"
	}]
	actions: [...string]
	next?: [...{
		on:   string & !=""
		next: string
	}]
	size?: int & >=0
}

#Conditional: {
	name:        string & !=""
	expression:  string
	fields?:     [...string]
	true_next?:  string
	false_next?: string
}

#Pipeline: {
	name:   string & !=""
	entry?: string
}

#ParseState: {
	name:      string & !=""
	extracts?: [...string]
	select?:   [...string]
	transitions?: [...{
		value: string & !=""
		next?: string
	}]
}
`

// validateDocument checks raw JSON against the embedded document schema.
// A fresh CUE context per call keeps the loader free of shared state. The
// concreteness check is what rejects documents with required sections
// missing; unification alone would leave them as open constraints.
func validateDocument(data []byte) error {
	expr, err := cuejson.Extract("document", data)
	if err != nil {
		return &LoadError{Code: ErrCodeBadDocument, Message: err.Error()}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(documentSchema)
	if err := schema.Err(); err != nil {
		return &LoadError{Code: ErrCodeGeneric, Message: "compiling document schema: " + err.Error()}
	}

	def := schema.LookupPath(cue.ParsePath("#Document"))
	if err := def.Err(); err != nil {
		return &LoadError{Code: ErrCodeGeneric, Message: "resolving document schema: " + err.Error()}
	}

	doc := ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return &LoadError{Code: ErrCodeBadDocument, Message: err.Error()}
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return &LoadError{Code: ErrCodeSchema, Message: formatCUEError(err)}
	}
	return nil
}

// primitiveSchema constrains supplementary primitive documents: a map from
// primitive name to operand access spec, nothing else.
const primitiveSchema = `
#PrimitiveDoc: {
	[string]: {
		reads?: [...int & >=0]
		writes?: [...int & >=0]
	}
}
`

// validatePrimitiveDoc checks a raw primitive document, JSON or YAML per
// asJSON, against the embedded primitive schema.
func validatePrimitiveDoc(path string, data []byte, asJSON bool) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(primitiveSchema)
	if err := schema.Err(); err != nil {
		return &LoadError{Code: ErrCodeGeneric, Message: "compiling primitive schema: " + err.Error()}
	}
	def := schema.LookupPath(cue.ParsePath("#PrimitiveDoc"))
	if err := def.Err(); err != nil {
		return &LoadError{Code: ErrCodeGeneric, Message: "resolving primitive schema: " + err.Error()}
	}

	var doc cue.Value
	if asJSON {
		expr, err := cuejson.Extract(path, data)
		if err != nil {
			return &LoadError{Code: ErrCodeBadPrimitiveDoc, Message: "parsing primitive doc: " + err.Error(), Path: path}
		}
		doc = ctx.BuildExpr(expr)
	} else {
		file, err := cueyaml.Extract(path, data)
		if err != nil {
			return &LoadError{Code: ErrCodeBadPrimitiveDoc, Message: "parsing primitive doc: " + err.Error(), Path: path}
		}
		doc = ctx.BuildFile(file)
	}
	if err := doc.Err(); err != nil {
		return &LoadError{Code: ErrCodeBadPrimitiveDoc, Message: "parsing primitive doc: " + err.Error(), Path: path}
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return &LoadError{Code: ErrCodeBadPrimitiveDoc, Message: formatCUEError(err), Path: path}
	}
	return nil
}

// formatCUEError flattens a CUE error list into a single message, keeping
// the first position each sub-error carries.
func formatCUEError(err error) string {
	msg := ""
	for i, e := range cueerrors.Errors(err) {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	if msg == "" {
		msg = err.Error()
	}
	return msg
}
