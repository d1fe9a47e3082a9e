// Package hlir provides the high-level intermediate representation of a
// parsed P4 program consumed by the dependency analysis.
//
// The package does not parse P4 source. It loads an HLIR snapshot emitted by
// an external front-end as a JSON document, validates it against an embedded
// CUE schema, and materializes an immutable object graph: header types and
// instances, a dense field arena, actions with derived read/write field sets,
// match-action tables, conditionals, parser states and pipelines.
//
// Key design constraints:
//   - All collections are insertion-ordered (OrderedMap); iteration order is
//     the declaration order of the source document, never map order.
//   - Fields are addressed by dense FieldID into the program arena; field
//     sets are bitsets over those IDs, so overlap reasoning is a pure set
//     intersection with no reflection or name comparison on the hot path.
//   - A loaded Program is read-only. The analysis receives it as an explicit
//     argument; nothing in this package is process-global.
//
// All other internal packages import hlir; hlir imports only internal/bitset.
package hlir
