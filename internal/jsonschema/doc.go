// Package jsonschema derives JSON Schema documents from Go types using
// reflection.
//
// [GenerateJSONSchema] walks a type parameter and produces a [Schema]
// covering structs, primitives, slices, maps, and pointers. Types that
// reference themselves, directly or through other structs, are emitted once
// under $defs and pointed at with $ref so generation always terminates.
// Field schemas can be customized through `json` and `jsonschema` struct
// tags (descriptions, enums, required markers).
package jsonschema
