package jsonschema

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"strconv"
	"strings"
)

// Schema is the subset of JSON Schema used to describe tool parameters and
// structured response formats. It marshals to standard JSON Schema, so it can
// be embedded directly in provider request payloads.
type Schema struct {
	// Type is the JSON type: "object", "array", "string", "number",
	// "integer", or "boolean".
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	// Required lists the object properties that must be present.
	Required []string `json:"required,omitempty"`
	// Properties maps object property names to their schemas.
	Properties map[string]*Schema `json:"properties,omitempty"`
	// Items is the element schema of an array.
	Items *Schema `json:"items,omitempty"`
	// AdditionalProperties constrains properties not listed in Properties,
	// either with a bool or with a schema for their values.
	AdditionalProperties any `json:"additionalProperties,omitempty"`
	Default              any `json:"default,omitempty"`
	// Enum restricts the value to a fixed set.
	Enum []any `json:"enum,omitempty"`
	// Ref points at an entry under Defs. References are how recursive types
	// are expressed without an infinite schema.
	Ref  string             `json:"$ref,omitempty"`
	Defs map[string]*Schema `json:"$defs,omitempty"`
}

// GenerateJSONSchema derives a schema from T by reflection. Struct fields
// follow their json tags for naming and omitempty, and the jsonschema tag
// for descriptions, enums, and explicit required marks. Pointer types
// contribute the schema of their element type. Recursive struct types come
// out as $ref entries backed by a $defs table on the root schema.
func GenerateJSONSchema[T any]() *Schema {
	g := &generator{
		visited: map[reflect.Type]string{},
		defs:    map[string]*Schema{},
	}

	t := reflect.TypeFor[T]()
	var schema *Schema
	if t.Kind() == reflect.Struct {
		schema = g.rootStruct(t)
	} else {
		schema = g.typeSchema(t, true)
	}

	if len(g.defs) > 0 {
		schema.Defs = g.defs
	}
	return schema
}

// generator accumulates shared definitions while walking a type graph.
type generator struct {
	visited map[reflect.Type]string // struct types already assigned a $defs name
	defs    map[string]*Schema
}

// rootStruct builds the schema for a top-level struct type. Only the root
// computes a required list and applies jsonschema tag options; nested object
// schemas advertise their properties alone.
func (g *generator) rootStruct(t reflect.Type) *Schema {
	defName := defNameFor(t)
	g.visited[t] = defName

	properties := map[string]*Schema{}
	var required []string

	for i := range t.NumField() {
		field := t.Field(i)
		name, omitEmpty, skip := fieldJSONName(field)
		if skip {
			continue
		}

		fieldSchema := g.typeSchema(field.Type, false)
		properties[name] = fieldSchema

		requiredByTag := false
		if fieldSchema.Ref == "" {
			var err error
			requiredByTag, err = applySchemaTag(field.Type, field.Tag, fieldSchema)
			if err != nil {
				// Keep the field schema as derived from the type alone.
				slog.Error("jsonschema: invalid jsonschema tag", "field", name, "error", err)
			}
		}

		if (field.Type.Kind() != reflect.Pointer && !omitEmpty) || requiredByTag {
			required = append(required, name)
		}
	}

	schema := &Schema{Type: "object", Properties: properties}
	if len(required) > 0 {
		schema.Required = required
	}

	// A self-referential root also needs a definition for its inner $refs
	// to resolve against.
	if hasRecursiveFields(t) {
		g.defs[defName] = &Schema{
			Type:       "object",
			Properties: maps.Clone(properties),
			Required:   schema.Required,
		}
	}

	return schema
}

// typeSchema dispatches on the kind of t. root is true only while unwrapping
// the top-level type; maps use it to attach the $defs table themselves.
func (g *generator) typeSchema(t reflect.Type, root bool) *Schema {
	switch t.Kind() {
	case reflect.Pointer:
		return g.typeSchema(t.Elem(), root)
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: g.typeSchema(t.Elem(), false)}
	case reflect.Map:
		return g.mapSchema(t, root)
	case reflect.Struct:
		return g.structRef(t)
	default:
		return primitiveSchema(t)
	}
}

// mapSchema models a map as an object whose additionalProperties carry the
// value schema. JSON object keys are strings regardless of the map key type.
func (g *generator) mapSchema(t reflect.Type, root bool) *Schema {
	schema := &Schema{
		Type:                 "object",
		AdditionalProperties: g.typeSchema(t.Elem(), false),
	}
	if root && len(g.defs) > 0 {
		schema.Defs = g.defs
	}
	return schema
}

// structRef returns the schema for a struct in field position. Plain structs
// are inlined; recursive ones are stored under $defs once and referenced.
func (g *generator) structRef(t reflect.Type) *Schema {
	if defName, ok := g.visited[t]; ok {
		return &Schema{Ref: "#/$defs/" + defName}
	}

	if !hasRecursiveFields(t) {
		return g.inlineStruct(t)
	}

	defName := defNameFor(t)
	g.visited[t] = defName
	g.defs[defName] = g.inlineStruct(t)
	return &Schema{Ref: "#/$defs/" + defName}
}

// inlineStruct builds an object schema from the exported fields of t.
func (g *generator) inlineStruct(t reflect.Type) *Schema {
	schema := &Schema{Type: "object", Properties: map[string]*Schema{}}
	for i := range t.NumField() {
		field := t.Field(i)
		name, _, skip := fieldJSONName(field)
		if skip {
			continue
		}
		schema.Properties[name] = g.typeSchema(field.Type, false)
	}
	return schema
}

// fieldJSONName resolves the property name of a struct field the way
// encoding/json would. skip is true for unexported fields and json:"-".
func fieldJSONName(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	if !field.IsExported() {
		return "", false, true
	}

	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}

	name = field.Name
	if tag != "" {
		tagName, rest, _ := strings.Cut(tag, ",")
		name = tagName
		omitEmpty = strings.Contains(rest, "omitempty")
	}
	return name, omitEmpty, false
}

// applySchemaTag folds a `jsonschema:"..."` struct tag into schema. The tag
// is a comma-separated option list: description=..., enum=... (repeatable,
// values converted to the field's Go type), and the bare word required.
// Option values run until the next comma, so they cannot contain one.
// The returned bool reports whether the tag forces the field to be required.
func applySchemaTag(fieldType reflect.Type, tag reflect.StructTag, schema *Schema) (bool, error) {
	raw := tag.Get("jsonschema")
	if raw == "" {
		return false, nil
	}

	requiredByTag := false
	for _, option := range strings.Split(raw, ",") {
		key, value, hasValue := strings.Cut(option, "=")
		switch {
		case !hasValue:
			if key == "required" {
				requiredByTag = true
			}
		case key == "description":
			schema.Description = value
		case key == "enum":
			if schema.Enum == nil {
				schema.Enum = make([]any, 0)
			}
			if err := appendEnumValue(schema, fieldType, value); err != nil {
				return false, err
			}
		}
	}
	return requiredByTag, nil
}

// appendEnumValue converts raw to the field's type and appends it to the
// schema's enum list. Only string, integer, float, and bool fields can carry
// enum tags.
func appendEnumValue(schema *Schema, fieldType reflect.Type, raw string) error {
	switch fieldType.Kind() {
	case reflect.String:
		schema.Enum = append(schema.Enum, raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("enum value %q is not an integer: %w", raw, err)
		}
		schema.Enum = append(schema.Enum, v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("enum value %q is not a number: %w", raw, err)
		}
		schema.Enum = append(schema.Enum, v)
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("enum value %q is not a boolean: %w", raw, err)
		}
		schema.Enum = append(schema.Enum, v)
	default:
		return fmt.Errorf("enum is not supported on %v fields", fieldType)
	}
	return nil
}

// primitiveSchema maps Go scalar kinds onto JSON Schema types. Kinds with no
// JSON shape, interfaces among them, come out as a permissive object.
func primitiveSchema(t reflect.Type) *Schema {
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	default:
		return &Schema{Type: "object"}
	}
}

// defNameFor names a $defs entry after its type. Anonymous structs share one
// bucket; they cannot reference themselves, so no collision arises.
func defNameFor(t reflect.Type) string {
	if t.Name() == "" {
		return "anonymousStruct"
	}
	return strings.ToLower(t.Name())
}

// hasRecursiveFields reports whether struct type t can reach itself again
// through its exported fields.
func hasRecursiveFields(t reflect.Type) bool {
	seen := map[reflect.Type]bool{t: true}
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if typeReaches(t, field.Type, seen) {
			return true
		}
	}
	return false
}

// typeReaches reports whether target is reachable from t through pointers,
// slices, arrays, and exported struct fields. seen guards against cycles
// that do not involve target.
func typeReaches(target, t reflect.Type, seen map[reflect.Type]bool) bool {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	if t == target {
		return true
	}
	if t.Kind() != reflect.Struct || seen[t] {
		return false
	}
	seen[t] = true

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if typeReaches(target, field.Type, seen) {
			return true
		}
	}
	return false
}

// JsonString renders the schema as JSON, indented when indent is true and
// compact otherwise or when indent is omitted.
func (s *Schema) JsonString(indent ...bool) (string, error) {
	marshal := json.Marshal
	if len(indent) > 0 && indent[0] {
		marshal = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	encoded, err := marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema to JSON: %w", err)
	}
	return string(encoded), nil
}

// String renders the schema as compact JSON. A marshalling failure is
// returned as an error message instead of panicking.
func (s *Schema) String() string {
	encoded, err := s.JsonString()
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return encoded
}
