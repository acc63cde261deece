package util

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema returns a JSON schema for the given object type.
// The object should be a pointer to a struct to capture fields and tags.
// Fields without omitempty are reported as required.
func GenerateJSONSchema(obj any) json.RawMessage {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(obj)
	b, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// SchemaSet reflects every named object. Keys are kept as given.
func SchemaSet(objs map[string]any) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(objs))
	for name, obj := range objs {
		out[name] = GenerateJSONSchema(obj)
	}
	return out
}
