package takeoff

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// itemSchemaJSON is deliberately permissive about types the normalizer can
// coerce (numeric strings, note arrays) and strict about what it cannot.
const itemSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name":         {"type": "string", "minLength": 1},
    "description":  {"type": ["string", "null"]},
    "quantity":     {"type": ["number", "string", "null"]},
    "unit":         {"type": ["string", "null"]},
    "location":     {"type": ["string", "null"]},
    "category":     {"type": ["string", "null"]},
    "subcategory":  {"type": ["string", "null"]},
    "cost_code":    {"type": ["string", "number", "null"]},
    "costCode":     {"type": ["string", "number", "null"]},
    "notes":        {"type": ["string", "array", "null"]},
    "dimensions":   {"type": ["string", "object", "null"]},
    "confidence":   {"type": ["number", "string", "null"]},
    "bounding_box": {"$ref": "#/definitions/box"},
    "boundingBox":  {"$ref": "#/definitions/box"}
  },
  "definitions": {
    "box": {
      "type": ["object", "null"],
      "properties": {
        "page":   {"type": ["number", "string", "null"]},
        "x":      {"type": ["number", "string", "null"]},
        "y":      {"type": ["number", "string", "null"]},
        "width":  {"type": ["number", "string", "null"]},
        "height": {"type": ["number", "string", "null"]}
      }
    }
  }
}`

var itemSchema = jsonschema.MustCompileString("takeoff_item.json", itemSchemaJSON)

// validateItem checks one raw provider item against the item schema.
func validateItem(raw json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decoding item: %w", err)
	}
	if err := itemSchema.Validate(doc); err != nil {
		return fmt.Errorf("item does not match schema: %w", err)
	}
	return nil
}
