package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const recommendationsSchema = `{
  "type": "object",
  "required": ["email"],
  "properties": {
    "email": {"type": "string", "minLength": 3, "pattern": "^[^@\\s]+@[^@\\s]+$"},
    "explain": {"type": "boolean"}
  }
}`

const verifySchema = `{
  "type": "object",
  "required": ["email", "front_image", "back_image"],
  "properties": {
    "email": {"type": "string", "minLength": 3, "pattern": "^[^@\\s]+@[^@\\s]+$"},
    "front_image": {"type": "string", "minLength": 1},
    "back_image": {"type": "string", "minLength": 1}
  }
}`

var (
	recommendationsValidator = mustSchema(recommendationsSchema)
	verifyValidator          = mustSchema(verifySchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile request schema: %v", err))
	}
	return schema
}

// validateBody checks a raw JSON body against schema.
func validateBody(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}
