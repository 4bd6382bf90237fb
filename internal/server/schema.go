package server

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/analyze.json
var analyzeSchemaJSON string

//go:embed schemas/git.json
var gitSchemaJSON string

// validator checks request bodies against a compiled JSON schema.
type validator struct {
	schema *jsonschema.Schema
}

func compileSchema(name, doc string) (*validator, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s schema: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, parsed); err != nil {
		return nil, fmt.Errorf("failed to add %s schema: %w", name, err)
	}
	sch, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s schema: %w", name, err)
	}
	return &validator{schema: sch}, nil
}

// validate reports malformed JSON and schema violations as a bad request.
func (v *validator) validate(body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return badRequest("invalid_json", fmt.Sprintf("request body is not valid JSON: %v", err))
	}
	if err := v.schema.Validate(inst); err != nil {
		return badRequest("invalid_request", err.Error())
	}
	return nil
}
