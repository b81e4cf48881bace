package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaDocument []byte

const schemaURL = "iaqflow.schema.json"

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// Schema returns the raw JSON Schema of the configuration document.
func Schema() []byte {
	return bytes.Clone(schemaDocument)
}

func documentSchema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaDocument)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// validateDocument checks a generic JSON tree against the embedded schema.
func validateDocument(doc any) error {
	schema, err := documentSchema()
	if err != nil {
		return err
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	var p problems
	collectLeaves(verr, &p)
	if len(p) == 0 {
		p.add(location(verr.InstanceLocation), "%s", verr.Message)
	}
	return p.err()
}

func collectLeaves(verr *jsonschema.ValidationError, p *problems) {
	if len(verr.Causes) == 0 {
		p.add(location(verr.InstanceLocation), "%s", verr.Message)
		return
	}
	for _, cause := range verr.Causes {
		collectLeaves(cause, p)
	}
}

func location(pointer string) string {
	if pointer == "" {
		return "/"
	}
	return pointer
}
