package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nibzard/taskman-go/internal/utils"
)

var (
	// ErrTitleRequired is returned when a title is empty after trimming.
	ErrTitleRequired = errors.New("Task must be titled")
	// ErrTitleTooLong is returned when a title exceeds MaxTitleLength.
	ErrTitleTooLong = fmt.Errorf("Titles must be shorter than %d characters", MaxTitleLength)
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path string // JSON path to the error location
	Err  error  // Underlying error
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PayloadError collects every schema violation found in one payload.
type PayloadError struct {
	Errors []*ValidationError
}

func (e *PayloadError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid payload: " + e.Errors[0].Error()
	}
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("invalid payload (%d errors): %s", len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes the individual violations to errors.Is and errors.As.
func (e *PayloadError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Kind selects which payload shape ValidateJSON expects.
type Kind int

const (
	// KindTask is a single task object.
	KindTask Kind = iota
	// KindList is an array of task objects.
	KindList
)

const schemaURL = "taskman://task.schema.json"

// payloadSchema describes what the service returns. Unknown properties are
// allowed so newer services keep working.
const payloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$defs": {
    "task": {
      "type": "object",
      "required": ["id", "title"],
      "properties": {
        "id": {"type": "integer", "minimum": 1},
        "title": {"type": "string"},
        "description": {"type": ["string", "null"]},
        "dueDate": {
          "anyOf": [
            {"type": "null"},
            {"type": "string", "format": "date"}
          ]
        },
        "completed": {"type": "boolean"}
      }
    },
    "list": {
      "type": "array",
      "items": {"$ref": "#/$defs/task"}
    }
  }
}`

var (
	schemaOnce  sync.Once
	taskSchema  *jsonschema.Schema
	listSchema  *jsonschema.Schema
	schemaError error
)

func compileSchemas() {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(schemaURL, strings.NewReader(payloadSchema)); err != nil {
		schemaError = fmt.Errorf("load payload schema: %w", err)
		return
	}
	taskSchema, schemaError = compiler.Compile(schemaURL + "#/$defs/task")
	if schemaError != nil {
		return
	}
	listSchema, schemaError = compiler.Compile(schemaURL + "#/$defs/list")
}

// ValidateJSON checks a raw payload from the service against the embedded
// schema. It returns a *PayloadError listing every violation, or a plain
// error when data is not JSON at all.
func ValidateJSON(data []byte, kind Kind) error {
	schemaOnce.Do(compileSchemas)
	if schemaError != nil {
		return schemaError
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	schema := taskSchema
	if kind == KindList {
		schema = listSchema
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		result := &PayloadError{}
		collectSchemaErrors(result, ve)
		return result
	}
	return nil
}

func collectSchemaErrors(result *PayloadError, err *jsonschema.ValidationError) {
	if err == nil {
		return
	}

	if len(err.Causes) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			Path: utils.JSONPointerToPath(err.InstanceLocation),
			Err:  errors.New(err.Message),
		})
		return
	}

	for _, cause := range err.Causes {
		collectSchemaErrors(result, cause)
	}
}
