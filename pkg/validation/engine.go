// Package validation runs a JSON-Schema (Draft 7) validator over submission
// data and translates the validator's diagnostics into the contract's
// fielded error taxonomy. The schema language itself is not reimplemented;
// the engine wraps github.com/santhosh-tekuri/jsonschema.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/codeready-toolchain/formbridge/pkg/intake"
)

// schemaURL is the internal resource name the intake schema compiles under.
const schemaURL = "intake://schema.json"

// SchemaError reports a malformed intake schema. It is a construction-time
// failure surfaced to the embedder, never a request-time failure.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return "invalid intake schema: " + e.Err.Error()
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Result is the outcome of validating one data document.
// MissingFields and InvalidFields are disjoint: a path lands in
// MissingFields exactly when its error code is "required".
type Result struct {
	IsValid       bool                `json:"isValid"`
	Errors        []intake.FieldError `json:"errors"`
	Data          map[string]any      `json:"data,omitempty"`
	MissingFields []string            `json:"missingFields"`
	InvalidFields []string            `json:"invalidFields"`
}

// Engine validates submission data against one compiled intake schema.
// The compiled validator is shared read-only across all submissions of an
// intake and is safe for concurrent use.
type Engine struct {
	schema   map[string]any
	compiled *jsonschema.Schema
	printer  *message.Printer
}

// NewEngine compiles the given JSON-Schema (Draft 7 or compatible).
// A malformed schema fails with *SchemaError.
func NewEngine(schema map[string]any) (*Engine, error) {
	doc, err := roundtrip(schema)
	if err != nil {
		return nil, &SchemaError{Err: err}
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	compiler.AssertFormat()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, &SchemaError{Err: err}
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, &SchemaError{Err: err}
	}

	return &Engine{
		schema:   schema,
		compiled: compiled,
		printer:  message.NewPrinter(language.English),
	}, nil
}

// Schema returns the schema the engine was constructed with.
func (e *Engine) Schema() map[string]any {
	return e.schema
}

// Validate checks data against the schema and returns every diagnostic in
// one pass, so an agent can fix all failures in a single round-trip. The
// engine performs no coercion: Data echoes the input.
func (e *Engine) Validate(data map[string]any) (*Result, error) {
	doc, err := roundtrip(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission data: %w", err)
	}

	verr := e.compiled.Validate(doc)
	if verr == nil {
		return &Result{
			IsValid:       true,
			Errors:        []intake.FieldError{},
			Data:          data,
			MissingFields: []string{},
			InvalidFields: []string{},
		}, nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(verr, &validationErr) {
		return nil, fmt.Errorf("schema validation failed: %w", verr)
	}

	fieldErrors := []intake.FieldError{}
	missing := []string{}
	invalid := []string{}
	for _, leaf := range collectLeaves(validationErr, nil) {
		for _, fieldErr := range e.translate(leaf) {
			fieldErrors = append(fieldErrors, fieldErr)
			if fieldErr.Code == intake.FieldErrorRequired {
				missing = append(missing, fieldErr.Path)
			} else {
				invalid = append(invalid, fieldErr.Path)
			}
		}
	}

	return &Result{
		IsValid:       false,
		Errors:        fieldErrors,
		Data:          data,
		MissingFields: missing,
		InvalidFields: invalid,
	}, nil
}

// collectLeaves walks the cause tree depth-first, preserving the
// validator's encounter order, and returns the leaf diagnostics.
func collectLeaves(verr *jsonschema.ValidationError, out []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(verr.Causes) == 0 {
		return append(out, verr)
	}
	for _, cause := range verr.Causes {
		out = collectLeaves(cause, out)
	}
	return out
}

// translate maps one validator diagnostic to the contract's field errors.
// A required diagnostic listing several missing properties expands to one
// error per property; every other diagnostic maps to exactly one.
func (e *Engine) translate(verr *jsonschema.ValidationError) []intake.FieldError {
	path := joinPath(verr.InstanceLocation)

	switch k := verr.ErrorKind.(type) {
	case *kind.Required:
		out := make([]intake.FieldError, 0, len(k.Missing))
		for _, prop := range k.Missing {
			fullPath := prop
			if path != "" {
				fullPath = path + "." + prop
			}
			out = append(out, intake.FieldError{
				Path:     fullPath,
				Code:     intake.FieldErrorRequired,
				Message:  fmt.Sprintf("Field '%s' is required but was not provided", fullPath),
				Expected: "required field",
			})
		}
		return out

	case *kind.Type:
		expected := strings.Join(k.Want, " or ")
		return []intake.FieldError{{
			Path:     path,
			Code:     intake.FieldErrorInvalidType,
			Message:  fmt.Sprintf("Field '%s' has invalid type. Expected %s, got %s", path, expected, k.Got),
			Expected: expected,
			Received: k.Got,
		}}

	case *kind.Format:
		return []intake.FieldError{{
			Path:     path,
			Code:     intake.FieldErrorInvalidFormat,
			Message:  fmt.Sprintf("Field '%s' has invalid format. Expected format: %s", path, k.Want),
			Expected: k.Want,
			Received: k.Got,
		}}

	case *kind.Pattern:
		return []intake.FieldError{{
			Path:     path,
			Code:     intake.FieldErrorInvalidFormat,
			Message:  fmt.Sprintf("Field '%s' does not match required pattern: %s", path, k.Want),
			Expected: "pattern: " + k.Want,
			Received: k.Got,
		}}

	case *kind.Enum:
		return []intake.FieldError{{
			Path:     path,
			Code:     intake.FieldErrorInvalidValue,
			Message:  fmt.Sprintf("Field '%s' has invalid value. Must be one of: %s", path, joinValues(k.Want)),
			Expected: k.Want,
			Received: k.Got,
		}}

	case *kind.Const:
		return []intake.FieldError{{
			Path:     path,
			Code:     intake.FieldErrorInvalidValue,
			Message:  fmt.Sprintf("Field '%s' has invalid value. Must be: %v", path, k.Want),
			Expected: k.Want,
			Received: k.Got,
		}}

	case *kind.MinLength:
		return []intake.FieldError{{
			Path:     path,
			Code:     intake.FieldErrorTooShort,
			Message:  fmt.Sprintf("Field '%s' is too short. Minimum length: %d, got: %d", path, k.Want, k.Got),
			Expected: fmt.Sprintf("minimum %d characters", k.Want),
			Received: fmt.Sprintf("%d characters", k.Got),
		}}

	case *kind.MaxLength:
		return []intake.FieldError{{
			Path:     path,
			Code:     intake.FieldErrorTooLong,
			Message:  fmt.Sprintf("Field '%s' is too long. Maximum length: %d, got: %d", path, k.Want, k.Got),
			Expected: fmt.Sprintf("maximum %d characters", k.Want),
			Received: fmt.Sprintf("%d characters", k.Got),
		}}

	case *kind.Minimum:
		return []intake.FieldError{boundsError(path, "minimum", ratString(k.Want), ratString(k.Got))}
	case *kind.Maximum:
		return []intake.FieldError{boundsError(path, "maximum", ratString(k.Want), ratString(k.Got))}
	case *kind.ExclusiveMinimum:
		return []intake.FieldError{boundsError(path, "exclusiveMinimum", ratString(k.Want), ratString(k.Got))}
	case *kind.ExclusiveMaximum:
		return []intake.FieldError{boundsError(path, "exclusiveMaximum", ratString(k.Want), ratString(k.Got))}
	case *kind.MultipleOf:
		return []intake.FieldError{boundsError(path, "multipleOf", ratString(k.Want), ratString(k.Got))}
	case *kind.MinItems:
		return []intake.FieldError{boundsError(path, "minItems", strconv.Itoa(k.Want), strconv.Itoa(k.Got))}
	case *kind.MaxItems:
		return []intake.FieldError{boundsError(path, "maxItems", strconv.Itoa(k.Want), strconv.Itoa(k.Got))}
	case *kind.MinProperties:
		return []intake.FieldError{boundsError(path, "minProperties", strconv.Itoa(k.Want), strconv.Itoa(k.Got))}
	case *kind.MaxProperties:
		return []intake.FieldError{boundsError(path, "maxProperties", strconv.Itoa(k.Want), strconv.Itoa(k.Got))}

	default:
		detail := verr.ErrorKind.LocalizedString(e.printer)
		return []intake.FieldError{{
			Path:    path,
			Code:    intake.FieldErrorCustom,
			Message: fmt.Sprintf("Field '%s' validation failed: %s", path, detail),
		}}
	}
}

func boundsError(path, constraint, want, got string) intake.FieldError {
	return intake.FieldError{
		Path:     path,
		Code:     intake.FieldErrorInvalidValue,
		Message:  fmt.Sprintf("Field '%s' violates %s constraint: %s", path, constraint, want),
		Expected: constraint + ": " + want,
		Received: got,
	}
}

// joinPath builds the dot-notation field path from the validator's
// instance location; array indices arrive already stringified.
func joinPath(location []string) string {
	return strings.Join(location, ".")
}

func joinValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, ", ")
}

func ratString(r *big.Rat) string {
	if r == nil {
		return ""
	}
	if r.IsInt() {
		return r.Num().String()
	}
	f, _ := r.Float64()
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// roundtrip re-encodes a document through JSON so the validator sees
// canonical JSON value types regardless of how callers built the map.
func roundtrip(doc map[string]any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}
