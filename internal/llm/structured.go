// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fenceRe matches a fenced code block, optionally tagged json.
var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?```")

// ParseError reports generated output that is not valid JSON or does not
// match the expected schema.
type ParseError struct {
	// Raw is the generated text as received.
	Raw string

	// Err is the decoding or validation failure.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing structured output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Schema is a compiled JSON Schema used to check structured output before
// decoding it into a Go value.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// CompileSchema compiles a JSON Schema document registered under name.
func CompileSchema(name, document string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(document)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: schema}, nil
}

// Validate checks raw JSON against the schema.
func (s *Schema) Validate(data []byte) error {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return fmt.Errorf("does not match %s: %w", s.name, err)
	}
	return nil
}

// GenerateStructured runs req through gen, extracts the JSON payload (a
// fenced code block wrapper is tolerated), validates it against schema when
// non-nil, and decodes it into out. Output problems return *ParseError;
// collaborator failures are returned unchanged.
func GenerateStructured(ctx context.Context, gen Generator, req Request, schema *Schema, out any) (Response, error) {
	resp, err := gen.Generate(ctx, req)
	if err != nil {
		return Response{}, err
	}

	payload := ExtractJSON(resp.Text)
	if payload == "" {
		return resp, &ParseError{Raw: resp.Text, Err: fmt.Errorf("no JSON object in output")}
	}
	if schema != nil {
		if err := schema.Validate([]byte(payload)); err != nil {
			return resp, &ParseError{Raw: resp.Text, Err: err}
		}
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return resp, &ParseError{Raw: resp.Text, Err: err}
	}
	return resp, nil
}

// ExtractJSON returns the JSON object in text: the body of the first fenced
// code block when present, otherwise the span from the first '{' to the last
// '}'. It returns "" when neither is found.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
