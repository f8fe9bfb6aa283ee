package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// requestSchemas validates request bodies against embedded JSON Schema
// documents before they reach the domain. Compiled once at construction.
type requestSchemas struct {
	register   *santhosh.Schema
	itemCreate *santhosh.Schema
	itemUpdate *santhosh.Schema
}

func loadRequestSchemas() (*requestSchemas, error) {
	s := &requestSchemas{}
	for _, def := range []struct {
		file   string
		target **santhosh.Schema
	}{
		{"schemas/register.schema.json", &s.register},
		{"schemas/item_create.schema.json", &s.itemCreate},
		{"schemas/item_update.schema.json", &s.itemUpdate},
	} {
		raw, err := schemaFS.ReadFile(def.file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", def.file, err)
		}
		compiled, err := compileSchema(def.file, raw)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", def.file, err)
		}
		*def.target = compiled
	}
	return s, nil
}

func compileSchema(name string, raw []byte) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

// readValidatedBody reads at most maxJSONBodySize bytes and validates the
// document against sch, writing a field-level 400 on violation.
func (h *Handler) readValidatedBody(w http.ResponseWriter, r *http.Request, sch *santhosh.Schema) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	var doc json.RawMessage
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}

	if msgs := validate(sch, doc); len(msgs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": msgs,
		})
		return nil, false
	}
	return doc, true
}

// validate checks doc against sch and returns the collected violation
// messages, or nil if the document conforms.
func validate(sch *santhosh.Schema, doc json.RawMessage) []string {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return []string{"body must be a json object"}
	}
	if err := sch.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return collectValidationErrors(ve)
		}
		return []string{err.Error()}
	}
	return nil
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		field := strings.TrimPrefix(ve.InstanceLocation, "/")
		if field == "" {
			msgs = append(msgs, ve.Message)
		} else {
			msgs = append(msgs, field+": "+ve.Message)
		}
	}
	return msgs
}
