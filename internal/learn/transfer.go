package learn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/belegwerk/docpipe/internal/common"
	"github.com/belegwerk/docpipe/internal/entity"
)

// observationSchema validates imported observation dumps before they touch
// the store.
var observationSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type":     "object",
		"required": []any{"field_type", "raw_text", "corrected_value"},
		"properties": map[string]any{
			"id":              map[string]any{"type": "string"},
			"field_type":      map[string]any{"type": "string", "minLength": 1},
			"raw_text":        map[string]any{"type": "string", "minLength": 1},
			"corrected_value": map[string]any{"type": "string", "minLength": 1},
			"user_id":         map[string]any{"type": "string"},
			"confidence":      map[string]any{"type": "number"},
			"recorded_at":     map[string]any{"type": "string"},
		},
	},
}

// ExportObservations writes the store contents as a JSON array, suitable for
// backup or for seeding another instance.
func ExportObservations(ctx context.Context, store ObservationStore, w io.Writer) error {
	all, err := store.All(ctx)
	if err != nil {
		return err
	}
	if all == nil {
		all = []entity.LearningObservation{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return common.NewAppError("LEARN_EXPORT", "encode observations", err)
	}
	return nil
}

// ImportObservations validates a JSON observation dump against the schema
// and appends every entry to the store. Returns the number imported.
func ImportObservations(ctx context.Context, store ObservationStore, data []byte) (int, error) {
	if err := validateAgainstSchema(observationSchema, data); err != nil {
		return 0, common.NewAppError("LEARN_IMPORT", "observation dump rejected", err)
	}
	var obs []entity.LearningObservation
	if err := json.Unmarshal(data, &obs); err != nil {
		return 0, common.NewAppError("LEARN_IMPORT", "decode observations", err)
	}
	for i, o := range obs {
		if err := store.Append(ctx, o); err != nil {
			return i, err
		}
	}
	return len(obs), nil
}

func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
