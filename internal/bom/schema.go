package bom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// itemsSchema describes the item list a reviewer sends back. needs_review is
// required so that a dropped flag can never pass the review gate by default.
const itemsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["line_no", "description", "nsn", "qty", "needs_review"],
    "properties": {
      "line_no": {"type": "integer", "minimum": 1},
      "description": {"type": "string"},
      "nsn": {"type": "string"},
      "qty": {"type": "integer", "minimum": 0},
      "description_confidence": {"type": "number", "minimum": 0, "maximum": 100},
      "nsn_confidence": {"type": "number", "minimum": 0, "maximum": 100},
      "qty_confidence": {"type": "number", "minimum": 0, "maximum": 100},
      "needs_review": {"type": "boolean"},
      "review_notes": {"type": ["array", "null"], "items": {"type": "string"}}
    }
  }
}`

const itemsSchemaURL = "bom-items.json"

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func itemsJSONSchema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(itemsSchemaURL, strings.NewReader(itemsSchema)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(itemsSchemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// wireItem mirrors Item with optional confidences so that omitted scores
// can be defaulted.
type wireItem struct {
	LineNo                int      `json:"line_no"`
	Description           string   `json:"description"`
	NSN                   string   `json:"nsn"`
	Qty                   int      `json:"qty"`
	DescriptionConfidence *float64 `json:"description_confidence"`
	NSNConfidence         *float64 `json:"nsn_confidence"`
	QtyConfidence         *float64 `json:"qty_confidence"`
	NeedsReview           bool     `json:"needs_review"`
	ReviewNotes           []string `json:"review_notes"`
}

// DefaultReviewedConfidence is applied to confidences a reviewer omitted.
const DefaultReviewedConfidence = 100.0

// DecodeItems parses a reviewer-edited item list. Both a bare JSON array and
// an object of the form {"items": [...]} are accepted.
func DecodeItems(data []byte) (Items, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, NewInputError("decode_items", "item payload is empty", nil)
	}

	if data[0] == '{' {
		var envelope struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, NewInputError("decode_items", "invalid item payload", err)
		}
		if len(envelope.Items) == 0 {
			return nil, NewInputError("decode_items", "item payload has no items field", nil)
		}
		data = envelope.Items
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, NewInputError("decode_items", "invalid item payload", err)
	}

	schema, err := itemsJSONSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, NewInputError("decode_items", "item payload does not match schema", err)
	}

	var wire []wireItem
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, NewInputError("decode_items", "invalid item payload", err)
	}

	items := make(Items, 0, len(wire))
	for _, w := range wire {
		items = append(items, Item{
			LineNo:                w.LineNo,
			Description:           w.Description,
			NSN:                   w.NSN,
			Qty:                   w.Qty,
			DescriptionConfidence: orDefault(w.DescriptionConfidence),
			NSNConfidence:         orDefault(w.NSNConfidence),
			QtyConfidence:         orDefault(w.QtyConfidence),
			NeedsReview:           w.NeedsReview,
			ReviewNotes:           w.ReviewNotes,
		})
	}
	return items, nil
}

// EncodeItems serializes items in the same shape DecodeItems accepts.
func EncodeItems(items Items) ([]byte, error) {
	if items == nil {
		items = Items{}
	}
	return json.MarshalIndent(items, "", "  ")
}

func orDefault(v *float64) float64 {
	if v == nil {
		return DefaultReviewedConfidence
	}
	return *v
}
