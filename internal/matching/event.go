// internal/matching/event.go
package matching

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "caregiver-matching/internal/common/errors"
	"caregiver-matching/internal/common/validation"
	"caregiver-matching/internal/models"
)

var ErrUnknownEventShape = errors.New("trigger event matches no known shape")

// seniorIDSchema accepts a plain string or a typed value wrapper in either envelope.
const seniorIDSchema = `{
	"anyOf": [
		{"type": "string", "minLength": 1},
		{
			"type": "object",
			"anyOf": [
				{"required": ["stringValue"], "properties": {"stringValue": {"type": "string", "minLength": 1}}},
				{"required": ["value"], "properties": {"value": {"type": "string", "minLength": 1}}}
			]
		}
	]
}`

const typedEventSchema = `{
	"type": "object",
	"required": ["value"],
	"properties": {
		"value": {
			"type": "object",
			"required": ["name", "fields"],
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"fields": {
					"type": "object",
					"required": ["seniorId"],
					"properties": {
						"seniorId": ` + seniorIDSchema + `
					}
				}
			}
		}
	}
}`

const bareEventSchema = `{
	"type": "object",
	"required": ["name", "fields"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"fields": {
			"type": "object",
			"required": ["seniorId"],
			"properties": {
				"seniorId": ` + seniorIDSchema + `
			}
		}
	}
}`

type document struct {
	Name   string                     `json:"name"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type eventShape struct {
	schema *validation.Schema
	decode func(raw []byte) (document, error)
}

var eventShapes = []eventShape{
	{
		schema: validation.MustCompile("typed-document-v1", typedEventSchema),
		decode: func(raw []byte) (document, error) {
			var ev struct {
				Value document `json:"value"`
			}
			err := json.Unmarshal(raw, &ev)
			return ev.Value, err
		},
	},
	{
		schema: validation.MustCompile("bare-document-v1", bareEventSchema),
		decode: func(raw []byte) (document, error) {
			var doc document
			err := json.Unmarshal(raw, &doc)
			return doc, err
		},
	},
}

// ParseTriggerEvent resolves the queue record id (last segment of the document name) and the
// senior id. The first schema that validates selects the decoder.
func ParseTriggerEvent(raw []byte) (models.TriggerRecord, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return models.TriggerRecord{}, apperrors.NewInvalidEventError(fmt.Errorf("decode event: %w", err))
	}

	for _, shape := range eventShapes {
		if res := shape.schema.Validate(generic); !res.Valid {
			continue
		}
		doc, err := shape.decode(raw)
		if err != nil {
			return models.TriggerRecord{}, apperrors.NewInvalidEventError(fmt.Errorf("%s: %w", shape.schema.Name(), err))
		}
		seniorID, err := fieldString(doc.Fields["seniorId"])
		if err != nil {
			return models.TriggerRecord{}, apperrors.NewInvalidEventError(fmt.Errorf("%s: %w", shape.schema.Name(), err))
		}
		return models.TriggerRecord{
			QueueID:  queueIDFromName(doc.Name),
			SeniorID: seniorID,
		}, nil
	}
	return models.TriggerRecord{}, apperrors.NewInvalidEventError(ErrUnknownEventShape)
}

func queueIDFromName(name string) string {
	return name[strings.LastIndex(name, "/")+1:]
}

// fieldString accepts a bare string or a typed value wrapper.
func fieldString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var typed struct {
		StringValue string `json:"stringValue"`
		Value       string `json:"value"`
	}
	if err := json.Unmarshal(raw, &typed); err != nil {
		return "", fmt.Errorf("seniorId: %w", err)
	}
	if typed.StringValue != "" {
		return typed.StringValue, nil
	}
	if typed.Value != "" {
		return typed.Value, nil
	}
	return "", errors.New("seniorId is empty")
}
