package asyncapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// EventTypeExtension names the schema extension that binds a payload schema
// to a CloudEvent type
const EventTypeExtension = "x-event-type"

// EventValidator validates CloudEvent payloads against AsyncAPI schemas
type EventValidator struct {
	schemas map[string]*jsonschema.Schema
}

// CloudEvent is the part of a CloudEvent the validator reads
type CloudEvent struct {
	SpecVersion string          `json:"specversion"`
	Type        string          `json:"type"`
	Source      string          `json:"source"`
	ID          string          `json:"id"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type document struct {
	AsyncAPI   string `yaml:"asyncapi"`
	Components struct {
		Schemas map[string]map[string]any `yaml:"schemas"`
	} `yaml:"components"`
}

// NewEventValidator loads the AsyncAPI document at path
func NewEventValidator(path string) (*EventValidator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AsyncAPI spec: %w", err)
	}
	return NewEventValidatorFromBytes(data)
}

// NewEventValidatorFromBytes compiles every component schema that carries an
// x-event-type extension
func NewEventValidatorFromBytes(specBytes []byte) (*EventValidator, error) {
	var doc document
	if err := yaml.Unmarshal(specBytes, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse AsyncAPI spec: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	schemas := make(map[string]*jsonschema.Schema)

	for name, schema := range doc.Components.Schemas {
		eventType, _ := schema[EventTypeExtension].(string)
		if eventType == "" {
			continue
		}

		raw, err := json.Marshal(stripExtensions(schema))
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema %s: %w", name, err)
		}
		parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode schema %s: %w", name, err)
		}

		uri := "asyncapi://schemas/" + name
		if err := compiler.AddResource(uri, parsed); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
		compiled, err := compiler.Compile(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}

		if _, dup := schemas[eventType]; dup {
			return nil, fmt.Errorf("duplicate schema for event type %s", eventType)
		}
		schemas[eventType] = compiled
	}

	return &EventValidator{schemas: schemas}, nil
}

func stripExtensions(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if strings.HasPrefix(k, "x-") {
			continue
		}
		out[k] = v
	}
	return out
}

// ValidateEventJSON validates the data of a serialized CloudEvent against the
// schema registered for its type
func (v *EventValidator) ValidateEventJSON(eventJSON []byte) error {
	var event CloudEvent
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		return fmt.Errorf("failed to parse CloudEvent: %w", err)
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	return v.ValidateData(event.Type, event.Data)
}

// ValidateData validates a JSON payload against the schema for eventType
func (v *EventValidator) ValidateData(eventType string, data []byte) error {
	schema, ok := v.schemas[eventType]
	if !ok {
		return fmt.Errorf("no schema found for event type: %s", eventType)
	}
	if len(data) == 0 {
		return fmt.Errorf("event data is required")
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse event data: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("event data validation failed for type %s: %w", eventType, err)
	}
	return nil
}

// SupportedEventTypes returns the event types with a schema, sorted
func (v *EventValidator) SupportedEventTypes() []string {
	types := make([]string, 0, len(v.schemas))
	for eventType := range v.schemas {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}

// HasSchema reports whether eventType has a schema
func (v *EventValidator) HasSchema(eventType string) bool {
	_, ok := v.schemas[eventType]
	return ok
}
