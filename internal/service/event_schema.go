package service

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// 每种事件的必填字段，字段缺失或类型不对的事件会被跳过
const (
	schemaEnvelope = `{
		"type": "object",
		"required": ["event"],
		"properties": {
			"event": {"type": "string", "minLength": 1},
			"sessionId": {"type": "string"},
			"email": {"type": "string"},
			"password": {"type": "string"},
			"totalPages": {"type": "integer", "minimum": 0}
		}
	}`

	schemaPage = `{
		"type": "object",
		"required": ["page"],
		"properties": {"page": {"type": "integer", "minimum": 1}}
	}`

	schemaPageTime = `{
		"type": "object",
		"required": ["page", "timeSpent"],
		"properties": {
			"page": {"type": "integer", "minimum": 1},
			"timeSpent": {"type": "number", "exclusiveMinimum": 0}
		}
	}`

	schemaScroll = `{
		"type": "object",
		"required": ["page", "scrollDepth"],
		"properties": {
			"page": {"type": "integer", "minimum": 1},
			"scrollDepth": {"type": "number"}
		}
	}`

	schemaHeartbeat = `{
		"type": "object",
		"required": ["timeSpent"],
		"properties": {"timeSpent": {"type": "number", "exclusiveMinimum": 0}}
	}`

	schemaSessionEnd = `{
		"type": "object",
		"properties": {"duration": {"type": "number", "minimum": 0}}
	}`

	schemaHeatmapClick = `{
		"type": "object",
		"required": ["page", "x", "y"],
		"properties": {
			"page": {"type": "integer", "minimum": 1},
			"x": {"type": "number"},
			"y": {"type": "number"}
		}
	}`

	schemaHeatmapMove = `{
		"type": "object",
		"required": ["page", "points"],
		"properties": {
			"page": {"type": "integer", "minimum": 1},
			"points": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["x", "y"],
					"properties": {"x": {"type": "number"}, "y": {"type": "number"}}
				}
			}
		}
	}`

	schemaHeatmapScroll = `{
		"type": "object",
		"required": ["page", "scrollY"],
		"properties": {
			"page": {"type": "integer", "minimum": 1},
			"scrollY": {"type": "number"}
		}
	}`

	schemaIntent = `{
		"type": "object",
		"required": ["signal"],
		"properties": {"signal": {"type": "string", "minLength": 1}}
	}`

	schemaAllowed = `{
		"type": "object",
		"required": ["allowed"],
		"properties": {"allowed": {"type": "boolean"}}
	}`

	schemaAny = `{"type": "object"}`

	schemaPresence = `{
		"type": "object",
		"properties": {"page": {"type": "integer", "minimum": 1}}
	}`
)

var eventSchemaSources = map[string]string{
	EventSessionStart:          schemaAny,
	EventPageView:              schemaPage,
	EventPageTime:              schemaPageTime,
	EventScroll:                schemaScroll,
	EventTimeSpent:             schemaHeartbeat,
	EventSessionEnd:            schemaSessionEnd,
	EventHeatmapClick:          schemaHeatmapClick,
	EventHeatmapMove:           schemaHeatmapMove,
	EventHeatmapScrollPosition: schemaHeatmapScroll,
	EventIntentSignal:          schemaIntent,
	EventDownloadAttempt:       schemaAllowed,
	EventDownloadSuccess:       schemaAny,
	EventPrintAttempt:          schemaAllowed,
	EventPresencePing:          schemaPresence,
}

const envelopeSchemaName = "envelope"

// EventValidator 编译好的事件 schema
type EventValidator struct {
	envelope *jsonschema.Schema
	events   map[string]*jsonschema.Schema
}

func NewEventValidator() (*EventValidator, error) {
	c := jsonschema.NewCompiler()
	sources := map[string]string{envelopeSchemaName: schemaEnvelope}
	for name, src := range eventSchemaSources {
		sources[name] = src
	}
	for name, src := range sources {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", name, err)
		}
		if err := c.AddResource(schemaURL(name), doc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
	}

	v := &EventValidator{events: make(map[string]*jsonschema.Schema, len(eventSchemaSources))}
	var err error
	if v.envelope, err = c.Compile(schemaURL(envelopeSchemaName)); err != nil {
		return nil, fmt.Errorf("failed to compile envelope schema: %w", err)
	}
	for name := range eventSchemaSources {
		sch, err := c.Compile(schemaURL(name))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		v.events[name] = sch
	}
	return v, nil
}

func schemaURL(name string) string {
	return "https://doctrack.local/schemas/" + name + ".json"
}

// Known 是否是已知的事件类型
func (v *EventValidator) Known(event string) bool {
	_, ok := v.events[event]
	return ok
}

// ValidateEnvelope 校验所有事件共有的字段
func (v *EventValidator) ValidateEnvelope(instance any) error {
	return v.envelope.Validate(instance)
}

// Validate 校验某种事件的必填字段，instance 由 jsonschema.UnmarshalJSON 得到
func (v *EventValidator) Validate(event string, instance any) error {
	sch, ok := v.events[event]
	if !ok {
		return fmt.Errorf("unknown event %q", event)
	}
	return sch.Validate(instance)
}
