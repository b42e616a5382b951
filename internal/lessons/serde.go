// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// HeaderContentType carries the content type of a record value.
const HeaderContentType = "content-type"

// Serializer converts a value into record bytes.
type Serializer interface {
	Serialize(v any) ([]byte, error)

	// ContentType describes the produced bytes.
	ContentType() string
}

var errUnsupported = errors.New("unsupported value")

// StringSerializer accepts strings, byte slices and fmt.Stringers.
type StringSerializer struct{}

func (StringSerializer) ContentType() string { return "text/plain" }

func (StringSerializer) Serialize(v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	case fmt.Stringer:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("string serializer: %w %T", errUnsupported, v)
}

// JSONSerializer encodes any JSON-marshalable value.
type JSONSerializer struct{}

func (JSONSerializer) ContentType() string { return "application/json" }

func (JSONSerializer) Serialize(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json serializer: %w", err)
	}
	return b, nil
}

// TypedEnvelope is the JSON wrapper written by TypedJSONSerializer.
type TypedEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TypedJSONSerializer wraps the JSON encoding of a value with its type name so
// consumers can dispatch without a schema.
type TypedJSONSerializer struct{}

func (TypedJSONSerializer) ContentType() string { return "application/vnd.kpipeline.typed+json" }

func (TypedJSONSerializer) Serialize(v any) ([]byte, error) {
	data, err := JSONSerializer{}.Serialize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(TypedEnvelope{Type: typeName(v), Data: data})
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "null"
	}
	if t.Name() == "" {
		return t.Kind().String()
	}
	return t.Name()
}

// StructSerializer encodes a value as a protobuf google.protobuf.Struct, the
// schema-less protobuf representation of a JSON object.
type StructSerializer struct{}

func (StructSerializer) ContentType() string { return "application/x-protobuf" }

func (StructSerializer) Serialize(v any) ([]byte, error) {
	s, err := toStruct(v)
	if err != nil {
		return nil, fmt.Errorf("struct serializer: %w", err)
	}
	return proto.Marshal(s)
}

func toStruct(v any) (*structpb.Struct, error) {
	if m, ok := v.(map[string]any); ok {
		return structpb.NewStruct(m)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w %T: not an object", errUnsupported, v)
	}
	return structpb.NewStruct(m)
}
