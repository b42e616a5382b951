// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/twmb/franz-go/pkg/sr"
	"github.com/xmidt-org/kpipeline"
	"go.uber.org/zap"
)

type avro struct{}

func (avro) Number() int   { return 11 }
func (avro) Title() string { return "Avro and the Schema Registry" }
func (avro) Description() string {
	return "Registering schemas, evolving them compatibly and writing the Confluent wire format."
}

// ErrNoSchemaRegistry is returned when no schema registry is configured.
var ErrNoSchemaRegistry = errors.New("no schema registry configured")

const orderSchemaV1 = `{
  "type": "record",
  "name": "Order",
  "namespace": "com.example.kpipeline",
  "fields": [
    {"name": "orderId", "type": "string"},
    {"name": "customerId", "type": "string"},
    {"name": "product", "type": "string"},
    {"name": "quantity", "type": "int"},
    {"name": "price", "type": "double"},
    {"name": "status", "type": "string"},
    {"name": "createdAt", "type": "long"}
  ]
}`

const orderSchemaV2 = `{
  "type": "record",
  "name": "Order",
  "namespace": "com.example.kpipeline",
  "fields": [
    {"name": "orderId", "type": "string"},
    {"name": "customerId", "type": "string"},
    {"name": "product", "type": "string"},
    {"name": "quantity", "type": "int"},
    {"name": "price", "type": "double"},
    {"name": "status", "type": "string"},
    {"name": "createdAt", "type": "long"},
    {"name": "shippingAddress", "type": ["null", "string"], "default": null}
  ]
}`

const userEventSchema = `{
  "type": "record",
  "name": "UserEvent",
  "namespace": "com.example.kpipeline",
  "fields": [
    {"name": "userId", "type": "string"},
    {"name": "eventType", "type": {"type": "enum", "name": "EventType", "symbols": ["CREATED", "UPDATED", "DELETED", "LOGIN"]}},
    {"name": "timestamp", "type": "long"},
    {"name": "metadata", "type": ["null", {"type": "map", "values": "string"}], "default": null}
  ]
}`

// AvroSerializer encodes native values with an Avro codec and prefixes the
// Confluent wire header of the registered schema.
type AvroSerializer struct {
	codec *goavro.Codec
	id    int
}

// NewAvroSerializer compiles schema for the registered schema id.
func NewAvroSerializer(schema string, id int) (*AvroSerializer, error) {
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, fmt.Errorf("avro schema: %w", err)
	}
	return &AvroSerializer{codec: codec, id: id}, nil
}

func (*AvroSerializer) ContentType() string { return "application/vnd.apache.avro+binary" }

func (s *AvroSerializer) Serialize(v any) ([]byte, error) {
	var h sr.ConfluentHeader
	b, err := h.AppendEncode(nil, s.id, nil)
	if err != nil {
		return nil, err
	}
	b, err = s.codec.BinaryFromNative(b, v)
	if err != nil {
		return nil, fmt.Errorf("avro serializer: %w", err)
	}
	return b, nil
}

// Deserialize checks the wire header and decodes the payload.
func (s *AvroSerializer) Deserialize(b []byte) (any, error) {
	var h sr.ConfluentHeader
	id, payload, err := h.DecodeID(b)
	if err != nil {
		return nil, err
	}
	if id != s.id {
		return nil, fmt.Errorf("schema id %d, want %d", id, s.id)
	}
	native, _, err := s.codec.NativeFromBinary(payload)
	return native, err
}

// orderNative is the Avro form of o. With v2 set the shipping address is
// included.
func orderNative(o Order, v2 bool, shippingAddress string) map[string]any {
	m := map[string]any{
		"orderId":    o.OrderID,
		"customerId": o.CustomerID,
		"product":    o.Product,
		"quantity":   int32(o.Quantity),
		"price":      o.Price,
		"status":     o.Status,
		"createdAt":  o.CreatedAt.UnixMilli(),
	}
	if v2 {
		if shippingAddress == "" {
			m["shippingAddress"] = nil
		} else {
			m["shippingAddress"] = goavro.Union("string", shippingAddress)
		}
	}
	return m
}

func userEventNative(userID, eventType string, metadata map[string]string) map[string]any {
	m := map[string]any{
		"userId":    userID,
		"eventType": eventType,
		"timestamp": time.Now().UnixMilli(),
		"metadata":  nil,
	}
	if metadata != nil {
		values := make(map[string]any, len(metadata))
		for k, v := range metadata {
			values[k] = v
		}
		m["metadata"] = goavro.Union("map", values)
	}
	return m
}

func (avro) Run(ctx context.Context, env *Env) error {
	topic := env.Topic("lesson11-avro")
	eventsTopic := env.Topic("lesson11-user-events")
	out := env.Out

	if env.Config.SchemaRegistryURL == "" {
		out.Fail("set schema_registry_url (or --schema-registry) to run this lesson")
		return ErrNoSchemaRegistry
	}

	registry, err := sr.NewClient(sr.URLs(env.Config.SchemaRegistryURL))
	if err != nil {
		return fmt.Errorf("schema registry client: %w", err)
	}

	subject := topic + "-value"

	out.Step("registering the order schema")
	v1, err := registry.CreateSchema(ctx, subject, sr.Schema{Schema: orderSchemaV1, Type: sr.TypeAvro})
	if err != nil {
		return fmt.Errorf("register %s: %w", subject, err)
	}
	out.Result("subject %s version %d has id %d", subject, v1.Version, v1.ID)

	p, err := env.NewProducer(nil)
	if err != nil {
		return err
	}
	defer stop(p)

	ser, err := NewAvroSerializer(orderSchemaV1, v1.ID)
	if err != nil {
		return err
	}
	if err := sendAvro(ctx, p, env, ser, topic, "order-v1", orderNative(sampleOrder(1, "CREATED"), false, "")); err != nil {
		return err
	}

	out.Step("evolving the schema")
	out.Explain("v2 adds an optional field with a default, so old readers still work")
	compat, err := registry.CheckCompatibility(ctx, subject, -1, sr.Schema{Schema: orderSchemaV2, Type: sr.TypeAvro})
	if err != nil {
		return fmt.Errorf("check compatibility: %w", err)
	}
	if !compat.Is {
		return fmt.Errorf("order schema v2 is not compatible: %v", compat.Messages)
	}
	out.Success("v2 is backward compatible")

	v2, err := registry.CreateSchema(ctx, subject, sr.Schema{Schema: orderSchemaV2, Type: sr.TypeAvro})
	if err != nil {
		return fmt.Errorf("register %s v2: %w", subject, err)
	}
	out.Result("subject %s version %d has id %d", subject, v2.Version, v2.ID)

	ser2, err := NewAvroSerializer(orderSchemaV2, v2.ID)
	if err != nil {
		return err
	}
	for _, address := range []string{"1 Main St, Springfield", ""} {
		native := orderNative(sampleOrder(2, "SHIPPED"), true, address)
		if err := sendAvro(ctx, p, env, ser2, topic, "order-v2", native); err != nil {
			return err
		}
	}

	out.Step("an enum and a map")
	eventsSubject := eventsTopic + "-value"
	ev, err := registry.CreateSchema(ctx, eventsSubject, sr.Schema{Schema: userEventSchema, Type: sr.TypeAvro})
	if err != nil {
		return fmt.Errorf("register %s: %w", eventsSubject, err)
	}
	evSer, err := NewAvroSerializer(userEventSchema, ev.ID)
	if err != nil {
		return err
	}
	events := []map[string]any{
		userEventNative("user-001", "CREATED", nil),
		userEventNative("user-001", "LOGIN", map[string]string{"ip": "10.0.0.1", "agent": "cli"}),
		userEventNative("user-001", "DELETED", nil),
	}
	for _, e := range events {
		if err := sendAvro(ctx, p, env, evSer, eventsTopic, "user-001", e); err != nil {
			return err
		}
	}

	out.Step("a value the schema rejects")
	if _, err := evSer.Serialize(userEventNative("user-002", "PROMOTED", nil)); err != nil {
		out.Result("rejected before sending: %v", err)
	} else {
		return errors.New("unknown enum symbol was accepted")
	}

	out.Tip("register schemas from CI, not from producers, and keep the compatibility level at BACKWARD or stricter")
	return nil
}

func sendAvro(ctx context.Context, p *kpipeline.Producer, env *Env, ser *AvroSerializer, topic, key string, native map[string]any) error {
	value, err := ser.Serialize(native)
	if err != nil {
		return err
	}
	r := &kpipeline.Record{Topic: topic, Key: []byte(key), Value: value}
	r.AddHeader(HeaderContentType, []byte(ser.ContentType()))

	res := p.ProduceSync(ctx, r)
	if res.Err != nil {
		return res.Err
	}

	env.log().Debug("avro record sent",
		zap.String("topic", topic),
		zap.Int("schema_id", ser.id),
		zap.Int("bytes", len(value)),
	)
	env.Out.Outcome(res)
	return nil
}
