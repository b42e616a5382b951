// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/xmidt-org/kpipeline"
	"github.com/xmidt-org/wrp-go/v5"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type serialization struct{}

func (serialization) Number() int   { return 2 }
func (serialization) Title() string { return "Serialization" }
func (serialization) Description() string {
	return "Turning values into record bytes: text, JSON, typed JSON, protobuf and WRP."
}

func (serialization) Run(ctx context.Context, env *Env) error {
	topic := env.Topic("lesson02-serialization")
	out := env.Out

	p, err := env.NewProducer(nil)
	if err != nil {
		return err
	}
	defer stop(p)

	user := sampleUser(1)
	cases := []struct {
		name  string
		ser   Serializer
		value any
	}{
		{name: "string", ser: StringSerializer{}, value: "plain text"},
		{name: "json", ser: JSONSerializer{}, value: user},
		{name: "typed json", ser: TypedJSONSerializer{}, value: sampleOrder(1, "PENDING")},
		{name: "protobuf struct", ser: StructSerializer{}, value: user},
	}

	for _, c := range cases {
		out.Step("%s serializer", c.name)
		value, err := c.ser.Serialize(c.value)
		if err != nil {
			return err
		}
		r := &kpipeline.Record{Topic: topic, Key: []byte(user.UserID), Value: value}
		r.AddHeader(HeaderContentType, []byte(c.ser.ContentType()))

		res := p.ProduceSync(ctx, r)
		if res.Err != nil {
			return res.Err
		}
		out.Result("%d bytes as %s", len(value), c.ser.ContentType())
		out.Outcome(res)
	}

	out.Step("WRP envelope")
	out.Explain("the device id becomes the key and routing fields are copied into headers")
	msg := &wrp.Message{
		Type:            wrp.SimpleEventMessageType,
		Source:          "mac:112233445566",
		Destination:     "event:device-status/mac:112233445566/online",
		TransactionUUID: "d3f1a2b4-0000-4000-8000-000000000001",
		ContentType:     "application/json",
		PartnerIDs:      []string{"comcast"},
		Metadata:        map[string]string{"/boot-time": fmt.Sprint(time.Now().Unix())},
		Payload:         []byte(`{"online":true}`),
	}
	r, err := wrpRecord(topic, msg, defaultWRPHeaders...)
	if err != nil {
		return err
	}
	res := p.ProduceSync(ctx, r)
	if res.Err != nil {
		return res.Err
	}
	out.Result("event %q with %d headers", eventType(msg), len(r.Headers))
	out.Outcome(res)

	out.Step("reading the records back")
	records, err := env.Consume(ctx, topic, len(cases)+1)
	if err != nil {
		return err
	}
	for _, rec := range records {
		desc, err := describe(rec)
		if err != nil {
			out.Fail("offset %d: %v", rec.Offset, err)
			continue
		}
		out.Result("offset %d: %s", rec.Offset, desc)
	}

	out.Tip("put the content type in a header so consumers pick the right decoder")
	return nil
}

// describe decodes a record written by this lesson.
func describe(r *kgo.Record) (string, error) {
	var contentType string
	for _, h := range r.Headers {
		if h.Key == HeaderContentType {
			contentType = string(h.Value)
		}
	}

	switch contentType {
	case StringSerializer{}.ContentType():
		return fmt.Sprintf("text %q", r.Value), nil
	case JSONSerializer{}.ContentType():
		var u User
		if err := json.Unmarshal(r.Value, &u); err != nil {
			return "", err
		}
		return fmt.Sprintf("user %s <%s>", u.Name, u.Email), nil
	case TypedJSONSerializer{}.ContentType():
		var env TypedEnvelope
		if err := json.Unmarshal(r.Value, &env); err != nil {
			return "", err
		}
		return fmt.Sprintf("typed %s (%d data bytes)", env.Type, len(env.Data)), nil
	case StructSerializer{}.ContentType():
		var s structpb.Struct
		if err := proto.Unmarshal(r.Value, &s); err != nil {
			return "", err
		}
		return fmt.Sprintf("struct with %d fields", len(s.GetFields())), nil
	case WRPSerializer{}.ContentType():
		var msg wrp.Message
		if err := wrp.NewDecoderBytes(r.Value, wrp.Msgpack).Decode(&msg); err != nil {
			return "", err
		}
		return fmt.Sprintf("wrp %s from %s", msg.Type, msg.Source), nil
	}
	return fmt.Sprintf("%d bytes of %q", len(r.Value), contentType), nil
}
