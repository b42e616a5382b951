// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xmidt-org/kpipeline"
	"github.com/xmidt-org/wrp-go/v5"
)

// WRPSerializer encodes *wrp.Message values as msgpack.
type WRPSerializer struct{}

func (WRPSerializer) ContentType() string { return "application/msgpack" }

func (WRPSerializer) Serialize(v any) ([]byte, error) {
	msg, ok := v.(*wrp.Message)
	if !ok {
		return nil, fmt.Errorf("wrp serializer: %w %T", errUnsupported, v)
	}
	var b []byte
	err := wrp.NewEncoderBytes(&b, wrp.Msgpack).Encode(msg, wrp.NoStandardValidation())
	if err != nil {
		return nil, fmt.Errorf("wrp serializer: %w", err)
	}
	return b, nil
}

// HeaderField maps a record header to a value. A value starting with "wrp."
// names a message field, anything else is used literally.
//
// Field references are a standard field name ("wrp.Source"), an HTTP header
// of the message ("wrp.Header.X-Name", case-insensitive) or a metadata entry
// ("wrp.Metadata.key").
type HeaderField struct {
	Key   string
	Value string
}

// defaultWRPHeaders are the headers set on WRP records.
var defaultWRPHeaders = []HeaderField{
	{Key: "wrp-type", Value: "wrp.Type"},
	{Key: "wrp-device-id", Value: "wrp.DeviceID"},
	{Key: "wrp-destination", Value: "wrp.Destination"},
	{Key: "wrp-transaction-uuid", Value: "wrp.TransactionUUID"},
	{Key: "wrp-partner-id", Value: "wrp.PartnerIDs"},
	{Key: "wrp-boot-time", Value: "wrp.Metadata./boot-time"},
}

// wrpRecord builds the record of a WRP message: the msgpack envelope keyed by
// device id, with headers built from fields. Fields without a value add no
// header; multi-valued fields add one header per value.
func wrpRecord(topic string, msg *wrp.Message, fields ...HeaderField) (*kpipeline.Record, error) {
	deviceID, err := wrp.ParseDeviceID(msg.Source)
	if err != nil {
		return nil, fmt.Errorf("invalid device id in source '%s': %w", msg.Source, err)
	}

	value, err := WRPSerializer{}.Serialize(msg)
	if err != nil {
		return nil, err
	}

	r := &kpipeline.Record{
		Topic: topic,
		Key:   deviceID.Bytes(),
		Value: value,
	}
	for _, f := range fields {
		for _, v := range headerValues(msg, f.Value) {
			r.AddHeader(f.Key, []byte(v))
		}
	}
	r.AddHeader(HeaderContentType, []byte(WRPSerializer{}.ContentType()))
	return r, nil
}

func headerValues(msg *wrp.Message, value string) []string {
	field, ok := strings.CutPrefix(value, "wrp.")
	if !ok {
		return []string{value}
	}

	var out []string
	for _, v := range wrpField(msg, field) {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// wrpField returns the values of the named field of msg, or nil for unknown
// names and unset fields.
func wrpField(msg *wrp.Message, name string) []string {
	if msg == nil {
		return nil
	}

	if header, ok := strings.CutPrefix(name, "Header."); ok {
		header = strings.TrimSpace(header)
		var out []string
		for _, h := range msg.Headers {
			k, v, found := strings.Cut(h, ":")
			if found && strings.EqualFold(strings.TrimSpace(k), header) {
				out = append(out, strings.TrimSpace(v))
			}
		}
		return out
	}

	if key, ok := strings.CutPrefix(name, "Metadata."); ok {
		if v := msg.Metadata[strings.TrimSpace(key)]; v != "" {
			return []string{v}
		}
		return nil
	}

	switch name {
	case "Type":
		return []string{msg.Type.String()}
	case "Source":
		return []string{msg.Source}
	case "DeviceID":
		id, err := wrp.ParseDeviceID(msg.Source)
		if err != nil {
			return nil
		}
		return []string{id.ID()}
	case "Destination":
		return []string{msg.Destination}
	case "TransactionUUID":
		return []string{msg.TransactionUUID}
	case "ContentType":
		return []string{msg.ContentType}
	case "Status":
		if msg.Status != nil {
			return []string{strconv.FormatInt(*msg.Status, 10)}
		}
	case "Headers":
		return msg.Headers
	case "PartnerIDs":
		return msg.PartnerIDs
	case "SessionID":
		return []string{msg.SessionID}
	case "QualityOfService":
		return []string{strconv.Itoa(int(msg.QualityOfService))}
	}
	return nil
}

// eventType returns the event name of a WRP event destination, or "".
func eventType(msg *wrp.Message) string {
	if msg == nil {
		return ""
	}
	locator, err := wrp.ParseLocator(msg.Destination)
	if err != nil || locator.Scheme != "event" {
		return ""
	}
	return locator.Authority
}
