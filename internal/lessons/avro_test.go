// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/kpipeline/internal/config"
)

func TestAvroSerializer_WireFormat(t *testing.T) {
	t.Parallel()

	ser, err := NewAvroSerializer(orderSchemaV1, 7)
	require.NoError(t, err)

	order := sampleOrder(1, "CREATED")
	b, err := ser.Serialize(orderNative(order, false, ""))
	require.NoError(t, err)

	require.Greater(t, len(b), 5)
	assert.Equal(t, byte(0), b[0], "magic byte")
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32(b[1:5]), "schema id")

	native, err := ser.Deserialize(b)
	require.NoError(t, err)
	m := native.(map[string]any)
	assert.Equal(t, order.OrderID, m["orderId"])
	assert.Equal(t, int32(order.Quantity), m["quantity"])
}

func TestAvroSerializer_WrongSchemaID(t *testing.T) {
	t.Parallel()

	v1, err := NewAvroSerializer(orderSchemaV1, 1)
	require.NoError(t, err)
	other, err := NewAvroSerializer(orderSchemaV1, 2)
	require.NoError(t, err)

	b, err := v1.Serialize(orderNative(sampleOrder(1, "CREATED"), false, ""))
	require.NoError(t, err)

	_, err = other.Deserialize(b)
	assert.ErrorContains(t, err, "schema id 1, want 2")
}

func TestAvroSerializer_Evolution(t *testing.T) {
	t.Parallel()

	v2, err := NewAvroSerializer(orderSchemaV2, 2)
	require.NoError(t, err)

	for _, address := range []string{"1 Main St", ""} {
		b, err := v2.Serialize(orderNative(sampleOrder(3, "SHIPPED"), true, address))
		require.NoError(t, err)

		native, err := v2.Deserialize(b)
		require.NoError(t, err)
		got := native.(map[string]any)["shippingAddress"]
		if address == "" {
			assert.Nil(t, got)
			continue
		}
		assert.Equal(t, goavro.Union("string", address), got)
	}

	// the field has a default, so a v1-shaped value still encodes
	b, err := v2.Serialize(orderNative(sampleOrder(3, "SHIPPED"), false, ""))
	require.NoError(t, err)
	native, err := v2.Deserialize(b)
	require.NoError(t, err)
	assert.Nil(t, native.(map[string]any)["shippingAddress"])
}

func TestAvroSerializer_UserEvent(t *testing.T) {
	t.Parallel()

	ser, err := NewAvroSerializer(userEventSchema, 3)
	require.NoError(t, err)

	_, err = ser.Serialize(userEventNative("user-1", "LOGIN", map[string]string{"ip": "10.0.0.1"}))
	require.NoError(t, err)

	_, err = ser.Serialize(userEventNative("user-1", "CREATED", nil))
	require.NoError(t, err)

	_, err = ser.Serialize(userEventNative("user-1", "PROMOTED", nil))
	assert.Error(t, err)
}

func TestNewAvroSerializer_InvalidSchema(t *testing.T) {
	t.Parallel()

	_, err := NewAvroSerializer(`{"type": "record"}`, 1)
	assert.ErrorContains(t, err, "avro schema")
}

func TestAvro_RequiresRegistry(t *testing.T) {
	t.Parallel()

	env, _, _ := testEnv(0)
	env.Config = &config.Config{}
	err := avro{}.Run(context.Background(), env)
	assert.ErrorIs(t, err, ErrNoSchemaRegistry)
}
