// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Acks specifies how many replicas must confirm a write before the transport
// reports a record as delivered.
type Acks string

const (
	// AcksAll waits for every in-sync replica (strongest durability). Required
	// for idempotent and transactional producers.
	AcksAll Acks = "all"

	// AcksLeader waits for the partition leader only.
	AcksLeader Acks = "leader"

	// AcksNone does not wait for the broker at all. Offsets reported for such
	// records are not meaningful.
	AcksNone Acks = "none"
)

var acksTypes map[Acks]kgo.Acks
var acksList []string

func init() {
	list := []struct {
		acks Acks
		kgo  kgo.Acks
	}{
		{AcksAll, kgo.AllISRAcks()},
		{AcksLeader, kgo.LeaderAck()},
		{AcksNone, kgo.NoAck()},
	}

	acksTypes = make(map[Acks]kgo.Acks)
	for _, a := range list {
		acksTypes[a.acks] = a.kgo
		acksList = append(acksList, string(a.acks))
	}
}

// validateAcks validates the Acks enum value.
func validateAcks(acks Acks) error {
	if acks == "" {
		return nil
	}

	if _, ok := acksTypes[acks]; ok {
		return nil
	}

	list := strings.Join(acksList, "', '")
	list = "'" + list + "'"
	return errors.Join(ErrValidation,
		fmt.Errorf("acks '%s' is invalid: must be %s or empty", acks, list))
}

// weakerThanAll reports whether acks is explicitly set below AcksAll.
func (a Acks) weakerThanAll() bool {
	return a == AcksLeader || a == AcksNone
}

// opt returns the franz-go option for acks; empty keeps the client default
// (all in-sync replicas).
func (a Acks) opt() (kgo.Opt, bool) {
	v, ok := acksTypes[a]
	if !ok {
		return nil, false
	}
	return kgo.RequiredAcks(v), true
}
