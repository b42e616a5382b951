// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"errors"
	"fmt"
	"strings"
)

// RoutingRule maps keys starting with Prefix to Partition.
type RoutingRule struct {
	// Prefix is matched against the start of the record key. Required.
	Prefix string

	// CaseInsensitive enables case-insensitive prefix matching.
	CaseInsensitive bool

	// Partition is the target partition. It is reduced modulo the topic's
	// partition count when the rule is evaluated, so rules written for a
	// different partition count still produce a valid index.
	Partition int
}

// matches reports whether key starts with the rule's prefix.
func (rule *RoutingRule) matches(key string) bool {
	if len(key) < len(rule.Prefix) {
		return false
	}

	head := key[:len(rule.Prefix)]
	if rule.CaseInsensitive {
		return strings.EqualFold(head, rule.Prefix)
	}
	return head == rule.Prefix
}

// Router maps a record key to a partition index.
//
// Rules are evaluated in declaration order and the first match wins. Records
// without a key, and keys matching no rule, go to Fallback. Every index is
// reduced modulo the partition count at evaluation time.
//
// Route is a pure function of its inputs, so records with the same key always
// land on the same partition for a given partition count. A Router must not be
// modified once it is in use.
type Router struct {
	// Rules are the prefix rules, evaluated top to bottom.
	Rules []RoutingRule

	// Fallback is the partition used for absent keys and unmatched keys.
	Fallback int
}

// RegionRouter returns a Router that sends "US-" keys to partition 0, "EU-"
// keys to partition 1, "APAC-" keys to partition 2 and everything else to
// partition 3.
func RegionRouter() *Router {
	return &Router{
		Rules: []RoutingRule{
			{Prefix: "US-", Partition: 0},
			{Prefix: "EU-", Partition: 1},
			{Prefix: "APAC-", Partition: 2},
		},
		Fallback: 3,
	}
}

// Route returns the partition for key, in the range [0, partitions).
// A partition count below one yields partition 0.
func (rt *Router) Route(_ string, key []byte, partitions int) int {
	if partitions <= 1 {
		return 0
	}

	if len(key) == 0 {
		return reduce(rt.Fallback, partitions)
	}

	k := string(key)
	for i := range rt.Rules {
		if rt.Rules[i].matches(k) {
			return reduce(rt.Rules[i].Partition, partitions)
		}
	}

	return reduce(rt.Fallback, partitions)
}

// validate validates the routing rules.
func (rt *Router) validate() error {
	for i, rule := range rt.Rules {
		if rule.Prefix == "" {
			return errors.Join(ErrValidation,
				fmt.Errorf("routing rule %d: prefix is required (use Fallback for a catch-all)", i))
		}
	}
	return nil
}

// reduce maps any index, including negative ones, into [0, n).
func reduce(index, n int) int {
	return ((index % n) + n) % n
}
