// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package lessons contains the numbered producer lessons run by the
// kpipeline-lessons command. Each lesson drives a real cluster through the
// kpipeline producer and narrates what happens.
package lessons

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownLesson is returned by Lookup for a number without a lesson.
var ErrUnknownLesson = errors.New("unknown lesson")

// Lesson is one runnable demonstration.
type Lesson interface {
	Number() int
	Title() string
	Description() string
	Run(ctx context.Context, env *Env) error
}

// all lists every lesson; All returns them ordered by number.
var all = []Lesson{
	basics{},
	serialization{},
	partitioning{},
	callbacks{},
	errorHandling{},
	transactions{},
	idempotence{},
	batching{},
	interceptors{},
	performance{},
	avro{},
}

// All returns every lesson ordered by number.
func All() []Lesson {
	out := slices.Clone(all)
	slices.SortFunc(out, func(a, b Lesson) int { return a.Number() - b.Number() })
	return out
}

// Lookup returns the lesson with the given number.
func Lookup(n int) (Lesson, error) {
	for _, l := range all {
		if l.Number() == n {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownLesson, n)
}

// Run prints the lesson header and runs it, bounded by the configured lesson
// timeout.
func Run(ctx context.Context, env *Env, l Lesson) error {
	env.Out.Header(l)

	if timeout := env.timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log := env.log().With(zap.Int("lesson", l.Number()))
	log.Info("lesson started", zap.String("title", l.Title()))

	start := time.Now()
	err := l.Run(ctx, env)
	if err != nil {
		log.Error("lesson failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		env.Out.Fail("lesson %d failed: %v", l.Number(), err)
		return fmt.Errorf("lesson %d: %w", l.Number(), err)
	}

	log.Info("lesson completed", zap.Duration("elapsed", time.Since(start)))
	env.Out.Success("lesson %d completed", l.Number())
	return nil
}
