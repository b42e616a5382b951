// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/kpipeline/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestAll(t *testing.T) {
	t.Parallel()

	lessons := All()
	require.Len(t, lessons, 11)

	for i, l := range lessons {
		assert.Equal(t, i+1, l.Number())
		assert.NotEmpty(t, l.Title(), "lesson %d", l.Number())
		assert.NotEmpty(t, l.Description(), "lesson %d", l.Number())
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	l, err := Lookup(3)
	require.NoError(t, err)
	assert.Equal(t, "Partitioning", l.Title())

	for _, n := range []int{0, 12, -1} {
		_, err := Lookup(n)
		assert.ErrorIs(t, err, ErrUnknownLesson)
	}
}

// stubLesson is a lesson whose Run is a function.
type stubLesson struct {
	run func(ctx context.Context, env *Env) error
}

func (stubLesson) Number() int         { return 42 }
func (stubLesson) Title() string       { return "Stub" }
func (stubLesson) Description() string { return "A lesson for tests." }

func (s stubLesson) Run(ctx context.Context, env *Env) error {
	return s.run(ctx, env)
}

func testEnv(timeout time.Duration) (*Env, *bytes.Buffer, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	var buf bytes.Buffer
	return &Env{
		Config: &config.Config{Lessons: config.LessonsConfig{TopicPrefix: "test-", Timeout: timeout}},
		Logger: zap.New(core),
		Out:    NewPrinter(&buf),
	}, &buf, logs
}

func TestRun(t *testing.T) {
	t.Parallel()

	env, buf, logs := testEnv(time.Minute)

	var deadline bool
	err := Run(context.Background(), env, stubLesson{run: func(ctx context.Context, env *Env) error {
		_, deadline = ctx.Deadline()
		env.Out.Step("doing %s", "work")
		return nil
	}})
	require.NoError(t, err)

	assert.True(t, deadline, "lesson timeout should bound the context")
	assert.Contains(t, buf.String(), "LESSON 42: Stub")
	assert.Contains(t, buf.String(), "[STEP] doing work")
	assert.Contains(t, buf.String(), "[OK] lesson 42 completed")

	started := logs.FilterMessage("lesson started").All()
	require.Len(t, started, 1)
	assert.Equal(t, "lessons", started[0].LoggerName)
	assert.Equal(t, int64(42), started[0].ContextMap()["lesson"])
	assert.Equal(t, 1, logs.FilterMessage("lesson completed").Len())
}

func TestRun_Failure(t *testing.T) {
	t.Parallel()

	env, buf, logs := testEnv(0)
	boom := errors.New("boom")

	err := Run(context.Background(), env, stubLesson{run: func(ctx context.Context, _ *Env) error {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)
		return boom
	}})

	require.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "lesson 42: boom")
	assert.Contains(t, buf.String(), "[ERROR] lesson 42 failed: boom")
	assert.Equal(t, 1, logs.FilterMessage("lesson failed").Len())
}

func TestEnv_Topic(t *testing.T) {
	t.Parallel()

	env, _, _ := testEnv(0)
	assert.Equal(t, "test-lesson01-basics", env.Topic("lesson01-basics"))
}
