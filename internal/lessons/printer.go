// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/xmidt-org/kpipeline"
)

const ruleWidth = 70

// Printer writes the narrated output of a lesson. It is safe for concurrent
// use, so delivery callbacks may print.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, format, args...)
}

// Header prints the banner of a lesson.
func (p *Printer) Header(l Lesson) {
	p.printf("\n%s\nLESSON %d: %s\n%s\n%s\n%s\n\n",
		strings.Repeat("=", ruleWidth),
		l.Number(), l.Title(),
		strings.Repeat("=", ruleWidth),
		strings.TrimRight(l.Description(), "\n"),
		strings.Repeat("-", ruleWidth),
	)
}

// Explain prints a concept explanation.
func (p *Printer) Explain(format string, args ...any) {
	p.printf("\n>> "+format+"\n", args...)
}

// Step prints a step of the demonstration.
func (p *Printer) Step(format string, args ...any) {
	p.printf("\n[STEP] "+format+"\n", args...)
}

// Result prints the result of an operation.
func (p *Printer) Result(format string, args ...any) {
	p.printf("  -> "+format+"\n", args...)
}

// Success prints a success message.
func (p *Printer) Success(format string, args ...any) {
	p.printf("  [OK] "+format+"\n", args...)
}

// Fail prints an error message.
func (p *Printer) Fail(format string, args ...any) {
	p.printf("  [ERROR] "+format+"\n", args...)
}

// Tip prints a practical recommendation.
func (p *Printer) Tip(format string, args ...any) {
	p.printf("\n[TIP] "+format+"\n", args...)
}

// Outcome prints a delivery outcome as a result or an error line.
func (p *Printer) Outcome(out kpipeline.DeliveryOutcome) {
	if out.Err != nil {
		p.Fail("%s: %v (%s)", out.Topic, out.Err, out.ErrorType())
		return
	}
	p.Result("topic=%s partition=%d offset=%d latency=%s",
		out.Topic, out.Partition, out.Offset, out.Latency.Round(10*time.Microsecond))
}

// Writer returns the underlying writer, for reports.
func (p *Printer) Writer() io.Writer {
	return printerWriter{p}
}

type printerWriter struct{ p *Printer }

func (w printerWriter) Write(b []byte) (int, error) {
	w.p.mu.Lock()
	defer w.p.mu.Unlock()
	return w.p.w.Write(b)
}
