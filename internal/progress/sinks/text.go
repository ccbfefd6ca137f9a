package sinks

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/PeakJoy/gzxspider/internal/progress"
)

// TextSink prints the console status box.
type TextSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTextSink writes to out, or stdout when out is nil.
func NewTextSink(out io.Writer) *TextSink {
	if out == nil {
		out = os.Stdout
	}
	return &TextSink{out: out}
}

// Consume prints one box, followed by the elapsed line on the final snapshot.
func (s *TextSink) Consume(_ context.Context, snap progress.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.out, FormatBox(snap)); err != nil {
		return fmt.Errorf("write status box: %w", err)
	}
	if snap.Final {
		if _, err := io.WriteString(s.out, FormatElapsed(snap)); err != nil {
			return fmt.Errorf("write elapsed line: %w", err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *TextSink) Close(context.Context) error {
	return nil
}

// FormatBox renders the status box framed by asterisks.
func FormatBox(snap progress.Snapshot) string {
	lines := []string{
		fmt.Sprintf("Current Depth       : %d", snap.Depth),
		fmt.Sprintf("Thread Number       : %d", snap.Workers),
		fmt.Sprintf("Search Keys         : %s", snap.Keywords),
		fmt.Sprintf("Has Keys Url Number : %d", snap.Matched),
		fmt.Sprintf("Process Url Number  : %d", snap.Processed),
	}
	width := 0
	for _, line := range lines {
		// Byte length so wide keyword text still fits inside the frame.
		if len(line) > width {
			width = len(line)
		}
	}
	width++

	var b strings.Builder
	border := strings.Repeat("*", width+4)
	b.WriteString(border)
	b.WriteByte('\n')
	for _, line := range lines {
		fmt.Fprintf(&b, "  %-*s\n", width, line)
	}
	b.WriteString(border)
	b.WriteByte('\n')
	return b.String()
}

// FormatElapsed renders total elapsed time in hours, minutes and seconds.
func FormatElapsed(snap progress.Snapshot) string {
	days, hours, minutes, seconds := progress.Breakdown(snap.Elapsed)
	return fmt.Sprintf("【Time Elapsed : %d H %d M %d S】\n", days*24+hours, minutes, seconds)
}
