package watcher

import (
	"strings"
	"unicode/utf8"
)

// TextWriter is an io.Writer that turns a byte stream into text for a Sink.
// An incomplete UTF-8 sequence at the end of a write is held back until the
// next one, and invalid bytes become U+FFFD, so the sink only ever sees
// valid text. A TextWriter is not safe for concurrent use.
type TextWriter struct {
	sink  Sink
	carry []byte
}

// NewTextWriter creates a TextWriter writing to sink.
func NewTextWriter(sink Sink) *TextWriter {
	return &TextWriter{sink: sink}
}

// Write decodes p and writes the complete text to the sink. It reports
// len(p) unless the sink fails.
func (t *TextWriter) Write(p []byte) (int, error) {
	var text string
	text, t.carry = decode(append(t.carry, p...))
	if text == "" {
		return len(p), nil
	}
	if _, err := t.sink.WriteString(text); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush writes a held back incomplete sequence as U+FFFD. Call it once the
// stream has ended.
func (t *TextWriter) Flush() error {
	if len(t.carry) == 0 {
		return nil
	}
	t.carry = nil
	_, err := t.sink.WriteString("\uFFFD")
	return err
}

// decode converts b to text, holding back an incomplete trailing UTF-8
// sequence so a rune split across reads survives. Invalid bytes become
// U+FFFD.
func decode(b []byte) (string, []byte) {
	cut := len(b)
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax+1; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				cut = i
			}
			break
		}
	}

	var rest []byte
	if cut < len(b) {
		rest = append([]byte(nil), b[cut:]...)
	}
	return strings.ToValidUTF8(string(b[:cut]), "\uFFFD"), rest
}
