package watcher

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{}

func (failingSink) WriteString(string) (int, error) { return 0, errors.New("sink closed") }

func TestDecode(t *testing.T) {
	euro := []byte("€")
	tests := []struct {
		name  string
		in    []byte
		text  string
		carry []byte
	}{
		{name: "ascii", in: []byte("hello"), text: "hello"},
		{name: "complete rune", in: []byte("a€"), text: "a€"},
		{name: "split rune", in: append([]byte("a"), euro[:2]...), text: "a", carry: euro[:2]},
		{name: "only a lead byte", in: euro[:1], text: "", carry: euro[:1]},
		{name: "invalid byte", in: []byte{'a', 0xff, 'b'}, text: "a\uFFFDb"},
		{name: "stray continuation", in: []byte{'a', 0x82}, text: "a\uFFFD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, carry := decode(tt.in)
			assert.Equal(t, tt.text, text)
			assert.Equal(t, tt.carry, carry)
		})
	}
}

func TestTextWriterJoinsSplitRune(t *testing.T) {
	var out strings.Builder
	w := NewTextWriter(&out)
	euro := []byte("€")

	n, err := w.Write(append([]byte("price "), euro[:1]...))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "price ", out.String())

	n, err = w.Write(append(euro[1:], '\n'))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "price €\n", out.String())

	require.NoError(t, w.Flush())
	assert.Equal(t, "price €\n", out.String())
}

func TestTextWriterReplacesInvalidBytes(t *testing.T) {
	var out strings.Builder
	w := NewTextWriter(&out)

	_, err := w.Write([]byte("caf\xe9\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("after\n"))
	require.NoError(t, err)
	assert.Equal(t, "caf\uFFFD\nafter\n", out.String())
}

func TestTextWriterFlushesTruncatedRune(t *testing.T) {
	var out strings.Builder
	w := NewTextWriter(&out)

	_, err := w.Write([]byte("end\xe2\x82"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Equal(t, "end\uFFFD", out.String())
}

func TestTextWriterReportsSinkError(t *testing.T) {
	w := NewTextWriter(failingSink{})
	n, err := w.Write([]byte("x"))
	assert.Error(t, err)
	assert.Zero(t, n)
}
