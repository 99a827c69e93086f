package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/longkey1/chatai/internal/chatai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader returns each chunk from a separate Read call and then err
// (io.EOF when nil).
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func collectLines(t *testing.T, r io.Reader) ([]string, error) {
	t.Helper()
	dec := NewDecoder(r)
	var lines []string
	for dec.Next() {
		lines = append(lines, dec.Line())
	}
	return lines, dec.Err()
}

func TestDecoder(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
	}{
		{
			name:   "single chunk",
			chunks: []string{"a\nb\n"},
			want:   []string{"a", "b"},
		},
		{
			name:   "line split across reads",
			chunks: []string{"data: {\"mess", "age\":\"Hi\"}\n", "\n"},
			want:   []string{`data: {"message":"Hi"}`, ""},
		},
		{
			name:   "crlf terminators",
			chunks: []string{"a\r\n", "b\r", "\n"},
			want:   []string{"a", "b"},
		},
		{
			name:   "unterminated tail",
			chunks: []string{"a\n", "tail"},
			want:   []string{"a", "tail"},
		},
		{
			name:   "empty stream",
			chunks: nil,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := collectLines(t, &chunkReader{chunks: append([]string(nil), tt.chunks...)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, lines)
		})
	}
}

func TestDecoder_OneByteReads(t *testing.T) {
	body := "data: {\"message\":\"Hi\"}\n\ndata: {\"message\":\" there\"}\n\n"
	lines, err := collectLines(t, iotest.OneByteReader(strings.NewReader(body)))
	require.NoError(t, err)
	assert.Equal(t, []string{`data: {"message":"Hi"}`, "", `data: {"message":" there"}`, ""}, lines)
}

func TestDecoder_LongLine(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	lines, err := collectLines(t, strings.NewReader(long+"\n"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0], 1<<20)
}

func TestDecoder_TransportError(t *testing.T) {
	boom := errors.New("connection reset")
	lines, err := collectLines(t, &chunkReader{chunks: []string{"a\n", "partial"}, err: boom})

	assert.Equal(t, []string{"a"}, lines)
	require.Error(t, err)
	assert.True(t, chatai.IsStreamTransport(err))
	assert.ErrorIs(t, err, boom)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name          string
		line          string
		wantDelta     Delta
		wantOK        bool
		wantMalformed bool
	}{
		{
			name:      "valid data line",
			line:      `data: {"message":"Hi"}`,
			wantDelta: Delta{Text: "Hi"},
			wantOK:    true,
		},
		{
			name:      "whitespace is preserved",
			line:      `data: {"message":" there"}`,
			wantDelta: Delta{Text: " there"},
			wantOK:    true,
		},
		{
			name: "blank separator line",
			line: "",
		},
		{
			name: "other field",
			line: "event: message",
		},
		{
			name: "prefix without space",
			line: `data:{"message":"Hi"}`,
		},
		{
			name: "empty message",
			line: `data: {"message":""}`,
		},
		{
			name:          "invalid json",
			line:          "data: {not json",
			wantMalformed: true,
		},
		{
			name:          "missing message field",
			line:          `data: {"text":"Hi"}`,
			wantMalformed: true,
		},
		{
			name:          "non-string message",
			line:          `data: {"message":42}`,
			wantMalformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, ok, err := ParseLine(tt.line)
			if tt.wantMalformed {
				require.Error(t, err)
				assert.True(t, chatai.IsMalformedEvent(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantDelta, delta)
		})
	}
}

func collectEvents(ctx context.Context, r io.Reader) (string, []error, error) {
	var sb strings.Builder
	var malformed []error
	var streamErr error
	for delta, err := range Events(ctx, r, func(err error) { malformed = append(malformed, err) }) {
		if err != nil {
			streamErr = err
			break
		}
		sb.WriteString(delta.Text)
	}
	return sb.String(), malformed, streamErr
}

func TestEvents_SkipsMalformedLines(t *testing.T) {
	body := &chunkReader{chunks: []string{
		"data: {\"message\":\"Hi\"}\n\n",
		"data: {not json\n\n",
		"data: {\"message\":\" th", "ere\"}\n\n",
	}}

	text, malformed, err := collectEvents(context.Background(), body)

	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
	require.Len(t, malformed, 1)
	assert.True(t, chatai.IsMalformedEvent(malformed[0]))
}

func TestEvents_TransportErrorIsLast(t *testing.T) {
	body := &chunkReader{
		chunks: []string{"data: {\"message\":\"Par\"}\n\n"},
		err:    errors.New("unexpected EOF"),
	}

	text, _, err := collectEvents(context.Background(), body)

	assert.Equal(t, "Par", text)
	require.Error(t, err)
	assert.True(t, chatai.IsStreamTransport(err))
}

func TestEvents_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := strings.NewReader("data: {\"message\":\"Hi\"}\n")
	text, _, err := collectEvents(ctx, body)

	assert.Empty(t, text)
	require.Error(t, err)
	assert.True(t, chatai.IsStreamTransport(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvents_StopEarly(t *testing.T) {
	body := strings.NewReader("data: {\"message\":\"a\"}\ndata: {\"message\":\"b\"}\n")
	var got []string
	for delta, err := range Events(context.Background(), body, nil) {
		require.NoError(t, err)
		got = append(got, delta.Text)
		break
	}
	assert.Equal(t, []string{"a"}, got)
}
