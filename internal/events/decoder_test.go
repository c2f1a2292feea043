package events

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_DefaultFields(t *testing.T) {
	input := `{"ts": 1000, "feature": "export", "count": 3, "durationUs": 250}

{"ts": 1001, "feature": "import"}
{"ts": 1002, "durationUs": null}
`
	dec, err := NewDecoder(strings.NewReader(input), FieldMap{}, 0)
	require.NoError(t, err)

	ev, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{Timestamp: 1000, Feature: "export", Count: 3, DurationUs: 250}, ev)

	ev, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{Timestamp: 1001, Feature: "import", Count: 1, DurationUs: NoDuration}, ev)
	assert.Equal(t, 3, dec.Line())

	ev, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "", ev.Feature)
	assert.Equal(t, NoDuration, ev.DurationUs)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_CustomFields(t *testing.T) {
	input := `{"meta": {"at": 42, "took": 17}, "event": {"name": "render", "n": 2}}`
	fields := FieldMap{
		Timestamp: "$.meta.at",
		Feature:   "$['event']['name']",
		Count:     "event.n",
		Duration:  "$.meta.took",
	}

	events, err := ReadAll(strings.NewReader(input), fields, time.Millisecond, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Timestamp: 42, Feature: "render", Count: 2, DurationUs: 17}, events[0])
}

func TestDecoder_RFC3339Timestamp(t *testing.T) {
	input := `{"ts": "2024-04-01T00:00:01.5Z", "feature": "a"}`

	events, err := ReadAll(strings.NewReader(input), FieldMap{}, time.Second, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)

	want := time.Date(2024, 4, 1, 0, 0, 1, 0, time.UTC).Unix()
	assert.Equal(t, want, events[0].Timestamp)
}

func TestDecoder_MalformedLines(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		cause error
	}{
		{"not json", `ts=1`, ErrMalformed},
		{"array", `[1, 2]`, ErrMalformed},
		{"missing ts", `{"feature": "a"}`, ErrMissingField},
		{"bool ts", `{"ts": true}`, ErrMalformed},
		{"bad date", `{"ts": "yesterday"}`, ErrMalformed},
		{"string count", `{"ts": 1, "count": "3"}`, ErrMalformed},
		{"string duration", `{"ts": 1, "durationUs": "fast"}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := NewDecoder(strings.NewReader("\n"+tt.line+"\n"), FieldMap{}, 0)
			require.NoError(t, err)

			_, err = dec.Next()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.cause)

			var lerr *LineError
			require.True(t, errors.As(err, &lerr))
			assert.Equal(t, 2, lerr.Line)
			assert.Contains(t, err.Error(), "line 2:")
		})
	}
}

func TestReadAll_ContinuesAfterErrors(t *testing.T) {
	input := strings.Join([]string{
		`{"ts": 1, "feature": "a"}`,
		`garbage`,
		`{"ts": 2, "feature": "b"}`,
		`{"feature": "c"}`,
		`{"ts": 3, "feature": "d"}`,
	}, "\n")

	var bad []int
	events, err := ReadAll(strings.NewReader(input), FieldMap{}, 0, func(e *LineError) error {
		bad = append(bad, e.Line)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, bad)
	require.Len(t, events, 3)
	assert.Equal(t, "d", events[2].Feature)
}

func TestReadAll_StopsWithoutHandler(t *testing.T) {
	input := "{\"ts\": 1}\nnope\n{\"ts\": 2}\n"

	events, err := ReadAll(strings.NewReader(input), FieldMap{}, 0, nil)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Len(t, events, 1)
}

func TestFieldMap_WithDefaults(t *testing.T) {
	f := FieldMap{Feature: "name"}.WithDefaults()
	assert.Equal(t, "ts", f.Timestamp)
	assert.Equal(t, "name", f.Feature)
	assert.Equal(t, "count", f.Count)
	assert.Equal(t, "durationUs", f.Duration)
}
