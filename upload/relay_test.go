package upload_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	. "github.com/imrenagi/go-upload-progress/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2021, 7, 1, 1, 1, 1, 0, time.UTC)

// scriptedClock returns the given times in order and then keeps returning the last one.
type scriptedClock struct {
	times []time.Time
	calls int
}

func (c *scriptedClock) Now() time.Time {
	i := c.calls
	if i >= len(c.times) {
		i = len(c.times) - 1
	}
	c.calls++
	return c.times[i]
}

// tickingClock advances by step on every call.
type tickingClock struct {
	now  time.Time
	step time.Duration
}

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

type chunkReader struct {
	chunks [][]byte
}

func newChunkReader(chunks ...string) *chunkReader {
	r := &chunkReader{}
	for _, c := range chunks {
		r.chunks = append(r.chunks, []byte(c))
	}
	return r
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

type failingWriter struct {
	okWrites int
	err      error
	writes   [][]byte
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if len(w.writes) >= w.okWrites {
		return 0, w.err
	}
	w.writes = append(w.writes, append([]byte(nil), p...))
	return len(p), nil
}

func collect(into *[]Notification) func(Notification) {
	return func(n Notification) {
		*into = append(*into, n)
	}
}

func TestCanExecute(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		last     time.Time
		interval time.Duration
		want     bool
	}{
		{"later than interval", base.Add(3 * time.Second), base, time.Second, true},
		{"exactly the interval", base.Add(time.Second), base, time.Second, true},
		{"one nanosecond short", base.Add(time.Second - time.Nanosecond), base, time.Second, false},
		{"earlier than interval", base.Add(time.Second), base, 3 * time.Second, false},
		{"zero interval", base, base, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanExecute(tt.now, tt.last, tt.interval))
		})
	}
}

func TestRelay_ForwardsEveryByte(t *testing.T) {
	var out bytes.Buffer
	var got []Notification
	relay := NewRelay(&out, "filename.txt", WithInterval(0), WithProgress(collect(&got)))

	n, err := io.Copy(relay, newChunkReader("chunk", "of", "data"))
	require.NoError(t, err)

	assert.Equal(t, int64(11), n)
	assert.Equal(t, "chunkofdata", out.String())
	assert.Equal(t, int64(11), relay.Processed())
	assert.Len(t, got, 3)
}

func TestRelay_CountsCumulativeBytes(t *testing.T) {
	chunks := []string{"a", "bc", "", "defg", strings.Repeat("x", 40000)}
	var out bytes.Buffer
	relay := NewRelay(&out, "f")

	var want int64
	for _, c := range chunks {
		_, err := relay.Write([]byte(c))
		require.NoError(t, err)
		want += int64(len(c))
		assert.Equal(t, want, relay.Processed())
	}
	assert.Equal(t, strings.Join(chunks, ""), out.String())
}

func TestRelay_Throttle(t *testing.T) {
	t.Run("with an interval of 2s only the 1st and 3rd chunks notify", func(t *testing.T) {
		clock := &scriptedClock{times: []time.Time{
			base,                      // relay created
			base.Add(2 * time.Second), // chunk 1: 2s since creation
			base.Add(3 * time.Second), // chunk 2: 1s since last notification
			base.Add(4 * time.Second), // chunk 3: 2s since last notification
		}}
		var got []Notification
		var out bytes.Buffer
		relay := NewRelay(&out, "filename.avi",
			WithRecipient("01"),
			WithInterval(2*time.Second),
			WithClock(clock.Now),
			WithProgress(collect(&got)))

		_, err := io.Copy(relay, newChunkReader("hello", "hello", "world"))
		require.NoError(t, err)

		require.Len(t, got, 2)
		assert.Equal(t, Notification{
			RecipientID: "01",
			Event:       FileUploadEvent,
			Payload:     Progress{ProcessedAlready: 5, Filename: "filename.avi"},
		}, got[0])
		assert.Equal(t, Notification{
			RecipientID: "01",
			Event:       FileUploadEvent,
			Payload:     Progress{ProcessedAlready: 15, Filename: "filename.avi"},
		}, got[1])
		assert.Equal(t, "hellohelloworld", out.String())
	})

	t.Run("with an interval of 2s the 1st and 2nd chunks notify", func(t *testing.T) {
		clock := &scriptedClock{times: []time.Time{
			base,
			base.Add(2 * time.Second),
			base.Add(4 * time.Second),
			base.Add(5 * time.Second),
		}}
		var got []Notification
		relay := NewRelay(io.Discard, "filename.avi",
			WithInterval(2*time.Second),
			WithClock(clock.Now),
			WithProgress(collect(&got)))

		_, err := io.Copy(relay, newChunkReader("hello", "hello", "world"))
		require.NoError(t, err)

		require.Len(t, got, 2)
		assert.Equal(t, Progress{ProcessedAlready: 5, Filename: "filename.avi"}, got[0].Payload)
		assert.Equal(t, Progress{ProcessedAlready: 10, Filename: "filename.avi"}, got[1].Payload)
	})

	t.Run("the first chunk is throttled like any other", func(t *testing.T) {
		clock := &scriptedClock{times: []time.Time{base, base.Add(100 * time.Millisecond)}}
		var got []Notification
		relay := NewRelay(io.Discard, "f", WithClock(clock.Now), WithProgress(collect(&got)))

		_, err := relay.Write([]byte("hello"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("no final notification is forced at the end of the stream", func(t *testing.T) {
		clock := &scriptedClock{times: []time.Time{
			base,
			base.Add(time.Second),
			base.Add(time.Second + time.Millisecond),
		}}
		var got []Notification
		relay := NewRelay(io.Discard, "f",
			WithInterval(time.Second),
			WithClock(clock.Now),
			WithProgress(collect(&got)))

		_, err := io.Copy(relay, newChunkReader("aaa", "bbb"))
		require.NoError(t, err)

		require.Len(t, got, 1)
		assert.Equal(t, int64(3), got[0].Payload.ProcessedAlready)
		assert.Equal(t, int64(6), relay.Processed())
	})

	t.Run("notifications are never closer than the interval", func(t *testing.T) {
		clock := &tickingClock{now: base, step: 70 * time.Millisecond}
		interval := 200 * time.Millisecond

		var stamps []time.Time
		var counts []int64
		relay := NewRelay(io.Discard, "f",
			WithInterval(interval),
			WithClock(clock.Now),
			WithProgress(func(n Notification) {
				stamps = append(stamps, clock.now)
				counts = append(counts, n.Payload.ProcessedAlready)
			}))

		for i := 0; i < 100; i++ {
			_, err := relay.Write([]byte("0123456789"))
			require.NoError(t, err)
		}

		require.NotEmpty(t, stamps)
		for i := 1; i < len(stamps); i++ {
			assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), interval)
			assert.Greater(t, counts[i], counts[i-1])
		}
		assert.LessOrEqual(t, counts[len(counts)-1], relay.Processed())
	})
}

func TestRelay_ForwardsBeforeNotifying(t *testing.T) {
	var out bytes.Buffer
	var seen []string
	relay := NewRelay(&out, "f", WithInterval(0), WithProgress(func(n Notification) {
		seen = append(seen, out.String())
	}))

	_, err := io.Copy(relay, newChunkReader("ab", "cd"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "abcd"}, seen)
}

func TestRelay_StopsAfterSinkError(t *testing.T) {
	errDisk := errors.New("disk full")
	sink := &failingWriter{okWrites: 1, err: errDisk}
	var got []Notification
	relay := NewRelay(sink, "f", WithInterval(0), WithProgress(collect(&got)))

	_, err := io.Copy(relay, newChunkReader("one", "two", "three"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "write", storageErr.Op)
	assert.Equal(t, "f", storageErr.Path)

	_, err = relay.Write([]byte("four"))
	assert.ErrorIs(t, err, errDisk)

	assert.Equal(t, [][]byte{[]byte("one")}, sink.writes)
	assert.Equal(t, int64(3), relay.Processed())
	assert.Len(t, got, 1)
}

func TestRelay_WriteErrorCarriesPath(t *testing.T) {
	errDisk := errors.New("disk full")
	relay := NewRelay(&failingWriter{err: errDisk}, "f.txt", WithPath("downloads/f.txt"))

	_, err := relay.Write([]byte("one"))
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "downloads/f.txt", storageErr.Path)
}

func TestRelay_IntervalRestartsWhenHandedToPort(t *testing.T) {
	clock := &scriptedClock{times: []time.Time{
		base,
		base.Add(time.Second),                        // handed to the port, which discards it
		base.Add(time.Second + 500*time.Millisecond), // inside the interval started above
		base.Add(2 * time.Second),                    // a full interval after the discarded one
	}}
	calls := 0
	var kept []Notification
	relay := NewRelay(io.Discard, "f",
		WithInterval(time.Second),
		WithClock(clock.Now),
		WithProgress(func(n Notification) {
			calls++
			if calls > 1 {
				kept = append(kept, n)
			}
		}))

	_, err := io.Copy(relay, newChunkReader("aa", "bb", "cc"))
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	require.Len(t, kept, 1)
	assert.Equal(t, int64(6), kept[0].Payload.ProcessedAlready)
}
