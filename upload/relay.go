package upload

import (
	"io"
	"time"
)

const (
	// FileUploadEvent is the event name every progress notification is sent with.
	FileUploadEvent = "file-upload"

	DefaultRateLimitInterval = 200 * time.Millisecond
)

// Clock returns the current time. Tests replace it with a scripted one.
type Clock func() time.Time

// Progress is the payload of a FileUploadEvent.
type Progress struct {
	ProcessedAlready int64  `json:"processedAlready"`
	Filename         string `json:"filename"`
}

// Notification is what a Relay hands to its progress port.
type Notification struct {
	RecipientID string
	Event       string
	Payload     Progress
}

// CanExecute reports whether at least interval has elapsed between last and now.
func CanExecute(now, last time.Time, interval time.Duration) bool {
	return now.Sub(last) >= interval
}

type RelayOption func(*Relay)

func WithRecipient(id string) RelayOption {
	return func(r *Relay) {
		r.recipientID = id
	}
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		r.interval = d
	}
}

// WithPath sets the destination reported by write errors. It defaults to the filename.
func WithPath(path string) RelayOption {
	return func(r *Relay) {
		r.path = path
	}
}

func WithClock(c Clock) RelayOption {
	return func(r *Relay) {
		r.now = c
	}
}

// WithProgress sets the progress port. fn is called on the writing goroutine
// and must not block. A notification counts as emitted once fn is called,
// so the next interval starts then even if fn drops it.
func WithProgress(fn func(Notification)) RelayOption {
	return func(r *Relay) {
		r.progress = fn
	}
}

// Relay forwards every chunk written to it into out and, at most once per
// interval, reports the number of bytes forwarded so far for one file.
//
// A Relay is not safe for concurrent use; it belongs to a single transfer.
type Relay struct {
	out         io.Writer
	filename    string
	path        string
	recipientID string
	interval    time.Duration
	now         Clock
	progress    func(Notification)

	lastNotifiedAt time.Time
	processed      int64
	err            error
}

func NewRelay(out io.Writer, filename string, opts ...RelayOption) *Relay {
	r := &Relay{
		out:      out,
		filename: filename,
		path:     filename,
		interval: DefaultRateLimitInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastNotifiedAt = r.now()
	return r
}

// Write forwards p downstream, counts it and possibly emits a progress
// notification. Once the downstream writer failed every later call returns
// the same error without forwarding anything.
func (r *Relay) Write(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	n, err := r.out.Write(p)
	r.processed += int64(n)
	if err != nil {
		r.err = &StorageError{Op: "write", Path: r.path, Err: err}
		return n, r.err
	}

	if r.progress == nil {
		return n, nil
	}
	now := r.now()
	if !CanExecute(now, r.lastNotifiedAt, r.interval) {
		return n, nil
	}
	r.lastNotifiedAt = now
	r.progress(Notification{
		RecipientID: r.recipientID,
		Event:       FileUploadEvent,
		Payload: Progress{
			ProcessedAlready: r.processed,
			Filename:         r.filename,
		},
	})
	return n, nil
}

// Processed returns the number of bytes forwarded so far.
func (r *Relay) Processed() int64 {
	return r.processed
}

func (r *Relay) Filename() string {
	return r.filename
}
