package upload

import (
	"context"
	"io"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/imrenagi/go-upload-progress/notify"
	"github.com/imrenagi/go-upload-progress/storage"
)

// Config holds what a Session needs to know about its request.
type Config struct {
	// RecipientID is who receives the progress notifications.
	RecipientID string
	// StorageRoot is the directory, or key prefix, files are written under.
	StorageRoot string
	// RateLimitInterval is the minimum time between two notifications for
	// the same file. Zero means DefaultRateLimitInterval.
	RateLimitInterval time.Duration
	// QueueSize bounds the pending notifications. Zero means notify.DefaultQueueSize.
	QueueSize int
}

type Option func(*Session)

// WithRecords makes the session save a Record for every file part.
func WithRecords(r Records) Option {
	return func(s *Session) {
		s.records = r
	}
}

func WithTimeSource(c Clock) Option {
	return func(s *Session) {
		s.now = c
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// Session handles the file parts of one multipart request: each part is
// streamed through a Relay into a sink created by the storage factory while
// progress goes out through the notification emitter.
type Session struct {
	recipientID string
	storageRoot string
	interval    time.Duration

	sinks      storage.Factory
	dispatcher *notify.Dispatcher
	records    Records
	now        Clock
	log        zerolog.Logger

	mu    sync.Mutex
	files []Record
}

// NewSession creates a session. emitter may be nil, in which case no
// progress is reported.
func NewSession(cfg Config, sinks storage.Factory, emitter notify.Emitter, opts ...Option) *Session {
	s := &Session{
		recipientID: cfg.RecipientID,
		storageRoot: cfg.StorageRoot,
		interval:    cfg.RateLimitInterval,
		sinks:       sinks,
		now:         time.Now,
		log:         log.Logger,
	}
	if s.interval <= 0 {
		s.interval = DefaultRateLimitInterval
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("recipient_id", s.recipientID).Logger()

	if emitter != nil {
		s.dispatcher = notify.NewDispatcher(emitter,
			notify.WithQueueSize(cfg.QueueSize),
			notify.WithLogger(s.log))
	}
	return s
}

// RegisterEvents binds HandleFilePart to every file part of the multipart
// body and onFinish to the end of it. The caller drives the returned parser
// with Run.
func (s *Session) RegisterEvents(header http.Header, body io.Reader, onFinish func()) (*Parser, error) {
	p, err := NewParser(header, body)
	if err != nil {
		return nil, err
	}
	p.OnFile(s.HandleFilePart)
	p.OnFinish(onFinish)
	return p, nil
}

// HandleFilePart writes everything read from r to storageRoot/filename and
// returns once the sink confirmed the data is stored. The filename is used
// as given. On error the state of the destination is undefined.
func (s *Session) HandleFilePart(ctx context.Context, fieldName string, r io.Reader, filename string) error {
	if filename == "" {
		return ErrMissingFilename
	}
	dest := path.Join(s.storageRoot, filename)

	ctx, span := tracer.Start(ctx, "upload.HandleFilePart", trace.WithAttributes(
		attribute.String("upload.field", fieldName),
		attribute.String("upload.filename", filename),
	))
	defer span.End()

	rec := Record{
		ID:          uuid.New(),
		RecipientID: s.recipientID,
		Field:       fieldName,
		Filename:    filename,
		Path:        dest,
		Status:      StatusInProgress,
		StartedAt:   s.now(),
	}
	s.save(rec)

	log := s.log.With().
		Str("upload_id", rec.ID.String()).
		Str("file_name", filename).
		Logger()
	log.Debug().Str("stored_file", dest).Msg("receiving file")

	n, err := s.persist(ctx, r, dest, filename)
	rec.Bytes = n
	rec.FinishedAt = s.now()
	bytesCounter.Add(ctx, n)

	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		s.save(rec)

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		filesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(StatusFailed))))
		log.Error().Err(err).Int64("written_size", n).Msg("file upload failed")
		return err
	}

	rec.Status = StatusCompleted
	s.save(rec)
	s.mu.Lock()
	s.files = append(s.files, rec)
	s.mu.Unlock()

	filesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(StatusCompleted))))
	log.Info().
		Int64("written_size", n).
		Str("stored_file", dest).
		Msgf("File [%s] finished", filename)
	return nil
}

func (s *Session) persist(ctx context.Context, r io.Reader, dest, filename string) (int64, error) {
	sinkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink, err := s.sinks.Create(sinkCtx, dest)
	if err != nil {
		return 0, &StorageError{Op: "create", Path: dest, Err: err}
	}

	opts := []RelayOption{
		WithRecipient(s.recipientID),
		WithPath(dest),
		WithInterval(s.interval),
		WithClock(s.now),
	}
	if s.dispatcher != nil {
		opts = append(opts, WithProgress(s.publish))
	}
	relay := NewRelay(sink, filename, opts...)

	if _, err := io.Copy(relay, &sourceReader{ctx: ctx, r: r, filename: filename}); err != nil {
		// Cancel first so object stores discard the partial object on close.
		cancel()
		_ = sink.Close()
		return relay.Processed(), err
	}
	if err := sink.Close(); err != nil {
		return relay.Processed(), &StorageError{Op: "close", Path: dest, Err: err}
	}
	return relay.Processed(), nil
}

func (s *Session) publish(n Notification) {
	ok := s.dispatcher.Publish(notify.Message{
		RecipientID: n.RecipientID,
		Event:       n.Event,
		Payload:     n.Payload,
	})
	result := "published"
	if !ok {
		result = "dropped"
	}
	notificationsCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}

func (s *Session) save(r Record) {
	if s.records != nil {
		s.records.Save(r)
	}
}

// Files returns the records of the files stored so far, in order.
func (s *Session) Files() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.files))
	copy(out, s.files)
	return out
}

// Close flushes pending notifications. The session must not be used afterwards.
func (s *Session) Close() {
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
}

// sourceReader stops reading once ctx is done and marks read failures as
// transport errors.
type sourceReader struct {
	ctx      context.Context
	r        io.Reader
	filename string
}

func (s *sourceReader) Read(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, &TransportError{Filename: s.filename, Err: err}
	}
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		return n, &TransportError{Filename: s.filename, Err: err}
	}
	return n, err
}
