package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/imrenagi/go-upload-progress/notify"
	"github.com/imrenagi/go-upload-progress/storage"
	"github.com/imrenagi/go-upload-progress/upload"
)

const (
	// RecipientQueryParam names the websocket recipient that follows the upload.
	RecipientQueryParam = "socketId"
	FileNameHeader      = "X-Api-File-Name"
)

type Options struct {
	StorageRoot       string
	RateLimitInterval time.Duration
	NotificationQueue int
}

type Option func(*Options)

func WithStorageRoot(root string) Option {
	return func(o *Options) {
		o.StorageRoot = root
	}
}

func WithRateLimitInterval(d time.Duration) Option {
	return func(o *Options) {
		o.RateLimitInterval = d
	}
}

func WithNotificationQueue(n int) Option {
	return func(o *Options) {
		o.NotificationQueue = n
	}
}

// Storage keeps the upload records served by GetUpload and ListUploads.
type Storage interface {
	upload.Records
	List() []upload.Record
}

func NewController(sinks storage.Factory, emitter notify.Emitter, store Storage, opts ...Option) Controller {
	o := Options{
		RateLimitInterval: upload.DefaultRateLimitInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return Controller{
		sinks:   sinks,
		emitter: emitter,
		store:   store,
		opts:    o,
	}
}

type Controller struct {
	sinks   storage.Factory
	emitter notify.Emitter
	store   Storage
	opts    Options
}

type uploadResponse struct {
	Files []upload.Record `json:"files"`
}

func (c *Controller) newSession(r *http.Request) *upload.Session {
	return upload.NewSession(upload.Config{
		RecipientID:       r.URL.Query().Get(RecipientQueryParam),
		StorageRoot:       c.opts.StorageRoot,
		RateLimitInterval: c.opts.RateLimitInterval,
		QueueSize:         c.opts.NotificationQueue,
	}, c.sinks, c.emitter,
		upload.WithRecords(c.store),
		upload.WithLogger(*zerolog.Ctx(r.Context())))
}

// FormUpload streams every file part of a multipart/form-data request into
// storage while the recipient named by ?socketId= receives progress events.
func (c *Controller) FormUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := zerolog.Ctx(r.Context())
		log.Debug().Str("content_type", r.Header.Get("Content-Type")).Msg("Request Content Type")

		session := c.newSession(r)
		defer session.Close()

		parser, err := session.RegisterEvents(r.Header, r.Body, func() {
			writeJSON(w, http.StatusOK, uploadResponse{Files: session.Files()})
		})
		if err != nil {
			log.Debug().Err(err).Msg("Invalid multipart request")
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := parser.Run(r.Context()); err != nil {
			log.Error().Err(err).Int("files", parser.Files()).Msg("Error uploading the files")
			writeError(w, statusFor(err), err)
			return
		}
		log.Info().Int("files", parser.Files()).Msg("Files uploaded")
	}
}

// BinaryUpload stores the raw request body under the name given in X-Api-File-Name.
func (c *Controller) BinaryUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		fileName := r.Header.Get(FileNameHeader)
		log := zerolog.Ctx(r.Context())
		log.Debug().
			Str("content_type", r.Header.Get("Content-Type")).
			Str("content_length", r.Header.Get("Content-Length")).
			Str("file_name", fileName).
			Msg("received binary data")

		session := c.newSession(r)
		defer session.Close()

		if err := session.HandleFilePart(r.Context(), "", r.Body, fileName); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, uploadResponse{Files: session.Files()})
	}
}

func (c *Controller) GetUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uploadID := mux.Vars(r)["upload_id"]
		rec, ok := c.store.Find(uploadID)
		if !ok {
			zerolog.Ctx(r.Context()).Debug().Str("upload_id", uploadID).Msg("upload not found")
			writeError(w, http.StatusNotFound, errors.New("upload not found"))
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, rec)
	}
}

func (c *Controller) ListUploads() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, uploadResponse{Files: c.store.List()})
	}
}

func statusFor(err error) int {
	var transportErr *upload.TransportError
	switch {
	case errors.Is(err, upload.ErrMissingFilename):
		return http.StatusBadRequest
	case errors.As(err, &transportErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type cError struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, cError{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
