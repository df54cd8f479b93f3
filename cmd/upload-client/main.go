package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/imrenagi/go-upload-progress/notify"
	"github.com/imrenagi/go-upload-progress/upload"
)

var serverURL string

func main() {
	stdOut := zerolog.ConsoleWriter{Out: os.Stdout}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(stdOut)).With().Timestamp().Logger()

	cmd := &cobra.Command{
		Use:   "upload-client <file> [file...]",
		Short: "Upload files as one multipart request and print the progress events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Upload server base URL")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func run(ctx context.Context, files []string) error {
	base, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}

	wsURL := *base
	wsURL.Scheme = "ws"
	if base.Scheme == "https" {
		wsURL.Scheme = "wss"
	}
	wsURL.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("error connecting to %s: %w", wsURL.String(), err)
	}
	defer conn.Close()

	var hello frame
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("error reading connected event: %w", err)
	}
	var connected notify.Connected
	if err := json.Unmarshal(hello.Data, &connected); err != nil || hello.Event != notify.ConnectedEvent {
		return fmt.Errorf("unexpected first event %q", hello.Event)
	}
	log.Debug().Str("id", connected.ID).Msg("Connected to notification socket")

	g, gctx := errgroup.WithContext(ctx)
	uploaded := make(chan struct{})

	g.Go(func() error {
		go func() {
			select {
			case <-uploaded:
			case <-gctx.Done():
			}
			conn.Close()
		}()
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				select {
				case <-uploaded:
					return nil
				default:
					return fmt.Errorf("error reading progress: %w", err)
				}
			}
			if f.Event != upload.FileUploadEvent {
				continue
			}
			var p upload.Progress
			if err := json.Unmarshal(f.Data, &p); err != nil {
				log.Warn().Err(err).Msg("Malformed progress event")
				continue
			}
			log.Info().
				Str("file_name", p.Filename).
				Int64("processed_already", p.ProcessedAlready).
				Msg("upload progress")
		}
	})

	g.Go(func() error {
		defer close(uploaded)

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			pw.CloseWithError(writeParts(mw, files))
		}()

		endpoint := *base
		endpoint.Path = "/api/v1/upload"
		endpoint.RawQuery = url.Values{"socketId": {connected.ID}}.Encode()

		req, err := http.NewRequestWithContext(gctx, http.MethodPost, endpoint.String(), pr)
		if err != nil {
			return fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())

		log.Debug().Strs("files", files).Msg("Sending files")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("error sending request: %w", err)
		}
		defer resp.Body.Close()

		d, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("error reading response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(d))
		}
		log.Info().Int("status", resp.StatusCode).RawJSON("response", d).Msg("Upload finished")
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("upload failed")
		return err
	}
	return nil
}

func writeParts(mw *multipart.Writer, files []string) error {
	for _, name := range files {
		if err := writePart(mw, name); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := mw.CreateFormFile("files", filepath.Base(name))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
