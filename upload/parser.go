package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// FileHandler consumes one file part. r is only valid until it returns.
type FileHandler func(ctx context.Context, fieldName string, r io.Reader, filename string) error

// Parser walks the parts of a multipart body and hands every file part to
// its FileHandler, one at a time.
type Parser struct {
	mr       *multipart.Reader
	onFile   FileHandler
	onFinish func()
	files    int
}

func NewParser(header http.Header, body io.Reader) (*Parser, error) {
	contentType := header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("%w: got %s", ErrNotMultipart, mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, ErrMissingBoundary
	}
	return &Parser{mr: multipart.NewReader(body, boundary)}, nil
}

func (p *Parser) OnFile(h FileHandler) {
	p.onFile = h
}

// OnFinish registers fn to run once after the last part was consumed.
func (p *Parser) OnFinish(fn func()) {
	p.onFinish = fn
}

// Files returns the number of file parts handled so far.
func (p *Parser) Files() int {
	return p.files
}

// Run consumes the body. Fields that are not files are skipped. It stops at
// the first error, which is a *TransportError for framing problems or the
// handler's error otherwise.
func (p *Parser) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return &TransportError{Err: err}
		}

		part, err := p.mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &TransportError{Err: err}
		}

		filename := part.FileName()
		if filename == "" || p.onFile == nil {
			_, err = io.Copy(io.Discard, part)
			part.Close()
			if err != nil {
				return &TransportError{Filename: filename, Err: err}
			}
			continue
		}

		err = p.onFile(ctx, part.FormName(), part, filename)
		part.Close()
		if err != nil {
			return err
		}
		p.files++
	}

	if p.onFinish != nil {
		p.onFinish()
	}
	return nil
}
