// Package imaging turns an uploaded photo into a stored image reference.
// Binary payloads go to object storage; when that is unavailable a
// self-describing data URI supplied by the client is accepted verbatim.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"civictrack/backend/internal/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoImage means neither the primary nor the fallback path produced a reference.
var ErrNoImage = apperr.Validation("no usable image provided", "image")

// ObjectStore is the primary storage backend.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Payload is an inbound image in either or both encodings.
type Payload struct {
	Data   []byte
	Inline string
}

// Empty reports whether the payload carries nothing at all.
func (p Payload) Empty() bool {
	return len(p.Data) == 0 && p.Inline == ""
}

// Pipeline implements the primary/fallback ingestion strategy.
type Pipeline struct {
	primary ObjectStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewPipeline creates a pipeline. primary may be nil, in which case only
// inline payloads are accepted.
func NewPipeline(primary ObjectStore, logger *zap.Logger) *Pipeline {
	return &Pipeline{primary: primary, logger: logger, now: time.Now}
}

// Ingest returns an https URL from object storage or the inline payload.
// Primary failures are logged and never returned; ErrNoImage is returned
// when nothing usable remains.
func (p *Pipeline) Ingest(ctx context.Context, payload Payload, folder string) (string, error) {
	if len(payload.Data) > 0 {
		ref, err := p.upload(ctx, payload.Data, folder)
		if err == nil {
			return ref, nil
		}
		p.logger.Warn("primary image upload failed, trying inline payload",
			zap.String("folder", folder),
			zap.Int("bytes", len(payload.Data)),
			zap.Error(err),
		)
	}

	if IsInlineImage(payload.Inline) {
		return payload.Inline, nil
	}
	if payload.Inline != "" {
		p.logger.Warn("ignoring inline payload without an image data URI marker", zap.String("folder", folder))
	}
	return "", ErrNoImage
}

func (p *Pipeline) upload(ctx context.Context, data []byte, folder string) (ref string, err error) {
	if p.primary == nil {
		return "", errors.New("object storage not configured")
	}
	contentType, ext, err := DetectContentType(data)
	if err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("object storage panic: %v", r)
		}
	}()

	key := path.Join(folder, fmt.Sprintf("%s-%d%s", uuid.New().String(), p.now().Unix(), ext))
	ref, err = p.primary.Put(ctx, key, data, contentType)
	if err != nil {
		return "", apperr.Upstream("object storage upload failed", err)
	}
	return ref, nil
}
