package edit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/go-hclog"

	imgutil "github.com/jmylchreest/swatch/internal/image"
	"github.com/jmylchreest/swatch/internal/session"
	"github.com/jmylchreest/swatch/internal/util/imagecache"
)

// Orchestrator validates edit requests, forwards them to a Backend and
// guarantees that a successful result decodes as an image.
type Orchestrator struct {
	backend Backend
	cache   *imagecache.Cache
	tracker *session.Tracker[*Result]
	logger  hclog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache enables the on-disk result cache.
func WithCache(c *imagecache.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l hclog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an Orchestrator for backend.
func NewOrchestrator(backend Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend: backend,
		tracker: session.NewTracker[*Result](),
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit runs one edit. Every accepted request gets a new submission number.
// When a newer submission starts before this one finishes the result is still returned but
// marked Stale and is not recorded as the latest.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Credential == "" {
		return nil, ErrMissingCredential
	}

	id := o.tracker.Begin()
	logger := o.logger.With("submission", id)

	key := o.cacheKey(req)
	if o.cache != nil {
		data, ok, err := o.cache.Lookup(key)
		if err != nil {
			logger.Warn("result cache lookup failed", "error", err)
		}
		if ok {
			if res, err := o.finish(id, req.Mode, data, true); err == nil {
				logger.Debug("served edit from cache", "mode", req.Mode)
				return res, nil
			}
			logger.Warn("ignoring undecodable cache entry", "key", key)
		}
	}

	logger.Info("submitting edit", "backend", o.backend.Name(), "mode", req.Mode, "bytes", len(req.Image))

	data, err := o.backend.Process(ctx, req)
	if !o.tracker.Current(id) {
		logger.Debug("superseded while in flight")
	}
	if err != nil {
		logger.Error("edit failed", "error", err)
		return nil, err
	}

	res, err := o.finish(id, req.Mode, data, false)
	if err != nil {
		logger.Error("edit returned an undecodable image", "bytes", len(data))
		return nil, err
	}

	if o.cache != nil {
		if err := o.cache.Store(key, data); err != nil {
			logger.Warn("failed to cache edit result", "error", err)
		}
	}

	logger.Info("edit complete", "mime", res.MIMEType, "stale", res.Stale)
	return res, nil
}

// Latest returns the newest accepted result.
func (o *Orchestrator) Latest() (*Result, bool) {
	_, res, ok := o.tracker.Latest()
	return res, ok
}

func (o *Orchestrator) finish(id uint64, mode Mode, data []byte, cached bool) (*Result, error) {
	_, format, err := imgutil.DecodeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableResult, err)
	}

	res := &Result{
		Image:      data,
		MIMEType:   imgutil.FormatMIME(format),
		Mode:       mode,
		Submission: id,
		Cached:     cached,
	}
	res.Stale = !o.tracker.Complete(id, res)
	return res, nil
}

func (o *Orchestrator) cacheKey(req Request) string {
	guidance := ""
	if req.Mode == ModeRemix {
		guidance = strconv.FormatFloat(req.GuidanceOrDefault(), 'g', -1, 64)
	}
	return imagecache.Key(
		[]byte(o.backend.Name()),
		[]byte(req.Mode),
		[]byte(req.Prompt),
		[]byte(guidance),
		req.Image,
	)
}
