// Package dispatch fans page images out to one OCR backend and produces
// exactly one terminal result per page.
//
// The dispatcher owns every concurrency decision in the pipeline: the
// worker cap per backend kind, the requests-per-second ceiling, retry with
// exponential backoff, and cooperative cancellation. Page failures stay
// page failures; only an unusable backend aborts a run.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pdf2word/internal/ocr"
)

// Config bounds one dispatch run. The zero value gets sensible defaults.
type Config struct {
	// Concurrency caps pages recognized in flight. The local backend is
	// driven by one worker per device slot, so its runs are forced to 1
	// regardless of this value.
	Concurrency int

	// MaxAttempts bounds recognition attempts per page, first try included.
	MaxAttempts int

	// BackoffBase seeds the exponential wait between attempts.
	BackoffBase time.Duration

	// BackoffCap bounds a single backoff wait.
	BackoffCap time.Duration

	// RequestsPerSecond gates attempts across all workers, retries
	// included; 0 disables the ceiling.
	RequestsPerSecond float64

	// RequestTimeout is the deadline for a single backend call; 0 means
	// no per-attempt deadline.
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = DefaultBackoffCap
	}
	return c
}

// Dispatcher drives one backend across the pages of a single run.
type Dispatcher struct {
	backend ocr.Backend
	cfg     Config
	limiter *rate.Limiter
	log     zerolog.Logger
	runID   string
}

// New builds a dispatcher for one run against the given backend.
func New(backend ocr.Backend, cfg Config, log zerolog.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if backend.Name() == ocr.BackendLocal {
		// One worker per device slot; the device serializes inference
		// passes, so extra workers would only queue on its mutex.
		cfg.Concurrency = 1
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	runID := uuid.New().String()
	return &Dispatcher{
		backend: backend,
		cfg:     cfg,
		limiter: limiter,
		log: log.With().
			Str("run_id", runID).
			Str("backend", backend.Name()).
			Logger(),
		runID: runID,
	}
}

// RunID identifies this dispatcher's run in logs and summaries.
func (d *Dispatcher) RunID() string {
	return d.runID
}

// Run dispatches every page and streams one terminal result per page on
// out, in completion order, closing out before returning. A page failure
// never aborts the run. The returned error is non-nil only when the
// backend became unusable mid-run; every page still receives a terminal
// result first, so out always carries len(pageImages) results.
//
// Unless the caller consumes out concurrently it must be buffered to hold
// all results.
func (d *Dispatcher) Run(ctx context.Context, pageImages []ocr.PageImage, out chan<- ocr.PageResult) error {
	defer close(out)

	d.log.Info().
		Int("pages", len(pageImages)).
		Int("concurrency", d.cfg.Concurrency).
		Int("max_attempts", d.cfg.MaxAttempts).
		Msg("dispatch.start")

	r := &run{d: d}

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)

	for _, page := range pageImages {
		// Cancellation and fatal backend errors stop submission; pages
		// never submitted still get explicit terminal results.
		if ctx.Err() != nil {
			out <- ocr.PageResult{Index: page.Index, Status: ocr.StatusCancelled}
			continue
		}
		if err := r.fatalErr(); err != nil {
			out <- ocr.PageResult{Index: page.Index, Status: ocr.StatusFailed, Err: err}
			continue
		}

		g.Go(func() error {
			out <- r.processPage(ctx, page)
			return nil
		})
	}

	g.Wait()

	if err := r.fatalErr(); err != nil {
		d.log.Error().Err(err).Msg("dispatch.aborted")
		return err
	}
	d.log.Info().Msg("dispatch.done")
	return nil
}

// run carries the mutable state shared by one Run call's workers.
type run struct {
	d *Dispatcher

	mu    sync.Mutex
	fatal error
}

func (r *run) setFatal(err error) {
	r.mu.Lock()
	if r.fatal == nil {
		r.fatal = err
	}
	r.mu.Unlock()
}

func (r *run) fatalErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatal
}

// processPage walks one page through the attempt state machine: pending →
// in flight → success, retry-scheduled, failed or cancelled.
func (r *run) processPage(ctx context.Context, page ocr.PageImage) ocr.PageResult {
	d := r.d

	var (
		lastErr  error
		attempts int
	)
	for attempts < d.cfg.MaxAttempts {
		if ctx.Err() != nil {
			return ocr.PageResult{Index: page.Index, Status: ocr.StatusCancelled, Attempts: attempts}
		}
		if err := r.fatalErr(); err != nil {
			return ocr.PageResult{Index: page.Index, Status: ocr.StatusFailed, Err: err, Attempts: attempts}
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return ocr.PageResult{Index: page.Index, Status: ocr.StatusCancelled, Attempts: attempts}
			}
		}

		attempts++
		text, err := r.recognize(ctx, page)
		if err == nil {
			d.log.Info().
				Int("page", page.Number()).
				Int("attempts", attempts).
				Msg("dispatch.page.done")
			return ocr.PageResult{Index: page.Index, Status: ocr.StatusSuccess, Text: text, Attempts: attempts}
		}

		if ctx.Err() != nil {
			// The caller pulled the plug while this attempt was in
			// flight; that is a cancellation, not a page failure.
			return ocr.PageResult{Index: page.Index, Status: ocr.StatusCancelled, Attempts: attempts}
		}
		if ocr.IsFatal(err) {
			r.setFatal(err)
			return ocr.PageResult{Index: page.Index, Status: ocr.StatusFailed, Err: err, Attempts: attempts}
		}

		lastErr = err
		if !ocr.IsTransient(err) || attempts == d.cfg.MaxAttempts {
			break
		}

		wait := Backoff(d.cfg.BackoffBase, d.cfg.BackoffCap, attempts)
		d.log.Warn().
			Int("page", page.Number()).
			Int("attempts", attempts).
			Dur("backoff", wait).
			Err(err).
			Msg("dispatch.page.retry")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ocr.PageResult{Index: page.Index, Status: ocr.StatusCancelled, Attempts: attempts}
		}
	}

	d.log.Error().
		Int("page", page.Number()).
		Int("attempts", attempts).
		Err(lastErr).
		Msg("dispatch.page.failed")
	return ocr.PageResult{Index: page.Index, Status: ocr.StatusFailed, Err: lastErr, Attempts: attempts}
}

// recognize runs one attempt under the per-attempt deadline.
func (r *run) recognize(ctx context.Context, page ocr.PageImage) (string, error) {
	if r.d.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.d.cfg.RequestTimeout)
		defer cancel()
	}
	return r.d.backend.Recognize(ctx, page)
}
