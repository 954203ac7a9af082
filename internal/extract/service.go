package extract

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spherical/pdf2emails/internal/domain"
	"github.com/spherical/pdf2emails/internal/observability"
)

// cleanupTimeout bounds object deletion after the run context may be gone
const cleanupTimeout = 30 * time.Second

// Options control how the service drives a document
type Options struct {
	Bucket     string
	ObjectName string

	// Workers is the number of pages in flight. One keeps the reference
	// ascending page order.
	Workers     int
	CallTimeout time.Duration
	Retry       RetryConfig

	// SkipFailedPages records a failing page in RunResult.SkippedPages
	// instead of aborting the run.
	SkipFailedPages bool

	// RequestsPerSecond caps OCR calls across all workers; zero is unlimited.
	RequestsPerSecond float64

	// Cleanup deletes uploaded objects at the end of the run when the
	// uploader supports it.
	Cleanup bool
}

// Service orchestrates the page-to-email extraction pipeline
type Service struct {
	opener     domain.DocumentOpener
	encoder    domain.Encoder
	uploader   domain.Uploader
	recognizer domain.TextRecognizer
	filter     domain.CandidateFilter
	opts       Options
	limiter    *rate.Limiter
	logger     *observability.Logger
}

// NewService creates a new extraction service
func NewService(
	opener domain.DocumentOpener,
	encoder domain.Encoder,
	uploader domain.Uploader,
	recognizer domain.TextRecognizer,
	filter domain.CandidateFilter,
	opts Options,
	logger *observability.Logger,
) *Service {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 60 * time.Second
	}
	if opts.ObjectName == "" {
		opts.ObjectName = "pdf2emails-current-image.png"
	}
	if filter == nil {
		filter = FirstAnnotationFilter{}
	}
	if logger == nil {
		logger = observability.Nop()
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Service{
		opener:     opener,
		encoder:    encoder,
		uploader:   uploader,
		recognizer: recognizer,
		filter:     filter,
		opts:       opts,
		limiter:    limiter,
		logger:     logger.WithOperation("extract"),
	}
}

// Run extracts email candidates from every page of the document at
// documentPath. Unless SkipFailedPages is set, the first failing page aborts
// the run and no result is returned. Events are sent to eventCh when it is
// non-nil; sends never block.
func (s *Service) Run(ctx context.Context, documentPath string, eventCh chan<- domain.StreamEvent) (*domain.RunResult, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	logger := s.logger.WithRun(runID)

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		Payload:   fmt.Sprintf("Starting extraction of %s", documentPath),
		Timestamp: time.Now(),
	})

	doc, err := s.opener.Open(ctx, documentPath)
	if err != nil {
		perr := domain.NewPipelineError(domain.StageOpen, domain.NoPage, err)
		s.emitError(eventCh, perr)
		return nil, perr
	}
	defer doc.Close()

	pageCount := doc.PageCount()
	logger.Info().Str("path", documentPath).Int("pages", pageCount).Msg("Document opened")

	agg := NewAggregator()
	run := &runState{}

	workers := min(s.opts.Workers, pageCount)
	if pageCount > 0 {
		defer s.cleanup(logger, workers)
		if err := s.processPages(ctx, logger, doc, pageCount, workers, agg, run, eventCh); err != nil {
			s.emitError(eventCh, err)
			logger.Error().Err(err).Msg("Extraction failed")
			return nil, err
		}
	}

	if pageCount > 0 && len(run.skipped) == pageCount {
		err := domain.NewPipelineError(domain.StageExtract, domain.NoPage,
			fmt.Errorf("all %d pages failed", pageCount))
		s.emitError(eventCh, err)
		return nil, err
	}

	result := &domain.RunResult{
		RunID:          runID,
		DocumentPath:   documentPath,
		Emails:         agg.Finalize(),
		PagesTotal:     pageCount,
		PagesProcessed: run.processed,
		SkippedPages:   run.sortedSkipped(),
		Duration:       time.Since(startTime),
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventComplete,
		PageCount: pageCount,
		Payload: fmt.Sprintf("Extraction complete: %d emails from %d/%d pages in %v",
			result.Count(), result.PagesProcessed, pageCount, result.Duration.Round(time.Millisecond)),
		Timestamp: time.Now(),
	})

	logger.Info().
		Int("emails", result.Count()).
		Int("pages_processed", result.PagesProcessed).
		Ints("skipped_pages", result.SkippedPages).
		Dur("duration", result.Duration).
		Msg("Extraction complete")

	return result, nil
}

// runState tracks per-page outcomes shared by the workers
type runState struct {
	mu        sync.Mutex
	processed int
	skipped   []int
}

func (r *runState) done() {
	r.mu.Lock()
	r.processed++
	r.mu.Unlock()
}

func (r *runState) skip(index int) {
	r.mu.Lock()
	r.skipped = append(r.skipped, index)
	r.mu.Unlock()
}

func (r *runState) sortedSkipped() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.skipped) == 0 {
		return nil
	}
	out := append([]int(nil), r.skipped...)
	sort.Ints(out)
	return out
}

// processPages feeds page indices in ascending order to a bounded pool of
// workers. Each worker owns one storage object slot.
func (s *Service) processPages(
	ctx context.Context,
	logger *observability.Logger,
	doc domain.Document,
	pageCount, workers int,
	agg *Aggregator,
	run *runState,
	eventCh chan<- domain.StreamEvent,
) error {
	pages := make(chan int, pageCount)
	for i := 0; i < pageCount; i++ {
		pages <- i
	}
	close(pages)

	g, gctx := errgroup.WithContext(ctx)
	for slot := 0; slot < workers; slot++ {
		object := s.objectName(slot, workers)
		g.Go(func() error {
			for index := range pages {
				if err := gctx.Err(); err != nil {
					return err
				}

				err := s.processPage(gctx, logger.WithPage(index+1), doc, index, pageCount, object, agg, eventCh)
				if err == nil {
					run.done()
					continue
				}
				if !s.opts.SkipFailedPages || gctx.Err() != nil {
					return err
				}

				run.skip(index)
				logger.Warn().Err(err).Int("page", index+1).Msg("Skipping failed page")
				s.emitEvent(eventCh, domain.StreamEvent{
					Type:       domain.EventPageSkipped,
					PageNumber: index + 1,
					PageCount:  pageCount,
					Payload:    err.Error(),
					Timestamp:  time.Now(),
				})
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		var perr *domain.PipelineError
		if !errors.As(err, &perr) {
			return domain.NewPipelineError(domain.StageExtract, domain.NoPage, err)
		}
	}
	return err
}

// processPage runs one page through render, encode, upload, recognize and
// extract, in that order
func (s *Service) processPage(
	ctx context.Context,
	logger *observability.Logger,
	doc domain.Document,
	index, pageCount int,
	object string,
	agg *Aggregator,
	eventCh chan<- domain.StreamEvent,
) error {
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:       domain.EventPageProcessing,
		PageNumber: index + 1,
		PageCount:  pageCount,
		Payload:    fmt.Sprintf("Processing page %d", index+1),
		Timestamp:  time.Now(),
	})

	bitmap, err := doc.Render(ctx, index)
	if err != nil {
		return domain.NewPipelineError(domain.StageRender, index, pageError(domain.RenderError, "render failed", index, err))
	}

	img, err := s.encoder.Encode(bitmap)
	bitmap.Pix = nil
	if err != nil {
		return domain.NewPipelineError(domain.StageEncode, index, pageError(domain.EncodingError, "encode failed", index, err))
	}
	logger.Debug().Int("bytes", len(img.Data)).Msg("Page encoded")

	var locator string
	err = retryWithBackoff(ctx, s.opts.Retry, logger, "upload", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
		defer cancel()

		loc, err := s.uploader.Upload(callCtx, s.opts.Bucket, object, img.Data, img.ContentType)
		if err != nil {
			return pageError(domain.TransportError, "upload failed", index, err)
		}
		locator = loc
		return nil
	})
	if err != nil {
		return domain.NewPipelineError(domain.StageUpload, index, err)
	}

	var annotations []domain.TextAnnotation
	err = retryWithBackoff(ctx, s.opts.Retry, logger, "recognize", func(ctx context.Context) error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return pageError(domain.OcrServiceError, "rate limiter", index, err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
		defer cancel()

		out, err := s.recognizer.Recognize(callCtx, domain.ImageRef{
			PageIndex:   index,
			Locator:     locator,
			Data:        img.Data,
			ContentType: img.ContentType,
		})
		if err != nil {
			return pageError(domain.OcrServiceError, "text detection failed", index, err)
		}
		annotations = out
		return nil
	})
	if err != nil {
		return domain.NewPipelineError(domain.StageRecognize, index, err)
	}

	candidates := s.filter.Candidates(annotations)
	agg.Add(candidates...)

	logger.Debug().
		Int("annotations", len(annotations)).
		Int("candidates", len(candidates)).
		Msg("Page complete")

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:       domain.EventPageComplete,
		PageNumber: index + 1,
		PageCount:  pageCount,
		Payload:    domain.PagePayload{Candidates: len(candidates)},
		Timestamp:  time.Now(),
	})

	return nil
}

// objectName gives each worker slot its own fixed object so concurrent pages
// never overwrite each other's upload
func (s *Service) objectName(slot, workers int) string {
	if workers <= 1 {
		return s.opts.ObjectName
	}
	ext := path.Ext(s.opts.ObjectName)
	base := strings.TrimSuffix(s.opts.ObjectName, ext)
	return fmt.Sprintf("%s-w%d%s", base, slot, ext)
}

// cleanup deletes the slot objects written during the run
func (s *Service) cleanup(logger *observability.Logger, workers int) {
	if !s.opts.Cleanup {
		return
	}
	deleter, ok := s.uploader.(domain.Deleter)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	for slot := 0; slot < workers; slot++ {
		object := s.objectName(slot, workers)
		if err := deleter.Delete(ctx, s.opts.Bucket, object); err != nil {
			logger.Warn().Err(err).Str("object", object).Msg("Failed to delete uploaded object")
		}
	}
}

// pageError attributes err to a page, classifying bare errors with kind.
// Per-call deadlines are marked temporary so they can be retried.
func pageError(kind func(string, error) *domain.DomainError, msg string, index int, err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		if de.PageIndex == domain.NoPage {
			return de.OnPage(index)
		}
		return err
	}
	out := kind(msg, err).OnPage(index)
	if errors.Is(err, context.DeadlineExceeded) {
		out = out.AsTemporary()
	}
	return out
}

// emitEvent safely emits an event to the channel
func (s *Service) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			s.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}
}

// emitError emits an error event
func (s *Service) emitError(eventCh chan<- domain.StreamEvent, err error) {
	page := 0
	var perr *domain.PipelineError
	if errors.As(err, &perr) && perr.PageIndex >= 0 {
		page = perr.PageIndex + 1
	}
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:       domain.EventError,
		PageNumber: page,
		Payload:    err.Error(),
		Timestamp:  time.Now(),
	})
}
