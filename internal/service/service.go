package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"ymlfeed/exporter/internal/client"
	"ymlfeed/exporter/internal/domain"
	"ymlfeed/exporter/internal/domain/event"
	"ymlfeed/exporter/internal/export"
	"ymlfeed/exporter/internal/observability"
	"ymlfeed/exporter/internal/parser"
	"ymlfeed/exporter/internal/queue"
	"ymlfeed/exporter/internal/repository"
	"ymlfeed/exporter/internal/sink"
	"ymlfeed/exporter/internal/state"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Sink   sink.Options
	Export export.Options
	// Conditional skips the run when the feed is unchanged since the last
	// export and the previous output file still exists.
	Conditional bool
}

// Service runs exports. stateManager, publisher and repository are optional.
type Service struct {
	client       client.FeedClient
	parser       parser.FeedParser
	stateManager state.StateManager
	publisher    queue.Publisher
	repository   repository.OfferRepository
	metrics      *observability.Metrics
	opts         Options
}

func NewService(
	client client.FeedClient,
	parser parser.FeedParser,
	stateManager state.StateManager,
	publisher queue.Publisher,
	repository repository.OfferRepository,
	metrics *observability.Metrics,
	opts Options,
) *Service {
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	return &Service{
		client:       client,
		parser:       parser,
		stateManager: stateManager,
		publisher:    publisher,
		repository:   repository,
		metrics:      metrics,
		opts:         opts,
	}
}

// Export fetches the feed at feedURL and writes one row per offer to
// outputPath. The output file is replaced only when the whole run succeeds.
func (s *Service) Export(ctx context.Context, feedURL, outputPath string) (*domain.Summary, error) {
	start := time.Now()
	summary := &domain.Summary{
		RunID:      uuid.NewString(),
		FeedURL:    feedURL,
		OutputPath: outputPath,
	}

	logger := log.WithFields(log.Fields{
		"run_id": summary.RunID,
		"url":    feedURL,
		"output": outputPath,
	})

	err := s.export(ctx, logger, summary)
	summary.Duration = time.Since(start)
	s.observe(summary, err)

	if err != nil {
		logger.Errorf("❌ Export failed after %s: %v", summary.Duration.Round(time.Millisecond), err)
		return nil, err
	}

	return summary, nil
}

func (s *Service) export(ctx context.Context, logger *log.Entry, summary *domain.Summary) error {
	prev := s.previousState(ctx, logger, summary)

	out, err := sink.Open(summary.OutputPath, s.opts.Sink)
	if err != nil {
		return err
	}
	defer out.Discard()

	logger.Info("📥 Fetching feed")

	feed, err := s.client.Open(ctx, summary.FeedURL, prev)
	if errors.Is(err, domain.ErrNotModified) {
		summary.Skipped = true
		logger.Info("⏭️ Feed not modified since last export, keeping previous output")
		return nil
	}
	if err != nil {
		return err
	}
	defer feed.Body.Close()

	projector := export.NewProjector(s.opts.Export)

	result, err := s.parser.Parse(ctx, feed.Body, projector.Collect)
	if err != nil {
		return err
	}

	summary.Categories = result.Stats.Categories
	summary.Offers = result.Stats.Offers
	summary.LookupMisses = result.Stats.LookupMisses
	summary.BytesRead = result.Stats.BytesRead
	summary.Columns = projector.Header()

	s.metrics.CategoriesTotal.Add(float64(result.Stats.Categories))
	s.metrics.DuplicateCategories.Add(float64(result.Stats.DuplicateCategories))
	s.metrics.LookupMissesTotal.Add(float64(result.Stats.LookupMisses))
	s.metrics.OffersTotal.Add(float64(result.Stats.Offers))
	s.metrics.FeedBytes.Add(float64(result.Stats.BytesRead))

	logger.Infof("🔄 Parsed %d categories and %d offers into %d columns (%d unresolved categories)",
		summary.Categories, summary.Offers, len(summary.Columns), summary.LookupMisses)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := projector.Emit(out)
		s.metrics.RowsWritten.Add(float64(rows))
		if err != nil {
			return err
		}
		return out.Flush()
	})

	if s.repository != nil {
		g.Go(func() error {
			if err := s.repository.SaveOffers(gctx, summary.FeedURL, summary.RunID, projector.Offers()); err != nil {
				return fmt.Errorf("failed to mirror offers: %w", err)
			}
			logger.Debugf("Mirrored %d offers to Postgres", projector.Len())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if err := out.Close(); err != nil {
		return err
	}

	logger.Infof("✅ Wrote %d rows to %s", summary.Offers, summary.OutputPath)

	s.saveState(ctx, logger, summary, feed.Meta)
	s.publish(ctx, logger, summary)

	return nil
}

// previousState returns the validators for a conditional fetch, or nil when
// the run must fetch unconditionally.
func (s *Service) previousState(ctx context.Context, logger *log.Entry, summary *domain.Summary) *domain.FeedState {
	if !s.opts.Conditional || s.stateManager == nil {
		return nil
	}

	if _, err := os.Stat(summary.OutputPath); err != nil {
		logger.Debugf("Previous output unavailable (%v), fetching unconditionally", err)
		return nil
	}

	prev, err := s.stateManager.GetFeedState(ctx, summary.FeedURL)
	if err != nil {
		logger.Warnf("⚠️ Failed to load feed state, fetching unconditionally: %v", err)
		return nil
	}

	return prev
}

func (s *Service) saveState(ctx context.Context, logger *log.Entry, summary *domain.Summary, meta domain.FeedMeta) {
	if s.stateManager == nil {
		return
	}

	err := s.stateManager.SetFeedState(ctx, summary.FeedURL, &domain.FeedState{
		ETag:         meta.ETag,
		LastModified: meta.LastModified,
		Offers:       summary.Offers,
		ExportedAt:   time.Now().UTC(),
	})
	if err != nil {
		logger.Warnf("⚠️ Failed to save feed state: %v", err)
	}
}

func (s *Service) publish(ctx context.Context, logger *log.Entry, summary *domain.Summary) {
	if s.publisher == nil {
		return
	}

	_, err := s.publisher.Publish(ctx, &event.ExportCompleted{
		RunID:      summary.RunID,
		FeedURL:    summary.FeedURL,
		OutputPath: summary.OutputPath,
		Format:     sink.ResolveFormat(s.opts.Sink.Format, summary.OutputPath),
		Offers:     summary.Offers,
		Categories: summary.Categories,
		Columns:    summary.Columns,
		FinishedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Warnf("⚠️ Failed to publish export event: %v", err)
	}
}

func (s *Service) observe(summary *domain.Summary, err error) {
	result := "success"
	switch {
	case err != nil:
		result = "error"
	case summary.Skipped:
		result = "skipped"
	}

	s.metrics.RunsTotal.WithLabelValues(result).Inc()
	s.metrics.RunDuration.Observe(summary.Duration.Seconds())
	if err == nil {
		s.metrics.LastSuccessTimestamp.SetToCurrentTime()
	}
}
