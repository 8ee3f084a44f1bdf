package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/flarexio/insights/report"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	return func(next Service) Service {
		return &loggingMiddleware{
			log.With(
				zap.String("service", "scraper"),
				zap.String("middleware", "logging"),
			),
			next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Metrics(ctx context.Context) ([]report.Track, error) {
	log := mw.log.With(
		zap.String("action", "metrics"),
	)

	start := time.Now()

	tracks, err := mw.next.Metrics(ctx)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("tracks scraped",
		zap.Int("tracks", len(tracks)),
		zap.Int("total_plays", report.SumPlays(tracks)),
		zap.Int("total_likes", report.SumLikes(tracks)),
		zap.Duration("took", time.Since(start)),
	)
	return tracks, nil
}

func (mw *loggingMiddleware) Insights(ctx context.Context) (*report.Report, error) {
	log := mw.log.With(
		zap.String("action", "insights"),
	)

	start := time.Now()

	r, err := mw.next.Insights(ctx)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("insights scraped",
		zap.String("report_id", r.ID.String()),
		zap.String("username", r.User.Username),
		zap.Int("tracks", len(r.Tracks)),
		zap.Int("countries", len(r.Aggregate.Countries)),
		zap.Int("cities", len(r.Aggregate.Cities)),
		zap.Int("country_mappings", len(r.CountryTracks)),
		zap.Duration("took", time.Since(start)),
	)
	return r, nil
}
