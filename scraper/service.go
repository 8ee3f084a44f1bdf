package scraper

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/flarexio/insights/report"
	"github.com/flarexio/insights/soundcloud"
)

var (
	ErrNoTracks = errors.New("no tracks found")
)

// Client is the subset of the SoundCloud client the scrapers rely on.
type Client interface {
	Me(ctx context.Context) (*soundcloud.User, error)
	Tracks(ctx context.Context, userID string, limit int) ([]soundcloud.Track, error)

	Profile(ctx context.Context) (*soundcloud.Profile, error)
	TopTracks(ctx context.Context, window string, limit int) ([]soundcloud.TrackCount, error)
	TopCountries(ctx context.Context, window string, limit int, trackURN string) ([]soundcloud.CountryCount, error)
	TopCities(ctx context.Context, window string, limit int, trackURN string) ([]soundcloud.CityCount, error)
}

type Service interface {
	// Metrics reads the public counters of every uploaded track.
	Metrics(ctx context.Context) ([]report.Track, error)

	// Insights builds the geographic report for the top tracks.
	Insights(ctx context.Context) (*report.Report, error)
}

type ServiceMiddleware func(Service) Service

type Options struct {
	Token      string
	Window     string
	Limit      int
	TrackLimit int
	GeoTracks  int

	// Progress, when set, is called after each track is processed.
	Progress func(i, total int, title string)

	// Logger receives breakdowns that were skipped.
	Logger *zap.Logger
}

func NewService(client Client, opts Options) Service {
	if opts.Window == "" {
		opts.Window = "DAYS_30"
	}

	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	if opts.TrackLimit <= 0 {
		opts.TrackLimit = 200
	}

	if opts.GeoTracks <= 0 {
		opts.GeoTracks = 20
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &service{client, opts}
}

type service struct {
	client Client
	opts   Options
}

func (svc *service) Metrics(ctx context.Context) ([]report.Track, error) {
	userID, err := soundcloud.ParseUserID(svc.opts.Token)
	if err != nil {
		return nil, err
	}

	if _, err := svc.client.Me(ctx); err != nil {
		return nil, err
	}

	tracks, err := svc.client.Tracks(ctx, userID, svc.opts.TrackLimit)
	if err != nil {
		if fatal(ctx, err) || len(tracks) == 0 {
			return nil, err
		}

		// a failed page keeps what was read before it
		svc.opts.Logger.Warn("tracks incomplete",
			zap.Int("tracks", len(tracks)),
			zap.Error(err),
		)
	}

	if len(tracks) == 0 {
		return nil, ErrNoTracks
	}

	rows := make([]report.Track, len(tracks))
	for i, t := range tracks {
		rows[i] = TrackStats(t)

		if svc.opts.Progress != nil {
			svc.opts.Progress(i+1, len(tracks), t.Title)
		}
	}

	return rows, nil
}

// fatal reports errors that abort a scrape instead of skipping a page or
// a breakdown.
func fatal(ctx context.Context, err error) bool {
	if errors.Is(err, soundcloud.ErrUnauthorized) {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return ctx.Err() != nil
}

func TrackStats(t soundcloud.Track) report.Track {
	return report.Track{
		Title:       t.Title,
		URL:         t.PermalinkURL,
		Plays:       t.PlaybackCount,
		Likes:       t.LikesCount,
		Reposts:     t.RepostsCount,
		Comments:    t.CommentCount,
		Downloads:   t.DownloadCount,
		UploadDate:  report.DateOnly(t.CreatedAt),
		Duration:    report.FormatDuration(t.Duration),
		Genre:       t.Genre,
		Tags:        t.TagList,
		Description: report.Truncate(t.Description, report.MaxDescriptionLength),
	}
}

func (svc *service) Insights(ctx context.Context) (*report.Report, error) {
	opts := svc.opts

	me, err := svc.client.Profile(ctx)
	if err != nil {
		return nil, err
	}

	top, err := svc.client.TopTracks(ctx, opts.Window, opts.Limit)
	if err != nil {
		return nil, err
	}

	if len(top) == 0 {
		return nil, ErrNoTracks
	}

	r := report.NewReport(ProfileOf(me))

	ranked := make([]report.RankedTrack, len(top))
	for i, t := range top {
		ranked[i] = report.RankedTrack{
			Rank:      i + 1,
			Title:     t.Track.Title,
			Plays:     t.Count,
			URL:       t.Track.PermalinkURL,
			CreatedAt: report.DateOnly(t.Track.CreatedAt),
		}
	}
	r.TopTracks = ranked

	countries, err := svc.client.TopCountries(ctx, opts.Window, opts.Limit, "")
	if err != nil {
		if errors.Is(err, soundcloud.ErrUnauthorized) {
			return nil, err
		}

		opts.Logger.Warn("countries skipped", zap.Error(err))
		countries = nil
	}
	r.SetCountries(countryPlays(countries))

	cities, err := svc.client.TopCities(ctx, opts.Window, opts.Limit, "")
	if err != nil {
		if errors.Is(err, soundcloud.ErrUnauthorized) {
			return nil, err
		}

		opts.Logger.Warn("cities skipped", zap.Error(err))
		cities = nil
	}
	r.SetCities(cityPlays(cities))

	n := min(len(top), opts.GeoTracks)
	for i, t := range top[:n] {
		geo, err := svc.trackGeo(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("track %s: %w", t.Track.URN, err)
		}

		r.AddTrack(geo)

		if opts.Progress != nil {
			opts.Progress(i+1, n, t.Track.Title)
		}
	}

	r.IndexCountries()
	r.Scraped()

	return r, nil
}

// trackGeo only fails on authentication errors, other failures leave the
// breakdown empty.
func (svc *service) trackGeo(ctx context.Context, t soundcloud.TrackCount) (report.TrackGeo, error) {
	opts := svc.opts
	urn := t.Track.URN

	countries, err := svc.client.TopCountries(ctx, opts.Window, opts.Limit, urn)
	if err != nil {
		if fatal(ctx, err) {
			return report.TrackGeo{}, err
		}

		opts.Logger.Warn("track countries skipped", zap.String("urn", urn), zap.Error(err))
		countries = nil
	}

	cities, err := svc.client.TopCities(ctx, opts.Window, opts.Limit, urn)
	if err != nil {
		if fatal(ctx, err) {
			return report.TrackGeo{}, err
		}

		opts.Logger.Warn("track cities skipped", zap.String("urn", urn), zap.Error(err))
		cities = nil
	}

	return report.TrackGeo{
		URN:       urn,
		Title:     t.Track.Title,
		Plays:     t.Count,
		URL:       t.Track.PermalinkURL,
		Artwork:   t.Track.ArtworkURL,
		CreatedAt: report.DateOnly(t.Track.CreatedAt),
		Countries: countryPlays(countries),
		Cities:    cityPlays(cities),
	}, nil
}

func ProfileOf(p *soundcloud.Profile) report.Profile {
	features := make([]string, 0, len(p.Features))
	for _, f := range p.Features {
		features = append(features, fmt.Sprint(f))
	}

	return report.Profile{
		Username:       p.Username,
		Permalink:      p.Permalink,
		PermalinkURL:   p.PermalinkURL,
		URN:            p.URN,
		AvatarURL:      p.AvatarURL,
		City:           p.City,
		Country:        p.Country,
		CreatedAt:      p.CreatedAt,
		Features:       features,
		FollowersCount: p.FollowersCount,
		IsPro:          p.IsPro,
	}
}

func countryPlays(counts []soundcloud.CountryCount) []report.CountryPlays {
	countries := make([]report.CountryPlays, len(counts))
	for i, c := range counts {
		countries[i] = report.CountryPlays{
			Name:  c.Country.Name,
			Code:  c.Country.CountryCode,
			Plays: c.Count,
		}
	}

	return countries
}

func cityPlays(counts []soundcloud.CityCount) []report.CityPlays {
	cities := make([]report.CityPlays, len(counts))
	for i, c := range counts {
		cities[i] = report.CityPlays{
			Name:        c.City.Name,
			Country:     c.City.Country.Name,
			CountryCode: c.City.Country.CountryCode,
			Plays:       c.Count,
		}
	}

	return cities
}
