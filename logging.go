package insights

import (
	"go.uber.org/zap"

	"github.com/flarexio/insights/report"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	return func(next Service) Service {
		return &loggingMiddleware{
			log.With(
				zap.String("service", "insights"),
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

func (mw *loggingMiddleware) Summary() Summary {
	s := mw.next.Summary()

	mw.log.Debug("summary served",
		zap.String("action", "summary"),
		zap.Int("total_plays", s.TotalPlays),
	)
	return s
}

func (mw *loggingMiddleware) Tracks() []report.TrackGeo {
	tracks := mw.next.Tracks()

	mw.log.Debug("tracks listed",
		zap.String("action", "tracks"),
		zap.Int("tracks", len(tracks)),
	)
	return tracks
}

func (mw *loggingMiddleware) Track(urn string) (*report.TrackGeo, error) {
	log := mw.log.With(
		zap.String("action", "track"),
		zap.String("urn", urn),
	)

	t, err := mw.next.Track(urn)
	if err != nil {
		log.Warn(err.Error())
		return nil, err
	}

	log.Debug("track found", zap.String("title", t.Title))
	return t, nil
}

func (mw *loggingMiddleware) Countries() []report.RankedCountry {
	countries := mw.next.Countries()

	mw.log.Debug("countries listed",
		zap.String("action", "countries"),
		zap.Int("countries", len(countries)),
	)
	return countries
}

func (mw *loggingMiddleware) Country(code string) (*report.CountryTracks, error) {
	log := mw.log.With(
		zap.String("action", "country"),
		zap.String("code", code),
	)

	ct, err := mw.next.Country(code)
	if err != nil {
		log.Warn(err.Error())
		return nil, err
	}

	log.Debug("country found", zap.Int("tracks", len(ct.Tracks)))
	return ct, nil
}

func (mw *loggingMiddleware) CountryCities(code string) []report.RankedCity {
	cities := mw.next.CountryCities(code)

	mw.log.Debug("country cities listed",
		zap.String("action", "country_cities"),
		zap.String("code", code),
		zap.Int("cities", len(cities)),
	)
	return cities
}

func (mw *loggingMiddleware) Cities() []City {
	cities := mw.next.Cities()

	mw.log.Debug("cities listed",
		zap.String("action", "cities"),
		zap.Int("cities", len(cities)),
	)
	return cities
}

func (mw *loggingMiddleware) MapData() MapData {
	data := mw.next.MapData()

	mw.log.Debug("map data served",
		zap.String("action", "map_data"),
		zap.Int("cities", len(data.Cities)),
	)
	return data
}

func (mw *loggingMiddleware) Reload() (*report.Report, error) {
	log := mw.log.With(
		zap.String("action", "reload"),
	)

	r, err := mw.next.Reload()
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	if r.ID.IsZero() {
		log.Warn("no report stored, serving empty dashboard")
		return r, nil
	}

	log.Info("report loaded",
		zap.String("report_id", r.ID.String()),
		zap.String("username", r.User.Username),
		zap.Int("tracks", len(r.Tracks)),
	)
	return r, nil
}
