package insights

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/flarexio/insights/geo"
	"github.com/flarexio/insights/report"
)

var (
	ErrTrackNotFound   = errors.New("track not found")
	ErrCountryNotFound = errors.New("country not found")
)

type Service interface {
	Summary() Summary
	Tracks() []report.TrackGeo
	Track(urn string) (*report.TrackGeo, error)
	Countries() []report.RankedCountry
	Country(code string) (*report.CountryTracks, error)
	CountryCities(code string) []report.RankedCity
	Cities() []City
	MapData() MapData

	// Reload swaps in the latest stored report.
	Reload() (*report.Report, error)
}

type ServiceMiddleware func(Service) Service

type Summary struct {
	ReportID       string    `json:"report_id,omitempty"`
	ScrapedAt      time.Time `json:"scraped_at,omitempty"`
	Username       string    `json:"username"`
	TotalPlays     int       `json:"total_plays"`
	TotalTracks    int       `json:"total_tracks"`
	TotalCountries int       `json:"total_countries"`
	TotalCities    int       `json:"total_cities"`
	TopTrack       string    `json:"top_track"`
	TopTrackPlays  int       `json:"top_track_plays"`
}

// City is an aggregate city, placed on the map when its coordinates are known.
type City struct {
	report.RankedCity
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

type MapCity struct {
	report.CityPlays
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type MapData struct {
	Cities       []MapCity      `json:"cities"`
	CountryPlays map[string]int `json:"country_plays"`
}

func NewService(reports report.Repository, gazetteer *geo.Gazetteer) Service {
	return &service{
		reports:   reports,
		gazetteer: gazetteer,
		current:   report.Empty(),
	}
}

type service struct {
	reports   report.Repository
	gazetteer *geo.Gazetteer

	mu      sync.RWMutex
	current *report.Report
}

func (svc *service) report() *report.Report {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	return svc.current
}

func (svc *service) Reload() (*report.Report, error) {
	r, err := svc.reports.Latest()
	if err != nil {
		if !errors.Is(err, report.ErrReportNotFound) {
			return nil, err
		}

		r = report.Empty()
	}

	svc.mu.Lock()
	svc.current = r
	svc.mu.Unlock()

	return r, nil
}

func (svc *service) Summary() Summary {
	r := svc.report()

	s := Summary{
		Username:       r.User.Username,
		TotalPlays:     r.TotalPlays(),
		TotalTracks:    len(r.Tracks),
		TotalCountries: len(r.Aggregate.Countries),
		TotalCities:    len(r.Aggregate.Cities),
		TopTrack:       "N/A",
	}

	if !r.ID.IsZero() {
		s.ReportID = r.ID.String()
		s.ScrapedAt = r.CreatedAt
	}

	if s.Username == "" {
		s.Username = "unknown"
	}

	if len(r.Tracks) > 0 {
		s.TopTrack = r.Tracks[0].Title
		s.TopTrackPlays = r.Tracks[0].Plays
	}

	return s
}

func (svc *service) Tracks() []report.TrackGeo {
	return svc.report().Tracks
}

func (svc *service) Track(urn string) (*report.TrackGeo, error) {
	// tolerate URNs whose colons arrive percent-encoded
	urn = strings.ReplaceAll(urn, "%3A", ":")
	urn = strings.ReplaceAll(urn, "%3a", ":")

	t, ok := svc.report().FindTrack(urn)
	if !ok {
		return nil, ErrTrackNotFound
	}

	return t, nil
}

func (svc *service) Countries() []report.RankedCountry {
	return svc.report().Aggregate.Countries
}

func (svc *service) Country(code string) (*report.CountryTracks, error) {
	ct, ok := svc.report().Country(code)
	if !ok {
		return nil, ErrCountryNotFound
	}

	return ct, nil
}

func (svc *service) CountryCities(code string) []report.RankedCity {
	return svc.report().CitiesIn(code)
}

func (svc *service) Cities() []City {
	r := svc.report()

	cities := make([]City, len(r.Aggregate.Cities))
	for i, c := range r.Aggregate.Cities {
		cities[i] = City{RankedCity: c}

		if coords, ok := svc.gazetteer.Lookup(c.Name); ok {
			lat, lng := coords.Lat, coords.Lng
			cities[i].Lat = &lat
			cities[i].Lng = &lng
		}
	}

	return cities
}

func (svc *service) MapData() MapData {
	r := svc.report()

	cities := make([]MapCity, 0, len(r.Aggregate.Cities))
	for _, c := range r.Aggregate.Cities {
		coords, ok := svc.gazetteer.Lookup(c.Name)
		if !ok {
			continue
		}

		cities = append(cities, MapCity{
			CityPlays: c.CityPlays,
			Lat:       coords.Lat,
			Lng:       coords.Lng,
		})
	}

	countryPlays := make(map[string]int, len(r.Aggregate.Countries))
	for _, c := range r.Aggregate.Countries {
		countryPlays[c.Code] = c.Plays
	}

	return MapData{
		Cities:       cities,
		CountryPlays: countryPlays,
	}
}
