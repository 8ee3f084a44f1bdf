package report

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/flarexio/core/events"
	"github.com/oklog/ulid/v2"
)

var (
	ErrReportNotFound = errors.New("report not found")
)

type ReportID ulid.ULID

func MakeID() ReportID {
	return ReportID(ulid.Make())
}

func ParseID(id string) (ReportID, error) {
	reportID, err := ulid.Parse(id)
	if err != nil {
		return ReportID{}, err
	}
	return ReportID(reportID), nil
}

func (id ReportID) Bytes() []byte {
	return id[:]
}

func (id ReportID) String() string {
	return ulid.ULID(id).String()
}

func (id ReportID) Time() time.Time {
	ms := ulid.ULID(id).Time()
	return ulid.Time(ms)
}

func (id ReportID) IsZero() bool {
	return id == ReportID{}
}

func (id ReportID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte(`""`), nil
	}

	jsonStr := `"` + id.String() + `"`
	return []byte(jsonStr), nil
}

func (id *ReportID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "" {
		*id = ReportID{}
		return nil
	}

	reportID, err := ParseID(s)
	if err != nil {
		return err
	}

	*id = reportID
	return nil
}

// Profile is the authenticated account as returned by the insights API.
type Profile struct {
	Username       string   `json:"username"`
	Permalink      string   `json:"permalink"`
	PermalinkURL   string   `json:"permalinkUrl"`
	URN            string   `json:"urn"`
	AvatarURL      string   `json:"avatarUrl"`
	City           string   `json:"city"`
	Country        string   `json:"country"`
	CreatedAt      string   `json:"createdAt"`
	Features       []string `json:"features"`
	FollowersCount int      `json:"followersCount"`
	TrackCount     int      `json:"trackCount,omitempty"`
	IsPro          bool     `json:"isPro"`
}

type CountryPlays struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Plays int    `json:"plays"`
}

type CityPlays struct {
	Name        string `json:"name"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Plays       int    `json:"plays"`
}

type RankedCountry struct {
	Rank int `json:"rank"`
	CountryPlays
}

type RankedCity struct {
	Rank int `json:"rank"`
	CityPlays
}

type RankedTrack struct {
	Rank      int    `json:"rank"`
	Title     string `json:"title"`
	Plays     int    `json:"plays"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

type TrackGeo struct {
	URN       string         `json:"urn"`
	Title     string         `json:"title"`
	Plays     int            `json:"plays"`
	URL       string         `json:"url"`
	Artwork   string         `json:"artwork"`
	CreatedAt string         `json:"created_at"`
	Countries []CountryPlays `json:"countries"`
	Cities    []CityPlays    `json:"cities"`
}

type CountryTrack struct {
	Title string `json:"title"`
	URN   string `json:"urn"`
	Plays int    `json:"plays"`
}

type CountryTracks struct {
	Name       string         `json:"name"`
	Code       string         `json:"code"`
	TotalPlays int            `json:"total_plays"`
	Tracks     []CountryTrack `json:"tracks"`
}

type Aggregate struct {
	Countries []RankedCountry `json:"countries"`
	Cities    []RankedCity    `json:"cities"`
}

type Report struct {
	ID            ReportID                  `json:"id"`
	User          Profile                   `json:"user"`
	Aggregate     Aggregate                 `json:"aggregate"`
	TopTracks     []RankedTrack             `json:"top_tracks"`
	Tracks        []TrackGeo                `json:"tracks"`
	CountryTracks map[string]*CountryTracks `json:"country_tracks"`
	CreatedAt     time.Time                 `json:"created_at"`

	events.EventStore `json:"-"`
}

func NewReport(user Profile) *Report {
	id := MakeID()

	return &Report{
		ID:   id,
		User: user,
		Aggregate: Aggregate{
			Countries: make([]RankedCountry, 0),
			Cities:    make([]RankedCity, 0),
		},
		TopTracks:     make([]RankedTrack, 0),
		Tracks:        make([]TrackGeo, 0),
		CountryTracks: make(map[string]*CountryTracks),
		CreatedAt:     id.Time(),

		EventStore: events.NewEventStore(),
	}
}

// Empty returns the report served before any scrape has been stored.
func Empty() *Report {
	return &Report{
		Aggregate: Aggregate{
			Countries: make([]RankedCountry, 0),
			Cities:    make([]RankedCity, 0),
		},
		TopTracks:     make([]RankedTrack, 0),
		Tracks:        make([]TrackGeo, 0),
		CountryTracks: make(map[string]*CountryTracks),
	}
}

// Scraped records that the report is complete and ready to be announced.
func (r *Report) Scraped() {
	if r.EventStore == nil {
		r.EventStore = events.NewEventStore()
	}

	e := NewReportScrapedEvent(r)
	r.AddEvent(e)
}

func (r *Report) SetCountries(countries []CountryPlays) {
	ranked := make([]RankedCountry, len(countries))
	for i, c := range countries {
		ranked[i] = RankedCountry{Rank: i + 1, CountryPlays: c}
	}

	r.Aggregate.Countries = ranked
}

func (r *Report) SetCities(cities []CityPlays) {
	ranked := make([]RankedCity, len(cities))
	for i, c := range cities {
		ranked[i] = RankedCity{Rank: i + 1, CityPlays: c}
	}

	r.Aggregate.Cities = ranked
}

func (r *Report) AddTrack(t TrackGeo) {
	r.Tracks = append(r.Tracks, t)
}

// IndexCountries rebuilds the country drill-down index from the tracks.
func (r *Report) IndexCountries() {
	r.CountryTracks = BuildCountryTracks(r.Tracks)
}

func (r *Report) TotalPlays() int {
	total := 0
	for _, t := range r.Tracks {
		total += t.Plays
	}

	return total
}

// FindTrack matches the URN exactly, or as a suffix so bare track IDs work.
func (r *Report) FindTrack(urn string) (*TrackGeo, bool) {
	if urn == "" {
		return nil, false
	}

	for i := range r.Tracks {
		if r.Tracks[i].URN == urn {
			return &r.Tracks[i], true
		}
	}

	for i := range r.Tracks {
		if strings.HasSuffix(r.Tracks[i].URN, urn) {
			return &r.Tracks[i], true
		}
	}

	return nil, false
}

func (r *Report) Country(code string) (*CountryTracks, bool) {
	ct, ok := r.CountryTracks[strings.ToUpper(code)]
	return ct, ok
}

func (r *Report) CitiesIn(code string) []RankedCity {
	cities := make([]RankedCity, 0)
	for _, c := range r.Aggregate.Cities {
		if strings.EqualFold(c.CountryCode, code) {
			cities = append(cities, c)
		}
	}

	return cities
}

func BuildCountryTracks(tracks []TrackGeo) map[string]*CountryTracks {
	index := make(map[string]*CountryTracks)
	for _, t := range tracks {
		for _, c := range t.Countries {
			ct, ok := index[c.Code]
			if !ok {
				ct = &CountryTracks{
					Name:   c.Name,
					Code:   c.Code,
					Tracks: make([]CountryTrack, 0),
				}
				index[c.Code] = ct
			}

			ct.TotalPlays += c.Plays
			ct.Tracks = append(ct.Tracks, CountryTrack{
				Title: t.Title,
				URN:   t.URN,
				Plays: c.Plays,
			})
		}
	}

	for _, ct := range index {
		sort.SliceStable(ct.Tracks, func(i, j int) bool {
			return ct.Tracks[i].Plays > ct.Tracks[j].Plays
		})
	}

	return index
}
