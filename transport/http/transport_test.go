package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/flarexio/insights"
	"github.com/flarexio/insights/conf"
	"github.com/flarexio/insights/geo"
	"github.com/flarexio/insights/persistence/file"
	"github.com/flarexio/insights/report"
)

type transportTestSuite struct {
	suite.Suite
	reports *file.ReportRepository
	router  *gin.Engine
}

func (suite *transportTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (suite *transportTestSuite) SetupTest() {
	gazetteer, err := geo.NewGazetteer()
	suite.Require().NoError(err)

	suite.reports = file.NewReportRepository(conf.Persistence{
		Driver: conf.File,
		Host:   suite.T().TempDir(),
	})

	r := report.NewReport(report.Profile{Username: "dj-test"})
	r.SetCountries([]report.CountryPlays{
		{Name: "Germany", Code: "DE", Plays: 9},
	})
	r.SetCities([]report.CityPlays{
		{Name: "Berlin", Country: "Germany", CountryCode: "DE", Plays: 6},
	})
	r.AddTrack(report.TrackGeo{
		URN:   "soundcloud:tracks:42",
		Title: "Deep <Blue>",
		Plays: 9,
		Countries: []report.CountryPlays{
			{Name: "Germany", Code: "DE", Plays: 9},
		},
		Cities: []report.CityPlays{
			{Name: "Berlin", Country: "Germany", CountryCode: "DE", Plays: 6},
		},
	})
	r.IndexCountries()
	suite.Require().NoError(suite.reports.Store(r))

	svc := insights.NewService(suite.reports, gazetteer)
	_, err = svc.Reload()
	suite.Require().NoError(err)

	suite.router = gin.New()
	err = AddRoutes(suite.router, insights.NewEndpointSet(svc))
	suite.Require().NoError(err)
}

func (suite *transportTestSuite) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *transportTestSuite) TestSummary() {
	w := suite.do(http.MethodGet, "/api/summary")
	suite.Equal(http.StatusOK, w.Code)

	var s insights.Summary
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &s))
	suite.Equal("dj-test", s.Username)
	suite.Equal(9, s.TotalPlays)
	suite.Equal("Deep <Blue>", s.TopTrack)
}

func (suite *transportTestSuite) TestTrack() {
	w := suite.do(http.MethodGet, "/api/track/soundcloud:tracks:42")
	suite.Equal(http.StatusOK, w.Code)

	var t report.TrackGeo
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &t))
	suite.Equal("Deep <Blue>", t.Title)

	w = suite.do(http.MethodGet, "/api/track/42")
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *transportTestSuite) TestNotFound() {
	w := suite.do(http.MethodGet, "/api/track/404")
	suite.Equal(http.StatusNotFound, w.Code)
	suite.JSONEq(`{"error": "track not found"}`, w.Body.String())

	w = suite.do(http.MethodGet, "/api/country/FR")
	suite.Equal(http.StatusNotFound, w.Code)
	suite.JSONEq(`{"error": "country not found"}`, w.Body.String())

	w = suite.do(http.MethodGet, "/countries/FR")
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *transportTestSuite) TestCountry() {
	w := suite.do(http.MethodGet, "/api/country/de")
	suite.Equal(http.StatusOK, w.Code)

	var ct report.CountryTracks
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &ct))
	suite.Equal("DE", ct.Code)
	suite.Equal(9, ct.TotalPlays)

	w = suite.do(http.MethodGet, "/api/country/de/cities")
	suite.Equal(http.StatusOK, w.Code)

	var cities []report.RankedCity
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &cities))
	suite.Len(cities, 1)

	w = suite.do(http.MethodGet, "/api/country/FR/cities")
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`[]`, w.Body.String())
}

func (suite *transportTestSuite) TestMapData() {
	w := suite.do(http.MethodGet, "/api/map-data")
	suite.Equal(http.StatusOK, w.Code)

	var data insights.MapData
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &data))
	suite.Len(data.Cities, 1)
	suite.Equal(9, data.CountryPlays["DE"])
}

func (suite *transportTestSuite) TestReload() {
	next := report.NewReport(report.Profile{Username: "after-reload"})
	suite.Require().NoError(suite.reports.Store(next))

	w := suite.do(http.MethodPost, "/api/reload")
	suite.Equal(http.StatusOK, w.Code)

	var resp insights.ReloadResponse
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(next.ID.String(), resp.ReportID)

	w = suite.do(http.MethodGet, "/api/summary")
	suite.Contains(w.Body.String(), "after-reload")
}

func (suite *transportTestSuite) TestPages() {
	w := suite.do(http.MethodGet, "/")
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "dj-test")
	suite.Contains(w.Body.String(), "Deep &lt;Blue&gt;")
	suite.Contains(w.Body.String(), `href="/countries/DE"`)

	w = suite.do(http.MethodGet, "/tracks/soundcloud:tracks:42")
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "Berlin")
	suite.Contains(w.Body.String(), "100.0%")

	w = suite.do(http.MethodGet, "/countries/de")
	suite.Equal(http.StatusOK, w.Code)
	suite.True(strings.Contains(w.Body.String(), "Germany (DE)"))
}

func TestTransportTestSuite(t *testing.T) {
	suite.Run(t, new(transportTestSuite))
}
