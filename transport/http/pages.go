package http

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/insights"
	"github.com/flarexio/insights/report"
)

//go:embed templates/*.html
var templatesFS embed.FS

var funcs = template.FuncMap{
	"percent": func(part, total int) string {
		if total <= 0 {
			return "0.0%"
		}

		return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
	},
	"inc": func(i int) int {
		return i + 1
	},
}

func LoadTemplates(r *gin.Engine) error {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return err
	}

	r.SetHTMLTemplate(tmpl)
	return nil
}

var errInvalidResponse = errors.New("invalid response")

func call[T any](c *gin.Context, endpoint endpoint.Endpoint, request any) (T, error) {
	var zero T

	resp, err := endpoint(c, request)
	if err != nil {
		return zero, err
	}

	v, ok := resp.(T)
	if !ok {
		return zero, errInvalidResponse
	}

	return v, nil
}

func pageError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, insights.ErrTrackNotFound) ||
		errors.Is(err, insights.ErrCountryNotFound) {
		code = http.StatusNotFound
	}

	c.Abort()
	c.Error(err)
	c.String(code, err.Error())
}

type OverviewData struct {
	Summary   insights.Summary
	Tracks    []report.TrackGeo
	Countries []report.RankedCountry
	Cities    []insights.City
}

func OverviewPage(endpoints insights.EndpointSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			data OverviewData
			err  error
		)

		if data.Summary, err = call[insights.Summary](c, endpoints.Summary, nil); err != nil {
			pageError(c, err)
			return
		}

		if data.Tracks, err = call[[]report.TrackGeo](c, endpoints.Tracks, nil); err != nil {
			pageError(c, err)
			return
		}

		if data.Countries, err = call[[]report.RankedCountry](c, endpoints.Countries, nil); err != nil {
			pageError(c, err)
			return
		}

		if data.Cities, err = call[[]insights.City](c, endpoints.Cities, nil); err != nil {
			pageError(c, err)
			return
		}

		c.HTML(http.StatusOK, "overview.html", &data)
	}
}

type TrackData struct {
	Track *report.TrackGeo
}

func TrackPage(endpoints insights.EndpointSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := call[*report.TrackGeo](c, endpoints.Track, c.Param("urn"))
		if err != nil {
			pageError(c, err)
			return
		}

		c.HTML(http.StatusOK, "track.html", &TrackData{t})
	}
}

type CountryData struct {
	Country *report.CountryTracks
	Cities  []report.RankedCity
}

func CountryPage(endpoints insights.EndpointSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")

		ct, err := call[*report.CountryTracks](c, endpoints.Country, code)
		if err != nil {
			pageError(c, err)
			return
		}

		cities, err := call[[]report.RankedCity](c, endpoints.CountryCities, code)
		if err != nil {
			pageError(c, err)
			return
		}

		c.HTML(http.StatusOK, "country.html", &CountryData{ct, cities})
	}
}
