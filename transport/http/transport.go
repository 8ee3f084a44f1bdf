package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/insights"
)

func abort(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, insights.ErrTrackNotFound) ||
		errors.Is(err, insights.ErrCountryNotFound) {
		code = http.StatusNotFound
	}

	c.Abort()
	c.Error(err)
	c.JSON(code, gin.H{"error": err.Error()})
}

// QueryHandler serves endpoints that take no request.
func QueryHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := endpoint(c, nil)
		if err != nil {
			abort(c, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

// ParamHandler passes the named path parameter as the request.
func ParamHandler(param string, endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		value := c.Param(param)
		if value == "" {
			err := errors.New(param + " not found")
			c.Abort()
			c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := endpoint(c, value)
		if err != nil {
			abort(c, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func ReloadHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := endpoint(c, nil)
		if err != nil {
			abort(c, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

// AddRoutes mounts the JSON API and the dashboard pages.
func AddRoutes(r *gin.Engine, endpoints insights.EndpointSet) error {
	if err := LoadTemplates(r); err != nil {
		return err
	}

	// GET /
	r.GET("/", OverviewPage(endpoints))

	// GET /tracks/:urn
	r.GET("/tracks/:urn", TrackPage(endpoints))

	// GET /countries/:code
	r.GET("/countries/:code", CountryPage(endpoints))

	api := r.Group("/api")
	{
		// GET /api/summary
		api.GET("/summary", QueryHandler(endpoints.Summary))

		// GET /api/tracks
		api.GET("/tracks", QueryHandler(endpoints.Tracks))

		// GET /api/track/:urn
		api.GET("/track/:urn", ParamHandler("urn", endpoints.Track))

		// GET /api/countries
		api.GET("/countries", QueryHandler(endpoints.Countries))

		// GET /api/country/:code
		api.GET("/country/:code", ParamHandler("code", endpoints.Country))

		// GET /api/country/:code/cities
		api.GET("/country/:code/cities", ParamHandler("code", endpoints.CountryCities))

		// GET /api/cities
		api.GET("/cities", QueryHandler(endpoints.Cities))

		// GET /api/map-data
		api.GET("/map-data", QueryHandler(endpoints.MapData))

		// POST /api/reload
		api.POST("/reload", ReloadHandler(endpoints.Reload))
	}

	return nil
}
