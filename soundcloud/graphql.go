package soundcloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

const MetricPlays = "PLAYS"

const queryMe = `
query Me {
  me {
    avatarUrl
    city
    country
    createdAt
    features
    followersCount
    isPro
    permalink
    permalinkUrl
    urn
    username
  }
}
`

const queryTopTracks = `
query TopTracksByWindow($metric: MetricType!, $windowInput: TimeWindowInput!) {
  topTracksByWindow(metric: $metric, windowInput: $windowInput) {
    count
    track {
      urn
      title
      artworkUrl
      permalink
      permalinkUrl
      createdAt
    }
  }
}
`

const queryTopCountries = `
query TopCountriesByWindow($metric: MetricType!, $windowInput: TimeWindowInput!, $trackUrn: String) {
  topCountriesByWindow(metric: $metric, windowInput: $windowInput, trackUrn: $trackUrn) {
    count
    country {
      name
      countryCode
    }
  }
}
`

const queryTopCities = `
query TopCitiesByWindow($metric: MetricType!, $windowInput: TimeWindowInput!, $trackUrn: String) {
  topCitiesByWindow(metric: $metric, windowInput: $windowInput, trackUrn: $trackUrn) {
    count
    city {
      name
      country {
        name
        countryCode
      }
    }
  }
}
`

type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) graphQL(ctx context.Context, operation string, query string, variables map[string]any, result any) error {
	if variables == nil {
		variables = make(map[string]any)
	}

	req := graphQLRequest{
		Query:         query,
		Variables:     variables,
		OperationName: operation,
	}

	var resp graphQLResponse
	if err := c.postJSON(ctx, c.graphQLURL, req, &resp); err != nil {
		return err
	}

	if len(resp.Errors) > 0 {
		messages := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			messages[i] = e.Message
		}

		return &GraphQLError{messages}
	}

	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return fmt.Errorf("graphql: %s returned no data", operation)
	}

	return json.Unmarshal(resp.Data, result)
}

type Profile struct {
	AvatarURL      string `json:"avatarUrl"`
	City           string `json:"city"`
	Country        string `json:"country"`
	CreatedAt      string `json:"createdAt"`
	Features       []any  `json:"features"`
	FollowersCount int    `json:"followersCount"`
	IsPro          bool   `json:"isPro"`
	Permalink      string `json:"permalink"`
	PermalinkURL   string `json:"permalinkUrl"`
	URN            string `json:"urn"`
	Username       string `json:"username"`
}

type Country struct {
	Name        string `json:"name"`
	CountryCode string `json:"countryCode"`
}

type CountryCount struct {
	Count   int     `json:"count"`
	Country Country `json:"country"`
}

type City struct {
	Name    string  `json:"name"`
	Country Country `json:"country"`
}

type CityCount struct {
	Count int  `json:"count"`
	City  City `json:"city"`
}

type InsightsTrack struct {
	URN          string `json:"urn"`
	Title        string `json:"title"`
	ArtworkURL   string `json:"artworkUrl"`
	Permalink    string `json:"permalink"`
	PermalinkURL string `json:"permalinkUrl"`
	CreatedAt    string `json:"createdAt"`
}

type TrackCount struct {
	Count int           `json:"count"`
	Track InsightsTrack `json:"track"`
}

// Profile returns the insights view of the authenticated account. A nil
// profile means the token was accepted but carries no account.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var data struct {
		Me *Profile `json:"me"`
	}

	if err := c.graphQL(ctx, "Me", queryMe, nil, &data); err != nil {
		return nil, err
	}

	if data.Me == nil {
		return nil, ErrUnauthorized
	}

	return data.Me, nil
}

func windowVariables(window string, limit int) map[string]any {
	return map[string]any{
		"metric": MetricPlays,
		"windowInput": map[string]any{
			"timewindow": window,
			"limit":      limit,
		},
	}
}

func (c *Client) TopTracks(ctx context.Context, window string, limit int) ([]TrackCount, error) {
	var data struct {
		TopTracks []TrackCount `json:"topTracksByWindow"`
	}

	variables := windowVariables(window, limit)
	if err := c.graphQL(ctx, "TopTracksByWindow", queryTopTracks, variables, &data); err != nil {
		return nil, err
	}

	return data.TopTracks, nil
}

// TopCountries returns plays per country, across all tracks when trackURN
// is empty.
func (c *Client) TopCountries(ctx context.Context, window string, limit int, trackURN string) ([]CountryCount, error) {
	var data struct {
		TopCountries []CountryCount `json:"topCountriesByWindow"`
	}

	variables := windowVariables(window, limit)
	variables["trackUrn"] = nullable(trackURN)

	if err := c.graphQL(ctx, "TopCountriesByWindow", queryTopCountries, variables, &data); err != nil {
		return nil, err
	}

	return data.TopCountries, nil
}

func (c *Client) TopCities(ctx context.Context, window string, limit int, trackURN string) ([]CityCount, error) {
	var data struct {
		TopCities []CityCount `json:"topCitiesByWindow"`
	}

	variables := windowVariables(window, limit)
	variables["trackUrn"] = nullable(trackURN)

	if err := c.graphQL(ctx, "TopCitiesByWindow", queryTopCities, variables, &data); err != nil {
		return nil, err
	}

	return data.TopCities, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
