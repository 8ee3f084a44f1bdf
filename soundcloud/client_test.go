package soundcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testToken = "2-309337-123456789-AbCdEf"

func TestParseUserID(t *testing.T) {
	assert := assert.New(t)

	id, err := ParseUserID(testToken)
	assert.NoError(err)
	assert.Equal("123456789", id)

	_, err = ParseUserID("garbage")
	assert.ErrorIs(err, ErrMalformedToken)

	_, err = ParseUserID("2-309337--x")
	assert.ErrorIs(err, ErrMalformedToken)
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrMissingToken)
}

type clientTestSuite struct {
	suite.Suite
	server   *httptest.Server
	client   *Client
	requests atomic.Int32
	limited  atomic.Int32
	throttle atomic.Int32
}

func (suite *clientTestSuite) SetupTest() {
	suite.requests.Store(0)
	suite.limited.Store(0)
	suite.throttle.Store(0)

	mux := http.NewServeMux()

	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		suite.requests.Add(1)
		if r.Header.Get("Authorization") != "OAuth "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		fmt.Fprint(w, `{"id": 123456789, "username": "DJ Test", "permalink": "dj-test", "followers_count": 1200, "track_count": 3}`)
	})

	mux.HandleFunc("/users/123456789/tracks", func(w http.ResponseWriter, r *http.Request) {
		suite.requests.Add(1)

		if r.URL.Query().Get("offset") == "50" {
			fmt.Fprint(w, `{"collection": [{"id": 3, "title": "Three", "playback_count": null}], "next_href": null}`)
			return
		}

		next := suite.server.URL + "/users/123456789/tracks?limit=50&offset=50&linked_partitioning=1"
		fmt.Fprintf(w, `{"collection": [{"id": 1, "title": "One", "playback_count": 10}, {"id": 2, "title": "Two", "playback_count": 5}], "next_href": %q}`, next)
	})

	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		suite.requests.Add(1)

		if r.Header.Get("Apollographql-Client-Name") != "insights-ui" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		body, _ := io.ReadAll(r.Body)

		var req struct {
			OperationName string         `json:"operationName"`
			Variables     map[string]any `json:"variables"`
		}
		json.Unmarshal(body, &req)

		switch req.OperationName {
		case "Me":
			fmt.Fprint(w, `{"data": {"me": {"username": "DJ Test", "followersCount": 1200, "isPro": true, "features": ["pro"]}}}`)

		case "TopTracksByWindow":
			fmt.Fprint(w, `{"data": {"topTracksByWindow": [{"count": 42, "track": {"urn": "soundcloud:tracks:1", "title": "One", "artworkUrl": null, "permalinkUrl": "https://soundcloud.com/dj-test/one", "createdAt": "2024-01-02T03:04:05Z"}}]}}`)

		case "TopCountriesByWindow":
			if req.Variables["trackUrn"] == nil {
				fmt.Fprint(w, `{"data": {"topCountriesByWindow": [{"count": 30, "country": {"name": "Germany", "countryCode": "DE"}}, {"count": 12, "country": {"name": "France", "countryCode": "FR"}}]}}`)
				return
			}
			fmt.Fprint(w, `{"data": {"topCountriesByWindow": [{"count": 7, "country": {"name": "Germany", "countryCode": "DE"}}]}}`)

		case "TopCitiesByWindow":
			fmt.Fprint(w, `{"errors": [{"message": "boom"}]}`)

		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	mux.HandleFunc("/limited", func(w http.ResponseWriter, r *http.Request) {
		if suite.limited.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		fmt.Fprint(w, `{"id": 1}`)
	})

	mux.HandleFunc("/throttled", func(w http.ResponseWriter, r *http.Request) {
		if suite.throttle.Add(1) < 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		fmt.Fprint(w, `{"id": 2}`)
	})

	mux.HandleFunc("/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": "forbidden"}`)
	})

	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, strings.Repeat("x", 1000))
	})

	suite.server = httptest.NewServer(mux)

	client, err := NewClient(Config{
		Token:      testToken,
		APIBaseURL: suite.server.URL,
		GraphQLURL: suite.server.URL + "/graphql",
	})
	if err != nil {
		suite.Fail(err.Error())
		return
	}
	client.backoff = time.Millisecond

	suite.client = client
}

func (suite *clientTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *clientTestSuite) TestMe() {
	u, err := suite.client.Me(context.Background())
	suite.Require().NoError(err)

	suite.Equal("dj-test", u.Permalink)
	suite.Equal(1200, u.FollowersCount)
	suite.Equal(3, u.TrackCount)
}

func (suite *clientTestSuite) TestMeUnauthorized() {
	client, err := NewClient(Config{
		Token:      "2-1-2-expired",
		APIBaseURL: suite.server.URL,
	})
	suite.Require().NoError(err)

	_, err = client.Me(context.Background())
	suite.ErrorIs(err, ErrUnauthorized)
}

func (suite *clientTestSuite) TestTracksFollowsNextHref() {
	tracks, err := suite.client.Tracks(context.Background(), "123456789", 200)
	suite.Require().NoError(err)

	suite.Len(tracks, 3)
	suite.Equal("One", tracks[0].Title)
	suite.Equal(10, tracks[0].PlaybackCount)
	suite.Equal("Three", tracks[2].Title)
	suite.Equal(0, tracks[2].PlaybackCount)
}

func (suite *clientTestSuite) TestTracksStopsAtLimit() {
	tracks, err := suite.client.Tracks(context.Background(), "123456789", 2)
	suite.Require().NoError(err)

	suite.Len(tracks, 2)
	suite.Equal(int32(1), suite.requests.Load())
}

func (suite *clientTestSuite) TestProfile() {
	p, err := suite.client.Profile(context.Background())
	suite.Require().NoError(err)

	suite.Equal("DJ Test", p.Username)
	suite.True(p.IsPro)
	suite.Equal([]any{"pro"}, p.Features)
}

func (suite *clientTestSuite) TestTopTracks() {
	tracks, err := suite.client.TopTracks(context.Background(), "DAYS_30", 50)
	suite.Require().NoError(err)

	suite.Len(tracks, 1)
	suite.Equal(42, tracks[0].Count)
	suite.Equal("soundcloud:tracks:1", tracks[0].Track.URN)
	suite.Equal("", tracks[0].Track.ArtworkURL)
}

func (suite *clientTestSuite) TestTopCountries() {
	ctx := context.Background()

	all, err := suite.client.TopCountries(ctx, "DAYS_30", 50, "")
	suite.Require().NoError(err)
	suite.Len(all, 2)
	suite.Equal("DE", all[0].Country.CountryCode)

	perTrack, err := suite.client.TopCountries(ctx, "DAYS_30", 50, "soundcloud:tracks:1")
	suite.Require().NoError(err)
	suite.Len(perTrack, 1)
	suite.Equal(7, perTrack[0].Count)
}

func (suite *clientTestSuite) TestGraphQLError() {
	_, err := suite.client.TopCities(context.Background(), "DAYS_30", 50, "")

	var gqlErr *GraphQLError
	suite.Require().ErrorAs(err, &gqlErr)
	suite.Equal([]string{"boom"}, gqlErr.Messages)
}

func (suite *clientTestSuite) TestRetriesWhenRateLimited() {
	var result map[string]any
	err := suite.client.getJSON(context.Background(), suite.server.URL+"/limited", &result)
	suite.Require().NoError(err)

	suite.Equal(int32(3), suite.limited.Load())
	suite.Equal(float64(1), result["id"])
}

func (suite *clientTestSuite) TestRetryAfterOverridesBackoff() {
	core, logs := observer.New(zapcore.WarnLevel)

	client, err := NewClient(Config{
		Token:      testToken,
		APIBaseURL: suite.server.URL,
		Logger:     zap.New(core),
	})
	suite.Require().NoError(err)

	// the exponential backoff alone would wait far longer than the test runs
	client.backoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result map[string]any
	err = client.getJSON(ctx, suite.server.URL+"/throttled", &result)
	suite.Require().NoError(err)

	suite.Equal(int32(2), suite.throttle.Load())
	suite.Equal(float64(2), result["id"])

	entries := logs.FilterMessage("rate limited, retrying").All()
	suite.Require().Len(entries, 1)
	suite.Equal(time.Duration(0), entries[0].ContextMap()["retry_delay"])
}

func (suite *clientTestSuite) TestForbiddenIsUnauthorized() {
	var result map[string]any
	err := suite.client.getJSON(context.Background(), suite.server.URL+"/forbidden", &result)
	suite.ErrorIs(err, ErrUnauthorized)

	var statusErr *StatusError
	suite.False(errors.As(err, &statusErr))
}

func (suite *clientTestSuite) TestStatusErrorTruncatesBody() {
	var result map[string]any
	err := suite.client.getJSON(context.Background(), suite.server.URL+"/broken", &result)

	var statusErr *StatusError
	suite.Require().ErrorAs(err, &statusErr)
	suite.Equal(http.StatusInternalServerError, statusErr.StatusCode)
	suite.Len(statusErr.Body, 500)
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(clientTestSuite))
}
