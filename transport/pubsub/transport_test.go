package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nats.go/micro"
	"github.com/stretchr/testify/suite"

	"github.com/flarexio/core/events"
	"github.com/flarexio/core/pubsub"
	"github.com/flarexio/insights"
	"github.com/flarexio/insights/conf"
	"github.com/flarexio/insights/geo"
	"github.com/flarexio/insights/persistence/file"
	"github.com/flarexio/insights/report"
)

// connPubSub serves the NATSPubSub contract over an unauthenticated
// connection to the embedded test server.
type connPubSub struct {
	nc *nats.Conn
}

func (ps *connPubSub) Publish(topic string, data []byte) error {
	if err := ps.nc.Publish(topic, data); err != nil {
		return err
	}

	return ps.nc.Flush()
}

func (ps *connPubSub) Subscribe(topic string, callback pubsub.MessageHandler) error {
	_, err := ps.nc.Subscribe(topic, func(m *nats.Msg) {
		callback(context.Background(), &pubsub.Message{
			Topic:    m.Subject,
			Data:     m.Data,
			Response: m.Respond,
		})
	})

	return err
}

func (ps *connPubSub) Close() error {
	return ps.nc.Drain()
}

func (ps *connPubSub) AddService(cfg micro.Config) (micro.Service, error) {
	return micro.AddService(ps.nc, cfg)
}

func (ps *connPubSub) AddJetStream(opts ...jetstream.JetStreamOpt) error {
	return errors.New("jetstream not enabled")
}

func (ps *connPubSub) AddStreamAndConsumer(ctx context.Context, cfg pubsub.StreamConsumer) error {
	return errors.New("jetstream not enabled")
}

func (ps *connPubSub) PullConsume(consumer pubsub.ConsumerStreamPair, handler pubsub.MessageHandler) error {
	return errors.New("jetstream not enabled")
}

type pubsubTestSuite struct {
	suite.Suite
	ns      *server.Server
	nc      *nats.Conn
	ps      pubsub.NATSPubSub
	reports *file.ReportRepository
	svc     insights.Service
}

func (suite *pubsubTestSuite) SetupSuite() {
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   server.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	suite.Require().NoError(err)

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		suite.FailNow("nats server not ready")
	}

	nc, err := nats.Connect(ns.ClientURL())
	suite.Require().NoError(err)

	suite.ns = ns
	suite.nc = nc
	suite.ps = &connPubSub{nc}

	events.ReplaceGlobals(suite.ps)
}

func (suite *pubsubTestSuite) SetupTest() {
	gazetteer, err := geo.NewGazetteer()
	suite.Require().NoError(err)

	suite.reports = file.NewReportRepository(conf.Persistence{
		Driver: conf.File,
		Host:   suite.T().TempDir(),
	})

	suite.svc = insights.NewService(suite.reports, gazetteer)
}

func (suite *pubsubTestSuite) TestReportScraped() {
	handler := ReportScrapedHandler(insights.EventEndpoint(suite.svc))

	handled := make(chan error, 1)
	err := suite.ps.Subscribe(ReportScrapedTopic, func(ctx context.Context, msg *pubsub.Message) error {
		err := handler(ctx, msg)
		handled <- err
		return err
	})
	suite.Require().NoError(err)

	r := report.NewReport(report.Profile{Username: "dj-test"})
	suite.Require().NoError(suite.reports.Store(r))

	// the report announces itself through the global event bus
	r.Scraped()
	suite.Require().NoError(r.Notify())
	suite.Empty(r.Events())

	select {
	case err := <-handled:
		suite.NoError(err)
	case <-time.After(5 * time.Second):
		suite.FailNow("event not delivered")
	}

	suite.Equal("dj-test", suite.svc.Summary().Username)
	suite.Equal(r.ID.String(), suite.svc.Summary().ReportID)
}

func (suite *pubsubTestSuite) TestReportScrapedHandlerRejectsMismatch() {
	handler := ReportScrapedHandler(insights.EventEndpoint(suite.svc))

	err := handler(context.Background(), &pubsub.Message{
		Topic: "insights.report.created",
		Data:  []byte(`{}`),
	})
	suite.ErrorIs(err, ErrInvalidEvent)

	r := report.NewReport(report.Profile{})
	err = handler(context.Background(), &pubsub.Message{
		Topic: "insights.01ARZ3NDEKTSV4RRFFQ69G5FAV.scraped",
		Data:  []byte(`{"report_id": "` + r.ID.String() + `"}`),
	})
	suite.ErrorIs(err, ErrInvalidEvent)

	err = handler(context.Background(), &pubsub.Message{
		Topic: report.NewReportScrapedEvent(r).Topic(),
		Data:  []byte(`null`),
	})
	suite.ErrorIs(err, ErrInvalidEvent)
}

func (suite *pubsubTestSuite) TestMicroService() {
	r := report.NewReport(report.Profile{Username: "remote"})
	suite.Require().NoError(suite.reports.Store(r))

	srv, err := AddService(suite.ps, micro.Config{
		Name:    "insights",
		Version: "0.0.0",
	}, insights.NewEndpointSet(suite.svc))
	suite.Require().NoError(err)
	defer srv.Stop()

	ctx := context.Background()

	resp, err := ReloadEndpoint(suite.nc, "insights.reload")(ctx, nil)
	suite.Require().NoError(err)
	suite.Equal(r.ID.String(), resp.(insights.ReloadResponse).ReportID)

	resp, err = SummaryEndpoint(suite.nc, "insights.summary")(ctx, nil)
	suite.Require().NoError(err)
	suite.Equal("remote", resp.(insights.Summary).Username)
}

func (suite *pubsubTestSuite) TearDownSuite() {
	events.ReplaceGlobals(nil)

	suite.nc.Close()
	suite.ns.Shutdown()
}

func TestPubSubTestSuite(t *testing.T) {
	suite.Run(t, new(pubsubTestSuite))
}
