package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/core/pubsub"
	"github.com/flarexio/insights"
)

const requestTimeout = 5000 * time.Millisecond

// AddService exposes the dashboard as a NATS micro service under the
// "insights" group: insights.summary and insights.reload.
func AddService(ps pubsub.NATSPubSub, cfg micro.Config, endpoints insights.EndpointSet) (micro.Service, error) {
	srv, err := ps.AddService(cfg)
	if err != nil {
		return nil, err
	}

	root := srv.AddGroup("insights")

	// SUB insights.summary
	if err := root.AddEndpoint("summary", SummaryHandler(endpoints.Summary)); err != nil {
		return nil, err
	}

	// SUB insights.reload
	if err := root.AddEndpoint("reload", ReloadHandler(endpoints.Reload)); err != nil {
		return nil, err
	}

	return srv, nil
}

func request(ctx context.Context, nc *nats.Conn, topic string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	msg, err := nc.RequestWithContext(ctx, topic, nil)
	if err != nil {
		return nil, err
	}

	if desc := msg.Header.Get(micro.ErrorHeader); desc != "" {
		return nil, errors.New(desc)
	}

	return msg.Data, nil
}

// SummaryEndpoint asks a running dashboard for its summary.
func SummaryEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, req any) (response any, err error) {
		data, err := request(ctx, nc, topic)
		if err != nil {
			return nil, err
		}

		var s insights.Summary
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}

		return s, nil
	}
}

// ReloadEndpoint asks a running dashboard to load the latest report.
func ReloadEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, req any) (response any, err error) {
		data, err := request(ctx, nc, topic)
		if err != nil {
			return nil, err
		}

		var resp insights.ReloadResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, err
		}

		return resp, nil
	}
}
