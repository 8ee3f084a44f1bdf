package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/core/pubsub"
	"github.com/flarexio/insights/report"
)

// ReportScrapedTopic matches every insights.<report id>.scraped event.
const ReportScrapedTopic = "insights.*.scraped"

var ErrInvalidEvent = errors.New("invalid event")

func ReportScrapedHandler(endpoint endpoint.Endpoint) pubsub.MessageHandler {
	return func(ctx context.Context, msg *pubsub.Message) error {
		ss := strings.Split(msg.Topic, ".")
		if len(ss) != 3 || ss[0] != "insights" || ss[2] != "scraped" {
			return ErrInvalidEvent
		}

		var e *report.ReportScrapedEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return err
		}

		if e == nil || e.ReportID.String() != ss[1] {
			return ErrInvalidEvent
		}

		_, err := endpoint(ctx, e)
		return err
	}
}

func SummaryHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		ctx := context.Background()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			r.Error("417", err.Error(), nil)
			return
		}

		r.RespondJSON(&resp)
	}
}

func ReloadHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		ctx := context.Background()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			r.Error("417", err.Error(), nil)
			return
		}

		r.RespondJSON(&resp)
	}
}
