package insights

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/insights/report"
)

type EndpointSet struct {
	Summary       endpoint.Endpoint
	Tracks        endpoint.Endpoint
	Track         endpoint.Endpoint
	Countries     endpoint.Endpoint
	Country       endpoint.Endpoint
	CountryCities endpoint.Endpoint
	Cities        endpoint.Endpoint
	MapData       endpoint.Endpoint
	Reload        endpoint.Endpoint
}

func NewEndpointSet(svc Service) EndpointSet {
	return EndpointSet{
		Summary:       SummaryEndpoint(svc),
		Tracks:        TracksEndpoint(svc),
		Track:         TrackEndpoint(svc),
		Countries:     CountriesEndpoint(svc),
		Country:       CountryEndpoint(svc),
		CountryCities: CountryCitiesEndpoint(svc),
		Cities:        CitiesEndpoint(svc),
		MapData:       MapDataEndpoint(svc),
		Reload:        ReloadEndpoint(svc),
	}
}

func SummaryEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		return svc.Summary(), nil
	}
}

func TracksEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		return svc.Tracks(), nil
	}
}

func TrackEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		urn, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request")
		}

		t, err := svc.Track(urn)
		if err != nil {
			return nil, err
		}

		return t, nil
	}
}

func CountriesEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		return svc.Countries(), nil
	}
}

func CountryEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		code, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request")
		}

		ct, err := svc.Country(code)
		if err != nil {
			return nil, err
		}

		return ct, nil
	}
}

func CountryCitiesEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		code, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request")
		}

		return svc.CountryCities(code), nil
	}
}

func CitiesEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		return svc.Cities(), nil
	}
}

func MapDataEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		return svc.MapData(), nil
	}
}

type ReloadResponse struct {
	ReportID string `json:"report_id,omitempty"`
	Tracks   int    `json:"tracks"`
}

func ReloadEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		r, err := svc.Reload()
		if err != nil {
			return nil, err
		}

		resp := ReloadResponse{
			Tracks: len(r.Tracks),
		}

		if !r.ID.IsZero() {
			resp.ReportID = r.ID.String()
		}

		return resp, nil
	}
}

func EventEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		switch request.(type) {
		case *report.ReportScrapedEvent:
			_, err = svc.Reload()
		default:
			err = errors.New("invalid request")
		}

		return nil, err
	}
}
