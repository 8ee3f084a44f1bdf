package persistence

import (
	"errors"

	"github.com/flarexio/insights/conf"
	"github.com/flarexio/insights/persistence/db"
	"github.com/flarexio/insights/persistence/file"
	"github.com/flarexio/insights/persistence/kv"
	"github.com/flarexio/insights/report"
)

func NewReportRepository(cfg conf.Persistence) (report.Repository, error) {
	switch cfg.Driver {
	case conf.File:
		return file.NewReportRepository(cfg), nil

	case conf.SQLite:
		repo, err := db.NewReportRepository(cfg)
		if err != nil {
			return nil, err
		}
		return repo, nil

	case conf.BadgerDB:
		repo, err := kv.NewReportRepository(cfg)
		if err != nil {
			return nil, err
		}
		return repo, nil

	default:
		return nil, errors.New("driver not supported")
	}
}
