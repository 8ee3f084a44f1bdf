package kv

import (
	"encoding/json"
	"errors"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"

	"github.com/flarexio/insights/conf"
	"github.com/flarexio/insights/report"
)

var prefix = []byte("reports/")

func key(id report.ReportID) []byte {
	return append(append([]byte{}, prefix...), id.String()...)
}

func NewReportRepository(cfg conf.Persistence) (*ReportRepository, error) {
	opts := badger.DefaultOptions(filepath.Join(cfg.Host, cfg.Name))
	if cfg.InMem {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &ReportRepository{db}, nil
}

// ReportRepository stores one JSON document per report under
// reports/<ulid>, so key order is creation order.
type ReportRepository struct {
	db *badger.DB
}

func (repo *ReportRepository) Store(r *report.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return repo.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(r.ID), data)
	})
}

func (repo *ReportRepository) Latest() (*report.Report, error) {
	var r *report.Report

	err := repo.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(append([]byte{}, prefix...), 0xFF))
		if !it.ValidForPrefix(prefix) {
			return report.ErrReportNotFound
		}

		return it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})

	if err != nil {
		return nil, err
	}

	if r == nil {
		return nil, report.ErrReportNotFound
	}

	return r, nil
}

func (repo *ReportRepository) Find(id report.ReportID) (*report.Report, error) {
	var r *report.Report

	err := repo.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return report.ErrReportNotFound
			}

			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})

	if err != nil {
		return nil, err
	}

	return r, nil
}

func (repo *ReportRepository) ListAll() ([]*report.Report, error) {
	reports := make([]*report.Report, 0)

	err := repo.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var r *report.Report
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return err
			}

			reports = append(reports, r)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return reports, nil
}

func (repo *ReportRepository) Close() error {
	return repo.db.Close()
}

func (repo *ReportRepository) Truncate() error {
	return repo.db.DropPrefix(prefix)
}
