package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/flarexio/insights/report"
)

const (
	MetricsCSV   = "soundcloud_metrics.csv"
	MetricsJSON  = "soundcloud_metrics.json"
	InsightsJSON = "soundcloud_insights.json"
	CountriesCSV = "soundcloud_countries.csv"
	CitiesCSV    = "soundcloud_cities.csv"
	TopTracksCSV = "soundcloud_top_tracks.csv"
)

var metricsHeader = []string{
	"title", "url", "plays", "likes", "reposts", "comments",
	"downloads", "upload_date", "duration", "genre", "tags", "description",
}

func WriteMetricsCSV(w io.Writer, tracks []report.Track) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(metricsHeader); err != nil {
		return err
	}

	for _, t := range tracks {
		record := []string{
			t.Title,
			t.URL,
			strconv.Itoa(t.Plays),
			strconv.Itoa(t.Likes),
			strconv.Itoa(t.Reposts),
			strconv.Itoa(t.Comments),
			strconv.Itoa(t.Downloads),
			t.UploadDate,
			t.Duration,
			t.Genre,
			t.Tags,
			t.Description,
		}

		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func WriteCountriesCSV(w io.Writer, countries []report.RankedCountry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "country", "country_code", "plays"}); err != nil {
		return err
	}

	for _, c := range countries {
		record := []string{
			strconv.Itoa(c.Rank),
			c.Name,
			c.Code,
			strconv.Itoa(c.Plays),
		}

		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func WriteCitiesCSV(w io.Writer, cities []report.RankedCity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "city", "country", "country_code", "plays"}); err != nil {
		return err
	}

	for _, c := range cities {
		record := []string{
			strconv.Itoa(c.Rank),
			c.Name,
			c.Country,
			c.CountryCode,
			strconv.Itoa(c.Plays),
		}

		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func WriteTopTracksCSV(w io.Writer, tracks []report.RankedTrack) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "title", "plays", "url", "created_at"}); err != nil {
		return err
	}

	for _, t := range tracks {
		record := []string{
			strconv.Itoa(t.Rank),
			t.Title,
			strconv.Itoa(t.Plays),
			t.URL,
			t.CreatedAt,
		}

		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes v indented by two spaces, leaving <, > and & unescaped.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// ExportMetrics writes the metrics CSV and JSON files into dir.
func ExportMetrics(dir string, tracks []report.Track) ([]string, error) {
	csvPath := filepath.Join(dir, MetricsCSV)
	if err := WriteFile(csvPath, func(w io.Writer) error {
		return WriteMetricsCSV(w, tracks)
	}); err != nil {
		return nil, err
	}

	jsonPath := filepath.Join(dir, MetricsJSON)
	if err := WriteFile(jsonPath, func(w io.Writer) error {
		return WriteJSON(w, tracks)
	}); err != nil {
		return nil, err
	}

	return []string{csvPath, jsonPath}, nil
}

// ExportInsights writes the insights JSON document and its CSV views into dir.
func ExportInsights(dir string, r *report.Report) ([]string, error) {
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{InsightsJSON, func(w io.Writer) error { return WriteJSON(w, r) }},
		{CountriesCSV, func(w io.Writer) error { return WriteCountriesCSV(w, r.Aggregate.Countries) }},
		{CitiesCSV, func(w io.Writer) error { return WriteCitiesCSV(w, r.Aggregate.Cities) }},
		{TopTracksCSV, func(w io.Writer) error { return WriteTopTracksCSV(w, r.TopTracks) }},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := WriteFile(path, f.write); err != nil {
			return nil, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}

// WriteFile replaces path atomically through a temporary file.
func WriteFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return err
	}

	if err := write(f); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), path)
}
