// Package lookup loads the static input tables a crawl run depends on: the
// legislator crosswalk CSV and the session-date JSON table. Both are read once
// at startup and treated as read-only for the rest of the run.
package lookup

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	crosswalkProfileColumn   = "legislator_profile_id"
	crosswalkCanonicalColumn = "legislator_id_canon"
)

// SessionDates holds the start and end dates recorded for one session.
type SessionDates struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Tables bundles the run-scoped lookup tables.
type Tables struct {
	// Crosswalk maps a stringified legislator profile id to its raw canonical id.
	Crosswalk map[string]string
	// SessionDates maps a stringified session id to its date range.
	SessionDates map[string]SessionDates
}

// Load reads both tables from disk.
func Load(crosswalkPath, sessionDatesPath string) (Tables, error) {
	crosswalk, err := loadFile(crosswalkPath, LoadCrosswalk)
	if err != nil {
		return Tables{}, fmt.Errorf("load crosswalk: %w", err)
	}
	dates, err := loadFile(sessionDatesPath, LoadSessionDates)
	if err != nil {
		return Tables{}, fmt.Errorf("load session dates: %w", err)
	}
	return Tables{Crosswalk: crosswalk, SessionDates: dates}, nil
}

func loadFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	// #nosec G304 -- path comes from operator configuration.
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle
	return parse(f)
}

// LoadCrosswalk parses a CSV with a header row containing legislator_profile_id
// and legislator_id_canon columns. Column order does not matter and extra
// columns are ignored.
func LoadCrosswalk(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("crosswalk is empty")
		}
		return nil, fmt.Errorf("read crosswalk header: %w", err)
	}
	profileIdx, canonIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case crosswalkProfileColumn:
			profileIdx = i
		case crosswalkCanonicalColumn:
			canonIdx = i
		}
	}
	if profileIdx < 0 || canonIdx < 0 {
		return nil, fmt.Errorf("crosswalk header must contain %s and %s", crosswalkProfileColumn, crosswalkCanonicalColumn)
	}

	out := make(map[string]string)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read crosswalk row: %w", err)
		}
		if profileIdx >= len(row) {
			continue
		}
		profileID := strings.TrimSpace(row[profileIdx])
		if profileID == "" {
			continue
		}
		canon := ""
		if canonIdx < len(row) {
			canon = strings.TrimSpace(row[canonIdx])
		}
		out[profileID] = canon
	}
	return out, nil
}

// LoadSessionDates parses a JSON object keyed by stringified session id.
func LoadSessionDates(r io.Reader) (map[string]SessionDates, error) {
	var out map[string]SessionDates
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode session dates: %w", err)
	}
	if out == nil {
		out = make(map[string]SessionDates)
	}
	return out, nil
}
