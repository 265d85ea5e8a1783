// Package runlog keeps an append-only CSV audit trail of densify runs.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleared-dev/densify/internal/balance"
	"github.com/cleared-dev/densify/internal/engine"
	"github.com/cleared-dev/densify/internal/period"
)

// Action names what a row records.
type Action string

const (
	ActionDensify  Action = "densify"
	ActionConflict Action = "conflict"
	ActionBalance  Action = "balance"
	ActionVerify   Action = "verify"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp time.Time
	RunID     string
	Action    Action
	Account   string
	Details   string
}

// Header is the CSV header for run-log.csv.
const Header = "timestamp,run_id,action,account,details"

const (
	numFields    = 5
	logDir       = "logs"
	logFile      = "logs/run-log.csv"
	colTimestamp = 0
	colRunID     = 1
	colAction    = 2
	colAccount   = 3
	colDetails   = 4
)

// NewRunID returns a fresh identifier shared by all rows of one run.
func NewRunID() string { return uuid.NewString() }

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colAction] = string(e.Action)
	row[colAccount] = e.Account
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	if err := uuid.Validate(record[colRunID]); err != nil {
		return Entry{}, fmt.Errorf("parsing run_id %q: %w", record[colRunID], err)
	}

	return Entry{
		Timestamp: ts,
		RunID:     record[colRunID],
		Action:    Action(record[colAction]),
		Account:   record[colAccount],
		Details:   record[colDetails],
	}, nil
}

// RunEntries describes a finished run: one densify row, one row per
// conflict and one balance row.
func RunEntries(runID string, at time.Time, res *engine.Result) []Entry {
	entries := []Entry{{
		Timestamp: at,
		RunID:     runID,
		Action:    ActionDensify,
		Details:   fmt.Sprintf("range=%s accounts=%d seed=%d", res.Range, len(res.Series), res.Seed),
	}}
	for _, c := range res.Conflicts {
		entries = append(entries, Entry{
			Timestamp: at,
			RunID:     runID,
			Action:    ActionConflict,
			Account:   c.Account,
			Details:   c.String(),
		})
	}
	entries = append(entries, Entry{
		Timestamp: at,
		RunID:     runID,
		Action:    ActionBalance,
		Account:   res.Balancing.Name,
		Details:   fmt.Sprintf("type=%s synthesized=%t", res.Balancing.Type, res.Balancing.Synthesized),
	})
	return entries
}

// VerifyEntries records one row per failing month.
func VerifyEntries(runID string, at time.Time, failures []balance.Imbalance) []Entry {
	entries := make([]Entry, 0, len(failures))
	for _, f := range failures {
		entries = append(entries, Entry{
			Timestamp: at,
			RunID:     runID,
			Action:    ActionVerify,
			Details:   fmt.Sprintf("%s residual=%.6f", f.Month.End().Format(period.DateFormat), f.Residual()),
		})
	}
	return entries
}

// Append writes entries to <dir>/logs/run-log.csv, creating the file and header if needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Join(dir, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(dir, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dir>/logs/run-log.csv.
// Returns an empty slice if the file does not exist.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, logFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
