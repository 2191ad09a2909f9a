package publisher

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"sjsage522/menuscout/internal/crawl"
	"sjsage522/menuscout/internal/selection"
)

// Header is the column order of persisted records
var Header = []string{"search_term", "item_name", "vendor_name", "price", "tier_label", "timestamp"}

// Record is one persisted menu item
type Record struct {
	SearchTerm string    `json:"search_term"`
	ItemName   string    `json:"item_name"`
	VendorName string    `json:"vendor_name"`
	Price      float64   `json:"price"`
	TierLabel  string    `json:"tier_label"`
	Timestamp  time.Time `json:"timestamp"`
}

// RecordsFromResult flattens a selection into one record per item, in
// price order. now stamps every record of the run.
func RecordsFromResult(r *selection.Result, now time.Time) []Record {
	if r == nil {
		return nil
	}
	records := make([]Record, 0, len(r.Sorted))
	for i, it := range r.Sorted {
		records = append(records, Record{
			SearchTerm: it.SearchTerm,
			ItemName:   it.Name,
			VendorName: it.VendorName,
			Price:      it.Price,
			TierLabel:  r.Label(i),
			Timestamp:  now,
		})
	}
	return records
}

// MenuItem turns a stored record back into a crawl item. The vendor rank
// is not persisted.
func (r Record) MenuItem() crawl.MenuItem {
	return crawl.MenuItem{
		Name:       r.ItemName,
		Price:      r.Price,
		VendorName: r.VendorName,
		SearchTerm: r.SearchTerm,
	}
}

// Row returns the record's CSV columns
func (r Record) Row() []string {
	return []string{
		r.SearchTerm,
		r.ItemName,
		r.VendorName,
		strconv.FormatFloat(r.Price, 'f', 2, 64),
		r.TierLabel,
		r.Timestamp.Format(time.RFC3339),
	}
}

// ParseRow is the inverse of Row
func ParseRow(row []string) (Record, error) {
	if len(row) != len(Header) {
		return Record{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(row))
	}
	price, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return Record{}, fmt.Errorf("price %q: %w", row[3], err)
	}
	ts, err := time.Parse(time.RFC3339, row[5])
	if err != nil {
		return Record{}, fmt.Errorf("timestamp %q: %w", row[5], err)
	}
	return Record{
		SearchTerm: row[0],
		ItemName:   row[1],
		VendorName: row[2],
		Price:      price,
		TierLabel:  row[4],
		Timestamp:  ts,
	}, nil
}

// ReadCSV loads records written by CSVPublisher
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readRecords(f)
}

func readRecords(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	var records []Record
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if line == 1 && row[0] == Header[0] {
			continue
		}
		rec, err := ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
}

// Publisher represents a sink for run results
type Publisher interface {
	// Publish hands one run's records to the sink
	Publish(ctx context.Context, records []Record) error

	// Close releases the sink
	Close() error
}
