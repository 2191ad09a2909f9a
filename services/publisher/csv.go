package publisher

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sjsage522/menuscout/logger"
)

// CSVPublisher appends records to a CSV file, writing the header when the
// file is new.
type CSVPublisher struct {
	path string
	mu   sync.Mutex
	log  *logger.Logger
}

// NewCSVPublisher creates a CSV sink at path
func NewCSVPublisher(path string) *CSVPublisher {
	return &CSVPublisher{path: path, log: logger.ForPublisher()}
}

// Path returns the output file
func (p *CSVPublisher) Path() string {
	return p.path
}

// Publish appends records to the file
func (p *CSVPublisher) Publish(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ensureDir(p.path); err != nil {
		return err
	}
	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := writer.Write(Header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	for _, r := range records {
		if err := writer.Write(r.Row()); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}

	p.log.Info().Str("path", p.path).Int("records", len(records)).Msg("Results saved")
	return f.Close()
}

// Close implements Publisher; the file is closed after every Publish.
func (p *CSVPublisher) Close() error {
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
