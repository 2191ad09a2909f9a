package publisher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sjsage522/menuscout/internal/crawl"
	"sjsage522/menuscout/internal/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runTime = time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)

func items(prices ...float64) []crawl.MenuItem {
	out := make([]crawl.MenuItem, len(prices))
	for i, p := range prices {
		out[i] = crawl.MenuItem{
			Name:       fmt.Sprintf("Margherita Pizza %d", i+1),
			Price:      p,
			VendorName: fmt.Sprintf("Vendor %d", i+1),
			VendorRank: i + 1,
			SearchTerm: "margarita pizza",
		}
	}
	return out
}

func TestRecordsFromResult(t *testing.T) {
	result, err := selection.Select(items(60, 21, 20, 30), "cheap")
	require.NoError(t, err)

	records := RecordsFromResult(result, runTime)
	require.Len(t, records, 4)

	labels := make([]string, len(records))
	for i, r := range records {
		labels[i] = r.TierLabel
		assert.Equal(t, runTime, r.Timestamp)
		assert.Equal(t, "margarita pizza", r.SearchTerm)
	}
	assert.Equal(t, []string{"cheap", "near-cheap", "mid", "expensive"}, labels)
	assert.Equal(t, "Margherita Pizza 3", records[0].ItemName)
	assert.Equal(t, "Vendor 3", records[0].VendorName)
	assert.Equal(t, 20.0, records[0].Price)

	assert.Nil(t, RecordsFromResult(nil, runTime))
}

func TestCSVPublisherAppendsWithSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	pub := NewCSVPublisher(path)
	ctx := context.Background()

	result, err := selection.Select(items(45, 55), "medium")
	require.NoError(t, err)
	records := RecordsFromResult(result, runTime)

	require.NoError(t, pub.Publish(ctx, records))
	require.NoError(t, pub.Publish(ctx, records))
	require.NoError(t, pub.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, strings.Join(Header, ","), lines[0])
	assert.Equal(t, "margarita pizza,Margherita Pizza 1,Vendor 1,45.00,near-cheap,2026-03-14T12:30:00Z", lines[1])
	assert.Equal(t, 1, strings.Count(string(raw), "search_term"))

	read, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, read, 4)
	assert.Equal(t, "medium", read[1].TierLabel)
	assert.Equal(t, 55.0, read[1].Price)
	assert.True(t, runTime.Equal(read[1].Timestamp))
	assert.Equal(t, "Vendor 2", read[1].MenuItem().VendorName)
}

func TestCSVPublisherQuotesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	pub := NewCSVPublisher(path)

	rec := Record{
		SearchTerm: "pizza",
		ItemName:   `Pizza "Napoli", büyük`,
		VendorName: "Köşe",
		Price:      120.5,
		TierLabel:  "cheap",
		Timestamp:  runTime,
	}
	require.NoError(t, pub.Publish(context.Background(), []Record{rec}))

	read, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, read, 1)
	assert.Equal(t, rec.ItemName, read[0].ItemName)
}

func TestCSVPublisherCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewCSVPublisher(path).Publish(ctx, []Record{{ItemName: "x"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.csv")
	content := strings.Join(Header, ",") + "\npizza,Pizza,Roma,abc,cheap,2026-03-14T12:30:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err = ReadCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

type recordingPublisher struct {
	published [][]Record
	err       error
	closed    bool
}

func (p *recordingPublisher) Publish(ctx context.Context, records []Record) error {
	p.published = append(p.published, records)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return p.err
}

func TestMultiPublisher(t *testing.T) {
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: fmt.Errorf("stream down")}
	multi := MultiPublisher{failing, ok}

	records := []Record{{ItemName: "a"}}
	err := multi.Publish(context.Background(), records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream down")
	assert.Equal(t, [][]Record{records}, ok.published, "a failing sink does not stop the others")

	assert.Error(t, multi.Close())
	assert.True(t, ok.closed)
	assert.True(t, failing.closed)

	assert.NoError(t, MultiPublisher{}.Publish(context.Background(), records))
}
