// Package export writes journaled terminal pages as JSON, CSV or a sitemap.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BenjaminSRussell/paperboy/internal/storage"
)

// Supported formats
const (
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatSitemap = "sitemap"
)

// Formats lists every supported format
var Formats = []string{FormatJSON, FormatCSV, FormatSitemap}

// Write encodes records to w in the named format and returns how many were written
func Write(w io.Writer, format string, records []storage.PageRecord) (int, error) {
	switch format {
	case FormatJSON:
		return len(records), WriteJSON(w, records)
	case FormatCSV:
		return len(records), WriteCSV(w, records)
	case FormatSitemap:
		return WriteSitemap(w, records, DefaultSitemapConfig())
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}
}

// ToFile writes records to path, replacing any existing file
func ToFile(path, format string, records []storage.PageRecord) (int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	n, err := Write(file, format, records)
	if err != nil {
		file.Close()
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", path, err)
	}
	return n, nil
}

// WriteJSON writes records as an indented JSON array
func WriteJSON(w io.Writer, records []storage.PageRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

// WriteCSV writes records with a header row
func WriteCSV(w io.Writer, records []storage.PageRecord) error {
	writer := csv.NewWriter(w)

	headers := []string{"URL", "IssueDate", "Depth", "Referrer", "StatusCode", "LinkCount", "CrawledAt"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range records {
		issue := ""
		if rec.IssueDate != nil {
			issue = rec.IssueDate.Format("2006-01-02")
		}
		row := []string{
			rec.URL,
			issue,
			strconv.Itoa(rec.Depth),
			rec.Referrer,
			strconv.Itoa(rec.StatusCode),
			strconv.Itoa(rec.LinkCount),
			rec.CrawledAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
