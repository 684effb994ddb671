package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenjaminSRussell/paperboy/internal/storage"
)

func testRecords() []storage.PageRecord {
	issue := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	crawled := time.Date(2024, time.June, 1, 8, 30, 0, 0, time.UTC)
	return []storage.PageRecord{
		{
			URL:        "http://paper.people.com.cn/rmrb/html/2024-01/15/nw.D110000renmrb_20240115_1-01.htm",
			Depth:      1,
			Referrer:   "http://paper.people.com.cn/rmrb/html/2024-01/15/nbs.D110000renmrb_01.htm",
			StatusCode: 200,
			LinkCount:  40,
			Terminal:   true,
			IssueDate:  &issue,
			CrawledAt:  crawled,
		},
		{
			URL:        "http://paper.people.com.cn/rmrb/html/2024-01/15/nw.a.htm?x=1&y=2",
			StatusCode: 200,
			Terminal:   true,
			CrawledAt:  crawled,
		},
		{
			URL:        "http://paper.people.com.cn/rmrb/html/2024-01/15/nw.gone.htm",
			StatusCode: 404,
			Terminal:   true,
			CrawledAt:  crawled,
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, FormatJSON, testRecords())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var decoded []storage.PageRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, testRecords()[0].URL, decoded[0].URL)
	require.NotNil(t, decoded[0].IssueDate)
	assert.Nil(t, decoded[1].IssueDate)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(&buf, FormatCSV, testRecords())
	require.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "URL", rows[0][0])
	assert.Equal(t, []string{
		testRecords()[0].URL,
		"2024-01-15",
		"1",
		testRecords()[0].Referrer,
		"200",
		"40",
		"2024-06-01T08:30:00Z",
	}, rows[1])
	assert.Empty(t, rows[2][1], "no issue date")
}

func TestWriteSitemap(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, FormatSitemap, testRecords())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "non-2xx pages are left out")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Contains(t, out, "x=1&amp;y=2")

	var set URLSet
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &set))
	require.Len(t, set.URLs, 2)
	assert.Equal(t, sitemapNS, set.XMLNS)
	assert.Equal(t, "2024-01-15", set.URLs[0].Lastmod, "issue date preferred")
	assert.Equal(t, "2024-06-01", set.URLs[1].Lastmod, "falls back to crawl date")
	assert.Equal(t, "never", set.URLs[0].Changefreq)
	assert.Equal(t, 0.8, set.URLs[0].Priority)
}

func TestWriteSitemapWithoutLastmod(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteSitemap(&buf, testRecords(), SitemapConfig{})
	require.NoError(t, err)

	assert.NotContains(t, buf.String(), "<lastmod>")
	assert.NotContains(t, buf.String(), "<priority>")
}

func TestWriteUnknownFormat(t *testing.T) {
	_, err := Write(&bytes.Buffer{}, "yaml", testRecords())
	assert.Error(t, err)
}

func TestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "articles.json")

	n, err := ToFile(path, FormatJSON, testRecords())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nw.D110000renmrb_20240115_1-01.htm")
}

func TestToFileUnknownFormat(t *testing.T) {
	_, err := ToFile(filepath.Join(t.TempDir(), "out.txt"), "yaml", nil)
	assert.Error(t, err)
}
