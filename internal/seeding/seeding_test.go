package seeding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenjaminSRussell/paperboy/internal/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDailySeedsDefaultRange(t *testing.T) {
	seeds, err := FromConfig(types.SeedConfig{})
	require.NoError(t, err)

	require.Len(t, seeds, 417)
	assert.Equal(t, "http://paper.people.com.cn/rmrb/html/2023-04/01/nbs.D110000renmrb_01.htm", seeds[0])
	assert.Equal(t, "http://paper.people.com.cn/rmrb/html/2024-05/21/nbs.D110000renmrb_01.htm", seeds[len(seeds)-1])
	assert.Contains(t, seeds, "http://paper.people.com.cn/rmrb/html/2024-02/29/nbs.D110000renmrb_01.htm", "leap day")
}

func TestDailySeedsUnique(t *testing.T) {
	seeds, err := DailySeeds(date(2023, 12, 30), date(2024, 1, 2), DefaultTemplate)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://paper.people.com.cn/rmrb/html/2023-12/30/nbs.D110000renmrb_01.htm",
		"http://paper.people.com.cn/rmrb/html/2023-12/31/nbs.D110000renmrb_01.htm",
		"http://paper.people.com.cn/rmrb/html/2024-01/01/nbs.D110000renmrb_01.htm",
		"http://paper.people.com.cn/rmrb/html/2024-01/02/nbs.D110000renmrb_01.htm",
	}, seeds)
}

func TestDailySeedsSingleDay(t *testing.T) {
	seeds, err := DailySeeds(date(2024, 1, 15), date(2024, 1, 15).Add(13*time.Hour), DefaultTemplate)
	require.NoError(t, err)
	assert.Len(t, seeds, 1)
}

func TestDailySeedsErrors(t *testing.T) {
	_, err := DailySeeds(date(2024, 1, 2), date(2024, 1, 1), DefaultTemplate)
	assert.Error(t, err, "end before start")

	_, err = DailySeeds(date(2024, 1, 1), date(2024, 1, 2), "http://paper.people.com.cn/%04d/index.htm")
	assert.Error(t, err, "too few verbs")

	_, err = DailySeeds(date(2024, 1, 1), date(2024, 1, 2), "/relative/%04d-%02d/%02d.htm")
	assert.Error(t, err, "relative template")
}

func TestParseRange(t *testing.T) {
	from, to, err := ParseRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 1, 1), from)
	assert.Equal(t, date(2024, 1, 31), to)

	_, _, err = ParseRange("2024/01/01", "")
	assert.Error(t, err)

	_, _, err = ParseRange("", "yesterday")
	assert.Error(t, err)
}

func TestFromConfigCustomTemplate(t *testing.T) {
	seeds, err := FromConfig(types.SeedConfig{
		Start:    "2024-03-01",
		End:      "2024-03-02",
		Template: "https://mirror.example.com/%d/%d/%d/index.htm",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://mirror.example.com/2024/3/1/index.htm",
		"https://mirror.example.com/2024/3/2/index.htm",
	}, seeds)
}
