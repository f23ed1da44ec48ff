package dataprep

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropforge/cropcast/timeseries"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDailyCSV(t *testing.T) {
	path := writeFile(t, "daily.csv", `date,settle,premium,volume
2025-03-03,1000,50,120
2025-03-04,990,NA,115
`)

	quotes, err := LoadDailyCSV(path, "date", "settle", "premium")
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), quotes[0].Date)
	assert.Equal(t, 1000.0, quotes[0].Settle)
	assert.Equal(t, 50.0, quotes[0].Premium)
	assert.True(t, math.IsNaN(quotes[1].Premium))
}

func TestLoadDailyCSVErrors(t *testing.T) {
	testData := map[string]struct {
		content string
		err     error
	}{
		"missing column": {
			content: "date,settle\n2025-03-03,1000\n",
			err:     ErrMissingColumn,
		},
		"header only": {
			content: "date,settle,premium\n",
			err:     ErrNoRows,
		},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "bad.csv", td.content)
			_, err := LoadDailyCSV(path, "date", "settle", "premium")
			assert.ErrorAs(t, err, &td.err)
		})
	}

	t.Run("bad date", func(t *testing.T) {
		path := writeFile(t, "baddate.csv", "date,settle,premium\n03/03/2025,1000,50\n")
		_, err := LoadDailyCSV(path, "date", "settle", "premium")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadDailyCSV(filepath.Join(t.TempDir(), "absent.csv"), "date", "settle", "premium")
		assert.Error(t, err)
	})
}

func TestLoadDailyValuesCSV(t *testing.T) {
	path := writeFile(t, "driver.csv", `date,crush_margin
2025-01-06,1.25
2025-01-07,1.31
`)

	days, err := LoadDailyValuesCSV(path, "date", "crush_margin")
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, 1.25, days[0].Value)
	assert.Equal(t, 1.31, days[1].Value)
}

func TestLoadMonthlyPanelCSV(t *testing.T) {
	path := writeFile(t, "panel.csv", `date,corn_settle,ethanol_margin
2025-01-01,450,1.2
2025-02-01,,1.3
2025-03-01,470,1.4
`)

	panel, err := LoadMonthlyPanelCSV(path, "date")
	require.NoError(t, err)

	assert.Equal(t, []string{"corn_settle", "ethanol_margin"}, panel.Names())
	assert.Equal(t, 3, panel.Len())

	corn, ok := panel.Column("corn_settle")
	require.True(t, ok)
	assert.Equal(t, 450.0, corn[0])
	assert.True(t, math.IsNaN(corn[1]))
	assert.Equal(t, 470.0, corn[2])
}

func TestLoadMonthlyPanelCSVNotMonthly(t *testing.T) {
	path := writeFile(t, "gappy.csv", `date,corn_settle
2025-01-01,450
2025-03-01,470
`)

	_, err := LoadMonthlyPanelCSV(path, "date")
	target := timeseries.ErrNotMonthly
	assert.ErrorAs(t, err, &target)
}
