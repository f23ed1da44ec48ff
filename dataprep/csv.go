package dataprep

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cropforge/cropcast/timeseries"
)

var (
	ErrMissingColumn = errors.New("column not present in header")
	ErrNoRows        = errors.New("no data rows")
)

const dateLayout = "2006-01-02"

func headerIndex(header []string, col string) (int, error) {
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), col) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %q, %w", col, ErrMissingColumn)
}

func parseFloat(field string) (float64, error) {
	field = strings.TrimSpace(field)
	if field == "" || strings.EqualFold(field, "na") || strings.EqualFold(field, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(field, 64)
}

// LoadDailyCSV reads dated settle and premium columns from a CSV file into
// daily quotes. Extra columns are ignored.
func LoadDailyCSV(path, dateCol, settleCol, premiumCol string) ([]DailyQuote, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s, %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read %s, %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s, %w", path, ErrNoRows)
	}

	dateIdx, err := headerIndex(rows[0], dateCol)
	if err != nil {
		return nil, err
	}
	settleIdx, err := headerIndex(rows[0], settleCol)
	if err != nil {
		return nil, err
	}
	premiumIdx, err := headerIndex(rows[0], premiumCol)
	if err != nil {
		return nil, err
	}

	quotes := make([]DailyQuote, 0, len(rows)-1)
	for i, row := range rows[1:] {
		date, err := time.Parse(dateLayout, strings.TrimSpace(row[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("row %d of %s, %w", i+2, path, err)
		}
		settle, err := parseFloat(row[settleIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d of %s, %w", i+2, path, err)
		}
		premium, err := parseFloat(row[premiumIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d of %s, %w", i+2, path, err)
		}
		quotes = append(quotes, DailyQuote{Date: date, Settle: settle, Premium: premium})
	}
	return quotes, nil
}

// LoadDailyValuesCSV reads one dated value column from a CSV file.
func LoadDailyValuesCSV(path, dateCol, valueCol string) ([]DailyValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s, %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read %s, %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s, %w", path, ErrNoRows)
	}

	dateIdx, err := headerIndex(rows[0], dateCol)
	if err != nil {
		return nil, err
	}
	valueIdx, err := headerIndex(rows[0], valueCol)
	if err != nil {
		return nil, err
	}

	days := make([]DailyValue, 0, len(rows)-1)
	for i, row := range rows[1:] {
		date, err := time.Parse(dateLayout, strings.TrimSpace(row[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("row %d of %s, %w", i+2, path, err)
		}
		val, err := parseFloat(row[valueIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d of %s, %w", i+2, path, err)
		}
		days = append(days, DailyValue{Date: date, Value: val})
	}
	return days, nil
}

// LoadMonthlyPanelCSV reads a wide CSV of monthly driver columns keyed by a
// date column. Every other header becomes a panel column; empty cells and
// NA markers come through as NaN.
func LoadMonthlyPanelCSV(path, dateCol string) (*timeseries.Panel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s, %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read %s, %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s, %w", path, ErrNoRows)
	}

	header := rows[0]
	dateIdx, err := headerIndex(header, dateCol)
	if err != nil {
		return nil, err
	}

	months := make([]time.Time, 0, len(rows)-1)
	cols := make(map[int][]float64, len(header)-1)
	for i, row := range rows[1:] {
		date, err := time.Parse(dateLayout, strings.TrimSpace(row[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("row %d of %s, %w", i+2, path, err)
		}
		months = append(months, date)

		for j := range header {
			if j == dateIdx {
				continue
			}
			val, err := parseFloat(row[j])
			if err != nil {
				return nil, fmt.Errorf("row %d of %s, %w", i+2, path, err)
			}
			cols[j] = append(cols[j], val)
		}
	}

	panel, err := timeseries.NewPanel(months)
	if err != nil {
		return nil, fmt.Errorf("%s, %w", path, err)
	}
	for j, name := range header {
		if j == dateIdx {
			continue
		}
		if err := panel.AddColumn(strings.TrimSpace(name), cols[j]); err != nil {
			return nil, fmt.Errorf("%s, %w", path, err)
		}
	}
	return panel, nil
}
