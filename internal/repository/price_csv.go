package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"oliv/internal/model"
)

// priceCSVColumns are the headers of the pre-aggregated price table
var priceCSVColumns = []string{"AREA_EN", "PROP_TYPE_EN", "ROOMS_EN", "MIN_PRICE", "MAX_PRICE", "MEDIAN_PRICE", "MEDIAN_AREA"}

// CSVPriceTable is an in-memory, read-only price table loaded once at startup
type CSVPriceTable struct {
	rows map[string]model.PriceStat
}

// LoadCSVPriceTable reads the aggregated price statistics file.
// A missing file is reported with os.ErrNotExist so callers can fall back to an empty table.
func LoadCSVPriceTable(path string) (*CSVPriceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price table %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSVPriceTable(f)
}

// ReadCSVPriceTable parses price statistics from r
func ReadCSVPriceTable(r io.Reader) (*CSVPriceTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read price table header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range priceCSVColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("price table is missing column %s", col)
		}
	}

	table := &CSVPriceTable{rows: make(map[string]model.PriceStat)}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read price table line %d: %w", line, err)
		}

		stat, err := parsePriceRecord(record, idx)
		if err != nil {
			return nil, fmt.Errorf("price table line %d: %w", line, err)
		}

		key := priceKey(stat.Area, stat.PropertyType, stat.BedroomLabel)
		// first row wins for duplicate keys
		if _, exists := table.rows[key]; !exists {
			table.rows[key] = stat
		}
	}

	return table, nil
}

// EmptyPriceTable returns a table on which every lookup is absent
func EmptyPriceTable() *CSVPriceTable {
	return &CSVPriceTable{rows: map[string]model.PriceStat{}}
}

// GetPriceStat performs an exact (area, property type, bedroom label) lookup
func (t *CSVPriceTable) GetPriceStat(ctx context.Context, area, propertyType, bedroomLabel string) (*model.PriceStat, error) {
	stat, ok := t.rows[priceKey(area, propertyType, bedroomLabel)]
	if !ok {
		return nil, nil
	}
	return &stat, nil
}

// Len returns the number of rows in the table
func (t *CSVPriceTable) Len() int {
	return len(t.rows)
}

// All returns every row, in no particular order
func (t *CSVPriceTable) All() []model.PriceStat {
	out := make([]model.PriceStat, 0, len(t.rows))
	for _, s := range t.rows {
		out = append(out, s)
	}
	return out
}

func parsePriceRecord(record []string, idx map[string]int) (model.PriceStat, error) {
	field := func(col string) string {
		i := idx[col]
		if i >= len(record) {
			return ""
		}
		return record[i]
	}
	number := func(col string) (float64, error) {
		raw := strings.TrimSpace(field(col))
		if raw == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", col, raw, err)
		}
		return v, nil
	}

	stat := model.PriceStat{
		Area:         field("AREA_EN"),
		PropertyType: field("PROP_TYPE_EN"),
		BedroomLabel: field("ROOMS_EN"),
	}
	var err error
	if stat.MinPrice, err = number("MIN_PRICE"); err != nil {
		return stat, err
	}
	if stat.MaxPrice, err = number("MAX_PRICE"); err != nil {
		return stat, err
	}
	if stat.MedianPrice, err = number("MEDIAN_PRICE"); err != nil {
		return stat, err
	}
	if stat.MedianArea, err = number("MEDIAN_AREA"); err != nil {
		return stat, err
	}
	return stat, nil
}

func priceKey(area, propertyType, bedroomLabel string) string {
	return area + "\x00" + propertyType + "\x00" + bedroomLabel
}
