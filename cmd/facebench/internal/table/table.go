// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package table is the labelled float64 grid the figure driver fills from
// parsed results, exports as CSV and hands to the chart renderer.
//
// Rows and columns keep first-appearance order. Missing cells are NaN.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// ErrMalformedCSV is returned by ReadCSV for ragged or non-numeric input.
var ErrMalformedCSV = errors.New("malformed table csv")

// Table is a row-major grid of float64 cells.
type Table struct {
	// Index names the row axis in CSV output: "Algorithm" or "Threads".
	Index string

	rows   []string
	cols   []string
	rowIdx map[string]int
	colIdx map[string]int
	cells  [][]float64

	// notes records why a cell is NaN, keyed by row then column.
	notes map[string]map[string]string
}

// New returns an empty table.
func New(index string) *Table {
	return &Table{
		Index:  index,
		rowIdx: make(map[string]int),
		colIdx: make(map[string]int),
		notes:  make(map[string]map[string]string),
	}
}

// Rows returns the row labels in order.
func (t *Table) Rows() []string { return append([]string(nil), t.rows...) }

// Cols returns the column labels in order.
func (t *Table) Cols() []string { return append([]string(nil), t.cols...) }

// AddRow registers a row without setting any cell.
func (t *Table) AddRow(row string) int {
	if i, ok := t.rowIdx[row]; ok {
		return i
	}
	t.rowIdx[row] = len(t.rows)
	t.rows = append(t.rows, row)
	r := make([]float64, len(t.cols))
	for i := range r {
		r[i] = math.NaN()
	}
	t.cells = append(t.cells, r)
	return len(t.rows) - 1
}

// AddCol registers a column without setting any cell.
func (t *Table) AddCol(col string) int {
	if j, ok := t.colIdx[col]; ok {
		return j
	}
	t.colIdx[col] = len(t.cols)
	t.cols = append(t.cols, col)
	for i := range t.cells {
		t.cells[i] = append(t.cells[i], math.NaN())
	}
	return len(t.cols) - 1
}

// Set stores v, adding the row and column if needed. A value clears any
// reason recorded for the cell.
func (t *Table) Set(row, col string, v float64) {
	j := t.AddCol(col)
	i := t.AddRow(row)
	t.cells[i][j] = v
	if !math.IsNaN(v) {
		delete(t.notes[row], col)
	}
}

// SetMissing stores NaN with a reason that Note returns later.
func (t *Table) SetMissing(row, col, reason string) {
	t.Set(row, col, math.NaN())
	if t.notes[row] == nil {
		t.notes[row] = make(map[string]string)
	}
	t.notes[row][col] = reason
}

// Note returns the reason recorded by SetMissing.
func (t *Table) Note(row, col string) string {
	return t.notes[row][col]
}

// MissingCell is a NaN cell and the reason recorded for it, if any.
type MissingCell struct {
	Row, Col, Reason string
}

// Missing lists the NaN cells in row then column order.
func (t *Table) Missing() []MissingCell {
	var out []MissingCell
	for i, row := range t.rows {
		for j, col := range t.cols {
			if math.IsNaN(t.cells[i][j]) {
				out = append(out, MissingCell{Row: row, Col: col, Reason: t.Note(row, col)})
			}
		}
	}
	return out
}

// RowIndex returns the position of row.
func (t *Table) RowIndex(row string) (int, bool) {
	i, ok := t.rowIdx[row]
	return i, ok
}

// Get returns the cell and whether both labels exist.
func (t *Table) Get(row, col string) (float64, bool) {
	i, ok := t.rowIdx[row]
	if !ok {
		return math.NaN(), false
	}
	j, ok := t.colIdx[col]
	if !ok {
		return math.NaN(), false
	}
	return t.cells[i][j], true
}

// Row returns a copy of a row's values in column order.
func (t *Table) Row(row string) []float64 {
	i, ok := t.rowIdx[row]
	if !ok {
		return nil
	}
	return append([]float64(nil), t.cells[i]...)
}

// Col returns a copy of a column's values in row order.
func (t *Table) Col(col string) []float64 {
	j, ok := t.colIdx[col]
	if !ok {
		return nil
	}
	out := make([]float64, len(t.rows))
	for i := range t.rows {
		out[i] = t.cells[i][j]
	}
	return out
}

// SwapRows exchanges the positions of rows i and j. Out-of-range indices
// are ignored.
func (t *Table) SwapRows(i, j int) {
	if i < 0 || j < 0 || i >= len(t.rows) || j >= len(t.rows) {
		return
	}
	t.rows[i], t.rows[j] = t.rows[j], t.rows[i]
	t.cells[i], t.cells[j] = t.cells[j], t.cells[i]
	t.rowIdx[t.rows[i]] = i
	t.rowIdx[t.rows[j]] = j
}

// Transpose returns a new table with rows and columns exchanged.
func (t *Table) Transpose(index string) *Table {
	out := New(index)
	for _, col := range t.cols {
		out.AddRow(col)
	}
	for _, row := range t.rows {
		out.AddCol(row)
	}
	for i, row := range t.rows {
		for j, col := range t.cols {
			out.cells[j][i] = t.cells[i][j]
			if reason := t.Note(row, col); reason != "" {
				if out.notes[col] == nil {
					out.notes[col] = make(map[string]string)
				}
				out.notes[col][row] = reason
			}
		}
	}
	return out
}

// NaNMin returns the smallest non-NaN value, or NaN if there is none.
func NaNMin(values []float64) float64 {
	m := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(m) || v < m {
			m = v
		}
	}
	return m
}

// ColMin returns the smallest non-NaN value of a column.
func (t *Table) ColMin(col string) float64 {
	return NaNMin(t.Col(col))
}

// -----------------------------------------------------------------------------
// Ratios
// -----------------------------------------------------------------------------

// Ratio is a cell divided by its column minimum.
type Ratio struct {
	Row, Col string
	Value    float64
}

// RatioRange is the spread of one row's ratios across columns.
type RatioRange struct {
	Row      string
	Min, Max float64
}

// Ratios divides every cell by its column minimum, column by column.
func (t *Table) Ratios() []Ratio {
	out := make([]Ratio, 0, len(t.rows)*len(t.cols))
	for _, col := range t.cols {
		minimum := t.ColMin(col)
		for _, row := range t.rows {
			v, _ := t.Get(row, col)
			out = append(out, Ratio{Row: row, Col: col, Value: v / minimum})
		}
	}
	return out
}

// RatioRanges returns each row's min and max ratio, NaN ratios skipped.
func (t *Table) RatioRanges() []RatioRange {
	byRow := make(map[string][]float64)
	for _, r := range t.Ratios() {
		byRow[r.Row] = append(byRow[r.Row], r.Value)
	}
	out := make([]RatioRange, 0, len(t.rows))
	for _, row := range t.rows {
		lo, hi := math.NaN(), math.NaN()
		for _, v := range byRow[row] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if math.IsNaN(lo) || v < lo {
				lo = v
			}
			if math.IsNaN(hi) || v > hi {
				hi = v
			}
		}
		out = append(out, RatioRange{Row: row, Min: lo, Max: hi})
	}
	return out
}

// -----------------------------------------------------------------------------
// CSV
// -----------------------------------------------------------------------------

// FormatCell renders a cell the way CSV export does: shortest decimal
// form, empty for NaN.
func FormatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Records returns the header row followed by one record per row.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.rows)+1)
	records = append(records, append([]string{t.Index}, t.cols...))
	for i, row := range t.rows {
		rec := make([]string, 0, len(t.cols)+1)
		rec = append(rec, row)
		for _, v := range t.cells[i] {
			rec = append(rec, FormatCell(v))
		}
		records = append(records, rec)
	}
	return records
}

// WriteCSV writes the table with a header row. NaN cells are empty.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write table csv: %w", err)
	}
	return nil
}

// ReadCSV parses a table written by WriteCSV.
func ReadCSV(r io.Reader) (*Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, fmt.Errorf("%w: no header", ErrMalformedCSV)
	}

	header := records[0]
	t := New(header[0])
	for _, col := range header[1:] {
		t.AddCol(col)
	}
	for _, rec := range records[1:] {
		t.AddRow(rec[0])
		for j, field := range rec[1:] {
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %q: %v", ErrMalformedCSV, rec[0], err)
			}
			t.Set(rec[0], header[j+1], v)
		}
	}
	return t, nil
}
