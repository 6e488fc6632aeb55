/*
Copyright 2025 The Portfolio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"k8s.io/utils/ptr"

	"github.com/capbudget/portfolio/internal/logging"
	"github.com/capbudget/portfolio/pkg/core"
)

// Recognized column names after normalization.
const (
	ColumnID             = "id"
	ColumnName           = "name"
	ColumnCost           = "cost"
	ColumnBenefit        = "benefit"
	ColumnRegion         = "region"
	ColumnRequires       = "requires"
	ColumnExclusiveGroup = "exclusive_group"
	ColumnPriority       = "priority"
	ColumnSocialScore    = "social_score"
)

// columnAliases maps legacy headers onto recognized columns.
var columnAliases = map[string]string{
	"proj_id": ColumnID,
	"group":   ColumnExclusiveGroup,
}

var knownColumns = map[string]bool{
	ColumnID:             true,
	ColumnName:           true,
	ColumnCost:           true,
	ColumnBenefit:        true,
	ColumnRegion:         true,
	ColumnRequires:       true,
	ColumnExclusiveGroup: true,
	ColumnPriority:       true,
	ColumnSocialScore:    true,
}

// resourceNames are extra columns read as resources even when no cell is numeric.
var resourceNames = map[string]bool{
	"labour": true,
	"labor":  true,
	"land":   true,
	"water":  true,
	"energy": true,
	"staff":  true,
}

// normalizeHeader lower-cases a header cell and joins words with underscores.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.Join(strings.Fields(h), "_")
	if alias, ok := columnAliases[h]; ok {
		return alias
	}
	return h
}

// table is a header row plus data rows, as produced by every tabular source.
type table struct {
	columns map[string]int
	// resources lists the extra numeric columns in header order.
	resources []string
	rows      [][]string
}

func newTable(ctx context.Context, header []string, rows [][]string) (*table, error) {
	logger := logging.FromContext(ctx)
	t := &table{columns: make(map[string]int, len(header))}

	var extra []string
	for i, raw := range header {
		col := normalizeHeader(raw)
		if col == "" {
			continue
		}
		if _, dup := t.columns[col]; dup {
			return nil, core.NewDataValidationError("", col, "column appears more than once")
		}
		t.columns[col] = i
		if !knownColumns[col] {
			extra = append(extra, col)
		}
	}
	for _, required := range []string{ColumnID, ColumnCost, ColumnBenefit} {
		if _, ok := t.columns[required]; !ok {
			return nil, core.NewDataValidationError("", required, "required column is missing")
		}
	}

	for _, row := range rows {
		if !blank(row) {
			t.rows = append(t.rows, row)
		}
	}

	for _, col := range extra {
		if resourceNames[col] || t.anyNumeric(col) {
			t.resources = append(t.resources, col)
			continue
		}
		logger.V(logging.DEBUG).Info("Ignoring non-numeric column", "column", col)
	}
	return t, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func (t *table) cell(row []string, col string) string {
	i, ok := t.columns[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// anyNumeric reports whether some cell of col parses as a number. Such a column is a
// resource, and its other non-empty cells must be numbers too.
func (t *table) anyNumeric(col string) bool {
	for _, row := range t.rows {
		v := t.cell(row, col)
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return true
		}
	}
	return false
}

// projects converts every row, collecting all conversion problems.
func (t *table) projects() ([]core.Project, error) {
	out := make([]core.Project, 0, len(t.rows))
	var errs error
	for i, row := range t.rows {
		p, err := t.project(i, row)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, p)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

func (t *table) project(index int, row []string) (core.Project, error) {
	p := core.Project{
		ID:             t.cell(row, ColumnID),
		Name:           t.cell(row, ColumnName),
		Region:         t.cell(row, ColumnRegion),
		Requires:       core.ParseRequires(t.cell(row, ColumnRequires)),
		ExclusiveGroup: t.cell(row, ColumnExclusiveGroup),
	}
	id := p.ID
	if id == "" {
		// line number, the header being line 1
		id = fmt.Sprintf("row %d", index+2)
	}

	var errs error
	var err error
	if p.Cost, err = requiredNumber(id, ColumnCost, t.cell(row, ColumnCost)); err != nil {
		errs = multierr.Append(errs, err)
	}
	if p.Benefit, err = requiredNumber(id, ColumnBenefit, t.cell(row, ColumnBenefit)); err != nil {
		errs = multierr.Append(errs, err)
	}
	if raw := t.cell(row, ColumnSocialScore); raw != "" {
		v, err := number(id, ColumnSocialScore, raw)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			p.SocialScore = ptr.To(v)
		}
	}
	if raw := t.cell(row, ColumnPriority); raw != "" {
		v, err := integer(id, ColumnPriority, raw)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			p.Priority = ptr.To(v)
		}
	}
	for _, res := range t.resources {
		raw := t.cell(row, res)
		if raw == "" {
			continue
		}
		v, err := number(id, res, raw)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if p.Resources == nil {
			p.Resources = make(map[string]float64, len(t.resources))
		}
		p.Resources[res] = v
	}
	return p, errs
}

func requiredNumber(id, field, raw string) (float64, error) {
	if raw == "" {
		return 0, core.NewDataValidationError(id, field, "is required")
	}
	return number(id, field, raw)
}

func number(id, field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, core.NewDataValidationError(id, field, "%q is not a number", raw)
	}
	return v, nil
}

func integer(id, field, raw string) (int, error) {
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, core.NewDataValidationError(id, field, "%q is not an integer", raw)
	}
	return int(f), nil
}
