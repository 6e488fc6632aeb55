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
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/capbudget/portfolio/internal/logging"
	"github.com/capbudget/portfolio/pkg/core"
)

// XLSXSource reads a catalog from an Excel workbook. The first row of the selected
// sheet is the header.
type XLSXSource struct {
	name   string
	reader io.Reader
	// sheet selects the worksheet; empty means the first one.
	sheet string
}

// NewXLSXSource returns a source reading the named sheet of the workbook in r. An
// empty sheet reads the first worksheet.
func NewXLSXSource(name string, r io.Reader, sheet string) *XLSXSource {
	return &XLSXSource{name: name, reader: r, sheet: sheet}
}

// Name returns the name the source was created with.
func (s *XLSXSource) Name() string {
	return s.name
}

// Load parses every row of the sheet.
func (s *XLSXSource) Load(ctx context.Context) ([]core.Project, error) {
	logger := logging.FromContext(ctx)

	f, err := excelize.OpenReader(s.reader)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", s.name, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Error(err, "Failed to close workbook", "source", s.name)
		}
	}()

	sheet := s.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheet, s.name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.V(logging.TRACE).Info("Read workbook sheet", "source", s.name, "sheet", sheet, "rows", len(rows)-1)

	t, err := newTable(ctx, rows[0], rows[1:])
	if err != nil {
		return nil, err
	}
	return t.projects()
}
