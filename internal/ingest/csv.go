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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/capbudget/portfolio/pkg/core"
)

// CSVSource reads a comma separated catalog. The first record is the header.
type CSVSource struct {
	name   string
	reader io.Reader
}

// NewCSVSource returns a source reading r.
func NewCSVSource(name string, r io.Reader) *CSVSource {
	return &CSVSource{name: name, reader: r}
}

// Name returns the name the source was created with.
func (s *CSVSource) Name() string {
	return s.name
}

// Load parses every record.
func (s *CSVSource) Load(ctx context.Context) ([]core.Project, error) {
	r := csv.NewReader(s.reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", s.name, err)
	}
	// A semicolon separated export arrives as a single column.
	if len(header) == 1 && strings.Contains(header[0], ";") {
		return nil, core.NewDataValidationError("", "header",
			"%s looks semicolon separated; catalogs must be comma separated", s.name)
	}

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.name, err)
		}
		rows = append(rows, record)
	}

	t, err := newTable(ctx, header, rows)
	if err != nil {
		return nil, err
	}
	return t.projects()
}
