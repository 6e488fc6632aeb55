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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/capbudget/portfolio/internal/logging"
	"github.com/capbudget/portfolio/pkg/core"
)

// Format identifies a tabular catalog encoding.
type Format string

// enumeration of catalog formats
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Source is a pluggable origin of catalog records.
type Source interface {
	// Name returns a human readable name of the source (e.g. the file name).
	Name() string

	// Load reads every record of the source and converts it into projects. Records
	// are returned in source order; validation across records is left to
	// core.NewCatalog.
	Load(ctx context.Context) ([]core.Project, error)
}

// FormatOf derives the format from a file name extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported catalog format %q: expected .csv or .xlsx", filepath.Ext(name))
}

// NewSource returns the source reading r in the given format. name is used in logs
// and errors only.
func NewSource(name string, format Format, r io.Reader) (Source, error) {
	switch format {
	case FormatCSV:
		return NewCSVSource(name, r), nil
	case FormatXLSX:
		return NewXLSXSource(name, r, ""), nil
	}
	return nil, fmt.Errorf("unsupported catalog format %q", format)
}

// OpenFile reads the whole file and returns a source for it.
func OpenFile(path string) (Source, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return NewSource(filepath.Base(path), format, bytes.NewReader(data))
}

// LoadCatalog loads every record of src and validates them into a catalog.
func LoadCatalog(ctx context.Context, src Source) (*core.Catalog, error) {
	logger := logging.FromContext(ctx).WithValues("source", src.Name())

	projects, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := core.NewCatalog(projects)
	if err != nil {
		return nil, err
	}
	logger.V(logging.DEBUG).Info("Loaded project catalog",
		"projects", catalog.Len(),
		"regions", len(catalog.Regions()),
		"resources", catalog.ResourceNames())
	return catalog, nil
}

// LoadCatalogFile is OpenFile followed by LoadCatalog.
func LoadCatalogFile(ctx context.Context, path string) (*core.Catalog, error) {
	src, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	return LoadCatalog(ctx, src)
}
