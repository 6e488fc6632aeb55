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

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/common/version"
	"go.uber.org/multierr"

	"github.com/capbudget/portfolio/api/v1alpha1"
	"github.com/capbudget/portfolio/internal/ingest"
	"github.com/capbudget/portfolio/internal/logging"
	"github.com/capbudget/portfolio/internal/optimizer"
	"github.com/capbudget/portfolio/pkg/core"
)

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) buildInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":   version.Version,
		"revision":  version.Revision,
		"branch":    version.Branch,
		"buildDate": version.BuildDate,
		"goVersion": version.GoVersion,
	})
}

func (s *Server) getSession(c *gin.Context) {
	status := v1alpha1.SessionStatus{
		SessionID: s.session.ID(),
		State:     string(s.session.State()),
	}
	if catalog := s.session.Catalog(); catalog != nil {
		status.Projects = catalog.Len()
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) listProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, v1alpha1.ProfileList{Profiles: s.profiles.Names()})
}

func (s *Server) getCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, v1alpha1.FromCatalog(s.session.Catalog()))
}

func (s *Server) putCatalog(c *gin.Context) {
	var doc v1alpha1.CatalogDocument
	if err := decodeJSON(c.Request.Body, &doc); err != nil {
		writeError(c, err)
		return
	}
	catalog, err := doc.NewCatalog()
	if err != nil {
		writeError(c, err)
		return
	}
	s.replaceCatalog(c, catalog)
}

func (s *Server) importCatalog(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		writeError(c, badRequest("expected a multipart form with a file field: %v", err))
		return
	}
	defer func() { _ = file.Close() }()

	format, err := ingest.FormatOf(header.Filename)
	if err != nil {
		writeError(c, badRequest("%v", err))
		return
	}
	var src ingest.Source
	if format == ingest.FormatXLSX {
		src = ingest.NewXLSXSource(header.Filename, file, c.Query("sheet"))
	} else {
		src = ingest.NewCSVSource(header.Filename, file)
	}
	catalog, err := ingest.LoadCatalog(c.Request.Context(), src)
	if err != nil {
		if !errors.Is(err, core.ErrDataValidation) {
			err = badRequest("cannot read %s: %v", header.Filename, err)
		}
		writeError(c, err)
		return
	}
	s.replaceCatalog(c, catalog)
}

func (s *Server) replaceCatalog(c *gin.Context, catalog *core.Catalog) {
	if err := s.session.ReplaceCatalog(catalog); err != nil {
		writeError(c, err)
		return
	}
	logging.FromContext(c.Request.Context()).Info("Replaced project catalog", "projects", catalog.Len())
	c.JSON(http.StatusOK, v1alpha1.FromCatalog(catalog))
}

func (s *Server) solve(c *gin.Context) {
	var req v1alpha1.SolveRequest
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		writeError(c, solveFieldError(err))
		return
	}
	cfg, err := s.profiles.Apply(c.Query("profile"), req.ToConfig())
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := s.session.Solve(c.Request.Context(), cfg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result.Response())
}

func (s *Server) cancelSolve(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": s.session.Cancel()})
}

func (s *Server) lastSolve(c *gin.Context) {
	result, ok := s.session.Last()
	if !ok {
		c.JSON(http.StatusNotFound, v1alpha1.ErrorResponse{
			Error:  "no solve has completed on the current catalog",
			Reason: v1alpha1.ReasonNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, result.Response())
}

// requestError is a malformed request.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	return e.msg
}

func (e *requestError) Unwrap() error {
	return e.err
}

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON decodes a strict JSON body. An empty body decodes to the zero value.
func decodeJSON(body io.Reader, into any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil && !errors.Is(err, io.EOF) {
		return &requestError{msg: fmt.Sprintf("malformed request body: %v", err), err: err}
	}
	return nil
}

// solveFieldError turns a well-formed solve body whose field holds a value of the
// wrong type, such as a string budget, into a ConfigurationError on that field.
func solveFieldError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) || typeErr.Field == "" {
		return err
	}
	return core.NewConfigurationError(typeErr.Field, "has the wrong type: got a JSON %s, want %s", typeErr.Value, typeErr.Type)
}

// writeError maps err onto a status code and an ErrorResponse.
func writeError(c *gin.Context, err error) {
	var (
		status = http.StatusInternalServerError
		resp   = v1alpha1.ErrorResponse{Error: err.Error(), Reason: v1alpha1.ReasonInternal}
		reqErr *requestError
	)
	switch {
	case errors.As(err, &reqErr):
		status, resp.Reason = http.StatusBadRequest, v1alpha1.ReasonBadRequest
	case errors.Is(err, optimizer.ErrSessionBusy):
		status, resp.Reason = http.StatusConflict, v1alpha1.ReasonBusy
	case errors.Is(err, optimizer.ErrNoCatalog):
		status, resp.Reason = http.StatusConflict, v1alpha1.ReasonNoCatalog
	case errors.Is(err, core.ErrDataValidation):
		status, resp.Reason = http.StatusUnprocessableEntity, v1alpha1.ReasonDataValidation
		resp.Details = details(err)
	case errors.Is(err, core.ErrConfiguration):
		status, resp.Reason = http.StatusUnprocessableEntity, v1alpha1.ReasonConfiguration
		resp.Details = details(err)
	}
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error(err, "Request failed")
	}
	c.AbortWithStatusJSON(status, resp)
}

func details(err error) []v1alpha1.ErrorDetail {
	var out []v1alpha1.ErrorDetail
	for _, e := range multierr.Errors(err) {
		var dve *core.DataValidationError
		var ce *core.ConfigurationError
		switch {
		case errors.As(e, &dve):
			out = append(out, v1alpha1.ErrorDetail{ProjectID: dve.ProjectID, Field: dve.Field, Message: dve.Reason})
		case errors.As(e, &ce):
			out = append(out, v1alpha1.ErrorDetail{Field: ce.Field, Message: ce.Reason})
		}
	}
	return out
}
