package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capbudget/portfolio/api/v1alpha1"
	"github.com/capbudget/portfolio/internal/config"
	"github.com/capbudget/portfolio/internal/metrics"
	"github.com/capbudget/portfolio/internal/optimizer"
	"github.com/capbudget/portfolio/pkg/solver"
	"github.com/capbudget/portfolio/pkg/solver/bnb"
)

const catalogJSON = `{"projects": [
	{"id": "A", "cost": 10, "benefit": 5, "region": "North", "exclusive_group": "g"},
	{"id": "B", "cost": 10, "benefit": 4, "region": "North", "exclusive_group": "g"},
	{"id": "C", "cost": 10, "benefit": 3, "region": "South"}
]}`

const profilesYAML = `
default:
  time_limit: 5
wide:
  name: wide
  budget: 20
  pool_size: 3
`

func newTestServer(t *testing.T, capability solver.Capability) (*Server, *optimizer.Session) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	require.NoError(t, err)
	profiles, err := config.ParseSolveProfiles([]byte(profilesYAML))
	require.NoError(t, err)

	session := optimizer.NewSession(nil, capability, optimizer.WithRecorder(recorder))
	return New(session, profiles, WithGatherer(registry)), session
}

func do(t *testing.T, h http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, method, path, "application/json", []byte(body))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func TestSolveFlow(t *testing.T) {
	srv, _ := newTestServer(t, bnb.New(bnb.WithNativePool(false)))
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPost, APIPrefix+"/solve", `{"budget": 10}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, v1alpha1.ReasonNoCatalog, decode[v1alpha1.ErrorResponse](t, w).Reason)

	w = doJSON(t, h, http.MethodGet, APIPrefix+"/solve/last", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodPut, APIPrefix+"/catalog", catalogJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[v1alpha1.CatalogDocument](t, w).Projects, 3)

	w = doJSON(t, h, http.MethodPost, APIPrefix+"/solve", `{"budget": 10, "pool_size": 2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[v1alpha1.SolveResponse](t, w)
	assert.Equal(t, "Optimal", resp.Status)
	assert.Equal(t, []string{"A"}, resp.SelectedIDs)
	assert.Equal(t, 5.0, resp.Objective)
	assert.Equal(t, 2, resp.RequestedPoolSize)
	assert.Equal(t, 2, resp.AchievedPoolSize)
	require.Len(t, resp.Pool, 2)
	assert.Equal(t, []string{"B"}, resp.Pool[1].SelectedIDs)
	assert.Equal(t, 2, resp.Pool[1].Rank)
	assert.False(t, resp.Partial)
	require.Len(t, resp.RegionSummary, 1)
	assert.Equal(t, "North", resp.RegionSummary[0].Region)

	w = doJSON(t, h, http.MethodGet, APIPrefix+"/solve/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, resp.RequestID, decode[v1alpha1.SolveResponse](t, w).RequestID)

	w = doJSON(t, h, http.MethodPost, APIPrefix+"/solve?profile=wide", `{}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decode[v1alpha1.SolveResponse](t, w)
	assert.Equal(t, []string{"A", "C"}, resp.SelectedIDs)
	assert.Equal(t, 3, resp.RequestedPoolSize)
}

func TestSolveErrors(t *testing.T) {
	srv, _ := newTestServer(t, bnb.New())
	h := srv.Handler()
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPut, APIPrefix+"/catalog", catalogJSON).Code)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantReason string
		wantField  string
	}{
		{
			name:       "Test case 1: Malformed body",
			path:       APIPrefix + "/solve",
			body:       `{"budget": `,
			wantStatus: http.StatusBadRequest,
			wantReason: v1alpha1.ReasonBadRequest,
		},
		{
			name:       "Test case 2: Unknown field",
			path:       APIPrefix + "/solve",
			body:       `{"budget": 10, "bugdet": 3}`,
			wantStatus: http.StatusBadRequest,
			wantReason: v1alpha1.ReasonBadRequest,
		},
		{
			name:       "Test case 3: Missing budget",
			path:       APIPrefix + "/solve",
			body:       `{}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: v1alpha1.ReasonConfiguration,
			wantField:  "budget",
		},
		{
			name:       "Test case 4: Alpha out of range",
			path:       APIPrefix + "/solve",
			body:       `{"budget": 10, "multi_crit_alpha": 2}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: v1alpha1.ReasonConfiguration,
			wantField:  "multi_crit_alpha",
		},
		{
			name:       "Test case 5: Unknown profile",
			path:       APIPrefix + "/solve?profile=nope",
			body:       `{"budget": 10}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: v1alpha1.ReasonConfiguration,
			wantField:  "profile",
		},
		{
			name:       "Test case 6: Negative resource capacity",
			path:       APIPrefix + "/solve",
			body:       `{"budget": 10, "resource_caps": {"labour": -1}}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: v1alpha1.ReasonDataValidation,
			wantField:  "resource_caps[labour]",
		},
		{
			name:       "Test case 7: Non-numeric budget",
			path:       APIPrefix + "/solve",
			body:       `{"budget": "abc"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: v1alpha1.ReasonConfiguration,
			wantField:  "budget",
		},
		{
			name:       "Test case 8: Non-numeric time limit",
			path:       APIPrefix + "/solve",
			body:       `{"budget": 10, "time_limit": true}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: v1alpha1.ReasonConfiguration,
			wantField:  "time_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			resp := decode[v1alpha1.ErrorResponse](t, w)
			assert.Equal(t, tt.wantReason, resp.Reason)
			if tt.wantField != "" {
				require.NotEmpty(t, resp.Details)
				assert.Equal(t, tt.wantField, resp.Details[0].Field)
			}
		})
	}
}

func TestPutCatalogValidation(t *testing.T) {
	srv, session := newTestServer(t, bnb.New())
	h := srv.Handler()

	w := doJSON(t, h, http.MethodPut, APIPrefix+"/catalog", `{"projects": [
		{"id": "A", "cost": -1, "benefit": 1},
		{"id": "B", "cost": 1, "benefit": 1, "requires": "Z"}
	]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[v1alpha1.ErrorResponse](t, w)
	assert.Equal(t, v1alpha1.ReasonDataValidation, resp.Reason)
	assert.Len(t, resp.Details, 2)
	assert.Nil(t, session.Catalog())

	w = doJSON(t, h, http.MethodPut, APIPrefix+"/catalog", `{"projects": [{"id": "X", "benefit": 3}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	resp = decode[v1alpha1.ErrorResponse](t, w)
	assert.Equal(t, v1alpha1.ReasonDataValidation, resp.Reason)
	assert.Equal(t, []v1alpha1.ErrorDetail{{ProjectID: "X", Field: "cost", Message: "is required"}}, resp.Details)
	assert.Nil(t, session.Catalog())
}

func TestImportCatalog(t *testing.T) {
	srv, session := newTestServer(t, bnb.New())
	h := srv.Handler()

	upload := func(filename, content string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		return do(t, h, http.MethodPost, APIPrefix+"/catalog/import", mw.FormDataContentType(), body.Bytes())
	}

	w := upload("projects.csv", "proj_id,cost,benefit,region,labour\nP1,10,4,North,2\nP2,5,3,South,\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"P1", "P2"}, session.Catalog().IDs())

	w = upload("projects.csv", "id,cost,benefit\nP1,ten,4\n")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []string{"P1", "P2"}, session.Catalog().IDs())

	w = upload("projects.json", "{}")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, APIPrefix+"/catalog/import", "text/plain", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// blockingCapability holds the solve until ctx is cancelled, then reports an empty
// selection as its best.
type blockingCapability struct {
	entered chan struct{}
}

func (b *blockingCapability) Solve(ctx context.Context, req *solver.Request) (*solver.Result, error) {
	close(b.entered)
	<-ctx.Done()
	x := make([]bool, req.Model.NumVars())
	return &solver.Result{
		Status: solver.StatusCancelled,
		Best:   &solver.Assignment{Values: solver.ValuesFromMask(x), Objective: 0},
	}, nil
}

func TestBusyAndCancel(t *testing.T) {
	capability := &blockingCapability{entered: make(chan struct{})}
	srv, _ := newTestServer(t, capability)
	h := srv.Handler()
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPut, APIPrefix+"/catalog", catalogJSON).Code)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, APIPrefix+"/solve", strings.NewReader(`{"budget": 10, "pool_size": 2}`))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		done <- w
	}()

	select {
	case <-capability.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("solve did not start")
	}

	w := doJSON(t, h, http.MethodGet, APIPrefix+"/session", "")
	assert.Equal(t, string(optimizer.StateSolving), decode[v1alpha1.SessionStatus](t, w).State)

	w = doJSON(t, h, http.MethodPost, APIPrefix+"/solve", `{"budget": 10}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, v1alpha1.ReasonBusy, decode[v1alpha1.ErrorResponse](t, w).Reason)

	w = doJSON(t, h, http.MethodPut, APIPrefix+"/catalog", catalogJSON)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, h, http.MethodPost, APIPrefix+"/solve/cancel", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"cancelled": true}, decode[map[string]bool](t, w))

	var solved *httptest.ResponseRecorder
	select {
	case solved = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("solve did not return after cancel")
	}
	require.Equal(t, http.StatusOK, solved.Code, solved.Body.String())
	resp := decode[v1alpha1.SolveResponse](t, solved)
	assert.Equal(t, "Cancelled", resp.Status)
	assert.True(t, resp.Partial)
	assert.Equal(t, 1, resp.AchievedPoolSize)
	assert.Equal(t, []string{}, resp.SelectedIDs)

	w = doJSON(t, h, http.MethodPost, APIPrefix+"/solve/cancel", "")
	assert.Equal(t, map[string]bool{"cancelled": false}, decode[map[string]bool](t, w))
}

func TestOperationalEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, bnb.New())
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/healthz", "").Code)

	w := doJSON(t, h, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]string](t, w), "goVersion")

	w = doJSON(t, h, http.MethodGet, APIPrefix+"/profiles", "")
	assert.Equal(t, []string{"wide"}, decode[v1alpha1.ProfileList](t, w).Profiles)

	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPut, APIPrefix+"/catalog", catalogJSON).Code)
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, APIPrefix+"/solve", `{"budget": 10}`).Code)

	w = doJSON(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `portfolio_solves_total{status="Optimal"} 1`)
}
