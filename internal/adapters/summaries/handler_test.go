package summaries

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agroqc/internal/blob"

	"github.com/gin-gonic/gin"
)

func newRouter(t *testing.T, withExports bool) (*gin.Engine, *Worker) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := newSeededService(t)
	var w *Worker
	if withExports {
		w = startWorker(t, svc, blob.NewMemory())
	}
	r := gin.New()
	NewHandler(svc, w).Register(r.Group("/api/v1"))
	return r, w
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListAndDescribeSummaries(t *testing.T) {
	r, _ := newRouter(t, false)

	rec := do(r, http.MethodGet, "/api/v1/summaries", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	var listed struct {
		Summaries []struct {
			Key string `json:"key"`
		} `json:"summaries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil || len(listed.Summaries) != 10 {
		t.Fatalf("unexpected list %s (%v)", rec.Body.String(), err)
	}

	if rec := do(r, http.MethodGet, "/api/v1/summaries/dashboard", ""); rec.Code != http.StatusOK {
		t.Fatalf("describe: %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/v1/summaries/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRunSummaryFormats(t *testing.T) {
	r, _ := newRouter(t, false)

	rec := do(r, http.MethodGet, "/api/v1/summaries/batches-by-area/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("run json: %d %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil || len(result.Rows) != 2 {
		t.Fatalf("unexpected json result %s (%v)", rec.Body.String(), err)
	}

	rec = do(r, http.MethodGet, "/api/v1/summaries/batches-by-area/run?format=csv", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("run csv: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), "area,batches\n") {
		t.Fatalf("unexpected csv body %q", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "batches-by-area-") {
		t.Fatalf("missing attachment filename: %q", rec.Header().Get("Content-Disposition"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/summaries/batches-by-status/run", nil)
	req.Header.Set("Accept", "text/csv")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("Accept: text/csv should select csv, got %q", rec.Header().Get("Content-Type"))
	}

	rec = do(r, http.MethodGet, "/api/v1/summaries/inspections-by-period/run?format=xlsx&bucket=week", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != FormatXLSX.ContentType() {
		t.Fatalf("run xlsx: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestRunSummaryErrors(t *testing.T) {
	r, _ := newRouter(t, false)
	cases := map[string]int{
		"/api/v1/summaries/dashboard/run?format=pdf":                http.StatusNotAcceptable,
		"/api/v1/summaries/inspections-by-period/run?bucket=decade": http.StatusBadRequest,
		"/api/v1/summaries/dashboard/run?bucket=day":                http.StatusBadRequest,
		"/api/v1/summaries/nope/run":                                http.StatusNotFound,
	}
	for target, want := range cases {
		if rec := do(r, http.MethodGet, target, ""); rec.Code != want {
			t.Fatalf("%s: expected %d, got %d %s", target, want, rec.Code, rec.Body.String())
		}
	}
}

func TestExportEndpoints(t *testing.T) {
	r, w := newRouter(t, true)

	rec := do(r, http.MethodPost, "/api/v1/exports", `{"summary":"batches-by-area","formats":["csv","xlsx"],"requested_by":"qa"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create export: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Export ExportRecord `json:"export"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created.Export.ID == "" {
		t.Fatalf("decode export: %s (%v)", rec.Body.String(), err)
	}
	waitForExport(t, w, created.Export.ID)

	rec = do(r, http.MethodGet, "/api/v1/exports/"+created.Export.ID, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"succeeded"`) {
		t.Fatalf("get export: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(r, http.MethodGet, "/api/v1/exports/"+created.Export.ID+"/artifacts/csv", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "area,batches") {
		t.Fatalf("download csv: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "batches-by-area.csv") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}

	checks := []struct {
		method, target, body string
		want                 int
	}{
		{http.MethodGet, "/api/v1/exports/" + created.Export.ID + "/artifacts/json", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/exports/" + created.Export.ID + "/artifacts/pdf", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/exports/unknown", "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/exports", `{"formats":["csv"]}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/exports", `{"summary":"dashboard","formats":["pdf"]}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/exports", `{"summary":"nope"}`, http.StatusNotFound},
		{http.MethodPost, "/api/v1/exports", `{"summary":"inspections-by-period","params":{"bucket":"decade"}}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/exports", `not json`, http.StatusBadRequest},
	}
	for _, c := range checks {
		if rec := do(r, c.method, c.target, c.body); rec.Code != c.want {
			t.Fatalf("%s %s: expected %d, got %d %s", c.method, c.target, c.want, rec.Code, rec.Body.String())
		}
	}
}

func TestExportRoutesWithoutWorker(t *testing.T) {
	r, _ := newRouter(t, false)
	for _, target := range []string{"/api/v1/exports/x", "/api/v1/exports/x/artifacts/csv"} {
		if rec := do(r, http.MethodGet, target, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, rec.Code)
		}
	}
	if rec := do(r, http.MethodPost, "/api/v1/exports", `{"summary":"dashboard"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without worker, got %d", rec.Code)
	}
}
