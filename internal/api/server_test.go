package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/blast/internal/backend"
	"github.com/samcharles93/blast/internal/tuning"
)

func newTestEcho(t *testing.T) (*echo.Echo, *Server) {
	t.Helper()
	db := tuning.Default()
	h, err := backend.Open(backend.Host, db, nil)
	if err != nil {
		t.Fatalf("open host: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	server, err := NewServer(h, db, NewRunStore(4), nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	e := echo.New()
	server.Register(e)
	return e, server
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeRun(t *testing.T, rec *httptest.ResponseRecorder) RoutineRun {
	t.Helper()
	var run RoutineRun
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v body=%s", err, rec.Body.String())
	}
	return run
}

func TestAxpyRunLifecycle(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/routines/axpy",
		`{"n":3,"alpha":2,"x":{"data":[1,2,3]},"y":{"data":[10,10,10]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("axpy status: got %d body=%s", rec.Code, rec.Body.String())
	}
	run := decodeRun(t, rec)
	if run.Status != "success" || run.Precision != "single" {
		t.Fatalf("run = %+v", run)
	}
	want := []float64{12, 14, 16}
	for i := range want {
		if run.Y[i] != want[i] {
			t.Fatalf("y[%d] = %v, want %v", i, run.Y[i], want[i])
		}
	}
	if len(run.Launches) != 1 || run.Launches[0].Kernel != "Xaxpy" {
		t.Fatalf("launches = %+v", run.Launches)
	}

	getRec := doJSON(t, e, http.MethodGet, "/v1/runs/"+run.ID, "")
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status: got %d", getRec.Code)
	}
	delRec := doJSON(t, e, http.MethodDelete, "/v1/runs/"+run.ID, "")
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete status: got %d", delRec.Code)
	}
	if rec := doJSON(t, e, http.MethodGet, "/v1/runs/"+run.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", rec.Code)
	}
}

func TestDotRunReportsResult(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/routines/dot",
		`{"precision":"double","n":4,"x":{"data":[1,2,3,4]},"y":{"data":[4,3,2,1]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("dot status: got %d body=%s", rec.Code, rec.Body.String())
	}
	run := decodeRun(t, rec)
	if run.Result == nil || *run.Result != 20 {
		t.Fatalf("result = %v", run.Result)
	}
	if len(run.Launches) != 2 || run.Launches[1].Kernel != "XdotEpilogue" {
		t.Fatalf("launches = %+v", run.Launches)
	}
}

func TestGemvRowMajor(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	// [1 2 3; 4 5 6] * [1 1 1] = [6 15]
	rec := doJSON(t, e, http.MethodPost, "/v1/routines/gemv",
		`{"m":2,"n":3,"alpha":1,"layout":"row","a":{"data":[1,2,3,4,5,6],"ld":3},"x":{"data":[1,1,1]},"y":{"data":[0,0]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("gemv status: got %d body=%s", rec.Code, rec.Body.String())
	}
	run := decodeRun(t, rec)
	if run.Y[0] != 6 || run.Y[1] != 15 {
		t.Fatalf("y = %v", run.Y)
	}
}

func TestRoutineStatusErrors(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	cases := []struct {
		name   string
		body   string
		status string
	}{
		{"zero length", `{"n":0,"x":{"data":[1]},"y":{"data":[1]}}`, "invalid-dimension"},
		{"short buffer", `{"n":4,"x":{"data":[1,2]},"y":{"data":[1,2,3,4]}}`, "invalid-buffer-size"},
		{"bad increment", `{"n":2,"x":{"data":[1,2],"inc":-1},"y":{"data":[1,2]}}`, "invalid-increment"},
		{"missing operand", `{"n":2,"x":{"data":[1,2]}}`, "invalid-buffer-size"},
	}
	for _, tc := range cases {
		rec := doJSON(t, e, http.MethodPost, "/v1/routines/axpy", tc.body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: got %d body=%s", tc.name, rec.Code, rec.Body.String())
		}
		if run := decodeRun(t, rec); run.Status != tc.status || len(run.Launches) != 0 {
			t.Fatalf("%s: run = %+v", tc.name, run)
		}
	}
}

func TestBadRequests(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	if rec := doJSON(t, e, http.MethodPost, "/v1/routines/trsm", `{}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown routine: got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodPost, "/v1/routines/axpy", `{"precision":"complex-single"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("complex precision: got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodPost, "/v1/routines/gemv", `{"trans":"sideways"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad trans: got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodPost, "/v1/routines/axpy", `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed json: got %d", rec.Code)
	}
}

func TestDeviceRoutinesAndTuning(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	if rec := doJSON(t, e, http.MethodGet, "/v1/device", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"backend":"host"`) {
		t.Fatalf("device: %d %s", rec.Code, rec.Body.String())
	}

	rec := doJSON(t, e, http.MethodGet, "/v1/routines", "")
	var list RoutineList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode routines: %v", err)
	}
	if len(list.Data) != 6 || list.Data[0].Name != "axpy" {
		t.Fatalf("routines = %+v", list.Data)
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/tuning/Xaxpy?precision=double", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("tuning: got %d body=%s", rec.Code, rec.Body.String())
	}
	var tr TuningResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil {
		t.Fatalf("decode tuning: %v", err)
	}
	if tr.Params.Get("WGS") == 0 || tr.Precision != "double" {
		t.Fatalf("tuning = %+v", tr)
	}
	if rec := doJSON(t, e, http.MethodGet, "/v1/tuning/Xnope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown family: got %d", rec.Code)
	}
}

func TestRunStoreEvictsOldest(t *testing.T) {
	t.Parallel()

	s := NewRunStore(2)
	for _, id := range []string{"a", "b", "c"} {
		s.Save(RoutineRun{ID: id})
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("oldest run should be evicted")
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d", s.Len())
	}
	if !s.Delete("b") || s.Delete("b") {
		t.Fatal("Delete should succeed once")
	}
}
