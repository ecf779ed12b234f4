package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"horse.fit/opinio/internal/db"
	"horse.fit/opinio/internal/ingest"
	"horse.fit/opinio/internal/source"
)

type importCall struct {
	institutionID int64
	sourceTag     string
}

type fakeImporter struct {
	result ingest.Result
	err    error
	calls  []importCall
}

func (f *fakeImporter) Run(_ context.Context, institutionID int64, sourceTag string) (ingest.Result, error) {
	f.calls = append(f.calls, importCall{institutionID: institutionID, sourceTag: sourceTag})
	if f.err != nil {
		return ingest.Result{}, f.err
	}
	return f.result, nil
}

func postImport(t *testing.T, importer Importer, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	server := NewServer(nil, importer, zerolog.Nop(), Options{})
	e := server.router()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeJSend(t *testing.T, rec *httptest.ResponseRecorder) jsendResponse {
	t.Helper()
	var resp jsendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHandleImport_Success(t *testing.T) {
	t.Parallel()

	importer := &fakeImporter{result: ingest.Result{Inserted: 2, Skipped: 1, TotalFetched: 3}}
	rec := postImport(t, importer, "/api/import/maps", `{"institution_id": 10}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSend(t, rec)
	if resp.Status != "success" {
		t.Fatalf("jsend status = %q, want success", resp.Status)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %T, want object", resp.Data)
	}
	if data["inserted"] != float64(2) || data["skipped"] != float64(1) || data["total_fetched"] != float64(3) {
		t.Fatalf("data = %v", data)
	}
	if len(importer.calls) != 1 || importer.calls[0].institutionID != 10 || importer.calls[0].sourceTag != "maps" {
		t.Fatalf("importer calls = %+v", importer.calls)
	}
}

func TestHandleImport_UnknownSourceTag(t *testing.T) {
	t.Parallel()

	importer := &fakeImporter{}
	rec := postImport(t, importer, "/api/import/fax", `{"institution_id": 10}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if len(importer.calls) != 0 {
		t.Fatalf("importer called for unknown source: %+v", importer.calls)
	}
}

func TestHandleImport_InvalidPayload(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"missing field", `{}`},
		{"wrong type", `{"institution_id": "ten"}`},
		{"extra field", `{"institution_id": 1, "force": true}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			importer := &fakeImporter{}
			rec := postImport(t, importer, "/api/import/social", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
			}
			if len(importer.calls) != 0 {
				t.Fatalf("importer called with invalid payload: %+v", importer.calls)
			}
		})
	}
}

func TestHandleImport_InstitutionNotFound(t *testing.T) {
	t.Parallel()

	importer := &fakeImporter{err: db.ErrInstitutionNotFound}
	rec := postImport(t, importer, "/api/import/scrape", `{"institution_id": 99}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp := decodeJSend(t, rec)
	if resp.Status != "fail" {
		t.Fatalf("jsend status = %q, want fail", resp.Status)
	}
}

func TestHandleImport_SourceUnavailable(t *testing.T) {
	t.Parallel()

	importer := &fakeImporter{err: source.ErrSourceUnavailable}
	rec := postImport(t, importer, "/api/import/messaging", `{"institution_id": 5}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestHandleImport_InternalError(t *testing.T) {
	t.Parallel()

	importer := &fakeImporter{err: context.DeadlineExceeded}
	rec := postImport(t, importer, "/api/import/maps", `{"institution_id": 5}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeJSend(t, rec)
	if resp.Status != "error" {
		t.Fatalf("jsend status = %q, want error", resp.Status)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, &fakeImporter{}, zerolog.Nop(), Options{})
	e := server.router()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("go_goroutines")) {
		t.Fatal("metrics body missing standard collectors")
	}
}
