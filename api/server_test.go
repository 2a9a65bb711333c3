package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telnovia-org/analytics/analysis"
	"github.com/telnovia-org/analytics/store"
	"github.com/telnovia-org/analytics/translator"
)

// ============================================================================
// HTTP API TESTS
// ============================================================================

var salesCSV = []byte(`product,sales
Widget,100
Gadget,250.5
Widget,150
Doohickey,80
Gadget,90
`)

type fakeModel struct {
	structuredReply []byte
	completeReply   string
}

func (f *fakeModel) Complete(context.Context, string, string) (string, error) {
	return f.completeReply, nil
}

func (f *fakeModel) CompleteStructured(context.Context, string, string, translator.Tool) ([]byte, error) {
	return f.structuredReply, nil
}

func newTestServer(t *testing.T, model translator.Client) http.Handler {
	t.Helper()
	mem := store.NewMemory()
	router := analysis.NewRouter(mem, mem, model, 5*time.Second, nil)
	srv := New(mem, mem, router, t.TempDir(), nil)
	return srv.Handler([]string{"http://localhost:3000"})
}

func uploadCSV(t *testing.T, h http.Handler, owner, filename string, content []byte) *store.Notebook {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Owner-Id", owner)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, "upload failed: %s", rec.Body.String())

	var nb store.Notebook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nb))
	require.NotEmpty(t, nb.ID)
	return &nb
}

func doJSON(t *testing.T, h http.Handler, method, path, owner string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if owner != "" {
		req.Header.Set("X-Owner-Id", owner)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUploadReturnsHealthReport(t *testing.T) {
	h := newTestServer(t, &fakeModel{})
	nb := uploadCSV(t, h, "owner-1", "sales.csv", salesCSV)

	require.Equal(t, "sales.csv", nb.Filename)
	require.NotEmpty(t, nb.HealthReport)

	var report map[string]any
	require.NoError(t, json.Unmarshal(nb.HealthReport, &report))
	require.Contains(t, report, "columns")
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	h := newTestServer(t, &fakeModel{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "report.xlsx")
	_, _ = fw.Write([]byte("junk"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsUnparseableDataset(t *testing.T) {
	h := newTestServer(t, &fakeModel{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "broken.json")
	_, _ = fw.Write([]byte("{not valid json"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryFlow(t *testing.T) {
	model := &fakeModel{
		structuredReply: []byte(`{"intent": "descriptive_analysis", "variables": null}`),
		completeReply:   "df.select(pl.sum('sales'))",
	}
	h := newTestServer(t, model)
	nb := uploadCSV(t, h, "owner-1", "sales.csv", salesCSV)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/analysis/query", "owner-1",
		map[string]string{"notebook_id": nb.ID, "query": "total sales"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "670.5", resp.Reply)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/notebooks/"+nb.ID+"/conversations", "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var turns []store.Turn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turns))
	require.Len(t, turns, 1)
	require.Equal(t, "total sales", turns[0].UserQuery)
	require.Equal(t, "670.5", turns[0].AIResponse)
}

func TestQueryUnknownNotebook(t *testing.T) {
	h := newTestServer(t, &fakeModel{structuredReply: []byte(`{"intent": "descriptive_analysis"}`)})

	rec := doJSON(t, h, http.MethodPost, "/api/v1/analysis/query", "owner-1",
		map[string]string{"notebook_id": "missing", "query": "total sales"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotebookOwnershipScoping(t *testing.T) {
	h := newTestServer(t, &fakeModel{})
	nb := uploadCSV(t, h, "owner-1", "sales.csv", salesCSV)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/notebooks/"+nb.ID, "owner-2", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/notebooks/"+nb.ID, "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSharingFlow(t *testing.T) {
	h := newTestServer(t, &fakeModel{})
	nb := uploadCSV(t, h, "owner-1", "sales.csv", salesCSV)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/notebooks/"+nb.ID+"/share", "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var share shareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &share))
	require.NotEmpty(t, share.ShareToken)

	// Anyone holding the token can read the shared notebook.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/shared/"+share.ShareToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var shared store.Notebook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shared))
	require.Equal(t, nb.ID, shared.ID)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/shared/bogus-token", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListNotebooks(t *testing.T) {
	h := newTestServer(t, &fakeModel{})
	uploadCSV(t, h, "owner-1", "a.csv", salesCSV)
	uploadCSV(t, h, "owner-1", "b.csv", salesCSV)
	uploadCSV(t, h, "owner-2", "c.csv", salesCSV)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/notebooks", "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var nbs []store.Notebook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nbs))
	require.Len(t, nbs, 2)
}
