package mcp

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-formfill/internal/config"
	"github.com/a3tai/mcp-pdf-formfill/internal/form"
	"github.com/a3tai/mcp-pdf-formfill/internal/form/formtest"
	"github.com/a3tai/mcp-pdf-formfill/internal/session"
)

func uploadRequest(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sessions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) session.Status {
	t.Helper()
	var st session.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func answer(id, value string) *http.Request {
	body, _ := json.Marshal(map[string]string{"value": value})
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/answers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRouter_UploadConversationDownload(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	rec := serve(router, uploadRequest(t, "address.pdf", formtest.TextForm("street", "Street address", "city", "City")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	st := decodeStatus(t, rec)
	assert.Equal(t, "address.pdf", st.Source)
	assert.Equal(t, "Street address", st.Prompt)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/sessions/"+st.ID+"/download", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(router, answer(st.ID, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var result session.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "rejected", result.Outcome)
	assert.Equal(t, form.RejectionMessage, result.Message)

	serve(router, answer(st.ID, "1 Main St"))
	rec = serve(router, answer(st.ID, "Springfield"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Completed)
	assert.Equal(t, []form.Answer{{Name: "street", Value: "1 Main St"}, {Name: "city", Value: "Springfield"}}, result.Answers)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/sessions/"+st.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeStatus(t, rec).Cursor)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/sessions/"+st.ID+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="filled_form.pdf"`, rec.Header().Get("Content-Disposition"))

	values, err := form.ReadValues(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Springfield", values["city"])

	rec = serve(router, httptest.NewRequest(http.MethodDelete, "/sessions/"+st.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(router, httptest.NewRequest(http.MethodGet, "/sessions/"+st.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_CreateSessionDefaultForm(t *testing.T) {
	server, cfg := newTestServer(t)
	router := server.Router()

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "form not found, upload a PDF instead")

	writeForm(t, cfg, cfg.DefaultForm, formtest.TextForm("name", "Full name"))

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	st := decodeStatus(t, rec)
	assert.Equal(t, "ar-11.pdf", st.Source)
	assert.Equal(t, "Full name", st.Prompt)
}

func TestRouter_Errors(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	rec := serve(router, uploadRequest(t, "junk.pdf", []byte("not a pdf")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	small, _ := newTestServerWith(t, func(cfg *config.Config) { cfg.MaxFileSize = 16 })
	rec = serve(small.Router(), uploadRequest(t, "big.pdf", formtest.TextForm("name", "Full name")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = serve(router, answer("missing", "x"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/sessions/missing/answers", strings.NewReader("{"))
	rec = serve(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodDelete, "/sessions/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	serve(router, uploadRequest(t, "a.pdf", formtest.TextForm("name", "Full name")))

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `formfill_sessions_total{result="ok"} 1`)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrNotFound, http.StatusNotFound},
		{session.ErrFormNotFound, http.StatusNotFound},
		{session.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{session.ErrNotCompleted, http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}
