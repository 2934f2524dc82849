package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/customs-dev/customs/internal/storage"
	"github.com/customs-dev/customs/internal/testutil"
	"github.com/customs-dev/customs/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*echo.Echo, *testutil.MockLedger) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ledger := testutil.NewMockLedger()

	e := echo.New()
	SetupMiddleware(e, false)
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Store:   store,
		Ledger:  ledger,
		Uploads: testUploads(t),
		Version: "test",
	}))
	return e, ledger
}

func TestRoutes_UploadLifecycle(t *testing.T) {
	e, ledger := newTestServer(t)

	// Upload
	req := testutil.MultipartRequest(t, "/api/uploads", testutil.FileField("report", "q3.csv", "a,b\n1,2\n"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	batch := decodeBatch(t, rec)
	require.Len(t, batch.Files, 1)
	id := batch.Files[0].ID
	assert.Equal(t, storage.BackendLocal, batch.Files[0].Backend)
	assert.Len(t, ledger.Records, 1)

	// Content
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files/"+id+"/content", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a,b\n1,2\n", rec.Body.String())

	// Rename
	req = httptest.NewRequest(http.MethodPut, "/api/files/"+id, strings.NewReader(`{"name":"renamed.csv"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"renamed.csv"`)

	// Delete, then the file is gone
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/files/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestRoutes_ErrorResponses(t *testing.T) {
	e, _ := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown route", http.MethodGet, "/api/nope", "", http.StatusNotFound, "HTTP_ERROR"},
		{"malformed descriptor", http.MethodPost, "/api/uploads/inspect",
			`{"f":{"name":["a"],"type":"","tmp_name":"","error":0,"size":0}}`, http.StatusUnprocessableEntity, "MALFORMED_DESCRIPTOR"},
		{"security concern", http.MethodPost, "/api/uploads/inspect",
			`{"f":{"name":"a","type":"","tmp_name":"","error":9,"size":0}}`, http.StatusBadRequest, "SECURITY_CONCERN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var apiErr APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{&upload.ServerFault{FieldName: "f", Reason: upload.ReasonNoTmpDir}, http.StatusInternalServerError, "SERVER_FAULT"},
		{fmt.Errorf("wrapped: %w", &upload.SecurityFault{FieldName: "f", Reason: upload.ReasonNotUploaded}), http.StatusBadRequest, "SECURITY_CONCERN"},
		{&upload.StructuralMismatchError{FieldName: "f", Attribute: "size"}, http.StatusUnprocessableEntity, "MALFORMED_DESCRIPTOR"},
		{upload.ErrDisabled, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{fmt.Errorf("%w: abc", storage.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{NewValidationError("name"), http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			apiErr := FromError(tt.err)
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}

	assert.Nil(t, FromError(fmt.Errorf("something else")))
	assert.Nil(t, FromError(upload.ErrOutOfRange))
}

func TestSecurityFaultHidesCheck(t *testing.T) {
	apiErr := FromError(&upload.SecurityFault{FieldName: "f", Reason: upload.ReasonNotUploaded})
	assert.NotContains(t, apiErr.Message, "POST")
	assert.Empty(t, apiErr.Details)
}
