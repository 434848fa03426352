package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"hr-compliance-api/config"
	"hr-compliance-api/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQueue struct{ enqueued int }

func (q *stubQueue) EnqueueContext(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
	q.enqueued++
	return &asynq.TaskInfo{ID: "task-9"}, nil
}

func setupImportAPI(t *testing.T) (*gin.Engine, *config.Settings) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	settings := &config.Settings{
		Environment:        config.Production,
		DBDriver:           "sqlite",
		DBSQLitePath:       "file:" + t.Name() + "?mode=memory&cache=shared",
		AutoMigrate:        true,
		UploadPath:         t.TempDir(),
		ImportLockName:     "api_" + t.Name(),
		DefaultWarningDays: 30,
		ReportMaxItems:     15,
	}
	db, err := config.Open(settings)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	prevDB := config.DB
	config.DB = db
	config.SetSettings(settings)
	t.Cleanup(func() {
		config.DB = prevDB
		config.SetSettings(nil)
		SetImportQueue(nil)
		_ = sqlDB.Close()
	})

	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("subject", "7") })
	router.POST("/imports", CreateImport)
	router.GET("/imports", ListImports)
	router.GET("/imports/:batch_id", GetImport)
	return router, settings
}

func uploadRequest(t *testing.T, fileName, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/imports", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

const departmentsCSV = "Kode,Nama Departemen\nRMP,Ramp Handling\nCGO,Cargo\n"

func TestCreateImportRunsUpload(t *testing.T) {
	router, _ := setupImportAPI(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "departemen.csv", departmentsCSV, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool                   `json:"success"`
		Summary services.ReportSummary `json:"summary"`
		Report  string                 `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Summary.Counters.Created)
	assert.Contains(t, resp.Report, "Success rate: 100.0%")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/imports", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Total int64 `json:"total"`
		Data  []struct {
			BatchID       string `json:"batch_id"`
			TriggerSource string `json:"trigger_source"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.EqualValues(t, 1, list.Total)
	assert.Equal(t, "api:7", list.Data[0].TriggerSource)
	assert.Equal(t, resp.Summary.BatchID, list.Data[0].BatchID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/imports/"+resp.Summary.BatchID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcomes"`)
}

func TestCreateImportRejectsBadRequests(t *testing.T) {
	router, _ := setupImportAPI(t)

	tests := []struct {
		name     string
		fileName string
		fields   map[string]string
		want     int
	}{
		{"unsupported extension", "notes.txt", nil, http.StatusBadRequest},
		{"unknown sync mode", "departemen.csv", map[string]string{"sync_mode": "mirror"}, http.StatusBadRequest},
		{"unroutable sheet", "export.csv", nil, http.StatusBadRequest},
		{"async without queue", "departemen.csv", map[string]string{"async": "yes"}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, uploadRequest(t, tt.fileName, departmentsCSV, tt.fields))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/imports/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateImportQueuesAsyncUpload(t *testing.T) {
	router, settings := setupImportAPI(t)
	q := &stubQueue{}
	SetImportQueue(q)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "departemen.csv", departmentsCSV, map[string]string{"async": "true", "dry_run": "1"}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"task_id":"task-9"`)
	assert.Equal(t, 1, q.enqueued)

	stored, err := os.ReadDir(filepath.Join(settings.UploadPath, "imports"))
	require.NoError(t, err)
	assert.Len(t, stored, 1, "the upload is kept on disk for the worker")
}

func TestImportErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, importErrorStatus(services.ErrImportAlreadyRunning))
	assert.Equal(t, http.StatusBadRequest, importErrorStatus(services.ErrNoSheetsToImport))
	assert.Equal(t, http.StatusInternalServerError, importErrorStatus(&services.PersistenceError{Err: errors.New("x")}))
	assert.Equal(t, http.StatusUnprocessableEntity, importErrorStatus(errors.New("invalid import options")))
}
