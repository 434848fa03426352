package controllers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hr-compliance-api/config"
	"hr-compliance-api/queue"
	"hr-compliance-api/services"
	"hr-compliance-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxImportUploadSize = 20 * 1024 * 1024

var allowedImportExtensions = map[string]bool{".xlsx": true, ".xlsm": true, ".csv": true}

// importQueue is set by main when Redis is configured; async uploads are
// rejected without it.
var importQueue queue.Enqueuer

func SetImportQueue(q queue.Enqueuer) { importQueue = q }

func Health(c *gin.Context) {
	status := gin.H{"status": "ok", "time": time.Now().UTC()}
	if config.DB != nil {
		if sqlDB, err := config.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
	}
	c.JSON(http.StatusOK, status)
}

// CreateImport accepts a spreadsheet upload and either runs it right away or
// hands it to the import queue.
func CreateImport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImportExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrUnsupportedFileFormat.Error()})
		return
	}
	if header.Size > maxImportUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is larger than 20MB"})
		return
	}

	opts := services.ImportOptions{
		DryRun:         formBool(c, "dry_run", false),
		UpdateExisting: formBool(c, "update_existing", true),
		CreateMissing:  formBool(c, "create_missing", true),
		SyncMode:       c.PostForm("sync_mode"),
		SoftDelete:     formBool(c, "soft_delete", true),
		FailurePolicy:  c.PostForm("failure_policy"),
		TriggerSource:  "api:" + c.GetString("subject"),
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind := strings.TrimSpace(c.PostForm("kind"))

	settings := config.Current()
	uploadDir := filepath.Join(settings.UploadPath, "imports")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot create upload directory"})
		return
	}
	dstPath := filepath.Join(uploadDir, utils.GenerateUniqueFilename(uploadDir, header.Filename))
	data, err := io.ReadAll(io.LimitReader(file, maxImportUploadSize+1))
	if err != nil || len(data) > maxImportUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot store upload"})
		return
	}

	if formBool(c, "async", false) {
		if importQueue == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "import queue is not configured"})
			return
		}
		taskID, err := queue.EnqueueImportFile(c.Request.Context(), importQueue, queue.ImportFilePayload{
			Path:     dstPath,
			FileName: header.Filename,
			Kind:     kind,
			Options:  opts,
		})
		if err != nil {
			logrus.WithError(err).Error("enqueue import")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot enqueue import"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": true, "task_id": taskID})
		return
	}

	job, err := services.NewImportJobService(config.DB, settings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	report, err := job.RunFile(c.Request.Context(), &services.ImportFileInput{
		FileName: header.Filename,
		Data:     data,
		Kind:     kind,
		Options:  opts,
	})
	if err != nil {
		status := importErrorStatus(err)
		body := gin.H{"success": false, "error": err.Error()}
		if report != nil {
			body["summary"] = job.Reports().Summary(report)
			body["report"] = job.Reports().Text(report)
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": job.Reports().Summary(report),
		"report":  job.Reports().Text(report),
	})
}

func ListImports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	batches, total, err := services.NewImportBatchService(config.DB).List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list import batches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": batches, "total": total})
}

func GetImport(c *gin.Context) {
	batch, err := services.NewImportBatchService(config.DB).GetByBatchID(c.Request.Context(), c.Param("batch_id"), true)
	if err != nil {
		if errors.Is(err, services.ErrImportBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load import batch"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": batch})
}

func RefreshCertificateStatuses(c *gin.Context) {
	summary, err := services.NewCertificateStatusService(config.DB, nil).RefreshStatuses(c.Request.Context(), time.Now())
	if err != nil {
		logrus.WithError(err).Error("refresh certificate statuses")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot refresh certificate statuses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

func importErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrImportAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnsupportedFileFormat), errors.Is(err, services.ErrNoSheetsToImport):
		return http.StatusBadRequest
	}
	var pe *services.PersistenceError
	if errors.As(err, &pe) {
		return http.StatusInternalServerError
	}
	return http.StatusUnprocessableEntity
}

func formBool(c *gin.Context, key string, def bool) bool {
	raw := strings.TrimSpace(strings.ToLower(c.PostForm(key)))
	switch raw {
	case "":
		return def
	case "on", "yes", "y":
		return true
	case "off", "no", "n":
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
