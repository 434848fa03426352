package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hr-compliance-api/services"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	// ImportFileTask is enqueued for uploads submitted with async=true.
	ImportFileTask = "import:file"
	// ImportQueue is served with concurrency 1 so imports never overlap.
	ImportQueue = "imports"
)

// ImportFilePayload points the worker at an upload already saved to disk.
type ImportFilePayload struct {
	Path     string                 `json:"path"`
	FileName string                 `json:"file_name"`
	Kind     string                 `json:"kind,omitempty"`
	Options  services.ImportOptions `json:"options"`
}

// Enqueuer is the part of *asynq.Client the HTTP layer needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueImportFile schedules an import and returns the task id.
func EnqueueImportFile(ctx context.Context, client Enqueuer, payload ImportFilePayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ImportFileTask, data)
	info, err := client.EnqueueContext(ctx, task,
		asynq.Queue(ImportQueue),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue import task: %w", err)
	}
	return info.ID, nil
}

// FileImporter runs one import; *services.ImportJobService satisfies it.
type FileImporter interface {
	RunFile(ctx context.Context, input *services.ImportFileInput) (*services.BatchReport, error)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	importer FileImporter
}

func NewProcessor(importer FileImporter) *Processor {
	return &Processor{importer: importer}
}

func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(ImportFileTask, p.handleImportFile)
	return mux
}

func (p *Processor) handleImportFile(ctx context.Context, task *asynq.Task) error {
	var payload ImportFilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.Options.TriggerSource == "" {
		payload.Options.TriggerSource = "queue"
	}
	log := logrus.WithFields(logrus.Fields{"task": ImportFileTask, "file": payload.FileName})

	report, err := p.importer.RunFile(ctx, &services.ImportFileInput{
		Path:     payload.Path,
		FileName: payload.FileName,
		Kind:     payload.Kind,
		Options:  payload.Options,
	})
	switch {
	case err == nil:
		log.WithField("batch_id", report.BatchID).Info("queued import finished")
		return nil
	case errors.Is(err, services.ErrImportAlreadyRunning):
		// Retried by asynq once the running import releases the lock.
		log.Info("import lock busy, retrying later")
		return err
	case retryable(err):
		log.WithError(err).Warn("queued import failed, will retry")
		return err
	default:
		log.WithError(err).Error("queued import failed")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
}

// retryable reports connectivity failures. Bad files, rejected options and
// constraint violations fail the same way on every attempt.
func retryable(err error) bool {
	return services.IsConnectivityError(err)
}
