package queue

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"hr-compliance-api/services"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	task *asynq.Task
	opts []asynq.Option
	err  error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.task = task
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: ImportQueue}, nil
}

type fakeImporter struct {
	input *services.ImportFileInput
	err   error
}

func (f *fakeImporter) RunFile(_ context.Context, input *services.ImportFileInput) (*services.BatchReport, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &services.BatchReport{BatchID: "batch-1"}, nil
}

func TestEnqueueImportFile(t *testing.T) {
	client := &fakeEnqueuer{}
	id, err := EnqueueImportFile(context.Background(), client, ImportFilePayload{
		Path:     "/tmp/karyawan.xlsx",
		FileName: "karyawan.xlsx",
		Options:  services.ImportOptions{SyncMode: services.SyncModeReplace},
	})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
	require.NotNil(t, client.task)
	assert.Equal(t, ImportFileTask, client.task.Type())
	assert.Len(t, client.opts, 3)

	var payload ImportFilePayload
	require.NoError(t, json.Unmarshal(client.task.Payload(), &payload))
	assert.Equal(t, "karyawan.xlsx", payload.FileName)
	assert.Equal(t, services.SyncModeReplace, payload.Options.SyncMode)

	_, err = EnqueueImportFile(context.Background(), &fakeEnqueuer{err: errors.New("redis down")}, ImportFilePayload{})
	assert.ErrorContains(t, err, "redis down")
}

func TestHandleImportFile(t *testing.T) {
	payload, err := json.Marshal(ImportFilePayload{Path: "/tmp/a.csv", FileName: "a.csv", Kind: "employees"})
	require.NoError(t, err)
	task := asynq.NewTask(ImportFileTask, payload)

	tests := []struct {
		name      string
		task      *asynq.Task
		runErr    error
		wantErr   bool
		skipRetry bool
	}{
		{name: "success", task: task},
		{name: "bad payload", task: asynq.NewTask(ImportFileTask, []byte("{")), wantErr: true, skipRetry: true},
		{name: "lock busy", task: task, runErr: services.ErrImportAlreadyRunning, wantErr: true},
		{name: "database down", task: task, runErr: &services.PersistenceError{BatchID: "b", Err: fmt.Errorf("insert: %w", driver.ErrBadConn)}, wantErr: true},
		{name: "timed out", task: task, runErr: fmt.Errorf("run import: %w", context.DeadlineExceeded), wantErr: true},
		{name: "constraint violation", task: task, runErr: &services.PersistenceError{BatchID: "b", Err: errors.New("UNIQUE constraint failed: employees.nip")}, wantErr: true, skipRetry: true},
		{name: "bad file", task: task, runErr: services.ErrUnsupportedFileFormat, wantErr: true, skipRetry: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			importer := &fakeImporter{err: tt.runErr}
			err := NewProcessor(importer).handleImportFile(context.Background(), tt.task)
			if !tt.wantErr {
				require.NoError(t, err)
				require.NotNil(t, importer.input)
				assert.Equal(t, "queue", importer.input.Options.TriggerSource)
				assert.Equal(t, "employees", importer.input.Kind)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
			if tt.runErr != nil {
				assert.ErrorIs(t, err, tt.runErr)
			}
		})
	}
}
