package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// WorkerConfig contains configuration for the maintenance worker.
type WorkerConfig struct {
	// TaskQueue is the name of the task queue to poll.
	TaskQueue string

	// MaxConcurrentActivityExecutionSize is the maximum concurrent activity executions.
	// Default: 4
	MaxConcurrentActivityExecutionSize int

	// MaxConcurrentWorkflowTaskExecutionSize is the maximum concurrent workflow task executions.
	// Default: 4
	MaxConcurrentWorkflowTaskExecutionSize int

	// StopTimeout bounds how long in-flight activities may run after Stop.
	// Default: 30s
	StopTimeout time.Duration
}

const (
	defaultActivityExecutionSize     = 4
	defaultWorkflowTaskExecutionSize = 4
	defaultWorkerStopTimeout         = 30 * time.Second
)

// DefaultWorkerConfig returns a WorkerConfig with default values.
func DefaultWorkerConfig(taskQueue string) WorkerConfig {
	return WorkerConfig{
		TaskQueue:                              taskQueue,
		MaxConcurrentActivityExecutionSize:     defaultActivityExecutionSize,
		MaxConcurrentWorkflowTaskExecutionSize: defaultWorkflowTaskExecutionSize,
		StopTimeout:                            defaultWorkerStopTimeout,
	}
}

// workerOptionsFromConfig builds worker.Options from WorkerConfig, applying defaults
// for any zero-valued fields.
func workerOptionsFromConfig(config WorkerConfig) worker.Options {
	options := worker.Options{
		MaxConcurrentActivityExecutionSize:     config.MaxConcurrentActivityExecutionSize,
		MaxConcurrentWorkflowTaskExecutionSize: config.MaxConcurrentWorkflowTaskExecutionSize,
		WorkerStopTimeout:                      config.StopTimeout,
	}

	if options.MaxConcurrentActivityExecutionSize <= 0 {
		options.MaxConcurrentActivityExecutionSize = defaultActivityExecutionSize
	}
	if options.MaxConcurrentWorkflowTaskExecutionSize <= 0 {
		options.MaxConcurrentWorkflowTaskExecutionSize = defaultWorkflowTaskExecutionSize
	}
	if options.WorkerStopTimeout <= 0 {
		options.WorkerStopTimeout = defaultWorkerStopTimeout
	}

	return options
}

// NewMaintenanceWorker creates a worker that serves the maintenance workflow
// under MaintenanceWorkflowName, plus the given activity structs.
func NewMaintenanceWorker(c client.Client, config WorkerConfig, maintenanceWorkflow interface{}, activities ...interface{}) (worker.Worker, error) {
	if config.TaskQueue == "" {
		return nil, fmt.Errorf("task queue is required")
	}
	if maintenanceWorkflow == nil {
		return nil, fmt.Errorf("maintenance workflow is required")
	}

	w := worker.New(c, config.TaskQueue, workerOptionsFromConfig(config))
	w.RegisterWorkflowWithOptions(maintenanceWorkflow, workflow.RegisterOptions{Name: MaintenanceWorkflowName})
	for _, a := range activities {
		w.RegisterActivity(a)
	}
	return w, nil
}

// RunWorker starts the worker and blocks until the context is cancelled or
// the worker fails.
func RunWorker(ctx context.Context, w worker.Worker) error {
	if err := w.Start(); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}
	<-ctx.Done()
	w.Stop()
	return nil
}
