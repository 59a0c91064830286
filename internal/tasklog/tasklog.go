// Package tasklog implements C4: a structured event log every long-running
// job (connector run, ingestion, report generation, podcast synthesis)
// writes to, mirroring the start/progress/success/failure shape
// original_source's TaskLoggingService exposes to its Python task
// functions, while doubling as a queryable Postgres table the way
// models/execution.go's status-enum rows do.
package tasklog

import (
	"context"
	"log"

	"github.com/surfsense-core/knowledge-core/internal/store"
)

// Logger appends TaskLog entries and mirrors them to stdout, giving
// operators both a queryable audit trail and a tail-able log stream from
// one call site.
type Logger struct {
	repo *store.Repository
}

func New(repo *store.Repository) *Logger {
	return &Logger{repo: repo}
}

// Start records the beginning of a task and returns a handle that
// Progress/Success/Failure are called against, so call sites never
// construct a TaskLogEntry by hand.
func (l *Logger) Start(ctx context.Context, taskName, sourceTag string) *Handle {
	h := &Handle{logger: l, ctx: ctx, taskName: taskName, sourceTag: sourceTag}
	h.write("start", store.TaskLogRunning, nil)
	return h
}

// Handle scopes a sequence of log writes to one task invocation.
type Handle struct {
	logger    *Logger
	ctx       context.Context
	taskName  string
	sourceTag string
}

func (h *Handle) Progress(stage string, metadata map[string]any) {
	h.write(stage, store.TaskLogRunning, metadata)
}

func (h *Handle) Success(stage string, metadata map[string]any) {
	h.write(stage, store.TaskLogSuccess, metadata)
}

func (h *Handle) Failure(stage string, err error, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if err != nil {
		metadata["error"] = err.Error()
	}
	h.write(stage, store.TaskLogFailure, metadata)
}

func (h *Handle) write(stage string, status store.TaskLogStatus, metadata map[string]any) {
	entry := &store.TaskLogEntry{
		TaskName:  h.taskName,
		SourceTag: h.sourceTag,
		Stage:     stage,
		Status:    status,
		Metadata:  metadata,
	}
	if err := h.logger.repo.AppendTaskLog(h.ctx, entry); err != nil {
		log.Printf("tasklog: failed to append entry for task=%s stage=%s: %v", h.taskName, stage, err)
	}
	log.Printf("tasklog: task=%s source=%s stage=%s status=%s", h.taskName, h.sourceTag, stage, status)
}
