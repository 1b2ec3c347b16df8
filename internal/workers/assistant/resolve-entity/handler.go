package resolveentity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	commonerrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/common/validation"
	"assistant-workers/internal/kb"
	"assistant-workers/internal/models"
	"assistant-workers/internal/resolve"
)

const (
	TaskType = "assistant-resolve-entity"
)

// Handler pins down which listed entity the user refers to. Unlike the
// query actions it receives the canonical entity type directly (the listing
// action stored it), so no synonym mapping is applied to the type.
type Handler struct {
	config *Config
	mapper *resolve.Mapper
	logger logger.Logger
}

func NewHandler(config *Config, mapper *resolve.Mapper, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		mapper: mapper,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	log := h.logger.WithFields(map[string]interface{}{
		"jobKey":        job.Key,
		"correlationId": uuid.New().String(),
	})
	log.Info("processing job", map[string]interface{}{
		"workflowKey": job.ProcessInstanceKey,
	})

	var slots models.Slots
	if err := json.Unmarshal([]byte(job.Variables), &slots); err != nil {
		h.failJob(client, job, commonerrors.NewParseError(err))
		return
	}
	if result, err := validation.Validate(slots, inputSchema); err == nil && !result.Valid {
		h.failJob(client, job, commonerrors.NewParseError(
			fmt.Errorf("invalid job variables: %s", strings.Join(result.ErrorMessages(), "; "))))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, slots)
	if err != nil {
		h.failJob(client, job, asStandardError(err))
		return
	}

	if output.Rephrase {
		metrics.RephrasePrompts.WithLabelValues(TaskType).Inc()
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, slots models.Slots) (*Output, error) {
	output := &Output{Slots: models.SlotUpdates{}}

	entityType, ok := slots.String(models.SlotEntityType)
	if !ok {
		output.Rephrase = true
		return output, nil
	}

	listed := slots.StringList(models.SlotListedItems)

	// An ordinal mention is authoritative: if it is set and does not land
	// inside the listed items, resolution fails instead of falling back to
	// a directly named entity.
	if mention, set := slots.String(models.SlotMention); set {
		value, err := h.mapper.Mention(ctx, mention, listed)
		if err != nil && !errors.Is(err, kb.ErrNotFound) {
			return nil, commonerrors.NewKBQueryFailedError(entityType, err)
		}
		if err == nil {
			output.Slots.Set(entityType, value)
			output.Slots.Clear(models.SlotMention)
			return output, nil
		}

		output.Rephrase = true
		output.Slots.Clear(entityType)
		output.Slots.Clear(models.SlotMention)
		return output, nil
	}

	// A directly named entity only counts if it is one of the listed items.
	if value, set := slots.String(entityType); set {
		for _, item := range listed {
			if item == value {
				output.Slots.Set(entityType, value)
				output.Slots.Clear(models.SlotMention)
				return output, nil
			}
		}
	}

	output.Rephrase = true
	output.Slots.Clear(entityType)
	output.Slots.Clear(models.SlotMention)
	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, stdErr *commonerrors.StandardError) {
	bpmnErr := commonerrors.ConvertToBPMNError(stdErr)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    bpmnErr.Code,
		"errorMessage": bpmnErr.Message,
		"retries":      bpmnErr.Retries,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func asStandardError(err error) *commonerrors.StandardError {
	var stdErr *commonerrors.StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return commonerrors.NewKBQueryFailedError("unknown", err)
}

func (h *Handler) Execute(ctx context.Context, slots models.Slots) (*Output, error) {
	return h.execute(ctx, slots)
}
