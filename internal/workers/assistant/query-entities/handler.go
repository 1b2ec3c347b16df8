package queryentities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
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
	"assistant-workers/internal/kb/schema"
	"assistant-workers/internal/models"
	"assistant-workers/internal/resolve"
)

const (
	TaskType = "assistant-query-entities"
)

// Handler lists the entities of a type, filtered by whatever attribute slots
// the conversation has set.
type Handler struct {
	config *Config
	kb     kb.KnowledgeBase
	mapper *resolve.Mapper
	schema schema.Schema
	logger logger.Logger
}

func NewHandler(config *Config, base kb.KnowledgeBase, mapper *resolve.Mapper, s schema.Schema, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		kb:     base,
		mapper: mapper,
		schema: s,
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

	rawType, ok := slots.String(models.SlotEntityType)
	if !ok {
		output.Rephrase = true
		return output, nil
	}

	entityType, err := h.mapper.EntityType(ctx, rawType)
	if errors.Is(err, kb.ErrNotFound) {
		output.Rephrase = true
		return output, nil
	}
	if err != nil {
		return nil, commonerrors.NewKBQueryFailedError(rawType, err)
	}
	if !h.schema.Has(entityType) {
		return nil, commonerrors.NewSchemaUnknownTypeError(entityType)
	}

	filters := resolve.FiltersFromSlots(h.schema, entityType, slots)

	records, err := h.kb.GetEntities(ctx, entityType, filters, h.config.ListLimit)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, commonerrors.NewKBQueryTimeoutError(entityType)
		}
		return nil, commonerrors.NewKBQueryFailedError(entityType, err)
	}

	if entityType == kb.TypeTransaction {
		accountNumber, _ := slots.String(kb.TypeAccount)
		records = kb.FilterTransactionsByCreator(records, accountNumber, h.config.ListLimit)
	}

	if len(records) == 0 {
		output.Messages = append(output.Messages,
			fmt.Sprintf("I could not find any entities for '%s'.", entityType))
		return output, nil
	}

	representation := h.schema.RepresentationOf(entityType)
	keyAttribute := h.schema.KeyOf(entityType)

	type listing struct {
		label string
		key   string
	}
	items := make([]listing, len(records))
	for i, rec := range records {
		items[i] = listing{
			label: resolve.Render(rec, representation),
			key:   resolve.Render(rec, []string{keyAttribute}),
		}
	}
	// Listed items keep the display order so ordinal mentions line up with
	// what the user saw.
	sort.SliceStable(items, func(i, j int) bool { return items[i].label < items[j].label })

	output.Messages = append(output.Messages,
		fmt.Sprintf("Found the following '%s' entities:", entityType))
	listed := make([]string, len(items))
	for i, item := range items {
		output.Messages = append(output.Messages, fmt.Sprintf("%d: %s", i+1, item.label))
		listed[i] = item.key
	}

	output.Slots.Set(models.SlotEntityType, entityType)
	output.Slots.Set(models.SlotListedItems, listed)
	if len(items) == 1 {
		output.Slots.Set(entityType, items[0].key)
	}
	resolve.ResetAttributeSlots(h.schema, entityType, slots, output.Slots)

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
