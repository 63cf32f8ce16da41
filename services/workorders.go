package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"civicsync/access"
	"civicsync/models"
	"civicsync/notify"
	"civicsync/store"
)

// NewWorkOrder is what an MLA supplies when delegating an issue.
type NewWorkOrder struct {
	IssueID                 string
	MLAID                   string
	Department              models.Department
	Priority                models.Priority
	Instructions            string
	EstimatedCompletionDate *time.Time
}

// TransitionPayload carries the optional fields an official may set while
// moving a work order.
type TransitionPayload struct {
	OfficialNotes           *string    `json:"officialNotes"`
	IssuesFaced             *string    `json:"issuesFaced"`
	ResourcesNeeded         *string    `json:"resourcesNeeded"`
	EstimatedCompletionDate *time.Time `json:"estimatedCompletionDate"`
	RejectionReason         *string    `json:"rejectionReason"`
	ActualCompletionDate    *time.Time `json:"actualCompletionDate"`
}

// WorkOrderEngine runs the work order state machine. Every accepted
// transition bumps the version and appends a history event.
type WorkOrderEngine struct {
	base
}

func NewWorkOrderEngine(o Options) *WorkOrderEngine {
	return &WorkOrderEngine{base: newBase(o)}
}

func validateInstructions(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len([]rune(s)) < models.MinInstructionsLength {
		return "", models.Validationf("instructions must be at least %d characters", models.MinInstructionsLength)
	}
	return s, nil
}

// Create opens a PENDING work order. Authorization is the caller's job.
func (e *WorkOrderEngine) Create(ctx context.Context, in NewWorkOrder) (models.WorkOrder, error) {
	if !in.Department.Valid() {
		return models.WorkOrder{}, models.Validationf("unknown department %q", in.Department)
	}
	if !in.Priority.Valid() {
		return models.WorkOrder{}, models.Validationf("unknown priority %q", in.Priority)
	}
	instructions, err := validateInstructions(in.Instructions)
	if err != nil {
		return models.WorkOrder{}, err
	}
	now := e.now()
	var estimated *time.Time
	if in.EstimatedCompletionDate != nil {
		d := in.EstimatedCompletionDate.UTC().Truncate(time.Millisecond)
		if d.Before(now.Truncate(24 * time.Hour)) {
			return models.WorkOrder{}, models.Validationf("estimated completion date is in the past")
		}
		estimated = &d
	}

	wo := models.WorkOrder{
		ID:                      store.NewID(),
		IssueID:                 in.IssueID,
		MLAID:                   in.MLAID,
		Department:              in.Department,
		Priority:                in.Priority,
		Status:                  models.WorkOrderPending,
		Instructions:            instructions,
		EstimatedCompletionDate: estimated,
		AssignedAt:              now,
		UpdatedAt:               now,
		Version:                 1,
	}
	if err := e.create(ctx, store.WorkOrders, wo.ID, "work order", wo); err != nil {
		return models.WorkOrder{}, err
	}
	e.appendEvent(ctx, wo.ID, "", models.WorkOrderPending, in.MLAID, now)
	e.logger.InfoContext(ctx, "work order created",
		"work_order_id", wo.ID, "issue_id", wo.IssueID, "department", wo.Department)
	return wo, nil
}

// Transition moves a work order along the edge table. expectedVersion must
// equal the stored version; a stale version is a conflict.
func (e *WorkOrderEngine) Transition(ctx context.Context, actor access.Actor, id string, expectedVersion int64, target models.WorkOrderStatus, p TransitionPayload) (models.WorkOrder, error) {
	if expectedVersion < 1 {
		return models.WorkOrder{}, models.Validationf("version is required")
	}
	if !target.Valid() {
		return models.WorkOrder{}, models.Validationf("unknown work order status %q", target)
	}
	wo, err := e.load(ctx, id)
	if err != nil {
		return models.WorkOrder{}, err
	}
	official, err := access.RequireDepartmentOfficial(actor, wo)
	if err != nil {
		return models.WorkOrder{}, err
	}
	if !models.CanTransition(wo.Status, target) {
		return models.WorkOrder{}, models.InvalidTransitionf("work order %s cannot move from %s to %s", id, wo.Status, target)
	}
	if wo.Version != expectedVersion {
		return models.WorkOrder{}, models.Conflictf("work order %s is at version %d, not %d", id, wo.Version, expectedVersion)
	}

	now := e.now()
	from := wo.Status
	patch, err := applyTransition(&wo, target, p, now)
	if err != nil {
		return models.WorkOrder{}, err
	}
	err = e.update(ctx, store.WorkOrders, id, "work order",
		store.Filter{"version": expectedVersion, "status": from}, patch)
	if err != nil {
		return models.WorkOrder{}, err
	}

	e.appendEvent(ctx, id, from, target, official.ID, now)
	e.logger.InfoContext(ctx, "work order transitioned",
		"work_order_id", id, "from", from, "to", target, "version", wo.Version)
	e.notify(ctx, wo.MLAID, notify.Event{
		Type:     notify.WorkOrderStatusChanged,
		Title:    "Work order updated",
		Message:  fmt.Sprintf("%s marked the work order %s", wo.Department, target),
		EntityID: id,
	})
	return wo, nil
}

// applyTransition updates wo in place and returns the matching patch.
func applyTransition(wo *models.WorkOrder, target models.WorkOrderStatus, p TransitionPayload, now time.Time) (store.Patch, error) {
	if target != models.WorkOrderRejected && p.RejectionReason != nil {
		return nil, models.Validationf("rejectionReason only applies when rejecting")
	}
	if target != models.WorkOrderCompleted && p.ActualCompletionDate != nil {
		return nil, models.Validationf("actualCompletionDate only applies when completing")
	}

	patch := store.Patch{}
	switch target {
	case models.WorkOrderAccepted:
		wo.AcceptedAt = &now
		patch["acceptedAt"] = now
	case models.WorkOrderInProgress:
		wo.StartedAt = &now
		patch["startedAt"] = now
	case models.WorkOrderCompleted:
		if p.ActualCompletionDate == nil {
			return nil, models.Validationf("actualCompletionDate is required to complete a work order")
		}
		done := p.ActualCompletionDate.UTC().Truncate(time.Millisecond)
		if done.After(now) {
			return nil, models.Validationf("actualCompletionDate cannot be in the future")
		}
		wo.ActualCompletionDate = &done
		wo.CompletedAt = &now
		patch["actualCompletionDate"] = done
		patch["completedAt"] = now
	case models.WorkOrderRejected:
		reason := ""
		if p.RejectionReason != nil {
			reason = strings.TrimSpace(*p.RejectionReason)
		}
		if reason == "" {
			return nil, models.Validationf("rejectionReason is required to reject a work order")
		}
		wo.RejectionReason = &reason
		wo.RejectedAt = &now
		patch["rejectionReason"] = reason
		patch["rejectedAt"] = now
	}

	setNote := func(field string, dst **string, src *string) {
		if src == nil {
			return
		}
		s := strings.TrimSpace(*src)
		*dst = &s
		patch[field] = s
	}
	setNote("officialNotes", &wo.OfficialNotes, p.OfficialNotes)
	setNote("issuesFaced", &wo.IssuesFaced, p.IssuesFaced)
	setNote("resourcesNeeded", &wo.ResourcesNeeded, p.ResourcesNeeded)
	if p.EstimatedCompletionDate != nil {
		d := p.EstimatedCompletionDate.UTC().Truncate(time.Millisecond)
		wo.EstimatedCompletionDate = &d
		patch["estimatedCompletionDate"] = d
	}

	wo.Status = target
	wo.Version++
	wo.UpdatedAt = now
	patch["status"] = target
	patch["version"] = wo.Version
	patch["updatedAt"] = now
	return patch, nil
}

// UpdateInstructions lets the owning MLA rewrite the instructions of an
// open work order.
func (e *WorkOrderEngine) UpdateInstructions(ctx context.Context, actor access.Actor, id string, expectedVersion int64, instructions string) (models.WorkOrder, error) {
	if expectedVersion < 1 {
		return models.WorkOrder{}, models.Validationf("version is required")
	}
	mla, err := access.RequireMLA(actor)
	if err != nil {
		return models.WorkOrder{}, err
	}
	wo, err := e.load(ctx, id)
	if err != nil {
		return models.WorkOrder{}, err
	}
	if wo.MLAID != mla.ID {
		return models.WorkOrder{}, models.Unauthorizedf("work order %s belongs to another MLA", id)
	}
	if wo.Status.Terminal() {
		return models.WorkOrder{}, models.InvalidTransitionf("work order %s is %s", id, wo.Status)
	}
	if wo.Version != expectedVersion {
		return models.WorkOrder{}, models.Conflictf("work order %s is at version %d, not %d", id, wo.Version, expectedVersion)
	}
	text, err := validateInstructions(instructions)
	if err != nil {
		return models.WorkOrder{}, err
	}

	now := e.now()
	err = e.update(ctx, store.WorkOrders, id, "work order",
		store.Filter{"version": expectedVersion, "status": wo.Status},
		store.Patch{"instructions": text, "version": expectedVersion + 1, "updatedAt": now})
	if err != nil {
		return models.WorkOrder{}, err
	}
	wo.Instructions = text
	wo.Version = expectedVersion + 1
	wo.UpdatedAt = now
	return wo, nil
}

func (e *WorkOrderEngine) Get(ctx context.Context, actor access.Actor, id string) (models.WorkOrder, error) {
	wo, err := e.load(ctx, id)
	if err != nil {
		return models.WorkOrder{}, err
	}
	if err := access.CanReadWorkOrder(actor, wo); err != nil {
		return models.WorkOrder{}, err
	}
	return wo, nil
}

// History returns the transitions of a work order, oldest first.
func (e *WorkOrderEngine) History(ctx context.Context, actor access.Actor, id string) ([]models.WorkOrderEvent, error) {
	if _, err := e.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	var events []models.WorkOrderEvent
	err := e.list(ctx, store.WorkOrderEvents, store.Query{
		Filter: store.Filter{"workOrderId": id},
		SortBy: "at",
	}, &events)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (e *WorkOrderEngine) ListByDepartment(ctx context.Context, department models.Department, page Page) ([]models.WorkOrder, error) {
	if !department.Valid() {
		return nil, models.Validationf("unknown department %q", department)
	}
	return e.listWorkOrders(ctx, store.Filter{"department": department}, page)
}

func (e *WorkOrderEngine) ListByMLA(ctx context.Context, mlaID string, page Page) ([]models.WorkOrder, error) {
	if mlaID == "" {
		return nil, models.Validationf("mla id is required")
	}
	return e.listWorkOrders(ctx, store.Filter{"mlaId": mlaID}, page)
}

func (e *WorkOrderEngine) listWorkOrders(ctx context.Context, filter store.Filter, page Page) ([]models.WorkOrder, error) {
	page = page.normalized()
	var orders []models.WorkOrder
	err := e.list(ctx, store.WorkOrders, store.Query{
		Filter:     filter,
		SortBy:     "assignedAt",
		Descending: true,
		Skip:       page.Skip,
		Limit:      page.Limit,
	}, &orders)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (e *WorkOrderEngine) load(ctx context.Context, id string) (models.WorkOrder, error) {
	var wo models.WorkOrder
	if err := e.get(ctx, store.WorkOrders, id, "work order", &wo); err != nil {
		return models.WorkOrder{}, err
	}
	return wo, nil
}

// appendEvent records a transition. The work order is already committed, so
// a failure here is logged rather than returned.
func (e *WorkOrderEngine) appendEvent(ctx context.Context, woID string, from, to models.WorkOrderStatus, actorID string, at time.Time) {
	ev := models.WorkOrderEvent{
		ID:          store.NewID(),
		WorkOrderID: woID,
		From:        from,
		To:          to,
		ActorID:     actorID,
		At:          at,
	}
	if err := e.store.Create(ctx, store.WorkOrderEvents, ev.ID, ev); err != nil {
		e.logger.ErrorContext(ctx, "work order event not recorded",
			"work_order_id", woID, "to", to, "error", err)
	}
}
