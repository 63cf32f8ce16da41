package services

import (
	"context"
	"strings"
	"time"

	"civicsync/access"
	"civicsync/models"
	"civicsync/notify"
	"civicsync/store"
	"civicsync/utils"
)

type ResponseInput struct {
	Message          string                `json:"message" validate:"required,max=2000"`
	ActionTaken      string                `json:"actionTaken" validate:"max=2000"`
	ProposedStatus   models.ResponseStatus `json:"proposedStatus" validate:"required"`
	EstimatedDays    *int                  `json:"estimatedDays" validate:"omitempty,gte=0,lte=3650"`
	FollowUpRequired bool                  `json:"followUpRequired"`
	FollowUpNotes    *string               `json:"followUpNotes" validate:"omitempty,max=2000"`
}

type Assignment struct {
	Department              models.Department `json:"department" validate:"required"`
	Priority                models.Priority   `json:"priority" validate:"required"`
	Instructions            string            `json:"instructions" validate:"required"`
	EstimatedCompletionDate *time.Time        `json:"estimatedCompletionDate"`
}

// TriageService is the MLA's view of issues in their jurisdiction.
type TriageService struct {
	base
	issues     *IssueRegistry
	workOrders *WorkOrderEngine
}

func NewTriageService(o Options, issues *IssueRegistry, workOrders *WorkOrderEngine) *TriageService {
	return &TriageService{base: newBase(o), issues: issues, workOrders: workOrders}
}

func (t *TriageService) ListForMLA(ctx context.Context, actor access.Actor, page Page) ([]models.Issue, error) {
	mla, err := access.RequireMLA(actor)
	if err != nil {
		return nil, err
	}
	return t.issues.ListByJurisdiction(ctx, mla.Jurisdiction.State, mla.Jurisdiction.District, page)
}

// Respond records an MLA response. A proposed status moves a non-terminal
// issue to the mapped IssueStatus.
func (t *TriageService) Respond(ctx context.Context, actor access.Actor, issueID string, in ResponseInput) (models.Response, error) {
	issue, err := t.issues.Get(ctx, issueID)
	if err != nil {
		return models.Response{}, err
	}
	mla, err := access.RequireJurisdictionMLA(actor, issue)
	if err != nil {
		return models.Response{}, err
	}
	if err := utils.ValidateStruct(in); err != nil {
		return models.Response{}, err
	}
	target, ok := models.IssueStatusFor(in.ProposedStatus)
	if !ok {
		return models.Response{}, models.Validationf("unknown response status %q", in.ProposedStatus)
	}
	var notes *string
	if in.FollowUpNotes != nil {
		n := strings.TrimSpace(*in.FollowUpNotes)
		notes = &n
	}
	if in.FollowUpRequired && (notes == nil || *notes == "") {
		return models.Response{}, models.Validationf("followUpNotes are required when a follow-up is required")
	}

	resp := models.Response{
		ID:               store.NewID(),
		IssueID:          issue.ID,
		AuthorID:         mla.ID,
		Message:          strings.TrimSpace(in.Message),
		ActionTaken:      strings.TrimSpace(in.ActionTaken),
		ProposedStatus:   in.ProposedStatus,
		EstimatedDays:    in.EstimatedDays,
		FollowUpRequired: in.FollowUpRequired,
		FollowUpNotes:    notes,
		CreatedAt:        t.now(),
	}
	// A response is stored only once its status write has landed.
	if !issue.Status.Terminal() && issue.Status != target {
		if err := t.issues.setStatus(ctx, &issue, target); err != nil {
			return models.Response{}, err
		}
	}
	if err := t.create(ctx, store.Responses, resp.ID, "response", resp); err != nil {
		return models.Response{}, err
	}
	t.notify(ctx, issue.ReporterID, notify.Event{
		Type:     notify.IssueResponded,
		Title:    "Your representative responded",
		Message:  resp.Message,
		EntityID: issue.ID,
	})
	return resp, nil
}

// Delegate turns an issue into a work order for a department. An issue has
// at most one open work order.
func (t *TriageService) Delegate(ctx context.Context, actor access.Actor, issueID string, in Assignment) (models.WorkOrder, error) {
	issue, err := t.issues.Get(ctx, issueID)
	if err != nil {
		return models.WorkOrder{}, err
	}
	mla, err := access.RequireJurisdictionMLA(actor, issue)
	if err != nil {
		return models.WorkOrder{}, err
	}
	if err := utils.ValidateStruct(in); err != nil {
		return models.WorkOrder{}, err
	}
	if issue.Status.Terminal() {
		return models.WorkOrder{}, models.InvalidTransitionf("issue %s is %s and cannot be delegated", issueID, issue.Status)
	}
	open, err := t.openForIssue(ctx, issueID)
	if err != nil {
		return models.WorkOrder{}, err
	}
	if open {
		return models.WorkOrder{}, models.Conflictf("issue %s already has an open work order", issueID)
	}

	wo, err := t.workOrders.Create(ctx, NewWorkOrder{
		IssueID:                 issueID,
		MLAID:                   mla.ID,
		Department:              in.Department,
		Priority:                in.Priority,
		Instructions:            in.Instructions,
		EstimatedCompletionDate: in.EstimatedCompletionDate,
	})
	if err != nil {
		return models.WorkOrder{}, err
	}
	t.notify(ctx, issue.ReporterID, notify.Event{
		Type:     notify.IssueDelegated,
		Title:    "Issue forwarded",
		Message:  "Your issue was assigned to " + string(wo.Department),
		EntityID: issue.ID,
	})

	if issue.Status == models.IssueActive {
		// The work order is committed; a lost race on the issue status is
		// reported in the log and the next reader sees the newer status.
		if err := t.issues.setStatus(ctx, &issue, models.IssueInProgress); err != nil {
			t.logger.WarnContext(ctx, "issue status not advanced after delegation",
				"issue_id", issueID, "work_order_id", wo.ID, "error", err)
		}
	}
	return wo, nil
}
