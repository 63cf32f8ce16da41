package services

import (
	"context"
	"errors"
	"strings"

	"civicsync/access"
	"civicsync/models"
	"civicsync/notify"
	"civicsync/store"
	"civicsync/utils"
)

type IssueInput struct {
	Kind        models.IssueKind     `json:"kind" validate:"required"`
	Category    models.IssueCategory `json:"category" validate:"required"`
	Description string               `json:"description" validate:"required,max=2000"`
	State       string               `json:"state" validate:"max=100"`
	District    string               `json:"district" validate:"required,max=100"`
	MediaRef    *string              `json:"mediaRef" validate:"omitempty,url"`
	Geo         *models.GeoPoint     `json:"geo"`
}

// IssueRegistry owns issue creation, likes and reporter-side lifecycle.
type IssueRegistry struct {
	base
}

func NewIssueRegistry(o Options) *IssueRegistry {
	return &IssueRegistry{base: newBase(o)}
}

func (r *IssueRegistry) Submit(ctx context.Context, actor access.Actor, in IssueInput) (models.Issue, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return models.Issue{}, err
	}
	if err := utils.ValidateStruct(in); err != nil {
		return models.Issue{}, err
	}
	if !in.Kind.Valid() {
		return models.Issue{}, models.Validationf("unknown issue kind %q", in.Kind)
	}
	if !in.Kind.AllowsCategory(in.Category) {
		return models.Issue{}, models.Validationf("category %q is not valid for %s issues", in.Category, in.Kind)
	}
	desc := strings.TrimSpace(in.Description)
	if minLen := in.Kind.MinDescription(); len([]rune(desc)) < minLen {
		return models.Issue{}, models.Validationf("description must be at least %d characters for %s issues", minLen, in.Kind)
	}
	if in.Geo != nil {
		if in.Geo.Latitude < -90 || in.Geo.Latitude > 90 || in.Geo.Longitude < -180 || in.Geo.Longitude > 180 {
			return models.Issue{}, models.Validationf("geo coordinates out of range")
		}
	}
	j := models.NewJurisdiction(in.State, in.District)
	if err := j.Validate(); err != nil {
		return models.Issue{}, err
	}

	now := r.now()
	issue := models.Issue{
		ID:           store.NewID(),
		ReporterID:   actor.ActorID(),
		Jurisdiction: j,
		Kind:         in.Kind,
		Category:     in.Category,
		Description:  desc,
		MediaRef:     in.MediaRef,
		Geo:          in.Geo,
		LikedBy:      []string{},
		Likes:        0,
		Status:       models.IssueActive,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.create(ctx, store.Issues, issue.ID, "issue", issue); err != nil {
		return models.Issue{}, err
	}
	r.logger.InfoContext(ctx, "issue submitted",
		"issue_id", issue.ID, "kind", issue.Kind, "district", issue.Jurisdiction.District)
	return issue, nil
}

func (r *IssueRegistry) Get(ctx context.Context, id string) (models.Issue, error) {
	var issue models.Issue
	if err := r.get(ctx, store.Issues, id, "issue", &issue); err != nil {
		return models.Issue{}, err
	}
	return issue, nil
}

// Categories returns the categories an issue of the given kind may take.
func (r *IssueRegistry) Categories(kind models.IssueKind) ([]models.IssueCategory, error) {
	if !kind.Valid() {
		return nil, models.Validationf("unknown issue kind %q", kind)
	}
	return kind.Categories(), nil
}

// ToggleLike adds or removes the actor's like. The like set has its own
// version; a lost race is retried once on a fresh read.
func (r *IssueRegistry) ToggleLike(ctx context.Context, actor access.Actor, id string) (models.Issue, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return models.Issue{}, err
	}
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var issue models.Issue
		issue, err = r.Get(ctx, id)
		if err != nil {
			return models.Issue{}, err
		}
		if issue.LikedBy == nil {
			issue.LikedBy = []string{}
		}
		prev := issue.LikeVersion
		issue.ToggleLike(actor.ActorID())
		issue.LikeVersion++

		err = r.update(ctx, store.Issues, id, "issue",
			store.Filter{"likeVersion": prev},
			store.Patch{
				"likedBy":     issue.LikedBy,
				"likes":       issue.Likes,
				"likeVersion": issue.LikeVersion,
			})
		if err == nil {
			return issue, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return models.Issue{}, err
		}
	}
	return models.Issue{}, err
}

// MarkResolved lets the reporter close their own issue.
func (r *IssueRegistry) MarkResolved(ctx context.Context, actor access.Actor, id string) (models.Issue, error) {
	issue, err := r.Get(ctx, id)
	if err != nil {
		return models.Issue{}, err
	}
	if err := access.RequireReporter(actor, issue); err != nil {
		return models.Issue{}, err
	}
	if issue.Status.Terminal() {
		return models.Issue{}, models.InvalidTransitionf("issue %s is already %s", id, issue.Status)
	}
	if err := r.setStatus(ctx, &issue, models.IssueResolved); err != nil {
		return models.Issue{}, err
	}
	return issue, nil
}

func (r *IssueRegistry) Delete(ctx context.Context, actor access.Actor, id string) error {
	issue, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := access.RequireReporter(actor, issue); err != nil {
		return err
	}
	open, err := r.openForIssue(ctx, id)
	if err != nil {
		return err
	}
	if open {
		return models.Conflictf("issue %s has an open work order", id)
	}
	if err := r.remove(ctx, store.Issues, id, "issue"); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "issue deleted", "issue_id", id, "actor_id", actor.ActorID())
	return nil
}

// ListByJurisdiction returns issues in a district, newest first. An empty
// state on either side matches the district in any state.
func (r *IssueRegistry) ListByJurisdiction(ctx context.Context, state, district string, page Page) ([]models.Issue, error) {
	j := models.NewJurisdiction(state, district)
	if err := j.Validate(); err != nil {
		return nil, err
	}
	filter := store.Filter{"jurisdiction.districtKey": j.DistrictKey}
	if j.StateKey != "" {
		filter["jurisdiction.stateKey"] = store.AnyOf{j.StateKey, ""}
	}
	return r.listIssues(ctx, filter, page)
}

func (r *IssueRegistry) ListByReporter(ctx context.Context, actor access.Actor, page Page) ([]models.Issue, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return r.listIssues(ctx, store.Filter{"reporterId": actor.ActorID()}, page)
}

// ListResponses returns the MLA responses recorded on an issue, newest first.
func (r *IssueRegistry) ListResponses(ctx context.Context, issueID string) ([]models.Response, error) {
	if _, err := r.Get(ctx, issueID); err != nil {
		return nil, err
	}
	var responses []models.Response
	err := r.list(ctx, store.Responses, store.Query{
		Filter:     store.Filter{"issueId": issueID},
		SortBy:     "createdAt",
		Descending: true,
	}, &responses)
	return responses, err
}

func (r *IssueRegistry) listIssues(ctx context.Context, filter store.Filter, page Page) ([]models.Issue, error) {
	page = page.normalized()
	var issues []models.Issue
	err := r.list(ctx, store.Issues, store.Query{
		Filter:     filter,
		SortBy:     "createdAt",
		Descending: true,
		Skip:       page.Skip,
		Limit:      page.Limit,
	}, &issues)
	if err != nil {
		return nil, err
	}
	return issues, nil
}

// setStatus moves issue to status if nobody changed it since it was read and
// tells the reporter.
func (r *IssueRegistry) setStatus(ctx context.Context, issue *models.Issue, status models.IssueStatus) error {
	prev := issue.Version
	now := r.now()
	err := r.update(ctx, store.Issues, issue.ID, "issue",
		store.Filter{"version": prev, "status": issue.Status},
		store.Patch{"status": status, "version": prev + 1, "updatedAt": now})
	if err != nil {
		return err
	}
	from := issue.Status
	issue.Status = status
	issue.Version = prev + 1
	issue.UpdatedAt = now

	r.logger.InfoContext(ctx, "issue status changed",
		"issue_id", issue.ID, "from", from, "to", status)
	r.notify(ctx, issue.ReporterID, notify.Event{
		Type:     notify.IssueStatusChanged,
		Title:    "Issue status updated",
		Message:  "Your issue is now " + string(status),
		EntityID: issue.ID,
	})
	return nil
}
