package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("approve: %w", Conflictf("application %s already %s", "a1", ApplicationApproved))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("errors.Is(%v, ErrConflict) = false", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Errorf("conflict matched ErrValidation")
	}
	if KindOf(err) != KindConflict {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	if ReasonOf(err) != "application a1 already APPROVED" {
		t.Errorf("ReasonOf = %q", ReasonOf(err))
	}
	if KindOf(errors.New("boom")) != KindUpstream {
		t.Errorf("plain error should classify as upstream")
	}

	cause := errors.New("connection refused")
	up := Upstream("load issue", cause)
	if !errors.Is(up, cause) || !errors.Is(up, ErrUpstream) {
		t.Errorf("upstream error lost its cause or kind: %v", up)
	}
}

func TestJurisdictionMatching(t *testing.T) {
	a := NewJurisdiction("Telangana", "Warangal")
	b := NewJurisdiction("  telangana ", "WARANGAL")
	if !a.Matches(b) {
		t.Errorf("%v should match %v", a, b)
	}
	if a.DistrictKey != "warangal" || a.StateKey != "telangana" {
		t.Errorf("keys = %q/%q", a.StateKey, a.DistrictKey)
	}
	if !a.Matches(NewJurisdiction("", "warangal")) {
		t.Errorf("empty state should match any state")
	}
	if a.Matches(NewJurisdiction("Andhra Pradesh", "Warangal")) {
		t.Errorf("different state matched")
	}
	if NewJurisdiction("", "  ").Validate() == nil {
		t.Errorf("blank district validated")
	}
}

func TestToggleLikeKeepsCount(t *testing.T) {
	issue := Issue{LikedBy: []string{}}
	actors := []string{"a", "b", "a", "c", "b", "a", "a"}
	for _, actor := range actors {
		issue.ToggleLike(actor)
		if issue.Likes != len(issue.LikedBy) {
			t.Fatalf("likes %d != |likedBy| %d", issue.Likes, len(issue.LikedBy))
		}
	}
	// a toggled four times (net unliked), b twice (unliked), c once.
	if issue.Likes != 1 || !issue.LikedByActor("c") {
		t.Errorf("likedBy = %v", issue.LikedBy)
	}

	if !issue.ToggleLike("z") || issue.ToggleLike("z") {
		t.Errorf("like then like should be like then unlike")
	}
}

func TestWorkOrderEdges(t *testing.T) {
	all := []WorkOrderStatus{WorkOrderPending, WorkOrderAccepted, WorkOrderInProgress, WorkOrderCompleted, WorkOrderRejected}
	allowed := map[[2]WorkOrderStatus]bool{
		{WorkOrderPending, WorkOrderAccepted}:     true,
		{WorkOrderPending, WorkOrderRejected}:     true,
		{WorkOrderAccepted, WorkOrderInProgress}:  true,
		{WorkOrderInProgress, WorkOrderCompleted}: true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]WorkOrderStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
		if from.Terminal() && len(NextStatuses(from)) != 0 {
			t.Errorf("terminal %s has outgoing edges", from)
		}
	}
}

func TestResponseStatusMapping(t *testing.T) {
	tests := map[ResponseStatus]IssueStatus{
		ResponseAcknowledged: IssueActive,
		ResponseActive:       IssueActive,
		ResponseInProgress:   IssueInProgress,
		ResponseResolved:     IssueResolved,
		ResponseRejected:     IssueRejected,
	}
	for in, want := range tests {
		got, ok := IssueStatusFor(in)
		if !ok || got != want {
			t.Errorf("IssueStatusFor(%s) = %s, %v", in, got, ok)
		}
	}
	if _, ok := IssueStatusFor("Pending"); ok {
		t.Errorf("free-form status accepted")
	}
}

func TestKindCategories(t *testing.T) {
	if !KindRoad.AllowsCategory(CategoryPothole) || KindRoad.AllowsCategory(CategoryMedical) {
		t.Errorf("road categories wrong")
	}
	if !KindHelp.AllowsCategory(CategoryMedical) || KindHelp.AllowsCategory(CategoryPothole) {
		t.Errorf("help categories wrong")
	}
	if IssueKind("FIRE").Valid() {
		t.Errorf("unknown kind valid")
	}
}
