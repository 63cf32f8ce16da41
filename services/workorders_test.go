package services

import (
	"testing"
	"time"

	"civicsync/access"
	"civicsync/models"
)

func TestRejectRequiresReasonThenIsTerminal(t *testing.T) {
	f := newFixture(t)
	wo := f.delegate(t, f.submitRoadIssue(t).ID)

	_, err := f.workOrders.Transition(f.ctx, roads, wo.ID, wo.Version, models.WorkOrderRejected, TransitionPayload{})
	assertKind(t, err, models.ErrValidation)
	blank := "   "
	_, err = f.workOrders.Transition(f.ctx, roads, wo.ID, wo.Version, models.WorkOrderRejected, TransitionPayload{RejectionReason: &blank})
	assertKind(t, err, models.ErrValidation)

	reason := "no budget"
	rejected, err := f.workOrders.Transition(f.ctx, roads, wo.ID, wo.Version, models.WorkOrderRejected, TransitionPayload{RejectionReason: &reason})
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != models.WorkOrderRejected || rejected.RejectedAt == nil || *rejected.RejectionReason != reason {
		t.Fatalf("rejected = %+v", rejected)
	}
	if rejected.Version != wo.Version+1 {
		t.Errorf("version = %d, want %d", rejected.Version, wo.Version+1)
	}

	for _, target := range []models.WorkOrderStatus{models.WorkOrderAccepted, models.WorkOrderInProgress, models.WorkOrderCompleted, models.WorkOrderPending} {
		_, err := f.workOrders.Transition(f.ctx, roads, wo.ID, rejected.Version, target, TransitionPayload{})
		assertKind(t, err, models.ErrInvalidTransition)
	}
	stored, err := f.workOrders.Get(f.ctx, roads, wo.ID)
	if err != nil || stored.Status != models.WorkOrderRejected || stored.Version != rejected.Version {
		t.Errorf("stored = %+v, %v", stored, err)
	}
}

func TestWorkOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	wo := f.delegate(t, f.submitRoadIssue(t).ID)
	notes := " crew of four "

	accepted, err := f.workOrders.Transition(f.ctx, roads, wo.ID, 1, models.WorkOrderAccepted, TransitionPayload{OfficialNotes: &notes})
	if err != nil {
		t.Fatal(err)
	}
	if accepted.AcceptedAt == nil || accepted.OfficialNotes == nil || *accepted.OfficialNotes != "crew of four" {
		t.Fatalf("accepted = %+v", accepted)
	}

	_, err = f.workOrders.Transition(f.ctx, roads, wo.ID, accepted.Version, models.WorkOrderCompleted, TransitionPayload{ActualCompletionDate: ptr(start)})
	assertKind(t, err, models.ErrInvalidTransition)

	started, err := f.workOrders.Transition(f.ctx, roads, wo.ID, accepted.Version, models.WorkOrderInProgress, TransitionPayload{})
	if err != nil || started.StartedAt == nil {
		t.Fatalf("start = %+v, %v", started, err)
	}

	_, err = f.workOrders.Transition(f.ctx, roads, wo.ID, started.Version, models.WorkOrderCompleted, TransitionPayload{})
	assertKind(t, err, models.ErrValidation)
	future := start.Add(240 * time.Hour)
	_, err = f.workOrders.Transition(f.ctx, roads, wo.ID, started.Version, models.WorkOrderCompleted, TransitionPayload{ActualCompletionDate: &future})
	assertKind(t, err, models.ErrValidation)

	done, err := f.workOrders.Transition(f.ctx, roads, wo.ID, started.Version, models.WorkOrderCompleted, TransitionPayload{ActualCompletionDate: ptr(start)})
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != models.WorkOrderCompleted || done.CompletedAt == nil || !done.ActualCompletionDate.Equal(start) {
		t.Fatalf("completed = %+v", done)
	}
	if done.Version != 4 || done.AcceptedAt == nil || done.StartedAt == nil {
		t.Errorf("completed carries version %d accepted %v started %v", done.Version, done.AcceptedAt, done.StartedAt)
	}

	history, err := f.workOrders.History(f.ctx, warangal, wo.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.WorkOrderStatus{models.WorkOrderPending, models.WorkOrderAccepted, models.WorkOrderInProgress, models.WorkOrderCompleted}
	if len(history) != len(want) {
		t.Fatalf("history = %+v", history)
	}
	for i, ev := range history {
		if ev.To != want[i] {
			t.Errorf("history[%d].To = %s, want %s", i, ev.To, want[i])
		}
		if i > 0 && (ev.From != want[i-1] || ev.ActorID != roads.ID) {
			t.Errorf("history[%d] = %+v", i, ev)
		}
	}
}

func TestTransitionVersionAndAuthorization(t *testing.T) {
	f := newFixture(t)
	wo := f.delegate(t, f.submitRoadIssue(t).ID)

	_, err := f.workOrders.Transition(f.ctx, roads, wo.ID, 0, models.WorkOrderAccepted, TransitionPayload{})
	assertKind(t, err, models.ErrValidation)
	_, err = f.workOrders.Transition(f.ctx, roads, wo.ID, 1, "DONE", TransitionPayload{})
	assertKind(t, err, models.ErrValidation)
	_, err = f.workOrders.Transition(f.ctx, water, wo.ID, 1, models.WorkOrderAccepted, TransitionPayload{})
	assertKind(t, err, models.ErrAuthorization)
	_, err = f.workOrders.Transition(f.ctx, warangal, wo.ID, 1, models.WorkOrderAccepted, TransitionPayload{})
	assertKind(t, err, models.ErrAuthorization)
	_, err = f.workOrders.Transition(f.ctx, roads, "missing", 1, models.WorkOrderAccepted, TransitionPayload{})
	assertKind(t, err, models.ErrNotFound)
	reason := "not ours"
	_, err = f.workOrders.Transition(f.ctx, roads, wo.ID, 1, models.WorkOrderAccepted, TransitionPayload{RejectionReason: &reason})
	assertKind(t, err, models.ErrValidation)

	if _, err := f.workOrders.Transition(f.ctx, roads, wo.ID, 1, models.WorkOrderAccepted, TransitionPayload{}); err != nil {
		t.Fatal(err)
	}
	// A second official acting on the version they read loses the race.
	_, err = f.workOrders.Transition(f.ctx, roads, wo.ID, 1, models.WorkOrderInProgress, TransitionPayload{})
	assertKind(t, err, models.ErrConflict)
}

func TestConcurrentTransitionsOneWins(t *testing.T) {
	f := newFixture(t)
	wo := f.delegate(t, f.submitRoadIssue(t).ID)
	reason := "duplicate request"

	results := make(chan error, 2)
	go func() {
		_, err := f.workOrders.Transition(f.ctx, roads, wo.ID, 1, models.WorkOrderAccepted, TransitionPayload{})
		results <- err
	}()
	go func() {
		_, err := f.workOrders.Transition(f.ctx, roads, wo.ID, 1, models.WorkOrderRejected, TransitionPayload{RejectionReason: &reason})
		results <- err
	}()

	var ok, conflicts int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			ok++
		case models.KindOf(err) == models.KindConflict, models.KindOf(err) == models.KindInvalidTransition:
			conflicts++
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("ok = %d, conflicts = %d", ok, conflicts)
	}
	stored, err := f.workOrders.Get(f.ctx, roads, wo.ID)
	if err != nil || stored.Version != 2 {
		t.Errorf("stored = %+v, %v", stored, err)
	}
}

func TestWorkOrderReads(t *testing.T) {
	f := newFixture(t)
	wo := f.delegate(t, f.submitRoadIssue(t).ID)

	readers := []access.Actor{warangal, roads, admin}
	for _, a := range readers {
		if _, err := f.workOrders.Get(f.ctx, a, wo.ID); err != nil {
			t.Errorf("Get as %T: %v", a, err)
		}
	}
	for _, a := range []access.Actor{karimnagar, water, citizen} {
		_, err := f.workOrders.Get(f.ctx, a, wo.ID)
		assertKind(t, err, models.ErrAuthorization)
	}
	_, err := f.workOrders.History(f.ctx, water, wo.ID)
	assertKind(t, err, models.ErrAuthorization)

	byDept, err := f.workOrders.ListByDepartment(f.ctx, models.DeptRoads, Page{})
	if err != nil || len(byDept) != 1 {
		t.Errorf("ListByDepartment = %d, %v", len(byDept), err)
	}
	other, err := f.workOrders.ListByDepartment(f.ctx, models.DeptWaterSupply, Page{})
	if err != nil || len(other) != 0 {
		t.Errorf("other department = %d, %v", len(other), err)
	}
	_, err = f.workOrders.ListByDepartment(f.ctx, "PARKS", Page{})
	assertKind(t, err, models.ErrValidation)

	byMLA, err := f.workOrders.ListByMLA(f.ctx, warangal.ID, Page{})
	if err != nil || len(byMLA) != 1 || byMLA[0].ID != wo.ID {
		t.Errorf("ListByMLA = %+v, %v", byMLA, err)
	}
}

func TestUpdateInstructions(t *testing.T) {
	f := newFixture(t)
	wo := f.delegate(t, f.submitRoadIssue(t).ID)
	text := "Resurface the full stretch up to the market"

	_, err := f.workOrders.UpdateInstructions(f.ctx, karimnagar, wo.ID, 1, text)
	assertKind(t, err, models.ErrAuthorization)
	_, err = f.workOrders.UpdateInstructions(f.ctx, roads, wo.ID, 1, text)
	assertKind(t, err, models.ErrAuthorization)
	_, err = f.workOrders.UpdateInstructions(f.ctx, warangal, wo.ID, 1, "too short")
	assertKind(t, err, models.ErrValidation)

	updated, err := f.workOrders.UpdateInstructions(f.ctx, warangal, wo.ID, 1, text)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Instructions != text || updated.Version != 2 {
		t.Fatalf("updated = %+v", updated)
	}
	_, err = f.workOrders.UpdateInstructions(f.ctx, warangal, wo.ID, 1, text)
	assertKind(t, err, models.ErrConflict)

	reason := "out of scope"
	if _, err := f.workOrders.Transition(f.ctx, roads, wo.ID, 2, models.WorkOrderRejected, TransitionPayload{RejectionReason: &reason}); err != nil {
		t.Fatal(err)
	}
	_, err = f.workOrders.UpdateInstructions(f.ctx, warangal, wo.ID, 3, text)
	assertKind(t, err, models.ErrInvalidTransition)
}
