package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"civicsync/access"
	"civicsync/identity/mock_identity"
	"civicsync/models"
	"civicsync/notify"
	"civicsync/notify/mock_notify"
	"civicsync/store"
)

func mlaApplication() ApplicationInput {
	return ApplicationInput{
		ApplicantEmail:     "Ravi.Kumar@Example.org",
		DisplayName:        "Ravi Kumar",
		OfficialType:       models.OfficialTypeMLA,
		State:              "Telangana",
		District:           "Warangal",
		CredentialMaterial: []string{"https://files.example.org/docs/id-card.pdf"},
	}
}

func TestApproveTwiceCreatesOneAccount(t *testing.T) {
	f := newFixture(t)
	app, err := f.apps.Submit(f.ctx, mlaApplication())
	if err != nil {
		t.Fatal(err)
	}
	if app.VerificationStatus != models.ApplicationPending || app.Version != 1 || app.LinkedUserID != nil {
		t.Fatalf("submitted = %+v", app)
	}
	if app.ApplicantEmail != "ravi.kumar@example.org" {
		t.Errorf("email = %q", app.ApplicantEmail)
	}

	approval, err := f.apps.Approve(f.ctx, admin, app.ID, app.Version)
	if err != nil {
		t.Fatal(err)
	}
	if approval.Account.Role != models.RoleMLA || approval.ActivationToken == "" {
		t.Fatalf("approval = %+v", approval)
	}
	got := approval.Application
	if got.VerificationStatus != models.ApplicationApproved || got.LinkedUserID == nil || *got.LinkedUserID != approval.Account.ID {
		t.Fatalf("approved application = %+v", got)
	}
	if got.ReviewedAt == nil || got.ReviewerID == nil || *got.ReviewerID != admin.ID {
		t.Errorf("review fields = %+v", got)
	}

	_, err = f.apps.Approve(f.ctx, admin, app.ID, got.Version)
	assertKind(t, err, models.ErrConflict)
	_, err = f.apps.Approve(f.ctx, admin, app.ID, app.Version)
	assertKind(t, err, models.ErrConflict)
	_, err = f.apps.Reject(f.ctx, admin, app.ID, got.Version, "late")
	assertKind(t, err, models.ErrConflict)

	if n := count(t, f.store, store.Accounts, nil); n != 1 {
		t.Fatalf("%d accounts, want 1", n)
	}
	acc, err := f.accounts.Get(f.ctx, approval.Account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if acc.ApplicationID != app.ID || acc.Jurisdiction == nil || acc.Jurisdiction.DistrictKey != "warangal" {
		t.Errorf("account = %+v", acc)
	}
	stored, err := f.apps.Get(f.ctx, admin, app.ID)
	if err != nil || stored.LinkedUserID == nil || *stored.LinkedUserID != acc.ID {
		t.Errorf("stored application = %+v, %v", stored, err)
	}
}

func TestApprovedApplicantActivatesAndActs(t *testing.T) {
	f := newFixture(t)
	in := mlaApplication()
	in.OfficialType = models.OfficialTypeDepartment
	in.Department = ptr(models.DeptRoads)
	app, err := f.apps.Submit(f.ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	approval, err := f.apps.Approve(f.ctx, admin, app.ID, 1)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.accounts.Login(f.ctx, LoginInput{Email: in.ApplicantEmail, Password: approval.ActivationToken})
	assertKind(t, err, models.ErrAuthorization)

	activated, err := f.accounts.Activate(f.ctx, ActivateInput{
		Email: in.ApplicantEmail, Token: approval.ActivationToken, Password: "road-works-2026",
	})
	if err != nil {
		t.Fatal(err)
	}
	if activated.ID != approval.Account.ID {
		t.Fatalf("activated %s, want %s", activated.ID, approval.Account.ID)
	}
	_, err = f.accounts.Activate(f.ctx, ActivateInput{
		Email: in.ApplicantEmail, Token: approval.ActivationToken, Password: "another-pass",
	})
	assertKind(t, err, models.ErrConflict)

	actor, err := f.accounts.Actor(f.ctx, activated.ID)
	if err != nil {
		t.Fatal(err)
	}
	official, ok := actor.(access.Official)
	if !ok || official.Department != models.DeptRoads {
		t.Fatalf("actor = %#v", actor)
	}
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	app, err := f.apps.Submit(f.ctx, mlaApplication())
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.apps.Reject(f.ctx, warangal, app.ID, 1, "no")
	assertKind(t, err, models.ErrAuthorization)
	_, err = f.apps.Reject(f.ctx, admin, app.ID, 0, "no")
	assertKind(t, err, models.ErrValidation)

	rejected, err := f.apps.Reject(f.ctx, admin, app.ID, 1, " documents unreadable ")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.VerificationStatus != models.ApplicationRejected || rejected.LinkedUserID != nil {
		t.Fatalf("rejected = %+v", rejected)
	}
	if rejected.ReviewNotes == nil || *rejected.ReviewNotes != "documents unreadable" || rejected.ReviewedAt == nil {
		t.Errorf("review = %+v", rejected)
	}
	_, err = f.apps.Approve(f.ctx, admin, app.ID, rejected.Version)
	assertKind(t, err, models.ErrConflict)
	if n := count(t, f.store, store.Accounts, nil); n != 0 {
		t.Errorf("%d accounts after rejection", n)
	}

	// A rejected applicant may apply again.
	if _, err := f.apps.Submit(f.ctx, mlaApplication()); err != nil {
		t.Errorf("resubmit after rejection: %v", err)
	}
}

func TestApproveAuthorizationAndVersion(t *testing.T) {
	f := newFixture(t)
	app, err := f.apps.Submit(f.ctx, mlaApplication())
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.apps.Approve(f.ctx, warangal, app.ID, 1)
	assertKind(t, err, models.ErrAuthorization)
	_, err = f.apps.Approve(f.ctx, admin, app.ID, 0)
	assertKind(t, err, models.ErrValidation)
	_, err = f.apps.Approve(f.ctx, admin, app.ID, 5)
	assertKind(t, err, models.ErrConflict)
	_, err = f.apps.Approve(f.ctx, admin, "missing", 1)
	assertKind(t, err, models.ErrNotFound)
	if n := count(t, f.store, store.Identities, nil); n != 0 {
		t.Errorf("%d identities after refused approvals", n)
	}
}

func TestSubmitApplicationValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(*ApplicationInput){
		"bad email":             func(in *ApplicationInput) { in.ApplicantEmail = "not-an-email" },
		"missing name":          func(in *ApplicationInput) { in.DisplayName = "" },
		"unknown type":          func(in *ApplicationInput) { in.OfficialType = "MAYOR" },
		"missing district":      func(in *ApplicationInput) { in.District = "" },
		"missing state":         func(in *ApplicationInput) { in.State = "" },
		"blank state":           func(in *ApplicationInput) { in.State = "   " },
		"official without dept": func(in *ApplicationInput) { in.OfficialType = models.OfficialTypeDepartment },
		"mla with dept":         func(in *ApplicationInput) { in.Department = ptr(models.DeptRoads) },
		"bad document url":      func(in *ApplicationInput) { in.CredentialMaterial = []string{"scan.pdf"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := mlaApplication()
			mutate(&in)
			_, err := f.apps.Submit(f.ctx, in)
			assertKind(t, err, models.ErrValidation)
		})
	}
}

func TestSubmitApplicationConflicts(t *testing.T) {
	f := newFixture(t)
	if _, err := f.apps.Submit(f.ctx, mlaApplication()); err != nil {
		t.Fatal(err)
	}
	dup := mlaApplication()
	dup.ApplicantEmail = "ravi.kumar@example.org"
	_, err := f.apps.Submit(f.ctx, dup)
	assertKind(t, err, models.ErrConflict)

	if _, err := f.accounts.RegisterCitizen(f.ctx, RegisterInput{
		Email: "asha@example.org", Password: "long enough", DisplayName: "Asha",
	}); err != nil {
		t.Fatal(err)
	}
	taken := mlaApplication()
	taken.ApplicantEmail = "asha@example.org"
	_, err = f.apps.Submit(f.ctx, taken)
	assertKind(t, err, models.ErrConflict)
}

func TestApproveRollsBackWhenApplicationUpdateFails(t *testing.T) {
	fs := &faultyStore{Store: store.NewMemoryStore()}
	f := newFixture(t, withStore(fs))
	app, err := f.apps.Submit(f.ctx, mlaApplication())
	if err != nil {
		t.Fatal(err)
	}

	fs.failUpdates = map[string]error{store.Applications: errUnavailable}
	_, err = f.apps.Approve(f.ctx, admin, app.ID, 1)
	assertKind(t, err, models.ErrUpstream)

	if n := count(t, fs, store.Accounts, nil); n != 0 {
		t.Errorf("%d accounts left after rollback", n)
	}
	if n := count(t, fs, store.Identities, nil); n != 0 {
		t.Errorf("%d identities left after rollback", n)
	}
	stored, err := f.apps.Get(f.ctx, admin, app.ID)
	if err != nil || stored.VerificationStatus != models.ApplicationPending || stored.Version != 1 {
		t.Fatalf("stored = %+v, %v", stored, err)
	}

	fs.failUpdates = nil
	approval, err := f.apps.Approve(f.ctx, admin, app.ID, 1)
	if err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
	if n := count(t, fs, store.Accounts, nil); n != 1 || approval.Account.ID == "" {
		t.Errorf("%d accounts after retry", n)
	}
}

func TestApproveRollsBackIdentityWhenAccountCreateFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	ids := mock_identity.NewMockProvider(ctrl)
	fs := &faultyStore{Store: store.NewMemoryStore()}
	f := newFixture(t, withStore(fs), withIdentities(ids))
	app, err := f.apps.Submit(f.ctx, mlaApplication())
	if err != nil {
		t.Fatal(err)
	}

	ids.EXPECT().CreatePendingIdentity(gomock.Any(), app.ApplicantEmail, app.DisplayName).Return("ident-1", "token-1", nil)
	ids.EXPECT().DeleteIdentity(gomock.Any(), "ident-1").Return(nil)
	fs.failCreates = map[string]error{store.Accounts: errUnavailable}

	_, err = f.apps.Approve(f.ctx, admin, app.ID, 1)
	assertKind(t, err, models.ErrUpstream)
	stored, _ := f.apps.Get(f.ctx, admin, app.ID)
	if stored.VerificationStatus != models.ApplicationPending {
		t.Errorf("status = %s", stored.VerificationStatus)
	}
}

func TestApproveReportsIncompleteRollback(t *testing.T) {
	ctrl := gomock.NewController(t)
	ids := mock_identity.NewMockProvider(ctrl)
	fs := &faultyStore{Store: store.NewMemoryStore()}
	f := newFixture(t, withStore(fs), withIdentities(ids))
	app, err := f.apps.Submit(f.ctx, mlaApplication())
	if err != nil {
		t.Fatal(err)
	}

	idpDown := errors.New("identity provider unreachable")
	ids.EXPECT().CreatePendingIdentity(gomock.Any(), gomock.Any(), gomock.Any()).Return("ident-1", "token-1", nil)
	ids.EXPECT().DeleteIdentity(gomock.Any(), "ident-1").Return(idpDown)
	fs.failUpdates = map[string]error{store.Applications: errUnavailable}

	_, err = f.apps.Approve(f.ctx, admin, app.ID, 1)
	assertKind(t, err, models.ErrUpstream)
	if !errors.Is(err, errUnavailable) || !errors.Is(err, idpDown) {
		t.Errorf("err = %v, want both the cause and the rollback failure", err)
	}
	if !strings.Contains(models.ReasonOf(err), "update application") {
		t.Errorf("reason = %q", models.ReasonOf(err))
	}
	if n := count(t, fs, store.Accounts, nil); n != 0 {
		t.Errorf("%d accounts left after rollback", n)
	}
}

func TestApproveIdentityFailureCreatesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	ids := mock_identity.NewMockProvider(ctrl)
	f := newFixture(t, withIdentities(ids))
	app, err := f.apps.Submit(f.ctx, mlaApplication())
	if err != nil {
		t.Fatal(err)
	}

	ids.EXPECT().CreatePendingIdentity(gomock.Any(), gomock.Any(), gomock.Any()).Return("", "", errors.New("timeout"))
	_, err = f.apps.Approve(f.ctx, admin, app.ID, 1)
	assertKind(t, err, models.ErrUpstream)
	if n := count(t, f.store, store.Accounts, nil); n != 0 {
		t.Errorf("%d accounts after identity failure", n)
	}
}

func TestApproveNotifiesAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mock_notify.NewMockSink(ctrl)
	f := newFixture(t, withSink(sink))
	app, err := f.apps.Submit(f.ctx, mlaApplication())
	if err != nil {
		t.Fatal(err)
	}

	var notified string
	sink.EXPECT().Publish(gomock.Any(), gomock.Any(), eventOf(notify.ApplicationApproved, app.ID)).
		DoAndReturn(func(_ context.Context, userID string, _ notify.Event) error {
			notified = userID
			return errors.New("broker down")
		})

	approval, err := f.apps.Approve(f.ctx, admin, app.ID, 1)
	if err != nil {
		t.Fatalf("delivery failure must not fail approval: %v", err)
	}
	if notified != approval.Account.ID {
		t.Errorf("notified %q, want %q", notified, approval.Account.ID)
	}
}

func TestListApplications(t *testing.T) {
	f := newFixture(t)
	first, err := f.apps.Submit(f.ctx, mlaApplication())
	if err != nil {
		t.Fatal(err)
	}
	second := mlaApplication()
	second.ApplicantEmail = "meena@example.org"
	if _, err := f.apps.Submit(f.ctx, second); err != nil {
		t.Fatal(err)
	}
	if _, err := f.apps.Reject(f.ctx, admin, first.ID, 1, ""); err != nil {
		t.Fatal(err)
	}

	all, err := f.apps.List(f.ctx, admin, "", Page{})
	if err != nil || len(all) != 2 || all[0].ApplicantEmail != "meena@example.org" {
		t.Fatalf("List all = %+v, %v", all, err)
	}
	pending, err := f.apps.List(f.ctx, admin, models.ApplicationPending, Page{})
	if err != nil || len(pending) != 1 {
		t.Errorf("List pending = %d, %v", len(pending), err)
	}
	_, err = f.apps.List(f.ctx, admin, "LOST", Page{})
	assertKind(t, err, models.ErrValidation)
	_, err = f.apps.List(f.ctx, citizen, "", Page{})
	assertKind(t, err, models.ErrAuthorization)
}
