package services

import (
	"testing"

	"civicsync/access"
	"civicsync/models"
	"civicsync/store"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	acc, err := f.accounts.RegisterCitizen(f.ctx, RegisterInput{
		Email: " Asha@Example.org ", Password: "monsoon-2026", DisplayName: " Asha ",
	})
	if err != nil {
		t.Fatal(err)
	}
	if acc.Role != models.RoleCitizen || acc.Status != models.AccountActive || acc.Email != "asha@example.org" || acc.DisplayName != "Asha" {
		t.Fatalf("account = %+v", acc)
	}

	got, err := f.accounts.Login(f.ctx, LoginInput{Email: "asha@example.org", Password: "monsoon-2026"})
	if err != nil || got.ID != acc.ID {
		t.Fatalf("Login = %+v, %v", got, err)
	}
	_, err = f.accounts.Login(f.ctx, LoginInput{Email: "asha@example.org", Password: "wrong-password"})
	assertKind(t, err, models.ErrAuthorization)

	_, err = f.accounts.RegisterCitizen(f.ctx, RegisterInput{Email: "asha@example.org", Password: "another-one", DisplayName: "A"})
	assertKind(t, err, models.ErrConflict)
	_, err = f.accounts.RegisterCitizen(f.ctx, RegisterInput{Email: "b@example.org", Password: "short", DisplayName: "B"})
	assertKind(t, err, models.ErrValidation)

	actor, err := f.accounts.Actor(f.ctx, acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := actor.(access.Citizen); !ok || c.ID != acc.ID {
		t.Errorf("actor = %#v", actor)
	}
	_, err = f.accounts.Actor(f.ctx, "missing")
	assertKind(t, err, models.ErrAuthorization)
}

func TestRegisterRollsBackIdentity(t *testing.T) {
	fs := &faultyStore{Store: store.NewMemoryStore()}
	f := newFixture(t, withStore(fs))
	fs.failCreates = map[string]error{store.Accounts: errUnavailable}

	_, err := f.accounts.RegisterCitizen(f.ctx, RegisterInput{Email: "asha@example.org", Password: "monsoon-2026", DisplayName: "Asha"})
	assertKind(t, err, models.ErrUpstream)
	if n := count(t, fs, store.Identities, nil); n != 0 {
		t.Errorf("%d identities left behind", n)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	first, err := f.accounts.EnsureAdmin(f.ctx, "root@civicsync.local", "bootstrap-secret")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.accounts.EnsureAdmin(f.ctx, "ROOT@civicsync.local", "bootstrap-secret")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID || first.Role != models.RoleAdmin {
		t.Fatalf("first = %+v, second = %+v", first, second)
	}
	if n := count(t, f.store, store.Accounts, nil); n != 1 {
		t.Errorf("%d accounts", n)
	}

	if _, err := f.accounts.RegisterCitizen(f.ctx, RegisterInput{Email: "asha@example.org", Password: "monsoon-2026", DisplayName: "Asha"}); err != nil {
		t.Fatal(err)
	}
	_, err = f.accounts.EnsureAdmin(f.ctx, "asha@example.org", "bootstrap-secret")
	assertKind(t, err, models.ErrConflict)
}

func TestSetStatusBlocksAccess(t *testing.T) {
	f := newFixture(t)
	root, err := f.accounts.EnsureAdmin(f.ctx, "root@civicsync.local", "bootstrap-secret")
	if err != nil {
		t.Fatal(err)
	}
	acc, err := f.accounts.RegisterCitizen(f.ctx, RegisterInput{Email: "asha@example.org", Password: "monsoon-2026", DisplayName: "Asha"})
	if err != nil {
		t.Fatal(err)
	}
	rootActor := access.Admin{ID: root.ID}

	_, err = f.accounts.SetStatus(f.ctx, citizen, acc.ID, models.AccountInactive)
	assertKind(t, err, models.ErrAuthorization)
	_, err = f.accounts.SetStatus(f.ctx, rootActor, root.ID, models.AccountInactive)
	assertKind(t, err, models.ErrValidation)
	_, err = f.accounts.SetStatus(f.ctx, rootActor, acc.ID, "banned")
	assertKind(t, err, models.ErrValidation)

	off, err := f.accounts.SetStatus(f.ctx, rootActor, acc.ID, models.AccountInactive)
	if err != nil || off.Status != models.AccountInactive {
		t.Fatalf("deactivate = %+v, %v", off, err)
	}
	_, err = f.accounts.Login(f.ctx, LoginInput{Email: "asha@example.org", Password: "monsoon-2026"})
	assertKind(t, err, models.ErrAuthorization)
	_, err = f.accounts.Actor(f.ctx, acc.ID)
	assertKind(t, err, models.ErrAuthorization)

	if _, err := f.accounts.SetStatus(f.ctx, rootActor, acc.ID, models.AccountActive); err != nil {
		t.Fatal(err)
	}
	if _, err := f.accounts.Actor(f.ctx, acc.ID); err != nil {
		t.Errorf("reactivated actor: %v", err)
	}
}
