// Package identity stores login credentials and verifies them.
package identity

//go:generate mockgen -source=provider.go -destination=mock_identity/mock_provider.go -package=mock_identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"civicsync/models"
	"civicsync/store"
)

const MinPasswordLength = 8

// Provider creates identities and checks credentials against them.
type Provider interface {
	// CreateIdentity registers an active identity with a password.
	CreateIdentity(ctx context.Context, email, credential, displayName string) (string, error)
	// CreatePendingIdentity registers an identity that can only be used to
	// activate the account. The returned token is shown once and stored hashed.
	CreatePendingIdentity(ctx context.Context, email, displayName string) (id, token string, err error)
	VerifyCredential(ctx context.Context, email, credential string) (string, error)
	// Activate consumes the activation token and sets the first password.
	Activate(ctx context.Context, email, token, credential string) (string, error)
	DeleteIdentity(ctx context.Context, id string) error
}

// StoreProvider keeps bcrypt-hashed identities in a store collection.
type StoreProvider struct {
	Store store.Store
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
	Now  func() time.Time
}

func NewStoreProvider(s store.Store, cost int) *StoreProvider {
	return &StoreProvider{Store: s, Cost: cost, Now: time.Now}
}

func (p *StoreProvider) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *StoreProvider) CreateIdentity(ctx context.Context, email, credential, displayName string) (string, error) {
	if len(credential) < MinPasswordLength {
		return "", models.Validationf("password must be at least %d characters", MinPasswordLength)
	}
	ident := models.Identity{
		ID:          store.NewID(),
		Email:       NormalizeEmail(email),
		DisplayName: displayName,
		CreatedAt:   p.now(),
	}
	activated := ident.CreatedAt
	ident.ActivatedAt = &activated
	if err := ident.SetCredential(credential, p.Cost); err != nil {
		return "", models.Upstream("hash credential", err)
	}
	if err := p.insert(ctx, ident); err != nil {
		return "", err
	}
	return ident.ID, nil
}

func (p *StoreProvider) CreatePendingIdentity(ctx context.Context, email, displayName string) (string, string, error) {
	token := uuid.NewString()
	ident := models.Identity{
		ID:                store.NewID(),
		Email:             NormalizeEmail(email),
		DisplayName:       displayName,
		PendingActivation: true,
		CreatedAt:         p.now(),
	}
	if err := ident.SetCredential(token, p.Cost); err != nil {
		return "", "", models.Upstream("hash activation token", err)
	}
	if err := p.insert(ctx, ident); err != nil {
		return "", "", err
	}
	return ident.ID, token, nil
}

func (p *StoreProvider) insert(ctx context.Context, ident models.Identity) error {
	if ident.Email == "" {
		return models.Validationf("email is required")
	}
	if _, err := p.findByEmail(ctx, ident.Email); err == nil {
		return models.Conflictf("identity for %s already exists", ident.Email)
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.Upstream("look up identity", err)
	}
	if err := p.Store.Create(ctx, store.Identities, ident.ID, ident); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return models.Conflictf("identity for %s already exists", ident.Email)
		}
		return models.Upstream("create identity", err)
	}
	return nil
}

func (p *StoreProvider) VerifyCredential(ctx context.Context, email, credential string) (string, error) {
	ident, err := p.findByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return "", models.Unauthorizedf("invalid credentials")
	}
	if err != nil {
		return "", models.Upstream("look up identity", err)
	}
	if ident.PendingActivation {
		return "", models.Unauthorizedf("account for %s is not activated", ident.Email)
	}
	if !ident.CompareCredential(credential) {
		return "", models.Unauthorizedf("invalid credentials")
	}
	return ident.ID, nil
}

func (p *StoreProvider) Activate(ctx context.Context, email, token, credential string) (string, error) {
	if len(credential) < MinPasswordLength {
		return "", models.Validationf("password must be at least %d characters", MinPasswordLength)
	}
	ident, err := p.findByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return "", models.Unauthorizedf("invalid activation token")
	}
	if err != nil {
		return "", models.Upstream("look up identity", err)
	}
	if !ident.PendingActivation {
		return "", models.Conflictf("account for %s is already activated", ident.Email)
	}
	if !ident.CompareCredential(token) {
		return "", models.Unauthorizedf("invalid activation token")
	}

	oldHash := ident.CredentialHash
	if err := ident.SetCredential(credential, p.Cost); err != nil {
		return "", models.Upstream("hash credential", err)
	}
	now := p.now()
	// Matching on the old hash makes the token single-use under concurrent activation.
	err = p.Store.Update(ctx, store.Identities, ident.ID,
		store.Filter{"pendingActivation": true, "credentialHash": oldHash},
		store.Patch{"credentialHash": ident.CredentialHash, "pendingActivation": false, "activatedAt": now})
	if errors.Is(err, store.ErrConflict) {
		return "", models.Conflictf("activation token for %s already used", ident.Email)
	}
	if err != nil {
		return "", models.Upstream("activate identity", err)
	}
	return ident.ID, nil
}

func (p *StoreProvider) DeleteIdentity(ctx context.Context, id string) error {
	if err := p.Store.Delete(ctx, store.Identities, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.NotFoundf("identity %s not found", id)
		}
		return models.Upstream("delete identity", err)
	}
	return nil
}

func (p *StoreProvider) findByEmail(ctx context.Context, email string) (models.Identity, error) {
	var found []models.Identity
	if err := p.Store.List(ctx, store.Identities, store.Query{Filter: store.Filter{"email": email}, Limit: 1}, &found); err != nil {
		return models.Identity{}, err
	}
	if len(found) == 0 {
		return models.Identity{}, store.ErrNotFound
	}
	return found[0], nil
}
