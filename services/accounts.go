package services

import (
	"context"
	"errors"
	"strings"

	"civicsync/access"
	"civicsync/identity"
	"civicsync/models"
	"civicsync/store"
	"civicsync/utils"
)

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"displayName" validate:"required,max=100"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ActivateInput struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// AccountService manages user accounts and resolves them into actors.
type AccountService struct {
	base
	identities identity.Provider
}

func NewAccountService(o Options, identities identity.Provider) *AccountService {
	return &AccountService{base: newBase(o), identities: identities}
}

// RegisterCitizen creates a citizen identity and account.
func (s *AccountService) RegisterCitizen(ctx context.Context, in RegisterInput) (models.UserAccount, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := utils.ValidateStruct(in); err != nil {
		return models.UserAccount{}, err
	}
	return s.provision(ctx, in.Email, in.Password, strings.TrimSpace(in.DisplayName), models.RoleCitizen)
}

// EnsureAdmin creates the bootstrap administrator unless an account for the
// email already exists.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password string) (models.UserAccount, error) {
	existing, err := s.findByEmail(ctx, identity.NormalizeEmail(email))
	if err == nil {
		if existing.Role != models.RoleAdmin {
			return models.UserAccount{}, models.Conflictf("account %s exists with role %s", existing.Email, existing.Role)
		}
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.UserAccount{}, err
	}
	acc, err := s.provision(ctx, email, password, "Administrator", models.RoleAdmin)
	if err != nil {
		return models.UserAccount{}, err
	}
	s.logger.InfoContext(ctx, "admin account created", "account_id", acc.ID)
	return acc, nil
}

func (s *AccountService) provision(ctx context.Context, email, password, displayName string, role models.Role) (models.UserAccount, error) {
	identityID, err := s.identities.CreateIdentity(ctx, email, password, displayName)
	if err != nil {
		return models.UserAccount{}, providerErr("create identity", err)
	}
	now := s.now()
	acc := models.UserAccount{
		ID:          store.NewID(),
		IdentityID:  identityID,
		Email:       identity.NormalizeEmail(email),
		DisplayName: displayName,
		Role:        role,
		Status:      models.AccountActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.create(ctx, store.Accounts, acc.ID, "account", acc); err != nil {
		if delErr := s.identities.DeleteIdentity(ctx, identityID); delErr != nil {
			s.logger.ErrorContext(ctx, "orphaned identity after failed registration",
				"identity_id", identityID, "error", delErr)
			return models.UserAccount{}, errors.Join(err, delErr)
		}
		return models.UserAccount{}, err
	}
	return acc, nil
}

// Login checks credentials and returns the account they unlock.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (models.UserAccount, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := utils.ValidateStruct(in); err != nil {
		return models.UserAccount{}, err
	}
	identityID, err := s.identities.VerifyCredential(ctx, in.Email, in.Password)
	if err != nil {
		return models.UserAccount{}, providerErr("verify credential", err)
	}
	acc, err := s.byIdentity(ctx, identityID)
	if err != nil {
		return models.UserAccount{}, err
	}
	if _, err := access.FromAccount(acc); err != nil {
		return models.UserAccount{}, err
	}
	return acc, nil
}

// Activate consumes an activation token issued on approval and sets the
// account's first password.
func (s *AccountService) Activate(ctx context.Context, in ActivateInput) (models.UserAccount, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := utils.ValidateStruct(in); err != nil {
		return models.UserAccount{}, err
	}
	identityID, err := s.identities.Activate(ctx, in.Email, in.Token, in.Password)
	if err != nil {
		return models.UserAccount{}, providerErr("activate identity", err)
	}
	return s.byIdentity(ctx, identityID)
}

func (s *AccountService) Get(ctx context.Context, id string) (models.UserAccount, error) {
	var acc models.UserAccount
	if err := s.get(ctx, store.Accounts, id, "account", &acc); err != nil {
		return models.UserAccount{}, err
	}
	return acc, nil
}

// Actor resolves an authenticated account id. Missing or unusable accounts
// are authorization failures.
func (s *AccountService) Actor(ctx context.Context, accountID string) (access.Actor, error) {
	acc, err := s.Get(ctx, accountID)
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrValidation) {
		return nil, models.Unauthorizedf("unknown account")
	}
	if err != nil {
		return nil, err
	}
	return access.FromAccount(acc)
}

// SetStatus activates or deactivates an account. Only admins may do this and
// not on themselves.
func (s *AccountService) SetStatus(ctx context.Context, actor access.Actor, id string, status models.AccountStatus) (models.UserAccount, error) {
	admin, err := access.RequireAdmin(actor)
	if err != nil {
		return models.UserAccount{}, err
	}
	if status != models.AccountActive && status != models.AccountInactive {
		return models.UserAccount{}, models.Validationf("unknown account status %q", status)
	}
	if admin.ID == id {
		return models.UserAccount{}, models.Validationf("admins cannot change their own status")
	}
	acc, err := s.Get(ctx, id)
	if err != nil {
		return models.UserAccount{}, err
	}
	if acc.Status == status {
		return acc, nil
	}
	now := s.now()
	err = s.update(ctx, store.Accounts, id, "account",
		store.Filter{"status": acc.Status},
		store.Patch{"status": status, "updatedAt": now})
	if err != nil {
		return models.UserAccount{}, err
	}
	acc.Status = status
	acc.UpdatedAt = now
	s.logger.InfoContext(ctx, "account status changed", "account_id", id, "status", status, "admin_id", admin.ID)
	return acc, nil
}

func (s *AccountService) byIdentity(ctx context.Context, identityID string) (models.UserAccount, error) {
	return s.findOne(ctx, store.Filter{"identityId": identityID}, "no account for identity")
}

func (s *AccountService) findByEmail(ctx context.Context, email string) (models.UserAccount, error) {
	return s.findOne(ctx, store.Filter{"email": email}, "no account for "+email)
}

func (s *AccountService) findOne(ctx context.Context, filter store.Filter, missing string) (models.UserAccount, error) {
	var found []models.UserAccount
	if err := s.list(ctx, store.Accounts, store.Query{Filter: filter, Limit: 1}, &found); err != nil {
		return models.UserAccount{}, err
	}
	if len(found) == 0 {
		return models.UserAccount{}, models.NotFoundf("%s", missing)
	}
	return found[0], nil
}
