package services

import (
	"context"
	"errors"
	"strings"

	"civicsync/access"
	"civicsync/identity"
	"civicsync/models"
	"civicsync/notify"
	"civicsync/store"
	"civicsync/utils"
)

type ApplicationInput struct {
	ApplicantEmail     string              `json:"applicantEmail" validate:"required,email"`
	DisplayName        string              `json:"displayName" validate:"required,max=100"`
	OfficialType       models.OfficialType `json:"officialType" validate:"required"`
	State              string              `json:"state" validate:"required,max=100"`
	District           string              `json:"district" validate:"required,max=100"`
	Department         *models.Department  `json:"department"`
	CredentialMaterial []string            `json:"credentialMaterial" validate:"max=10,dive,url"`
}

// Approval is the outcome of approving an application. ActivationToken is
// handed to the applicant once and never stored in clear.
type Approval struct {
	Application     models.Application `json:"application"`
	Account         models.UserAccount `json:"account"`
	ActivationToken string             `json:"activationToken"`
}

// ApplicationService runs the onboarding workflow for MLAs and officials.
type ApplicationService struct {
	base
	identities identity.Provider
}

func NewApplicationService(o Options, identities identity.Provider) *ApplicationService {
	return &ApplicationService{base: newBase(o), identities: identities}
}

func (s *ApplicationService) Submit(ctx context.Context, in ApplicationInput) (models.Application, error) {
	in.ApplicantEmail = strings.TrimSpace(in.ApplicantEmail)
	if err := utils.ValidateStruct(in); err != nil {
		return models.Application{}, err
	}
	if !in.OfficialType.Valid() {
		return models.Application{}, models.Validationf("unknown official type %q", in.OfficialType)
	}
	var dept *models.Department
	switch in.OfficialType {
	case models.OfficialTypeDepartment:
		if in.Department == nil || !in.Department.Valid() {
			return models.Application{}, models.Validationf("department official applications need a valid department")
		}
		d := *in.Department
		dept = &d
	case models.OfficialTypeMLA:
		if in.Department != nil {
			return models.Application{}, models.Validationf("MLA applications do not take a department")
		}
	}
	j := models.NewJurisdiction(in.State, in.District)
	if err := j.Validate(); err != nil {
		return models.Application{}, err
	}
	if j.StateKey == "" {
		return models.Application{}, models.Validationf("applications need a state")
	}
	email := identity.NormalizeEmail(in.ApplicantEmail)

	var pending []models.Application
	err := s.list(ctx, store.Applications, store.Query{
		Filter: store.Filter{"applicantEmail": email, "verificationStatus": models.ApplicationPending},
		Limit:  1,
	}, &pending)
	if err != nil {
		return models.Application{}, err
	}
	if len(pending) > 0 {
		return models.Application{}, models.Conflictf("a pending application for %s already exists", email)
	}
	var accounts []models.UserAccount
	if err := s.list(ctx, store.Accounts, store.Query{Filter: store.Filter{"email": email}, Limit: 1}, &accounts); err != nil {
		return models.Application{}, err
	}
	if len(accounts) > 0 {
		return models.Application{}, models.Conflictf("an account for %s already exists", email)
	}

	material := in.CredentialMaterial
	if material == nil {
		material = []string{}
	}
	app := models.Application{
		ID:                 store.NewID(),
		ApplicantEmail:     email,
		DisplayName:        strings.TrimSpace(in.DisplayName),
		OfficialType:       in.OfficialType,
		Jurisdiction:       j,
		Department:         dept,
		CredentialMaterial: material,
		VerificationStatus: models.ApplicationPending,
		AppliedAt:          s.now(),
		Version:            1,
	}
	if err := s.create(ctx, store.Applications, app.ID, "application", app); err != nil {
		return models.Application{}, err
	}
	s.logger.InfoContext(ctx, "application submitted",
		"application_id", app.ID, "official_type", app.OfficialType, "district", j.District)
	return app, nil
}

// Approve provisions the applicant's identity and account and marks the
// application APPROVED. Any failure after the identity exists rolls back
// what was created, so no account is left without an approved application.
func (s *ApplicationService) Approve(ctx context.Context, actor access.Actor, id string, expectedVersion int64) (Approval, error) {
	if expectedVersion < 1 {
		return Approval{}, models.Validationf("version is required")
	}
	admin, err := access.RequireAdmin(actor)
	if err != nil {
		return Approval{}, err
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return Approval{}, err
	}
	if err := checkReviewable(app, expectedVersion); err != nil {
		return Approval{}, err
	}

	now := s.now()
	account, err := access.ProvisionAccount(app, store.NewID(), "", now)
	if err != nil {
		return Approval{}, err
	}

	identityID, token, err := s.identities.CreatePendingIdentity(ctx, app.ApplicantEmail, app.DisplayName)
	if err != nil {
		return Approval{}, providerErr("create identity", err)
	}
	account.IdentityID = identityID

	if err := s.create(ctx, store.Accounts, account.ID, "account", account); err != nil {
		return Approval{}, s.rollback(ctx, app.ID, "", identityID, err)
	}

	reviewer := admin.ID
	linked := account.ID
	err = s.update(ctx, store.Applications, app.ID, "application",
		store.Filter{"version": expectedVersion, "verificationStatus": models.ApplicationPending},
		store.Patch{
			"verificationStatus": models.ApplicationApproved,
			"reviewerId":         reviewer,
			"reviewedAt":         now,
			"linkedUserId":       linked,
			"version":            expectedVersion + 1,
		})
	if err != nil {
		return Approval{}, s.rollback(ctx, app.ID, account.ID, identityID, err)
	}

	app.VerificationStatus = models.ApplicationApproved
	app.ReviewerID = &reviewer
	app.ReviewedAt = &now
	app.LinkedUserID = &linked
	app.Version = expectedVersion + 1

	s.logger.InfoContext(ctx, "application approved",
		"application_id", app.ID, "account_id", account.ID, "role", account.Role, "reviewer_id", reviewer)
	s.notify(ctx, account.ID, notify.Event{
		Type:     notify.ApplicationApproved,
		Title:    "Application approved",
		Message:  "Your " + string(app.OfficialType) + " application was approved",
		EntityID: app.ID,
	})
	return Approval{Application: app, Account: account, ActivationToken: token}, nil
}

// Reject closes a pending application without provisioning anything.
func (s *ApplicationService) Reject(ctx context.Context, actor access.Actor, id string, expectedVersion int64, notes string) (models.Application, error) {
	if expectedVersion < 1 {
		return models.Application{}, models.Validationf("version is required")
	}
	admin, err := access.RequireAdmin(actor)
	if err != nil {
		return models.Application{}, err
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return models.Application{}, err
	}
	if err := checkReviewable(app, expectedVersion); err != nil {
		return models.Application{}, err
	}

	now := s.now()
	reviewer := admin.ID
	patch := store.Patch{
		"verificationStatus": models.ApplicationRejected,
		"reviewerId":         reviewer,
		"reviewedAt":         now,
		"version":            expectedVersion + 1,
	}
	if n := strings.TrimSpace(notes); n != "" {
		patch["reviewNotes"] = n
		app.ReviewNotes = &n
	}
	err = s.update(ctx, store.Applications, app.ID, "application",
		store.Filter{"version": expectedVersion, "verificationStatus": models.ApplicationPending}, patch)
	if err != nil {
		return models.Application{}, err
	}
	app.VerificationStatus = models.ApplicationRejected
	app.ReviewerID = &reviewer
	app.ReviewedAt = &now
	app.Version = expectedVersion + 1

	s.logger.InfoContext(ctx, "application rejected", "application_id", app.ID, "reviewer_id", reviewer)
	s.notify(ctx, app.ApplicantEmail, notify.Event{
		Type:     notify.ApplicationRejected,
		Title:    "Application rejected",
		Message:  "Your " + string(app.OfficialType) + " application was not approved",
		EntityID: app.ID,
	})
	return app, nil
}

func (s *ApplicationService) Get(ctx context.Context, actor access.Actor, id string) (models.Application, error) {
	if _, err := access.RequireAdmin(actor); err != nil {
		return models.Application{}, err
	}
	return s.load(ctx, id)
}

// List returns applications, newest first, optionally filtered by status.
func (s *ApplicationService) List(ctx context.Context, actor access.Actor, status models.ApplicationStatus, page Page) ([]models.Application, error) {
	if _, err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	filter := store.Filter{}
	if status != "" {
		if !status.Valid() {
			return nil, models.Validationf("unknown application status %q", status)
		}
		filter["verificationStatus"] = status
	}
	page = page.normalized()
	var apps []models.Application
	err := s.list(ctx, store.Applications, store.Query{
		Filter:     filter,
		SortBy:     "appliedAt",
		Descending: true,
		Skip:       page.Skip,
		Limit:      page.Limit,
	}, &apps)
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *ApplicationService) load(ctx context.Context, id string) (models.Application, error) {
	var app models.Application
	if err := s.get(ctx, store.Applications, id, "application", &app); err != nil {
		return models.Application{}, err
	}
	return app, nil
}

func checkReviewable(app models.Application, expectedVersion int64) error {
	if app.VerificationStatus != models.ApplicationPending {
		return models.Conflictf("application %s is already %s", app.ID, app.VerificationStatus)
	}
	if app.Version != expectedVersion {
		return models.Conflictf("application %s is at version %d, not %d", app.ID, app.Version, expectedVersion)
	}
	return nil
}

// rollback undoes a partially applied approval. The original failure is
// returned; rollback failures are joined to it and logged with the ids left
// behind.
func (s *ApplicationService) rollback(ctx context.Context, appID, accountID, identityID string, cause error) error {
	var errs []error
	if accountID != "" {
		if err := s.store.Delete(ctx, store.Accounts, accountID); err != nil && !errors.Is(err, store.ErrNotFound) {
			errs = append(errs, models.Upstream("roll back account", err))
		}
	}
	if identityID != "" {
		if err := s.identities.DeleteIdentity(ctx, identityID); err != nil && !errors.Is(err, models.ErrNotFound) {
			errs = append(errs, providerErr("roll back identity", err))
		}
	}
	if len(errs) == 0 {
		s.logger.WarnContext(ctx, "application approval rolled back",
			"application_id", appID, "error", cause)
		return cause
	}
	rbErr := errors.Join(errs...)
	s.logger.ErrorContext(ctx, "application approval rollback incomplete",
		"application_id", appID, "account_id", accountID, "identity_id", identityID,
		"error", cause, "rollback_error", rbErr)
	return errors.Join(cause, rbErr)
}

// providerErr keeps classified identity errors and marks the rest upstream.
func providerErr(reason string, err error) error {
	var e *models.Error
	if errors.As(err, &e) {
		return err
	}
	return models.Upstream(reason, err)
}
