package access

import (
	"time"

	"civicsync/models"
)

// RequireAuthenticated fails when no actor is present.
func RequireAuthenticated(actor Actor) error {
	if actor == nil || actor.ActorID() == "" {
		return models.Unauthorizedf("authentication required")
	}
	return nil
}

// RequireReporter allows only the citizen who filed the issue.
func RequireReporter(actor Actor, issue models.Issue) error {
	if err := RequireAuthenticated(actor); err != nil {
		return err
	}
	if actor.ActorID() != issue.ReporterID {
		return models.Unauthorizedf("only the reporter may modify issue %s", issue.ID)
	}
	return nil
}

// RequireJurisdictionMLA allows an MLA whose jurisdiction covers the issue.
func RequireJurisdictionMLA(actor Actor, issue models.Issue) (MLA, error) {
	if _, ok := actor.(MLA); !ok {
		return MLA{}, models.Unauthorizedf("only an MLA may triage issues")
	}
	mla, err := RequireMLA(actor)
	if err != nil {
		return MLA{}, err
	}
	if !mla.Jurisdiction.Matches(issue.Jurisdiction) {
		return MLA{}, models.Unauthorizedf("issue %s is outside jurisdiction %s", issue.ID, mla.Jurisdiction)
	}
	return mla, nil
}

// RequireMLA allows any MLA whose jurisdiction names a state.
func RequireMLA(actor Actor) (MLA, error) {
	mla, ok := actor.(MLA)
	if !ok {
		return MLA{}, models.Unauthorizedf("MLA role required")
	}
	if mla.Jurisdiction.Normalized().StateKey == "" {
		return MLA{}, models.Unauthorizedf("mla %s has no state in its jurisdiction", mla.ID)
	}
	return mla, nil
}

// RequireDepartmentOfficial allows an official of the work order's department.
func RequireDepartmentOfficial(actor Actor, wo models.WorkOrder) (Official, error) {
	official, ok := actor.(Official)
	if !ok {
		return Official{}, models.Unauthorizedf("only a department official may update work orders")
	}
	if official.Department != wo.Department {
		return Official{}, models.Unauthorizedf("work order %s belongs to department %s", wo.ID, wo.Department)
	}
	return official, nil
}

// RequireOfficial allows any department official.
func RequireOfficial(actor Actor) (Official, error) {
	official, ok := actor.(Official)
	if !ok {
		return Official{}, models.Unauthorizedf("official role required")
	}
	return official, nil
}

// RequireAdmin allows administrators only.
func RequireAdmin(actor Actor) (Admin, error) {
	admin, ok := actor.(Admin)
	if !ok {
		return Admin{}, models.Unauthorizedf("admin role required")
	}
	return admin, nil
}

// CanReadWorkOrder allows the owning MLA, officials of the assigned
// department and administrators.
func CanReadWorkOrder(actor Actor, wo models.WorkOrder) error {
	switch a := actor.(type) {
	case MLA:
		if a.ID == wo.MLAID {
			return nil
		}
	case Official:
		if a.Department == wo.Department {
			return nil
		}
	case Admin:
		return nil
	}
	return models.Unauthorizedf("not allowed to read work order %s", wo.ID)
}

// RoleFor maps an application's official type onto the account role it provisions.
func RoleFor(t models.OfficialType) (models.Role, error) {
	switch t {
	case models.OfficialTypeMLA:
		return models.RoleMLA, nil
	case models.OfficialTypeDepartment:
		return models.RoleOfficial, nil
	}
	return "", models.Validationf("unknown official type %q", t)
}

// ProvisionAccount builds the account an approved application grants,
// scoped to the application's jurisdiction and department.
func ProvisionAccount(app models.Application, accountID, identityID string, now time.Time) (models.UserAccount, error) {
	role, err := RoleFor(app.OfficialType)
	if err != nil {
		return models.UserAccount{}, err
	}
	j := app.Jurisdiction.Normalized()
	if role == models.RoleMLA && j.StateKey == "" {
		return models.UserAccount{}, models.Validationf("mla application %s has no state", app.ID)
	}
	acc := models.UserAccount{
		ID:            accountID,
		IdentityID:    identityID,
		Email:         app.ApplicantEmail,
		DisplayName:   app.DisplayName,
		Role:          role,
		Jurisdiction:  &j,
		ApplicationID: app.ID,
		Status:        models.AccountActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if role == models.RoleOfficial {
		if app.Department == nil || !app.Department.Valid() {
			return models.UserAccount{}, models.Validationf("official application %s has no valid department", app.ID)
		}
		d := *app.Department
		acc.Department = &d
	}
	return acc, nil
}
