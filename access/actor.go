// Package access holds the actor model and the authorization rules every
// mutating operation is checked against.
package access

import (
	"civicsync/models"
)

// Actor is the authenticated caller. The concrete type decides what it may do;
// the set of variants is closed.
type Actor interface {
	ActorID() string
	Role() models.Role
	isActor()
}

type Citizen struct {
	ID string
}

type MLA struct {
	ID           string
	Jurisdiction models.Jurisdiction
}

type Official struct {
	ID           string
	Department   models.Department
	Jurisdiction models.Jurisdiction
}

type Admin struct {
	ID string
}

func (c Citizen) ActorID() string  { return c.ID }
func (m MLA) ActorID() string      { return m.ID }
func (o Official) ActorID() string { return o.ID }
func (a Admin) ActorID() string    { return a.ID }

func (Citizen) Role() models.Role  { return models.RoleCitizen }
func (MLA) Role() models.Role      { return models.RoleMLA }
func (Official) Role() models.Role { return models.RoleOfficial }
func (Admin) Role() models.Role    { return models.RoleAdmin }

func (Citizen) isActor()  {}
func (MLA) isActor()      {}
func (Official) isActor() {}
func (Admin) isActor()    {}

// FromAccount converts a stored account into an Actor. Inactive accounts and
// accounts missing their scope are refused.
func FromAccount(acc models.UserAccount) (Actor, error) {
	if acc.Status != models.AccountActive {
		return nil, models.Unauthorizedf("account %s is %s", acc.ID, acc.Status)
	}
	switch acc.Role {
	case models.RoleCitizen:
		return Citizen{ID: acc.ID}, nil
	case models.RoleMLA:
		if acc.Jurisdiction == nil || acc.Jurisdiction.Normalized().StateKey == "" {
			return nil, models.Unauthorizedf("mla account %s has no state and district", acc.ID)
		}
		return MLA{ID: acc.ID, Jurisdiction: acc.Jurisdiction.Normalized()}, nil
	case models.RoleOfficial:
		if acc.Department == nil || !acc.Department.Valid() {
			return nil, models.Unauthorizedf("official account %s has no department", acc.ID)
		}
		o := Official{ID: acc.ID, Department: *acc.Department}
		if acc.Jurisdiction != nil {
			o.Jurisdiction = acc.Jurisdiction.Normalized()
		}
		return o, nil
	case models.RoleAdmin:
		return Admin{ID: acc.ID}, nil
	}
	return nil, models.Unauthorizedf("account %s has unknown role %q", acc.ID, acc.Role)
}
