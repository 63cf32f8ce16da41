package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleCitizen  Role = "citizen"
	RoleMLA      Role = "mla"
	RoleOfficial Role = "official"
	RoleAdmin    Role = "admin"
)

// AccountStatus enum
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// UserAccount is the role-scoped profile an actor authenticates as.
type UserAccount struct {
	ID            string        `bson:"_id" json:"id"`
	IdentityID    string        `bson:"identityId" json:"-"`
	Email         string        `bson:"email" json:"email"`
	DisplayName   string        `bson:"displayName" json:"displayName"`
	Role          Role          `bson:"role" json:"role"`
	Jurisdiction  *Jurisdiction `bson:"jurisdiction,omitempty" json:"jurisdiction,omitempty"`
	Department    *Department   `bson:"department,omitempty" json:"department,omitempty"`
	ApplicationID string        `bson:"applicationId,omitempty" json:"applicationId,omitempty"`
	Status        AccountStatus `bson:"status" json:"status"`
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// Identity holds login material. Only bcrypt hashes are stored; an identity
// created on application approval carries a hashed single-use activation token
// until the applicant sets a password.
type Identity struct {
	ID                string     `bson:"_id" json:"id"`
	Email             string     `bson:"email" json:"email"`
	DisplayName       string     `bson:"displayName" json:"displayName"`
	CredentialHash    string     `bson:"credentialHash" json:"-"`
	PendingActivation bool       `bson:"pendingActivation" json:"pendingActivation"`
	CreatedAt         time.Time  `bson:"createdAt" json:"createdAt"`
	ActivatedAt       *time.Time `bson:"activatedAt,omitempty" json:"activatedAt,omitempty"`
}

// SetCredential hashes secret into CredentialHash.
func (i *Identity) SetCredential(secret string, cost int) error {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return err
	}
	i.CredentialHash = string(hashed)
	return nil
}

func (i *Identity) CompareCredential(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(i.CredentialHash), []byte(candidate))
	return err == nil
}
