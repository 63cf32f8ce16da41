package models

import "time"

// OfficialType enum
type OfficialType string

const (
	OfficialTypeMLA        OfficialType = "MLA"
	OfficialTypeDepartment OfficialType = "DEPARTMENT_OFFICIAL"
)

func (t OfficialType) Valid() bool {
	return t == OfficialTypeMLA || t == OfficialTypeDepartment
}

// ApplicationStatus enum
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationApproved, ApplicationRejected:
		return true
	}
	return false
}

// Application is a request to be provisioned as an MLA or department official.
// CredentialMaterial holds references to supporting documents in the blob
// store; passwords are never part of an application.
type Application struct {
	ID                 string            `bson:"_id" json:"id"`
	ApplicantEmail     string            `bson:"applicantEmail" json:"applicantEmail"`
	DisplayName        string            `bson:"displayName" json:"displayName"`
	OfficialType       OfficialType      `bson:"officialType" json:"officialType"`
	Jurisdiction       Jurisdiction      `bson:"jurisdiction" json:"jurisdiction"`
	Department         *Department       `bson:"department,omitempty" json:"department,omitempty"`
	CredentialMaterial []string          `bson:"credentialMaterial" json:"credentialMaterial"`
	VerificationStatus ApplicationStatus `bson:"verificationStatus" json:"verificationStatus"`
	ReviewerID         *string           `bson:"reviewerId,omitempty" json:"reviewerId,omitempty"`
	ReviewNotes        *string           `bson:"reviewNotes,omitempty" json:"reviewNotes,omitempty"`
	AppliedAt          time.Time         `bson:"appliedAt" json:"appliedAt"`
	ReviewedAt         *time.Time        `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	LinkedUserID       *string           `bson:"linkedUserId,omitempty" json:"linkedUserId,omitempty"`
	Version            int64             `bson:"version" json:"version"`
}
