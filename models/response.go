package models

import "time"

// ResponseStatus is the vocabulary an MLA proposes when responding to an issue.
// Road and help responses historically used different words; both sets are
// accepted here and folded into IssueStatus by IssueStatusFor.
type ResponseStatus string

const (
	ResponseAcknowledged ResponseStatus = "ACKNOWLEDGED"
	ResponseActive       ResponseStatus = "ACTIVE"
	ResponseInProgress   ResponseStatus = "IN_PROGRESS"
	ResponseResolved     ResponseStatus = "RESOLVED"
	ResponseRejected     ResponseStatus = "REJECTED"
)

var responseToIssueStatus = map[ResponseStatus]IssueStatus{
	ResponseAcknowledged: IssueActive,
	ResponseActive:       IssueActive,
	ResponseInProgress:   IssueInProgress,
	ResponseResolved:     IssueResolved,
	ResponseRejected:     IssueRejected,
}

func (s ResponseStatus) Valid() bool {
	_, ok := responseToIssueStatus[s]
	return ok
}

// IssueStatusFor maps a proposed response status onto the canonical issue status.
func IssueStatusFor(s ResponseStatus) (IssueStatus, bool) {
	st, ok := responseToIssueStatus[s]
	return st, ok
}

// Response is an advisory note from an MLA attached to an issue.
type Response struct {
	ID               string         `bson:"_id" json:"id"`
	IssueID          string         `bson:"issueId" json:"issueId"`
	AuthorID         string         `bson:"authorId" json:"authorId"`
	Message          string         `bson:"message" json:"message"`
	ActionTaken      string         `bson:"actionTaken" json:"actionTaken"`
	ProposedStatus   ResponseStatus `bson:"proposedStatus" json:"proposedStatus"`
	EstimatedDays    *int           `bson:"estimatedDays,omitempty" json:"estimatedDays,omitempty"`
	FollowUpRequired bool           `bson:"followUpRequired" json:"followUpRequired"`
	FollowUpNotes    *string        `bson:"followUpNotes,omitempty" json:"followUpNotes,omitempty"`
	CreatedAt        time.Time      `bson:"createdAt" json:"createdAt"`
}
