package models

import (
	"slices"
	"time"
)

// Department enum. Work orders are assigned to exactly one department.
type Department string

const (
	DeptRoads       Department = "ROADS"
	DeptWaterSupply Department = "WATER_SUPPLY"
	DeptElectricity Department = "ELECTRICITY"
	DeptSanitation  Department = "SANITATION"
	DeptHealth      Department = "HEALTH"
	DeptPublicWorks Department = "PUBLIC_WORKS"
	DeptRevenue     Department = "REVENUE"
	DeptPolice      Department = "POLICE"
)

var Departments = []Department{
	DeptRoads, DeptWaterSupply, DeptElectricity, DeptSanitation,
	DeptHealth, DeptPublicWorks, DeptRevenue, DeptPolice,
}

func (d Department) Valid() bool {
	return slices.Contains(Departments, d)
}

// Priority enum
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent, PriorityCritical:
		return true
	}
	return false
}

// WorkOrderStatus enum
type WorkOrderStatus string

const (
	WorkOrderPending    WorkOrderStatus = "PENDING"
	WorkOrderAccepted   WorkOrderStatus = "ACCEPTED"
	WorkOrderInProgress WorkOrderStatus = "IN_PROGRESS"
	WorkOrderCompleted  WorkOrderStatus = "COMPLETED"
	WorkOrderRejected   WorkOrderStatus = "REJECTED"
)

func (s WorkOrderStatus) Valid() bool {
	switch s {
	case WorkOrderPending, WorkOrderAccepted, WorkOrderInProgress, WorkOrderCompleted, WorkOrderRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s WorkOrderStatus) Terminal() bool {
	return s == WorkOrderCompleted || s == WorkOrderRejected
}

// workOrderEdges is the complete transition table:
//
//	PENDING     -> ACCEPTED | REJECTED
//	ACCEPTED    -> IN_PROGRESS
//	IN_PROGRESS -> COMPLETED
var workOrderEdges = map[WorkOrderStatus][]WorkOrderStatus{
	WorkOrderPending:    {WorkOrderAccepted, WorkOrderRejected},
	WorkOrderAccepted:   {WorkOrderInProgress},
	WorkOrderInProgress: {WorkOrderCompleted},
}

// CanTransition reports whether from -> to is an edge of the work order machine.
func CanTransition(from, to WorkOrderStatus) bool {
	return slices.Contains(workOrderEdges[from], to)
}

// NextStatuses lists the statuses reachable in one step from s.
func NextStatuses(s WorkOrderStatus) []WorkOrderStatus {
	return slices.Clone(workOrderEdges[s])
}

// MinInstructionsLength is the shortest instructions text accepted on delegation.
const MinInstructionsLength = 20

// WorkOrder is the formal delegation of an issue from an MLA to a department.
type WorkOrder struct {
	ID                      string          `bson:"_id" json:"id"`
	IssueID                 string          `bson:"issueId" json:"issueId"`
	MLAID                   string          `bson:"mlaId" json:"mlaId"`
	Department              Department      `bson:"department" json:"department"`
	Priority                Priority        `bson:"priority" json:"priority"`
	Status                  WorkOrderStatus `bson:"status" json:"status"`
	Instructions            string          `bson:"instructions" json:"instructions"`
	OfficialNotes           *string         `bson:"officialNotes,omitempty" json:"officialNotes,omitempty"`
	IssuesFaced             *string         `bson:"issuesFaced,omitempty" json:"issuesFaced,omitempty"`
	ResourcesNeeded         *string         `bson:"resourcesNeeded,omitempty" json:"resourcesNeeded,omitempty"`
	RejectionReason         *string         `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	EstimatedCompletionDate *time.Time      `bson:"estimatedCompletionDate,omitempty" json:"estimatedCompletionDate,omitempty"`
	ActualCompletionDate    *time.Time      `bson:"actualCompletionDate,omitempty" json:"actualCompletionDate,omitempty"`
	AssignedAt              time.Time       `bson:"assignedAt" json:"assignedAt"`
	AcceptedAt              *time.Time      `bson:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`
	StartedAt               *time.Time      `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt             *time.Time      `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	RejectedAt              *time.Time      `bson:"rejectedAt,omitempty" json:"rejectedAt,omitempty"`
	UpdatedAt               time.Time       `bson:"updatedAt" json:"updatedAt"`
	Version                 int64           `bson:"version" json:"version"`
}

// WorkOrderEvent records one status a work order entered.
type WorkOrderEvent struct {
	ID          string          `bson:"_id" json:"id"`
	WorkOrderID string          `bson:"workOrderId" json:"workOrderId"`
	From        WorkOrderStatus `bson:"from,omitempty" json:"from,omitempty"`
	To          WorkOrderStatus `bson:"to" json:"to"`
	ActorID     string          `bson:"actorId" json:"actorId"`
	At          time.Time       `bson:"at" json:"at"`
}
