package models

import (
	"slices"
	"time"
)

// IssueKind enum
type IssueKind string

const (
	KindRoad IssueKind = "ROAD"
	KindHelp IssueKind = "HELP"
)

// IssueCategory enum
type IssueCategory string

// Road report categories
const (
	CategoryPothole     IssueCategory = "Pothole"
	CategoryCrack       IssueCategory = "Crack"
	CategoryWaterlog    IssueCategory = "Waterlogging"
	CategoryDebris      IssueCategory = "Debris"
	CategorySignage     IssueCategory = "Signage"
	CategoryStreetlight IssueCategory = "Streetlight"
)

// Help request categories
const (
	CategoryMedical     IssueCategory = "Medical"
	CategoryFood        IssueCategory = "Food"
	CategoryShelter     IssueCategory = "Shelter"
	CategoryWater       IssueCategory = "Water"
	CategoryElectricity IssueCategory = "Electricity"
	CategorySanitation  IssueCategory = "Sanitation"
)

const CategoryOther IssueCategory = "Other"

var categoriesByKind = map[IssueKind][]IssueCategory{
	KindRoad: {CategoryPothole, CategoryCrack, CategoryWaterlog, CategoryDebris, CategorySignage, CategoryStreetlight, CategoryOther},
	KindHelp: {CategoryMedical, CategoryFood, CategoryShelter, CategoryWater, CategoryElectricity, CategorySanitation, CategoryOther},
}

// minDescription is the shortest description accepted for each kind.
var minDescription = map[IssueKind]int{
	KindRoad: 10,
	KindHelp: 20,
}

func (k IssueKind) Valid() bool {
	_, ok := categoriesByKind[k]
	return ok
}

// Categories returns the closed category set for the kind.
func (k IssueKind) Categories() []IssueCategory {
	return categoriesByKind[k]
}

func (k IssueKind) AllowsCategory(c IssueCategory) bool {
	return slices.Contains(categoriesByKind[k], c)
}

func (k IssueKind) MinDescription() int {
	return minDescription[k]
}

// IssueStatus enum
type IssueStatus string

const (
	IssueActive     IssueStatus = "ACTIVE"
	IssueInProgress IssueStatus = "IN_PROGRESS"
	IssueResolved   IssueStatus = "RESOLVED"
	IssueRejected   IssueStatus = "REJECTED"
)

func (s IssueStatus) Valid() bool {
	switch s {
	case IssueActive, IssueInProgress, IssueResolved, IssueRejected:
		return true
	}
	return false
}

// Terminal reports whether the issue is closed to further triage.
func (s IssueStatus) Terminal() bool {
	return s == IssueResolved || s == IssueRejected
}

// GeoPoint is an optional location attached by the reporter.
type GeoPoint struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// Issue represents a civic issue reported by a citizen
type Issue struct {
	ID           string        `bson:"_id" json:"id"`
	ReporterID   string        `bson:"reporterId" json:"reporterId"`
	Jurisdiction Jurisdiction  `bson:"jurisdiction" json:"jurisdiction"`
	Kind         IssueKind     `bson:"kind" json:"kind"`
	Category     IssueCategory `bson:"category" json:"category"`
	Description  string        `bson:"description" json:"description"`
	MediaRef     *string       `bson:"mediaRef,omitempty" json:"mediaRef,omitempty"`
	Geo          *GeoPoint     `bson:"geo,omitempty" json:"geo,omitempty"`
	LikedBy      []string      `bson:"likedBy" json:"likedBy"`
	Likes        int           `bson:"likes" json:"likes"`
	Status       IssueStatus   `bson:"status" json:"status"`
	// Version guards status writes, LikeVersion the like set.
	Version      int64         `bson:"version" json:"-"`
	LikeVersion  int64         `bson:"likeVersion" json:"-"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// LikedByActor reports whether actorID is in the like set.
func (i *Issue) LikedByActor(actorID string) bool {
	return slices.Contains(i.LikedBy, actorID)
}

// ToggleLike flips actorID's membership in LikedBy and recomputes Likes.
// It reports whether the actor likes the issue afterwards.
func (i *Issue) ToggleLike(actorID string) bool {
	if idx := slices.Index(i.LikedBy, actorID); idx >= 0 {
		i.LikedBy = slices.Delete(i.LikedBy, idx, idx+1)
		i.Likes = len(i.LikedBy)
		return false
	}
	i.LikedBy = append(i.LikedBy, actorID)
	i.Likes = len(i.LikedBy)
	return true
}
