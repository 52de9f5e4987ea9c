package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// RelationType describes how a service line turns its quantity into cost and duration.
type RelationType string

const (
	// RelationPlain prices a line as unit cost times quantity.
	RelationPlain RelationType = "plain"
	// RelationCleanerCount is the count half of a cleaners-by-hours pair.
	RelationCleanerCount RelationType = "cleaner_count"
	// RelationHoursCount is the hours half of a cleaners-by-hours pair.
	RelationHoursCount RelationType = "hours_count"
)

// KeyBedrooms tags the bedrooms line; zero bedrooms means a studio.
const KeyBedrooms = "bedrooms"

// Service is a catalog entry for a main service line.
type Service struct {
	ID           string          `json:"id"`
	GroupID      string          `json:"group_id"`
	Cost         decimal.Decimal `json:"cost"`
	TimeDuration decimal.Decimal `json:"time_duration"`
	RelationType RelationType    `json:"relation_type"`
	ServiceKey   string          `json:"service_key"`
}

// Extra is a catalog entry for an extra service (oven cleaning, deep clean, ...).
type Extra struct {
	ID                  string          `json:"id"`
	Price               decimal.Decimal `json:"price"`
	Duration            decimal.Decimal `json:"duration"`
	HasHours            bool            `json:"has_hours"`
	HasQuantity         bool            `json:"has_quantity"`
	IsDeepCleaning      bool            `json:"is_deep_cleaning"`
	IsSuperDeepCleaning bool            `json:"is_super_deep_cleaning"`
	PriceMultiplier     decimal.Decimal `json:"price_multiplier"`
	IsSameDayService    bool            `json:"is_same_day_service"`
}

// Kind distinguishes the two catalogs in errors.
type Kind string

const (
	KindService Kind = "service"
	KindExtra   Kind = "extra service"
)

// NotFoundError indicates a selection references a catalog entry that does not exist.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Repository defines read operations for both catalogs. Missing ids are
// silently skipped; callers decide whether absence is an error.
type Repository interface {
	ServicesByIDs(ctx context.Context, ids []string) ([]Service, error)
	ExtrasByIDs(ctx context.Context, ids []string) ([]Extra, error)
}
