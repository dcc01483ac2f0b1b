package domain

import "time"

// ConditionMatch selects whether all or any conditions must hold.
type ConditionMatch string

const (
	MatchAll ConditionMatch = "all"
	MatchAny ConditionMatch = "any"
)

// ConditionField names the ticket attribute a condition inspects.
type ConditionField string

const (
	FieldPriority  ConditionField = "priority"
	FieldStatus    ConditionField = "status"
	FieldChannel   ConditionField = "channel"
	FieldTeamID    ConditionField = "team_id"
	FieldContactID ConditionField = "contact_id"
	FieldTag       ConditionField = "tag"
	FieldSubject   ConditionField = "subject"
)

// ConditionOperator is the comparison applied to the field.
type ConditionOperator string

const (
	OpEquals    ConditionOperator = "equals"
	OpNotEquals ConditionOperator = "not_equals"
	OpIn        ConditionOperator = "in"
	OpNotIn     ConditionOperator = "not_in"
	OpContains  ConditionOperator = "contains"
)

// Condition is one predicate of an SLA rule. Value is a string, or a list for in/not_in.
type Condition struct {
	Field    ConditionField    `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value"`
}

// ConditionSet is the JSON document stored on an SLA rule.
type ConditionSet struct {
	Match      ConditionMatch `json:"match"`
	Conditions []Condition    `json:"conditions"`
}

// SLARule defines response and resolution targets for matching tickets.
type SLARule struct {
	ID                   string
	TenantID             string
	Name                 string
	Description          string
	SortOrder            int
	IsActive             bool
	Conditions           ConditionSet
	FirstResponseMinutes int
	ResolutionMinutes    int
	BusinessHoursOnly    bool
	Audit
	SoftDelete
}

// SLAStatus is the evaluated state of a ticket against its targets.
type SLAStatus string

const (
	SLAStatusNone     SLAStatus = "NONE"
	SLAStatusOnTrack  SLAStatus = "ON_TRACK"
	SLAStatusAtRisk   SLAStatus = "AT_RISK"
	SLAStatusBreached SLAStatus = "BREACHED"
	SLAStatusMet      SLAStatus = "MET"
)

// DaySchedule is the open window of one weekday in "HH:MM" local time.
type DaySchedule struct {
	Open  bool   `json:"open"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Holiday is a closed calendar date in the tenant time zone.
type Holiday struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// BusinessHours is a tenant's weekly working schedule, indexed by time.Weekday.
type BusinessHours struct {
	TenantID string
	TimeZone string
	Days     [7]DaySchedule
	Holidays []Holiday
}

// DefaultBusinessHours is Monday to Friday 09:00-17:00 UTC.
func DefaultBusinessHours(tenantID string) BusinessHours {
	bh := BusinessHours{TenantID: tenantID, TimeZone: "UTC"}
	for day := time.Monday; day <= time.Friday; day++ {
		bh.Days[day] = DaySchedule{Open: true, Start: "09:00", End: "17:00"}
	}
	return bh
}

// Location resolves the schedule time zone, falling back to UTC.
func (b BusinessHours) Location() *time.Location {
	if b.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
