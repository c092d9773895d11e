// Package event defines the closed set of domain event topics broadcast to
// real-time clients, and the payload shapes published on them.
package event

// Topic names. Connections subscribe to these; the dispatcher publishes on them.
const (
	TopicScheduleUpdated      = "schedule_updated"
	TopicAvailabilityUpdated  = "availability_updated"
	TopicAbsenceUpdated       = "absence_updated"
	TopicSettingsUpdated      = "settings_updated"
	TopicCoverageUpdated      = "coverage_updated"
	TopicShiftTemplateUpdated = "shift_template_updated"
)

// topics is the closed topic set. Order is stable for iteration in tests.
var topics = []string{
	TopicScheduleUpdated,
	TopicAvailabilityUpdated,
	TopicAbsenceUpdated,
	TopicSettingsUpdated,
	TopicCoverageUpdated,
	TopicShiftTemplateUpdated,
}

// Topics returns the closed set of broadcastable topic names.
func Topics() []string {
	out := make([]string, len(topics))
	copy(out, topics)
	return out
}

// IsValid reports whether name is one of the known topics.
func IsValid(name string) bool {
	for _, t := range topics {
		if t == name {
			return true
		}
	}
	return false
}

// ScheduleUpdatedEvent is published when shifts for a date change.
type ScheduleUpdatedEvent struct {
	Date      string `json:"date"`
	VersionID string `json:"version_id,omitempty"`
}

// AvailabilityUpdatedEvent is published when an employee's availability changes.
type AvailabilityUpdatedEvent struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date,omitempty"`
}

// AbsenceUpdatedEvent is published when an absence is created, changed or deleted.
type AbsenceUpdatedEvent struct {
	EmployeeID string `json:"employee_id"`
	AbsenceID  string `json:"absence_id,omitempty"`
}

// SettingsUpdatedEvent is published when store settings change.
type SettingsUpdatedEvent struct {
	Section string `json:"section,omitempty"`
}

// CoverageUpdatedEvent is published when coverage requirements change.
type CoverageUpdatedEvent struct {
	DayIndex int `json:"day_index"`
}

// ShiftTemplateUpdatedEvent is published when a shift template changes.
type ShiftTemplateUpdatedEvent struct {
	TemplateID string `json:"template_id"`
}
