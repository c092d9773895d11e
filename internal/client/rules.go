package client

import (
	"time"

	"github.com/jango-blockchained/schichtplan-sub009/internal/domain/event"
	"github.com/jango-blockchained/schichtplan-sub009/internal/invalidation"
)

// Resource keys for the shift-planning caches.
const (
	KeySchedules      = "schedules"
	KeyAvailabilities = "availabilities"
	KeyAbsences       = "absences"
	KeySettings       = "settings"
	KeyCoverage       = "coverage"
	KeyShiftTemplates = "shift-templates"
)

// Route maps an inbound topic to the resource keys it invalidates. Forced
// routes bypass debouncing entirely.
type Route struct {
	Topic string
	Keys  []string
	Force bool
}

// DefaultRules is the invalidation configuration for the shift-planning UI.
// Schedule edits arrive in bursts during generation, so schedules and the
// coverage view they feed are grouped and debounced hard; settings changes
// are rare and correctness-critical.
func DefaultRules() []invalidation.Rule {
	return []invalidation.Rule{
		{
			Key:        KeySchedules,
			Debounce:   500 * time.Millisecond,
			MaxWait:    2 * time.Second,
			Priority:   invalidation.PriorityHigh,
			BatchGroup: []string{KeyCoverage},
		},
		{
			Key:      KeyAvailabilities,
			Debounce: 750 * time.Millisecond,
			MaxWait:  3 * time.Second,
			Priority: invalidation.PriorityMedium,
		},
		{
			Key:      KeyAbsences,
			Debounce: 750 * time.Millisecond,
			MaxWait:  3 * time.Second,
			Priority: invalidation.PriorityMedium,
		},
		{
			Key:      KeySettings,
			Debounce: 300 * time.Millisecond,
			MaxWait:  time.Second,
			Priority: invalidation.PriorityHigh,
		},
		{
			Key:      KeyCoverage,
			Debounce: time.Second,
			MaxWait:  5 * time.Second,
			Priority: invalidation.PriorityLow,
		},
		{
			Key:      KeyShiftTemplates,
			Debounce: time.Second,
			MaxWait:  5 * time.Second,
			Priority: invalidation.PriorityLow,
		},
	}
}

// DefaultRoutes maps every broadcast topic onto the caches it invalidates.
func DefaultRoutes() []Route {
	return []Route{
		{Topic: event.TopicScheduleUpdated, Keys: []string{KeySchedules}},
		{Topic: event.TopicAvailabilityUpdated, Keys: []string{KeyAvailabilities}},
		{Topic: event.TopicAbsenceUpdated, Keys: []string{KeyAbsences}},
		{Topic: event.TopicSettingsUpdated, Keys: []string{KeySettings}, Force: true},
		{Topic: event.TopicCoverageUpdated, Keys: []string{KeyCoverage}},
		{Topic: event.TopicShiftTemplateUpdated, Keys: []string{KeyShiftTemplates}},
	}
}
