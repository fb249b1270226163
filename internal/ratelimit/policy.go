package ratelimit

import "time"

// Policy maps an action onto the rows that count against it. The mapping is
// configuration, not logic: one generic counting routine consumes it instead
// of a bespoke query per call site.
type Policy struct {
	Action          Action
	Table           string
	SubjectColumn   string
	TimestampColumn string
	Window          time.Duration
	DefaultLimit    int
}

var policies = map[Action]Policy{
	ActionVisitsPerDay: {
		Action:          ActionVisitsPerDay,
		Table:           "visits",
		SubjectColumn:   "user_id",
		TimestampColumn: "created_at",
		Window:          24 * time.Hour,
		DefaultLimit:    30,
	},
	ActionListAddPerDay: {
		Action:          ActionListAddPerDay,
		Table:           "list_items",
		SubjectColumn:   "added_by",
		TimestampColumn: "created_at",
		Window:          24 * time.Hour,
		DefaultLimit:    100,
	},
	ActionFollowPerDay: {
		Action:          ActionFollowPerDay,
		Table:           "follows",
		SubjectColumn:   "follower_id",
		TimestampColumn: "created_at",
		Window:          24 * time.Hour,
		DefaultLimit:    200,
	},
	ActionVisitsUpdatePerHour: {
		Action:          ActionVisitsUpdatePerHour,
		Table:           "visits",
		SubjectColumn:   "user_id",
		TimestampColumn: "updated_at",
		Window:          time.Hour,
		DefaultLimit:    60,
	},
	// Subject is a client IP, not a user id.
	ActionSignupPerIPPerHour: {
		Action:          ActionSignupPerIPPerHour,
		Table:           "signup_throttle",
		SubjectColumn:   "ip_address",
		TimestampColumn: "created_at",
		Window:          time.Hour,
		DefaultLimit:    10,
	},
}

// PolicyFor returns the policy for an action.
func PolicyFor(action Action) (Policy, bool) {
	p, ok := policies[action]
	return p, ok
}

// Actions returns every known action kind.
func Actions() []Action {
	out := make([]Action, 0, len(policies))
	for a := range policies {
		out = append(out, a)
	}
	return out
}
