package types

import "time"

// PriorityScore is a derived, recomputable ranking value for a task
type PriorityScore struct {
	TaskID     string    `json:"task_id"`
	Urgency    float64   `json:"urgency"`
	Effort     float64   `json:"effort"`
	Focus      float64   `json:"focus"`
	Dependency float64   `json:"dependency"`
	Goal       float64   `json:"goal"`
	Composite  float64   `json:"composite"`
	ComputedAt time.Time `json:"computed_at"`
	Reasoning  string    `json:"reasoning,omitempty"`
}

// RankedTask pairs a task with the score it was ranked by
type RankedTask struct {
	Task  *Task         `json:"task"`
	Score PriorityScore `json:"score"`
}

// NotificationKind categorizes maintenance notifications
type NotificationKind string

const (
	NotifyOverdue          NotificationKind = "overdue"
	NotifyStuck            NotificationKind = "stuck"
	NotifyGoalAtRisk       NotificationKind = "goal_at_risk"
	NotifyRecurrenceFailed NotificationKind = "recurrence_failed"
)

// Notification is a fire-and-forget message for the notification sink
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	EntityID    string           `json:"entity_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Message     string           `json:"message,omitempty"`
}

// Key returns the deduplication key for the notification
func (n Notification) Key() string {
	return string(n.Kind) + ":" + n.EntityID
}
