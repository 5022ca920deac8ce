package domain

import (
	"time"
)

// Role identifies the author of a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in a session's conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressKind tells which tool produced a progress log entry.
type ProgressKind string

const (
	ProgressKindUpdate  ProgressKind = "progress"
	ProgressKindCheckin ProgressKind = "checkin"
)

// ProgressLog records one tool input together with its result.
type ProgressLog struct {
	Input    string          `json:"input"`
	Kind     ProgressKind    `json:"kind"`
	Progress *ProgressUpdate `json:"progress,omitempty"`
	Checkin  *CheckinStatus  `json:"checkin,omitempty"`
}

// HandoffRecord is an audit entry for a transfer between agents.
type HandoffRecord struct {
	FromAgent string    `json:"from_agent"`
	ToAgent   string    `json:"to_agent"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the durable accumulated state for one user.
type Session struct {
	UID                 int64           `json:"uid"`
	Name                string          `json:"name"`
	Email               string          `json:"email,omitempty"`
	Goal                *Goal           `json:"goal,omitempty"`
	DietPreferences     string          `json:"diet_preferences,omitempty"`
	WorkoutPlan         *WorkoutPlan    `json:"workout_plan,omitempty"`
	MealPlan            []string        `json:"meal_plan,omitempty"`
	InjuryNotes         string          `json:"injury_notes,omitempty"`
	ProgressLogs        []ProgressLog   `json:"progress_logs"`
	ConversationHistory []Message       `json:"conversation_history"`
	HandoffLogs         []HandoffRecord `json:"handoff_logs"`
	CreatedAt           time.Time       `json:"created_at"`
	LastUpdated         time.Time       `json:"last_updated"`
}

// NewSession returns a session with every optional field unset.
func NewSession(uid int64, name, email string, now time.Time) *Session {
	now = now.UTC()
	return &Session{
		UID:         uid,
		Name:        name,
		Email:       email,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// AppendMessage adds an entry to the conversation history.
func (s *Session) AppendMessage(role Role, content string, at time.Time) {
	s.ConversationHistory = append(s.ConversationHistory, Message{
		Role:      role,
		Content:   content,
		Timestamp: at.UTC(),
	})
}

// AppendProgress adds an entry to the progress log.
func (s *Session) AppendProgress(entry ProgressLog) {
	s.ProgressLogs = append(s.ProgressLogs, entry)
}

// RecordHandoff appends a handoff audit entry.
func (s *Session) RecordHandoff(rec HandoffRecord) {
	rec.Timestamp = rec.Timestamp.UTC()
	s.HandoffLogs = append(s.HandoffLogs, rec)
}

// ClearHistory truncates the conversation history and leaves every other field untouched.
func (s *Session) ClearHistory() {
	s.ConversationHistory = []Message{}
}

// RecentMessages returns the last n conversation entries.
func (s *Session) RecentMessages(n int) []Message {
	if n <= 0 || n >= len(s.ConversationHistory) {
		return s.ConversationHistory
	}
	return s.ConversationHistory[len(s.ConversationHistory)-n:]
}

// Touch refreshes LastUpdated without ever moving it backwards.
func (s *Session) Touch(now time.Time) {
	now = now.UTC()
	if now.Before(s.LastUpdated) {
		return
	}
	s.LastUpdated = now
}

// Summary returns the listing projection of the session.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		UID:         s.UID,
		Name:        s.Name,
		Email:       s.Email,
		CreatedAt:   s.CreatedAt,
		LastUpdated: s.LastUpdated,
	}
}

// exportHistoryWindow is how many conversation entries an export carries.
const exportHistoryWindow = 10

// Export is a read-only projection of a session for reporting.
type Export struct {
	UserInfo            ExportUser      `json:"user_info"`
	Goal                *Goal           `json:"goals,omitempty"`
	DietPreferences     string          `json:"diet_preferences,omitempty"`
	WorkoutPlan         *WorkoutPlan    `json:"workout_plan,omitempty"`
	MealPlan            []string        `json:"meal_plan,omitempty"`
	InjuryNotes         string          `json:"injury_notes,omitempty"`
	ProgressLogs        []ProgressLog   `json:"progress_logs"`
	ConversationHistory []Message       `json:"conversation_history"`
	HandoffLogs         []HandoffRecord `json:"handoff_logs"`
}

// ExportUser is the identity block of an export.
type ExportUser struct {
	Name        string    `json:"name"`
	UID         int64     `json:"uid"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Export builds the reporting projection. It is a deep copy, so the export
// cannot alias the live session.
func (s *Session) Export() Export {
	recent := s.RecentMessages(exportHistoryWindow)
	exp := Export{
		UserInfo: ExportUser{
			Name:        s.Name,
			UID:         s.UID,
			Email:       s.Email,
			CreatedAt:   s.CreatedAt,
			LastUpdated: s.LastUpdated,
		},
		DietPreferences:     s.DietPreferences,
		MealPlan:            append([]string(nil), s.MealPlan...),
		InjuryNotes:         s.InjuryNotes,
		ProgressLogs:        make([]ProgressLog, len(s.ProgressLogs)),
		ConversationHistory: append([]Message(nil), recent...),
		HandoffLogs:         append([]HandoffRecord(nil), s.HandoffLogs...),
	}
	if s.Goal != nil {
		goal := *s.Goal
		exp.Goal = &goal
	}
	if s.WorkoutPlan != nil {
		plan := *s.WorkoutPlan
		plan.Days = append([]string(nil), plan.Days...)
		plan.FocusAreas = append([]string(nil), plan.FocusAreas...)
		exp.WorkoutPlan = &plan
	}
	for i, entry := range s.ProgressLogs {
		if entry.Progress != nil {
			p := *entry.Progress
			p.NextSteps = append([]string(nil), p.NextSteps...)
			entry.Progress = &p
		}
		if entry.Checkin != nil {
			c := *entry.Checkin
			c.Topics = append([]string(nil), c.Topics...)
			entry.Checkin = &c
		}
		exp.ProgressLogs[i] = entry
	}
	return exp
}
