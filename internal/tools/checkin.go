package tools

import (
	"fmt"
	"time"

	"github.com/ashureev/wellness-planner/internal/domain"
)

const (
	checkinWeekday = time.Monday
	checkinHour    = 9
)

var checkinTopics = []string{
	"Progress towards your goals",
	"Current weight and measurements",
	"Workout completion rate",
	"Meal plan adherence",
	"Energy levels and mood",
	"Any challenges or obstacles",
}

// NextCheckin returns the next Monday at 09:00 in now's location. When now is
// a Monday the following week's Monday is returned.
func NextCheckin(now time.Time) time.Time {
	days := (int(checkinWeekday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	next := now.AddDate(0, 0, days)
	return time.Date(next.Year(), next.Month(), next.Day(), checkinHour, 0, 0, 0, now.Location())
}

// ScheduleCheckin schedules the next weekly check-in for uid.
func ScheduleCheckin(uid int64, now time.Time) (domain.CheckinStatus, error) {
	if uid <= 0 {
		return domain.CheckinStatus{}, fmt.Errorf("%w: user id must be positive, got %d", domain.ErrInvalidInput, uid)
	}
	return domain.CheckinStatus{
		Status:      "scheduled",
		UserID:      uid,
		NextCheckin: NextCheckin(now),
		Frequency:   "weekly",
		Reminder:    "You'll receive a reminder 24 hours before your check-in",
		Topics:      append([]string(nil), checkinTopics...),
	}, nil
}
