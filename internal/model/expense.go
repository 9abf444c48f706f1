package model

import "time"

// Expense is an append-only spending record.
type Expense struct {
	ID        int64   `gorm:"primaryKey" json:"id"`
	Item      string  `gorm:"type:text;not null" json:"item"`
	Amount    float64 `gorm:"not null" json:"amount"`
	Date      string  `gorm:"type:text;not null" json:"date"`
	Timestamp int64   `gorm:"not null;index" json:"timestamp"`
}

// ExpenseInput carries the fields of a new expense. Nil means the field was not supplied.
type ExpenseInput struct {
	Item      *string  `json:"item"`
	Amount    *float64 `json:"amount"`
	Date      *string  `json:"date"`
	Timestamp *int64   `json:"timestamp"`
}

// TimeFilter names a trailing window over expense timestamps.
type TimeFilter string

// Recognised time filters. Each window ends at the time of the query.
const (
	// TimeFilterAll applies no time limit.
	TimeFilterAll TimeFilter = "all"
	// TimeFilterToday keeps the last 24 hours.
	TimeFilterToday TimeFilter = "today"
	// TimeFilterWeek keeps the last 7 days.
	TimeFilterWeek TimeFilter = "week"
	// TimeFilterMonth keeps the last 30 days.
	TimeFilterMonth TimeFilter = "month"
	// TimeFilterYear keeps the last 365 days.
	TimeFilterYear TimeFilter = "year"
)

// Window returns the length of the trailing window, or zero for no limit.
// Unknown tags behave like TimeFilterAll.
func (f TimeFilter) Window() time.Duration {
	const day = 24 * time.Hour
	switch f {
	case TimeFilterToday:
		return day
	case TimeFilterWeek:
		return 7 * day
	case TimeFilterMonth:
		return 30 * day
	case TimeFilterYear:
		return 365 * day
	default:
		return 0
	}
}

// ExpenseQuery filters the expense listing.
type ExpenseQuery struct {
	Search     string     `form:"search"`
	TimeFilter TimeFilter `form:"timeFilter"`
}

func (Expense) TableName() string { return "expenses" }
