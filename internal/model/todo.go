package model

// ToDo is a reminder-bearing task. ID doubles as the timer schedule key.
type ToDo struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"type:text;not null" json:"title"`
	When     int64  `gorm:"column:when_time;not null;index" json:"when"`
	Priority string `gorm:"type:text;not null" json:"priority"`
	Done     bool   `gorm:"not null;default:false" json:"done"`
	Notified bool   `gorm:"not null;default:false" json:"notified"`
	DoneAt   int64  `gorm:"column:done_at;not null;default:0" json:"doneAt"`
}

// ToDoInput carries the fields of a new to-do. Nil means the field was not supplied.
type ToDoInput struct {
	Title    *string `json:"title"`
	When     *int64  `json:"when"`
	Priority *string `json:"priority"`
}

// ToDoPatch is a partial to-do update; only non-nil fields are applied.
type ToDoPatch struct {
	Done   *bool  `json:"done"`
	DoneAt *int64 `json:"doneAt"`
	When   *int64 `json:"when"`
}

// Empty reports whether the patch carries no field at all.
func (p ToDoPatch) Empty() bool {
	return p.Done == nil && p.DoneAt == nil && p.When == nil
}

func (ToDo) TableName() string { return "todos" }
