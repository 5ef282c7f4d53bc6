package model

// Location is a room that tasks are assigned to. The location table is
// rewritten wholesale when rooms are edited, so ids always follow
// creation order.
type Location struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"not null"`
}
