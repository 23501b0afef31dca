package audit

import "time"

type Entry struct {
	ID        int       `db:"id" json:"id"`
	AdminID   int       `db:"admin_id" json:"admin_id"`
	Action    string    `db:"action" json:"action"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  int       `db:"entity_id" json:"entity_id"`
	OldValue  string    `db:"old_value" json:"old_value"`
	NewValue  string    `db:"new_value" json:"new_value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
