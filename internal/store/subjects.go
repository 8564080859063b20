package store

import (
	"fmt"

	"github.com/google/uuid"
)

// SubjectPrefix roots every change-notification subject on the bus.
const SubjectPrefix = "typesprint.changes"

// Subject returns the NATS subject a change event is published on. Insert
// and update subjects carry the room id as their final token so subscribers
// can filter server-side. Delete subjects have no room token at all: the
// delete payload only knows the row id, so deletes fan out to every
// subscriber of the table.
func Subject(ev Event) string {
	if ev.Type == EventDelete {
		return fmt.Sprintf("%s.%s.%s", SubjectPrefix, ev.Table, ev.Type)
	}
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, ev.Table, ev.Type, ev.RoomID)
}

// SubscribeSubject returns the subject pattern matching the given table,
// event type and filter. The filter is ignored for deletes.
func SubscribeSubject(table Table, event EventType, filter Filter) string {
	if event == EventDelete {
		return fmt.Sprintf("%s.%s.%s", SubjectPrefix, table, event)
	}
	if filter.RoomID == uuid.Nil {
		return fmt.Sprintf("%s.%s.%s.*", SubjectPrefix, table, event)
	}
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, table, event, filter.RoomID)
}
