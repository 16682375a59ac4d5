package services

import "securestop-backend/internal/models"

// InboxCapacity bounds the alert inbox; the oldest entries fall off
const InboxCapacity = 50

// InboxReceive returns a new inbox with msg at the front. An existing entry
// with the same id is replaced. Order is arrival order, not createdAt.
func InboxReceive(inbox []models.AlertMessage, msg models.AlertMessage) []models.AlertMessage {
	out := make([]models.AlertMessage, 0, min(len(inbox)+1, InboxCapacity))
	out = append(out, msg)
	for _, m := range inbox {
		if len(out) == InboxCapacity {
			break
		}
		if m.ID == msg.ID {
			continue
		}
		out = append(out, m)
	}
	return out
}

// InboxRemoveByID returns a new inbox without the entry for id
func InboxRemoveByID(inbox []models.AlertMessage, id string) []models.AlertMessage {
	out := make([]models.AlertMessage, 0, len(inbox))
	for _, m := range inbox {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
