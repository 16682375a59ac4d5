package services

import "securestop-backend/internal/models"

// audience lists which recipient groups each role can see
var audience = map[models.Role]map[models.RecipientGroup]bool{
	models.RoleAdmin: {
		models.RecipientsBoth:    true,
		models.RecipientsParents: true,
		models.RecipientsSchool:  true,
		models.RecipientsDriver:  true,
	},
	models.RoleDriver: {
		models.RecipientsBoth:   true,
		models.RecipientsSchool: true,
		models.RecipientsDriver: true,
	},
	models.RoleParent: {
		models.RecipientsBoth:    true,
		models.RecipientsParents: true,
	},
}

// IsVisible reports whether a viewer with role and prefs should see msg.
// Both the recipient matrix and the viewer's preferences must allow it.
func IsVisible(msg models.AlertMessage, role models.Role, prefs models.NotificationPrefs) bool {
	if !prefs.Enabled {
		return false
	}
	switch msg.CreatedByRole {
	case models.RoleDriver:
		if !prefs.ReceiveDriverAlerts {
			return false
		}
	case models.RoleAdmin:
		if !prefs.ReceiveAdminBroadcasts {
			return false
		}
	}
	return audience[role][msg.Recipients]
}
