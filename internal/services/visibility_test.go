package services

import (
	"fmt"
	"testing"

	"securestop-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestIsVisibleMatrix(t *testing.T) {
	expected := map[models.RecipientGroup]map[models.Role]bool{
		models.RecipientsBoth:    {models.RoleParent: true, models.RoleDriver: true, models.RoleAdmin: true},
		models.RecipientsParents: {models.RoleParent: true, models.RoleDriver: false, models.RoleAdmin: true},
		models.RecipientsSchool:  {models.RoleParent: false, models.RoleDriver: true, models.RoleAdmin: true},
		models.RecipientsDriver:  {models.RoleParent: false, models.RoleDriver: true, models.RoleAdmin: true},
	}

	prefs := models.DefaultNotificationPrefs()
	for _, origin := range []models.Role{models.RoleDriver, models.RoleAdmin, models.RoleParent} {
		for recipients, byRole := range expected {
			for role, want := range byRole {
				t.Run(fmt.Sprintf("%s/%s/%s", origin, recipients, role), func(t *testing.T) {
					msg := models.AlertMessage{ID: "a", Recipients: recipients, CreatedByRole: origin}
					assert.Equal(t, want, IsVisible(msg, role, prefs))
				})
			}
		}
	}
}

func TestIsVisiblePreferenceGating(t *testing.T) {
	roles := []models.Role{models.RoleParent, models.RoleDriver, models.RoleAdmin}
	both := models.RecipientsBoth

	t.Run("disabled hides everything", func(t *testing.T) {
		prefs := models.DefaultNotificationPrefs()
		prefs.Enabled = false
		for _, origin := range roles {
			for _, viewer := range roles {
				msg := models.AlertMessage{Recipients: both, CreatedByRole: origin}
				assert.False(t, IsVisible(msg, viewer, prefs))
			}
		}
	})

	t.Run("driver alerts", func(t *testing.T) {
		prefs := models.DefaultNotificationPrefs()
		prefs.ReceiveDriverAlerts = false
		for _, viewer := range roles {
			assert.False(t, IsVisible(models.AlertMessage{Recipients: both, CreatedByRole: models.RoleDriver}, viewer, prefs))
			assert.True(t, IsVisible(models.AlertMessage{Recipients: both, CreatedByRole: models.RoleAdmin}, viewer, prefs))
		}
	})

	t.Run("admin broadcasts", func(t *testing.T) {
		prefs := models.DefaultNotificationPrefs()
		prefs.ReceiveAdminBroadcasts = false
		for _, viewer := range roles {
			assert.False(t, IsVisible(models.AlertMessage{Recipients: both, CreatedByRole: models.RoleAdmin}, viewer, prefs))
			assert.True(t, IsVisible(models.AlertMessage{Recipients: both, CreatedByRole: models.RoleDriver}, viewer, prefs))
		}
	})

	t.Run("other origins pass gating", func(t *testing.T) {
		prefs := models.NotificationPrefs{Enabled: true}
		assert.True(t, IsVisible(models.AlertMessage{Recipients: both, CreatedByRole: models.RoleParent}, models.RoleAdmin, prefs))
	})
}
