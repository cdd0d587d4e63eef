package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrandingGatedByPremium(t *testing.T) {
	settings := &BusinessSettings{
		CustomHeaderText:    "Terima kasih",
		CustomHeaderBgColor: "#ff0000",
	}
	assert.Nil(t, settings.Branding(), "custom fields stay hidden without premium")

	settings.PremiumActive = true
	branding := settings.Branding()
	require.NotNil(t, branding)
	assert.Equal(t, "Terima kasih", branding["customHeaderText"])
	assert.Equal(t, "#ff0000", branding["customHeaderBgColor"])
}
