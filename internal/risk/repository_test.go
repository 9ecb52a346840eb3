package risk

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebdris/venue-booking/internal/audit"
)

func TestStampPriorRiskRecordsStateAndScore(t *testing.T) {
	state := "hard"
	score := 82
	reviewer := uuid.New()
	entry := audit.NewEntry(uuid.New(), audit.EventApproved, map[string]interface{}{
		"reviewer": reviewer.String(),
	})

	stampPriorRisk(entry, &state, &score)

	assert.Equal(t, "hard", entry.Payload["prior_state"])
	assert.Equal(t, 82, entry.Payload["score"])
	assert.Equal(t, reviewer.String(), entry.Payload["reviewer"], "existing payload fields are kept")
}

func TestStampPriorRiskOnRejection(t *testing.T) {
	state := "soft"
	score := 45
	entry := audit.NewEntry(uuid.New(), audit.EventRejected, map[string]interface{}{
		"reason": "confirmed fraud pattern",
	})

	stampPriorRisk(entry, &state, &score)

	assert.Equal(t, "soft", entry.Payload["prior_state"])
	assert.Equal(t, 45, entry.Payload["score"])
	assert.Equal(t, "confirmed fraud pattern", entry.Payload["reason"])
}

func TestStampPriorRiskWithoutStoredRisk(t *testing.T) {
	entry := audit.NewEntry(uuid.New(), audit.EventApproved, nil)

	stampPriorRisk(entry, nil, nil)

	require.NotNil(t, entry.Payload)
	assert.Equal(t, "", entry.Payload["prior_state"])
	assert.NotContains(t, entry.Payload, "score", "no score key when the booking was never scored")
}
