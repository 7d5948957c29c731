package activitymap_test

import (
	"testing"
	"time"

	accounts "github.com/coursekit/go-accounts"
	"github.com/coursekit/go-accounts/activitymap"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeDefaults(t *testing.T) {
	occurred := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	normalized := activitymap.Normalize(accounts.ActivityEvent{
		EventType:  accounts.ActivityEventLoginSuccess,
		AccountID:  "acc-1",
		Email:      "peda@example.com",
		OccurredAt: occurred,
	})

	assert.Equal(t, "acc-1", normalized.ActorID)
	assert.Equal(t, "auth.login.success", normalized.Verb)
	assert.Equal(t, "account", normalized.ObjectType)
	assert.Equal(t, "acc-1", normalized.ObjectID)
	assert.Equal(t, "accounts", normalized.Channel)
	assert.Equal(t, occurred, normalized.OccurredAt)
	assert.Equal(t, "peda@example.com", normalized.Metadata[activitymap.MetadataKeyEmail])
}

func TestNormalizeActorFallback(t *testing.T) {
	normalized := activitymap.Normalize(accounts.ActivityEvent{
		EventType: accounts.ActivityEventVerified,
	})
	assert.Equal(t, "system", normalized.ActorID)

	normalized = activitymap.Normalize(accounts.ActivityEvent{
		EventType: accounts.ActivityEventVerified,
	}, activitymap.WithActorFallback("audit-job"))
	assert.Equal(t, "audit-job", normalized.ActorID)
}

func TestNormalizeOptions(t *testing.T) {
	normalized := activitymap.Normalize(accounts.ActivityEvent{
		EventType: accounts.ActivityEventRegistered,
		AccountID: "acc-1",
		Metadata:  map[string]any{"created": true},
	},
		activitymap.WithDefaultChannel("onboarding"),
		activitymap.WithDefaultObjectType("learner"),
		activitymap.WithObjectIDResolver(func(event accounts.ActivityEvent) string {
			return "learner:" + event.AccountID
		}),
	)

	assert.Equal(t, "onboarding", normalized.Channel)
	assert.Equal(t, "learner", normalized.ObjectType)
	assert.Equal(t, "learner:acc-1", normalized.ObjectID)
	assert.Equal(t, true, normalized.Metadata["created"])
}

func TestNormalizeDoesNotMutateEventMetadata(t *testing.T) {
	metadata := map[string]any{"provider": "google"}
	event := accounts.ActivityEvent{
		EventType: accounts.ActivityEventExternalLogin,
		AccountID: "acc-1",
		Email:     "peda@example.com",
		Metadata:  metadata,
	}

	normalized := activitymap.Normalize(event)

	assert.Contains(t, normalized.Metadata, activitymap.MetadataKeyEmail)
	assert.NotContains(t, metadata, activitymap.MetadataKeyEmail)
}

func TestNormalizeZeroOccurredAt(t *testing.T) {
	normalized := activitymap.Normalize(accounts.ActivityEvent{
		EventType: accounts.ActivityEventPasswordReset,
		AccountID: "acc-1",
	})
	assert.WithinDuration(t, time.Now().UTC(), normalized.OccurredAt, time.Minute)
}
