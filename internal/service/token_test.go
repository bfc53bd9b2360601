package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
)

const testSecret = "test-secret-key-at-least-32-chars-long"

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	actor := entity.Actor{
		UserID:      uuid.New(),
		Role:        valueobject.RoleReviewer,
		Permissions: []string{entity.PermKPIReview, entity.PermKPIViewAll},
	}

	token, err := tm.Issue(actor)
	require.NoError(t, err)

	parsed, err := tm.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, actor, parsed)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	other := NewTokenManager("another-secret-key-at-least-32-chars", time.Hour)
	foreign, err := other.Issue(entity.Actor{UserID: uuid.New()})
	require.NoError(t, err)
	_, err = tm.ParseAccess(foreign)
	assert.Error(t, err)

	expired := NewTokenManager(testSecret, -time.Minute)
	old, err := expired.Issue(entity.Actor{UserID: uuid.New()})
	require.NoError(t, err)
	_, err = tm.ParseAccess(old)
	assert.Error(t, err)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "translator"})
	signed, err := noSubject.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = tm.ParseAccess(signed)
	assert.Error(t, err)

	_, err = tm.ParseAccess("not-a-token")
	assert.Error(t, err)
}
