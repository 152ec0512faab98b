package videotoken_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avela/coursegate/internal/db"
	"github.com/avela/coursegate/internal/videotoken"
)

func TestValidateIsReadOnly(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)

	for i := 0; i < 5; i++ {
		got, err := f.svc.Validate(token.Token, f.account.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.RemainingViews())
	}
}

func TestValidateForeignOwnerLooksAbsent(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)
	other := f.otherAccount(t)

	_, err := f.svc.Validate(token.Token, other)
	assert.ErrorIs(t, err, videotoken.ErrNotFound)
}

func TestValidateUnknownToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Validate("no-such-token", f.account.ID)
	assert.ErrorIs(t, err, videotoken.ErrNotFound)
}

func TestConsumeSpendsViewsThenExhausts(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)

	wantRemaining := []int{2, 1, 0}
	for _, want := range wantRemaining {
		got, err := f.svc.Consume(token.Token, f.account.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got.RemainingViews())
		assert.NotNil(t, got.LastUsedAt)
	}

	_, err := f.svc.Consume(token.Token, f.account.ID)
	assert.ErrorIs(t, err, videotoken.ErrExhausted)

	// The counter never passed the budget.
	row, err := db.GetVideoToken(f.db, token.Token)
	require.NoError(t, err)
	assert.Equal(t, row.MaxViews, row.ViewCount)
}

func TestConsumeExpiredFailsRegardlessOfBudget(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)

	f.advance(4*time.Hour + time.Minute)

	_, err := f.svc.Consume(token.Token, f.account.ID)
	assert.ErrorIs(t, err, videotoken.ErrExpired)
	_, err = f.svc.Validate(token.Token, f.account.ID)
	assert.ErrorIs(t, err, videotoken.ErrExpired)

	// The failed resolution consumed nothing.
	row, err := db.GetVideoToken(f.db, token.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, row.ViewCount)
}

func TestConsumeRevokedFailsWhileUnexpiredAndUnderBudget(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)

	admin := f.adminAccount(t)
	require.NoError(t, f.svc.Revoke(token.ID, "chargeback", admin, "192.0.2.1"))

	_, err := f.svc.Consume(token.Token, f.account.ID)
	assert.ErrorIs(t, err, videotoken.ErrRevoked)
	_, err = f.svc.Validate(token.Token, f.account.ID)
	assert.ErrorIs(t, err, videotoken.ErrRevoked)
}

func TestRevokeRecordsAudit(t *testing.T) {
	f := newFixture(t)
	token := f.issue(t)
	admin := f.adminAccount(t)

	require.NoError(t, f.svc.Revoke(token.ID, "shared publicly", admin, "192.0.2.1"))

	logs, err := db.ListAuditLogs(f.db, 10, 0, "token.revoke")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, admin, logs[0].AccountID)
	assert.Equal(t, token.ID, logs[0].TargetID)
	assert.Equal(t, "shared publicly", logs[0].Detail)

	row, err := db.GetVideoTokenByID(f.db, token.ID)
	require.NoError(t, err)
	assert.True(t, row.IsRevoked)
	assert.NotNil(t, row.RevokedAt)
	assert.Equal(t, "shared publicly", row.RevokedReason)
}

func TestRevokeUnknownToken(t *testing.T) {
	f := newFixture(t)
	admin := f.adminAccount(t)
	err := f.svc.Revoke("missing-id", "whatever", admin, "192.0.2.1")
	assert.ErrorIs(t, err, videotoken.ErrNotFound)
}
