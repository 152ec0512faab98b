package videotoken_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avela/coursegate/internal/db"
	"github.com/avela/coursegate/internal/fingerprint"
	"github.com/avela/coursegate/internal/model"
	"github.com/avela/coursegate/internal/testutil"
	"github.com/avela/coursegate/internal/videotoken"
)

const (
	deviceA = "a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8"
	deviceB = "ffeeddccbbaa9988ffeeddccbbaa9988ffeeddccbbaa9988ffeeddccbbaa9988"
)

type fixture struct {
	svc     *videotoken.Service
	db      *sql.DB
	account *model.Account
	course  *model.Course
	lesson  *model.Lesson
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := testutil.NewDB(t)
	account := testutil.SeedAccount(t, database, "viewer@example.com", "member")
	course := testutil.SeedCourse(t, database, "go-basics")
	lesson := testutil.SeedLesson(t, database, course.ID, "vid-001")
	testutil.SeedPurchase(t, database, account.ID, course.ID)

	f := &fixture{
		db:      database,
		account: account,
		course:  course,
		lesson:  lesson,
		now:     time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = videotoken.NewService(database, 4*time.Hour, 3, 5*time.Minute)
	f.svc.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) otherAccount(t *testing.T) string {
	t.Helper()
	return testutil.SeedAccount(t, f.db, "other@example.com", "member").ID
}

func (f *fixture) adminAccount(t *testing.T) string {
	t.Helper()
	return testutil.SeedAccount(t, f.db, "admin@example.com", "admin").ID
}

func (f *fixture) issue(t *testing.T) *model.VideoToken {
	t.Helper()
	token, err := f.svc.Issue(f.account.ID, f.lesson.ID, f.course.ID, "203.0.113.7", "test-agent", "")
	require.NoError(t, err)
	return token
}

func TestIssue(t *testing.T) {
	f := newFixture(t)

	token := f.issue(t)
	assert.Len(t, token.Token, 64)
	assert.Equal(t, 3, token.MaxViews)
	assert.Equal(t, 3, token.RemainingViews())
	assert.Equal(t, f.now.Add(4*time.Hour), token.ExpiresAt)

	// Companion session starts provisional, derived from the client address.
	session, err := db.GetVideoSession(f.db, token.ID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, fingerprint.IsProvisional(session.Fingerprint))
	assert.Equal(t, fingerprint.Provisional("203.0.113.7"), session.Fingerprint)
}

func TestIssueWithoutEnrollment(t *testing.T) {
	f := newFixture(t)
	stranger := testutil.SeedAccount(t, f.db, "stranger@example.com", "member")

	_, err := f.svc.Issue(stranger.ID, f.lesson.ID, f.course.ID, "203.0.113.7", "test-agent", "")
	assert.ErrorIs(t, err, videotoken.ErrNoEnrollment)
}

func TestIssueLessonFromForeignCourse(t *testing.T) {
	f := newFixture(t)
	other := testutil.SeedCourse(t, f.db, "rust-basics")
	foreign := testutil.SeedLesson(t, f.db, other.ID, "vid-900")

	// The caller owns go-basics but names a lesson from another course.
	_, err := f.svc.Issue(f.account.ID, foreign.ID, f.course.ID, "203.0.113.7", "test-agent", "")
	assert.ErrorIs(t, err, videotoken.ErrNotFound)
}

func TestIssueBlockedByFreshSessionOnAnotherDevice(t *testing.T) {
	f := newFixture(t)

	first := f.issue(t)
	active, _, err := f.svc.Heartbeat(first.Token, f.account.ID, deviceA)
	require.NoError(t, err)
	require.True(t, active)

	// Device B asks for a fresh token while A's session is live.
	_, err = f.svc.Issue(f.account.ID, f.lesson.ID, f.course.ID, "198.51.100.9", "test-agent", deviceB)
	assert.ErrorIs(t, err, videotoken.ErrConcurrentSession)
}

func TestIssueSucceedsOnceSessionGoesStale(t *testing.T) {
	f := newFixture(t)

	first := f.issue(t)
	active, _, err := f.svc.Heartbeat(first.Token, f.account.ID, deviceA)
	require.NoError(t, err)
	require.True(t, active)

	f.advance(6 * time.Minute) // past the 5-minute liveness window

	second, err := f.svc.Issue(f.account.ID, f.lesson.ID, f.course.ID, "198.51.100.9", "test-agent", deviceB)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	// The stale claim was purged on the way in.
	session, err := db.GetVideoSession(f.db, first.ID)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestIssueSameDeviceNotBlocked(t *testing.T) {
	f := newFixture(t)

	first := f.issue(t)
	active, _, err := f.svc.Heartbeat(first.Token, f.account.ID, deviceA)
	require.NoError(t, err)
	require.True(t, active)

	// Same fingerprint re-requesting (page reload) is not a second device.
	_, err = f.svc.Issue(f.account.ID, f.lesson.ID, f.course.ID, "203.0.113.7", "test-agent", deviceA)
	assert.NoError(t, err)
}

func TestIssueWritesAuditTrail(t *testing.T) {
	f := newFixture(t)
	f.issue(t)

	// Issue audit rows are written asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		logs, err := db.ListAuditLogs(f.db, 10, 0, "token.issue")
		require.NoError(t, err)
		if len(logs) == 1 {
			assert.Equal(t, f.account.ID, logs[0].AccountID)
			assert.Equal(t, "video_token", logs[0].TargetType)
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("audit row for token.issue never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
