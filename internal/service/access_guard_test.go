package service

import (
	"context"
	"testing"
	"time"

	"doc-tracker/internal/model"
	"doc-tracker/internal/notify"
	"doc-tracker/pkg/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func createSpace(t *testing.T, f *fixture, space *model.Space) *model.Space {
	t.Helper()
	space.OwnerID = f.owner.ID
	if space.Name == "" {
		space.Name = "Data Room"
	}
	if space.Status == "" {
		space.Status = model.SpaceStatusActive
	}
	require.NoError(t, db.DB.Create(space).Error)
	return space
}

func TestAccessGuard_ExpiredSpaceIsArchived(t *testing.T) {
	f := newFixture(t)
	past := f.clock.Add(-time.Hour)
	space := createSpace(t, f, &model.Space{AutoExpiry: true, ExpiryDate: &past})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := f.guard.CheckSpace(ctx, space.ID, AccessRequest{RecordVisit: true})
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, CodeExpired, decision.Code)
	}

	var stored model.Space
	require.NoError(t, db.DB.First(&stored, space.ID).Error)
	assert.Equal(t, model.SpaceStatusArchived, stored.Status)
	assert.Empty(t, f.notifier.kinds())
}

func TestAccessGuard_ExpiryIgnoredWithoutAutoExpiry(t *testing.T) {
	f := newFixture(t)
	past := f.clock.Add(-time.Hour)
	space := createSpace(t, f, &model.Space{AutoExpiry: false, ExpiryDate: &past})

	decision, err := f.guard.CheckSpace(context.Background(), space.ID, AccessRequest{})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAccessGuard_Password(t *testing.T) {
	f := newFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	space := createSpace(t, f, &model.Space{PasswordHash: string(hash)})

	tests := []struct {
		name     string
		password string
		allowed  bool
	}{
		{name: "Missing password", password: "", allowed: false},
		{name: "Wrong password", password: "hunter3", allowed: false},
		{name: "Correct password", password: "hunter2", allowed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := f.guard.CheckSpace(context.Background(), space.ID, AccessRequest{Password: tt.password})
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.Equal(t, CodePasswordRequired, decision.Code)
			}
		})
	}
}

func TestAccessGuard_NDA(t *testing.T) {
	f := newFixture(t)
	space := createSpace(t, f, &model.Space{NDAEnabled: true, NDASigningRequired: true})
	require.NoError(t, db.DB.Create(&model.SpaceNDASignature{
		SpaceID: space.ID, Email: "Signer@Acme.io", SignedAt: f.clock,
	}).Error)

	tests := []struct {
		email   string
		allowed bool
	}{
		{email: "signer@acme.io", allowed: true},
		{email: "  SIGNER@acme.io ", allowed: true},
		{email: "other@acme.io", allowed: false},
		{email: "", allowed: false},
	}
	for _, tt := range tests {
		decision, err := f.guard.CheckSpace(context.Background(), space.ID, AccessRequest{Email: tt.email})
		require.NoError(t, err)
		assert.Equal(t, tt.allowed, decision.Allowed, tt.email)
		if !tt.allowed {
			assert.Equal(t, CodeNDARequired, decision.Code)
		}
	}
}

func TestAccessGuard_NDANotRequiredWhenSigningOptional(t *testing.T) {
	f := newFixture(t)
	space := createSpace(t, f, &model.Space{NDAEnabled: true, NDASigningRequired: false})

	decision, err := f.guard.CheckSpace(context.Background(), space.ID, AccessRequest{Email: "anyone@acme.io"})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAccessGuard_VisitorNotificationWindow(t *testing.T) {
	f := newFixture(t)
	space := createSpace(t, f, &model.Space{Name: "Board Pack", NotifyOnView: true})
	ctx := context.Background()
	req := AccessRequest{Email: "Lead@Acme.io", RecordVisit: true}

	check := func() {
		decision, err := f.guard.CheckSpace(ctx, space.ID, req)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	check()
	require.Equal(t, 1, f.notifier.count(notify.KindSpaceView, ""))
	n := f.notifier.last(notify.KindSpaceView)
	assert.Equal(t, "lead@acme.io", n.ViewerEmail)
	assert.Equal(t, "Board Pack", n.SpaceName)
	assert.Equal(t, space.ID, n.SpaceID)

	f.advance(3 * time.Hour)
	check()
	assert.Equal(t, 1, f.notifier.count(notify.KindSpaceView, ""))

	var visitors []model.SpaceVisitor
	require.NoError(t, db.DB.Where("space_id = ?", space.ID).Find(&visitors).Error)
	require.Len(t, visitors, 1)
	assert.Equal(t, int64(2), visitors[0].VisitCount)

	f.advance(25 * time.Hour)
	check()
	assert.Equal(t, 2, f.notifier.count(notify.KindSpaceView, ""))
}

func TestAccessGuard_AnonymousVisitor(t *testing.T) {
	f := newFixture(t)
	space := createSpace(t, f, &model.Space{NotifyOnView: true})

	decision, err := f.guard.CheckSpace(context.Background(), space.ID, AccessRequest{RecordVisit: true})
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	var visitor model.SpaceVisitor
	require.NoError(t, db.DB.Where("space_id = ?", space.ID).First(&visitor).Error)
	assert.Equal(t, "anonymous", visitor.Email)
	n := f.notifier.last(notify.KindSpaceView)
	require.NotNil(t, n)
	assert.Empty(t, n.ViewerEmail)
}

func TestAccessGuard_NoVisitorLogWithoutRecordVisit(t *testing.T) {
	f := newFixture(t)
	space := createSpace(t, f, &model.Space{NotifyOnView: true})

	decision, err := f.guard.CheckSpace(context.Background(), space.ID, AccessRequest{Email: "lead@acme.io"})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	var count int64
	require.NoError(t, db.DB.Model(&model.SpaceVisitor{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.notifier.kinds())
}

func TestAccessGuard_UnknownSpace(t *testing.T) {
	f := newFixture(t)
	_, err := f.guard.CheckSpace(context.Background(), 9999, AccessRequest{})
	assert.ErrorIs(t, err, ErrSpaceNotFound)
}
