package service

import (
	"errors"
	"testing"

	"notify24/internal/domain"
	"notify24/internal/models"
	"notify24/internal/queue"
	"notify24/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakePublisher struct {
	published []queue.DispatchMessage
	err       error
}

func (f *fakePublisher) Publish(msg queue.DispatchMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

type dispatchFixture struct {
	db        *gorm.DB
	svc       *DispatchService
	notifRepo *repository.NotificationRepository
	publisher *fakePublisher
	admin     *models.User
	sender    *models.User // non-admin, created by admin
	u1, u2    *models.User // created by sender
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Notification{}, &models.NotificationRecipient{}))

	userRepo := repository.NewUserRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	publisher := &fakePublisher{}

	f := &dispatchFixture{
		db:        db,
		notifRepo: notifRepo,
		publisher: publisher,
		svc:       NewDispatchService(notifRepo, userRepo, publisher),
	}

	f.admin = f.newUser(t, userRepo, "admin", domain.RoleAdmin, nil)
	f.sender = f.newUser(t, userRepo, "sender", domain.RoleUser, &f.admin.ID)
	f.u1 = f.newUser(t, userRepo, "u1", domain.RoleUser, &f.sender.ID)
	f.u2 = f.newUser(t, userRepo, "u2", domain.RoleUser, &f.sender.ID)
	return f
}

func (f *dispatchFixture) newUser(t *testing.T, repo *repository.UserRepository, name, role string, createdBy *uuid.UUID) *models.User {
	t.Helper()
	u := &models.User{
		Username:        name,
		Email:           name + "@example.com",
		Role:            role,
		CreatedByUserID: createdBy,
	}
	require.NoError(t, repo.Create(u))
	return u
}

func (f *dispatchFixture) recipientCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.NotificationRecipient{}).Count(&count).Error)
	return count
}

func TestDispatch_SelectedTargets(t *testing.T) {
	f := newDispatchFixture(t)

	n, count, err := f.svc.Dispatch(f.sender.ID, false, "Hi", "Test", "selected", []uuid.UUID{f.u1.ID, f.u2.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	recipients, err := f.notifRepo.ListRecipients(n.ID)
	require.NoError(t, err)
	assert.Len(t, recipients, 2)

	require.Len(t, f.publisher.published, 1, "exactly one job per dispatch")
	msg := f.publisher.published[0]
	assert.Equal(t, n.ID, msg.NotificationID)
	assert.Equal(t, f.sender.ID, msg.SenderUserID)
	assert.Len(t, msg.TargetUserIDs, 2)
}

func TestDispatch_SelectedDeduplicates(t *testing.T) {
	f := newDispatchFixture(t)

	_, count, err := f.svc.Dispatch(f.sender.ID, false, "Hi", "Test", "selected", []uuid.UUID{f.u1.ID, f.u1.ID, f.u1.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDispatch_SelectedOutsideEligibleSet(t *testing.T) {
	f := newDispatchFixture(t)

	// u1/u2 were created by sender, not by admin's other users; a stranger
	// id never intersects the eligible set.
	_, _, err := f.svc.Dispatch(f.sender.ID, false, "Hi", "Test", "selected", []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, ErrNoTargets)
	assert.Zero(t, f.recipientCount(t), "a failed dispatch must not leave rows behind")
	assert.Empty(t, f.publisher.published)
}

func TestDispatch_AllExcludesAdminCaller(t *testing.T) {
	f := newDispatchFixture(t)

	_, count, err := f.svc.Dispatch(f.admin.ID, true, "Hi", "Test", "all", nil)
	require.NoError(t, err)
	// Everyone except the admin caller: sender, u1, u2.
	assert.Equal(t, 3, count)
}

func TestDispatch_AllScopedToCreatedUsers(t *testing.T) {
	f := newDispatchFixture(t)

	_, count, err := f.svc.Dispatch(f.sender.ID, false, "Hi", "Test", "all", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDispatch_Validation(t *testing.T) {
	f := newDispatchFixture(t)

	_, _, err := f.svc.Dispatch(f.sender.ID, false, "  ", "Test", "all", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = f.svc.Dispatch(f.sender.ID, false, "Hi", "", "all", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = f.svc.Dispatch(f.sender.ID, false, "Hi", "Test", "broadcast", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = f.svc.Dispatch(f.sender.ID, false, "Hi", "Test", "selected", nil)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, f.recipientCount(t))
}

func TestDispatch_BrokerFailure(t *testing.T) {
	f := newDispatchFixture(t)
	f.publisher.err = errors.New("connection refused")

	_, _, err := f.svc.Dispatch(f.sender.ID, false, "Hi", "Test", "all", nil)
	assert.ErrorIs(t, err, ErrBrokerUnavailable)

	// Rows stay PENDING for the reconciliation sweep.
	assert.Equal(t, int64(2), f.recipientCount(t))
}

func TestSweepStalePending(t *testing.T) {
	f := newDispatchFixture(t)
	f.publisher.err = errors.New("connection refused")

	_, _, err := f.svc.Dispatch(f.sender.ID, false, "Hi", "Test", "all", nil)
	require.ErrorIs(t, err, ErrBrokerUnavailable)

	f.publisher.err = nil
	f.svc.SweepStalePending(0)

	require.Len(t, f.publisher.published, 1)
	assert.Len(t, f.publisher.published[0].TargetUserIDs, 2)
}
