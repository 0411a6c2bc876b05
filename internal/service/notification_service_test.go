package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vaultwatch/riskpulse/internal/dto"
	"github.com/vaultwatch/riskpulse/internal/hub"
	"github.com/vaultwatch/riskpulse/internal/model"
	"github.com/vaultwatch/riskpulse/internal/repository"
	"github.com/vaultwatch/riskpulse/pkg/apperror"
)

func newTestService(t *testing.T) (NotificationService, repository.NotificationRepository, *hub.Hub) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Notification{}))

	repo := repository.NewNotificationRepository(db)
	h := hub.New(8)
	return NewNotificationService(repo, h, nil, nil), repo, h
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	cases := []dto.CreateNotificationRequest{
		{Message: "m", Type: model.TypeInfo},
		{Title: "t", Type: model.TypeInfo},
		{Title: "t", Message: "m"},
		{Title: "t", Message: "m", Type: "shout"},
		{Title: "t", Message: "m", Type: model.TypeInfo, Priority: "whenever"},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, userID, input)
		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	}

	// No rows may exist after failed creates.
	rows, err := repo.ListByUser(ctx, userID, repository.NotificationFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreatePersistsUnreadAndPushesToStream(t *testing.T) {
	t.Parallel()

	svc, _, h := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	sub := h.Subscribe(userID)
	defer h.Unsubscribe(sub)

	created, err := svc.Create(ctx, userID, dto.CreateNotificationRequest{
		Title:    "Audit complete",
		Message:  "Contract scored 87/100",
		Type:     model.TypeSuccess,
		Category: "audit",
	})
	require.NoError(t, err)
	assert.False(t, created.Read)
	assert.Nil(t, created.ReadAt)

	select {
	case payload := <-sub.C():
		var pushed model.Notification
		require.NoError(t, json.Unmarshal(payload, &pushed))
		assert.Equal(t, created.ID, pushed.ID)
		assert.Equal(t, "Audit complete", pushed.Title)
		assert.Equal(t, "Contract scored 87/100", pushed.Message)
		assert.Equal(t, model.TypeSuccess, pushed.Type)
		assert.False(t, pushed.Read)
	case <-time.After(2 * time.Second):
		t.Fatal("no payload reached the delivery channel")
	}
}

func TestCreateSucceedsWithNoOpenStreams(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	created, err := svc.Create(ctx, userID, dto.CreateNotificationRequest{
		Title:   "t",
		Message: "m",
		Type:    model.TypeInfo,
	})
	require.NoError(t, err, "delivery is best-effort, create must not depend on it")

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	created, err := svc.Create(ctx, userID, dto.CreateNotificationRequest{
		Title: "t", Message: "m", Type: model.TypeInfo,
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, created.ID, userID))
	first, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, first.Read)
	require.NotNil(t, first.ReadAt)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, svc.MarkRead(ctx, created.ID, userID))
	second, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, second.ReadAt.Equal(*first.ReadAt), "second MarkRead must not move ReadAt")
}

func TestMarkReadOwnershipAndExistence(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	intruder := uuid.New()

	created, err := svc.Create(ctx, owner, dto.CreateNotificationRequest{
		Title: "t", Message: "m", Type: model.TypeInfo,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkRead(ctx, created.ID, intruder), apperror.ErrForbidden)
	assert.ErrorIs(t, svc.MarkRead(ctx, uuid.New(), owner), apperror.ErrNotFound)

	// The failed attempts must not have flipped the flag.
	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, stored.Read)
}

func TestRemoveChecksOwnership(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := svc.Create(ctx, owner, dto.CreateNotificationRequest{
		Title: "t", Message: "m", Type: model.TypeInfo,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Remove(ctx, created.ID, uuid.New()), apperror.ErrForbidden)
	assert.ErrorIs(t, svc.Remove(ctx, uuid.New(), owner), apperror.ErrNotFound)

	require.NoError(t, svc.Remove(ctx, created.ID, owner))
	_, err = repo.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSearchUnavailableWithoutIndex(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	_, err := svc.Search(context.Background(), uuid.New(), "liquidation", 10)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}
