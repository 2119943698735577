package service

import (
	"context"
	"testing"
	"time"

	"github.com/psds-microservice/support-relay/internal/errs"
	"github.com/psds-microservice/support-relay/internal/model"
	"github.com/psds-microservice/support-relay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketLookupsAgree(t *testing.T) {
	ctx := context.Background()
	svc := NewTicketService(testutil.NewDB(t))

	created, err := svc.Create(ctx, "$orig", "!dm:example.org", "$mirror", "!it:example.org", "@alice:example.org")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	byOriginal, err := svc.FindByOriginal(ctx, "$orig", "!dm:example.org")
	require.NoError(t, err)
	byMirror, err := svc.FindByMirror(ctx, "$mirror", "!it:example.org")
	require.NoError(t, err)

	assert.Equal(t, byOriginal.ID, byMirror.ID)
	assert.Equal(t, "@alice:example.org", byMirror.Creator)
	assert.Equal(t, "!dm:example.org", byMirror.OriginalRoom)
	assert.Equal(t, "$orig", byMirror.OriginalMessage)
	assert.Equal(t, model.TicketStatusOpen, byMirror.Status)
}

func TestDeleteByIDRemovesBothPaths(t *testing.T) {
	ctx := context.Background()
	svc := NewTicketService(testutil.NewDB(t))

	created, err := svc.Create(ctx, "$orig", "!dm:example.org", "$mirror", "!it:example.org", "@alice:example.org")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteByID(ctx, created.ID))

	_, err = svc.FindByOriginal(ctx, "$orig", "!dm:example.org")
	assert.ErrorIs(t, err, errs.ErrTicketNotFound)
	_, err = svc.FindByMirror(ctx, "$mirror", "!it:example.org")
	assert.ErrorIs(t, err, errs.ErrTicketNotFound)

	all, err := svc.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPendingTicketLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewTicketService(testutil.NewDB(t))

	pending := &model.Ticket{
		OriginalMessage: "$orig",
		OriginalRoom:    "!dm:example.org",
		MirroredRoom:    "!it:example.org",
		Creator:         "@alice:example.org",
	}
	require.NoError(t, svc.CreatePending(ctx, pending))
	assert.Equal(t, model.TicketStatusPending, pending.Status)

	all, err := svc.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "pending tickets are not part of the mirror index")
	_, err = svc.FindByOriginal(ctx, "$orig", "!dm:example.org")
	assert.ErrorIs(t, err, errs.ErrTicketNotFound)

	stale, err := svc.ListPending(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, pending.ID, stale[0].ID)

	require.NoError(t, svc.Confirm(ctx, pending.ID, "$mirror"))
	assert.ErrorIs(t, svc.Confirm(ctx, pending.ID, "$mirror"), errs.ErrTicketNotFound, "already confirmed")

	byMirror, err := svc.FindByMirror(ctx, "$mirror", "!it:example.org")
	require.NoError(t, err)
	assert.Equal(t, pending.ID, byMirror.ID)

	stale, err = svc.ListPending(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	all, err = svc.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOriginalPairIsUnique(t *testing.T) {
	ctx := context.Background()
	svc := NewTicketService(testutil.NewDB(t))

	_, err := svc.Create(ctx, "$orig", "!dm:example.org", "$m1", "!it:example.org", "@alice:example.org")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "$orig", "!dm:example.org", "$m2", "!it:example.org", "@alice:example.org")
	assert.Error(t, err)
}
