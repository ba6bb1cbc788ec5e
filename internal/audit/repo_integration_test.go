//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"geoattend/internal/audit"
	"geoattend/internal/testutil/containers"
)

func TestPostgresRepository(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	repo := audit.NewPostgresRepository(pg.DB.Client)
	ctx := context.Background()

	userA, userB := uuid.NewString(), uuid.NewString()
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	lat, lon := 17.5, 78.5

	dup := audit.Event{ID: uuid.NewString(), UserID: userA, Kind: audit.KindDuplicateAttempt, Description: "dup", Timestamp: base}
	require.NoError(t, repo.Append(ctx, dup))
	require.NoError(t, repo.Append(ctx, dup), "redelivery is ignored")
	require.NoError(t, repo.Append(ctx, audit.Event{UserID: userA, Kind: audit.KindFailedGeofence, Description: "geo",
		Latitude: &lat, Longitude: &lon, Timestamp: base.Add(time.Minute)}))
	require.NoError(t, repo.Append(ctx, audit.Event{UserID: userB, Kind: audit.KindDuplicateAttempt, Description: "dup",
		Timestamp: base.Add(2 * time.Minute)}))

	all, err := repo.List(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, userB, all[0].UserID)
	require.NotNil(t, all[1].Latitude)
	require.InDelta(t, lat, *all[1].Latitude, 1e-9)

	onlyA, err := repo.List(ctx, audit.Filter{UserID: userA, Kind: audit.KindDuplicateAttempt})
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	require.Equal(t, dup.ID, onlyA[0].ID)

	none, err := repo.List(ctx, audit.Filter{UserID: "not-a-uuid"})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestWorkerPathThroughStoreSink(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	repo := audit.NewPostgresRepository(pg.DB.Client)
	ctx := context.Background()

	msg, err := audit.Encode(audit.Event{ID: uuid.NewString(), UserID: uuid.NewString(), Kind: audit.KindFailedGeofence})
	require.NoError(t, err)
	evt, err := audit.Decode(msg)
	require.NoError(t, err)

	audit.NewStoreSink(repo, nil).Record(ctx, evt)

	got, err := repo.List(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, evt.ID, got[0].ID)
}
