package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"rewardhub/internal/model"
	"rewardhub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayCreditsRejectedCallbackOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.callbacks.Process(ctx, "offerwall", offerwallPayload(t, "T1", "U1", "100"))
	require.ErrorIs(t, err, repository.ErrUserNotFound)
	orig, err := f.extTxs.GetByKey(ctx, "offerwall", "T1")
	require.NoError(t, err)

	// 用户注册同步延迟，补录后重放
	f.seedUser(t, "U1", 0, 30*24*time.Hour)

	res, err := f.replays.Replay(ctx, orig.ID, "ops")
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.EqualValues(t, 100, res.ReplayPoints)
	assert.Equal(t, model.ExternalTxStatusCredited, res.Status)
	assert.EqualValues(t, 100, f.balance(t, "U1"))

	replay, err := f.extTxs.GetByID(ctx, res.ReplayID)
	require.NoError(t, err)
	require.NotNil(t, replay.ReplayOf)
	assert.Equal(t, orig.ID, *replay.ReplayOf)
	assert.Equal(t, "T1#replay", replay.ProviderTxID)

	again, err := f.replays.Replay(ctx, orig.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, res.ReplayID, again.ReplayID)
	assert.EqualValues(t, 100, f.balance(t, "U1"))

	trail, err := f.pointTxs.ListByReference(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, model.PointTxTypeReplayCredit, trail[0].Type)

	_, err = f.replays.Replay(ctx, res.ReplayID, "ops")
	assert.ErrorIs(t, err, ErrNotReplayable)
}

func TestReplayOfCreditedCallbackSurfacesDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "U1", 0, 30*24*time.Hour)

	_, err := f.callbacks.Process(ctx, "offerwall", offerwallPayload(t, "T1", "U1", "100"))
	require.NoError(t, err)
	orig, err := f.extTxs.GetByKey(ctx, "offerwall", "T1")
	require.NoError(t, err)

	same, err := f.replays.Replay(ctx, orig.ID, "ops")
	require.NoError(t, err)
	assert.False(t, same.ConfigDrift)
	assert.False(t, same.Credited)
	assert.Equal(t, model.ExternalTxStatusDuplicate, same.Status)

	_, err = f.economy.Update(ctx, map[string]json.RawMessage{
		"providers": json.RawMessage(`{"offerwall": {"multiplier": "2", "minimum_value": 1, "maximum_credit": 100000}}`),
	}, "ops", nil)
	require.NoError(t, err)

	drift, err := f.replays.Replay(ctx, orig.ID, "ops")
	require.NoError(t, err)
	assert.True(t, drift.ConfigDrift)
	assert.EqualValues(t, 100, drift.OriginalPoints)
	assert.EqualValues(t, 200, drift.ReplayPoints)
	assert.False(t, drift.Credited)
	assert.NotEqual(t, same.ReplayID, drift.ReplayID)

	assert.EqualValues(t, 100, f.balance(t, "U1"))
}

func TestReplayMissingTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.replays.Replay(context.Background(), 404, "ops")
	assert.ErrorIs(t, err, repository.ErrExternalTxNotFound)
}

func TestReplayByProviderKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.callbacks.Process(ctx, "offerwall", offerwallPayload(t, "T1", "U1", "100"))
	require.ErrorIs(t, err, repository.ErrUserNotFound)
	f.seedUser(t, "U1", 0, 30*24*time.Hour)

	res, err := f.replays.ReplayByKey(ctx, "OfferWall", "T1", "ops")
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.EqualValues(t, 100, f.balance(t, "U1"))

	_, err = f.replays.ReplayByKey(ctx, "offerwall", "T404", "ops")
	assert.ErrorIs(t, err, repository.ErrExternalTxNotFound)
}
