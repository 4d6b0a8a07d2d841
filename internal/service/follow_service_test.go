package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"snapshare/internal/models"
	"snapshare/internal/notifications"
	"snapshare/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowService_FollowTwiceRestoresBothViews(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")

	state, err := e.followSvc.FollowOrUnfollow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, Followed, state)

	following, err := e.follows.Following(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{alice.ID}, following)
	followers, err := e.follows.Followers(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, followers)

	state, err = e.followSvc.FollowOrUnfollow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, Unfollowed, state)

	following, err = e.follows.Following(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, following)
	followers, err = e.follows.Followers(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)
}

func TestFollowService_SelfFollowRejected(t *testing.T) {
	e := newEngine(t)
	alice := testutil.CreateUser(t, e.db, "alice")

	_, err := e.followSvc.FollowOrUnfollow(context.Background(), alice.ID, alice.ID)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Equal(t, "You can't follow/unfollow yourself", err.Error())
}

func TestFollowService_UnknownTarget(t *testing.T) {
	e := newEngine(t)
	alice := testutil.CreateUser(t, e.db, "alice")

	_, err := e.followSvc.FollowOrUnfollow(context.Background(), alice.ID, 404)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestFollowService_NotifiesOnFollowOnly(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")

	_, err := e.followSvc.FollowOrUnfollow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = e.followSvc.FollowOrUnfollow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	e.flush()
	sent := e.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, alice.ID, sent[0].recipientID)
	assert.Equal(t, notifications.EventFollow, sent[0].event.Type)
	assert.Equal(t, bob.ID, sent[0].event.ActorID)
	assert.Equal(t, "bob", sent[0].event.Actor.Username)
}

func TestFollowService_ConcurrentTogglesLeaveConsistentEdges(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, e.db, "alice")
	bob := testutil.CreateUser(t, e.db, "bob")
	carol := testutil.CreateUser(t, e.db, "carol")

	var fans []uint
	for i := 0; i < 8; i++ {
		fans = append(fans, testutil.CreateUser(t, e.db, fmt.Sprintf("fan%d", i)).ID)
	}

	var wg sync.WaitGroup
	toggle := func(actorID, targetID uint) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.followSvc.FollowOrUnfollow(ctx, actorID, targetID)
			assert.NoError(t, err)
		}()
	}
	for _, id := range fans {
		toggle(id, alice.ID)
	}
	// An even number of toggles cancels out, an odd number leaves one edge.
	for i := 0; i < 4; i++ {
		toggle(bob.ID, alice.ID)
	}
	for i := 0; i < 3; i++ {
		toggle(carol.ID, alice.ID)
	}
	wg.Wait()
	e.flush()

	followers, err := e.follows.Followers(ctx, alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, append(append([]uint(nil), fans...), carol.ID), followers)

	var carolEdges int64
	require.NoError(t, e.db.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", carol.ID, alice.ID).
		Count(&carolEdges).Error)
	assert.Equal(t, int64(1), carolEdges)

	bobFollowing, err := e.follows.Following(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobFollowing)
	carolFollowing, err := e.follows.Following(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{alice.ID}, carolFollowing)
}
