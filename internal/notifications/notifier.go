package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"snapshare/internal/middleware"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "notifications:user:"

// envelope tags a payload with the publishing instance so an instance can skip
// its own messages; it has already delivered them locally.
type envelope struct {
	Origin  string `json:"origin"`
	Payload string `json:"payload"`
}

// Notifier publishes notifications into Redis channels and subscribes to them.
type Notifier struct {
	rdb    *redis.Client
	origin string
}

// NewNotifier creates a Notifier with a fresh instance id.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb, origin: uuid.NewString()}
}

// PublishUser sends payload to userID's channel. A nil client is a no-op.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	data, err := json.Marshal(envelope{Origin: n.origin, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return n.rdb.Publish(ctx, UserChannel(userID), data).Err()
}

// StartPatternSubscriber subscribes to notifications:user:* and calls
// onMessage for every message published by another instance. It returns once
// the subscription is confirmed; delivery stops when ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(userID uint, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				n.dispatch(msg, onMessage)
			}
		}
	}()

	return nil
}

func (n *Notifier) dispatch(msg *redis.Message, onMessage func(userID uint, payload string)) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("panic in notification subscriber",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	userID, ok := parseUserChannel(msg.Channel)
	if !ok {
		middleware.Logger.Warn("invalid notification channel", slog.String("channel", msg.Channel))
		return
	}
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		middleware.Logger.Warn("invalid notification envelope", slog.String("error", err.Error()))
		return
	}
	if env.Origin == n.origin {
		return
	}
	onMessage(userID, env.Payload)
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

func parseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
