package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"snapshare/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	defaultOnlineSetKey   = "ws:online_users"
	defaultLastSeenPrefix = "ws:last_seen:"
	defaultLastSeenTTL    = 90 * time.Second
	defaultOfflineGrace   = 5 * time.Second
	defaultReaperInterval = 60 * time.Second

	presenceWriteTimeout = 2 * time.Second
)

// PresenceConfig tunes the Redis presence mirror. Zero values take defaults.
type PresenceConfig struct {
	OnlineSetKey       string
	LastSeenKeyPrefix  string
	LastSeenTTL        time.Duration
	OfflineGracePeriod time.Duration
	ReaperInterval     time.Duration
}

// PresenceTracker counts local connections per user and mirrors presence in
// Redis so other instances can tell whether a user is connected somewhere. A user whose last local socket
// closes stays online for the grace period, so quick reconnects do not flap.
type PresenceTracker struct {
	rdb *redis.Client

	mu            sync.RWMutex
	localConns    map[uint]int
	offlineTimers map[uint]*time.Timer
	offline       map[uint]bool

	onlineSetKey   string
	lastSeenPrefix string
	lastSeenTTL    time.Duration
	offlineGrace   time.Duration
	reaperInterval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresenceTracker creates a tracker and starts the Redis reaper when rdb is set.
func NewPresenceTracker(rdb *redis.Client, cfg PresenceConfig) *PresenceTracker {
	p := &PresenceTracker{
		rdb:            rdb,
		localConns:     make(map[uint]int),
		offlineTimers:  make(map[uint]*time.Timer),
		offline:        make(map[uint]bool),
		onlineSetKey:   defaultOnlineSetKey,
		lastSeenPrefix: defaultLastSeenPrefix,
		lastSeenTTL:    defaultLastSeenTTL,
		offlineGrace:   defaultOfflineGrace,
		reaperInterval: defaultReaperInterval,
		stopCh:         make(chan struct{}),
	}
	if cfg.OnlineSetKey != "" {
		p.onlineSetKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenKeyPrefix != "" {
		p.lastSeenPrefix = cfg.LastSeenKeyPrefix
	}
	if cfg.LastSeenTTL > 0 {
		p.lastSeenTTL = cfg.LastSeenTTL
	}
	if cfg.OfflineGracePeriod > 0 {
		p.offlineGrace = cfg.OfflineGracePeriod
	}
	if cfg.ReaperInterval > 0 {
		p.reaperInterval = cfg.ReaperInterval
	}

	if p.rdb != nil {
		go p.reaperLoop()
	}
	return p
}

// Stop ends the reaper and cancels pending offline timers.
func (p *PresenceTracker) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for userID, t := range p.offlineTimers {
			t.Stop()
			delete(p.offlineTimers, userID)
		}
		p.mu.Unlock()
	})
}

func (p *PresenceTracker) Register(ctx context.Context, userID uint) {
	p.mu.Lock()
	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
		delete(p.offlineTimers, userID)
	}
	p.localConns[userID]++
	p.offline[userID] = false
	p.mu.Unlock()

	p.Touch(ctx, userID)
}

// Touch refreshes the user's last-seen key.
func (p *PresenceTracker) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	pipe := p.rdb.TxPipeline()
	pipe.SAdd(ctx, p.onlineSetKey, uid)
	pipe.SetEx(ctx, p.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), p.lastSeenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		middleware.Logger.WarnContext(ctx, "presence touch failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
	}
}

// Unregister drops one local connection; the last one arms the offline timer.
func (p *PresenceTracker) Unregister(userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.localConns[userID]
	if !ok {
		return
	}
	if n > 1 {
		p.localConns[userID] = n - 1
		return
	}
	delete(p.localConns, userID)

	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
	}
	p.offlineTimers[userID] = time.AfterFunc(p.offlineGrace, func() {
		p.finalizeOffline(context.Background(), userID)
	})
}

// HasLocal reports whether userID holds a socket on this instance. It never
// touches Redis.
func (p *PresenceTracker) HasLocal(userID uint) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.localConns[userID] > 0
}

// SeenRecently reports a live last-seen key, written by whichever instance
// holds the user's socket.
func (p *PresenceTracker) SeenRecently(ctx context.Context, userID uint) bool {
	if p.rdb == nil {
		return false
	}
	n, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
	return err == nil && n > 0
}

// wentOffline reports whether the offline transition has been finalized for userID.
func (p *PresenceTracker) wentOffline(userID uint) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.offline[userID]
}

func (p *PresenceTracker) finalizeOffline(ctx context.Context, userID uint) {
	p.mu.Lock()
	delete(p.offlineTimers, userID)
	if p.localConns[userID] > 0 {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if p.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, presenceWriteTimeout)
		// Other instances holding a socket for the user restore the key on
		// their next pong or reaper pass.
		pipe := p.rdb.TxPipeline()
		pipe.Del(ctx, p.lastSeenKey(userID))
		pipe.SRem(ctx, p.onlineSetKey, strconv.FormatUint(uint64(userID), 10))
		if _, err := pipe.Exec(ctx); err != nil {
			middleware.Logger.WarnContext(ctx, "presence offline cleanup failed",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}

	p.mu.Lock()
	if p.localConns[userID] == 0 {
		p.offline[userID] = true
	}
	p.mu.Unlock()
}

// reapOnce removes online-set members whose last-seen key expired, and
// refreshes users that still hold a local connection.
func (p *PresenceTracker) reapOnce(ctx context.Context) {
	if p.rdb == nil {
		return
	}

	for _, userID := range p.localUserIDs() {
		p.Touch(ctx, userID)
	}

	members, err := p.rdb.SMembers(ctx, p.onlineSetKey).Result()
	if err != nil {
		return
	}
	for _, raw := range members {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			continue
		}
		n, err := p.rdb.Exists(ctx, p.lastSeenKey(uint(id))).Result()
		if err != nil || n > 0 {
			continue
		}
		_ = p.rdb.SRem(ctx, p.onlineSetKey, raw).Err()

		p.mu.Lock()
		if p.localConns[uint(id)] == 0 {
			p.offline[uint(id)] = true
		}
		p.mu.Unlock()
	}
}

func (p *PresenceTracker) reaperLoop() {
	ticker := time.NewTicker(p.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce(context.Background())
		}
	}
}

func (p *PresenceTracker) localUserIDs() []uint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]uint, 0, len(p.localConns))
	for userID := range p.localConns {
		ids = append(ids, userID)
	}
	return ids
}

func (p *PresenceTracker) lastSeenKey(userID uint) string {
	return p.lastSeenPrefix + strconv.FormatUint(uint64(userID), 10)
}
