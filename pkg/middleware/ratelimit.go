package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/geoguard/geoguard/pkg/httputil"
	"github.com/geoguard/geoguard/pkg/observability"
)

// Limit is a request budget: Requests per Window, plus Burst on top for a
// caller that has been idle
type Limit struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// Capacity is the most requests a fresh caller may make at once
func (l Limit) Capacity() int {
	return l.Requests + l.Burst
}

// AnonymousLimit applies to callers without a session, keyed by address
func AnonymousLimit() Limit {
	return Limit{Requests: 100, Window: time.Minute, Burst: 10}
}

// UserLimit applies to signed-in callers, keyed by user id
func UserLimit() Limit {
	return Limit{Requests: 1000, Window: time.Minute, Burst: 50}
}

// CredentialLimit applies to endpoints that accept passwords, license keys
// or invitation codes, keyed by address whoever the caller is
func CredentialLimit() Limit {
	return Limit{Requests: 10, Window: time.Minute, Burst: 5}
}

// Decision is the outcome of one Take
type Decision struct {
	Allowed   bool
	Remaining int
	// Reset is how long until the caller regains budget
	Reset time.Duration
}

// LimitStore spends budget for a key
type LimitStore interface {
	Take(ctx context.Context, key string, limit Limit) (Decision, error)
}

// MemoryLimitStore keeps one token bucket per key in process memory
type MemoryLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
	now     func() time.Time
}

type memoryBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimitStore creates an empty MemoryLimitStore
func NewMemoryLimitStore() *MemoryLimitStore {
	return &MemoryLimitStore{buckets: make(map[string]*memoryBucket), now: time.Now}
}

// Take implements LimitStore.Take
func (s *MemoryLimitStore) Take(_ context.Context, key string, limit Limit) (Decision, error) {
	now := s.now()
	refill := rate.Every(limit.Window / time.Duration(max(limit.Requests, 1)))

	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &memoryBucket{limiter: rate.NewLimiter(refill, limit.Capacity())}
		s.buckets[key] = b
	}
	b.lastSeen = now
	s.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	d := Decision{Allowed: allowed, Remaining: max(int(tokens), 0)}
	if tokens < 1 {
		d.Reset = time.Duration((1 - tokens) / float64(refill) * float64(time.Second))
	}
	return d, nil
}

// Sweep drops buckets idle for longer than idle
func (s *MemoryLimitStore) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports how many keys are tracked
func (s *MemoryLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// StartSweeper sweeps every interval until ctx is done
func (s *MemoryLimitStore) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(2 * interval)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware answers 429 once a caller has spent its budget
type RateLimitMiddleware struct {
	store     LimitStore
	anonymous Limit
	user      Limit
	// byAddress ignores the session and keys every caller by address
	byAddress bool
	failOpen  bool
	logger    *observability.Logger
	prefix    string
}

func newRateLimitMiddleware(store LimitStore, prefix string, logger *observability.Logger) *RateLimitMiddleware {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &RateLimitMiddleware{
		store:     store,
		anonymous: AnonymousLimit(),
		user:      UserLimit(),
		failOpen:  true,
		logger:    logger,
		prefix:    prefix,
	}
}

// NewRateLimitMiddleware limits in process memory with AnonymousLimit and
// UserLimit
func NewRateLimitMiddleware() *RateLimitMiddleware {
	return newRateLimitMiddleware(NewMemoryLimitStore(), "", nil)
}

// NewCredentialRateLimitMiddleware limits in process memory by address with
// CredentialLimit
func NewCredentialRateLimitMiddleware() *RateLimitMiddleware {
	m := newRateLimitMiddleware(NewMemoryLimitStore(), "", nil)
	m.anonymous = CredentialLimit()
	m.byAddress = true
	return m
}

// StartCleanup sweeps idle in-memory buckets; other stores expire on their own
func (m *RateLimitMiddleware) StartCleanup(ctx context.Context) {
	if mem, ok := m.store.(*MemoryLimitStore); ok {
		mem.StartSweeper(ctx, max(m.anonymous.Window, m.user.Window))
	}
}

// SetFallbackEnabled controls whether requests pass (true) or get a 503
// (false) when the store fails
func (m *RateLimitMiddleware) SetFallbackEnabled(enabled bool) {
	m.failOpen = enabled
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, limit := m.classify(r)

		d, err := m.store.Take(r.Context(), key, limit)
		if err != nil {
			m.logger.WithError(err).Warn("rate limiter unavailable")
			if m.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}

		setLimitHeaders(w, limit, d)
		if !d.Allowed {
			retry := max(int(d.Reset.Round(time.Second)/time.Second), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
				Error: "Too many requests. Try again in " + strconv.Itoa(retry) + " seconds.",
				Code:  "rate_limited",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) classify(r *http.Request) (string, Limit) {
	if !m.byAddress {
		if user, ok := CurrentUser(r.Context()); ok {
			return m.prefix + "user:" + user.ID, m.user
		}
	}
	return m.prefix + "ip:" + clientIP(r), m.anonymous
}

func setLimitHeaders(w http.ResponseWriter, limit Limit, d Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Capacity()))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(d.Reset).Unix(), 10))
}

// clientIP is the first X-Forwarded-For hop, then X-Real-IP, then the peer
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
