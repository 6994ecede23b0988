package authguard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authguard/internal/clock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type mockUserProvider struct {
	mu        sync.Mutex
	users     map[string]UserRecord
	lookupErr error
	markErr   error
	marked    []string
}

func newMockUserProvider(emails ...string) *mockUserProvider {
	up := &mockUserProvider{users: make(map[string]UserRecord)}
	for _, e := range emails {
		up.users[e] = UserRecord{Email: e}
	}
	return up
}

func (m *mockUserProvider) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return UserRecord{}, m.lookupErr
	}
	u, ok := m.users[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserProvider) MarkEmailVerified(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	u := m.users[email]
	u.Email = email
	u.EmailVerified = true
	m.users[email] = u
	m.marked = append(m.marked, email)
	return nil
}

func (m *mockUserProvider) verified(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[email].EmailVerified
}

type sentMail struct {
	kind  string
	email string
	token string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *captureMailer) SendEmailVerification(_ context.Context, email, token string) error {
	return m.record("verify", email, token)
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string) error {
	return m.record("reset", email, token)
}

func (m *captureMailer) record(kind, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{kind: kind, email: email, token: token})
	return nil
}

func (m *captureMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("expected a sent mail")
	}
	return m.sent[len(m.sent)-1]
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testEngineOptions struct {
	cfg      *Config
	redis    redis.UniversalClient
	store    TokenStore
	users    *mockUserProvider
	mailer   *captureMailer
	sink     AuditSink
	noRedis  bool
	clockNow time.Time
}

type testEngine struct {
	*Engine
	clock  *clock.Manual
	users  *mockUserProvider
	mailer *captureMailer
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestEngine(t *testing.T, opts testEngineOptions) *testEngine {
	t.Helper()

	cfg := defaultConfig()
	if opts.cfg != nil {
		cfg = *opts.cfg
	}
	start := opts.clockNow
	if start.IsZero() {
		start = testEpoch
	}
	clk := clock.NewManual(start)

	users := opts.users
	if users == nil {
		users = newMockUserProvider("alice@example.com")
	}
	mailer := opts.mailer
	if mailer == nil {
		mailer = &captureMailer{}
	}

	te := &testEngine{clock: clk, users: users, mailer: mailer}

	b := New().
		WithConfig(cfg).
		WithClock(clk).
		WithLogger(quietLogger()).
		WithUserProvider(users).
		WithMailer(mailer)

	switch {
	case opts.redis != nil:
		b.WithRedis(opts.redis)
	case !opts.noRedis:
		te.mr, te.rdb = newTestRedis(t)
		t.Cleanup(te.mr.Close)
		b.WithRedis(te.rdb)
	}
	if opts.store != nil {
		b.WithTokenStore(opts.store)
	}
	if opts.sink != nil {
		b.WithAuditSink(opts.sink)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	te.Engine = engine
	return te
}

// memoryTokenStore is a TokenStore with first-deleter-wins semantics, used
// where tests need to fail or observe storage directly.
type memoryTokenStore struct {
	mu        sync.Mutex
	records   map[string]TokenRecord
	failAfter int
	calls     int
	err       error
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{records: make(map[string]TokenRecord), failAfter: -1}
}

func (s *memoryTokenStore) slot(purpose TokenPurpose, email string) string {
	return string(purpose) + "|" + email
}

func (s *memoryTokenStore) maybeFail() error {
	s.calls++
	if s.err != nil && s.failAfter >= 0 && s.calls > s.failAfter {
		return s.err
	}
	return nil
}

func (s *memoryTokenStore) Replace(_ context.Context, record TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	for k, r := range s.records {
		if r.Purpose == record.Purpose && r.ExpiresAt.Before(record.CreatedAt) {
			delete(s.records, k)
		}
	}
	s.records[s.slot(record.Purpose, record.Email)] = record
	return nil
}

func (s *memoryTokenStore) FindByHash(_ context.Context, purpose TokenPurpose, email, hash string) (*TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return nil, err
	}
	r, ok := s.records[s.slot(purpose, email)]
	if !ok || r.TokenHash != hash {
		return nil, ErrTokenNotFound
	}
	return &r, nil
}

func (s *memoryTokenStore) Delete(_ context.Context, record TokenRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return false, err
	}
	k := s.slot(record.Purpose, record.Email)
	r, ok := s.records[k]
	if !ok || r.ID != record.ID {
		return false, nil
	}
	delete(s.records, k)
	return true, nil
}

func (s *memoryTokenStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var errStoreDown = errors.New("connection refused")

// newPipelineServer serves the REST counter pipeline protocol from an
// in-process map. hits counts authorized pipeline calls.
func newPipelineServer(t testing.TB, token string, hits *atomic.Int64) *httptest.Server {
	t.Helper()

	var mu sync.Mutex
	counts := make(map[string]int64)
	ttls := make(map[string]int64)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pipeline" || r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var cmds [][]any
		if err := json.NewDecoder(r.Body).Decode(&cmds); err != nil || len(cmds) != 3 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		key, _ := cmds[0][1].(string)
		window, _ := cmds[1][2].(float64)
		hits.Add(1)

		mu.Lock()
		counts[key]++
		if _, ok := ttls[key]; !ok {
			ttls[key] = int64(window)
		}
		count, ttl := counts[key], ttls[key]
		mu.Unlock()

		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"result": count},
			{"result": 1},
			{"result": ttl},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}
