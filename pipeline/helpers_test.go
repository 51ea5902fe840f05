package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/botguard/store"
	"github.com/jonwraymond/botguard/upstream"
)

const testToken = "123456:test-bot-token"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// scriptedCompleter fails the first failures calls with err, then answers.
type scriptedCompleter struct {
	calls    atomic.Int32
	failures int32 // negative fails every call
	err      error

	mu   sync.Mutex
	last upstream.CompletionRequest
}

func (c *scriptedCompleter) Complete(_ context.Context, req upstream.CompletionRequest) (string, error) {
	n := c.calls.Add(1)
	c.mu.Lock()
	c.last = req
	c.mu.Unlock()
	if c.failures < 0 || n <= c.failures {
		return "", c.err
	}
	return "  answer to: " + req.User + "\n", nil
}

func (c *scriptedCompleter) lastRequest() upstream.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

type recorderStub struct {
	mu     sync.Mutex
	events []store.DecisionEvent
	err    error
}

func (r *recorderStub) Record(_ context.Context, ev store.DecisionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorderStub) results() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Result
	}
	return out
}

type fixture struct {
	store     *store.Store
	pipeline  *Pipeline
	clock     *fakeClock
	completer *scriptedCompleter
	tenant    int64
}

type fixtureOption func(*Config, *Deps)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.Config{DSN: filepath.Join(t.TempDir(), "pipeline.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	_, err = st.SeedTexts(ctx, DefaultTexts())
	require.NoError(t, err)
	tenant, err := st.CreateCompany(ctx, store.Company{Name: "Acme", Token: testToken})
	require.NoError(t, err)

	f := &fixture{
		store:     st,
		clock:     newFakeClock(),
		completer: &scriptedCompleter{},
		tenant:    tenant,
	}

	cfg := DefaultConfig()
	cfg.Retry.Sleep = func(context.Context, time.Duration) error { return nil }
	deps := Deps{
		Texts:     st,
		Tenants:   st,
		Records:   st,
		Completer: f.completer,
		Clock:     f.clock.Now,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	f.pipeline, err = New(cfg, deps)
	require.NoError(t, err)
	return f
}

func withTranscriber(tr upstream.Transcriber) fixtureOption {
	return func(_ *Config, d *Deps) { d.Transcriber = tr }
}

func withRecorder(r DecisionRecorder) fixtureOption {
	return func(_ *Config, d *Deps) { d.Recorder = r }
}

func textMessage(text string) Message {
	return Message{UserID: 42, Username: "alice", BotToken: testToken, Text: text}
}

func voiceMessage() Message {
	return Message{UserID: 42, Username: "alice", BotToken: testToken, Voice: []byte("OggS fake audio")}
}

var errUpstreamDown = errors.New("upstream unavailable")

func withConfig(mutate func(*Config)) fixtureOption {
	return func(c *Config, _ *Deps) { mutate(c) }
}

// blockingRecorder holds every Record until its context ends.
type blockingRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *blockingRecorder) Record(ctx context.Context, _ store.DecisionEvent) error {
	<-ctx.Done()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, ctx.Err())
	return ctx.Err()
}
