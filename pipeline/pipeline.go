package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/botguard/cache"
	"github.com/jonwraymond/botguard/observe"
	"github.com/jonwraymond/botguard/resilience"
	"github.com/jonwraymond/botguard/store"
	"github.com/jonwraymond/botguard/upstream"
)

// Upstream operation names used in spans, metrics and retry logs.
const (
	OpCompletion    = "completion"
	OpTranscription = "transcription"
)

// Message is one inbound bot message after transport decoding.
type Message struct {
	UserID   int64
	Username string
	BotToken string
	Text     string

	// Voice holds the raw audio of a voice message. A message with voice
	// content is handled as voice even when Text is set.
	Voice []byte

	// VoiceName is the audio file name; its extension selects the decoder.
	// Default: "voice.ogg"
	VoiceName string
}

// Validate reports whether the message can be handled.
func (m Message) Validate() error {
	switch {
	case m.UserID == 0:
		return fmt.Errorf("%w: user id is required", ErrInvalidMessage)
	case strings.TrimSpace(m.BotToken) == "":
		return fmt.Errorf("%w: bot token is required", ErrInvalidMessage)
	case m.Text == "" && len(m.Voice) == 0:
		return fmt.Errorf("%w: message has no content", ErrInvalidMessage)
	}
	return nil
}

// Identity is the admission identity of the sender.
func (m Message) Identity() string {
	return strconv.FormatInt(m.UserID, 10)
}

// Category classifies the message for admission. Commands and language menu
// labels are exempt; voice messages and button presses are counted.
func (m Message) Category() resilience.Category {
	if len(m.Voice) > 0 {
		return resilience.CategoryWork
	}
	if strings.HasPrefix(m.Text, "/") {
		return resilience.CategoryCommand
	}
	if _, ok := LanguageCode(m.Text); ok {
		return resilience.CategoryMenu
	}
	return resilience.CategoryWork
}

// Reply is everything the transport should send back, in order.
type Reply struct {
	Messages []string

	// Keyboard holds reply keyboard buttons, one per row. Empty leaves the
	// current keyboard alone.
	Keyboard []string

	// Menu is true when Keyboard is the language menu.
	Menu bool

	// Throttled is true when admission denied the message.
	Throttled bool

	// RetryAfter is set with Throttled.
	RetryAfter time.Duration
}

// Records is the persistent state the pipeline reads and writes.
//
// Language returns an error wrapping store.ErrNotFound when the user has no
// preference.
type Records interface {
	Language(ctx context.Context, userID int64) (string, error)
	SetLanguage(ctx context.Context, userID int64, code string) error
	GetOrCreateLead(ctx context.Context, companyID, userID int64, username string) (store.Lead, error)
	SaveInteraction(ctx context.Context, in store.Interaction) (int64, error)
}

// DecisionRecorder receives every admission decision. Errors are logged and
// otherwise ignored.
type DecisionRecorder interface {
	Record(ctx context.Context, ev store.DecisionEvent) error
}

// Config configures a Pipeline.
type Config struct {
	Admission resilience.AdmissionConfig

	// Retry applies to each upstream call. A nil RetryIf defaults to
	// upstream.IsRetryable.
	Retry resilience.RetryConfig

	// CacheCapacity bounds the localized-text cache.
	// Default: 256
	CacheCapacity int

	// HitReportEvery logs text cache stats every N hits. Zero disables it.
	// Default: 50
	HitReportEvery int

	// ReportInterval is the period of the cache stats reporters started by
	// Start. Zero disables them.
	// Default: 1 hour
	ReportInterval time.Duration

	// JanitorInterval is the admission sweep period. Zero uses the window.
	JanitorInterval time.Duration

	// Concurrency caps in-flight upstream calls across both operations.
	// Default: 16
	Concurrency int

	// MaxWait is how long a call waits for a concurrency slot.
	// Default: 30 seconds
	MaxWait time.Duration

	// Rate limits upstream attempts per second across completion and
	// transcription, retries included. Zero is unlimited.
	Rate  float64
	Burst int

	// RecordTimeout bounds how long a DecisionRecorder may delay a reply.
	// Default: 250 milliseconds
	RecordTimeout time.Duration

	// AttemptTimeout bounds one upstream attempt. Zero leaves attempts
	// bounded by the client timeout only.
	// Default: 60 seconds
	AttemptTimeout time.Duration

	// Provider and models label upstream spans and metrics.
	Provider           string
	CompletionModel    string
	TranscriptionModel string
}

// DefaultConfig returns the stock pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Admission:      resilience.DefaultAdmissionConfig(),
		Retry:          resilience.DefaultRetryConfig(),
		CacheCapacity:  cache.DefaultCapacity,
		HitReportEvery: 50,
		ReportInterval: time.Hour,
		Concurrency:    16,
		MaxWait:        30 * time.Second,
		AttemptTimeout: time.Minute,
		RecordTimeout:  250 * time.Millisecond,
	}
}

// Deps are the collaborators of a Pipeline. Texts, Tenants, Records and
// Completer are required.
type Deps struct {
	Texts       cache.ReferenceSource
	Tenants     cache.TenantSource
	Records     Records
	Completer   upstream.Completer
	Transcriber upstream.Transcriber // nil answers voice messages with the retry text
	Recorder    DecisionRecorder     // optional
	Middleware  *observe.Middleware  // optional
	Clock       func() time.Time     // optional admission clock
}

// Pipeline handles inbound messages. It is safe for concurrent use.
type Pipeline struct {
	cfg Config

	admission *resilience.AdmissionController
	texts     *cache.LookupCache
	tenants   *cache.TenantCache

	records     Records
	completer   upstream.Completer
	transcriber upstream.Transcriber
	recorder    DecisionRecorder

	completion    *resilience.Executor
	transcription *resilience.Executor
	bulkhead      *resilience.Bulkhead

	mw     *observe.Middleware
	logger observe.Logger
	now    func() time.Time
}

// New builds a Pipeline from cfg and deps.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Texts == nil:
		return nil, fmt.Errorf("%w: texts source", ErrMissingDependency)
	case deps.Tenants == nil:
		return nil, fmt.Errorf("%w: tenant source", ErrMissingDependency)
	case deps.Records == nil:
		return nil, fmt.Errorf("%w: records", ErrMissingDependency)
	case deps.Completer == nil:
		return nil, fmt.Errorf("%w: completer", ErrMissingDependency)
	}

	mw := deps.Middleware
	if mw == nil {
		mw = observe.NopMiddleware()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	p := &Pipeline{
		cfg:         cfg,
		records:     deps.Records,
		completer:   deps.Completer,
		transcriber: deps.Transcriber,
		recorder:    deps.Recorder,
		mw:          mw,
		logger:      mw.Logger().With(observe.F("component", "pipeline")),
		now:         now,
	}

	admission, err := resilience.NewAdmissionController(cfg.Admission, resilience.WithAdmissionClock(now))
	if err != nil {
		return nil, fmt.Errorf("pipeline: admission: %w", err)
	}
	p.admission = admission

	capacity := cfg.CacheCapacity
	if capacity <= 0 {
		capacity = cache.DefaultCapacity
	}
	var textOpts []cache.BoundedOption[cache.LookupKey, string]
	if cfg.HitReportEvery > 0 {
		textOpts = append(textOpts, cache.WithHitReport[cache.LookupKey, string](cfg.HitReportEvery, func(s cache.Stats) {
			p.logger.Info(context.Background(), "text cache stats", observe.F("stats", s.String()))
		}))
	}
	if p.texts, err = cache.NewLookupCache(capacity, deps.Texts, textOpts...); err != nil {
		return nil, fmt.Errorf("pipeline: text cache: %w", err)
	}
	if p.tenants, err = cache.NewTenantCache(deps.Tenants); err != nil {
		return nil, fmt.Errorf("pipeline: tenant cache: %w", err)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 16
	}
	p.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
		MaxConcurrent: concurrency,
		MaxWait:       cfg.MaxWait,
	})

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(cfg.Burst, 1))
	}
	if p.completion, err = p.newExecutor(OpCompletion, limiter); err != nil {
		return nil, err
	}
	if p.transcription, err = p.newExecutor(OpTranscription, limiter); err != nil {
		return nil, err
	}

	if err := p.observeCaches(); err != nil {
		return nil, fmt.Errorf("pipeline: cache metrics: %w", err)
	}

	return p, nil
}

func (p *Pipeline) newExecutor(op string, limiter *rate.Limiter) (*resilience.Executor, error) {
	rc := p.cfg.Retry
	if rc.RetryIf == nil {
		rc.RetryIf = upstream.IsRetryable
	}
	onRetry, onExhausted := rc.OnRetry, rc.OnExhausted
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		p.logger.Warn(context.Background(), "upstream attempt failed",
			observe.F("op", op),
			observe.F("attempt", attempt),
			observe.F("retry_in_ms", delay.Milliseconds()),
			observe.Err(err),
		)
		p.mw.Metrics().RecordRetry(context.Background(), op, attempt)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}
	rc.OnExhausted = func(attempts int, err error) {
		p.logger.Error(context.Background(), "upstream retries exhausted",
			observe.F("op", op),
			observe.F("attempts", attempts),
			observe.Err(err),
		)
		if onExhausted != nil {
			onExhausted(attempts, err)
		}
	}

	retry, err := resilience.NewRetry(rc)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s retry: %w", op, err)
	}
	return resilience.NewExecutor(
		resilience.WithBulkhead(p.bulkhead),
		resilience.WithLimiter(limiter),
		resilience.WithRetry(retry),
		resilience.WithTimeout(p.cfg.AttemptTimeout),
	), nil
}

func (p *Pipeline) observeCaches() error {
	m := p.mw.Metrics()
	if err := m.ObserveCache("texts", func() observe.CacheSnapshot { return snapshot(p.texts.Stats()) }); err != nil {
		return err
	}
	return m.ObserveCache("tenants", func() observe.CacheSnapshot { return snapshot(p.tenants.Stats()) })
}

func snapshot(s cache.Stats) observe.CacheSnapshot {
	return observe.CacheSnapshot{Hits: s.Hits, Misses: s.Misses, Size: s.Size}
}

// Handle processes one message and returns the reply to send.
//
// A throttled message is answered without resolving the tenant or calling
// any upstream. Upstream failures are answered with localized error texts;
// only invalid input, an unknown tenant and storage failures return errors.
func (p *Pipeline) Handle(ctx context.Context, msg Message) (reply Reply, err error) {
	if err := msg.Validate(); err != nil {
		return Reply{}, err
	}

	ctx, span := p.mw.Tracer().StartSpan(ctx, observe.OpMeta{Kind: "pipeline", Name: "handle"})
	defer func() { p.mw.Tracer().EndSpan(span, err) }()

	decision := p.admission.Check(resilience.AdmissionRequest{
		Identity: msg.Identity(),
		Category: msg.Category(),
	})
	p.recordDecision(ctx, msg, decision)

	if !decision.Allowed {
		lang := p.language(ctx, msg.UserID)
		return Reply{
			Messages:   []string{p.text(ctx, TextRateLimit, lang)},
			Throttled:  true,
			RetryAfter: decision.RetryAfter,
		}, nil
	}

	tenant, err := p.tenants.Resolve(ctx, msg.BotToken)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return Reply{}, fmt.Errorf("%w: %w", ErrUnknownTenant, err)
		}
		return Reply{}, fmt.Errorf("pipeline: resolve tenant: %w", err)
	}

	if len(msg.Voice) > 0 {
		return p.handleVoice(ctx, tenant, msg)
	}
	if strings.HasPrefix(msg.Text, "/") {
		return p.handleCommand(ctx, tenant, msg)
	}
	if code, ok := LanguageCode(msg.Text); ok {
		return p.handleLanguage(ctx, msg, code)
	}
	return p.handleText(ctx, tenant, msg)
}

func (p *Pipeline) recordDecision(ctx context.Context, msg Message, d resilience.Decision) {
	result := observe.AdmissionAllowed
	switch {
	case d.Exempt:
		result = observe.AdmissionExempt
	case !d.Allowed:
		result = observe.AdmissionDenied
		p.logger.Warn(ctx, "admission denied",
			observe.F("user_id", msg.UserID),
			observe.F("count", d.Count),
			observe.F("limit", d.Limit),
			observe.F("retry_after_ms", d.RetryAfter.Milliseconds()),
		)
	}
	p.mw.Metrics().RecordAdmission(ctx, result)

	if p.recorder == nil {
		return
	}
	timeout := p.cfg.RecordTimeout
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	ev := store.DecisionEvent{Identity: msg.Identity(), Result: result, At: p.now()}
	if err := p.recorder.Record(rctx, ev); err != nil {
		p.logger.Warn(ctx, "decision not recorded", observe.F("result", result), observe.Err(err))
	}
}

// handleCommand answers /start with the language menu. Other commands show
// the menu as well so that an exempt message never reaches an upstream.
func (p *Pipeline) handleCommand(ctx context.Context, tenant int64, msg Message) (Reply, error) {
	if command(msg.Text) == "start" {
		if _, err := p.records.GetOrCreateLead(ctx, tenant, msg.UserID, msg.Username); err != nil {
			return Reply{}, fmt.Errorf("pipeline: start: %w", err)
		}
	}
	return menuReply(), nil
}

func (p *Pipeline) handleLanguage(ctx context.Context, msg Message, code string) (Reply, error) {
	if err := p.records.SetLanguage(ctx, msg.UserID, code); err != nil {
		return Reply{}, fmt.Errorf("pipeline: set language: %w", err)
	}
	p.logger.Info(ctx, "language changed", observe.F("user_id", msg.UserID), observe.F("language", code))
	return Reply{
		Messages: []string{p.text(ctx, TextWelcome, code)},
		Keyboard: p.mainKeyboard(ctx, code),
	}, nil
}

func (p *Pipeline) handleText(ctx context.Context, tenant int64, msg Message) (Reply, error) {
	lang := p.language(ctx, msg.UserID)

	switch msg.Text {
	case p.text(ctx, TextContact, lang):
		return Reply{Messages: []string{p.text(ctx, TextContactMessage, lang)}}, nil
	case p.text(ctx, TextAsk, lang):
		return Reply{Messages: []string{p.text(ctx, TextAskMessage, lang)}}, nil
	case p.text(ctx, TextChange, lang):
		return menuReply(), nil
	}

	lead, err := p.records.GetOrCreateLead(ctx, tenant, msg.UserID, msg.Username)
	if err != nil {
		return Reply{}, fmt.Errorf("pipeline: lead: %w", err)
	}

	think := p.text(ctx, TextThink, lang)
	answer, ok := p.complete(ctx, lang, msg.Text)
	if !ok {
		return Reply{Messages: []string{think, p.text(ctx, TextError, lang)}}, nil
	}

	p.saveInteraction(ctx, store.Interaction{
		CompanyID: tenant,
		LeadID:    lead.ID,
		Type:      store.InteractionText,
		Content:   msg.Text,
		Outcome:   answer,
	})
	return Reply{Messages: []string{think, answer}}, nil
}

func (p *Pipeline) handleVoice(ctx context.Context, tenant int64, msg Message) (Reply, error) {
	lang, err := p.records.Language(ctx, msg.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return menuReply(), nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("pipeline: language: %w", err)
	}

	lead, err := p.records.GetOrCreateLead(ctx, tenant, msg.UserID, msg.Username)
	if err != nil {
		return Reply{}, fmt.Errorf("pipeline: lead: %w", err)
	}

	think := p.text(ctx, TextThink, lang)
	transcript, ok := p.transcribe(ctx, lang, msg)
	if !ok {
		return Reply{Messages: []string{think, p.text(ctx, TextRetry, lang)}}, nil
	}

	said := p.text(ctx, TextSaid, lang) + " " + transcript
	answer, ok := p.complete(ctx, lang, transcript)
	if !ok {
		return Reply{Messages: []string{think, said, p.text(ctx, TextError, lang)}}, nil
	}

	p.saveInteraction(ctx, store.Interaction{
		CompanyID: tenant,
		LeadID:    lead.ID,
		Type:      store.InteractionVoice,
		Content:   transcript,
		Outcome:   answer,
	})
	return Reply{Messages: []string{think, said, answer}}, nil
}

func (p *Pipeline) complete(ctx context.Context, lang, question string) (string, bool) {
	meta := observe.OpMeta{Kind: "upstream", Name: OpCompletion, Provider: p.cfg.Provider, Model: p.cfg.CompletionModel}
	out := resilience.Run(ctx, p.completion, func(ctx context.Context) (string, error) {
		return observe.Call(ctx, p.mw, meta, func(ctx context.Context) (string, error) {
			return p.completer.Complete(ctx, upstream.CompletionRequest{
				System: upstream.SystemPrompt(lang),
				User:   question,
			})
		})
	})
	answer, ok := out.Get()
	if !ok {
		p.logger.Error(ctx, "no completion", observe.F("attempts", out.Attempts), observe.Err(out.Err))
		return "", false
	}
	return strings.TrimSpace(answer), true
}

func (p *Pipeline) transcribe(ctx context.Context, lang string, msg Message) (string, bool) {
	if p.transcriber == nil {
		p.logger.Warn(ctx, "voice message without transcriber", observe.F("user_id", msg.UserID))
		return "", false
	}

	meta := observe.OpMeta{Kind: "upstream", Name: OpTranscription, Provider: upstream.ProviderOpenAI, Model: p.cfg.TranscriptionModel}
	out := resilience.Run(ctx, p.transcription, func(ctx context.Context) (string, error) {
		return observe.Call(ctx, p.mw, meta, func(ctx context.Context) (string, error) {
			return p.transcriber.Transcribe(ctx, upstream.TranscriptionRequest{
				Audio:    msg.Voice,
				Filename: msg.VoiceName,
				Language: lang,
			})
		})
	})
	text, ok := out.Get()
	if !ok {
		p.logger.Error(ctx, "no transcription", observe.F("attempts", out.Attempts), observe.Err(out.Err))
		return "", false
	}
	p.logger.Info(ctx, "voice transcribed", observe.F("user_id", msg.UserID), observe.F("chars", len(text)))
	return strings.TrimSpace(text), true
}

// saveInteraction logs storage failures instead of returning them; the
// answer has already been paid for and is still delivered.
func (p *Pipeline) saveInteraction(ctx context.Context, in store.Interaction) {
	if _, err := p.records.SaveInteraction(ctx, in); err != nil {
		p.logger.Error(ctx, "interaction not saved",
			observe.F("lead_id", in.LeadID),
			observe.F("type", in.Type),
			observe.Err(err),
		)
	}
}

// language returns the user's preference or DefaultLanguage.
func (p *Pipeline) language(ctx context.Context, userID int64) string {
	lang, err := p.records.Language(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn(ctx, "language lookup failed", observe.F("user_id", userID), observe.Err(err))
		}
		return DefaultLanguage
	}
	return lang
}

// text resolves a localized string through the lookup cache. A source
// failure yields the not-found sentinel without caching it.
func (p *Pipeline) text(ctx context.Context, key, lang string) string {
	k := cache.LookupKey{Key: key, Locale: lang}
	s, err := p.texts.Get(ctx, k)
	if err != nil {
		p.logger.Warn(ctx, "text lookup failed", observe.F("key", k.String()), observe.Err(err))
		return cache.NotFoundText(k)
	}
	return s
}

func (p *Pipeline) mainKeyboard(ctx context.Context, lang string) []string {
	return []string{
		p.text(ctx, TextContact, lang),
		p.text(ctx, TextAsk, lang),
		p.text(ctx, TextChange, lang),
	}
}

func menuReply() Reply {
	return Reply{
		Messages: []string{MenuPrompt},
		Keyboard: LanguageLabels(),
		Menu:     true,
	}
}

// command returns the command name of text without the slash, arguments or
// a @botname suffix.
func command(text string) string {
	name, _, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

// Stats is a snapshot of the pipeline's in-memory state.
type Stats struct {
	Admission resilience.AdmissionStats
	Texts     cache.Stats
	Tenants   cache.Stats
	Upstream  resilience.BulkheadMetrics
}

// Stats returns a snapshot of admission, cache and bulkhead state.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Admission: p.admission.Stats(),
		Texts:     p.texts.Stats(),
		Tenants:   p.tenants.Stats(),
		Upstream:  p.bulkhead.Metrics(),
	}
}

// Admission returns the admission controller.
func (p *Pipeline) Admission() *resilience.AdmissionController { return p.admission }

// Texts returns the localized-text cache.
func (p *Pipeline) Texts() *cache.LookupCache { return p.texts }

// Tenants returns the tenant cache.
func (p *Pipeline) Tenants() *cache.TenantCache { return p.tenants }

// Start launches the admission janitor and the cache stats reporters. They
// run until ctx is done or stop is called; stop waits for all of them.
func (p *Pipeline) Start(ctx context.Context) (stop func()) {
	stopJanitor := p.admission.StartJanitor(ctx, p.cfg.JanitorInterval)
	stopTexts := cache.StartReporter(ctx, p.texts, p.cfg.ReportInterval, func(s cache.Stats) {
		p.logger.Info(ctx, "text cache stats", observe.F("stats", s.String()))
	})
	stopTenants := cache.StartReporter(ctx, p.tenants, p.cfg.ReportInterval, func(s cache.Stats) {
		p.logger.Info(ctx, "tenant cache stats", observe.F("stats", s.String()))
	})

	return func() {
		stopJanitor()
		stopTexts()
		stopTenants()
	}
}
