// Package app assembles the rules assistant from the user settings: the
// library store, the session store, the model provider, the retriever and
// the reasoning agent.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/docker/rulelawyer/pkg/agent"
	"github.com/docker/rulelawyer/pkg/environment"
	"github.com/docker/rulelawyer/pkg/httpclient"
	"github.com/docker/rulelawyer/pkg/ingest"
	"github.com/docker/rulelawyer/pkg/library"
	"github.com/docker/rulelawyer/pkg/model/provider"
	"github.com/docker/rulelawyer/pkg/model/provider/base"
	provideropts "github.com/docker/rulelawyer/pkg/model/provider/options"
	"github.com/docker/rulelawyer/pkg/paths"
	"github.com/docker/rulelawyer/pkg/rag/fusion"
	"github.com/docker/rulelawyer/pkg/rag/index"
	"github.com/docker/rulelawyer/pkg/rag/retriever"
	"github.com/docker/rulelawyer/pkg/rag/tokenize"
	"github.com/docker/rulelawyer/pkg/rag/types"
	"github.com/docker/rulelawyer/pkg/session"
	"github.com/docker/rulelawyer/pkg/userconfig"
)

var (
	ErrNotStarted      = errors.New("agent is not started")
	ErrNoActiveLibrary = errors.New("no active library, import one with 'rulelawyer library import' and select it with 'rulelawyer library use'")
)

type options struct {
	env       environment.Provider
	model     agent.Model
	transport http.RoundTripper
	tracer    trace.Tracer
	onStep    func(agent.TraceEntry)
	onReload  func(id string, docs int, err error)
	sessions  session.Store
}

type Opt func(*options)

// WithEnvironment sets where API keys are looked up when the settings have
// none. Defaults to the process environment, the config .env file and the
// keyring.
func WithEnvironment(env environment.Provider) Opt {
	return func(o *options) {
		o.env = env
	}
}

// WithModel bypasses the configured provider.
func WithModel(model agent.Model) Opt {
	return func(o *options) {
		o.model = model
	}
}

// WithTransport routes model API traffic through rt.
func WithTransport(rt http.RoundTripper) Opt {
	return func(o *options) {
		o.transport = rt
	}
}

func WithTracer(tracer trace.Tracer) Opt {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithOnStep observes every trace entry of every invocation.
func WithOnStep(fn func(agent.TraceEntry)) Opt {
	return func(o *options) {
		o.onStep = fn
	}
}

// WithOnReload is told about every hot reload of the active library.
func WithOnReload(fn func(id string, docs int, err error)) Opt {
	return func(o *options) {
		o.onReload = fn
	}
}

// WithSessionStore replaces the SQLite session store.
func WithSessionStore(store session.Store) Opt {
	return func(o *options) {
		o.sessions = store
	}
}

type App struct {
	settings  userconfig.Settings
	opts      options
	libraries *library.Manager
	sessions  session.Store

	retriever *retriever.Retriever
	agent     *agent.Agent

	asking sync.Mutex

	mu        sync.Mutex
	libraryID string
	sessionID string
	observer  func(agent.TraceEntry)
}

// Open prepares the stores. The model is not contacted until StartAgent.
func Open(ctx context.Context, settings *userconfig.Settings, opts ...Opt) (*App, error) {
	a := &App{settings: *settings}
	for _, opt := range opts {
		opt(&a.opts)
	}

	dataDir := settings.ResolvedDataDir()

	libraries, err := library.NewManager(dataDir)
	if err != nil {
		return nil, err
	}
	a.libraries = libraries

	a.sessions = a.opts.sessions
	if a.sessions == nil {
		store, err := session.NewSQLiteStore(ctx, paths.SessionsDB(dataDir))
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		a.sessions = store
	}

	return a, nil
}

// ModelConfig maps the settings onto a provider configuration.
func ModelConfig(s *userconfig.Settings) *base.ModelConfig {
	return &base.ModelConfig{
		Provider:    s.Provider,
		Model:       s.Model,
		BaseURL:     s.BaseURL,
		APIKey:      s.APIKey,
		Temperature: s.Temperature,
	}
}

// AgentConfig maps the settings onto the loop parameters.
func AgentConfig(s *userconfig.Settings) agent.Config {
	cfg := agent.DefaultConfig()
	cfg.TopK = s.TopK
	cfg.PoolCapacity = s.PoolCapacity
	cfg.MaxRounds = s.MaxRounds
	cfg.ShortQueryThreshold = s.ShortQueryThreshold
	return cfg
}

// IndexOptions maps the settings onto the retrieval index parameters.
func IndexOptions(s *userconfig.Settings) ([]index.BuildOpt, error) {
	fuse, err := fusion.New(s.Fusion, s.FusionK, s.FusionWeights)
	if err != nil {
		return nil, err
	}
	return []index.BuildOpt{
		index.WithBM25Options(index.WithK1(s.BM25K1), index.WithB(s.BM25B), index.WithEpsilon(s.BM25Epsilon)),
		index.WithFusion(fuse),
	}, nil
}

// NewProvider creates the configured model client.
func (a *App) NewProvider(ctx context.Context) (provider.Provider, error) {
	env := a.opts.env
	if env == nil {
		env = environment.NewDefaultProvider(paths.GetConfigDir())
	}

	var httpOpts []httpclient.Opt
	if a.opts.transport != nil {
		httpOpts = append(httpOpts, httpclient.WithTransport(a.opts.transport))
	}

	return provider.New(ctx, ModelConfig(&a.settings), env,
		provideropts.WithHTTPClient(httpclient.NewHTTPClient(httpOpts...)))
}

// StartAgent creates the model client and the agent, and loads the active
// library when one is set.
func (a *App) StartAgent(ctx context.Context) error {
	model := a.opts.model
	if model == nil {
		p, err := a.NewProvider(ctx)
		if err != nil {
			return err
		}
		model = p
	}

	indexOpts, err := IndexOptions(&a.settings)
	if err != nil {
		return err
	}
	a.retriever = retriever.New(tokenize.New(),
		retriever.WithIndexKind(a.settings.Scorer),
		retriever.WithIndexOptions(indexOpts...),
	)
	if a.settings.ActiveLibrary != "" {
		if err := a.LoadLibrary(a.settings.ActiveLibrary); err != nil {
			return err
		}
	}

	ag, err := agent.New(
		agent.WithModel(model),
		agent.WithRetriever(a.retriever),
		agent.WithConfig(AgentConfig(&a.settings)),
		agent.WithTracer(a.opts.tracer),
		agent.WithOnStep(a.emit),
	)
	if err != nil {
		return err
	}
	a.agent = ag
	return nil
}

func (a *App) emit(e agent.TraceEntry) {
	if a.opts.onStep != nil {
		a.opts.onStep(e)
	}
	a.mu.Lock()
	observer := a.observer
	a.mu.Unlock()
	if observer != nil {
		observer(e)
	}
}

func (a *App) Settings() userconfig.Settings {
	return a.settings
}

func (a *App) Libraries() *library.Manager {
	return a.libraries
}

func (a *App) Sessions() session.Store {
	return a.sessions
}

// Agent returns the agent, or nil before StartAgent.
func (a *App) Agent() *agent.Agent {
	return a.agent
}

// Library returns the id of the loaded library.
func (a *App) Library() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.libraryID
}

// Session returns the id of the session questions are stored in.
func (a *App) Session() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// LoadLibrary indexes the documents of a library, replacing the current
// corpus.
func (a *App) LoadLibrary(id string) error {
	if a.retriever == nil {
		return ErrNotStarted
	}
	docs, err := a.libraries.LoadDocuments(id)
	if err != nil {
		return fmt.Errorf("loading library %s: %w", id, err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("library %s has no documents", id)
	}
	if err := a.retriever.Reload(docs); err != nil {
		return err
	}

	a.mu.Lock()
	a.libraryID = id
	a.mu.Unlock()

	slog.Info("Library loaded", "id", id, "documents", len(docs))
	return nil
}

// Search runs a single retrieval against the active library, outside of any
// conversation.
func (a *App) Search(ctx context.Context, query string, topK int) ([]types.Document, error) {
	if a.retriever == nil {
		return nil, ErrNotStarted
	}
	if topK <= 0 {
		topK = a.agent.Config().TopK
	}
	return a.retriever.Search(ctx, query, nil, topK)
}

// WatchLibrary reloads the active library whenever its documents change. It
// blocks until ctx is done.
func (a *App) WatchLibrary(ctx context.Context) error {
	id := a.Library()
	if id == "" {
		return ErrNoActiveLibrary
	}
	return a.libraries.Watch(ctx, id, func() {
		err := a.LoadLibrary(id)
		if err != nil {
			slog.Warn("Failed to reload library", "id", id, "error", err)
		}
		if a.opts.onReload != nil {
			a.opts.onReload(id, a.retriever.Len(), err)
		}
	})
}

// Import creates a library from a help archive or an extracted directory.
// A failed import leaves no library behind.
func (a *App) Import(ctx context.Context, title, description, source string, progress ingest.ProgressFunc) (library.Metadata, error) {
	meta, err := a.libraries.Create(title, description)
	if err != nil {
		return library.Metadata{}, err
	}

	pipeline := ingest.New(
		ingest.WithMarkup(a.settings.Markup),
		ingest.WithExtractor(ingest.SevenZip{Binary: a.settings.Extractor}),
	)
	docs, err := pipeline.Run(ctx, source, progress)
	if err == nil && len(docs) == 0 {
		err = fmt.Errorf("no pages with content found in %s", source)
	}
	if err != nil {
		if delErr := a.libraries.Delete(meta.ID); delErr != nil {
			slog.Warn("Failed to remove library after failed import", "id", meta.ID, "error", delErr)
		}
		return library.Metadata{}, err
	}

	if err := a.libraries.SaveDocuments(meta.ID, docs); err != nil {
		return library.Metadata{}, err
	}
	if progress != nil {
		progress(types.Progress{Fraction: 1, Message: fmt.Sprintf("done, %d documents", len(docs))})
	}
	return a.libraries.Get(meta.ID)
}

// Ask runs one question in the current session. It implements
// cli.Conversation.
func (a *App) Ask(ctx context.Context, question string) (*agent.Result, error) {
	return a.AskInSession(ctx, a.Session(), question, nil)
}

// AskInSession runs one question. With a session id, the agent first takes
// over that session's memory when it is not the current one, and the
// exchange is stored once it succeeds. When storing fails the result keeps
// its answer but carries the error, and the agent forgets the exchange.
// observe, when set, sees every trace entry of this invocation only.
func (a *App) AskInSession(ctx context.Context, sessionID, question string, observe func(agent.TraceEntry)) (*agent.Result, error) {
	if a.agent == nil {
		return nil, ErrNotStarted
	}
	if !a.asking.TryLock() {
		return nil, agent.ErrBusy
	}
	defer a.asking.Unlock()

	if sessionID != "" && sessionID != a.Session() {
		if err := a.useSession(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	a.mu.Lock()
	a.observer = observe
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.observer = nil
		a.mu.Unlock()
	}()

	before := a.agent.History()
	res, err := a.agent.Invoke(ctx, question)
	if err != nil {
		return res, err
	}

	if sessionID != "" {
		if err := a.store(ctx, sessionID, question, res); err != nil {
			a.agent.SetHistory(before)
			entry := agent.TraceEntry{Kind: agent.KindError, Label: "Error", Content: err.Error(), Timestamp: time.Now()}
			res.Trace = append(res.Trace, entry)
			res.Err = err
			a.emit(entry)
			return res, err
		}
	}
	return res, nil
}

// store saves the exchange as one unit, so a failure leaves no half-stored
// question behind.
func (a *App) store(ctx context.Context, sessionID, question string, res *agent.Result) error {
	if err := a.sessions.AddMessages(ctx, sessionID,
		session.Message{Role: session.RoleUser, Content: question},
		session.Message{Role: session.RoleAssistant, Content: res.Answer, Trace: Steps(res.Trace)},
	); err != nil {
		return fmt.Errorf("storing exchange: %w", err)
	}
	return nil
}

// UseSession makes a stored session current: the agent forgets its pool and
// takes over the session's last exchanges as memory.
func (a *App) UseSession(ctx context.Context, id string) error {
	if a.agent == nil {
		return ErrNotStarted
	}
	if !a.asking.TryLock() {
		return agent.ErrBusy
	}
	defer a.asking.Unlock()
	return a.useSession(ctx, id)
}

func (a *App) useSession(ctx context.Context, id string) error {
	sess, err := a.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.agent.Reset(); err != nil {
		return err
	}
	a.agent.SetHistory(Turns(sess.Messages))

	a.mu.Lock()
	a.sessionID = id
	a.mu.Unlock()
	return nil
}

// NewSession starts a stored session with a clean agent. It implements
// cli.Conversation.
func (a *App) NewSession(ctx context.Context) error {
	if a.agent == nil {
		return ErrNotStarted
	}
	if !a.asking.TryLock() {
		return agent.ErrBusy
	}
	defer a.asking.Unlock()

	sess, err := a.sessions.NewSession(ctx)
	if err != nil {
		return err
	}
	if err := a.agent.Reset(); err != nil {
		return err
	}

	a.mu.Lock()
	a.sessionID = sess.ID
	a.mu.Unlock()
	return nil
}

// Reset clears the document pool and the memory of the agent. It implements
// cli.Conversation.
func (a *App) Reset(context.Context) error {
	if a.agent == nil {
		return ErrNotStarted
	}
	return a.agent.Reset()
}

func (a *App) Close() error {
	var errs []error
	if a.retriever != nil {
		errs = append(errs, a.retriever.Close())
	}
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
	}
	return errors.Join(errs...)
}

// Steps converts a trace into its stored form.
func Steps(trace []agent.TraceEntry) []session.Step {
	steps := make([]session.Step, len(trace))
	for i, e := range trace {
		steps[i] = session.Step{
			Kind:    string(e.Kind),
			Label:   e.Label,
			Content: e.Content,
		}
	}
	return steps
}

// Turns pairs stored user messages with the assistant message that follows
// them. Unanswered questions are skipped.
func Turns(messages []session.Message) []types.Turn {
	var turns []types.Turn
	for i := 0; i+1 < len(messages); i++ {
		if messages[i].Role == session.RoleUser && messages[i+1].Role == session.RoleAssistant {
			turns = append(turns, types.Turn{User: messages[i].Content, Assistant: messages[i+1].Content})
			i++
		}
	}
	return turns
}
