// Package service orchestrates the pipeline: it builds per-session indexes
// from document directories and answers queries against them.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragreader/internal/composer"
	"ragreader/internal/domain"
	"ragreader/internal/logger"
	"ragreader/internal/retriever"
)

const (
	DefaultBuildTimeout = 10 * time.Minute
	maxFinishedBuilds   = 256
)

// DocumentLoader reads every supported document in a directory.
type DocumentLoader interface {
	Load(ctx context.Context, dir string) ([]domain.Document, error)
}

// Deps are the pipeline stages the service drives. Summarizer may be nil.
type Deps struct {
	Loader     DocumentLoader
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Builder    domain.IndexBuilder
	Retriever  *retriever.Retriever
	Composer   *composer.Composer
	Summarizer domain.Summarizer
}

type Option func(*Service)

// WithBuildTimeout bounds background builds.
func WithBuildTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.buildTimeout = d
		}
	}
}

// WithSummarySentences sets the length of build summaries.
func WithSummarySentences(n int) Option {
	return func(s *Service) { s.summarySentences = n }
}

type build struct {
	mu     sync.Mutex
	status BuildStatus
	done   chan struct{}
}

func (b *build) snapshot() BuildStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Service is safe for concurrent use.
type Service struct {
	deps             Deps
	buildTimeout     time.Duration
	summarySentences int
	sessions         *SessionStore

	mu       sync.Mutex
	builds   map[BuildHandle]*build
	finished []BuildHandle

	wg sync.WaitGroup
}

func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		deps:             deps,
		buildTimeout:     DefaultBuildTimeout,
		summarySentences: 5,
		sessions:         NewSessionStore(),
		builds:           make(map[BuildHandle]*build),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process runs a build synchronously and returns its final status. On
// failure the session keeps serving its previous index.
func (s *Service) Process(ctx context.Context, session, dir string) (BuildStatus, error) {
	sess, b, err := s.start(session, dir)
	if err != nil {
		return BuildStatus{}, err
	}
	st := s.run(ctx, sess, b)
	return st, st.Err
}

// SubmitDocuments starts a build in the background and returns its handle
// immediately. The build is not tied to the caller's lifetime; it is bounded
// by the build timeout.
func (s *Service) SubmitDocuments(session, dir string) (BuildHandle, error) {
	sess, b, err := s.start(session, dir)
	if err != nil {
		return "", err
	}
	id := b.status.ID // run owns b.status from here on
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.buildTimeout)
		defer cancel()
		st := s.run(ctx, sess, b)
		if st.Err != nil {
			logger.Error("background build %s for session %q failed: %v", st.ID, st.Session, st.Err)
		}
	}()
	return id, nil
}

// Status returns the current status of a build.
func (s *Service) Status(h BuildHandle) (BuildStatus, error) {
	s.mu.Lock()
	b, ok := s.builds[h]
	s.mu.Unlock()
	if !ok {
		return BuildStatus{}, fmt.Errorf("%w: %s", domain.ErrUnknownBuild, h)
	}
	return b.snapshot(), nil
}

// Wait blocks until the build finishes or ctx is done. The returned error is
// the build's own error, or ctx's.
func (s *Service) Wait(ctx context.Context, h BuildHandle) (BuildStatus, error) {
	s.mu.Lock()
	b, ok := s.builds[h]
	s.mu.Unlock()
	if !ok {
		return BuildStatus{}, fmt.Errorf("%w: %s", domain.ErrUnknownBuild, h)
	}
	select {
	case <-b.done:
		st := b.snapshot()
		return st, st.Err
	case <-ctx.Done():
		return b.snapshot(), ctx.Err()
	}
}

// Clear drops a session and its index. It reports whether the session
// existed and fails with ErrBuildInProgress while a build is running.
func (s *Service) Clear(session string) (bool, error) {
	removed, err := s.sessions.Remove(sessionName(session))
	if removed {
		logger.Info("session %q cleared", sessionName(session))
	}
	return removed, err
}

// Session returns a snapshot of a session.
func (s *Service) Session(session string) (SessionStatus, bool) {
	sess, ok := s.sessions.Get(sessionName(session))
	if !ok {
		return SessionStatus{Name: sessionName(session)}, false
	}
	return sess.snapshot(), true
}

// Shutdown waits for background builds to finish, then retires every index
// and waits for the indexes to close.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	for _, name := range s.sessions.Names() {
		if _, err := s.sessions.Remove(name); err != nil {
			logger.Warn("shutdown: session %q: %v", name, err)
		}
	}
	return s.sessions.WaitRetired(ctx)
}

func sessionName(session string) string {
	if strings.TrimSpace(session) == "" {
		return DefaultSession
	}
	return session
}

func (s *Service) start(session, dir string) (*Session, *build, error) {
	name := sessionName(session)
	st := BuildStatus{
		ID:        BuildHandle(uuid.NewString()),
		Session:   name,
		Dir:       dir,
		State:     StatePending,
		StartedAt: time.Now(),
	}
	sess, ok := s.sessions.begin(name, st)
	if !ok {
		return nil, nil, fmt.Errorf("session %q: %w", name, domain.ErrBuildInProgress)
	}
	b := &build{status: st, done: make(chan struct{})}
	s.mu.Lock()
	s.builds[st.ID] = b
	s.mu.Unlock()
	logger.Info("build %s queued for session %q from %s", st.ID, name, dir)
	return sess, b, nil
}

func (s *Service) run(ctx context.Context, sess *Session, b *build) BuildStatus {
	b.mu.Lock()
	b.status.State = StateBuilding
	st := b.status
	b.mu.Unlock()

	idx, err := s.buildIndex(ctx, &st)
	st.FinishedAt = time.Now()
	if err != nil {
		st.State = StateFailed
		st.Err = err
		st.Error = err.Error()
		logger.Warn("build %s for session %q failed: %v", st.ID, st.Session, err)
	} else {
		st.State = StateReady
		logger.Info("build %s for session %q ready: %d documents, %d chunks, %d excluded in %s",
			st.ID, st.Session, st.Documents, st.Chunks, st.Excluded, st.FinishedAt.Sub(st.StartedAt).Round(time.Millisecond))
	}

	sess.finish(st, idx)
	b.mu.Lock()
	b.status = st
	b.mu.Unlock()
	close(b.done)
	s.recordFinished(st.ID)
	return st
}

// buildIndex runs load, chunk, embed and index, filling in st as it goes.
func (s *Service) buildIndex(ctx context.Context, st *BuildStatus) (domain.Index, error) {
	docs, err := s.deps.Loader.Load(ctx, st.Dir)
	if err != nil {
		return nil, domain.AsKind(domain.KindLoad, "load", err)
	}
	st.Documents = len(docs)

	chunks, err := s.deps.Chunker.Split(docs)
	if err != nil {
		return nil, domain.AsKind(domain.KindIndexBuild, "chunk", err)
	}
	if len(chunks) == 0 {
		return nil, domain.NewIndexBuildError("chunk", domain.ErrNoVectors)
	}
	st.Chunks = len(chunks)

	included := make(map[string]struct{})
	for _, c := range chunks {
		included[c.DocumentID] = struct{}{}
	}
	st.Excluded = len(docs) - len(included)
	if st.Excluded > 0 {
		logger.Debug("build %s: %d of %d documents over the document cap were not indexed", st.ID, st.Excluded, len(docs))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, domain.AsKind(domain.KindEmbedding, "embed chunks", err)
	}

	idx, err := s.deps.Builder.Build(ctx, chunks, vectors)
	if err != nil {
		return nil, domain.AsKind(domain.KindIndexBuild, "build index", err)
	}

	st.Summary = s.summarize(docs, included)
	return idx, nil
}

func (s *Service) summarize(docs []domain.Document, included map[string]struct{}) string {
	if s.deps.Summarizer == nil {
		return ""
	}
	var sb strings.Builder
	for _, d := range docs {
		if _, ok := included[d.ID]; !ok {
			continue
		}
		sb.WriteString(d.Content)
		sb.WriteString("\n")
	}
	summary, err := s.deps.Summarizer.Summarize(sb.String(), s.summarySentences)
	if err != nil {
		logger.Warn("summary failed: %v", err)
		return ""
	}
	return summary
}

func (s *Service) recordFinished(h BuildHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, h)
	for len(s.finished) > maxFinishedBuilds {
		delete(s.builds, s.finished[0])
		s.finished = s.finished[1:]
	}
}

// AnswerQuery retrieves the chunks most relevant to query from the session's
// index and composes an answer from them.
func (s *Service) AnswerQuery(ctx context.Context, session, query string) (domain.QueryResult, error) {
	sess, ok := s.sessions.Get(sessionName(session))
	if !ok {
		return domain.QueryResult{}, domain.NewQueryError("answer", domain.ErrNoIndex)
	}
	served := sess.acquire()
	if served == nil {
		return domain.QueryResult{}, domain.NewQueryError("answer", sess.notReadyError())
	}
	defer served.release()

	start := time.Now()
	chunks, err := s.deps.Retriever.Retrieve(ctx, query, served.index, 0)
	if err != nil {
		return domain.QueryResult{}, err
	}
	retrieval := time.Since(start)

	answer, generation, err := s.deps.Composer.Compose(ctx, query, chunks)
	if err != nil {
		return domain.QueryResult{}, err
	}

	result := domain.QueryResult{
		Query:        query,
		Answer:       answer,
		RelevantDocs: chunks,
		ResponseTime: domain.Seconds(retrieval + generation),
	}
	if err := result.Validate(); err != nil {
		return domain.QueryResult{}, err
	}
	return result, nil
}
