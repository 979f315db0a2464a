package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gloom-ai/gloom-go/core"
)

// Named nodes carry their name in AttrName. Recorded actions are named
// nodes of ConceptAction.
const (
	ConceptAction = "action"
	AttrName      = "name"
)

// TieredManager is the Manager implementation backed by the three tiers.
//
// Record writes every trace to the MemoryStore, to the episode of its
// session and, when configured, to a SimilarityIndex. Consecutive actions
// are linked in SemanticMemory, so the graph learns which actions tend to
// follow which. Retrieve recalls by similarity when an index is present and
// by relevance ranking otherwise.
type TieredManager struct {
	store    EntryStore
	episodes *EpisodicMemory
	concepts *SemanticMemory
	embedder Embedder        // optional: entries are stored without vectors when nil
	index    SimilarityIndex // optional
	cache    *ristretto.Cache
	cacheMu  sync.Mutex
	cacheGen uint64 // bumped by every write; guarded by cacheMu
	config   ManagerConfig
	logger   *zap.Logger
	tracer   trace.Tracer
	tierOpts []Option

	mu       sync.Mutex
	sessions map[string]string // owner/session -> episode id
	named    map[string]string // concept/name -> node id
}

var _ Manager = (*TieredManager)(nil)

// ManagerOption configures a TieredManager.
type ManagerOption func(*TieredManager)

// WithIndex mirrors recorded entries into idx and recalls through it.
func WithIndex(idx SimilarityIndex) ManagerOption {
	return func(m *TieredManager) {
		m.index = idx
	}
}

// WithTracer sets the tracer. Defaults to the global tracer provider.
func WithTracer(t trace.Tracer) ManagerOption {
	return func(m *TieredManager) {
		m.tracer = t
	}
}

// WithTierOptions passes options (logger, clock, telemetry) to every tier.
// The manager logs through the same logger.
func WithTierOptions(opts ...Option) ManagerOption {
	return func(m *TieredManager) {
		m.tierOpts = append(m.tierOpts, opts...)
	}
}

// NewTieredManager builds the tiers described by cfg. A nil cfg uses
// DefaultConfig.
func NewTieredManager(cfg *Config, embedder Embedder, opts ...ManagerOption) (*TieredManager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		c := *cfg
		c.ApplyDefaults()
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &TieredManager{
		embedder: embedder,
		config:   cfg.Manager,
		sessions: make(map[string]string),
		named:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = newOptions(m.tierOpts).logger
	if m.tracer == nil {
		m.tracer = otel.Tracer(instrumentationName)
	}

	base := NewMemoryStore(cfg.Store.Capacity, m.tierOpts...)
	m.store = base
	if cfg.Categories.Enabled {
		m.store = NewCategorizedStore(base,
			WithIndexLimits(cfg.Categories.PriorityLimit, cfg.Categories.CategoryLimit),
			WithCategorizedLogger(m.logger))
	}
	m.episodes = NewEpisodicMemory(cfg.Episodic.MaxEpisodes, cfg.Episodic.MaxEntriesPerEpisode, m.tierOpts...)
	m.concepts = NewSemanticMemory(cfg.Semantic.Capacity, m.tierOpts...)

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     cfg.Manager.CacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create recall cache: %w", err)
	}
	m.cache = cache

	m.logger.Info("memory manager ready",
		zap.Bool("enabled", m.config.Enabled),
		zap.Bool("similarity_index", m.index != nil),
		zap.Bool("categories", cfg.Categories.Enabled),
		zap.Int("store_capacity", cfg.Store.Capacity))
	return m, nil
}

// Store returns the flat entry store.
func (m *TieredManager) Store() EntryStore {
	return m.store
}

// Episodes returns the episodic tier.
func (m *TieredManager) Episodes() *EpisodicMemory {
	return m.episodes
}

// Concepts returns the semantic tier.
func (m *TieredManager) Concepts() *SemanticMemory {
	return m.concepts
}

// Retrieve finds relevant memories and returns them formatted.
func (m *TieredManager) Retrieve(ctx context.Context, ownerID string, message string) (string, error) {
	if !m.config.Enabled {
		return "", nil
	}

	key := ownerID + "\x00" + message
	gen := m.cacheGeneration()
	if cached, ok := m.cache.Get(key); ok {
		if s, ok := cached.(string); ok {
			m.logger.Debug("recall cache hit", zap.String("owner", ownerID))
			return s, nil
		}
	}

	ctx, span := m.tracer.Start(ctx, "gloom.memory.retrieve",
		trace.WithAttributes(attribute.String("gloom.memory.owner", ownerID)))
	defer span.End()

	var (
		entries  []Entry
		episodes []EpisodeMatch
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = m.recallEntries(gctx, ownerID, message, m.config.RecallLimit)
		return err
	})
	g.Go(func() error {
		episodes = m.episodes.Search(EpisodeQuery{
			Context: map[string]string{MetaOwner: ownerID},
		}, m.config.EpisodeLimit)
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(
		attribute.Int("gloom.memory.entries", len(entries)),
		attribute.Int("gloom.memory.episodes", len(episodes)))
	m.logger.Info("retrieved memories",
		zap.String("owner", ownerID),
		zap.Int("entries", len(entries)),
		zap.Int("episodes", len(episodes)),
		zap.String("query", truncate(message, 50)))

	formatted := m.formatMemories(entries, episodes, ownerID, message)
	m.cacheResult(key, formatted, gen)
	return formatted, nil
}

func (m *TieredManager) cacheGeneration() uint64 {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	return m.cacheGen
}

// cacheResult caches a formatted block computed at generation gen. A write
// since then makes the block stale, so it is dropped.
func (m *TieredManager) cacheResult(key, formatted string, gen uint64) bool {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	if gen != m.cacheGen {
		return false
	}
	return m.cache.SetWithTTL(key, formatted, int64(len(formatted))+1, m.config.CacheTTL)
}

func (m *TieredManager) invalidate() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cacheGen++
	m.cache.Clear()
}

// Record stores an interaction in every tier.
func (m *TieredManager) Record(ctx context.Context, ownerID string, in *Interaction) error {
	if !m.config.Enabled || in == nil {
		return nil
	}

	ctx, span := m.tracer.Start(ctx, "gloom.memory.record",
		trace.WithAttributes(
			attribute.String("gloom.memory.owner", ownerID),
			attribute.Int("gloom.memory.traces", len(in.Traces))))
	defer span.End()

	var entries []Entry
	for _, t := range in.Traces {
		if t != nil {
			entries = append(entries, NewTraceEntry(ownerID, in.SessionID, t))
		}
	}
	if in.UserMessage != "" && in.Response != "" {
		entries = append(entries, NewConversationEntry(ownerID, in.SessionID, in.UserMessage, in.Response))
	}
	if len(entries) == 0 {
		return nil
	}

	episodeID := m.sessionEpisode(ownerID, in.SessionID)
	stored := 0
	for i := range entries {
		e := entries[i]
		if err := m.embed(ctx, &e); err != nil {
			m.logger.Warn("skipping entry", zap.Int("entry", i+1), zap.Error(err))
			span.RecordError(err)
			continue
		}

		m.store.Store(e)
		if !m.episodes.AddMemory(episodeID, e) {
			// the session episode was evicted while we were recording
			episodeID = m.sessionEpisode(ownerID, in.SessionID)
			m.episodes.AddMemory(episodeID, e)
		}
		if m.index != nil && len(e.Embedding) > 0 {
			if err := m.index.Add(ctx, ownerID, e); err != nil {
				m.logger.Warn("index entry", zap.String("id", e.ID), zap.Error(err))
			}
		}
		stored++
	}

	m.linkActions(in.Traces)
	m.invalidate()

	span.SetAttributes(attribute.Int("gloom.memory.stored", stored))
	m.logger.Info("recorded interaction",
		zap.String("owner", ownerID),
		zap.String("session", in.SessionID),
		zap.String("episode", episodeID),
		zap.Int("stored", stored),
		zap.Int("entries", len(entries)))
	return nil
}

// Forget removes an entry from the store and the similarity index.
func (m *TieredManager) Forget(ctx context.Context, ownerID, id string) (bool, error) {
	removed := m.store.Remove(id)
	if m.index != nil {
		if err := m.index.Remove(ctx, ownerID, id); err != nil {
			return removed, fmt.Errorf("%w: %w", ErrIndex, err)
		}
	}
	if removed {
		m.invalidate()
	}
	return removed, nil
}

// NextActions returns the actions most often recorded right after action,
// strongest first.
func (m *TieredManager) NextActions(action string, minStrength float64, limit int) []string {
	return m.Related(ConceptAction, action, minStrength, limit)
}

// Relate links two named nodes of a concept, creating them when missing.
func (m *TieredManager) Relate(concept, from, to string, strength float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.namedNodeLocked(concept, from)
	dst := m.namedNodeLocked(concept, to)
	ok := m.concepts.AddRelationship(src, dst, strength)
	if ok {
		m.invalidate()
	}
	return ok
}

// Related returns the names of the nodes name links to within a concept,
// strongest first.
func (m *TieredManager) Related(concept, name string, minStrength float64, limit int) []string {
	m.mu.Lock()
	id, ok := m.named[namedKey(concept, name)]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	var names []string
	for _, n := range m.concepts.GetRelatedNodes(id, minStrength, limit) {
		names = append(names, n.Attributes[AttrName])
	}
	return names
}

// Remember stores a free-form entry for an owner, outside of any session.
func (m *TieredManager) Remember(ctx context.Context, ownerID, content string, importance float64, tags ...string) (Entry, error) {
	if !m.config.Enabled {
		return Entry{}, ErrDisabled
	}

	e := NewEntry(content, clamp01(importance), append([]string{OwnerTag(ownerID)}, tags...)...)
	e.Metadata = map[string]string{MetaOwner: ownerID}
	if err := m.embed(ctx, &e); err != nil {
		return Entry{}, err
	}

	m.store.Store(e)
	if m.index != nil && len(e.Embedding) > 0 {
		if err := m.index.Add(ctx, ownerID, e); err != nil {
			return e, fmt.Errorf("%w: %w", ErrIndex, err)
		}
	}
	m.invalidate()

	m.logger.Debug("remembered entry", zap.String("owner", ownerID), zap.String("id", e.ID))
	return e, nil
}

// Recall returns up to limit entries of an owner relevant to query, without
// formatting. limit <= 0 uses the configured recall limit.
func (m *TieredManager) Recall(ctx context.Context, ownerID, query string, limit int) ([]Entry, error) {
	if !m.config.Enabled {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = m.config.RecallLimit
	}
	return m.recallEntries(ctx, ownerID, query, limit)
}

// SessionEntries recalls the episode of a session.
func (m *TieredManager) SessionEntries(ownerID, sessionID string) ([]Entry, bool) {
	m.mu.Lock()
	id, ok := m.sessions[ownerID+"/"+sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return m.episodes.RecallEpisode(id)
}

// Close releases the cache and the similarity index.
func (m *TieredManager) Close() error {
	m.cache.Close()
	if m.index != nil {
		return m.index.Close()
	}
	return nil
}

func (m *TieredManager) embed(ctx context.Context, e *Entry) error {
	if m.embedder == nil {
		return nil
	}
	vec, err := m.embedder.Embed(ctx, e.Content)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	e.Embedding = vec
	return nil
}

func (m *TieredManager) recallEntries(ctx context.Context, ownerID, message string, limit int) ([]Entry, error) {
	if m.index == nil || m.embedder == nil {
		return m.store.Search(Query{Tags: []string{OwnerTag(ownerID)}}, limit), nil
	}

	vec, err := m.embedder.Embed(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	hits, err := m.index.Query(ctx, ownerID, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndex, err)
	}

	var entries []Entry
	for _, hit := range hits {
		if hit.Similarity < m.config.MinSimilarity {
			continue
		}
		e, ok := m.store.Retrieve(hit.ID)
		if !ok {
			// evicted from the store after it was indexed
			if err := m.index.Remove(ctx, ownerID, hit.ID); err != nil {
				m.logger.Warn("drop stale index entry", zap.String("id", hit.ID), zap.Error(err))
			}
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// sessionEpisode returns the live episode of a session, creating one when
// the session is new or its episode has been evicted.
func (m *TieredManager) sessionEpisode(ownerID, sessionID string) string {
	key := ownerID + "/" + sessionID

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.sessions[key]; ok && m.episodes.Contains(id) {
		return id
	}

	id := m.episodes.CreateEpisode(map[string]string{
		MetaOwner:   ownerID,
		MetaSession: sessionID,
	})
	m.sessions[key] = id

	if len(m.sessions) > 2*m.episodes.capacity {
		for k, epID := range m.sessions {
			if !m.episodes.Contains(epID) {
				delete(m.sessions, k)
			}
		}
	}
	return id
}

// linkActions reinforces the action-transition graph with one interaction:
// every action gains importance and each consecutive pair of actions gets a
// stronger edge.
func (m *TieredManager) linkActions(traces []*core.Trace) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := ""
	for _, t := range traces {
		if t == nil || t.Action == "" {
			continue
		}
		id := m.namedNodeLocked(ConceptAction, t.Action)
		if node, ok := m.concepts.Node(id); ok {
			m.concepts.UpdateNodeImportance(id, node.Importance+actionImportanceStep)
		}

		if prev != "" {
			strength := initialTransitionStrength
			if s, ok := m.concepts.Strength(prev, id); ok {
				strength = s + (1-s)*transitionReinforcement
			}
			m.concepts.AddRelationship(prev, id, strength)
		}
		prev = id
	}
}

const (
	actionImportanceStep      = 0.05
	initialTransitionStrength = 0.5
	transitionReinforcement   = 0.2
)

// namedNodeLocked returns the node named name within concept, creating it
// when missing or evicted. Caller holds m.mu.
func (m *TieredManager) namedNodeLocked(concept, name string) string {
	key := namedKey(concept, name)
	if id, ok := m.named[key]; ok {
		if _, exists := m.concepts.Node(id); exists {
			return id
		}
	}
	id := m.concepts.CreateNode(concept, map[string]string{AttrName: name})
	m.named[key] = id
	return id
}

func namedKey(concept, name string) string {
	return concept + "\x00" + name
}

// formatMemories renders recalled entries and episodes as one prompt block.
func (m *TieredManager) formatMemories(entries []Entry, episodes []EpisodeMatch, ownerID, query string) string {
	var parts []string

	if len(entries) > 0 {
		parts = append(parts, "=== RELEVANT PAST ACTIONS ===\n")

		maxLengthPerEntry := 2000 / len(entries)
		if maxLengthPerEntry < 100 {
			maxLengthPerEntry = 100
		}
		for i, e := range entries {
			formatted := FormatEntry(e, FormatContext{
				OwnerID:   ownerID,
				Query:     query,
				MaxLength: maxLengthPerEntry,
			})
			parts = append(parts, fmt.Sprintf("%d. %s\n", i+1, formatted))
		}
	}

	var summaries []string
	for _, ep := range episodes {
		if len(ep.Entries) == 0 {
			continue
		}
		last := ep.Entries[len(ep.Entries)-1]
		summaries = append(summaries, fmt.Sprintf("- session %s: %d memories, latest: %s",
			ep.Context[MetaSession], len(ep.Entries),
			truncate(strings.ReplaceAll(last.Content, "\n", " | "), 120)))
	}
	if len(summaries) > 0 {
		parts = append(parts, "=== RECENT SESSIONS ===\n")
		parts = append(parts, strings.Join(summaries, "\n"))
	}

	return strings.Join(parts, "\n")
}
