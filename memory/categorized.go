package memory

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Defaults for CategorizedStore.
const (
	DefaultPriorityLimit = 100
	DefaultCategoryLimit = 50
)

// Categorizer assigns a category to entry content.
type Categorizer func(content string) string

// KeywordCategorizer files content under "error", "warning" or "query" when
// it mentions them, and "general" otherwise.
func KeywordCategorizer(content string) string {
	switch {
	case strings.Contains(content, "error"):
		return "error"
	case strings.Contains(content, "warning"):
		return "warning"
	case strings.Contains(content, "query"):
		return "query"
	}
	return "general"
}

// CategoryStats describes the auxiliary indexes of a CategorizedStore.
type CategoryStats struct {
	Size            int            `json:"size"`
	PriorityEntries int            `json:"priority_entries"`
	Categories      map[string]int `json:"categories"`
}

type priorityItem struct {
	id         string
	importance float64
}

// CategorizedStore decorates an EntryStore with a per-category index and a
// bounded list of the most important entries. The wrapped store stays the
// source of truth: ids it has evicted are dropped from the indexes the next
// time they are read.
type CategorizedStore struct {
	base          EntryStore
	categorize    Categorizer
	priorityLimit int
	categoryLimit int
	logger        *zap.Logger

	mu         sync.RWMutex
	categories map[string][]string // oldest first
	categoryOf map[string]string
	priority   []priorityItem // most important first
}

var _ EntryStore = (*CategorizedStore)(nil)

// CategorizedOption configures a CategorizedStore.
type CategorizedOption func(*CategorizedStore)

// WithCategorizer replaces KeywordCategorizer.
func WithCategorizer(c Categorizer) CategorizedOption {
	return func(s *CategorizedStore) {
		if c != nil {
			s.categorize = c
		}
	}
}

// WithIndexLimits bounds the priority list and each category list.
func WithIndexLimits(priority, perCategory int) CategorizedOption {
	return func(s *CategorizedStore) {
		if priority > 0 {
			s.priorityLimit = priority
		}
		if perCategory > 0 {
			s.categoryLimit = perCategory
		}
	}
}

// WithCategorizedLogger sets the logger.
func WithCategorizedLogger(logger *zap.Logger) CategorizedOption {
	return func(s *CategorizedStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCategorizedStore wraps base.
func NewCategorizedStore(base EntryStore, opts ...CategorizedOption) *CategorizedStore {
	s := &CategorizedStore{
		base:          base,
		categorize:    KeywordCategorizer,
		priorityLimit: DefaultPriorityLimit,
		categoryLimit: DefaultCategoryLimit,
		logger:        zap.NewNop(),
		categories:    make(map[string][]string),
		categoryOf:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Info("categorized store ready",
		zap.Int("priority_limit", s.priorityLimit),
		zap.Int("category_limit", s.categoryLimit))
	return s
}

// Store stores e in the wrapped store and indexes it.
func (s *CategorizedStore) Store(e Entry) bool {
	if !s.base.Store(e) {
		return false
	}

	category := s.categorize(e.Content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexLocked(e.ID, category)
	s.prioritizeLocked(e.ID, e.Importance)

	s.logger.Debug("stored entry in category",
		zap.String("id", e.ID),
		zap.String("category", category))
	return true
}

// Retrieve delegates to the wrapped store.
func (s *CategorizedStore) Retrieve(id string) (Entry, bool) {
	return s.base.Retrieve(id)
}

// Search delegates to the wrapped store.
func (s *CategorizedStore) Search(q Query, limit int) []Entry {
	return s.base.Search(q, limit)
}

// Update delegates to the wrapped store and re-files the entry when its
// content changes.
func (s *CategorizedStore) Update(id string, u EntryUpdate) bool {
	if !s.base.Update(id, u) {
		return false
	}
	if u.Content != nil {
		category := s.categorize(*u.Content)
		s.mu.Lock()
		s.indexLocked(id, category)
		s.mu.Unlock()
	}
	return true
}

// Remove deletes the entry from the wrapped store and the indexes.
func (s *CategorizedStore) Remove(id string) bool {
	s.mu.Lock()
	s.forgetLocked(id)
	s.mu.Unlock()
	return s.base.Remove(id)
}

// Clear empties the wrapped store and the indexes.
func (s *CategorizedStore) Clear() {
	s.base.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = make(map[string][]string)
	s.categoryOf = make(map[string]string)
	s.priority = nil
}

// Size delegates to the wrapped store.
func (s *CategorizedStore) Size() int {
	return s.base.Size()
}

// Contains delegates to the wrapped store.
func (s *CategorizedStore) Contains(id string) bool {
	return s.base.Contains(id)
}

// ByCategory retrieves up to limit of the most recently filed entries of a
// category, newest first. Each returned entry counts an access.
func (s *CategorizedStore) ByCategory(category string, limit int) []Entry {
	s.mu.RLock()
	ids := append([]string(nil), s.categories[category]...)
	s.mu.RUnlock()

	var results []Entry
	var stale []string
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(results) >= limit {
			break
		}
		e, ok := s.base.Retrieve(ids[i])
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		results = append(results, e)
	}
	s.dropStale(stale)
	return results
}

// TopPriority retrieves up to limit of the most important entries. Each
// returned entry counts an access.
func (s *CategorizedStore) TopPriority(limit int) []Entry {
	s.mu.RLock()
	items := append([]priorityItem(nil), s.priority...)
	s.mu.RUnlock()

	var results []Entry
	var stale []string
	for _, item := range items {
		if limit > 0 && len(results) >= limit {
			break
		}
		e, ok := s.base.Retrieve(item.id)
		if !ok {
			stale = append(stale, item.id)
			continue
		}
		results = append(results, e)
	}
	s.dropStale(stale)
	return results
}

// Category returns the category an entry was filed under.
func (s *CategorizedStore) Category(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categoryOf[id]
	return c, ok
}

// Stats reports index sizes. Ids the wrapped store has evicted are not
// counted.
func (s *CategorizedStore) Stats() CategoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.categories))
	for name, ids := range s.categories {
		live := 0
		for _, id := range ids {
			if s.base.Contains(id) {
				live++
			}
		}
		if live > 0 {
			counts[name] = live
		}
	}
	priority := 0
	for _, item := range s.priority {
		if s.base.Contains(item.id) {
			priority++
		}
	}
	return CategoryStats{
		Size:            s.base.Size(),
		PriorityEntries: priority,
		Categories:      counts,
	}
}

func (s *CategorizedStore) dropStale(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.forgetLocked(id)
	}
	s.logger.Debug("dropped stale index entries", zap.Int("count", len(ids)))
}

func (s *CategorizedStore) indexLocked(id, category string) {
	if prev, ok := s.categoryOf[id]; ok {
		s.categories[prev] = without(s.categories[prev], id)
		if len(s.categories[prev]) == 0 {
			delete(s.categories, prev)
		}
	}

	ids := append(s.categories[category], id)
	if len(ids) > s.categoryLimit {
		for _, old := range ids[:len(ids)-s.categoryLimit] {
			delete(s.categoryOf, old)
		}
		ids = append([]string(nil), ids[len(ids)-s.categoryLimit:]...)
	}
	s.categories[category] = ids
	s.categoryOf[id] = category
}

func (s *CategorizedStore) prioritizeLocked(id string, importance float64) {
	for i, item := range s.priority {
		if item.id == id {
			s.priority = append(s.priority[:i], s.priority[i+1:]...)
			break
		}
	}
	s.priority = append(s.priority, priorityItem{id: id, importance: importance})
	sort.SliceStable(s.priority, func(i, j int) bool {
		return s.priority[i].importance > s.priority[j].importance
	})
	if len(s.priority) > s.priorityLimit {
		s.priority = s.priority[:s.priorityLimit]
	}
}

func (s *CategorizedStore) forgetLocked(id string) {
	if category, ok := s.categoryOf[id]; ok {
		s.categories[category] = without(s.categories[category], id)
		if len(s.categories[category]) == 0 {
			delete(s.categories, category)
		}
		delete(s.categoryOf, id)
	}
	for i, item := range s.priority {
		if item.id == id {
			s.priority = append(s.priority[:i], s.priority[i+1:]...)
			break
		}
	}
}

func without(ids []string, id string) []string {
	if i, ok := indexOf(ids, id); ok {
		return append(ids[:i:i], ids[i+1:]...)
	}
	return ids
}

func indexOf(ids []string, id string) (int, bool) {
	for i, v := range ids {
		if v == id {
			return i, true
		}
	}
	return -1, false
}
