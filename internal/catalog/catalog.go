// Package catalog is the read model for glossary topics and their question banks.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ashureev/glossgame/internal/domain"
	"github.com/ashureev/glossgame/internal/store"
)

const topicsKey = "topics"

// Catalog serves topics and question banks from a process-wide cache that is
// filled lazily from the content store. Concurrent misses for the same key
// share a single load.
type Catalog struct {
	content store.ContentStore
	group   singleflight.Group

	mu         sync.RWMutex
	generation uint64
	topics     []domain.Topic
	banks      map[string][]domain.Question
}

// New creates a catalog over the given content store.
func New(content store.ContentStore) *Catalog {
	return &Catalog{
		content: content,
		banks:   make(map[string][]domain.Question),
	}
}

// Topics returns every topic in its stable sort order.
func (c *Catalog) Topics(ctx context.Context) ([]domain.Topic, error) {
	c.mu.RLock()
	cached, gen := c.topics, c.generation
	c.mu.RUnlock()
	if cached != nil {
		return append([]domain.Topic(nil), cached...), nil
	}

	// The load is shared with other callers, so it must outlive this caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(topicsKey, func() (any, error) {
		topics, err := c.content.ListTopics(loadCtx)
		if err != nil {
			return nil, fmt.Errorf("list topics: %w", err)
		}
		if topics == nil {
			topics = []domain.Topic{}
		}
		c.mu.Lock()
		if c.generation == gen {
			c.topics = topics
		}
		c.mu.Unlock()
		return topics, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Topic(nil), v.([]domain.Topic)...), nil
}

// Topic returns one topic, or domain.ErrNotFound.
func (c *Catalog) Topic(ctx context.Context, id string) (domain.Topic, error) {
	topics, err := c.Topics(ctx)
	if err != nil {
		return domain.Topic{}, err
	}
	for _, t := range topics {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Topic{}, fmt.Errorf("topic %q: %w", id, domain.ErrNotFound)
}

// QuestionBank returns the questions of a topic. Unknown topics yield an empty bank.
func (c *Catalog) QuestionBank(ctx context.Context, topicID string) ([]domain.Question, error) {
	c.mu.RLock()
	cached, ok := c.banks[topicID]
	gen := c.generation
	c.mu.RUnlock()
	if ok {
		return append([]domain.Question(nil), cached...), nil
	}

	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do("bank:"+topicID, func() (any, error) {
		bank, err := c.content.ListQuestions(loadCtx, topicID)
		if err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
		if bank == nil {
			bank = []domain.Question{}
		}
		c.mu.Lock()
		if c.generation == gen {
			c.banks[topicID] = bank
		}
		c.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), v.([]domain.Question)...), nil
}

// Question looks up a single question of a topic, or returns domain.ErrNotFound.
func (c *Catalog) Question(ctx context.Context, topicID, questionID string) (*domain.Question, error) {
	bank, err := c.QuestionBank(ctx, topicID)
	if err != nil {
		return nil, err
	}
	for i := range bank {
		if bank[i].ID == questionID {
			q := bank[i]
			return &q, nil
		}
	}
	return nil, fmt.Errorf("question %q: %w", questionID, domain.ErrNotFound)
}

// Invalidate drops every cached entry. Loads already in flight finish but do
// not repopulate the cache.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.topics = nil
	c.banks = make(map[string][]domain.Question)
	c.mu.Unlock()
}

// Seed writes content into the store and invalidates the cache.
func (c *Catalog) Seed(ctx context.Context, content *Content) error {
	if err := c.content.SeedContent(ctx, content.Topics, content.Questions); err != nil {
		return fmt.Errorf("seed content: %w", err)
	}
	c.Invalidate()
	return nil
}
