// Package catalog loads and indexes the topic catalog from the filesystem.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog holds all loaded topics and their precomputed topological order.
type Catalog struct {
	topics map[string]Topic
	topo   []string
	mu     sync.RWMutex
}

// Load reads every topic YAML under rootDir and builds the catalog.
// It fails on invalid BKT parameters or a cyclic prerequisite graph.
func Load(rootDir string) (*Catalog, error) {
	c := &Catalog{topics: make(map[string]Topic)}

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		return c.loadTopic(path)
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	if len(c.topics) == 0 {
		return nil, fmt.Errorf("no topics found under %s", rootDir)
	}

	topo, err := topoOrder(c.topics)
	if err != nil {
		return nil, err
	}
	c.topo = topo

	slog.Info("catalog loaded", "topics", len(c.topics))
	return c, nil
}

// FromTopics builds a catalog directly from a topic list. Used by tests
// and by callers that source topics elsewhere.
func FromTopics(topics []Topic) (*Catalog, error) {
	c := &Catalog{topics: make(map[string]Topic, len(topics))}
	for _, t := range topics {
		if t.ID == "" {
			return nil, fmt.Errorf("topic with empty id")
		}
		if err := t.Params.Validate(); err != nil {
			return nil, fmt.Errorf("topic %s: %w", t.ID, err)
		}
		if _, dup := c.topics[t.ID]; dup {
			return nil, fmt.Errorf("duplicate topic id %s", t.ID)
		}
		c.topics[t.ID] = t
	}
	topo, err := topoOrder(c.topics)
	if err != nil {
		return nil, err
	}
	c.topo = topo
	return c, nil
}

func (c *Catalog) loadTopic(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var topic Topic
	if err := yaml.Unmarshal(data, &topic); err != nil {
		slog.Warn("skipping invalid topic YAML", "path", path, "error", err)
		return nil
	}

	if topic.ID == "" {
		return nil // Not a topic file
	}

	if err := topic.Params.Validate(); err != nil {
		return fmt.Errorf("topic %s: %w", topic.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.topics[topic.ID]; dup {
		return fmt.Errorf("duplicate topic id %s (%s)", topic.ID, path)
	}
	c.topics[topic.ID] = topic
	return nil
}

// Get returns a topic by ID.
func (c *Catalog) Get(id string) (Topic, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.topics[id]
	return t, ok
}

// All returns all loaded topics.
func (c *Catalog) All() []Topic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	topics := make([]Topic, 0, len(c.topics))
	for _, t := range c.topics {
		topics = append(topics, t)
	}
	return topics
}

// TopoOrder returns topic IDs in prerequisite-first topological order.
// Ties are broken by ascending topic ID, so the order is stable.
func (c *Catalog) TopoOrder() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.topo))
	copy(out, c.topo)
	return out
}

// Len returns the number of topics.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.topics)
}
