package mqtt

import (
	"sync"

	"github.com/ioplex/mqttcore/store"
	"github.com/ioplex/mqttcore/topic"
)

// Subscription is one client's interest in a topic filter, carrying the
// v5 subscription options the Router must honor when fanning out a match.
type Subscription struct {
	Client                 *conn
	TopicFilter            string
	MaximumQoS             uint8
	NoLocal                bool
	RetainAsPublished      bool
	SubscriptionIdentifier uint32
}

// SubscriptionTable is the per-client, multi-subscriber index the Router
// matches PUBLISHes against: a filter-keyed table of subscriber sets, each
// carrying its own QoS ceiling, no_local/retain_as_published flags, and
// subscription identifier.
type SubscriptionTable struct {
	mu      sync.RWMutex
	byFilter map[string]map[*conn]*Subscription
}

// NewSubscriptionTable returns an empty table.
func NewSubscriptionTable() *SubscriptionTable {
	return &SubscriptionTable{byFilter: make(map[string]map[*conn]*Subscription)}
}

// Add registers c's subscription to filter, replacing any prior
// subscription for the same (client, filter) pair.
func (t *SubscriptionTable) Add(sub *Subscription) error {
	if !topic.ValidateFilter(sub.TopicFilter) {
		return errTopicFilterInvalid
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	clients, ok := t.byFilter[sub.TopicFilter]
	if !ok {
		clients = make(map[*conn]*Subscription)
		t.byFilter[sub.TopicFilter] = clients
	}
	clients[sub.Client] = sub
	return nil
}

// Remove drops c's subscription to filter, if any.
func (t *SubscriptionTable) Remove(c *conn, filter string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	clients, ok := t.byFilter[filter]
	if !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(t.byFilter, filter)
	}
}

// RemoveClient drops every subscription held by c, on disconnect.
func (t *SubscriptionTable) RemoveClient(c *conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for filter, clients := range t.byFilter {
		delete(clients, c)
		if len(clients) == 0 {
			delete(t.byFilter, filter)
		}
	}
}

// Matching returns every subscription whose filter matches topicName,
// applying the MQTT wildcard rules including the '$'-prefix exclusion for
// root-level wildcards [MQTT-4.7.2-1].
func (t *SubscriptionTable) Matching(topicName string) []*Subscription {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*Subscription
	for filter, clients := range t.byFilter {
		if !topic.Matches(filter, topicName) {
			continue
		}
		for _, sub := range clients {
			out = append(out, sub)
		}
	}
	return out
}

// Topics lists every filter with at least one live subscriber, for the
// list-topics admin command.
func (t *SubscriptionTable) Topics() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byFilter))
	for filter := range t.byFilter {
		out = append(out, filter)
	}
	return out
}

// Clean drops subscriptions belonging to clients whose session has
// expired, matching mem_topic.go's periodic CleanEmptyTopic sweep.
func (t *SubscriptionTable) Clean(isExpired func(*conn) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for filter, clients := range t.byFilter {
		for c := range clients {
			if isExpired(c) {
				delete(clients, c)
			}
		}
		if len(clients) == 0 {
			delete(t.byFilter, filter)
		}
	}
}

// toSubscriptionRecords snapshots c's subscriptions for persistence into a
// store.SessionState on disconnect with a non-zero session-expiry-interval.
func (t *SubscriptionTable) toSubscriptionRecords(c *conn) map[string]store.SubscriptionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	records := make(map[string]store.SubscriptionRecord)
	for filter, clients := range t.byFilter {
		sub, ok := clients[c]
		if !ok {
			continue
		}
		records[filter] = store.SubscriptionRecord{
			TopicFilter:            filter,
			MaximumQoS:             sub.MaximumQoS,
			NoLocal:                sub.NoLocal,
			RetainAsPublished:      sub.RetainAsPublished,
			SubscriptionIdentifier: sub.SubscriptionIdentifier,
		}
	}
	return records
}
