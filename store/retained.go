package store

import (
	"sync"

	"github.com/ioplex/mqttcore/topic"
)

// RetainedMessage is a stored retained PUBLISH, addressable by topic name.
type RetainedMessage struct {
	TopicName string
	Payload   []byte
	QoS       uint8
	Expiry    int64 // unix seconds, 0 means no expiry
}

// RetainedStore holds the single most recent retained message per topic.
// An empty-payload PUBLISH is a tombstone: it clears any retained message
// already stored for that topic rather than storing an empty one.
type RetainedStore interface {
	Store(msg RetainedMessage)
	Clear(topicName string)
	Match(filter string) []RetainedMessage
	// Count reports how many topics currently hold a retained message.
	Count() int
}

// MemoryRetainedStore is the default in-memory RetainedStore, grounded on
// mem_topic.go's map+sync.RWMutex shape.
type MemoryRetainedStore struct {
	mu   sync.RWMutex
	msgs map[string]RetainedMessage
}

func NewMemoryRetainedStore() *MemoryRetainedStore {
	return &MemoryRetainedStore{msgs: make(map[string]RetainedMessage)}
}

func (s *MemoryRetainedStore) Store(msg RetainedMessage) {
	if len(msg.Payload) == 0 {
		s.Clear(msg.TopicName)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[msg.TopicName] = msg
}

func (s *MemoryRetainedStore) Clear(topicName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.msgs, topicName)
}

// Count reports how many topics currently hold a retained message, for the
// mqtt_retained_messages gauge.
func (s *MemoryRetainedStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

func (s *MemoryRetainedStore) Match(filter string) []RetainedMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RetainedMessage
	for topicName, msg := range s.msgs {
		if topic.Matches(filter, topicName) {
			out = append(out, msg)
		}
	}
	return out
}
