package realtime

import (
	"log"
	"sync"
)

// Topic identifies one logical subscription: a table narrowed to a scope,
// e.g. assignments published by one teacher or messages for one pair.
type Topic struct {
	Table Table
	Scope string
}

// AssignmentsByTeacher scopes the assignments feed to one teacher's rows.
func AssignmentsByTeacher(teacherID string) Topic {
	return Topic{Table: TableAssignments, Scope: "teacher:" + teacherID}
}

// AnswersByStudent scopes the answers feed to one student's rows.
func AnswersByStudent(studentID string) Topic {
	return Topic{Table: TableAnswers, Scope: "student:" + studentID}
}

// AnswersByAssignment scopes the answers feed to one assignment's rows.
func AnswersByAssignment(assignmentID string) Topic {
	return Topic{Table: TableAnswers, Scope: "assignment:" + assignmentID}
}

// MessagesForPair scopes the messages feed to one teacher/student pair.
// The scope is order-independent so both sides share a feed.
func MessagesForPair(userA, userB string) Topic {
	if userB < userA {
		userA, userB = userB, userA
	}
	return Topic{Table: TableMessages, Scope: "pair:" + userA + ":" + userB}
}

const subscriptionBuffer = 64

// Hub fans typed deltas out to every subscription of a topic. Delivery is
// FIFO per subscriber; a subscriber that falls behind its buffer loses the
// delta and degrades to stale-until-refetch, it is never blocked on.
type Hub struct {
	mu     sync.Mutex
	topics map[Topic]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[Topic]map[*Subscription]struct{})}
}

// Subscription is one open change-feed. Callers must Close it on scope exit
// to release the channel.
type Subscription struct {
	hub   *Hub
	topic Topic
	ch    chan Delta

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// Subscribe opens a feed for one topic.
func (h *Hub) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		hub:   h,
		topic: topic,
		ch:    make(chan Delta, subscriptionBuffer),
	}

	h.mu.Lock()
	subscribers, ok := h.topics[topic]
	if !ok {
		subscribers = make(map[*Subscription]struct{})
		h.topics[topic] = subscribers
	}
	subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// C is the delta stream. It closes when the subscription closes.
func (s *Subscription) C() <-chan Delta {
	return s.ch
}

// Close detaches the subscription and closes its channel. Close is
// idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.mu.Lock()
		if subscribers, ok := s.hub.topics[s.topic]; ok {
			delete(subscribers, s)
			if len(subscribers) == 0 {
				delete(s.hub.topics, s.topic)
			}
		}
		s.hub.mu.Unlock()

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.ch)
	})
}

// send delivers one delta without ever blocking or racing Close.
func (s *Subscription) send(delta Delta) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- delta:
		return true
	default:
		return false
	}
}

// Publish delivers one delta to every subscriber of the topic. The
// subscriber set is snapshotted under the lock and sends happen outside it.
func (h *Hub) Publish(topic Topic, delta Delta) {
	h.mu.Lock()
	snapshot := make([]*Subscription, 0, len(h.topics[topic]))
	for sub := range h.topics[topic] {
		snapshot = append(snapshot, sub)
	}
	h.mu.Unlock()

	for _, sub := range snapshot {
		if !sub.send(delta) {
			log.Printf("realtime: dropping %s delta for slow subscriber on %s/%s",
				delta.Op, topic.Table, topic.Scope)
		}
	}
}

// SubscriberCount reports how many subscriptions a topic currently has.
func (h *Hub) SubscriberCount(topic Topic) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}
