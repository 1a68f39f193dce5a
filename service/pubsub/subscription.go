// Copyright 2023 Electra Labs
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package pubsub

import (
	"sync"

	"github.com/electra-labs/electra/models/electra"
)

// Subscription buffers events for one consumer. Events are queued in an
// unbounded deque and handed out on a channel by a dedicated drain routine,
// which decouples publishers from consumer speed.
type Subscription struct {
	mutex  sync.RWMutex
	topics map[string]struct{}
	queue  *electra.SafeDeque
	wake   chan struct{}
	done   chan struct{}
	out    chan Event
	once   sync.Once
}

func newSubscription(topics []string) *Subscription {

	lookup := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		lookup[topic] = struct{}{}
	}

	s := Subscription{
		topics: lookup,
		queue:  electra.NewDeque(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Event),
	}

	return &s
}

// Out returns the channel on which queued events are delivered in order.
func (s *Subscription) Out() <-chan Event {
	return s.out
}

func (s *Subscription) matches(topic string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.topics[topic]
	return ok
}

func (s *Subscription) extend(topics []string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, topic := range topics {
		s.topics[topic] = struct{}{}
	}
}

func (s *Subscription) push(event Event) {
	s.queue.PushBack(event)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) stop() {
	s.once.Do(func() {
		close(s.done)
	})
}

// drain moves events from the queue onto the output channel until the
// subscription is stopped.
func (s *Subscription) drain() {
	defer close(s.out)
	for {
		item := s.queue.PopFront()
		if item == nil {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		select {
		case s.out <- item.(Event):
		case <-s.done:
			return
		}
	}
}
