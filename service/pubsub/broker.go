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

	"github.com/rs/zerolog"

	"github.com/electra-labs/electra/models/electra"
)

// Topics for index events. Script topics are derived per script hash.
const (
	TopicBlocks = "blocks"
)

// TopicScript returns the topic on which activity for the given script hash
// is published.
func TopicScript(script electra.ScriptHash) string {
	return "script/" + script.String()
}

// Event is one notification delivered to subscribers of its topic.
type Event struct {
	Topic   string
	Payload interface{}
}

// Broker distributes index events to session subscriptions. Components never
// call into each other directly for notifications; the indexing side
// publishes onto the broker and every session drains its own subscription.
type Broker struct {
	log   zerolog.Logger
	mutex sync.RWMutex
	subs  map[*Subscription]struct{}
}

// NewBroker creates a new event broker.
func NewBroker(log zerolog.Logger) *Broker {

	b := Broker{
		log:  log.With().Str("component", "pubsub_broker").Logger(),
		subs: make(map[*Subscription]struct{}),
	}

	return &b
}

// Subscribe registers a new subscription for the given topics. The caller is
// responsible for draining the subscription's channel and for unsubscribing
// when done.
func (b *Broker) Subscribe(topics ...string) *Subscription {

	sub := newSubscription(topics)

	b.mutex.Lock()
	b.subs[sub] = struct{}{}
	b.mutex.Unlock()

	go sub.drain()

	return sub
}

// Extend adds topics to an existing subscription.
func (b *Broker) Extend(sub *Subscription, topics ...string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	sub.extend(topics)
}

// Unsubscribe removes the subscription from the broker and closes its
// channel once pending events have been drained.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mutex.Lock()
	_, ok := b.subs[sub]
	delete(b.subs, sub)
	b.mutex.Unlock()
	if ok {
		sub.stop()
	}
}

// Publish delivers the event to every subscription of its topic. Each
// subscription queues events without bounds, so a slow consumer delays only
// itself and, while connected, never misses an event.
func (b *Broker) Publish(topic string, payload interface{}) {

	event := Event{Topic: topic, Payload: payload}

	b.mutex.RLock()
	defer b.mutex.RUnlock()
	count := 0
	for sub := range b.subs {
		if sub.matches(topic) {
			sub.push(event)
			count++
		}
	}

	b.log.Debug().Str("topic", topic).Int("subscribers", count).Msg("event published")
}

// Close stops all remaining subscriptions.
func (b *Broker) Close() {
	b.mutex.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mutex.Unlock()
	for sub := range subs {
		sub.stop()
	}
}
