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

package pubsub_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electra-labs/electra/service/pubsub"
	"github.com/electra-labs/electra/testing/mocks"
)

func TestBroker_PublishSubscribe(t *testing.T) {

	t.Run("delivers events in publish order", func(t *testing.T) {
		t.Parallel()

		broker := pubsub.NewBroker(mocks.NoopLogger)
		defer broker.Close()

		sub := broker.Subscribe(pubsub.TopicBlocks)
		defer broker.Unsubscribe(sub)

		for i := 0; i < 100; i++ {
			broker.Publish(pubsub.TopicBlocks, i)
		}

		for i := 0; i < 100; i++ {
			event := receive(t, sub)
			assert.Equal(t, pubsub.TopicBlocks, event.Topic)
			assert.Equal(t, i, event.Payload)
		}
	})

	t.Run("only delivers subscribed topics", func(t *testing.T) {
		t.Parallel()

		broker := pubsub.NewBroker(mocks.NoopLogger)
		defer broker.Close()

		script := mocks.GenericScriptHash(0)
		sub := broker.Subscribe(pubsub.TopicScript(script))
		defer broker.Unsubscribe(sub)

		broker.Publish(pubsub.TopicBlocks, "ignored")
		broker.Publish(pubsub.TopicScript(mocks.GenericScriptHash(1)), "ignored")
		broker.Publish(pubsub.TopicScript(script), script)

		event := receive(t, sub)
		assert.Equal(t, pubsub.TopicScript(script), event.Topic)
		assert.Equal(t, script, event.Payload)
	})

	t.Run("extends a live subscription", func(t *testing.T) {
		t.Parallel()

		broker := pubsub.NewBroker(mocks.NoopLogger)
		defer broker.Close()

		sub := broker.Subscribe()
		defer broker.Unsubscribe(sub)

		script := mocks.GenericScriptHash(2)
		broker.Publish(pubsub.TopicScript(script), "before extension")

		broker.Extend(sub, pubsub.TopicScript(script))
		broker.Publish(pubsub.TopicScript(script), "after extension")

		event := receive(t, sub)
		assert.Equal(t, "after extension", event.Payload)
	})

	t.Run("delivers to every matching subscription", func(t *testing.T) {
		t.Parallel()

		broker := pubsub.NewBroker(mocks.NoopLogger)
		defer broker.Close()

		first := broker.Subscribe(pubsub.TopicBlocks)
		second := broker.Subscribe(pubsub.TopicBlocks)
		defer broker.Unsubscribe(first)
		defer broker.Unsubscribe(second)

		broker.Publish(pubsub.TopicBlocks, "fan-out")

		assert.Equal(t, "fan-out", receive(t, first).Payload)
		assert.Equal(t, "fan-out", receive(t, second).Payload)
	})

	t.Run("slow consumer does not block the publisher", func(t *testing.T) {
		t.Parallel()

		broker := pubsub.NewBroker(mocks.NoopLogger)
		defer broker.Close()

		slow := broker.Subscribe(pubsub.TopicBlocks)
		defer broker.Unsubscribe(slow)

		// Nobody drains the subscription while we publish; the unbounded
		// queue has to absorb everything without stalling this loop.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 10000; i++ {
				broker.Publish(pubsub.TopicBlocks, i)
			}
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("publisher blocked on slow consumer")
		}

		for i := 0; i < 10000; i++ {
			event := receive(t, slow)
			require.Equal(t, i, event.Payload)
		}
	})

	t.Run("unsubscribing closes the event channel", func(t *testing.T) {
		t.Parallel()

		broker := pubsub.NewBroker(mocks.NoopLogger)
		defer broker.Close()

		sub := broker.Subscribe(pubsub.TopicBlocks)
		broker.Unsubscribe(sub)

		select {
		case _, open := <-sub.Out():
			assert.False(t, open)
		case <-time.After(time.Second):
			t.Fatal("event channel not closed")
		}

		// Publishing to a removed subscription must not panic.
		broker.Publish(pubsub.TopicBlocks, "late")

		// A second unsubscribe must be a no-op.
		broker.Unsubscribe(sub)
	})

	t.Run("closing the broker stops all subscriptions", func(t *testing.T) {
		t.Parallel()

		broker := pubsub.NewBroker(mocks.NoopLogger)

		subs := make([]*pubsub.Subscription, 0, 4)
		for i := 0; i < 4; i++ {
			subs = append(subs, broker.Subscribe(pubsub.TopicBlocks))
		}

		broker.Close()

		for i, sub := range subs {
			select {
			case _, open := <-sub.Out():
				assert.False(t, open)
			case <-time.After(time.Second):
				t.Fatalf("subscription %d not stopped", i)
			}
		}
	})
}

func TestTopicScript(t *testing.T) {
	script := mocks.GenericScriptHash(0)
	assert.Equal(t, fmt.Sprintf("script/%s", script), pubsub.TopicScript(script))
	assert.NotEqual(t, pubsub.TopicScript(script), pubsub.TopicScript(mocks.GenericScriptHash(1)))
}

func receive(t *testing.T, sub *pubsub.Subscription) pubsub.Event {
	t.Helper()

	select {
	case event, open := <-sub.Out():
		require.True(t, open)
		return event
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return pubsub.Event{}
	}
}
