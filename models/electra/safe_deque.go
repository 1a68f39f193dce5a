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

package electra

import (
	"sync"

	"github.com/gammazero/deque"
)

// SafeDeque wraps a deque with a mutex so that it can be shared between the
// goroutine queueing notifications and the one draining them.
type SafeDeque struct {
	mutex *sync.Mutex
	deque *deque.Deque
}

func NewDeque() *SafeDeque {
	s := SafeDeque{
		mutex: &sync.Mutex{},
		deque: deque.New(),
	}
	return &s
}

func (s *SafeDeque) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.deque.Len()
}

func (s *SafeDeque) PushBack(v interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.deque.PushBack(v)
}

func (s *SafeDeque) PopFront() interface{} {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.deque.Len() == 0 {
		return nil
	}
	return s.deque.PopFront()
}

func (s *SafeDeque) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.deque.Clear()
}
