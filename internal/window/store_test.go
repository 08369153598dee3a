// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package window

import (
	"sync"
	"testing"
	"time"
)

func TestStore_PushAndView(t *testing.T) {
	s := NewStore[int, string](func(channel string) Limits {
		if channel == "click" {
			return Limits{MaxCount: 3, MaxAge: time.Second}
		}
		return Limits{MaxCount: 10}
	})

	for i := 0; i < 5; i++ {
		if err := s.Push(1, "click", Sample{Time: at(i * 10), Value: float64(i)}); err != nil {
			t.Fatalf("Push() error = %v", err)
		}
		_ = s.Push(1, "chat", Sample{Time: at(i * 10), Value: float64(i)})
	}

	if got := s.Len(1, "click"); got != 3 {
		t.Errorf("Len(click) = %d, want 3", got)
	}
	if got := s.Len(1, "chat"); got != 5 {
		t.Errorf("Len(chat) = %d, want 5", got)
	}

	var values []float64
	for smp := range s.View(1, "click") {
		values = append(values, smp.Value)
	}
	if len(values) != 3 || values[0] != 2 || values[2] != 4 {
		t.Errorf("View(click) = %v, want [2 3 4]", values)
	}
}

func TestStore_ViewUnknown(t *testing.T) {
	s := NewStore[int, string](nil)
	for range s.View(42, "click") {
		t.Fatal("View of unknown subject yielded a sample")
	}
	if s.Subjects() != 0 {
		t.Errorf("View created a subject")
	}
}

func TestStore_EvictExpired(t *testing.T) {
	s := NewStore[int, string](func(string) Limits {
		return Limits{MaxCount: 100, MaxAge: time.Second}
	})
	for id := 1; id <= 3; id++ {
		for i := 0; i < 10; i++ {
			_ = s.Push(id, "click", Sample{Time: at(i * 100)})
		}
	}

	evicted := s.EvictExpired(at(1500))
	if evicted != 3*5 {
		t.Errorf("EvictExpired() = %d, want 15", evicted)
	}
	for id := 1; id <= 3; id++ {
		for smp := range s.View(id, "click") {
			if at(1500).Sub(smp.Time) > time.Second {
				t.Errorf("subject %d retained expired sample at %v", id, smp.Time)
			}
		}
	}
}

func TestStore_Remove(t *testing.T) {
	s := NewStore[int, string](nil)
	_ = s.Push(1, "click", Sample{Time: at(0)})
	_ = s.Push(1, "chat", Sample{Time: at(0)})
	_ = s.Push(2, "click", Sample{Time: at(0)})

	s.Remove(1)

	if s.Subjects() != 1 {
		t.Errorf("Subjects() = %d, want 1", s.Subjects())
	}
	if len(s.Channels(1)) != 0 {
		t.Errorf("Channels(1) not empty after Remove")
	}
	if s.Len(2, "click") != 1 {
		t.Errorf("Remove(1) affected subject 2")
	}
}

func TestStore_ConcurrentSubjects(t *testing.T) {
	s := NewStore[int, string](func(string) Limits { return Limits{MaxCount: 50} })

	var wg sync.WaitGroup
	for id := 0; id < 8; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = s.Push(id, "click", Sample{Time: at(i)})
			}
		}(id)
	}
	wg.Wait()

	for id := 0; id < 8; id++ {
		if got := s.Len(id, "click"); got != 50 {
			t.Errorf("Len(%d) = %d, want 50", id, got)
		}
	}
}
