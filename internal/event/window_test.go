package event

import (
	"testing"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

func TestIsActive_InclusiveBounds(t *testing.T) {
	ev := &model.Event{StartsAt: 1000, EndsAt: 2000}

	tests := []struct {
		now  int64
		want bool
	}{
		{999, false},
		{1000, true},
		{1500, true},
		{2000, true},
		{2001, false},
	}
	for _, tt := range tests {
		if got := IsActive(ev, tt.now); got != tt.want {
			t.Errorf("IsActive(ev, %d) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

func TestIsActive_InstantEvent(t *testing.T) {
	ev := &model.Event{StartsAt: 500, EndsAt: 500}
	if !IsActive(ev, 500) {
		t.Error("event with startsAt == endsAt should be active at that instant")
	}
	if IsActive(ev, 501) {
		t.Error("event should be inactive after its single instant")
	}
}

func TestIsActive_NilEvent(t *testing.T) {
	if IsActive(nil, 1000) {
		t.Error("nil event should never be active")
	}
}
