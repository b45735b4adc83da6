package store

import (
	"context"
	"encoding/json"
	"testing"
)

func rec(key string, version int64) Record {
	return Record{Key: key, Value: json.RawMessage(`{}`), Version: version}
}

func TestBrokerKeepsLatestForSlowReader(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch := b.Subscribe(context.Background(), "K", nil)
	b.Publish(rec("K", 1))
	b.Publish(rec("K", 2))
	b.Publish(rec("K", 3))

	if got := <-ch; got.Version != 3 {
		t.Errorf("version = %d, want 3", got.Version)
	}
	select {
	case got := <-ch:
		t.Errorf("unexpected extra record %+v", got)
	default:
	}
}

func TestBrokerDropsStaleRecords(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch := b.Subscribe(context.Background(), "K", nil)
	b.Publish(rec("K", 5))
	<-ch
	b.Publish(rec("K", 4))
	b.Publish(rec("K", 5))

	select {
	case got := <-ch:
		t.Errorf("stale record delivered: %+v", got)
	default:
	}
}

func TestBrokerInitialRecord(t *testing.T) {
	tests := []struct {
		name      string
		published []int64
		initial   *Record
		want      int64
	}{
		{name: "initial only", initial: &Record{Key: "K", Version: 2}, want: 2},
		{name: "published newer than initial", published: []int64{3}, initial: &Record{Key: "K", Version: 2}, want: 3},
		{name: "initial newer than published", published: []int64{1}, initial: &Record{Key: "K", Version: 2}, want: 2},
		{name: "no initial", published: []int64{7}, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBroker()
			defer b.Close()
			for _, v := range tt.published {
				b.Publish(rec("K", v))
			}
			ch := b.Subscribe(context.Background(), "K", tt.initial)
			if got := <-ch; got.Version != tt.want {
				t.Errorf("first version = %d, want %d", got.Version, tt.want)
			}
		})
	}
}

func TestBrokerKeysAreIsolated(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	a := b.Subscribe(context.Background(), "A", nil)
	b.Publish(rec("B", 1))
	select {
	case got := <-a:
		t.Errorf("subscriber of A got %+v", got)
	default:
	}
}

func TestBrokerCloseEndsSubscriptions(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(context.Background(), "K", nil)
	b.Close()
	if _, ok := <-ch; ok {
		t.Error("channel still open after Close")
	}
	if _, ok := <-b.Subscribe(context.Background(), "K", nil); ok {
		t.Error("subscription after Close is open")
	}
}
