package nats

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/store"
)

// memKV is an in-memory bucket covering the calls ChatStore makes.
type memKV struct {
	jetstream.KeyValue

	mu   sync.Mutex
	rev  uint64
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (kv *memKV) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.rev++
	kv.data[key] = append([]byte(nil), value...)
	return kv.rev, nil
}

func (kv *memKV) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return kvEntry{key: key, value: v}, nil
}

func (kv *memKV) Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.data[key]; !ok {
		return jetstream.ErrKeyNotFound
	}
	delete(kv.data, key)
	return nil
}

func (kv *memKV) Keys(ctx context.Context, opts ...jetstream.WatchOpt) ([]string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if len(kv.data) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}
	keys := make([]string, 0, len(kv.data))
	for k := range kv.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

type kvEntry struct {
	jetstream.KeyValueEntry
	key   string
	value []byte
}

func (e kvEntry) Key() string   { return e.key }
func (e kvEntry) Value() []byte { return e.value }

func TestChatStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := &ChatStore{kv: newMemKV()}

	now := time.Now().UTC().Truncate(time.Second)
	chat := &model.Chat{
		ID:        "chat-1",
		Title:     "hi",
		UserID:    "user-1",
		CreatedAt: now,
		Path:      model.ChatPath("chat-1"),
		Messages:  []model.Event{{ID: "1", Role: model.RoleUser, Content: "hi"}},
	}
	if err := s.Upsert(ctx, chat); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.Get(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "user-1" || !got.CreatedAt.Equal(now) || len(got.Messages) != 1 || got.Messages[0].Content != "hi" {
		t.Fatalf("chat = %+v", got)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
	}
}

func TestChatStoreListByUser(t *testing.T) {
	ctx := context.Background()
	s := &ChatStore{kv: newMemKV()}

	if chats, err := s.ListByUser(ctx, "user-1"); err != nil || len(chats) != 0 {
		t.Fatalf("empty bucket: %v %v", chats, err)
	}

	now := time.Now()
	for _, c := range []*model.Chat{
		{ID: "old", UserID: "user-1", CreatedAt: now.Add(-time.Hour)},
		{ID: "new", UserID: "user-1", CreatedAt: now},
		{ID: "theirs", UserID: "user-2", CreatedAt: now},
	} {
		if err := s.Upsert(ctx, c); err != nil {
			t.Fatalf("Upsert %s: %v", c.ID, err)
		}
	}

	chats, err := s.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(chats) != 2 || chats[0].ID != "new" || chats[1].ID != "old" {
		t.Fatalf("chats = %+v", chats)
	}
}

func TestChatStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := &ChatStore{kv: newMemKV()}

	if err := s.Upsert(ctx, &model.Chat{ID: "chat-1", UserID: "user-1"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Delete(ctx, "chat-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "chat-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get after delete: err = %v", err)
	}
	if err := s.Delete(ctx, "chat-1"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}
