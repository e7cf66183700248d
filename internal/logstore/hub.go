package logstore

import (
	"context"
	"sync"
)

// subscriber は1本の購読を表す。signalは容量1で、未処理の通知は1つにまとめられる。
type subscriber struct {
	userID string
	signal chan struct{}
}

// Hub はNotifierからの変更通知をユーザーごとの購読者に振り分ける。
type Hub struct {
	notifier Notifier

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub はHubを生成する。Runを呼ぶまで通知は配信されない。
func NewHub(notifier Notifier) *Hub {
	return &Hub{
		notifier: notifier,
		subs:     make(map[string]map[*subscriber]struct{}),
	}
}

// Run はctxが終了するかNotifierのチャネルが閉じるまで通知を配信する。
func (h *Hub) Run(ctx context.Context) {
	ch := h.notifier.Notifications()
	for {
		select {
		case <-ctx.Done():
			return
		case userID, ok := <-ch:
			if !ok {
				return
			}
			h.Publish(userID)
		}
	}
}

// Publish はuserIDの購読者に変更を通知する。AllUsersの場合は全購読者に通知する。
// 受信側が処理中でもブロックしない。
func (h *Hub) Publish(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if userID == AllUsers {
		for _, set := range h.subs {
			for s := range set {
				s.notify()
			}
		}
		return
	}
	for s := range h.subs[userID] {
		s.notify()
	}
}

func (s *subscriber) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (h *Hub) register(userID string) *subscriber {
	s := &subscriber{userID: userID, signal: make(chan struct{}, 1)}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[userID] = set
	}
	set[s] = struct{}{}
	return s
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.userID]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.userID)
	}
}

// SubscriberCount はuserIDの購読者数を返す。
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
