package logstore

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

// AllUsers はユーザーを特定できない変更通知を表す。
// 受信した購読者は全員スナップショットを取り直す。
const AllUsers = ""

// Notifier は記録が変更されたユーザーIDを配信する。
type Notifier interface {
	// Notifications は変更されたユーザーIDを流すチャネルを返す。
	// Close後にチャネルは閉じられる。
	Notifications() <-chan string
	Close() error
}

// PQNotifier はPostgreSQLのLISTEN/NOTIFYを使うNotifier。
// プロセスにつき1本の専用接続で全ユーザー分を受信する。
type PQNotifier struct {
	listener  *pq.Listener
	out       chan string
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewPQNotifier はchannelをLISTENするNotifierを生成する。
// 接続が切れた場合、pq.Listenerが自動で再接続し、再接続後はAllUsersを配信する。
func NewPQNotifier(databaseURL, channel string, logger *slog.Logger) (*PQNotifier, error) {
	n := &PQNotifier{
		out:    make(chan string, 64),
		logger: logger,
		done:   make(chan struct{}),
	}

	n.listener = pq.NewListener(databaseURL, time.Second, time.Minute, n.onEvent)
	if err := n.listener.Listen(channel); err != nil {
		n.listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	go n.run()
	return n, nil
}

func (n *PQNotifier) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		n.logger.Warn("change listener connection lost", slog.String("error", msg))
	case pq.ListenerEventReconnected:
		n.logger.Info("change listener reconnected")
	}
}

func (n *PQNotifier) run() {
	defer close(n.out)

	// 長時間通知がない場合でも接続の生存を確認する
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-n.done:
			return
		case notification, ok := <-n.listener.Notify:
			if !ok {
				return
			}
			// nilは再接続を意味し、その間の通知は失われている
			userID := AllUsers
			if notification != nil {
				userID = notification.Extra
			}
			select {
			case n.out <- userID:
			case <-n.done:
				return
			}
		case <-ping.C:
			if err := n.listener.Ping(); err != nil {
				n.logger.Warn("change listener ping failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Notifications は変更されたユーザーIDを流すチャネルを返す。
func (n *PQNotifier) Notifications() <-chan string {
	return n.out
}

// Close はLISTEN接続を閉じる。
func (n *PQNotifier) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		err = n.listener.Close()
	})
	return err
}

var _ Notifier = (*PQNotifier)(nil)
