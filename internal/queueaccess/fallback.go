package queueaccess

import (
	"fmt"

	"localqueue/internal/api"
	"localqueue/internal/ipc"
)

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries IPC-backed access first, then falls back to opening
// the queue store directly.
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	openQueue func() (*api.Queue, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{
				Access: NewIPCAccess(client),
				close:  client.Close,
			}, nil
		}
	}

	if openQueue == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	q, err := openQueue()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{
		Access: NewQueueAccess(q),
		close:  q.Close,
	}, nil
}
