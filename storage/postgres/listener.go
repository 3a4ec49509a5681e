package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	stdSync "sync"
	"sync/atomic"
	"time"

	"github.com/lib/pq"

	syncErrors "github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/logging"
)

// ConflictNotification is the payload sent on ConflictChannel.
type ConflictNotification struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	IsResolved bool      `json:"is_resolved"`
	DetectedAt time.Time `json:"detected_at"`
}

// ConflictHandler handles one notification. Handlers run on the listener
// goroutine and should return quickly.
type ConflictHandler func(ConflictNotification) error

// ConflictListener delivers conflict record changes from PostgreSQL
// LISTEN/NOTIFY to registered handlers.
type ConflictListener struct {
	logger   *logging.Logger
	listener *pq.Listener
	closed   int32 // atomic
	started  int32 // atomic

	// set once LISTEN succeeded; pq rejects a second LISTEN on the channel
	listening bool

	mu       stdSync.RWMutex
	handlers []ConflictHandler

	done chan struct{}
}

// NewConflictListener creates a listener. Nothing is received until Start.
func NewConflictListener(connectionString string, minReconnect, maxReconnect time.Duration, logger *logging.Logger) (*ConflictListener, error) {
	if connectionString == "" {
		return nil, syncErrors.WrapOpComponentKind(fmt.Errorf("connection string cannot be empty"),
			syncErrors.OpConfigure, component, syncErrors.KindConfiguration)
	}
	if logger == nil {
		logger = logging.WithComponent(logging.ComponentPostgres)
	}

	cl := &ConflictListener{
		logger: logger,
		done:   make(chan struct{}),
	}
	cl.listener = pq.NewListener(connectionString, minReconnect, maxReconnect, cl.eventCallback)
	return cl, nil
}

func (cl *ConflictListener) eventCallback(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		cl.logger.Info("connected for LISTEN/NOTIFY")
	case pq.ListenerEventDisconnected:
		cl.logger.Warn("disconnected from PostgreSQL", slog.Any("error", err))
	case pq.ListenerEventReconnected:
		// pq.Listener re-issues LISTEN for its channels itself
		cl.logger.Info("reconnected to PostgreSQL")
	case pq.ListenerEventConnectionAttemptFailed:
		cl.logger.Warn("connection attempt failed", slog.Any("error", err))
	}
}

// Subscribe registers a handler for every conflict notification.
func (cl *ConflictListener) Subscribe(handler ConflictHandler) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.handlers = append(cl.handlers, handler)
}

// Start issues LISTEN and processes notifications until ctx is done or
// Close is called.
func (cl *ConflictListener) Start(ctx context.Context) error {
	if atomic.LoadInt32(&cl.closed) == 1 {
		return syncErrors.NewInvalidStateError(syncErrors.OpLoad, component, fmt.Errorf("listener is closed"))
	}
	if !atomic.CompareAndSwapInt32(&cl.started, 0, 1) {
		return nil
	}
	if !cl.listening {
		if err := cl.listener.Listen(ConflictChannel); err != nil {
			atomic.StoreInt32(&cl.started, 0)
			return syncErrors.NewStorageError(syncErrors.OpLoad, component,
				fmt.Errorf("failed to listen to channel %s: %w", ConflictChannel, err))
		}
		cl.listening = true
	}
	go cl.listenLoop(ctx)
	return nil
}

// Running reports whether a listen loop is active.
func (cl *ConflictListener) Running() bool {
	return atomic.LoadInt32(&cl.started) == 1
}

func (cl *ConflictListener) listenLoop(ctx context.Context) {
	defer cl.logger.Debug("conflict listener stopped")
	// a cancelled ctx stops this loop only; Start may be called again
	defer atomic.StoreInt32(&cl.started, 0)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cl.done:
			return
		case n := <-cl.listener.Notify:
			// nil after a reconnect
			if n != nil {
				cl.dispatch(n.Extra)
			}
		case <-ping.C:
			go func() {
				if err := cl.listener.Ping(); err != nil {
					cl.logger.Warn("ping failed", slog.Any("error", err))
				}
			}()
		}
	}
}

func (cl *ConflictListener) dispatch(payload string) {
	n, err := ParseConflictNotification(payload)
	if err != nil {
		cl.logger.Warn("dropping malformed notification", slog.Any("error", err))
		return
	}

	cl.mu.RLock()
	handlers := append([]ConflictHandler(nil), cl.handlers...)
	cl.mu.RUnlock()

	for _, h := range handlers {
		if err := h(n); err != nil {
			cl.logger.Warn("conflict handler failed",
				slog.String("conflict_id", n.ID),
				slog.Any("error", err))
		}
	}
}

// ParseConflictNotification decodes a ConflictChannel payload.
func ParseConflictNotification(payload string) (ConflictNotification, error) {
	var n ConflictNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return ConflictNotification{}, syncErrors.NewFormatError(syncErrors.OpLoad, component,
			fmt.Errorf("failed to parse notification payload: %w", err))
	}
	if n.ID == "" {
		return ConflictNotification{}, syncErrors.NewFormatError(syncErrors.OpLoad, component,
			fmt.Errorf("notification payload has no conflict id"))
	}
	return n, nil
}

// Close stops the listen loop and releases the connection.
func (cl *ConflictListener) Close() error {
	if !atomic.CompareAndSwapInt32(&cl.closed, 0, 1) {
		return nil
	}
	close(cl.done)
	return cl.listener.Close()
}
