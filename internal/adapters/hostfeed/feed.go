// Package hostfeed adapts a JSON-lines stream of host events and admin
// requests to the primary ports.
package hostfeed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/example/charkeep/internal/ctxutil"
	"github.com/example/charkeep/internal/ports/primary"
)

// maxLineBytes bounds one message; payloads are base64 inside it.
const maxLineBytes = 16 << 20

// Message types.
const (
	TypeConnect    = "connect"
	TypeCapture    = "capture"
	TypeDisconnect = "disconnect"
	TypeTick       = "tick"
	TypeSave       = "save"
	TypeSessions   = "sessions"
	TypeFlush      = "flush"
	TypeMigrations = "migrations"
	TypeRestore    = "restore"
)

// Message is one line of the feed. Payload is base64 on the wire.
type Message struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	Handle      int64  `json:"handle,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Payload     []byte `json:"payload,omitempty"`
	Allowed     *bool  `json:"allowed,omitempty"`
	RecordName  string `json:"record_name,omitempty"`
	Index       int    `json:"index,omitempty"`
}

// Reply answers one message.
type Reply struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Feed dispatches messages to the host and admin ports.
type Feed struct {
	events primary.HostEvents
	admin  primary.AdminService
	logger hclog.Logger

	mu  sync.Mutex
	enc *json.Encoder
}

// NewFeed creates a Feed writing replies to out.
func NewFeed(events primary.HostEvents, admin primary.AdminService, out io.Writer, logger hclog.Logger) *Feed {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Feed{
		events: events,
		admin:  admin,
		logger: logger,
		enc:    json.NewEncoder(out),
	}
}

// Run processes messages from in until EOF or ctx is canceled. A
// malformed line is answered with an error reply and does not stop the
// feed. It returns nil on EOF.
func (f *Feed) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	ctx = ctxutil.WithOperator(ctx, "hostfeed")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("failed to read host feed: %w", err)
					}
				default:
				}
				return nil
			}
			if len(line) == 0 {
				continue
			}
			f.handleLine(ctx, line)
		}
	}
}

func (f *Feed) handleLine(ctx context.Context, line []byte) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		f.logger.Warn("malformed host message", "error", err)
		f.reply(Reply{Type: "error", Error: fmt.Sprintf("malformed message: %v", err)})
		return
	}

	data, err := f.Dispatch(ctx, msg)
	r := Reply{ID: msg.ID, Type: msg.Type, OK: err == nil, Data: data}
	if err != nil {
		r.Error = err.Error()
		f.logger.Debug("host message failed", "type", msg.Type, "handle", msg.Handle, "error", err)
	}
	f.reply(r)
}

// Dispatch routes one message to the matching port operation.
func (f *Feed) Dispatch(ctx context.Context, msg Message) (any, error) {
	handle := primary.ConnectionHandle(msg.Handle)
	switch msg.Type {
	case TypeConnect:
		return nil, f.events.OnPeerConnected(ctx, handle, msg.UserID, msg.DisplayName)
	case TypeCapture:
		return nil, f.events.OnPayloadCaptured(ctx, handle, msg.Payload)
	case TypeDisconnect:
		return nil, f.events.OnPeerDisconnected(ctx, handle)
	case TypeTick:
		return nil, f.events.OnPeriodicTick(ctx)
	case TypeSave:
		return nil, f.events.OnExplicitSaveRequested(ctx)
	case TypeSessions:
		return f.admin.ListSessions(ctx)
	case TypeFlush:
		return f.admin.ForceFlushAll(ctx)
	case TypeMigrations:
		if msg.Allowed != nil {
			if err := f.admin.SetMigrationsAllowed(ctx, *msg.Allowed); err != nil {
				return nil, err
			}
		}
		return map[string]bool{"allowed": f.admin.MigrationsAllowed()}, nil
	case TypeRestore:
		return f.admin.Restore(ctx, primary.RestoreRequest{
			UserID:     msg.UserID,
			RecordName: msg.RecordName,
			Index:      msg.Index,
		})
	case "":
		return nil, errors.New("message type is required")
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (f *Feed) reply(r Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enc.Encode(r); err != nil {
		f.logger.Warn("failed to write reply", "type", r.Type, "error", err)
	}
}
