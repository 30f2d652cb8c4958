package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/nexis84/Eve-Market-Bot/dispatch"
	"github.com/nexis84/Eve-Market-Bot/ratelimit"
	"github.com/nexis84/Eve-Market-Bot/telemetry"
)

// MaxMessageLen is the Twitch limit for one chat message, in characters.
const MaxMessageLen = 500

// DefaultConnectTimeout bounds Connect when Options.ConnectTimeout is zero.
const DefaultConnectTimeout = 15 * time.Second

var errNotConnected = errors.New("chat: not connected")

// IRC is the subset of the go-twitch-irc client used by Session.
type IRC interface {
	OnPrivateMessage(func(twitch.PrivateMessage))
	OnConnect(func())
	Join(channels ...string)
	Connect() error
	// Disconnect closes an established connection. Before the connection is up it does
	// nothing and returns an error (go-twitch-irc's ErrConnectionIsNotOpen).
	Disconnect() error
	Say(channel, text string)
}

// ircClient adapts *twitch.Client to IRC.
type ircClient struct{ c *twitch.Client }

func (i ircClient) OnPrivateMessage(fn func(twitch.PrivateMessage)) {
	i.c.OnPrivateMessage(fn)
}

func (i ircClient) OnConnect(fn func()) {
	i.c.OnConnect(fn)
}

func (i ircClient) Join(channels ...string) {
	i.c.Join(channels...)
}

func (i ircClient) Connect() error {
	return i.c.Connect()
}

func (i ircClient) Disconnect() error {
	return i.c.Disconnect()
}

func (i ircClient) Say(channel, text string) {
	i.c.Say(channel, text)
}

// Handler produces the reply for an inbound message. ok is false when no reply is due.
type Handler interface {
	Handle(ctx context.Context, msg dispatch.Message) (reply string, ok bool)
}

// Options configures a Session.
type Options struct {
	Username       string
	Token          string
	Channels       []string
	ConnectTimeout time.Duration
	Limiter        *ratelimit.Limiter
}

// Session is a connected bot identity in one or more channels.
type Session struct {
	irc      IRC
	opts     Options
	handler  Handler
	username string

	connected atomic.Bool

	// base is the parent context of message handlers; cancelled by Disconnect.
	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup

	loopDone chan struct{}
	loopErr  error
}

// NewSession builds a session backed by a real Twitch IRC client.
func NewSession(opts Options, h Handler) *Session {
	c := twitch.NewClient(opts.Username, "oauth:"+strings.TrimPrefix(opts.Token, "oauth:"))
	return NewSessionWithClient(ircClient{c: c}, opts, h)
}

// NewSessionWithClient builds a session on an arbitrary IRC implementation.
func NewSessionWithClient(irc IRC, opts Options, h Handler) *Session {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	return &Session{
		irc:      irc,
		opts:     opts,
		handler:  h,
		username: strings.ToLower(opts.Username),
		base:     base,
		cancel:   cancel,
	}
}

// Connected reports whether the IRC connection is currently up.
func (s *Session) Connected() bool { return s.connected.Load() }

// Connect joins the configured channels and starts the IRC loop.
func (s *Session) Connect(ctx context.Context) error {
	up := make(chan struct{})
	var upOnce sync.Once
	s.irc.OnConnect(func() {
		s.connected.Store(true)
		telemetry.SetChatConnected(true)
		slog.Info("twitch chat connected", slog.String("component", "chat"), slog.Any("channels", s.opts.Channels))
		upOnce.Do(func() { close(up) })
	})
	s.irc.OnPrivateMessage(s.onMessage)
	s.irc.Join(s.opts.Channels...)

	s.loopDone = make(chan struct{})
	go s.run()

	timer := time.NewTimer(s.opts.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-up:
		return nil
	case <-s.loopDone:
		return fmt.Errorf("twitch chat connect: %w", s.loopErr)
	case <-timer.C:
		s.closeIRC("connect timeout")
		return fmt.Errorf("twitch chat connect: timed out after %s", s.opts.ConnectTimeout)
	case <-ctx.Done():
		s.closeIRC("connect cancelled")
		return ctx.Err()
	}
}

// closeIRC asks the client to disconnect and logs a refusal, which happens when the
// connection was never established.
func (s *Session) closeIRC(reason string) {
	if err := s.irc.Disconnect(); err != nil {
		slog.Warn("twitch chat disconnect failed", slog.String("component", "chat"), slog.String("reason", reason), slog.Any("err", err))
	}
}

func (s *Session) run() {
	defer close(s.loopDone)
	err := s.irc.Connect()
	if err == nil {
		err = errors.New("connection closed")
	}
	s.loopErr = err
	wasUp := s.connected.Swap(false)
	telemetry.SetChatConnected(false)

	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	switch {
	case closing:
		slog.Info("twitch chat disconnected", slog.String("component", "chat"))
	case wasUp:
		slog.Error("twitch chat connection lost", slog.String("component", "chat"), slog.Any("err", err))
	default:
		slog.Error("twitch chat connect error", slog.String("component", "chat"), slog.Any("err", err))
	}
}

func (s *Session) onMessage(msg twitch.PrivateMessage) {
	if s.username != "" && strings.EqualFold(msg.User.Name, s.username) {
		return
	}
	telemetry.IncChatMessage()
	m := dispatch.Message{Channel: msg.Channel, User: msg.User.Name, Text: msg.Message}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		reply, ok := s.handler.Handle(s.base, m)
		if ok && reply != "" {
			s.Send(s.base, m.Channel, reply)
		}
	}()
}

// Send queues text for channel behind the chat limiter. Failures are logged, not returned.
func (s *Session) Send(ctx context.Context, channel, text string) {
	text = truncate(text, MaxMessageLen)
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "chat"), slog.String("channel", channel))
	err := s.opts.Limiter.Do(ctx, func(context.Context) error {
		if !s.connected.Load() {
			return errNotConnected
		}
		s.irc.Say(channel, text)
		return nil
	})
	if err != nil {
		telemetry.IncChatSendFailure()
		logger.Warn("chat send failed", slog.Any("err", err))
		return
	}
	logger.Debug("chat message sent", slog.Int("len", len(text)))
}

// Disconnect stops accepting messages, waits for in-flight replies until ctx ends, and
// closes the IRC connection.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()
	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("chat: waiting for in-flight replies: %w", ctx.Err())
	}
	s.cancel()
	s.closeIRC("shutdown")

	if s.loopDone != nil {
		select {
		case <-s.loopDone:
		case <-ctx.Done():
			if err == nil {
				err = fmt.Errorf("chat: waiting for irc loop: %w", ctx.Err())
			}
		}
	}
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
