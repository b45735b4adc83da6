package autoplay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/ludotime/go/internal/engine"
	"github.com/mcdev12/ludotime/go/internal/session"
)

// Sessions is what the scheduler needs from the synchronizer.
type Sessions interface {
	Watch(ctx context.Context, code string, handler session.Handler) (*session.Watcher, error)
	ForceTurn(ctx context.Context, code string, player int, chooser session.PawnChooser) (session.ForcedTurn, error)
}

// Config controls idle-turn autoplay.
type Config struct {
	TurnTimeout time.Duration
	Strategy    session.PawnChooser
}

func DefaultConfig() Config {
	return Config{TurnTimeout: 30 * time.Second, Strategy: FirstMovable{}}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

type turn struct {
	code    string
	player  int
	version int64
}

type turnTimer struct {
	turn
	timer clockwork.Timer
}

// Scheduler plays the turn of any player who sits on it longer than the turn
// timeout. Register it as a synchronizer listener so new sessions are picked
// up, then call Run.
type Scheduler struct {
	session.NopListener

	config  Config
	clock   clockwork.Clock
	follows chan string
	workCh  chan turn

	mu     sync.Mutex
	timers map[string]*turnTimer
}

func NewScheduler(config Config, opts ...Option) (*Scheduler, error) {
	if config.TurnTimeout <= 0 {
		return nil, fmt.Errorf("autoplay turn timeout must be positive, got %s", config.TurnTimeout)
	}
	if config.Strategy == nil {
		config.Strategy = FirstMovable{}
	}
	s := &Scheduler{
		config:  config,
		clock:   clockwork.NewRealClock(),
		follows: make(chan string, 64),
		workCh:  make(chan turn, 64),
		timers:  make(map[string]*turnTimer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SessionCreated starts following the new session.
func (s *Scheduler) SessionCreated(code string) {
	s.Follow(code)
}

// Follow starts timing turns of an existing session.
func (s *Scheduler) Follow(code string) {
	select {
	case s.follows <- session.NormalizeCode(code):
	default:
		log.Warn().Str("session_code", code).Msg("autoplay queue full, session not followed")
	}
}

// Run follows queued sessions and forces expired turns until ctx is done.
func (s *Scheduler) Run(ctx context.Context, sessions Sessions) error {
	log.Info().Dur("turn_timeout", s.config.TurnTimeout).Msg("autoplay scheduler started")
	defer s.stopAll()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("autoplay scheduler shutting down")
			return nil
		case code := <-s.follows:
			if _, err := sessions.Watch(ctx, code, s.handler(code)); err != nil {
				log.Error().Err(err).Str("session_code", code).Msg("autoplay failed to follow session")
			}
		case t := <-s.workCh:
			s.force(ctx, sessions, t)
		}
	}
}

// Armed reports the player whose turn is being timed in code.
func (s *Scheduler) Armed(code string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tt, ok := s.timers[code]
	if !ok {
		return 0, false
	}
	return tt.player, true
}

// handler restarts the turn timer whenever the seat to move acts, so a player
// who rolls late still gets a full timeout to pick a pawn.
func (s *Scheduler) handler(code string) session.Handler {
	return func(ev session.Event) {
		switch ev.Type {
		case session.EventTurnChanged:
			s.arm(turn{code: code, player: ev.Player, version: ev.Version})
		case session.EventDiceRolled, session.EventPawnMoved:
			if player, ok := s.Armed(code); !ok || player == ev.Player {
				s.arm(turn{code: code, player: ev.Player, version: ev.Version})
			}
		case session.EventGameEnded, session.EventSessionError:
			s.cancel(code)
		}
	}
}

func (s *Scheduler) arm(t turn) {
	tt := &turnTimer{turn: t}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[t.code]; ok {
		old.timer.Stop()
	}
	tt.timer = s.clock.AfterFunc(s.config.TurnTimeout, func() { s.expire(tt) })
	s.timers[t.code] = tt

	log.Debug().
		Str("session_code", t.code).
		Int("player", t.player).
		Int64("version", t.version).
		Msg("turn timer armed")
}

func (s *Scheduler) expire(tt *turnTimer) {
	s.mu.Lock()
	if s.timers[tt.code] != tt {
		s.mu.Unlock()
		return
	}
	delete(s.timers, tt.code)
	s.mu.Unlock()

	select {
	case s.workCh <- tt.turn:
		log.Debug().Str("session_code", tt.code).Int("player", tt.player).Msg("turn timer expired")
	default:
		log.Warn().Str("session_code", tt.code).Msg("turn timer expired but work channel full")
	}
}

func (s *Scheduler) cancel(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tt, ok := s.timers[code]; ok {
		tt.timer.Stop()
		delete(s.timers, code)
		log.Debug().Str("session_code", code).Msg("turn timer cancelled")
	}
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, tt := range s.timers {
		tt.timer.Stop()
		delete(s.timers, code)
	}
}

func (s *Scheduler) force(ctx context.Context, sessions Sessions, t turn) {
	res, err := sessions.ForceTurn(ctx, t.code, t.player, s.config.Strategy)
	switch {
	case errors.Is(err, engine.ErrIllegalMove), errors.Is(err, session.ErrSessionNotFound):
		log.Debug().Err(err).Str("session_code", t.code).Int("player", t.player).Msg("idle turn already resolved")
	case err != nil:
		log.Error().Err(err).Str("session_code", t.code).Int("player", t.player).Msg("failed to force idle turn")
	default:
		ev := log.Info().
			Str("session_code", t.code).
			Int("player", t.player).
			Int("roll", res.Roll).
			Bool("passed", res.Passed)
		if res.Move != nil {
			ev = ev.Int("pawn", res.Move.Pawn).Stringer("to", res.Move.To)
		}
		ev.Msg("idle turn autoplayed")
	}
}
