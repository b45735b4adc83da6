package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/ludotime/go/internal/board"
	"github.com/mcdev12/ludotime/go/internal/engine"
	"github.com/mcdev12/ludotime/go/internal/models"
	"github.com/mcdev12/ludotime/go/internal/store"
	"github.com/rs/zerolog/log"
)

const maxCodeAttempts = 8

// errNoChange aborts a transaction without writing.
var errNoChange = errors.New("no change")

// PawnChooser picks which pawn to move for a forced turn. It is only called
// while the game awaits a pawn selection.
type PawnChooser interface {
	ChoosePawn(g *engine.Game) (int, error)
}

// ForcedTurn reports what ForceTurn did.
type ForcedTurn struct {
	Player int
	Roll   int
	Passed bool
	Move   *models.Move
}

// Synchronizer runs session operations as transactions against the shared
// document store. Every operation reads the document, validates and mutates it
// through the turn engine, and commits only if nobody else committed first.
type Synchronizer struct {
	repo     *Repository
	dir      *Directory
	roller   Roller
	clock    clockwork.Clock
	retry    RetryPolicy
	rules    []engine.Option
	listener Listener
}

type Option func(*Synchronizer)

func WithRoller(r Roller) Option {
	return func(s *Synchronizer) { s.roller = r }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Synchronizer) { s.clock = c }
}

// WithRetryPolicy sets how conflicted transactions are re-driven. The default
// is a single attempt.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Synchronizer) { s.retry = p }
}

func WithSafeCells(p board.SafeCellPolicy) Option {
	return func(s *Synchronizer) { s.rules = append(s.rules, engine.WithSafeCells(p)) }
}

// WithListener receives SessionCreated and SessionError for operations run
// through this synchronizer.
func WithListener(l Listener) Option {
	return func(s *Synchronizer) { s.listener = l }
}

func WithDirectory(d *Directory) Option {
	return func(s *Synchronizer) { s.dir = d }
}

func NewSynchronizer(st store.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		repo:     NewRepository(st),
		dir:      NewDirectory(),
		roller:   RandomRoller{},
		clock:    clockwork.NewRealClock(),
		retry:    NoRetry(),
		listener: NopListener{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository exposes the document repository for watchers.
func (s *Synchronizer) Repository() *Repository {
	return s.repo
}

// CreateSession allocates a session with the host in slot 0, already ready.
func (s *Synchronizer) CreateSession(ctx context.Context, hostID, hostName string) (models.Session, error) {
	if strings.TrimSpace(hostID) == "" {
		return models.Session{}, s.fail("create", "", fmt.Errorf("%w: host id is required", engine.ErrInvalidInput))
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.dir.NewCode()
		if err != nil {
			return models.Session{}, s.fail("create", "", err)
		}
		sess := models.Session{
			Code:                code,
			HostPlayerID:        hostID,
			MaxPlayers:          models.MaxPlayers,
			CurrentPlayerCount:  1,
			LastUpdateTimestamp: s.clock.Now().UnixMilli(),
			Slots:               make([]models.Slot, models.MaxPlayers),
		}
		sess.Slots[0] = models.Slot{PlayerID: hostID, DisplayName: hostName, IsReady: true}

		doc, err := s.repo.Create(ctx, sess)
		if errors.Is(err, store.ErrAlreadyExists) {
			log.Debug().Str("session_code", code).Int("attempt", attempt).Msg("session code taken")
			continue
		}
		if err != nil {
			return models.Session{}, s.fail("create", code, fmt.Errorf("create session: %w", err))
		}

		log.Info().
			Str("session_code", code).
			Str("host_player_id", hostID).
			Msg("session created")
		s.listener.SessionCreated(code)
		return doc.Session, nil
	}
	return models.Session{}, s.fail("create", "", fmt.Errorf("no free session code after %d attempts", maxCodeAttempts))
}

// GetSession returns the current document for code.
func (s *Synchronizer) GetSession(ctx context.Context, code string) (models.Session, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		return models.Session{}, fmt.Errorf("%w: malformed code %q", ErrSessionNotFound, code)
	}
	doc, err := s.repo.Load(ctx, code)
	if err != nil {
		return models.Session{}, err
	}
	return doc.Session, nil
}

// JoinSession claims the lowest free slot for playerID.
func (s *Synchronizer) JoinSession(ctx context.Context, code, playerID, displayName string) (models.Session, error) {
	if strings.TrimSpace(playerID) == "" {
		return models.Session{}, s.fail("join", code, fmt.Errorf("%w: player id is required", engine.ErrInvalidInput))
	}
	doc, err := s.transact(ctx, "join", code, func(sess *models.Session) (bool, error) {
		if sess.SlotOf(playerID) >= 0 {
			return false, fmt.Errorf("%w: %s already joined", ErrJoinRejected, playerID)
		}
		if sess.GameStarted {
			return false, fmt.Errorf("%w: game already started", ErrJoinRejected)
		}
		slot := FirstFreeSlot(sess.Slots)
		if slot < 0 {
			return false, fmt.Errorf("%w: session is full", ErrJoinRejected)
		}
		sess.Slots[slot] = models.Slot{PlayerID: playerID, DisplayName: displayName}
		sess.CurrentPlayerCount = sess.OccupiedSlots()
		return false, nil
	})
	if errors.Is(err, ErrTransactionConflict) {
		err = fmt.Errorf("%w: %w", ErrJoinRejected, err)
	}
	if err != nil {
		return models.Session{}, s.fail("join", code, err)
	}

	log.Info().
		Str("session_code", doc.Session.Code).
		Str("player_id", playerID).
		Int("slot", doc.Session.SlotOf(playerID)).
		Msg("player joined")
	return doc.Session, nil
}

// SetReady sets the caller's ready flag. Only allowed before the game starts.
func (s *Synchronizer) SetReady(ctx context.Context, code, playerID string, ready bool) (models.Session, error) {
	doc, err := s.transact(ctx, "set_ready", code, func(sess *models.Session) (bool, error) {
		seat, err := seatOf(sess, playerID)
		if err != nil {
			return false, err
		}
		if sess.GameStarted {
			return false, fmt.Errorf("%w: game already started", engine.ErrIllegalMove)
		}
		if sess.Slots[seat].IsReady == ready {
			return false, errNoChange
		}
		sess.Slots[seat].IsReady = ready
		return false, nil
	})
	if err != nil {
		return models.Session{}, s.fail("set_ready", code, err)
	}
	return doc.Session, nil
}

// StartSession starts the game. Only the host may start, and only with four
// ready players.
func (s *Synchronizer) StartSession(ctx context.Context, code, playerID string) (models.Session, error) {
	doc, err := s.transact(ctx, "start", code, func(sess *models.Session) (bool, error) {
		if _, err := seatOf(sess, playerID); err != nil {
			return false, err
		}
		if sess.HostPlayerID != playerID {
			return false, ErrNotHost
		}
		if sess.GameStarted {
			return false, fmt.Errorf("%w: game already started", engine.ErrIllegalMove)
		}
		if occupied, ready := sess.OccupiedSlots(), sess.ReadySlots(); occupied != models.MaxPlayers || ready != models.MaxPlayers {
			return false, fmt.Errorf("%w: need %d ready players, have %d of %d ready",
				engine.ErrIllegalMove, models.MaxPlayers, ready, occupied)
		}
		sess.GameStarted = true
		storeGame(sess, engine.New(s.rules...))
		return false, nil
	})
	if err != nil {
		return models.Session{}, s.fail("start", code, err)
	}

	log.Info().Str("session_code", doc.Session.Code).Msg("game started")
	return doc.Session, nil
}

// RollDice rolls for the caller, who must hold the current turn.
func (s *Synchronizer) RollDice(ctx context.Context, code, playerID string) (int, error) {
	var value int
	_, err := s.transact(ctx, "roll_dice", code, func(sess *models.Session) (bool, error) {
		seat, err := seatOf(sess, playerID)
		if err != nil {
			return false, err
		}
		g, err := s.loadGame(sess)
		if err != nil {
			return false, err
		}
		if err := g.CanRoll(seat); err != nil {
			return false, err
		}
		if value, err = s.roller.Roll(); err != nil {
			return false, err
		}
		if err := g.RollDice(seat, value); err != nil {
			return false, err
		}
		recordRoll(sess, seat, value)
		storeGame(sess, g)
		return false, nil
	})
	if err != nil {
		return 0, s.fail("roll_dice", code, err)
	}

	log.Debug().Str("session_code", code).Str("player_id", playerID).Int("value", value).Msg("dice rolled")
	return value, nil
}

// PlayRound resolves the caller's roll. It reports true when the caller had
// no legal move and the turn passed.
func (s *Synchronizer) PlayRound(ctx context.Context, code, playerID string) (bool, error) {
	var passed bool
	_, err := s.transact(ctx, "play_round", code, func(sess *models.Session) (bool, error) {
		seat, err := seatOf(sess, playerID)
		if err != nil {
			return false, err
		}
		g, err := s.loadGame(sess)
		if err != nil {
			return false, err
		}
		if seat != g.CurrentPlayer() {
			return false, fmt.Errorf("%w: it is %s's turn", engine.ErrIllegalMove, board.ColorName(g.CurrentPlayer()))
		}
		wasAwaiting := g.IsAwaitingPawnSelection()
		if passed, err = g.PlayRound(); err != nil {
			return false, err
		}
		if !passed && wasAwaiting {
			return false, errNoChange
		}
		if passed {
			skipInactive(sess, g)
		}
		storeGame(sess, g)
		return false, nil
	})
	if err != nil {
		return false, s.fail("play_round", code, err)
	}
	return passed, nil
}

// SelectPawn moves one of the caller's pawns by the current roll.
func (s *Synchronizer) SelectPawn(ctx context.Context, code, playerID string, pawn int) (models.Move, error) {
	var move models.Move
	_, err := s.transact(ctx, "select_pawn", code, func(sess *models.Session) (bool, error) {
		seat, err := seatOf(sess, playerID)
		if err != nil {
			return false, err
		}
		g, err := s.loadGame(sess)
		if err != nil {
			return false, err
		}
		if move, err = g.SelectPawn(seat, pawn); err != nil {
			return false, err
		}
		finishMove(sess, g, move)
		return false, nil
	})
	if err != nil {
		return models.Move{}, s.fail("select_pawn", code, err)
	}

	log.Debug().
		Str("session_code", code).
		Str("player_id", playerID).
		Int("pawn", pawn).
		Str("to", move.To.String()).
		Int("captures", len(move.Captures)).
		Msg("pawn moved")
	return move, nil
}

// LeaveSession removes the caller. When the host leaves the whole session is
// deleted; anyone else just frees their slot.
func (s *Synchronizer) LeaveSession(ctx context.Context, code, playerID string) error {
	doc, err := s.transact(ctx, "leave", code, func(sess *models.Session) (bool, error) {
		seat, err := seatOf(sess, playerID)
		if err != nil {
			return false, err
		}
		if sess.HostPlayerID == playerID {
			return true, nil
		}
		sess.Slots[seat] = models.Slot{}
		sess.CurrentPlayerCount = sess.OccupiedSlots()

		if sess.GameStarted && sess.Game != nil {
			g, err := s.loadGame(sess)
			if err != nil {
				return false, err
			}
			if !g.IsGameOver() {
				settleAbandoned(sess, g)
				if !g.IsGameOver() && g.CurrentPlayer() == seat {
					g.AdvanceTurn()
					skipInactive(sess, g)
				}
				storeGame(sess, g)
			}
		}
		return false, nil
	})
	if err != nil {
		return s.fail("leave", code, err)
	}

	log.Info().
		Str("session_code", doc.Session.Code).
		Str("player_id", playerID).
		Bool("session_deleted", doc.Deleted).
		Msg("player left")
	return nil
}

// ForceTurn plays the rest of the current turn on behalf of player: it rolls
// if needed, resolves the round and, when a pawn must be chosen, asks chooser.
// It fails with engine.ErrIllegalMove if player no longer holds the turn.
func (s *Synchronizer) ForceTurn(ctx context.Context, code string, player int, chooser PawnChooser) (ForcedTurn, error) {
	var res ForcedTurn
	_, err := s.transact(ctx, "force_turn", code, func(sess *models.Session) (bool, error) {
		res = ForcedTurn{Player: player}
		g, err := s.loadGame(sess)
		if err != nil {
			return false, err
		}
		if g.IsGameOver() {
			return false, fmt.Errorf("%w: game is over", engine.ErrIllegalMove)
		}
		if g.CurrentPlayer() != player {
			return false, fmt.Errorf("%w: turn already moved on to %s", engine.ErrIllegalMove, board.ColorName(g.CurrentPlayer()))
		}
		if player >= len(sess.Slots) || !sess.Slots[player].Occupied() {
			return false, fmt.Errorf("%w: %s's seat is empty", engine.ErrIllegalMove, board.ColorName(player))
		}

		if !g.IsDiceRolled() {
			value, err := s.roller.Roll()
			if err != nil {
				return false, err
			}
			if err := g.RollDice(player, value); err != nil {
				return false, err
			}
			recordRoll(sess, player, value)
		}
		res.Roll = g.LastDiceRoll()

		passed, err := g.PlayRound()
		if err != nil {
			return false, err
		}
		if passed {
			res.Passed = true
			skipInactive(sess, g)
			storeGame(sess, g)
			return false, nil
		}

		pawn, err := chooser.ChoosePawn(g)
		if err != nil {
			return false, fmt.Errorf("choose pawn: %w", err)
		}
		move, err := g.SelectPawn(player, pawn)
		if err != nil {
			return false, err
		}
		res.Move = &move
		finishMove(sess, g, move)
		return false, nil
	})
	if err != nil {
		return ForcedTurn{}, s.fail("force_turn", code, err)
	}

	log.Info().
		Str("session_code", code).
		Int("player", player).
		Int("roll", res.Roll).
		Bool("passed", res.Passed).
		Msg("turn forced")
	return res, nil
}

// transact runs fn as one read-validate-write transaction under the retry
// policy. When fn reports remove the document is deleted instead.
func (s *Synchronizer) transact(ctx context.Context, op, code string, fn func(sess *models.Session) (bool, error)) (Document, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		return Document{}, fmt.Errorf("%w: malformed code %q", ErrSessionNotFound, code)
	}

	return run(ctx, s.retry, op, func() (Document, error) {
		cur, err := s.repo.Load(ctx, code)
		if err != nil {
			return Document{}, err
		}
		sess := cloneSession(cur.Session)
		remove, err := fn(&sess)
		if errors.Is(err, errNoChange) {
			return cur, nil
		}
		if err != nil {
			return Document{}, err
		}
		if remove {
			return s.repo.Delete(ctx, code, cur.Version)
		}
		sess.LastUpdateTimestamp = s.clock.Now().UnixMilli()
		return s.repo.Swap(ctx, cur.Version, sess)
	})
}

// fail logs err, reports it to the listener and returns it.
func (s *Synchronizer) fail(op, code string, err error) error {
	ev := log.Warn()
	if !isRejection(err) {
		ev = log.Error()
	}
	ev.Err(err).Str("operation", op).Str("session_code", code).Msg("session operation failed")
	s.listener.SessionError(err)
	return err
}

func isRejection(err error) bool {
	for _, target := range []error{
		engine.ErrInvalidInput, engine.ErrIllegalMove,
		ErrJoinRejected, ErrTransactionConflict, ErrSessionNotFound, ErrNotHost, ErrNotInSession,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Synchronizer) loadGame(sess *models.Session) (*engine.Game, error) {
	if !sess.GameStarted || sess.Game == nil {
		return nil, fmt.Errorf("%w: game not started", engine.ErrIllegalMove)
	}
	g, err := engine.FromState(*sess.Game, s.rules...)
	if err != nil {
		return nil, fmt.Errorf("session %s holds a corrupt game: %w", sess.Code, err)
	}
	return g, nil
}

// NormalizeCode upper-cases and trims a typed session code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func seatOf(sess *models.Session, playerID string) (int, error) {
	seat := sess.SlotOf(playerID)
	if seat < 0 {
		return -1, fmt.Errorf("%w: %s is not in session %s", ErrNotInSession, playerID, sess.Code)
	}
	return seat, nil
}

// storeGame writes g into the document and logs a turn record whenever a new
// turn has begun, including a new turn for the same seat.
func storeGame(sess *models.Session, g *engine.Game) {
	prev := sess.Game
	state := g.Snapshot()
	sess.Game = &state
	if g.IsGameOver() {
		return
	}
	if prev == nil || prev.CurrentPlayer != state.CurrentPlayer || (prev.DiceRolled && !state.DiceRolled) {
		sess.Record(models.TurnRecord{Kind: models.TurnRecordTurn, Player: state.CurrentPlayer})
	}
}

func recordRoll(sess *models.Session, player, value int) {
	rec := sess.Record(models.TurnRecord{Kind: models.TurnRecordRoll, Player: player, Value: value})
	sess.LastRoll = &models.RollRecord{Seq: rec.Seq, Player: player, Value: value}
}

// finishMove logs the move, places any newly finished players, moves the turn
// past seats that can no longer play and stores the result.
func finishMove(sess *models.Session, g *engine.Game, move models.Move) {
	logged := move
	rec := sess.Record(models.TurnRecord{Kind: models.TurnRecordMove, Player: move.Player, Value: move.Roll, Move: &logged})
	sess.LastMove = &models.MoveRecord{Seq: rec.Seq, Move: move}

	for _, p := range g.RecordWinners() {
		log.Info().Str("session_code", sess.Code).Int("player", p).Int("placement", g.PlayerPlacement(p)).Msg("player finished")
	}
	settleAbandoned(sess, g)
	skipInactive(sess, g)
	storeGame(sess, g)
}

// settleAbandoned ends a game that play can no longer finish. Once at most one
// occupied seat is still unplaced, that player takes the next placement and
// vacated seats fill the rest in seat order.
func settleAbandoned(sess *models.Session, g *engine.Game) {
	if g.IsGameOver() {
		return
	}
	var playing, vacated []int
	for p := 0; p < board.Players; p++ {
		switch {
		case g.PlayerPlacement(p) != 0:
		case p < len(sess.Slots) && sess.Slots[p].Occupied():
			playing = append(playing, p)
		default:
			vacated = append(vacated, p)
		}
	}
	if len(playing) > 1 {
		return
	}
	for _, p := range append(playing, vacated...) {
		if g.IsGameOver() {
			break
		}
		if err := g.Place(p); err != nil {
			log.Error().Err(err).Str("session_code", sess.Code).Int("player", p).Msg("failed to settle placement")
			return
		}
	}
	log.Info().
		Str("session_code", sess.Code).
		Ints("final_order", g.FinalOrder()).
		Msg("game settled after players left")
}

// skipInactive advances past players that have finished or whose seat is
// empty. It stops once the game is over or after one full lap.
func skipInactive(sess *models.Session, g *engine.Game) {
	for i := 0; i < board.Players && !g.IsGameOver(); i++ {
		cur := g.CurrentPlayer()
		if !g.HasPlayerWon(cur) && cur < len(sess.Slots) && sess.Slots[cur].Occupied() {
			return
		}
		g.AdvanceTurn()
	}
}

func cloneSession(s models.Session) models.Session {
	s.Slots = append([]models.Slot(nil), s.Slots...)
	s.Log = append([]models.TurnRecord(nil), s.Log...)
	return s
}
