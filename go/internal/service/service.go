package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mcdev12/ludotime/go/internal/engine"
	"github.com/mcdev12/ludotime/go/internal/models"
	"github.com/mcdev12/ludotime/go/internal/session"
)

// SessionApp defines what the service layer needs from the synchronizer.
type SessionApp interface {
	CreateSession(ctx context.Context, hostID, hostName string) (models.Session, error)
	GetSession(ctx context.Context, code string) (models.Session, error)
	JoinSession(ctx context.Context, code, playerID, displayName string) (models.Session, error)
	SetReady(ctx context.Context, code, playerID string, ready bool) (models.Session, error)
	StartSession(ctx context.Context, code, playerID string) (models.Session, error)
	RollDice(ctx context.Context, code, playerID string) (int, error)
	PlayRound(ctx context.Context, code, playerID string) (bool, error)
	SelectPawn(ctx context.Context, code, playerID string, pawn int) (models.Move, error)
	LeaveSession(ctx context.Context, code, playerID string) error
}

// Service implements SessionServiceHandler on top of the synchronizer.
type Service struct {
	UnimplementedSessionServiceHandler

	app SessionApp
}

func NewService(app SessionApp) *Service {
	return &Service{app: app}
}

var _ SessionServiceHandler = (*Service)(nil)

func (s *Service) CreateSession(ctx context.Context, req *connect.Request[CreateSessionRequest]) (*connect.Response[SessionResponse], error) {
	sess, err := s.app.CreateSession(ctx, req.Msg.PlayerID, req.Msg.DisplayName)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: sess}), nil
}

func (s *Service) GetSession(ctx context.Context, req *connect.Request[GetSessionRequest]) (*connect.Response[SessionResponse], error) {
	sess, err := s.app.GetSession(ctx, req.Msg.Code)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: sess}), nil
}

func (s *Service) JoinSession(ctx context.Context, req *connect.Request[JoinSessionRequest]) (*connect.Response[SessionResponse], error) {
	sess, err := s.app.JoinSession(ctx, req.Msg.Code, req.Msg.PlayerID, req.Msg.DisplayName)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: sess}), nil
}

func (s *Service) SetReady(ctx context.Context, req *connect.Request[SetReadyRequest]) (*connect.Response[SessionResponse], error) {
	sess, err := s.app.SetReady(ctx, req.Msg.Code, req.Msg.PlayerID, req.Msg.Ready)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: sess}), nil
}

func (s *Service) StartSession(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[SessionResponse], error) {
	sess, err := s.app.StartSession(ctx, req.Msg.Code, req.Msg.PlayerID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: sess}), nil
}

func (s *Service) RollDice(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[RollDiceResponse], error) {
	value, err := s.app.RollDice(ctx, req.Msg.Code, req.Msg.PlayerID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RollDiceResponse{Value: value}), nil
}

func (s *Service) PlayRound(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[PlayRoundResponse], error) {
	passed, err := s.app.PlayRound(ctx, req.Msg.Code, req.Msg.PlayerID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PlayRoundResponse{Passed: passed}), nil
}

func (s *Service) SelectPawn(ctx context.Context, req *connect.Request[SelectPawnRequest]) (*connect.Response[SelectPawnResponse], error) {
	move, err := s.app.SelectPawn(ctx, req.Msg.Code, req.Msg.PlayerID, req.Msg.Pawn)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SelectPawnResponse{Move: move}), nil
}

func (s *Service) LeaveSession(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[LeaveSessionResponse], error) {
	if err := s.app.LeaveSession(ctx, req.Msg.Code, req.Msg.PlayerID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&LeaveSessionResponse{}), nil
}

// toConnectError maps synchronizer and engine errors onto RPC codes. A lost
// race is Aborted so clients know the whole call may be retried.
func toConnectError(err error) error {
	code := connect.CodeInternal
	switch {
	case errors.Is(err, session.ErrTransactionConflict):
		code = connect.CodeAborted
	case errors.Is(err, engine.ErrInvalidInput):
		code = connect.CodeInvalidArgument
	case errors.Is(err, session.ErrSessionNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, session.ErrNotHost), errors.Is(err, session.ErrNotInSession):
		code = connect.CodePermissionDenied
	case errors.Is(err, session.ErrJoinRejected), errors.Is(err, engine.ErrIllegalMove):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	}
	return connect.NewError(code, err)
}
