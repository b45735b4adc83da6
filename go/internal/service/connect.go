package service

// Service names, procedures and handler plumbing follow the ludo.v1 contract
// in proto/ludo/v1/session.proto. Messages are the plain structs in types.go
// carried by Codec.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// SessionServiceName is the fully-qualified name of the session service.
const SessionServiceName = "ludo.v1.SessionService"

const (
	SessionServiceCreateSessionProcedure = "/ludo.v1.SessionService/CreateSession"
	SessionServiceGetSessionProcedure    = "/ludo.v1.SessionService/GetSession"
	SessionServiceJoinSessionProcedure   = "/ludo.v1.SessionService/JoinSession"
	SessionServiceSetReadyProcedure      = "/ludo.v1.SessionService/SetReady"
	SessionServiceStartSessionProcedure  = "/ludo.v1.SessionService/StartSession"
	SessionServiceRollDiceProcedure      = "/ludo.v1.SessionService/RollDice"
	SessionServicePlayRoundProcedure     = "/ludo.v1.SessionService/PlayRound"
	SessionServiceSelectPawnProcedure    = "/ludo.v1.SessionService/SelectPawn"
	SessionServiceLeaveSessionProcedure  = "/ludo.v1.SessionService/LeaveSession"
)

// SessionServiceHandler is implemented by the session RPC service.
type SessionServiceHandler interface {
	CreateSession(context.Context, *connect.Request[CreateSessionRequest]) (*connect.Response[SessionResponse], error)
	GetSession(context.Context, *connect.Request[GetSessionRequest]) (*connect.Response[SessionResponse], error)
	JoinSession(context.Context, *connect.Request[JoinSessionRequest]) (*connect.Response[SessionResponse], error)
	SetReady(context.Context, *connect.Request[SetReadyRequest]) (*connect.Response[SessionResponse], error)
	StartSession(context.Context, *connect.Request[PlayerRequest]) (*connect.Response[SessionResponse], error)
	RollDice(context.Context, *connect.Request[PlayerRequest]) (*connect.Response[RollDiceResponse], error)
	PlayRound(context.Context, *connect.Request[PlayerRequest]) (*connect.Response[PlayRoundResponse], error)
	SelectPawn(context.Context, *connect.Request[SelectPawnRequest]) (*connect.Response[SelectPawnResponse], error)
	LeaveSession(context.Context, *connect.Request[PlayerRequest]) (*connect.Response[LeaveSessionResponse], error)
}

// NewSessionServiceHandler builds an HTTP handler for svc and returns the path
// to mount it on.
func NewSessionServiceHandler(svc SessionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	handlers := map[string]http.Handler{
		SessionServiceCreateSessionProcedure: connect.NewUnaryHandler(SessionServiceCreateSessionProcedure, svc.CreateSession, opts...),
		SessionServiceGetSessionProcedure: connect.NewUnaryHandler(SessionServiceGetSessionProcedure, svc.GetSession,
			append(opts, connect.WithIdempotency(connect.IdempotencyNoSideEffects))...),
		SessionServiceJoinSessionProcedure:   connect.NewUnaryHandler(SessionServiceJoinSessionProcedure, svc.JoinSession, opts...),
		SessionServiceSetReadyProcedure:      connect.NewUnaryHandler(SessionServiceSetReadyProcedure, svc.SetReady, opts...),
		SessionServiceStartSessionProcedure:  connect.NewUnaryHandler(SessionServiceStartSessionProcedure, svc.StartSession, opts...),
		SessionServiceRollDiceProcedure:      connect.NewUnaryHandler(SessionServiceRollDiceProcedure, svc.RollDice, opts...),
		SessionServicePlayRoundProcedure:     connect.NewUnaryHandler(SessionServicePlayRoundProcedure, svc.PlayRound, opts...),
		SessionServiceSelectPawnProcedure:    connect.NewUnaryHandler(SessionServiceSelectPawnProcedure, svc.SelectPawn, opts...),
		SessionServiceLeaveSessionProcedure:  connect.NewUnaryHandler(SessionServiceLeaveSessionProcedure, svc.LeaveSession, opts...),
	}
	return "/" + SessionServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// SessionServiceClient calls the session service over Connect with the JSON
// codec.
type SessionServiceClient struct {
	createSession *connect.Client[CreateSessionRequest, SessionResponse]
	getSession    *connect.Client[GetSessionRequest, SessionResponse]
	joinSession   *connect.Client[JoinSessionRequest, SessionResponse]
	setReady      *connect.Client[SetReadyRequest, SessionResponse]
	startSession  *connect.Client[PlayerRequest, SessionResponse]
	rollDice      *connect.Client[PlayerRequest, RollDiceResponse]
	playRound     *connect.Client[PlayerRequest, PlayRoundResponse]
	selectPawn    *connect.Client[SelectPawnRequest, SelectPawnResponse]
	leaveSession  *connect.Client[PlayerRequest, LeaveSessionResponse]
}

func NewSessionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SessionServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &SessionServiceClient{
		createSession: connect.NewClient[CreateSessionRequest, SessionResponse](httpClient, baseURL+SessionServiceCreateSessionProcedure, opts...),
		getSession: connect.NewClient[GetSessionRequest, SessionResponse](httpClient, baseURL+SessionServiceGetSessionProcedure,
			append(opts, connect.WithIdempotency(connect.IdempotencyNoSideEffects))...),
		joinSession:   connect.NewClient[JoinSessionRequest, SessionResponse](httpClient, baseURL+SessionServiceJoinSessionProcedure, opts...),
		setReady:      connect.NewClient[SetReadyRequest, SessionResponse](httpClient, baseURL+SessionServiceSetReadyProcedure, opts...),
		startSession:  connect.NewClient[PlayerRequest, SessionResponse](httpClient, baseURL+SessionServiceStartSessionProcedure, opts...),
		rollDice:      connect.NewClient[PlayerRequest, RollDiceResponse](httpClient, baseURL+SessionServiceRollDiceProcedure, opts...),
		playRound:     connect.NewClient[PlayerRequest, PlayRoundResponse](httpClient, baseURL+SessionServicePlayRoundProcedure, opts...),
		selectPawn:    connect.NewClient[SelectPawnRequest, SelectPawnResponse](httpClient, baseURL+SessionServiceSelectPawnProcedure, opts...),
		leaveSession:  connect.NewClient[PlayerRequest, LeaveSessionResponse](httpClient, baseURL+SessionServiceLeaveSessionProcedure, opts...),
	}
}

func (c *SessionServiceClient) CreateSession(ctx context.Context, req *connect.Request[CreateSessionRequest]) (*connect.Response[SessionResponse], error) {
	return c.createSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) GetSession(ctx context.Context, req *connect.Request[GetSessionRequest]) (*connect.Response[SessionResponse], error) {
	return c.getSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) JoinSession(ctx context.Context, req *connect.Request[JoinSessionRequest]) (*connect.Response[SessionResponse], error) {
	return c.joinSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) SetReady(ctx context.Context, req *connect.Request[SetReadyRequest]) (*connect.Response[SessionResponse], error) {
	return c.setReady.CallUnary(ctx, req)
}

func (c *SessionServiceClient) StartSession(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[SessionResponse], error) {
	return c.startSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) RollDice(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[RollDiceResponse], error) {
	return c.rollDice.CallUnary(ctx, req)
}

func (c *SessionServiceClient) PlayRound(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[PlayRoundResponse], error) {
	return c.playRound.CallUnary(ctx, req)
}

func (c *SessionServiceClient) SelectPawn(ctx context.Context, req *connect.Request[SelectPawnRequest]) (*connect.Response[SelectPawnResponse], error) {
	return c.selectPawn.CallUnary(ctx, req)
}

func (c *SessionServiceClient) LeaveSession(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[LeaveSessionResponse], error) {
	return c.leaveSession.CallUnary(ctx, req)
}

var _ SessionServiceHandler = (*SessionServiceClient)(nil)

// UnimplementedSessionServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedSessionServiceHandler struct{}

func unimplemented(procedure string) error {
	return connect.NewError(connect.CodeUnimplemented, errors.New(procedure+" is not implemented"))
}

func (UnimplementedSessionServiceHandler) CreateSession(context.Context, *connect.Request[CreateSessionRequest]) (*connect.Response[SessionResponse], error) {
	return nil, unimplemented(SessionServiceCreateSessionProcedure)
}

func (UnimplementedSessionServiceHandler) GetSession(context.Context, *connect.Request[GetSessionRequest]) (*connect.Response[SessionResponse], error) {
	return nil, unimplemented(SessionServiceGetSessionProcedure)
}

func (UnimplementedSessionServiceHandler) JoinSession(context.Context, *connect.Request[JoinSessionRequest]) (*connect.Response[SessionResponse], error) {
	return nil, unimplemented(SessionServiceJoinSessionProcedure)
}

func (UnimplementedSessionServiceHandler) SetReady(context.Context, *connect.Request[SetReadyRequest]) (*connect.Response[SessionResponse], error) {
	return nil, unimplemented(SessionServiceSetReadyProcedure)
}

func (UnimplementedSessionServiceHandler) StartSession(context.Context, *connect.Request[PlayerRequest]) (*connect.Response[SessionResponse], error) {
	return nil, unimplemented(SessionServiceStartSessionProcedure)
}

func (UnimplementedSessionServiceHandler) RollDice(context.Context, *connect.Request[PlayerRequest]) (*connect.Response[RollDiceResponse], error) {
	return nil, unimplemented(SessionServiceRollDiceProcedure)
}

func (UnimplementedSessionServiceHandler) PlayRound(context.Context, *connect.Request[PlayerRequest]) (*connect.Response[PlayRoundResponse], error) {
	return nil, unimplemented(SessionServicePlayRoundProcedure)
}

func (UnimplementedSessionServiceHandler) SelectPawn(context.Context, *connect.Request[SelectPawnRequest]) (*connect.Response[SelectPawnResponse], error) {
	return nil, unimplemented(SessionServiceSelectPawnProcedure)
}

func (UnimplementedSessionServiceHandler) LeaveSession(context.Context, *connect.Request[PlayerRequest]) (*connect.Response[LeaveSessionResponse], error) {
	return nil, unimplemented(SessionServiceLeaveSessionProcedure)
}
