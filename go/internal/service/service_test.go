package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"testing"

	"connectrpc.com/connect"

	"github.com/mcdev12/ludotime/go/internal/board"
	"github.com/mcdev12/ludotime/go/internal/engine"
	"github.com/mcdev12/ludotime/go/internal/models"
	"github.com/mcdev12/ludotime/go/internal/session"
	"github.com/mcdev12/ludotime/go/internal/store"
	"github.com/mcdev12/ludotime/go/internal/store/memory"
)

func newClient(t *testing.T) *SessionServiceClient {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	sync := session.NewSynchronizer(st, session.WithRoller(&session.FixedRoller{Values: []int{6}}))

	mux := http.NewServeMux()
	mux.Handle(NewSessionServiceHandler(NewService(sync)))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewSessionServiceClient(srv.Client(), srv.URL)
}

func codeOf(err error) connect.Code {
	return connect.CodeOf(err)
}

func TestSessionServiceGame(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	created, err := client.CreateSession(ctx, connect.NewRequest(&CreateSessionRequest{PlayerID: "p-red", DisplayName: "Ruby"}))
	if err != nil {
		t.Fatal(err)
	}
	code := created.Msg.Session.Code
	if !session.ValidCode(code) {
		t.Fatalf("code %q", code)
	}

	for _, p := range []struct{ id, name string }{{"p-green", "Gus"}, {"p-yellow", "Yara"}, {"p-blue", "Bo"}} {
		if _, err := client.JoinSession(ctx, connect.NewRequest(&JoinSessionRequest{Code: code, PlayerID: p.id, DisplayName: p.name})); err != nil {
			t.Fatalf("join %s: %v", p.id, err)
		}
		if _, err := client.SetReady(ctx, connect.NewRequest(&SetReadyRequest{Code: code, PlayerID: p.id, Ready: true})); err != nil {
			t.Fatalf("ready %s: %v", p.id, err)
		}
	}

	_, err = client.StartSession(ctx, connect.NewRequest(&PlayerRequest{Code: code, PlayerID: "p-green"}))
	if codeOf(err) != connect.CodePermissionDenied {
		t.Errorf("guest start code = %v, want permission_denied", codeOf(err))
	}
	started, err := client.StartSession(ctx, connect.NewRequest(&PlayerRequest{Code: code, PlayerID: "p-red"}))
	if err != nil {
		t.Fatal(err)
	}
	if !started.Msg.Session.GameStarted || started.Msg.Session.Game == nil {
		t.Fatalf("session not started: %+v", started.Msg.Session)
	}

	_, err = client.RollDice(ctx, connect.NewRequest(&PlayerRequest{Code: code, PlayerID: "p-green"}))
	if codeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("out of turn roll code = %v, want failed_precondition", codeOf(err))
	}
	rolled, err := client.RollDice(ctx, connect.NewRequest(&PlayerRequest{Code: code, PlayerID: "p-red"}))
	if err != nil || rolled.Msg.Value != 6 {
		t.Fatalf("RollDice = %+v, %v", rolled, err)
	}
	played, err := client.PlayRound(ctx, connect.NewRequest(&PlayerRequest{Code: code, PlayerID: "p-red"}))
	if err != nil || played.Msg.Passed {
		t.Fatalf("PlayRound = %+v, %v", played, err)
	}
	moved, err := client.SelectPawn(ctx, connect.NewRequest(&SelectPawnRequest{Code: code, PlayerID: "p-red", Pawn: 1}))
	if err != nil {
		t.Fatal(err)
	}
	if moved.Msg.Move.To != models.TrackPawn(0) || moved.Msg.Move.Pawn != 1 {
		t.Errorf("move = %+v", moved.Msg.Move)
	}

	got, err := client.GetSession(ctx, connect.NewRequest(&GetSessionRequest{Code: code}))
	if err != nil {
		t.Fatal(err)
	}
	if got.Msg.Session.Game.CurrentPlayer != board.Green {
		t.Errorf("current player = %d, want Green", got.Msg.Session.Game.CurrentPlayer)
	}

	if _, err := client.LeaveSession(ctx, connect.NewRequest(&PlayerRequest{Code: code, PlayerID: "p-red"})); err != nil {
		t.Fatal(err)
	}
	_, err = client.GetSession(ctx, connect.NewRequest(&GetSessionRequest{Code: code}))
	if codeOf(err) != connect.CodeNotFound {
		t.Errorf("get after host left code = %v, want not_found", codeOf(err))
	}
}

func TestSessionServiceRejections(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	_, err := client.CreateSession(ctx, connect.NewRequest(&CreateSessionRequest{}))
	if codeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("create without player code = %v", codeOf(err))
	}
	_, err = client.JoinSession(ctx, connect.NewRequest(&JoinSessionRequest{Code: "ZZZZZZ", PlayerID: "p-green"}))
	if codeOf(err) != connect.CodeNotFound {
		t.Errorf("join unknown code = %v", codeOf(err))
	}

	created, err := client.CreateSession(ctx, connect.NewRequest(&CreateSessionRequest{PlayerID: "p-red"}))
	if err != nil {
		t.Fatal(err)
	}
	code := created.Msg.Session.Code
	_, err = client.JoinSession(ctx, connect.NewRequest(&JoinSessionRequest{Code: code, PlayerID: "p-red"}))
	if codeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("duplicate join code = %v", codeOf(err))
	}
	_, err = client.SetReady(ctx, connect.NewRequest(&SetReadyRequest{Code: code, PlayerID: "p-ghost", Ready: true}))
	if codeOf(err) != connect.CodePermissionDenied {
		t.Errorf("stranger ready code = %v", codeOf(err))
	}
	_, err = client.StartSession(ctx, connect.NewRequest(&PlayerRequest{Code: code, PlayerID: "p-red"}))
	if codeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("start alone code = %v", codeOf(err))
	}
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		err  error
		want connect.Code
	}{
		{fmt.Errorf("%w: %w", session.ErrJoinRejected, session.ErrTransactionConflict), connect.CodeAborted},
		{fmt.Errorf("swap: %w", session.ErrTransactionConflict), connect.CodeAborted},
		{engine.ErrInvalidInput, connect.CodeInvalidArgument},
		{session.ErrSessionNotFound, connect.CodeNotFound},
		{session.ErrNotHost, connect.CodePermissionDenied},
		{session.ErrNotInSession, connect.CodePermissionDenied},
		{session.ErrJoinRejected, connect.CodeFailedPrecondition},
		{engine.ErrIllegalMove, connect.CodeFailedPrecondition},
		{context.Canceled, connect.CodeCanceled},
		{context.DeadlineExceeded, connect.CodeDeadlineExceeded},
		{store.ErrNotFound, connect.CodeInternal},
		{errors.New("disk on fire"), connect.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			err := toConnectError(tt.err)
			if got := connect.CodeOf(err); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("connect error does not wrap the cause")
			}
		})
	}
}

func TestProceduresMatchProtoContract(t *testing.T) {
	src, err := os.ReadFile("../../../proto/ludo/v1/session.proto")
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`(?m)^package ludo\.v1;`).Match(src) {
		t.Error("contract is not in package ludo.v1")
	}
	procedures := map[string]bool{
		SessionServiceCreateSessionProcedure: true,
		SessionServiceGetSessionProcedure:    true,
		SessionServiceJoinSessionProcedure:   true,
		SessionServiceSetReadyProcedure:      true,
		SessionServiceStartSessionProcedure:  true,
		SessionServiceRollDiceProcedure:      true,
		SessionServicePlayRoundProcedure:     true,
		SessionServiceSelectPawnProcedure:    true,
		SessionServiceLeaveSessionProcedure:  true,
	}
	rpcs := regexp.MustCompile(`rpc (\w+)\(`).FindAllSubmatch(src, -1)
	if len(rpcs) != len(procedures) {
		t.Errorf("contract declares %d rpcs, handler serves %d", len(rpcs), len(procedures))
	}
	for _, m := range rpcs {
		if p := "/" + SessionServiceName + "/" + string(m[1]); !procedures[p] {
			t.Errorf("rpc %s has no procedure", m[1])
		}
	}
}

func TestUnimplementedSessionServiceHandler(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle(NewSessionServiceHandler(UnimplementedSessionServiceHandler{}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewSessionServiceClient(srv.Client(), srv.URL)

	_, err := client.GetSession(context.Background(), connect.NewRequest(&GetSessionRequest{Code: "ABC123"}))
	if codeOf(err) != connect.CodeUnimplemented {
		t.Fatalf("GetSession err = %v, want unimplemented", err)
	}
	_, err = client.RollDice(context.Background(), connect.NewRequest(&PlayerRequest{Code: "ABC123", PlayerID: "p"}))
	if codeOf(err) != connect.CodeUnimplemented {
		t.Errorf("RollDice err = %v, want unimplemented", err)
	}
}
