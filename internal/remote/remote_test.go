package remote

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/smeli-lang/smeli-sub000/internal/engine"
)

type fixture struct {
	engine *engine.Engine
	server *Server
	client *Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(engine.WithLogger(logger), engine.WithFile("remote.smeli"))
	srv, err := NewServer(e, logger)
	if err != nil {
		t.Fatal(err)
	}

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, lis) }()

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		client.Close()
		cancel()
		if err := <-done; err != nil {
			t.Errorf("serve: %v", err)
		}
		e.Close()
	})
	return &fixture{engine: e, server: srv, client: client}
}

func expectState(t *testing.T, st *State, err error, active, total int) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Active != active || st.Total != total {
		t.Fatalf("expected %d/%d, got %d/%d", active, total, st.Active, st.Total)
	}
}

func TestService(t *testing.T) {
	sd, err := Service()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, md := range sd.GetMethods() {
		names = append(names, md.GetName())
	}
	if got := strings.Join(names, ","); got != "Reset,Patch,Step,StepTo,Evaluate" {
		t.Errorf("unexpected methods %s", got)
	}
	if got := methodPath(sd.FindMethodByName("Step")); got != "/smeli.remote.Remote/Step" {
		t.Errorf("unexpected method path %s", got)
	}
}

func TestRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.client.Reset(ctx, "a: 42\nb: a + 1")
	expectState(t, st, err, 0, 2)
	if st.Session != f.server.Session() || f.client.Session() != st.Session {
		t.Fatalf("expected session %s, got %s", f.server.Session(), st.Session)
	}
	if len(st.Diagnostics) != 0 || st.Error != "" {
		t.Fatalf("unexpected failure: %v %s", st.Diagnostics, st.Error)
	}

	st, err = f.client.Step(ctx, 1)
	expectState(t, st, err, 1, 2)

	v, err := f.client.Evaluate(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if v.Type != "Number" || v.Inspect != "42" || v.Error != "" {
		t.Fatalf("unexpected value %+v", v)
	}
	v, err = f.client.Evaluate(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(v.Error, "E001") {
		t.Fatalf("expected an unresolved name, got %+v", v)
	}

	st, err = f.client.Patch(ctx, 6, "b: a * 2")
	expectState(t, st, err, 1, 2)
	st, err = f.client.StepTo(ctx, 6)
	expectState(t, st, err, 2, 2)

	v, err = f.client.Evaluate(ctx, "b")
	if err != nil || v.Inspect != "84" {
		t.Fatalf("expected 84, got %+v %v", v, err)
	}
	if f.engine.Source() != "a: 42\nb: a * 2" {
		t.Errorf("unexpected source %q", f.engine.Source())
	}
}

func TestRemoteDiagnostics(t *testing.T) {
	f := newFixture(t)
	st, err := f.client.Reset(context.Background(), "a: 1\nb: )")
	expectState(t, st, err, 0, 1)
	if len(st.Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic, got %v", st.Diagnostics)
	}
	d := st.Diagnostics[0]
	if d.Code != "P003" || d.File != "remote.smeli" || d.Line != 2 || d.Column != 4 || d.Offset != 8 {
		t.Errorf("unexpected diagnostic %s (offset %d)", d, d.Offset)
	}
}

func TestOperationErrorsAreReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.client.Reset(ctx, "a: 1"); err != nil {
		t.Fatal(err)
	}
	st, err := f.client.Patch(ctx, 100, "b: 2")
	if err != nil {
		t.Fatalf("expected the failure in the reply, got %v", err)
	}
	if !strings.Contains(st.Error, "out of range") {
		t.Errorf("unexpected error text %q", st.Error)
	}
}

func TestStaleSessionRejected(t *testing.T) {
	f := newFixture(t)
	f.client.session = "previous"
	_, err := f.client.Step(context.Background(), 1)
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestClosedEngineIsInternal(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Close(); err != nil {
		t.Fatal(err)
	}
	_, err := f.client.Step(context.Background(), 1)
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}
