package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/smeli-lang/smeli-sub000/internal/config"
	"github.com/smeli-lang/smeli-sub000/internal/engine"
	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
)

// Server serves one engine. Calls are serialized.
type Server struct {
	mu      sync.Mutex
	engine  *engine.Engine
	session string
	logger  *slog.Logger
	service *desc.ServiceDescriptor
}

func NewServer(e *engine.Engine, logger *slog.Logger) (*Server, error) {
	sd, err := Service()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: e, session: uuid.NewString(), logger: logger, service: sd}, nil
}

// Session identifies this server instance. Clients send it back so a
// restarted server rejects calls meant for the previous document.
func (s *Server) Session() string { return s.session }

// Register adds the Remote service to g.
func (s *Server) Register(g *grpc.Server) {
	sd := &grpc.ServiceDesc{
		ServiceName: s.service.GetFullyQualifiedName(),
		HandlerType: (*interface{})(nil),
		Metadata:    s.service.GetFile().GetName(),
	}
	for _, md := range s.service.GetMethods() {
		md := md // per-iteration copy: go directive lowered from 1.25 to 1.21
		sd.Methods = append(sd.Methods, grpc.MethodDesc{
			MethodName: md.GetName(),
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := dynamic.NewMessage(md.GetInputType())
				if err := dec(in); err != nil {
					return nil, err
				}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*Server).handle(ctx, md, req.(*dynamic.Message))
				}
				if interceptor == nil {
					return handler(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPath(md)}
				return interceptor(ctx, in, info, handler)
			},
		})
	}
	g.RegisterService(sd, s)
}

// Serve listens on addr and serves until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, lis)
}

func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	g := grpc.NewServer()
	s.Register(g)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			g.GracefulStop()
		case <-stop:
		}
	}()

	s.logger.Info("remote listening", "addr", lis.Addr().String(), "session", s.session)
	return g.Serve(lis)
}

func (s *Server) handle(ctx context.Context, md *desc.MethodDescriptor, in *dynamic.Message) (*dynamic.Message, error) {
	if err := s.checkSession(ctx); err != nil {
		return nil, err
	}
	req := fromMessage(in)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("rpc", "method", md.GetName(), "session", s.session)
	var (
		out fields
		err error
	)
	switch md.GetName() {
	case "Reset":
		out, err = s.state(s.engine.Reset(req.getString("code")))
	case "Patch":
		out, err = s.state(s.engine.Patch(req.getInt("offset"), req.getString("code")))
	case "Step":
		out, err = s.state(s.engine.Step(req.getInt("count")))
	case "StepTo":
		out, err = s.state(s.engine.StepTo(req.getInt("offset")))
	case "Evaluate":
		out, err = s.value(req.getString("name"))
	default:
		return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", md.GetName())
	}
	if err != nil {
		return nil, err
	}

	msg, err := toMessage(md.GetOutputType(), out)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return msg, nil
}

func (s *Server) checkSession(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	if vals := md.Get(config.SessionMetadataKey); len(vals) > 0 && vals[0] != s.session {
		return status.Errorf(codes.FailedPrecondition, "session %s has ended, now serving %s", vals[0], s.session)
	}
	return nil
}

// fatal maps a broken runtime invariant to an Internal status. The engine
// is unusable afterwards.
func (s *Server) fatal(err error) error {
	var fe *evaluator.FatalError
	if errors.As(err, &fe) {
		s.logger.Error("engine failure", "error", fe)
		return status.Error(codes.Internal, fe.Error())
	}
	return nil
}

func (s *Server) state(opErr error) (fields, error) {
	if err := s.fatal(opErr); err != nil {
		return nil, err
	}
	out := fields{
		"session": s.session,
		"active":  s.engine.Active(),
		"total":   s.engine.Len(),
	}
	if diags := s.engine.Diagnostics(); len(diags) > 0 {
		items := make([]fields, 0, len(diags))
		for _, d := range diags {
			items = append(items, fields{
				"code":    string(d.Code),
				"file":    d.File,
				"line":    d.Line,
				"column":  d.Column,
				"offset":  d.Offset,
				"message": d.Message,
			})
		}
		out["diagnostics"] = items
	}
	if opErr != nil {
		out["error"] = opErr.Error()
	}
	return out, nil
}

func (s *Server) value(name string) (fields, error) {
	v, err := s.engine.Evaluate(name)
	if ferr := s.fatal(err); ferr != nil {
		return nil, ferr
	}
	out := fields{"session": s.session}
	if err != nil {
		out["error"] = err.Error()
		return out, nil
	}
	out["type"] = string(v.Type())
	out["inspect"] = v.Inspect()
	return out, nil
}
