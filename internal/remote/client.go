package remote

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/smeli-lang/smeli-sub000/internal/config"
)

// State is the reply of the document-changing calls.
type State struct {
	Session     string
	Active      int
	Total       int
	Diagnostics []Diagnostic
	Error       string
}

type Diagnostic struct {
	Code    string
	File    string
	Line    int
	Column  int
	Offset  int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s (%s)", d.File, d.Line, d.Column, d.Message, d.Code)
}

type Value struct {
	Session string
	Type    string
	Inspect string
	Error   string
}

// Client is not safe for concurrent use. It remembers the session of the
// first reply and sends it with every later call.
type Client struct {
	conn    *grpc.ClientConn
	service *desc.ServiceDescriptor
	session string
}

// Dial connects to a server at target without transport security.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", target, err)
	}
	c, err := NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func NewClient(conn *grpc.ClientConn) (*Client, error) {
	sd, err := Service()
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, service: sd}, nil
}

func (c *Client) Close() error    { return c.conn.Close() }
func (c *Client) Session() string { return c.session }

func (c *Client) Reset(ctx context.Context, code string) (*State, error) {
	return c.state(ctx, "Reset", fields{"code": code})
}

func (c *Client) Patch(ctx context.Context, offset int, code string) (*State, error) {
	return c.state(ctx, "Patch", fields{"offset": offset, "code": code})
}

func (c *Client) Step(ctx context.Context, n int) (*State, error) {
	return c.state(ctx, "Step", fields{"count": n})
}

func (c *Client) StepTo(ctx context.Context, offset int) (*State, error) {
	return c.state(ctx, "StepTo", fields{"offset": offset})
}

func (c *Client) Evaluate(ctx context.Context, name string) (*Value, error) {
	reply, err := c.invoke(ctx, "Evaluate", fields{"name": name})
	if err != nil {
		return nil, err
	}
	return &Value{
		Session: reply.getString("session"),
		Type:    reply.getString("type"),
		Inspect: reply.getString("inspect"),
		Error:   reply.getString("error"),
	}, nil
}

func (c *Client) state(ctx context.Context, method string, req fields) (*State, error) {
	reply, err := c.invoke(ctx, method, req)
	if err != nil {
		return nil, err
	}
	st := &State{
		Session: reply.getString("session"),
		Active:  reply.getInt("active"),
		Total:   reply.getInt("total"),
		Error:   reply.getString("error"),
	}
	for _, d := range reply.getList("diagnostics") {
		st.Diagnostics = append(st.Diagnostics, Diagnostic{
			Code:    d.getString("code"),
			File:    d.getString("file"),
			Line:    d.getInt("line"),
			Column:  d.getInt("column"),
			Offset:  d.getInt("offset"),
			Message: d.getString("message"),
		})
	}
	return st, nil
}

func (c *Client) invoke(ctx context.Context, method string, req fields) (fields, error) {
	md := c.service.FindMethodByName(method)
	if md == nil {
		return nil, fmt.Errorf("%s has no method %s", c.service.GetName(), method)
	}
	in, err := toMessage(md.GetInputType(), req)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", method, err)
	}
	out := dynamic.NewMessage(md.GetOutputType())

	if c.session != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, config.SessionMetadataKey, c.session)
	}
	if err := c.conn.Invoke(ctx, methodPath(md), in, out); err != nil {
		return nil, err
	}

	reply := fromMessage(out)
	if c.session == "" {
		c.session = reply.getString("session")
	}
	return reply, nil
}
