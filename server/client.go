package server

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/pl0c/compiler"
)

// Client calls a CompileServer over gRPC.
type Client struct {
	conn *grpc.ClientConn
}

// CompileResult is the decoded Compile response.
type CompileResult struct {
	OK          bool                  `json:"ok"`
	UnitID      string                `json:"unit_id"`
	Hash        string                `json:"hash"`
	Cached      bool                  `json:"cached"`
	Listing     []string              `json:"listing"`
	Diagnostics []compiler.Diagnostic `json:"diagnostics"`
}

// RunResult is the decoded Run response.
type RunResult struct {
	OK          bool                  `json:"ok"`
	Output      string                `json:"output"`
	Vars        map[string]int64      `json:"vars"`
	Steps       int                   `json:"steps"`
	Error       string                `json:"error"`
	Diagnostics []compiler.Diagnostic `json:"diagnostics"`
}

// Dial connects to a server at target ("host:port"). Without options the
// connection is unencrypted.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Compile compiles source on the server.
func (c *Client) Compile(ctx context.Context, source, mainLabel string) (*CompileResult, error) {
	req := map[string]any{"source": source}
	if mainLabel != "" {
		req["main_label"] = mainLabel
	}
	var out CompileResult
	if err := c.call(ctx, CompileProcedure, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Run executes a previously compiled unit with the given standard input.
func (c *Client) Run(ctx context.Context, unitID, input string) (*RunResult, error) {
	var out RunResult
	if err := c.call(ctx, RunProcedure, map[string]any{"unit_id": unitID, "input": input}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Release drops a compiled unit on the server.
func (c *Client) Release(ctx context.Context, unitID string) (bool, error) {
	var out struct {
		Released bool `json:"released"`
	}
	if err := c.call(ctx, ReleaseProcedure, map[string]any{"unit_id": unitID}, &out); err != nil {
		return false, err
	}
	return out.Released, nil
}

func (c *Client) call(ctx context.Context, method string, req map[string]any, out any) error {
	reqMsg, err := structpb.NewStruct(req)
	if err != nil {
		return err
	}
	respMsg := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, reqMsg, respMsg); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	data, err := protojson.Marshal(respMsg)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// CompileRemote dials target, compiles source and closes the connection.
func CompileRemote(ctx context.Context, target, source string) (*CompileResult, error) {
	c, err := Dial(target)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Compile(ctx, source, "")
}
