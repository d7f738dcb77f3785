package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/pl0c/compiler"
	"github.com/chazu/pl0c/compiler/hash"
	"github.com/chazu/pl0c/store"
	"github.com/chazu/pl0c/tac"
	"github.com/chazu/pl0c/vm"
)

// Procedures served by CompileService. Messages are google.protobuf.Struct
// in both directions.
const (
	CompileProcedure = "/pl0c.v1.CompilerService/Compile"
	RunProcedure     = "/pl0c.v1.CompilerService/Run"
	ReleaseProcedure = "/pl0c.v1.CompilerService/Release"
)

// CompileService implements the CompilerService gRPC/Connect handlers.
type CompileService struct {
	units     *UnitStore
	worker    *Worker
	store     *store.Store
	stepLimit int
}

// NewCompileService creates a CompileService. st may be nil.
func NewCompileService(units *UnitStore, worker *Worker, st *store.Store, stepLimit int) *CompileService {
	return &CompileService{
		units:     units,
		worker:    worker,
		store:     st,
		stepLimit: stepLimit,
	}
}

// compiled is the outcome of one compilation.
type compiled struct {
	result *compiler.Result
	hash   string
	cached bool
	err    error
}

// Compile compiles a program and keeps it for later runs.
//
// Request: {source, main_label?, tolerant_lexer?}.
// Response: {ok, unit_id?, hash?, cached, listing, records, diagnostics}.
// Compile errors are reported in the response, not as RPC errors.
func (s *CompileService) Compile(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	source := fields["source"].GetStringValue()
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	opts := compiler.Options{
		MainLabel:     fields["main_label"].GetStringValue(),
		TolerantLexer: fields["tolerant_lexer"].GetBoolValue(),
	}
	if err := opts.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	c, err := s.compile(ctx, source, opts)
	if err != nil {
		return nil, rpcError(err)
	}

	out := map[string]any{
		"ok":          c.err == nil,
		"cached":      c.cached,
		"listing":     []any{},
		"records":     []any{},
		"diagnostics": diagnosticValues(compiler.Diagnostics(c.err)),
	}
	if c.err == nil {
		out["unit_id"] = s.units.Create(c.result)
		out["hash"] = c.hash
		out["listing"] = listingValues(c.result.Code)
		out["records"] = recordValues(c.result.Code)
	}
	return newResponse(out)
}

// Run executes a program.
//
// Request: {unit_id | source, input?, step_limit?, main_label?}. main_label
// applies when compiling source.
// Response: {ok, output, vars, steps, error?, diagnostics}. A program that
// fails to compile or run yields ok=false.
func (s *CompileService) Run(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	unitID := fields["unit_id"].GetStringValue()
	source := fields["source"].GetStringValue()

	var res *compiler.Result
	switch {
	case unitID != "":
		r, ok := s.units.Lookup(unitID)
		if !ok {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("unit %q not found", unitID))
		}
		res = r
	case source != "":
		opts := compiler.Options{MainLabel: fields["main_label"].GetStringValue()}
		if err := opts.Validate(); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		c, err := s.compile(ctx, source, opts)
		if err != nil {
			return nil, rpcError(err)
		}
		if c.err != nil {
			return newResponse(map[string]any{
				"ok":          false,
				"output":      "",
				"vars":        map[string]any{},
				"steps":       0,
				"error":       c.err.Error(),
				"diagnostics": diagnosticValues(compiler.Diagnostics(c.err)),
			})
		}
		res = c.result
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unit_id or source is required"))
	}

	limit := s.stepLimit
	if n := stepLimitValue(fields["step_limit"]); n > 0 && (limit <= 0 || n < limit) {
		limit = n
	}
	input := fields["input"].GetStringValue()
	entry := entryLabel(res.Code)

	v, err := s.worker.Do(ctx, func() (any, error) {
		var output strings.Builder
		m := vm.New(
			vm.WithInput(strings.NewReader(input)),
			vm.WithOutput(&output),
			vm.WithStepLimit(limit),
			vm.WithEntry(entry),
		)
		runErr := m.Run(ctx, res.Code)

		vars := make(map[string]any)
		for name, val := range m.Vars() {
			vars[name] = val
		}
		out := map[string]any{
			"ok":          runErr == nil,
			"output":      output.String(),
			"vars":        vars,
			"steps":       m.Steps(),
			"diagnostics": []any{},
		}
		if runErr != nil {
			out["error"] = runErr.Error()
		}
		return out, nil
	})
	if err != nil {
		return nil, rpcError(err)
	}
	return newResponse(v.(map[string]any))
}

// Release drops a stored unit.
//
// Request: {unit_id}. Response: {released}.
func (s *CompileService) Release(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	unitID := req.Msg.GetFields()["unit_id"].GetStringValue()
	if unitID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unit_id is required"))
	}
	return newResponse(map[string]any{"released": s.units.Release(unitID)})
}

// compile runs the front end on the worker, consulting the artifact cache.
// The returned error is an infrastructure failure; compile errors are in
// compiled.err.
func (s *CompileService) compile(ctx context.Context, source string, opts compiler.Options) (*compiled, error) {
	v, err := s.worker.Do(ctx, func() (any, error) {
		var cached bool
		unit := compiler.NewUnit("<rpc>", source, opts)
		unit.Generate = func(prog *compiler.Program, table *compiler.SymbolTable) (*tac.Code, error) {
			code, hit, err := store.Generate(ctx, s.store, unit.Name, prog, table, unit.Options.MainLabel)
			cached = hit
			return code, err
		}
		res, err := unit.Compile()
		if err != nil {
			return &compiled{err: err}, nil
		}
		return &compiled{
			result: res,
			hash:   hash.Key(res.Program, res.Symbols),
			cached: cached,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*compiled), nil
}

// ---------------------------------------------------------------------------
// Message conversion
// ---------------------------------------------------------------------------

func newResponse(m map[string]any) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// maxRequestSteps caps a requested step limit before conversion to int.
const maxRequestSteps = math.MaxInt32

// stepLimitValue converts a requested step limit. Missing, NaN and values
// below one yield 0; larger values are clamped to maxRequestSteps.
func stepLimitValue(v *structpb.Value) int {
	f := v.GetNumberValue()
	switch {
	case math.IsNaN(f) || f < 1:
		return 0
	case f >= maxRequestSteps:
		return maxRequestSteps
	}
	return int(f)
}

func rpcError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, ErrWorkerStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// entryLabel returns the label code starts at. Generated code always opens
// with the main label.
func entryLabel(code *tac.Code) string {
	if code.Len() > 0 && code.Instrs[0].Op == tac.OpLabel {
		return code.Instrs[0].Result
	}
	return compiler.DefaultMainLabel
}

func listingValues(code *tac.Code) []any {
	lines := strings.Split(strings.TrimSuffix(code.String(), "\n"), "\n")
	out := make([]any, len(lines))
	for i, l := range lines {
		out[i] = l
	}
	return out
}

func recordValues(code *tac.Code) []any {
	out := make([]any, 0, code.Len())
	for _, in := range code.Instrs {
		out = append(out, map[string]any{
			"op":     string(in.Op),
			"arg1":   nullable(in.Arg1),
			"arg2":   nullable(in.Arg2),
			"result": nullable(in.Result),
		})
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func diagnosticValues(diags []compiler.Diagnostic) []any {
	out := make([]any, 0, len(diags))
	for _, d := range diags {
		m := map[string]any{
			"kind":    string(d.Kind),
			"line":    d.Line,
			"column":  d.Column,
			"message": d.Message,
		}
		if d.Code != "" {
			m["code"] = d.Code
		}
		if d.Expected != "" {
			m["expected"] = d.Expected
		}
		if d.Found != "" {
			m["found"] = d.Found
		}
		if d.Name != "" {
			m["name"] = d.Name
		}
		out = append(out, m)
	}
	return out
}
