package server

import (
	"context"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/pl0c/store"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
// ---------------------------------------------------------------------------

// newTestService creates a CompileService with its own worker and units.
func newTestService(t *testing.T) *CompileService {
	t.Helper()
	worker := NewWorker(2)
	t.Cleanup(worker.Stop)
	return NewCompileService(NewUnitStore(), worker, nil, 100_000)
}

// structReq wraps a map as a Struct request.
func structReq(t *testing.T, m map[string]any) *connect.Request[structpb.Struct] {
	t.Helper()
	msg, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return connect.NewRequest(msg)
}

// openTestStore opens an artifact cache in a temporary directory.
func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(bg(), filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func field(resp *connect.Response[structpb.Struct], name string) *structpb.Value {
	return resp.Msg.GetFields()[name]
}

func bg() context.Context {
	return context.Background()
}

const factorialSource = `
var n, f;
procedure fact;
  if (n > 1) then begin f := f * n; n := n - 1; call fact end;
begin ? n; f := 1; call fact; ! f end.`
