package build

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chazu/pl0c/compiler"
	"github.com/chazu/pl0c/compiler/export"
	"github.com/chazu/pl0c/manifest"
	"github.com/chazu/pl0c/tac"
)

// extensions maps output formats to file name suffixes.
var extensions = map[string]string{
	manifest.FormatRecords: ".tac",
	manifest.FormatListing: ".tac.txt",
	manifest.FormatTokens:  ".tokens.json",
	manifest.FormatTree:    ".ast.json",
	manifest.FormatSymbols: ".symbols.json",
	manifest.FormatCBOR:    ".tac.cbor",
}

// Extension returns the file suffix of an output format.
func Extension(format string) string {
	return extensions[format]
}

// WriteFormat writes one output format of a compilation to w.
func WriteFormat(w io.Writer, format string, res *compiler.Result) error {
	switch format {
	case manifest.FormatRecords:
		return tac.WriteRecords(w, res.Code)
	case manifest.FormatListing:
		return tac.WriteListing(w, res.Code)
	case manifest.FormatTokens:
		return export.WriteJSON(w, export.Tokens(res.Tokens))
	case manifest.FormatTree:
		return export.WriteJSON(w, export.Tree(res.Program))
	case manifest.FormatSymbols:
		return export.WriteJSON(w, export.Symbols(res.Symbols))
	case manifest.FormatCBOR:
		data, err := export.MarshalCode(res.Code)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func writeOutput(path, format string, res *compiler.Result) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("cannot create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	cw := &countingWriter{w: bw}
	if err := WriteFormat(cw, format, res); err != nil {
		f.Close()
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return cw.n, nil
}
