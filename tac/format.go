package tac

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Null marks an absent field in the record format.
const Null = "NULL"

// WriteListing writes one instruction per line. Labels start at column 0,
// other instructions are indented.
func WriteListing(w io.Writer, code *Code) error {
	bw := bufio.NewWriter(w)
	for _, in := range code.Instrs {
		if in.Op == OpLabel {
			fmt.Fprintln(bw, in.String())
			continue
		}
		fmt.Fprintf(bw, "    %s\n", in.String())
	}
	return bw.Flush()
}

// WriteRecords writes each instruction as a block of TYPE/ARG1/ARG2/RESULT
// lines. Records are separated by a blank line.
func WriteRecords(w io.Writer, code *Code) error {
	bw := bufio.NewWriter(w)
	for i, in := range code.Instrs {
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "TYPE: %s\n", in.Op)
		fmt.Fprintf(bw, "ARG1: %s\n", orNull(in.Arg1))
		fmt.Fprintf(bw, "ARG2: %s\n", orNull(in.Arg2))
		fmt.Fprintf(bw, "RESULT: %s\n", orNull(in.Result))
	}
	return bw.Flush()
}

func orNull(s string) string {
	if s == "" {
		return Null
	}
	return s
}

func fromNull(s string) string {
	if s == Null {
		return ""
	}
	return s
}

// ParseRecords reads the record format written by WriteRecords.
func ParseRecords(r io.Reader) (*Code, error) {
	code := &Code{}
	sc := bufio.NewScanner(r)

	var cur Instr
	seen := 0 // fields read for cur
	lineNo := 0
	flush := func() error {
		if seen == 0 {
			return nil
		}
		if cur.Op == "" {
			return fmt.Errorf("line %d: record without TYPE", lineNo)
		}
		if !cur.Op.Valid() {
			return fmt.Errorf("line %d: unknown operation %q", lineNo, cur.Op)
		}
		code.Emit(cur)
		cur = Instr{}
		seen = 0
		return nil
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected KEY: value, got %q", lineNo, line)
		}
		value = fromNull(strings.TrimSpace(value))
		switch strings.TrimSpace(key) {
		case "TYPE":
			if seen > 0 {
				// A new record started without a separating blank line.
				if err := flush(); err != nil {
					return nil, err
				}
			}
			cur.Op = Op(value)
		case "ARG1":
			cur.Arg1 = value
		case "ARG2":
			cur.Arg2 = value
		case "RESULT":
			cur.Result = value
		default:
			return nil, fmt.Errorf("line %d: unknown field %q", lineNo, key)
		}
		seen++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return code, nil
}
