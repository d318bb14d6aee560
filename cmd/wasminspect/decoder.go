package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MaxDesiatov/wasminspect/api"
	"github.com/MaxDesiatov/wasminspect/internal/wasm"
)

// ModuleDecoder turns a file on disk into a decoded api.Module. Byte-level
// Wasm decoding is out of scope for this project (spec.md §1); jsonModuleDecoder
// lets the CLI exercise the Store/Executor end-to-end against modules
// written directly in the api.Module JSON shape, the same way the test
// suite builds them in Go.
type ModuleDecoder interface {
	Decode(path string) (*api.Module, error)
}

type jsonModuleDecoder struct{}

func (jsonModuleDecoder) Decode(path string) (*api.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module file: %w", err)
	}
	var mod api.Module
	if err := json.Unmarshal(data, &mod); err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	return &mod, nil
}

// SourceMap resolves a ProgramCounter back to an original source location.
// DWARF symbolication is out of scope (spec.md §1); noSourceMap means the
// REPL always falls back to printing the raw function/instruction index.
type SourceMap interface {
	Lookup(pc wasm.ProgramCounter) (file string, line int, ok bool)
}

type noSourceMap struct{}

func (noSourceMap) Lookup(wasm.ProgramCounter) (string, int, bool) { return "", 0, false }
