// Command wasminspect loads a Wasm module and drives it one instruction at
// a time, for interactive inspection of its stack and control flow.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/MaxDesiatov/wasminspect/api"
	"github.com/MaxDesiatov/wasminspect/internal/wasm"
)

func main() {
	modulePath := flag.String("module", "", "path to a module file in the api.Module JSON shape")
	entry := flag.String("func", "_start", "name of the exported function to run")
	flag.Parse()

	logger := log.New(os.Stderr, "", 0)
	if *modulePath == "" {
		logger.Fatal("wasminspect: -module is required")
	}

	if err := run(logger, jsonModuleDecoder{}, noSourceMap{}, *modulePath, *entry); err != nil {
		logger.Fatal(err)
	}
}

// print_i32 is the canonical example host import: it demonstrates the
// general host-function contract (SPEC_FULL.md §13 supplemented features) rather
// than being hard-wired into the interpreter itself.
func printI32Module() map[string]api.HostValue {
	sig := &api.FunctionType{Params: []api.ValueType{api.ValueTypeI32}}
	return map[string]api.HostValue{
		"print_i32": api.FuncValue(sig, func(args []api.Value) ([]api.Value, error) {
			fmt.Println(args[0].I32())
			return nil, nil
		}),
	}
}

func run(logger *log.Logger, decoder ModuleDecoder, sourceMap SourceMap, modulePath, entry string) error {
	mod, err := decoder.Decode(modulePath)
	if err != nil {
		return err
	}

	store := wasm.NewStore()
	store.LoadHostModule("env", printI32Module())

	modIndex, err := store.LoadModule("main", mod)
	if err != nil {
		return fmt.Errorf("instantiate module: %w", err)
	}

	defined := store.Module(modIndex).(*wasm.DefinedModuleInstance)
	addr, ok, err := defined.ExportedFunc(entry)
	if err != nil {
		return fmt.Errorf("resolve entry function %q: %w", entry, err)
	}
	if !ok {
		return fmt.Errorf("module has no exported function %q", entry)
	}

	exec, err := wasm.NewExecutor(store, addr, nil)
	if err != nil {
		return fmt.Errorf("start %q: %w", entry, err)
	}

	repl(logger, exec, sourceMap)
	return nil
}

func repl(logger *log.Logger, exec *wasm.Executor, sourceMap SourceMap) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("wasminspect: commands are step, stack, run, quit")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "step":
			stepOnce(logger, exec, sourceMap)
		case "run":
			for !exec.IsFinished() {
				if !stepOnce(logger, exec, sourceMap) {
					break
				}
			}
		case "stack":
			printStack(exec)
		case "quit", "exit":
			return
		case "":
			// ignore blank lines
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}

func stepOnce(logger *log.Logger, exec *wasm.Executor, sourceMap SourceMap) bool {
	status, err := exec.ExecuteStep()
	if err != nil {
		logger.Printf("trap: %v", err)
		return false
	}
	if status == wasm.ExecEnd {
		if result, err := exec.PeekResult(); err == nil {
			fmt.Printf("finished: %s\n", result)
		} else {
			fmt.Println("finished")
		}
		return false
	}
	pc := exec.PC()
	if file, line, ok := sourceMap.Lookup(pc); ok {
		fmt.Printf("%s:%d\n", file, line)
	} else {
		fmt.Printf("func#%d inst#%d\n", pc.Func.Index, pc.Inst)
	}
	return true
}

func printStack(exec *wasm.Executor) {
	insts := exec.CurrentFuncInsts()
	pc := exec.PC()
	if pc.Inst < len(insts) {
		fmt.Printf("next: %s\n", insts[pc.Inst].Opcode)
	}
	fmt.Printf("depth: %d\n", exec.StackDepth())
	for i := exec.StackDepth() - 1; i >= 0; i-- {
		func() {
			defer func() { recover() }()
			fmt.Printf("  [%d] %s\n", i, exec.StackValueAt(i))
		}()
	}
}
