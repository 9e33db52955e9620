// Mica CLI - the main entry point for running Mica programs
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/mica/builtins"
	"github.com/chazu/mica/compiler"
	"github.com/chazu/mica/manifest"
	"github.com/chazu/mica/vm"

	_ "github.com/tliron/commonlog/simple"
)

// Exit codes follow the sysexits convention: 65 for bad input, 70 for an
// internal runtime failure.
const (
	exitCompileError = 65
	exitRuntimeError = 70
)

func main() {
	interactive := flag.Bool("i", false, "Start interactive REPL")
	disassemble := flag.Bool("d", false, "Disassemble the script instead of running it")
	trace := flag.Bool("trace", false, "Log every instruction as it executes")
	gcStress := flag.Bool("gc-stress", false, "Collect garbage before every allocation")
	noHistory := flag.Bool("no-history", false, "Disable REPL history")
	verbosity := flag.Int("v", 0, "Log verbosity (0 = quiet)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mica [options] [script.mica [args...]]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Mica script, or starts a REPL when no script is given.\n")
		fmt.Fprintf(os.Stderr, "Settings are read from the nearest mica.toml, if any.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mica                   # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  mica app.mica a b      # Run app.mica with args [a, b]\n")
		fmt.Fprintf(os.Stderr, "  mica -d app.mica       # Show the compiled bytecode\n")
		fmt.Fprintf(os.Stderr, "  mica -trace -v 1 app.mica  # Trace execution\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	vmInst := vm.New()
	vmInst.UseCompiler(compiler.Compile)
	builtins.Register(vmInst)

	vmInst.Trace = m.VM.Trace || *trace
	heap := vmInst.Heap()
	heap.Stress = m.VM.GCStress || *gcStress
	heap.SetGCThreshold(int(m.VM.GCThreshold))

	args := flag.Args()
	script := ""
	switch {
	case len(args) > 0:
		script = args[0]
		vmInst.SetArgs(args[1:])
	case !*interactive && m.Dir != "":
		// A project manifest with an existing entry script runs it.
		if entry := m.EntryPath(); fileExists(entry) {
			script = entry
		}
	}

	if *disassemble {
		if script == "" {
			fmt.Fprintln(os.Stderr, "Error: -d requires a script")
			os.Exit(1)
		}
		os.Exit(disassembleFile(vmInst, script))
	}

	if script != "" && !*interactive {
		os.Exit(runFile(vmInst, script))
	}

	historyPath := m.HistoryDBPath()
	if *noHistory || !m.REPL.History {
		historyPath = ""
	}
	runREPL(vmInst, historyPath)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readScript(path string) (string, int) {
	if !strings.HasSuffix(path, ".mica") {
		fmt.Fprintf(os.Stderr, "Error: %q is not a .mica file\n", path)
		return "", 1
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return "", 1
	}
	return string(data), 0
}

// runFile executes a script and maps the outcome to a process exit code.
func runFile(vmInst *vm.VM, path string) int {
	source, code := readScript(path)
	if code != 0 {
		return code
	}

	result, err := vmInst.Interpret(source)
	switch result {
	case vm.ResultOK:
		return 0
	case vm.ResultCompileError:
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitCompileError
	case vm.ResultRuntimeError:
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitRuntimeError
	case vm.ResultExitOK, vm.ResultExitError:
		return vmInst.ExitStatus()
	}
	return exitRuntimeError
}

// disassembleFile compiles a script and prints its bytecode without
// executing anything.
func disassembleFile(vmInst *vm.VM, path string) int {
	source, code := readScript(path)
	if code != 0 {
		return code
	}

	fn, err := compiler.Compile(source, vmInst.Heap())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitCompileError
	}
	fmt.Print(vm.DisassembleFunction(fn))
	return 0
}
