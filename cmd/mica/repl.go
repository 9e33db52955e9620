package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/chazu/mica/vm"
)

// runREPL starts an interactive read-eval-print loop. historyPath names
// the SQLite database for input history; empty disables it.
func runREPL(vmInst *vm.VM, historyPath string) {
	isTTY := term.IsTerminal(int(os.Stdin.Fd()))
	if isTTY {
		fmt.Println("Mica REPL (type 'exit' to quit, ':help' for commands)")
		fmt.Println()
	}

	var hist *history
	if historyPath != "" {
		var err error
		hist, err = openHistory(historyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		} else {
			defer hist.Close()
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	buffer := strings.Builder{}

	for {
		if isTTY {
			if buffer.Len() == 0 {
				fmt.Print(">> ")
			} else {
				fmt.Print(".. ")
			}
		}

		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if buffer.Len() == 0 {
			if line == "exit" || line == "quit" {
				break
			}
			if strings.HasPrefix(line, ":") {
				handleREPLCommand(vmInst, hist, line)
				continue
			}
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)

		// Keep reading while delimiters are unbalanced, so multi-line
		// functions and types can be typed naturally.
		input := buffer.String()
		if openDelims(input) > 0 {
			continue
		}
		buffer.Reset()

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if hist != nil {
			if err := hist.Record(input); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
				hist = nil
			}
		}
		evalLine(vmInst, input)
	}

	if isTTY {
		fmt.Println()
	}
}

// evalLine runs one REPL input. Bare expressions are wrapped so their
// value prints, which is what an interactive user expects.
func evalLine(vmInst *vm.VM, input string) {
	if !looksLikeStatement(input) {
		input = "println(" + input + ");"
	}
	if _, err := vmInst.Interpret(input); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
}

// looksLikeStatement reports whether input already ends at a statement
// boundary.
func looksLikeStatement(input string) bool {
	return strings.HasSuffix(input, ";") || strings.HasSuffix(input, "}")
}

// openDelims counts unclosed braces, brackets and parens, skipping string
// literals and comments well enough for interactive use.
func openDelims(input string) int {
	depth := 0
	inString := false
	inLineComment := false
	inBlockComment := false
	var prev rune

	for _, ch := range input {
		switch {
		case inLineComment:
			if ch == '\n' {
				inLineComment = false
			}
		case inBlockComment:
			if prev == '*' && ch == '/' {
				inBlockComment = false
			}
		case inString:
			if ch == '"' && prev != '\\' {
				inString = false
			}
		default:
			switch ch {
			case '"':
				inString = true
			case '{', '(', '[':
				depth++
			case '}', ')', ']':
				depth--
			case '/':
				if prev == '/' {
					inLineComment = true
				}
			case '*':
				if prev == '/' {
					inBlockComment = true
				}
			}
		}
		prev = ch
	}
	return depth
}

// handleREPLCommand handles REPL meta-commands
func handleREPLCommand(vmInst *vm.VM, hist *history, cmd string) {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case ":help", ":h", ":?":
		fmt.Println("REPL Commands:")
		fmt.Println("  :help, :h, :?     Show this help")
		fmt.Println("  :history          Show recent inputs from past sessions")
		fmt.Println("  :trace            Toggle instruction tracing")
		fmt.Println("  :gc               Run a garbage collection")
		fmt.Println("  exit, quit        Exit REPL")
	case ":history":
		if hist == nil {
			fmt.Println("History is disabled")
			return
		}
		entries, err := hist.Recent(20)
		if err != nil {
			fmt.Printf("Cannot read history: %v\n", err)
			return
		}
		for _, e := range entries {
			fmt.Println(e)
		}
	case ":trace":
		vmInst.Trace = !vmInst.Trace
		fmt.Printf("Tracing %s\n", onOff(vmInst.Trace))
	case ":gc":
		vmInst.Heap().Collect()
		fmt.Println("Collected")
	default:
		fmt.Printf("Unknown command: %s (type :help for commands)\n", cmd)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
