package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/morezero/script-runtime/pkg/commsutil"
	"github.com/morezero/script-runtime/pkg/dispatcher"
	"github.com/morezero/script-runtime/pkg/events"
	"github.com/morezero/script-runtime/pkg/value"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive shell for calling operations",
	Long: `Start an interactive shell. Each line is one call in script form:

  file.write("/tmp/out.html", "<p>hi</p>")
  file.download@^1("/tmp/images", ["https://example.com/a.png"], [1000, 4000])

Arguments are JSON values. Commands: 'catalog' lists signatures, 'exit' or
Ctrl+D quits. Ctrl+C cancels a running call. End a line with \ to continue it.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	addManifestFlag(replCmd)
	replCmd.Flags().String("history", "", "History file path (default: ~/.script_runtime_history)")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, _ []string) error {
	setupCLILogging(cmd, nil)
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".script_runtime_history")
	}

	reg, err := localRegistry(cmd, &events.NoOpPublisher{})
	if err != nil {
		return err
	}
	disp := dispatcher.NewDispatcher(reg)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	fmt.Fprintln(out, "script-runtime REPL (type 'exit' to quit, Ctrl+D to exit)")

	var multiLine strings.Builder
	n := 0
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				multiLine.Reset()
				rl.SetPrompt(">>> ")
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			rl.SetPrompt("... ")
			continue
		}
		if multiLine.Len() > 0 {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			rl.SetPrompt(">>> ")
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case line == "catalog":
			for _, info := range reg.Catalog() {
				for _, op := range info.Operations {
					fmt.Fprintf(out, "%s.%s\n", info.Namespace, op.Signature)
				}
			}
			continue
		}

		n++
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		evalLine(ctx, disp, fmt.Sprintf("repl-%d", n), line, out)
		stop()
	}
}

// evalLine runs one call line and prints its result, or the error code and message.
func evalLine(ctx context.Context, disp *dispatcher.Dispatcher, id, line string, w io.Writer) {
	call, args, err := parseCallLine(line)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	resp := disp.Handle(ctx, &dispatcher.InvokeRequest{ID: id, Call: call, Args: args})
	if !resp.Ok {
		fmt.Fprintf(w, "Error: %s: %s\n", resp.Error.Code, resp.Error.Message)
		return
	}
	if resp.Result == nil || resp.Result.IsNull() {
		return
	}
	data, err := commsutil.EncodePayload(resp.Result)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

// parseCallLine splits `ns.op[@range](arg, ...)` into the call reference and its
// arguments, each parsed as a JSON value.
func parseCallLine(line string) (string, []value.Value, error) {
	open := strings.IndexByte(line, '(')
	if open <= 0 || !strings.HasSuffix(line, ")") {
		return "", nil, fmt.Errorf("expected namespace.operation(args...), got %q", line)
	}
	call := strings.TrimSpace(line[:open])
	var args []value.Value
	if err := json.Unmarshal([]byte("["+line[open+1:len(line)-1]+"]"), &args); err != nil {
		return "", nil, fmt.Errorf("arguments: %w", err)
	}
	return call, args, nil
}
