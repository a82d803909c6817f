package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/morezero/script-runtime/pkg/bootstrap"
	"github.com/morezero/script-runtime/pkg/commsutil"
	"github.com/morezero/script-runtime/pkg/dispatcher"
	"github.com/morezero/script-runtime/pkg/events"
	"github.com/morezero/script-runtime/pkg/registry"
	"github.com/morezero/script-runtime/pkg/value"
)

var callCmd = &cobra.Command{
	Use:   "call <namespace.operation[@range]> [args...]",
	Short: "Invoke one operation locally and print the JSON response",
	Long: `Invoke one operation in-process, without NATS, and print the response envelope.

Each argument is parsed as JSON, so 123 is an integer, true a boolean,
[1000, 4000] a list and {"$bytes":"aGk="} raw bytes. Anything that is not
valid JSON is passed as a string:

  script-runtime call file.write /tmp/out.html '<p>hi</p>'
  script-runtime call file.download@^1 /tmp/images '["https://example.com/a.png"]' '[1000, 4000]'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

func init() {
	addManifestFlag(callCmd)
	callCmd.Flags().Duration("timeout", 0, "Cancel the call after this long (0: no limit)")
	callCmd.Flags().String("request-id", "cli", "Request id recorded on download events")
	callCmd.Flags().Bool("events", false, "Print download events to stderr as they happen")
	rootCmd.AddCommand(callCmd)
}

func addManifestFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("manifest", "m", "", "Plugin manifest (JSON or YAML; default: RUNTIME_PLUGIN_MANIFEST, config/plugins.json, built-in)")
}

// localRegistry builds the registry named by the --manifest flag with the given publisher.
func localRegistry(cmd *cobra.Command, pub events.Publisher) (*registry.Registry, error) {
	path, _ := cmd.Flags().GetString("manifest")
	m, err := bootstrap.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return bootstrap.BuildRegistry(m, &bootstrap.BuildOptions{Deps: bootstrap.Deps{Publisher: pub}})
}

func runCall(cmd *cobra.Command, args []string) error {
	setupCLILogging(cmd, nil)
	timeout, _ := cmd.Flags().GetDuration("timeout")
	requestID, _ := cmd.Flags().GetString("request-id")
	showEvents, _ := cmd.Flags().GetBool("events")

	var pub events.Publisher = &events.NoOpPublisher{}
	if showEvents {
		pub = eventPrinter(cmd.ErrOrStderr())
	}
	reg, err := localRegistry(cmd, pub)
	if err != nil {
		return err
	}

	vals := parseArgs(args[1:])
	req := &dispatcher.InvokeRequest{ID: requestID, Call: args[0], Args: vals}
	if timeout > 0 {
		req.Ctx = &dispatcher.InvocationContext{TimeoutMs: int(timeout / time.Millisecond)}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	resp := dispatcher.NewDispatcher(reg).Handle(ctx, req)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("%s failed with %s", req.Call, resp.Error.Code)
	}
	return nil
}

// parseArgs decodes each argument as a JSON value, falling back to a plain string.
func parseArgs(raw []string) []value.Value {
	vals := make([]value.Value, len(raw))
	for i, a := range raw {
		var v value.Value
		if err := json.Unmarshal([]byte(a), &v); err != nil {
			v = value.String(a)
		}
		vals[i] = v
	}
	return vals
}

func eventPrinter(w io.Writer) events.Publisher {
	return events.NewCallbackPublisher(func(_ context.Context, event *events.DownloadEvent) error {
		data, err := commsutil.EncodePayload(event)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	})
}
