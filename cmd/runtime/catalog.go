package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/morezero/script-runtime/pkg/events"
	"github.com/morezero/script-runtime/pkg/registry"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [namespace]",
	Short: "List namespaces and their operation signatures",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalog,
}

func init() {
	addManifestFlag(catalogCmd)
	catalogCmd.Flags().Bool("json", false, "Print the catalog as JSON")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	setupCLILogging(cmd, nil)
	asJSON, _ := cmd.Flags().GetBool("json")

	reg, err := localRegistry(cmd, &events.NoOpPublisher{})
	if err != nil {
		return err
	}

	var infos []registry.NamespaceInfo
	if len(args) == 1 {
		info, err := reg.Describe(args[0])
		if err != nil {
			return err
		}
		infos = []registry.NamespaceInfo{*info}
	} else {
		infos = reg.Catalog()
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s v%s", info.Namespace, info.Version)
		if len(info.Aliases) > 0 {
			fmt.Fprintf(out, " (aliases: %s)", strings.Join(info.Aliases, ", "))
		}
		fmt.Fprintln(out)
		if info.Description != "" {
			fmt.Fprintf(out, "  %s\n", info.Description)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, op := range info.Operations {
			fmt.Fprintf(tw, "  %s.%s\t%s\n", info.Namespace, op.Signature, op.Doc)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
