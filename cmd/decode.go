package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"authkit/pkg/jwt"
)

// newDecodeCmd creates the JWT inspection command.
func newDecodeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "decode <token>",
		Short: "Decode a JWT without verifying it",
		Long: `Decode splits a compact JWT into header and claims and prints both.
The signature is not verified; use "authkit verify" for that.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decoded, err := jwt.Decode(args[0])
			if err != nil {
				return err
			}

			if asJSON {
				out := map[string]any{
					"header": segmentValue(decoded.Header, decoded.HeaderRaw),
					"claims": segmentValue(decoded.Claims, decoded.ClaimsRaw),
				}
				if decoded.Signature != "" {
					out["signature"] = decoded.Signature
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			printSegment("Header", decoded.Header, decoded.HeaderRaw)
			printSegment("Claims", decoded.Claims, decoded.ClaimsRaw)
			if decoded.Signature == "" {
				fmt.Println("Token is unsigned.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decoded token as JSON")

	return cmd
}

// segmentValue picks the parsed map or the raw fallback text.
func segmentValue(parsed map[string]any, raw string) any {
	if parsed != nil {
		return parsed
	}
	return raw
}

// printSegment renders a decoded segment as a two-column table, or prints the
// raw text when the segment was not JSON.
func printSegment(title string, parsed map[string]any, raw string) {
	if parsed == nil {
		fmt.Printf("%s (not JSON):\n%s\n\n", title, raw)
		return
	}

	keys := make([]string, 0, len(parsed))
	for k := range parsed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Name", "Value"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, fmt.Sprintf("%v", parsed[k])})
	}
	t.Render()
	fmt.Println()
}
