package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// printResult writes fields as JSON or as sorted "key: value" lines.
func printResult(w io.Writer, format string, fields map[string]any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fields)
	case "text", "":
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err := fmt.Fprintf(w, "%s: %v\n", k, fields[k]); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
