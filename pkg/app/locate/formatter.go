package locate

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// FormatOutput formats the classification according to output format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table", "":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable formats the classification as a table
func formatTable(out io.Writer, response *Response) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "File:\t%s\n", response.Path)
	fmt.Fprintf(w, "Classification:\t%s\n", response.Classification)
	if response.Size > 0 {
		fmt.Fprintf(w, "Size:\t%s (%s bytes)\n", humanize.IBytes(uint64(response.Size)), humanize.Comma(response.Size))
	}
	if response.Valid {
		fmt.Fprintf(w, "EmuTOS tag:\toffset %#x\n", response.TagOffset)
	}
	if response.Reason != "" {
		fmt.Fprintf(w, "Reason:\t%s\n", response.Reason)
	}
	if response.InstallEnabled {
		fmt.Fprintf(w, "Install:\tenabled\n")
	} else {
		fmt.Fprintf(w, "Install:\tdisabled\n")
	}

	return w.Flush()
}

// formatJSON formats the classification as JSON
func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats the classification as YAML
func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}
