package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// FormatOutput formats the inspection according to output format
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

// formatTable formats the inspection as a table
func formatTable(out io.Writer, response *Response) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Disk:\t%s (%s)\n", response.Disk.Path, humanize.IBytes(uint64(response.Disk.Size)))
	fmt.Fprintf(w, "Byte order:\t%s\n", response.Disk.ByteOrder)
	fmt.Fprintf(w, "Unit:\t%d (device %d)\n", response.Disk.Unit, response.Disk.PhysicalDevice)
	fmt.Fprintf(w, "Root sector:\t%s table, checksum %s, executable %s\n",
		response.Root.Layout, response.Root.Checksum, yesNo(response.Root.Executable))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "#\tACTIVE\tID\tSTART\tSIZE")
	for _, e := range response.Root.Entries {
		id := e.ID
		if id == "" {
			id = fmt.Sprintf("%#02x", e.Type)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", e.Index, yesNo(e.Active), id, e.Start,
			humanize.IBytes(uint64(e.Size)*512))
	}
	fmt.Fprintln(w)

	for _, d := range response.Drives {
		fmt.Fprintf(w, "Drive %s\tpartition %d at sector %d\n", d.Letter, d.Partition.Index, d.Partition.Start)
	}

	if c := response.DriveC; c != nil {
		if c.Resolved {
			fmt.Fprintf(w, "C: boot sector:\tchecksum %s, executable %s\n", c.Checksum, yesNo(c.Executable))
			if c.LoaderPresent {
				fmt.Fprintf(w, "C: loader:\t%s (%s bytes)\n", c.Loader, humanize.Comma(c.LoaderSize))
			} else {
				fmt.Fprintf(w, "C: loader:\t%s missing\n", c.Loader)
			}
		}
		if c.Error != "" {
			fmt.Fprintf(w, "C: error:\t%s\n", c.Error)
		}
	}

	fmt.Fprintf(w, "Sectors read:\t%d\n", response.Stats.SectorsRead)

	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// formatJSON formats the inspection as JSON
func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats the inspection as YAML
func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}
