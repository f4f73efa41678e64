package install

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// FormatOutput formats the installation result according to output format
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

// formatTable formats the installation result as a table
func formatTable(out io.Writer, response *Response) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Run:\t%s\n", response.RunID)
	fmt.Fprintf(w, "Image:\t%s (%s)\n", response.Image.Path, humanize.IBytes(uint64(response.Image.Size)))
	fmt.Fprintf(w, "Disk:\t%s (unit %d)\n", response.Disk.Path, response.Disk.Unit)
	if response.Disk.Layout != "" {
		fmt.Fprintf(w, "Partition table:\t%s, %s byte order\n", response.Disk.Layout, response.Disk.ByteOrder)
	}
	fmt.Fprintf(w, "Variant:\t%s\n", response.Variant)
	if response.Target.Drive != "" {
		fmt.Fprintf(w, "Drive:\t%s on device %d, partition at sector %d\n",
			response.Target.Drive, response.Target.Device, response.Target.PartitionStart)
	}
	fmt.Fprintf(w, "Loader file:\t%s (%s bytes)\n", response.Target.Destination, humanize.Comma(response.Target.BytesCopied))
	fmt.Fprintf(w, "Stage:\t%s\n", response.Stage)
	if len(response.Completed) > 0 {
		fmt.Fprintf(w, "Completed:\t%s\n", strings.Join(response.Completed, ", "))
	}
	if response.Sectors.BootChecksum != "" {
		fmt.Fprintf(w, "Boot sector:\tchecksum %s, executable %s\n", response.Sectors.BootChecksum, yesNo(response.Sectors.BootExecutable))
		fmt.Fprintf(w, "Root sector:\tchecksum %s, executable %s\n", response.Sectors.RootChecksum, yesNo(response.Sectors.RootExecutable))
		fmt.Fprintf(w, "Partition marked:\t%s\n", yesNo(response.Sectors.PartitionMarked))
	}
	fmt.Fprintf(w, "Duration:\t%s\n", response.Duration.Round(time.Millisecond))
	if response.Error != "" {
		fmt.Fprintf(w, "Error:\t%s\n", response.Error)
	}

	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// formatJSON formats the installation result as JSON
func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats the installation result as YAML
func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}
