package version

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var formatFlag string

// Info is the build metadata stamped in through ldflags.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	BuiltBy   string `json:"built_by"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func SetVersionInfo(v, c, d, b string) {
	version = v
	commit = c
	date = d
	builtBy = b
}

func Get() Info {
	return Info{
		Version:   version,
		Commit:    commit,
		Date:      date,
		BuiltBy:   builtBy,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, date: %s)", i.Version, i.Commit, i.Date)
}

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Example: `  db-initializer version
  db-initializer version --format json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return write(cmd.OutOrStdout(), Get(), formatFlag)
	},
}

func init() {
	VersionCmd.Flags().StringVarP(&formatFlag, "format", "f", "text", "output format (text|json)")
}

func write(w io.Writer, info Info, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "text":
		_, err := fmt.Fprintf(w,
			"db-initializer version %s\n  commit: %s\n  built at: %s\n  built by: %s\n  go: %s %s\n",
			info.Version, info.Commit, info.Date, info.BuiltBy, info.GoVersion, info.Platform)
		return err
	default:
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", format)
	}
}
