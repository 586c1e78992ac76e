package version

import (
	"fmt"
	"log"

	"github.com/charmbracelet/lipgloss"
)

var (
	Name        = "ojp-go"
	Description = "Multi-node OJP client driver"
	Version     = "v0.0.1"
	Commit      = "none"
	Date        = "nowish"
)

const (
	GithubHomeURI = "https://github.com/openjp-go/ojp"
)

var splashStyle = lipgloss.NewStyle().Bold(true)

// PrintVersionInfo writes a one-line (or, with extendedInfo, multi-line)
// banner to vlog. Used by cmd/ojpctl on startup and with --version.
func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	line := splashStyle.Render(fmt.Sprintf("%s %s", Name, Version)) + " - " + Description
	vlog.Println(line)

	if extendedInfo {
		vlog.Printf("  commit: %s\n", Commit)
		vlog.Printf("   built: %s\n", Date)
		vlog.Printf("    home: %s\n", GithubHomeURI)
	}
}
