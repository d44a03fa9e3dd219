package main

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/kikiluvv/shortreel/internal/logging"
)

// newProgressBar draws on stderr. A total of zero shows a spinner. Output is
// suppressed when stderr is not a terminal or logs are JSON.
func newProgressBar(total int, description, unit string) *progressbar.ProgressBar {
	n := total
	if n <= 0 {
		n = -1
	}
	visible := logFormat != logging.FormatJSON && isatty.IsTerminal(os.Stderr.Fd())

	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
