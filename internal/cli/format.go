package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// fatih/color detects non-TTY output and disables itself automatically.
var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func printSection(title string) {
	fmt.Println()
	_, _ = headerColor.Printf("▸ %s\n", title)
}

func printSuccess(format string, args ...any) {
	_, _ = successColor.Printf("✓ "+format+"\n", args...)
}

func printWarning(format string, args ...any) {
	_, _ = warningColor.Printf("⚠ "+format+"\n", args...)
}

func printError(format string, args ...any) {
	_, _ = errorColor.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

func printDetail(format string, args ...any) {
	_, _ = dimColor.Printf("  "+format+"\n", args...)
}
