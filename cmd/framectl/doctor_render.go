package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"framectl/internal/preflight"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiBold  = "\x1b[1m"
)

// checkLabelWidth fits "Frames free space:" with room for tool names.
const checkLabelWidth = 24

// checkReport renders preflight results one per line under a header and
// counts the failures.
type checkReport struct {
	colorize bool
	lines    []string
	failed   int
}

func newCheckReport(out io.Writer, title string) *checkReport {
	r := &checkReport{colorize: isTerminal(out)}
	header := fmt.Sprintf("== %s ==", title)
	if r.colorize {
		header = ansiBold + header + ansiReset
	}
	r.lines = append(r.lines, header)
	return r
}

func (r *checkReport) add(result preflight.Result) {
	verdict, color := "OK", ansiGreen
	if !result.Passed {
		verdict, color = "FAIL", ansiRed
		r.failed++
	}
	line := fmt.Sprintf("  %-*s [%s] %s", checkLabelWidth, result.Name+":", verdict, result.Detail)
	if r.colorize {
		line = color + line + ansiReset
	}
	r.lines = append(r.lines, line)
}

func (r *checkReport) summary(total int) string {
	if r.failed == 0 {
		return fmt.Sprintf("%d checks passed", total)
	}
	return fmt.Sprintf("%d of %d checks failed", r.failed, total)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
