package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

var (
	// ANSI color codes
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// disableColors strips the ANSI codes when output is redirected
func disableColors() {
	colorReset = ""
	colorGreen = ""
	colorYellow = ""
	colorPurple = ""
	colorCyan = ""
	colorBold = ""
}

// plainReporter prints the demo as a line-oriented log
type plainReporter struct {
	mu      sync.Mutex
	lastBar int
}

func printTitle(title string) {
	fmt.Printf("\n%s%s🌍 %s%s\n", colorBold, colorPurple, title, colorReset)
	fmt.Println(strings.Repeat("=", 60))
}

func printStat(label string, value any) {
	fmt.Printf("  %s%s:%s %s%v%s\n", colorBold, label, colorReset, colorYellow, value, colorReset)
}

func (p *plainReporter) start(s stage, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastBar = -1
	fmt.Printf("\n%s%s%s%s\n", colorBold, colorCyan, s.title(), colorReset)
	fmt.Printf("%s• %s%s\n", colorYellow, detail, colorReset)
}

// progress prints a mark every tenth, so redirected output stays short
func (p *plainReporter) progress(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	step := int(v * 10)
	if step <= p.lastBar {
		return
	}
	p.lastBar = step
	fmt.Printf("  %3d%%\n", step*10)
}

func (p *plainReporter) message(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Printf("%s• %s%s\n", colorYellow, msg, colorReset)
}

func (p *plainReporter) loaded(stats loadStats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Printf("%s✓ Loading complete%s\n", colorGreen, colorReset)
	printStat("Points", stats.points)
	printStat("Time", stats.duration)
	printStat("Points/sec", fmt.Sprintf("%.0f", float64(stats.points)/stats.duration.Seconds()))
}

func (p *plainReporter) finished(s stage, stats benchmarkResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Printf("%s✓ %s complete%s\n", colorGreen, s.title(), colorReset)
	printStat("Queries", stats.totalQueries)
	printStat("Total time", stats.totalTime)
	printStat("Queries/sec", fmt.Sprintf("%.0f", stats.queriesPerSec))
	printStat("Avg query time", stats.avgQueryTime)
	printStat("Total results", stats.totalResults)
}
