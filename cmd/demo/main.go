package main

import (
	"flag"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1F47E/geo-filter/pkg/config"
)

func main() {
	var (
		configFile = flag.String("c", "", "Config file (default geofilter.yaml if present)")
		points     = flag.Int("p", 0, "Number of points (default demo.points)")
		plain      = flag.Bool("plain", false, "Plain output even on a terminal")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *points > 0 {
		cfg.Demo.Points = *points
	}

	if *plain || !isTerminal() {
		if !isTerminal() {
			disableColors()
		}
		printTitle("Geo Filter Demo")
		newDemo(cfg, &plainReporter{}).run()
		return
	}

	program := tea.NewProgram(initialModel())
	go func() {
		newDemo(cfg, teaReporter{program: program}).run()
		program.Send(demoDoneMsg{})
	}()

	if _, err := program.Run(); err != nil {
		log.Fatal(err)
	}
}
