package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/EchoCog/substratectl/core/substrate"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "construct a brain and step it forward",
	RunE:  runHandler,
}

func init() {
	runCmd.Flags().String("config", "", "path to a YAML config file (defaults used if empty)")
	runCmd.Flags().Int("steps", 100, "number of ticks to run")
	runCmd.Flags().StringSlice("sensor", nil, "name=width pairs declaring sensor groups")
	runCmd.Flags().StringSlice("action", nil, "name=width pairs declaring action groups")
	runCmd.Flags().StringSlice("stimulus", nil, "name=strength pairs applied every tick")
	runCmd.Flags().String("save", "", "path to write the final image")
	runCmd.Flags().Int("report-every", 10, "print amplitude stats every N ticks (0 disables)")
	runCmd.Flags().String("autosave", "", "path to periodically snapshot the image to while running (disabled if empty)")
	runCmd.Flags().Duration("autosave-every", 30*time.Second, "autosave interval, if --autosave is set")
}

// snapshotter writes a periodic image checkpoint from inside the run loop,
// on the same goroutine that drives Step — the brain has no concurrency
// safety of its own, so autosave is a tick-interval check, not a
// background ticker, unlike the teacher's autoSaveLoop. Failures are
// logged, not fatal: a skipped checkpoint shouldn't abort a long run.
type snapshotter struct {
	logger   *log.Logger
	path     string
	interval time.Duration
	last     time.Time
}

func newSnapshotter(logger *log.Logger, path string, interval time.Duration) *snapshotter {
	return &snapshotter{logger: logger, path: path, interval: interval, last: time.Now()}
}

func (s *snapshotter) maybeSave(b *substrate.Brain, now time.Time) {
	if now.Sub(s.last) < s.interval {
		return
	}
	s.last = now
	if err := saveImageTo(s.path, b); err != nil {
		s.logger.Printf("autosave failed: %v", err)
		return
	}
	s.logger.Printf("autosave wrote %s at tick %d", s.path, b.AgeSteps())
}

func saveImageTo(path string, b *substrate.Brain) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()
	return b.SaveImage(f)
}

func runHandler(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	steps, _ := cmd.Flags().GetInt("steps")
	sensors, _ := cmd.Flags().GetStringSlice("sensor")
	actions, _ := cmd.Flags().GetStringSlice("action")
	stimuli, _ := cmd.Flags().GetStringSlice("stimulus")
	savePath, _ := cmd.Flags().GetString("save")
	reportEvery, _ := cmd.Flags().GetInt("report-every")
	autosavePath, _ := cmd.Flags().GetString("autosave")
	autosaveEvery, _ := cmd.Flags().GetDuration("autosave-every")

	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg := substrate.DefaultConfig()
	if configPath != "" {
		loaded, err := substrate.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	b, err := substrate.NewBrain(cfg)
	if err != nil {
		return fmt.Errorf("construct brain: %w", err)
	}

	for _, spec := range sensors {
		name, width, err := parseNameWidth(spec)
		if err != nil {
			return fmt.Errorf("sensor %q: %w", spec, err)
		}
		b.DeclareGroup(substrate.KindSensor, name, width)
	}
	for _, spec := range actions {
		name, width, err := parseNameWidth(spec)
		if err != nil {
			return fmt.Errorf("action %q: %w", spec, err)
		}
		b.DeclareGroup(substrate.KindAction, name, width)
	}

	type stim struct {
		name     string
		strength float32
	}
	var parsedStimuli []stim
	for _, spec := range stimuli {
		name, strength, err := parseNameStrength(spec)
		if err != nil {
			return fmt.Errorf("stimulus %q: %w", spec, err)
		}
		parsedStimuli = append(parsedStimuli, stim{name: name, strength: strength})
	}

	var snap *snapshotter
	if autosavePath != "" {
		snap = newSnapshotter(logger, autosavePath, autosaveEvery)
	}

	for i := 0; i < steps; i++ {
		for _, s := range parsedStimuli {
			b.ApplyStimulus(s.name, s.strength)
		}
		b.Step()
		b.CommitObservation()

		if reportEvery > 0 && (i+1)%reportEvery == 0 {
			st := b.AmplitudeStats()
			fmt.Printf("tick %d: amp_mean=%.4f amp_stddev=%.4f\n", b.AgeSteps(), st.Mean, st.StdDev)
		}
		if snap != nil {
			snap.maybeSave(b, time.Now())
		}
	}

	if savePath != "" {
		f, err := os.Create(savePath)
		if err != nil {
			return fmt.Errorf("create image file: %w", err)
		}
		defer f.Close()
		if err := b.SaveImage(f); err != nil {
			return fmt.Errorf("save image: %w", err)
		}
		fmt.Printf("wrote image to %s\n", savePath)
	}
	return nil
}

func parseNameWidth(spec string) (string, int, error) {
	parts := strings.SplitN(spec, "=", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("expected name=width")
	}
	var width int
	if _, err := fmt.Sscanf(parts[1], "%d", &width); err != nil {
		return "", 0, fmt.Errorf("width must be an integer: %w", err)
	}
	return parts[0], width, nil
}

func parseNameStrength(spec string) (string, float32, error) {
	parts := strings.SplitN(spec, "=", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("expected name=strength")
	}
	var strength float32
	if _, err := fmt.Sscanf(parts[1], "%g", &strength); err != nil {
		return "", 0, fmt.Errorf("strength must be a float: %w", err)
	}
	return parts[0], strength, nil
}
