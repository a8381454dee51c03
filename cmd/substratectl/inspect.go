package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/EchoCog/substratectl/core/substrate"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <image-path>",
	Short: "load a saved image and print its group/action summary",
	Args:  cobra.ExactArgs(1),
	RunE:  inspectHandler,
}

var stimulusFlag string

func init() {
	inspectCmd.Flags().StringVar(&stimulusFlag, "stimulus", "", "stimulus name to rank actions against")
}

func inspectHandler(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	b, err := substrate.LoadImage(f)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}

	fmt.Printf("age_steps=%d fingerprint=%016x instance=%s\n", b.AgeSteps(), b.Fingerprint(), b.InstanceID)

	st := b.AmplitudeStats()
	fmt.Printf("amplitude: mean=%.4f stddev=%.4f\n\n", st.Mean, st.StdDev)

	groupTable := tablewriter.NewWriter(os.Stdout)
	groupTable.SetHeader([]string{"Kind", "Name"})
	for _, kind := range []substrate.GroupKind{substrate.KindSensor, substrate.KindAction, substrate.KindLatent} {
		for _, name := range b.GroupsByKind(kind) {
			groupTable.Append([]string{kind.String(), name})
		}
	}
	groupTable.Render()

	if stimulusFlag != "" {
		fmt.Println()
		ranked := b.RankedActionsWithMeaning(stimulusFlag, 1.0)
		actionTable := tablewriter.NewWriter(os.Stdout)
		actionTable.SetHeader([]string{"Action", "Habit", "GlobalMeaning", "ConditionalMeaning", "Score"})
		for _, a := range ranked {
			actionTable.Append([]string{
				a.Action,
				fmt.Sprintf("%.4f", a.Habit),
				fmt.Sprintf("%.4f", a.GlobalMeaning),
				fmt.Sprintf("%.4f", a.ConditionalMeaning),
				fmt.Sprintf("%.4f", a.Score),
			})
		}
		actionTable.Render()
	}
	return nil
}
