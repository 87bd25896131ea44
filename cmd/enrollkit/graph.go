package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/enrollkit/enrollkit/internal/presentation/graph"
	"github.com/enrollkit/enrollkit/internal/runtime"
)

var graphCmd = &cobra.Command{
	Use:   "graph [session-id]",
	Short: "Print the check-in workflow as a Mermaid flowchart",
	Long: `Render the check-in transition table as Mermaid flowchart syntax.
When a session id is given, the session's visited steps and current step
are highlighted on the graph.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var overlay *graph.Overlay
		if len(args) == 1 {
			engine, cleanup := mustEngine(cmd)
			defer cleanup()

			state, err := engine.State(cmd.Context(), args[0])
			if err != nil {
				fmt.Printf("Error loading session '%s': %v\n", args[0], err)
				os.Exit(1)
			}
			overlay = &graph.Overlay{
				VisitedSteps: state.History,
				CurrentStep:  state.CurrentStep,
			}
		}

		fmt.Print(graph.GenerateMermaid(runtime.CheckInTable(), overlay))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
