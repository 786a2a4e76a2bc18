// Command opscrew runs the multi-agent back office from the terminal:
// chat with an agent, route tasks, execute workflows and inspect goals,
// events and learning stats.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opscrew/opscrew"
	"github.com/opscrew/opscrew/config"
	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/orchestrator"
)

var (
	headline = color.New(color.FgCyan, color.Bold)
	warnText = color.New(color.FgYellow)
	okText   = color.New(color.FgGreen)
	dimText  = color.New(color.Faint)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:          "opscrew",
		Short:        "Autonomous back-office agents for HR, IT, Finance and Compliance",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default opscrew-config.json in . or $HOME)")

	root.AddCommand(
		newChatCmd(&cfgFile),
		newRouteCmd(&cfgFile),
		newWorkflowCmd(&cfgFile),
		newGoalsCmd(&cfgFile),
		newEventsCmd(&cfgFile),
		newStatsCmd(&cfgFile),
	)
	return root
}

func buildSystem(cfgFile string) (*opscrew.System, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return opscrew.New(cfg)
}

func newChatCmd(cfgFile *string) *cobra.Command {
	var agentKey, employeeID string
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a request to an agent (routed automatically unless --agent is set)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := buildSystem(*cfgFile)
			if err != nil {
				return err
			}
			defer sys.Close()

			message := strings.Join(args, " ")
			reqCtx := map[string]any{}
			if employeeID != "" {
				reqCtx["employee_id"] = employeeID
			}

			var resp *core.AgentResponse
			var agentName string
			if agentKey != "" {
				rt, ok := sys.Orchestrator.Agent(agentKey)
				if !ok {
					return fmt.Errorf("unknown agent %q (known: %s)", agentKey, strings.Join(sys.Orchestrator.AgentKeys(), ", "))
				}
				resp = rt.ProcessRequest(cmd.Context(), message, reqCtx)
				agentName = rt.Name()
			} else {
				var route orchestrator.Route
				resp, route = sys.Orchestrator.Dispatch(cmd.Context(), message, reqCtx)
				dimText.Printf("routed to %s\n", route.AgentKey)
				if rt, ok := sys.Orchestrator.Agent(route.AgentKey); ok {
					agentName = rt.Name()
				}
			}

			headline.Printf("%s\n", agentName)
			fmt.Println(resp.Response)
			if resp.Escalated {
				warnText.Println("\n[escalated for human review]")
			}
			for _, action := range resp.ActionsTaken {
				marker := okText.Sprint("ok")
				if !action.Success {
					marker = warnText.Sprint("failed")
				}
				dimText.Printf("  %s %s\n", action.Tool, marker)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&agentKey, "agent", "", "agent key (hr, it, finance, compliance)")
	cmd.Flags().StringVar(&employeeID, "employee", "", "acting employee id, e.g. EMP001")
	return cmd
}

func newRouteCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "route [description]",
		Short: "Show which agent would own a task, without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := buildSystem(*cfgFile)
			if err != nil {
				return err
			}
			defer sys.Close()

			route := sys.Orchestrator.RouteTask(cmd.Context(), strings.Join(args, " "))
			headline.Printf("%s\n", route.AgentKey)
			fmt.Println(route.Reasoning)
			return nil
		},
	}
}

func newWorkflowCmd(cfgFile *string) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "workflow <name>",
		Short: "Execute a registered multi-agent workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := buildSystem(*cfgFile)
			if err != nil {
				return err
			}
			defer sys.Close()

			orch := sys.Orchestrator
			result, err := orch.ExecuteWorkflow(cmd.Context(), args[0], parseParams(params))
			if err != nil {
				if names := orch.WorkflowNames(); len(names) > 0 {
					dimText.Printf("known workflows: %s\n", strings.Join(names, ", "))
				}
				return err
			}

			okText.Printf("workflow %s completed\n", args[0])
			for k, v := range result {
				fmt.Printf("  %s: %v\n", k, v)
			}
			for _, run := range orch.Completed() {
				if run.ID != result["workflow_id"] {
					continue
				}
				for _, step := range run.Steps {
					dimText.Printf("  step %s (%s): %s\n", step.Name, step.Agent, step.Status)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "workflow parameter as key=value, repeatable")
	return cmd
}

// parseParams turns repeated key=value flags into workflow params, keeping
// numeric values numeric so amount-style parameters work.
func parseParams(pairs []string) map[string]any {
	out := map[string]any{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			out[key] = n
			continue
		}
		out[key] = value
	}
	return out
}

func newGoalsCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "goals [agent-key]",
		Short: "Show KPI goals, optionally for one agent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := buildSystem(*cfgFile)
			if err != nil {
				return err
			}
			defer sys.Close()

			for _, status := range sys.Orchestrator.AgentStatuses() {
				if len(args) == 1 && status.Key != args[0] {
					continue
				}
				headline.Printf("%s (%s)\n", status.Name, status.Key)
				for _, g := range status.Goals {
					actual := "unmeasured"
					if g.Actual != nil {
						actual = strconv.FormatFloat(*g.Actual, 'f', -1, 64)
					}
					state := dimText.Sprint("pending")
					if met := g.Met(); met != nil {
						if *met {
							state = okText.Sprint("met")
						} else {
							state = warnText.Sprint("not met")
						}
					}
					fmt.Printf("  %-24s target %v %s (%s), actual %s: %s\n",
						g.Name, g.Target, g.Unit, g.Direction, actual, state)
				}
			}
			return nil
		},
	}
}

func newEventsCmd(cfgFile *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent bus events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := buildSystem(*cfgFile)
			if err != nil {
				return err
			}
			defer sys.Close()

			events := sys.Bus.Recent(limit)
			if len(events) == 0 {
				dimText.Println("no events recorded in this session")
				return nil
			}
			for _, e := range events {
				fmt.Printf("%s  %-24s from %s\n", e.Timestamp.Format("15:04:05"), e.Type, e.Source)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum events to show, 0 for all")
	return cmd
}

func newStatsCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [agent-key]",
		Short: "Show an agent's learning statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := buildSystem(*cfgFile)
			if err != nil {
				return err
			}
			defer sys.Close()

			for _, status := range sys.Orchestrator.AgentStatuses() {
				if status.Key != args[0] {
					continue
				}
				headline.Printf("%s (%s)\n", status.Name, status.Key)
				fmt.Printf("  decisions:       %d\n", status.Stats.TotalDecisions)
				fmt.Printf("  overrides:       %d\n", status.Stats.TotalOverrides)
				fmt.Printf("  override rate:   %.1f%%\n", status.Stats.OverrideRate)
				fmt.Printf("  avg confidence:  %.2f\n", status.Stats.AverageConfidence)
				return nil
			}
			return fmt.Errorf("unknown agent %q (known: %s)", args[0], strings.Join(sys.Orchestrator.AgentKeys(), ", "))
		},
	}
}
