package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
	"github.com/mockflow-core-poc-v1/server/internal/interview/stage"
)

// consoleSideband prints what a voice client and an observer would receive.
type consoleSideband struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *consoleSideband) Speak(_ context.Context, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "  [speak] %s\n", text)
	return err
}

func (c *consoleSideband) Notify(_ context.Context, ev model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Type {
	case model.EventStageChange:
		_, err := fmt.Fprintf(c.out, "  [event] stage_change %s -> %s forced=%t skipped=%t\n", ev.From, ev.Stage, ev.Forced, ev.Skipped)
		return err
	default:
		_, err := fmt.Fprintf(c.out, "  [event] %s %s\n", ev.Type, ev.Reason)
		return err
	}
}

func simulateCmd() *cobra.Command {
	var (
		catalogPath string
		step        time.Duration
		skip        string
		candidate   string
		ask         bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a session on a virtual clock with no interviewer, showing the escalation timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := stage.Load(catalogPath)
			if err != nil {
				return err
			}
			return simulate(cmd.Context(), cmd.OutOrStdout(), catalog, simulation{
				step:      step,
				skip:      skip,
				candidate: candidate,
				ask:       ask,
			})
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Stage catalog YAML (embedded default when empty)")
	cmd.Flags().DurationVar(&step, "step", 10*time.Second, "Virtual time between escalation ticks")
	cmd.Flags().StringVar(&skip, "skip", "", "Queue a skip to this stage after the first tick")
	cmd.Flags().StringVar(&candidate, "candidate", "Alex", "Candidate name used in acknowledgements")
	cmd.Flags().BoolVar(&ask, "ask", true, "Record one interviewer question per tick")
	return cmd
}

type simulation struct {
	step      time.Duration
	skip      string
	candidate string
	ask       bool
}

func simulate(ctx context.Context, out io.Writer, catalog *stage.Catalog, sim simulation) error {
	if sim.step <= 0 {
		return fmt.Errorf("step must be positive")
	}

	clock := session.NewManualClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	side := &consoleSideband{out: out}
	sess := session.New("simulation", model.Profile{CandidateName: sim.candidate, JobRole: "Software Engineer"}, session.Options{
		Catalog:  catalog,
		Clock:    clock,
		Speaker:  side,
		Notifier: side,
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess.Start(ctx)

	// every stage runs out eventually, so this bound is only a guard against a bad catalog
	limit := 0
	for _, st := range catalog.Stages {
		limit += int(st.TimeLimit/sim.step) + 2
	}
	limit += int(catalog.ClosingTimeout/sim.step) + 2

	for tick := 1; tick <= limit; tick++ {
		elapsed := clock.Advance(sim.step).Sub(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
		fmt.Fprintf(out, "t=%s\n", elapsed)

		if sim.ask {
			if _, err := sess.RecordInteraction(fmt.Sprintf("question %d", tick)); err != nil {
				fmt.Fprintf(out, "  [interaction] %v\n", err)
			}
		}
		if tick == 1 && sim.skip != "" {
			target, err := sess.QueueSkip(sim.skip)
			if err != nil {
				fmt.Fprintf(out, "  [skip] rejected: %v\n", err)
			} else {
				fmt.Fprintf(out, "  [skip] queued %s\n", target)
				if tr, err := sess.RequestTransition(sess.Snapshot().Stage, "candidate requested skip"); err == nil {
					fmt.Fprintf(out, "  [transition] %s -> %s (%s)\n", tr.From, tr.To, tr.Kind)
				}
			}
		}

		res, err := sess.Poll()
		sess.Wait()
		if err != nil || res.Stopped {
			break
		}
		for _, m := range res.Milestones {
			fmt.Fprintf(out, "  [milestone] %s %d%%\n", res.Stage, m)
		}
		if ack, ok := sess.TryConsumeAck(res.Stage); ok {
			fmt.Fprintf(out, "  [relay] %s\n", ack)
		}
		fmt.Fprintf(out, "  %s\n", sess.Snapshot().Progress)
	}

	_ = sess.End(session.ReasonShutdown)
	sess.Wait()

	fmt.Fprintln(out, "summary:")
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(sess.Summary())
}

func catalogCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate and print the stage catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := stage.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, st := range catalog.Stages {
				fmt.Fprintf(out, "%d. %-16s %-22q limit=%-6s min_dwell=%-5s min_interactions=%d\n",
					i+1, st.Name, st.Label, st.TimeLimit, st.MinDwell, st.MinInteractions)
			}
			fmt.Fprintf(out, "closing timeout: %s\n", catalog.ClosingTimeout)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Stage catalog YAML (embedded default when empty)")
	return cmd
}
