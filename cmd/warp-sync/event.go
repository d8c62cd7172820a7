package main

import (
	"github.com/spf13/cobra"

	"github.com/mirkobrombin/go-warp-sync/v1/lock"
)

type eventStatus struct {
	Key string `json:"key"`
	Set bool   `json:"set"`
}

func newEventCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Set, clear and wait for events",
	}
	open := func(key string) *lock.Event {
		return lock.NewEvent(a.store, key, a.primitiveOptions()...)
	}
	printEvent := func(cmd *cobra.Command, ev *lock.Event) error {
		set, err := ev.IsSet(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(a.out, eventStatus{Key: ev.Key(), Set: set})
	}

	set := &cobra.Command{
		Use:   "set KEY",
		Short: "Signal the event until its deadline passes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := open(args[0])
			if err := ev.Set(cmd.Context()); err != nil {
				return err
			}
			return printEvent(cmd, ev)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear KEY",
		Short: "Reset the event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := open(args[0])
			if err := ev.Clear(cmd.Context()); err != nil {
				return err
			}
			return printEvent(cmd, ev)
		},
	}

	status := &cobra.Command{
		Use:   "status KEY",
		Short: "Print whether the event is set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printEvent(cmd, open(args[0]))
		},
	}

	wait := &cobra.Command{
		Use:   "wait KEY",
		Short: "Block until the event is set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := waitOptions(cmd)
			if err != nil {
				return err
			}
			ev := open(args[0])
			if err := ev.Wait(cmd.Context(), opts...); err != nil {
				return err
			}
			return printEvent(cmd, ev)
		},
	}
	wait.Flags().Duration("timeout", 0, "give up after this long")

	cmd.AddCommand(set, clearCmd, status, wait)
	return cmd
}
