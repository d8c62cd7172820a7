package main

import (
	"context"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/mirkobrombin/go-warp-sync/v1/lock"
)

type semaphoreStatus struct {
	Key         string `json:"key"`
	Capacity    int    `json:"capacity"`
	Available   int64  `json:"available"`
	Initialized bool   `json:"initialized"`
	Acquired    bool   `json:"acquired,omitempty"`
	Released    bool   `json:"released,omitempty"`
}

func newSemaphoreCmd(a *app) *cobra.Command {
	var capacity int
	cmd := &cobra.Command{
		Use:   "semaphore",
		Short: "Acquire, release and inspect counting semaphores",
	}
	cmd.PersistentFlags().IntVarP(&capacity, "capacity", "n", 1, "number of permits")

	semaphore := func(key string) (*lock.Semaphore, error) {
		return lock.NewSemaphore(a.store, key, capacity, a.primitiveOptions()...)
	}
	cmd.AddCommand(permitCommands(a, semaphore)...)
	return cmd
}

func newLockCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Acquire, release and inspect mutual exclusion locks",
	}
	newLock := func(key string) (*lock.Semaphore, error) {
		return lock.NewLock(a.store, key, a.primitiveOptions()...).Semaphore, nil
	}
	cmd.AddCommand(permitCommands(a, newLock)...)
	return cmd
}

// permitCommands builds the subcommands shared by semaphores and locks.
func permitCommands(a *app, open func(key string) (*lock.Semaphore, error)) []*cobra.Command {
	acquire := &cobra.Command{
		Use:   "acquire KEY",
		Short: "Take a permit and keep it until released or expired",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sem, err := open(args[0])
			if err != nil {
				return err
			}
			opts, err := waitOptions(cmd)
			if err != nil {
				return err
			}
			if err := sem.Acquire(cmd.Context(), opts...); err != nil {
				return err
			}
			return printStatus(cmd.Context(), a, sem, func(st *semaphoreStatus) { st.Acquired = true })
		},
	}
	acquire.Flags().Duration("timeout", 0, "give up after this long")

	release := &cobra.Command{
		Use:   "release KEY",
		Short: "Return a permit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sem, err := open(args[0])
			if err != nil {
				return err
			}
			if err := sem.Release(cmd.Context()); err != nil {
				return err
			}
			return printStatus(cmd.Context(), a, sem, func(st *semaphoreStatus) { st.Released = true })
		},
	}

	status := &cobra.Command{
		Use:   "status KEY",
		Short: "Print the number of free permits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sem, err := open(args[0])
			if err != nil {
				return err
			}
			return printStatus(cmd.Context(), a, sem, nil)
		},
	}

	run := &cobra.Command{
		Use:   "run KEY -- COMMAND [ARGS...]",
		Short: "Run a command while holding a permit",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sem, err := open(args[0])
			if err != nil {
				return err
			}
			opts, err := waitOptions(cmd)
			if err != nil {
				return err
			}
			return sem.Do(cmd.Context(), func(ctx context.Context) error {
				a.logger.Info("warp: running", "key", sem.Key(), "command", args[1])
				c := exec.CommandContext(ctx, args[1], args[2:]...)
				c.Stdin = os.Stdin
				c.Stdout = cmd.OutOrStdout()
				c.Stderr = cmd.ErrOrStderr()
				return c.Run()
			}, opts...)
		},
	}
	run.Flags().Duration("timeout", 0, "give up waiting for a permit after this long")

	return []*cobra.Command{acquire, release, status, run}
}

func printStatus(ctx context.Context, a *app, sem *lock.Semaphore, mutate func(*semaphoreStatus)) error {
	n, ok, err := sem.Available(ctx)
	if err != nil {
		return err
	}
	st := semaphoreStatus{
		Key:         sem.Key(),
		Capacity:    sem.Capacity(),
		Available:   n,
		Initialized: ok,
	}
	if mutate != nil {
		mutate(&st)
	}
	return printJSON(a.out, st)
}
