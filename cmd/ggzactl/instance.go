package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newInstanceCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Operate on quiz instances",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "transition <id> <status>",
		Short: "Move an instance to scheduled, live, completed or cancelled",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			instance, err := a.instances.Transition(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			cmd.Printf("instance %d is now %s\n", instance.ID, instance.Status)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rerank <id>",
		Short: "Recompute ranks and settle pending scores of a completed instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ranked, err := a.scoring.Rerank(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, s := range ranked {
				cmd.Printf("%4d  user=%d  points=%d  time_ms=%d\n", s.Rank, s.UserID, s.Points, s.TotalTimeMs)
			}
			cmd.Printf("%d scores ranked\n", len(ranked))
			return nil
		},
	})

	return cmd
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}
