package main

import (
	"github.com/spf13/cobra"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

func newLeaderboardCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Maintain aggregated leaderboards",
	}

	var game, periodType, periodKey string
	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild one leaderboard period from aggregated scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			count, err := a.leaderboard.Rebuild(cmd.Context(), game, periodType, periodKey)
			if err != nil {
				return err
			}
			cmd.Printf("leaderboard %s %s/%s rebuilt: %d entries\n", game, periodType, periodKey, count)
			return nil
		},
	}
	rebuild.Flags().StringVar(&game, "game", "", "game slug")
	rebuild.Flags().StringVar(&periodType, "period-type", entity.PeriodWeekly, "weekly, monthly or all_time")
	rebuild.Flags().StringVar(&periodKey, "period-key", "", "period key, empty for the current period")
	_ = rebuild.MarkFlagRequired("game")

	cmd.AddCommand(rebuild)
	return cmd
}
