package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chitchi46/lectureqa/internal/practice"
)

var practiceCmd = &cobra.Command{
	Use:   "practice <lecture_id>",
	Short: "Answer a lecture's stored questions interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()
		items, err := svc.Items(ctx, args[0])
		if err != nil {
			return err
		}

		correct, answered, err := practice.Run(ctx, svc, args[0], user, items)
		if err != nil {
			return err
		}
		if answered > 0 {
			fmt.Printf("%d of %d correct.\n", correct, answered)
		}
		return nil
	},
}

func init() {
	practiceCmd.Flags().String("user", "anonymous", "Student identifier")
}
