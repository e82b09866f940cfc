package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chitchi46/lectureqa/internal/app"
	"github.com/chitchi46/lectureqa/internal/grading"
	"github.com/chitchi46/lectureqa/internal/ui/theme"
)

var answerCmd = &cobra.Command{
	Use:   "answer <qa_id> <answer>",
	Short: "Grade and record an answer to a stored question",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var qaID int
		if _, err := fmt.Sscanf(args[0], "%d", &qaID); err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}
		user, _ := cmd.Flags().GetString("user")

		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.Answer(cmd.Context(), qaID, user, args[1])
		if errors.Is(err, app.ErrQANotFound) {
			return fmt.Errorf("question %d not found", qaID)
		}
		if err != nil {
			return err
		}

		p := theme.NewPainter(os.Stdout)
		if res.Verdict.IsCorrect {
			fmt.Println(p.Render(theme.Correct, "✓ Correct"))
		} else {
			fmt.Println(p.Render(theme.Incorrect, "✗ Incorrect"))
		}
		fmt.Printf("Answer:    %s\n", res.Verdict.CorrectAnswer)
		fmt.Printf("Method:    %s", res.Verdict.Method)
		if res.Verdict.Method == grading.MethodKeyword {
			fmt.Printf(" (%.0f%% overlap)", res.Verdict.Ratio*100)
		}
		fmt.Println()
		if res.Verdict.Ambiguous {
			fmt.Println(p.Render(theme.Warn, "The stored answer has no correct choice; graded by keywords."))
		}
		return nil
	},
}

func init() {
	answerCmd.Flags().String("user", "anonymous", "Student identifier")
}
