package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <lecture_id>",
	Short: "Show answer statistics for a lecture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		st, err := svc.LectureStats(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Lecture:    %s\n", st.LectureID)
		fmt.Printf("Questions:  %d\n", st.TotalQuestions)
		fmt.Printf("Answers:    %d\n", st.TotalAnswers)
		fmt.Printf("Correct:    %d\n", st.CorrectAnswers)
		fmt.Printf("Accuracy:   %.1f%%\n", st.AccuracyRate*100)

		if len(st.ByDifficulty) == 0 {
			return nil
		}

		fmt.Println()
		fmt.Printf("%-10s  %9s  %7s  %7s  %8s\n", "Difficulty", "Questions", "Answers", "Correct", "Accuracy")
		fmt.Println(strings.Repeat("─", 50))

		levels := make([]string, 0, len(st.ByDifficulty))
		for d := range st.ByDifficulty {
			levels = append(levels, d)
		}
		sort.Slice(levels, func(i, j int) bool { return difficultyRank(levels[i]) < difficultyRank(levels[j]) })

		for _, d := range levels {
			ds := st.ByDifficulty[d]
			fmt.Printf("%-10s  %9d  %7d  %7d  %7.1f%%\n", d, ds.Questions, ds.Answers, ds.Correct, ds.AccuracyRate*100)
		}
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress <user_id>",
	Short: "Show a student's answer history by lecture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		pr, err := svc.StudentProgress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if pr.Answered == 0 {
			fmt.Printf("No answers recorded for %s.\n", pr.UserID)
			return nil
		}

		fmt.Printf("Student:    %s\n", pr.UserID)
		fmt.Printf("Answered:   %d\n", pr.Answered)
		fmt.Printf("Correct:    %d\n", pr.Correct)
		fmt.Printf("Accuracy:   %.1f%%\n", pr.AccuracyRate*100)

		fmt.Println()
		fmt.Printf("%-20s  %8s  %7s\n", "Lecture", "Answered", "Correct")
		fmt.Println(strings.Repeat("─", 40))
		for _, lp := range pr.ByLecture {
			fmt.Printf("%-20s  %8d  %7d\n", truncate(lp.LectureID, 20), lp.Answered, lp.Correct)
		}
		return nil
	},
}

func difficultyRank(d string) int {
	switch d {
	case "easy":
		return 0
	case "medium":
		return 1
	case "hard":
		return 2
	}
	return 3
}
