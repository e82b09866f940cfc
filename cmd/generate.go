package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chitchi46/lectureqa/internal/qagen"
	"github.com/chitchi46/lectureqa/internal/store"
	"github.com/chitchi46/lectureqa/internal/ui/theme"
)

var generateCmd = &cobra.Command{
	Use:   "generate <lecture_id>",
	Short: "Generate questions from an indexed lecture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("num")
		diffFlag, _ := cmd.Flags().GetString("difficulty")
		typesFlag, _ := cmd.Flags().GetStringSlice("types")
		save, _ := cmd.Flags().GetBool("save")
		asJSON, _ := cmd.Flags().GetBool("json")

		difficulty, err := qagen.ParseDifficulty(diffFlag)
		if err != nil {
			return err
		}
		var types []qagen.QuestionType
		for _, s := range typesFlag {
			qt, err := qagen.ParseQuestionType(strings.TrimSpace(s))
			if err != nil {
				return err
			}
			types = append(types, qt)
		}

		svc, err := openService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		req := qagen.Request{
			LectureID:     args[0],
			Difficulty:    difficulty,
			NumQuestions:  n,
			QuestionTypes: types,
		}
		st, saved, err := svc.Generate(cmd.Context(), req, save)
		if err != nil {
			return err
		}
		if st.Termination == qagen.NotReady {
			return fmt.Errorf("lecture %s is not processed; run ingest first", args[0])
		}

		if asJSON {
			return printItemsJSON(args[0], st, saved)
		}

		p := theme.NewPainter(os.Stdout)
		for i, it := range st.Accepted {
			id := ""
			if i < len(saved) {
				id = fmt.Sprintf(" #%d", saved[i].ID)
			}
			fmt.Println(p.Render(theme.Title, fmt.Sprintf("Q%d%s [%s, %s]", i+1, id, it.QuestionType, it.Difficulty)))
			fmt.Println(it.Question)
			fmt.Println(p.Render(theme.Label, "Answer:"))
			fmt.Println(it.Answer)
			fmt.Println()
		}

		summary := fmt.Sprintf("%d of %d questions in %d attempts (%s)", len(st.Accepted), n, st.Attempts, st.Termination)
		if st.Termination == qagen.Complete {
			fmt.Println(p.Render(theme.Hint, summary))
		} else {
			fmt.Println(p.Render(theme.Warn, summary))
		}
		if save {
			fmt.Printf("Saved %d items.\n", len(saved))
		}
		return nil
	},
}

type jsonItem struct {
	ID            int      `json:"id,omitempty"`
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	QuestionType  string   `json:"question_type"`
	Difficulty    string   `json:"difficulty"`
	Choices       []string `json:"choices,omitempty"`
	CorrectChoice string   `json:"correct_choice,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
	Fallback      bool     `json:"fallback,omitempty"`
}

type jsonRun struct {
	LectureID   string     `json:"lecture_id"`
	Termination string     `json:"termination"`
	Attempts    int        `json:"attempts"`
	Items       []jsonItem `json:"items"`
}

func printItemsJSON(lectureID string, st *qagen.State, saved []store.QA) error {
	out := jsonRun{
		LectureID:   lectureID,
		Termination: string(st.Termination),
		Attempts:    st.Attempts,
		Items:       make([]jsonItem, len(st.Accepted)),
	}
	for i, it := range st.Accepted {
		out.Items[i] = jsonItem{
			Question:      it.Question,
			Answer:        it.Answer,
			QuestionType:  string(it.QuestionType),
			Difficulty:    string(it.Difficulty),
			Choices:       it.Choices,
			CorrectChoice: it.CorrectChoice,
			Explanation:   it.Explanation,
			Fallback:      it.Fallback,
		}
		if i < len(saved) {
			out.Items[i].ID = saved[i].ID
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func init() {
	generateCmd.Flags().IntP("num", "n", 5, "Number of questions to generate")
	generateCmd.Flags().StringP("difficulty", "d", "medium", "Difficulty: easy, medium or hard")
	generateCmd.Flags().StringSliceP("types", "t", []string{"multiple_choice", "short_answer"}, "Question types to rotate through")
	generateCmd.Flags().Bool("save", false, "Store the generated items")
	generateCmd.Flags().Bool("json", false, "Print the run as JSON")
}
