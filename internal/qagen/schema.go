package qagen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chitchi46/lectureqa/internal/llm"
)

// ItemSchema is the JSON schema of a generated item in structured mode.
var ItemSchema = &llm.Schema{
	Name:        "qa-item",
	Description: "One question generated from lecture content",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The question text",
			},
			"choices": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Exactly 4 option texts for multiple_choice, without letter prefixes. Empty otherwise.",
			},
			"correct_choice": map[string]any{
				"type":        "string",
				"description": "The letter (A-D) of the correct option for multiple_choice. Empty otherwise.",
			},
			"answer": map[string]any{
				"type":        "string",
				"description": "The model answer for short_answer and essay. Empty for multiple_choice.",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "Why the answer is correct, or the evaluation points for essay questions",
			},
		},
		"required":             []any{"question", "choices", "correct_choice", "answer", "explanation"},
		"additionalProperties": false,
	},
}

type itemOutput struct {
	Question      string   `json:"question"`
	Choices       []string `json:"choices"`
	CorrectChoice string   `json:"correct_choice"`
	Answer        string   `json:"answer"`
	Explanation   string   `json:"explanation"`
}

// renderStructured turns a schema-validated reply into the textual
// contract, so structured and free-text replies share one parser.
func renderStructured(content json.RawMessage, qt QuestionType) (string, error) {
	var out itemOutput
	if err := json.Unmarshal(content, &out); err != nil {
		return "", fmt.Errorf("decode structured reply: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", oneLine(out.Question))
	switch qt {
	case MultipleChoice:
		for i, c := range out.Choices {
			if i >= 4 {
				break
			}
			text := oneLine(c)
			// Drop a letter prefix the model added despite the schema.
			if canonical, ok := matchChoice(text); ok {
				text = canonical[len("A) "):]
			}
			fmt.Fprintf(&b, "%c) %s\n", 'A'+i, text)
		}
		fmt.Fprintf(&b, "%s %s\n", CorrectMarker, oneLine(out.CorrectChoice))
		fmt.Fprintf(&b, "%s %s\n", ExplanationMarker, oneLine(out.Explanation))
	case Essay:
		fmt.Fprintf(&b, "Answer: %s\n", oneLine(out.Answer))
		fmt.Fprintf(&b, "Evaluation points: %s\n", oneLine(out.Explanation))
	default:
		fmt.Fprintf(&b, "Answer: %s\n", oneLine(out.Answer))
		fmt.Fprintf(&b, "%s %s\n", ExplanationMarker, oneLine(out.Explanation))
	}
	return b.String(), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
