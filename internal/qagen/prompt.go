package qagen

import (
	"fmt"
	"strings"

	"github.com/chitchi46/lectureqa/internal/index"
)

// Language selects prompt wording and reply markers.
type Language string

const (
	English  Language = "en"
	Japanese Language = "ja"
)

type promptSet struct {
	system       string
	qualifiers   []string
	difficulty   map[Difficulty]string
	typeNames    map[QuestionType]string
	contracts    map[QuestionType]string
	query        func(qualifier string, d Difficulty, typeName string, number int) string
	instruction  string
	contextLabel string
	requestLabel string
	priorLabel   string
	none         string
	closing      string
}

var prompts = map[Language]promptSet{
	English: {
		system: "You write exam questions about university lectures. Base every question strictly on the " +
			"provided lecture context and reply in exactly the requested format, with no extra text.",
		qualifiers: []string{"basic", "important", "concrete", "practical", "theoretical"},
		difficulty: map[Difficulty]string{
			Easy:   "a simple question about basic concepts and definitions",
			Medium: "a moderately difficult question about understanding and applying concepts",
			Hard:   "a difficult question that requires deep understanding and critical thinking",
		},
		typeNames: map[QuestionType]string{
			MultipleChoice: "multiple-choice question",
			ShortAnswer:    "short-answer question",
			Essay:          "essay question",
		},
		contracts: map[QuestionType]string{
			MultipleChoice: `Write a multiple-choice question with four options.
Reply in exactly this format:
Question: [the question]
A) [option 1]
B) [option 2]
C) [option 3]
D) [option 4]
Correct: [one of A/B/C/D]
Explanation: [briefly, why that option is correct]`,
			ShortAnswer: `Write a short-answer question.
Reply in exactly this format:
Question: [the question]
Answer: [a concise answer of one or two sentences]
Explanation: [supplementary explanation of the answer]`,
			Essay: `Write an essay question.
Reply in exactly this format:
Question: [the question]
Answer: [a detailed model answer of three to five sentences]
Evaluation points: [what a good answer must cover]`,
		},
		query: func(q string, d Difficulty, typeName string, n int) string {
			return fmt.Sprintf("Create one %s %s-level %s based on the lecture content, "+
				"different from the questions already created. Question number: %d", q, d, typeName, n)
		},
		instruction:  "Using the context below, create one %s. It should be %s.",
		contextLabel: "Context:",
		requestLabel: "Request:",
		priorLabel:   "Questions already created (do not repeat them):",
		none:         "None",
		closing:      "Make the question and answer clear and grounded in the context.",
	},
	Japanese: {
		system:     "あなたは大学の講義内容から試験問題を作成します。必ず与えられた講義の文脈に基づき、指定された形式だけで回答してください。",
		qualifiers: []string{"基本的な", "重要な", "具体的な", "実践的な", "理論的な"},
		difficulty: map[Difficulty]string{
			Easy:   "基本的な概念や定義に関する簡単な",
			Medium: "概念の理解や応用に関する中程度の",
			Hard:   "深い理解や批判的思考を要する難しい",
		},
		typeNames: map[QuestionType]string{
			MultipleChoice: "選択問題",
			ShortAnswer:    "短答問題",
			Essay:          "記述問題",
		},
		contracts: map[QuestionType]string{
			MultipleChoice: `4択の選択問題を作成してください。
以下の形式で回答してください：
質問: [ここに質問を記載]
A) [選択肢1]
B) [選択肢2]
C) [選択肢3]
D) [選択肢4]
正解: [A/B/C/Dのいずれか]
解説: [正解の理由を簡潔に説明]`,
			ShortAnswer: `短答問題を作成してください。
以下の形式で回答してください：
質問: [ここに質問を記載]
回答: [簡潔な回答（1-2文程度）]
解説: [回答の補足説明]`,
			Essay: `記述問題を作成してください。
以下の形式で回答してください：
質問: [ここに質問を記載]
回答: [詳細な回答（3-5文程度）]
評価ポイント: [回答で重視すべき要素]`,
		},
		query: func(q string, d Difficulty, typeName string, n int) string {
			return fmt.Sprintf("講義内容に基づいて%s%sレベルの%sを1つ作成してください。"+
				"これまでに作成された質問とは異なる内容で、質問番号: %d", q, d, typeName, n)
		},
		instruction:  "以下の文脈に基づいて、%[2]s%[1]sを1つ作成してください。",
		contextLabel: "文脈:",
		requestLabel: "要求:",
		priorLabel:   "作成済みの質問（重複しないこと）:",
		none:         "なし",
		closing:      "質問と回答は明確で、文脈に基づいた内容にしてください。",
	},
}

func promptsFor(lang Language) promptSet {
	if p, ok := prompts[lang]; ok {
		return p
	}
	return prompts[English]
}

// buildQuery is the retrieval query of one attempt. It doubles as the
// request line of the prompt.
func buildQuery(lang Language, qualifier string, d Difficulty, qt QuestionType, number int) string {
	p := promptsFor(lang)
	return p.query(qualifier, d, p.typeNames[qt], number)
}

// buildUserMessage assembles the prompt of one attempt.
func buildUserMessage(lang Language, d Difficulty, qt QuestionType, results []index.Result, query string, prior []string, maxPrior int) string {
	p := promptsFor(lang)
	var b strings.Builder

	fmt.Fprintf(&b, p.instruction, p.typeNames[qt], p.difficulty[d])
	b.WriteString("\n\n")

	b.WriteString(p.contextLabel)
	b.WriteString("\n")
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(r.Text))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s\n\n", p.requestLabel, query)
	b.WriteString(p.contracts[qt])
	b.WriteString("\n\n")

	b.WriteString(p.priorLabel)
	b.WriteString("\n")
	b.WriteString(buildPrior(prior, maxPrior, p.none))
	b.WriteString("\n\n")

	b.WriteString(p.closing)
	return b.String()
}

// buildPrior formats accepted questions, keeping the most recent max.
func buildPrior(prior []string, max int, none string) string {
	if len(prior) == 0 {
		return none
	}
	if max > 0 && len(prior) > max {
		prior = prior[len(prior)-max:]
	}

	var b strings.Builder
	for i, q := range prior {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return strings.TrimRight(b.String(), "\n")
}
