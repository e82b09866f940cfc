package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table definitions applied by the auto-migration in Open. The column
// layout mirrors what ent would generate for the equivalent schemas.
var (
	lecturesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "filename", Type: field.TypeString},
		{Name: "file_path", Type: field.TypeString},
		{Name: "status", Type: field.TypeString, Default: string(StatusPending)},
		{Name: "chunk_count", Type: field.TypeInt, Default: 0},
		{Name: "error", Type: field.TypeString, Default: ""},
		{Name: "uploaded_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	lecturesTable = &schema.Table{
		Name:       "lectures",
		Columns:    lecturesColumns,
		PrimaryKey: []*schema.Column{lecturesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "lecture_status", Columns: []*schema.Column{lecturesColumns[3]}},
		},
	}

	qasColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "lecture_id", Type: field.TypeString},
		{Name: "question", Type: field.TypeString, Size: 2147483647},
		{Name: "answer", Type: field.TypeString, Size: 2147483647},
		{Name: "question_type", Type: field.TypeString},
		{Name: "difficulty", Type: field.TypeString},
		{Name: "fallback", Type: field.TypeBool, Default: false},
		{Name: "generated_at", Type: field.TypeTime},
	}
	qasTable = &schema.Table{
		Name:       "qas",
		Columns:    qasColumns,
		PrimaryKey: []*schema.Column{qasColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "qas_lectures_items",
				Columns:    []*schema.Column{qasColumns[1]},
				RefColumns: []*schema.Column{lecturesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "qa_lecture_id", Columns: []*schema.Column{qasColumns[1]}},
		},
	}

	studentAnswersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "qa_id", Type: field.TypeInt},
		{Name: "user_id", Type: field.TypeString},
		{Name: "answer_text", Type: field.TypeString, Size: 2147483647},
		{Name: "is_correct", Type: field.TypeBool},
		{Name: "answered_at", Type: field.TypeTime},
	}
	studentAnswersTable = &schema.Table{
		Name:       "student_answers",
		Columns:    studentAnswersColumns,
		PrimaryKey: []*schema.Column{studentAnswersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "student_answers_qas_answers",
				Columns:    []*schema.Column{studentAnswersColumns[1]},
				RefColumns: []*schema.Column{qasColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "studentanswer_user_id", Columns: []*schema.Column{studentAnswersColumns[2]}},
			{Name: "studentanswer_qa_id", Columns: []*schema.Column{studentAnswersColumns[1]}},
		},
	}

	llmRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	llmRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    llmRequestEventsColumns,
		PrimaryKey: []*schema.Column{llmRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_provider", Columns: []*schema.Column{llmRequestEventsColumns[3]}},
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{llmRequestEventsColumns[5]}},
			{Name: "llmrequestevent_success", Columns: []*schema.Column{llmRequestEventsColumns[9]}},
		},
	}

	tables = []*schema.Table{
		lecturesTable,
		qasTable,
		studentAnswersTable,
		llmRequestEventsTable,
	}
)

func init() {
	qasTable.ForeignKeys[0].RefTable = lecturesTable
	studentAnswersTable.ForeignKeys[0].RefTable = qasTable
}
