package paywatch

// UploadResult describes a published spreadsheet.
type UploadResult struct {
	Message    string `json:"message"`
	IndexName  string `json:"index_name"`
	Generation uint64 `json:"generation"`
	Rows       int    `json:"rows"`
	Chunks     int    `json:"chunks"`
}

// Answer is the reply to a question.
type Answer struct {
	Text  string `json:"answer"`
	Usage Usage  `json:"usage"`
}

// Usage reports the tokens and tool calls spent on one answer, read from response headers.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	EmbeddingTokens  int `json:"embedding_tokens"`
	ToolCalls        int `json:"tool_calls"`
}

// LogsPage is one day of recorded events.
type LogsPage struct {
	Date    string           `json:"date"`
	LogType string           `json:"log_type"`
	Count   int              `json:"count"`
	Entries []map[string]any `json:"entries"`
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"/"empty"
}
