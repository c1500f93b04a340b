// Package tracker persists execution history: one row per execute call,
// success or failure.
package tracker

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/promptforge/db"
	"github.com/teranos/promptforge/errors"
)

// DefaultRecentLimit is applied when Recent is called without a usable limit
const DefaultRecentLimit = 50

// Execution is one execution_history row
type Execution struct {
	ID            int64     `json:"id" db:"id"`
	RequestID     string    `json:"request_id" db:"request_id"`
	Prompt        string    `json:"prompt" db:"prompt"`
	Model         string    `json:"model" db:"model"`
	Provider      string    `json:"provider" db:"provider"`
	Temperature   float64   `json:"temperature" db:"temperature"`
	MaxTokens     *int      `json:"max_tokens,omitempty" db:"max_tokens"`
	Success       bool      `json:"success" db:"success"`
	Response      string    `json:"response" db:"response"`
	ErrorMsg      *string   `json:"error_msg,omitempty" db:"error_msg"`
	ExecutionTime float64   `json:"execution_time" db:"execution_time"` // wall-clock seconds
	InputTokens   int       `json:"input_tokens" db:"input_tokens"`
	OutputTokens  int       `json:"output_tokens" db:"output_tokens"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
}

// Stats aggregates execution history over a time window
type Stats struct {
	TotalExecutions   int     `json:"total_executions"`
	Succeeded         int     `json:"successful_executions"`
	Failed            int     `json:"failed_executions"`
	SuccessRate       float64 `json:"success_rate"`
	TotalInputTokens  int     `json:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens"`
	AvgExecutionTime  float64 `json:"avg_execution_time"`
	UniqueModels      int     `json:"unique_models"`
}

// Tracker records and reads execution history
type Tracker struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewTracker creates an execution history tracker
func NewTracker(conn *sql.DB, logger *zap.SugaredLogger) *Tracker {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Tracker{
		db:     conn,
		logger: logger,
	}
}

// Record appends one execution to the history. An empty RequestID and a zero
// Timestamp are filled in here. Recording after a timed-out execution should
// use a context that outlives the request, e.g. context.WithoutCancel.
//
// A closed database is not an error: shutdown can close the connection while
// a final execution is still being recorded, and losing that row is
// preferable to failing the execution it describes.
func (t *Tracker) Record(ctx context.Context, exec *Execution) error {
	if exec.RequestID == "" {
		exec.RequestID = uuid.NewString()
	}
	if exec.Timestamp.IsZero() {
		exec.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO execution_history (
			request_id, prompt, model, provider, temperature, max_tokens,
			success, response, error_msg, execution_time, input_tokens,
			output_tokens, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.db.ExecContext(ctx, query,
		exec.RequestID, exec.Prompt, exec.Model, exec.Provider,
		exec.Temperature, exec.MaxTokens, exec.Success, exec.Response,
		exec.ErrorMsg, exec.ExecutionTime, exec.InputTokens,
		exec.OutputTokens, exec.Timestamp,
	)
	if err != nil {
		if db.IsDatabaseClosed(err) {
			t.logger.Debugw("Execution history append skipped, database closed",
				"request_id", exec.RequestID, "model", exec.Model)
			return nil
		}
		return errors.NewStorageError(err, "recording execution history")
	}

	return nil
}

// Recent returns the newest execution rows, newest first. A limit of zero or
// less falls back to DefaultRecentLimit.
func (t *Tracker) Recent(ctx context.Context, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := `
		SELECT id, request_id, prompt, model, provider, temperature,
		       max_tokens, success, response, error_msg, execution_time,
		       input_tokens, output_tokens, timestamp
		FROM execution_history
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`

	rows, err := t.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.NewStorageError(err, "reading execution history")
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, errors.NewStorageError(err, "scanning execution history row")
		}
		executions = append(executions, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError(err, "reading execution history")
	}

	return executions, nil
}

// Stats aggregates execution history since the given time
func (t *Tracker) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) as total_executions,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successful_executions,
			COALESCE(SUM(COALESCE(input_tokens, 0)), 0) as total_input_tokens,
			COALESCE(SUM(COALESCE(output_tokens, 0)), 0) as total_output_tokens,
			COALESCE(AVG(COALESCE(execution_time, 0)), 0) as avg_execution_time,
			COUNT(DISTINCT model) as unique_models
		FROM execution_history
		WHERE timestamp >= ?`

	var stats Stats
	err := t.db.QueryRowContext(ctx, query, since).Scan(
		&stats.TotalExecutions, &stats.Succeeded,
		&stats.TotalInputTokens, &stats.TotalOutputTokens,
		&stats.AvgExecutionTime, &stats.UniqueModels,
	)
	if err != nil {
		return nil, errors.NewStorageError(err, "aggregating execution history")
	}

	stats.Failed = stats.TotalExecutions - stats.Succeeded
	if stats.TotalExecutions > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.TotalExecutions)
	}

	return &stats, nil
}

// scanExecution reads one row, mapping nullable columns onto the struct
func scanExecution(rows *sql.Rows) (*Execution, error) {
	var exec Execution
	var maxTokens sql.NullInt64
	var response, errorMsg sql.NullString
	var executionTime sql.NullFloat64
	var inputTokens, outputTokens sql.NullInt64

	err := rows.Scan(
		&exec.ID, &exec.RequestID, &exec.Prompt, &exec.Model, &exec.Provider,
		&exec.Temperature, &maxTokens, &exec.Success, &response, &errorMsg,
		&executionTime, &inputTokens, &outputTokens, &exec.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	if maxTokens.Valid {
		v := int(maxTokens.Int64)
		exec.MaxTokens = &v
	}
	exec.Response = response.String
	if errorMsg.Valid {
		exec.ErrorMsg = &errorMsg.String
	}
	exec.ExecutionTime = executionTime.Float64
	exec.InputTokens = int(inputTokens.Int64)
	exec.OutputTokens = int(outputTokens.Int64)

	return &exec, nil
}
