package tracker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/teranos/promptforge/errors"
	pftest "github.com/teranos/promptforge/internal/testing"
)

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestRecord(t *testing.T) {
	conn := pftest.CreateTestDB(t)
	tracker := NewTracker(conn, nil)

	exec := &Execution{
		RequestID:     "req-123",
		Prompt:        "Explain {topic} briefly",
		Model:         "claude-3-sonnet-20240229",
		Provider:      "anthropic",
		Temperature:   0.7,
		MaxTokens:     intPtr(1000),
		Success:       true,
		Response:      "A brief explanation.",
		ExecutionTime: 1.25,
		InputTokens:   12,
		OutputTokens:  48,
	}

	if err := tracker.Record(context.Background(), exec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	var count int
	if err := conn.QueryRow("SELECT COUNT(*) FROM execution_history").Scan(&count); err != nil {
		t.Fatalf("Failed to count records: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 record, got %d", count)
	}

	var stored Execution
	var maxTokens sql.NullInt64
	row := conn.QueryRow(`
		SELECT request_id, prompt, model, provider, temperature, max_tokens,
		       success, response, execution_time, input_tokens, output_tokens
		FROM execution_history WHERE id = 1`)
	err := row.Scan(&stored.RequestID, &stored.Prompt, &stored.Model,
		&stored.Provider, &stored.Temperature, &maxTokens, &stored.Success,
		&stored.Response, &stored.ExecutionTime, &stored.InputTokens,
		&stored.OutputTokens)
	if err != nil {
		t.Fatalf("Failed to retrieve stored execution: %v", err)
	}

	if stored.RequestID != "req-123" {
		t.Errorf("Expected request_id 'req-123', got %q", stored.RequestID)
	}
	if stored.Model != "claude-3-sonnet-20240229" {
		t.Errorf("Expected stored model name, got %q", stored.Model)
	}
	if stored.Provider != "anthropic" {
		t.Errorf("Expected provider 'anthropic', got %q", stored.Provider)
	}
	if !maxTokens.Valid || maxTokens.Int64 != 1000 {
		t.Errorf("Expected max_tokens 1000, got %v", maxTokens)
	}
	if !stored.Success {
		t.Error("Expected success to be true")
	}
	if stored.Response != "A brief explanation." {
		t.Errorf("Expected stored response, got %q", stored.Response)
	}
	if stored.ExecutionTime != 1.25 {
		t.Errorf("Expected execution_time 1.25, got %f", stored.ExecutionTime)
	}
	if stored.InputTokens != 12 || stored.OutputTokens != 48 {
		t.Errorf("Expected tokens 12/48, got %d/%d", stored.InputTokens, stored.OutputTokens)
	}
}

func TestRecord_BackfillsRequestIDAndTimestamp(t *testing.T) {
	conn := pftest.CreateTestDB(t)
	tracker := NewTracker(conn, nil)

	exec := &Execution{
		Prompt:      "test",
		Model:       "gpt-4o-mini",
		Provider:    "openai",
		Temperature: 0.7,
		Success:     true,
	}

	if err := tracker.Record(context.Background(), exec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if exec.RequestID == "" {
		t.Error("Expected RequestID to be backfilled with a UUID")
	}
	if exec.Timestamp.IsZero() {
		t.Error("Expected Timestamp to be backfilled")
	}

	var storedID string
	if err := conn.QueryRow("SELECT request_id FROM execution_history WHERE id = 1").Scan(&storedID); err != nil {
		t.Fatalf("Failed to read request_id: %v", err)
	}
	if storedID != exec.RequestID {
		t.Errorf("Stored request_id %q does not match backfilled %q", storedID, exec.RequestID)
	}
}

func TestRecord_Failure(t *testing.T) {
	conn := pftest.CreateTestDB(t)
	tracker := NewTracker(conn, nil)

	exec := &Execution{
		RequestID:     "req-456",
		Prompt:        "test",
		Model:         "claude-3-haiku-20240307",
		Provider:      "anthropic",
		Temperature:   0.7,
		Success:       false,
		ErrorMsg:      strPtr("anthropic API request failed with status 529: Overloaded"),
		ExecutionTime: 0.5,
	}

	if err := tracker.Record(context.Background(), exec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	var storedSuccess bool
	var storedErrorMsg sql.NullString
	err := conn.QueryRow("SELECT success, error_msg FROM execution_history WHERE id = 1").
		Scan(&storedSuccess, &storedErrorMsg)
	if err != nil {
		t.Fatalf("Failed to retrieve failure record: %v", err)
	}

	if storedSuccess {
		t.Error("Expected success to be false for failure case")
	}
	if !storedErrorMsg.Valid || storedErrorMsg.String != *exec.ErrorMsg {
		t.Errorf("Expected stored error message, got %v", storedErrorMsg)
	}
}

func TestRecord_ClosedDatabase(t *testing.T) {
	conn := pftest.CreateTestDB(t)
	tracker := NewTracker(conn, nil)

	conn.Close()

	exec := &Execution{
		Prompt:      "test",
		Model:       "gpt-4o-mini",
		Provider:    "openai",
		Temperature: 0.7,
		Success:     true,
	}

	// Shutdown race: the row is lost but the caller must not see an error
	if err := tracker.Record(context.Background(), exec); err != nil {
		t.Errorf("Expected nil error for closed database, got: %v", err)
	}
}

func TestRecent(t *testing.T) {
	conn := pftest.CreateTestDB(t)
	tracker := NewTracker(conn, nil)

	now := time.Now().UTC()
	for i, reqID := range []string{"req-oldest", "req-middle", "req-newest"} {
		exec := &Execution{
			RequestID:   reqID,
			Prompt:      "test",
			Model:       "gpt-4o-mini",
			Provider:    "openai",
			Temperature: 0.7,
			Success:     true,
			Response:    "ok",
			Timestamp:   now.Add(time.Duration(i-3) * time.Minute),
		}
		if err := tracker.Record(context.Background(), exec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	recent, err := tracker.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(recent))
	}
	if recent[0].RequestID != "req-newest" {
		t.Errorf("Expected newest row first, got %q", recent[0].RequestID)
	}
	if recent[2].RequestID != "req-oldest" {
		t.Errorf("Expected oldest row last, got %q", recent[2].RequestID)
	}
	if recent[0].Timestamp.IsZero() {
		t.Error("Expected timestamps to round-trip")
	}

	limited, err := tracker.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 rows with limit 2, got %d", len(limited))
	}
	if limited[0].RequestID != "req-newest" {
		t.Errorf("Expected newest row first with limit, got %q", limited[0].RequestID)
	}

	defaulted, err := tracker.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent with zero limit failed: %v", err)
	}
	if len(defaulted) != 3 {
		t.Errorf("Expected default limit to return all 3 rows, got %d", len(defaulted))
	}
}

func TestRecent_NullableColumns(t *testing.T) {
	conn := pftest.CreateTestDB(t)
	tracker := NewTracker(conn, nil)

	exec := &Execution{
		RequestID:   "req-nulls",
		Prompt:      "test",
		Model:       "gpt-4o-mini",
		Provider:    "openai",
		Temperature: 0.7,
		Success:     false,
		ErrorMsg:    strPtr("boom"),
	}
	if err := tracker.Record(context.Background(), exec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	recent, err := tracker.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(recent))
	}

	row := recent[0]
	if row.MaxTokens != nil {
		t.Errorf("Expected nil MaxTokens, got %v", *row.MaxTokens)
	}
	if row.ErrorMsg == nil || *row.ErrorMsg != "boom" {
		t.Errorf("Expected error message 'boom', got %v", row.ErrorMsg)
	}
	if row.Response != "" {
		t.Errorf("Expected empty response, got %q", row.Response)
	}
}

func TestStats(t *testing.T) {
	conn := pftest.CreateTestDB(t)
	tracker := NewTracker(conn, nil)

	now := time.Now().UTC()
	oneHourAgo := now.Add(-1 * time.Hour)

	executions := []*Execution{
		{
			RequestID: "1", Prompt: "a", Model: "gpt-4o-mini", Provider: "openai",
			Temperature: 0.7, Success: true, Response: "ok",
			ExecutionTime: 1.0, InputTokens: 10, OutputTokens: 20,
			Timestamp: oneHourAgo,
		},
		{
			RequestID: "2", Prompt: "b", Model: "claude-3-sonnet-20240229", Provider: "anthropic",
			Temperature: 0.7, Success: true, Response: "ok",
			ExecutionTime: 2.0, InputTokens: 30, OutputTokens: 40,
			Timestamp: oneHourAgo,
		},
		{
			RequestID: "3", Prompt: "c", Model: "gpt-4o-mini", Provider: "openai",
			Temperature: 0.7, Success: false, ErrorMsg: strPtr("boom"),
			ExecutionTime: 0.5,
			Timestamp:     oneHourAgo,
		},
		// Outside the queried window
		{
			RequestID: "4", Prompt: "d", Model: "gpt-4o-mini", Provider: "openai",
			Temperature: 0.7, Success: true, Response: "old",
			ExecutionTime: 9.0, InputTokens: 999, OutputTokens: 999,
			Timestamp: now.Add(-48 * time.Hour),
		},
	}
	for _, exec := range executions {
		if err := tracker.Record(context.Background(), exec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	stats, err := tracker.Stats(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.TotalExecutions != 3 {
		t.Errorf("Expected 3 total executions, got %d", stats.TotalExecutions)
	}
	if stats.Succeeded != 2 {
		t.Errorf("Expected 2 successful executions, got %d", stats.Succeeded)
	}
	if stats.Failed != 1 {
		t.Errorf("Expected 1 failed execution, got %d", stats.Failed)
	}
	if stats.TotalInputTokens != 40 {
		t.Errorf("Expected 40 total input tokens, got %d", stats.TotalInputTokens)
	}
	if stats.TotalOutputTokens != 60 {
		t.Errorf("Expected 60 total output tokens, got %d", stats.TotalOutputTokens)
	}
	if stats.UniqueModels != 2 {
		t.Errorf("Expected 2 unique models, got %d", stats.UniqueModels)
	}

	expectedRate := float64(2) / float64(3)
	if abs(stats.SuccessRate-expectedRate) > 0.001 {
		t.Errorf("Expected success rate %f, got %f", expectedRate, stats.SuccessRate)
	}

	expectedAvg := (1.0 + 2.0 + 0.5) / 3
	if abs(stats.AvgExecutionTime-expectedAvg) > 0.001 {
		t.Errorf("Expected avg execution time %f, got %f", expectedAvg, stats.AvgExecutionTime)
	}
}

func TestStats_Empty(t *testing.T) {
	conn := pftest.CreateTestDB(t)
	tracker := NewTracker(conn, nil)

	stats, err := tracker.Stats(context.Background(), time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.TotalExecutions != 0 {
		t.Errorf("Expected 0 executions, got %d", stats.TotalExecutions)
	}
	if stats.SuccessRate != 0 {
		t.Errorf("Expected 0 success rate, got %f", stats.SuccessRate)
	}
	if stats.AvgExecutionTime != 0 {
		t.Errorf("Expected 0 avg execution time, got %f", stats.AvgExecutionTime)
	}
}

// --- Sqlmock tests ---
// Verify the SQL statement shape and error classification without a real database

func TestRecord_Sqlmock(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer conn.Close()

	tracker := NewTracker(conn, nil)

	exec := &Execution{
		RequestID:     "req-mock",
		Prompt:        "test prompt",
		Model:         "gpt-4o-mini",
		Provider:      "openai",
		Temperature:   0.7,
		MaxTokens:     intPtr(500),
		Success:       true,
		Response:      "mock response",
		ExecutionTime: 0.42,
		InputTokens:   5,
		OutputTokens:  7,
	}

	mock.ExpectExec(`INSERT INTO execution_history`).
		WithArgs(
			exec.RequestID,
			exec.Prompt,
			exec.Model,
			exec.Provider,
			exec.Temperature,
			exec.MaxTokens,
			exec.Success,
			exec.Response,
			sqlmock.AnyArg(), // error_msg (nil)
			exec.ExecutionTime,
			exec.InputTokens,
			exec.OutputTokens,
			sqlmock.AnyArg(), // timestamp (backfilled)
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := tracker.Record(context.Background(), exec); err != nil {
		t.Errorf("Record failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestRecord_StorageError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer conn.Close()

	tracker := NewTracker(conn, nil)

	mock.ExpectExec(`INSERT INTO execution_history`).
		WillReturnError(errors.New("disk I/O error"))

	recordErr := tracker.Record(context.Background(), &Execution{
		Prompt: "test", Model: "gpt-4o-mini", Provider: "openai", Temperature: 0.7,
	})
	if recordErr == nil {
		t.Fatal("Expected storage error, got nil")
	}
	if !errors.IsStorageError(recordErr) {
		t.Errorf("Expected storage error classification, got: %v", recordErr)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}
