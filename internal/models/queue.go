// -----------------------------------------------------------------------
// Queue Item - Durable per-stage work row; the processing_queue table is
// the source of truth, broker messages are wake-up hints only
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Processing stages. Each paper flows crawl -> summarize -> generate, with
// summarize skipped when no PDF URL is known.
const (
	StageCrawl     = "crawl"
	StageSummarize = "summarize"
	StageGenerate  = "generate"
)

// Queue item status values. pending and running are non-terminal; at most
// one row per (paper, stage) may be in each at any instant.
const (
	QueuePending   = "pending"
	QueueRunning   = "running"
	QueueCompleted = "completed"
	QueueFailed    = "failed"
)

// Priority bounds used across the pipeline.
const (
	PriorityMax       = 100
	PrioritySummarize = 50
	PriorityGenerate  = 30
	PriorityFloor     = 10 // crawl jobs scoring below this are not enqueued
)

// QueueItem is one durable unit of work for a (paper, stage) pair.
type QueueItem struct {
	ID           string          `json:"id"` // job_{uuid}
	PaperID      string          `json:"paper_id"`
	TaskType     string          `json:"task_type"` // crawl, summarize, generate
	Status       string          `json:"status"`
	Priority     int             `json:"priority"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage string          `json:"error_message,omitempty"`
	WorkerID     string          `json:"worker_id,omitempty"`
	Parameters   json.RawMessage `json:"parameters,omitempty"`

	ExecutionTime time.Duration `json:"execution_time,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// CrawlParams is the parameters blob carried by crawl items.
type CrawlParams struct {
	HopCount int `json:"hop_count"`
	MaxHops  int `json:"max_hops"`
}

// NewQueueItem creates a pending item for the given paper and stage.
func NewQueueItem(paperID, taskType string, priority int, params interface{}) (*QueueItem, error) {
	var blob json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		blob = data
	}
	return &QueueItem{
		ID:         "job_" + uuid.New().String(),
		PaperID:    paperID,
		TaskType:   taskType,
		Status:     QueuePending,
		Priority:   priority,
		MaxRetries: 3,
		Parameters: blob,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// CrawlParams decodes the parameters blob as crawl parameters. Items
// enqueued without parameters decode to the zero value.
func (q *QueueItem) CrawlParams() (CrawlParams, error) {
	var p CrawlParams
	if len(q.Parameters) == 0 {
		return p, nil
	}
	err := json.Unmarshal(q.Parameters, &p)
	return p, err
}

// IsTerminal reports whether the item has finished for good.
func (q *QueueItem) IsTerminal() bool {
	return q.Status == QueueCompleted || q.Status == QueueFailed
}
