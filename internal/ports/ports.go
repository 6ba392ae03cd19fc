package ports

import (
	"context"
	"time"

	"PoolsAgent/internal/domain"
)

// PostSource pulls the latest statuses for the monitored account.
type PostSource interface {
	FetchLatest(ctx context.Context, accountID string) ([]domain.Post, error)
}

// PoolSource fetches open pools awaiting grading.
type PoolSource interface {
	FetchPending(ctx context.Context) ([]domain.Pool, error)
}

// Store persists processed posts and answers settlement lookups for dedup.
type Store interface {
	Settled(ctx context.Context, ids []string) (map[string]domain.Settlement, error)
	UpsertPosts(ctx context.Context, records []domain.PostRecord) error
}

// Generator runs text-model completions. CompleteJSON normalizes structured
// output at the boundary so callers never see raw model text.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
	CompleteJSON(ctx context.Context, system, user string, out any) error
}

// Searcher answers a single query with scored web or news results.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// ImageJobStatus reports the lifecycle of an async image-generation job.
type ImageJobStatus struct {
	Pending bool
	URL     string
	Err     string
}

// ImageJobs submits and polls asynchronous image-generation jobs.
type ImageJobs interface {
	Submit(ctx context.Context, prompt string) (string, error)
	Poll(ctx context.Context, jobID string) (ImageJobStatus, error)
}

// Chain submits pool creations and waits for their confirmation receipts.
type Chain interface {
	CreatePool(ctx context.Context, params domain.PoolCreation) (string, error)
	WaitReceipt(ctx context.Context, txHash string) (domain.Receipt, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
