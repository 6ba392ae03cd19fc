package domain

import "time"

// Post is the immutable source record harvested from the monitored account.
type Post struct {
	ID        string
	Account   string
	Content   string
	URL       string
	CreatedAt time.Time
}

// PostItem is one unit of generation-pipeline work keyed by the source post id.
// Stages never remove an item from the working set; exclusion from further
// work is expressed through Eligible and SkipReason.
type PostItem struct {
	Post Post

	Eligible   bool
	SkipReason string

	NewsQuery     string
	WebQuery      string
	RelatedNews   []string
	RelatedSearch []string

	PoolIdea    string
	ImagePrompt string
	ImageURL    string

	// Sticky fields: once populated they survive every later merge.
	TransactionHash string
	PoolID          string
}

// NewPostItem wraps a fetched post into an eligible work item.
func NewPostItem(post Post) PostItem {
	return PostItem{Post: post, Eligible: true}
}

// Key returns the merge key for the item.
func (i PostItem) Key() string { return i.Post.ID }

// IsEligible reports whether later stages should do costly work on the item.
func (i PostItem) IsEligible() bool { return i.Eligible }

// Skip returns a copy of the item marked ineligible. The first skip reason
// recorded for an item wins.
func (i PostItem) Skip(reason string) PostItem {
	i.Eligible = false
	if i.SkipReason == "" {
		i.SkipReason = reason
	}
	return i
}

// Skip reasons recorded on work items.
const (
	SkipAlreadyProcessed = "already_processed"
	SkipTooOld           = "too_old"
	SkipRunCap           = "max_items_per_run"
	SkipFailedIdea       = "failed_idea_generation"
	SkipFailedImage      = "failed_image_generation"
	SkipFailedQueries    = "failed_evidence_queries"
	SkipNoQueries        = "no_evidence_queries"
	SkipNoEvidence       = "no_evidence"
	SkipFailedGrading    = "failed_grading"
)

// Settlement is the persisted evidence that a post was fully processed
// in a prior run.
type Settlement struct {
	PoolID          string
	TransactionHash string
}

// PostRecord is the row shape persisted for every item at the end of a run.
type PostRecord struct {
	PostID          string
	PoolID          string
	StringContent   string
	JSONContent     string
	TransactionHash string
	CreatedAt       time.Time
}

// SearchResult is one hit returned by a search collaborator.
type SearchResult struct {
	URL     string
	Content string
}

// PoolCreation carries the on-chain call parameters for one pool.
type PoolCreation struct {
	Question            string
	Options             [2]string
	BetsCloseAt         int64
	ClosureCriteria     string
	ClosureInstructions string
	OriginalPostID      string
}

// Receipt is the confirmed outcome of a pool-creation transaction.
type Receipt struct {
	Succeeded bool
	PoolID    string
}
