package domain

// Pool is the immutable pool record fetched from the subgraph for grading.
type Pool struct {
	ID                  string
	Question            string
	Options             []string
	BetsCloseAt         int64
	ClosureCriteria     string
	ClosureInstructions string
	OriginalPostID      string
}

// Evidence is one corroborating source gathered for a pool.
type Evidence struct {
	URL     string `json:"url"`
	Summary string `json:"summary"`
	Query   string `json:"search_query"`
}

// Grading result codes as understood by the settlement contract.
const (
	GradeNotReady = 0
	GradeOptionA  = 1
	GradeOptionB  = 2
	GradePush     = 3
	GradeError    = 4
)

// Grade is the final outcome assigned to a pool.
type Grade struct {
	Result        string             `json:"result"`
	ResultCode    int                `json:"result_code"`
	Probabilities map[string]float64 `json:"probabilities"`
	Sources       []string           `json:"sources"`
	Explanation   string             `json:"explanation"`
}

// ResultCodeFor maps the model's textual verdict to a settlement code.
func ResultCodeFor(result string) int {
	switch result {
	case "not resolved yet":
		return GradeNotReady
	case "option A":
		return GradeOptionA
	case "option B":
		return GradeOptionB
	case "push":
		return GradePush
	default:
		return GradeError
	}
}

// PoolItem is one unit of grading-pipeline work keyed by the pool id.
type PoolItem struct {
	Pool Pool

	Eligible   bool
	SkipReason string

	EvidenceQueries []string
	Evidence        []Evidence
	Grade           Grade
	Graded          bool

	// Sticky: written by the external settlement collaborator.
	TxHash string
}

// NewPoolItem wraps a fetched pool into an eligible work item.
func NewPoolItem(pool Pool) PoolItem {
	return PoolItem{Pool: pool, Eligible: true}
}

// Key returns the merge key for the item.
func (i PoolItem) Key() string { return i.Pool.ID }

// IsEligible reports whether later stages should do costly work on the item.
func (i PoolItem) IsEligible() bool { return i.Eligible }

// Skip returns a copy of the item marked ineligible, keeping the first
// recorded reason.
func (i PoolItem) Skip(reason string) PoolItem {
	i.Eligible = false
	if i.SkipReason == "" {
		i.SkipReason = reason
	}
	return i
}
