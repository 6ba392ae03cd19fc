// Package grading implements the bet-grading agent: re-fetch open pools,
// generate evidence search queries, gather corroborating evidence, and grade
// each pool to a final outcome. Contract settlement is an external
// collaborator and happens outside this pipeline.
package grading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"PoolsAgent/internal/domain"
	"PoolsAgent/internal/pipeline"
	"PoolsAgent/internal/ports"
)

// Deps wires all driven adapters into the grading pipeline.
type Deps struct {
	Pools  ports.PoolSource
	Model  ports.Generator
	Search ports.Searcher
	Logger *slog.Logger
}

// Pipeline drives one grading run over the pool working set.
type Pipeline struct {
	pools  ports.PoolSource
	model  ports.Generator
	search ports.Searcher
	logger *slog.Logger
	now    func() time.Time

	graph *pipeline.Graph[domain.PoolItem]
}

// New constructs the grading pipeline.
func New(deps Deps) (*Pipeline, error) {
	if deps.Pools == nil {
		return nil, fmt.Errorf("grading: pool source is required")
	}
	if deps.Model == nil {
		return nil, fmt.Errorf("grading: model client is required")
	}
	if deps.Search == nil {
		return nil, fmt.Errorf("grading: search client is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	p := &Pipeline{
		pools:  deps.Pools,
		model:  deps.Model,
		search: deps.Search,
		logger: deps.Logger.With("component", "grading"),
		now:    time.Now,
	}

	graph, err := pipeline.NewGraph(
		"bet-grading",
		p.logger,
		domain.MergePoolItems,
		"fetch_pools",
		[]pipeline.Stage[domain.PoolItem]{
			{Name: "fetch_pools", Run: p.fetchPools},
			{Name: "generate_queries", Run: p.generateQueries},
			{Name: "gather_evidence", Run: p.gatherEvidence},
			{Name: "grade_pools", Run: p.gradePools},
		},
	)
	if err != nil {
		return nil, err
	}
	p.graph = graph
	return p, nil
}

// Run executes one full grading pass.
func (p *Pipeline) Run(ctx context.Context) (*pipeline.Set[domain.PoolItem], error) {
	return p.graph.Run(ctx, nil)
}

// fetchPools doubles as the eligibility gate: an empty pending set
// short-circuits the run right after this stage.
func (p *Pipeline) fetchPools(ctx context.Context, _ *pipeline.Set[domain.PoolItem]) ([]domain.PoolItem, error) {
	pools, err := p.pools.FetchPending(ctx)
	if err != nil {
		p.logger.Warn("fetch pending pools failed", "error", err)
		return nil, nil
	}

	items := make([]domain.PoolItem, 0, len(pools))
	for _, pool := range pools {
		items = append(items, domain.NewPoolItem(pool))
	}
	p.logger.Info("fetched pending pools", "count", len(items))
	return items, nil
}

const querySystemPrompt = `Your task is to generate 3 search queries for finding evidence about the outcome of a betting pool.

IMPORTANT TIME CONTEXT:
- Focus on the actual time period mentioned in the question
- If the question refers to a time period that has already passed, prioritize finding final/official results

Generate queries that will:
1. Find official results/data for the specified time period
2. Find official announcements or statements
3. Find reliable third-party verification of the results

Your response must be a JSON object with the following fields, and nothing else:
{"evidence_search_queries": ["query1", "query2", "query3"]}`

func (p *Pipeline) generateQueries(ctx context.Context, set *pipeline.Set[domain.PoolItem]) ([]domain.PoolItem, error) {
	return pipeline.ForEach(ctx, set.Items(),
		func(ctx context.Context, item domain.PoolItem) (domain.PoolItem, error) {
			var out struct {
				Queries []string `json:"evidence_search_queries"`
			}
			user := fmt.Sprintf(
				"BETTING POOL IDEA:\n%s\n\nOPTIONS:\n%s\n\nCLOSURE CRITERIA:\n%s\n\nCLOSURE INSTRUCTIONS:\n%s\n",
				item.Pool.Question,
				strings.Join(item.Pool.Options, ", "),
				item.Pool.ClosureCriteria,
				item.Pool.ClosureInstructions,
			)
			if err := p.model.CompleteJSON(ctx, querySystemPrompt, user, &out); err != nil {
				return item, err
			}
			if len(out.Queries) == 0 {
				return item, fmt.Errorf("model returned no queries")
			}
			item.EvidenceQueries = out.Queries
			return item, nil
		},
		func(item domain.PoolItem, err error) domain.PoolItem {
			p.logger.Warn("evidence query generation failed", "pool", item.Key(), "error", err)
			return item.Skip(domain.SkipFailedQueries)
		},
	), nil
}

const evidenceSystemPrompt = `You are a search assistant that finds and summarizes relevant evidence.
For the given search query, return information from reliable sources.
Your response must be a JSON object with these fields and nothing else:
{"url": "source URL", "summary": "brief summary of relevant information", "search_query": "the query that found this evidence"}
Guidelines:
- Only include sources that are directly relevant
- Summarize the key points in 2-3 sentences
- Prefer recent sources from reputable outlets`

// gatherEvidence fans out across pools; inside a pool, a failing query skips
// that query only. A pool that ends the stage with no evidence is graded
// unresolvable later rather than failed here.
func (p *Pipeline) gatherEvidence(ctx context.Context, set *pipeline.Set[domain.PoolItem]) ([]domain.PoolItem, error) {
	return pipeline.ForEach(ctx, set.Items(),
		func(ctx context.Context, item domain.PoolItem) (domain.PoolItem, error) {
			if len(item.EvidenceQueries) == 0 {
				return item.Skip(domain.SkipNoQueries), nil
			}

			var evidence []domain.Evidence
			for _, query := range item.EvidenceQueries {
				results, err := p.search.Search(ctx, query)
				if err != nil {
					p.logger.Warn("evidence search failed", "pool", item.Key(), "query", query, "error", err)
					continue
				}
				for _, result := range results {
					var piece domain.Evidence
					user := fmt.Sprintf(
						"BETTING CONTEXT:\n%s\nOptions: %s\n\nSEARCH QUERY: %s\nSOURCE URL: %s\nCONTENT: %s\n\nPlease analyze and summarize this result in the context of the betting pool.",
						item.Pool.Question,
						strings.Join(item.Pool.Options, ", "),
						query, result.URL, result.Content,
					)
					if err := p.model.CompleteJSON(ctx, evidenceSystemPrompt, user, &piece); err != nil {
						p.logger.Warn("evidence summarization failed", "pool", item.Key(), "query", query, "error", err)
						continue
					}
					if piece.Query == "" {
						piece.Query = query
					}
					evidence = append(evidence, piece)
				}
			}

			p.logger.Info("gathered evidence", "pool", item.Key(), "pieces", len(evidence))
			item.Evidence = evidence
			return item, nil
		},
		func(item domain.PoolItem, err error) domain.PoolItem {
			p.logger.Warn("evidence gathering failed", "pool", item.Key(), "error", err)
			return item.Skip(domain.SkipNoEvidence)
		},
	), nil
}

const gradingSystemPrompt = `You are a betting pool grader with expertise in data analysis and probability assessment.

Your task is to:
1. Understand the EXACT time period being asked about in the question
2. Determine if that time period has already passed, regardless of the pool's decision date
3. Review the provided evidence and evaluate its relevance and reliability
4. Make a decision based on official/verifiable results when available

DECISION GUIDELINES:
- Return "option A" or "option B" if the time period has passed AND official results clearly show which option is correct
- Return "not resolved yet" if the time period has not passed or official results are not available
- Return "push" if the time period has passed and official results show neither option is correct

Your response must be ONLY a JSON object with these fields:
{"result": "", "probabilities": {}, "sources": [], "explanation": ""}`

func (p *Pipeline) gradePools(ctx context.Context, set *pipeline.Set[domain.PoolItem]) ([]domain.PoolItem, error) {
	return pipeline.ForEach(ctx, set.Items(),
		func(ctx context.Context, item domain.PoolItem) (domain.PoolItem, error) {
			if len(item.Evidence) == 0 {
				return item.Skip(domain.SkipNoEvidence), nil
			}

			var grade domain.Grade
			if err := p.model.CompleteJSON(ctx, gradingSystemPrompt, gradingUserPrompt(item, p.now()), &grade); err != nil {
				return item, err
			}
			grade.ResultCode = domain.ResultCodeFor(grade.Result)
			item.Grade = grade
			item.Graded = true
			p.logger.Info("pool graded", "pool", item.Key(), "result", grade.Result, "code", grade.ResultCode)
			return item, nil
		},
		func(item domain.PoolItem, err error) domain.PoolItem {
			p.logger.Warn("grading failed", "pool", item.Key(), "error", err)
			return item.Skip(domain.SkipFailedGrading)
		},
	), nil
}

func gradingUserPrompt(item domain.PoolItem, now time.Time) string {
	var b strings.Builder
	b.WriteString("EVIDENCE PROVIDED:\n")
	for _, piece := range item.Evidence {
		fmt.Fprintf(&b, "- %s (%s): %s\n", piece.URL, piece.Query, piece.Summary)
	}
	fmt.Fprintf(&b, "\nBETTING POOL DETAILS:\nQuestion: %s\nOptions: %s\n",
		item.Pool.Question, strings.Join(item.Pool.Options, ", "))
	if len(item.Pool.Options) > 0 {
		fmt.Fprintf(&b, "Option A corresponds to: %s\n", item.Pool.Options[0])
	}
	if len(item.Pool.Options) > 1 {
		fmt.Fprintf(&b, "Option B corresponds to: %s\n", item.Pool.Options[1])
	}
	fmt.Fprintf(&b, "\nCLOSURE CRITERIA:\n%s\n\nCLOSURE INSTRUCTIONS:\n%s\n",
		item.Pool.ClosureCriteria, item.Pool.ClosureInstructions)
	fmt.Fprintf(&b, "\nCLOSURE DATETIME: %s\nCURRENT DATETIME: %s\n",
		time.Unix(item.Pool.BetsCloseAt, 0).UTC().Format(time.RFC3339),
		now.UTC().Format(time.RFC3339))
	return b.String()
}
