// Package generation implements the pool-generation agent: harvest posts from
// the monitored account, propose betting-pool questions for the new ones,
// attach generated images, commit accepted pools on-chain, and persist the
// outcome of every item.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"PoolsAgent/internal/domain"
	"PoolsAgent/internal/htmltext"
	"PoolsAgent/internal/pipeline"
	"PoolsAgent/internal/ports"
)

// Policy bounds per-run cost and fixes the on-chain pool shape.
type Policy struct {
	AccountID string

	MaxItems  int
	AgeCutoff bool
	MaxAge    time.Duration

	MaxImages       int
	PollInterval    time.Duration
	MaxPollAttempts int

	CloseWindow    time.Duration
	SubmitMinDelay time.Duration
	SubmitMaxDelay time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxAge <= 0 {
		p.MaxAge = 24 * time.Hour
	}
	if p.MaxImages <= 0 {
		p.MaxImages = 5
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 500 * time.Millisecond
	}
	if p.MaxPollAttempts <= 0 {
		p.MaxPollAttempts = 30
	}
	if p.CloseWindow <= 0 {
		p.CloseWindow = 24 * time.Hour
	}
	if p.SubmitMinDelay <= 0 {
		p.SubmitMinDelay = 100 * time.Millisecond
	}
	if p.SubmitMaxDelay <= p.SubmitMinDelay {
		p.SubmitMaxDelay = p.SubmitMinDelay + 200*time.Millisecond
	}
	return p
}

// Deps wires all driven adapters into the generation pipeline.
type Deps struct {
	Source ports.PostSource
	Store  ports.Store
	News   ports.Searcher
	Web    ports.Searcher
	Model  ports.Generator
	Images ports.ImageJobs
	Chain  ports.Chain
	Logger *slog.Logger
	Policy Policy
}

// Pipeline drives one generation run over the post working set.
type Pipeline struct {
	source ports.PostSource
	store  ports.Store
	news   ports.Searcher
	web    ports.Searcher
	model  ports.Generator
	images ports.ImageJobs
	chain  ports.Chain
	logger *slog.Logger
	policy Policy
	now    func() time.Time

	graph *pipeline.Graph[domain.PostItem]
}

// New constructs the generation pipeline. The chain client is a required
// dependency: without contract credentials the run must abort before any
// stage executes, so construction fails instead.
func New(deps Deps) (*Pipeline, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("generation: post source is required")
	}
	if deps.Chain == nil {
		return nil, fmt.Errorf("generation: chain client is required (missing contract credentials)")
	}
	if deps.Model == nil {
		return nil, fmt.Errorf("generation: model client is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	p := &Pipeline{
		source: deps.Source,
		store:  deps.Store,
		news:   deps.News,
		web:    deps.Web,
		model:  deps.Model,
		images: deps.Images,
		chain:  deps.Chain,
		logger: deps.Logger.With("component", "generation"),
		policy: deps.Policy.withDefaults(),
		now:    time.Now,
	}

	graph, err := pipeline.NewGraph(
		"pool-generation",
		p.logger,
		domain.MergePostItems,
		"filter_processed",
		[]pipeline.Stage[domain.PostItem]{
			{Name: "fetch_posts", Run: p.fetchPosts},
			{Name: "filter_processed", Run: p.filterProcessed},
			{Name: "research_news", Run: p.researchNews},
			{Name: "research_web", Run: p.researchWeb},
			{Name: "generate_ideas", Run: p.generateIdeas},
			{Name: "generate_images", Run: p.generateImages},
			{Name: "create_pools", Run: p.createPools},
			{Name: "upsert_posts", Run: p.upsertPosts},
		},
	)
	if err != nil {
		return nil, err
	}
	p.graph = graph
	return p, nil
}

// Run executes one full generation pass and returns the final working set
// with every item's disposition.
func (p *Pipeline) Run(ctx context.Context) (*pipeline.Set[domain.PostItem], error) {
	return p.graph.Run(ctx, nil)
}

func (p *Pipeline) fetchPosts(ctx context.Context, _ *pipeline.Set[domain.PostItem]) ([]domain.PostItem, error) {
	posts, err := p.source.FetchLatest(ctx, p.policy.AccountID)
	if err != nil {
		p.logger.Warn("fetch posts failed", "account", p.policy.AccountID, "error", err)
		return nil, nil
	}

	items := make([]domain.PostItem, 0, len(posts))
	for _, post := range posts {
		items = append(items, domain.NewPostItem(post))
	}
	p.logger.Info("fetched posts", "count", len(items))
	return items, nil
}

// filterProcessed is the eligibility gate. A store failure fails open: the
// run proceeds with every item eligible rather than blocking on the lookup.
// That trades possible reprocessing for availability, a deliberate policy.
func (p *Pipeline) filterProcessed(ctx context.Context, set *pipeline.Set[domain.PostItem]) ([]domain.PostItem, error) {
	items := set.Items()
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Key())
	}

	var settled map[string]domain.Settlement
	if p.store != nil {
		var err error
		settled, err = p.store.Settled(ctx, ids)
		if err != nil {
			p.logger.Warn("settlement lookup failed, failing open", "error", err)
			settled = nil
		}
	}

	now := p.now()
	var updates []domain.PostItem
	for _, item := range items {
		if marker, ok := settled[item.Key()]; ok {
			// Keep the recorded settlement on the item instead of
			// discarding it.
			item.PoolID = marker.PoolID
			item.TransactionHash = marker.TransactionHash
			updates = append(updates, item.Skip(domain.SkipAlreadyProcessed))
			continue
		}
		if gatePolicy(p.policy).TooOld(item.Post.CreatedAt, now) {
			updates = append(updates, item.Skip(domain.SkipTooOld))
		}
	}
	// The run cap is computed against the post-filter view without
	// touching the live set; the graph folds everything in at once.
	scratch := pipeline.NewSet(domain.MergePostItems, items)
	scratch.Apply(updates)
	capped := pipeline.Truncate(scratch, p.policy.MaxItems, func(item domain.PostItem) domain.PostItem {
		return item.Skip(domain.SkipRunCap)
	})
	updates = append(updates, capped...)

	p.logger.Info("filtered posts",
		"total", len(items),
		"already_processed", len(settled),
		"capped", len(capped))
	return updates, nil
}

func gatePolicy(p Policy) pipeline.GatePolicy {
	return pipeline.GatePolicy{MaxItems: p.MaxItems, AgeCutoff: p.AgeCutoff, MaxAge: p.MaxAge}
}

// Research stages are best-effort: a failed search leaves the item eligible
// with no related material, and the idea prompt copes with the gap.
func (p *Pipeline) researchNews(ctx context.Context, set *pipeline.Set[domain.PostItem]) ([]domain.PostItem, error) {
	if p.news == nil {
		return nil, nil
	}
	return pipeline.ForEach(ctx, set.Items(),
		func(ctx context.Context, item domain.PostItem) (domain.PostItem, error) {
			query := htmltext.Excerpt(item.Post.Content, 12)
			if query == "" {
				return item, nil
			}
			results, err := p.news.Search(ctx, query)
			if err != nil {
				return item, err
			}
			item.NewsQuery = query
			item.RelatedNews = contents(results)
			return item, nil
		},
		func(item domain.PostItem, err error) domain.PostItem {
			p.logger.Warn("news research failed", "post", item.Key(), "error", err)
			return item
		},
	), nil
}

func (p *Pipeline) researchWeb(ctx context.Context, set *pipeline.Set[domain.PostItem]) ([]domain.PostItem, error) {
	if p.web == nil {
		return nil, nil
	}
	return pipeline.ForEach(ctx, set.Items(),
		func(ctx context.Context, item domain.PostItem) (domain.PostItem, error) {
			query := htmltext.Excerpt(item.Post.Content, 12)
			if query == "" {
				return item, nil
			}
			results, err := p.web.Search(ctx, query)
			if err != nil {
				return item, err
			}
			item.WebQuery = query
			item.RelatedSearch = contents(results)
			return item, nil
		},
		func(item domain.PostItem, err error) domain.PostItem {
			p.logger.Warn("web research failed", "post", item.Key(), "error", err)
			return item
		},
	), nil
}

func contents(results []domain.SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Content != "" {
			out = append(out, r.Content)
		}
	}
	return out
}

const ideaSystemPrompt = `You are creating a Yes/No betting question based on a social-media post.
The question must be a clear Yes/No prediction about something that could happen in the future related to the post.
The question should:
1. Be related to the content of the post
2. Be written in FIRST PERSON in the author's distinctive style, using ALL CAPS for emphasis
3. Be clear what a YES or NO outcome would mean
4. Focus on something that will be verifiable in the future
Format your answer as a single Yes/No question with no additional text.`

func (p *Pipeline) generateIdeas(ctx context.Context, set *pipeline.Set[domain.PostItem]) ([]domain.PostItem, error) {
	return pipeline.ForEach(ctx, set.Items(),
		func(ctx context.Context, item domain.PostItem) (domain.PostItem, error) {
			user := ideaUserPrompt(item)
			idea, err := p.model.Complete(ctx, ideaSystemPrompt, user)
			if err != nil {
				return item, err
			}
			idea = strings.TrimSpace(idea)
			if idea == "" {
				return item, fmt.Errorf("model returned empty idea")
			}
			if !strings.HasSuffix(idea, "?") {
				idea += "?"
			}
			item.PoolIdea = idea
			return item, nil
		},
		func(item domain.PostItem, err error) domain.PostItem {
			p.logger.Warn("idea generation failed", "post", item.Key(), "error", err)
			return item.Skip(domain.SkipFailedIdea)
		},
	), nil
}

func ideaUserPrompt(item domain.PostItem) string {
	news := "No related news yet"
	if len(item.RelatedNews) > 0 {
		news = strings.Join(item.RelatedNews, ", ")
	}
	search := "No search results yet"
	if len(item.RelatedSearch) > 0 {
		search = strings.Join(item.RelatedSearch, ", ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Post: %q\n\n", htmltext.Strip(item.Post.Content))
	fmt.Fprintf(&b, "<related_news>\n%s\n</related_news>\n", news)
	fmt.Fprintf(&b, "<related_web_search_results>\n%s\n</related_web_search_results>\n", search)
	return b.String()
}

const imagePromptSystem = `You are an expert prompt engineer generating a strong prompt for an image model.
The user has created a bettable idea based on a social-media post and wants a matching image.
Rules:
- The key features of the image should be viewable in a thumbnail
- Generate a creative, over-the-top prompt with elements of surrealism and pop culture
- If the bettable idea mentions public figures, include them visibly in the thumbnail
- Lean towards photo-realistic images
Respond with a JSON object of the form {"imagePrompt": "..."} and nothing else.`

// generateImages talks to a paid provider, so the stage runs sequentially
// with a pause between items and is capped per run.
func (p *Pipeline) generateImages(ctx context.Context, set *pipeline.Set[domain.PostItem]) ([]domain.PostItem, error) {
	if p.images == nil {
		return nil, nil
	}

	var batch []domain.PostItem
	for _, item := range set.Eligible() {
		if item.PoolIdea == "" {
			continue
		}
		batch = append(batch, item)
		if len(batch) >= p.policy.MaxImages {
			break
		}
	}
	if len(batch) == 0 {
		return nil, nil
	}

	opts := pipeline.SequentialOptions{MinDelay: time.Second, MaxDelay: time.Second}
	return pipeline.ForEachSequential(ctx, batch, opts,
		func(ctx context.Context, item domain.PostItem) (domain.PostItem, error) {
			var prompt struct {
				ImagePrompt string `json:"imagePrompt"`
			}
			user := fmt.Sprintf("Post:\n%s\n\nBettable idea:\n%s\n\nPlease generate an image prompt.",
				htmltext.Strip(item.Post.Content), item.PoolIdea)
			if err := p.model.CompleteJSON(ctx, imagePromptSystem, user, &prompt); err != nil {
				return item, fmt.Errorf("image prompt: %w", err)
			}
			if prompt.ImagePrompt == "" {
				return item, fmt.Errorf("image prompt: model returned empty prompt")
			}

			url, err := p.awaitImage(ctx, prompt.ImagePrompt)
			if err != nil {
				return item, err
			}
			item.ImagePrompt = prompt.ImagePrompt
			item.ImageURL = url
			return item, nil
		},
		func(item domain.PostItem, err error) domain.PostItem {
			p.logger.Warn("image generation failed", "post", item.Key(), "error", err)
			return item.Skip(domain.SkipFailedImage)
		},
	), nil
}

// awaitImage submits an async image job and polls it on a fixed interval up
// to the attempt budget. An explicit provider error stops polling at once;
// exhausting the budget is a timeout, handled like any other stage failure.
func (p *Pipeline) awaitImage(ctx context.Context, prompt string) (string, error) {
	jobID, err := p.images.Submit(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("submit image job: %w", err)
	}

	for attempt := 0; attempt < p.policy.MaxPollAttempts; attempt++ {
		select {
		case <-time.After(p.policy.PollInterval):
		case <-ctx.Done():
			return "", ctx.Err()
		}

		status, err := p.images.Poll(ctx, jobID)
		if err != nil {
			p.logger.Warn("image poll failed", "job", jobID, "attempt", attempt+1, "error", err)
			continue
		}
		if status.Err != "" {
			return "", fmt.Errorf("image job %s: %s", jobID, status.Err)
		}
		if !status.Pending && status.URL != "" {
			return status.URL, nil
		}
	}
	return "", fmt.Errorf("image job %s: timed out after %d attempts", jobID, p.policy.MaxPollAttempts)
}

// createPools submits one transaction per item, serialized with jitter to
// respect nonce ordering and provider rate limits. Any failure leaves the
// item eligible and unsettled: no settlement marker is written, so the next
// run's fetch picks the post up again.
func (p *Pipeline) createPools(ctx context.Context, set *pipeline.Set[domain.PostItem]) ([]domain.PostItem, error) {
	var batch []domain.PostItem
	for _, item := range set.Eligible() {
		if item.PoolIdea != "" && item.TransactionHash == "" {
			batch = append(batch, item)
		}
	}
	if len(batch) == 0 {
		return nil, nil
	}

	closeAt := p.now().Add(p.policy.CloseWindow).Unix()
	opts := pipeline.SequentialOptions{MinDelay: p.policy.SubmitMinDelay, MaxDelay: p.policy.SubmitMaxDelay}
	return pipeline.ForEachSequential(ctx, batch, opts,
		func(ctx context.Context, item domain.PostItem) (domain.PostItem, error) {
			params := domain.PoolCreation{
				Question:       item.PoolIdea,
				Options:        [2]string{"Yes", "No"},
				BetsCloseAt:    closeAt,
				OriginalPostID: item.Post.ID,
			}

			txHash, err := p.chain.CreatePool(ctx, params)
			if err != nil {
				return item, err
			}

			receipt, err := p.chain.WaitReceipt(ctx, txHash)
			if err != nil {
				return item, err
			}
			if !receipt.Succeeded || receipt.PoolID == "" {
				return item, fmt.Errorf("tx %s: no pool created", txHash)
			}

			item.TransactionHash = txHash
			item.PoolID = receipt.PoolID
			p.logger.Info("pool created", "post", item.Key(), "pool", receipt.PoolID, "tx", txHash)
			return item, nil
		},
		func(item domain.PostItem, err error) domain.PostItem {
			p.logger.Warn("pool creation failed, leaving item for a later run", "post", item.Key(), "error", err)
			return item
		},
	), nil
}

func (p *Pipeline) upsertPosts(ctx context.Context, set *pipeline.Set[domain.PostItem]) ([]domain.PostItem, error) {
	if p.store == nil {
		return nil, nil
	}

	var records []domain.PostRecord
	for _, item := range set.Eligible() {
		records = append(records, domain.PostRecord{
			PostID:          item.Post.ID,
			PoolID:          item.PoolID,
			StringContent:   item.Post.Content,
			JSONContent:     postJSON(item.Post),
			TransactionHash: item.TransactionHash,
			CreatedAt:       p.now(),
		})
	}
	if len(records) == 0 {
		return nil, nil
	}

	if err := p.store.UpsertPosts(ctx, records); err != nil {
		p.logger.Warn("upsert posts failed", "records", len(records), "error", err)
	}
	return nil, nil
}

func postJSON(post domain.Post) string {
	raw, err := json.Marshal(struct {
		ID        string `json:"id"`
		Account   string `json:"account"`
		Content   string `json:"content"`
		URL       string `json:"url"`
		CreatedAt string `json:"created_at"`
	}{post.ID, post.Account, post.Content, post.URL, post.CreatedAt.UTC().Format(time.RFC3339)})
	if err != nil {
		return ""
	}
	return string(raw)
}
