package domain

// Per-field merge policy shared by both item shapes:
//
//   - scalars and lists: the update wins when non-empty, otherwise the
//     current value is retained;
//   - sticky fields (TransactionHash, PoolID, TxHash): the current value is
//     retained whenever it is non-empty, no matter what the update carries;
//   - Eligible: monotonic, false wins over true;
//   - SkipReason: the first recorded reason is kept.
//
// Both functions are pure and idempotent: merging the same update twice
// yields the same collection as merging it once, which lets stages be
// retried without corrupting state.

// MergePostItems folds a stage's partial update into the current item.
func MergePostItems(curr, upd PostItem) PostItem {
	out := curr

	out.NewsQuery = pickString(curr.NewsQuery, upd.NewsQuery)
	out.WebQuery = pickString(curr.WebQuery, upd.WebQuery)
	out.RelatedNews = pickList(curr.RelatedNews, upd.RelatedNews)
	out.RelatedSearch = pickList(curr.RelatedSearch, upd.RelatedSearch)
	out.PoolIdea = pickString(curr.PoolIdea, upd.PoolIdea)
	out.ImagePrompt = pickString(curr.ImagePrompt, upd.ImagePrompt)
	out.ImageURL = pickString(curr.ImageURL, upd.ImageURL)

	out.TransactionHash = pickSticky(curr.TransactionHash, upd.TransactionHash)
	out.PoolID = pickSticky(curr.PoolID, upd.PoolID)

	out.Eligible = curr.Eligible && upd.Eligible
	out.SkipReason = pickReason(curr.SkipReason, upd.SkipReason)
	return out
}

// MergePoolItems folds a stage's partial update into the current item.
func MergePoolItems(curr, upd PoolItem) PoolItem {
	out := curr

	out.EvidenceQueries = pickList(curr.EvidenceQueries, upd.EvidenceQueries)
	out.Evidence = pickEvidence(curr.Evidence, upd.Evidence)
	if upd.Graded {
		out.Grade = upd.Grade
		out.Graded = true
	}

	out.TxHash = pickSticky(curr.TxHash, upd.TxHash)

	out.Eligible = curr.Eligible && upd.Eligible
	out.SkipReason = pickReason(curr.SkipReason, upd.SkipReason)
	return out
}

func pickString(curr, upd string) string {
	if upd != "" {
		return upd
	}
	return curr
}

func pickList(curr, upd []string) []string {
	if len(upd) > 0 {
		return upd
	}
	return curr
}

func pickEvidence(curr, upd []Evidence) []Evidence {
	if len(upd) > 0 {
		return upd
	}
	return curr
}

func pickSticky(curr, upd string) string {
	if curr != "" {
		return curr
	}
	return upd
}

func pickReason(curr, upd string) string {
	if curr != "" {
		return curr
	}
	return upd
}
