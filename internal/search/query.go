package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultLimit caps results when the caller passes no limit.
const DefaultLimit = 20

// Hit is one matching book.
type Hit struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Search returns userID's books whose title matches every word of q, either
// exactly or as a prefix. Results are ordered by relevance.
func (x *Index) Search(ctx context.Context, userID, q string, limit int) ([]Hit, error) {
	words := strings.Fields(strings.ToLower(q))
	if len(words) == 0 {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(userID, words), limit, 0, false)
	req.Fields = []string{"title"}

	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if t, ok := h.Fields["title"].(string); ok {
			hit.Title = t
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func buildQuery(userID string, words []string) query.Query {
	owner := bleve.NewTermQuery(userID)
	owner.SetField("user_id")

	clauses := []query.Query{owner}
	for _, w := range words {
		match := bleve.NewMatchQuery(w)
		match.SetField("title")
		match.Analyzer = titleAnalyzer

		prefix := bleve.NewPrefixQuery(w)
		prefix.SetField("title")

		clauses = append(clauses, bleve.NewDisjunctionQuery(match, prefix))
	}
	return bleve.NewConjunctionQuery(clauses...)
}
