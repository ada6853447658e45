// ABOUTME: Full-text, vector, and hybrid retrieval over the chunk index
// ABOUTME: All scores are normalized so higher always means more relevant
package index

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/recallhq/recall/internal/models"
	"github.com/recallhq/recall/internal/util"
)

// TimeFilter restricts results by chunk timestamp. Days counts back from
// today (0 = today only); From/To are inclusive YYYY-MM-DD bounds matched
// against the timestamp's date prefix. From/To win over Days when set.
type TimeFilter struct {
	Days    int
	HasDays bool
	From    string
	To      string
}

func (tf TimeFilter) clause(today string) (string, []any) {
	var conds []string
	var args []any
	if tf.From != "" {
		conds = append(conds, "substr(c.timestamp, 1, 10) >= ?")
		args = append(args, tf.From)
	}
	if tf.To != "" {
		conds = append(conds, "substr(c.timestamp, 1, 10) <= ?")
		args = append(args, tf.To)
	}
	if tf.From == "" && tf.To == "" && tf.HasDays {
		conds = append(conds, "substr(c.timestamp, 1, 10) >= ?")
		args = append(args, daysCutoff(today, tf.Days))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(conds, " AND "), args
}

// Searcher runs retrieval queries against an open index.
type Searcher struct {
	db    *DB
	today string
}

// NewSearcher wraps an open index database. today is the YYYY-MM-DD date
// used to resolve relative day filters.
func NewSearcher(db *DB, today string) *Searcher {
	return &Searcher{db: db, today: today}
}

// SearchFTS ranks chunks by BM25 relevance. Native bm25 scores (negative,
// lower = better) are mapped to r/(1+r) with r = -bm25, giving a [0,1)
// score where higher is better.
func (s *Searcher) SearchFTS(query string, limit int, tf TimeFilter) ([]*models.SearchResult, error) {
	where, args := tf.clause(s.today)
	sqlQuery := `
		SELECT c.id, c.content, c.type, c.memory_type, c.entities, c.confidence,
		       c.source_file, c.timestamp, bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?` + where + `
		ORDER BY rank
		LIMIT ?`
	queryArgs := append([]any{ftsQuery(query)}, args...)
	queryArgs = append(queryArgs, limit)

	rows, err := s.db.Query(sqlQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*models.SearchResult
	for rows.Next() {
		r, rank, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		pos := -rank
		if pos < 0 {
			pos = 0
		}
		r.Score = pos / (1 + pos)
		results = append(results, r)
	}
	return results, rows.Err()
}

// SearchVector ranks chunks by cosine similarity against the query vector.
// Chunks without embeddings are skipped; negative similarities clamp to 0.
func (s *Searcher) SearchVector(queryVec []float32, limit int, tf TimeFilter) ([]*models.SearchResult, error) {
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("vector search requires a query embedding")
	}
	where, args := tf.clause(s.today)
	sqlQuery := `
		SELECT c.id, c.content, c.type, c.memory_type, c.entities, c.confidence,
		       c.source_file, c.timestamp, c.embedding
		FROM chunks c
		WHERE c.embedding IS NOT NULL` + where
	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		var typ, memType, entities, srcFile, ts sql.NullString
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Content, &typ, &memType, &entities, &r.Confidence, &srcFile, &ts, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}
		r.Type, r.MemoryType, r.Entities = typ.String, memType.String, entities.String
		r.SourceFile, r.Timestamp = srcFile.String, ts.String
		vec := unpackEmbedding(blob)
		if len(vec) != len(queryVec) {
			continue
		}
		sim := cosine(queryVec, vec)
		if sim < 0 {
			sim = 0
		}
		r.Score = sim
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SearchHybrid combines full-text and vector signals as a fixed-weight sum
// of the two normalized scores. A chunk surfaced by both modes gets both
// contributions; one surfaced by a single mode gets that weighted score
// alone. Ties break toward the newer chunk. When queryVec is nil the result
// degrades to weighted full-text only.
func (s *Searcher) SearchHybrid(query string, queryVec []float32, limit int, ftsWeight, vecWeight float64, tf TimeFilter) ([]*models.SearchResult, error) {
	// Over-fetch each mode so the merged ranking has enough candidates.
	fetch := limit * 3
	if fetch < 30 {
		fetch = 30
	}

	ftsResults, err := s.SearchFTS(query, fetch, tf)
	if err != nil {
		return nil, err
	}

	var vecResults []*models.SearchResult
	if len(queryVec) > 0 {
		vecResults, err = s.SearchVector(queryVec, fetch, tf)
		if err != nil {
			return nil, err
		}
	}

	merged := make(map[string]*models.SearchResult)
	for _, r := range ftsResults {
		r.Score *= ftsWeight
		merged[r.ID] = r
	}
	for _, r := range vecResults {
		if existing, ok := merged[r.ID]; ok {
			existing.Score += r.Score * vecWeight
			continue
		}
		r.Score *= vecWeight
		merged[r.ID] = r
	}

	results := make([]*models.SearchResult, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func scanResult(rows *sql.Rows) (*models.SearchResult, float64, error) {
	var r models.SearchResult
	var typ, memType, entities, srcFile, ts sql.NullString
	var rank float64
	if err := rows.Scan(&r.ID, &r.Content, &typ, &memType, &entities, &r.Confidence, &srcFile, &ts, &rank); err != nil {
		return nil, 0, fmt.Errorf("scanning search row: %w", err)
	}
	r.Type, r.MemoryType, r.Entities = typ.String, memType.String, entities.String
	r.SourceFile, r.Timestamp = srcFile.String, ts.String
	return &r, rank, nil
}

// sortResults orders by score descending, newer timestamp first on ties.
func sortResults(results []*models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Timestamp > results[j].Timestamp
	})
}

// ftsQuery quotes each whitespace-separated term so user input cannot be
// misparsed as FTS5 query syntax.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " ")
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// daysCutoff returns the inclusive date prefix for "last N days" relative
// to today; days=0 means today only.
func daysCutoff(today string, days int) string {
	t := util.ParseISO(today)
	if t.IsZero() {
		return today
	}
	return t.AddDate(0, 0, -days).Format(util.DateFormat)
}
