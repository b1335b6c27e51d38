package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"
)

// FindSimilar returns the stored tasks nearest to name, ordered by ascending
// distance. With an embedder configured the distance is cosine distance over
// task-name embeddings; otherwise (or for rows inserted without a vector) it
// is 1 minus the lexical similarity of the normalized names.
func (s *SQLiteStore) FindSimilar(ctx context.Context, name string, limit int) ([]SimilarTask, error) {
	if limit <= 0 {
		limit = 5
	}

	var queryVec []float32
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: embedding query %q failed, using lexical similarity: %v\n", name, err)
		} else {
			queryVec = vec
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, priority, due_date, embedding FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var matches []SimilarTask
	for rows.Next() {
		var (
			t    SimilarTask
			blob []byte
		)
		if err := rows.Scan(&t.Name, &t.Priority, &t.DueDate, &blob); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}

		if queryVec != nil && len(blob) > 0 {
			t.Distance = 1 - cosineSimilarity(queryVec, bytesToFloat32(blob))
		} else {
			t.Distance = 1 - lexicalSimilarity(name, t.Name)
		}
		matches = append(matches, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// lexicalSimilarity scores two task names in [0,1] as the max of token
// Jaccard and normalized Levenshtein over their normalized forms.
func lexicalSimilarity(a, b string) float64 {
	aNorm := normalizeName(a)
	bNorm := normalizeName(b)
	if aNorm == "" || bNorm == "" {
		return 0
	}
	if aNorm == bNorm {
		return 1
	}
	j := tokenJaccard(aNorm, bNorm)
	l := normalizedLevenshtein(aNorm, bNorm)
	if j > l {
		return j
	}
	return l
}

// normalizeName lowercases and keeps letters/digits, collapsing separators
// to single spaces.
func normalizeName(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(v))
	lastSpace := false
	for _, r := range v {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r), r == '-', r == '_', r == '/':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenJaccard(a, b string) float64 {
	aSet := map[string]struct{}{}
	for _, t := range strings.Fields(a) {
		aSet[t] = struct{}{}
	}
	bSet := map[string]struct{}{}
	for _, t := range strings.Fields(b) {
		bSet[t] = struct{}{}
	}
	if len(aSet) == 0 && len(bSet) == 0 {
		return 1
	}
	inter := 0
	for t := range aSet {
		if _, ok := bSet[t]; ok {
			inter++
		}
	}
	union := len(aSet) + len(bSet) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func normalizedLevenshtein(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) == 0 && len(br) == 0 {
		return 1
	}
	maxLen := len(ar)
	if len(br) > maxLen {
		maxLen = len(br)
	}
	if maxLen == 0 {
		return 0
	}
	d := make([][]int, len(ar)+1)
	for i := range d {
		d[i] = make([]int, len(br)+1)
	}
	for i := 0; i <= len(ar); i++ {
		d[i][0] = i
	}
	for j := 0; j <= len(br); j++ {
		d[0][j] = j
	}
	for i := 1; i <= len(ar); i++ {
		for j := 1; j <= len(br); j++ {
			cost := 0
			if ar[i-1] != br[j-1] {
				cost = 1
			}
			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			sub := d[i-1][j-1] + cost
			d[i][j] = min(del, min(ins, sub))
		}
	}
	dist := d[len(ar)][len(br)]
	return 1 - float64(dist)/float64(maxLen)
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// float32ToBytes converts a float32 slice to a byte slice (little-endian).
func float32ToBytes(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// bytesToFloat32 converts a byte slice back to float32 slice (little-endian).
func bytesToFloat32(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
