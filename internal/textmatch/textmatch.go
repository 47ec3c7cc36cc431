// Package textmatch implements matching-block sequence comparison in the
// style of Ratcliff-Obershelp: recursively locate the longest contiguous
// matching run between two sequences, then match the pieces to its left and
// right. The resulting block list drives both near-duplicate line detection
// and word-level timestamp alignment, so block boundaries and the derived
// similarity ratio are load-bearing — keep the recursion order stable.
package textmatch

// Block is a maximal matching run: a[A:A+Size] == b[B:B+Size].
// The final block returned by [Matcher.MatchingBlocks] is always the
// zero-size sentinel {len(a), len(b), 0}.
type Block struct {
	A    int
	B    int
	Size int
}

// Matcher compares two sequences of comparable elements.
// It is read-only after construction and safe for concurrent use.
type Matcher[T comparable] struct {
	a, b []T

	// b2j maps each element of b to the ascending list of its indices in b.
	b2j map[T][]int
}

// NewMatcher returns a Matcher over a and b. Neither slice is copied; callers
// must not mutate them while the Matcher is in use.
func NewMatcher[T comparable](a, b []T) *Matcher[T] {
	m := &Matcher[T]{a: a, b: b, b2j: make(map[T][]int, len(b))}
	for j, el := range b {
		m.b2j[el] = append(m.b2j[el], j)
	}
	return m
}

// longestMatch finds the longest matching block within a[alo:ahi] and
// b[blo:bhi]. Among equally long matches it prefers the one starting earliest
// in a, and of those, earliest in b.
func (m *Matcher[T]) longestMatch(alo, ahi, blo, bhi int) Block {
	var besti, bestj, bestsize int = alo, blo, 0

	// j2len[j] = length of the longest matching run ending at a[i-1], b[j].
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}

	return Block{A: besti, B: bestj, Size: bestsize}
}

// MatchingBlocks returns all maximal matching runs between a and b, in
// ascending order of position, terminated by the {len(a), len(b), 0}
// sentinel. Adjacent blocks are coalesced.
func (m *Matcher[T]) MatchingBlocks() []Block {
	type span struct{ alo, ahi, blo, bhi int }

	queue := []span{{0, len(m.a), 0, len(m.b)}}
	var found []Block

	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		blk := m.longestMatch(s.alo, s.ahi, s.blo, s.bhi)
		if blk.Size == 0 {
			continue
		}
		found = append(found, blk)
		if s.alo < blk.A && s.blo < blk.B {
			queue = append(queue, span{s.alo, blk.A, s.blo, blk.B})
		}
		if blk.A+blk.Size < s.ahi && blk.B+blk.Size < s.bhi {
			queue = append(queue, span{blk.A + blk.Size, s.ahi, blk.B + blk.Size, s.bhi})
		}
	}

	sortBlocks(found)

	// Coalesce adjacent blocks.
	var merged []Block
	for _, blk := range found {
		n := len(merged)
		if n > 0 && merged[n-1].A+merged[n-1].Size == blk.A && merged[n-1].B+merged[n-1].Size == blk.B {
			merged[n-1].Size += blk.Size
			continue
		}
		merged = append(merged, blk)
	}

	merged = append(merged, Block{A: len(m.a), B: len(m.b), Size: 0})
	return merged
}

// Ratio returns a similarity measure in [0, 1]: twice the number of matched
// elements divided by the total number of elements in both sequences.
// Identical sequences score 1.0; sequences with nothing in common score 0.0.
func (m *Matcher[T]) Ratio() float64 {
	total := len(m.a) + len(m.b)
	if total == 0 {
		return 1.0
	}
	matched := 0
	for _, blk := range m.MatchingBlocks() {
		matched += blk.Size
	}
	return 2.0 * float64(matched) / float64(total)
}

// Ratio is a convenience wrapper comparing two strings rune by rune.
func Ratio(a, b string) float64 {
	return NewMatcher([]rune(a), []rune(b)).Ratio()
}

// sortBlocks sorts blocks by (A, B) ascending. Insertion sort — block counts
// are small (bounded by the shorter sequence length).
func sortBlocks(blocks []Block) {
	for i := 1; i < len(blocks); i++ {
		for j := i; j > 0; j-- {
			prev, cur := blocks[j-1], blocks[j]
			if prev.A < cur.A || (prev.A == cur.A && prev.B <= cur.B) {
				break
			}
			blocks[j-1], blocks[j] = cur, prev
		}
	}
}
