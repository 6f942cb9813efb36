package extraction

import "sort"

// Scorer returns a similarity score between 0 and 100 for a label and a line.
type Scorer func(label, line string) int

// PartialRatio scores how well the shorter string matches the best window
// of the longer one. Candidate windows start where a matching block between
// the two strings lines up, and each window scores 2*M/T: M matched runes
// out of T runes in both strings. The best window is rounded half to even.
// Equal strings score 100 and an empty string scores 0.
func PartialRatio(a, b string) int {
	if a == b && a != "" {
		return 100
	}
	short, long := []rune(a), []rune(b)
	if len(short) == 0 || len(long) == 0 {
		return 0
	}
	if len(short) > len(long) {
		short, long = long, short
	}

	bestM, bestT := 0, 1
	for _, blk := range newMatcher(short, long).matchingBlocks() {
		start := blk.j - blk.i
		if start < 0 {
			start = 0
		}
		end := min(start+len(short), len(long))

		m, t := newMatcher(short, long[start:end]).matches(), len(short)+end-start
		// within half a percent of a full match
		if 2000*m > 995*t {
			return 100
		}
		if m*bestT > bestM*t {
			bestM, bestT = m, t
		}
	}
	return roundHalfEven(200*bestM, bestT)
}

func roundHalfEven(num, den int) int {
	q, r := num/den, num%den
	switch {
	case 2*r > den:
		q++
	case 2*r == den && q%2 == 1:
		q++
	}
	return q
}

// block is a run of size equal runes at a[i:] and b[j:].
type block struct{ i, j, size int }

// matcher finds matching blocks between two rune slices the way a
// Ratcliff/Obershelp sequence matcher does: take the longest common run,
// then recurse on the pieces left and right of it.
type matcher struct {
	a, b []rune
	b2j  map[rune][]int
}

// popularMinLen is the length of b from which very frequent runes stop
// seeding matches.
const popularMinLen = 200

func newMatcher(a, b []rune) *matcher {
	m := &matcher{a: a, b: b, b2j: make(map[rune][]int)}
	for j, r := range b {
		m.b2j[r] = append(m.b2j[r], j)
	}
	if n := len(b); n >= popularMinLen {
		limit := n/100 + 1
		for r, idx := range m.b2j {
			if len(idx) > limit {
				delete(m.b2j, r)
			}
		}
	}
	return m
}

// longest returns the longest matching block in a[alo:ahi] and b[blo:bhi],
// preferring the earliest start in a, then in b.
func (m *matcher) longest(alo, ahi, blo, bhi int) block {
	best := block{i: alo, j: blo}
	runs := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := runs[j-1] + 1
			next[j] = k
			if k > best.size {
				best = block{i: i - k + 1, j: j - k + 1, size: k}
			}
		}
		runs = next
	}

	for best.i > alo && best.j > blo && m.a[best.i-1] == m.b[best.j-1] {
		best.i, best.j, best.size = best.i-1, best.j-1, best.size+1
	}
	for best.i+best.size < ahi && best.j+best.size < bhi && m.a[best.i+best.size] == m.b[best.j+best.size] {
		best.size++
	}
	return best
}

// matchingBlocks returns the non-adjacent matching blocks in order, ending
// with a zero-size block at the end of both slices.
func (m *matcher) matchingBlocks() []block {
	var found []block
	queue := [][4]int{{0, len(m.a), 0, len(m.b)}}
	for len(queue) > 0 {
		q := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		alo, ahi, blo, bhi := q[0], q[1], q[2], q[3]

		x := m.longest(alo, ahi, blo, bhi)
		if x.size == 0 {
			continue
		}
		found = append(found, x)
		if alo < x.i && blo < x.j {
			queue = append(queue, [4]int{alo, x.i, blo, x.j})
		}
		if x.i+x.size < ahi && x.j+x.size < bhi {
			queue = append(queue, [4]int{x.i + x.size, ahi, x.j + x.size, bhi})
		}
	}
	sort.Slice(found, func(p, q int) bool {
		if found[p].i != found[q].i {
			return found[p].i < found[q].i
		}
		return found[p].j < found[q].j
	})

	var blocks []block
	cur := block{}
	for _, x := range found {
		if cur.i+cur.size == x.i && cur.j+cur.size == x.j {
			cur.size += x.size
			continue
		}
		if cur.size > 0 {
			blocks = append(blocks, cur)
		}
		cur = x
	}
	if cur.size > 0 {
		blocks = append(blocks, cur)
	}
	return append(blocks, block{i: len(m.a), j: len(m.b)})
}

func (m *matcher) matches() int {
	n := 0
	for _, x := range m.matchingBlocks() {
		n += x.size
	}
	return n
}
