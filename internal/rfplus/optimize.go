package rfplus

import (
	"math"

	"github.com/papapumpkin/rfplus/internal/tree"
)

// The optimizer works on two exclusive colors, indexed red then yellow.
// Red is the color of clades from the second input.
const (
	red    = 0
	yellow = 1
)

var dpColors = [2]Color{ExclusiveB, ExclusiveA}

const unreachable = math.MaxInt

// choice records how a vertex splits its pushed-up clade count between
// its children.
type choice struct {
	nl, nr int
	cl, cr int
}

// plan is the optimizer's table over one completed tree d. cost[c][v][n]
// is half the best change in RF distance achievable inside subtree(v)
// when n maximal c-clades are left unpaired and pushed up to v.
type plan struct {
	cmax [2][]int
	cost [2][][]int
	back [2][][]choice
	optN []int
	optC []int
}

// optimize fills the table bottom-up over d and then fixes, top-down, how
// many unpaired clades of which color each vertex passes to its parent.
// match[v] is true when v's cluster already agrees with its image in the
// other completion, so pushing a clade through v costs one.
func optimize(d *tree.Tree, colors *coloring, match []bool) *plan {
	n := d.Len()
	p := &plan{optN: make([]int, n), optC: make([]int, n)}
	for c := range 2 {
		p.cmax[c] = make([]int, n)
		p.cost[c] = make([][]int, n)
		p.back[c] = make([][]choice, n)
	}

	post := d.PostOrder()
	for _, v := range post {
		for c := range 2 {
			switch {
			case colors.maximal(d, v, dpColors[c]):
				p.cmax[c][v] = 1
			case colors.color[v] == dpColors[c]:
				p.cmax[c][v] = 0
			default:
				for _, k := range d.Children(v) {
					p.cmax[c][v] += p.cmax[c][k]
				}
			}
		}
	}

	for _, v := range post {
		kids := d.Children(v)
		for c := range 2 {
			m := p.cmax[c][v]
			p.cost[c][v] = make([]int, m+1)
			p.back[c][v] = make([]choice, m+1)
			if len(kids) == 0 || m == 0 || colors.color[v] == dpColors[c] {
				continue
			}
			for want := 0; want <= m; want++ {
				p.cost[c][v][want], p.back[c][v][want] = p.best(c, want, kids[0], kids[1], match)
			}
		}
	}

	root := d.Root()
	p.optN[root], p.optC[root] = 0, red
	for _, v := range d.PreOrder() {
		kids := d.Children(v)
		if len(kids) == 0 {
			continue
		}
		ch := p.back[p.optC[v]][v][p.optN[v]]
		p.optN[kids[0]], p.optC[kids[0]] = ch.nl, ch.cl
		p.optN[kids[1]], p.optC[kids[1]] = ch.nr, ch.cr
	}
	return p
}

// best evaluates every way the children l and r can deliver want unpaired
// c-clades to their parent. Clades of the other color met on the way are
// paired off, each pair earning one; a clade pushed out of a child whose
// cluster already matches costs one.
func (p *plan) best(c, want int, l, r tree.NodeID, match []bool) (int, choice) {
	bestCost, bestChoice := unreachable, choice{}
	consider := func(nl, nr, cl, cr, paired int) {
		a, b := p.cost[cl][l][nl], p.cost[cr][r][nr]
		if a == unreachable || b == unreachable {
			return
		}
		total := a + b - paired
		if nl > 0 && match[l] {
			total++
		}
		if nr > 0 && match[r] {
			total++
		}
		if total < bestCost {
			bestCost, bestChoice = total, choice{nl: nl, nr: nr, cl: cl, cr: cr}
		}
	}

	for cl := range 2 {
		for cr := range 2 {
			switch {
			case cl == c && cr == c:
				lo := max(0, want-p.cmax[c][r])
				hi := min(want, p.cmax[c][l])
				if lo == 0 {
					for nl := lo; nl <= hi; nl++ {
						consider(nl, want-nl, cl, cr, 0)
					}
					continue
				}
				// The right child cannot carry want alone: take as many
				// from the left as it has first.
				for nl := hi; nl >= lo; nl-- {
					consider(nl, want-nl, cl, cr, 0)
				}
			case cl == c:
				if p.cmax[c][l] < want {
					continue
				}
				bound := min(p.cmax[c][l]-want, p.cmax[cr][r])
				for k := 0; k <= bound; k++ {
					consider(want+k, k, cl, cr, k)
				}
			case cr == c:
				if p.cmax[c][r] < want {
					continue
				}
				bound := min(p.cmax[cl][l], p.cmax[c][r]-want)
				for k := 0; k <= bound; k++ {
					consider(k, want+k, cl, cr, k)
				}
			}
		}
	}
	return bestCost, bestChoice
}

// matches marks the non-exclusive vertices of d whose subtree has as many
// leaves as their image's subtree in e, i.e. whose cluster exists in both.
func matches(d, e *tree.Tree, colors *coloring, images []tree.NodeID) []bool {
	dc, ec := d.SubtreeLeafCounts(), e.SubtreeLeafCounts()
	out := make([]bool, d.Len())
	for _, v := range d.PreOrder() {
		out[v] = !colors.color[v].Exclusive() && dc[v] == ec[images[v]]
	}
	return out
}
