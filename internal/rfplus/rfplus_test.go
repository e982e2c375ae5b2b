package rfplus

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/rfplus/internal/rf"
	"github.com/papapumpkin/rfplus/internal/tree"
)

func parse(t *testing.T, s string) *tree.Tree {
	t.Helper()
	tr, err := tree.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return tr
}

func compare(t *testing.T, a, b string) *Comparison {
	t.Helper()
	c, err := New(parse(t, a), parse(t, b))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func distance(t *testing.T, r *Result) int {
	t.Helper()
	d, err := rf.Distance(r.First, r.Second, r.Rooted)
	if err != nil {
		t.Fatalf("distance between completions: %v", err)
	}
	return d
}

func sortedLabels(t *tree.Tree) []string {
	l := t.LeafLabels()
	slices.Sort(l)
	return l
}

func TestColorCombine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		l, r   Color
		want   Color
		marked bool
	}{
		{Shared, Shared, Shared, false},
		{ExclusiveA, ExclusiveA, ExclusiveA, false},
		{ExclusiveB, ExclusiveB, ExclusiveB, false},
		{ExclusiveA, Shared, Mixed, true},
		{Mixed, ExclusiveB, Mixed, true},
		{Shared, Mixed, Mixed, false},
		{Mixed, Mixed, Mixed, false},
		{ExclusiveA, ExclusiveB, Mixed, false},
	}
	for _, tt := range tests {
		t.Run(tt.l.String()+"+"+tt.r.String(), func(t *testing.T) {
			t.Parallel()
			got, marked := combine(tt.l, tt.r)
			if got != tt.want || marked != tt.marked {
				t.Errorf("combine = (%v, %v), want (%v, %v)", got, marked, tt.want, tt.marked)
			}
		})
	}
}

func TestColorTreeRejectsNonBinary(t *testing.T) {
	t.Parallel()

	tr := parse(t, "(a,b,c);")
	_, err := colorTree(tr, func(string) Color { return Shared })
	if !errors.Is(err, ErrStructuralViolation) {
		t.Errorf("error = %v, want ErrStructuralViolation", err)
	}
}

func TestGraftExclusive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		source     string
		want       string
		degenerate bool
	}{
		{"sibling of shared leaf", "((1,2),(3,4));", "((5,2),(3,4));", "((1,(5,2)),(3,4));", false},
		{"at the root", "(1,2);", "((1,2),5);", "((1,2),5);", false},
		{"cherry goes last under the parent", "((1,2),(3,4));", "((1,5),(3,4));", "((2,(5,1)),(3,4));", false},
		{"two clades on one image", "((1,2),3);", "(((1,(6,7)),5),3);", "((2,(5,((6,7),1))),3);", false},
		{"nothing shared", "(1,2);", "(3,4);", "((1,2),(3,4));", true},
		{"identical leaf sets", "((1,2),3);", "(1,(2,3));", "((1,2),3);", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target, source := parse(t, tt.target), parse(t, tt.source)
			opts := defaultOptions()
			deg, err := graftExclusive(target, source, ExclusiveB, newStopwatch(&opts))
			if err != nil {
				t.Fatalf("graftExclusive: %v", err)
			}
			if deg != tt.degenerate {
				t.Errorf("degenerate = %v, want %v", deg, tt.degenerate)
			}
			if got := target.Newick(); got != tt.want {
				t.Errorf("target = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestScenarioOneExclusiveEach(t *testing.T) {
	t.Parallel()

	c := compare(t, "((1,2),(3,4));", "((5,2),(3,4));")
	for _, get := range []func() (*Result, error){c.EFRooted, c.OptimalRooted} {
		r, err := get()
		if err != nil {
			t.Fatal(err)
		}
		if r.UnionSize != 5 || r.IntersectionSize() != 3 {
			t.Errorf("union/intersection = %d/%d, want 5/3", r.UnionSize, r.IntersectionSize())
		}
		if !r.EFExists {
			t.Error("EFExists = false, want true")
		}
		if got := r.First.Newick(); got != "((1,(5,2)),(3,4));" {
			t.Errorf("First = %s", got)
		}
		if got := r.Second.Newick(); got != "((3,4),(1,(5,2)));" {
			t.Errorf("Second = %s", got)
		}
		if d := distance(t, r); d != 0 {
			t.Errorf("distance = %d, want 0 (optimal=%v)", d, r.Optimal)
		}
	}
}

func TestScenarioNoSharedLeaves(t *testing.T) {
	t.Parallel()

	c := compare(t, "(1,2);", "(3,4);")
	ef, err := c.EFRooted()
	if err != nil {
		t.Fatal(err)
	}
	if ef.EFExists {
		t.Error("EFExists = true, want false")
	}
	if got, want := ef.First.Newick(), "((1,2),(3,4));"; got != want {
		t.Errorf("EF First = %s, want %s", got, want)
	}
	if got, want := ef.Second.Newick(), "((3,4),(1,2));"; got != want {
		t.Errorf("EF Second = %s, want %s", got, want)
	}
	if ef.IntersectionSize() != 0 || ef.UnionSize != 4 {
		t.Errorf("union/intersection = %d/%d, want 4/0", ef.UnionSize, ef.IntersectionSize())
	}

	opt, err := c.OptimalRooted()
	if err != nil {
		t.Fatal(err)
	}
	if opt.EFExists {
		t.Error("optimal EFExists = true, want false")
	}
	if got, want := opt.First.Newick(), "((3,4),(1,2));"; got != want {
		t.Errorf("optimal First = %s, want %s", got, want)
	}
	if d := distance(t, opt); d != 0 {
		t.Errorf("optimal distance = %d, want 0", d)
	}

	u, err := c.OptimalUnrooted()
	if err != nil {
		t.Fatal(err)
	}
	if u.Rooted || u.Outgroup != "" {
		t.Errorf("unrooted fallback: Rooted=%v Outgroup=%q", u.Rooted, u.Outgroup)
	}
	if d := distance(t, u); d != 0 {
		t.Errorf("unrooted distance = %d, want 0", d)
	}
}

func TestScenarioLargerFirstInput(t *testing.T) {
	t.Parallel()

	c := compare(t, "(((1,2),3),(4,5));", "((1,2),(6,4));")
	r, err := c.EFRooted()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := r.First.Newick(), "(((1,2),3),(6,(4,5)));"; got != want {
		t.Errorf("First = %s, want %s", got, want)
	}
	if got, want := r.Second.Newick(), "((6,(5,4)),(3,(1,2)));"; got != want {
		t.Errorf("Second = %s, want %s", got, want)
	}
	if r.ExclusiveFirst != 2 || r.ExclusiveSecond != 1 {
		t.Errorf("exclusive counts = %d/%d, want 2/1", r.ExclusiveFirst, r.ExclusiveSecond)
	}
	if d := distance(t, r); d != 0 {
		t.Errorf("distance = %d, want 0", d)
	}
}

func TestIdentityLeafSets(t *testing.T) {
	t.Parallel()

	a, b := "(((a,b),c),(d,e));", "((a,(b,c)),(d,e));"
	c := compare(t, a, b)
	for _, get := range []func() (*Result, error){c.EFRooted, c.OptimalRooted} {
		r, err := get()
		if err != nil {
			t.Fatal(err)
		}
		if r.First.Newick() != a || r.Second.Newick() != b {
			t.Errorf("completions changed the inputs: %s %s", r.First, r.Second)
		}
		if d := distance(t, r); d != 2 {
			t.Errorf("distance = %d, want 2", d)
		}
	}
}

func TestUnrootedScenario(t *testing.T) {
	t.Parallel()

	c := compare(t, "((1,2),(3,4));", "((5,2),(3,4));")
	for _, get := range []func() (*Result, error){c.EFUnrooted, c.OptimalUnrooted} {
		r, err := get()
		if err != nil {
			t.Fatal(err)
		}
		if r.Rooted {
			t.Error("Rooted = true")
		}
		if r.Outgroup != "2" {
			t.Errorf("Outgroup = %q, want 2", r.Outgroup)
		}
		if len(r.First.Children(r.First.Root())) != 3 {
			t.Errorf("root of %s is not a trifurcation", r.First)
		}
		if d := distance(t, r); d != 0 {
			t.Errorf("distance = %d, want 0", d)
		}
		if diff := cmp.Diff([]string{"1", "2", "3", "4", "5"}, sortedLabels(r.First)); diff != "" {
			t.Errorf("leaf set mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestSymmetry(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"((1,2),(3,4));", "((5,2),(3,4));"},
		{"((1,y),(2,3));", "((1,2),(z,3));"},
		{"(1,2);", "(3,4);"},
	}
	for _, p := range pairs {
		ab, ba := compare(t, p[0], p[1]), compare(t, p[1], p[0])
		r1, err := ab.OptimalRooted()
		if err != nil {
			t.Fatal(err)
		}
		r2, err := ba.OptimalRooted()
		if err != nil {
			t.Fatal(err)
		}
		if d1, d2 := distance(t, r1), distance(t, r2); d1 != d2 {
			t.Errorf("%s vs %s: distance %d one way, %d the other", p[0], p[1], d1, d2)
		}
	}
}

func TestResultsAreMemoized(t *testing.T) {
	t.Parallel()

	c := compare(t, "((1,2),(3,4));", "((5,2),(3,4));")
	calls := []struct {
		name string
		get  func() (*Result, error)
	}{
		{"EFRooted", c.EFRooted},
		{"EFUnrooted", c.EFUnrooted},
		{"OptimalRooted", c.OptimalRooted},
		{"OptimalUnrooted", c.OptimalUnrooted},
	}
	for _, call := range calls {
		first, err := call.get()
		if err != nil {
			t.Fatalf("%s: %v", call.name, err)
		}
		second, _ := call.get()
		if first != second {
			t.Errorf("%s returned a new result on the second call", call.name)
		}
	}
	ef, _ := c.EF(true)
	if ef2, _ := c.EFRooted(); ef != ef2 {
		t.Error("EF(true) and EFRooted disagree")
	}
}

func TestInputsNotModified(t *testing.T) {
	t.Parallel()

	a, b := parse(t, "((1,2),(3,4));"), parse(t, "((5,2),(3,4));")
	c, err := New(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.OptimalRooted(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.OptimalUnrooted(); err != nil {
		t.Fatal(err)
	}
	if a.Newick() != "((1,2),(3,4));" || b.Newick() != "((5,2),(3,4));" {
		t.Errorf("inputs modified: %s %s", a, b)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	unlabeled := tree.New()
	unlabeled.SetRoot(unlabeled.Join(unlabeled.AddNode("a"), unlabeled.AddNode("")))

	tests := []struct {
		name string
		a    *tree.Tree
	}{
		{"nil", nil},
		{"empty", tree.New()},
		{"multifurcating", parse(t, "(a,b,c);")},
		{"unlabeled leaf", unlabeled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.a, parse(t, "(a,b);"))
			if !errors.Is(err, ErrStructuralViolation) {
				t.Errorf("error = %v, want ErrStructuralViolation", err)
			}
		})
	}
}

type phaseLog map[string]int

func (p phaseLog) ObservePhase(phase string, _ time.Duration) { p[phase]++ }

func TestObserverAndClock(t *testing.T) {
	t.Parallel()

	tick := time.Unix(0, 0)
	clock := func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}
	seen := phaseLog{}
	c, err := New(parse(t, "((1,2),(3,4));"), parse(t, "((5,2),(3,4));"),
		WithObserver(seen), WithClock(clock), WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	r, err := c.OptimalRooted()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []Phase{PhaseIndex, PhaseColor, PhaseGraft, PhaseOptimize, PhaseReconstruct} {
		if seen[string(p)] == 0 {
			t.Errorf("phase %s never observed", p)
		}
	}
	if r.Timings.Optimize != time.Millisecond || r.Timings.Reconstruct != time.Millisecond {
		t.Errorf("timings = %+v, want one tick per phase", r.Timings)
	}
	if r.Elapsed <= 0 {
		t.Errorf("Elapsed = %v, want > 0", r.Elapsed)
	}
}

// randomTree builds a random binary tree over labels by joining random
// pairs of subtrees until one remains.
func randomTree(r *rand.Rand, labels []string) *tree.Tree {
	t := tree.New()
	var pool []tree.NodeID
	for _, l := range labels {
		pool = append(pool, t.AddNode(l))
	}
	for len(pool) > 1 {
		i := r.IntN(len(pool))
		a := pool[i]
		pool = slices.Delete(pool, i, i+1)
		j := r.IntN(len(pool))
		pool[j] = t.Join(a, pool[j])
	}
	t.SetRoot(pool[0])
	return t
}

// randomPair draws leaf sets with the given chance of a label being
// shared, so low values produce nested all-exclusive inputs.
func randomPair(r *rand.Rand, n int, shared float64) (*tree.Tree, *tree.Tree) {
	var a, b []string
	for i := range n {
		l := strconv.Itoa(i)
		switch x := r.Float64(); {
		case x < shared:
			a, b = append(a, l), append(b, l)
		case x < shared+(1-shared)/2:
			a = append(a, l)
		default:
			b = append(b, l)
		}
	}
	if len(a) == 0 {
		a = append(a, "a0")
	}
	if len(b) == 0 {
		b = append(b, "b0")
	}
	return randomTree(r, a), randomTree(r, b)
}

func TestRandomCompletions(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(2019, 42))
	for iter := range 300 {
		shared := []float64{0, 0.2, 0.5, 0.8}[iter%4]
		a, b := randomPair(r, 3+r.IntN(25), shared)
		union := make(map[string]struct{})
		for _, l := range a.LeafLabels() {
			union[l] = struct{}{}
		}
		for _, l := range b.LeafLabels() {
			union[l] = struct{}{}
		}
		want := make([]string, 0, len(union))
		for l := range union {
			want = append(want, l)
		}
		slices.Sort(want)

		for _, rooted := range []bool{true, false} {
			c, err := New(a, b)
			if err != nil {
				t.Fatalf("iter %d: New: %v", iter, err)
			}
			ef, err := c.EF(rooted)
			if err != nil {
				t.Fatalf("iter %d: EF(%v) on %s / %s: %v", iter, rooted, a, b, err)
			}
			opt, err := c.Optimal(rooted)
			if err != nil {
				t.Fatalf("iter %d: Optimal(%v) on %s / %s: %v", iter, rooted, a, b, err)
			}
			for _, res := range []*Result{ef, opt} {
				for _, tr := range []*tree.Tree{res.First, res.Second} {
					if got := sortedLabels(tr); !slices.Equal(got, want) {
						t.Fatalf("iter %d: completion %s misses leaves of %s / %s", iter, tr, a, b)
					}
					if rooted && !tr.IsBinary() {
						t.Fatalf("iter %d: completion %s is not binary", iter, tr)
					}
				}
			}
			de, do := distance(t, ef), distance(t, opt)
			if do > de {
				t.Fatalf("iter %d rooted=%v: optimal %d > EF %d for %s / %s", iter, rooted, do, de, a, b)
			}
			// The reconstructed trees realise exactly the change the
			// optimizer planned.
			if rooted && opt.EFExists && do != de+opt.change {
				t.Fatalf("iter %d: optimal %d, EF %d, planned change %d for %s / %s", iter, do, de, opt.change, a, b)
			}

			rc, err := New(b, a)
			if err != nil {
				t.Fatalf("iter %d: New reversed: %v", iter, err)
			}
			rev, err := rc.Optimal(rooted)
			if err != nil {
				t.Fatalf("iter %d: reversed Optimal(%v) on %s / %s: %v", iter, rooted, b, a, err)
			}
			if dr := distance(t, rev); dr != do {
				t.Fatalf("iter %d rooted=%v: optimal %d for %s / %s but %d reversed", iter, rooted, do, a, b, dr)
			}
		}
	}
}
