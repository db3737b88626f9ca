package tracks

import "math"

// Forbidden marks a cost-matrix entry the solver must never select.
const Forbidden = 1e18

// HungarianAssign solves the rectangular min-cost assignment problem for
// an n×m cost matrix using Kuhn-Munkres with row/column potentials. It
// returns assign[i] = column matched to row i, or -1 when row i is left
// unmatched. Entries >= Forbidden are never selected.
func HungarianAssign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	if m == 0 {
		return assign
	}

	dim := max(n, m)

	// Padding and forbidden cells get a finite penalty that outweighs any
	// sum of real costs, keeping the potentials well inside float64
	// precision.
	var maxCost float64
	for _, row := range cost {
		for _, c := range row {
			if c < Forbidden {
				maxCost = max(maxCost, math.Abs(c))
			}
		}
	}
	penalty := 2 * (maxCost + 1) * float64(dim+1)
	at := func(i, j int) float64 {
		if i < n && j < m && cost[i][j] < Forbidden {
			return cost[i][j]
		}
		return penalty
	}

	const inf = math.MaxFloat64 / 2

	// 1-indexed; column 0 is the virtual source of each augmenting path.
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)
	way := make([]int, dim+1)
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1
			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := at(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				break
			}
			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	for j := 1; j <= dim; j++ {
		row, col := p[j]-1, j-1
		if row < 0 || row >= n || col >= m {
			continue
		}
		if cost[row][col] >= Forbidden {
			continue
		}
		assign[row] = col
	}
	return assign
}
