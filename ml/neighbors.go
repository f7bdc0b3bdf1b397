package ml

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const KindKNeighbors = "k_neighbors"

const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// KNeighbors predicts the (optionally distance weighted) mean target of the
// nearest training rows by euclidean distance.
type KNeighbors struct {
	nNeighbors int
	weights    string

	Rows    [][]float64 `json:"rows"`
	Targets []float64   `json:"targets"`
}

// NewKNeighbors returns a uniform 5-neighbour regressor.
func NewKNeighbors() *KNeighbors {
	return &KNeighbors{nNeighbors: 5, weights: WeightsUniform}
}

func (kn *KNeighbors) Kind() string { return KindKNeighbors }

func (kn *KNeighbors) Params() Params {
	return Params{"n_neighbors": kn.nNeighbors, "weights": kn.weights}
}

func (kn *KNeighbors) SetParams(params Params) error {
	for name, value := range params {
		switch name {
		case "n_neighbors":
			v, err := paramInt(name, value)
			if err != nil {
				return err
			}
			if v < 1 {
				return fmt.Errorf("parameter %q must be >= 1", name)
			}
			kn.nNeighbors = v
		case "weights":
			v, err := paramString(name, value)
			if err != nil {
				return err
			}
			if v != WeightsUniform && v != WeightsDistance {
				return fmt.Errorf("parameter %q must be %q or %q", name, WeightsUniform, WeightsDistance)
			}
			kn.weights = v
		default:
			return unknownParam(kn.Kind(), name)
		}
	}
	return nil
}

func (kn *KNeighbors) Fit(X mat.Matrix, y []float64) error {
	if _, _, err := checkTrainingSet(X, y); err != nil {
		return err
	}
	kn.Rows = toRows(X)
	kn.Targets = append([]float64(nil), y...)
	return nil
}

func (kn *KNeighbors) Predict(X mat.Matrix) ([]float64, error) {
	if len(kn.Rows) == 0 {
		return nil, errNotFitted
	}
	rows, cols := X.Dims()
	if cols != len(kn.Rows[0]) {
		return nil, fmt.Errorf("k neighbors: expected %d features, got %d", len(kn.Rows[0]), cols)
	}

	k := kn.nNeighbors
	if k > len(kn.Rows) {
		k = len(kn.Rows)
	}
	type neighbor struct {
		dist   float64
		target float64
	}
	candidates := make([]neighbor, len(kn.Rows))
	out := make([]float64, rows)

	for i := 0; i < rows; i++ {
		query := mat.Row(nil, i, X)
		for j, row := range kn.Rows {
			candidates[j] = neighbor{dist: floats.Distance(query, row, 2), target: kn.Targets[j]}
		}
		sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].dist < candidates[b].dist })
		nearest := candidates[:k]

		if kn.weights == WeightsDistance {
			dists := make([]float64, k)
			targets := make([]float64, k)
			for j, n := range nearest {
				dists[j], targets[j] = n.dist, n.target
			}
			out[i] = distanceWeighted(dists, targets)
			continue
		}
		sum := 0.0
		for _, n := range nearest {
			sum += n.target
		}
		out[i] = sum / float64(k)
	}
	return out, nil
}

// distanceWeighted averages targets by inverse distance. Exact matches, when
// present, take all the weight.
func distanceWeighted(dists, targets []float64) float64 {
	var sum, weight float64
	exact := floats.Min(dists) == 0
	for i, d := range dists {
		switch {
		case exact && d == 0:
			sum += targets[i]
			weight++
		case !exact:
			sum += targets[i] / d
			weight += 1 / d
		}
	}
	return sum / weight
}
