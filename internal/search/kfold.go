package search

import "fmt"

// Fold is one train/validation split, as row indices.
type Fold struct {
	Train []int
	Valid []int
}

// KFold splits n rows into k contiguous folds without shuffling. The first
// n%k folds get one extra row.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 || k > n {
		return nil, fmt.Errorf("%w: cannot split %d rows into %d folds", ErrFolds, n, k)
	}
	folds := make([]Fold, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size

		valid := make([]int, 0, size)
		train := make([]int, 0, n-size)
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				valid = append(valid, i)
			} else {
				train = append(train, i)
			}
		}
		folds[f] = Fold{Train: train, Valid: valid}
		start = end
	}
	return folds, nil
}
