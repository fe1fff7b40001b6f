package features

// MemorySource serves arrays that are already in memory.
type MemorySource struct {
	Train *TrainSet
	Test  *TestSet
}

// LoadTrain returns the training set unchanged.
func (m *MemorySource) LoadTrain(lbYear, lbMon int) (*TrainSet, error) {
	if err := checkWidths(m.Train.Year, m.Train.Month, lbYear, lbMon); err != nil {
		return nil, err
	}
	return m.Train, m.Train.Validate()
}

// LoadTest returns the test set unchanged.
func (m *MemorySource) LoadTest(lbYear, lbMon int) (*TestSet, error) {
	if err := checkWidths(m.Test.Year, m.Test.Month, lbYear, lbMon); err != nil {
		return nil, err
	}
	return m.Test, m.Test.Validate()
}

func checkWidths(year, month [][]float64, lbYear, lbMon int) error {
	if _, err := Reshape(year, lbYear); err != nil {
		return err
	}
	_, err := Reshape(month, lbMon)
	return err
}
