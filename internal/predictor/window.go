package predictor

// Windows slices values into len(values)-seqLen consecutive windows of length
// seqLen, each labelled with the value right after it
func Windows(values []float64, seqLen int) ([][]float64, []float64) {
	n := len(values) - seqLen
	if seqLen < 1 || n < 1 {
		return nil, nil
	}
	inputs := make([][]float64, n)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		w := make([]float64, seqLen)
		copy(w, values[i:i+seqLen])
		inputs[i] = w
		labels[i] = values[i+seqLen]
	}
	return inputs, labels
}
