package allocation

// EqualWeights splits 10000 basis points across n members.
// Every member gets floor(10000/n); the 10000 mod n remainder goes one basis point
// at a time to the first members, so the sum is always exactly 10000.
func EqualWeights(n int) []int {
	if n <= 0 {
		return nil
	}

	base := TotalBasisPoints / n
	remainder := TotalBasisPoints % n

	weights := make([]int, n)
	for i := range weights {
		weights[i] = base
		if i < remainder {
			weights[i]++
		}
	}
	return weights
}
