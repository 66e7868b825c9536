package ledger

func powModulus(difficulty int) int64 {
	return 8 * int64(difficulty)
}

// ProofOfWork finds the smallest proof greater than previous such that
// (proof + previous) is a multiple of 8*difficulty.
func ProofOfWork(previous int64, difficulty int) int64 {
	modulus := powModulus(difficulty)
	proof := previous + 1
	for (proof+previous)%modulus != 0 {
		proof++
	}
	return proof
}

func ValidProofOfWork(proof, previous int64, difficulty int) bool {
	return (proof+previous)%powModulus(difficulty) == 0
}
