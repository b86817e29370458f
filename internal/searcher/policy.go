package searcher

// Relevance policy. score = VectorWeight*cosine + ExactMatchWeight*substring + OverlapWeight*tokenOverlap,
// and results scoring below max(MinRelevanceFloor, top*RelativeFloorRatio) are dropped.
const (
	VectorWeight     = 0.70
	ExactMatchWeight = 0.20
	OverlapWeight    = 0.10

	MinRelevanceFloor  = 0.10
	RelativeFloorRatio = 0.25
)

// RelevanceThreshold returns the cutoff for a result set whose best score is topScore
func RelevanceThreshold(topScore float64) float64 {
	return max(MinRelevanceFloor, topScore*RelativeFloorRatio)
}
