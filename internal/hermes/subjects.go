package hermes

const (
	SubjectRecommendationCreated = "pricing.recommendation.created"
	SubjectModelTrained          = "pricing.model.trained"
	SubjectWeightsReloaded       = "pricing.weights.reloaded"

	StreamName   = "PRICING_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

// StreamSubjects are the subjects captured by the pricing stream.
var StreamSubjects = []string{"pricing.>"}
