package pricing

// TrainingMetadata is the nested block the trainer attaches to a fitted
// WeightConfig before it is persisted.
type TrainingMetadata struct {
	TimestampUTC          string             `json:"timestamp_utc"`
	Dataset               string             `json:"dataset"`
	RowsTotal             int                `json:"rows_total"`
	RowsParsed            int                `json:"rows_parsed"`
	RowsTrain             int                `json:"rows_train"`
	RowsVal               int                `json:"rows_val"`
	RowsFeatures          int                `json:"rows_features"`
	RowsDropped           int                `json:"rows_dropped"`
	RowsValScored         int                `json:"rows_val_scored"`
	RidgeLambda           float64            `json:"ridge_lambda"`
	ValSplit              float64            `json:"val_split"`
	Seed                  uint64             `json:"seed"`
	Features              []string           `json:"features"`
	RawCoefficients       map[string]float64 `json:"raw_coefficients,omitempty"`
	MetricsVal            ValidationMetrics  `json:"metrics_val"`
	ConfidenceCalibration Calibration        `json:"confidence_calibration"`
	Warnings              []string           `json:"warnings,omitempty"`
}

// ValidationMetrics holds held-out error metrics.
type ValidationMetrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
}

// Calibration relates stated confidence to observed absolute error.
type Calibration struct {
	// PearsonRConfAbsError is nil when fewer than two rows or zero variance.
	PearsonRConfAbsError *float64            `json:"pearson_r_conf_abs_error"`
	Quartiles            []CalibrationBucket `json:"quartiles"`
}

// CalibrationBucket is one confidence-ordered slice of validation rows.
type CalibrationBucket struct {
	AvgConfidence float64 `json:"avg_confidence"`
	MAE           float64 `json:"mae"`
	N             int     `json:"n"`
}
