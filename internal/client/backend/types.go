package backend

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type PlateDetection struct {
	PlateIndex int    `json:"plate_index"`
	PlateImage string `json:"plate_image"`
}

type DetectionResponse struct {
	Status         string           `json:"status"`
	OriginalImage  string           `json:"original_image"`
	DetectionImage string           `json:"detection_image"`
	Detection      []PlateDetection `json:"detection"`
}

type VideoResponse struct {
	Status         string   `json:"status"`
	OriginalImage  string   `json:"original_image,omitempty"`
	DetectionImage string   `json:"detection_image,omitempty"`
	PlateImages    []string `json:"plate_images,omitempty"`
}

type OCRRequest struct {
	PlateImage string `json:"plate_image"`
	Lang       string `json:"lang"`
}

type OCRResponse struct {
	Status         string `json:"status"`
	PlateText      string `json:"plate_text"`
	SegmentedImage string `json:"segmented_image"`
}

type ChangeType string

const (
	ChangePositive ChangeType = "positive"
	ChangeNegative ChangeType = "negative"
	ChangeNeutral  ChangeType = "neutral"
)

type StatValue struct {
	Value      float64    `json:"value"`
	Change     string     `json:"change"`
	ChangeType ChangeType `json:"changeType"`
}

type StatsSource string

const (
	SourceBackend     StatsSource = "backend"
	SourceFallback    StatsSource = "fallback"
	SourceUnavailable StatsSource = "unavailable"
)

type DashboardStats struct {
	TotalDetections StatValue   `json:"totalDetections"`
	AverageAccuracy StatValue   `json:"averageAccuracy"`
	AverageTime     StatValue   `json:"averageTime"`
	SuccessRate     StatValue   `json:"successRate"`
	Source          StatsSource `json:"source"`
}

type ROCCurve struct {
	FPR []float64 `json:"fpr"`
	TPR []float64 `json:"tpr"`
	AUC float64   `json:"auc"`
}

type DetectionMetrics struct {
	Accuracy        float64     `json:"accuracy"`
	Precision       float64     `json:"precision"`
	Recall          float64     `json:"recall"`
	F1Score         float64     `json:"f1_score"`
	FPS             float64     `json:"fps"`
	ConfusionMatrix [][]float64 `json:"confusion_matrix"`
	ROCCurve        ROCCurve    `json:"roc_curve"`
	ProcessingTimes []float64   `json:"processing_times"`
}

type OCRMetrics struct {
	Accuracy          float64   `json:"accuracy"`
	Precision         float64   `json:"precision"`
	Recall            float64   `json:"recall"`
	F1Score           float64   `json:"f1_score"`
	CharacterAccuracy float64   `json:"character_accuracy"`
	ProcessingTimes   []float64 `json:"processing_times"`
}

type Metrics struct {
	Detection DetectionMetrics `json:"detection"`
	OCR       OCRMetrics       `json:"ocr"`
}
