package gallery

import (
	"strings"

	"plaque-dashboard/internal/domain/detection"
)

const (
	// MockIDPrefix marks demonstration records that must stay out of real statistics.
	MockIDPrefix = "mock-"

	StatusAnalyzed = "Analysé"
	DefaultModel   = "YOLOv3"
)

type Item struct {
	ID             string               `json:"id"`
	Thumbnail      string               `json:"thumbnail"`
	PlateNumber    string               `json:"plate_number"`
	Confidence     float64              `json:"confidence"`
	Datetime       string               `json:"datetime"`
	ModelName      string               `json:"model_name"`
	Tags           []string             `json:"tags"`
	Status         string               `json:"status"`
	IsFavorite     bool                 `json:"is_favorite"`
	OriginalImage  string               `json:"original_image,omitempty"`
	DetectionImage string               `json:"detection_image,omitempty"`
	OCRResult      *detection.OCRResult `json:"ocr_result,omitempty"`
	ProcessingTime *float64             `json:"processing_time,omitempty"`
}

// IsMock reports whether the item is seeded demonstration data.
func (i Item) IsMock() bool {
	return strings.HasPrefix(i.ID, MockIDPrefix)
}

// NewItem is an item before the store assigns id, datetime and favorite flag.
type NewItem struct {
	Thumbnail      string
	PlateNumber    string
	Confidence     float64
	ModelName      string
	Tags           []string
	Status         string
	OriginalImage  string
	DetectionImage string
	OCRResult      *detection.OCRResult
	ProcessingTime *float64
}

type Filter struct {
	Search        string
	Model         string
	FavoritesOnly bool
}

type KPIs struct {
	TotalDetections       int     `json:"total_detections"`
	AverageConfidence     float64 `json:"average_confidence"`
	SuccessRate           float64 `json:"success_rate"`
	AverageProcessingTime float64 `json:"average_processing_time"`
	Favorites             int     `json:"favorites"`
}

func float(v float64) *float64 {
	return &v
}

// Seed returns the demonstration records shown on first run.
func Seed() []Item {
	return []Item{
		{
			ID:             MockIDPrefix + "1",
			Thumbnail:      "/placeholder.svg?height=200&width=300",
			PlateNumber:    "90120 | ي | 72",
			Confidence:     98.5,
			Datetime:       "2024-01-15 14:30:25",
			ModelName:      DefaultModel,
			Tags:           []string{"commercial", "Casablanca"},
			Status:         StatusAnalyzed,
			IsFavorite:     true,
			ProcessingTime: float(1.2),
		},
		{
			ID:             MockIDPrefix + "2",
			Thumbnail:      "/placeholder.svg?height=200&width=300",
			PlateNumber:    "45678 | ب | 10",
			Confidence:     94.2,
			Datetime:       "2024-01-15 13:45:12",
			ModelName:      DefaultModel,
			Tags:           []string{"private", "Rabat"},
			Status:         StatusAnalyzed,
			IsFavorite:     false,
			ProcessingTime: float(0.8),
		},
	}
}
