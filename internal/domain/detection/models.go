package detection

// ReanalysisPrefix tags the upload id of a session whose image came from the gallery.
const ReanalysisPrefix = "reanalysis"

// UploadIDProcessing is the upload id of a fresh upload in flight.
const UploadIDProcessing = "processing"

type IntentKind string

const (
	IntentIdle        IntentKind = "idle"
	IntentFreshUpload IntentKind = "fresh_upload"
	IntentReanalyze   IntentKind = "reanalyze"
)

// Intent says what the next pipeline run should do with the session image.
// SourceImage and PlateHint are only set for IntentReanalyze.
type Intent struct {
	Kind        IntentKind `json:"kind"`
	SourceImage string     `json:"-"`
	PlateHint   string     `json:"plate_hint,omitempty"`
}

type CharacterScore struct {
	Character  string  `json:"character"`
	Confidence float64 `json:"confidence"`
}

type OCRResult struct {
	PlateNumber  string           `json:"plate_number"`
	RegionCode   string           `json:"region_code"`
	ArabicLetter string           `json:"arabic_letter"`
	RegionName   string           `json:"region_name"`
	Confidence   float64          `json:"confidence"`
	Segmentation []CharacterScore `json:"segmentation"`
}

type State struct {
	OriginalImage   *string    `json:"original_image"`
	DetectionResult *string    `json:"detection_result"`
	OCRResult       *OCRResult `json:"ocr_result"`
	IsProcessing    bool       `json:"is_processing"`
	PlateImages     []string   `json:"plate_images"`
	UploadID        *string    `json:"upload_id"`
	Intent          Intent     `json:"intent"`
}

// Patch carries the fields to merge into a State. Nil fields are left alone.
type Patch struct {
	OriginalImage   *string
	DetectionResult *string
	OCRResult       *OCRResult
	IsProcessing    *bool
	PlateImages     []string
	UploadID        *string
}

func InitialState() State {
	return State{
		PlateImages: []string{},
		Intent:      Intent{Kind: IntentIdle},
	}
}

// ReanalysisUploadID builds the display upload id for a gallery reanalysis.
func ReanalysisUploadID(plateHint string) string {
	if plateHint == "" {
		return ReanalysisPrefix
	}
	return ReanalysisPrefix + "-" + plateHint
}
