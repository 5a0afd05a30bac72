package service

import (
	"sync"

	"plaque-dashboard/internal/domain/detection"
)

// DetectionSession is the in-progress detection workflow shared by the
// upload, gallery and reanalysis handlers.
type DetectionSession struct {
	mu    sync.Mutex
	state detection.State
}

func NewDetectionSession() *DetectionSession {
	return &DetectionSession{state: detection.InitialState()}
}

// State returns a copy that callers may keep.
func (s *DetectionSession) State() detection.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

// Update merges every non-nil field of patch into the current state.
func (s *DetectionSession) Update(patch detection.Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.OriginalImage != nil {
		s.state.OriginalImage = stringPtr(*patch.OriginalImage)
	}
	if patch.DetectionResult != nil {
		s.state.DetectionResult = stringPtr(*patch.DetectionResult)
	}
	if patch.OCRResult != nil {
		ocr := *patch.OCRResult
		s.state.OCRResult = &ocr
	}
	if patch.IsProcessing != nil {
		s.state.IsProcessing = *patch.IsProcessing
	}
	if patch.PlateImages != nil {
		s.state.PlateImages = append([]string{}, patch.PlateImages...)
	}
	if patch.UploadID != nil {
		s.state.UploadID = stringPtr(*patch.UploadID)
	}
}

func (s *DetectionSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = detection.InitialState()
}

// BeginUpload clears the previous run and marks a fresh upload in flight.
func (s *DetectionSession) BeginUpload(image string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = detection.InitialState()
	s.state.OriginalImage = stringPtr(image)
	s.state.UploadID = stringPtr(detection.UploadIDProcessing)
	s.state.IsProcessing = true
	s.state.Intent = detection.Intent{Kind: detection.IntentFreshUpload}
}

// SetForReanalysis loads a gallery image and arms a single reanalysis run.
func (s *DetectionSession) SetForReanalysis(image, plateHint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = detection.InitialState()
	s.state.OriginalImage = stringPtr(image)
	s.state.UploadID = stringPtr(detection.ReanalysisUploadID(plateHint))
	s.state.Intent = detection.Intent{
		Kind:        detection.IntentReanalyze,
		SourceImage: image,
		PlateHint:   plateHint,
	}
}

// TakeReanalysis hands out a pending reanalysis at most once and resets the
// session when it does.
func (s *DetectionSession) TakeReanalysis() (detection.Intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Intent.Kind != detection.IntentReanalyze {
		return detection.Intent{}, false
	}
	intent := s.state.Intent
	s.state = detection.InitialState()
	return intent, true
}

func copyState(st detection.State) detection.State {
	out := st
	if st.OriginalImage != nil {
		out.OriginalImage = stringPtr(*st.OriginalImage)
	}
	if st.DetectionResult != nil {
		out.DetectionResult = stringPtr(*st.DetectionResult)
	}
	if st.UploadID != nil {
		out.UploadID = stringPtr(*st.UploadID)
	}
	if st.OCRResult != nil {
		ocr := *st.OCRResult
		ocr.Segmentation = append([]detection.CharacterScore(nil), st.OCRResult.Segmentation...)
		out.OCRResult = &ocr
	}
	out.PlateImages = append([]string{}, st.PlateImages...)
	return out
}

func stringPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}
