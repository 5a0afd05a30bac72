package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"plaque-dashboard/internal/client/backend"
	"plaque-dashboard/internal/domain/detection"
	"plaque-dashboard/internal/domain/gallery"
	"plaque-dashboard/internal/domain/plate"
	"plaque-dashboard/internal/utils"
)

const (
	statusSuccess = "success"

	imageConfidence = 96.8
	videoConfidence = 94.5

	VideoPlateLabel = "Détection vidéo"
	TagAutomatic    = "Détection automatique"
	TagVideo        = "Vidéo"
)

type DetectionBackend interface {
	UploadImage(ctx context.Context, filename string, r io.Reader) (*backend.DetectionResponse, error)
	UploadVideo(ctx context.Context, filename string, r io.Reader) (*backend.VideoResponse, error)
	PerformOCR(ctx context.Context, plateImageBase64, lang string) (*backend.OCRResponse, error)
}

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeNoPlate   Outcome = "no_plate"
	OutcomeOCRFailed Outcome = "ocr_failed"
)

// ProcessResult is what the user is told after one pipeline run. Outcomes
// other than success are normal results, not errors.
type ProcessResult struct {
	Outcome     Outcome              `json:"outcome"`
	Title       string               `json:"title"`
	Message     string               `json:"message"`
	PlateText   string               `json:"plate_text,omitempty"`
	Plate       *plate.Record        `json:"plate,omitempty"`
	GalleryItem *gallery.Item        `json:"gallery_item,omitempty"`
	OCR         *detection.OCRResult `json:"ocr_result,omitempty"`
	Session     detection.State      `json:"session"`

	// ReanalysisOf is the plate text of the record being reanalysed.
	ReanalysisOf string `json:"reanalysis_of,omitempty"`
}

type DetectionService struct {
	backend DetectionBackend
	session *DetectionSession
	gallery *GalleryService
	ocrLang string
	rnd     func() float64
	now     func() time.Time
	log     zerolog.Logger
}

func NewDetectionService(
	b DetectionBackend,
	session *DetectionSession,
	galleryService *GalleryService,
	ocrLang string,
	log zerolog.Logger,
) *DetectionService {
	return &DetectionService{
		backend: b,
		session: session,
		gallery: galleryService,
		ocrLang: ocrLang,
		rnd:     rand.Float64,
		now:     time.Now,
		log:     log,
	}
}

// ProcessImage runs detect, then OCR on the first plate, and records a
// successful read in the gallery.
func (s *DetectionService) ProcessImage(ctx context.Context, filename string, data []byte) (*ProcessResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}

	start := s.now()
	imageURL := utils.JPEGDataURL(base64.StdEncoding.EncodeToString(data))
	s.session.BeginUpload(imageURL)

	det, err := s.backend.UploadImage(ctx, filename, bytes.NewReader(data))
	if err != nil {
		s.session.Update(detection.Patch{IsProcessing: boolPtr(false)})
		s.log.Error().Err(err).Str("filename", filename).Msg("detection request failed")
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if det.Status != statusSuccess || len(det.Detection) == 0 {
		s.session.Update(detection.Patch{IsProcessing: boolPtr(false)})
		s.log.Info().Str("filename", filename).Str("status", det.Status).Msg("no plate detected")
		return &ProcessResult{
			Outcome: OutcomeNoPlate,
			Title:   "Aucune plaque détectée",
			Message: "Aucune plaque d'immatriculation trouvée dans l'image",
			Session: s.session.State(),
		}, nil
	}

	detectionURL := utils.JPEGDataURL(det.DetectionImage)
	plateImages := make([]string, 0, len(det.Detection))
	for _, d := range det.Detection {
		plateImages = append(plateImages, utils.JPEGDataURL(d.PlateImage))
	}
	s.session.Update(detection.Patch{
		DetectionResult: &detectionURL,
		PlateImages:     plateImages,
	})

	ocr, err := s.backend.PerformOCR(ctx, det.Detection[0].PlateImage, s.ocrLang)
	if err != nil {
		s.session.Update(detection.Patch{IsProcessing: boolPtr(false)})
		s.log.Error().Err(err).Str("filename", filename).Msg("ocr request failed")
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if ocr.Status != statusSuccess || ocr.PlateText == "" {
		s.session.Update(detection.Patch{IsProcessing: boolPtr(false)})
		s.log.Info().Str("filename", filename).Str("status", ocr.Status).Msg("ocr returned no text")
		return &ProcessResult{
			Outcome: OutcomeOCRFailed,
			Title:   "OCR échoué",
			Message: "Impossible de lire le texte de la plaque",
			Session: s.session.State(),
		}, nil
	}

	rec := plate.Parse(ocr.PlateText)
	ocrResult := s.buildOCRResult(rec)
	s.session.Update(detection.Patch{
		OCRResult:    &ocrResult,
		IsProcessing: boolPtr(false),
	})

	elapsed := s.now().Sub(start).Seconds()
	item := s.gallery.AddItem(ctx, gallery.NewItem{
		Thumbnail:      detectionURL,
		PlateNumber:    ocr.PlateText,
		Confidence:     imageConfidence,
		ModelName:      gallery.DefaultModel,
		Tags:           []string{rec.RegionName, TagAutomatic},
		Status:         gallery.StatusAnalyzed,
		OriginalImage:  imageURL,
		DetectionImage: detectionURL,
		OCRResult:      &ocrResult,
		ProcessingTime: positive(elapsed),
	})

	s.log.Info().
		Str("plate", ocr.PlateText).
		Str("region", rec.RegionName).
		Int("plates", len(det.Detection)).
		Str("gallery_id", item.ID).
		Msg("plate detected")

	return &ProcessResult{
		Outcome:     OutcomeSuccess,
		Title:       "Détection réussie",
		Message:     fmt.Sprintf("Plaque détectée: %s - Ajoutée à la galerie", ocr.PlateText),
		PlateText:   ocr.PlateText,
		Plate:       &rec,
		GalleryItem: &item,
		OCR:         &ocrResult,
		Session:     s.session.State(),
	}, nil
}

// ProcessVideo uploads a clip and records the annotated frame in the gallery.
func (s *DetectionService) ProcessVideo(ctx context.Context, filename string, data []byte) (*ProcessResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: video is empty", ErrInvalidInput)
	}

	start := s.now()
	s.session.Update(detection.Patch{IsProcessing: boolPtr(true)})

	res, err := s.backend.UploadVideo(ctx, filename, bytes.NewReader(data))
	if err != nil {
		s.session.Update(detection.Patch{IsProcessing: boolPtr(false)})
		s.log.Error().Err(err).Str("filename", filename).Msg("video upload failed")
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if res.Status != statusSuccess {
		s.session.Update(detection.Patch{IsProcessing: boolPtr(false)})
		return &ProcessResult{
			Outcome: OutcomeNoPlate,
			Title:   "Aucune plaque détectée",
			Message: "Aucune plaque trouvée dans la vidéo",
			Session: s.session.State(),
		}, nil
	}

	if res.DetectionImage == "" {
		s.session.Update(detection.Patch{IsProcessing: boolPtr(false)})
		return &ProcessResult{
			Outcome: OutcomeNoPlate,
			Title:   "Vidéo traitée avec succès",
			Message: "Aucune plaque trouvée",
			Session: s.session.State(),
		}, nil
	}

	originalURL := utils.JPEGDataURL(res.OriginalImage)
	detectionURL := utils.JPEGDataURL(res.DetectionImage)
	plateImages := make([]string, 0, len(res.PlateImages))
	for _, img := range res.PlateImages {
		plateImages = append(plateImages, utils.JPEGDataURL(img))
	}
	s.session.Update(detection.Patch{
		OriginalImage:   &originalURL,
		DetectionResult: &detectionURL,
		PlateImages:     plateImages,
		IsProcessing:    boolPtr(false),
	})

	item := s.gallery.AddItem(ctx, gallery.NewItem{
		Thumbnail:      detectionURL,
		PlateNumber:    VideoPlateLabel,
		Confidence:     videoConfidence,
		ModelName:      gallery.DefaultModel,
		Tags:           []string{TagVideo, TagAutomatic},
		Status:         gallery.StatusAnalyzed,
		OriginalImage:  originalURL,
		DetectionImage: detectionURL,
		ProcessingTime: positive(s.now().Sub(start).Seconds()),
	})

	s.log.Info().
		Str("filename", filename).
		Int("plates", len(res.PlateImages)).
		Str("gallery_id", item.ID).
		Msg("video processed")

	return &ProcessResult{
		Outcome:     OutcomeSuccess,
		Title:       "Vidéo traitée avec succès",
		Message:     "Plaque détectée dans la vidéo - Ajoutée à la galerie",
		GalleryItem: &item,
		Session:     s.session.State(),
	}, nil
}

// RunPendingReanalysis consumes an armed reanalysis, if any. ran=false means
// nothing was pending.
func (s *DetectionService) RunPendingReanalysis(ctx context.Context) (result *ProcessResult, ran bool, err error) {
	intent, ok := s.session.TakeReanalysis()
	if !ok {
		return nil, false, nil
	}

	data, _, err := utils.DecodeDataURL(intent.SourceImage)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	s.log.Info().Str("plate_hint", intent.PlateHint).Int("bytes", len(data)).Msg("running reanalysis")
	result, err = s.ProcessImage(ctx, "reanalysis.jpg", data)
	if result != nil {
		result.ReanalysisOf = intent.PlateHint
	}
	return result, true, err
}

// Reanalyze sends a gallery record's image back through the pipeline.
func (s *DetectionService) Reanalyze(ctx context.Context, galleryID string) (*ProcessResult, error) {
	item, ok := s.gallery.GetItemByID(galleryID)
	if !ok {
		return nil, fmt.Errorf("%w: gallery item %s", ErrNotFound, galleryID)
	}

	image := firstNonEmpty(item.OriginalImage, item.DetectionImage, item.Thumbnail)
	if image == "" {
		return nil, fmt.Errorf("%w: gallery item %s has no stored image", ErrInvalidInput, galleryID)
	}

	s.session.SetForReanalysis(image, item.PlateNumber)

	result, _, err := s.RunPendingReanalysis(ctx)
	return result, err
}

func (s *DetectionService) buildOCRResult(rec plate.Record) detection.OCRResult {
	seg := make([]detection.CharacterScore, 0, len(rec.Number))
	for _, ch := range rec.Number {
		seg = append(seg, detection.CharacterScore{
			Character:  string(ch),
			Confidence: 95 + s.rnd()*5,
		})
	}
	return detection.OCRResult{
		PlateNumber:  rec.Number,
		RegionCode:   rec.RegionCode,
		ArabicLetter: rec.ArabicLetter,
		RegionName:   rec.RegionName,
		Confidence:   imageConfidence,
		Segmentation: seg,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func positive(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
