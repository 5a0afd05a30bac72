package service

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"plaque-dashboard/internal/domain/detection"
	"plaque-dashboard/internal/domain/gallery"
	"plaque-dashboard/internal/utils"
)

// DatetimeLayout is the fr-FR numeric date and time used for gallery records.
const DatetimeLayout = "02/01/2006 15:04:05"

type GallerySnapshotStore interface {
	LoadSnapshot(ctx context.Context, namespace string) ([]gallery.Item, bool, error)
	SaveSnapshot(ctx context.Context, namespace string, items []gallery.Item) error
}

type GalleryOption func(*GalleryService)

func WithClock(now func() time.Time) GalleryOption {
	return func(s *GalleryService) { s.now = now }
}

// WithRandom sets the source of default processing times, a value in [0,1).
func WithRandom(rnd func() float64) GalleryOption {
	return func(s *GalleryService) { s.rnd = rnd }
}

func WithSeed(seed bool) GalleryOption {
	return func(s *GalleryService) { s.seed = seed }
}

// GalleryService owns the detection history, most recent first.
type GalleryService struct {
	// saveMu is taken before mu by every mutation and held until the
	// snapshot is stored, so snapshots reach the store in mutation order.
	saveMu    sync.Mutex
	mu        sync.RWMutex
	items     []gallery.Item
	store     GallerySnapshotStore
	namespace string
	seed      bool
	now       func() time.Time
	rnd       func() float64
	log       zerolog.Logger
}

func NewGalleryService(store GallerySnapshotStore, namespace string, log zerolog.Logger, opts ...GalleryOption) *GalleryService {
	s := &GalleryService{
		store:     store,
		namespace: namespace,
		seed:      true,
		now:       time.Now,
		rnd:       rand.Float64,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed {
		s.items = gallery.Seed()
	} else {
		s.items = []gallery.Item{}
	}
	return s
}

// Load replaces the in-memory list with the persisted snapshot, if any.
func (s *GalleryService) Load(ctx context.Context) error {
	items, found, err := s.store.LoadSnapshot(ctx, s.namespace)
	if err != nil {
		return fmt.Errorf("failed to load gallery: %w", err)
	}
	if !found {
		s.log.Info().
			Str("namespace", s.namespace).
			Int("seed_items", len(s.Items())).
			Msg("no gallery snapshot, starting from seed")
		return nil
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	s.log.Info().
		Str("namespace", s.namespace).
		Int("items", len(items)).
		Msg("gallery restored")
	return nil
}

func (s *GalleryService) Items() []gallery.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items)
}

func (s *GalleryService) AddItem(ctx context.Context, in gallery.NewItem) gallery.Item {
	now := s.now()

	item := gallery.Item{
		ID:             newItemID(now),
		Thumbnail:      in.Thumbnail,
		PlateNumber:    in.PlateNumber,
		Confidence:     in.Confidence,
		Datetime:       now.Format(DatetimeLayout),
		ModelName:      in.ModelName,
		Tags:           append([]string{}, in.Tags...),
		Status:         in.Status,
		IsFavorite:     false,
		OriginalImage:  in.OriginalImage,
		DetectionImage: in.DetectionImage,
		ProcessingTime: in.ProcessingTime,
	}
	if in.OCRResult != nil {
		item.OCRResult = cloneOCR(in.OCRResult)
	}
	if item.ProcessingTime == nil || *item.ProcessingTime == 0 {
		pt := s.rnd()*2 + 0.5
		item.ProcessingTime = &pt
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	s.items = append([]gallery.Item{item}, s.items...)
	snapshot := cloneItems(s.items)
	s.mu.Unlock()

	s.log.Info().
		Str("id", item.ID).
		Str("plate", item.PlateNumber).
		Float64("confidence", item.Confidence).
		Msg("gallery item added")

	s.persist(ctx, snapshot)
	return cloneItem(item)
}

// ToggleFavorite returns found=false and changes nothing for an unknown id.
func (s *GalleryService) ToggleFavorite(ctx context.Context, id string) (gallery.Item, bool) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return gallery.Item{}, false
	}
	s.items[idx].IsFavorite = !s.items[idx].IsFavorite
	item := cloneItem(s.items[idx])
	snapshot := cloneItems(s.items)
	s.mu.Unlock()

	s.log.Debug().Str("id", id).Bool("favorite", item.IsFavorite).Msg("gallery favorite toggled")
	s.persist(ctx, snapshot)
	return item, true
}

func (s *GalleryService) RemoveItem(ctx context.Context, id string) bool {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	snapshot := cloneItems(s.items)
	s.mu.Unlock()

	s.log.Info().Str("id", id).Msg("gallery item removed")
	s.persist(ctx, snapshot)
	return true
}

func (s *GalleryService) GetItemByID(id string) (gallery.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return gallery.Item{}, false
	}
	return cloneItem(s.items[idx]), true
}

// Filter matches search against the plate text (raw or normalized) and tags.
func (s *GalleryService) Filter(f gallery.Filter) []gallery.Item {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	normalizedSearch := utils.NormalizePlate(f.Search)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]gallery.Item, 0, len(s.items))
	for _, item := range s.items {
		if search != "" && !matchesSearch(item, search, normalizedSearch) {
			continue
		}
		if f.Model != "" && f.Model != "all" && item.ModelName != f.Model {
			continue
		}
		if f.FavoritesOnly && !item.IsFavorite {
			continue
		}
		out = append(out, cloneItem(item))
	}
	return out
}

// KPIs summarises the gallery for the dashboard. Seed records count towards
// averages but not towards the detection total.
func (s *GalleryService) KPIs() gallery.KPIs {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := gallery.KPIs{
		SuccessRate:           100,
		AverageProcessingTime: 1.0,
	}
	if len(s.items) == 0 {
		return k
	}

	var confidenceSum, timeSum float64
	var analyzed, timed int
	for _, item := range s.items {
		if !item.IsMock() {
			k.TotalDetections++
		}
		if item.IsFavorite {
			k.Favorites++
		}
		if item.Status == gallery.StatusAnalyzed {
			analyzed++
		}
		if item.ProcessingTime != nil {
			timed++
			timeSum += *item.ProcessingTime
		}
		confidenceSum += item.Confidence
	}

	n := float64(len(s.items))
	k.AverageConfidence = roundTo(confidenceSum/n, 1)
	k.SuccessRate = roundTo(float64(analyzed)/n*100, 1)
	if timed > 0 {
		k.AverageProcessingTime = roundTo(timeSum/float64(timed), 2)
	}
	return k
}

// persist must be called with saveMu held. The save outlives a cancelled
// request since the in-memory change has already been made.
func (s *GalleryService) persist(ctx context.Context, items []gallery.Item) {
	if err := s.store.SaveSnapshot(context.WithoutCancel(ctx), s.namespace, items); err != nil {
		s.log.Error().
			Err(err).
			Str("namespace", s.namespace).
			Int("items", len(items)).
			Msg("failed to persist gallery")
	}
}

// indexOf must be called with the lock held.
func (s *GalleryService) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func matchesSearch(item gallery.Item, search, normalized string) bool {
	if strings.Contains(strings.ToLower(item.PlateNumber), search) {
		return true
	}
	if normalized != "" && strings.Contains(utils.NormalizePlate(item.PlateNumber), normalized) {
		return true
	}
	for _, tag := range item.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}

func newItemID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("detection-%d-%s", now.UnixMilli(), suffix)
}

func cloneItem(item gallery.Item) gallery.Item {
	out := item
	out.Tags = append([]string{}, item.Tags...)
	if item.ProcessingTime != nil {
		pt := *item.ProcessingTime
		out.ProcessingTime = &pt
	}
	if item.OCRResult != nil {
		out.OCRResult = cloneOCR(item.OCRResult)
	}
	return out
}

func cloneOCR(r *detection.OCRResult) *detection.OCRResult {
	ocr := *r
	ocr.Segmentation = append([]detection.CharacterScore(nil), r.Segmentation...)
	return &ocr
}

func cloneItems(items []gallery.Item) []gallery.Item {
	out := make([]gallery.Item, len(items))
	for i, item := range items {
		out[i] = cloneItem(item)
	}
	return out
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
