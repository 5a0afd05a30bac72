package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"plaque-dashboard/internal/domain/gallery"
)

// Messages shown to the user when the language model call fails.
const (
	MsgChatUnavailable = "Erreur : Assistant IA non configuré."
	MsgInvalidAPIKey   = "Erreur : Clé API invalide. Veuillez vérifier la configuration."
	MsgQuotaExceeded   = "Erreur : Quota API dépassé. Veuillez réessayer plus tard."
	MsgNetwork         = "Erreur de connexion. Vérifiez votre connexion internet."
	MsgModelMissing    = "Erreur : Modèle IA non disponible. Le service est temporairement indisponible."
)

type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatService answers questions about the gallery with a language model.
type ChatService struct {
	gen     TextGenerator
	log     zerolog.Logger
	now     func() time.Time
	mu      sync.Mutex
	history []ChatMessage
}

// NewChatService accepts a nil generator; every answer is then the
// "not configured" message.
func NewChatService(gen TextGenerator, log zerolog.Logger) *ChatService {
	return &ChatService{
		gen: gen,
		log: log,
		now: time.Now,
	}
}

// AnalyzeGalleryPlates always returns text for the user. Failures become a
// localized error message instead of an error value.
func (s *ChatService) AnalyzeGalleryPlates(ctx context.Context, items []gallery.Item, question string) string {
	if s.gen == nil {
		return MsgChatUnavailable
	}

	summary := PlatesSummary(items)
	prompt := buildPrompt(summary, question)

	s.log.Debug().
		Int("items", len(items)).
		Int("summary_chars", len(summary)).
		Msg("asking language model about gallery")

	answer, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.log.Error().Err(err).Msg("language model call failed")
		return ChatErrorMessage(err)
	}

	now := s.now()
	s.mu.Lock()
	s.history = append(s.history,
		ChatMessage{Role: RoleUser, Content: question, Timestamp: now},
		ChatMessage{Role: RoleAssistant, Content: answer, Timestamp: now},
	)
	s.mu.Unlock()

	return answer
}

func (s *ChatService) History() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage{}, s.history...)
}

func (s *ChatService) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// ChatErrorMessage maps a language model failure to the message shown to the user.
func ChatErrorMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "API_KEY"), strings.Contains(msg, "API key"):
		return MsgInvalidAPIKey
	case strings.Contains(msg, "quota"), strings.Contains(msg, "429"):
		return MsgQuotaExceeded
	case strings.Contains(msg, "network"), strings.Contains(msg, "fetch"):
		return MsgNetwork
	case strings.Contains(msg, "404"), strings.Contains(msg, "not found"):
		return MsgModelMissing
	default:
		return fmt.Sprintf("Erreur technique : %s. Veuillez réessayer.", msg)
	}
}

// PlatesSummary renders the gallery as the context block of the prompt.
func PlatesSummary(items []gallery.Item) string {
	if len(items) == 0 {
		return "Aucune plaque détectée dans la galerie."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Nombre total de plaques : %d\n\n", len(items))

	for i, item := range items {
		parts := strings.Split(item.PlateNumber, " | ")
		fmt.Fprintf(&b, "%d. Plaque: %s\n", i+1, segmentOrNA(parts, 0))
		fmt.Fprintf(&b, "   - Lettre arabe: %s\n", segmentOrNA(parts, 1))
		fmt.Fprintf(&b, "   - Code région: %s\n", segmentOrNA(parts, 2))
		fmt.Fprintf(&b, "   - Confiance: %s%%\n", formatNumber(item.Confidence))
		fmt.Fprintf(&b, "   - Date: %s\n", item.Datetime)
		fmt.Fprintf(&b, "   - Statut: %s\n", item.Status)
		fmt.Fprintf(&b, "   - Tags: %s\n\n", strings.Join(item.Tags, ", "))
	}
	return b.String()
}

func buildPrompt(summary, question string) string {
	return fmt.Sprintf(`Tu es un assistant expert en plaques d'immatriculation marocaines.

%s

Question: %s

Réponds en français de manière claire et utile. Si aucune plaque n'est disponible, explique les caractéristiques générales des plaques marocaines.`, summary, question)
}

func segmentOrNA(parts []string, i int) string {
	if i < len(parts) && parts[i] != "" {
		return parts[i]
	}
	return "N/A"
}

func formatNumber(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
