package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driving"
)

// Ensure chatService implements ChatService
var _ driving.ChatService = (*chatService)(nil)

// chatService wraps the answer engine with translation and session history
type chatService struct {
	answers    driving.AnswerService
	detector   driven.LanguageDetector
	translator driven.Translator
	history    driven.ConversationStore
	logger     *zap.Logger
}

// NewChatService creates a new ChatService
func NewChatService(
	answers driving.AnswerService,
	detector driven.LanguageDetector,
	translator driven.Translator,
	history driven.ConversationStore,
	logger *zap.Logger,
) driving.ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &chatService{
		answers:    answers,
		detector:   detector,
		translator: translator,
		history:    history,
		logger:     logger,
	}
}

// Ask answers one user message
func (s *chatService) Ask(ctx context.Context, req driving.ChatRequest) (*domain.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.ErrEmptyQuestion
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.ChatModeStaged
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("unknown chat mode %q: %w", mode, domain.ErrInvalidInput)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = domain.GenerateID()
	}

	lang := s.detector.Detect(message)
	question := message
	if lang == domain.LanguageVietnamese {
		question = s.translate(ctx, message, domain.LanguageEnglish)
	}

	env, path, err := s.answer(ctx, mode, question)
	if err != nil {
		return nil, err
	}

	answer := env.Answer
	if lang == domain.LanguageVietnamese {
		answer = s.translate(ctx, answer, domain.LanguageVietnamese)
	}

	userMsg := domain.NewChatMessage(domain.ChatRoleUser, message, nil)
	assistantMsg := domain.NewChatMessage(domain.ChatRoleAssistant, answer, env.Sources)
	if err := s.history.Append(ctx, sessionID, userMsg, assistantMsg); err != nil {
		s.logger.Warn("failed to record chat history",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}

	return &domain.ChatResponse{
		SessionID: sessionID,
		Answer:    answer,
		Sources:   env.Sources,
		Groups:    domain.GroupSources(env.Sources),
		Language:  lang,
		Path:      path,
	}, nil
}

// answer runs the turn state machine for the given mode
func (s *chatService) answer(ctx context.Context, mode domain.ChatMode, question string) (*domain.AnswerEnvelope, domain.AnswerPath, error) {
	if mode == domain.ChatModeOneShot {
		env, err := s.answers.Answer(ctx, question)
		return env, domain.AnswerPathOneShot, err
	}

	start := time.Now()
	env, err := s.answers.SearchInSyllabus(ctx, question)
	if err == nil {
		return env, domain.AnswerPathSyllabus, nil
	}
	if !errors.Is(err, domain.ErrNotInSyllabus) {
		return nil, "", err
	}

	s.logger.Debug("not found in syllabus, falling back",
		zap.Duration("search_duration", time.Since(start)),
	)
	env, err = s.answers.SearchWithFallbackAndLearn(ctx, question)
	return env, domain.AnswerPathFallback, err
}

// translate returns text unchanged when translation fails
func (s *chatService) translate(ctx context.Context, text, lang string) string {
	out, err := s.translator.Translate(ctx, text, domain.LanguageName(lang))
	if err != nil {
		s.logger.Warn("translation failed, using original text",
			zap.String("target", lang),
			zap.Error(err),
		)
		return text
	}
	return out
}

// History returns the conversation, opened by the greeting
func (s *chatService) History(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	if sessionID == "" {
		return nil, domain.ErrInvalidInput
	}
	stored, err := s.history.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	greeting := &domain.ChatMessage{Role: domain.ChatRoleAssistant, Content: domain.GreetingMessage}
	if len(stored) > 0 {
		greeting.CreatedAt = stored[0].CreatedAt
	} else {
		greeting.CreatedAt = time.Now()
	}
	return append([]*domain.ChatMessage{greeting}, stored...), nil
}

// Reset clears a session
func (s *chatService) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrInvalidInput
	}
	return s.history.Clear(ctx, sessionID)
}
