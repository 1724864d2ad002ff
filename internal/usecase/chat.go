package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"barangay-helpdesk/internal/domain"
	"barangay-helpdesk/internal/intent"
	"barangay-helpdesk/internal/match"
)

const defaultMaxMessage = 500

// ReplySource says which layer produced a Reply.
type ReplySource string

const (
	SourceEssential ReplySource = "essential"
	SourceDataset   ReplySource = "dataset"
	SourceFallback  ReplySource = "fallback"
	// SourceRelayed marks a visitor message forwarded to staff; no bot text.
	SourceRelayed ReplySource = "relayed"
)

type IntentClassifier interface {
	Classify(utterance string) intent.Result
}

type Matcher interface {
	Resolve(ctx context.Context, utterance string) match.Result
}

// Reply is the bot's answer to one visitor message.
type Reply struct {
	Intent   string      `json:"intent,omitempty"`
	Response string      `json:"response,omitempty"`
	Category string      `json:"category,omitempty"`
	Source   ReplySource `json:"source"`
	Stage    match.Stage `json:"stage,omitempty"`
}

// ChatService answers visitor messages from the essential intents first and
// the dataset second.
type ChatService struct {
	filter        IntentClassifier
	engine        Matcher
	maxMessageLen int
	logger        *slog.Logger
}

func NewChatService(filter IntentClassifier, engine Matcher, maxMessageLen int, logger *slog.Logger) (*ChatService, error) {
	if filter == nil {
		return nil, errors.New("usecase: intent classifier must not be nil")
	}
	if engine == nil {
		return nil, errors.New("usecase: matcher must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		filter:        filter,
		engine:        engine,
		maxMessageLen: maxMessageLen,
		logger:        logger,
	}, nil
}

func (s *ChatService) Respond(ctx context.Context, utterance string) (Reply, error) {
	text, err := validateText(utterance, s.maxMessageLen)
	if err != nil {
		return Reply{}, err
	}

	if hit := s.filter.Classify(text); hit.Matched {
		s.logger.Debug("essential intent", "intent", hit.Intent)
		return Reply{Intent: hit.Intent, Response: hit.Response, Category: hit.Category, Source: SourceEssential}, nil
	}

	res := s.engine.Resolve(ctx, text)
	source := SourceDataset
	if res.Stage == match.StageFallback || res.Intent == domain.FallbackIntent {
		source = SourceFallback
	}
	s.logger.Debug("dataset match", "intent", res.Intent, "stage", res.Stage, "score", res.Score)
	return Reply{Intent: res.Intent, Response: res.Response, Source: source, Stage: res.Stage}, nil
}

func validateText(raw string, maxLen int) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(text) > maxLen {
		return "", newError(ErrorInvalidInput, "message_too_long", nil)
	}
	return text, nil
}
