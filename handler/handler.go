package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"barangay-helpdesk/internal/domain"
	"barangay-helpdesk/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	sampleLimit       = 5
)

type ChatUseCase interface {
	Respond(ctx context.Context, utterance string) (usecase.Reply, error)
}

// IntentCatalog is the browsable view of the dataset.
type IntentCatalog interface {
	Load(ctx context.Context)
	Intents() []string
	SampleQueries(intent string, limit int) []string
}

type HandoffUseCase interface {
	OpenConversation(ctx context.Context, visitorName string) (domain.Conversation, error)
	SendVisitorMessage(ctx context.Context, in usecase.VisitorMessage) (domain.ChatMessage, error)
	Transcript(ctx context.Context, conversationID string) ([]domain.ChatMessage, error)
}

type StaffUseCase interface {
	Authorize(ctx context.Context, staffID string) (domain.Staff, error)
	ListUnassigned(ctx context.Context) []domain.Conversation
	ListAssignedTo(ctx context.Context, staffID string) []domain.Conversation
	RecentConversations(ctx context.Context, limit int) []domain.Conversation
	Claim(ctx context.Context, conversationID string, staff domain.Staff) error
	Unclaim(ctx context.Context, conversationID string, staff domain.Staff) error
	SendStaffMessage(ctx context.Context, conversationID, text string, staff domain.Staff) (domain.ChatMessage, error)
	EndSession(ctx context.Context, conversationID string, staff domain.Staff) error
	Messages(ctx context.Context, conversationID, staffID string) []domain.ChatMessage
}

// Services groups the use cases served over HTTP.
type Services struct {
	Chat    ChatUseCase
	Catalog IntentCatalog
	Handoff HandoffUseCase
	Staff   StaffUseCase
}

// Handler serves the helpdesk API behind an API Gateway proxy integration.
type Handler struct {
	svc    Services
	logger *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(svc Services, opts ...Option) (*Handler, error) {
	switch {
	case svc.Chat == nil:
		return nil, errors.New("handler: chat use case must not be nil")
	case svc.Catalog == nil:
		return nil, errors.New("handler: intent catalog must not be nil")
	case svc.Handoff == nil:
		return nil, errors.New("handler: handoff use case must not be nil")
	case svc.Staff == nil:
		return nil, errors.New("handler: staff use case must not be nil")
	}
	h := &Handler{svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Intent   string              `json:"intent"`
	Response string              `json:"response"`
	Source   usecase.ReplySource `json:"source"`
	Category string              `json:"category,omitempty"`
}

type intentSummary struct {
	Name    string   `json:"name"`
	Samples []string `json:"samples"`
}

type intentsResponse struct {
	Intents []intentSummary `json:"intents"`
}

type openConversationRequest struct {
	VisitorName string `json:"visitorName"`
}

type openConversationResponse struct {
	ConversationID string `json:"conversationId"`
	Notice         string `json:"notice"`
}

type messageRequest struct {
	Text        string `json:"text"`
	VisitorName string `json:"visitorName,omitempty"`
}

type transcriptResponse struct {
	Messages     []domain.ChatMessage `json:"messages"`
	SessionEnded bool                 `json:"sessionEnded"`
}

type conversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
}

type overviewResponse struct {
	Unassigned []domain.Conversation `json:"unassigned"`
	Assigned   []domain.Conversation `json:"assigned"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handle routes one API Gateway proxy request.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := headerValue(event.Headers, correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	logger := h.logger.With("correlationId", corrID, "method", event.HTTPMethod, "path", event.Path)

	status, body, err := h.route(ctx, event)
	if err != nil {
		status, body = h.failure(logger, err)
	}
	logger.Info("request handled", "status", status)
	return respond(status, body, corrID), nil
}

func (h *Handler) route(ctx context.Context, event events.APIGatewayProxyRequest) (int, any, error) {
	parts := strings.Split(strings.Trim(event.Path, "/"), "/")
	method := event.HTTPMethod

	switch {
	case match(parts, "chat") && method == http.MethodPost:
		return h.chat(ctx, event.Body)
	case match(parts, "chat", "intents") && method == http.MethodGet:
		return h.intents(ctx)
	case match(parts, "conversations") && method == http.MethodPost:
		return h.openConversation(ctx, event.Body)
	case match(parts, "conversations", "*", "messages") && method == http.MethodPost:
		return h.visitorMessage(ctx, parts[1], event.Body)
	case match(parts, "conversations", "*", "messages") && method == http.MethodGet:
		return h.transcript(ctx, parts[1])
	case len(parts) > 0 && parts[0] == "staff":
		staff, err := h.svc.Staff.Authorize(ctx, staffID(event))
		if err != nil {
			return 0, nil, err
		}
		return h.routeStaff(ctx, staff, method, parts, event)
	}
	return http.StatusNotFound, errorResponse{Error: "NOT_FOUND", Reason: "route_not_found"}, nil
}

func (h *Handler) routeStaff(ctx context.Context, staff domain.Staff, method string, parts []string, event events.APIGatewayProxyRequest) (int, any, error) {
	switch {
	case match(parts, "staff", "conversations") && method == http.MethodGet:
		return h.listConversations(ctx, staff, event.QueryStringParameters)
	case match(parts, "staff", "conversations", "*", "claim") && method == http.MethodPost:
		return http.StatusNoContent, nil, h.svc.Staff.Claim(ctx, parts[2], staff)
	case match(parts, "staff", "conversations", "*", "unclaim") && method == http.MethodPost:
		return http.StatusNoContent, nil, h.svc.Staff.Unclaim(ctx, parts[2], staff)
	case match(parts, "staff", "conversations", "*", "end") && method == http.MethodPost:
		return http.StatusNoContent, nil, h.svc.Staff.EndSession(ctx, parts[2], staff)
	case match(parts, "staff", "conversations", "*", "messages") && method == http.MethodPost:
		var req messageRequest
		if err := decode(event.Body, &req); err != nil {
			return 0, nil, err
		}
		_, err := h.svc.Staff.SendStaffMessage(ctx, parts[2], req.Text, staff)
		return http.StatusNoContent, nil, err
	case match(parts, "staff", "conversations", "*", "messages") && method == http.MethodGet:
		msgs := h.svc.Staff.Messages(ctx, parts[2], staff.ID)
		return http.StatusOK, transcriptResponse{Messages: msgs, SessionEnded: usecase.SessionEnded(msgs)}, nil
	}
	return http.StatusNotFound, errorResponse{Error: "NOT_FOUND", Reason: "route_not_found"}, nil
}

func (h *Handler) chat(ctx context.Context, body string) (int, any, error) {
	var req chatRequest
	if err := decode(body, &req); err != nil {
		return 0, nil, err
	}
	reply, err := h.svc.Chat.Respond(ctx, req.Message)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, chatResponse{
		Intent:   reply.Intent,
		Response: reply.Response,
		Source:   reply.Source,
		Category: reply.Category,
	}, nil
}

func (h *Handler) intents(ctx context.Context) (int, any, error) {
	h.svc.Catalog.Load(ctx)
	out := intentsResponse{Intents: []intentSummary{}}
	for _, name := range h.svc.Catalog.Intents() {
		out.Intents = append(out.Intents, intentSummary{
			Name:    name,
			Samples: h.svc.Catalog.SampleQueries(name, sampleLimit),
		})
	}
	return http.StatusOK, out, nil
}

func (h *Handler) openConversation(ctx context.Context, body string) (int, any, error) {
	var req openConversationRequest
	if err := decode(body, &req); err != nil {
		return 0, nil, err
	}
	conv, err := h.svc.Handoff.OpenConversation(ctx, req.VisitorName)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, openConversationResponse{
		ConversationID: conv.ID,
		Notice:         usecase.AgentConnectedText,
	}, nil
}

func (h *Handler) visitorMessage(ctx context.Context, conversationID, body string) (int, any, error) {
	var req messageRequest
	if err := decode(body, &req); err != nil {
		return 0, nil, err
	}
	_, err := h.svc.Handoff.SendVisitorMessage(ctx, usecase.VisitorMessage{
		ConversationID: conversationID,
		VisitorName:    req.VisitorName,
		Text:           req.Text,
	})
	return http.StatusNoContent, nil, err
}

func (h *Handler) transcript(ctx context.Context, conversationID string) (int, any, error) {
	msgs, err := h.svc.Handoff.Transcript(ctx, conversationID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, transcriptResponse{Messages: msgs, SessionEnded: usecase.SessionEnded(msgs)}, nil
}

func (h *Handler) listConversations(ctx context.Context, staff domain.Staff, query map[string]string) (int, any, error) {
	switch scope := query["scope"]; scope {
	case "", "unassigned":
		return http.StatusOK, conversationsResponse{Conversations: h.svc.Staff.ListUnassigned(ctx)}, nil
	case "assigned":
		return http.StatusOK, conversationsResponse{Conversations: h.svc.Staff.ListAssignedTo(ctx, staff.ID)}, nil
	case "recent":
		limit, _ := strconv.Atoi(query["limit"])
		return http.StatusOK, conversationsResponse{Conversations: h.svc.Staff.RecentConversations(ctx, limit)}, nil
	case "all":
		var out overviewResponse
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			out.Unassigned = h.svc.Staff.ListUnassigned(gctx)
			return gctx.Err()
		})
		g.Go(func() error {
			out.Assigned = h.svc.Staff.ListAssignedTo(gctx, staff.ID)
			return gctx.Err()
		})
		if err := g.Wait(); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, out, nil
	default:
		return 0, nil, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "unknown_scope"}
	}
}

func (h *Handler) failure(logger *slog.Logger, err error) (int, any) {
	code := usecase.CodeOf(err)
	reason := ""
	var ue *usecase.Error
	if errors.As(err, &ue) {
		reason = ue.Reason
	}
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", code, "reason", reason, "err", err)
	} else {
		logger.Warn("request rejected", "code", code, "reason", reason)
	}
	return status, errorResponse{Error: string(code), Reason: reason}
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorConflict, usecase.ErrorConversationClosed:
		return http.StatusConflict
	case usecase.ErrorForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decode(body string, v any) error {
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}
	}
	return nil
}

// match reports whether path segments equal pattern; "*" matches any
// non-empty segment.
func match(parts []string, pattern ...string) bool {
	if len(parts) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p == "*" {
			if parts[i] == "" {
				return false
			}
			continue
		}
		if parts[i] != p {
			return false
		}
	}
	return true
}

// staffID reads the Cognito subject placed on the request by the authorizer.
func staffID(event events.APIGatewayProxyRequest) string {
	claims, ok := event.RequestContext.Authorizer["claims"].(map[string]any)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func respond(status int, body any, corrID string) events.APIGatewayProxyResponse {
	headers := map[string]string{correlationHeader: corrID}
	if status == http.StatusNoContent || body == nil {
		return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers}
	}
	buf, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		buf = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	headers["Content-Type"] = "application/json"
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: string(buf)}
}
