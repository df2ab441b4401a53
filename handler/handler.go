package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"deals-agent/internal/domain"
	"deals-agent/internal/usecase"
)

// ChatSession is the slice of the conversation session consumed by the
// handler: the presentation entry points plus the read views they render.
type ChatSession interface {
	Send(ctx context.Context, text string) (domain.Turn, error)
	ReorderFromPurchase(ctx context.Context, item string) (domain.Turn, error)
	Turns(searchTerm string) []domain.Turn
	VisibleOffers(turnID, searchTerm string) ([]domain.Offer, error)
	TurnCategories(turnID string) ([]domain.Department, error)
	SetTurnCategoryFilter(turnID string, category domain.Department) error
	ToggleTurnSort(turnID string) (usecase.SortDirection, error)
	ToggleClip(ctx context.Context, offerID string) (bool, error)
	ClipAllVisible(ctx context.Context, turnID string) ([]string, error)
	UnclipAll(ctx context.Context) error
	IsClipped(offerID string) bool
	Wallet(ctx context.Context) ([]domain.Offer, error)
	Purchases(ctx context.Context) ([]domain.Purchase, error)
}

type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

type Handler struct {
	session ChatSession
	now     func() time.Time
}

func NewHandler(session ChatSession) (*Handler, error) {
	if session == nil {
		return nil, errors.New("handler: session must not be nil")
	}
	return &Handler{session: session, now: time.Now}, nil
}

type chatRequest struct {
	Text string `json:"text"`
}

type reorderRequest struct {
	Item string `json:"item"`
}

type filterRequest struct {
	Category string `json:"category"`
}

type toggleClipRequest struct {
	OfferID string `json:"offerId"`
}

type offerView struct {
	ID            string `json:"id"`
	Merchant      string `json:"merchant"`
	Category      string `json:"category"`
	Deal          string `json:"deal"`
	Price         string `json:"price"`
	OriginalPrice string `json:"originalPrice,omitempty"`
	Description   string `json:"description"`
	Expiry        string `json:"expiry"`
	ExpiryBucket  string `json:"expiryBucket"`
	Image         string `json:"image"`
	UsageInfo     string `json:"usageInfo"`
	SpecialType   string `json:"specialType,omitempty"`
	Clipped       bool   `json:"clipped"`
}

type turnResponse struct {
	ID                    string      `json:"id"`
	Sender                string      `json:"sender"`
	Text                  string      `json:"text"`
	Timestamp             time.Time   `json:"timestamp"`
	Status                string      `json:"status"`
	Offers                []offerView `json:"offers,omitempty"`
	Categories            []string    `json:"categories,omitempty"`
	SuggestedAlternatives []string    `json:"suggestedAlternatives,omitempty"`
	IsGuardrail           bool        `json:"isGuardrail,omitempty"`
}

type turnsResponse struct {
	Turns []turnResponse `json:"turns"`
}

type clipResponse struct {
	OfferID string `json:"offerId"`
	Clipped bool   `json:"clipped"`
}

type clipAllResponse struct {
	ClippedIDs []string `json:"clippedIds"`
}

type sortResponse struct {
	Sort string `json:"sort"`
}

type offersResponse struct {
	Offers []offerView `json:"offers"`
}

type purchasesResponse struct {
	Purchases []domain.Purchase `json:"purchases"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handle routes one API Gateway proxy event to the session.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (Response, error) {
	corrID := correlationID(event.Headers)

	segments := splitPath(event.Path)
	method := strings.ToUpper(event.HTTPMethod)

	switch {
	case method == http.MethodPost && pathIs(segments, "chat"):
		return h.handleChat(ctx, event.Body, corrID)
	case method == http.MethodPost && pathIs(segments, "reorder"):
		return h.handleReorder(ctx, event.Body, corrID)
	case method == http.MethodGet && pathIs(segments, "turns"):
		return h.handleTurns(event.QueryStringParameters, corrID)
	case method == http.MethodPut && pathIs(segments, "turns", "*", "filter"):
		return h.handleFilter(segments[1], event.Body, corrID)
	case method == http.MethodPost && pathIs(segments, "turns", "*", "sort"):
		return h.handleSort(segments[1], corrID)
	case method == http.MethodPost && pathIs(segments, "turns", "*", "clip-all"):
		return h.handleClipAll(ctx, segments[1], corrID)
	case method == http.MethodPost && pathIs(segments, "clips", "toggle"):
		return h.handleToggleClip(ctx, event.Body, corrID)
	case method == http.MethodDelete && pathIs(segments, "clips"):
		return h.handleUnclipAll(ctx, corrID)
	case method == http.MethodGet && pathIs(segments, "wallet"):
		return h.handleWallet(ctx, corrID)
	case method == http.MethodGet && pathIs(segments, "purchases"):
		return h.handlePurchases(ctx, corrID)
	default:
		return jsonResponse(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"}, corrID), nil
	}
}

func (h *Handler) handleChat(ctx context.Context, body, corrID string) (Response, error) {
	var req chatRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}, corrID), nil
	}
	reply, err := h.session.Send(ctx, req.Text)
	if err != nil {
		return errorToResponse(err, corrID), nil
	}
	return jsonResponse(http.StatusOK, h.turnView(reply), corrID), nil
}

func (h *Handler) handleReorder(ctx context.Context, body, corrID string) (Response, error) {
	var req reorderRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}, corrID), nil
	}
	reply, err := h.session.ReorderFromPurchase(ctx, req.Item)
	if err != nil {
		return errorToResponse(err, corrID), nil
	}
	return jsonResponse(http.StatusOK, h.turnView(reply), corrID), nil
}

func (h *Handler) handleTurns(query map[string]string, corrID string) (Response, error) {
	search := query["search"]
	turns := h.session.Turns(search)
	out := turnsResponse{Turns: make([]turnResponse, 0, len(turns))}
	for _, t := range turns {
		view := h.turnView(t)
		if visible, err := h.session.VisibleOffers(t.ID, search); err == nil {
			view.Offers = h.offerViews(visible)
		}
		out.Turns = append(out.Turns, view)
	}
	return jsonResponse(http.StatusOK, out, corrID), nil
}

func (h *Handler) handleFilter(turnID, body, corrID string) (Response, error) {
	var req filterRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}, corrID), nil
	}
	if err := h.session.SetTurnCategoryFilter(turnID, domain.Department(req.Category)); err != nil {
		return errorToResponse(err, corrID), nil
	}
	visible, err := h.session.VisibleOffers(turnID, "")
	if err != nil {
		return errorToResponse(err, corrID), nil
	}
	return jsonResponse(http.StatusOK, offersResponse{Offers: h.offerViews(visible)}, corrID), nil
}

func (h *Handler) handleSort(turnID, corrID string) (Response, error) {
	dir, err := h.session.ToggleTurnSort(turnID)
	if err != nil {
		return errorToResponse(err, corrID), nil
	}
	return jsonResponse(http.StatusOK, sortResponse{Sort: sortLabel(dir)}, corrID), nil
}

func (h *Handler) handleClipAll(ctx context.Context, turnID, corrID string) (Response, error) {
	clipped, err := h.session.ClipAllVisible(ctx, turnID)
	if err != nil {
		return errorToResponse(err, corrID), nil
	}
	if clipped == nil {
		clipped = []string{}
	}
	return jsonResponse(http.StatusOK, clipAllResponse{ClippedIDs: clipped}, corrID), nil
}

func (h *Handler) handleToggleClip(ctx context.Context, body, corrID string) (Response, error) {
	var req toggleClipRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil || strings.TrimSpace(req.OfferID) == "" {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}, corrID), nil
	}
	clipped, err := h.session.ToggleClip(ctx, req.OfferID)
	if err != nil {
		return errorToResponse(err, corrID), nil
	}
	return jsonResponse(http.StatusOK, clipResponse{OfferID: req.OfferID, Clipped: clipped}, corrID), nil
}

func (h *Handler) handleUnclipAll(ctx context.Context, corrID string) (Response, error) {
	if err := h.session.UnclipAll(ctx); err != nil {
		return errorToResponse(err, corrID), nil
	}
	return jsonResponse(http.StatusOK, clipAllResponse{ClippedIDs: []string{}}, corrID), nil
}

func (h *Handler) handleWallet(ctx context.Context, corrID string) (Response, error) {
	offers, err := h.session.Wallet(ctx)
	if err != nil {
		return errorToResponse(err, corrID), nil
	}
	return jsonResponse(http.StatusOK, offersResponse{Offers: h.offerViews(offers)}, corrID), nil
}

func (h *Handler) handlePurchases(ctx context.Context, corrID string) (Response, error) {
	purchases, err := h.session.Purchases(ctx)
	if err != nil {
		return errorToResponse(err, corrID), nil
	}
	return jsonResponse(http.StatusOK, purchasesResponse{Purchases: purchases}, corrID), nil
}

func (h *Handler) turnView(t domain.Turn) turnResponse {
	view := turnResponse{
		ID:                    t.ID,
		Sender:                string(t.Sender),
		Text:                  t.Text,
		Timestamp:             t.Timestamp,
		Status:                string(t.Status),
		SuggestedAlternatives: t.SuggestedAlternatives,
		IsGuardrail:           t.IsGuardrail,
		Offers:                h.offerViews(t.Offers),
	}
	if categories, err := h.session.TurnCategories(t.ID); err == nil {
		for _, c := range categories {
			view.Categories = append(view.Categories, string(c))
		}
	}
	return view
}

func (h *Handler) offerViews(offers []domain.Offer) []offerView {
	if len(offers) == 0 {
		return nil
	}
	today := h.now()
	out := make([]offerView, 0, len(offers))
	for _, o := range offers {
		out = append(out, offerView{
			ID:            o.ID,
			Merchant:      o.Merchant,
			Category:      string(o.Category),
			Deal:          o.Deal,
			Price:         o.Price,
			OriginalPrice: o.OriginalPrice,
			Description:   o.Description,
			Expiry:        o.Expiry,
			ExpiryBucket:  string(o.Urgency(today)),
			Image:         o.Image,
			UsageInfo:     o.Usage(),
			SpecialType:   string(o.Special()),
			Clipped:       h.session.IsClipped(o.ID),
		})
	}
	return out
}

func sortLabel(dir usecase.SortDirection) string {
	switch dir {
	case usecase.SortAscending:
		return "soonest"
	case usecase.SortDescending:
		return "latest"
	default:
		return "unset"
	}
}

// errorToResponse maps the usecase error taxonomy onto HTTP statuses.
func errorToResponse(err error, corrID string) Response {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}, corrID)
	}
	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorTurnNotFound:
		status = http.StatusNotFound
	case usecase.ErrorTurnPending:
		status = http.StatusConflict
	case usecase.ErrorRateLimited:
		status = http.StatusTooManyRequests
	case usecase.ErrorUpstream, usecase.ErrorClipRejected:
		status = http.StatusBadGateway
	}
	return jsonResponse(status, errorResponse{Error: string(ucErr.Code)}, corrID)
}

func jsonResponse(status int, payload any, corrID string) Response {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    responseHeaders(corrID),
			Body:       `{"error":"INTERNAL_ERROR"}`,
		}
	}
	return Response{
		StatusCode: status,
		Headers:    responseHeaders(corrID),
		Body:       string(body),
	}
}

func responseHeaders(corrID string) map[string]string {
	return map[string]string{
		"content-type":     "application/json",
		"X-Correlation-Id": corrID,
	}
}

// correlationID reuses the caller's header when present, matched
// case-insensitively, and mints one otherwise.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "x-correlation-id") && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// pathIs matches path segments against a pattern where "*" accepts any single
// non-empty segment.
func pathIs(segments []string, pattern ...string) bool {
	if len(segments) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p == "*" {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if segments[i] != p {
			return false
		}
	}
	return true
}
