package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"deals-agent/internal/domain"
	"deals-agent/internal/usecase"
)

type stubSession struct {
	sendText    string
	sendTurn    domain.Turn
	sendErr     error
	reorderItem string

	turns      []domain.Turn
	visible    []domain.Offer
	visibleErr error
	categories []domain.Department

	filterTurnID   string
	filterCategory domain.Department
	filterErr      error

	sortDir usecase.SortDirection
	sortErr error

	toggledID  string
	toggledOn  bool
	toggleErr  error
	clipAllIDs []string
	clipAllErr error
	unclipErr  error
	clippedIDs map[string]bool

	wallet    []domain.Offer
	purchases []domain.Purchase
}

func (s *stubSession) Send(_ context.Context, text string) (domain.Turn, error) {
	s.sendText = text
	return s.sendTurn, s.sendErr
}

func (s *stubSession) ReorderFromPurchase(_ context.Context, item string) (domain.Turn, error) {
	s.reorderItem = item
	return s.sendTurn, s.sendErr
}

func (s *stubSession) Turns(string) []domain.Turn { return s.turns }

func (s *stubSession) VisibleOffers(string, string) ([]domain.Offer, error) {
	return s.visible, s.visibleErr
}

func (s *stubSession) TurnCategories(string) ([]domain.Department, error) {
	return s.categories, nil
}

func (s *stubSession) SetTurnCategoryFilter(turnID string, category domain.Department) error {
	s.filterTurnID = turnID
	s.filterCategory = category
	return s.filterErr
}

func (s *stubSession) ToggleTurnSort(string) (usecase.SortDirection, error) {
	return s.sortDir, s.sortErr
}

func (s *stubSession) ToggleClip(_ context.Context, offerID string) (bool, error) {
	s.toggledID = offerID
	return s.toggledOn, s.toggleErr
}

func (s *stubSession) ClipAllVisible(_ context.Context, _ string) ([]string, error) {
	return s.clipAllIDs, s.clipAllErr
}

func (s *stubSession) UnclipAll(context.Context) error { return s.unclipErr }

func (s *stubSession) IsClipped(offerID string) bool { return s.clippedIDs[offerID] }

func (s *stubSession) Wallet(context.Context) ([]domain.Offer, error) { return s.wallet, nil }

func (s *stubSession) Purchases(context.Context) ([]domain.Purchase, error) {
	return s.purchases, nil
}

func makeEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_Chat_HappyPath(t *testing.T) {
	reply := domain.Turn{
		ID:        "t2",
		Sender:    domain.SenderSystem,
		Text:      "Here are some deals.",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Status:    domain.StatusResolved,
		Offers: []domain.Offer{
			{ID: "1-0", Category: domain.DepartmentProduce, Deal: "Organic Bananas.", Price: "$0.99", Expiry: "2099-01-01"},
		},
	}
	s := &stubSession{sendTurn: reply, categories: []domain.Department{domain.DepartmentAll, domain.DepartmentProduce}, clippedIDs: map[string]bool{"1-0": true}}
	h, err := NewHandler(s)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/chat", `{"text":"deals on bananas"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "deals on bananas", s.sendText)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])

	out := parseBody[turnResponse](t, resp.Body)
	require.Equal(t, "t2", out.ID)
	require.Equal(t, "system", out.Sender)
	require.Equal(t, []string{"all", "Produce"}, out.Categories)
	require.Len(t, out.Offers, 1)
	require.Equal(t, "1-0", out.Offers[0].ID)
	require.True(t, out.Offers[0].Clipped)
	require.Equal(t, "later", out.Offers[0].ExpiryBucket)
}

func TestHandle_Chat_InvalidBody(t *testing.T) {
	h, err := NewHandler(&stubSession{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/chat", `not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
}

func TestHandle_MapsSessionErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_text"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "turn pending", err: &usecase.Error{Code: usecase.ErrorTurnPending, Reason: "classification_in_flight"}, status: http.StatusConflict, code: string(usecase.ErrorTurnPending)},
		{name: "turn not found", err: &usecase.Error{Code: usecase.ErrorTurnNotFound, Reason: "unknown_turn"}, status: http.StatusNotFound, code: string(usecase.ErrorTurnNotFound)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "openai_rate_limited"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "openai_error"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "clip rejected", err: &usecase.Error{Code: usecase.ErrorClipRejected, Reason: "clip_ack_rejected"}, status: http.StatusBadGateway, code: string(usecase.ErrorClipRejected)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "dynamodb_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := NewHandler(&stubSession{sendErr: tc.err})
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/chat", `{"text":"deals"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_Reorder(t *testing.T) {
	s := &stubSession{sendTurn: domain.Turn{ID: "t3", Sender: domain.SenderSystem, Status: domain.StatusResolved}}
	h, err := NewHandler(s)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/reorder", `{"item":"Whole Milk"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Whole Milk", s.reorderItem)
}

func TestHandle_SetFilter(t *testing.T) {
	s := &stubSession{visible: []domain.Offer{{ID: "2-0", Category: domain.DepartmentDairy, Expiry: "2099-01-01"}}}
	h, err := NewHandler(s)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPut, "/turns/t2/filter", `{"category":"Dairy"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "t2", s.filterTurnID)
	require.Equal(t, domain.DepartmentDairy, s.filterCategory)

	out := parseBody[offersResponse](t, resp.Body)
	require.Len(t, out.Offers, 1)
	require.Equal(t, "2-0", out.Offers[0].ID)
}

func TestHandle_ToggleSort(t *testing.T) {
	cases := []struct {
		dir  usecase.SortDirection
		want string
	}{
		{dir: usecase.SortAscending, want: "soonest"},
		{dir: usecase.SortDescending, want: "latest"},
		{dir: usecase.SortUnset, want: "unset"},
	}
	for _, tc := range cases {
		h, err := NewHandler(&stubSession{sortDir: tc.dir})
		require.NoError(t, err)

		resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/turns/t2/sort", ""))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		out := parseBody[sortResponse](t, resp.Body)
		require.Equal(t, tc.want, out.Sort)
	}
}

func TestHandle_ToggleClip(t *testing.T) {
	s := &stubSession{toggledOn: true}
	h, err := NewHandler(s)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/clips/toggle", `{"offerId":"3-1"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "3-1", s.toggledID)

	out := parseBody[clipResponse](t, resp.Body)
	require.Equal(t, "3-1", out.OfferID)
	require.True(t, out.Clipped)
}

func TestHandle_ToggleClip_EmptyID(t *testing.T) {
	h, err := NewHandler(&stubSession{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/clips/toggle", `{"offerId":"  "}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandle_ClipAll(t *testing.T) {
	h, err := NewHandler(&stubSession{clipAllIDs: []string{"1-0", "1-1"}})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/turns/t2/clip-all", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[clipAllResponse](t, resp.Body)
	require.Equal(t, []string{"1-0", "1-1"}, out.ClippedIDs)
}

func TestHandle_ClipAll_EmptyResult(t *testing.T) {
	h, err := NewHandler(&stubSession{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/turns/t2/clip-all", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[clipAllResponse](t, resp.Body)
	require.NotNil(t, out.ClippedIDs)
	require.Empty(t, out.ClippedIDs)
}

func TestHandle_UnclipAll(t *testing.T) {
	h, err := NewHandler(&stubSession{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodDelete, "/clips", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandle_Wallet(t *testing.T) {
	s := &stubSession{
		wallet:     []domain.Offer{{ID: "5-2", Category: domain.DepartmentDeli, Expiry: "2099-01-01"}},
		clippedIDs: map[string]bool{"5-2": true},
	}
	h, err := NewHandler(s)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/wallet", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[offersResponse](t, resp.Body)
	require.Len(t, out.Offers, 1)
	require.True(t, out.Offers[0].Clipped)
}

func TestHandle_Purchases(t *testing.T) {
	s := &stubSession{purchases: []domain.Purchase{{ID: "p1", Item: "Whole Milk"}}}
	h, err := NewHandler(s)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/purchases", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[purchasesResponse](t, resp.Body)
	require.Len(t, out.Purchases, 1)
	require.Equal(t, "Whole Milk", out.Purchases[0].Item)
}

func TestHandle_Turns_AttachesVisibleOffers(t *testing.T) {
	s := &stubSession{
		turns: []domain.Turn{
			{ID: "t1", Sender: domain.SenderSystem, Text: domain.WelcomeText, Status: domain.StatusResolved},
		},
		visible: []domain.Offer{{ID: "1-0", Expiry: "2099-01-01"}},
	}
	h, err := NewHandler(s)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/turns", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[turnsResponse](t, resp.Body)
	require.Len(t, out.Turns, 1)
	require.Len(t, out.Turns[0].Offers, 1)
}

func TestHandle_UnknownRoute(t *testing.T) {
	h, err := NewHandler(&stubSession{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/nope", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h, err := NewHandler(&stubSession{sendTurn: domain.Turn{ID: "t2"}})
	require.NoError(t, err)

	event := makeEvent(http.MethodPost, "/chat", `{"text":"deals"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
