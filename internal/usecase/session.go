package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"deals-agent/internal/domain"
)

// DealRepository is the external deals collaborator: a catalog snapshot, the
// shopper's purchase history, and clip acknowledgements.
type DealRepository interface {
	ListOffers(ctx context.Context) ([]domain.Offer, error)
	ListPurchases(ctx context.Context) ([]domain.Purchase, error)
	ClipAcker
}

// Session owns the append-only conversation log, the per-turn filter state,
// and the shared clip ledger. Turns are never deleted or reordered, and at
// most one classification is in flight at a time.
type Session struct {
	classifier Classifier
	repo       DealRepository
	ledger     *ClipLedger
	now        func() time.Time

	mu        sync.Mutex
	turns     []domain.Turn
	filters   map[string]domain.Department
	sortDir   SortDirection
	pendingID string
	waiters   map[string]*pendingWait
}

type pendingWait struct {
	done  chan struct{}
	reply domain.Turn
}

func NewSession(classifier Classifier, repo DealRepository, ledger *ClipLedger) (*Session, error) {
	if classifier == nil {
		return nil, errors.New("usecase: classifier must not be nil")
	}
	if repo == nil {
		return nil, errors.New("usecase: deal repository must not be nil")
	}
	if ledger == nil {
		return nil, errors.New("usecase: clip ledger must not be nil")
	}
	s := &Session{
		classifier: classifier,
		repo:       repo,
		ledger:     ledger,
		now:        time.Now,
		filters:    make(map[string]domain.Department),
		waiters:    make(map[string]*pendingWait),
	}
	s.turns = append(s.turns, domain.Turn{
		ID:        newUUID(),
		Sender:    domain.SenderSystem,
		Text:      domain.WelcomeText,
		Timestamp: s.now(),
		Status:    domain.StatusResolved,
	})
	return s, nil
}

// SendAsync appends a pending user turn and resolves it on a goroutine.
// Empty or whitespace-only input is rejected before any turn is created, and
// a send is refused while another turn is pending. There is no queueing and
// no cancellation of the in-flight classification.
func (s *Session) SendAsync(text string) (domain.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Turn{}, newError(ErrorInvalidInput, "empty_text", nil)
	}

	s.mu.Lock()
	if s.pendingID != "" {
		s.mu.Unlock()
		return domain.Turn{}, newError(ErrorTurnPending, "classification_in_flight", nil)
	}
	userTurn := domain.Turn{
		ID:        newUUID(),
		Sender:    domain.SenderUser,
		Text:      text,
		Timestamp: s.now(),
		Status:    domain.StatusPending,
	}
	s.turns = append(s.turns, userTurn)
	s.pendingID = userTurn.ID
	s.waiters[userTurn.ID] = &pendingWait{done: make(chan struct{})}
	s.mu.Unlock()

	go s.resolve(userTurn.ID, text)
	return userTurn, nil
}

// Await blocks until the user turn's system reply has been appended and
// returns it. Failed exchanges resolve to the fixed failure turn, not an
// error; the only errors here are an unknown turn id or context expiry.
func (s *Session) Await(ctx context.Context, userTurnID string) (domain.Turn, error) {
	s.mu.Lock()
	w, ok := s.waiters[userTurnID]
	s.mu.Unlock()
	if !ok {
		return domain.Turn{}, newError(ErrorTurnNotFound, "unknown_user_turn", nil)
	}

	select {
	case <-ctx.Done():
		return domain.Turn{}, newError(ErrorInternal, "await_cancelled", ctx.Err())
	case <-w.done:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return w.reply, nil
}

// Send is the blocking convenience used by the handlers: SendAsync plus Await.
func (s *Session) Send(ctx context.Context, text string) (domain.Turn, error) {
	userTurn, err := s.SendAsync(text)
	if err != nil {
		return domain.Turn{}, err
	}
	return s.Await(ctx, userTurn.ID)
}

// ReorderFromPurchase drives a quick-reorder selection through the normal send
// path with generated text; it is not a distinct flow.
func (s *Session) ReorderFromPurchase(ctx context.Context, item string) (domain.Turn, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return domain.Turn{}, newError(ErrorInvalidInput, "empty_item", nil)
	}
	return s.Send(ctx, "Find me deals on "+item)
}

// resolve runs the classification for one user turn and appends the system
// reply. Classifier failure is terminal for the exchange: the reply is the
// fixed trouble-connecting turn and a fresh user turn is needed to retry.
func (s *Session) resolve(userTurnID, text string) {
	ctx := context.Background()

	reply := domain.Turn{
		ID:     newUUID(),
		Sender: domain.SenderSystem,
		Status: domain.StatusResolved,
	}

	intent, err := s.classifier.Classify(ctx, text)
	if err == nil && intent.ShowOffers && !intent.IsOutOfScope {
		var catalog []domain.Offer
		catalog, err = s.repo.ListOffers(ctx)
		if err == nil {
			reply.Offers = SelectOffers(catalog, s.now(), text, intent.Category)
		}
	}

	if err != nil {
		reply.Text = domain.ConnectFailureText
		reply.Status = domain.StatusFailed
		reply.Offers = nil
	} else {
		reply.Text = intent.Reply
		reply.SuggestedAlternatives = intent.SuggestedAlternatives
		reply.IsGuardrail = intent.IsOutOfScope
	}

	s.mu.Lock()
	reply.Timestamp = s.now()
	s.turns = append(s.turns, reply)
	for i := range s.turns {
		if s.turns[i].ID == userTurnID {
			s.turns[i].Status = reply.Status
			break
		}
	}
	s.pendingID = ""
	w := s.waiters[userTurnID]
	w.reply = reply
	s.mu.Unlock()

	close(w.done)
}

// Turns returns the conversation log, optionally narrowed by the chat search
// box: a turn stays visible when its text matches or any attached offer does.
func (s *Session) Turns(searchTerm string) []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	term := strings.ToLower(strings.TrimSpace(searchTerm))
	out := make([]domain.Turn, 0, len(s.turns))
	for _, t := range s.turns {
		if term != "" && !turnMatches(t, term) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func turnMatches(t domain.Turn, lowerTerm string) bool {
	if strings.Contains(strings.ToLower(t.Text), lowerTerm) {
		return true
	}
	for _, o := range t.Offers {
		if matchesSearch(o, lowerTerm) {
			return true
		}
	}
	return false
}

// SetTurnCategoryFilter narrows one turn's visible offers to a department.
// The filter map is sparse; unset turns default to DepartmentAll.
func (s *Session) SetTurnCategoryFilter(turnID string, category domain.Department) error {
	if !domain.ValidDepartment(category) {
		return newError(ErrorInvalidInput, "unknown_department", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findTurn(turnID); !ok {
		return newError(ErrorTurnNotFound, "unknown_turn", nil)
	}
	s.filters[turnID] = category
	return nil
}

// ToggleTurnSort advances the expiry sort tri-state. The direction is shared
// across turns; the turn id is only validated.
func (s *Session) ToggleTurnSort(turnID string) (SortDirection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findTurn(turnID); !ok {
		return SortUnset, newError(ErrorTurnNotFound, "unknown_turn", nil)
	}
	s.sortDir = s.sortDir.Toggle()
	return s.sortDir, nil
}

// VisibleOffers applies the turn's category filter, the render-time search
// term, and the current sort to the turn's fixed snapshot.
func (s *Session) VisibleOffers(turnID, searchTerm string) ([]domain.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.findTurn(turnID)
	if !ok {
		return nil, newError(ErrorTurnNotFound, "unknown_turn", nil)
	}
	return sortOffers(filterOffers(t.Offers, s.filterFor(turnID), searchTerm), s.sortDir), nil
}

// TurnCategories lists the departments present in a turn's snapshot, for the
// per-turn filter dropdown.
func (s *Session) TurnCategories(turnID string) ([]domain.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.findTurn(turnID)
	if !ok {
		return nil, newError(ErrorTurnNotFound, "unknown_turn", nil)
	}
	return offerCategories(t.Offers), nil
}

// ClipAllVisible clips every offer currently visible under the turn's category
// filter, in visible order. Already-clipped offers are skipped; a batch with
// nothing to clip is a no-op.
func (s *Session) ClipAllVisible(ctx context.Context, turnID string) ([]string, error) {
	s.mu.Lock()
	t, ok := s.findTurn(turnID)
	if !ok {
		s.mu.Unlock()
		return nil, newError(ErrorTurnNotFound, "unknown_turn", nil)
	}
	visible := sortOffers(filterOffers(t.Offers, s.filterFor(turnID), ""), s.sortDir)
	s.mu.Unlock()

	ids := make([]string, 0, len(visible))
	for _, o := range visible {
		ids = append(ids, o.ID)
	}
	return s.ledger.ClipAll(ctx, ids)
}

// ToggleClip flips one offer's clip state through the ledger.
func (s *Session) ToggleClip(ctx context.Context, offerID string) (bool, error) {
	return s.ledger.Toggle(ctx, offerID)
}

func (s *Session) IsClipped(offerID string) bool {
	return s.ledger.IsClipped(offerID)
}

// UnclipAll empties the wallet.
func (s *Session) UnclipAll(ctx context.Context) error {
	return s.ledger.UnclipAll(ctx)
}

// Wallet returns the active clipped offers in catalog order.
func (s *Session) Wallet(ctx context.Context) ([]domain.Offer, error) {
	catalog, err := s.repo.ListOffers(ctx)
	if err != nil {
		return nil, newError(ErrorUpstream, "catalog_error", err)
	}
	today := s.now()
	out := make([]domain.Offer, 0, s.ledger.Count())
	for _, o := range catalog {
		if o.Active(today) && s.ledger.IsClipped(o.ID) {
			out = append(out, o)
		}
	}
	return out, nil
}

// Purchases returns the shopper's history for quick-reorder suggestions.
func (s *Session) Purchases(ctx context.Context) ([]domain.Purchase, error) {
	purchases, err := s.repo.ListPurchases(ctx)
	if err != nil {
		return nil, newError(ErrorUpstream, "purchases_error", err)
	}
	return purchases, nil
}

func (s *Session) filterFor(turnID string) domain.Department {
	if d, ok := s.filters[turnID]; ok {
		return d
	}
	return domain.DepartmentAll
}

func (s *Session) findTurn(turnID string) (domain.Turn, bool) {
	for _, t := range s.turns {
		if t.ID == turnID {
			return t, true
		}
	}
	return domain.Turn{}, false
}

var newUUID = func() string {
	return uuid.NewString()
}
