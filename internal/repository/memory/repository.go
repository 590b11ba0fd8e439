// Package memory holds an in-memory Repository used by tests. The conditional
// operations (bid swap, settlement mark, status claims) follow the same
// semantics as the SQL implementation, so engine-level tests exercise the real
// concurrency contracts without a database.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"seeds/internal/models"
	"seeds/internal/repository"
)

type Store struct {
	mu sync.Mutex

	users         map[uint64]models.User
	transactions  []models.SeedsTransaction
	decisions     map[uint64]models.Decision
	indicators    map[uint64]models.Indicator
	snapshots     []models.IndicatorSnapshot
	anticipations map[uint64]models.Anticipation
	topArguments  map[slotKey]models.TopArgument

	nextUserID         uint64
	nextTxID           uint64
	nextDecisionID     uint64
	nextIndicatorID    uint64
	nextSnapshotID     uint64
	nextAnticipationID uint64
	nextArgumentID     uint64
}

type slotKey struct {
	decisionID uint64
	position   string
}

var errUserNotFound = errors.New("user not found")

func New() *Store {
	return &Store{
		users:         map[uint64]models.User{},
		decisions:     map[uint64]models.Decision{},
		indicators:    map[uint64]models.Indicator{},
		anticipations: map[uint64]models.Anticipation{},
		topArguments:  map[slotKey]models.TopArgument{},
	}
}

var _ repository.Repository = (*Store)(nil)

// --- users & wallet ---------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, item *models.User) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		s.nextUserID++
		item.ID = s.nextUserID
	} else if item.ID > s.nextUserID {
		s.nextUserID = item.ID
	}
	if item.Level == 0 {
		item.Level = 1
	}
	item.CreatedAt = time.Now().UTC()
	s.users[item.ID] = *item
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id uint64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		out := u
		return &out, nil
	}
	return nil, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == strings.TrimSpace(username) {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListTopUsers(_ context.Context, limit int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].SeedsBalance.Cmp(out[j].SeedsBalance); c != 0 {
			return c > 0
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- ledger -----------------------------------------------------------------

func (s *Store) ApplyBalanceChange(_ context.Context, txn *models.SeedsTransaction, level int, mark *repository.SettlementMark) error {
	if txn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if mark != nil {
		ant, ok := s.anticipations[mark.AnticipationID]
		if !ok || ant.Resolved {
			return repository.ErrAlreadySettled
		}
		result := mark.Result
		earned := mark.SeedsEarned
		settledAt := mark.SettledAt
		ant.Resolved = true
		ant.Result = &result
		ant.SeedsEarned = &earned
		ant.SettledAt = &settledAt
		s.anticipations[mark.AnticipationID] = ant
	}
	u, ok := s.users[txn.UserID]
	if !ok {
		return errUserNotFound
	}
	s.nextTxID++
	txn.ID = s.nextTxID
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	s.transactions = append(s.transactions, *txn)
	u.SeedsBalance = txn.BalanceAfter
	u.Level = level
	u.UpdatedAt = time.Now().UTC()
	s.users[txn.UserID] = u
	return nil
}

func (s *Store) ListSeedsTransactions(_ context.Context, params repository.ListSeedsTransactionsParams) ([]models.SeedsTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SeedsTransaction, 0)
	for _, t := range s.transactions {
		if !matchSeedsTransaction(t, params) {
			continue
		}
		out = append(out, t)
	}
	if params.Asc == nil || !*params.Asc {
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	return paginate(out, params.Limit, params.Offset), nil
}

func (s *Store) CountSeedsTransactions(_ context.Context, params repository.ListSeedsTransactionsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.transactions {
		if matchSeedsTransaction(t, params) {
			n++
		}
	}
	return n, nil
}

func matchSeedsTransaction(t models.SeedsTransaction, params repository.ListSeedsTransactionsParams) bool {
	if params.UserID != nil && t.UserID != *params.UserID {
		return false
	}
	if params.Reason != nil && t.Reason != *params.Reason {
		return false
	}
	if params.Since != nil && t.CreatedAt.Before(*params.Since) {
		return false
	}
	return true
}

func (s *Store) SumSeedsTransactionAmounts(_ context.Context, userID uint64) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, t := range s.transactions {
		if t.UserID == userID {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func (s *Store) LatestSeedsTransaction(_ context.Context, userID uint64) (*models.SeedsTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID == userID {
			out := s.transactions[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListUserIDsWithTransactions(_ context.Context) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[uint64]struct{}{}
	out := []uint64{}
	for _, t := range s.transactions {
		if _, ok := seen[t.UserID]; ok {
			continue
		}
		seen[t.UserID] = struct{}{}
		out = append(out, t.UserID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// --- decisions --------------------------------------------------------------

func (s *Store) CreateDecision(_ context.Context, item *models.Decision) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		s.nextDecisionID++
		item.ID = s.nextDecisionID
	} else if item.ID > s.nextDecisionID {
		s.nextDecisionID = item.ID
	}
	if item.Status == "" {
		item.Status = models.DecisionAnnounced
	}
	item.CreatedAt = time.Now().UTC()
	s.decisions[item.ID] = *item
	return nil
}

func (s *Store) GetDecisionByID(_ context.Context, id uint64) (*models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.decisions[id]; ok {
		out := d
		return &out, nil
	}
	return nil, nil
}

func (s *Store) ListDecisions(_ context.Context, params repository.ListDecisionsParams) ([]models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Decision, 0)
	for _, d := range s.decisions {
		if matchDecision(d, params) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, params.Limit, params.Offset), nil
}

func (s *Store) CountDecisions(_ context.Context, params repository.ListDecisionsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, d := range s.decisions {
		if matchDecision(d, params) {
			n++
		}
	}
	return n, nil
}

func matchDecision(d models.Decision, params repository.ListDecisionsParams) bool {
	if params.Status != nil && d.Status != *params.Status {
		return false
	}
	if params.Outcome != nil {
		if d.ResolutionOutcome == nil || *d.ResolutionOutcome != *params.Outcome {
			return false
		}
	}
	if params.Title != nil && !strings.Contains(strings.ToLower(d.Title), strings.ToLower(*params.Title)) {
		return false
	}
	return true
}

func (s *Store) UpdateDecisionStatus(_ context.Context, id uint64, from []string, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[id]
	if !ok {
		return false, nil
	}
	if len(from) > 0 {
		matched := false
		for _, st := range from {
			if d.Status == st {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	d.Status = to
	d.UpdatedAt = time.Now().UTC()
	s.decisions[id] = d
	return true, nil
}

func (s *Store) ClaimDecisionResolving(ctx context.Context, id uint64) (bool, error) {
	return s.UpdateDecisionStatus(ctx, id, []string{models.DecisionAnnounced, models.DecisionActive}, models.DecisionResolving)
}

func (s *Store) MarkDecisionResolved(_ context.Context, id uint64, score decimal.Decimal, outcome string, confidence int, resolvedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[id]
	if !ok || d.Status != models.DecisionResolving {
		return false, nil
	}
	d.Status = models.DecisionResolved
	d.ResolutionScore = &score
	d.ResolutionOutcome = &outcome
	d.ResolutionConfidence = &confidence
	d.ResolvedAt = &resolvedAt
	d.UpdatedAt = time.Now().UTC()
	s.decisions[id] = d
	return true, nil
}

func (s *Store) ListDueUnresolvedDecisions(_ context.Context, now time.Time, limit int) ([]models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Decision, 0)
	for _, d := range s.decisions {
		if d.DueAt == nil || d.DueAt.After(now) {
			continue
		}
		if d.Status != models.DecisionAnnounced && d.Status != models.DecisionActive {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(*out[j].DueAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- indicators -------------------------------------------------------------

func (s *Store) CreateIndicator(_ context.Context, item *models.Indicator) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		s.nextIndicatorID++
		item.ID = s.nextIndicatorID
	} else if item.ID > s.nextIndicatorID {
		s.nextIndicatorID = item.ID
	}
	item.CreatedAt = time.Now().UTC()
	s.indicators[item.ID] = *item
	return nil
}

func (s *Store) GetIndicatorByID(_ context.Context, id uint64) (*models.Indicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.indicators[id]; ok {
		out := it
		return &out, nil
	}
	return nil, nil
}

func (s *Store) ListIndicatorsByDecisionID(_ context.Context, decisionID uint64) ([]models.Indicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Indicator, 0)
	for _, it := range s.indicators {
		if it.DecisionID == decisionID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpsertIndicatorSnapshot(_ context.Context, item *models.IndicatorSnapshot) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, snap := range s.snapshots {
		if snap.IndicatorID == item.IndicatorID && snap.RecordedAt.Equal(item.RecordedAt) {
			s.snapshots[i].Value = item.Value
			item.ID = snap.ID
			return nil
		}
	}
	s.nextSnapshotID++
	item.ID = s.nextSnapshotID
	item.CreatedAt = time.Now().UTC()
	s.snapshots = append(s.snapshots, *item)
	return nil
}

func (s *Store) ListIndicatorSnapshots(_ context.Context, indicatorID uint64) ([]models.IndicatorSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.IndicatorSnapshot, 0)
	for _, snap := range s.snapshots {
		if snap.IndicatorID == indicatorID {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

// --- anticipations ----------------------------------------------------------

func (s *Store) InsertAnticipation(_ context.Context, item *models.Anticipation) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		s.nextAnticipationID++
		item.ID = s.nextAnticipationID
	} else if item.ID > s.nextAnticipationID {
		s.nextAnticipationID = item.ID
	}
	item.CreatedAt = time.Now().UTC()
	s.anticipations[item.ID] = *item
	return nil
}

func (s *Store) GetAnticipationByID(_ context.Context, id uint64) (*models.Anticipation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.anticipations[id]; ok {
		out := a
		return &out, nil
	}
	return nil, nil
}

func (s *Store) ListOpenAnticipationsByDecisionID(_ context.Context, decisionID uint64) ([]models.Anticipation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Anticipation, 0)
	for _, a := range s.anticipations {
		if a.DecisionID == decisionID && !a.Resolved {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountOpenAnticipationsByDecisionID(_ context.Context, decisionID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.anticipations {
		if a.DecisionID == decisionID && !a.Resolved {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListAnticipations(_ context.Context, params repository.ListAnticipationsParams) ([]models.Anticipation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Anticipation, 0)
	for _, a := range s.anticipations {
		if matchAnticipation(a, params) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, params.Limit, params.Offset), nil
}

func (s *Store) CountAnticipations(_ context.Context, params repository.ListAnticipationsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.anticipations {
		if matchAnticipation(a, params) {
			n++
		}
	}
	return n, nil
}

func matchAnticipation(a models.Anticipation, params repository.ListAnticipationsParams) bool {
	if params.UserID != nil && a.UserID != *params.UserID {
		return false
	}
	if params.DecisionID != nil && a.DecisionID != *params.DecisionID {
		return false
	}
	if params.Resolved != nil && a.Resolved != *params.Resolved {
		return false
	}
	return true
}

// --- featured-argument slots ------------------------------------------------

func (s *Store) GetTopArgument(_ context.Context, decisionID uint64, position string) (*models.TopArgument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.topArguments[slotKey{decisionID, position}]; ok {
		out := slot
		return &out, nil
	}
	return nil, nil
}

func (s *Store) ListTopArgumentsByDecisionID(_ context.Context, decisionID uint64) ([]models.TopArgument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TopArgument, 0)
	for key, slot := range s.topArguments {
		if key.decisionID == decisionID {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) CreateTopArgument(_ context.Context, item *models.TopArgument) (bool, error) {
	if item == nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slotKey{item.DecisionID, item.Position}
	if _, ok := s.topArguments[key]; ok {
		return false, nil
	}
	s.nextArgumentID++
	item.ID = s.nextArgumentID
	item.CreatedAt = time.Now().UTC()
	s.topArguments[key] = *item
	return true, nil
}

func (s *Store) SwapTopArgumentBid(_ context.Context, decisionID uint64, position string, prevBid decimal.Decimal, next models.TopArgument) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slotKey{decisionID, position}
	slot, ok := s.topArguments[key]
	if !ok || slot.Closed || slot.CurrentBid.Cmp(prevBid) != 0 {
		return false, nil
	}
	slot.CurrentBid = next.CurrentBid
	slot.Content = next.Content
	slot.HolderUserID = next.HolderUserID
	slot.UpdatedAt = next.UpdatedAt
	s.topArguments[key] = slot
	return true, nil
}

func (s *Store) CloseTopArgumentsByDecisionID(_ context.Context, decisionID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, slot := range s.topArguments {
		if key.decisionID == decisionID && !slot.Closed {
			slot.Closed = true
			slot.UpdatedAt = time.Now().UTC()
			s.topArguments[key] = slot
			n++
		}
	}
	return n, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
