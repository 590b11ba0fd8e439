package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"seeds/internal/models"
	"seeds/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- users & wallet ---------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, item *models.User) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.User
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}
	var item models.User
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTopUsers(ctx context.Context, limit int) ([]models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 20)
	var items []models.User
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Order("seeds_balance desc, id asc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- ledger -----------------------------------------------------------------

func (s *Store) ApplyBalanceChange(ctx context.Context, txn *models.SeedsTransaction, level int, mark *repository.SettlementMark) error {
	if s == nil || s.db == nil || txn == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if mark != nil {
			res := tx.Model(&models.Anticipation{}).
				Where("id = ? AND resolved = ?", mark.AnticipationID, false).
				Updates(map[string]any{
					"resolved":     true,
					"result":       mark.Result,
					"seeds_earned": mark.SeedsEarned,
					"settled_at":   mark.SettledAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repository.ErrAlreadySettled
			}
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}
		res := tx.Model(&models.User{}).
			Where("id = ?", txn.UserID).
			Updates(map[string]any{
				"seeds_balance": txn.BalanceAfter,
				"level":         level,
				"updated_at":    time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (s *Store) ListSeedsTransactions(ctx context.Context, params repository.ListSeedsTransactionsParams) ([]models.SeedsTransaction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applySeedsTransactionFilters(s.db.WithContext(ctx).Model(&models.SeedsTransaction{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.SeedsTransaction
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSeedsTransactions(ctx context.Context, params repository.ListSeedsTransactionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var n int64
	query := applySeedsTransactionFilters(s.db.WithContext(ctx).Model(&models.SeedsTransaction{}), params)
	if err := query.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func applySeedsTransactionFilters(query *gorm.DB, params repository.ListSeedsTransactionsParams) *gorm.DB {
	if params.UserID != nil && *params.UserID != 0 {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.Reason != nil && strings.TrimSpace(*params.Reason) != "" {
		query = query.Where("reason = ?", strings.TrimSpace(*params.Reason))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	return query
}

func (s *Store) SumSeedsTransactionAmounts(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	if s == nil || s.db == nil || userID == 0 {
		return decimal.Zero, nil
	}
	var raw *string
	err := s.db.WithContext(ctx).
		Model(&models.SeedsTransaction{}).
		Select("SUM(amount)::text").
		Where("user_id = ?", userID).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(*raw))
}

func (s *Store) LatestSeedsTransaction(ctx context.Context, userID uint64) (*models.SeedsTransaction, error) {
	if s == nil || s.db == nil || userID == 0 {
		return nil, nil
	}
	var item models.SeedsTransaction
	err := s.db.WithContext(ctx).
		Model(&models.SeedsTransaction{}).
		Where("user_id = ?", userID).
		Order("id desc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListUserIDsWithTransactions(ctx context.Context) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var ids []uint64
	if err := s.db.WithContext(ctx).
		Model(&models.SeedsTransaction{}).
		Distinct("user_id").
		Order("user_id asc").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// --- decisions --------------------------------------------------------------

func (s *Store) CreateDecision(ctx context.Context, item *models.Decision) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetDecisionByID(ctx context.Context, id uint64) (*models.Decision, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Decision
	err := s.db.WithContext(ctx).Model(&models.Decision{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListDecisions(ctx context.Context, params repository.ListDecisionsParams) ([]models.Decision, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyDecisionFilters(s.db.WithContext(ctx).Model(&models.Decision{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Decision
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountDecisions(ctx context.Context, params repository.ListDecisionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var n int64
	query := applyDecisionFilters(s.db.WithContext(ctx).Model(&models.Decision{}), params)
	if err := query.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func applyDecisionFilters(query *gorm.DB, params repository.ListDecisionsParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Outcome != nil && strings.TrimSpace(*params.Outcome) != "" {
		query = query.Where("resolution_outcome = ?", strings.TrimSpace(*params.Outcome))
	}
	if params.Title != nil && strings.TrimSpace(*params.Title) != "" {
		query = query.Where("title ILIKE ?", "%"+strings.TrimSpace(*params.Title)+"%")
	}
	return query
}

func (s *Store) UpdateDecisionStatus(ctx context.Context, id uint64, from []string, to string) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Decision{}).Where("id = ?", id)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}
	res := query.Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) ClaimDecisionResolving(ctx context.Context, id uint64) (bool, error) {
	return s.UpdateDecisionStatus(ctx, id, []string{models.DecisionAnnounced, models.DecisionActive}, models.DecisionResolving)
}

func (s *Store) MarkDecisionResolved(ctx context.Context, id uint64, score decimal.Decimal, outcome string, confidence int, resolvedAt time.Time) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Decision{}).
		Where("id = ? AND status = ?", id, models.DecisionResolving).
		Updates(map[string]any{
			"status":                models.DecisionResolved,
			"resolution_score":      score,
			"resolution_outcome":    outcome,
			"resolution_confidence": confidence,
			"resolved_at":           resolvedAt,
			"updated_at":            time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) ListDueUnresolvedDecisions(ctx context.Context, now time.Time, limit int) ([]models.Decision, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	limit = normalizeLimit(limit, 50)
	var items []models.Decision
	if err := s.db.WithContext(ctx).
		Model(&models.Decision{}).
		Where("due_at IS NOT NULL AND due_at <= ?", now).
		Where("status IN ?", []string{models.DecisionAnnounced, models.DecisionActive}).
		Order("due_at asc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- indicators -------------------------------------------------------------

func (s *Store) CreateIndicator(ctx context.Context, item *models.Indicator) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetIndicatorByID(ctx context.Context, id uint64) (*models.Indicator, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Indicator
	err := s.db.WithContext(ctx).Model(&models.Indicator{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListIndicatorsByDecisionID(ctx context.Context, decisionID uint64) ([]models.Indicator, error) {
	if s == nil || s.db == nil || decisionID == 0 {
		return nil, nil
	}
	var items []models.Indicator
	if err := s.db.WithContext(ctx).
		Model(&models.Indicator{}).
		Where("decision_id = ?", decisionID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertIndicatorSnapshot(ctx context.Context, item *models.IndicatorSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "indicator_id"}, {Name: "recorded_at"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(item).Error
}

func (s *Store) ListIndicatorSnapshots(ctx context.Context, indicatorID uint64) ([]models.IndicatorSnapshot, error) {
	if s == nil || s.db == nil || indicatorID == 0 {
		return nil, nil
	}
	var items []models.IndicatorSnapshot
	if err := s.db.WithContext(ctx).
		Model(&models.IndicatorSnapshot{}).
		Where("indicator_id = ?", indicatorID).
		Order("recorded_at asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- anticipations ----------------------------------------------------------

func (s *Store) InsertAnticipation(ctx context.Context, item *models.Anticipation) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetAnticipationByID(ctx context.Context, id uint64) (*models.Anticipation, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Anticipation
	err := s.db.WithContext(ctx).Model(&models.Anticipation{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListOpenAnticipationsByDecisionID(ctx context.Context, decisionID uint64) ([]models.Anticipation, error) {
	if s == nil || s.db == nil || decisionID == 0 {
		return nil, nil
	}
	var items []models.Anticipation
	if err := s.db.WithContext(ctx).
		Model(&models.Anticipation{}).
		Where("decision_id = ? AND resolved = ?", decisionID, false).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOpenAnticipationsByDecisionID(ctx context.Context, decisionID uint64) (int64, error) {
	if s == nil || s.db == nil || decisionID == 0 {
		return 0, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&models.Anticipation{}).
		Where("decision_id = ? AND resolved = ?", decisionID, false).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) ListAnticipations(ctx context.Context, params repository.ListAnticipationsParams) ([]models.Anticipation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyAnticipationFilters(s.db.WithContext(ctx).Model(&models.Anticipation{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Anticipation
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountAnticipations(ctx context.Context, params repository.ListAnticipationsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var n int64
	query := applyAnticipationFilters(s.db.WithContext(ctx).Model(&models.Anticipation{}), params)
	if err := query.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func applyAnticipationFilters(query *gorm.DB, params repository.ListAnticipationsParams) *gorm.DB {
	if params.UserID != nil && *params.UserID != 0 {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.DecisionID != nil && *params.DecisionID != 0 {
		query = query.Where("decision_id = ?", *params.DecisionID)
	}
	if params.Resolved != nil {
		query = query.Where("resolved = ?", *params.Resolved)
	}
	return query
}

// --- featured-argument slots ------------------------------------------------

func (s *Store) GetTopArgument(ctx context.Context, decisionID uint64, position string) (*models.TopArgument, error) {
	if s == nil || s.db == nil || decisionID == 0 {
		return nil, nil
	}
	var item models.TopArgument
	err := s.db.WithContext(ctx).
		Model(&models.TopArgument{}).
		Where("decision_id = ? AND position = ?", decisionID, position).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTopArgumentsByDecisionID(ctx context.Context, decisionID uint64) ([]models.TopArgument, error) {
	if s == nil || s.db == nil || decisionID == 0 {
		return nil, nil
	}
	var items []models.TopArgument
	if err := s.db.WithContext(ctx).
		Model(&models.TopArgument{}).
		Where("decision_id = ?", decisionID).
		Order("position asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateTopArgument(ctx context.Context, item *models.TopArgument) (bool, error) {
	if s == nil || s.db == nil || item == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "decision_id"}, {Name: "position"}},
		DoNothing: true,
	}).Create(item)
	return res.RowsAffected == 1, res.Error
}

func (s *Store) SwapTopArgumentBid(ctx context.Context, decisionID uint64, position string, prevBid decimal.Decimal, next models.TopArgument) (bool, error) {
	if s == nil || s.db == nil || decisionID == 0 {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.TopArgument{}).
		Where("decision_id = ? AND position = ? AND closed = ? AND current_bid = ?", decisionID, position, false, prevBid).
		Updates(map[string]any{
			"current_bid":    next.CurrentBid,
			"content":        next.Content,
			"holder_user_id": next.HolderUserID,
			"updated_at":     next.UpdatedAt,
		})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) CloseTopArgumentsByDecisionID(ctx context.Context, decisionID uint64) (int64, error) {
	if s == nil || s.db == nil || decisionID == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.TopArgument{}).
		Where("decision_id = ? AND closed = ?", decisionID, false).
		Updates(map[string]any{"closed": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// --- query helpers ----------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 || limit > 1000 {
		return fallback
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
