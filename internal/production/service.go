package production

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/avdeyev/techcard-service/internal/concurrency"
	"github.com/avdeyev/techcard-service/internal/domain"
	"github.com/avdeyev/techcard-service/internal/event"
	"github.com/avdeyev/techcard-service/internal/logger"
	"github.com/avdeyev/techcard-service/internal/metrics"
)

// RecipeSource supplies the known tech cards. Read-only from the engine's
// perspective; must be safe for concurrent use.
type RecipeSource interface {
	ListRecipes(ctx context.Context) ([]domain.Recipe, error)
}

// Inventory wraps the external catalog. FindProductByCode returns (nil, nil)
// when no product carries the code.
type Inventory interface {
	FindProductByCode(ctx context.Context, code string) (*domain.StockItem, error)
	UpdateProductQuantity(ctx context.Context, productID string, quantity decimal.Decimal) error
	CreateProduct(ctx context.Context, item domain.NewStockItem) (string, error)
}

// DealSource fetches deal details for audit context and the deal's product
// lines for product-driven runs.
type DealSource interface {
	GetDeal(ctx context.Context, dealID string) (*domain.Deal, error)
	GetDealProductRows(ctx context.Context, dealID string) ([]domain.DealProductRow, error)
}

// CommentSink appends an audit entry to the deal timeline. Best-effort: the
// engine discards its errors.
type CommentSink interface {
	AddTimelineComment(ctx context.Context, dealID, text string) error
}

// Service defines the interface for production trigger processing
type Service interface {
	// ProcessStageChange executes every tech card triggered by the deal's
	// new stage, producing one unit batch per card.
	ProcessStageChange(ctx context.Context, dealID, newStageID string) (*domain.ProcessingReport, error)

	// ProcessStageChangeScaled is ProcessStageChange with an explicit
	// output multiplier, for deals that produce more than one batch.
	ProcessStageChangeScaled(ctx context.Context, dealID, newStageID string, multiplier int) (*domain.ProcessingReport, error)

	// ProcessDealProducts runs production from the deal's product lines:
	// each line whose product name matches a tech card produces that card,
	// scaled by the line quantity. Stage triggers are not consulted.
	ProcessDealProducts(ctx context.Context, dealID string) (*domain.ProcessingReport, error)
}

type service struct {
	recipes   RecipeSource
	inventory Inventory
	deals     DealSource
	comments  CommentSink
	locks     *concurrency.LockManager
	eventBus  event.Bus
}

// NewService creates a new production trigger service
func NewService(recipes RecipeSource, inventory Inventory, deals DealSource, comments CommentSink, locks *concurrency.LockManager, eventBus event.Bus) Service {
	return &service{
		recipes:   recipes,
		inventory: inventory,
		deals:     deals,
		comments:  comments,
		locks:     locks,
		eventBus:  eventBus,
	}
}

func (s *service) ProcessStageChange(ctx context.Context, dealID, newStageID string) (*domain.ProcessingReport, error) {
	return s.ProcessStageChangeScaled(ctx, dealID, newStageID, 1)
}

func (s *service) ProcessStageChangeScaled(ctx context.Context, dealID, newStageID string, multiplier int) (*domain.ProcessingReport, error) {
	log := logger.FromContext(ctx)

	if dealID == "" {
		return nil, fmt.Errorf("%w: deal id is empty", domain.ErrInvalidEvent)
	}
	if newStageID == "" {
		return nil, fmt.Errorf("%w: stage id is empty", domain.ErrInvalidEvent)
	}
	if multiplier < 1 {
		return nil, fmt.Errorf("%w: multiplier must be at least 1", domain.ErrInvalidEvent)
	}

	recipes, err := s.recipes.ListRecipes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecipeLookup, err)
	}

	var matched []domain.Recipe
	for _, r := range recipes {
		if r.TriggerStageID != "" && r.TriggerStageID == newStageID {
			matched = append(matched, r)
		}
	}

	if len(matched) == 0 {
		log.Info("No tech cards for stage", "deal_id", dealID, "stage_id", newStageID)
		return &domain.ProcessingReport{
			Status:  domain.ReportStatusNoMatch,
			DealID:  dealID,
			StageID: newStageID,
		}, nil
	}

	// The audit comment needs deal identity, so no run starts without it.
	deal, err := s.deals.GetDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDealLookup, err)
	}

	log.Info("Production triggered",
		"deal_id", deal.ID,
		"stage_id", newStageID,
		"matched_cards", len(matched),
		"multiplier", multiplier)

	report := &domain.ProcessingReport{
		Status:  domain.ReportStatusSuccess,
		DealID:  dealID,
		StageID: newStageID,
		Recipes: make([]domain.RecipeResult, 0, len(matched)),
	}

	for _, r := range matched {
		result := s.executeRun(ctx, r, deal, decimal.NewFromInt(int64(multiplier)))
		if result.HasErrors() {
			report.Status = domain.ReportStatusPartial
		}
		report.Recipes = append(report.Recipes, result)
		s.publishRunCompleted(ctx, dealID, result)
	}

	return report, nil
}

func (s *service) ProcessDealProducts(ctx context.Context, dealID string) (*domain.ProcessingReport, error) {
	log := logger.FromContext(ctx)

	if dealID == "" {
		return nil, fmt.Errorf("%w: deal id is empty", domain.ErrInvalidEvent)
	}

	recipes, err := s.recipes.ListRecipes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecipeLookup, err)
	}

	deal, err := s.deals.GetDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDealLookup, err)
	}

	rows, err := s.deals.GetDealProductRows(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDealLookup, err)
	}

	type run struct {
		recipe  domain.Recipe
		batches decimal.Decimal
	}
	var runs []run
	for _, row := range rows {
		if row.Quantity.Sign() <= 0 {
			continue
		}
		for _, r := range recipes {
			if strings.EqualFold(r.ProductName, row.ProductName) {
				runs = append(runs, run{recipe: r, batches: row.Quantity})
				break
			}
		}
	}

	if len(runs) == 0 {
		log.Info("No tech cards for deal products", "deal_id", dealID, "rows", len(rows))
		return &domain.ProcessingReport{
			Status:  domain.ReportStatusNoMatch,
			DealID:  dealID,
			StageID: deal.StageID,
		}, nil
	}

	log.Info("Deal-product production triggered",
		"deal_id", deal.ID,
		"stage_id", deal.StageID,
		"matched_rows", len(runs))

	report := &domain.ProcessingReport{
		Status:  domain.ReportStatusSuccess,
		DealID:  dealID,
		StageID: deal.StageID,
		Recipes: make([]domain.RecipeResult, 0, len(runs)),
	}

	for _, ru := range runs {
		result := s.executeRun(ctx, ru.recipe, deal, ru.batches)
		if result.HasErrors() {
			report.Status = domain.ReportStatusPartial
		}
		report.Recipes = append(report.Recipes, result)
		s.publishRunCompleted(ctx, dealID, result)
	}

	return report, nil
}

// executeRun performs one production run: deduct every ingredient in card
// order, credit the finished good, append the audit comment. Failures inside
// the run are recorded as actions, never returned; the run always completes
// and reports. The deduction phase is deliberately not transactional across
// ingredients: an earlier successful write-off stands when a later one fails,
// and the report is the tool for manual reconciliation.
func (s *service) executeRun(ctx context.Context, r domain.Recipe, deal *domain.Deal, batches decimal.Decimal) domain.RecipeResult {
	log := logger.FromContext(ctx)

	requestedDec := decimal.NewFromInt(int64(r.OutputQuantity)).Mul(batches)

	result := domain.RecipeResult{
		RecipeID:    r.ID,
		ProductName: r.ProductName,
		Actions:     make([]domain.ActionResult, 0, len(r.Ingredients)+1),
	}

	for _, ing := range r.Ingredients {
		action := s.writeOffMaterial(ctx, ing, requestedDec)
		metrics.StockWriteOffs.WithLabelValues(string(action.Status)).Inc()
		result.Actions = append(result.Actions, action)
	}

	credit := s.addFinishedProduct(ctx, r, requestedDec)
	metrics.StockCredits.WithLabelValues(string(credit.Status)).Inc()
	result.Actions = append(result.Actions, credit)

	// Best-effort audit trail; a comment failure never changes the outcome.
	comment := buildAuditComment(r, requestedDec)
	if err := s.comments.AddTimelineComment(ctx, deal.ID, comment); err != nil {
		metrics.AuditCommentErrors.Inc()
		log.Warn("Failed to append audit comment", "deal_id", deal.ID, "recipe_id", r.ID, "error", err)
	}

	return result
}

// writeOffMaterial deducts one ingredient. The find/check/update sequence on
// a stock item is not atomic at the CRM, so it runs under the per-code lock.
func (s *service) writeOffMaterial(ctx context.Context, ing domain.Ingredient, requested decimal.Decimal) domain.ActionResult {
	required := ing.Quantity.Mul(requested)

	action := domain.ActionResult{
		Kind:     domain.ActionWriteOff,
		Material: ing.Name,
		Quantity: required,
		Unit:     ing.Unit,
	}

	s.locks.WithLock(stockLockKey(ing.Code), func() {
		item, err := s.inventory.FindProductByCode(ctx, ing.Code)
		if err != nil {
			action.Status = domain.ActionStatusError
			action.Message = err.Error()
			return
		}
		if item == nil {
			action.Status = domain.ActionStatusError
			action.Message = domain.ErrMsgMaterialNotFound
			return
		}

		if item.Quantity.LessThan(required) {
			action.Status = domain.ActionStatusError
			action.Message = fmt.Sprintf("%s: required=%s available=%s",
				domain.ErrMsgInsufficientStock, required.String(), item.Quantity.String())
			return
		}

		remaining := item.Quantity.Sub(required)
		if err := s.inventory.UpdateProductQuantity(ctx, item.ID, remaining); err != nil {
			action.Status = domain.ActionStatusError
			action.Message = err.Error()
			return
		}

		action.Status = domain.ActionStatusSuccess
		action.Remaining = &remaining
	})

	return action
}

// addFinishedProduct credits the finished good, creating the catalog entry
// when it does not exist yet.
func (s *service) addFinishedProduct(ctx context.Context, r domain.Recipe, requested decimal.Decimal) domain.ActionResult {
	code := r.FinishedGoodCode()

	action := domain.ActionResult{
		Kind:     domain.ActionAddProduct,
		Product:  r.ProductName,
		Quantity: requested,
	}

	s.locks.WithLock(stockLockKey(code), func() {
		item, err := s.inventory.FindProductByCode(ctx, code)
		if err != nil {
			action.Status = domain.ActionStatusError
			action.Message = err.Error()
			return
		}

		if item != nil {
			total := item.Quantity.Add(requested)
			if err := s.inventory.UpdateProductQuantity(ctx, item.ID, total); err != nil {
				action.Status = domain.ActionStatusError
				action.Message = err.Error()
				return
			}
			action.Status = domain.ActionStatusUpdated
			action.Total = &total
			return
		}

		productID, err := s.inventory.CreateProduct(ctx, domain.NewStockItem{
			Name:     r.ProductName,
			Code:     code,
			Quantity: requested,
		})
		if err != nil {
			action.Status = domain.ActionStatusError
			action.Message = err.Error()
			return
		}
		action.Status = domain.ActionStatusCreated
		action.ProductID = productID
	})

	return action
}

func (s *service) publishRunCompleted(ctx context.Context, dealID string, result domain.RecipeResult) {
	errorCount := 0
	for _, a := range result.Actions {
		if a.Status == domain.ActionStatusError {
			errorCount++
		}
	}

	status := domain.ReportStatusSuccess
	if errorCount > 0 {
		status = domain.ReportStatusPartial
	}

	ev := event.NewProductionCompletedEvent(dealID, result.RecipeID, result.ProductName, string(status), errorCount)
	if err := s.eventBus.Publish(ctx, ev); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish production event", "error", err)
	}
}

func stockLockKey(code string) string {
	return "stock:" + code
}

// buildAuditComment composes the deal timeline entry: what was produced and
// the per-unit bill of materials of the card.
func buildAuditComment(r domain.Recipe, produced decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("🏭 Automatic production\n\n")
	fmt.Fprintf(&b, "📦 Produced: %s x%s\n\n", r.ProductName, produced.String())
	b.WriteString("📋 Materials used:\n")
	for i, ing := range r.Ingredients {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "• %s: %s %s", ing.Name, ing.Quantity.String(), ing.Unit)
	}
	return b.String()
}
