package production

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeyev/techcard-service/internal/concurrency"
	"github.com/avdeyev/techcard-service/internal/domain"
	"github.com/avdeyev/techcard-service/internal/event"
)

// MockRecipeSource for production tests
type MockRecipeSource struct {
	mu      sync.Mutex
	recipes []domain.Recipe

	// Error injection for testing
	shouldFailList bool
	listError      error
	listCalls      int
}

func (m *MockRecipeSource) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.shouldFailList {
		return nil, m.listError
	}
	out := make([]domain.Recipe, len(m.recipes))
	copy(out, m.recipes)
	return out, nil
}

type stockRecord struct {
	id       string
	name     string
	code     string
	quantity decimal.Decimal
}

// MockInventory simulates the external catalog with thread-safety
type MockInventory struct {
	mu     sync.Mutex
	stock  map[string]*stockRecord // keyed by code
	nextID int

	findCalls   int
	updateCalls int
	createCalls int

	// Error injection for testing
	shouldFailFind   bool
	shouldFailUpdate bool
	shouldFailCreate bool
	findError        error
	updateError      error
	createError      error
}

func NewMockInventory() *MockInventory {
	return &MockInventory{
		stock:  make(map[string]*stockRecord),
		nextID: 100,
	}
}

func (m *MockInventory) AddStock(code, name string, quantity decimal.Decimal) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("%d", m.nextID)
	m.stock[code] = &stockRecord{id: id, name: name, code: code, quantity: quantity}
	return id
}

func (m *MockInventory) Quantity(code string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.stock[code]; ok {
		return rec.quantity
	}
	return decimal.Zero
}

func (m *MockInventory) FindProductByCode(ctx context.Context, code string) (*domain.StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if m.shouldFailFind {
		return nil, m.findError
	}
	rec, ok := m.stock[code]
	if !ok {
		return nil, nil
	}
	return &domain.StockItem{
		ID:       rec.id,
		Name:     rec.name,
		Code:     rec.code,
		Quantity: rec.quantity,
	}, nil
}

func (m *MockInventory) UpdateProductQuantity(ctx context.Context, productID string, quantity decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.shouldFailUpdate {
		return m.updateError
	}
	for _, rec := range m.stock {
		if rec.id == productID {
			rec.quantity = quantity
			return nil
		}
	}
	return fmt.Errorf("product %s not found", productID)
}

func (m *MockInventory) CreateProduct(ctx context.Context, item domain.NewStockItem) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.shouldFailCreate {
		return "", m.createError
	}
	m.nextID++
	id := fmt.Sprintf("%d", m.nextID)
	m.stock[item.Code] = &stockRecord{id: id, name: item.Name, code: item.Code, quantity: item.Quantity}
	return id, nil
}

// MockDealSource for production tests
type MockDealSource struct {
	mu   sync.Mutex
	deal *domain.Deal
	rows []domain.DealProductRow

	shouldFailGet  bool
	shouldFailRows bool
	getError       error
	rowsError      error
	getCalls       int
	rowsCalls      int
}

func (m *MockDealSource) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.shouldFailGet {
		return nil, m.getError
	}
	if m.deal != nil {
		return m.deal, nil
	}
	return &domain.Deal{ID: dealID, Title: "Deal " + dealID, StageID: "WON"}, nil
}

func (m *MockDealSource) GetDealProductRows(ctx context.Context, dealID string) ([]domain.DealProductRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rowsCalls++
	if m.shouldFailRows {
		return nil, m.rowsError
	}
	return m.rows, nil
}

// MockCommentSink for production tests
type MockCommentSink struct {
	mu       sync.Mutex
	comments []string

	shouldFailAdd bool
	addError      error
}

func (m *MockCommentSink) AddTimelineComment(ctx context.Context, dealID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailAdd {
		return m.addError
	}
	m.comments = append(m.comments, text)
	return nil
}

// MockEventBus captures published events
type MockEventBus struct {
	mu     sync.Mutex
	events []event.Event
}

func (m *MockEventBus) Publish(ctx context.Context, evt event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *MockEventBus) Subscribe(eventType event.Type, handler event.Handler) {}

func (m *MockEventBus) Events() []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Event, len(m.events))
	copy(out, m.events)
	return out
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func chairRecipe() domain.Recipe {
	return domain.Recipe{
		ID:             "chair-oak",
		ProductName:    "Oak Chair",
		ProductCode:    "CHAIR-1",
		TriggerStageID: "WON",
		OutputQuantity: 1,
		Ingredients: []domain.Ingredient{
			{Name: "Oak board", Quantity: qty("2"), Unit: "pcs", Code: "WOOD"},
			{Name: "Screw", Quantity: qty("8"), Unit: "pcs", Code: "SCREW"},
		},
	}
}

func newTestService(recipes *MockRecipeSource, inv *MockInventory, deals *MockDealSource, comments *MockCommentSink, bus event.Bus) Service {
	if bus == nil {
		bus = &MockEventBus{}
	}
	return NewService(recipes, inv, deals, comments, concurrency.NewLockManager(), bus)
}

func TestProcessStageChange_InvalidEvent(t *testing.T) {
	svc := newTestService(&MockRecipeSource{}, NewMockInventory(), &MockDealSource{}, &MockCommentSink{}, nil)

	tests := []struct {
		name       string
		dealID     string
		stageID    string
		multiplier int
	}{
		{"empty deal id", "", "WON", 1},
		{"empty stage id", "42", "", 1},
		{"zero multiplier", "42", "WON", 0},
		{"negative multiplier", "42", "WON", -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := svc.ProcessStageChangeScaled(context.Background(), tt.dealID, tt.stageID, tt.multiplier)
			assert.Nil(t, report)
			assert.ErrorIs(t, err, domain.ErrInvalidEvent)
		})
	}
}

func TestProcessStageChange_NoMatch(t *testing.T) {
	recipes := &MockRecipeSource{recipes: []domain.Recipe{chairRecipe()}}
	inv := NewMockInventory()
	deals := &MockDealSource{}
	svc := newTestService(recipes, inv, deals, &MockCommentSink{}, nil)

	report, err := svc.ProcessStageChange(context.Background(), "42", "LOST")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusNoMatch, report.Status)
	assert.Equal(t, "42", report.DealID)
	assert.Equal(t, "LOST", report.StageID)
	assert.Empty(t, report.Recipes)

	// Nothing external should be touched on a miss
	assert.Equal(t, 0, deals.getCalls)
	assert.Equal(t, 0, inv.findCalls)
	assert.Equal(t, 0, inv.updateCalls)
	assert.Equal(t, 0, inv.createCalls)
}

func TestProcessStageChange_BlankTriggerNeverMatches(t *testing.T) {
	r := chairRecipe()
	r.TriggerStageID = ""
	recipes := &MockRecipeSource{recipes: []domain.Recipe{r}}
	svc := newTestService(recipes, NewMockInventory(), &MockDealSource{}, &MockCommentSink{}, nil)

	report, err := svc.ProcessStageChange(context.Background(), "42", "")
	assert.Nil(t, report)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	report, err = svc.ProcessStageChange(context.Background(), "42", "WON2")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusNoMatch, report.Status)
}

func TestProcessStageChange_RecipeLookupError(t *testing.T) {
	recipes := &MockRecipeSource{shouldFailList: true, listError: errors.New("disk gone")}
	svc := newTestService(recipes, NewMockInventory(), &MockDealSource{}, &MockCommentSink{}, nil)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	assert.Nil(t, report)
	assert.ErrorIs(t, err, domain.ErrRecipeLookup)
}

func TestProcessStageChange_DealLookupError(t *testing.T) {
	recipes := &MockRecipeSource{recipes: []domain.Recipe{chairRecipe()}}
	inv := NewMockInventory()
	inv.AddStock("WOOD", "Oak board", qty("10"))
	deals := &MockDealSource{shouldFailGet: true, getError: errors.New("deal not found")}
	svc := newTestService(recipes, inv, deals, &MockCommentSink{}, nil)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	assert.Nil(t, report)
	assert.ErrorIs(t, err, domain.ErrDealLookup)

	// No deduction may happen without deal identity for the audit trail
	assert.Equal(t, 0, inv.findCalls)
	assert.Equal(t, 0, inv.updateCalls)
}

func TestProcessStageChange_FullSuccess(t *testing.T) {
	recipes := &MockRecipeSource{recipes: []domain.Recipe{chairRecipe()}}
	inv := NewMockInventory()
	inv.AddStock("WOOD", "Oak board", qty("10"))
	inv.AddStock("SCREW", "Screw", qty("20"))
	comments := &MockCommentSink{}
	bus := &MockEventBus{}
	svc := newTestService(recipes, inv, &MockDealSource{}, comments, bus)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSuccess, report.Status)
	require.Len(t, report.Recipes, 1)

	run := report.Recipes[0]
	assert.Equal(t, "chair-oak", run.RecipeID)
	assert.False(t, run.HasErrors())
	require.Len(t, run.Actions, 3)

	wood := run.Actions[0]
	assert.Equal(t, domain.ActionWriteOff, wood.Kind)
	assert.Equal(t, domain.ActionStatusSuccess, wood.Status)
	assert.Equal(t, "Oak board", wood.Material)
	assert.True(t, wood.Quantity.Equal(qty("2")))
	require.NotNil(t, wood.Remaining)
	assert.True(t, wood.Remaining.Equal(qty("8")))

	screw := run.Actions[1]
	assert.Equal(t, domain.ActionStatusSuccess, screw.Status)
	require.NotNil(t, screw.Remaining)
	assert.True(t, screw.Remaining.Equal(qty("12")))

	credit := run.Actions[2]
	assert.Equal(t, domain.ActionAddProduct, credit.Kind)
	assert.Equal(t, domain.ActionStatusCreated, credit.Status)
	assert.NotEmpty(t, credit.ProductID)

	// Stock levels after the run
	assert.True(t, inv.Quantity("WOOD").Equal(qty("8")))
	assert.True(t, inv.Quantity("SCREW").Equal(qty("12")))
	assert.True(t, inv.Quantity("CHAIR-1").Equal(qty("1")))

	// Audit comment mentions the product and every material
	require.Len(t, comments.comments, 1)
	assert.Contains(t, comments.comments[0], "Oak Chair x1")
	assert.Contains(t, comments.comments[0], "Oak board")
	assert.Contains(t, comments.comments[0], "Screw")

	// Completion event carries the per-run status
	events := bus.Events()
	require.Len(t, events, 1)
	payload, ok := events[0].Payload.(event.ProductionRunPayloadV1)
	require.True(t, ok)
	assert.Equal(t, string(domain.ReportStatusSuccess), payload.ReportStatus)
	assert.Equal(t, 0, payload.ActionErrors)
}

func TestProcessStageChange_InsufficientStock(t *testing.T) {
	r := domain.Recipe{
		ID: "t1", ProductName: "Widget", ProductCode: "WID", TriggerStageID: "WON", OutputQuantity: 1,
		Ingredients: []domain.Ingredient{
			{Name: "Steel", Quantity: qty("5"), Unit: "kg", Code: "STEEL"},
		},
	}
	recipes := &MockRecipeSource{recipes: []domain.Recipe{r}}
	inv := NewMockInventory()
	inv.AddStock("STEEL", "Steel", qty("3"))
	svc := newTestService(recipes, inv, &MockDealSource{}, &MockCommentSink{}, nil)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusPartial, report.Status)

	action := report.Recipes[0].Actions[0]
	assert.Equal(t, domain.ActionStatusError, action.Status)
	assert.Contains(t, action.Message, domain.ErrMsgInsufficientStock)
	assert.Contains(t, action.Message, "required=5")
	assert.Contains(t, action.Message, "available=3")

	// A short line is never partially deducted
	assert.True(t, inv.Quantity("STEEL").Equal(qty("3")))
	assert.Equal(t, 0, inv.updateCalls)
}

func TestProcessStageChange_EarlierWriteOffStands(t *testing.T) {
	recipes := &MockRecipeSource{recipes: []domain.Recipe{chairRecipe()}}
	inv := NewMockInventory()
	inv.AddStock("WOOD", "Oak board", qty("10"))
	inv.AddStock("SCREW", "Screw", qty("3")) // 8 required
	bus := &MockEventBus{}
	svc := newTestService(recipes, inv, &MockDealSource{}, &MockCommentSink{}, bus)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusPartial, report.Status)

	run := report.Recipes[0]
	require.Len(t, run.Actions, 3)
	assert.Equal(t, domain.ActionStatusSuccess, run.Actions[0].Status)
	assert.Equal(t, domain.ActionStatusError, run.Actions[1].Status)

	// The wood deduction is not rolled back, and the finished good is
	// still credited; the report is the reconciliation record.
	assert.True(t, inv.Quantity("WOOD").Equal(qty("8")))
	assert.True(t, inv.Quantity("SCREW").Equal(qty("3")))
	assert.True(t, inv.Quantity("CHAIR-1").Equal(qty("1")))

	events := bus.Events()
	require.Len(t, events, 1)
	payload := events[0].Payload.(event.ProductionRunPayloadV1)
	assert.Equal(t, string(domain.ReportStatusPartial), payload.ReportStatus)
	assert.Equal(t, 1, payload.ActionErrors)
}

func TestProcessStageChange_MaterialNotFound(t *testing.T) {
	recipes := &MockRecipeSource{recipes: []domain.Recipe{chairRecipe()}}
	inv := NewMockInventory()
	inv.AddStock("SCREW", "Screw", qty("20"))
	svc := newTestService(recipes, inv, &MockDealSource{}, &MockCommentSink{}, nil)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusPartial, report.Status)

	wood := report.Recipes[0].Actions[0]
	assert.Equal(t, domain.ActionStatusError, wood.Status)
	assert.Equal(t, domain.ErrMsgMaterialNotFound, wood.Message)
}

func TestProcessStageChange_FinishedGoodExisting(t *testing.T) {
	recipes := &MockRecipeSource{recipes: []domain.Recipe{chairRecipe()}}
	inv := NewMockInventory()
	inv.AddStock("WOOD", "Oak board", qty("10"))
	inv.AddStock("SCREW", "Screw", qty("20"))
	inv.AddStock("CHAIR-1", "Oak Chair", qty("4"))
	svc := newTestService(recipes, inv, &MockDealSource{}, &MockCommentSink{}, nil)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSuccess, report.Status)

	credit := report.Recipes[0].Actions[2]
	assert.Equal(t, domain.ActionStatusUpdated, credit.Status)
	require.NotNil(t, credit.Total)
	assert.True(t, credit.Total.Equal(qty("5")))
	assert.True(t, inv.Quantity("CHAIR-1").Equal(qty("5")))
	assert.Equal(t, 0, inv.createCalls)
}

func TestProcessStageChange_FallbackProductCode(t *testing.T) {
	r := chairRecipe()
	r.ProductCode = ""
	recipes := &MockRecipeSource{recipes: []domain.Recipe{r}}
	inv := NewMockInventory()
	inv.AddStock("WOOD", "Oak board", qty("10"))
	inv.AddStock("SCREW", "Screw", qty("20"))
	svc := newTestService(recipes, inv, &MockDealSource{}, &MockCommentSink{}, nil)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSuccess, report.Status)
	assert.True(t, inv.Quantity("FINISHED_chair-oak").Equal(qty("1")))
}

func TestProcessStageChange_Multiplier(t *testing.T) {
	r := chairRecipe()
	r.OutputQuantity = 2
	recipes := &MockRecipeSource{recipes: []domain.Recipe{r}}
	inv := NewMockInventory()
	inv.AddStock("WOOD", "Oak board", qty("30"))
	inv.AddStock("SCREW", "Screw", qty("100"))
	comments := &MockCommentSink{}
	svc := newTestService(recipes, inv, &MockDealSource{}, comments, nil)

	// 2 per batch x3 batches = 6 chairs: 12 boards, 48 screws
	report, err := svc.ProcessStageChangeScaled(context.Background(), "42", "WON", 3)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSuccess, report.Status)

	assert.True(t, inv.Quantity("WOOD").Equal(qty("18")))
	assert.True(t, inv.Quantity("SCREW").Equal(qty("52")))
	assert.True(t, inv.Quantity("CHAIR-1").Equal(qty("6")))

	require.Len(t, comments.comments, 1)
	assert.Contains(t, comments.comments[0], "Oak Chair x6")
}

func TestProcessStageChange_FractionalQuantities(t *testing.T) {
	r := domain.Recipe{
		ID: "glue-batch", ProductName: "Glued Panel", ProductCode: "PANEL", TriggerStageID: "WON", OutputQuantity: 1,
		Ingredients: []domain.Ingredient{
			{Name: "Glue", Quantity: qty("0.75"), Unit: "l", Code: "GLUE"},
		},
	}
	recipes := &MockRecipeSource{recipes: []domain.Recipe{r}}
	inv := NewMockInventory()
	inv.AddStock("GLUE", "Glue", qty("2"))
	svc := newTestService(recipes, inv, &MockDealSource{}, &MockCommentSink{}, nil)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSuccess, report.Status)
	assert.True(t, inv.Quantity("GLUE").Equal(qty("1.25")))
}

func TestProcessStageChange_UpdateFailure(t *testing.T) {
	recipes := &MockRecipeSource{recipes: []domain.Recipe{chairRecipe()}}
	inv := NewMockInventory()
	inv.AddStock("WOOD", "Oak board", qty("10"))
	inv.AddStock("SCREW", "Screw", qty("20"))
	inv.shouldFailUpdate = true
	inv.updateError = errors.New("catalog write rejected")
	svc := newTestService(recipes, inv, &MockDealSource{}, &MockCommentSink{}, nil)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusPartial, report.Status)

	for _, a := range report.Recipes[0].Actions[:2] {
		assert.Equal(t, domain.ActionStatusError, a.Status)
		assert.Equal(t, "catalog write rejected", a.Message)
	}
}

func TestProcessStageChange_CommentFailureDoesNotChangeOutcome(t *testing.T) {
	recipes := &MockRecipeSource{recipes: []domain.Recipe{chairRecipe()}}
	inv := NewMockInventory()
	inv.AddStock("WOOD", "Oak board", qty("10"))
	inv.AddStock("SCREW", "Screw", qty("20"))
	comments := &MockCommentSink{shouldFailAdd: true, addError: errors.New("timeline rejected")}
	svc := newTestService(recipes, inv, &MockDealSource{}, comments, nil)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSuccess, report.Status)
	assert.False(t, report.Recipes[0].HasErrors())
	assert.True(t, inv.Quantity("WOOD").Equal(qty("8")))
}

func TestProcessStageChange_MultipleMatchedCards(t *testing.T) {
	second := domain.Recipe{
		ID: "stool-oak", ProductName: "Oak Stool", ProductCode: "STOOL-1", TriggerStageID: "WON", OutputQuantity: 1,
		Ingredients: []domain.Ingredient{
			{Name: "Oak board", Quantity: qty("1"), Unit: "pcs", Code: "WOOD"},
		},
	}
	recipes := &MockRecipeSource{recipes: []domain.Recipe{chairRecipe(), second}}
	inv := NewMockInventory()
	inv.AddStock("WOOD", "Oak board", qty("10"))
	inv.AddStock("SCREW", "Screw", qty("20"))
	comments := &MockCommentSink{}
	bus := &MockEventBus{}
	svc := newTestService(recipes, inv, &MockDealSource{}, comments, bus)

	report, err := svc.ProcessStageChange(context.Background(), "42", "WON")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSuccess, report.Status)
	require.Len(t, report.Recipes, 2)

	// Cards run in order, sharing the same stock pool
	assert.True(t, inv.Quantity("WOOD").Equal(qty("7")))
	assert.Len(t, comments.comments, 2)
	assert.Len(t, bus.Events(), 2)
}

func TestProcessStageChange_ConcurrentDeductionsSerialize(t *testing.T) {
	r := domain.Recipe{
		ID: "t1", ProductName: "Widget", ProductCode: "WID", TriggerStageID: "WON", OutputQuantity: 1,
		Ingredients: []domain.Ingredient{
			{Name: "Steel", Quantity: qty("1"), Unit: "kg", Code: "STEEL"},
		},
	}
	recipes := &MockRecipeSource{recipes: []domain.Recipe{r}}
	inv := NewMockInventory()
	inv.AddStock("STEEL", "Steel", qty("100"))
	inv.AddStock("WID", "Widget", qty("0"))
	svc := newTestService(recipes, inv, &MockDealSource{}, &MockCommentSink{}, nil)

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			_, err := svc.ProcessStageChange(context.Background(), fmt.Sprintf("deal-%d", n), "WON")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Every run saw a consistent read-modify-write under the stock lock
	assert.True(t, inv.Quantity("STEEL").Equal(qty("80")),
		"expected 80, got %s", inv.Quantity("STEEL"))
	assert.True(t, inv.Quantity("WID").Equal(qty("20")),
		"expected 20, got %s", inv.Quantity("WID"))
}

func TestProcessDealProducts(t *testing.T) {
	recipes := &MockRecipeSource{recipes: []domain.Recipe{chairRecipe()}}
	inv := NewMockInventory()
	inv.AddStock("WOOD", "Oak board", qty("20"))
	inv.AddStock("SCREW", "Screw", qty("100"))
	deals := &MockDealSource{rows: []domain.DealProductRow{
		{ProductName: "oak chair", Quantity: qty("3")}, // name match is case-insensitive
		{ProductName: "Unrelated Service", Quantity: qty("1")},
	}}
	comments := &MockCommentSink{}
	svc := newTestService(recipes, inv, deals, comments, nil)

	report, err := svc.ProcessDealProducts(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSuccess, report.Status)
	require.Len(t, report.Recipes, 1)

	// 3 chairs: 6 boards, 24 screws
	assert.True(t, inv.Quantity("WOOD").Equal(qty("14")))
	assert.True(t, inv.Quantity("SCREW").Equal(qty("76")))
	assert.True(t, inv.Quantity("CHAIR-1").Equal(qty("3")))

	require.Len(t, comments.comments, 1)
	assert.Contains(t, comments.comments[0], "Oak Chair x3")
}

func TestProcessDealProducts_FractionalRowQuantity(t *testing.T) {
	r := domain.Recipe{
		ID: "varnish", ProductName: "Varnish Coat", ProductCode: "COAT", TriggerStageID: "WON", OutputQuantity: 1,
		Ingredients: []domain.Ingredient{
			{Name: "Varnish", Quantity: qty("2"), Unit: "l", Code: "VARNISH"},
		},
	}
	recipes := &MockRecipeSource{recipes: []domain.Recipe{r}}
	inv := NewMockInventory()
	inv.AddStock("VARNISH", "Varnish", qty("10"))
	deals := &MockDealSource{rows: []domain.DealProductRow{
		{ProductName: "Varnish Coat", Quantity: qty("1.5")},
	}}
	svc := newTestService(recipes, inv, deals, &MockCommentSink{}, nil)

	report, err := svc.ProcessDealProducts(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusSuccess, report.Status)
	assert.True(t, inv.Quantity("VARNISH").Equal(qty("7")))
	assert.True(t, inv.Quantity("COAT").Equal(qty("1.5")))
}

func TestProcessDealProducts_NoMatch(t *testing.T) {
	recipes := &MockRecipeSource{recipes: []domain.Recipe{chairRecipe()}}
	inv := NewMockInventory()
	deals := &MockDealSource{rows: []domain.DealProductRow{
		{ProductName: "Consulting", Quantity: qty("1")},
		{ProductName: "Oak Chair", Quantity: qty("0")}, // zero-quantity lines are skipped
	}}
	svc := newTestService(recipes, inv, deals, &MockCommentSink{}, nil)

	report, err := svc.ProcessDealProducts(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusNoMatch, report.Status)
	assert.Equal(t, 0, inv.findCalls)
}

func TestProcessDealProducts_Errors(t *testing.T) {
	t.Run("empty deal id", func(t *testing.T) {
		svc := newTestService(&MockRecipeSource{}, NewMockInventory(), &MockDealSource{}, &MockCommentSink{}, nil)
		_, err := svc.ProcessDealProducts(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrInvalidEvent)
	})

	t.Run("product rows lookup fails", func(t *testing.T) {
		deals := &MockDealSource{shouldFailRows: true, rowsError: errors.New("rows unavailable")}
		svc := newTestService(&MockRecipeSource{recipes: []domain.Recipe{chairRecipe()}}, NewMockInventory(), deals, &MockCommentSink{}, nil)
		_, err := svc.ProcessDealProducts(context.Background(), "42")
		assert.ErrorIs(t, err, domain.ErrDealLookup)
	})
}

func TestBuildAuditComment(t *testing.T) {
	comment := buildAuditComment(chairRecipe(), qty("2"))

	assert.True(t, strings.HasPrefix(comment, "🏭 Automatic production"))
	assert.Contains(t, comment, "📦 Produced: Oak Chair x2")
	assert.Contains(t, comment, "• Oak board: 2 pcs")
	assert.Contains(t, comment, "• Screw: 8 pcs")
}
