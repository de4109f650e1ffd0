package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/avdeyev/techcard-service/internal/domain"
	"github.com/avdeyev/techcard-service/internal/logger"
	"github.com/avdeyev/techcard-service/internal/recipe"
)

// IngredientRequest is a single material line of a tech card submission.
type IngredientRequest struct {
	Name     string          `json:"name" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	Code     string          `json:"code" validate:"required"`
}

// RecipeRequest is the authoring payload for creating or updating a tech card.
type RecipeRequest struct {
	ID             string              `json:"id"`
	ProductName    string              `json:"product_name" validate:"required"`
	ProductCode    string              `json:"product_code"`
	Description    string              `json:"description"`
	TriggerStageID string              `json:"trigger_stage_id"`
	OutputQuantity int                 `json:"output_quantity" validate:"min=1"`
	Ingredients    []IngredientRequest `json:"ingredients" validate:"required,min=1,dive"`
}

func (req RecipeRequest) toDomain() domain.Recipe {
	r := domain.Recipe{
		ID:             req.ID,
		ProductName:    req.ProductName,
		ProductCode:    req.ProductCode,
		Description:    req.Description,
		TriggerStageID: req.TriggerStageID,
		OutputQuantity: req.OutputQuantity,
	}
	for _, ing := range req.Ingredients {
		r.Ingredients = append(r.Ingredients, domain.Ingredient{
			Name:     ing.Name,
			Quantity: ing.Quantity,
			Unit:     ing.Unit,
			Code:     ing.Code,
		})
	}
	return r
}

// HandleListRecipes returns every stored tech card.
// @Summary List tech cards
// @Tags recipes
// @Produce json
// @Success 200 {array} domain.Recipe
// @Router /api/v1/recipes [get]
func HandleListRecipes(store recipe.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recipes, err := store.ListRecipes(r.Context())
		if err != nil {
			logger.FromContext(r.Context()).Error("Failed to list tech cards", "error", err)
			status, msg := mapServiceErrorToUserMessage(err)
			respondError(w, status, msg)
			return
		}
		respondJSON(w, http.StatusOK, recipes)
	}
}

// HandleGetRecipe returns one tech card by ID.
// @Summary Get a tech card
// @Tags recipes
// @Produce json
// @Param recipeID path string true "Tech card ID"
// @Success 200 {object} domain.Recipe
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/recipes/{recipeID} [get]
func HandleGetRecipe(store recipe.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recipeID := chi.URLParam(r, "recipeID")

		rec, err := store.Get(r.Context(), recipeID)
		if err != nil {
			status, msg := mapServiceErrorToUserMessage(err)
			respondError(w, status, msg)
			return
		}
		respondJSON(w, http.StatusOK, rec)
	}
}

// HandleSaveRecipe creates a tech card, or replaces it when the payload
// carries an existing ID.
// @Summary Create or update a tech card
// @Tags recipes
// @Accept json
// @Produce json
// @Param recipe body RecipeRequest true "Tech card"
// @Success 200 {object} domain.Recipe
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/recipes [post]
func HandleSaveRecipe(store recipe.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req RecipeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, ErrMsgInvalidJSON)
			return
		}

		if err := GetValidator().ValidateStruct(req); err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":  ErrMsgInvalidRecipeError,
				"fields": FormatValidationError(err),
			})
			return
		}

		saved, err := store.Save(r.Context(), req.toDomain())
		if err != nil {
			log.Error("Failed to save tech card", "recipeId", req.ID, "error", err)
			status, msg := mapServiceErrorToUserMessage(err)
			respondError(w, status, msg)
			return
		}

		log.Info("Tech card saved", "recipeId", saved.ID, "product", saved.ProductName)
		respondJSON(w, http.StatusOK, saved)
	}
}

// HandleDeleteRecipe removes a tech card.
// @Summary Delete a tech card
// @Tags recipes
// @Produce json
// @Param recipeID path string true "Tech card ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/recipes/{recipeID} [delete]
func HandleDeleteRecipe(store recipe.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recipeID := chi.URLParam(r, "recipeID")

		if err := store.Delete(r.Context(), recipeID); err != nil {
			status, msg := mapServiceErrorToUserMessage(err)
			respondError(w, status, msg)
			return
		}

		logger.FromContext(r.Context()).Info("Tech card deleted", "recipeId", recipeID)
		respondJSON(w, http.StatusOK, SuccessResponse{Message: "Tech card deleted"})
	}
}
