package domain

import "errors"

// Error message string constants - single source of truth for error messages
// Use these in assert.Contains() checks when testing error messages
const (
	// Event errors
	ErrMsgInvalidEvent = "invalid stage-change event"

	// Collaborator lookup errors
	ErrMsgRecipeLookup = "recipe store unavailable"
	ErrMsgDealLookup   = "deal lookup failed"

	// Production business-rule outcomes
	ErrMsgMaterialNotFound  = "material not found in catalog"
	ErrMsgInsufficientStock = "insufficient stock"

	// Recipe errors
	ErrMsgRecipeNotFound = "recipe not found"
	ErrMsgInvalidRecipe  = "invalid recipe"

	// Input errors
	ErrMsgInvalidInput = "invalid input"
)

// Common domain errors
// These errors should be used consistently across all layers of the application.
// Wrap these errors with fmt.Errorf("%w: %s", domain.ErrXxx, details) for additional context.
var (
	// ErrInvalidEvent marks a stage-change event with an empty deal or
	// stage identifier. Recoverable: the caller acknowledges and drops it.
	ErrInvalidEvent = errors.New(ErrMsgInvalidEvent)

	// ErrRecipeLookup and ErrDealLookup are event-level failures: nothing
	// was executed, the caller may retry the whole event.
	ErrRecipeLookup = errors.New(ErrMsgRecipeLookup)
	ErrDealLookup   = errors.New(ErrMsgDealLookup)

	// ErrMaterialNotFound and ErrInsufficientStock are business-rule
	// outcomes captured as action data inside a run, never thrown past it.
	ErrMaterialNotFound  = errors.New(ErrMsgMaterialNotFound)
	ErrInsufficientStock = errors.New(ErrMsgInsufficientStock)

	// Recipe errors
	ErrRecipeNotFound = errors.New(ErrMsgRecipeNotFound)
	ErrInvalidRecipe  = errors.New(ErrMsgInvalidRecipe)

	// Validation errors
	ErrInvalidInput = errors.New(ErrMsgInvalidInput)
)
