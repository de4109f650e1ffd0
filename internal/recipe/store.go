package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avdeyev/techcard-service/internal/domain"
	"github.com/avdeyev/techcard-service/internal/validation"
)

// SchemaPath is the JSON schema the tech card file is validated against.
const SchemaPath = "configs/schemas/recipes.schema.json"

// Store provides access to the tech card collection. ListRecipes is safe to
// call concurrently with itself and with the write operations.
type Store interface {
	ListRecipes(ctx context.Context) ([]domain.Recipe, error)
	Get(ctx context.Context, id string) (*domain.Recipe, error)
	Save(ctx context.Context, r domain.Recipe) (*domain.Recipe, error)
	Delete(ctx context.Context, id string) error
}

// FileStore keeps tech cards in a single JSON file, read wholesale at startup
// and rewritten wholesale on every change. The engine only reads; the
// authoring API writes.
type FileStore struct {
	path            string
	schemaValidator validation.SchemaValidator

	mu      sync.RWMutex
	recipes map[string]domain.Recipe
}

// NewFileStore loads the tech card file at path. A missing file yields an
// empty store; the file is created on first save.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:            path,
		schemaValidator: validation.NewSchemaValidator(),
		recipes:         make(map[string]domain.Recipe),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read recipes file %s: %w", path, err)
	}

	if err := s.schemaValidator.ValidateBytes(data, SchemaPath); err != nil {
		return nil, fmt.Errorf("schema validation failed for %s: %w", path, err)
	}

	var recipes []domain.Recipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		return nil, fmt.Errorf("failed to parse recipes file %s: %w", path, err)
	}

	for _, r := range recipes {
		if err := Validate(r); err != nil {
			return nil, fmt.Errorf("recipe %q: %w", r.ID, err)
		}
		if _, ok := s.recipes[r.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate recipe id %q", domain.ErrInvalidRecipe, r.ID)
		}
		s.recipes[r.ID] = r
	}

	return s, nil
}

// Validate checks a tech card for structural errors.
func Validate(r domain.Recipe) error {
	if r.ProductName == "" {
		return fmt.Errorf("%w: product name is required", domain.ErrInvalidRecipe)
	}
	if r.OutputQuantity < 1 {
		return fmt.Errorf("%w: output quantity must be at least 1", domain.ErrInvalidRecipe)
	}
	if len(r.Ingredients) == 0 {
		return fmt.Errorf("%w: at least one ingredient is required", domain.ErrInvalidRecipe)
	}
	for i, ing := range r.Ingredients {
		if ing.Name == "" {
			return fmt.Errorf("%w: ingredient %d has no name", domain.ErrInvalidRecipe, i)
		}
		if ing.Code == "" {
			return fmt.Errorf("%w: ingredient %q has no catalog code", domain.ErrInvalidRecipe, ing.Name)
		}
		if ing.Quantity.IsNegative() {
			return fmt.Errorf("%w: ingredient %q has negative quantity", domain.ErrInvalidRecipe, ing.Name)
		}
	}
	return nil
}

// CheckHealth reports whether the store can serve reads.
func (s *FileStore) CheckHealth(ctx context.Context) error {
	_, err := s.ListRecipes(ctx)
	return err
}

// ListRecipes returns all tech cards in a stable order.
func (s *FileStore) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipes := make([]domain.Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		recipes = append(recipes, r)
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID < recipes[j].ID })

	return recipes, nil
}

// Get returns the tech card with the given id, or domain.ErrRecipeNotFound.
func (s *FileStore) Get(ctx context.Context, id string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecipeNotFound, id)
	}
	return &r, nil
}

// Save validates and upserts a tech card. A card without an id gets a
// generated one. The whole file is rewritten on success.
func (s *FileStore) Save(ctx context.Context, r domain.Recipe) (*domain.Recipe, error) {
	if err := Validate(r); err != nil {
		return nil, err
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.recipes[r.ID]
	s.recipes[r.ID] = r

	if err := s.persistLocked(); err != nil {
		// Restore in-memory state so the store and the file stay in sync
		if existed {
			s.recipes[r.ID] = prev
		} else {
			delete(s.recipes, r.ID)
		}
		return nil, err
	}

	return &r, nil
}

// Delete removes a tech card and rewrites the file.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.recipes[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrRecipeNotFound, id)
	}
	delete(s.recipes, id)

	if err := s.persistLocked(); err != nil {
		s.recipes[id] = prev
		return err
	}

	return nil
}

// persistLocked writes the full collection to disk via a temp file and
// rename. Callers must hold the write lock.
func (s *FileStore) persistLocked() error {
	recipes := make([]domain.Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		recipes = append(recipes, r)
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID < recipes[j].ID })

	data, err := json.MarshalIndent(recipes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recipes: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create recipes directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".recipes-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp recipes file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write recipes file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close recipes file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace recipes file: %w", err)
	}

	return nil
}
