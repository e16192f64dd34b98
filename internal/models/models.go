// package models defines the data model for the call sync service
package models

import (
	"time"
)

// Model is implemented by entities with their own lifecycle, currently [SettingsEntry].
// Ingested records are plain rows keyed by identity and do not implement it.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository is the CRUD surface over a [Model] table.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

var _ Model = (*SettingsEntry)(nil)
