package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gosimple/slug"
	"github.com/jmoiron/sqlx"
	"github.com/rental-manager/backend/internal/storage/models"
)

// ErrNotFound is returned by mutating operations when the target row does not exist.
var ErrNotFound = errors.New("not found")

const propertyColumns = `id, name, slug, address, max_guests, created_at, updated_at`

// PropertyRepository provides data access for properties.
type PropertyRepository struct {
	BaseRepository
}

// NewPropertyRepository creates a new property repository.
func NewPropertyRepository(db *DB) *PropertyRepository {
	return &PropertyRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new property, deriving a unique slug from its name.
func (r *PropertyRepository) Create(ctx context.Context, p *models.Property) error {
	p.ID = GenerateID()
	p.CreatedAt = r.Now()
	p.UpdatedAt = p.CreatedAt
	if p.MaxGuests < 1 {
		p.MaxGuests = 1
	}

	s, err := r.uniqueSlug(ctx, p.Name)
	if err != nil {
		return err
	}
	p.Slug = s

	_, err = r.DB().NamedExecContext(ctx, `
		INSERT INTO properties (`+propertyColumns+`)
		VALUES (:id, :name, :slug, :address, :max_guests, :created_at, :updated_at)
	`, p)
	if err != nil {
		return fmt.Errorf("inserting property: %w", err)
	}

	return nil
}

func (r *PropertyRepository) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "property"
	}

	candidate := base
	for i := 2; ; i++ {
		var count int
		if err := r.DB().GetContext(ctx, &count, r.Q("SELECT COUNT(*) FROM properties WHERE slug = ?"), candidate); err != nil {
			return "", fmt.Errorf("checking property slug: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// GetByID retrieves a property by its ID.
func (r *PropertyRepository) GetByID(ctx context.Context, id string) (*models.Property, error) {
	p := &models.Property{}

	err := r.DB().GetContext(ctx, p, r.Q(`SELECT `+propertyColumns+` FROM properties WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying property: %w", err)
	}

	return p, nil
}

// List retrieves all properties ordered by name.
func (r *PropertyRepository) List(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property

	if err := r.DB().SelectContext(ctx, &properties, `SELECT `+propertyColumns+` FROM properties ORDER BY name`); err != nil {
		return nil, fmt.Errorf("querying properties: %w", err)
	}

	return properties, nil
}

// Update updates an existing property's editable fields.
func (r *PropertyRepository) Update(ctx context.Context, p *models.Property) error {
	p.UpdatedAt = r.Now()

	result, err := r.DB().NamedExecContext(ctx, `
		UPDATE properties SET
			name = :name, address = :address, max_guests = :max_guests, updated_at = :updated_at
		WHERE id = :id
	`, p)
	if err != nil {
		return fmt.Errorf("updating property: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("property %s: %w", p.ID, ErrNotFound)
	}

	return nil
}

// Delete removes a property together with its bookings and calendar settings.
func (r *PropertyRepository) Delete(ctx context.Context, id string) error {
	return r.Transaction(func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM bookings WHERE property_id = ?"), id); err != nil {
			return fmt.Errorf("deleting property bookings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM calendar_settings WHERE property_id = ?"), id); err != nil {
			return fmt.Errorf("deleting calendar settings: %w", err)
		}

		result, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM properties WHERE id = ?"), id)
		if err != nil {
			return fmt.Errorf("deleting property: %w", err)
		}

		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return fmt.Errorf("property %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
