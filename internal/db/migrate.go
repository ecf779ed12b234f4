package db

import (
	"context"
	"fmt"
)

// Migrate creates the opinio schema and brings the tables and indexes
// up to date. Safe to run repeatedly.
func (p *Pool) Migrate(ctx context.Context) error {
	return p.autoMigrate(ctx)
}

func (p *Pool) autoMigrate(ctx context.Context) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	if err := p.gdb.WithContext(ctx).Exec(`CREATE SCHEMA IF NOT EXISTS opinio`).Error; err != nil {
		return fmt.Errorf("create opinio schema: %w", err)
	}

	if err := p.gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...); err != nil {
		return fmt.Errorf("gorm auto-migrate models: %w", err)
	}

	// Institution-scoped text uniqueness backs the ingestion dedup filter.
	const uniqueTextIdx = `
CREATE UNIQUE INDEX IF NOT EXISTS reviews_institution_text_uniq
ON opinio.reviews (institution_id, md5(text))
`
	if err := p.gdb.WithContext(ctx).Exec(uniqueTextIdx).Error; err != nil {
		return fmt.Errorf("create review text index: %w", err)
	}

	return nil
}
