package db

import (
	"context"
	"errors"
	"fmt"
)

var ErrInstitutionNotFound = errors.New("institution not found")

// GetInstitution loads one institution by identifier.
func (p *Pool) GetInstitution(ctx context.Context, institutionID int64) (*Institution, error) {
	const q = `
SELECT
	i.institution_id,
	i.name,
	i.address,
	i.maps_link,
	i.social_link,
	i.scrape_link,
	i.messaging_channel,
	i.created_at
FROM opinio.institutions i
WHERE i.institution_id = $1
`

	var inst Institution
	err := p.QueryRow(ctx, q, institutionID).Scan(
		&inst.InstitutionID,
		&inst.Name,
		&inst.Address,
		&inst.MapsLink,
		&inst.SocialLink,
		&inst.ScrapeLink,
		&inst.MessagingChannel,
		&inst.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrInstitutionNotFound
		}
		return nil, fmt.Errorf("query institution %d: %w", institutionID, err)
	}
	return &inst, nil
}
