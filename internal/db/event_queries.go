package db

import (
	"context"
	"fmt"
)

// ListEvents returns the full event catalog ordered by identifier. The
// matcher rebuilds its index from this list on every run.
func (p *Pool) ListEvents(ctx context.Context) ([]Event, error) {
	const q = `
SELECT
	e.event_id,
	e.name,
	e.date,
	e.created_at
FROM opinio.events e
ORDER BY e.event_id
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.EventID, &event.Name, &event.Date, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}
