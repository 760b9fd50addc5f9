package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lostpaws/pawpoints/internal/domain"
)

// ─── Progress Repository ────────────────────────────────────────────────────

// Load returns the user's record, or false when none is stored.
func (d *DB) Load(ctx context.Context, userID string) (domain.UserProgress, bool, error) {
	var state string
	err := d.db.QueryRowContext(ctx, `SELECT state FROM progress WHERE user_id = ?`, userID).Scan(&state)
	if err == sql.ErrNoRows {
		return domain.UserProgress{}, false, nil
	}
	if err != nil {
		return domain.UserProgress{}, false, err
	}

	var p domain.UserProgress
	if err := json.Unmarshal([]byte(state), &p); err != nil {
		return domain.UserProgress{}, false, fmt.Errorf("decode progress %s: %w", userID, err)
	}
	if p.UnlockedBadges == nil {
		p.UnlockedBadges = make(map[string]domain.UnlockedBadge)
	}
	return p, true, nil
}

// Save inserts or replaces the user's record. The level column is
// recomputed from total points on every write.
func (d *DB) Save(ctx context.Context, p domain.UserProgress) error {
	state, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress %s: %w", p.UserID, err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO progress (user_id, state, total_points, xp, level, tier, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			state=excluded.state,
			total_points=excluded.total_points,
			xp=excluded.xp,
			level=excluded.level,
			tier=excluded.tier,
			updated_at=excluded.updated_at`,
		p.UserID, string(state), p.TotalPoints, p.XP, p.Level(),
		string(p.CurrentTierID), p.UpdatedAt.Unix(),
	)
	return err
}

// ListUserIDs returns every stored user in ascending order.
func (d *DB) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT user_id FROM progress ORDER BY user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ProgressCount returns the number of stored users.
func (d *DB) ProgressCount(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM progress`).Scan(&count)
	return count, err
}
