package schedule

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Tournament struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Court is a mutually exclusive playing resource owned by one tournament.
type Court struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	Name         string    `db:"name" json:"name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CourtIDList stores a set of court ids as a comma-separated TEXT column.
type CourtIDList []uuid.UUID

func (l CourtIDList) Value() (driver.Value, error) {
	ids := make([]string, len(l))
	for i, id := range l {
		ids[i] = id.String()
	}
	return strings.Join(ids, ","), nil
}

func (l *CourtIDList) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into CourtIDList", src)
	}
	if s == "" {
		*l = nil
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make(CourtIDList, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("invalid court id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	*l = ids
	return nil
}

// Contains reports whether the list includes the given court.
func (l CourtIDList) Contains(id uuid.UUID) bool {
	for _, c := range l {
		if c == id {
			return true
		}
	}
	return false
}
