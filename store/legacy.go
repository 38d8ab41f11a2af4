package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// legacyTimeLayout is the offset-less wall-clock format the desktop
// application wrote into its sqlite database.
const legacyTimeLayout = "2006-01-02 15:04:05"

// legacyTimeColumns lists the timestamp columns the desktop application
// filled with local wall-clock strings.
var legacyTimeColumns = []struct{ table, column string }{
	{"tasks", "last_execution"},
	{"tasks", "create_time"},
	{"task_details", "updated_at"},
}

// NormalizeLegacyTimes rewrites offset-less wall-clock timestamps as UTC
// instants, reading them in loc. The sqlite driver would otherwise read
// them as UTC and shift every cooldown by loc's offset. It returns the
// number of rewritten values and is a no-op on other backends.
func (s *Store) NormalizeLegacyTimes(ctx context.Context, loc *time.Location) (int, error) {
	if s.db.Dialector.Name() != "sqlite" {
		return 0, nil
	}
	if loc == nil {
		loc = time.Local
	}

	total := 0
	for _, tc := range legacyTimeColumns {
		n, err := s.normalizeColumn(ctx, tc.table, tc.column, loc)
		if err != nil {
			return total, err
		}
		total += n
	}
	if total > 0 {
		slog.Info("legacy timestamps normalized", "rows", total, "location", loc.String())
	}
	return total, nil
}

func (s *Store) normalizeColumn(ctx context.Context, table, column string, loc *time.Location) (int, error) {
	type rawTime struct {
		ID    uint
		Value sql.NullString
	}
	var rows []rawTime
	// CAST drops the declared type so the driver hands back the raw text.
	err := s.db.WithContext(ctx).
		Raw("SELECT id, CAST("+column+" AS TEXT) AS value FROM "+table+" WHERE length("+column+") = ?", len(legacyTimeLayout)).
		Scan(&rows).Error
	if err != nil {
		return 0, errors.Wrapf(err, "failed read %s.%s", table, column)
	}

	fixed := 0
	for _, row := range rows {
		if !row.Value.Valid {
			continue
		}
		t, err := time.ParseInLocation(legacyTimeLayout, row.Value.String, loc)
		if err != nil {
			continue
		}
		err = s.db.WithContext(ctx).
			Table(table).
			Where("id = ?", row.ID).
			UpdateColumn(column, t.UTC()).Error
		if err != nil {
			return fixed, errors.Wrapf(err, "failed rewrite %s.%s of row %d", table, column, row.ID)
		}
		fixed++
	}
	return fixed, nil
}
