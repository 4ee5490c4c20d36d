package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/plantsaathi/market-intelligence/internal/application/market"
	"github.com/plantsaathi/market-intelligence/internal/domain/analysis"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

// FieldStore reads field records from the fields table.
type FieldStore struct {
	conn   *Connection
	logger logging.Logger
}

var _ market.FieldStore = (*FieldStore)(nil)

func NewFieldStore(conn *Connection, logger logging.Logger) *FieldStore {
	return &FieldStore{conn: conn, logger: logger.Named("field_store")}
}

const fieldColumns = `id, name, region, crop_type, latitude, longitude,
	planting_date, growth_stage_override, npk, npk_confidence`

// GetField returns one field record.
func (s *FieldStore) GetField(ctx context.Context, id string) (*market.Field, error) {
	row := s.conn.pool.QueryRow(ctx,
		`SELECT `+fieldColumns+` FROM fields WHERE id = $1`, id)
	field, err := scanField(row)
	if err == pgx.ErrNoRows {
		return nil, errors.Newf(errors.CodeFieldNotFound, "field %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load field")
	}
	return field, nil
}

// ListFields returns every field record, oldest first.
func (s *FieldStore) ListFields(ctx context.Context) ([]market.Field, error) {
	rows, err := s.conn.pool.Query(ctx,
		`SELECT `+fieldColumns+` FROM fields ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list fields")
	}
	defer rows.Close()

	var fields []market.Field
	for rows.Next() {
		field, err := scanField(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan field row")
		}
		fields = append(fields, *field)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "field row iteration failed")
	}
	return fields, nil
}

// UpsertField inserts or replaces a field record.
func (s *FieldStore) UpsertField(ctx context.Context, f *market.Field) error {
	var overrideJSON, npkJSON []byte
	var err error
	if f.GrowthStageOverride != nil {
		if overrideJSON, err = json.Marshal(f.GrowthStageOverride); err != nil {
			return errors.Wrap(err, errors.CodeSerialization, "failed to encode growth stage override")
		}
	}
	if f.NPK != nil {
		if npkJSON, err = json.Marshal(f.NPK); err != nil {
			return errors.Wrap(err, errors.CodeSerialization, "failed to encode npk readings")
		}
	}

	_, err = s.conn.pool.Exec(ctx, `
		INSERT INTO fields (id, name, region, crop_type, latitude, longitude,
			planting_date, growth_stage_override, npk, npk_confidence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			region = EXCLUDED.region,
			crop_type = EXCLUDED.crop_type,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			planting_date = EXCLUDED.planting_date,
			growth_stage_override = EXCLUDED.growth_stage_override,
			npk = EXCLUDED.npk,
			npk_confidence = EXCLUDED.npk_confidence,
			updated_at = now()`,
		f.ID, f.Name, f.Region, f.CropType, f.Latitude, f.Longitude,
		f.PlantingDate, overrideJSON, npkJSON, f.NPKConfidence)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to upsert field")
	}
	s.logger.Debug("field upserted", logging.String("field_id", f.ID))
	return nil
}

// DeleteField removes a field record.
func (s *FieldStore) DeleteField(ctx context.Context, id string) error {
	tag, err := s.conn.pool.Exec(ctx, `DELETE FROM fields WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to delete field")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.CodeFieldNotFound, "field %s not found", id)
	}
	return nil
}

func scanField(row pgx.Row) (*market.Field, error) {
	var f market.Field
	var plantingDate *time.Time
	var overrideJSON, npkJSON []byte

	err := row.Scan(&f.ID, &f.Name, &f.Region, &f.CropType,
		&f.Latitude, &f.Longitude, &plantingDate, &overrideJSON, &npkJSON, &f.NPKConfidence)
	if err != nil {
		return nil, err
	}

	f.PlantingDate = plantingDate
	if len(overrideJSON) > 0 {
		var override analysis.GrowthStage
		if err := json.Unmarshal(overrideJSON, &override); err != nil {
			return nil, err
		}
		f.GrowthStageOverride = &override
	}
	if len(npkJSON) > 0 {
		var npk analysis.NPKLevels
		if err := json.Unmarshal(npkJSON, &npk); err != nil {
			return nil, err
		}
		f.NPK = &npk
	}
	return &f, nil
}
