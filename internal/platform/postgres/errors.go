package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the stores translate into sentinel errors.
const (
	pgForeignKeyViolationCode = "23503"
	pgUniqueViolationCode     = "23505"
)

// isPgError reports whether err is a PostgreSQL error with the given code.
func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// isUniqueViolation reports whether err is a unique-constraint violation,
// optionally restricted to one named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolationCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// encodeIDs serializes a UUID list to the JSONB form the schema stores ID
// lists in. A nil list encodes as an empty array, never SQL NULL.
func encodeIDs(ids []uuid.UUID) ([]byte, error) {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ID list: %w", err)
	}
	return data, nil
}

// decodeIDs deserializes a JSONB ID list.
func decodeIDs(data []byte) ([]uuid.UUID, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode ID list: %w", err)
	}
	return ids, nil
}
