package core

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
)

var documentPrefixPattern = regexp.MustCompile(`^[A-Z]{2,6}$`)

type DocumentService interface {
	// NextNumberTx issues a number inside the caller's transaction. If the caller
	// rolls back, the counter increment is rolled back with it, so numbers stay
	// gapless for committed documents.
	NextNumberTx(ctx context.Context, tx pgx.Tx, tenantID int, prefix string, year int) (string, error)
}

// documentService holds no state: every number is drawn on the caller's tx.
type documentService struct{}

func NewDocumentService() DocumentService {
	return &documentService{}
}

func (s *documentService) NextNumberTx(ctx context.Context, tx pgx.Tx, tenantID int, prefix string, year int) (string, error) {
	return nextNumberWithTx(ctx, tx, tenantID, prefix, year)
}

// nextNumberWithTx increments the (tenant, prefix, year) counter. The upsert takes
// the counter row lock, so concurrent issuers for the same key are serialized
// until the holding transaction ends.
func nextNumberWithTx(ctx context.Context, tx pgx.Tx, tenantID int, prefix string, year int) (string, error) {
	if err := validateDocumentKey(prefix, year); err != nil {
		return "", err
	}

	var lastNumber int64
	query := `
		INSERT INTO document_sequences (tenant_id, prefix, year, last_number)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, prefix, year)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number
	`
	if err := tx.QueryRow(ctx, query, tenantID, prefix, year).Scan(&lastNumber); err != nil {
		return "", fmt.Errorf("failed to generate document number: %w", err)
	}

	return formatDocumentNumber(prefix, year, lastNumber), nil
}

func validateDocumentKey(prefix string, year int) error {
	if !documentPrefixPattern.MatchString(prefix) {
		return validationError("document prefix %q must be 2-6 uppercase letters", prefix)
	}
	if year < 2000 || year > 9999 {
		return validationError("document year %d out of range", year)
	}
	return nil
}

func formatDocumentNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%08d", prefix, year, seq)
}
