package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/persistence"
)

// nextDocumentNumber allocates PREFIX-YYYY-NNNN for a company. YYYY is the year at the given
// instant in the company's timezone. Must run inside a transaction.
func nextDocumentNumber(ctx context.Context, counters *persistence.CounterRepository, companyID, prefix string,
	at time.Time, loc *time.Location) (string, error) {
	year := documentYear(at, loc)
	n, err := counters.Next(ctx, companyID, prefix, year)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s number: %w", prefix, err)
	}
	return formatDocumentNumber(prefix, year, n), nil
}

func documentYear(at time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	return at.In(loc).Year()
}

func formatDocumentNumber(prefix string, year, n int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, n)
}
