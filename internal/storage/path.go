package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

const dateLayout = "2006-01-02"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExchangePath returns prefix/date=YYYY-MM-DD/<id>.parquet using the UTC
// day of recordedAt.
func BuildExchangePath(prefix, exchangeID string, recordedAt time.Time) (string, error) {
	return ExchangePathForDate(prefix, recordedAt.UTC().Format(dateLayout), exchangeID)
}

// ExchangePathForDate is BuildExchangePath for a date already formatted as
// YYYY-MM-DD, as received from a client.
func ExchangePathForDate(prefix, date, exchangeID string) (string, error) {
	if prefix != "" {
		if err := validatePathComponent(prefix, "prefix"); err != nil {
			return "", err
		}
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", fmt.Errorf("%w: date %q", ErrInvalidPath, date)
	}
	if err := validatePathComponent(exchangeID, "exchange id"); err != nil {
		return "", err
	}
	return path.Join(prefix, "date="+date, exchangeID+".parquet"), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("%w: %s %q", ErrInvalidPath, field, value)
	}
	return nil
}
