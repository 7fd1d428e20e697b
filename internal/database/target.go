package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrInvalidTarget     = errors.New("invalid database target")
	ErrClosed            = errors.New("database connection is closed")
)

const (
	DriverMySQL     = "mysql"
	DriverPostgres  = "postgres"
	DriverSQLServer = "sqlserver"
	DriverDuckDB    = "duckdb"
)

// Target identifies the database the assistant introspects and queries. For
// duckdb, Database is a file path and an empty path opens an in-memory database.
type Target struct {
	Driver   string `json:"driver" validate:"required,oneof=mysql postgres sqlserver duckdb"`
	User     string `json:"user" validate:"required_unless=Driver duckdb"`
	Password string `json:"password,omitempty"`
	Host     string `json:"host" validate:"required_unless=Driver duckdb,omitempty,hostname_rfc1123|ip"`
	Port     int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Database string `json:"database" validate:"required_unless=Driver duckdb"`
	TLSCA    string `json:"tls_ca,omitempty"`
	ReadOnly bool   `json:"read_only"`
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (t Target) Validate() error {
	if err := validate.Struct(t); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				if fieldErr.Field() == "Driver" && fieldErr.Tag() == "oneof" {
					return fmt.Errorf("%w: %q", ErrUnsupportedDriver, t.Driver)
				}
			}
		}
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	if t.ReadOnly {
		switch t.Driver {
		case DriverSQLServer:
			return fmt.Errorf("%w: read-only mode is not supported for sqlserver", ErrInvalidTarget)
		case DriverDuckDB:
			if t.Database == "" {
				return fmt.Errorf("%w: read-only mode requires a duckdb database file", ErrInvalidTarget)
			}
		}
	}
	return nil
}

// Redacted returns a copy of t that is safe to log or return to clients.
func (t Target) Redacted() Target {
	if t.Password != "" {
		t.Password = "******"
	}
	return t
}

func (t Target) String() string {
	if t.Driver == DriverDuckDB {
		if t.Database == "" {
			return "duckdb::memory:"
		}
		return "duckdb:" + t.Database
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", t.Driver, t.User, t.Host, t.portOrDefault(), t.Database)
}

func (t Target) portOrDefault() int {
	if t.Port > 0 {
		return t.Port
	}
	switch t.Driver {
	case DriverMySQL:
		return 3306
	case DriverPostgres:
		return 5432
	case DriverSQLServer:
		return 1433
	default:
		return 0
	}
}
