package database

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// Dialect captures what differs between the supported database engines.
type Dialect struct {
	Name       string
	DriverName string
	// ListTablesSQL returns one table name per row for the connected schema.
	ListTablesSQL string
	// ListColumnsSQL takes the table name as its only bind parameter and
	// returns (column name, declared type) rows in ordinal order.
	ListColumnsSQL string
	// ReadOnlyTx reports whether read-only execution uses a read-only
	// transaction. Engines that enforce it at open time leave it false.
	ReadOnlyTx bool

	placeholder func(n int) string
	dsn         func(Target) (string, error)
}

func (d Dialect) Placeholder(n int) string {
	return d.placeholder(n)
}

func (d Dialect) DSN(target Target) (string, error) {
	return d.dsn(target)
}

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverMySQL:
		return mysqlDialect, nil
	case DriverPostgres:
		return postgresDialect, nil
	case DriverSQLServer:
		return sqlserverDialect, nil
	case DriverDuckDB:
		return duckdbDialect, nil
	default:
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

var mysqlDialect = Dialect{
	Name:       DriverMySQL,
	DriverName: "mysql",
	ListTablesSQL: `SELECT table_name FROM information_schema.tables
WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
ORDER BY table_name`,
	ListColumnsSQL: `SELECT column_name, UPPER(column_type) FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ordinal_position`,
	ReadOnlyTx:  true,
	placeholder: questionPlaceholder,
	dsn:         mysqlDSN,
}

var postgresDialect = Dialect{
	Name:       DriverPostgres,
	DriverName: "pgx",
	ListTablesSQL: `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`,
	ListColumnsSQL: `SELECT column_name, UPPER(data_type) FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`,
	ReadOnlyTx:  true,
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	dsn:         postgresDSN,
}

var sqlserverDialect = Dialect{
	Name:       DriverSQLServer,
	DriverName: "sqlserver",
	ListTablesSQL: `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`,
	ListColumnsSQL: `SELECT COLUMN_NAME, UPPER(DATA_TYPE) FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = @p1
ORDER BY ORDINAL_POSITION`,
	placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
	dsn:         sqlserverDSN,
}

var duckdbDialect = Dialect{
	Name:       DriverDuckDB,
	DriverName: "duckdb",
	ListTablesSQL: `SELECT table_name FROM information_schema.tables
WHERE table_catalog = current_database() AND table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`,
	ListColumnsSQL: `SELECT column_name, data_type FROM information_schema.columns
WHERE table_catalog = current_database() AND table_schema = current_schema() AND table_name = ?
ORDER BY ordinal_position`,
	placeholder: questionPlaceholder,
	dsn:         duckdbDSN,
}

func questionPlaceholder(int) string { return "?" }

func mysqlDSN(target Target) (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = target.User
	cfg.Passwd = target.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(target.Host, strconv.Itoa(target.portOrDefault()))
	cfg.DBName = target.Database
	cfg.ParseTime = true
	if target.TLSCA != "" {
		name, err := registerMySQLTLS(target)
		if err != nil {
			return "", err
		}
		cfg.TLSConfig = name
	}
	return cfg.FormatDSN(), nil
}

// registerMySQLTLS registers the CA bundle under a name derived from the host
// and CA path so repeated reconfigurations reuse the same entry.
func registerMySQLTLS(target Target) (string, error) {
	pool, err := loadCertPool(target.TLSCA)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(target.Host + "|" + target.TLSCA))
	name := "querybot-" + hex.EncodeToString(sum[:8])
	if err := mysql.RegisterTLSConfig(name, &tls.Config{
		RootCAs:    pool,
		ServerName: target.Host,
		MinVersion: tls.VersionTLS12,
	}); err != nil {
		return "", fmt.Errorf("register mysql tls config: %w", err)
	}
	return name, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tls ca %q: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: tls ca %q contains no certificates", ErrInvalidTarget, path)
	}
	return pool, nil
}

func postgresDSN(target Target) (string, error) {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(target.User, target.Password),
		Host:   net.JoinHostPort(target.Host, strconv.Itoa(target.portOrDefault())),
		Path:   "/" + target.Database,
	}
	if target.TLSCA != "" {
		q := url.Values{}
		q.Set("sslmode", "verify-full")
		q.Set("sslrootcert", target.TLSCA)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func sqlserverDSN(target Target) (string, error) {
	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(target.User, target.Password),
		Host:   net.JoinHostPort(target.Host, strconv.Itoa(target.portOrDefault())),
	}
	q := url.Values{}
	q.Set("database", target.Database)
	if target.TLSCA != "" {
		q.Set("encrypt", "true")
		q.Set("certificate", target.TLSCA)
		q.Set("hostNameInCertificate", target.Host)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func duckdbDSN(target Target) (string, error) {
	if !target.ReadOnly {
		return target.Database, nil
	}
	return target.Database + "?access_mode=read_only", nil
}
