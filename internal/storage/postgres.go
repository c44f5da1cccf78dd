package storage

import (
	"context"
	"database/sql/driver"
	"fmt"
	"net/url"
	"strconv"

	rdsauth "github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/lib/pq"

	"dinamifin/internal/awscfg"
)

// PostgresConfig describes how to reach Postgres: either a plain DSN or an
// RDS endpoint authenticated with a short-lived IAM token.
type PostgresConfig struct {
	DSN string

	IAMAuth  bool
	Endpoint string // host name without port
	Port     int
	User     string
	Name     string
	Region   string
	Profile  string
	SSLMode  string
}

// Connector returns a driver.Connector for lib/pq. With IAM auth every new
// connection signs its own token, so connections recycled after the
// token's 15 minute lifetime still authenticate.
func (c PostgresConfig) Connector(ctx context.Context) (driver.Connector, error) {
	if !c.IAMAuth {
		if c.DSN == "" {
			return nil, fmt.Errorf("postgres DSN is empty")
		}
		conn, err := pq.NewConnector(c.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres DSN: %w", err)
		}
		return conn, nil
	}

	awsCfg, err := awscfg.Load(ctx, c.Region, c.Profile)
	if err != nil {
		return nil, err
	}
	host := c.host()
	return &iamConnector{
		host:    host,
		user:    c.User,
		name:    c.Name,
		sslMode: c.SSLMode,
		token: func(ctx context.Context) (string, error) {
			// Signed locally; no API call is made.
			return rdsauth.BuildAuthToken(ctx, host, awsCfg.Region, c.User, awsCfg.Credentials)
		},
	}, nil
}

func (c PostgresConfig) host() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return c.Endpoint + ":" + strconv.Itoa(port)
}

// iamConnector dials Postgres with a freshly signed RDS auth token.
type iamConnector struct {
	host    string
	user    string
	name    string
	sslMode string
	token   func(ctx context.Context) (string, error)
}

func (c *iamConnector) Connect(ctx context.Context) (driver.Conn, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("build RDS auth token: %w", err)
	}
	conn, err := pq.NewConnector(buildDSN(c.host, c.user, token, c.name, c.sslMode))
	if err != nil {
		return nil, err
	}
	return conn.Connect(ctx)
}

func (c *iamConnector) Driver() driver.Driver { return &pq.Driver{} }

func buildDSN(host, user, password, dbName, sslMode string) string {
	if sslMode == "" {
		sslMode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host,
		Path:     "/" + dbName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}
