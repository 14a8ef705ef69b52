package surrealstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
)

// ErrConnection is returned when the database cannot be reached.
var ErrConnection = errors.New("surrealstore: connection failed")

// ErrQuery is returned when a statement fails.
var ErrQuery = errors.New("surrealstore: query failed")

// Config holds connection settings.
type Config struct {
	Endpoint  string // ws://host:port
	User      string
	Password  string
	Namespace string
	Database  string
}

// Result is the outcome of one statement.
type Result struct {
	Status string
	Error  string
	Result any
}

// Querier runs SurrealQL and returns one Result per statement.
type Querier interface {
	Query(ctx context.Context, sql string, vars map[string]any) ([]Result, error)
}

// Client is a Querier backed by a live SurrealDB connection.
type Client struct {
	db *surrealdb.DB
}

// Connect opens a connection, signs in and selects the namespace and database.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if cfg.User != "" {
		if _, err := db.SignIn(ctx, &surrealdb.Auth{Username: cfg.User, Password: cfg.Password}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("%w: signin failed: %v", ErrConnection, err)
		}
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("%w: use failed: %v", ErrConnection, err)
	}
	return &Client{db: db}, nil
}

// Query runs sql. Statement failures are reported through Result.Status.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]any) ([]Result, error) {
	results, err := surrealdb.Query[any](ctx, c.db, sql, vars)
	if results == nil {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		return nil, nil
	}
	out := make([]Result, 0, len(*results))
	for _, r := range *results {
		res := Result{Status: r.Status, Result: r.Result}
		if r.Error != nil {
			res.Error = r.Error.Message
		}
		out = append(out, res)
	}
	return out, nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.db.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}
