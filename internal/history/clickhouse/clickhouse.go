package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/evanmar/deployr/internal/history"
)

// Sink sends deploy records to ClickHouse using the official ClickHouse
// Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

func New(dsn, table string) (*Sink, error) {
	if table == "" {
		table = "deploy_history"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{dsn},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	s := &Sink{conn: conn, table: table}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		service String,
		host String,
		state String,
		healthy UInt8,
		attempts Int32,
		found UInt8,
		started_at DateTime64(3, 'UTC'),
		finished_at DateTime64(3, 'UTC'),
		error String
	) ENGINE = MergeTree() ORDER BY (service, finished_at)`, s.table)
	return s.conn.Exec(ctx, stmt)
}

func (s *Sink) Send(ctx context.Context, rec history.Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (service, host, state, healthy, attempts, found, started_at, finished_at, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	err := s.conn.Exec(ctx, query,
		rec.Service,
		rec.Host,
		rec.State,
		boolUInt8(rec.Healthy),
		int32(rec.Attempts),
		boolUInt8(rec.Found),
		rec.StartedAt.UTC(),
		rec.FinishedAt.UTC(),
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record into ClickHouse: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func boolUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
