package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// BigQueryConfig names the table receiving audit rows.
type BigQueryConfig struct {
	ProjectID       string
	CredentialsFile string
	Dataset         string
	Table           string
}

// bqRow is the table layout. Arguments are stored as a JSON string.
type bqRow struct {
	Time       time.Time `bigquery:"time"`
	RequestID  string    `bigquery:"request_id"`
	SessionID  string    `bigquery:"session_id"`
	Tool       string    `bigquery:"tool"`
	Arguments  string    `bigquery:"arguments"`
	Success    bool      `bigquery:"success"`
	Error      string    `bigquery:"error"`
	DurationMs int64     `bigquery:"duration_ms"`
}

// BigQuery streams records into a table, creating it on first use.
type BigQuery struct {
	client   *bigquery.Client
	table    *bigquery.Table
	inserter *bigquery.Inserter
}

func NewBigQuery(ctx context.Context, cfg BigQueryConfig, opts ...option.ClientOption) (*BigQuery, error) {
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	table := client.Dataset(cfg.Dataset).Table(cfg.Table)
	return &BigQuery{client: client, table: table, inserter: table.Inserter()}, nil
}

// EnsureTable creates the audit table if it does not exist yet.
func (s *BigQuery) EnsureTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(bqRow{})
	if err != nil {
		return fmt.Errorf("infer audit schema: %w", err)
	}
	err = s.table.Create(ctx, &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "time"},
	})
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	log.Info().Str("table", s.table.FullyQualifiedName()).Msg("created bigquery audit table")
	return nil
}

func (s *BigQuery) Name() string { return "bigquery" }

func (s *BigQuery) Write(ctx context.Context, rec Record) error {
	args, err := json.Marshal(rec.Arguments)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	row := bqRow{
		Time:       rec.Time,
		RequestID:  rec.RequestID,
		SessionID:  rec.SessionID,
		Tool:       rec.Tool,
		Arguments:  string(args),
		Success:    rec.Success,
		Error:      rec.Error,
		DurationMs: rec.DurationMs,
	}
	if err := s.inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

// Close releases the BigQuery client.
func (s *BigQuery) Close() error {
	return s.client.Close()
}
