package audit

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchConfig addresses the cluster holding the audit index.
type ElasticsearchConfig struct {
	Addresses   []string
	Username    string
	Password    string
	MaxRetries  int
	VerifyCerts bool
	Index       string
}

// Elasticsearch indexes each record as one document, keyed by request id.
type Elasticsearch struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearch(cfg ElasticsearchConfig) (*Elasticsearch, error) {
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	}
	if !cfg.VerifyCerts {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 - explicitly configured
		}
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return &Elasticsearch{client: client, index: cfg.Index}, nil
}

func (s *Elasticsearch) Name() string { return "elasticsearch" }

func (s *Elasticsearch) Write(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: rec.RequestID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index audit record: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("index audit record: %s: %s", res.Status(), msg)
	}
	return nil
}

// Ping checks cluster connectivity.
func (s *Elasticsearch) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping: %s", res.Status())
	}
	return nil
}
