package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/leafshop/leafshop-backend/pkg/config"
	"github.com/leafshop/leafshop-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery order events table is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
	errTableMissing         = errors.New("bigquery table does not exist")
)

// Client streams rows into the order events table of one dataset.
type Client struct {
	client *bigquery.Client
	events *bigquery.Table
}

// Options tune startup verification. When CreateTable is set and the events
// table is missing it is created from Schema, partitioned by day on
// PartitionField.
type Options struct {
	CreateTable    bool
	Schema         bigquery.Schema
	PartitionField string
}

// NewClient connects to BigQuery and makes sure the dataset and the order
// events table exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, opts Options, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	tableID := strings.TrimSpace(cfg.OrderEventsTable)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case datasetID == "":
		return nil, errDatasetRequired
	case tableID == "":
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: bq, events: bq.Dataset(datasetID).Table(tableID)}

	if err := c.prepare(ctx, opts); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"table":   tableID,
		}), "bigquery client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) prepare(ctx context.Context, opts Options) error {
	err := c.Ping(ctx)
	if err == nil || !opts.CreateTable || !errors.Is(err, errTableMissing) {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	meta := &bigquery.TableMetadata{Schema: opts.Schema}
	if opts.PartitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: opts.PartitionField,
		}
	}
	if err := c.events.Create(ctx, meta); err != nil && !isHTTPStatus(err, http.StatusConflict) {
		return fmt.Errorf("creating table %q: %w", c.events.TableID, err)
	}
	return nil
}

// Ping checks that the dataset and the events table are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.events == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	dataset := c.client.Dataset(c.events.DatasetID)
	if _, err := dataset.Metadata(ctx); err != nil {
		if isHTTPStatus(err, http.StatusNotFound) {
			return fmt.Errorf("dataset %q does not exist", dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", dataset.DatasetID, err)
	}
	if _, err := c.events.Metadata(ctx); err != nil {
		if isHTTPStatus(err, http.StatusNotFound) {
			return fmt.Errorf("%w: %s", errTableMissing, c.events.TableID)
		}
		return fmt.Errorf("checking table %q: %w", c.events.TableID, err)
	}
	return nil
}

// OrderEventsTable returns the events table id.
func (c *Client) OrderEventsTable() string {
	if c == nil || c.events == nil {
		return ""
	}
	return c.events.TableID
}

// InsertRows streams rows into table, which must live in the client's dataset.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.client.Dataset(c.events.DatasetID).Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isHTTPStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
