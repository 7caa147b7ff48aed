package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Store provides access to the remote document tables and the session
// job queue. Every table is partitioned by user id with the document id
// as row key.
type Store struct {
	taskTable         *aztables.Client
	projectTable      *aztables.Client
	notificationTable *aztables.Client
	settingsTable     *aztables.Client
	sessionQueue      *azqueue.QueueClient
}

// Tables names the four entity tables backing the store.
type Tables struct {
	Tasks         string
	Projects      string
	Notifications string
	Settings      string
}

// New creates a Store from the given connection string.
func New(connStr string, tables Tables, sessionQueue string) (*Store, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	sq, err := azqueue.NewQueueClientFromConnectionString(connStr, sessionQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Store{
		taskTable:         svc.NewClient(tables.Tasks),
		projectTable:      svc.NewClient(tables.Projects),
		notificationTable: svc.NewClient(tables.Notifications),
		settingsTable:     svc.NewClient(tables.Settings),
		sessionQueue:      sq,
	}, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

// odataString quotes a value for use inside an OData filter.
func odataString(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// ownerFilter builds the partition clause plus optional equality
// predicates pushed to the table service.
func ownerFilter(userID string, predicates map[string]string) string {
	var b strings.Builder
	b.WriteString("PartitionKey eq ")
	b.WriteString(odataString(userID))
	for _, field := range sortedKeys(predicates) {
		b.WriteString(" and ")
		b.WriteString(field)
		b.WriteString(" eq ")
		b.WriteString(odataString(predicates[field]))
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func merge(ctx context.Context, table *aztables.Client, payload []byte) error {
	et := azcore.ETagAny
	_, err := table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeMerge,
	})
	if isNotFound(err) {
		return ErrNotFound
	}
	return err
}
