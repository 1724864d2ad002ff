package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"barangay-helpdesk/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
	skProfile   = "PROFILE#"

	// unassigned is stored in the assignee attribute so open conversations
	// stay queryable through assignee-index.
	unassigned = "UNASSIGNED"

	assigneeIndex         = "assignee-index"
	conversationSentIndex = "conversation-sent-index"

	// timeLayout is fixed width so string order matches time order.
	timeLayout = "2006-01-02T15:04:05.000000000Z"

	retention            = 180 * 24 * time.Hour
	defaultWatchInterval = time.Second
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores conversations, their messages and staff profiles in one
// DynamoDB table.
type Client struct {
	api           dynamodbAPI
	tableName     string
	now           func() time.Time
	watchInterval time.Duration
}

type Option func(*Client)

// WithClock replaces time.Now for stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithWatchInterval sets how often subscriptions re-query the table.
func WithWatchInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.watchInterval = d
		}
	}
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{
		api:           api,
		tableName:     tableName,
		now:           time.Now,
		watchInterval: defaultWatchInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

func msgSK(messageID string) string {
	return skPrefixMsg + messageID
}

func staffPK(staffID string) string {
	return "STAFF#" + staffID
}

func metaKey(conversationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	}
}

func (c *Client) stamp() time.Time {
	return c.now().UTC()
}

// ttlValue returns the expiry for items written at ts.
func ttlValue(ts time.Time) int64 {
	return ts.Add(retention).Unix()
}

// conditionItem extracts the pre-image of the conversation item whose
// condition failed, from either a single write or the first action of a
// transaction.
func conditionItem(err error) (map[string]types.AttributeValue, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf.Item, true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) && len(tce.CancellationReasons) > 0 {
		first := tce.CancellationReasons[0]
		if aws.ToString(first.Code) == "ConditionalCheckFailed" {
			return first.Item, true
		}
	}
	return nil, false
}

// conditionFailure maps a failed conversation condition to a domain error.
// otherwise is returned when the item exists and is not done.
func conditionFailure(old map[string]types.AttributeValue, otherwise error) error {
	if len(old) == 0 {
		return domain.ErrNotFound
	}
	if status, _ := strAttr(old, "status"); status == string(domain.StatusDone) {
		return domain.ErrConversationClosed
	}
	return otherwise
}

// missingIndex reports whether err means a secondary index does not exist.
func missingIndex(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ResourceNotFoundException":
		return true
	case "ValidationException":
		return strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "index")
	}
	return false
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

// optStr returns the string attribute or "" when absent.
func optStr(item map[string]types.AttributeValue, key string) string {
	s, _ := strAttr(item, key)
	return s
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return ts, nil
}

// optTime returns the time attribute or the zero time when absent.
func optTime(item map[string]types.AttributeValue, key string) (time.Time, error) {
	if _, ok := item[key]; !ok {
		return time.Time{}, nil
	}
	return timeAttr(item, key)
}

func boolAttr(item map[string]types.AttributeValue, key string) bool {
	b, ok := item[key].(*types.AttributeValueMemberBOOL)
	return ok && b.Value
}

func strValue(s string) *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: s}
}

func timeValue(ts time.Time) *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: ts.UTC().Format(timeLayout)}
}

func numValue(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
