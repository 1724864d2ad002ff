package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"barangay-helpdesk/internal/domain"
)

// AppendMessage stores msg and updates the conversation summary in one
// transaction. Done conversations reject the write.
func (c *Client) AppendMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if msg.ID == "" || msg.ConversationID == "" {
		return domain.ChatMessage{}, errors.New("repository: AppendMessage: message and conversation id are required")
	}
	now := c.stamp()
	msg.SentAt = now

	set := "SET #status = :active, lastMessage = :text, lastMessageAt = :now, #ttl = :ttl"
	values := map[string]types.AttributeValue{
		":active": strValue(string(domain.StatusActive)),
		":done":   strValue(string(domain.StatusDone)),
		":text":   strValue(msg.Text),
		":now":    timeValue(now),
		":ttl":    numValue(ttlValue(now)),
	}
	if msg.IsStaffMessage {
		set += ", lastStaffMessage = :text, lastStaffMessageAt = :now"
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:           aws.String(c.tableName),
					Key:                 metaKey(msg.ConversationID),
					UpdateExpression:    aws.String(set),
					ConditionExpression: aws.String(openCondition),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
						"#ttl":    "ttl",
					},
					ExpressionAttributeValues:           values,
					ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
				},
			},
			c.putMessage(msg, now),
		},
	})
	if err != nil {
		if old, ok := conditionItem(err); ok {
			return domain.ChatMessage{}, conditionFailure(old, domain.ErrConversationClosed)
		}
		return domain.ChatMessage{}, fmt.Errorf("repository: AppendMessage: %w", err)
	}
	return msg, nil
}

// ListMessages returns every message of a conversation. OrderBySentAt reads
// conversation-sent-index and fails with domain.ErrOrderedQueryUnavailable
// when the index is missing.
func (c *Client) ListMessages(ctx context.Context, conversationID string, order domain.MessageOrder) ([]domain.ChatMessage, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     strValue(convPK(conversationID)),
			":prefix": strValue(skPrefixMsg),
		},
	}
	if order == domain.OrderBySentAt {
		in = &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			IndexName:              aws.String(conversationSentIndex),
			KeyConditionExpression: aws.String("conversationId = :id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":id": strValue(conversationID),
			},
			ScanIndexForward: aws.Bool(true),
		}
	}

	msgs := []domain.ChatMessage{}
	p := dynamodb.NewQueryPaginator(c.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if order == domain.OrderBySentAt && missingIndex(err) {
				return nil, fmt.Errorf("repository: ListMessages: %w: %w", domain.ErrOrderedQueryUnavailable, err)
			}
			return nil, fmt.Errorf("repository: ListMessages query: %w", err)
		}
		for _, item := range page.Items {
			msg, err := itemToMessage(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListMessages unmarshal: %w", err)
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

// SubscribeMessages re-queries the transcript every watch interval and
// reports changes.
func (c *Client) SubscribeMessages(ctx context.Context, conversationID string, order domain.MessageOrder, onChange func([]domain.ChatMessage), onError func(error)) (func(), error) {
	return watch(ctx, c.watchInterval, func(ctx context.Context) ([]domain.ChatMessage, error) {
		return c.ListMessages(ctx, conversationID, order)
	}, messagesFingerprint, onChange, onError)
}

func (c *Client) putMessage(msg domain.ChatMessage, now time.Time) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(c.tableName),
			Item:                messageItem(msg, ttlValue(now)),
			ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
		},
	}
}

func messageItem(msg domain.ChatMessage, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":                strValue(convPK(msg.ConversationID)),
		"SK":                strValue(msgSK(msg.ID)),
		"messageId":         strValue(msg.ID),
		"conversationId":    strValue(msg.ConversationID),
		"text":              strValue(msg.Text),
		"senderRole":        strValue(string(msg.SenderRole)),
		"senderId":          strValue(msg.SenderID),
		"senderDisplayName": strValue(msg.SenderDisplayName),
		"sentAt":            timeValue(msg.SentAt),
		"isStaffMessage":    &types.AttributeValueMemberBOOL{Value: msg.IsStaffMessage},
		"ttl":               numValue(ttl),
	}
}

// itemToMessage converts a DynamoDB attribute map to a ChatMessage.
func itemToMessage(item map[string]types.AttributeValue) (domain.ChatMessage, error) {
	id, err := strAttr(item, "messageId")
	if err != nil {
		return domain.ChatMessage{}, err
	}
	convID, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.ChatMessage{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.ChatMessage{}, err
	}
	sentAt, err := timeAttr(item, "sentAt")
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return domain.ChatMessage{
		ID:                id,
		ConversationID:    convID,
		Text:              text,
		SenderRole:        domain.SenderRole(optStr(item, "senderRole")),
		SenderID:          optStr(item, "senderId"),
		SenderDisplayName: optStr(item, "senderDisplayName"),
		SentAt:            sentAt,
		IsStaffMessage:    boolAttr(item, "isStaffMessage"),
	}, nil
}
