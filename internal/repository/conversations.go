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

const openCondition = "attribute_exists(PK) AND #status <> :done"

// CreateConversation writes a pending conversation and its opening message
// in one transaction.
func (c *Client) CreateConversation(ctx context.Context, conv domain.Conversation, opening domain.ChatMessage) (domain.Conversation, error) {
	if conv.ID == "" {
		return domain.Conversation{}, errors.New("repository: CreateConversation: conversation id is required")
	}
	now := c.stamp()
	conv.Status = domain.StatusPending
	conv.AssignedStaffID, conv.AssignedStaffName = "", ""
	conv.CreatedAt = now
	conv.LastMessageAt = now

	items := []types.TransactWriteItem{}
	if opening.ID != "" {
		opening.ConversationID = conv.ID
		opening.SentAt = now
		conv.LastMessage = opening.Text
	}
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(c.tableName),
			Item:                conversationItem(conv, ttlValue(now)),
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	})
	if opening.ID != "" {
		items = append(items, c.putMessage(opening, now))
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: CreateConversation: %w", err)
	}
	return conv, nil
}

// GetConversation reads the conversation record.
func (c *Client) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            metaKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: GetConversation get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Conversation{}, domain.ErrNotFound
	}
	conv, err := itemToConversation(out.Item)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: GetConversation unmarshal: %w", err)
	}
	return conv, nil
}

// QueryConversations lists conversations matching filter. Assignment filters
// use assignee-index; the zero filter scans conversation records.
func (c *Client) QueryConversations(ctx context.Context, filter domain.ConversationFilter) ([]domain.Conversation, error) {
	var items []map[string]types.AttributeValue
	var err error
	switch {
	case filter.Unassigned:
		items, err = c.queryAssignee(ctx, unassigned)
	case filter.AssignedTo != "":
		items, err = c.queryAssignee(ctx, filter.AssignedTo)
	default:
		items, err = c.scanConversations(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("repository: QueryConversations: %w", err)
	}

	convs := make([]domain.Conversation, 0, len(items))
	for _, item := range items {
		conv, err := itemToConversation(item)
		if err != nil {
			return nil, fmt.Errorf("repository: QueryConversations unmarshal: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func (c *Client) queryAssignee(ctx context.Context, assignee string) ([]map[string]types.AttributeValue, error) {
	p := dynamodb.NewQueryPaginator(c.api, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(assigneeIndex),
		KeyConditionExpression: aws.String("assignee = :assignee"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":assignee": strValue(assignee),
		},
	})
	var items []map[string]types.AttributeValue
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func (c *Client) scanConversations(ctx context.Context) ([]map[string]types.AttributeValue, error) {
	p := dynamodb.NewScanPaginator(c.api, &dynamodb.ScanInput{
		TableName:        aws.String(c.tableName),
		FilterExpression: aws.String("SK = :meta"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":meta": strValue(skMeta),
		},
	})
	var items []map[string]types.AttributeValue
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// SubscribeConversations re-queries the filter every watch interval and
// reports changes.
func (c *Client) SubscribeConversations(ctx context.Context, filter domain.ConversationFilter, onChange func([]domain.Conversation), onError func(error)) (func(), error) {
	return watch(ctx, c.watchInterval, func(ctx context.Context) ([]domain.Conversation, error) {
		return c.QueryConversations(ctx, filter)
	}, conversationsFingerprint, onChange, onError)
}

// AssignConversation hands the conversation to staff only while it is still
// unassigned and not done.
func (c *Client) AssignConversation(ctx context.Context, id string, staff domain.Staff, notice domain.ChatMessage) error {
	now := c.stamp()
	update := &types.Update{
		TableName: aws.String(c.tableName),
		Key:       metaKey(id),
		UpdateExpression: aws.String("SET assignee = :staff, assignedStaffId = :staff, assignedStaffName = :name, " +
			"assignedAt = :now, #status = :active, lastMessage = :text, lastMessageAt = :now, #ttl = :ttl"),
		ConditionExpression: aws.String(openCondition + " AND assignee = :unassigned"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
			"#ttl":    "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":staff":      strValue(staff.ID),
			":name":       strValue(staff.Name()),
			":now":        timeValue(now),
			":active":     strValue(string(domain.StatusActive)),
			":done":       strValue(string(domain.StatusDone)),
			":unassigned": strValue(unassigned),
			":text":       strValue(notice.Text),
			":ttl":        numValue(ttlValue(now)),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}
	notice.ConversationID = id
	if err := c.transactWithNotice(ctx, update, notice, now); err != nil {
		if old, ok := conditionItem(err); ok {
			return conditionFailure(old, domain.ErrAlreadyAssigned)
		}
		return fmt.Errorf("repository: AssignConversation: %w", err)
	}
	return nil
}

// UnassignConversation clears the assignment and returns it to pending.
func (c *Client) UnassignConversation(ctx context.Context, id string) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 metaKey(id),
		UpdateExpression:    aws.String("SET assignee = :unassigned, #status = :pending REMOVE assignedStaffId, assignedStaffName, assignedAt"),
		ConditionExpression: aws.String(openCondition),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":unassigned": strValue(unassigned),
			":pending":    strValue(string(domain.StatusPending)),
			":done":       strValue(string(domain.StatusDone)),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		if old, ok := conditionItem(err); ok {
			return conditionFailure(old, domain.ErrConversationClosed)
		}
		return fmt.Errorf("repository: UnassignConversation: %w", err)
	}
	return nil
}

// CloseConversation marks the conversation done and stores notice with it.
func (c *Client) CloseConversation(ctx context.Context, id string, notice domain.ChatMessage) error {
	now := c.stamp()
	update := &types.Update{
		TableName:           aws.String(c.tableName),
		Key:                 metaKey(id),
		UpdateExpression:    aws.String("SET #status = :done, resolvedAt = :now, resolvedBy = :by, lastMessage = :text, lastMessageAt = :now"),
		ConditionExpression: aws.String(openCondition),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":done": strValue(string(domain.StatusDone)),
			":now":  timeValue(now),
			":by":   strValue("staff"),
			":text": strValue(notice.Text),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}
	notice.ConversationID = id
	if err := c.transactWithNotice(ctx, update, notice, now); err != nil {
		if old, ok := conditionItem(err); ok {
			return conditionFailure(old, domain.ErrConversationClosed)
		}
		return fmt.Errorf("repository: CloseConversation: %w", err)
	}
	return nil
}

// transactWithNotice applies update and, when notice has an id, stores it in
// the same transaction. The update must stay first so condition failures can
// be classified.
func (c *Client) transactWithNotice(ctx context.Context, update *types.Update, notice domain.ChatMessage, now time.Time) error {
	items := []types.TransactWriteItem{{Update: update}}
	if notice.ID != "" {
		notice.SentAt = now
		items = append(items, c.putMessage(notice, now))
	}
	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return err
}

func conversationItem(conv domain.Conversation, ttl int64) map[string]types.AttributeValue {
	assignee := conv.AssignedStaffID
	if assignee == "" {
		assignee = unassigned
	}
	item := map[string]types.AttributeValue{
		"PK":                 strValue(convPK(conv.ID)),
		"SK":                 strValue(skMeta),
		"conversationId":     strValue(conv.ID),
		"visitorDisplayName": strValue(conv.VisitorDisplayName),
		"status":             strValue(string(conv.Status)),
		"assignee":           strValue(assignee),
		"lastMessage":        strValue(conv.LastMessage),
		"lastMessageAt":      timeValue(conv.LastMessageAt),
		"createdAt":          timeValue(conv.CreatedAt),
		"ttl":                numValue(ttl),
	}
	if conv.AssignedStaffID != "" {
		item["assignedStaffId"] = strValue(conv.AssignedStaffID)
		item["assignedStaffName"] = strValue(conv.AssignedStaffName)
	}
	if !conv.AssignedAt.IsZero() {
		item["assignedAt"] = timeValue(conv.AssignedAt)
	}
	return item
}

// itemToConversation converts a DynamoDB attribute map to a Conversation.
func itemToConversation(item map[string]types.AttributeValue) (domain.Conversation, error) {
	id, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.Conversation{}, err
	}
	status, err := strAttr(item, "status")
	if err != nil {
		return domain.Conversation{}, err
	}
	createdAt, err := timeAttr(item, "createdAt")
	if err != nil {
		return domain.Conversation{}, err
	}
	conv := domain.Conversation{
		ID:                 id,
		VisitorDisplayName: optStr(item, "visitorDisplayName"),
		Status:             domain.ConversationStatus(status),
		AssignedStaffID:    optStr(item, "assignedStaffId"),
		AssignedStaffName:  optStr(item, "assignedStaffName"),
		LastMessage:        optStr(item, "lastMessage"),
		LastStaffMessage:   optStr(item, "lastStaffMessage"),
		ResolvedBy:         optStr(item, "resolvedBy"),
		CreatedAt:          createdAt,
	}
	for key, dst := range map[string]*time.Time{
		"assignedAt":         &conv.AssignedAt,
		"lastMessageAt":      &conv.LastMessageAt,
		"lastStaffMessageAt": &conv.LastStaffMessageAt,
		"resolvedAt":         &conv.ResolvedAt,
	} {
		if *dst, err = optTime(item, key); err != nil {
			return domain.Conversation{}, err
		}
	}
	return conv, nil
}
