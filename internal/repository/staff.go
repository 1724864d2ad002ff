package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"barangay-helpdesk/internal/domain"
)

func staffKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": strValue(staffPK(id)),
		"SK": strValue(skProfile),
	}
}

// GetStaff reads a staff profile.
func (c *Client) GetStaff(ctx context.Context, id string) (domain.Staff, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key:       staffKey(id),
	})
	if err != nil {
		return domain.Staff{}, fmt.Errorf("repository: GetStaff get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Staff{}, domain.ErrStaffNotFound
	}
	role, err := strAttr(out.Item, "role")
	if err != nil {
		return domain.Staff{}, fmt.Errorf("repository: GetStaff decode role: %w", err)
	}
	return domain.Staff{
		ID:          id,
		DisplayName: optStr(out.Item, "displayName"),
		Email:       optStr(out.Item, "email"),
		Role:        domain.Role(role),
	}, nil
}

// PutStaff writes or replaces a staff profile.
func (c *Client) PutStaff(ctx context.Context, staff domain.Staff) error {
	if staff.ID == "" {
		return errors.New("repository: PutStaff: staff id is required")
	}
	if !staff.Role.Valid() {
		return fmt.Errorf("repository: PutStaff: unknown role %q", staff.Role)
	}
	key := staffKey(staff.ID)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":          key["PK"],
			"SK":          key["SK"],
			"displayName": strValue(staff.DisplayName),
			"email":       strValue(staff.Email),
			"role":        strValue(string(staff.Role)),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutStaff: %w", err)
	}
	return nil
}
