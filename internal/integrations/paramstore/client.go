package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// GetParameter returns the decrypted value of the named parameter.
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// Join builds a parameter name under prefix, tolerating stray slashes.
func Join(prefix, name string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if prefix == "" {
		return "/" + name
	}
	return prefix + "/" + name
}

// DatasetSource serves the chatbot dataset stored as a parameter value.
type DatasetSource struct {
	Getter Getter
	Name   string
}

func (s DatasetSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.Getter == nil {
		return nil, errors.New("paramstore: dataset getter is nil")
	}
	v, err := s.Getter.GetParameter(ctx, s.Name)
	if err != nil {
		return nil, fmt.Errorf("paramstore: fetch dataset: %w", err)
	}
	if strings.TrimSpace(v) == "" {
		return nil, fmt.Errorf("paramstore: dataset parameter %q is empty", s.Name)
	}
	return []byte(v), nil
}
