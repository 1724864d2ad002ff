package dataset

import (
	"context"
	"fmt"
	"os"
)

// Source fetches the raw dataset resource.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]byte, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }

// Static serves a dataset held in memory.
func Static(csvText string) Source {
	return SourceFunc(func(context.Context) ([]byte, error) {
		return []byte(csvText), nil
	})
}

// File reads the dataset from a local path.
type File struct {
	Path string
}

func (f File) Fetch(_ context.Context) ([]byte, error) {
	buf, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", f.Path, err)
	}
	return buf, nil
}
