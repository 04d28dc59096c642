// Package datasource abstracts where input bytes come from.
package datasource

import (
	"context"
	"fmt"
	"io"
)

type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ReadAll opens s and reads it to the end.
func ReadAll(ctx context.Context, s Source) ([]byte, error) {
	rc, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return b, nil
}
