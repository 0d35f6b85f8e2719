package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Prune deletes objects under prefix last modified more than maxAge before
// now and returns the deleted keys. It stops at the first failed delete.
func Prune(ctx context.Context, c Client, prefix string, maxAge time.Duration, now time.Time) ([]string, error) {
	objects, err := c.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	stale := lo.Filter(objects, func(o ObjectInfo, _ int) bool {
		return now.Sub(o.LastModified) >= maxAge
	})

	deleted := make([]string, 0, len(stale))
	for _, o := range stale {
		if err := c.Delete(ctx, o.Key); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", o.Key, err)
		}
		deleted = append(deleted, o.Key)
	}
	return deleted, nil
}
