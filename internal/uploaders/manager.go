package uploaders

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Manager holds the publish destinations of a rendered video, keyed by
// platform name.
type Manager struct {
	uploaders map[string]Uploader
}

func NewManager(ups ...Uploader) *Manager {
	m := &Manager{uploaders: make(map[string]Uploader)}
	for _, u := range ups {
		m.AddUploader(u.Platform(), u)
	}
	return m
}

// AddUploader registers u under platform, replacing any previous one.
func (m *Manager) AddUploader(platform string, u Uploader) {
	m.uploaders[platform] = u
}

// Upload publishes to one platform. An unknown platform yields a failed
// result rather than a nil one.
func (m *Manager) Upload(ctx context.Context, platform string, req *UploadRequest) (*UploadResult, error) {
	u, ok := m.uploaders[platform]
	if !ok {
		return failed(platform, fmt.Errorf("uploader not found for platform: %s", platform))
	}
	res, err := u.Upload(ctx, req)
	if res == nil {
		res = &UploadResult{Success: err == nil, Platform: platform}
		if err != nil {
			res.Error = err.Error()
		}
	}
	return res, err
}

// UploadToSelected publishes to each named platform once, in the given order.
// Every name gets a result, including names with no uploader.
func (m *Manager) UploadToSelected(ctx context.Context, platforms []string, req *UploadRequest) map[string]*UploadResult {
	platforms = lo.Uniq(platforms)
	results := make(map[string]*UploadResult, len(platforms))
	for _, platform := range platforms {
		if err := ctx.Err(); err != nil {
			results[platform], _ = failed(platform, err)
			continue
		}
		results[platform], _ = m.Upload(ctx, platform, req)
	}
	return results
}

// AvailablePlatforms returns the registered platforms in name order.
func (m *Manager) AvailablePlatforms() []string {
	platforms := lo.Keys(m.uploaders)
	sort.Strings(platforms)
	return platforms
}
