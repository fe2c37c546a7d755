package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/jobs/runtime"
	"github.com/clearlens/governance-backend/internal/platform/blob"
	"github.com/clearlens/governance-backend/internal/platform/logger"
)

// CleanupHandler deletes expired artifacts under a key prefix. Retention is
// judged per object from its live Updated timestamp.
type CleanupHandler struct {
	Log   *logger.Logger
	Store blob.Store
}

func (h *CleanupHandler) Type() string { return string(domain.JobTypeCleanup) }

func (h *CleanupHandler) Run(jc *runtime.Context) error {
	if h.Store == nil {
		return fmt.Errorf("artifact storage is not configured")
	}
	prefix := strings.TrimSpace(jc.ParamString("prefix"))
	if prefix == "" {
		prefix = "evidence/"
	}
	retentionDays := 30
	if v, ok := jc.Params()["retention_days"].(float64); ok && v > 0 {
		retentionDays = int(v)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	keys, err := h.Store.List(jc.Ctx, prefix)
	if err != nil {
		return err
	}
	jc.SetProgress(20)

	deleted := 0
	skipped := 0
	for i, key := range keys {
		attrs, err := h.Store.Attrs(jc.Ctx, key)
		if err != nil {
			skipped++
			if h.Log != nil {
				h.Log.Warn("Skipping object with unreadable attrs", "key", key, "error", err)
			}
			continue
		}
		if attrs.Updated.After(cutoff) {
			continue
		}
		if err := h.Store.Delete(jc.Ctx, key); err != nil {
			skipped++
			if h.Log != nil {
				h.Log.Warn("Delete expired object", "key", key, "error", err)
			}
			continue
		}
		deleted++
		if len(keys) > 0 {
			jc.SetProgress(20 + (70*(i+1))/len(keys))
		}
	}

	jc.Succeed(nil, map[string]any{
		"prefix":         prefix,
		"retention_days": retentionDays,
		"scanned":        len(keys),
		"deleted":        deleted,
		"skipped":        skipped,
	})
	return nil
}
