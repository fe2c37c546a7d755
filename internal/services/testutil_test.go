package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/clearlens/governance-backend/internal/db"
	"github.com/clearlens/governance-backend/internal/platform/blob"
	"github.com/clearlens/governance-backend/internal/platform/ctxutil"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newTestDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(tb.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(db.Models()...); err != nil {
		tb.Fatalf("automigrate: %v", err)
	}
	return gdb
}

func testCtx(userID, orgID uuid.UUID) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{
		RequestID:      uuid.NewString(),
		UserID:         userID,
		OrganizationID: orgID,
	})
}

func testDBC(userID, orgID uuid.UUID) dbctx.Context {
	return dbctx.New(testCtx(userID, orgID))
}

// fakeRunner records dispatches and can be told to fail.
type fakeRunner struct {
	mu         sync.Mutex
	dispatched []uuid.UUID
	cancelled  []string
	failWith   error
}

func (f *fakeRunner) Dispatch(_ context.Context, jobID uuid.UUID, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	f.dispatched = append(f.dispatched, jobID)
	// Handles are opaque runner identifiers, deliberately not the job id.
	return "run-" + jobID.String(), nil
}

func (f *fakeRunner) Cancel(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, handle)
	return nil
}

func (f *fakeRunner) dispatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dispatched)
}

type fakeObject struct {
	data        []byte
	contentType string
	updated     time.Time
}

// fakeStore is an in-memory blob.Store with s3-style URLs.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]fakeObject{}}
}

func (s *fakeStore) Upload(_ context.Context, key, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = fakeObject{data: data, contentType: contentType, updated: time.Now().UTC()}
	return s.URL(key), nil
}

func (s *fakeStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *fakeStore) Attrs(_ context.Context, key string) (*blob.ObjectAttrs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return &blob.ObjectAttrs{
		Key:         key,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		Updated:     obj.updated,
	}, nil
}

func (s *fakeStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, _ := s.List(ctx, prefix)
	for _, k := range keys {
		_ = s.Delete(ctx, k)
	}
	return nil
}

func (s *fakeStore) URL(key string) string {
	return "s3://test-bucket/" + key
}
