package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"

	"github.com/ilovetoast/jackpot-firehorse-sub012/pkg/objectstorage"
)

// ObjectStorage is an in-memory stand-in for the MinIO wrapper, used by
// activity tests. Optional hook fields inject failures per path.
type ObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte

	// GetErr, if set, is consulted before every read.
	GetErr func(path string) error
	// PutErr, if set, is consulted before every write.
	PutErr func(path string) error
}

var _ objectstorage.ObjectStorageI = (*ObjectStorage)(nil)

func NewObjectStorage() *ObjectStorage {
	return &ObjectStorage{objects: map[string][]byte{}}
}

func (m *ObjectStorage) GetClient() *minio.Client { return nil }

func (m *ObjectStorage) UploadFile(_ context.Context, path string, content []byte, _ string) error {
	if m.PutErr != nil {
		if err := m.PutErr(path); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(content))
	copy(buf, content)
	m.objects[path] = buf
	return nil
}

func (m *ObjectStorage) GetFile(_ context.Context, path string) ([]byte, error) {
	if m.GetErr != nil {
		if err := m.GetErr(path); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", path)
	}
	return content, nil
}

func (m *ObjectStorage) DeleteFile(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *ObjectStorage) FileExists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *ObjectStorage) PromoteFile(ctx context.Context, stagingPath, permanentPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.objects[stagingPath]
	if !ok {
		if _, done := m.objects[permanentPath]; done {
			return nil
		}
		return fmt.Errorf("staging object missing: %s", stagingPath)
	}
	m.objects[permanentPath] = content
	delete(m.objects, stagingPath)
	return nil
}

// Paths returns the stored object paths, for assertions.
func (m *ObjectStorage) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	return out
}
