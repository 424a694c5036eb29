package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	xerrors "OpenMCP-Intent/internal/errors"
)

// Store 抽象语料的持久化接口。
type Store interface {
	Append(ctx context.Context, record Record) error
	List(ctx context.Context, opts ...ListOption) ([]Record, error)
	Close() error
}

// DefaultFileName 是训练数据文件名，与训练工具读取的文件一致。
const DefaultFileName = "train_data.json"

// FileStore 将语料保存为单个 JSON 数组文件，每次追加后整体原子替换。
type FileStore struct {
	mu      sync.RWMutex
	path    string
	records []Record
}

// NewFileStore 打开（或创建）dataDir 下的训练数据文件。
func NewFileStore(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建数据目录失败")
	}
	return OpenFileStore(filepath.Join(dataDir, DefaultFileName))
}

// OpenFileStore 打开指定路径的训练数据文件，文件不存在时视为空语料。
func OpenFileStore(path string) (*FileStore, error) {
	store := &FileStore{path: path}
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return store, nil
	case err != nil:
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取训练数据失败")
	}
	if len(content) == 0 {
		return store, nil
	}
	if err := json.Unmarshal(content, &store.records); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("解析训练数据 %s 失败", path))
	}
	return store, nil
}

// Path 返回数据文件路径。
func (f *FileStore) Path() string { return f.path }

// Append 实现 Store 接口。
func (f *FileStore) Append(_ context.Context, record Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := append(append([]Record(nil), f.records...), cloneRecord(record))
	if err := f.flush(next); err != nil {
		return err
	}
	f.records = next
	return nil
}

// List 实现 Store 接口。文件中的顺序即写入顺序。
func (f *FileStore) List(_ context.Context, opts ...ListOption) ([]Record, error) {
	options := buildListOptions(opts)

	f.mu.RLock()
	defer f.mu.RUnlock()

	filtered := make([]Record, 0, len(f.records))
	for _, r := range f.records {
		if options.matches(r) {
			filtered = append(filtered, cloneRecord(r))
		}
	}
	if options.Order == SortByCreatedDesc {
		reverse(filtered)
	}
	return options.page(filtered), nil
}

func reverse(records []Record) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}

func (f *FileStore) flush(records []Record) error {
	encoded, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化训练数据失败")
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".train_data-*.json")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建临时文件失败")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(encoded, '\n')); err != nil {
		tmp.Close()
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入训练数据失败")
	}
	if err := tmp.Close(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入训练数据失败")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "替换训练数据文件失败")
	}
	return nil
}

// Close 实现 Store 接口。
func (f *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
