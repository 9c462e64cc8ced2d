package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore はJSONファイルに障害状態を永続化する。
// 書き込みは同一ディレクトリ内の一時ファイルへ書いてからrenameすることで、
// 読み取り側が途中状態を観測しないことを保証する。
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore は新しいFileStoreを作成する
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path は状態ファイルのパスを返す
func (f *FileStore) Path() string {
	return f.path
}

// Read は現在の障害状態を読み取る。
// ファイルが存在しない場合は健全状態を返す。
func (f *FileStore) Read(ctx context.Context) (FailureState, error) {
	if err := ctx.Err(); err != nil {
		return FailureState{Mode: ModeHealthy}, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FailureState{Mode: ModeHealthy}, nil
		}
		return FailureState{Mode: ModeHealthy}, fmt.Errorf("failed to read state file: %w", err)
	}

	var st FailureState
	if err := json.Unmarshal(data, &st); err != nil {
		return FailureState{Mode: ModeHealthy}, fmt.Errorf("failed to parse state file: %w", err)
	}
	if !st.Mode.Valid() {
		return FailureState{Mode: ModeHealthy}, fmt.Errorf("state file contains unknown mode: %q", st.Mode)
	}

	return st, nil
}

// Write は障害状態を原子的に書き込む
func (f *FileStore) Write(ctx context.Context, st FailureState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".failure_state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	// 読み取り側（別プロセスのTarget含む）から読めるようにする
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp state file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}
