package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wiliyo/wiliyo/internal/common"
)

// FileRepository keeps the whole username -> record mapping in memory and
// rewrites the backing JSON file in full on every successful Create. The
// mutex makes the check-then-insert of Create indivisible, so two racing
// registrations of one username can never both succeed.
type FileRepository struct {
	mu    sync.Mutex
	path  string
	users map[string]*User
}

// fileRecord mirrors the on-disk JSON shape of one user entry.
type fileRecord struct {
	Password string `json:"password"`
	Created  string `json:"created"`
	LastIP   string `json:"last_ip"`
}

const createdAtLayout = "2006-01-02 15:04"

// NewFileRepository loads the credential artifact at path. A missing file is
// not an error: the store starts empty and the file appears on the first
// registration.
func NewFileRepository(path string) (*FileRepository, error) {
	r := &FileRepository{path: path, users: make(map[string]*User)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("read user data file: %w", err)
	}

	records := make(map[string]fileRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse user data file %s: %w", path, err)
	}

	for name, rec := range records {
		r.users[name] = recordToUser(name, rec)
	}

	return r, nil
}

func (r *FileRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	u := *user
	return &u, nil
}

func (r *FileRepository) Exists(ctx context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.users[username]
	return ok, nil
}

func (r *FileRepository) Create(ctx context.Context, user *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.Username]; ok {
		return nil, common.ErrAlreadyExists
	}

	u := *user
	r.users[user.Username] = &u

	if err := r.save(); err != nil {
		delete(r.users, user.Username)
		return nil, fmt.Errorf("persist user data: %w", err)
	}

	return user, nil
}

func (r *FileRepository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users), nil
}

// save rewrites the whole artifact. Written to a temp file first and renamed
// into place so a crash mid-write never truncates the store.
func (r *FileRepository) save() error {
	records := make(map[string]fileRecord, len(r.users))
	for name, u := range r.users {
		records[name] = userToRecord(u)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".wiliyo-users-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), r.path)
}

func recordToUser(name string, rec fileRecord) *User {
	u := &User{Username: name, PasswordHash: rec.Password, LastIP: rec.LastIP}
	if t, err := time.Parse(createdAtLayout, rec.Created); err == nil {
		u.CreatedAt = t
	}
	return u
}

func userToRecord(u *User) fileRecord {
	return fileRecord{
		Password: u.PasswordHash,
		Created:  u.CreatedAt.Format(createdAtLayout),
		LastIP:   u.LastIP,
	}
}
