package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const usersFile = "users.json"

// User is the public view of an account.
type User struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type userRecord struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *userRecord) user() User {
	return User{Username: r.Username, CreatedAt: r.CreatedAt}
}

// userFile keeps accounts in users.json.
type userFile struct {
	path string

	mu    sync.RWMutex
	users []*userRecord
}

func openUserFile(dir string) (*userFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	f := &userFile{path: filepath.Join(dir, usersFile)}
	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f.users = []*userRecord{}
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", usersFile, err)
	default:
		if err := json.Unmarshal(data, &f.users); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", usersFile, err)
		}
	}
	return f, nil
}

func (f *userFile) find(username string) *userRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.findLocked(username)
}

func (f *userFile) findLocked(username string) *userRecord {
	for _, u := range f.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

// add stores rec unless the username is already taken.
func (f *userFile) add(rec *userRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findLocked(rec.Username) != nil {
		return ErrUsernameTaken
	}

	next := append(append([]*userRecord(nil), f.users...), rec)
	if err := f.write(next); err != nil {
		return err
	}
	f.users = next
	return nil
}

func (f *userFile) write(users []*userRecord) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", usersFile, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", usersFile, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", usersFile, err)
	}
	return nil
}
