package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deppfellow/lead-intake/internal/lib/storage"
	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type fakeLeadStore struct {
	mu        sync.Mutex
	leads     map[uuid.UUID]*model.Lead
	createErr error
	clock     time.Time
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{
		leads: map[uuid.UUID]*model.Lead{},
		clock: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeLeadStore) Create(_ context.Context, lead *model.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.clock = f.clock.Add(time.Minute)
	lead.CreatedAt, lead.UpdatedAt = f.clock, f.clock
	cp := *lead
	f.leads[lead.ID] = &cp
	return nil
}

func (f *fakeLeadStore) GetByID(_ context.Context, id uuid.UUID) (*model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return nil, fmt.Errorf("table:leads: lead %s: %w", id, pgx.ErrNoRows)
	}
	cp := *l
	return &cp, nil
}

// List leaves ordering to the service.
func (f *fakeLeadStore) List(_ context.Context, state *model.LeadState) ([]model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Lead
	for _, l := range f.leads {
		if state == nil || l.State == *state {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeLeadStore) MarkReachedOut(_ context.Context, id uuid.UUID, now time.Time) (*model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return nil, fmt.Errorf("table:leads: lead %s: %w", id, pgx.ErrNoRows)
	}
	l.MarkReachedOut(now)
	cp := *l
	return &cp, nil
}

type fakeFileStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: map[string][]byte{}}
}

func (f *fakeFileStore) Save(key string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = b
	return nil
}

func (f *fakeFileStore) Open(key string) (*storage.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return &storage.File{
		ReadSeekCloser: nopSeekCloser{bytes.NewReader(b)},
		Key:            key,
		Name:           key,
		Size:           int64(len(b)),
	}, nil
}

func (f *fakeFileStore) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	return nil
}

type nopSeekCloser struct{ io.ReadSeeker }

func (nopSeekCloser) Close() error { return nil }

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) EnqueueLeadNotifications(ctx context.Context, s model.LeadSnapshot) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockNotifier) EnqueueResumeProcessing(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// fileHeader builds a real multipart.FileHeader holding content.
func fileHeader(t *testing.T, filename, content string) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("resume", filename)
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["resume"][0]
}

type fakeUserStore struct {
	users   map[string]*model.User
	tokens  *fakeTokenStore
	nextID  int64
	rotated int
}

func (f *fakeUserStore) Create(_ context.Context, user *model.User) error {
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	cp := *user
	f.users[user.Username] = &cp
	return nil
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, fmt.Errorf("table:users: username %s: %w", username, pgx.ErrNoRows)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) UpdatePasswordAndRotateToken(_ context.Context, userID int64, passwordHash, newKey string) (*model.AuthToken, error) {
	for _, u := range f.users {
		if u.ID == userID {
			u.PasswordHash = passwordHash
			f.rotated++
			tok := &model.AuthToken{Key: newKey, UserID: userID, CreatedAt: time.Now()}
			f.tokens.byUser[userID] = tok
			return tok, nil
		}
	}
	return nil, fmt.Errorf("table:users: user %d: %w", userID, pgx.ErrNoRows)
}

type fakeTokenStore struct {
	byUser map[int64]*model.AuthToken
	users  *fakeUserStore
}

func (f *fakeTokenStore) GetOrCreate(_ context.Context, userID int64, newKey string) (*model.AuthToken, error) {
	if tok, ok := f.byUser[userID]; ok {
		return tok, nil
	}
	tok := &model.AuthToken{Key: newKey, UserID: userID, CreatedAt: time.Now()}
	f.byUser[userID] = tok
	return tok, nil
}

func (f *fakeTokenStore) GetUser(_ context.Context, key string) (*model.User, error) {
	for userID, tok := range f.byUser {
		if tok.Key != key {
			continue
		}
		for _, u := range f.users.users {
			if u.ID == userID {
				cp := *u
				return &cp, nil
			}
		}
	}
	return nil, fmt.Errorf("table:auth_tokens: token: %w", pgx.ErrNoRows)
}

func (f *fakeTokenStore) DeleteForUser(_ context.Context, userID int64) error {
	delete(f.byUser, userID)
	return nil
}

func newFakeAuthStores() (*fakeUserStore, *fakeTokenStore) {
	users := &fakeUserStore{users: map[string]*model.User{}}
	tokens := &fakeTokenStore{byUser: map[int64]*model.AuthToken{}, users: users}
	users.tokens = tokens
	return users, tokens
}
