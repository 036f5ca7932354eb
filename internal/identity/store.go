// Package identity implements the identity store: account registration,
// credential checks, sessions in two storage scopes, and per-account module
// progress.
//
// Accounts live as one JSON collection in the durable scope. A session is a
// signed record written either to the durable scope (survives restarts and is
// seen by every process) or to the tab-local scope (this process only). When
// both exist the tab-local one wins.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/digitalmira/internal/common"
	"github.com/dmitrijs2005/digitalmira/internal/cryptox"
	"github.com/dmitrijs2005/digitalmira/internal/logging"
	"github.com/dmitrijs2005/digitalmira/internal/storage"
	"github.com/google/uuid"
)

const signingKeySize = 32

var errNoChange = errors.New("no change")

// Store is safe for concurrent use if both scopes are.
type Store struct {
	durable  storage.Scope
	tabLocal storage.Scope

	logger            logging.Logger
	now               func() time.Time
	hasher            cryptox.Hasher
	minPasswordLength int

	secretMu sync.Mutex
	secret   []byte

	dummyOnce   sync.Once
	dummyDigest string
}

func NewStore(durable, tabLocal storage.Scope, opts ...Option) *Store {
	s := &Store{
		durable:           durable,
		tabLocal:          tabLocal,
		logger:            logging.Nop(),
		now:               time.Now,
		hasher:            cryptox.DefaultHasher(),
		minPasswordLength: 1,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "identity")
	return s
}

// Register validates the input, appends a new account with zero progress to
// the durable collection and starts a tab-local session for it.
func (s *Store) Register(ctx context.Context, name, email, password string) (*Account, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	verr := &ValidationError{}
	validateName(verr, name)
	validateEmail(verr, email)
	validatePassword(verr, password, s.minPasswordLength)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	// The session is signed after the account is committed, so the key must
	// be available before anything is written.
	if _, err := s.signingKey(ctx); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created Account
	err = s.durable.Update(ctx, common.AccountsKey, func(cur []byte) ([]byte, error) {
		accounts, err := decodeAccounts(cur)
		if err != nil {
			return nil, err
		}

		if indexByEmail(accounts, email) >= 0 {
			return nil, common.ErrDuplicateEmail
		}

		now := s.now()
		created = Account{
			ID:             nextID(accounts, now.UnixMilli()),
			Name:           name,
			Email:          email,
			PasswordDigest: digest,
			CreatedAt:      now.UTC(),
		}

		return json.Marshal(append(accounts, created))
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			s.logger.Info(ctx, "registration rejected", "email", logging.MaskEmail(email), "reason", "duplicate")
		}
		return nil, err
	}

	s.logger.Info(ctx, "account registered", "user_id", created.ID, "email", logging.MaskEmail(email))

	if err := s.CreateSession(ctx, &created, false); err != nil {
		return nil, err
	}

	return &created, nil
}

// Authenticate checks credentials and starts a session in the durable scope
// when persistent is set, otherwise in the tab-local scope. An unknown email
// and a wrong password both return common.ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string, persistent bool) (*Account, error) {
	email = normalizeEmail(email)

	verr := &ValidationError{}
	validateEmail(verr, email)
	validatePassword(verr, password, 0)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}

	i := indexByEmail(accounts, email)
	if i < 0 {
		s.hasher.Verify([]byte(password), s.dummy())
		s.logger.Info(ctx, "login failed", "email", logging.MaskEmail(email))
		return nil, common.ErrInvalidCredentials
	}

	acc := accounts[i]
	if !s.hasher.Verify([]byte(password), acc.PasswordDigest) {
		s.logger.Info(ctx, "login failed", "email", logging.MaskEmail(email))
		return nil, common.ErrInvalidCredentials
	}

	if err := s.CreateSession(ctx, &acc, persistent); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "login succeeded", "user_id", acc.ID, "persistent", persistent)
	return &acc, nil
}

// CreateSession writes a session snapshot of acc. The other scope is left
// alone.
func (s *Store) CreateSession(ctx context.Context, acc *Account, persistent bool) error {
	secret, err := s.signingKey(ctx)
	if err != nil {
		return err
	}

	raw, err := encodeSession(Session{
		ID:         uuid.NewString(),
		UserID:     acc.ID,
		Name:       acc.Name,
		Email:      acc.Email,
		CreatedAt:  s.now().UTC(),
		Persistent: persistent,
	}, secret)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	if err := s.scope(persistent).Set(ctx, common.SessionKey, []byte(raw)); err != nil {
		return err
	}

	s.logger.Debug(ctx, "session created", "user_id", acc.ID, "persistent", persistent)
	return nil
}

// EndSession removes the session from both scopes. It is a no-op when no
// session exists.
func (s *Store) EndSession(ctx context.Context) error {
	if err := s.tabLocal.Delete(ctx, common.SessionKey); err != nil {
		return err
	}
	if err := s.durable.Delete(ctx, common.SessionKey); err != nil {
		return err
	}
	s.logger.Debug(ctx, "session ended")
	return nil
}

// CurrentSession returns the active session, preferring the tab-local one,
// or nil if there is none. Records that fail verification are ignored.
func (s *Store) CurrentSession(ctx context.Context) (*Session, error) {
	for _, scope := range []storage.Scope{s.tabLocal, s.durable} {
		raw, err := scope.Get(ctx, common.SessionKey)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}

		secret, err := s.signingKey(ctx)
		if err != nil {
			return nil, err
		}

		sess, err := decodeSession(string(raw), secret)
		if err != nil {
			s.logger.Warn(ctx, "ignoring invalid session record", "error", err)
			continue
		}
		return sess, nil
	}
	return nil, nil
}

// CurrentAccount resolves the current session to its account. A session
// whose account no longer exists counts as no session.
func (s *Store) CurrentAccount(ctx context.Context) (*Account, error) {
	sess, err := s.CurrentSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}

	i := indexByID(accounts, sess.UserID)
	if i < 0 {
		s.logger.Debug(ctx, "session references missing account", "user_id", sess.UserID)
		return nil, nil
	}
	return &accounts[i], nil
}

func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	sess, err := s.CurrentSession(ctx)
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}

// RequireAuthenticated returns common.ErrNotAuthenticated when no session is
// active.
func (s *Store) RequireAuthenticated(ctx context.Context) error {
	ok, err := s.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrNotAuthenticated
	}
	return nil
}

// RequireGuest returns common.ErrAlreadyAuthenticated when a session is
// active.
func (s *Store) RequireGuest(ctx context.Context) error {
	ok, err := s.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	if ok {
		return common.ErrAlreadyAuthenticated
	}
	return nil
}

// UpdateProgress stores value, clamped to [0,100], for module on the current
// session's account. Without a session, or when the account is gone, it does
// nothing.
func (s *Store) UpdateProgress(ctx context.Context, module Module, value int) error {
	if !module.Valid() {
		return &ValidationError{Fields: []FieldError{{
			Field:   FieldModule,
			Message: fmt.Sprintf("Unknown module %q", string(module)),
		}}}
	}

	sess, err := s.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		s.logger.Debug(ctx, "progress update without session", "module", string(module))
		return nil
	}

	err = s.durable.Update(ctx, common.AccountsKey, func(cur []byte) ([]byte, error) {
		accounts, err := decodeAccounts(cur)
		if err != nil {
			return nil, err
		}

		i := indexByID(accounts, sess.UserID)
		if i < 0 {
			return nil, errNoChange
		}

		accounts[i].Progress.Set(module, value)
		return json.Marshal(accounts)
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Debug(ctx, "progress updated", "user_id", sess.UserID, "module", string(module), "value", clamp(value))
	return nil
}

// Accounts returns every registered account in registration order.
func (s *Store) Accounts(ctx context.Context) ([]Account, error) {
	return s.loadAccounts(ctx)
}

func (s *Store) scope(persistent bool) storage.Scope {
	if persistent {
		return s.durable
	}
	return s.tabLocal
}

func (s *Store) loadAccounts(ctx context.Context) ([]Account, error) {
	raw, err := s.durable.Get(ctx, common.AccountsKey)
	if err != nil {
		return nil, err
	}
	return decodeAccounts(raw)
}

// signingKey returns the configured secret or the one shared through the
// durable scope, creating it on first use.
func (s *Store) signingKey(ctx context.Context) ([]byte, error) {
	s.secretMu.Lock()
	defer s.secretMu.Unlock()

	if s.secret != nil {
		return s.secret, nil
	}

	var key []byte
	err := s.durable.Update(ctx, common.SigningKeyKey, func(cur []byte) ([]byte, error) {
		if len(cur) > 0 {
			key = cur
			return cur, nil
		}
		hexKey, err := common.MakeRandHexString(signingKeySize)
		if err != nil {
			return nil, err
		}
		key = []byte(hexKey)
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	s.secret = key
	return key, nil
}

// dummy returns a digest used to spend the same effort on unknown emails as
// on real ones.
func (s *Store) dummy() string {
	s.dummyOnce.Do(func() {
		pw, err := common.MakeRandHexString(16)
		if err != nil {
			return
		}
		s.dummyDigest, _ = s.hasher.Hash([]byte(pw))
	})
	return s.dummyDigest
}

func decodeAccounts(raw []byte) ([]Account, error) {
	if len(raw) == 0 {
		return []Account{}, nil
	}
	var accounts []Account
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w: %w", common.ErrCorruptData, err)
	}
	if accounts == nil {
		accounts = []Account{}
	}
	return accounts, nil
}

func indexByEmail(accounts []Account, email string) int {
	for i := range accounts {
		if accounts[i].Email == email {
			return i
		}
	}
	return -1
}

func indexByID(accounts []Account, id int64) int {
	for i := range accounts {
		if accounts[i].ID == id {
			return i
		}
	}
	return -1
}

// nextID returns candidate unless it is taken, in which case it returns one
// past the largest id in use.
func nextID(accounts []Account, candidate int64) int64 {
	if indexByID(accounts, candidate) < 0 {
		return candidate
	}
	var maxID int64
	for _, a := range accounts {
		maxID = max(maxID, a.ID)
	}
	return maxID + 1
}
