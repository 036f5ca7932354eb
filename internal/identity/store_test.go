package identity

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/digitalmira/internal/common"
	"github.com/dmitrijs2005/digitalmira/internal/cryptox"
	"github.com/dmitrijs2005/digitalmira/internal/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = cryptox.Params{
	Memory:      64,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type testEnv struct {
	store    *Store
	durable  *storage.MemoryScope
	tabLocal *storage.MemoryScope
}

func testHasher(t *testing.T) cryptox.Hasher {
	t.Helper()
	h, err := cryptox.NewArgon2Hasher(testParams)
	require.NoError(t, err)
	return h
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	durable := storage.NewMemoryScope()
	tabLocal := storage.NewMemoryScope()

	base := []Option{
		WithHasher(testHasher(t)),
		WithClock(func() time.Time { return fixedNow }),
	}
	return &testEnv{
		store:    NewStore(durable, tabLocal, append(base, opts...)...),
		durable:  durable,
		tabLocal: tabLocal,
	}
}

func mustRegister(t *testing.T, s *Store, name, email, password string) *Account {
	t.Helper()
	acc, err := s.Register(context.Background(), name, email, password)
	require.NoError(t, err)
	return acc
}

func TestRegister_CurrentAccountHasNormalizedEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"plain", "anita@example.com", "anita@example.com"},
		{"upper case", "Anita@Example.COM", "anita@example.com"},
		{"padded", "  anita@example.com\t", "anita@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			acc := mustRegister(t, env.store, "  Anita ", tt.email, "secret")
			assert.Equal(t, tt.want, acc.Email)
			assert.Equal(t, "Anita", acc.Name)

			cur, err := env.store.CurrentAccount(ctx)
			require.NoError(t, err)
			require.NotNil(t, cur)
			assert.Equal(t, tt.want, cur.Email)
			assert.Equal(t, Progress{}, cur.Progress)
			assert.Equal(t, fixedNow.UnixMilli(), cur.ID)
			assert.True(t, cur.CreatedAt.Equal(fixedNow))
		})
	}
}

func TestRegister_StoresDigestNotPassword(t *testing.T) {
	env := newTestEnv(t)

	acc := mustRegister(t, env.store, "Anita", "anita@example.com", "secret")
	assert.NotContains(t, acc.PasswordDigest, "secret")
	assert.True(t, testHasher(t).Verify([]byte("secret"), acc.PasswordDigest))
}

func TestRegister_CollectsAllFieldErrors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.store.Register(context.Background(), " ", "not-an-email", "")
	require.ErrorIs(t, err, common.ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	want := []FieldError{
		{Field: FieldName, Message: "Name is required"},
		{Field: FieldEmail, Message: "Please enter a valid email address"},
		{Field: FieldPassword, Message: "Password is required"},
	}
	if diff := cmp.Diff(want, verr.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	accounts, err := env.store.Accounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestRegister_FieldRules(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		email    string
		password string
		field    string
		message  string
	}{
		{"short name", "A", "a@b.co", "password", FieldName, "Name must be at least 2 characters"},
		{"missing email", "Anita", "   ", "password", FieldEmail, "Email is required"},
		{"no tld", "Anita", "anita@example", "password", FieldEmail, "Please enter a valid email address"},
		{"space in email", "Anita", "an ita@example.com", "password", FieldEmail, "Please enter a valid email address"},
		{"short password", "Anita", "a@b.co", "short", FieldPassword, "Password must be at least 8 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, WithMinPasswordLength(8))

			_, err := env.store.Register(context.Background(), tt.user, tt.email, tt.password)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.message, verr.Message(tt.field))
		})
	}
}

func TestRegister_TwoRuneNameAccepted(t *testing.T) {
	env := newTestEnv(t)
	acc := mustRegister(t, env.store, "Ли", "li@example.com", "pw")
	assert.Equal(t, "Ли", acc.Name)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustRegister(t, env.store, "Anita", "anita@example.com", "secret")
	require.NoError(t, env.store.EndSession(ctx))

	_, err := env.store.Register(ctx, "Other", "  ANITA@example.com ", "different")
	require.ErrorIs(t, err, common.ErrDuplicateEmail)
	assert.Equal(t, "an account with this email already exists", err.Error())

	accounts, err := env.store.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	sess, err := env.store.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestRegister_CreatesTabLocalSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := mustRegister(t, env.store, "Anita", "anita@example.com", "secret")

	raw, err := env.durable.Get(ctx, common.SessionKey)
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = env.tabLocal.Get(ctx, common.SessionKey)
	require.NoError(t, err)
	assert.NotNil(t, raw)

	sess, err := env.store.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, acc.ID, sess.UserID)
	assert.Equal(t, "Anita", sess.Name)
	assert.Equal(t, "anita@example.com", sess.Email)
	assert.False(t, sess.Persistent)
	assert.NotEmpty(t, sess.ID)
}

func TestRegister_SameMillisecondGetsDistinctIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := mustRegister(t, env.store, "Anita", "anita@example.com", "secret")
	require.NoError(t, env.store.EndSession(ctx))
	b := mustRegister(t, env.store, "Bharat", "bharat@example.com", "secret")

	assert.Equal(t, a.ID+1, b.ID)
}

func TestAuthenticate_Scopes(t *testing.T) {
	tests := []struct {
		name       string
		persistent bool
	}{
		{"remembered", true},
		{"tab only", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			mustRegister(t, env.store, "Anita", "anita@example.com", "secret")
			require.NoError(t, env.store.EndSession(ctx))

			acc, err := env.store.Authenticate(ctx, " Anita@Example.com", "secret", tt.persistent)
			require.NoError(t, err)
			assert.Equal(t, "anita@example.com", acc.Email)

			durable, _ := env.durable.Get(ctx, common.SessionKey)
			tab, _ := env.tabLocal.Get(ctx, common.SessionKey)
			assert.Equal(t, tt.persistent, durable != nil)
			assert.Equal(t, !tt.persistent, tab != nil)

			sess, err := env.store.CurrentSession(ctx)
			require.NoError(t, err)
			require.NotNil(t, sess)
			assert.Equal(t, tt.persistent, sess.Persistent)
		})
	}
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustRegister(t, env.store, "Anita", "anita@example.com", "secret")
	require.NoError(t, env.store.EndSession(ctx))

	_, wrongPassword := env.store.Authenticate(ctx, "anita@example.com", "nope", false)
	_, unknownEmail := env.store.Authenticate(ctx, "nobody@example.com", "nope", false)

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Same(t, common.ErrInvalidCredentials, wrongPassword)
	assert.Same(t, common.ErrInvalidCredentials, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())

	ok, err := env.store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthenticate_NoLengthRule(t *testing.T) {
	env := newTestEnv(t, WithMinPasswordLength(8))

	_, err := env.store.Authenticate(context.Background(), "anita@example.com", "short", false)
	assert.Same(t, common.ErrInvalidCredentials, err)
}

func TestAuthenticate_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.store.Authenticate(context.Background(), "", "", true)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Email is required", verr.Message(FieldEmail))
	assert.Equal(t, "Password is required", verr.Message(FieldPassword))
	assert.Empty(t, verr.Message(FieldName))
}

func TestEndSession_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.EndSession(ctx))
	sess, err := env.store.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	mustRegister(t, env.store, "Anita", "anita@example.com", "secret")
	_, err = env.store.Authenticate(ctx, "anita@example.com", "secret", true)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, env.store.EndSession(ctx))
		sess, err := env.store.CurrentSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, sess)
	}
}

func TestCurrentSession_TabLocalWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := mustRegister(t, env.store, "Anita", "anita@example.com", "secret")
	require.NoError(t, env.store.EndSession(ctx))
	b := mustRegister(t, env.store, "Bharat", "bharat@example.com", "secret")
	require.NoError(t, env.store.EndSession(ctx))

	require.NoError(t, env.store.CreateSession(ctx, a, true))
	require.NoError(t, env.store.CreateSession(ctx, b, false))

	sess, err := env.store.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, b.ID, sess.UserID)

	require.NoError(t, env.tabLocal.Delete(ctx, common.SessionKey))
	sess, err = env.store.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, a.ID, sess.UserID)
}

func TestCurrentSession_TamperedRecordIgnored(t *testing.T) {
	env := newTestEnv(t, WithSecret([]byte("right")))
	ctx := context.Background()

	acc := mustRegister(t, env.store, "Anita", "anita@example.com", "secret")

	forged, err := encodeSession(Session{ID: "x", UserID: acc.ID, Name: "Mallory"}, []byte("wrong"))
	require.NoError(t, err)

	for _, raw := range []string{"garbage", `{"userId":1}`, forged} {
		require.NoError(t, env.tabLocal.Set(ctx, common.SessionKey, []byte(raw)))

		sess, err := env.store.CurrentSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, sess, raw)

		cur, err := env.store.CurrentAccount(ctx)
		require.NoError(t, err)
		assert.Nil(t, cur)
	}
}

func TestCurrentSession_InvalidTabRecordFallsBackToDurable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := mustRegister(t, env.store, "Anita", "anita@example.com", "secret")
	require.NoError(t, env.store.CreateSession(ctx, acc, true))
	require.NoError(t, env.tabLocal.Set(ctx, common.SessionKey, []byte("garbage")))

	sess, err := env.store.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.True(t, sess.Persistent)
}

func TestCurrentAccount_DanglingSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ghost := &Account{ID: 42, Name: "Ghost", Email: "ghost@example.com"}
	require.NoError(t, env.store.CreateSession(ctx, ghost, false))

	cur, err := env.store.CurrentAccount(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)

	require.NoError(t, env.store.UpdateProgress(ctx, Shield, 50))
	accounts, err := env.store.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSessionSnapshotDoesNotFollowAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustRegister(t, env.store, "Anita", "anita@example.com", "secret")
	require.NoError(t, env.store.UpdateProgress(ctx, Transit, 10))

	sess, err := env.store.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "Anita", sess.Name)

	cur, err := env.store.CurrentAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, cur.Progress.Transit)
}

func TestUpdateProgress_Clamps(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"above", 150, 100},
		{"below", -10, 0},
		{"inside", 42, 42},
		{"upper bound", 100, 100},
		{"lower bound", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			mustRegister(t, env.store, "Anita", "anita@example.com", "secret")
			require.NoError(t, env.store.UpdateProgress(ctx, Shield, tt.in))

			cur, err := env.store.CurrentAccount(ctx)
			require.NoError(t, err)
			assert.Equal(t, Progress{Shield: tt.want}, cur.Progress)
		})
	}
}

func TestUpdateProgress_SequenceStaysInRange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustRegister(t, env.store, "Anita", "anita@example.com", "secret")

	for _, v := range []int{-1000, 30, 1 << 20, -1, 77, 101} {
		for _, m := range Modules {
			require.NoError(t, env.store.UpdateProgress(ctx, m, v))

			cur, err := env.store.CurrentAccount(ctx)
			require.NoError(t, err)
			got := cur.Progress.Get(m)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		}
	}
}

func TestUpdateProgress_UnknownModule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.store.UpdateProgress(ctx, Module("quantum"), 10)
	require.ErrorIs(t, err, common.ErrValidation)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, `Unknown module "quantum"`, verr.Message(FieldModule))
}

func TestUpdateProgress_NoSessionIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mustRegister(t, env.store, "Anita", "anita@example.com", "secret")
	require.NoError(t, env.store.EndSession(ctx))

	require.NoError(t, env.store.UpdateProgress(ctx, Udyam, 60))

	accounts, err := env.store.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, Progress{}, accounts[0].Progress)
}

func TestGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, env.store.RequireAuthenticated(ctx), common.ErrNotAuthenticated)
	assert.NoError(t, env.store.RequireGuest(ctx))

	mustRegister(t, env.store, "Anita", "anita@example.com", "secret")

	assert.NoError(t, env.store.RequireAuthenticated(ctx))
	assert.ErrorIs(t, env.store.RequireGuest(ctx), common.ErrAlreadyAuthenticated)
}

func TestSigningKeySharedThroughDurableScope(t *testing.T) {
	ctx := context.Background()
	durable := storage.NewMemoryScope()
	opts := []Option{WithHasher(testHasher(t))}

	tab1 := NewStore(durable, storage.NewMemoryScope(), opts...)
	tab2 := NewStore(durable, storage.NewMemoryScope(), opts...)

	mustRegister(t, tab1, "Anita", "anita@example.com", "secret")
	_, err := tab1.Authenticate(ctx, "anita@example.com", "secret", true)
	require.NoError(t, err)

	key, err := durable.Get(ctx, common.SigningKeyKey)
	require.NoError(t, err)
	assert.Len(t, key, 2*signingKeySize)

	cur, err := tab2.CurrentAccount(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "anita@example.com", cur.Email)

	// tab1 still has its own tab-local session from Register.
	require.NoError(t, tab2.EndSession(ctx))
	ok, err := tab2.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = tab1.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCorruptAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.durable.Set(ctx, common.AccountsKey, []byte("{not json")))

	_, err := env.store.Register(ctx, "Anita", "anita@example.com", "secret")
	assert.ErrorIs(t, err, common.ErrCorruptData)

	_, err = env.store.Authenticate(ctx, "anita@example.com", "secret", false)
	assert.ErrorIs(t, err, common.ErrCorruptData)

	_, err = env.store.Accounts(ctx)
	assert.ErrorIs(t, err, common.ErrCorruptData)
}

type brokenScope struct{}

func (brokenScope) Get(context.Context, string) ([]byte, error) {
	return nil, common.ErrStorageUnavailable
}

func (brokenScope) Set(context.Context, string, []byte) error {
	return common.ErrStorageUnavailable
}

func (brokenScope) Delete(context.Context, string) error {
	return common.ErrStorageUnavailable
}

func (brokenScope) Update(context.Context, string, storage.UpdateFunc) error {
	return common.ErrStorageUnavailable
}

func TestStorageUnavailableIsSurfaced(t *testing.T) {
	ctx := context.Background()
	s := NewStore(brokenScope{}, storage.NewMemoryScope(), WithHasher(testHasher(t)), WithSecret([]byte("k")))

	_, err := s.Register(ctx, "Anita", "anita@example.com", "secret")
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)

	_, err = s.Authenticate(ctx, "anita@example.com", "secret", true)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)

	_, err = s.CurrentSession(ctx)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)

	assert.ErrorIs(t, s.EndSession(ctx), common.ErrStorageUnavailable)
}

// keyFailScope fails every write to the signing key and passes the rest
// through.
type keyFailScope struct {
	*storage.MemoryScope
}

func (s keyFailScope) Update(ctx context.Context, key string, fn storage.UpdateFunc) error {
	if key == common.SigningKeyKey {
		return common.ErrStorageUnavailable
	}
	return s.MemoryScope.Update(ctx, key, fn)
}

func TestRegister_SigningKeyFailureLeavesNoAccount(t *testing.T) {
	ctx := context.Background()
	durable := keyFailScope{MemoryScope: storage.NewMemoryScope()}
	s := NewStore(durable, storage.NewMemoryScope(), WithHasher(testHasher(t)))

	_, err := s.Register(ctx, "Anita", "anita@example.com", "secret")
	require.ErrorIs(t, err, common.ErrStorageUnavailable)

	accounts, err := s.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	_, err = s.Register(ctx, "Anita", "anita@example.com", "secret")
	assert.NotErrorIs(t, err, common.ErrDuplicateEmail)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
}

func TestRegister_ConcurrentProcessesCannotDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mira.db")

	var stores []*Store
	for i := 0; i < 2; i++ {
		scope, db, err := storage.OpenDurable(ctx, path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		stores = append(stores, NewStore(scope, storage.NewMemoryScope(), WithHasher(testHasher(t)), WithSecret([]byte("k"))))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(stores))
	for i, s := range stores {
		wg.Add(1)
		go func(i int, s *Store) {
			defer wg.Done()
			_, errs[i] = s.Register(ctx, "Anita", "anita@example.com", "secret")
		}(i, s)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, common.ErrDuplicateEmail):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)

	accounts, err := stores[0].Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}
