package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/infra/security"
	"github.com/bohdanboiprav/photoshare-app/internal/repository"
)

func newTestCodec(t *testing.T) *security.TokenCodec {
	t.Helper()

	codec, err := security.NewTokenCodec(security.TokenCodecConfig{
		Secret:     "session-test-secret",
		Algorithm:  "HS256",
		Issuer:     "photoshare-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		VerifyTTL:  24 * time.Hour,
		ResetTTL:   time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}
	return codec
}

func newTestHasher(t *testing.T) *security.Hasher {
	t.Helper()

	params := security.DefaultArgon2Params()
	params.Memory = 8 * 1024
	params.Iterations = 1

	hasher, err := security.NewHasher(params)
	if err != nil {
		t.Fatalf("NewHasher returned error: %v", err)
	}
	return hasher
}

type stubDirectory struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	findCalls int64
	findDelay time.Duration
}

func newStubDirectory(users ...domain.User) *stubDirectory {
	dir := &stubDirectory{users: make(map[string]*domain.User)}
	for i := range users {
		user := users[i]
		dir.users[user.Email] = &user
	}
	return dir
}

func (d *stubDirectory) Create(_ context.Context, user domain.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[user.Email]; ok {
		return errors.New("duplicate email")
	}
	d.users[user.Email] = &user
	return nil
}

func (d *stubDirectory) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	atomic.AddInt64(&d.findCalls, 1)
	if d.findDelay > 0 {
		time.Sleep(d.findDelay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if user, ok := d.users[email]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (d *stubDirectory) FindByID(_ context.Context, id string) (*domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (d *stubDirectory) SetRefreshToken(_ context.Context, email, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[email]
	if !ok {
		return repository.ErrNotFound
	}
	user.RefreshToken = token
	return nil
}

func (d *stubDirectory) RotateRefreshToken(_ context.Context, email, previous, next string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[email]
	if !ok {
		return false, nil
	}
	if user.RefreshToken != previous {
		return false, nil
	}
	user.RefreshToken = next
	return true, nil
}

func (d *stubDirectory) SetBanned(_ context.Context, email string, banned bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[email]
	if !ok {
		return repository.ErrNotFound
	}
	user.Banned = banned
	return nil
}

func (d *stubDirectory) SetConfirmed(_ context.Context, email string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[email]
	if !ok {
		return repository.ErrNotFound
	}
	user.Confirmed = true
	return nil
}

func (d *stubDirectory) SetPasswordHash(_ context.Context, email string, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[email]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = hash
	return nil
}

func (d *stubDirectory) stored(t *testing.T, email string) domain.User {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[email]
	if !ok {
		t.Fatalf("user %s not found in stub directory", email)
	}
	return *user
}

type stubBlacklist struct {
	mu       sync.Mutex
	entries  map[string]string
	checkErr error
	addErr   error
}

func newStubBlacklist() *stubBlacklist {
	return &stubBlacklist{entries: make(map[string]string)}
}

func (b *stubBlacklist) blacklistKey(subject string, scope domain.TokenScope) string {
	return string(scope) + ":" + subject
}

func (b *stubBlacklist) Add(_ context.Context, subject string, scope domain.TokenScope, token string, _ time.Duration) error {
	if b.addErr != nil {
		return b.addErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.blacklistKey(subject, scope)] = token
	return nil
}

func (b *stubBlacklist) Revoked(_ context.Context, subject string, scope domain.TokenScope, token string) (bool, error) {
	if b.checkErr != nil {
		return false, b.checkErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	stored, ok := b.entries[b.blacklistKey(subject, scope)]
	return ok && stored == token, nil
}

func (b *stubBlacklist) Remove(_ context.Context, subject string, scope domain.TokenScope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, b.blacklistKey(subject, scope))
	return nil
}

type stubCache struct {
	mu      sync.Mutex
	entries map[string]domain.Principal
	getErr  error
	setErr  error
	delErr  error
	deletes []string
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string]domain.Principal)}
}

func (c *stubCache) Get(_ context.Context, subject string) (*domain.Principal, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if principal, ok := c.entries[subject]; ok {
		copied := principal
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (c *stubCache) Set(_ context.Context, subject string, principal domain.Principal, _ time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[subject] = principal
	return nil
}

func (c *stubCache) Delete(_ context.Context, subject string) error {
	if c.delErr != nil {
		return c.delErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, subject)
	c.deletes = append(c.deletes, subject)
	return nil
}

type stubEvents struct {
	mu            sync.Mutex
	logouts       []domain.UserLoggedOutEvent
	banEvents     []domain.UserBanStateChangedEvent
	regEvents     []domain.UserRegisteredEvent
	confirmEvents []domain.EmailConfirmationRequestedEvent
	resetEvents   []domain.PasswordResetRequestedEvent
	pwChanged     []domain.PasswordChangedEvent
}

func (e *stubEvents) PublishEmailConfirmationRequested(_ context.Context, event domain.EmailConfirmationRequestedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmEvents = append(e.confirmEvents, event)
	return nil
}

func (e *stubEvents) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetEvents = append(e.resetEvents, event)
	return nil
}

func (e *stubEvents) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pwChanged = append(e.pwChanged, event)
	return nil
}

func (e *stubEvents) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.regEvents = append(e.regEvents, event)
	return nil
}

func (e *stubEvents) PublishUserLoggedOut(_ context.Context, event domain.UserLoggedOutEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logouts = append(e.logouts, event)
	return nil
}

func (e *stubEvents) PublishBanStateChanged(_ context.Context, event domain.UserBanStateChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.banEvents = append(e.banEvents, event)
	return nil
}

type sessionFixture struct {
	service   *SessionService
	directory *stubDirectory
	blacklist *stubBlacklist
	cache     *stubCache
	events    *stubEvents
	codec     *security.TokenCodec
	hasher    *security.Hasher
}

func newSessionFixture(t *testing.T, mode domain.CacheDegradationMode, users ...domain.User) *sessionFixture {
	t.Helper()

	directory := newStubDirectory(users...)
	blacklist := newStubBlacklist()
	cache := newStubCache()
	events := &stubEvents{}
	codec := newTestCodec(t)
	hasher := newTestHasher(t)

	service, err := NewSessionService(
		directory,
		blacklist,
		cache,
		events,
		codec,
		hasher,
		domain.NewCacheDegradationPolicy(mode),
		5*time.Minute,
	)
	if err != nil {
		t.Fatalf("NewSessionService returned error: %v", err)
	}

	return &sessionFixture{
		service:   service,
		directory: directory,
		blacklist: blacklist,
		cache:     cache,
		events:    events,
		codec:     codec,
		hasher:    hasher,
	}
}

func (f *sessionFixture) user(t *testing.T, email, password string, confirmed, banned bool) domain.User {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	return domain.User{
		ID:           "id-" + email,
		Nickname:     "nick",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Confirmed:    confirmed,
		Banned:       banned,
	}
}

func TestLoginIssuesPairAndStoresRefreshToken(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens to be issued")
	}

	stored := fixture.directory.stored(t, "user@example.com")
	if stored.RefreshToken != pair.RefreshToken {
		t.Fatalf("expected refresh token persisted on the user row")
	}

	if _, err := fixture.codec.Decode(pair.AccessToken, domain.ScopeAccess); err != nil {
		t.Fatalf("issued access token does not decode: %v", err)
	}
	if _, err := fixture.codec.Decode(pair.RefreshToken, domain.ScopeRefresh); err != nil {
		t.Fatalf("issued refresh token does not decode: %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	_, unknownErr := fixture.service.Login(context.Background(), "ghost@example.com", "whatever-pass")
	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", unknownErr)
	}

	_, wrongErr := fixture.service.Login(context.Background(), "user@example.com", "wrong-password")
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", wrongErr)
	}

	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("unknown-email and wrong-password errors must match: %q vs %q", unknownErr, wrongErr)
	}
}

func TestLoginRequiresConfirmedEmail(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", false, false)
	fixture.directory.users[user.Email] = &user

	// The confirmation check fires even before password verification.
	if _, err := fixture.service.Login(context.Background(), "user@example.com", "wrong-password"); !errors.Is(err, ErrEmailNotConfirmed) {
		t.Fatalf("expected ErrEmailNotConfirmed, got %v", err)
	}
}

func TestLoginRejectsBannedAccount(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, true)
	fixture.directory.users[user.Email] = &user

	if _, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!"); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
}

func TestRefreshRotatesStoredToken(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	next, err := fixture.service.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("expected a fresh refresh token after rotation")
	}

	stored := fixture.directory.stored(t, "user@example.com")
	if stored.RefreshToken != next.RefreshToken {
		t.Fatalf("expected rotated token persisted, got %q", stored.RefreshToken)
	}
}

func TestRefreshReuseClearsStoredToken(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if _, err := fixture.service.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("first Refresh returned error: %v", err)
	}

	// Replaying the rotated-away token is treated as reuse.
	if _, err := fixture.service.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on reuse, got %v", err)
	}

	stored := fixture.directory.stored(t, "user@example.com")
	if stored.RefreshToken != "" {
		t.Fatalf("expected stored refresh token cleared after reuse, got %q", stored.RefreshToken)
	}

	// Even the winner of the rotation is locked out now.
	if _, err := fixture.service.Refresh(context.Background(), stored.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after forced re-login, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if _, err := fixture.service.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for access token on refresh path, got %v", err)
	}
}

func TestRefreshFailsClosedWhenBlacklistUnavailable(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	fixture.blacklist.checkErr = errors.New("redis down")

	if _, err := fixture.service.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestAuthenticateResolvesAndCachesPrincipal(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	principal, err := fixture.service.Authenticate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if principal.Email != "user@example.com" || principal.UserID != user.ID {
		t.Fatalf("unexpected principal %+v", principal)
	}
	if principal.SchemaVersion != domain.PrincipalSchemaVersion {
		t.Fatalf("expected schema version %d, got %d", domain.PrincipalSchemaVersion, principal.SchemaVersion)
	}

	if _, ok := fixture.cache.entries["user@example.com"]; !ok {
		t.Fatalf("expected principal cached after directory lookup")
	}

	// A second call is served from the cache.
	before := atomic.LoadInt64(&fixture.directory.findCalls)
	if _, err := fixture.service.Authenticate(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("second Authenticate returned error: %v", err)
	}
	if after := atomic.LoadInt64(&fixture.directory.findCalls); after != before {
		t.Fatalf("expected cache hit to skip the directory, calls %d -> %d", before, after)
	}
}

func TestAuthenticateFailsClosedWhenBlacklistUnavailable(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	fixture.blacklist.checkErr = errors.New("redis down")

	if _, err := fixture.service.Authenticate(context.Background(), pair.AccessToken); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestAuthenticateFailsOpenWhenCacheReadFails(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	fixture.cache.getErr = errors.New("redis timeout")
	fixture.cache.setErr = errors.New("redis timeout")

	principal, err := fixture.service.Authenticate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("expected directory fallback, got %v", err)
	}
	if principal.Email != "user@example.com" {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestAuthenticateStrictPolicyRejectsOnCacheWriteFailure(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeStrict)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	fixture.cache.setErr = errors.New("redis down")

	if _, err := fixture.service.Authenticate(context.Background(), pair.AccessToken); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable under strict policy, got %v", err)
	}
}

func TestAuthenticateBannedUserNeverCached(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := fixture.directory.SetBanned(context.Background(), "user@example.com", true); err != nil {
		t.Fatalf("SetBanned returned error: %v", err)
	}

	if _, err := fixture.service.Authenticate(context.Background(), pair.AccessToken); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}

	if _, ok := fixture.cache.entries["user@example.com"]; ok {
		t.Fatalf("banned principal must not enter the cache")
	}
}

func TestAuthenticateDeletedUser(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	fixture.directory.mu.Lock()
	delete(fixture.directory.users, "user@example.com")
	fixture.directory.mu.Unlock()

	if _, err := fixture.service.Authenticate(context.Background(), pair.AccessToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthenticateCollapsesConcurrentLookups(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	// Force every call onto the directory path and slow the lookup down so
	// all goroutines arrive while the first flight is still in progress.
	fixture.cache.getErr = errors.New("cache offline")
	fixture.cache.setErr = errors.New("cache offline")
	fixture.directory.findDelay = 100 * time.Millisecond
	atomic.StoreInt64(&fixture.directory.findCalls, 0)

	const concurrency = 16

	start := make(chan struct{})
	var wg sync.WaitGroup
	errCh := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := fixture.service.Authenticate(context.Background(), pair.AccessToken); err != nil {
				errCh <- err
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("concurrent Authenticate returned error: %v", err)
	}

	if calls := atomic.LoadInt64(&fixture.directory.findCalls); calls > 3 {
		t.Fatalf("expected concurrent lookups to collapse, directory saw %d calls", calls)
	}
}

func TestLogoutBlacklistsBothTokensAndEvictsCache(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if _, err := fixture.service.Authenticate(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	if err := fixture.service.Logout(context.Background(), pair.AccessToken, pair.RefreshToken); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	if _, err := fixture.service.Authenticate(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected blacklisted access token to be rejected, got %v", err)
	}
	if _, err := fixture.service.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected blacklisted refresh token to be rejected, got %v", err)
	}

	if _, ok := fixture.cache.entries["user@example.com"]; ok {
		t.Fatalf("expected cached principal evicted on logout")
	}

	if len(fixture.events.logouts) != 1 {
		t.Fatalf("expected one logout event, got %d", len(fixture.events.logouts))
	}
	if fixture.events.logouts[0].Subject != "user@example.com" {
		t.Fatalf("logout event must name the account by subject, got %q", fixture.events.logouts[0].Subject)
	}
}

func TestLogoutFailsClosedWhenBlacklistWriteFails(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	fixture.blacklist.addErr = errors.New("redis down")

	if err := fixture.service.Logout(context.Background(), pair.AccessToken, pair.RefreshToken); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestBanEvictsCacheAndClearsRefreshToken(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	pair, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if _, err := fixture.service.Authenticate(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	if err := fixture.service.Ban(context.Background(), "user@example.com", "admin@example.com"); err != nil {
		t.Fatalf("Ban returned error: %v", err)
	}

	stored := fixture.directory.stored(t, "user@example.com")
	if !stored.Banned {
		t.Fatalf("expected ban flag set")
	}
	if stored.RefreshToken != "" {
		t.Fatalf("expected stored refresh token cleared on ban")
	}
	if _, ok := fixture.cache.entries["user@example.com"]; ok {
		t.Fatalf("expected cached principal evicted on ban")
	}

	// The still-unexpired access token resolves to a ban error, not a principal.
	if _, err := fixture.service.Authenticate(context.Background(), pair.AccessToken); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned after ban, got %v", err)
	}

	if len(fixture.events.banEvents) != 1 || !fixture.events.banEvents[0].Banned {
		t.Fatalf("expected one ban event, got %+v", fixture.events.banEvents)
	}
}

func TestBanFailsClosedWhenEvictionFails(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, false)
	fixture.directory.users[user.Email] = &user

	fixture.cache.delErr = errors.New("redis down")

	if err := fixture.service.Ban(context.Background(), "user@example.com", "admin@example.com"); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable when eviction fails, got %v", err)
	}
}

func TestUnbanRestoresLogin(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)
	user := fixture.user(t, "user@example.com", "correct-horse-1!", true, true)
	fixture.directory.users[user.Email] = &user

	if err := fixture.service.Unban(context.Background(), "user@example.com", "admin@example.com"); err != nil {
		t.Fatalf("Unban returned error: %v", err)
	}

	if _, err := fixture.service.Login(context.Background(), "user@example.com", "correct-horse-1!"); err != nil {
		t.Fatalf("expected login to succeed after unban, got %v", err)
	}

	if len(fixture.events.banEvents) != 1 || fixture.events.banEvents[0].Banned {
		t.Fatalf("expected one unban event, got %+v", fixture.events.banEvents)
	}
}

func TestBanUnknownUser(t *testing.T) {
	fixture := newSessionFixture(t, domain.CacheDegradationModeLenient)

	if err := fixture.service.Ban(context.Background(), "ghost@example.com", "admin@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
