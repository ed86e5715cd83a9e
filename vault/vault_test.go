package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashvikram30/decentralized-canva-sub000/blobnet"
	"github.com/yashvikram30/decentralized-canva-sub000/config"
	"github.com/yashvikram30/decentralized-canva-sub000/policy"
	"github.com/yashvikram30/decentralized-canva-sub000/sealcrypt"
	"github.com/yashvikram30/decentralized-canva-sub000/version"
)

const (
	alice   = policy.Identity("alice@example.com")
	bob     = policy.Identity("bob@example.com")
	mallory = policy.Identity("mallory@example.com")
)

type testEnv struct {
	vault    *Vault
	policies policy.Store
	backend  *blobnet.MemoryBackend
	logHook  *logtest.Hook
}

func newTestVault(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.EncryptionMode = config.ModeMock

	policies := policy.NewMemoryStore()
	backend := blobnet.NewMemoryBackend()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	v, err := New(cfg, policies, sealcrypt.NewMock(policies), blobnet.NewClient(backend, nil, log), version.NewMemoryLedger(), log)
	require.NoError(t, err)

	return &testEnv{vault: v, policies: policies, backend: backend, logHook: hook}
}

func mustSave(t *testing.T, env *testEnv, opts *SaveOptions) *Record {
	t.Helper()
	rec, err := env.vault.Save(context.Background(), alice, "poster",
		json.RawMessage(`{"kind":"canvas","title":"launch poster","objects":[]}`), opts)
	require.NoError(t, err)
	return rec
}

func TestSaveAndLoad(t *testing.T) {
	env := newTestVault(t)
	ctx := context.Background()

	rec := mustSave(t, env, &SaveOptions{Grants: &policy.Grants{Read: []policy.Identity{bob}}})
	assert.True(t, rec.Encrypted)
	assert.Equal(t, uint64(1), rec.CurrentVersion)
	assert.NotEmpty(t, rec.BlobID)

	for _, who := range []policy.Identity{alice, bob} {
		doc, got, err := env.vault.Load(ctx, who, rec.ID)
		require.NoError(t, err, "identity %s", who)
		assert.JSONEq(t, `{"kind":"canvas","title":"launch poster","objects":[]}`, string(doc))
		assert.Equal(t, rec.ID, got.ID)
	}
}

func TestLoadDenied(t *testing.T) {
	env := newTestVault(t)
	rec := mustSave(t, env, nil)

	_, _, err := env.vault.Load(context.Background(), mallory, rec.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestLoadExpiredPolicy(t *testing.T) {
	env := newTestVault(t)
	rec := mustSave(t, env, nil)

	past := time.Now().Add(-time.Hour)
	_, err := env.policies.Update(rec.PolicyID, &policy.Patch{ExpiresAt: &past})
	require.NoError(t, err)

	_, _, err = env.vault.Load(context.Background(), alice, rec.ID)
	assert.ErrorIs(t, err, sealcrypt.ErrPolicyExpired)
}

func TestLoadUnknownDocument(t *testing.T) {
	env := newTestVault(t)
	_, _, err := env.vault.Load(context.Background(), alice, "nope")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestSaveValidation(t *testing.T) {
	env := newTestVault(t)
	ctx := context.Background()

	_, err := env.vault.Save(ctx, alice, "poster", json.RawMessage(`not json`), nil)
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = env.vault.Save(ctx, alice, "poster", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = env.vault.Save(ctx, alice, "", json.RawMessage(`{}`), nil)
	assert.ErrorIs(t, err, ErrNilParam)

	_, err = env.vault.Save(ctx, "", "poster", json.RawMessage(`{}`), nil)
	assert.ErrorIs(t, err, ErrNilParam)
}

func TestSavePlaintext(t *testing.T) {
	env := newTestVault(t)
	ctx := context.Background()

	rec, err := env.vault.Save(ctx, alice, "notes", json.RawMessage(`{"public":true}`), &SaveOptions{Plaintext: true})
	require.NoError(t, err)
	assert.False(t, rec.Encrypted)

	// The stored blob carries the document in the clear.
	raw, err := env.backend.Get(ctx, rec.BlobID)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"public":true`)

	doc, _, err := env.vault.Load(ctx, alice, rec.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"public":true}`, string(doc))
}

func TestSaveEncryptedBlobIsOpaque(t *testing.T) {
	env := newTestVault(t)
	rec := mustSave(t, env, nil)

	raw, err := env.backend.Get(context.Background(), rec.BlobID)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "launch poster")
}

func TestSaveRollsBackOnStorageFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.EncryptionMode = config.ModeMock

	policies := policy.NewMemoryStore()
	backend := &blobnet.MockBackend{
		PutFn: func(ctx context.Context, payload []byte, opts *blobnet.PutOptions) (*blobnet.BlobInfo, error) {
			return nil, blobnet.ErrInvalidPayload
		},
	}
	log, _ := logtest.NewNullLogger()
	v, err := New(cfg, policies, sealcrypt.NewMock(policies), blobnet.NewClient(backend, nil, log), version.NewMemoryLedger(), log)
	require.NoError(t, err)

	_, err = v.Save(context.Background(), alice, "poster", json.RawMessage(`{"x":1}`), nil)
	require.Error(t, err)
	assert.Empty(t, v.List(), "failed save must not leave a partial record")
}

func TestUpdateMergesAndBumpsVersion(t *testing.T) {
	env := newTestVault(t)
	ctx := context.Background()

	rec := mustSave(t, env, &SaveOptions{Grants: &policy.Grants{
		Read:  []policy.Identity{bob},
		Write: []policy.Identity{bob},
	}})
	oldBlob := rec.BlobID

	rec, err := env.vault.Update(ctx, bob, rec.ID, json.RawMessage(`{"title":"v2","background":"blue"}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.CurrentVersion)
	assert.Equal(t, bob, rec.LastModifiedBy)
	assert.NotEqual(t, oldBlob, rec.BlobID)

	doc, _, err := env.vault.Load(ctx, alice, rec.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"canvas","title":"v2","background":"blue","objects":[]}`, string(doc))

	// The previous blob is still retrievable for history.
	_, err = env.backend.Get(ctx, oldBlob)
	assert.NoError(t, err)
}

func TestUpdateDeniedForReader(t *testing.T) {
	env := newTestVault(t)
	rec := mustSave(t, env, &SaveOptions{Grants: &policy.Grants{Read: []policy.Identity{bob}}})

	_, err := env.vault.Update(context.Background(), bob, rec.ID, json.RawMessage(`{"title":"hijack"}`))
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestUpdateRejectsNonObjectPatch(t *testing.T) {
	env := newTestVault(t)
	rec := mustSave(t, env, nil)

	_, err := env.vault.Update(context.Background(), alice, rec.ID, json.RawMessage(`[1,2,3]`))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestVersionMonotonicity(t *testing.T) {
	env := newTestVault(t)
	ctx := context.Background()

	rec := mustSave(t, env, nil)
	const updates = 4
	for i := 0; i < updates; i++ {
		var err error
		rec, err = env.vault.Update(ctx, alice, rec.ID, json.RawMessage(fmt.Sprintf(`{"rev":%d}`, i)))
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(updates+1), rec.CurrentVersion)

	history, err := env.vault.History(rec.ID)
	require.NoError(t, err)
	assert.Len(t, history, updates+1)
}

func TestPublish(t *testing.T) {
	env := newTestVault(t)
	ctx := context.Background()

	rec := mustSave(t, env, &SaveOptions{Grants: &policy.Grants{Read: []policy.Identity{bob}}})

	// Readers cannot declassify.
	_, err := env.vault.Publish(ctx, bob, rec.ID)
	assert.ErrorIs(t, err, ErrInsufficientPermission)
	_, err = env.vault.LoadPublic(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotPublished)

	rec, err = env.vault.Publish(ctx, alice, rec.ID)
	require.NoError(t, err)
	require.NotEmpty(t, rec.PublicBlobID)

	doc, err := env.vault.LoadPublic(ctx, rec.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"canvas","title":"launch poster","objects":[]}`, string(doc))

	// The declassification left an audit entry.
	found := false
	for _, entry := range env.logHook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["docId"] == rec.ID {
			found = true
		}
	}
	assert.True(t, found, "publish must be audit-logged")
}

func TestDelete(t *testing.T) {
	env := newTestVault(t)
	ctx := context.Background()

	rec := mustSave(t, env, &SaveOptions{Grants: &policy.Grants{Read: []policy.Identity{bob}}})

	_, err := env.vault.Delete(ctx, bob, rec.ID)
	assert.ErrorIs(t, err, ErrInsufficientPermission)

	ok, err := env.vault.Delete(ctx, alice, rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = env.vault.Get(rec.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = env.policies.Get(rec.PolicyID)
	assert.ErrorIs(t, err, policy.ErrPolicyNotFound)
}

func TestDeleteConcurrentWithUpdate(t *testing.T) {
	env := newTestVault(t)
	ctx := context.Background()

	rec := mustSave(t, env, nil)

	// Delete and Update race on the same document. Whichever order the lock
	// serializes them in, a deleted document must stay deleted: a losing
	// Update must not write its record back after the catalog drop.
	var (
		wg        sync.WaitGroup
		deleted   bool
		deleteErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = env.vault.Update(ctx, alice, rec.ID, json.RawMessage(`{"title":"late edit"}`))
	}()
	go func() {
		defer wg.Done()
		deleted, deleteErr = env.vault.Delete(ctx, alice, rec.ID)
	}()
	wg.Wait()

	require.NoError(t, deleteErr)
	require.True(t, deleted)

	_, err := env.vault.Get(rec.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = env.policies.Get(rec.PolicyID)
	assert.ErrorIs(t, err, policy.ErrPolicyNotFound)
}

func TestRollback(t *testing.T) {
	env := newTestVault(t)
	ctx := context.Background()

	rec := mustSave(t, env, nil)
	_, err := env.vault.Update(ctx, alice, rec.ID, json.RawMessage(`{"title":"ruined"}`))
	require.NoError(t, err)

	rec, err = env.vault.Rollback(ctx, alice, rec.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rec.CurrentVersion, "rollback is a new version")

	doc, _, err := env.vault.Load(ctx, alice, rec.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"canvas","title":"launch poster","objects":[]}`, string(doc))
}

func TestGrantAndRevoke(t *testing.T) {
	env := newTestVault(t)
	ctx := context.Background()

	rec := mustSave(t, env, nil)

	_, _, err := env.vault.Load(ctx, bob, rec.ID)
	require.ErrorIs(t, err, ErrAccessDenied)

	// Only admins may grant.
	err = env.vault.Grant(ctx, bob, rec.ID, bob, policy.ActionRead)
	assert.ErrorIs(t, err, ErrInsufficientPermission)

	require.NoError(t, env.vault.Grant(ctx, alice, rec.ID, bob, policy.ActionRead))
	_, _, err = env.vault.Load(ctx, bob, rec.ID)
	require.NoError(t, err)

	require.NoError(t, env.vault.Revoke(ctx, alice, rec.ID, bob))
	_, _, err = env.vault.Load(ctx, bob, rec.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)

	// The owner cannot be locked out.
	err = env.vault.Revoke(ctx, alice, rec.ID, alice)
	assert.ErrorIs(t, err, policy.ErrOwnerImmutable)
}

func TestPruneHistoryKeepsNumbering(t *testing.T) {
	env := newTestVault(t)
	ctx := context.Background()

	rec := mustSave(t, env, nil)
	for i := 0; i < 3; i++ {
		var err error
		rec, err = env.vault.Update(ctx, alice, rec.ID, json.RawMessage(fmt.Sprintf(`{"rev":%d}`, i)))
		require.NoError(t, err)
	}

	dropped, err := env.vault.PruneHistory(rec.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, dropped)

	rec, err = env.vault.Update(ctx, alice, rec.ID, json.RawMessage(`{"rev":99}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rec.CurrentVersion, "numbering continues past pruned versions")
}

func TestCompressionRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.EncryptionMode = config.ModeMock
	cfg.CompressThreshold = 16

	policies := policy.NewMemoryStore()
	log, _ := logtest.NewNullLogger()
	v, err := New(cfg, policies, sealcrypt.NewMock(policies), blobnet.NewClient(blobnet.NewMemoryBackend(), nil, log), version.NewMemoryLedger(), log)
	require.NoError(t, err)
	ctx := context.Background()

	doc := json.RawMessage(`{"kind":"canvas","objects":["rect","rect","rect","rect","rect"]}`)
	rec, err := v.Save(ctx, alice, "big", doc, nil)
	require.NoError(t, err)

	got, _, err := v.Load(ctx, alice, rec.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(doc), string(got))
}

func TestCatalogPersistsAcrossRestart(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.EncryptionMode = config.ModeMock

	policies := policy.NewMemoryStore()
	backend := blobnet.NewMemoryBackend()
	versions := version.NewMemoryLedger()
	log, _ := logtest.NewNullLogger()

	v, err := New(cfg, policies, sealcrypt.NewMock(policies), blobnet.NewClient(backend, nil, log), versions, log)
	require.NoError(t, err)
	ctx := context.Background()

	rec, err := v.Save(ctx, alice, "poster", json.RawMessage(`{"x":1}`), nil)
	require.NoError(t, err)

	// A new Vault over the same data directory sees the document.
	v2, err := New(cfg, policies, sealcrypt.NewMock(policies), blobnet.NewClient(backend, nil, log), versions, log)
	require.NoError(t, err)

	doc, got, err := v2.Load(ctx, alice, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.JSONEq(t, `{"x":1}`, string(doc))
}
