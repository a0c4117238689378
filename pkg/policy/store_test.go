package policy

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/arbiterai/arbiter-oss/pkg/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const policyV1 = `
policy_version: "v1"
roles:
  intern:
    allow: [ask_public_policy]
`

const policyV2 = `
policy_version: "v2"
roles:
  intern:
    allow: [ask_public_policy, write_code]
`

func TestStoreDecideWithoutPolicy(t *testing.T) {
	store := NewStore(nil)

	_, err := store.Decide("intern", domain.IntentWriteCode, nil)
	require.ErrorIs(t, err, domain.ErrPolicyNotLoaded)
	assert.Equal(t, "", store.Version())
}

func TestStoreReplaceIsVisibleToReaders(t *testing.T) {
	v1, err := Parse([]byte(policyV1))
	require.NoError(t, err)
	v2, err := Parse([]byte(policyV2))
	require.NoError(t, err)

	store := NewStore(v1)

	d, err := store.Decide("intern", domain.IntentWriteCode, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Deny(domain.ReasonNotInAllow), d)

	store.Replace(v2)

	d, err = store.Decide("intern", domain.IntentWriteCode, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Allow(), d)
	assert.Equal(t, "v2", store.Version())
}

func TestStoreConcurrentReadersDuringReplace(t *testing.T) {
	v1, err := Parse([]byte(policyV1))
	require.NoError(t, err)
	v2, err := Parse([]byte(policyV2))
	require.NoError(t, err)

	store := NewStore(v1)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// A reader must always see a complete policy: the decision
				// for ask_public_policy is allow in both versions.
				d, err := store.Decide("intern", domain.IntentAskPublicPolicy, nil)
				if err != nil || !d.Allowed {
					t.Errorf("reader observed inconsistent policy: %+v %v", d, err)
					return
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		if i%2 == 0 {
			store.Replace(v2)
		} else {
			store.Replace(v1)
		}
	}
	close(stop)
	wg.Wait()
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyV1), 0o644))

	snap, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.Version())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyV1), 0o644))

	snap, err := LoadFile(path)
	require.NoError(t, err)
	store := NewStore(snap)

	w, err := NewWatcher(path, store, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(policyV2), 0o644))

	require.Eventually(t, func() bool {
		return store.Version() == "v2"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcherKeepsSnapshotOnBrokenReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyV1), 0o644))

	snap, err := LoadFile(path)
	require.NoError(t, err)
	store := NewStore(snap)

	w, err := NewWatcher(path, store, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("roles: []\n"), 0o644))

	// The broken document must not displace the active snapshot.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, "v1", store.Version())
}
