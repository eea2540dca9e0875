package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/astriaorg/astria-go/state"
)

func testUpgradeDelta(t *testing.T) *state.StateDelta {
	t.Helper()
	store, err := state.Open(state.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store.NewDelta()
}

func TestMigrateLegacyValidatorSetIsNoopWhenUnset(t *testing.T) {
	delta := testUpgradeDelta(t)
	require.NoError(t, MigrateLegacyValidatorSet(delta))
	value, err := delta.GetVerifiable(migratedValidatorSetKey)
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestMigrateLegacyValidatorSetProducesNamedRecords(t *testing.T) {
	delta := testUpgradeDelta(t)
	legacy, err := json.Marshal(map[string]int64{"aabbcc": 100})
	require.NoError(t, err)
	delta.PutVerifiable(legacyValidatorSetKey, legacy)

	require.NoError(t, MigrateLegacyValidatorSet(delta))

	raw, err := delta.GetVerifiable(migratedValidatorSetKey)
	require.NoError(t, err)
	require.NotNil(t, raw)

	var records map[string]ValidatorRecord
	require.NoError(t, json.Unmarshal(raw, &records))
	require.Equal(t, int64(100), records["aabbcc"].Power)
	require.NotEmpty(t, records["aabbcc"].Name)

	// the legacy key is left untouched for the live action handler
	stillLegacy, err := delta.GetVerifiable(legacyValidatorSetKey)
	require.NoError(t, err)
	require.Equal(t, legacy, stillLegacy)
}

func TestApplyUpgradeIfDueInstallsSeedDataAndChangeHash(t *testing.T) {
	a := &App{cfg: Config{Upgrades: UpgradeTable{
		5: {Name: "test-upgrade", SeedData: map[string][]byte{"seed/key": []byte("value")}},
	}}}
	delta := testUpgradeDelta(t)

	require.NoError(t, a.applyUpgradeIfDue(5, delta))

	value, err := delta.GetVerifiable("seed/key")
	require.NoError(t, err)
	require.Equal(t, []byte("value"), value)

	hash, err := delta.GetNonverifiable(upgradeChangeHashKey)
	require.NoError(t, err)
	require.Len(t, hash, 32)
}

func TestApplyUpgradeIfDueIsNoopAtOtherHeights(t *testing.T) {
	a := &App{cfg: Config{Upgrades: UpgradeTable{
		5: {Name: "test-upgrade", SeedData: map[string][]byte{"seed/key": []byte("value")}},
	}}}
	delta := testUpgradeDelta(t)

	require.NoError(t, a.applyUpgradeIfDue(6, delta))

	value, err := delta.GetVerifiable("seed/key")
	require.NoError(t, err)
	require.Nil(t, value)
}
