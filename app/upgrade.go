package app

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/astriaorg/astria-go/state"
)

const (
	legacyValidatorSetKey   = "validators/set"
	migratedValidatorSetKey = "validators/set_v2"
	upgradeChangeHashKey    = "upgrade/last_change_hash"
)

// ValidatorRecord is the post-upgrade per-validator schema: the legacy
// layout was a bare pubkey -> power map, migrated here into records each
// carrying a human-readable name alongside their power.
type ValidatorRecord struct {
	Power int64  `json:"power"`
	Name  string `json:"name"`
}

// UpgradeSet describes everything that happens at the first block of a
// configured upgrade height: a state migration, seed data installed as if
// by genesis, and a change hash recorded in the nonverifiable partition
// for auditability. The change hash is not added to the block's data.
type UpgradeSet struct {
	Name string
	// Migrate rewrites any pre-upgrade state layout into its post-upgrade
	// schema. Nil if this upgrade introduces no layout change.
	Migrate func(delta *state.StateDelta) error
	// SeedData installs genesis-like data (e.g. a price-feed market map)
	// at the upgrade height, keyed by verifiable storage key.
	SeedData map[string][]byte
}

// UpgradeTable maps the height at which an upgrade activates to its
// UpgradeSet.
type UpgradeTable map[int64]UpgradeSet

// applyUpgradeIfDue runs the upgrade configured for height, if any,
// against delta: migrating legacy layouts, installing seed data, and
// recording a change hash under upgradeChangeHashKey in the nonverifiable
// partition.
func (a *App) applyUpgradeIfDue(height int64, delta *state.StateDelta) error {
	upgrade, ok := a.cfg.Upgrades[height]
	if !ok {
		return nil
	}

	if upgrade.Migrate != nil {
		if err := upgrade.Migrate(delta); err != nil {
			return fmt.Errorf("migrating state for upgrade %q: %w", upgrade.Name, err)
		}
	}
	for key, value := range upgrade.SeedData {
		delta.PutVerifiable(key, value)
	}

	changeHash := computeUpgradeChangeHash(upgrade)
	delta.PutNonverifiable(upgradeChangeHashKey, changeHash[:])
	upgradeAppliedCount.Inc(1)
	return nil
}

// computeUpgradeChangeHash hashes the upgrade's name and its seed data
// (each key and value, in ascending key order) so the applied change can
// be audited without re-running the migration.
func computeUpgradeChangeHash(upgrade UpgradeSet) [32]byte {
	h := sha256.New()
	h.Write([]byte(upgrade.Name))
	keys := make([]string, 0, len(upgrade.SeedData))
	for key := range upgrade.SeedData {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		h.Write([]byte(key))
		h.Write(upgrade.SeedData[key])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// MigrateLegacyValidatorSet converts the pre-upgrade validator_set blob
// (a bare pubkey -> power map, written by actions.ValidatorUpdateAction)
// into the post-upgrade per-validator record schema with a name field,
// written alongside the legacy key rather than replacing it so in-flight
// validator-update actions keep working against the operational layout.
// This is the concrete migration named by spec.md §4.7's example; chains
// not carrying that legacy layout configure a nil Migrate instead.
func MigrateLegacyValidatorSet(delta *state.StateDelta) error {
	raw, err := delta.GetVerifiable(legacyValidatorSetKey)
	if err != nil {
		return fmt.Errorf("reading legacy validator set: %w", err)
	}
	if raw == nil {
		return nil
	}

	var legacy map[string]int64
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return fmt.Errorf("decoding legacy validator set: %w", err)
	}

	records := make(map[string]ValidatorRecord, len(legacy))
	for pubKeyHex, power := range legacy {
		records[pubKeyHex] = ValidatorRecord{Power: power, Name: fmt.Sprintf("validator-%s", pubKeyHex[:min(8, len(pubKeyHex))])}
	}

	encoded, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding migrated validator set: %w", err)
	}
	delta.PutVerifiable(migratedValidatorSetKey, encoded)
	return nil
}
