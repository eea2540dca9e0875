package relayer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BlobTxHash identifies a signed blob transaction submitted to Celestia.
type BlobTxHash [32]byte

func (h BlobTxHash) String() string { return hex.EncodeToString(h[:]) }

func (h BlobTxHash) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h[:]))
}

func (h *BlobTxHash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decoding blob_tx_hash: %w", err)
	}
	if len(decoded) != len(h) {
		return fmt.Errorf("blob_tx_hash must be %d bytes, got %d", len(h), len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// CompletedSubmission records the most recently confirmed submission: the
// Celestia block it landed in, and the highest sequencer height it covered.
type CompletedSubmission struct {
	CelestiaHeight  uint64 `json:"celestia_height"`
	SequencerHeight uint64 `json:"sequencer_height"`
}

// state is the on-disk, flat tagged union; submission.go's exported types
// below hold one of these in memory as a typestate instead, so an invalid
// transition (e.g. preparing from Prepared) does not typecheck.
type state struct {
	State           string               `json:"state"`
	LastSubmission  *CompletedSubmission `json:"last_submission,omitempty"`
	SequencerHeight *uint64              `json:"sequencer_height,omitempty"`
	BlobTxHash      *BlobTxHash          `json:"blob_tx_hash,omitempty"`
	At              *time.Time           `json:"at,omitempty"`
}

func freshState() state { return state{State: "fresh"} }

func startedState(last CompletedSubmission) state {
	return state{State: "started", LastSubmission: &last}
}

func preparedState(seqHeight uint64, last CompletedSubmission, hash BlobTxHash, at time.Time) state {
	return state{
		State:           "prepared",
		SequencerHeight: &seqHeight,
		LastSubmission:  &last,
		BlobTxHash:      &hash,
		At:              &at,
	}
}

// readState parses and validates the submission state at path.
func readState(path string) (state, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return state{}, fmt.Errorf("failed reading submission state file at %q: %w", path, err)
	}
	var s state
	if err := json.Unmarshal(contents, &s); err != nil {
		return state{}, fmt.Errorf("failed parsing the contents of %q: %w", path, err)
	}
	if s.State == "prepared" {
		if s.SequencerHeight == nil || s.LastSubmission == nil {
			return state{}, fmt.Errorf("submission state file %q invalid: prepared state missing required fields", path)
		}
		if *s.SequencerHeight <= s.LastSubmission.SequencerHeight {
			return state{}, fmt.Errorf(
				"submission state file %q invalid: current sequencer height (%d) should be greater than last successful submission sequencer height (%d)",
				path, *s.SequencerHeight, s.LastSubmission.SequencerHeight,
			)
		}
	}
	return s, nil
}

// writeState JSON-encodes s to tempFile, then renames tempFile to destination
// — the write is visible atomically, or not at all.
func writeState(s state, destination, tempFile string) error {
	contents, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed json-encoding submission state: %w", err)
	}
	if err := os.WriteFile(tempFile, contents, 0o644); err != nil {
		return fmt.Errorf("failed writing submission state to %q: %w", tempFile, err)
	}
	if err := os.Rename(tempFile, destination); err != nil {
		return fmt.Errorf("failed moving %q to %q: %w", tempFile, destination, err)
	}
	return nil
}

// tempFilePathFor derives the temp-file path used while writing the
// submission state: the state file's extension with ".tmp" appended if it
// has one, else ".tmp" appended directly to the whole path.
func tempFilePathFor(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + ".tmp"
	}
	return strings.TrimSuffix(path, ext) + ext + ".tmp"
}

// FreshSubmission is the state before the relayer has ever submitted
// anything: no submission state file existed, or it held {"state":"fresh"}.
type FreshSubmission struct {
	stateFilePath string
	tempFilePath  string
}

// IntoStarted converts a FreshSubmission into a StartedSubmission with the
// last submission recorded as celestia/sequencer height 0. The new state is
// not written to disk — a restart reaching Fresh again performs the same
// conversion, so there's nothing to persist.
func (f FreshSubmission) IntoStarted() StartedSubmission {
	return StartedSubmission{
		lastSubmission: CompletedSubmission{},
		stateFilePath:  f.stateFilePath,
		tempFilePath:   f.tempFilePath,
	}
}

// StartedSubmission is the state after a submission round has started:
// about to fetch Celestia app parameters and build a new blob transaction.
type StartedSubmission struct {
	lastSubmission CompletedSubmission
	stateFilePath  string
	tempFilePath   string
}

func newStartedSubmission(last CompletedSubmission, stateFilePath, tempFilePath string) (StartedSubmission, error) {
	s := startedState(last)
	if err := writeState(s, stateFilePath, tempFilePath); err != nil {
		return StartedSubmission{}, fmt.Errorf("failed commiting submission started state to disk: %w", err)
	}
	return StartedSubmission{lastSubmission: last, stateFilePath: stateFilePath, tempFilePath: tempFilePath}, nil
}

// LastSubmissionCelestiaHeight returns the Celestia height of the last
// completed submission.
func (s StartedSubmission) LastSubmissionCelestiaHeight() uint64 { return s.lastSubmission.CelestiaHeight }

// LastSubmissionSequencerHeight returns the sequencer height of the last
// completed submission.
func (s StartedSubmission) LastSubmissionSequencerHeight() uint64 { return s.lastSubmission.SequencerHeight }

// IntoPrepared converts s into a PreparedSubmission over the given sequencer
// height and blob tx hash, and writes the new state to disk. Fails if
// newSequencerHeight does not exceed the last completed submission's height.
func (s StartedSubmission) IntoPrepared(newSequencerHeight uint64, blobTxHash BlobTxHash) (PreparedSubmission, error) {
	return newPreparedSubmission(newSequencerHeight, s.lastSubmission, blobTxHash, s.stateFilePath, s.tempFilePath)
}

// PreparedSubmission is the state after a blob transaction has been built
// and signed and is being broadcast/confirmed against the Celestia app.
type PreparedSubmission struct {
	sequencerHeight uint64
	lastSubmission  CompletedSubmission
	blobTxHash      BlobTxHash
	createdAt       time.Time
	stateFilePath   string
	tempFilePath    string
}

func newPreparedSubmission(sequencerHeight uint64, last CompletedSubmission, blobTxHash BlobTxHash, stateFilePath, tempFilePath string) (PreparedSubmission, error) {
	if sequencerHeight <= last.SequencerHeight {
		return PreparedSubmission{}, fmt.Errorf("cannot submit a sequencer block at height below or equal to what was already successfully submitted")
	}
	createdAt := time.Now()
	s := preparedState(sequencerHeight, last, blobTxHash, createdAt)
	if err := writeState(s, stateFilePath, tempFilePath); err != nil {
		return PreparedSubmission{}, fmt.Errorf("failed commiting submission prepared state to disk: %w", err)
	}
	return PreparedSubmission{
		sequencerHeight: sequencerHeight,
		lastSubmission:  last,
		blobTxHash:      blobTxHash,
		createdAt:       createdAt,
		stateFilePath:   stateFilePath,
		tempFilePath:    tempFilePath,
	}, nil
}

// BlobTxHash returns the hash of the prepared blob transaction.
func (p PreparedSubmission) BlobTxHash() BlobTxHash { return p.blobTxHash }

// ConfirmationTimeout is how long the Celestia app should be polled with
// GetTx to confirm the blob transaction: at least 15 seconds, but no more
// than a minute measured from when the submission was first attempted.
func (p PreparedSubmission) ConfirmationTimeout() time.Duration {
	elapsed := time.Since(p.createdAt)
	remaining := 60*time.Second - elapsed
	if remaining < 15*time.Second {
		return 15 * time.Second
	}
	return remaining
}

// IntoStarted converts p into a StartedSubmission recording the given
// Celestia height and p's sequencer height as the new last submission, and
// writes the new state to disk — the successful-confirmation path.
func (p PreparedSubmission) IntoStarted(celestiaHeight uint64) (StartedSubmission, error) {
	last := CompletedSubmission{CelestiaHeight: celestiaHeight, SequencerHeight: p.sequencerHeight}
	return newStartedSubmission(last, p.stateFilePath, p.tempFilePath)
}

// Revert converts p back into a StartedSubmission retaining p's own last
// submission unchanged, and writes the new state to disk — the
// failed/timed-out confirmation path, so the next round retries the same
// sequencer height.
func (p PreparedSubmission) Revert() (StartedSubmission, error) {
	return newStartedSubmission(p.lastSubmission, p.stateFilePath, p.tempFilePath)
}

// SubmissionStateAtStartup is whichever of the three typestates was parsed
// from the submission state file when the relayer started.
type SubmissionStateAtStartup struct {
	Fresh    *FreshSubmission
	Started  *StartedSubmission
	Prepared *PreparedSubmission
}

// LastCompletedSequencerHeight returns the sequencer height of the last
// completed submission, or false if the state is Fresh.
func (s SubmissionStateAtStartup) LastCompletedSequencerHeight() (uint64, bool) {
	switch {
	case s.Started != nil:
		return s.Started.lastSubmission.SequencerHeight, true
	case s.Prepared != nil:
		return s.Prepared.lastSubmission.SequencerHeight, true
	default:
		return 0, false
	}
}

// NewSubmissionStateFromPath reads and validates the submission state file
// at path, then re-writes it immediately — failing fast if the file is not
// writable (wrong permissions, read-only filesystem) rather than
// discovering that at the first real transition.
func NewSubmissionStateFromPath(path string) (SubmissionStateAtStartup, error) {
	tempFile := tempFilePathFor(path)
	s, err := readState(path)
	if err != nil {
		return SubmissionStateAtStartup{}, err
	}
	if err := writeState(s, path, tempFile); err != nil {
		return SubmissionStateAtStartup{}, fmt.Errorf("failed writing just-read submission state to disk at %q: %w", path, err)
	}

	switch s.State {
	case "fresh":
		return SubmissionStateAtStartup{Fresh: &FreshSubmission{stateFilePath: path, tempFilePath: tempFile}}, nil
	case "started":
		return SubmissionStateAtStartup{Started: &StartedSubmission{
			lastSubmission: *s.LastSubmission,
			stateFilePath:  path,
			tempFilePath:   tempFile,
		}}, nil
	case "prepared":
		return SubmissionStateAtStartup{Prepared: &PreparedSubmission{
			sequencerHeight: *s.SequencerHeight,
			lastSubmission:  *s.LastSubmission,
			blobTxHash:      *s.BlobTxHash,
			createdAt:       *s.At,
			stateFilePath:   path,
			tempFilePath:    tempFile,
		}}, nil
	default:
		return SubmissionStateAtStartup{}, fmt.Errorf("submission state file %q invalid: unknown state %q", path, s.State)
	}
}
