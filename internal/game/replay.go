package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrReplaysDisabled is returned when no replay directory is configured.
var ErrReplaysDisabled = errors.New("replays are disabled")

// Replay is the ordered list of room snapshots taken after each accepted
// operation of one game.
type Replay struct {
	// ID is set when the game finishes, see ReplayID.
	ID     string
	RoomID int
	States []RoomSnapshot
	mu     sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(roomID int) *Replay {
	return &Replay{RoomID: roomID}
}

// RecordState appends a snapshot.
func (r *Replay) RecordState(snapshot RoomSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, snapshot)
}

// Size returns the number of recorded states.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.States)
}

// StateAt returns the state at index.
func (r *Replay) StateAt(index int) (RoomSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index >= 0 && index < len(r.States) {
		return r.States[index], true
	}
	return RoomSnapshot{}, false
}

type replayMetadata struct {
	ID         string
	RoomID     int
	Timestamp  time.Time
	Version    int
	StateCount int
	Checksum   string
}

const replayVersion = 2

func replayFile(directory, id string) string {
	return filepath.Join(directory, "replay-"+id+".replay")
}

// SaveToFile writes the replay as gzipped gob under its ID. The file is
// written to a temporary name first and only renamed into place once it has
// been flushed, so a failed save never leaves a truncated replay behind.
func (r *Replay) SaveToFile(directory string) (filename string, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, _, err := ParseReplayID(r.ID); err != nil {
		return "", err
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf("create replay directory: %w", err)
	}
	file, err := os.CreateTemp(directory, "replay-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create replay file: %w", err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(file.Name())
		}
	}()

	gz := gzip.NewWriter(file)
	encoder := gob.NewEncoder(gz)

	meta := replayMetadata{
		ID:         r.ID,
		RoomID:     r.RoomID,
		Timestamp:  time.Now(),
		Version:    replayVersion,
		StateCount: len(r.States),
	}
	if n := len(r.States); n > 0 {
		meta.Checksum = r.States[n-1].Checksum()
	}
	if err := encoder.Encode(&meta); err != nil {
		return "", fmt.Errorf("encode replay metadata: %w", err)
	}
	for i := range r.States {
		if err := encoder.Encode(&r.States[i]); err != nil {
			return "", fmt.Errorf("encode state %d: %w", i, err)
		}
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("flush replay: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close replay file: %w", err)
	}

	filename = replayFile(directory, r.ID)
	if err := os.Rename(file.Name(), filename); err != nil {
		return "", fmt.Errorf("store replay file: %w", err)
	}
	return filename, nil
}

// LoadReplayFromFile reads a replay written by SaveToFile and verifies the
// final state checksum.
func LoadReplayFromFile(directory, id string) (*Replay, error) {
	if _, _, err := ParseReplayID(id); err != nil {
		return nil, err
	}
	file, err := os.Open(replayFile(directory, id))
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("open replay gzip stream: %w", err)
	}
	defer gz.Close()
	decoder := gob.NewDecoder(gz)

	var meta replayMetadata
	if err := decoder.Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode replay metadata: %w", err)
	}
	if meta.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", meta.Version)
	}
	if meta.ID != id {
		return nil, fmt.Errorf("replay file holds %q, want %q", meta.ID, id)
	}

	replay := NewReplay(meta.RoomID)
	replay.ID = meta.ID
	for i := 0; i < meta.StateCount; i++ {
		var state RoomSnapshot
		if err := decoder.Decode(&state); err != nil {
			return nil, fmt.Errorf("decode state %d: %w", i, err)
		}
		replay.States = append(replay.States, state)
	}
	if n := len(replay.States); n > 0 && replay.States[n-1].Checksum() != meta.Checksum {
		return nil, fmt.Errorf("replay %s failed checksum verification", id)
	}
	return replay, nil
}

// ReplayRecorder tracks the replays of running games and writes them to
// disk when a game finishes. A replay belongs to the actor that started it;
// finished or abandoned replays leave the recorder.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.Mutex
	active  map[int]*Replay
	saveDir string
}

// NewReplayRecorder creates a recorder. An empty saveDir records nothing
// to disk and drops replays when their game ends.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		active:  make(map[int]*Replay),
		saveDir: saveDir,
	}
}

// StartRecording begins a replay for a room. A previous replay registered
// for the same room id is no longer tracked.
func (rr *ReplayRecorder) StartRecording(roomID int) *Replay {
	replay := NewReplay(roomID)
	rr.mu.Lock()
	rr.active[roomID] = replay
	rr.mu.Unlock()
	rr.logger.Debug("started replay recording", zap.Int("room_id", roomID))
	return replay
}

// detach reports whether replay was still the tracked replay of its room.
func (rr *ReplayRecorder) detach(replay *Replay) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if rr.active[replay.RoomID] != replay {
		return false
	}
	delete(rr.active, replay.RoomID)
	return true
}

// StopRecording ends a finished game's replay and saves it under replayID
// if a directory is set.
func (rr *ReplayRecorder) StopRecording(replay *Replay, replayID string) {
	rr.detach(replay)
	if rr.saveDir == "" {
		return
	}

	replay.mu.Lock()
	replay.ID = replayID
	replay.mu.Unlock()

	filename, err := replay.SaveToFile(rr.saveDir)
	if err != nil {
		rr.logger.Warn("failed to save replay",
			zap.Int("room_id", replay.RoomID),
			zap.String("replay_id", replayID),
			zap.Error(err),
		)
		return
	}
	rr.logger.Info("saved replay to disk",
		zap.Int("room_id", replay.RoomID),
		zap.String("replay_id", replayID),
		zap.Int("state_count", replay.Size()),
		zap.String("file", filename),
	)
}

// ClearReplay drops an unfinished replay without saving it.
func (rr *ReplayRecorder) ClearReplay(replay *Replay) {
	if rr.detach(replay) {
		rr.logger.Debug("dropped replay", zap.Int("room_id", replay.RoomID))
	}
}

// Recording returns the number of games being recorded.
func (rr *ReplayRecorder) Recording() int {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return len(rr.active)
}

// Load reads a saved replay by id.
func (rr *ReplayRecorder) Load(replayID string) (*Replay, error) {
	if rr.saveDir == "" {
		return nil, ErrReplaysDisabled
	}
	return LoadReplayFromFile(rr.saveDir, replayID)
}
