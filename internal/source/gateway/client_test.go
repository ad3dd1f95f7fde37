package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/felt"
	"github.com/microbecode/madara/internal/source"
)

type nopMetrics struct{}

func (nopMetrics) Observe(string, error, time.Time) {}

const stateUpdateWithBlockBody = `{
	"block": {
		"block_hash": "0x2",
		"block_number": 1,
		"parent_block_hash": "0x1",
		"state_root": "0xabc",
		"sequencer_address": "0x5",
		"timestamp": 1700000000,
		"starknet_version": "0.13.1"
	},
	"state_update": {
		"block_hash": "0x2",
		"new_root": "0xabc",
		"old_root": "0xdef",
		"state_diff": {
			"storage_diffs": {
				"0xa": [{"key": "0x1", "value": "0x2a"}]
			},
			"nonces": {"0xa": "0x3"},
			"deployed_contracts": [{"address": "0x500", "class_hash": "0xc1"}],
			"replaced_classes": [],
			"declared_classes": [{"class_hash": "0xc1", "compiled_class_hash": "0xcc1"}],
			"old_declared_contracts": ["0xdead"]
		}
	}
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:           server.URL,
		RequestsPerSecond: 1000,
		Retries:           2,
	}, nopMetrics{}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestStateUpdateWithBlock(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_state_update", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("blockNumber"))
		assert.Equal(t, "true", r.URL.Query().Get("includeBlock"))
		_, _ = w.Write([]byte(stateUpdateWithBlockBody))
	}))

	update, err := client.StateUpdateWithBlock(context.Background(), 1)
	require.NoError(t, err)

	block, err := update.ToCore()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), block.Header.Number)

	wantRoot := felt.MustFromHex("0xabc")
	assert.True(t, wantRoot.Equal(&block.Header.GlobalStateRoot))

	contract := felt.MustFromHex("0xa")
	require.Len(t, block.Diff.StorageDiffs[contract], 1)
	wantValue := felt.FromUint64(42)
	assert.True(t, wantValue.Equal(&block.Diff.StorageDiffs[contract][0].Value))

	deployed := felt.MustFromHex("0x500")
	classHash := felt.MustFromHex("0xc1")
	gotClass := block.Diff.DeployedContracts[deployed]
	assert.True(t, classHash.Equal(&gotClass))

	compiled := block.Diff.DeclaredClasses[classHash]
	wantCompiled := felt.MustFromHex("0xcc1")
	assert.True(t, wantCompiled.Equal(&compiled))
}

func TestBlockNotFoundIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code": "StarknetErrorCode.BLOCK_NOT_FOUND", "message": "Block number 999 was not found."}`))
	}))

	_, err := client.StateUpdateWithBlock(context.Background(), 999)
	assert.ErrorIs(t, err, source.ErrBlockNotYetAvailable)
	assert.Equal(t, int64(1), calls.Load())
}

func TestTransientErrorIsRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(stateUpdateWithBlockBody))
	}))

	_, err := client.StateUpdateWithBlock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestHead(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_block", r.URL.Path)
		assert.Equal(t, "latest", r.URL.Query().Get("blockNumber"))
		_, _ = w.Write([]byte(`{"block_hash": "0x9", "block_number": 1234}`))
	}))

	head, err := client.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), head)
}

func TestSourceRejectsHeightMismatch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(stateUpdateWithBlockBody))
	}))
	src := NewSource(client, zap.NewNop())

	_, err := src.BlockByHeight(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 1")
}

func TestToCoreRejectsMismatchedBlockHash(t *testing.T) {
	t.Parallel()

	update := &StateUpdateWithBlock{
		Block:       Block{BlockHash: felt.FromUint64(1)},
		StateUpdate: StateUpdate{BlockHash: felt.FromUint64(2)},
	}
	_, err := update.ToCore()
	require.Error(t, err)
}

func TestToCoreRejectsDuplicateDeployments(t *testing.T) {
	t.Parallel()

	update := &StateUpdateWithBlock{
		Block: Block{BlockHash: felt.FromUint64(1)},
		StateUpdate: StateUpdate{
			BlockHash: felt.FromUint64(1),
			StateDiff: StateDiff{
				DeployedContracts: []DeployedContract{
					{Address: felt.FromUint64(5), ClassHash: felt.FromUint64(1)},
					{Address: felt.FromUint64(5), ClassHash: felt.FromUint64(2)},
				},
			},
		},
	}
	_, err := update.ToCore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployed twice")
}
