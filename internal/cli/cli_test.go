package cli

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/loom/internal/sqlite"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

// testEnv is an isolated config and data directory pair.
type testEnv struct {
	t       *testing.T
	config  string
	dataDir string
}

func newTestEnv(t *testing.T, extraConfig string) *testEnv {
	t.Helper()
	tempDir := t.TempDir()
	env := &testEnv{
		t:       t,
		config:  filepath.Join(tempDir, "config"),
		dataDir: filepath.Join(tempDir, "data"),
	}
	require.NoError(t, os.MkdirAll(env.config, 0o755))
	content := "backend: sqlite\nlog_level: error\n" + extraConfig
	require.NoError(t, os.WriteFile(filepath.Join(env.config, "config.yaml"), []byte(content), 0o644))
	return env
}

type cmdResult struct {
	stdout   string
	stderr   string
	exitCode int
}

func (e *testEnv) run(args ...string) cmdResult {
	e.t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	all := append([]string{"--config-dir", e.config, "--data-dir", e.dataDir}, args...)
	code := run(root, all, &stderr)
	return cmdResult{stdout: stdout.String(), stderr: stderr.String(), exitCode: code}
}

func (e *testEnv) mustRun(args ...string) cmdResult {
	e.t.Helper()
	res := e.run(args...)
	if res.exitCode != 0 {
		e.t.Fatalf("loom %v failed with exit code %d:\nstdout: %s\nstderr: %s",
			args, res.exitCode, res.stdout, res.stderr)
	}
	return res
}

func parseJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), "output: %s", s)
	return v
}

// ownerOf reads the owner of a character decoded from JSON. Addresses are
// encoded in lowercase hex.
func ownerOf(t *testing.T, c map[string]any) common.Address {
	t.Helper()
	raw, ok := c["owner"].(string)
	require.True(t, ok, "owner missing: %v", c)
	require.True(t, common.IsHexAddress(raw), "owner %q", raw)
	return common.HexToAddress(raw)
}

func TestCLI_Version(t *testing.T) {
	env := newTestEnv(t, "")
	res := env.mustRun("version")
	assert.Contains(t, res.stdout, "loom "+Version)
	assert.Contains(t, res.stdout, modulePath)
}

func TestCLI_Init(t *testing.T) {
	env := newTestEnv(t, "")
	res := env.mustRun("init")
	assert.Contains(t, res.stdout, "Loom initialized")
	assert.FileExists(t, filepath.Join(env.dataDir, sqlite.DatabaseFile))
	assert.FileExists(t, filepath.Join(env.config, "reserved.yaml"))

	env.mustRun("init")
}

func TestCLI_CharacterLifecycle(t *testing.T) {
	env := newTestEnv(t, "")

	created := parseJSON[map[string]uint64](t, env.mustRun("--json", "--as", alice.Hex(), "character", "create", "alice").stdout)
	assert.Equal(t, uint64(1), created["character_id"])

	env.mustRun("--as", alice.Hex(), "character", "set-uri", "1", "ipfs://profile")

	// State survives across invocations through the sqlite store.
	c := parseJSON[map[string]any](t, env.mustRun("--json", "character", "show", "@alice").stdout)
	assert.Equal(t, "ipfs://profile", c["uri"])
	assert.Equal(t, float64(1), c["character_id"])

	res := env.run("--as", bob.Hex(), "character", "set-uri", "1", "ipfs://stolen")
	assert.Equal(t, exitUserError, res.exitCode)
	assert.Contains(t, res.stderr, "Error:")

	res = env.run("--as", bob.Hex(), "character", "create", "alice")
	assert.Equal(t, exitUserError, res.exitCode, "handle is taken")

	env.mustRun("--as", alice.Hex(), "character", "transfer", "1", bob.Hex())
	c = parseJSON[map[string]any](t, env.mustRun("--json", "character", "show", "1").stdout)
	assert.Equal(t, bob, ownerOf(t, c))

	text := env.mustRun("character", "show", "1").stdout
	assert.Contains(t, text, "handle")
	assert.Contains(t, text, "alice")
}

func TestCLI_NoCaller(t *testing.T) {
	env := newTestEnv(t, "")
	res := env.run("character", "create", "alice")
	assert.Equal(t, exitUserError, res.exitCode)
	assert.Contains(t, res.stderr, "no caller")

	env = newTestEnv(t, "caller: \""+alice.Hex()+"\"\n")
	env.mustRun("character", "create", "alice")
}

func TestCLI_LinkAndQuery(t *testing.T) {
	env := newTestEnv(t, "caller: \""+alice.Hex()+"\"\n")
	env.mustRun("character", "create", "alice")
	env.mustRun("--as", bob.Hex(), "character", "create", "bob")

	linked := parseJSON[map[string]uint64](t, env.mustRun("--json", "link", "1", "character", "2").stdout)
	assert.Equal(t, uint64(1), linked["linklist_id"])
	env.mustRun("link", "1", "anyuri", "https://example.com")
	env.mustRun("link", "1", "--type", "like", "address", carol.Hex())

	out := parseJSON[struct {
		Kind  string   `json:"kind"`
		Items []string `json:"items"`
	}](t, env.mustRun("--json", "linking", "1").stdout)
	assert.Equal(t, []string{"2"}, out.Items)

	uris := env.mustRun("linking", "1", "--kind", "anyuri").stdout
	assert.Equal(t, "https://example.com\n", uris)

	likes := env.mustRun("linking", "1", "-t", "like", "-k", "address").stdout
	assert.Equal(t, carol.Hex()+"\n", likes)

	list := parseJSON[map[string]any](t, env.mustRun("--json", "linklist", "show", "1").stdout)
	assert.Equal(t, float64(1), list["character_id"])

	env.mustRun("unlink", "1", "character", "2")
	out = parseJSON[struct {
		Kind  string   `json:"kind"`
		Items []string `json:"items"`
	}](t, env.mustRun("--json", "linking", "1").stdout)
	assert.Empty(t, out.Items)

	created := parseJSON[map[string]uint64](t, env.mustRun("--json", "link", "1", "--create", "address", carol.Hex()).stdout)
	assert.Equal(t, uint64(3), created["character_id"])

	res := env.run("link", "1", "note", "9")
	assert.Equal(t, exitUserError, res.exitCode, "note target needs two arguments")
}

func TestCLI_NotesAndMint(t *testing.T) {
	env := newTestEnv(t, "caller: \""+alice.Hex()+"\"\n")
	env.mustRun("character", "create", "alice")

	posted := parseJSON[map[string]uint64](t, env.mustRun("--json", "note", "post", "1", "ipfs://first",
		"--mint-module", "LimitedMintModule", "--max-supply", "1", "--max-per-address", "1").stdout)
	assert.Equal(t, uint64(1), posted["note_id"])

	reply := parseJSON[map[string]uint64](t, env.mustRun("--json", "note", "post", "1", "ipfs://reply", "--on", "note,1,1").stdout)
	assert.Equal(t, uint64(2), reply["note_id"])

	note := parseJSON[map[string]any](t, env.mustRun("--json", "note", "show", "1", "2").stdout)
	assert.Equal(t, "ipfs://reply", note["content_uri"])

	minted := parseJSON[map[string]any](t, env.mustRun("--json", "--as", carol.Hex(), "note", "mint", "1", "1").stdout)
	assert.Equal(t, float64(1), minted["token_id"])

	env.mustRun("note", "lock", "1", "1")
	res := env.run("note", "set-uri", "1", "1", "ipfs://edited")
	assert.Equal(t, exitUserError, res.exitCode, "locked note")

	env.mustRun("note", "delete", "1", "2")
	note = parseJSON[map[string]any](t, env.mustRun("--json", "note", "show", "1", "2").stdout)
	assert.Equal(t, true, note["deleted"])

	both := parseJSON[map[string]uint64](t, env.mustRun("--json", "--as", bob.Hex(), "note", "post", "0", "ipfs://hi", "--new-handle", "bob").stdout)
	assert.Equal(t, uint64(2), both["character_id"])
	assert.Equal(t, uint64(1), both["note_id"])
}

func TestCLI_ModuleApprovals(t *testing.T) {
	env := newTestEnv(t, "caller: \""+alice.Hex()+"\"\n")
	env.mustRun("character", "create", "alice", "--link-module", "ApprovalLinkModule")
	env.mustRun("--as", bob.Hex(), "character", "create", "bob")

	res := env.run("--as", bob.Hex(), "link", "2", "character", "1")
	assert.Equal(t, exitUserError, res.exitCode, "bob is not approved yet")

	res = env.run("--as", bob.Hex(), "modules", "approve-link", "character", "1", "--address", bob.Hex())
	assert.Equal(t, exitUserError, res.exitCode, "only the owner approves")

	env.mustRun("modules", "approve-link", "character", "1", "--address", bob.Hex())
	env.mustRun("--as", bob.Hex(), "link", "2", "character", "1")

	env.mustRun("modules", "approve-link", "character", "1", "--address", bob.Hex(), "--revoke")
	env.mustRun("--as", bob.Hex(), "unlink", "2", "character", "1")
	res = env.run("--as", bob.Hex(), "link", "2", "character", "1")
	assert.Equal(t, exitUserError, res.exitCode, "revoked")

	env.mustRun("note", "post", "1", "ipfs://x", "--mint-module", "ApprovalMintModule")
	res = env.run("--as", carol.Hex(), "note", "mint", "1", "1")
	assert.Equal(t, exitUserError, res.exitCode)
	env.mustRun("modules", "approve-mint", "1", "1", "--address", carol.Hex())
	env.mustRun("--as", carol.Hex(), "note", "mint", "1", "1")

	events := env.mustRun("events", "--kind", "ModuleApprovalSet").stdout
	assert.Equal(t, 3, strings.Count(events, "ModuleApprovalSet"))
}

func TestCLI_Reserve(t *testing.T) {
	admin := common.HexToAddress("0x00000000000000000000000000000000000ad111")
	env := newTestEnv(t, fmt.Sprintf("resolver:\n  admin: %q\n", admin.Hex()))

	res := env.run("--as", alice.Hex(), "reserve", "add", "--ens", "vitalik="+carol.Hex())
	assert.Equal(t, exitUserError, res.exitCode, "only the admin reserves")

	env.mustRun("--as", admin.Hex(), "reserve", "add", "--ens", "vitalik="+carol.Hex())
	list := env.mustRun("reserve", "list").stdout
	assert.Contains(t, list, "vitalik")

	res = env.run("--as", alice.Hex(), "character", "create", "vitalik")
	assert.Equal(t, exitUserError, res.exitCode)
	env.mustRun("--as", carol.Hex(), "character", "create", "vitalik")

	env.mustRun("--as", admin.Hex(), "reserve", "delete", "--ens", "vitalik")
	assert.NotContains(t, env.mustRun("reserve", "list").stdout, "vitalik")
}

func TestCLI_VillaWithdraw(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	admin := crypto.PubkeyToAddress(key.PublicKey)
	villaAddr := common.HexToAddress("0x0000000000000000000000000000000000071a11")
	env := newTestEnv(t, fmt.Sprintf("villa:\n  address: %q\n  admin: %q\n", villaAddr.Hex(), admin.Hex()))

	env.mustRun("--as", alice.Hex(), "character", "create", "held", "--to", villaAddr.Hex())
	assert.Equal(t, "true\n", env.mustRun("villa", "holds", "1").stdout)

	expires := fmt.Sprint(time.Now().Add(time.Hour).Unix())
	sig := strings.TrimSpace(env.mustRun("villa", "sign",
		"--key", hex.EncodeToString(crypto.FromECDSA(key)),
		"--character", "1", "--nonce", "7", "--expires", expires).stdout)
	require.True(t, strings.HasPrefix(sig, "0x"))

	res := env.run("villa", "withdraw", "--character", "1", "--nonce", "8", "--expires", expires, "--to", bob.Hex(), "--sig", sig)
	assert.Equal(t, exitUserError, res.exitCode, "nonce is signed over")

	env.mustRun("villa", "withdraw", "--character", "1", "--nonce", "7", "--expires", expires, "--to", bob.Hex(), "--sig", sig)
	c := parseJSON[map[string]any](t, env.mustRun("--json", "character", "show", "1").stdout)
	assert.Equal(t, bob, ownerOf(t, c))

	res = env.run("villa", "withdraw", "--character", "1", "--nonce", "7", "--expires", expires, "--to", bob.Hex(), "--sig", sig)
	assert.Equal(t, exitUserError, res.exitCode, "replay")
}

func TestCLI_Events(t *testing.T) {
	env := newTestEnv(t, "caller: \""+alice.Hex()+"\"\n")
	env.mustRun("character", "create", "alice")
	env.mustRun("note", "post", "1", "ipfs://n")

	type event struct {
		Kind        string `json:"kind"`
		CharacterID uint64 `json:"character_id"`
	}
	events := parseJSON[[]event](t, env.mustRun("--json", "events").stdout)
	require.NotEmpty(t, events)
	assert.Equal(t, "CharacterCreated", events[0].Kind)

	notes := parseJSON[[]event](t, env.mustRun("--json", "events", "--kind", "NoteCreated").stdout)
	require.Len(t, notes, 1)

	path := filepath.Join(t.TempDir(), "events.jsonl")
	env.mustRun("events", "export", path)
	exported, err := sqlite.ReadEventLog(path)
	require.NoError(t, err)
	assert.Len(t, exported, len(events))
}

func TestCLI_MemoryBackend(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(env.config, "config.yaml"),
		[]byte("backend: memory\nlog_level: error\n"), 0o644))

	env.mustRun("--as", alice.Hex(), "character", "create", "alice")
	res := env.run("character", "show", "1")
	assert.Equal(t, exitUserError, res.exitCode, "memory state is per invocation")

	res = env.run("events")
	assert.Equal(t, exitUserError, res.exitCode)
	assert.Contains(t, res.stderr, "sqlite")
}

func TestCLI_BadConfig(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(env.config, "config.yaml"),
		[]byte("backend: postgres\n"), 0o644))
	res := env.run("character", "show", "1")
	assert.Equal(t, exitUserError, res.exitCode)
}
