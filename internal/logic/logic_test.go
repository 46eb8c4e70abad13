package logic

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/idelchi/meshmark/internal/config"
	"github.com/idelchi/meshmark/internal/fingerprint"
	"github.com/idelchi/meshmark/internal/ledger"
	"github.com/idelchi/meshmark/internal/meshtest"
	"github.com/idelchi/meshmark/internal/transit"
	"github.com/idelchi/meshmark/internal/watermark"
)

func baseConfig(command string, files ...string) *config.Config {
	return &config.Config{
		Command:  command,
		Parallel: 2,
		Quiet:    true,
		Base:     16,
		Digest:   "md5",
		Suffix:   ".marked",
		NoLedger: true,
		Files:    files,
	}
}

func TestEmbedExtractTrace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	ledgerPath := filepath.Join(t.TempDir(), "ledger.db")

	gear := meshtest.WriteFile(t, dir, "gear.stl", meshtest.Random(1, 60))
	bolt := meshtest.WriteFile(t, dir, "BOLT.STL", meshtest.Random(2, 45))

	cfg := baseConfig("embed", dir)
	cfg.Uploader = "alice"
	cfg.Appendix = "po-1"
	cfg.NoLedger = false
	cfg.Ledger = ledgerPath

	require.NoError(t, RunEmbed(ctx, cfg))

	markedGear := filepath.Join(dir, "gear.marked.stl")
	markedBolt := filepath.Join(dir, "BOLT.marked.STL")

	require.FileExists(t, markedGear)
	require.FileExists(t, markedBolt)

	engine := watermark.New(watermark.Options{})

	for src, marked := range map[string]string{gear: markedGear, bolt: markedBolt} {
		want, err := fingerprint.Generator{}.SumFile(src, "alice", "po-1")
		require.NoError(t, err)

		res, err := engine.Extract(ctx, marked, 16)
		require.NoError(t, err)
		require.Equal(t, want, res.Fingerprint, marked)
	}

	l, err := ledger.Open(ledgerPath)
	require.NoError(t, err)

	entries, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, e := range entries {
		require.Equal(t, "alice", e.Uploader)
		require.Equal(t, "po-1", e.Appendix)
	}

	require.NoError(t, l.Close())

	extract := baseConfig("extract", dir)
	require.NoError(t, RunExtract(ctx, extract))
	require.ElementsMatch(t, []string{markedGear, markedBolt}, extract.Files, "extract picks marked files only")

	trace := baseConfig("trace", dir)
	trace.Ledger = ledgerPath
	require.NoError(t, RunTrace(ctx, trace))

	list := baseConfig("list")
	list.Ledger = ledgerPath
	list.Limit = 1
	require.NoError(t, RunLedgerList(ctx, list))
}

func TestEmbedSkipsMarkedFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	meshtest.WriteFile(t, dir, "gear.stl", meshtest.Random(3, 50))

	for range 2 {
		cfg := baseConfig("embed", dir)
		cfg.Uploader = "bob"
		require.NoError(t, RunEmbed(ctx, cfg))
		require.Equal(t, []string{filepath.Join(dir, "gear.stl")}, cfg.Files)
	}

	require.NoFileExists(t, filepath.Join(dir, "gear.marked.marked.stl"))
}

func TestEmbedErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	small := meshtest.WriteFile(t, dir, "small.stl", meshtest.Random(4, 20))
	good := meshtest.WriteFile(t, dir, "good.stl", meshtest.Random(5, 50))

	cfg := baseConfig("embed", small, good)
	cfg.Uploader = "carol"
	require.Error(t, RunEmbed(ctx, cfg))
	require.NoFileExists(t, filepath.Join(dir, "small.marked.stl"))
	require.FileExists(t, filepath.Join(dir, "good.marked.stl"), "one failure does not stop the batch")

	cfg = baseConfig("embed", dir)
	cfg.Uploader = "carol"
	cfg.Output = filepath.Join(dir, "out.stl")
	require.ErrorContains(t, RunEmbed(ctx, cfg), "directory")

	cfg = baseConfig("embed", small, good)
	cfg.Uploader = "carol"
	cfg.Output = filepath.Join(dir, "out.stl")
	require.ErrorContains(t, RunEmbed(ctx, cfg), "exactly one")

	cfg = baseConfig("trace", dir)
	cfg.Ledger = filepath.Join(dir, "missing.db")
	require.Error(t, RunTrace(ctx, cfg))
}

func TestEmbedReportsWrittenFileWhenRecordingFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	gear := meshtest.WriteFile(t, dir, "gear.stl", meshtest.Random(6, 50))

	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	cfg := baseConfig("embed", gear)
	cfg.Uploader = "erin"

	res := embedOne(ctx, cfg, newEngine(cfg), l, gear)

	marked := filepath.Join(dir, "gear.marked.stl")
	require.Error(t, res.err)
	require.ErrorContains(t, res.err, marked+"\" was written")
	require.Equal(t, marked, res.output)
	require.FileExists(t, marked)
}

func TestEmbedOutputAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	src := meshtest.WriteFile(t, dir, "gear.stl", meshtest.Random(6, 40))
	out := filepath.Join(dir, "for-dave.stl")

	cfg := baseConfig("embed", src)
	cfg.Uploader = "dave"
	cfg.Output = out
	cfg.Delete = true

	require.NoError(t, RunEmbed(ctx, cfg))
	require.FileExists(t, out)
	require.NoFileExists(t, src)
}

func TestDryRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	meshtest.WriteFile(t, dir, "gear.stl", meshtest.Random(7, 50))

	cfg := baseConfig("embed", dir)
	cfg.Uploader = "erin"
	cfg.Dry = true
	cfg.Stats = true

	require.NoError(t, RunEmbed(context.Background(), cfg))
	require.NoFileExists(t, filepath.Join(dir, "gear.marked.stl"))
}

func TestRunCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	meshtest.WriteFile(t, dir, "gear.stl", meshtest.Random(8, 50))

	require.NoError(t, RunCheck(ctx, baseConfig("check", dir)))

	cfg := baseConfig("check", dir)
	cfg.Include = []string{"*.obj"}
	require.Error(t, RunCheck(ctx, cfg))

	meshtest.WriteFile(t, dir, "small.stl", meshtest.Random(9, 20))
	require.Error(t, RunCheck(ctx, baseConfig("check", dir)))
}

func TestSealOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	src := meshtest.WriteFile(t, dir, "gear.stl", meshtest.Random(10, 40))

	original, err := os.ReadFile(src)
	require.NoError(t, err)

	key, err := transit.GenerateSharedKey()
	require.NoError(t, err)

	keyFile := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(keyFile, []byte(key+"\n"), 0o600))

	cfg := baseConfig("seal", src)
	cfg.Key.String = key
	cfg.Delete = true
	require.NoError(t, RunSeal(ctx, cfg))
	require.NoFileExists(t, src)
	require.FileExists(t, src+sealSuffix)

	cfg = baseConfig("open", dir)
	cfg.Key.File = keyFile
	require.NoError(t, RunOpen(ctx, cfg))

	opened, err := os.ReadFile(src)
	require.NoError(t, err)
	require.Equal(t, original, opened)

	other, err := transit.GenerateSharedKey()
	require.NoError(t, err)

	cfg = baseConfig("open", src+sealSuffix)
	cfg.Key.String = other
	require.Error(t, RunOpen(ctx, cfg))

	require.Error(t, RunSeal(ctx, baseConfig("seal", src)), "a key is required")
}

func TestEncryptDecrypt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	src := meshtest.WriteFile(t, dir, "gear.stl", meshtest.Random(11, 40))

	original, err := os.ReadFile(src)
	require.NoError(t, err)

	kp, err := transit.GenerateKeypair()
	require.NoError(t, err)

	identity := filepath.Join(t.TempDir(), "identity.txt")
	require.NoError(t, os.WriteFile(identity, []byte("# public key: "+kp.PublicKey+"\n"+kp.PrivateKey+"\n"), 0o600))

	require.Error(t, RunEncrypt(ctx, baseConfig("encrypt", src)), "a recipient is required")

	cfg := baseConfig("encrypt", src)
	cfg.Key.Recipients = []string{kp.PublicKey}
	cfg.Delete = true
	require.NoError(t, RunEncrypt(ctx, cfg))
	require.NoFileExists(t, src)

	cfg = baseConfig("decrypt", dir)
	cfg.Key.Identity = identity
	require.NoError(t, RunDecrypt(ctx, cfg))

	decrypted, err := os.ReadFile(src)
	require.NoError(t, err)
	require.Equal(t, original, decrypted)
}

func TestRunKeygen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	shared := filepath.Join(dir, "shared.key")
	require.NoError(t, RunKeygen(false, shared))

	data, err := os.ReadFile(shared)
	require.NoError(t, err)

	_, err = transit.ParseSharedKey(string(data[:len(data)-1]))
	require.NoError(t, err)

	info, err := os.Stat(shared)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.Error(t, RunKeygen(false, shared), "existing key files are kept")

	identity := filepath.Join(dir, "age.txt")
	require.NoError(t, RunKeygen(true, identity))

	cfg := &config.Config{Key: config.Key{Identity: identity}}

	private, err := cfg.Identity()
	require.NoError(t, err)
	require.Contains(t, private, "AGE-SECRET-KEY-")
}

func TestStripSuffix(t *testing.T) {
	t.Parallel()

	require.Equal(t, "gear.stl", stripSuffix("gear.stl.age", ageSuffix))
	require.Equal(t, "gear.stl.out", stripSuffix("gear.stl", ageSuffix))
	require.Equal(t, ".age.out", stripSuffix(".age", ageSuffix))
}

func TestDropWatcher(t *testing.T) {
	t.Parallel()

	cfg := baseConfig("watch")
	cfg.Debounce = 200 * time.Millisecond

	w := &dropWatcher{cfg: cfg, pending: make(map[string]time.Time)}

	for path, want := range map[string]bool{
		"drop/gear.stl":        true,
		"drop/GEAR.STL":        true,
		"drop/gear.marked.stl": false,
		"drop/.tmp-123":        false,
		"drop/.gear.stl":       false,
		"drop/notes.txt":       false,
	} {
		require.Equal(t, want, w.wants(path), path)
	}

	start := time.Now()

	w.touch("drop/gear.stl", start)
	w.touch("drop/notes.txt", start)
	w.touch("drop/bolt.stl", start.Add(150*time.Millisecond))

	require.Empty(t, w.ready(start.Add(100*time.Millisecond)))
	require.Equal(t, []string{"drop/gear.stl"}, w.ready(start.Add(250*time.Millisecond)))
	require.Empty(t, w.ready(start.Add(300*time.Millisecond)), "ready paths are forgotten")
	require.Equal(t, []string{"drop/bolt.stl"}, w.ready(start.Add(400*time.Millisecond)))
}

func TestRunWatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg := baseConfig("watch", dir)
	cfg.Uploader = "frank"
	cfg.Debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() { done <- RunWatch(ctx, cfg) }()

	marked := filepath.Join(dir, "gear.marked.stl")

	// The watcher may not be registered yet; rewrite the file until it is picked up.
	require.Eventually(t, func() bool {
		if _, err := os.Stat(marked); err == nil {
			return true
		}

		meshtest.WriteFile(t, dir, "gear.stl", meshtest.Random(12, 40))

		return false
	}, 10*time.Second, 300*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	res, err := watermark.New(watermark.Options{}).Extract(context.Background(), marked, 16)
	require.NoError(t, err)

	want, err := fingerprint.Generator{}.SumFile(filepath.Join(dir, "gear.stl"), "frank", "")
	require.NoError(t, err)
	require.Equal(t, want, res.Fingerprint)
}

func TestRunWatchRejectsFiles(t *testing.T) {
	t.Parallel()

	file := meshtest.WriteFile(t, t.TempDir(), "gear.stl", meshtest.Random(13, 40))

	require.Error(t, RunWatch(context.Background(), baseConfig("watch", file)))
}
