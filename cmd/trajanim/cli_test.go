package main

import (
	"bytes"
	"context"
	"fmt"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trajectory-animator/internal/config"
)

const earthDat = "# t x y z\n0 1 0 0\n60 0 1 0\n120 -1 0 0\n"

// workspace writes a config file, a dat table and a scene into a temp dir.
func workspace(t *testing.T, storage string) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := fmt.Sprintf(`{
  "logLevel": "debug",
  "logsDir": %q,
  "render": {"fps": 5, "dpi": 72, "width": 48, "height": 32, "plotLimits": 2},
  "storage": %s
}`, filepath.Join(dir, "logs"), storage)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(cfg), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "earth.dat"), []byte(earthDat), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.yaml"), []byte(`
speed: 60
output: orbit.gif
particles:
  - name: Earth
    color: "#249DAB"
    tracer: true
    source:
      format: dat
      path: earth.dat
camera:
  - {at: 0, elevation: 30, azimuth: -60}
  - {at: 1, elevation: 10, azimuth: 0}
`), 0644))
	return dir
}

func memoryStorage() string { return `{"type": "memory"}` }

func sqliteStorage(dir string) string {
	return fmt.Sprintf(`{"type": "sqlite", "sqlite": {"path": %q}}`, filepath.Join(dir, "bodies.db"))
}

func runCLI(t *testing.T, ctx context.Context, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_NoArguments(t *testing.T) {
	code, _, stderr := runCLI(t, context.Background())
	assert.Equal(t, exitUsage, code)
	for name := range commands {
		assert.Contains(t, stderr, "trajanim "+name)
	}
	assert.Contains(t, stderr, "--log-level")
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, context.Background(), "explode")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, `unknown command "explode"`)
	assert.Contains(t, stderr, "Usage:")
}

func TestRun_BadFlag(t *testing.T) {
	code, _, _ := runCLI(t, context.Background(), "render", "--frobnicate")
	assert.Equal(t, exitUsage, code)
}

func TestRun_RenderGIF(t *testing.T) {
	dir := workspace(t, memoryStorage())
	out := filepath.Join(dir, "cli.gif")

	code, stdout, stderr := runCLI(t, context.Background(),
		"render", "--config", dir, "--scene", filepath.Join(dir, "scene.yaml"), "--out", out, "--fps", "4")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, out)
	assert.Contains(t, stderr, "Render finished")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.NotEmpty(t, g.Image)
	// --fps 4 wins over the config file's 5
	assert.Equal(t, 25, g.Delay[0])

	logs, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestRun_RenderRequiresScene(t *testing.T) {
	dir := workspace(t, memoryStorage())
	code, _, stderr := runCLI(t, context.Background(), "render", "--config", dir)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "--scene is required")
}

func TestRun_RenderSpeedAndDuration(t *testing.T) {
	dir := workspace(t, memoryStorage())
	code, _, stderr := runCLI(t, context.Background(), "render", "--config", dir,
		"--scene", filepath.Join(dir, "scene.yaml"), "--speed", "10", "--duration", "3")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "exclusive")
}

func TestRun_RenderUnsupportedOutput(t *testing.T) {
	dir := workspace(t, memoryStorage())
	out := filepath.Join(dir, "orbit.avi")
	code, _, stderr := runCLI(t, context.Background(), "render", "--config", dir,
		"--scene", filepath.Join(dir, "scene.yaml"), "--out", out)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "unsupported")
	assert.NoFileExists(t, out)
}

func TestRun_RenderCancelled(t *testing.T) {
	dir := workspace(t, memoryStorage())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, _, _ := runCLI(t, ctx, "render", "--config", dir,
		"--scene", filepath.Join(dir, "scene.yaml"), "--out", filepath.Join(dir, "x.gif"))
	assert.Equal(t, exitCancelled, code)
}

func TestRun_Preview(t *testing.T) {
	dir := workspace(t, memoryStorage())
	out := filepath.Join(dir, "camera.html")

	code, stdout, stderr := runCLI(t, context.Background(), "preview", "--config", dir,
		"--scene", filepath.Join(dir, "scene.yaml"), "--out", out)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Wrote camera preview")

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "orbit end")
}

func TestRun_InspectScene(t *testing.T) {
	dir := workspace(t, memoryStorage())

	code, stdout, stderr := runCLI(t, context.Background(), "inspect", "--config", dir,
		"--scene", filepath.Join(dir, "scene.yaml"))
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Earth")
	assert.Contains(t, stdout, "Physical duration: 2m0s")
	assert.Contains(t, stdout, "Speed:     60x")
}

func TestRun_ImportThenInspect(t *testing.T) {
	dir := workspace(t, sqliteStorage(t.TempDir()))
	ctx := context.Background()

	code, stdout, stderr := runCLI(t, ctx, "import", "--config", dir,
		"--file", filepath.Join(dir, "earth.dat"), "--name", `"Earth"`, "--color", "#ef476f")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Imported Earth: 3 samples")

	code, stdout, stderr = runCLI(t, ctx, "inspect", "--config", dir)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Earth")
	assert.Contains(t, stdout, "dat")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "stored.yaml"), []byte(`
speed: 30
output: stored.gif
particles:
  - name: Earth
    source: {format: db}
`), 0644))
	code, stdout, stderr = runCLI(t, ctx, "inspect", "--config", dir, "--scene", filepath.Join(dir, "stored.yaml"))
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Physical duration: 2m0s")
}

func TestRun_ImportValidation(t *testing.T) {
	dir := workspace(t, memoryStorage())
	ctx := context.Background()

	code, _, stderr := runCLI(t, ctx, "import", "--config", dir, "--name", "Earth")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "--file and --name are required")

	code, _, stderr = runCLI(t, ctx, "import", "--config", dir, "--file", "track.bin", "--name", "Earth")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "unknown source format")

	code, _, _ = runCLI(t, ctx, "import", "--config", dir,
		"--file", filepath.Join(dir, "earth.dat"), "--name", "Earth", "--color", "teal")
	assert.Equal(t, exitUsage, code)
}

func TestRun_UnknownStorage(t *testing.T) {
	dir := workspace(t, `{"type": "cassandra"}`)
	code, _, stderr := runCLI(t, context.Background(), "inspect", "--config", dir)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "unknown storage type")
}

func TestApplyFlags(t *testing.T) {
	fs := pflag.NewFlagSet("render", pflag.ContinueOnError)
	globalFlags(fs)
	require.NoError(t, fs.Parse([]string{"--width", "800"}))

	a := &app{fs: fs}
	rc := a.applyFlags(config.RenderConfig{FPS: 30, Width: 640, Height: 360})
	assert.Equal(t, 30, rc.FPS)
	assert.Equal(t, 800, rc.Width)
	assert.Equal(t, 360, rc.Height)
}
