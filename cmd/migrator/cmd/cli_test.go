package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/migrator/pkg/session"
)

func resetFlags() {
	for _, fs := range []*pflag.FlagSet{upgradeCmd.Flags(), versionCmd.Flags(), rootCmd.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
}

// runCmd executes the CLI and returns the captured exit code, or -1 when the command did not exit
func runCmd(t *testing.T, args ...string) (int, string) {
	t.Helper()
	resetFlags()

	code := -1
	osExit = func(c int) {
		if code < 0 {
			code = c
		}
	}
	var errOut bytes.Buffer
	stderr = &errOut
	defer func() {
		osExit = os.Exit
		stderr = os.Stderr
	}()

	if !hasFlag(args, flagLogLevel) {
		args = append(args, "--"+flagLogLevel, "none")
	}
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return code, errOut.String()
}

func hasFlag(args []string, name string) bool {
	for _, arg := range args {
		if arg == "--"+name {
			return true
		}
	}
	return false
}

func writeExport(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "export")
	for name, content := range files {
		target := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(target), 0700))
		require.NoError(t, os.WriteFile(target, []byte(content), 0600))
	}
	return dir
}

var testExport = map[string]string{
	"A/.container.yaml": "dc:title: collection\n",
	"A/B":               "binary content",
	"A/B.fcrepo.yaml":   "fedora:digest: abc123\nfedora:mimeType: text/plain\npremis:hasOriginalName: file.txt\n",
}

func TestUpgradeUnsupported(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	code, msg := runCmd(t, "upgrade",
		"--source-version", "6+", "--target-version", "5+",
		"--source-dir", writeExport(t, testExport), "--output-dir", out)
	assert.Equal(t, exitConfiguration, code)
	assert.Contains(t, msg, "unsupported upgrade path")
	assert.Contains(t, msg, "6+")
	assert.Contains(t, msg, "5+")

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "nothing is created for an unsupported upgrade")
}

func TestUpgradeInvalidConfiguration(t *testing.T) {
	code, msg := runCmd(t, "upgrade", "--source-version", "3", "--target-version", "6+")
	assert.Equal(t, exitConfiguration, code)
	assert.Contains(t, msg, "unsupported upgrade path")
	assert.Contains(t, msg, `"3"`)
	assert.Contains(t, msg, `"6+"`)

	code, _ = runCmd(t, "upgrade",
		"--source-version", "5+", "--target-version", "6+",
		"--source-dir", writeExport(t, testExport), "--output-dir", t.TempDir(),
		"--digest-algorithm", "crc32")
	assert.Equal(t, exitConfiguration, code)
}

func TestUpgradeToOCFL(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	textfile := filepath.Join(t.TempDir(), "migrator.prom")
	code, msg := runCmd(t, "upgrade",
		"--source-version", "5", "--target-version", "6",
		"--source-dir", writeExport(t, testExport), "--output-dir", out,
		"--threads", "2", "--metrics-textfile", textfile)
	require.Equal(t, exitOK, code, msg)

	for _, dir := range []string{session.OCFLRootDir, session.WorkDir, session.StagingDir} {
		fi, err := os.Stat(filepath.Join(out, dir))
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}
	_, err := os.Stat(filepath.Join(out, session.OCFLRootDir, "0=ocfl_1.0"))
	require.NoError(t, err)

	prom, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `migrator_resources_total{outcome="succeeded"} 3`)

	// a second run on the same output resumes
	code, msg = runCmd(t, "upgrade",
		"--source-version", "5+", "--target-version", "6+",
		"--source-dir", writeExport(t, testExport), "--output-dir", out)
	require.Equal(t, exitOK, code, msg)
}

func TestUpgradeLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "migrator.log")
	code, msg := runCmd(t, "upgrade",
		"--source-version", "5+", "--target-version", "6+",
		"--source-dir", writeExport(t, testExport), "--output-dir", filepath.Join(t.TempDir(), "out"),
		"--log-level", "info", "--log-file", logFile)
	require.Equal(t, exitOK, code, msg)

	b, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "migration complete")
}

func TestUpgradePartialFailure(t *testing.T) {
	files := map[string]string{
		"C/.container.yaml": "dc:title: fine\n",
		"D":                 "content",
		"D.fcrepo.yaml":     "[broken",
	}
	for i := 0; i < 5; i++ {
		files[fmt.Sprintf("C/r%d", i)] = "x"
	}
	code, msg := runCmd(t, "upgrade",
		"--source-version", "5+", "--target-version", "6+",
		"--source-dir", writeExport(t, files), "--output-dir", filepath.Join(t.TempDir(), "out"))
	assert.Equal(t, exitPartial, code)
	assert.Contains(t, msg, "failed for 1 resources: /D")
}

func TestUpgradeInPlace(t *testing.T) {
	dir := writeExport(t, testExport)
	sidecar := filepath.Join(dir, "A", "B.fcrepo.yaml")

	code, msg := runCmd(t, "upgrade", "--source-version", "4.7.5", "--target-version", "5+", "--source-dir", dir, "--dry-run")
	require.Equal(t, exitOK, code, msg)
	data, err := os.ReadFile(sidecar)
	require.NoError(t, err)
	assert.Equal(t, testExport["A/B.fcrepo.yaml"], string(data))

	code, msg = runCmd(t, "upgrade", "--source-version", "4.7.5", "--target-version", "5+", "--source-dir", dir)
	require.Equal(t, exitOK, code, msg)
	data, err = os.ReadFile(sidecar)
	require.NoError(t, err)
	assert.Equal(t, "ebucore:filename: file.txt\nebucore:hasMimeType: text/plain\npremis:hasMessageDigest: abc123\n", string(data))
}

func TestVersion(t *testing.T) {
	var out string
	logStdOut = func(format string, args ...interface{}) (int, error) {
		out = fmt.Sprintf(format, args...)
		return len(out), nil
	}
	defer func() { logStdOut = fmt.Printf }()

	code, _ := runCmd(t, "version")
	assert.Equal(t, -1, code)
	assert.Contains(t, out, "Version: dev")
	assert.Contains(t, out, "Upgrades: 4.7.5 -> 5+, 5+ -> 6+")
	assert.Contains(t, out, "sha512")

	code, _ = runCmd(t, "version", "--json")
	assert.Equal(t, -1, code)
	var info VersionInfo
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(out), &info))
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, []string{"4.7.5 -> 5+", "5+ -> 6+"}, info.Upgrades)
	assert.Contains(t, info.DigestAlgorithms, "blake2b-512")
}
