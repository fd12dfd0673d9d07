package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	gosecant "github.com/njchilds90/gosecant"
)

var exampleArgs = []string{"solve", "--fx", "16/x + 2*x**2", "--a", "0.5", "--b", "5", "--tol", "1e-4"}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestSolve_Table(t *testing.T) {
	stdout, _, err := run(t, exampleArgs...)
	require.NoError(t, err)

	lines := strings.Split(stdout, "\n")
	assert.Equal(t, []string{"iteration", "L", "R", "z", "f'(L)", "f'(R)", "f'(z)"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"1", "0.5", "5", "3.9292035", "-62", "19.36", "14.680453"}, strings.Fields(lines[1]))
	assert.Contains(t, stdout, "f'(x)  = -16/x**2 + 4*x")
	assert.Contains(t, stdout, "status = derivative_tolerance (converged=true)")
}

func TestSolve_JSON(t *testing.T) {
	stdout, _, err := run(t, append(exampleArgs, "--output", "json")...)
	require.NoError(t, err)

	var doc struct {
		XMin       float64                      `json:"x_min"`
		Converged  bool                         `json:"converged"`
		Function   string                       `json:"function"`
		Iterations []map[string]json.RawMessage `json:"iterations"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.InDelta(t, 1.587401, doc.XMin, 1e-3)
	assert.True(t, doc.Converged)
	assert.Equal(t, "16/x + 2*x**2", doc.Function)
	require.NotEmpty(t, doc.Iterations)
	assert.JSONEq(t, "-62", string(doc.Iterations[0]["f'(L)"]))
}

func TestSolve_YAML(t *testing.T) {
	stdout, _, err := run(t, append(exampleArgs, "-o", "yaml")...)
	require.NoError(t, err)

	var doc struct {
		XMin       float64                    `yaml:"x_min"`
		Reason     string                     `yaml:"stop_reason"`
		Derivative string                     `yaml:"derivative"`
		Iterations []gosecant.IterationRecord `yaml:"iterations"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &doc))
	assert.InDelta(t, 1.587401, doc.XMin, 1e-3)
	assert.Equal(t, "derivative_tolerance", doc.Reason)
	assert.Equal(t, "-16/x**2 + 4*x", doc.Derivative)
	require.NotEmpty(t, doc.Iterations)
	assert.InDelta(t, -62.0, doc.Iterations[0].FPrimeL, 1e-12)
	assert.InDelta(t, 19.36, doc.Iterations[0].FPrimeR, 1e-12)
}

func TestSolve_IterationLimit(t *testing.T) {
	stdout, _, err := run(t, "--max_iterations", "5", "solve", "--fx", "x**4", "--a=-1", "--b", "2", "--tol", "1e-12")
	require.ErrorIs(t, err, gosecant.ErrNotConverged)
	assert.Contains(t, stdout, "status = iteration_limit (converged=false)")
	// header, five rows, blank line, five summary lines, trailing newline
	assert.Len(t, strings.Split(stdout, "\n"), 13)
}

func TestSolve_MaxIterationsFromEnvironment(t *testing.T) {
	t.Setenv("SECANTMIN_MAX_ITERATIONS", "3")

	stdout, _, err := run(t, "solve", "--fx", "x**4", "--a=-1", "--b", "2", "--tol", "1e-12", "-o", "json")
	require.ErrorIs(t, err, gosecant.ErrNotConverged)

	var res struct {
		Iterations []gosecant.IterationRecord `json:"iterations"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Len(t, res.Iterations, 3)
}

func TestSolve_Errors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want string
	}{
		{name: "no sign change", args: []string{"solve", "--fx", "x**2", "--a", "1", "--b", "2", "--tol", "1e-4"}, want: "InvalidBracketError"},
		{name: "parse", args: []string{"solve", "--fx", "x +", "--a", "1", "--b", "2", "--tol", "1e-4"}, want: "ParseError"},
		{name: "bad tolerance", args: []string{"solve", "--fx", "x**2", "--a=-1", "--b", "2", "--tol", "0"}, want: "InvalidArgumentError"},
		{name: "missing fx", args: []string{"solve", "--a", "1", "--b", "2", "--tol", "1e-4"}, want: `"fx"`},
		{name: "missing tol", args: []string{"solve", "--fx", "x**2", "--a=-1", "--b", "2"}, want: `"tol"`},
		{name: "bad output", args: append(append([]string{}, exampleArgs...), "-o", "xml"), want: `unsupported output "xml"`},
		{name: "bad log level", args: append([]string{"--log_level", "loud"}, exampleArgs...), want: "log_level"},
		{name: "unknown command", args: []string{"plot"}, want: "unknown command"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stdout, _, err := run(t, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			assert.Empty(t, stdout)
		})
	}
}

func TestSolve_Plot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final.png")
	_, _, err := run(t, append(exampleArgs, "-o", "json", "--plot", path)...)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var stderr bytes.Buffer
	err := execute(ctx, []string{"serve", "--http_addr", "127.0.0.1:0", "--log_format", "json"}, nil, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), `"msg":"http server listening"`)
	assert.Contains(t, stderr.String(), `"msg":"shutting down"`)
}
