package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeff-regier/example-models/internal/ir"
)

const chainCSV = `# model = rasch_latent_reg
# seed = 42
lp__,accept_stat__,sigma,beta.1,beta.2
-10.5,0.95,1.02,-0.48,0.51
# Adaptation terminated
-10.2,0.99,0.98,-0.52,0.49
-10.8,0.91,1.10,-0.45,0.55
`

func TestParseStanCSV(t *testing.T) {
	params, rows, err := ParseStanCSV(strings.NewReader(chainCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"sigma", "beta[1]", "beta[2]"}, params)
	require.Len(t, rows, 3)
	assert.Equal(t, []float64{1.02, -0.48, 0.51}, rows[0])
	assert.Equal(t, []float64{1.10, -0.45, 0.55}, rows[2])
}

func TestParseStanCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"comments only", "# nothing here\n"},
		{"header only", "lp__,sigma\n"},
		{"only bookkeeping columns", "lp__,accept_stat__\n-1,0.9\n"},
		{"non-numeric value", "sigma\nnot-a-number\n"},
		{"short row", "sigma,beta.1\n1.0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseStanCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestBracketName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sigma", "sigma"},
		{"beta.1", "beta[1]"},
		{"beta.12", "beta[12]"},
		{"Omega.2.1", "Omega[2,1]"},
		{"a.b", "a.b"}, // dotted but not an index
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bracketName(tt.in), tt.in)
	}
}

func TestControls_Validate(t *testing.T) {
	assert.NoError(t, DefaultControls().Validate())

	c := NewControls(WithChains(0))
	assert.Error(t, c.Validate())

	c = NewControls(WithIterations(-1, 100))
	assert.Error(t, c.Validate())

	c = NewControls(WithIterations(100, 0))
	assert.Error(t, c.Validate())
}

func TestNewControls_Options(t *testing.T) {
	c := NewControls(WithChains(2), WithIterations(250, 750), WithSeed(99))

	assert.Equal(t, 2, c.Chains)
	assert.Equal(t, 250, c.IterWarmup)
	assert.Equal(t, 750, c.IterSampling)
	assert.Equal(t, uint64(99), c.Seed)
}

func TestChainFailure_PrefersSamplerError(t *testing.T) {
	serr := &SamplerError{Chain: 2, ExitCode: 70, Stderr: "Exception: bad data"}

	// A failing chain cancels its siblings, so the error slice mixes the
	// real failure with context errors from the killed chains.
	err := chainFailure([]error{context.Canceled, serr, nil, context.Canceled})
	var got *SamplerError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 2, got.Chain)

	assert.NoError(t, chainFailure([]error{nil, nil}))
	assert.ErrorIs(t, chainFailure([]error{context.Canceled, nil}), context.Canceled)
}

func TestSample_SurfacesFailingChain(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake sampler is a shell script")
	}

	// Chain 2 fails fast; chain 1 blocks until the shared cancel kills it.
	dir := t.TempDir()
	binary := filepath.Join(dir, "fake-sampler")
	script := `#!/bin/sh
for arg in "$@"; do
  case "$arg" in
    id=*) id="${arg#id=}" ;;
  esac
done
if [ "$id" = "2" ]; then
  echo "Exception: bad data" >&2
  exit 70
fi
sleep 30
`
	require.NoError(t, os.WriteFile(binary, []byte(script), 0o755))

	s := &CmdStan{Binaries: map[ir.Family]string{ir.FamilyRasch: binary}, WorkDir: dir}
	spec := &ir.ModelSpec{Name: "m", Family: ir.FamilyRasch}
	controls := NewControls(WithChains(2), WithIterations(10, 10))

	_, err := s.Sample(context.Background(), spec, ir.DataPayload{}, controls)
	require.Error(t, err)

	var serr *SamplerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 2, serr.Chain)
	assert.Equal(t, 70, serr.ExitCode)
	assert.Contains(t, serr.Stderr, "bad data")
}

func TestSamplerError_Message(t *testing.T) {
	err := &SamplerError{Chain: 3, ExitCode: 70, Stderr: "Exception: variable y not found"}
	assert.Contains(t, err.Error(), "chain 3")
	assert.Contains(t, err.Error(), "exit 70")
	assert.Contains(t, err.Error(), "variable y not found")
}
