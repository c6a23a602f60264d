package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrinter(t *testing.T) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
	var out, errOut bytes.Buffer
	return New(&out, &errOut), &out, &errOut
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		p, _, errOut := newTestPrinter(t)
		err := p.Error("Scenario not found", "No scenario has id x.", nil)
		require.Error(t, err)
		require.Equal(t, "Scenario not found", err.Error())
		assert.Equal(t, "Scenario not found\n\nNo scenario has id x.\n", errOut.String())
	})

	t.Run("single suggestion is printed as-is", func(t *testing.T) {
		p, _, errOut := newTestPrinter(t)
		_ = p.Error("Bad file", "", []string{"Run walkthrough validate"})
		assert.Equal(t, "Bad file\n\nRun walkthrough validate\n", errOut.String())
	})

	t.Run("multiple suggestions are numbered", func(t *testing.T) {
		p, _, errOut := newTestPrinter(t)
		_ = p.Error("Bad file", "", []string{"First option", "Second option"})
		assert.Contains(t, errOut.String(), "Either:\n  1. First option\n  2. Second option\n")
	})
}

func TestErrorWithContextSortsKeys(t *testing.T) {
	p, _, errOut := newTestPrinter(t)
	err := p.ErrorWithContext("Load failed", "", map[string]string{
		"Source":   "scenarios/a.yaml",
		"Scenario": "a1",
	}, nil)
	require.EqualError(t, err, "Load failed")
	assert.Equal(t, "Load failed\n\n  Scenario: a1\n  Source: scenarios/a.yaml\n", errOut.String())
}

func TestPrefixesAreNotDoubled(t *testing.T) {
	p, out, errOut := newTestPrinter(t)
	p.Success("✓ loaded %d", 3)
	p.Success("done")
	p.Warning("slow narration")
	p.Step("step %d/%d", 1, 4)
	p.Detail("effect open-muse")
	assert.Equal(t, "✓ loaded 3\n✓ done\n→ step 1/4\n    effect open-muse\n", out.String())
	assert.Equal(t, "⚠ slow narration\n", errOut.String())
}
