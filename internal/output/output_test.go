package output

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelion/codelion/internal/models"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestMessages(t *testing.T) {
	u, out, errOut := newTestUI()
	u.Info("hello %s", "world")
	u.Success("done %d", 42)
	u.Warning("careful %s", "now")
	u.Error("failed %s", "badly")

	assert.Contains(t, out.String(), "hello world")
	assert.Contains(t, out.String(), "done 42")
	assert.Contains(t, errOut.String(), "careful now")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog(t *testing.T) {
	u, out, _ := newTestUI()
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())

	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestStatusColor(t *testing.T) {
	noColor(t)
	for _, st := range models.ReviewStatuses {
		assert.Equal(t, string(st), StatusColor(st))
	}
	assert.Equal(t, "weird", StatusColor("weird"))
}

func TestConfidenceColor(t *testing.T) {
	noColor(t)
	assert.Equal(t, "-", ConfidenceColor(0))
	assert.Equal(t, "85%", ConfidenceColor(85))
	assert.Equal(t, "60%", ConfidenceColor(60))
	assert.Equal(t, "20%", ConfidenceColor(20))
}

func TestSeverityColor(t *testing.T) {
	noColor(t)
	assert.Equal(t, "critical", SeverityColor(models.SeverityCritical))
	assert.Equal(t, "low", SeverityColor(models.SeverityLow))
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"PR", "Status"})
	require.NotNil(t, table)

	require.NoError(t, table.Append([]string{"#123", "completed"}))
	require.NoError(t, table.Append([]string{"#124", "in_progress"}))
	require.NoError(t, table.Render())

	assert.Contains(t, out.String(), "#123")
	assert.Contains(t, out.String(), "in_progress")
}
