package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, contents string) (afero.Fs, string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	path := "/home/user/.config/ynot/rewrite.rules"
	require.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0o600))
	return fs, path
}

func TestLoadMissingFileLeavesTextUntouched(t *testing.T) {
	t.Parallel()

	rewriter, err := Load(afero.NewMemMapFs(), "/nope/rewrite.rules", 10)
	require.NoError(t, err)
	assert.Zero(t, rewriter.Len())
	assert.Equal(t, "mausam  batao", rewriter.Rewrite("mausam  batao"))
}

func TestRewriteAppliesAliasLiteralAndSedRules(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, `
# spoken variants
alias youtube = you tube, u tube
mosam => mausam
s/\bwiki\s+pedia\b/wikipedia/g
`)

	rewriter, err := Load(fs, path, 10)
	require.NoError(t, err)
	require.Equal(t, 3, rewriter.Len())

	assert.Equal(t, "youtube pe gaane chalao", rewriter.Rewrite("You Tube pe gaane chalao"))
	assert.Equal(t, "aaj ka mausam", rewriter.Rewrite("aaj ka mosam"))
	assert.Equal(t, "wikipedia taj mahal", rewriter.Rewrite("wiki   pedia taj mahal"))
}

func TestRewriteIteratesUntilStable(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, "khabr => khabar\nkhabar sunao => news\n")

	rewriter, err := Load(fs, path, 10)
	require.NoError(t, err)
	assert.Equal(t, "aaj ki news", rewriter.Rewrite("aaj ki khabr sunao"))
}

func TestRewriteStopsAtIterationLimit(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, "a => aa\n")

	rewriter, err := Load(fs, path, 3)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 8), rewriter.Rewrite("a"))
}

func TestLiteralRuleStartingWithS(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, "samay batao => time\n")

	rewriter, err := Load(fs, path, 10)
	require.NoError(t, err)
	assert.Equal(t, "time", rewriter.Rewrite("samay batao"))
}

func TestSedWithoutGlobalReplacesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, "s/mazak/joke/\n")

	rewriter, err := Load(fs, path, 1)
	require.NoError(t, err)
	assert.Equal(t, "joke mazak", rewriter.Rewrite("mazak mazak"))
}

func TestSedSupportsCustomDelimiterAndCaptureGroups(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, `s|(\w+) ke baare me|wikipedia $1|`+"\n")

	rewriter, err := Load(fs, path, 5)
	require.NoError(t, err)
	assert.Equal(t, "wikipedia delhi", rewriter.Rewrite("delhi ke baare me"))
}

func TestLoadRejectsUnsupportedFlag(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, "s/a/b/x\n")

	_, err := Load(fs, path, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
	assert.Contains(t, err.Error(), "unsupported regex flag")
}

func TestLoadRejectsUnsupportedLine(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, "# ok\nwhat is this\n")

	_, err := Load(fs, path, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2: unsupported rule format")
}

func TestLoadRejectsAliasWithoutVariants(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, "alias news = news, \n")

	_, err := Load(fs, path, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no variants")
}

type failingFs struct {
	afero.Fs
}

func (failingFs) Open(string) (afero.File, error) {
	return nil, errors.New("disk on fire")
}

func TestLoadSurfacesReadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(failingFs{Fs: afero.NewMemMapFs()}, "/rules", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read rules file")
}

type bangSyntax struct{}

func (bangSyntax) Accepts(line string) bool { return strings.HasPrefix(line, "!") }

func (bangSyntax) Compile(line string) (Rule, error) {
	word := strings.TrimSpace(strings.TrimPrefix(line, "!"))
	return dropRule(word), nil
}

type dropRule string

func (d dropRule) Rewrite(text string) (string, bool) {
	output := strings.ReplaceAll(text, string(d), "")
	return output, output != text
}

func TestLoadAcceptsExtraSyntaxes(t *testing.T) {
	t.Parallel()

	fs, path := writeRules(t, "!please\nmosam => mausam\n")

	rewriter, err := Load(fs, path, 10, bangSyntax{})
	require.NoError(t, err)
	assert.Equal(t, "mausam batao", rewriter.Rewrite("please mosam batao"))
}

func TestNilRewriterIsIdentity(t *testing.T) {
	t.Parallel()

	var rewriter *Rewriter
	assert.Equal(t, "time", rewriter.Rewrite("time"))
	assert.Zero(t, rewriter.Len())
}
