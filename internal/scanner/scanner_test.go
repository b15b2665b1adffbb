package scanner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdxjjb/circuitsim/internal/names"
	"github.com/pdxjjb/circuitsim/internal/token"
)

func scanAll(t *testing.T, src string) ([]token.Symbol, *names.Table) {
	t.Helper()
	tab := names.New()
	token.RegisterKeywords(tab)
	s := New(strings.NewReader(src), tab)

	var out []token.Symbol
	for {
		sym, err := s.NextToken()
		require.NoError(t, err)
		out = append(out, sym)
		if sym.Kind == token.EOF {
			break
		}
	}
	return out, tab
}

func TestPunctuationAndKeywords(t *testing.T) {
	toks, tab := scanAll(t, "DEVICES: CLOCK CK(2);")

	kinds := make([]token.Kind, len(toks))
	for i, tk := range toks {
		kinds[i] = tk.Kind
	}
	require.Equal(t, []token.Kind{
		token.KEYWORD, token.COLON, token.KEYWORD, token.NAME,
		token.BRACK_OPEN, token.NUMBER, token.BRACK_CLOSE, token.SEMICOLON, token.EOF,
	}, kinds)

	name, ok := tab.GetString(toks[3].ID)
	require.True(t, ok)
	require.Equal(t, "CK", name)
	require.Equal(t, 2, toks[5].Number)
}

func TestLineCommentSkipped(t *testing.T) {
	toks, _ := scanAll(t, "CLOCK # this is a comment\nCK(2);")
	require.Equal(t, token.KEYWORD, toks[0].Kind)
	require.Equal(t, token.NAME, toks[1].Kind)
}

func TestBlockCommentTakesPrecedence(t *testing.T) {
	toks, _ := scanAll(t, "AND ### this is a\nblock comment ### A1(2);")
	require.Equal(t, token.KEYWORD, toks[0].Kind)
	require.Equal(t, token.NAME, toks[1].Kind)
}

func TestLineColumnTracking(t *testing.T) {
	toks, _ := scanAll(t, "AND\n  A1(2);")
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 1, toks[0].Column)

	require.Equal(t, 2, toks[1].Line)
	require.Equal(t, 3, toks[1].Column) // "  A1" -> A1 starts at column 3
}

func TestFatalOnUnexpectedCharacter(t *testing.T) {
	tab := names.New()
	token.RegisterKeywords(tab)
	s := New(strings.NewReader("A1 $ B1"), tab)

	_, err := s.NextToken() // A1
	require.NoError(t, err)

	_, err = s.NextToken() // $
	require.Error(t, err)
	var fe *FatalError
	require.ErrorAs(t, err, &fe)
}

func TestDeterminism(t *testing.T) {
	src := "DEVICES:\n  CLOCK CK(2);\nCONNECTIONS:\nMONITOR CK;"
	first, _ := scanAll(t, src)
	second, _ := scanAll(t, src)
	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].Kind, second[i].Kind)
		require.Equal(t, first[i].Line, second[i].Line)
		require.Equal(t, first[i].Column, second[i].Column)
	}
}
