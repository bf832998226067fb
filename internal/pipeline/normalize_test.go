package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jdprep/pkg/contract"
)

func TestNormalizeDefaultChain(t *testing.T) {
	chain, err := LookupTransforms(nil)
	require.NoError(t, err)
	recs := []contract.Record{
		{Summary: "<p>Returns\tthe current value.</p>\nmore text"},
		{Summary: "Short\n\t  Gets the {@code Foo} instance, or null.\n"},
		{Summary: "tiny"},
	}
	out := Normalize(recs, chain)
	assert.Equal(t, "returns the current value.", out[0].Summary)
	assert.Equal(t, "gets the   code foo  instance  or null.", out[1].Summary)
	assert.Equal(t, "tiny", out[2].Summary)
}

func TestNormalizeStageOrder(t *testing.T) {
	var seen []string
	chain := []Transform{
		{Name: "a", Apply: func(s string) string { seen = append(seen, "a:"+s); return s }},
		{Name: "b", Apply: func(s string) string { seen = append(seen, "b:"+s); return s }},
	}
	Normalize([]contract.Record{{Summary: "1"}, {Summary: "2"}}, chain)
	// 上一步处理完整个序列后才开始下一步
	require.Equal(t, []string{"a:1", "a:2", "b:1", "b:2"}, seen)
}

func TestStripMarkup(t *testing.T) {
	assert.Equal(t, "a b  c", StripMarkup("a<br/>b <i>c"))
	assert.Equal(t, " x ", StripMarkup("<a href=\"y\">x</a>"))
	// 非贪婪、不识别嵌套
	assert.Equal(t, "< >", StripMarkup("<<b>>"))
	assert.Equal(t, "a < b", StripMarkup("a < b"))
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"首行合格", "  first line here\nsecond", "first line here"},
		{"跳过短行", "short\n   \nthe real description", "the real description"},
		{"行内 tab 保留", "\tReturns\tthe value", "Returns\tthe value"},
		{"恰好 8 个字符不合格", "12345678\n123456789", "123456789"},
		{"无合格行时原样返回", " a \n b ", " a \n b "},
		{"多字节按字符计", "中文中文中文中文中\nx", "中文中文中文中文中"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstLine(tt.in))
		})
	}
}

func TestStripSpecialIdempotent(t *testing.T) {
	for _, s := range []string{"it's a.b-c (d)", "Ünïcode ☃ text", "", "already clean ."} {
		once := StripSpecial(s)
		assert.Equal(t, once, StripSpecial(once), s)
		for _, r := range once {
			assert.Contains(t, "abcdefghijklmnopqrstuvwxyz0123456789 .'", string(r))
		}
	}
	assert.Equal(t, "it's a.b c  d ", StripSpecial("it's a.b-c (d)"))
}

func TestLookupTransforms(t *testing.T) {
	chain, err := LookupTransforms([]string{"lowercase", " strip_special "})
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, "strip_special", chain[1].Name)
	require.Equal(t, "a b", chain[1].Apply(chain[0].Apply("A!B")))

	_, err = LookupTransforms([]string{"lowercase", "stem"})
	require.ErrorIs(t, err, contract.ErrConfiguration)
	require.Contains(t, err.Error(), "stem")
}
