package textnorm

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vietscribe-go/internal/domain/transcript"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"garbage and broken compound", "chia. Sẻ rất nhiều ;;; với các bạn", "Chia sẻ rất nhiều với các bạn."},
		{"empty", "", ""},
		{"whitespace only", "   \t ", ""},
		{"noise only", "[âm nhạc]", ""},
		{"bracket noise", "xin chào [tiếng ồn] các bạn", "Xin chào các bạn."},
		{"fillers", "ờ hôm nay ừ chúng ta họp", "Hôm nay chúng ta họp."},
		{"dictionary", "tôi học chứng cấp 3 ở đây", "Tôi học trường cấp 3 ở đây."},
		{"tone fix", "một ca sĩ nối tiếng", "Một ca sĩ nổi tiếng."},
		{"period inside word pair", "chia.sẻ kinh nghiệm", "Chia sẻ kinh nghiệm."},
		{"lone comma dropped", "xin chào , các bạn", "Xin chào các bạn."},
		{"space moved after comma", "xin chào các bạn ,vâng", "Xin chào các bạn, vâng."},
		{"keeps question mark", "anh khỏe không ?", "Anh khỏe không?"},
		{"keeps ellipsis", "để tôi nghĩ…", "Để tôi nghĩ…"},
		{"trailing comma", "và sau đó,", "Và sau đó."},
		{"capitalizes sentences", "xin chào. hôm nay trời đẹp! bạn thì sao?", "Xin chào. Hôm nay trời đẹp! Bạn thì sao?"},
		{"real sentence boundary kept", "tôi đồng ý. Bạn nói tiếp đi", "Tôi đồng ý. Bạn nói tiếp đi."},
		{"leading punctuation", ",, . được rồi", "Được rồi."},
		{"spaced periods", "hết rồi. . .", "Hết rồi."},
		{"doubled marks", "thật sao!!", "Thật sao!"},
		{"decimal comma untouched", "giá là 1,5 triệu", "Giá là 1,5 triệu."},
		{"nfc", "Việt Nam", "Việt Nam."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"chia. Sẻ rất nhiều ;;; với các bạn",
		"hôm. nay ,, chúng ta . . . họp",
		"TP.HCM là thành phố lớn",
		"!!! ??? ...",
		"(xin chào.)",
		"a . ; b :: c",
	}
	alphabet := []rune("aăâbcdđeêhiklmnoôơpqrstuưvxyàáảãạệộờừ .,;:!?…[]\t")
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := rng.Intn(40)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		inputs = append(inputs, b.String())
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestBrokenSentences(t *testing.T) {
	lexicon := DefaultRules()
	lexicon.BrokenSentences.Mode = BrokenLexicon
	lexiconNormalizer, err := New(lexicon)
	require.NoError(t, err)

	tests := []struct {
		name string
		n    *Normalizer
		in   string
		want string
	}{
		{"unlisted split compound", Default(), "chúng ta cùng thảo. Luận vấn đề", "Chúng ta cùng thảo luận vấn đề."},
		{"split before capitalized word", Default(), "tôi đồng ý. Bạn nói tiếp đi", "Tôi đồng ý bạn nói tiếp đi."},
		{"lowercase continuation kept", Default(), "tôi về. đi thôi", "Tôi về. Đi thôi."},
		{"single capital letter kept", Default(), "điểm số là. A cộng", "Điểm số là. A cộng."},
		{"listed compound before lowercase", Default(), "chia. sẻ với nhau", "Chia sẻ với nhau."},
		{"lexicon skips unlisted split", lexiconNormalizer, "chúng ta cùng thảo. Luận vấn đề", "Chúng ta cùng thảo. Luận vấn đề."},
		{"lexicon joins listed compound", lexiconNormalizer, "chia. Sẻ rất nhiều", "Chia sẻ rất nhiều."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.n.Normalize(tt.in))
		})
	}
}

func TestNormalizeDocument_KeepsSentenceBoundaries(t *testing.T) {
	n := Default()
	joined := "Xin chào các bạn. Hôm nay ừ nói về âm nhạc"
	assert.Equal(t, "Xin chào các bạn. Hôm nay nói về âm nhạc.", n.NormalizeDocument(joined))
	assert.Equal(t, "Xin chào các bạn hôm nay nói về âm nhạc.", n.Normalize(joined))
}

func TestStagesOrder(t *testing.T) {
	assert.Equal(t, []string{
		"unicode", "noise", "garbage", "broken_sentences",
		"corrections", "punctuation", "capitalization", "whitespace",
	}, Default().Stages())
}

func TestStage_RecoversFromPanic(t *testing.T) {
	s := Stage{Name: "boom", Apply: func(string) string { panic("boom") }}
	assert.Equal(t, "giữ nguyên", s.run("giữ nguyên"))
}

func TestNormalizeSegments_DropsEmpty(t *testing.T) {
	in := []transcript.Segment{
		{Start: 0, End: 1, Text: "xin chào"},
		{Start: 1, End: 2, Text: "[âm nhạc]"},
		{Start: 2, End: 3, Text: "tạm biệt"},
	}
	out := Default().NormalizeSegments(in)
	require.Len(t, out, 2)
	assert.Equal(t, "Xin chào.", out[0].Text)
	assert.Equal(t, 2.0, out[1].Start)
	assert.Equal(t, "xin chào", in[0].Text)
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
fillers: [ờ]
broken_sentences:
  compounds: [đi học]
dictionary:
  - match: con mèo
    replace: con chó
patterns:
  - pattern: 'xe\s+đạp'
    replace: xe máy
    word: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	n, err := New(rules)
	require.NoError(t, err)

	assert.Equal(t, "Con chó đi học bằng xe máy.", n.Normalize("ờ Con Mèo đi. Học bằng xe   đạp"))
	assert.Equal(t, "Xe đạpđiện.", n.Normalize("xe đạpđiện"), "word rule must not match inside a longer word")
}

func TestParseRules_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "fillers: [unterminated"},
		{"bad mode", "broken_sentences:\n  mode: sometimes"},
		{"compound arity", "broken_sentences:\n  compounds: [một]"},
		{"dictionary without match", "dictionary:\n  - replace: x"},
		{"pattern does not compile", "patterns:\n  - pattern: '('\n    replace: x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
