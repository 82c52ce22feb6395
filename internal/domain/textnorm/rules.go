package textnorm

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"vietscribe-go/internal/platform/errors"
)

//go:embed rules/default.yaml
var defaultRulesYAML []byte

// Rule is one correction. Literal rules match case-insensitively. Regex rules
// are case-insensitive too; with Word set the pattern must stand alone between
// non-letters and Replace is taken literally.
type Rule struct {
	Match       string `yaml:"match,omitempty"`
	Pattern     string `yaml:"pattern,omitempty"`
	Replace     string `yaml:"replace"`
	Word        bool   `yaml:"word,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Regex reports whether the rule is a pattern rule.
func (r Rule) Regex() bool { return r.Pattern != "" }

// BrokenSentenceMode selects how "word. Word" splits are rejoined. Listed
// compounds are rejoined in both modes, even before a lowercase word.
type BrokenSentenceMode string

const (
	// BrokenGeneric rejoins every lowercase word followed by ". Capitalized".
	BrokenGeneric BrokenSentenceMode = "generic"
	// BrokenLexicon rejoins listed compounds only.
	BrokenLexicon BrokenSentenceMode = "lexicon"
)

// Rules is the data side of the normalizer.
type Rules struct {
	Version         int      `yaml:"version"`
	Fillers         []string `yaml:"fillers"`
	BrokenSentences struct {
		Mode      BrokenSentenceMode `yaml:"mode"`
		Compounds []string           `yaml:"compounds"`
	} `yaml:"broken_sentences"`
	Dictionary []Rule `yaml:"dictionary"`
	Patterns   []Rule `yaml:"patterns"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() Rules {
	rules, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("textnorm: embedded rules invalid: %v", err))
	}
	return rules
}

// LoadRules reads a rule file.
func LoadRules(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, errors.Wrap(errors.KindConfig, "textnorm.load_rules", "failed to read rules file", err)
	}
	return ParseRules(raw)
}

// ParseRules decodes and validates a YAML rule set.
func ParseRules(raw []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, errors.Wrap(errors.KindConfig, "textnorm.parse_rules", "invalid rules yaml", err)
	}
	if _, err := compile(rules); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
	literal     bool
}

func (c compiledRule) apply(s string) string {
	if c.literal {
		return c.re.ReplaceAllLiteralString(s, c.replacement)
	}
	return c.re.ReplaceAllString(s, c.replacement)
}

type compiledRules struct {
	fillers    map[string]struct{}
	mode       BrokenSentenceMode
	compounds  map[string]struct{}
	dictionary []compiledRule
	patterns   []compiledRule
}

const nonWord = `[^\p{L}\p{N}_]`

func compile(rules Rules) (*compiledRules, error) {
	c := &compiledRules{
		fillers:   make(map[string]struct{}, len(rules.Fillers)),
		compounds: make(map[string]struct{}, len(rules.BrokenSentences.Compounds)),
		mode:      rules.BrokenSentences.Mode,
	}
	switch c.mode {
	case "":
		c.mode = BrokenGeneric
	case BrokenGeneric, BrokenLexicon:
	default:
		return nil, errors.New(errors.KindConfig, "textnorm.compile", fmt.Sprintf("unknown broken_sentences mode %q", c.mode))
	}

	for _, f := range rules.Fillers {
		if f = strings.ToLower(strings.TrimSpace(norm.NFC.String(f))); f != "" {
			c.fillers[f] = struct{}{}
		}
	}
	for _, pair := range rules.BrokenSentences.Compounds {
		words := strings.Fields(strings.ToLower(norm.NFC.String(pair)))
		if len(words) != 2 {
			return nil, errors.New(errors.KindConfig, "textnorm.compile", fmt.Sprintf("compound %q must have exactly two words", pair))
		}
		c.compounds[words[0]+" "+words[1]] = struct{}{}
	}

	for i, r := range rules.Dictionary {
		if r.Match == "" || r.Regex() {
			return nil, errors.New(errors.KindConfig, "textnorm.compile", fmt.Sprintf("dictionary entry %d needs a literal match", i))
		}
		c.dictionary = append(c.dictionary, compiledRule{
			re:          regexp.MustCompile(`(?i)` + regexp.QuoteMeta(norm.NFC.String(r.Match))),
			replacement: r.Replace,
			literal:     true,
		})
	}

	for i, r := range rules.Patterns {
		if !r.Regex() {
			return nil, errors.New(errors.KindConfig, "textnorm.compile", fmt.Sprintf("pattern entry %d has no pattern", i))
		}
		inner, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, errors.Wrap(errors.KindConfig, "textnorm.compile", fmt.Sprintf("pattern entry %d does not compile", i), err)
		}
		if !r.Word {
			c.patterns = append(c.patterns, compiledRule{
				re:          regexp.MustCompile(`(?i)` + r.Pattern),
				replacement: r.Replace,
			})
			continue
		}
		trailing := inner.NumSubexp() + 2
		c.patterns = append(c.patterns, compiledRule{
			re:          regexp.MustCompile(`(?i)(^|` + nonWord + `)(?:` + r.Pattern + `)(` + nonWord + `|$)`),
			replacement: "${1}" + strings.ReplaceAll(r.Replace, "$", "$$") + "${" + strconv.Itoa(trailing) + "}",
		})
	}
	return c, nil
}
