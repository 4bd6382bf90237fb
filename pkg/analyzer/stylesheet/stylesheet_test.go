package stylesheet

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_RepeatedProperty(t *testing.T) {
	res := New().AnalyzeWithMarkup(".a { color: red; color: blue; }", "")
	require.Len(t, res.RepeatedProperties, 1)
	assert.Equal(t, PropertyFinding{Selector: ".a", Line: 1, Property: "color"}, res.RepeatedProperties[0])
	assert.Empty(t, res.InvalidProperties)
	assert.Empty(t, res.UnknownProperties)
}

func TestAnalyze_MissingColon(t *testing.T) {
	res := New().AnalyzeWithMarkup(".a { colorred }", "")
	require.Len(t, res.InvalidProperties, 1)
	assert.Equal(t, PropertyFinding{Selector: ".a", Line: 1, Property: "colorred"}, res.InvalidProperties[0])
}

func TestAnalyze_MultiLineBlockLines(t *testing.T) {
	src := "body { margin: 0 }\n\n.a {\n  color: red;\n  /* note */\n  colr: blue;\n}\n"
	res := New().AnalyzeWithMarkup(src, "")

	assert.Equal(t, []string{"body", ".a"}, res.Selectors)
	assert.Equal(t, []int{3}, res.SelectorLines[".a"])
	require.Len(t, res.UnknownProperties, 1)
	assert.Equal(t, PropertyFinding{Selector: ".a", Line: 6, Property: "colr", Suggestion: "color"}, res.UnknownProperties[0])
}

func TestAnalyze_UnknownWithoutSuggestion(t *testing.T) {
	res := New().AnalyzeWithMarkup("p { zzzzzz: 1 }", "")
	require.Len(t, res.UnknownProperties, 1)
	assert.Equal(t, "zzzzzz", res.UnknownProperties[0].Property)
	assert.Empty(t, res.UnknownProperties[0].Suggestion)
}

func TestAnalyze_SuggestionsDisabled(t *testing.T) {
	res := New(WithSuggestionThreshold(2)).AnalyzeWithMarkup("p { colr: red }", "")
	require.Len(t, res.UnknownProperties, 1)
	assert.Empty(t, res.UnknownProperties[0].Suggestion)
}

func TestAnalyze_DuplicatedSelectors(t *testing.T) {
	res := New().AnalyzeWithMarkup(".b { color: red }\n.a { color: red }\n.b { width: 1px }\n.b { height: 1px }\n", "")
	assert.Equal(t, []string{".b"}, res.DuplicatedSelectors)
	assert.Equal(t, []int{1, 3, 4}, res.SelectorLines[".b"])
	assert.Empty(t, res.InvalidSelectors)
}

func TestAnalyze_UnusedSelectors(t *testing.T) {
	css := ".a { color: red }\n.b { color: red }\n.c { color: red }\n#main { width: 1px }\n#gone { width: 1px }\ndiv { display: block }\n"
	html := `<div id="main" class="a  b"><span class="x"></span></div>`

	res := New(WithMarkup(html)).AnalyzeWithMarkup(css, html)
	assert.Equal(t, []string{".c", "#gone"}, res.UnusedSelectors)

	viaOption, err := New(WithMarkup(html)).Analyze(context.Background(), css)
	require.NoError(t, err)
	assert.Equal(t, res, viaOption)
}

func TestAnalyze_NoMarkupNoUnusedSelectors(t *testing.T) {
	res := New().AnalyzeWithMarkup(".never { color: red }", "")
	assert.Empty(t, res.UnusedSelectors)
}

func TestAnalyze_EmptyInput(t *testing.T) {
	res, err := New().Analyze(context.Background(), "")
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 8)
	for k, v := range decoded {
		require.NotNil(t, v, k)
		switch val := v.(type) {
		case []any:
			assert.Empty(t, val, k)
		case map[string]any:
			assert.Empty(t, val, k)
		default:
			t.Errorf("key %s has unexpected type %T", k, v)
		}
	}
}

func TestBlocks(t *testing.T) {
	blocks := Blocks("a{x:1}\n\n#id\n{\n y: 2 }")
	require.Len(t, blocks, 2)
	assert.Equal(t, Block{Selector: "a", Line: 1, Body: "x:1", BodyLine: 1}, blocks[0])
	assert.Equal(t, "#id", blocks[1].Selector)
	assert.Equal(t, 3, blocks[1].Line)
	assert.Equal(t, 4, blocks[1].BodyLine)
}
