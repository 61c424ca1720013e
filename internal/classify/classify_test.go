package classify

import (
	"strings"
	"testing"
)

// run classifies parts in order and flushes at the end.
func run(parts ...string) (Chunk, State) {
	var s State
	for _, p := range parts {
		_, s = Classify(s, p)
	}
	return Flush(s)
}

func TestClassify_EndToEndFencedJavaScript(t *testing.T) {
	c, s := run("```javascript\n", "const app=1;", "```")
	if c.Content != "const app=1;" {
		t.Errorf("expected fence markers stripped, got %q", c.Content)
	}
	if c.Kind != JavaScript {
		t.Errorf("expected javascript, got %q", c.Kind)
	}
	if s.InBlock || c.InCodeBlock {
		t.Error("block should be closed")
	}
}

func TestClassify_HTMLStartsWithAngle(t *testing.T) {
	c, _ := run("<div>", "a", "</div>")
	if c.Kind != HTML {
		t.Errorf("expected html, got %q", c.Kind)
	}
	if c.Content != "<div>a</div>" {
		t.Errorf("unexpected content %q", c.Content)
	}
}

func TestClassify_LeadingWhitespaceBeforeHTML(t *testing.T) {
	var s State
	c, s := Classify(s, "\n  ")
	if c.Kind != Unknown {
		t.Errorf("whitespace alone should not decide the kind, got %q", c.Kind)
	}
	c, _ = Classify(s, "<p>hi</p>")
	if c.Kind != HTML {
		t.Errorf("expected html, got %q", c.Kind)
	}
	if c.Content != "\n  <p>hi</p>" {
		t.Errorf("unexpected content %q", c.Content)
	}
}

func TestClassify_PlaintextPassthrough(t *testing.T) {
	c, _ := run("Sure, ", "use `x` here.\n", "Bye")
	if c.Kind != Plaintext {
		t.Errorf("expected plaintext, got %q", c.Kind)
	}
	if c.Content != "Sure, use `x` here.\nBye" {
		t.Errorf("plaintext should pass through unchanged, got %q", c.Content)
	}
}

func TestClassify_FencedBlockAnySplit(t *testing.T) {
	doc := "```python\nprint(1)\nprint(2)\n```\n<p>after</p>"
	want, _ := run(doc)
	if want.Content != "print(1)\nprint(2)\n<p>after</p>" {
		t.Fatalf("unexpected whole-document content %q", want.Content)
	}
	if want.Kind != HTML {
		t.Fatalf("expected html after the block closes, got %q", want.Kind)
	}

	for i := 0; i <= len(doc); i++ {
		for j := i; j <= len(doc); j++ {
			got, _ := run(doc[:i], doc[i:j], doc[j:])
			if got.Content != want.Content || got.Kind != want.Kind {
				t.Fatalf("split at %d,%d: got (%q, %q), want (%q, %q)",
					i, j, got.Content, got.Kind, want.Content, want.Kind)
			}
		}
	}
}

func TestClassify_ByteByByte(t *testing.T) {
	doc := "Here:\n```ts\nlet a = `x`;\n```\n\n```css\np { color: red }\n```\n"
	parts := strings.Split(doc, "")
	got, _ := run(parts...)
	want, _ := run(doc)
	if got.Content != want.Content || got.Kind != want.Kind || got.InCodeBlock != want.InCodeBlock {
		t.Errorf("byte-by-byte result %+v differs from whole %+v", got, want)
	}
	if !strings.Contains(want.Content, "let a = `x`;") {
		t.Errorf("inline backticks inside a block should survive, got %q", want.Content)
	}
}

func TestClassify_NoMarkerFlashWhileStreaming(t *testing.T) {
	var s State
	for _, p := range []string{"`", "``", "js"} {
		var c Chunk
		c, s = Classify(s, p)
		if c.Content != "" {
			t.Fatalf("partial fence %q leaked into content: %q", p, c.Content)
		}
	}
	c, _ := Classify(s, "\nx")
	if c.Content != "x" || c.Kind != JavaScript {
		t.Errorf("expected javascript 'x', got %q %q", c.Kind, c.Content)
	}
}

func TestClassify_CSSWrappedInStyleTag(t *testing.T) {
	c, _ := run("```css\n", "body { margin: 0 }\n", "```")
	if c.Content != "<style>\nbody { margin: 0 }</style>" {
		t.Errorf("unexpected css content %q", c.Content)
	}
	if c.Kind != CSS {
		t.Errorf("expected css, got %q", c.Kind)
	}
}

func TestClassify_CSSInsideHTMLKeepsHTML(t *testing.T) {
	c, _ := run("<div>hi</div>\n", "```css\n", "div { color: red }\n```")
	if c.Kind != HTML {
		t.Errorf("stylesheet inside a document should keep html, got %q", c.Kind)
	}
	if c.Content != "<div>hi</div>\n<style>\ndiv { color: red }</style>" {
		t.Errorf("unexpected content %q", c.Content)
	}
}

func TestClassify_UnknownFenceFallsBackToPlaintext(t *testing.T) {
	doc := "```brainfuck\n+++.\n```"
	c, _ := run(doc)
	if c.Kind != Plaintext {
		t.Errorf("expected plaintext fallback, got %q", c.Kind)
	}
	if c.Content != doc {
		t.Errorf("unknown fences should pass through unchanged, got %q", c.Content)
	}
}

func TestClassify_LongestMatchFirst(t *testing.T) {
	cases := map[string]Language{
		"```javascript\n": JavaScript,
		"```java\n":       Java,
		"```json\n":       JSON,
		"```js\n":         JavaScript,
		"```HTML\n":       HTML,
		"```py\n":         Python,
		"```golang\n":     Go,
	}
	for in, want := range cases {
		c, _ := Classify(State{}, in)
		if c.Kind != want || c.BlockLanguage != want {
			t.Errorf("%q: expected %q, got kind %q block %q", in, want, c.Kind, c.BlockLanguage)
		}
		if !c.InCodeBlock {
			t.Errorf("%q: expected an open block", in)
		}
	}
}

func TestClassify_Idempotent(t *testing.T) {
	_, mid := Classify(State{}, "```html\n<p>")
	states := []State{{}, mid, {Pending: "``"}, {InBlock: true, BlockLang: CSS, Kind: CSS}}
	inputs := []string{"", "`", "```", "x\n```\n", "<b>", "```python\n"}

	for _, s := range states {
		for _, in := range inputs {
			c1, s1 := Classify(s, in)
			c2, s2 := Classify(s, in)
			if c1 != c2 || s1 != s2 {
				t.Errorf("Classify(%+v, %q) not idempotent", s, in)
			}
		}
	}
}

func TestClassify_DoesNotMutatePriorState(t *testing.T) {
	prior := State{Pending: "``", Content: "abc"}
	snapshot := prior
	Classify(prior, "`")
	if prior != snapshot {
		t.Error("prior state was mutated")
	}
}

func TestFlush_ReleasesUnterminatedFenceAsText(t *testing.T) {
	c, s := Classify(State{}, "```htm")
	if c.Content != "" {
		t.Fatalf("unterminated fence should be held, got %q", c.Content)
	}
	c, _ = Flush(s)
	if c.Content != "```htm" || c.Kind != Plaintext {
		t.Errorf("expected plaintext '```htm', got %q %q", c.Kind, c.Content)
	}
}

func TestFlush_InsideBlockKeepsHeldBytes(t *testing.T) {
	c, _ := run("```python\nx = 1\n``")
	if c.Content != "x = 1\n``" {
		t.Errorf("unexpected content %q", c.Content)
	}
	if !c.InCodeBlock {
		t.Error("block was never closed")
	}
}

func TestFlush_DropsNewlineAfterFinalFence(t *testing.T) {
	c, _ := run("```go\nfunc main() {}\n```\n")
	if c.Content != "func main() {}" {
		t.Errorf("unexpected content %q", c.Content)
	}
	if c.Kind != Go {
		t.Errorf("whitespace after a block should keep its kind, got %q", c.Kind)
	}
}

func TestClassify_ProseAfterBlockIsPlaintext(t *testing.T) {
	c, _ := run("```python\nx\n```", "\nDone.")
	if c.Kind != Plaintext {
		t.Errorf("expected plaintext after close, got %q", c.Kind)
	}
	if c.Content != "x\nDone." {
		t.Errorf("unexpected content %q", c.Content)
	}
}

func TestClassify_LongUnterminatedFenceLineIsText(t *testing.T) {
	line := "```" + strings.Repeat("a", maxFenceLine)
	c, _ := Classify(State{}, line)
	if c.Content != line {
		t.Errorf("over-long fence line should be emitted as text, got %q", c.Content)
	}
}

func TestParseLanguage(t *testing.T) {
	if ParseLanguage("ts") != TypeScript {
		t.Error("expected ts alias")
	}
	if ParseLanguage("cobol") != Plaintext {
		t.Error("unknown names should map to plaintext")
	}
}
