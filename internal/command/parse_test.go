package command

import (
	"testing"
)

func TestParseEmptyAndNoise(t *testing.T) {
	for _, text := range []string{
		"",
		"plain prose without anything structured",
		"a set {1, 2, 3} and a dangling { brace",
		`{"files":["a.txt"]}`, // file request, not a command
		`{"command":"Teleport","fileName":"x"}`,
	} {
		if got := Parse(text); len(got) != 0 {
			t.Fatalf("Parse(%q): got %d commands, want 0", text, len(got))
		}
	}
}

func TestParseSingleBareCommand(t *testing.T) {
	text := "Here you go.\n{\"command\":\"Create\",\"fileName\":\"x.txt\",\"content\":\"hi\"}\nDone."
	cmds := Parse(text)
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	c := cmds[0]
	if c.Kind != KindCreate || c.FileName != "x.txt" {
		t.Fatalf("command: %+v", c)
	}
	if c.Content == nil || *c.Content != "hi" {
		t.Fatalf("content: %+v", c.Content)
	}
}

func TestParseThreeInterleavedKeepsOrder(t *testing.T) {
	text := `First I will create a file.
{"command":"Create","fileName":"a.txt","content":"A"}
Then change it. By the way {not json}.
` + "```json\n" + `{"command":"Modify","fileName":"a.txt","oldContent":"A","newContent":"B"}` + "\n```\n" + `
And finally clean up.
{"command":"Delete","fileName":"b.txt"}
`
	cmds := Parse(text)
	if len(cmds) != 3 {
		t.Fatalf("got %d commands, want 3", len(cmds))
	}
	wantKinds := []Kind{KindCreate, KindModify, KindDelete}
	for i, k := range wantKinds {
		if cmds[i].Kind != k {
			t.Fatalf("cmd %d: got kind=%s want=%s", i, cmds[i].Kind, k)
		}
	}
}

func TestParseNestedBracesInsideStrings(t *testing.T) {
	text := `{"command":"Create","fileName":"c.json","content":"{\"nested\":{\"deep\":true}}"}`
	cmds := Parse(text)
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if cmds[0].Content == nil || *cmds[0].Content != `{"nested":{"deep":true}}` {
		t.Fatalf("content: %+v", cmds[0].Content)
	}
}

func TestParseFencedNonJSONIgnored(t *testing.T) {
	text := "```go\n" + `func main() { fmt.Println("{}") }` + "\n```\n"
	if got := Parse(text); len(got) != 0 {
		t.Fatalf("got %d commands from a go fence, want 0", len(got))
	}
}

func TestParseFenceWithSurroundingProse(t *testing.T) {
	text := "I'll delete it:\n```json\n{\"command\":\"Delete\",\"fileName\":\"old.txt\"}\n```\nAll set."
	cmds := Parse(text)
	if len(cmds) != 1 || cmds[0].Kind != KindDelete || cmds[0].FileName != "old.txt" {
		t.Fatalf("commands: %+v", cmds)
	}
}

func TestParseAbsentContentStaysNil(t *testing.T) {
	cmds := Parse(`{"command":"Create","fileName":"x.txt"}`)
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if cmds[0].Content != nil {
		t.Fatalf("content should be nil when the field is absent")
	}
}

func TestParseEmptyStringContentIsPresent(t *testing.T) {
	cmds := Parse(`{"command":"Create","fileName":"x.txt","content":""}`)
	if len(cmds) != 1 || cmds[0].Content == nil || *cmds[0].Content != "" {
		t.Fatalf("commands: %+v", cmds)
	}
}

func TestParseUnterminatedObjectSkipped(t *testing.T) {
	text := `{"command":"Create","fileName":"x.txt","content":"hi"`
	if got := Parse(text); len(got) != 0 {
		t.Fatalf("got %d commands from unterminated object, want 0", len(got))
	}
}
