package sanitize

import (
	"reflect"
	"strings"
	"testing"
)

func TestValue_TrimsAndTruncatesStrings(t *testing.T) {
	if got := Value("  hello  "); got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}

	long := strings.Repeat("a", MaxStringLen+1)
	got := Value(long).(string)
	if len(got) != MaxStringLen {
		t.Fatalf("len = %d, want %d", len(got), MaxStringLen)
	}

	atLimit := strings.Repeat("b", MaxStringLen)
	if got := Value(atLimit).(string); len(got) != MaxStringLen {
		t.Fatalf("string at the limit must survive intact, len = %d", len(got))
	}
}

func TestValue_TruncatesByCodePoint(t *testing.T) {
	// 10001 two-byte runes; truncation must not split one
	long := strings.Repeat("é", MaxStringLen+1)
	got := Value(long).(string)
	if n := len([]rune(got)); n != MaxStringLen {
		t.Fatalf("rune count = %d, want %d", n, MaxStringLen)
	}
	if !strings.HasSuffix(got, "é") {
		t.Fatal("truncation split a multi-byte rune")
	}
}

func TestValue_CapsSlices(t *testing.T) {
	in := make([]any, MaxSliceLen+1)
	for i := range in {
		in[i] = "  x  "
	}

	got := Value(in).([]any)
	if len(got) != MaxSliceLen {
		t.Fatalf("len = %d, want %d", len(got), MaxSliceLen)
	}
	// retained elements are sanitized too
	if got[0] != "x" {
		t.Fatalf("element not sanitized: %q", got[0])
	}
}

func TestValue_CapsMapKeys(t *testing.T) {
	in := make(map[string]any, MaxMapKeys+1)
	for i := 0; i < MaxMapKeys+1; i++ {
		in[strings.Repeat("k", i+1)] = i
	}

	got := Value(in).(map[string]any)
	if len(got) != MaxMapKeys {
		t.Fatalf("len = %d, want %d", len(got), MaxMapKeys)
	}
}

func TestValue_DropsOversizedKeys(t *testing.T) {
	in := map[string]any{
		"title":                          "  Bonjour  ",
		strings.Repeat("k", MaxKeyLen+1): "dropped",
	}

	got := Value(in).(map[string]any)
	if _, ok := got[strings.Repeat("k", MaxKeyLen+1)]; ok {
		t.Fatal("oversized key survived")
	}
	if got["title"] != "Bonjour" {
		t.Fatalf("title = %q, want trimmed value", got["title"])
	}
}

func TestValue_Recursive(t *testing.T) {
	in := map[string]any{
		"course": map[string]any{
			"title": "  A1 French  ",
			"tags":  []any{"  beginner  ", "  grammar  "},
		},
	}

	want := map[string]any{
		"course": map[string]any{
			"title": "A1 French",
			"tags":  []any{"beginner", "grammar"},
		},
	}

	if got := Value(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestValue_PassthroughScalars(t *testing.T) {
	for _, v := range []any{42, 3.14, true, nil} {
		if got := Value(v); got != v {
			t.Fatalf("Value(%v) = %v, want passthrough", v, got)
		}
	}
}

func TestValue_Idempotent(t *testing.T) {
	in := map[string]any{
		"title":       "  Bonjour  ",
		"level":       "beginner",
		"duration":    12.0,
		"published":   false,
		"description": strings.Repeat("d", MaxStringLen+500),
		"tags":        []any{"  a  ", "b", 3.0},
		// Truncation lands just past the space, leaving it trailing.
		"notes": strings.Repeat("a", MaxStringLen-1) + " " + "bbbb",
	}

	once := Value(in)
	twice := Value(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatal("sanitizing twice changed the value")
	}
	notes := once.(map[string]any)["notes"].(string)
	if strings.HasSuffix(notes, " ") {
		t.Fatalf("truncated string kept trailing whitespace: len=%d", len(notes))
	}
}

func TestHTML_StripsScripts(t *testing.T) {
	in := `<p>Bonjour <strong>le monde</strong><script>alert(1)</script></p>`
	got := HTML(in)
	if strings.Contains(got, "script") || strings.Contains(got, "alert") {
		t.Fatalf("script survived: %q", got)
	}
	if !strings.Contains(got, "<strong>le monde</strong>") {
		t.Fatalf("allowed formatting removed: %q", got)
	}
}

func TestHTML_DropsEventHandlersAndUnknownTags(t *testing.T) {
	in := `<p onclick="steal()">hi</p><iframe src="x"></iframe><ul><li>un</li></ul>`
	got := HTML(in)
	if strings.Contains(got, "onclick") || strings.Contains(got, "iframe") {
		t.Fatalf("unsafe markup survived: %q", got)
	}
	if !strings.Contains(got, "<li>un</li>") {
		t.Fatalf("list formatting removed: %q", got)
	}
}
