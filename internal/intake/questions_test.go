package intake

import (
	"strings"
	"testing"
)

func TestNormalizeQuestions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "bullets and numbering stripped",
			raw:  "1. 从什么时候开始的？\n- 有没有发烧？\n* 目前在用药吗？",
			want: []string{"从什么时候开始的？", "有没有发烧？", "目前在用药吗？"},
		},
		{
			name: "ascii question mark converted",
			raw:  "从什么时候开始的?",
			want: []string{"从什么时候开始的？"},
		},
		{
			name: "statements dropped",
			raw:  "建议您多喝水。\n有没有发烧？",
			want: []string{"有没有发烧？"},
		},
		{
			name: "blank input",
			raw:  "  \n",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeQuestions(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestFilterRedundantQuestions(t *testing.T) {
	questions := []string{"有没有发烧？", "有没有过敏？", "头晕和体位有关吗？"}

	got := filterRedundantQuestions(questions, "患者说没有发烧，也无过敏")
	if len(got) != 1 || got[0] != "头晕和体位有关吗？" {
		t.Fatalf("got %v", got)
	}

	// whitespace in the evidence must not defeat the detectors
	got = filterRedundantQuestions([]string{"有没有发烧？"}, "没 有 发 烧")
	if len(got) != 0 {
		t.Fatalf("expected fever question filtered, got %v", got)
	}
}

func TestPickThreeQuestionsExactlyThree(t *testing.T) {
	out := pickThreeQuestions("有没有发烧？", "")
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 questions, got %d: %q", len(lines), out)
	}
	for _, line := range lines {
		if !strings.HasSuffix(line, "？") {
			t.Fatalf("question %q does not end with ？", line)
		}
	}
}

func TestPickThreeQuestionsRespectsEvidence(t *testing.T) {
	out := pickThreeQuestions("有没有发烧？\n有没有过敏？\n胸闷吗？", "没有发烧，无过敏，不胸闷")
	if strings.Contains(out, "发烧？") && strings.Contains(out, "有没有发烧") {
		t.Fatalf("answered topic resurfaced: %q", out)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 questions, got %q", out)
	}
}

func TestPickThreeQuestionsGarbageInput(t *testing.T) {
	out := pickThreeQuestions("好的，我知道了。", "")
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected pool fallback to 3 questions, got %q", out)
	}
}
