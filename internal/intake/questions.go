package intake

import (
	"regexp"
	"strings"
)

// answeredSignal pairs a "topic already answered" detector, run over the
// whitespace-stripped evidence, with the patterns that identify a question
// about that topic.
type answeredSignal struct {
	answered  *regexp.Regexp
	questions []*regexp.Regexp
}

var answeredSignals = []answeredSignal{
	{
		answered:  regexp.MustCompile(`没(有)?发(烧|热)|无发(烧|热)|不发(烧|热)|体温(正常|不高)|无热`),
		questions: []*regexp.Regexp{regexp.MustCompile(`发烧|发热|体温`)},
	},
	{
		answered:  regexp.MustCompile(`没(有)?(胸痛|胸闷)|无(胸痛|胸闷)|不(胸痛|胸闷)`),
		questions: []*regexp.Regexp{regexp.MustCompile(`胸痛|胸闷`)},
	},
	{
		answered:  regexp.MustCompile(`没(有)?(气短|气促|喘|呼吸困难)|无(气短|气促|喘|呼吸困难)|不(气短|气促|喘)`),
		questions: []*regexp.Regexp{regexp.MustCompile(`气短|气促|呼吸困难|喘`)},
	},
	{
		answered:  regexp.MustCompile(`没(有)?(说话不清|口齿不清|单侧无力|偏瘫|嘴歪|麻木)|无(说话不清|口齿不清|单侧无力|偏瘫|嘴歪|麻木)`),
		questions: []*regexp.Regexp{regexp.MustCompile(`说话不清|口齿不清|单侧无力|偏瘫|嘴歪|麻木`)},
	},
	{
		answered:  regexp.MustCompile(`没(有)?(晕厥|黑蒙|昏厥)|无(晕厥|黑蒙|昏厥)`),
		questions: []*regexp.Regexp{regexp.MustCompile(`晕厥|黑蒙|昏厥`)},
	},
	{
		answered:  regexp.MustCompile(`(目前|现在|暂时)?(还)?没(有)?(服用|吃)(降压药|降糖药|药)|未(服药|用药)`),
		questions: []*regexp.Regexp{regexp.MustCompile(`在用(什么|哪些)?药|目前(有没有)?用药|服药|降压药|降糖药|二甲双胍|胰岛素`)},
	},
	{
		answered:  regexp.MustCompile(`没(有)?(过敏|药物过敏)|无(过敏|药物过敏)`),
		questions: []*regexp.Regexp{regexp.MustCompile(`过敏|药物过敏`)},
	},
}

// questionPool fills short model output back up to three questions.
var questionPool = []string{
	"您现在最主要哪里不舒服？",
	"从什么时候开始的？最近有没有加重或缓解？",
	"最近血压/心率大概是多少？有连续测量记录吗？",
	"头晕时是天旋地转还是发飘/站不稳？和体位变化有关吗？",
	"有没有恶心/呕吐/腹泻或明显脱水（口干、尿少）？",
	"今天饮食、睡眠和饮水情况如何？",
	"有没有发烧/胸痛/气短/说话不清/单侧无力/黑蒙晕厥等情况？",
	"目前有没有在用药或已知过敏？",
}

var (
	bulletPrefix = regexp.MustCompile(`(?m)^\s*[-*]\s+`)
	numberPrefix = regexp.MustCompile(`(?m)^\s*\d+[.、]\s*`)
)

// normalizeQuestions turns raw model output into clean question lines ending
// with a full-width question mark.
func normalizeQuestions(raw string) []string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = bulletPrefix.ReplaceAllString(normalized, "")
	normalized = numberPrefix.ReplaceAllString(normalized, "")

	var out []string
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "?") {
			line = strings.TrimSuffix(line, "?") + "？"
		}
		if strings.HasSuffix(line, "？") {
			out = append(out, line)
		}
	}
	return out
}

// filterRedundantQuestions drops questions about topics the evidence already
// answers.
func filterRedundantQuestions(questions []string, evidence string) []string {
	stripped := whitespacePattern.ReplaceAllString(evidence, "")
	var out []string
	for _, q := range questions {
		if questionAnswered(q, stripped) {
			continue
		}
		out = append(out, q)
	}
	return out
}

func questionAnswered(question, strippedEvidence string) bool {
	for _, sig := range answeredSignals {
		if !sig.answered.MatchString(strippedEvidence) {
			continue
		}
		for _, pattern := range sig.questions {
			if pattern.MatchString(question) {
				return true
			}
		}
	}
	return false
}

// pickThreeQuestions normalizes and filters model output, tops it up from
// the pool, and renders exactly three questions, one per line.
func pickThreeQuestions(raw, evidence string) string {
	questions := filterRedundantQuestions(normalizeQuestions(raw), evidence)
	if len(questions) > 3 {
		questions = questions[:3]
	}
	if len(questions) < 3 {
		for _, candidate := range questionPool {
			if len(questions) >= 3 {
				break
			}
			if contains(questions, candidate) {
				continue
			}
			if len(filterRedundantQuestions([]string{candidate}, evidence)) == 0 {
				continue
			}
			questions = append(questions, candidate)
		}
	}
	for len(questions) < 3 {
		questions = append(questions, questionPool[0])
	}
	return strings.Join(questions[:3], "\n")
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
