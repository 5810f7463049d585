package prompt

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/bryanwahyu/docanalyst/internal/domain/ai"
)

const (
	maxFindings      = 8
	summarySentences = 3
)

// typeDetectors classify a document by the vocabulary it uses. Order matters:
// the first detector with the most hits wins ties.
var typeDetectors = []struct {
	docType string
	re      *regexp.Regexp
}{
	{"lab_report", regexp.MustCompile(`(?i)\b(reference range|hemoglobin|glucose|cholesterol|specimen|wbc|rbc|platelets?|creatinine|lab(oratory)? results?)\b`)},
	{"prescription", regexp.MustCompile(`(?i)\b(rx|prescri(bed|ption)|dosage|tablets?|capsules?|refills?|take \d+|\d+\s?mg)\b`)},
	{"discharge_summary", regexp.MustCompile(`(?i)\b(discharge|admitted|admission|hospital course|follow[- ]up)\b`)},
	{"imaging_report", regexp.MustCompile(`(?i)\b(x-?ray|mri|ct scan|ultrasound|radiolog\w*|impression|findings)\b`)},
	{"invoice", regexp.MustCompile(`(?i)\b(invoice|amount due|subtotal|total due|billing|payment terms)\b`)},
	{"contract", regexp.MustCompile(`(?i)\b(agreement|party|parties|hereby|terms and conditions|liabilit(y|ies))\b`)},
	{"letter", regexp.MustCompile(`(?i)\b(dear|sincerely|regards|yours truly)\b`)},
}

// findingDetectors pull sentences worth surfacing as key findings.
var findingDetectors = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(abnormal|elevated|high|low|positive|critical|urgent|out of range)\b`),
	regexp.MustCompile(`(?i)\b(diagnos\w*|impression|conclusion|assessment)\b`),
	regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s?(mg|ml|mmol/l|mg/dl|g/dl|%|bpm|mmhg)\b`),
	regexp.MustCompile(`(?i)\b(due|deadline|by|before|until)\b.*\b\d{1,4}[/-]\d{1,2}([/-]\d{1,4})?\b`),
}

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// AnalyzeDocument inspects document text and returns an analysis following
// the same schema the language model is asked for. It never calls out.
func AnalyzeDocument(in ai.AnalysisInput) ai.Analysis {
	words := CountWords(in.Text)
	out := ai.Analysis{
		DocumentType:    ClassifyDocument(in.Text),
		KeyFindings:     []string{},
		Recommendations: []string{},
		WordCount:       words,
		PageCount:       in.Pages,
	}

	sentences := SplitSentences(in.Text)
	out.Summary = strings.Join(firstN(sentences, summarySentences), " ")

	seen := map[string]bool{}
	for _, s := range sentences {
		if len(out.KeyFindings) >= maxFindings {
			break
		}
		for _, re := range findingDetectors {
			if re.MatchString(s) && !seen[s] {
				out.KeyFindings = append(out.KeyFindings, trim(s, 240))
				seen[s] = true
				break
			}
		}
	}

	out.Recommendations = append(out.Recommendations, recommendationsFor(out.DocumentType)...)
	if len(out.KeyFindings) > 0 {
		out.Recommendations = append(out.Recommendations, "Review the highlighted findings and ask about anything unclear.")
	}
	return out
}

// ClassifyDocument returns the detector label with the most hits, or "other".
func ClassifyDocument(text string) string {
	best, bestHits := "other", 0
	for _, d := range typeDetectors {
		if hits := len(d.re.FindAllStringIndex(text, -1)); hits > bestHits {
			best, bestHits = d.docType, hits
		}
	}
	return best
}

func recommendationsFor(docType string) []string {
	switch docType {
	case "lab_report":
		return []string{"Compare any flagged values with the reference ranges and discuss them with your doctor."}
	case "prescription":
		return []string{"Confirm dosage and timing with your pharmacist before starting the medication."}
	case "discharge_summary":
		return []string{"Book the follow-up appointments listed and keep this summary for your records."}
	case "imaging_report":
		return []string{"Ask the referring doctor to go through the impression section with you."}
	case "invoice":
		return []string{"Check the amounts and due date, and keep proof of payment."}
	case "contract":
		return []string{"Read the obligations and termination clauses carefully before signing."}
	default:
		return []string{"Keep the document for your records."}
	}
}

// AnswerFromContext picks the context sentences that share the most words with
// the question. Questions asking for a summary get the summary line instead.
func AnswerFromContext(question, documentContext string) string {
	q := strings.ToLower(question)
	if strings.Contains(q, "summar") || strings.Contains(q, "overview") {
		for _, line := range strings.Split(documentContext, "\n") {
			if rest, ok := strings.CutPrefix(line, "Analysis summary: "); ok && strings.TrimSpace(rest) != "" {
				return rest
			}
		}
	}

	terms := keywords(question)
	type scored struct {
		idx   int
		score int
		text  string
	}
	var hits []scored
	for i, s := range SplitSentences(documentContext) {
		lower := strings.ToLower(s)
		score := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{idx: i, score: score, text: s})
		}
	}
	if len(hits) == 0 {
		return "I could not find anything in the document that answers that question."
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	hits = hits[:min(len(hits), 2)]
	sort.Slice(hits, func(a, b int) bool { return hits[a].idx < hits[b].idx })

	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.text)
	}
	return "According to the document: " + strings.Join(parts, " ")
}

var contractions = strings.NewReplacer(
	"can't", "cannot", "won't", "will not", "don't", "do not", "doesn't", "does not",
	"isn't", "is not", "aren't", "are not", "it's", "it is", "you're", "you are",
	"we're", "we are", "they're", "they are", "I'm", "I am", "didn't", "did not",
	"shouldn't", "should not", "wouldn't", "would not", "couldn't", "could not",
)

var plainWords = strings.NewReplacer(
	"hypertension", "high blood pressure", "hypotension", "low blood pressure",
	"myocardial infarction", "heart attack", "analgesic", "painkiller",
	"benign", "not harmful", "malignant", "cancerous", "edema", "swelling",
	"prior to", "before", "in order to", "to", "utilize", "use", "commence", "start",
)

var fillers = regexp.MustCompile(`(?i)\b(very|really|basically|actually|just|quite|simply)\s+`)

// RewriteText is the offline rewrite: a handful of deterministic transforms
// keyed by style. Unknown styles only tidy whitespace and capitalisation.
func RewriteText(text, style string) string {
	out := strings.Join(strings.Fields(text), " ")
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "formal", "professional":
		out = contractions.Replace(out)
	case "simple", "plain", "patient", "friendly":
		out = plainWords.Replace(out)
	case "concise", "short":
		out = fillers.ReplaceAllString(out, "")
	case "bullets", "bullet", "list":
		lines := SplitSentences(out)
		for i, l := range lines {
			lines[i] = "- " + l
		}
		return strings.Join(lines, "\n")
	}
	return capitalizeSentences(out)
}

// SuggestSteps derives next steps from the context header written at upload.
func SuggestSteps(documentContext string) []string {
	docType := "other"
	for _, line := range strings.Split(documentContext, "\n") {
		if rest, ok := strings.CutPrefix(line, "Document type: "); ok {
			docType = strings.TrimSpace(rest)
			break
		}
	}
	if docType == "other" || docType == "unknown" {
		docType = ClassifyDocument(documentContext)
	}
	steps := recommendationsFor(docType)
	steps = append(steps,
		"Write down any questions the document raises.",
		"Share the document with the professional responsible for it if anything is unclear.",
	)
	return steps
}

// SplitSentences breaks text on sentence punctuation and line breaks.
func SplitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, s := range strings.Split(sentenceEnd.ReplaceAllString(line, "$1\n"), "\n") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func CountWords(text string) int { return len(strings.Fields(text)) }

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true, "what": true,
	"which": true, "who": true, "how": true, "does": true, "do": true, "my": true, "of": true,
	"in": true, "on": true, "for": true, "to": true, "and": true, "or": true, "it": true,
	"this": true, "that": true, "me": true, "about": true, "tell": true, "there": true,
}

func keywords(s string) []string {
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) > 2 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

func capitalizeSentences(s string) string {
	parts := SplitSentences(s)
	for i, p := range parts {
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func trim(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
