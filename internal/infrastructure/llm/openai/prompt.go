package openai

const systemPrompt = `You are a document analyst for an HR document portal.
Return a strict JSON object with keys:
summary (string), key_insights (array of strings), confidence (number from 0 to 1).
No markdown, no extra keys.`

func buildAnalysisPrompt(text string) string {
	const maxSnippet = 6000
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}
	return "Document:\n" + snippet
}
