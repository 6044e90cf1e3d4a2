package analysis

// ReportDelimiter brackets the caller's report text inside the prompt.
const ReportDelimiter = "---"

const promptInstructions = `
    Analyze the following medical lab report text.
    1.  Provide a simple, one-sentence summary for each test result mentioned.
    2.  For any values that are outside the normal range, provide actionable and culturally relevant dietary and lifestyle suggestions suitable for a person living in Kochi, Kerala, India. Use local food names where appropriate (e.g., "thoran", "avial", "pazham pori").
    3.  Generate a list of 3-4 relevant questions the user could ask their doctor based on these results.
    4.  Format the entire output as a single, clean JSON object with three keys: "summary", "recommendations", and "doctorQuestions". The value for "doctorQuestions" should be an array of strings.

    Report Text:
    `

// BuildPrompt embeds reportText verbatim between two delimiter lines.
func BuildPrompt(reportText string) string {
	return promptInstructions + ReportDelimiter + "\n" + reportText + "\n    " + ReportDelimiter + "\n  "
}
