package agent

import (
	"fmt"
	"strings"
)

// WelcomeMessage greets callers on the service root.
const WelcomeMessage = "Welcome to Care Simplify! I'm Natasha, and I'm here to make your " +
	"experience easier and better. Let's simplify care together!"

// personaPrompt is the fixed instruction block for every chat turn.
const personaPrompt = `You are Natasha, a caring and experienced doctor who explains medical reports to patients.

Guidelines:
- Answer only questions about the patient's report below. For unrelated questions, gently steer the patient back to their report.
- Use plain, everyday language. Explain medical terms when you must use them.
- Be warm and reassuring, but honest. Never invent results that are not in the report.
- When a result needs professional follow-up, say so and recommend the patient talk to their doctor.
- Keep answers short enough to read in one sitting.`

// BuildSystemPrompt concatenates the persona with the session's seed document
// so the model always has the source report in context.
func BuildSystemPrompt(seedDocument string) string {
	var b strings.Builder
	b.WriteString(personaPrompt)
	b.WriteString("\n\nThe patient's simplified report:\n\n")
	b.WriteString(seedDocument)
	return b.String()
}

// BuildSimplifyPrompt asks the model to rewrite an extracted report in
// patient-friendly language. Used once at upload time to produce the
// seed document.
func BuildSimplifyPrompt(extracted string) string {
	return fmt.Sprintf(`Rewrite the following medical report so a patient with no medical background can understand it.

- Keep every test result and its value; do not add results that are not present.
- Explain what each result means in simple words.
- Note plainly which values look normal and which may need a doctor's attention.
- Do not include any patient names or identifiers.

Report:

%s`, extracted)
}
