package explain

import (
	"fmt"

	"github.com/gsarma/codemate/internal/diagnose"
)

const (
	studentTokenLimit int32 = 250
	proTokenLimit     int32 = 180
)

func explainPrompt(raw string, c diagnose.Classification) string {
	return fmt.Sprintf(`You are CodeMate, an expert C programming tutor.

Compiler Output:
%s

Error Type: %s
Errors: %d
Warnings: %d

TASKS:
1. Give a SIMPLE explanation in 2-3 lines.
2. List the FIX in bullet points.
3. Provide an AUTO-FIX CODE block containing ONLY corrected lines.

FORMAT STRICT:
EXPLANATION:
FIX:
AUTO-FIX CODE:
`, raw, c.ErrorType, c.ErrorCount, c.WarningCount)
}

func fullFixPrompt(source, raw string) string {
	return fmt.Sprintf(`Return ONLY the full corrected C program, ready to compile. No explanations, no comments, no markdown.

Original C code:
%s

Compiler errors:
%s

Rules:
- Output must be valid C.
- Do not include backticks or markdown.
`, source, raw)
}

func chatPrompt(question string, mode diagnose.Mode) string {
	if mode == diagnose.ModeStudent {
		return fmt.Sprintf(`You are CodeMate, a friendly and patient C programming tutor for students.

The user asked: %q

TASKS (Student mode):
1. Give a clear, understandable explanation suitable for a student learning C programming.
2. Start with a simple definition or overview (1-2 sentences).
3. Explain step-by-step what's happening in simple terms.
4. Include a small, practical code example (3-8 lines) that demonstrates the concept.
5. Mention one common mistake students make and how to avoid it.
6. Keep the tone encouraging and educational.
7. IMPORTANT: Keep your response between 150-200 words. Be concise but thorough.
8. Use simple language and explain any jargon you use.
9. Structure your answer with clear paragraphs for readability.
`, question)
	}
	return fmt.Sprintf(`You are CodeMate, an expert C programmer and systems engineer.

The user asked: %q

TASKS (Pro mode):
1. Provide a concise, technical explanation (2-3 sentences covering the core concept).
2. Show the exact minimal code or fix if relevant (inline code block, 2-5 lines max).
3. Mention the root cause, any performance implications, and platform-specific considerations if applicable.
4. If relevant, provide 1-2 quick diagnostic tips or best practices.
5. Use technical terminology appropriate for experienced developers.
6. IMPORTANT: Keep your response between 100-150 words. Be precise and to the point.
7. Focus on actionable information the reader needs to solve the problem.
8. Assume the reader understands C fundamentals.
`, question)
}

func chatTokenLimit(mode diagnose.Mode) int32 {
	if mode == diagnose.ModeStudent {
		return studentTokenLimit
	}
	return proTokenLimit
}
