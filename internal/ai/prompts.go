package ai

import "fmt"

func optimizePrompt(code, language string) string {
	return fmt.Sprintf(`You are an expert code optimizer. Analyze and optimize the following %[1]s code to improve:
1. Performance (e.g., algorithmic efficiency, memory usage, complexity)
2. Readability (e.g., variable naming, code structure, comments)
3. Best practices (e.g., language-specific conventions, design patterns)
4. Error handling (e.g., validation, exception handling, edge cases)

Original code:
`+"```"+`%[1]s
%[2]s
`+"```"+`

Provide your response in this JSON format:
{
  "optimized": "the complete optimized code here",
  "improvements": [
    {
      "category": one of ["performance", "readability", "best_practices", "error_handling"],
      "title": "Short title for the improvement",
      "description": "Detailed explanation of what was improved and why",
      "severity": one of ["high", "medium", "low"],
      "learn_more_url": "Optional URL to documentation explaining this concept further",
      "original_code": "Optional snippet of the problematic original code",
      "optimized_code": "Optional snippet showing how this specific issue was fixed"
    }
  ],
  "summary": {
    "total_issues": number of total issues found,
    "performance_issues": number of performance issues,
    "readability_issues": number of readability issues,
    "best_practices_issues": number of best practices issues,
    "error_handling_issues": number of error handling issues
  }
}

Important guidelines:
1. Explanations should teach the developer the reasoning behind each change
2. Include before/after snippets where relevant
3. List the most impactful (high severity) improvements first
4. The optimized code must be complete and include every suggested improvement
5. Severity: high (critical issues), medium (important improvements), low (minor enhancements)`, language, code)
}

func scorePrompt(code, language string) string {
	return fmt.Sprintf(`You are an expert code reviewer. Evaluate the following %[1]s code against industry standards and best practices.
Score it out of 100 and provide specific feedback.

Code to evaluate:
`+"```"+`%[1]s
%[2]s
`+"```"+`

Provide your response in this JSON format:
{
  "score": number between 0 and 100,
  "feedback": {
    "strengths": ["strength 1", "strength 2", ...],
    "weaknesses": ["weakness 1", "weakness 2", ...],
    "suggestions": ["suggestion 1", "suggestion 2", ...]
  }
}`, language, code)
}
