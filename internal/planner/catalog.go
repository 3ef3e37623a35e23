package planner

import "gametester/internal/types"

// catalog is the built-in candidate set for number-puzzle style games. It is
// the fallback when no LLM is configured (or the LLM call fails) and the
// top-up source when the LLM drafts fewer cases than requested.
func catalog() []types.TestCase {
	return []types.TestCase{
		{
			Name:              "Game loads successfully",
			Category:          types.CategoryFunctionality,
			Steps:             []string{"Navigate to the game URL", "Wait 3 seconds for the page to load", "Verify the game interface is visible"},
			ExpectedOutcome:   "Game loads and shows its start screen",
			Priority:          types.PriorityHigh,
			EstimatedDuration: 10,
		},
		{
			Name:              "Start a new game",
			Category:          types.CategoryFunctionality,
			Steps:             []string{"Navigate to the game URL", "Click the Start button", "Verify a puzzle is presented"},
			ExpectedOutcome:   "A new game session begins with the first puzzle",
			Priority:          types.PriorityHigh,
			EstimatedDuration: 12,
		},
		{
			Name:              "Solve a puzzle correctly",
			Category:          types.CategoryFunctionality,
			Steps:             []string{"Click the Start button", "Solve the addition puzzle shown on screen", "Click the Submit button"},
			ExpectedOutcome:   "The correct answer is accepted and the score increases",
			Priority:          types.PriorityHigh,
			EstimatedDuration: 20,
		},
		{
			Name:              "Submit a wrong answer",
			Category:          types.CategoryErrorHandling,
			Steps:             []string{"Click the Start button", "Enter the number 999 in the answer field", "Click the Submit button"},
			ExpectedOutcome:   "The game rejects the answer and shows feedback without crashing",
			Priority:          types.PriorityHigh,
			EstimatedDuration: 15,
		},
		{
			Name:              "Submit an empty answer",
			Category:          types.CategoryErrorHandling,
			Steps:             []string{"Click the Start button", "Click the Submit button without entering anything"},
			ExpectedOutcome:   "The game handles the empty submission gracefully",
			Priority:          types.PriorityHigh,
			EstimatedDuration: 10,
		},
		{
			Name:              "Enter non-numeric input",
			Category:          types.CategoryErrorHandling,
			Steps:             []string{"Click the Start button", "Type abc in the answer field", "Click the Submit button"},
			ExpectedOutcome:   "Non-numeric input is rejected or ignored",
			Priority:          types.PriorityMedium,
			EstimatedDuration: 15,
		},
		{
			Name:              "Enter a negative number",
			Category:          types.CategoryEdgeCase,
			Steps:             []string{"Click the Start button", "Enter the number -5 in the answer field", "Click the Submit button"},
			ExpectedOutcome:   "Negative input is handled without breaking the game state",
			Priority:          types.PriorityMedium,
			EstimatedDuration: 15,
		},
		{
			Name:              "Enter a very large number",
			Category:          types.CategoryEdgeCase,
			Steps:             []string{"Click the Start button", "Enter the number 999999999 in the answer field", "Click the Submit button"},
			ExpectedOutcome:   "Oversized input does not overflow or crash the game",
			Priority:          types.PriorityMedium,
			EstimatedDuration: 15,
		},
		{
			Name:              "Rapid repeated submissions",
			Category:          types.CategoryEdgeCase,
			Steps:             []string{"Click the Start button", "Enter the number 5 in the answer field", "Click the Submit button", "Click the Submit button", "Click the Submit button"},
			ExpectedOutcome:   "Double submissions are debounced, the score changes at most once",
			Priority:          types.PriorityMedium,
			EstimatedDuration: 18,
		},
		{
			Name:              "Solve several puzzles in a row",
			Category:          types.CategoryFunctionality,
			Steps:             []string{"Click the Start button", "Solve the puzzle", "Click the Submit button", "Solve the puzzle", "Click the Submit button", "Solve the puzzle", "Click the Submit button"},
			ExpectedOutcome:   "The game advances through consecutive puzzles and keeps score",
			Priority:          types.PriorityHigh,
			EstimatedDuration: 40,
		},
		{
			Name:              "Use the hint feature",
			Category:          types.CategoryFunctionality,
			Steps:             []string{"Click the Start button", "Click the Hint button", "Verify a hint is shown"},
			ExpectedOutcome:   "A hint appears without revealing the full answer",
			Priority:          types.PriorityMedium,
			EstimatedDuration: 15,
		},
		{
			Name:              "Idle on an open puzzle",
			Category:          types.CategoryEdgeCase,
			Steps:             []string{"Click the Start button", "Wait 30 seconds without interacting"},
			ExpectedOutcome:   "The game session stays alive through the idle period",
			Priority:          types.PriorityLow,
			EstimatedDuration: 35,
		},
		{
			Name:              "Reload mid-game",
			Category:          types.CategoryErrorHandling,
			Steps:             []string{"Click the Start button", "Solve the puzzle", "Navigate to the game URL again"},
			ExpectedOutcome:   "Reloading returns a usable game, state loss is graceful",
			Priority:          types.PriorityMedium,
			EstimatedDuration: 20,
		},
		{
			Name:              "Start screen layout",
			Category:          types.CategoryUIUX,
			Steps:             []string{"Navigate to the game URL", "Wait 2 seconds", "Verify buttons and title are visible"},
			ExpectedOutcome:   "Start screen elements are present and legible",
			Priority:          types.PriorityMedium,
			EstimatedDuration: 10,
		},
		{
			Name:              "Score display updates",
			Category:          types.CategoryUIUX,
			Steps:             []string{"Click the Start button", "Solve the puzzle", "Click the Submit button", "Verify the score display changed"},
			ExpectedOutcome:   "The score display reflects the correct answer immediately",
			Priority:          types.PriorityMedium,
			EstimatedDuration: 20,
		},
		{
			Name:              "Feedback on wrong answer is visible",
			Category:          types.CategoryUIUX,
			Steps:             []string{"Click the Start button", "Enter the number 999 in the answer field", "Click the Submit button", "Verify feedback is visible"},
			ExpectedOutcome:   "Error feedback is clearly visible near the answer field",
			Priority:          types.PriorityLow,
			EstimatedDuration: 15,
		},
		{
			Name:              "Initial page load time",
			Category:          types.CategoryPerformance,
			Steps:             []string{"Navigate to the game URL", "Wait 1 second"},
			ExpectedOutcome:   "The game becomes interactive within a few seconds",
			Priority:          types.PriorityLow,
			EstimatedDuration: 8,
		},
		{
			Name:              "Responsiveness after many answers",
			Category:          types.CategoryPerformance,
			Steps:             []string{"Click the Start button", "Solve the puzzle", "Click the Submit button", "Solve the puzzle", "Click the Submit button", "Solve the puzzle", "Click the Submit button", "Solve the puzzle", "Click the Submit button"},
			ExpectedOutcome:   "Input stays responsive as the session grows",
			Priority:          types.PriorityLow,
			EstimatedDuration: 50,
		},
		{
			Name:              "Keyboard-only answer entry",
			Category:          types.CategoryUIUX,
			Steps:             []string{"Click the Start button", "Type the number 7 in the answer field", "Click the Submit button"},
			ExpectedOutcome:   "Answers can be entered and submitted with the keyboard",
			Priority:          types.PriorityLow,
			EstimatedDuration: 15,
		},
		{
			Name:              "Whitespace around the answer",
			Category:          types.CategoryEdgeCase,
			Steps:             []string{"Click the Start button", "Enter the number 12 in the answer field", "Click the Submit button"},
			ExpectedOutcome:   "Leading or trailing whitespace does not invalidate a correct answer",
			Priority:          types.PriorityLow,
			EstimatedDuration: 15,
		},
	}
}
