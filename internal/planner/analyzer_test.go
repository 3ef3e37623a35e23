package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHTML = `<!DOCTYPE html>
<html>
<head><title>Sum Puzzle</title><script src="game.js"></script></head>
<body>
  <div id="game-root" class="wrapper">
    <canvas width="400" height="300"></canvas>
    <button>Start Game</button>
    <button class="hint-btn">Hint</button>
    <input type="number" id="answer">
    <input id="nickname">
  </div>
  <script>init();</script>
</body>
</html>`

func TestAnalyzeHTML(t *testing.T) {
	a, err := AnalyzeHTML(sampleHTML)
	require.NoError(t, err)

	assert.Equal(t, "Sum Puzzle", a.Title)
	assert.Equal(t, []string{"Start Game", "Hint"}, a.Buttons)
	assert.Equal(t, []string{"number", "text"}, a.InputTypes, "missing type defaults to text")
	assert.Equal(t, []string{"game-root"}, a.GameContainers)
	assert.True(t, a.HasCanvas)
	assert.Equal(t, 2, a.ScriptCount)
}

func TestAnalyzeHTML_Empty(t *testing.T) {
	a, err := AnalyzeHTML("")
	require.NoError(t, err)
	assert.Empty(t, a.Buttons)
	assert.False(t, a.HasCanvas)
}

func TestPageAnalysis_Summary(t *testing.T) {
	a := PageAnalysis{
		Title:          "Sum Puzzle",
		Buttons:        []string{"Start"},
		InputTypes:     []string{"number"},
		GameContainers: []string{"game-root"},
		HasCanvas:      true,
		ScriptCount:    2,
	}
	s := a.Summary()
	assert.Contains(t, s, "Sum Puzzle")
	assert.Contains(t, s, "Start")
	assert.Contains(t, s, "canvas")
	assert.Contains(t, s, "2 script tags")
}
