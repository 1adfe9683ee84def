package x11

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindWindow(t *testing.T) {
	wins := []window{
		{id: 1, title: "vim - notes.md"},
		{id: 2, title: "Focus Co-Pilot - 24:13"},
		{id: 3, title: "Focus Co-Pilot"},
		{id: 4, title: "bash: Focus Co-Pilot docs"},
	}

	w, ok := findWindow(wins, "Focus Co-Pilot")
	assert.True(t, ok)
	assert.EqualValues(t, 3, w.id, "exact match wins")

	w, ok = findWindow(wins[:2], "Focus Co-Pilot")
	assert.True(t, ok)
	assert.EqualValues(t, 2, w.id)

	w, ok = findWindow([]window{wins[0], wins[3]}, "Focus Co-Pilot")
	assert.True(t, ok)
	assert.EqualValues(t, 4, w.id)

	_, ok = findWindow(wins[:1], "Focus Co-Pilot")
	assert.False(t, ok)
	_, ok = findWindow(wins, "")
	assert.False(t, ok)
}
