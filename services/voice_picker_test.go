package services

import (
	"testing"

	"github.com/krshsl/prepmate/models"
	"github.com/stretchr/testify/assert"
)

func TestPickDeterministicVoice(t *testing.T) {
	first := PickDeterministicVoice("Sarah Chen", "female")
	assert.Equal(t, first, PickDeterministicVoice("  sarah chen ", "Female"))
	assert.Contains(t, femaleVoices, first)

	assert.Contains(t, maleVoices, PickDeterministicVoice("Marcus Johnson", "m"))

	all := append(append([]string{}, femaleVoices...), maleVoices...)
	assert.Contains(t, all, PickDeterministicVoice("Robin", ""))
}

func TestVoiceForInterview(t *testing.T) {
	assert.Equal(t, DefaultVoiceID, VoiceForInterview(nil))

	interview := &models.Interview{Name: "Lisa Wang", Gender: "female"}
	assert.Equal(t, PickDeterministicVoice("Lisa Wang", "female"), VoiceForInterview(interview))
}
