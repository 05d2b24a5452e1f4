package services

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"

	"github.com/krshsl/prepmate/models"
)

// Stock ElevenLabs voices by gender
var femaleVoices = []string{
	"EXAVITQu4vr4xnSDxMaL", // Rachel
	"21m00Tcm4TlvDq8ikWAM", // Domi
	"AZnzlk1XvdvUeBnXmlld", // Bella
	"ErXwobaYiN019PkySvjV", // Elli
	"MF3mGyEYCl7XYWbV9V6O", // Dorothy
}

var maleVoices = []string{
	DefaultVoiceID,         // Adam
	"TxGEqnHWrfWFTfGW9XjX", // Antoni
	"VR6AewLTigWG4xSOukaG", // Josh
	"yoZ06aMxZJJ28mfd3POQ", // Arnold
	"bVMeCyTHy58xNoL34h3p", // Clyde
}

// PickDeterministicVoice maps a persona name and gender onto a stock voice.
// The same name always speaks with the same voice.
func PickDeterministicVoice(name, gender string) string {
	var pool []string
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "female", "f":
		pool = femaleVoices
	case "male", "m":
		pool = maleVoices
	default:
		pool = make([]string, 0, len(femaleVoices)+len(maleVoices))
		pool = append(pool, femaleVoices...)
		pool = append(pool, maleVoices...)
	}

	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name))))
	idx := binary.BigEndian.Uint32(sum[:4]) % uint32(len(pool))
	return pool[idx]
}

// VoiceForInterview returns the voice an interviewer persona speaks with
func VoiceForInterview(interview *models.Interview) string {
	if interview == nil {
		return DefaultVoiceID
	}
	return PickDeterministicVoice(interview.Name, interview.Gender)
}
