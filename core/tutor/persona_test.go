package tutor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersona_Resolve(t *testing.T) {
	defaults := Persona{Name: "TutorBot", PersonalityPrompt: "Be warm, concise, and Socratic.", VoiceModel: "aura-2-draco-en", TTSSpeed: "1.0"}

	tests := []struct {
		name        string
		persona     Persona
		ttsOverride string
		want        Persona
	}{
		{name: "nothing configured", want: defaults},
		{
			name:        "override voice when persona has none",
			ttsOverride: "aura-2-thalia-en",
			want:        Persona{Name: "TutorBot", PersonalityPrompt: defaults.PersonalityPrompt, VoiceModel: "aura-2-thalia-en", TTSSpeed: "1.0"},
		},
		{
			name:        "persona voice beats override",
			persona:     Persona{Name: "Ada", VoiceModel: "aura-2-luna-en"},
			ttsOverride: "aura-2-thalia-en",
			want:        Persona{Name: "Ada", PersonalityPrompt: defaults.PersonalityPrompt, VoiceModel: "aura-2-luna-en", TTSSpeed: "1.0"},
		},
		{
			name:    "blank fields are defaulted one by one",
			persona: Persona{Name: "  ", PersonalityPrompt: "Be strict.", TTSSpeed: "1.2"},
			want:    Persona{Name: "TutorBot", PersonalityPrompt: "Be strict.", VoiceModel: "aura-2-draco-en", TTSSpeed: "1.2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.persona.Resolve(defaults, tt.ttsOverride))
		})
	}
}
